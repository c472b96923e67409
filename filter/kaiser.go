/*
Copyright © 2024 the qdoas-engine authors.
This file is part of qdoas-engine.

qdoas-engine is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

qdoas-engine is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with qdoas-engine.  If not, see <http://www.gnu.org/licenses/>.
*/

package filter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// KaiserOptions configures the Kaiser low-pass FIR design.
type KaiserOptions struct {
	Cutoff     float64 // normalised cutoff frequency, 0 < Cutoff < 0.5
	PassBand   float64 // transition passband width, same units as Cutoff
	Tolerance  float64 // ripple tolerance, used to derive the Kaiser beta
	NumTaps    int     // length of the FIR kernel (odd)
}

// NewKaiser builds a Kaiser-windowed low-pass FIR filter by shaping an
// ideal brick-wall frequency mask with a Bessel-I0 Kaiser window and
// taking the inverse FFT, the same construction used to derive a
// real-coefficient FIR filter from a frequency-domain specification.
func NewKaiser(opts KaiserOptions) (*Kernel, error) {
	if opts.Cutoff <= 0 || opts.Cutoff >= 0.5 || opts.NumTaps < 3 {
		return nil, fmt.Errorf("filter: NewKaiser: invalid options %+v", opts)
	}
	n := opts.NumTaps
	if n%2 == 0 {
		n++
	}
	beta := kaiserBeta(opts.Tolerance)

	fft := fourier.NewFFT(n)
	mask := make([]float64, n)
	for i := 0; i <= n/2; i++ {
		freq := float64(i) / float64(n)
		mask[i] = maskValue(freq, opts.Cutoff, opts.PassBand)
		if i > 0 && i < n-i {
			mask[n-i] = mask[i]
		}
	}
	spectrum := make([]complex128, n/2+1)
	for i := range spectrum {
		spectrum[i] = complex(mask[i], 0)
	}
	td := fft.Sequence(nil, spectrum)

	weights := make([]float64, n)
	half := n / 2
	var sum float64
	for i := 0; i < n; i++ {
		shifted := td[(i+half)%n]
		w := kaiserWindow(float64(i-half), float64(half), beta)
		weights[i] = shifted * w
		sum += weights[i]
	}
	if sum == 0 {
		return nil, fmt.Errorf("filter: NewKaiser: degenerate kernel (zero sum)")
	}
	for i := range weights {
		weights[i] /= sum
	}
	return &Kernel{Weights: weights}, nil
}

func maskValue(freq, cutoff, passband float64) float64 {
	switch {
	case freq <= cutoff:
		return 1
	case freq >= cutoff+passband:
		return 0
	default:
		if passband == 0 {
			return 0
		}
		return 1 - (freq-cutoff)/passband
	}
}

// kaiserBeta maps a ripple tolerance onto the classical Kaiser-window
// beta parameter (Kaiser's empirical formula).
func kaiserBeta(tolerance float64) float64 {
	if tolerance <= 0 {
		tolerance = 1e-3
	}
	a := -20 * math.Log10(tolerance)
	switch {
	case a > 50:
		return 0.1102 * (a - 8.7)
	case a >= 21:
		return 0.5842*math.Pow(a-21, 0.4) + 0.07886*(a-21)
	default:
		return 0
	}
}

func kaiserWindow(n, half, beta float64) float64 {
	if half == 0 {
		return 1
	}
	r := n / half
	arg := beta * math.Sqrt(1-r*r)
	return besselI0(arg) / besselI0(beta)
}

// besselI0 evaluates the modified Bessel function of the first kind,
// order zero, via its series expansion.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	for k := 1; k < 40; k++ {
		term *= (x / (2 * float64(k))) * (x / (2 * float64(k)))
		sum += term
		if term < 1e-16*sum {
			break
		}
	}
	return sum
}
