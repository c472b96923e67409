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

// Package slit implements the instrument slit-function library: a closed
// set of kernel shapes, each sampleable and usable to convolve a
// high-resolution spectrum onto a coarser output grid, with an optional
// wavelength-dependent wrapper.
package slit

import (
	"errors"
	"fmt"
	"math"
)

// ErrSlitConfig is returned when a requested slit variant is given
// parameters it cannot use (e.g. a zero FWHM).
var ErrSlitConfig = errors.New("slit: invalid configuration")

// ErrDomain is returned when a convolution kernel's half-width exceeds
// the span of the high-resolution grid it is being evaluated against.
var ErrDomain = errors.New("slit: kernel exceeds high-resolution grid domain")

// Slit is the closed sum type of slit-function variants. Value returns
// the (unnormalised) kernel amplitude at offset dx from the kernel
// centre; HalfWidth bounds the support used to size convolution windows.
type Slit interface {
	Value(dx float64) float64
	HalfWidth() float64
}

// AtWavelength returns the concrete Slit to use at wavelength lambda0.
// For ordinary (wavelength-independent) slits it is the identity; for
// WavelengthDependent it resamples the parameter curves.
func AtWavelength(s Slit, lambda0 float64) (Slit, error) {
	if wd, ok := s.(*WavelengthDependent); ok {
		return wd.at(lambda0)
	}
	return s, nil
}

// Convolve produces y-values on outX by convolving the high-resolution
// spectrum (hrX,hrY) with slit s, re-sampling the slit per output point
// when s is wavelength-dependent. hrX must be sorted ascending.
func Convolve(hrX, hrY, outX []float64, s Slit) ([]float64, error) {
	if len(hrX) != len(hrY) {
		return nil, fmt.Errorf("slit: Convolve: len(hrX)=%d != len(hrY)=%d", len(hrX), len(hrY))
	}
	out := make([]float64, len(outX))
	for i, x0 := range outX {
		local, err := AtWavelength(s, x0)
		if err != nil {
			return nil, err
		}
		v, err := convolveAt(hrX, hrY, x0, local)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// convolveAt evaluates the convolution integral at a single output
// abscissa x0 using trapezoidal quadrature over the HR grid restricted to
// the slit's half-width.
func convolveAt(hrX, hrY []float64, x0 float64, s Slit) (float64, error) {
	hw := s.HalfWidth()
	if x0-hw < hrX[0] || x0+hw > hrX[len(hrX)-1] {
		return 0, fmt.Errorf("slit: convolveAt(%v): %w", x0, ErrDomain)
	}
	lo := searchSorted(hrX, x0-hw)
	hi := searchSorted(hrX, x0+hw)
	if hi <= lo {
		return 0, fmt.Errorf("slit: convolveAt(%v): %w", x0, ErrDomain)
	}
	var num, den float64
	for i := lo; i < hi; i++ {
		dxStep := hrX[i+1] - hrX[i]
		w0 := s.Value(hrX[i] - x0)
		w1 := s.Value(hrX[i+1] - x0)
		num += 0.5 * dxStep * (w0*hrY[i] + w1*hrY[i+1])
		den += 0.5 * dxStep * (w0 + w1)
	}
	if den == 0 {
		return 0, fmt.Errorf("slit: convolveAt(%v): %w: zero-area kernel", x0, ErrSlitConfig)
	}
	return num / den, nil
}

// ConvolveI0 computes the I0-corrected convolution of a cross section
// sigma against the high-resolution reference i0, both sampled on hrX,
// at user concentration conc:
//
//	result = ln( conv(i0) / conv(i0*exp(-conc*sigma)) ) / conc
//
// When conc == 0 this degenerates to the plain convolution of sigma
// (the documented c -> 0 limit).
func ConvolveI0(hrX, i0, sigma, outX []float64, s Slit, conc float64) ([]float64, error) {
	if conc == 0 {
		return Convolve(hrX, sigma, outX, s)
	}
	if len(hrX) != len(i0) || len(hrX) != len(sigma) {
		return nil, fmt.Errorf("slit: ConvolveI0: mismatched lengths")
	}
	atten := make([]float64, len(hrX))
	for i := range hrX {
		atten[i] = i0[i] * math.Exp(-conc*sigma[i])
	}
	convI0, err := Convolve(hrX, i0, outX, s)
	if err != nil {
		return nil, err
	}
	convAtten, err := Convolve(hrX, atten, outX, s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(outX))
	for i := range outX {
		if convAtten[i] <= 0 || convI0[i] <= 0 {
			return nil, fmt.Errorf("slit: ConvolveI0: %w: non-positive convolved intensity", ErrDomain)
		}
		out[i] = math.Log(convI0[i]/convAtten[i]) / conc
	}
	return out, nil
}

func searchSorted(x []float64, v float64) int {
	lo, hi := 0, len(x)
	for lo < hi {
		mid := (lo + hi) / 2
		if x[mid] < v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
