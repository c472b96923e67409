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

package slit

import (
	"fmt"
	"math"

	"github.com/bira-iasb/qdoas-engine/numeric"
)

const ln2 = math.Ln2

// Gaussian is a pure Gaussian slit of the given FWHM (nm).
type Gaussian struct{ FWHM float64 }

func NewGaussian(fwhm float64) (*Gaussian, error) {
	if fwhm <= 0 {
		return nil, fmt.Errorf("slit: Gaussian: %w: fwhm must be > 0", ErrSlitConfig)
	}
	return &Gaussian{FWHM: fwhm}, nil
}

func (g *Gaussian) Value(dx float64) float64 {
	w := g.FWHM / (2 * math.Sqrt(ln2))
	return math.Exp(-(dx * dx) / (w * w))
}

func (g *Gaussian) HalfWidth() float64 { return 5 * g.FWHM }

// ErrorFunction is the convolution of a Gaussian with a box of the given
// width: a Gaussian slit that has been smeared by a boxcar (instrument
// slit with finite pixel width).
type ErrorFunction struct {
	FWHM, BoxWidth float64
}

func NewErrorFunction(fwhm, box float64) (*ErrorFunction, error) {
	if fwhm <= 0 || box < 0 {
		return nil, fmt.Errorf("slit: ErrorFunction: %w", ErrSlitConfig)
	}
	return &ErrorFunction{FWHM: fwhm, BoxWidth: box}, nil
}

func (e *ErrorFunction) Value(dx float64) float64 {
	w := e.FWHM / (2 * math.Sqrt(ln2))
	if e.BoxWidth == 0 {
		return math.Exp(-(dx * dx) / (w * w))
	}
	return 0.5 * (math.Erf((dx+e.BoxWidth/2)/w) - math.Erf((dx-e.BoxWidth/2)/w))
}

func (e *ErrorFunction) HalfWidth() float64 { return 5*e.FWHM + e.BoxWidth }

// InversePolynomial is a super-Lorentzian of the given order: a plain
// Lorentzian (heavier wings than a Gaussian) for order 1, approaching a
// box as order increases.
type InversePolynomial struct {
	FWHM  float64
	Order int
}

func NewInversePolynomial(fwhm float64, order int) (*InversePolynomial, error) {
	if fwhm <= 0 || order < 1 {
		return nil, fmt.Errorf("slit: InversePolynomial: %w", ErrSlitConfig)
	}
	return &InversePolynomial{FWHM: fwhm, Order: order}, nil
}

func (p *InversePolynomial) Value(dx float64) float64 {
	r := 2 * dx / p.FWHM
	return 1 / (1 + math.Pow(r*r, float64(p.Order)))
}

func (p *InversePolynomial) HalfWidth() float64 { return 10 * p.FWHM }

// AsymmetricGaussian is a Gaussian with independent FWHM on each side of
// the centre, parameterised as a nominal FWHM plus an asymmetry factor
// (FWHMleft = FWHM*(1-asym), FWHMright = FWHM*(1+asym)).
type AsymmetricGaussian struct {
	FWHM, Asym float64
}

func NewAsymmetricGaussian(fwhm, asym float64) (*AsymmetricGaussian, error) {
	if fwhm <= 0 || math.Abs(asym) >= 1 {
		return nil, fmt.Errorf("slit: AsymmetricGaussian: %w", ErrSlitConfig)
	}
	return &AsymmetricGaussian{FWHM: fwhm, Asym: asym}, nil
}

func (a *AsymmetricGaussian) Value(dx float64) float64 {
	fwhm := a.FWHM * (1 - a.Asym)
	if dx > 0 {
		fwhm = a.FWHM * (1 + a.Asym)
	}
	w := fwhm / (2 * math.Sqrt(ln2))
	return math.Exp(-(dx * dx) / (w * w))
}

func (a *AsymmetricGaussian) HalfWidth() float64 {
	return 5 * a.FWHM * (1 + math.Abs(a.Asym))
}

// SuperGaussian generalises Gaussian with a power (>2 sharpens the top,
// <2 broadens the wings) and an asymmetry between the two sides.
type SuperGaussian struct {
	FWHM, Power, Asym float64
}

func NewSuperGaussian(fwhm, power, asym float64) (*SuperGaussian, error) {
	if fwhm <= 0 || power <= 0 || math.Abs(asym) >= 1 {
		return nil, fmt.Errorf("slit: SuperGaussian: %w", ErrSlitConfig)
	}
	return &SuperGaussian{FWHM: fwhm, Power: power, Asym: asym}, nil
}

func (s *SuperGaussian) Value(dx float64) float64 {
	fwhm := s.FWHM * (1 - s.Asym)
	if dx > 0 {
		fwhm = s.FWHM * (1 + s.Asym)
	}
	w := fwhm / (2 * math.Pow(ln2, 1/s.Power))
	return math.Exp(-math.Pow(math.Abs(dx)/w, s.Power))
}

func (s *SuperGaussian) HalfWidth() float64 {
	return 5 * s.FWHM * (1 + math.Abs(s.Asym))
}

// Voigt is a pseudo-Voigt profile: a linear mixture of a Gaussian and a
// Lorentzian of matching FWHM, weighted by Ratio (0 = pure Gaussian, 1 =
// pure Lorentzian).
type Voigt struct {
	FWHM, Ratio float64
}

func NewVoigt(fwhm, ratio float64) (*Voigt, error) {
	if fwhm <= 0 || ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("slit: Voigt: %w", ErrSlitConfig)
	}
	return &Voigt{FWHM: fwhm, Ratio: ratio}, nil
}

func (v *Voigt) Value(dx float64) float64 {
	wg := v.FWHM / (2 * math.Sqrt(ln2))
	gauss := math.Exp(-(dx * dx) / (wg * wg))
	hl := v.FWHM / 2
	lorentz := (hl * hl) / (dx*dx + hl*hl)
	return (1-v.Ratio)*gauss + v.Ratio*lorentz
}

func (v *Voigt) HalfWidth() float64 { return 20 * v.FWHM }

// Apodisation is the FTS apodisation function (resolution + phase error)
// used to convert an unapodised interferogram-domain resolution into a
// spectral-domain kernel; implemented as a sinc-squared shape scaled by
// Resolution with a small cosine phase-error term.
type Apodisation struct {
	Resolution, Phase float64
}

func NewApodisation(resolution, phase float64) (*Apodisation, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("slit: Apodisation: %w", ErrSlitConfig)
	}
	return &Apodisation{Resolution: resolution, Phase: phase}, nil
}

func (a *Apodisation) Value(dx float64) float64 {
	x := math.Pi * dx / a.Resolution
	var sinc float64
	if x == 0 {
		sinc = 1
	} else {
		sinc = math.Sin(x) / x
	}
	return sinc * sinc * math.Cos(a.Phase*dx)
}

func (a *Apodisation) HalfWidth() float64 { return 8 * a.Resolution }

// ApodisationNBS is the Norton-Beer "strong" apodisation variant, a
// weighted polynomial combination broader and smoother than the plain
// sinc^2 Apodisation shape.
type ApodisationNBS struct {
	Resolution, Phase float64
}

func NewApodisationNBS(resolution, phase float64) (*ApodisationNBS, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("slit: ApodisationNBS: %w", ErrSlitConfig)
	}
	return &ApodisationNBS{Resolution: resolution, Phase: phase}, nil
}

func (a *ApodisationNBS) Value(dx float64) float64 {
	x := dx / a.Resolution
	u := 1 - x*x
	if u < 0 {
		u = 0
	}
	// Norton-Beer "strong" coefficients.
	const c0, c2, c4 = 0.090, 0.5875, 0.3225
	shape := c0 + c2*u*u + c4*u*u*u*u
	return shape * math.Cos(a.Phase*dx)
}

func (a *ApodisationNBS) HalfWidth() float64 { return 8 * a.Resolution }

// File is a tabulated slit given as (offset, amplitude) pairs, spline
// interpolated and zero outside the table's domain.
type File struct {
	spline *numeric.Spline
	half   float64
}

// NewFile builds a File slit from offsets (nm, may be negative) and
// amplitudes, both sorted ascending on offsets.
func NewFile(offsets, amplitudes []float64) (*File, error) {
	sp, err := numeric.NewSpline(offsets, amplitudes)
	if err != nil {
		return nil, fmt.Errorf("slit: File: %w", err)
	}
	half := math.Max(math.Abs(offsets[0]), math.Abs(offsets[len(offsets)-1]))
	return &File{spline: sp, half: half}, nil
}

func (f *File) Value(dx float64) float64 {
	if dx < f.spline.X[0] || dx > f.spline.X[len(f.spline.X)-1] {
		return 0
	}
	return f.spline.Eval(dx, numeric.Cubic)
}

func (f *File) HalfWidth() float64 { return f.half }
