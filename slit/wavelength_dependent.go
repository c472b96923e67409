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

	"github.com/bira-iasb/qdoas-engine/numeric"
)

// Builder constructs a concrete Slit from parameter values sampled at a
// particular wavelength. The parameter count and meaning is owned by the
// underlying variant (e.g. Gaussian needs one, SuperGaussian three).
type Builder func(params []float64) (Slit, error)

// WavelengthDependent wraps an inner slit variant whose parameters are
// themselves a function of wavelength, tabulated in a numeric.Matrix
// (column 0 is wavelength, columns 1..n are the parameter curves) and
// cubic-spline interpolated at each requested wavelength.
type WavelengthDependent struct {
	table   *numeric.Matrix
	splines []*numeric.Spline
	build   Builder
}

// NewWavelengthDependent builds a wrapper from a parameter-curve table
// and a Builder that turns a sampled parameter vector into a concrete
// Slit instance.
func NewWavelengthDependent(table *numeric.Matrix, build Builder) (*WavelengthDependent, error) {
	if len(table.Columns) < 2 {
		return nil, fmt.Errorf("slit: WavelengthDependent: %w: need wavelength + at least one parameter column", ErrSlitConfig)
	}
	splines := make([]*numeric.Spline, len(table.Columns)-1)
	for i := 1; i < len(table.Columns); i++ {
		sp, err := numeric.NewSpline(table.Columns[0], table.Columns[i])
		if err != nil {
			return nil, fmt.Errorf("slit: WavelengthDependent: parameter column %d: %w", i, err)
		}
		splines[i-1] = sp
	}
	return &WavelengthDependent{table: table, splines: splines, build: build}, nil
}

func (w *WavelengthDependent) at(lambda0 float64) (Slit, error) {
	params := make([]float64, len(w.splines))
	for i, sp := range w.splines {
		params[i] = sp.Eval(lambda0, numeric.Cubic)
	}
	return w.build(params)
}

// Value and HalfWidth satisfy Slit using the parameters sampled at
// wavelength 0 of the table, so a WavelengthDependent slit can still be
// passed where a plain Slit is expected; callers that care about the
// wavelength dependence should go through AtWavelength/Convolve instead.
func (w *WavelengthDependent) Value(dx float64) float64 {
	s, err := w.at(w.table.Columns[0][0])
	if err != nil {
		return 0
	}
	return s.Value(dx)
}

func (w *WavelengthDependent) HalfWidth() float64 {
	s, err := w.at(w.table.Columns[0][0])
	if err != nil {
		return 0
	}
	return s.HalfWidth()
}
