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

package qdoas

import (
	"fmt"

	"github.com/bira-iasb/qdoas-engine/numeric"
)

// AMFTable is a wavelength-indexed air-mass-factor lookup: tables are
// consumed, not computed, beyond cubic-spline interpolation between
// tabulated wavelengths (spec.md Non-goals).
type AMFTable struct {
	spline *numeric.Spline
}

// NewAMFTable builds a lookup from a loaded AMF file, column 0
// wavelength and column 1 the tabulated AMF, the same two-column shape
// a cross-section reference file uses.
func NewAMFTable(m *numeric.Matrix) (*AMFTable, error) {
	if m == nil || len(m.Columns) < 2 {
		return nil, fmt.Errorf("qdoas: NewAMFTable: expected at least 2 columns")
	}
	spline, err := numeric.NewSpline(m.Columns[0], m.Columns[1])
	if err != nil {
		return nil, fmt.Errorf("qdoas: NewAMFTable: %w", err)
	}
	return &AMFTable{spline: spline}, nil
}

// At interpolates the AMF at the given wavelength.
func (t *AMFTable) At(lambda float64) float64 {
	return t.spline.Eval(lambda, numeric.Cubic)
}
