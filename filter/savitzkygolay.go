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

	"gonum.org/v1/gonum/mat"
)

// NewSavitzkyGolay builds a Savitzky-Golay smoothing kernel of the given
// half-width and polynomial order via the pseudoinverse of the Vandermonde
// design matrix: row 0 of (VtV)^-1 Vt (the constant-term row, with x
// measured from the centre tap) gives the FIR weights that reproduce the
// order-th order local polynomial fit at the centre tap.
func NewSavitzkyGolay(halfWidth, order int) (*Kernel, error) {
	if halfWidth < 1 || order < 0 || order >= 2*halfWidth+1 {
		return nil, fmt.Errorf("filter: NewSavitzkyGolay: invalid halfWidth=%d order=%d", halfWidth, order)
	}
	n := 2*halfWidth + 1
	v := mat.NewDense(n, order+1, nil)
	for i := 0; i < n; i++ {
		x := float64(i - halfWidth)
		p := 1.0
		for j := 0; j <= order; j++ {
			v.Set(i, j, p)
			p *= x
		}
	}
	var vtv mat.Dense
	vtv.Mul(v.T(), v)
	var vtvInv mat.Dense
	if err := vtvInv.Inverse(&vtv); err != nil {
		return nil, fmt.Errorf("filter: NewSavitzkyGolay: %w", err)
	}
	var pinv mat.Dense
	pinv.Mul(&vtvInv, v.T())

	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		weights[i] = pinv.At(0, i)
	}
	return &Kernel{Weights: weights}, nil
}
