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

package linsys

import "fmt"

// FitPoly fits b ~= sum_k x[k]*a^k for k in [0,order] by building a
// Vandermonde design matrix and solving via the QR backend, optionally
// weighted by sigma (one weight per equation). It returns the order+1
// coefficients x[0..order].
func FitPoly(a, sigma, b []float64, order int) ([]float64, error) {
	n := len(a)
	if len(b) != n {
		return nil, fmt.Errorf("linsys: FitPoly: len(a)=%d != len(b)=%d", n, len(b))
	}
	if sigma != nil && len(sigma) != n {
		return nil, fmt.Errorf("linsys: FitPoly: len(sigma)=%d != len(a)=%d", len(sigma), n)
	}
	numUnknowns := order + 1
	sys, err := NewSystem(n, numUnknowns, QR)
	if err != nil {
		return nil, err
	}
	col := make([]float64, n)
	for j := range col {
		col[j] = 1
	}
	for k := 0; k < numUnknowns; k++ {
		sys.SetColumn(k, col)
		if k+1 < numUnknowns {
			for j := range col {
				col[j] *= a[j]
			}
		}
	}
	if err := sys.SetWeight(sigma); err != nil {
		return nil, err
	}
	if _, _, err := sys.Decompose(); err != nil {
		return nil, err
	}
	rhs := append([]float64(nil), b...)
	if sigma != nil {
		for j := range rhs {
			rhs[j] /= sigma[j]
		}
	}
	return sys.Solve(rhs)
}
