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

import (
	"fmt"
	"math"
)

const svdEps = 2.2204e-16

// svdSystem is the in-house SVD backend. Decompose uses one-sided Jacobi
// rotations: A is reduced in place to U*diag(W) by a sequence of plane
// rotations applied to column pairs, with the accumulated rotations
// forming V, so that A = U*diag(W)*V'.
type svdSystem struct {
	denseBase
	u, v [][]float64 // u is m-by-n, v is n-by-n
	w    []float64   // singular values, length n
}

func (s *svdSystem) Decompose() ([]float64, [][]float64, error) {
	if err := s.normaliseColumns(); err != nil {
		return nil, nil, err
	}
	u := make([][]float64, s.m)
	for i := range u {
		u[i] = append([]float64(nil), s.a[i]...)
	}
	v := make([][]float64, s.n)
	for i := range v {
		v[i] = make([]float64, s.n)
		v[i][i] = 1
	}

	const maxSweeps = 60
	for sweep := 0; sweep < maxSweeps; sweep++ {
		offDiag := 0.0
		for p := 0; p < s.n-1; p++ {
			for q := p + 1; q < s.n; q++ {
				var alpha, beta, gamma float64
				for i := 0; i < s.m; i++ {
					alpha += u[i][p] * u[i][p]
					beta += u[i][q] * u[i][q]
					gamma += u[i][p] * u[i][q]
				}
				if alpha == 0 || beta == 0 {
					continue
				}
				offDiag += gamma * gamma
				if math.Abs(gamma) < svdEps*math.Sqrt(alpha*beta) {
					continue
				}
				zeta := (beta - alpha) / (2 * gamma)
				t := 1 / (math.Abs(zeta) + math.Sqrt(1+zeta*zeta))
				if zeta < 0 {
					t = -t
				}
				c := 1 / math.Sqrt(1+t*t)
				sn := c * t
				for i := 0; i < s.m; i++ {
					up, uq := u[i][p], u[i][q]
					u[i][p] = c*up - sn*uq
					u[i][q] = sn*up + c*uq
				}
				for i := 0; i < s.n; i++ {
					vp, vq := v[i][p], v[i][q]
					v[i][p] = c*vp - sn*vq
					v[i][q] = sn*vp + c*vq
				}
			}
		}
		if offDiag < svdEps*svdEps {
			break
		}
	}

	w := make([]float64, s.n)
	for j := 0; j < s.n; j++ {
		var sumSq float64
		for i := 0; i < s.m; i++ {
			sumSq += u[i][j] * u[i][j]
		}
		w[j] = math.Sqrt(sumSq)
		if w[j] > 0 {
			for i := 0; i < s.m; i++ {
				u[i][j] /= w[j]
			}
		}
	}
	s.u, s.v, s.w = u, v, w

	var wMax float64
	for _, wj := range w {
		if wj > wMax {
			wMax = wj
		}
	}
	tol := float64(maxInt(s.m, s.n)) * wMax * svdEps

	sigmaSquare := make([]float64, s.n)
	covar := make([][]float64, s.n)
	for i := range covar {
		covar[i] = make([]float64, s.n)
	}
	for j := 0; j < s.n; j++ {
		if w[j] <= tol {
			return nil, nil, fmt.Errorf("linsys: svdSystem.Decompose: %w: singular value %d below tolerance", ErrIllConditioned, j)
		}
	}
	for i := 0; i < s.n; i++ {
		for j := 0; j < s.n; j++ {
			var sum float64
			for k := 0; k < s.n; k++ {
				sum += v[i][k] * v[j][k] / (w[k] * w[k])
			}
			covar[i][j] = sum
		}
		sigmaSquare[i] = covar[i][i]
	}
	s.rescaleCovarAndSigma(sigmaSquare, covar)
	return sigmaSquare, covar, nil
}

func (s *svdSystem) Solve(b []float64) ([]float64, error) {
	if s.w == nil {
		return nil, fmt.Errorf("linsys: svdSystem.Solve: %w: system not decomposed", ErrIllConditioned)
	}
	var wMax float64
	for _, wj := range s.w {
		if wj > wMax {
			wMax = wj
		}
	}
	tol := float64(maxInt(s.m, s.n)) * wMax * svdEps

	tmp := make([]float64, s.n)
	for j := 0; j < s.n; j++ {
		if s.w[j] > tol {
			var dot float64
			for i := 0; i < s.m; i++ {
				dot += s.u[i][j] * b[i]
			}
			tmp[j] = dot / s.w[j]
		}
	}
	x := make([]float64, s.n)
	for i := 0; i < s.n; i++ {
		var sum float64
		for j := 0; j < s.n; j++ {
			sum += s.v[i][j] * tmp[j]
		}
		x[i] = sum
	}
	s.rescaleSolution(x)
	return x, nil
}

// Pinv returns the Moore-Penrose pseudoinverse pinv(A) = V*W^-1*U', the
// n-by-m matrix such that pinv(A)*A ~= I on the row space of A.
func (s *svdSystem) Pinv() ([][]float64, error) {
	if s.w == nil {
		return nil, fmt.Errorf("linsys: svdSystem.Pinv: %w: system not decomposed", ErrIllConditioned)
	}
	var wMax float64
	for _, wj := range s.w {
		if wj > wMax {
			wMax = wj
		}
	}
	tol := float64(maxInt(s.m, s.n)) * wMax * svdEps

	pinv := make([][]float64, s.n)
	for i := range pinv {
		pinv[i] = make([]float64, s.m)
	}
	for i := 0; i < s.n; i++ {
		for j := 0; j < s.m; j++ {
			var sum float64
			for k := 0; k < s.n; k++ {
				if s.w[k] > tol {
					sum += s.v[i][k] * s.u[j][k] / s.w[k]
				}
			}
			pinv[i][j] = sum
		}
	}
	return pinv, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
