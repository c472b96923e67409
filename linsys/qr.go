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

	"gonum.org/v1/gonum/mat"
)

// qrSystem is the gonum/mat QR-decomposition backend: Householder QR,
// with the covariance derived from a Cholesky inversion of R'R (the same
// "R is the Cholesky factor of A'A" trick the original uses with GSL's
// QR routines).
type qrSystem struct {
	denseBase
	qr *mat.QR
	a  *mat.Dense // normalised design matrix, kept for residual/solve
}

func (s *qrSystem) Decompose() ([]float64, [][]float64, error) {
	if err := s.normaliseColumns(); err != nil {
		return nil, nil, err
	}
	flat := make([]float64, 0, s.m*s.n)
	for i := 0; i < s.m; i++ {
		flat = append(flat, s.a[i]...)
	}
	dense := mat.NewDense(s.m, s.n, flat)
	s.a = dense

	var qr mat.QR
	qr.Factorize(dense)
	s.qr = &qr

	var r mat.Dense
	qr.RTo(&r)
	var rtr mat.Dense
	rtr.Mul(r.T(), &r)

	var chol mat.Cholesky
	if ok := chol.Factorize(mat.NewSymDense(s.n, rtrData(&rtr, s.n))); !ok {
		return nil, nil, fmt.Errorf("linsys: qrSystem.Decompose: %w: Cholesky factorization of R'R failed", ErrIllConditioned)
	}
	var inv mat.Dense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, nil, fmt.Errorf("linsys: qrSystem.Decompose: %w", ErrIllConditioned)
	}

	sigmaSquare := make([]float64, s.n)
	covar := make([][]float64, s.n)
	for i := 0; i < s.n; i++ {
		covar[i] = make([]float64, s.n)
		for j := 0; j < s.n; j++ {
			covar[i][j] = inv.At(i, j)
		}
		sigmaSquare[i] = covar[i][i]
	}
	s.rescaleCovarAndSigma(sigmaSquare, covar)
	return sigmaSquare, covar, nil
}

func rtrData(rtr *mat.Dense, n int) []float64 {
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			data[i*n+j] = rtr.At(i, j)
		}
	}
	return data
}

func (s *qrSystem) Solve(b []float64) ([]float64, error) {
	if s.qr == nil {
		return nil, fmt.Errorf("linsys: qrSystem.Solve: %w: system not decomposed", ErrIllConditioned)
	}
	vb := mat.NewVecDense(s.m, b)
	var vx mat.VecDense
	if err := s.qr.SolveVecTo(&vx, false, vb); err != nil {
		return nil, fmt.Errorf("linsys: qrSystem.Solve: %w: %v", ErrIllConditioned, err)
	}
	x := make([]float64, s.n)
	for i := range x {
		x[i] = vx.AtVec(i)
	}
	s.rescaleSolution(x)
	return x, nil
}

func (s *qrSystem) Pinv() ([][]float64, error) {
	return nil, fmt.Errorf("linsys: qrSystem.Pinv: not implemented for the QR backend (SVD only)")
}
