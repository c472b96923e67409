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

// qrTemplateSystem mirrors the original's second QR backend, which held
// the design matrix in a generic template-matrix type (Eigen's
// Matrix<double,Dynamic,Dynamic>) rather than a specialised decomposition
// struct, and solved via that type's own QR facility. gonum/mat.Dense
// plays the same "ordinary dense matrix type" role here: the system is
// carried as a plain Dense throughout, and solved via its own QR.
type qrTemplateSystem struct {
	denseBase
	dense *mat.Dense
	qr    *mat.QR
}

func (s *qrTemplateSystem) Decompose() ([]float64, [][]float64, error) {
	if err := s.normaliseColumns(); err != nil {
		return nil, nil, err
	}
	flat := make([]float64, 0, s.m*s.n)
	for i := 0; i < s.m; i++ {
		flat = append(flat, s.a[i]...)
	}
	s.dense = mat.NewDense(s.m, s.n, flat)

	var ata mat.Dense
	ata.Mul(s.dense.T(), s.dense)

	symData := make([]float64, s.n*s.n)
	for i := 0; i < s.n; i++ {
		for j := 0; j < s.n; j++ {
			symData[i*s.n+j] = ata.At(i, j)
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(mat.NewSymDense(s.n, symData)); !ok {
		return nil, nil, fmt.Errorf("linsys: qrTemplateSystem.Decompose: %w: A'A is not positive definite", ErrIllConditioned)
	}
	var inv mat.Dense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, nil, fmt.Errorf("linsys: qrTemplateSystem.Decompose: %w", ErrIllConditioned)
	}

	var qr mat.QR
	qr.Factorize(s.dense)
	s.qr = &qr

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

func (s *qrTemplateSystem) Solve(b []float64) ([]float64, error) {
	if s.qr == nil {
		return nil, fmt.Errorf("linsys: qrTemplateSystem.Solve: %w: system not decomposed", ErrIllConditioned)
	}
	vb := mat.NewVecDense(s.m, b)
	var vx mat.VecDense
	if err := s.qr.SolveVecTo(&vx, false, vb); err != nil {
		return nil, fmt.Errorf("linsys: qrTemplateSystem.Solve: %w: %v", ErrIllConditioned, err)
	}
	x := make([]float64, s.n)
	for i := range x {
		x[i] = vx.AtVec(i)
	}
	s.rescaleSolution(x)
	return x, nil
}

func (s *qrTemplateSystem) Pinv() ([][]float64, error) {
	return nil, fmt.Errorf("linsys: qrTemplateSystem.Pinv: not implemented for the QRTemplate backend (SVD only)")
}
