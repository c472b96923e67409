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

// Package linsys solves the dense m-by-n linear least-squares systems
// that make up the linear part of the DOAS fit, behind a single API with
// three interchangeable decomposition backends.
package linsys

import (
	"errors"
	"fmt"
	"math"
)

// ErrAlloc signals a dimension or allocation failure at construction time.
var ErrAlloc = errors.New("linsys: allocation error")

// ErrIllConditioned signals a singular or numerically degenerate system
// at decomposition or solve time.
var ErrIllConditioned = errors.New("linsys: ill-conditioned system")

// ErrNormaliseZero signals that a column of the design matrix is
// identically zero and cannot be L2-normalised.
var ErrNormaliseZero = errors.New("linsys: column norm is zero")

// Mode selects the decomposition backend.
type Mode int

const (
	// SVD is the in-house Jacobi singular value decomposition backend.
	SVD Mode = iota
	// QR is the gonum/mat QR-decomposition backend.
	QR
	// QRTemplate mirrors the original's second, "template-matrix
	// library" QR backend: an ordinary dense matrix type whose
	// covariance comes from a Cholesky inversion of A'A and whose solve
	// uses its QR factorisation, rather than a specialised decomposition
	// struct.
	QRTemplate
)

// System is the uniform linear-least-squares API shared by all three
// backends: allocate, set columns and optional weights, decompose
// (producing sigma-squared and the covariance matrix), solve.
type System interface {
	// SetColumn stores values (length M()) as column j (0-based) of the
	// design matrix.
	SetColumn(j int, values []float64)
	// SetWeight divides row i of the design matrix by sigma[i]. A nil
	// sigma is a no-op, matching LINEAR_set_weight's NULL guard.
	SetWeight(sigma []float64) error
	// Decompose L2-normalises each column (recording the norms),
	// decomposes the normalised matrix, and returns sigma-squared and
	// the covariance matrix rescaled back to the original column units.
	Decompose() (sigmaSquare []float64, covar [][]float64, err error)
	// Solve solves the decomposed system for the given right-hand side
	// and returns x divided by the stored column norms.
	Solve(b []float64) ([]float64, error)
	// Pinv returns the Moore-Penrose pseudoinverse. Only the SVD
	// backend implements it; other backends return an error.
	Pinv() ([][]float64, error)
	// M and N are the row and column counts of the design matrix.
	M() int
	N() int
}

// NewSystem allocates an m-by-n System using the requested backend.
func NewSystem(m, n int, mode Mode) (System, error) {
	if m <= 0 || n <= 0 {
		return nil, fmt.Errorf("linsys: NewSystem(%d,%d): %w", m, n, ErrAlloc)
	}
	base := newDenseBase(m, n)
	switch mode {
	case SVD:
		return &svdSystem{denseBase: base}, nil
	case QR:
		return &qrSystem{denseBase: base}, nil
	case QRTemplate:
		return &qrTemplateSystem{denseBase: base}, nil
	default:
		return nil, fmt.Errorf("linsys: NewSystem: unknown mode %d", mode)
	}
}

// denseBase holds the m-by-n design matrix in row-major slices and the
// per-column L2 norms recorded during Decompose, shared by all backends.
type denseBase struct {
	m, n  int
	a     [][]float64 // a[i][j], i in [0,m), j in [0,n)
	norms []float64
}

func newDenseBase(m, n int) denseBase {
	rows := make([][]float64, m)
	for i := range rows {
		rows[i] = make([]float64, n)
	}
	return denseBase{m: m, n: n, a: rows, norms: make([]float64, n)}
}

func (b *denseBase) M() int { return b.m }
func (b *denseBase) N() int { return b.n }

func (b *denseBase) SetColumn(j int, values []float64) {
	for i := 0; i < b.m; i++ {
		b.a[i][j] = values[i]
	}
}

func (b *denseBase) SetWeight(sigma []float64) error {
	if sigma == nil {
		return nil
	}
	if len(sigma) != b.m {
		return fmt.Errorf("linsys: SetWeight: len(sigma)=%d != m=%d", len(sigma), b.m)
	}
	for i := 0; i < b.m; i++ {
		if sigma[i] == 0 {
			return fmt.Errorf("linsys: SetWeight: %w: sigma[%d] is zero", ErrIllConditioned, i)
		}
		for j := 0; j < b.n; j++ {
			b.a[i][j] /= sigma[i]
		}
	}
	return nil
}

// normaliseColumns L2-normalises each column of b.a in place, recording
// the norms, and reports an error if any column is identically zero.
func (b *denseBase) normaliseColumns() error {
	for j := 0; j < b.n; j++ {
		var sumSq float64
		for i := 0; i < b.m; i++ {
			sumSq += b.a[i][j] * b.a[i][j]
		}
		if sumSq == 0 {
			return fmt.Errorf("linsys: Decompose: column %d: %w", j, ErrNormaliseZero)
		}
		norm := math.Sqrt(sumSq)
		b.norms[j] = norm
		for i := 0; i < b.m; i++ {
			b.a[i][j] /= norm
		}
	}
	return nil
}

// rescaleSolution divides x by the stored column norms, matching
// LINEAR_solve's final loop.
func (b *denseBase) rescaleSolution(x []float64) {
	for j := range x {
		x[j] /= b.norms[j]
	}
}

func (b *denseBase) rescaleCovarAndSigma(sigmaSquare []float64, covar [][]float64) {
	for j := 0; j < b.n; j++ {
		if sigmaSquare != nil {
			sigmaSquare[j] /= b.norms[j] * b.norms[j]
		}
		if covar != nil {
			for i := 0; i < b.n; i++ {
				covar[i][j] /= b.norms[i] * b.norms[j]
			}
		}
	}
}
