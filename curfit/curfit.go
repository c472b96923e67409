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

// Package curfit implements the Marquardt-Levenberg non-linear
// least-squares driver used to fit the DOAS equation: a linearisation
// of a caller-supplied model function, damped by a factor lambda that
// shifts the step between Gauss-Newton and gradient descent depending
// on whether the last trial improved chi square.
package curfit

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// maxIter bounds the number of Marquardt-Levenberg trial steps taken
// per Fit call, matching CURFIT_MAX_ITER.
const maxIter = 100

var (
	// ErrAlloc reports a buffer-sizing problem detected before the
	// iteration loop starts.
	ErrAlloc = errors.New("curfit: allocation error")
	// ErrDivisionByZero is returned when a numeric-derivative step
	// delta is zero for a parameter being fit.
	ErrDivisionByZero = errors.New("curfit: division by zero")
	// ErrSqrtArg is returned when a scaled diagonal term of the
	// curvature matrix is non-positive, signalling degeneracy among
	// the fitted non-linear parameters.
	ErrSqrtArg = errors.New("curfit: sqrt of a non-positive argument")
	// ErrMatrixInv is returned when CurfitMatinv-equivalent inversion
	// fails to find a non-zero pivot.
	ErrMatrixInv = errors.New("curfit: matrix inversion failed")
	// ErrConvergence is returned once the iteration cap is exceeded
	// without chi square settling.
	ErrConvergence = fmt.Errorf("curfit: failed to converge within %d iterations", maxIter)
)

// Weighting selects how each residual is weighted in chi square and in
// the accumulation of beta/alpha.
type Weighting int

const (
	// WeightNone applies unit weight to every pixel.
	WeightNone Weighting = iota
	// WeightInstrumental applies 1/sigma^2, falling back to 1 where
	// sigma is zero.
	WeightInstrumental
	// WeightStatistical applies 1/|Y|, falling back to 1 where Y is
	// zero. The original engine carries this path disabled and folds
	// it into WeightNone; it is kept distinct here per the analysis
	// window's own weighting_mode field.
	WeightStatistical
)

// Derivative declares, per non-linear parameter, whether the caller's
// Model can produce an analytic partial derivative or whether Fit must
// fall back to a forward numeric difference.
type Derivative int

const (
	// Forward requests a numeric forward difference
	// (f(A_j+delta_j)-f(A_j))/delta_j.
	Forward Derivative = iota
	// Analytic requests that Model itself return the derivative; Fit
	// calls Model.Deriv for that parameter instead of perturbing A.
	Analytic
)

// Model is the caller's forward model: given the current non-linear
// parameters A and linear parameters P, it returns the fitted vector
// Yfit (aligned with Y/sigmaY) or an error. Fit never mutates the
// slice it passes as a; callers must treat it as read-only within a
// single call.
type Model func(a, p []float64) (yfit []float64, err error)

// AnalyticDerivFunc computes the partial derivative of the model's
// Yfit with respect to non-linear parameter j directly, instead of by
// forward difference. Fit calls it only for parameters whose
// Params.Deriv entry is Analytic.
type AnalyticDerivFunc func(j int, a, p []float64, yfit []float64) ([]float64, error)

// Params describes the non-linear parameter vector handed to Fit.
type Params struct {
	A       []float64         // current values, updated in place on return
	Delta   []float64         // forward-difference steps, one per parameter
	Min     []float64         // lower clamp bound, parallel to A
	Max     []float64         // upper clamp bound, parallel to A; Min[j]==Max[j] means "unconstrained"
	Deriv   []Derivative      // derivative capability per parameter
	Names   []string          // parameter names, used only in error messages
	Analytic AnalyticDerivFunc // required when any Deriv[j] is Analytic
}

// Result carries the outputs of a converged or failed Fit call.
type Result struct {
	P       []float64   // fitted linear parameters
	A       []float64   // fitted non-linear parameters (same slice as Params.A)
	SigmaA  []float64   // standard deviation of each non-linear parameter
	Yfit    []float64   // fitted vector at the final A
	Lambda  float64     // damping factor after the call, for reuse on the next record
	Chisqr  float64     // reduced chi square
	NIter   int         // number of Marquardt trial steps taken
}

// errorFor names the offending parameter in a Sqrt/DivisionByZero
// error, mirroring CurfitError's "include the parameter name in the
// message" behaviour.
func errorFor(names []string, j int, sentinel error) error {
	if j >= 0 && j < len(names) && names[j] != "" {
		return fmt.Errorf("curfit: %w: parameter %q", sentinel, names[j])
	}
	return fmt.Errorf("curfit: %w: parameter index %d", sentinel, j)
}

// Fit runs the Marquardt-Levenberg loop to convergence or failure.
// niter is the iteration count already accumulated by the caller
// across a multi-call sequence sharing the same lambda (only the very
// first call, niter==0, evaluates model once before building
// derivatives; later calls reuse the Yfit left in yfitInOut by the
// previous call). weight selects the chi-square/beta/alpha weighting;
// sigmaY may be nil, which forces WeightNone regardless of the
// requested mode (mirroring "no errors to weight the fit").
func Fit(ctx context.Context, model Model, weight Weighting, nFree int, y, sigmaY []float64, p []float64, params Params, lambda float64, niter int, yfitInOut []float64) (*Result, error) {
	nY := len(y)
	nA := len(params.A)
	if nA == 0 {
		return nil, fmt.Errorf("%w: no non-linear parameters", ErrAlloc)
	}
	if len(params.Delta) != nA || len(params.Min) != nA || len(params.Max) != nA || len(params.Deriv) != nA {
		return nil, fmt.Errorf("%w: Params slices must all have length %d", ErrAlloc, nA)
	}

	mode := weight
	if sigmaY == nil {
		mode = WeightNone
	}

	w := make([]float64, nY)
	switch mode {
	case WeightNone:
		for i := range w {
			w[i] = 1
		}
	case WeightInstrumental:
		for i := range w {
			if sigmaY[i] != 0 {
				w[i] = 1 / (sigmaY[i] * sigmaY[i])
			} else {
				w[i] = 1
			}
		}
	case WeightStatistical:
		for i := range w {
			if y[i] != 0 {
				w[i] = 1 / math.Abs(y[i])
			} else {
				w[i] = 1
			}
		}
	}

	b := append([]float64(nil), params.A...)
	beta := make([]float64, nA)
	alpha := make([][]float64, nA)
	array := make([][]float64, nA)
	deriv := make([][]float64, nA)
	for j := 0; j < nA; j++ {
		alpha[j] = make([]float64, nA)
		array[j] = make([]float64, nA)
		deriv[j] = make([]float64, nY)
	}

	yfit := yfitInOut
	if niter == 0 {
		var err error
		yfit, err = model(params.A, p)
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := derivFunc(ctx, model, y, sigmaY, nY, yfit, p, params, deriv); err != nil {
		return nil, err
	}

	for i := 0; i < nY; i++ {
		for j := 0; j < nA; j++ {
			beta[j] += w[i] * (y[i] - yfit[i]) * deriv[j][i]
			for k := 0; k <= j; k++ {
				alpha[j][k] += w[i] * deriv[j][i] * deriv[k][i]
			}
		}
	}
	for j := 0; j < nA; j++ {
		for k := 0; k <= j; k++ {
			alpha[k][j] = alpha[j][k]
		}
	}

	chisq1 := fchisq(mode, nFree, y, yfit, sigmaY)

	var chisqr, oldChisq float64
	for {
		oldChisq = chisqr

		for j := 0; j < nA; j++ {
			for k := 0; k < nA; k++ {
				if alpha[j][j]*alpha[k][k] <= 0 {
					bad := j
					if alpha[j][j] > 0 {
						bad = k
					}
					return nil, errorFor(params.Names, bad, ErrSqrtArg)
				}
				array[j][k] = alpha[j][k] / math.Sqrt(alpha[j][j]*alpha[k][k])
			}
			array[j][j] = 1 + lambda
		}

		det, err := matinv(array, nA)
		if err != nil || det == 0 {
			return nil, ErrMatrixInv
		}

		for j := 0; j < nA; j++ {
			b[j] = params.A[j]
			for k := 0; k < nA; k++ {
				if alpha[j][j]*alpha[k][k] <= 0 {
					bad := j
					if alpha[j][j] > 0 {
						bad = k
					}
					return nil, errorFor(params.Names, bad, ErrSqrtArg)
				}
				b[j] += beta[k] * array[j][k] / math.Sqrt(alpha[j][j]*alpha[k][k])
			}
		}

		yfit, err = model(b, p)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chisqr = fchisq(mode, nFree, y, yfit, sigmaY)
		if chisq1 < chisqr {
			lambda *= 10
		}
		niter++
		if niter > maxIter {
			return nil, ErrConvergence
		}

		if !(chisq1 < chisqr && chisqr != oldChisq) {
			break
		}
	}

	outOfRange := false
	for j := 0; j < nA; j++ {
		if params.Min[j] != params.Max[j] {
			if b[j] > params.Max[j] {
				b[j] = params.Max[j]
				outOfRange = true
			}
			if b[j] < params.Min[j] {
				b[j] = params.Min[j]
				outOfRange = true
			}
		}
	}
	if outOfRange {
		var err error
		yfit, err = model(b, p)
		if err != nil {
			return nil, err
		}
		chisqr = fchisq(mode, nFree, y, yfit, sigmaY)
	}

	sigmaA := make([]float64, nA)
	for j := 0; j < nA; j++ {
		params.A[j] = b[j]
		if alpha[j][j] == 0 || array[j][j]/alpha[j][j]*chisqr <= 0 {
			return nil, errorFor(params.Names, j, ErrSqrtArg)
		}
		sigmaA[j] = math.Sqrt(array[j][j] / alpha[j][j] * chisqr)
	}
	lambda *= 0.1

	return &Result{
		P:      p,
		A:      params.A,
		SigmaA: sigmaA,
		Yfit:   yfit,
		Lambda: lambda,
		Chisqr: chisqr,
		NIter:  niter,
	}, nil
}

// fchisq evaluates the reduced chi square at the current Yfit,
// matching Fchisq's three weighting branches.
func fchisq(mode Weighting, nFree int, y, yfit, sigmaY []float64) float64 {
	if nFree <= 0 {
		return 0
	}
	var chisq float64
	switch mode {
	case WeightInstrumental:
		for k := range y {
			weight := 1.0
			if sigmaY[k] != 0 {
				weight = 1 / (sigmaY[k] * sigmaY[k])
			}
			chisq += weight * (y[k] - yfit[k]) * (y[k] - yfit[k])
		}
	case WeightStatistical:
		for k := range y {
			weight := 1.0
			if y[k] != 0 {
				weight = 1 / math.Abs(y[k])
			}
			chisq += weight * (y[k] - yfit[k]) * (y[k] - yfit[k])
		}
	default:
		for k := range y {
			d := y[k] - yfit[k]
			ad := math.Abs(d)
			if ad <= 1e16 && ad >= 1e-16 {
				chisq += d * d
			}
		}
	}
	return chisq / float64(nFree)
}

// derivFunc fills deriv[j] for every fitted non-linear parameter,
// calling the caller's analytic derivative where Params.Deriv[j] is
// Analytic and a numeric forward difference otherwise.
func derivFunc(ctx context.Context, model Model, y, sigmaY []float64, nY int, yfit []float64, p []float64, params Params, deriv [][]float64) error {
	nA := len(params.A)
	for j := 0; j < nA; j++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if params.Deriv[j] == Analytic && params.Analytic != nil {
			d, err := params.Analytic(j, params.A, p, yfit)
			if err != nil {
				return err
			}
			deriv[j] = d
			continue
		}
		if err := numDeriv(model, p, params, j, yfit, deriv[j]); err != nil {
			return err
		}
	}
	return nil
}

// numDeriv evaluates a single parameter's partial derivative by
// forward difference, matching CurfitNumDeriv.
func numDeriv(model Model, p []float64, params Params, j int, yfit []float64, out []float64) error {
	delta := params.Delta[j]
	if delta == 0 {
		return errorFor(params.Names, j, ErrDivisionByZero)
	}
	saved := params.A[j]
	params.A[j] = saved + delta
	yfit2, err := model(params.A, p)
	params.A[j] = saved
	if err != nil {
		return err
	}
	for i := range out {
		out[i] = (yfit2[i] - yfit[i]) / delta
	}
	return nil
}

// matinv inverts the square symmetric matrix in place via complete
// pivoting Gauss-Jordan elimination, returning its determinant. This
// is a direct port of CurfitMatinv: at each stage the largest
// remaining element is swapped onto the diagonal to improve numerical
// precision, then eliminated, and the row/column swaps are undone at
// the end in reverse order.
func matinv(array [][]float64, n int) (float64, error) {
	ik := make([]int, n)
	jk := make([]int, n)
	det := 1.0

	for k := 0; k < n; k++ {
		var amax float64
		for {
			amax = 0
			for i := k; i < n; i++ {
				for j := k; j < n; j++ {
					if math.Abs(amax) <= math.Abs(array[i][j]) {
						amax = array[i][j]
						ik[k] = i
						jk[k] = j
					}
				}
			}
			if amax == 0 {
				return 0, ErrMatrixInv
			}

			i := ik[k]
			if i > k {
				for j := 0; j < n; j++ {
					save := array[k][j]
					array[k][j] = array[i][j]
					array[i][j] = -save
				}
			}
			j := jk[k]
			if j > k && i >= k {
				for i2 := 0; i2 < n; i2++ {
					save := array[i2][k]
					array[i2][k] = array[i2][j]
					array[i2][j] = -save
				}
			}
			if ik[k] >= k && jk[k] >= k {
				break
			}
		}

		for i := 0; i < n; i++ {
			if i != k {
				array[i][k] /= -amax
			}
		}
		for i := 0; i < n; i++ {
			if i != k {
				for j := 0; j < n; j++ {
					if j != k {
						array[i][j] += array[i][k] * array[k][j]
					}
				}
			}
		}
		for j := 0; j < n; j++ {
			if j != k {
				array[k][j] /= amax
			}
		}
		array[k][k] = 1 / amax
		det *= amax
	}

	for l := 0; l < n; l++ {
		k := n - l - 1
		j := ik[k]
		if j > k {
			for i := 0; i < n; i++ {
				save := array[i][k]
				array[i][k] = -array[i][j]
				array[i][j] = save
			}
		}
		i := jk[k]
		if i > k {
			for j2 := 0; j2 < n; j2++ {
				save := array[k][j2]
				array[k][j2] = -array[i][j2]
				array[i][j2] = save
			}
		}
	}

	return det, nil
}
