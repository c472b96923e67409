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

// Package kurucz implements the wavelength-calibration subsystem: given
// a measured spectrum and a high-resolution solar atlas, it partitions
// the detector into sub-windows, fits a pixel shift in each one against
// the atlas, then fits a shift polynomial across the sub-window centres
// to produce a per-pixel wavelength correction for the whole row. The
// slit width is held at the caller's slit; no slit parameter is fitted
// and no FWHM curve is produced.
package kurucz

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bira-iasb/qdoas-engine/curfit"
	"github.com/bira-iasb/qdoas-engine/linsys"
	"github.com/bira-iasb/qdoas-engine/numeric"
	"github.com/bira-iasb/qdoas-engine/slit"
)

// State is the calibration state machine: an analysis window cannot
// run with a calibration that has never completed, and a failure is
// fatal for the row until the operator retries.
type State int

const (
	Unrun State = iota
	Running
	HaveCalibration
	Failed
)

func (s State) String() string {
	switch s {
	case Unrun:
		return "Unrun"
	case Running:
		return "Running"
	case HaveCalibration:
		return "HaveCalibration"
	case Failed:
		return "Failed"
	default:
		return "Invalid"
	}
}

// ErrNotCalibrated is returned by operations that need a completed
// calibration when the state machine has none.
var ErrNotCalibrated = errors.New("kurucz: no calibration available")

// SubWindowResult is one sub-window's fit outcome.
type SubWindowResult struct {
	CenterPixel float64
	Shift       float64
	ShiftSigma  float64
	ChiSquare   float64
	RMS         float64
	NIter       int
}

// WindowCalibration holds the per-analysis-window calibration state for
// one cross-track row: the Nb_Win sub-window results, the fitted
// shift polynomial, and the state machine latch.
type WindowCalibration struct {
	NbWin       int
	ShiftDegree int
	ContinuumDegree int // degree of the per-sub-window polynomial continuum fit against the solar atlas

	State   State
	Err     error
	Results []SubWindowResult

	ShiftPoly []float64 // coefficients of the shift(pixel) polynomial, degree ShiftDegree
}

// NewWindowCalibration allocates an unrun calibration for nbWin
// sub-windows with the given shift polynomial degree.
func NewWindowCalibration(nbWin, shiftDegree, continuumDegree int) *WindowCalibration {
	return &WindowCalibration{NbWin: nbWin, ShiftDegree: shiftDegree, ContinuumDegree: continuumDegree, State: Unrun}
}

// Calibrate runs the full sub-window partition, per-sub-window Curfit,
// and cross-sub-window polynomial fit. grid and measured are the
// row's pixel-index-ordered wavelength estimate and measured
// intensity (same length); solar is the high-resolution atlas
// (Columns[0]=wavelength, Columns[1]=intensity); baseSlit is the
// current slit estimate used to convolve the atlas onto the working
// grid at each trial shift.
func (wc *WindowCalibration) Calibrate(ctx context.Context, grid, measured []float64, solar *numeric.Matrix, baseSlit slit.Slit) error {
	if len(grid) != len(measured) {
		return fmt.Errorf("kurucz: Calibrate: len(grid)=%d != len(measured)=%d", len(grid), len(measured))
	}
	if wc.NbWin <= 0 {
		return fmt.Errorf("kurucz: Calibrate: Nb_Win must be positive")
	}

	wc.State = Running
	wc.Results = make([]SubWindowResult, wc.NbWin)

	n := len(grid)
	winSize := n / wc.NbWin
	if winSize < wc.ContinuumDegree+3 {
		wc.State = Failed
		wc.Err = fmt.Errorf("kurucz: Calibrate: sub-window too small for continuum degree %d", wc.ContinuumDegree)
		return wc.Err
	}

	for w := 0; w < wc.NbWin; w++ {
		start := w * winSize
		end := start + winSize
		if w == wc.NbWin-1 {
			end = n
		}

		result, err := fitSubWindow(ctx, grid[start:end], measured[start:end], solar, baseSlit, wc.ContinuumDegree)
		if err != nil {
			wc.State = Failed
			wc.Err = fmt.Errorf("kurucz: Calibrate: sub-window %d: %w", w, err)
			return wc.Err
		}
		result.CenterPixel = float64(start+end-1) / 2
		wc.Results[w] = *result

		if err := ctx.Err(); err != nil {
			wc.State = Failed
			wc.Err = err
			return err
		}
	}

	centers := make([]float64, wc.NbWin)
	shifts := make([]float64, wc.NbWin)
	sigmas := make([]float64, wc.NbWin)
	for i, r := range wc.Results {
		centers[i] = r.CenterPixel
		shifts[i] = r.Shift
		sigmas[i] = math.Max(r.ShiftSigma, 1e-12)
	}

	poly, err := linsys.FitPoly(centers, sigmas, shifts, wc.ShiftDegree)
	if err != nil {
		wc.State = Failed
		wc.Err = fmt.Errorf("kurucz: Calibrate: shift polynomial fit: %w", err)
		return wc.Err
	}
	wc.ShiftPoly = poly
	wc.State = HaveCalibration
	wc.Err = nil
	return nil
}

// fitSubWindow fits a single pixel shift against the solar atlas over
// one sub-window, with a continuum-degree polynomial scaling and
// offsetting the convolved atlas linearly at each trial shift.
func fitSubWindow(ctx context.Context, grid, measured []float64, solar *numeric.Matrix, baseSlit slit.Slit, continuumDegree int) (*SubWindowResult, error) {
	model := curfit.Model(func(a, _ []float64) ([]float64, error) {
		shift := a[0]
		shiftedGrid := make([]float64, len(grid))
		for i, x := range grid {
			shiftedGrid[i] = x - shift
		}
		convSolar, err := slit.Convolve(solar.Columns[0], solar.Columns[1], shiftedGrid, baseSlit)
		if err != nil {
			return nil, err
		}
		return fitContinuum(grid, measured, convSolar, continuumDegree)
	})

	params := curfit.Params{
		A:     []float64{0},
		Delta: []float64{1e-4},
		Min:   []float64{0},
		Max:   []float64{0},
		Deriv: []curfit.Derivative{curfit.Forward},
		Names: []string{"shift"},
	}

	lambda := 0.001
	niter := 0
	nFree := len(grid) - (continuumDegree + 3) // continuum scale + (degree+1) poly terms + the fitted shift
	if nFree <= 0 {
		nFree = 1
	}

	var result *curfit.Result
	var err error
	const maxOuter = 40
	for i := 0; i < maxOuter; i++ {
		var yfit []float64
		if result != nil {
			yfit = result.Yfit
		}
		result, err = curfit.Fit(ctx, model, curfit.WeightNone, nFree, measured, nil, nil, params, lambda, niter, yfit)
		if err != nil {
			return nil, err
		}
		lambda = result.Lambda
		niter = result.NIter
		if result.Chisqr < 1e-14 {
			break
		}
	}

	return &SubWindowResult{
		Shift:      params.A[0],
		ShiftSigma: result.SigmaA[0],
		ChiSquare:  result.Chisqr,
		RMS:        math.Sqrt(result.Chisqr),
		NIter:      result.NIter,
	}, nil
}

// fitContinuum solves, by ordinary linear least squares, for the
// polynomial-in-pixel-index scaling and offset that best matches
// convSolar to measured, and returns the resulting fitted vector.
func fitContinuum(grid, measured, convSolar []float64, degree int) ([]float64, error) {
	n := len(grid)
	numCols := 1 + degree + 1 // the solar column plus a degree-th order polynomial
	sys, err := linsys.NewSystem(n, numCols, linsys.QR)
	if err != nil {
		return nil, err
	}
	sys.SetColumn(0, convSolar)
	col := make([]float64, n)
	for i := range col {
		col[i] = 1
	}
	for k := 0; k <= degree; k++ {
		sys.SetColumn(1+k, col)
		if k < degree {
			for i := range col {
				col[i] *= float64(i)
			}
		}
	}
	if _, _, err := sys.Decompose(); err != nil {
		return nil, err
	}
	x, err := sys.Solve(measured)
	if err != nil {
		return nil, err
	}
	yfit := make([]float64, n)
	for i := range yfit {
		yfit[i] = x[0] * convSolar[i]
		p := 1.0
		for k := 0; k <= degree; k++ {
			yfit[i] += x[1+k] * p
			p *= float64(i)
		}
	}
	return yfit, nil
}

// LambdaAt evaluates the fitted calibration at pixel index i, adding
// the shift polynomial to the row's a-priori wavelength estimate.
func (wc *WindowCalibration) LambdaAt(pixel float64, aPriori float64) (float64, error) {
	if wc.State != HaveCalibration {
		return 0, ErrNotCalibrated
	}
	var shift float64
	p := 1.0
	for _, c := range wc.ShiftPoly {
		shift += c * p
		p *= pixel
	}
	return aPriori + shift, nil
}
