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
	"errors"
	"fmt"
	"math"

	"github.com/bira-iasb/qdoas-engine/curfit"
	"github.com/bira-iasb/qdoas-engine/linsys"
	"github.com/bira-iasb/qdoas-engine/numeric"
)

// ErrRefData is returned when the reference spectrum is unavailable
// or mismatched in length with the window's grid, matching the
// original's RefData error (spec.md §7): analysis for the window is
// skipped, not fatal for the record.
var ErrRefData = errors.New("qdoas: reference data unavailable or mismatched")

// paramLayout records where each named non-linear parameter lives in
// the A vector handed to curfit.Fit, compiled once per forward model
// build from the window's fit flags. In intensity-fit mode
// (spec.md §4.7 point 4) every fitted symbol's concentration joins
// shift/stretch/offset as a non-linear A-vector slot instead of a
// column in the linear system, since the forward model is
// exponential in the concentration there; concCols[k] is the
// TabCross index backing slot concStart+k.
type paramLayout struct {
	shift, stretch, stretch2 int // -1 if not fit
	concStart                int
	concCols                 []int
	offsetStart, offsetN     int // offsetN == 0 if no offset terms
}

// ForwardModel evaluates the DOAS residual for one analysis window on
// one record, over exactly the pixels fitprops.FitProperties enumerates
// (spec.md §4.7). It implements ANALYSE_Function: resample the
// reference under a trial shift/stretch, build the intensity-offset
// polynomial, solve the linear part (cross-section concentrations) by
// ordinary least squares against the fixed measured side, and return
// the reconstructed fit vector for curfit.Fit to compare against the
// measured side.
type ForwardModel struct {
	Window *AnalysisWindow

	Grid        []float64 // record wavelength, length DimL, the fitted pixels only
	PixelIndex  []float64 // detector pixel index per Grid entry, for shift/stretch centering
	PixCenter   float64

	Target []float64 // the fixed measured-side vector: log(spec) in OD mode, spec in intensity mode

	RefSpline *numeric.Spline // spline of LambdaRef/Sref, used to resample the reference under trial shift

	System      linsys.System // decomposed once against the static cross-section columns
	NumCols     int
	SigmaSquare []float64 // per-column sigma^2 from Decompose, scaled by the final chi square to get SlntErr
	odColumns   []int     // TabCross indices backing System's columns, in order

	Layout   paramLayout
	lastP    []float64 // optical-density concentrations solved at the most recent Model() evaluation
	lastConc []float64 // intensity-fit concentrations at the most recent Model() evaluation, parallel to Layout.concCols
}

// buildParamLayout assigns A-vector slots for the window's reference
// shift/stretch/stretch2, intensity-fit concentrations, and offset
// polynomial, per the window's fit flags and (in intensity mode) its
// TabCross table.
func buildParamLayout(w *AnalysisWindow) paramLayout {
	l := paramLayout{shift: -1, stretch: -1, stretch2: -1}
	n := 0
	if w.FitRefShift {
		l.shift = n
		n++
	}
	if w.FitRefStretch {
		l.stretch = n
		n++
	}
	if w.FitRefStretch2 {
		l.stretch2 = n
		n++
	}
	l.concStart = n
	if w.Method == IntensityFit {
		for i, cr := range w.TabCross {
			if cr.FitConc {
				l.concCols = append(l.concCols, i)
				n++
			}
		}
	}
	l.offsetStart = n
	if w.LinearOffsetMode != OffsetNone && w.OffsetDegree >= 0 {
		l.offsetN = w.OffsetDegree + 1
		n += l.offsetN
	}
	return l
}

// NewForwardModel compiles a ForwardModel for w against the given
// narrowed-to-fit-range pixel grid/pixel indices and the full-detector
// spectrum. spec must already be narrowed to the same pixels as grid,
// in the same order. Cross-section columns are taken from
// w.TabCross[i].Vector, which xsection.Pipeline must already have
// narrowed/interpolated onto grid.
func NewForwardModel(w *AnalysisWindow, grid, pixelIndex, spec []float64) (*ForwardModel, error) {
	n := len(grid)
	if n == 0 || len(pixelIndex) != n || len(spec) != n {
		return nil, fmt.Errorf("qdoas: NewForwardModel: %s: grid/pixelIndex/spec length mismatch", w.Name)
	}
	if len(w.LambdaRef) == 0 || len(w.Sref) != len(w.LambdaRef) {
		return nil, fmt.Errorf("qdoas: NewForwardModel: %s: %w", w.Name, ErrRefData)
	}
	refSpline, err := numeric.NewSpline(w.LambdaRef, w.Sref)
	if err != nil {
		return nil, fmt.Errorf("qdoas: NewForwardModel: %s: %w: %v", w.Name, ErrRefData, err)
	}

	target := make([]float64, n)
	switch w.Method {
	case OpticalDensityFit:
		for i, s := range spec {
			if s <= 0 {
				return nil, fmt.Errorf("qdoas: NewForwardModel: %s: non-positive spectrum value at pixel %d", w.Name, i)
			}
			target[i] = math.Log(s)
		}
	case IntensityFit:
		copy(target, spec)
	}

	// Only optical-density mode solves concentrations as columns of a
	// fixed linear system; intensity mode carries them as non-linear
	// A-vector slots instead (buildParamLayout), since the forward
	// model there is exponential in the concentration.
	var cols []int
	if w.Method == OpticalDensityFit {
		for i, cr := range w.TabCross {
			if cr.IndSvdA >= 0 {
				cols = append(cols, i)
			}
		}
	}
	numCols := len(cols)
	var pixCenter float64
	for _, p := range pixelIndex {
		pixCenter += p
	}
	if n > 0 {
		pixCenter /= float64(n)
	}

	fm := &ForwardModel{
		Window:     w,
		Grid:       grid,
		PixelIndex: pixelIndex,
		PixCenter:  pixCenter,
		Target:     target,
		RefSpline:  refSpline,
		NumCols:    numCols,
		Layout:     buildParamLayout(w),
	}

	if numCols > 0 {
		sys, err := linsys.NewSystem(n, numCols, linsys.QR)
		if err != nil {
			return nil, fmt.Errorf("qdoas: NewForwardModel: %s: %w", w.Name, err)
		}
		for k, i := range cols {
			sys.SetColumn(k, w.TabCross[i].Vector)
		}
		sigmaSquare, _, err := sys.Decompose()
		if err != nil {
			return nil, fmt.Errorf("qdoas: NewForwardModel: %s: %w", w.Name, err)
		}
		fm.System = sys
		fm.SigmaSquare = sigmaSquare
	}
	fm.odColumns = cols
	return fm, nil
}

// Model returns the curfit.Model closure evaluating this forward
// model at a trial non-linear parameter vector A. Each evaluation also
// records the concentrations it used, which Concentrations returns;
// curfit.Result.P does not carry them.
func (fm *ForwardModel) Model() curfit.Model {
	return func(a, _ []float64) ([]float64, error) {
		shift := fm.paramValue(a, fm.Layout.shift)
		stretch := fm.paramValue(a, fm.Layout.stretch)
		stretch2 := fm.paramValue(a, fm.Layout.stretch2)

		refShifted := make([]float64, len(fm.Grid))
		for k, lambda := range fm.Grid {
			d := fm.PixelIndex[k] - fm.PixCenter
			delta := shift + stretch*d + stretch2*d*d
			refShifted[k] = fm.RefSpline.Eval(lambda+delta, numeric.Cubic)
		}

		offset := fm.offsetAt(a)
		yfit := make([]float64, len(fm.Grid))

		switch fm.Window.Method {
		case OpticalDensityFit:
			b := make([]float64, len(fm.Grid))
			for k := range b {
				logRef := math.Log(math.Max(refShifted[k], 1e-300))
				b[k] = fm.Target[k] - logRef - offset[k]
			}
			var p []float64
			if fm.NumCols > 0 {
				var err error
				p, err = fm.System.Solve(b)
				if err != nil {
					return nil, err
				}
				for k := range yfit {
					var sum float64
					for j, i := range fm.odColumns {
						sum += p[j] * fm.Window.TabCross[i].Vector[k]
					}
					yfit[k] = math.Log(math.Max(refShifted[k], 1e-300)) + offset[k] + sum
				}
			} else {
				for k := range yfit {
					yfit[k] = math.Log(math.Max(refShifted[k], 1e-300)) + offset[k]
				}
			}
			fm.lastP = p

		case IntensityFit:
			// spec.md §4.7 point 4: spec - ref*exp(-sum c_k*sigma_k) -
			// offset, with the concentrations c_k non-linear.
			conc := fm.concValues(a)
			for k := range yfit {
				var sum float64
				for j, i := range fm.Layout.concCols {
					sum += conc[j] * fm.Window.TabCross[i].Vector[k]
				}
				yfit[k] = refShifted[k]*math.Exp(-sum) + offset[k]
			}
			fm.lastConc = conc
		}
		return yfit, nil
	}
}

// concValues extracts the intensity-fit concentration slots from a,
// in TabCross order (Layout.concCols).
func (fm *ForwardModel) concValues(a []float64) []float64 {
	n := len(fm.Layout.concCols)
	if n == 0 {
		return nil
	}
	return append([]float64(nil), a[fm.Layout.concStart:fm.Layout.concStart+n]...)
}

// AnalyticDeriv is the curfit.AnalyticDerivFunc for an intensity-fit
// concentration parameter (spec.md §4.8 point 2: concentrations in
// intensity mode get an analytic derivative, every other non-linear
// parameter is numeric). d(ref*exp(-sum c*sigma))/dc_k = -sigma_k *
// (yfit - offset), since the offset term does not depend on c.
func (fm *ForwardModel) AnalyticDeriv(j int, a, _ []float64, yfit []float64) ([]float64, error) {
	slot := j - fm.Layout.concStart
	if slot < 0 || slot >= len(fm.Layout.concCols) {
		return nil, fmt.Errorf("qdoas: AnalyticDeriv: parameter index %d is not a concentration slot", j)
	}
	i := fm.Layout.concCols[slot]
	sigma := fm.Window.TabCross[i].Vector
	offset := fm.offsetAt(a)
	out := make([]float64, len(yfit))
	for k := range out {
		out[k] = -sigma[k] * (yfit[k] - offset[k])
	}
	return out, nil
}

func (fm *ForwardModel) paramValue(a []float64, idx int) float64 {
	if idx < 0 {
		return 0
	}
	return a[idx]
}

func (fm *ForwardModel) offsetAt(a []float64) []float64 {
	out := make([]float64, len(fm.Grid))
	if fm.Layout.offsetN == 0 {
		return out
	}
	coeffs := a[fm.Layout.offsetStart : fm.Layout.offsetStart+fm.Layout.offsetN]
	for k := range out {
		p := 1.0
		var v float64
		for _, c := range coeffs {
			v += c * p
			p *= fm.PixelIndex[k]
		}
		out[k] = v
	}
	return out
}

// NumParams returns the length of the non-linear parameter vector A
// this forward model expects.
func (fm *ForwardModel) NumParams() int {
	n := fm.Layout.offsetStart + fm.Layout.offsetN
	return n
}

// Concentrations returns the fitted symbols' concentrations at the
// most recent Model() evaluation, alongside the TabCross indices they
// belong to: the optical-density mode's linearly solved coefficients,
// or intensity mode's non-linear A-vector values.
func (fm *ForwardModel) Concentrations() (indices []int, values []float64) {
	if fm.Window.Method == IntensityFit {
		return fm.Layout.concCols, fm.lastConc
	}
	return fm.odColumns, fm.lastP
}
