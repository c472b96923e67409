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
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bira-iasb/qdoas-engine/curfit"
	"github.com/bira-iasb/qdoas-engine/internal/doaslog"
)

// SpikePolicy declares, per spec.md §9's open question, what happens
// when spike detection flags a pixel that is also part of the
// window's specrange: leave it in the fit as it is, or resize the
// system to drop it and fit again. The original leaves this implicit;
// here it is always an explicit parameter.
type SpikePolicy int

const (
	// SpikeLeaveZeroRow keeps every flagged pixel in the fit; its
	// contribution to the next outer iteration is left untouched. This
	// is the default: cheaper, and avoids rebuilding the linear system
	// mid-iteration.
	SpikeLeaveZeroRow SpikePolicy = iota
	// SpikeResize removes flagged pixels from the fit pixel set and
	// reruns the forward model/Curfit once more on the reduced set.
	SpikeResize
)

const maxOuterIter = 60

// buildFitPixels narrows the window's specrange pixels to the ones
// usable for this record: present in the range and not rejected by
// the row's per-pixel quality flags (spec.md §6, omiRejPixelsQF).
func buildFitPixels(w *AnalysisWindow, record *Record) []int {
	all := w.FitProps.SpecRange.Pixels()
	out := make([]int, 0, len(all))
	for _, p := range all {
		if p >= 0 && p < len(record.Quality.RejectedPixels) && record.Quality.RejectedPixels[p] {
			continue
		}
		if w.OmiRejPixelsQF != nil && p < len(w.OmiRejPixelsQF) && w.OmiRejPixelsQF[p] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// gridFor returns the window's best available wavelength scale:
// post-Kurucz if present, otherwise the plain reference scale.
func gridFor(w *AnalysisWindow) []float64 {
	if len(w.LambdaK) > 0 {
		return w.LambdaK
	}
	return w.LambdaRef
}

// runCurfit drives fm to convergence, threading lambda/niter/yfit
// across repeated curfit.Fit calls the way kurucz.fitSubWindow does,
// since a single Fit call only performs one Marquardt trial step.
func runCurfit(ctx context.Context, fm *ForwardModel, weight curfit.Weighting, y, sigmaY []float64, a0, delta, minA, maxA []float64, deriv []curfit.Derivative, names []string) (*curfit.Result, error) {
	nA := len(a0)
	params := curfit.Params{
		A:     append([]float64(nil), a0...),
		Delta: append([]float64(nil), delta...),
		Min:   append([]float64(nil), minA...),
		Max:   append([]float64(nil), maxA...),
		Deriv: append([]curfit.Derivative(nil), deriv...),
		Names: names,
	}
	for _, d := range deriv {
		if d == curfit.Analytic {
			params.Analytic = fm.AnalyticDeriv
			break
		}
	}

	model := fm.Model()
	lambda := 0.001
	niter := 0
	nFree := len(y) - nA
	if nFree <= 0 {
		nFree = 1
	}

	var result *curfit.Result
	var err error
	for i := 0; i < maxOuterIter; i++ {
		var yfit []float64
		if result != nil {
			yfit = result.Yfit
		}
		result, err = curfit.Fit(ctx, model, weight, nFree, y, sigmaY, nil, params, lambda, niter, yfit)
		if err != nil {
			return nil, err
		}
		lambda = result.Lambda
		niter = result.NIter
		if result.Chisqr < 1e-16 {
			break
		}
	}
	return result, nil
}

// AnalyseSpectrum runs every configured window, in the compiled
// FitFromPrevious order, against one record (spec.md §4.10). It
// recovers locally from per-window numerical failures (spec.md §7):
// the window is marked unusable, its output fields are filled with
// sentinel values, and the next window still runs. A cooperative
// cancellation, by contrast, aborts the whole call immediately once
// the in-flight forward-model evaluation finishes (spec.md §5).
func (ac *AnalysisContext) AnalyseSpectrum(ctx context.Context, record *Record, weight curfit.Weighting, policy SpikePolicy, spikeThreshold float64) error {
	ac.Errors.Reset()
	if ac.order == nil && len(ac.Windows) > 0 {
		return fmt.Errorf("qdoas: AnalyseSpectrum: Compile was never called")
	}
	if !record.Quality.UseRow {
		for _, w := range ac.Windows {
			w.Usable = false
		}
		return nil
	}

	for _, idx := range ac.order {
		w := ac.Windows[idx]
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := ac.analyseWindow(ctx, w, record, weight, policy, spikeThreshold); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			ac.Errors.Push(w.Name, SeverityFatal, err)
			doaslog.Window(w.Name).WithError(err).Warn("window unusable for this record")
			fillWindow(w)
			continue
		}
	}
	return nil
}

func fillWindow(w *AnalysisWindow) {
	w.Usable = false
	w.RMS = FillDouble
	w.ChiSquare = FillDouble
	w.NIter = FillInt
	for _, cr := range w.TabCrossResults {
		cr.reset()
		cr.SlntCol, cr.SlntErr = FillDouble, FillDouble
		cr.VrtCol, cr.VrtErr = FillDouble, FillDouble
		cr.Shift, cr.SigmaShift = FillDouble, FillDouble
		cr.Stretch, cr.SigmaStretch = FillDouble, FillDouble
		cr.Param, cr.SigmaParam = FillDouble, FillDouble
	}
}

func (ac *AnalysisContext) analyseWindow(ctx context.Context, w *AnalysisWindow, record *Record, weight curfit.Weighting, policy SpikePolicy, spikeThreshold float64) error {
	for _, cr := range w.TabCrossResults {
		cr.reset()
	}
	w.Spikes = make([]bool, record.NDET())

	if w.Flags.UseKurucz != KuruczNone {
		if err := ac.runKurucz(ctx, w, record); err != nil {
			return err
		}
	}

	grid := gridFor(w)
	if err := w.PrepareCrossSections(grid); err != nil {
		return err
	}

	pixels := buildFitPixels(w, record)
	if len(pixels) == 0 {
		return fmt.Errorf("qdoas: analyseWindow: %s: %w: no usable pixels", w.Name, ErrRefData)
	}

	result, fm, err := ac.fitOnce(ctx, w, record, grid, pixels, weight)
	if err != nil {
		return err
	}

	if policy == SpikeResize {
		flagged := detectSpikes(w, pixels, fm, result, spikeThreshold)
		if len(flagged) > 0 {
			kept := make([]int, 0, len(pixels))
			flaggedSet := make(map[int]bool, len(flagged))
			for _, p := range flagged {
				flaggedSet[p] = true
			}
			for _, p := range pixels {
				if !flaggedSet[p] {
					kept = append(kept, p)
				}
			}
			if len(kept) > 0 {
				pixels = kept
				result, fm, err = ac.fitOnce(ctx, w, record, grid, pixels, weight)
				if err != nil {
					return err
				}
			}
		}
	} else {
		detectSpikes(w, pixels, fm, result, spikeThreshold)
	}

	ac.storeResults(w, fm, result, pixels)
	w.Usable = true
	w.NIter = result.NIter
	w.ChiSquare = result.Chisqr
	w.RMS = math.Sqrt(result.Chisqr)
	return nil
}

func (ac *AnalysisContext) fitOnce(ctx context.Context, w *AnalysisWindow, record *Record, grid []float64, pixels []int, weight curfit.Weighting) (*curfit.Result, *ForwardModel, error) {
	fitGrid := make([]float64, len(pixels))
	pixelIndex := make([]float64, len(pixels))
	spec := make([]float64, len(pixels))
	var sigma []float64
	if record.SigmaSpec != nil {
		sigma = make([]float64, len(pixels))
	}
	for k, p := range pixels {
		fitGrid[k] = grid[p]
		pixelIndex[k] = float64(p)
		spec[k] = record.Spectrum[p]
		if sigma != nil {
			sigma[k] = record.SigmaSpec[p]
		}
	}

	fm, err := NewForwardModel(w, fitGrid, pixelIndex, spec)
	if err != nil {
		return nil, nil, err
	}

	nA := fm.NumParams()
	a0 := make([]float64, nA)
	delta := make([]float64, nA)
	minA := make([]float64, nA)
	maxA := make([]float64, nA)
	deriv := make([]curfit.Derivative, nA)
	for j := range delta {
		delta[j] = 1e-4
	}
	if fm.Layout.shift >= 0 {
		a0[fm.Layout.shift] = w.Preshift
	}
	for k, i := range fm.Layout.concCols {
		cr := w.TabCross[i]
		j := fm.Layout.concStart + k
		a0[j] = cr.InitConc
		if cr.DeltaConc != 0 {
			delta[j] = cr.DeltaConc
		}
		minA[j], maxA[j] = cr.MinConc, cr.MaxConc
		deriv[j] = curfit.Analytic
	}
	names := paramNames(fm.Layout)

	result, err := runCurfit(ctx, fm, weight, fm.Target, sigma, a0, delta, minA, maxA, deriv, names)
	if err != nil {
		return nil, nil, err
	}
	return result, fm, nil
}

func paramNames(l paramLayout) []string {
	n := l.offsetStart + l.offsetN
	names := make([]string, n)
	if l.shift >= 0 {
		names[l.shift] = "shift"
	}
	if l.stretch >= 0 {
		names[l.stretch] = "stretch"
	}
	if l.stretch2 >= 0 {
		names[l.stretch2] = "stretch2"
	}
	for k, i := range l.concCols {
		names[l.concStart+k] = fmt.Sprintf("conc%d", i)
	}
	for k := 0; k < l.offsetN; k++ {
		names[l.offsetStart+k] = fmt.Sprintf("offset%d", k)
	}
	return names
}

// detectSpikes marks w.Spikes for every fit pixel whose residual
// magnitude exceeds spikeThreshold*RMS, returning the flagged
// detector pixel indices.
func detectSpikes(w *AnalysisWindow, pixels []int, fm *ForwardModel, result *curfit.Result, spikeThreshold float64) []int {
	if spikeThreshold <= 0 {
		return nil
	}
	resid := make([]float64, len(pixels))
	for k := range pixels {
		resid[k] = fm.Target[k] - result.Yfit[k]
	}
	threshold := spikeThreshold * rms(resid)
	var flagged []int
	for k, p := range pixels {
		if math.Abs(resid[k]) > threshold {
			w.Spikes[p] = true
			flagged = append(flagged, p)
		}
	}
	return flagged
}

func (ac *AnalysisContext) storeResults(w *AnalysisWindow, fm *ForwardModel, result *curfit.Result, pixels []int) {
	cols, values := fm.Concentrations()
	for j, i := range cols {
		cr := w.TabCross[i]
		res := w.TabCrossResults[i]
		res.SlntFact = cr.Fact
		if cr.Fact != 0 {
			res.SlntCol = values[j] / cr.Fact
		} else {
			res.SlntCol = values[j]
		}
		switch w.Method {
		case OpticalDensityFit:
			if j < len(fm.SigmaSquare) && cr.Fact != 0 {
				res.SlntErr = math.Sqrt(fm.SigmaSquare[j]*result.Chisqr) / cr.Fact
			}
		case IntensityFit:
			// The concentration is a non-linear A-vector parameter in
			// this mode, so its standard error comes straight from
			// curfit's Marquardt fit rather than from a linear solve.
			slot := fm.Layout.concStart + j
			if slot < len(result.SigmaA) {
				if cr.Fact != 0 {
					res.SlntErr = result.SigmaA[slot] / cr.Fact
				} else {
					res.SlntErr = result.SigmaA[slot]
				}
			}
		}
		if w.Flags.AmfFlag && cr.AMFTable != nil {
			amf := cr.AMFTable.At(w.Lambda0)
			res.Amf = amf
			if amf != 0 {
				res.VrtCol = res.SlntCol / amf
				res.VrtErr = res.SlntErr / amf
			}
		}
	}

	if fm.Layout.shift >= 0 {
		for _, res := range w.TabCrossResults {
			res.Shift = result.A[fm.Layout.shift]
			res.SigmaShift = result.SigmaA[fm.Layout.shift]
		}
	}
	if fm.Layout.stretch >= 0 {
		for _, res := range w.TabCrossResults {
			res.Stretch = result.A[fm.Layout.stretch]
			res.SigmaStretch = result.SigmaA[fm.Layout.stretch]
		}
	}
	if fm.Layout.stretch2 >= 0 {
		for _, res := range w.TabCrossResults {
			res.Stretch2 = result.A[fm.Layout.stretch2]
			res.SigmaStretch2 = result.SigmaA[fm.Layout.stretch2]
		}
	}
}
