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

package config

import (
	"fmt"

	"github.com/bira-iasb/qdoas-engine/fitprops"
	"github.com/bira-iasb/qdoas-engine/kurucz"
	"github.com/bira-iasb/qdoas-engine/numeric"
	"github.com/bira-iasb/qdoas-engine/qdoas"
	"github.com/bira-iasb/qdoas-engine/slit"
	"github.com/bira-iasb/qdoas-engine/specrange"
	"github.com/bira-iasb/qdoas-engine/workspace"
)

// defaultKuruczContinuumDegree is the polynomial degree used to scale
// and offset the solar atlas against the measured spectrum in each
// Kurucz sub-window; it is not exposed in the project file because the
// spec's testable properties never need a value other than this one.
const defaultKuruczContinuumDegree = 1

// Build loads every cross-section file a project names, wiring it into
// a shared workspace.Table, and compiles one qdoas.AnalysisWindow per
// configured window with its CrossReference/CrossResults tables and
// fit-range bookkeeping. It does not call AnalysisContext.Compile;
// callers do that once after Build returns, so a caller that wants to
// add or remove windows programmatically still can before the
// dependency graph is fixed.
func Build(p *Project) (*workspace.Table, *qdoas.AnalysisContext, error) {
	ws := workspace.New()
	ac := qdoas.NewAnalysisContext(ws)

	var atlas *numeric.Matrix
	if p.SolarAtlas != "" {
		var err error
		atlas, err = numeric.LoadMatrixFile(p.SolarAtlas, numeric.LoadOptions{WithDeriv2: true})
		if err != nil {
			return nil, nil, fmt.Errorf("config: Build: loading solar atlas: %w", err)
		}
	}

	for _, wc := range p.Windows {
		w, err := buildWindow(ws, wc, atlas, p.WorkspaceDir)
		if err != nil {
			return nil, nil, fmt.Errorf("config: Build: window %q: %w", wc.Name, err)
		}
		ac.AddWindow(w)
	}
	return ws, ac, nil
}

func buildWindow(ws *workspace.Table, wc WindowConfig, atlas *numeric.Matrix, workspaceDir string) (*qdoas.AnalysisWindow, error) {
	refMatrix, err := numeric.LoadMatrixFile(resolveCrossPath(workspaceDir, wc.RefFile), numeric.LoadOptions{})
	if err != nil {
		return nil, fmt.Errorf("loading reference %q: %w", wc.RefFile, err)
	}
	if len(refMatrix.Columns) < 2 {
		return nil, fmt.Errorf("reference %q: expected at least 2 columns", wc.RefFile)
	}
	lambdaRef, sref := refMatrix.Columns[0], refMatrix.Columns[1]

	fitRange, err := buildFitRange(lambdaRef, wc.LambdaMin, wc.LambdaMax)
	if err != nil {
		return nil, err
	}

	tabCross := make([]*qdoas.CrossReference, 0, len(wc.Cross))
	tabResults := make([]*qdoas.CrossResults, 0, len(wc.Cross))
	dimC := 0
	for _, cc := range wc.Cross {
		cr, err := buildCrossReference(ws, cc, workspaceDir)
		if err != nil {
			return nil, fmt.Errorf("symbol %q: %w", cc.Symbol, err)
		}
		if cc.FitConc {
			cr.IndSvdA = dimC
			dimC++
		} else {
			cr.IndSvdA = -1
		}
		tabCross = append(tabCross, cr)
		tabResults = append(tabResults, &qdoas.CrossResults{
			StoreSlntCol: cc.Display, StoreSlntErr: cc.Display,
		})
	}
	if dimC == 0 {
		return nil, fmt.Errorf("no symbol has FitConc set")
	}

	fp, err := fitprops.Alloc(fitRange.Length(), dimC, 0)
	if err != nil {
		return nil, fmt.Errorf("allocating fit properties: %w", err)
	}
	fp.SpecRange = fitRange

	w := &qdoas.AnalysisWindow{
		Name:            wc.Name,
		Method:          methodOf(wc.Method),
		LambdaRef:       lambdaRef,
		Sref:            sref,
		TabCross:        tabCross,
		TabCrossResults: tabResults,
		FitProps:        fp,
		Lambda0:         wc.Lambda0,
		FitRefShift:     wc.FitRefShift,
		FitRefStretch:   wc.FitRefStretch,
		FitRefStretch2:  wc.FitRefStretch2,
		OffsetDegree:    wc.OffsetDegree,
		DependsOn:       wc.DependsOn,
	}

	w.Flags.AmfFlag = wc.AmfFlag

	useK := useKuruczOf(wc.UseKurucz)
	w.Flags.UseKurucz = useK
	if useK != qdoas.KuruczNone {
		if wc.KuruczNbWin <= 0 {
			return nil, fmt.Errorf("UseKurucz is set but KuruczNbWin is not positive")
		}
		if atlas == nil {
			return nil, fmt.Errorf("UseKurucz is set but the project has no SolarAtlas")
		}
		fwhm := wc.SlitFWHM
		if fwhm == 0 {
			fwhm = 1.0
		}
		baseSlit, err := slit.NewGaussian(fwhm)
		if err != nil {
			return nil, fmt.Errorf("building default Kurucz slit: %w", err)
		}
		w.BaseSlit = baseSlit
		w.SolarAtlas = atlas
		w.Kurucz = kurucz.NewWindowCalibration(wc.KuruczNbWin, wc.KuruczShiftDeg, defaultKuruczContinuumDegree)
	}

	if wc.OffsetDegree > 0 {
		w.LinearOffsetMode = qdoas.OffsetOverI
	}
	return w, nil
}

// buildFitRange selects the contiguous run of reference pixels falling
// within [lambdaMin,lambdaMax]. lambdaRef is assumed monotonic
// ascending, matching every reference file this engine loads, so a
// single interval always covers the selection.
func buildFitRange(lambdaRef []float64, lambdaMin, lambdaMax float64) (*specrange.Range, error) {
	start, end := -1, -1
	for i, lambda := range lambdaRef {
		if lambda >= lambdaMin && lambda <= lambdaMax {
			if start < 0 {
				start = i
			}
			end = i
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("no reference pixels fall within [%g,%g]", lambdaMin, lambdaMax)
	}
	r := specrange.New()
	r.Append(start, end)
	return r, nil
}

func buildCrossReference(ws *workspace.Table, cc CrossConfig, workspaceDir string) (*qdoas.CrossReference, error) {
	idx, err := ws.Index(cc.Symbol)
	if err != nil {
		path := resolveCrossPath(workspaceDir, cc.Symbol)
		xs, loadErr := numeric.LoadMatrixFile(path, numeric.LoadOptions{WithDeriv2: true})
		if loadErr != nil {
			return nil, fmt.Errorf("loading cross section: %w", loadErr)
		}
		idx, err = ws.Add(workspace.Symbol{Type: workspace.Molecule, SymbolName: cc.Symbol, CrossFileName: path, XS: xs})
		if err != nil {
			return nil, err
		}
	}
	sym, err := ws.Get(idx)
	if err != nil {
		return nil, err
	}

	cr := &qdoas.CrossReference{
		Comp:        idx,
		IndOrthog:   -2,
		IndSubtract: -1,
		IndSvdP:     -1,
		FitConc:     cc.FitConc,
		InitConc:    cc.InitConc,
		DeltaConc:   cc.DeltaConc,
		MinConc:     cc.MinConc,
		MaxConc:     cc.MaxConc,
		Display:     cc.Display,
		XS:          sym.XS,
	}
	if cc.AMFFile != "" {
		amfMatrix, err := numeric.LoadMatrixFile(resolveCrossPath(workspaceDir, cc.AMFFile), numeric.LoadOptions{})
		if err != nil {
			return nil, fmt.Errorf("loading AMF table: %w", err)
		}
		table, err := qdoas.NewAMFTable(amfMatrix)
		if err != nil {
			return nil, fmt.Errorf("building AMF table: %w", err)
		}
		cr.AMFTable = table
	}
	switch cc.Action {
	case "Convolute":
		cr.CrossAction = qdoas.ActionConvolute
	case "ConvoluteI0":
		cr.CrossAction = qdoas.ActionConvoluteI0
	default:
		cr.CrossAction = qdoas.ActionInterpolate
	}
	return cr, nil
}
