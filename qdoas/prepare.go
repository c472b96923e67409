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
	"fmt"

	"github.com/bira-iasb/qdoas-engine/xsection"
)

// PrepareCrossSections runs the fixed eight-step xsection pipeline
// (spec.md §4.6) for every symbol in w.TabCross against grid, and
// copies the resulting working vectors, second derivatives, and
// normalisation factors back into the CrossReference entries that
// ForwardModel and AnalyseSpectrum read. It must be called whenever
// the window's wavelength calibration changes: at project load and
// again after every Kurucz recalibration (spec.md §4.10).
func (w *AnalysisWindow) PrepareCrossSections(grid []float64) error {
	symbols := make([]*xsection.Symbol, len(w.TabCross))
	for i, cr := range w.TabCross {
		sym := &xsection.Symbol{
			Name:          fmt.Sprintf("tabcross[%d]", i),
			HiRes:         cr.XS,
			I0Ref:         cr.I0Ref,
			Conc:          cr.I0Conc,
			Slit:          cr.Slit,
			Lambda0Pukite: w.Lambda0Pukite,
			SubtractFrom:  cr.IndSubtract,
			IndOrthog:     cr.IndOrthog,
		}
		switch cr.CrossAction {
		case ActionConvolute:
			sym.Source = xsection.SourceConvolute
		case ActionConvoluteI0:
			sym.Source = xsection.SourceConvoluteI0
		default:
			sym.Source = xsection.SourceInterpolate
		}
		if cr.PukiteRole == PukiteRoleComputed {
			sym.PukiteI, sym.PukiteJ = cr.IndexPukite1, cr.IndexPukite2
			switch cr.PukiteComponent {
			case PukiteComponentP1:
				sym.PukiteComponent = xsection.PukiteP1
			case PukiteComponentP2:
				sym.PukiteComponent = xsection.PukiteP2
			}
		}
		if cr.CrossCorrection == CorrectionMolecularRing {
			sym.MolecularRing = true
			sym.RamanKernel = cr.RamanKernel
		}
		symbols[i] = sym
	}

	pipeline := xsection.NewPipeline(grid, w.Lambda0, symbols)
	if err := pipeline.Run(); err != nil {
		return fmt.Errorf("qdoas: PrepareCrossSections: %s: %w", w.Name, err)
	}

	for i, cr := range w.TabCross {
		col := pipeline.Columns[i]
		cr.Vector = col.Vector
		cr.Deriv2 = col.Deriv2
		cr.VectorBackup = col.VectorBackup
		cr.Deriv2Backup = col.Deriv2Backup
		cr.Fact = col.Fact
	}
	return nil
}
