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
	"fmt"
)

// runKurucz recalibrates w's wavelength scale against the configured
// solar atlas, choosing the reference or the record's own spectrum as
// the fitted input depending on Flags.UseKurucz (spec.md §4.9). It
// leaves w.LambdaK set to the per-pixel calibrated scale that
// PrepareCrossSections and ForwardModel should use afterwards.
func (ac *AnalysisContext) runKurucz(ctx context.Context, w *AnalysisWindow, record *Record) error {
	if w.Kurucz == nil {
		return fmt.Errorf("qdoas: runKurucz: %s: no calibration configured", w.Name)
	}
	if w.SolarAtlas == nil {
		return fmt.Errorf("qdoas: runKurucz: %s: no solar atlas configured", w.Name)
	}

	var grid, measured []float64
	switch w.Flags.UseKurucz {
	case KuruczRef:
		grid, measured = w.LambdaRef, w.Sref
	case KuruczSpec, KuruczAll:
		grid, measured = record.Lambda, record.Spectrum
	default:
		return nil
	}

	if err := w.Kurucz.Calibrate(ctx, grid, measured, w.SolarAtlas, w.BaseSlit); err != nil {
		return err
	}

	lambdaK := make([]float64, len(grid))
	for i, aPriori := range grid {
		v, err := w.Kurucz.LambdaAt(float64(i), aPriori)
		if err != nil {
			return err
		}
		lambdaK[i] = v
	}
	w.LambdaK = lambdaK
	return nil
}
