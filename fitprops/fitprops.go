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

// Package fitprops holds FitProperties, the per-analysis-window
// container binding the pixel range, the linear-system handle, and the
// dimension counters that drive one DOAS fit.
package fitprops

import (
	"fmt"

	"github.com/bira-iasb/qdoas-engine/linsys"
	"github.com/bira-iasb/qdoas-engine/specrange"
)

// FitProperties is the compiled linear-system description of one
// analysis window: rows (fitted pixels), columns (linear unknowns), and
// the predictor columns used in intensity-fit mode.
type FitProperties struct {
	LFenetre  [][2]float64   // [Z][2] sub-window bounds in nm
	SpecRange *specrange.Range

	System linsys.System
	Covar  [][]float64 // DimC x DimC
	SigmaSqr []float64 // DimC

	A [][]float64 // DimL x DimC, optical-density mode design matrix rows
	P [][]float64 // DimL x DimP, intensity-fit mode predictor rows

	DimL, DimC, DimP int // rows, linear unknowns, predictor columns
	Z                int // number of LFenetre sub-intervals
	NF, NP           int // non-linear parameter count, predefined count
	NFit             int // iteration count of the most recent fit
}

// Alloc allocates the A/P/Covar/SigmaSqr buffers for the given
// dimensions. Both dimL and dimC must be non-zero; dimP may be zero if
// the window does not use intensity-fit mode.
func Alloc(dimL, dimC, dimP int) (*FitProperties, error) {
	if dimC == 0 || dimL == 0 {
		return nil, fmt.Errorf("fitprops: Alloc: DimC or DimL is zero")
	}
	fp := &FitProperties{DimL: dimL, DimC: dimC, DimP: dimP}
	fp.A = make([][]float64, dimL)
	for i := range fp.A {
		fp.A[i] = make([]float64, dimC)
	}
	fp.Covar = make([][]float64, dimC)
	for i := range fp.Covar {
		fp.Covar[i] = make([]float64, dimC)
	}
	fp.SigmaSqr = make([]float64, dimC)
	if dimP > 0 {
		fp.P = make([][]float64, dimL)
		for i := range fp.P {
			fp.P[i] = make([]float64, dimP)
		}
	}
	return fp, nil
}

// Free drops all buffers owned by fp, matching FIT_PROPERTIES_free's
// release-everything contract (a no-op under Go's GC beyond nilling
// references so a stale fp cannot be reused by mistake).
func (fp *FitProperties) Free() {
	fp.System = nil
	fp.A = nil
	fp.P = nil
	fp.Covar = nil
	fp.SigmaSqr = nil
	fp.SpecRange = nil
}
