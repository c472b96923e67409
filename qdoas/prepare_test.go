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
	"math"
	"testing"

	"github.com/bira-iasb/qdoas-engine/numeric"
)

func TestPrepareCrossSectionsInterpolatesAndNormalises(t *testing.T) {
	grid := []float64{400, 401, 402, 403}
	xs := &numeric.Matrix{Columns: [][]float64{
		{400, 401, 402, 403},
		{1, 2, 3, 4},
	}}
	w := &AnalysisWindow{
		Name: "test",
		TabCross: []*CrossReference{
			{IndSvdA: 0, IndOrthog: -2, IndSubtract: -1, XS: xs},
		},
	}

	if err := w.PrepareCrossSections(grid); err != nil {
		t.Fatalf("PrepareCrossSections() error: %v", err)
	}

	cr := w.TabCross[0]
	if len(cr.Vector) != len(grid) {
		t.Fatalf("Vector len = %d, want %d", len(cr.Vector), len(grid))
	}
	if cr.Fact == 0 {
		t.Fatalf("Fact was left at zero after normalisation")
	}

	// Undo the normalisation and check the interpolated-but-unnormalised
	// shape matches the source column exactly, since grid equals the
	// cross section's own knots.
	for i, v := range cr.Vector {
		got := v * cr.Fact
		want := xs.Columns[1][i]
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("Vector[%d]*Fact = %v, want %v", i, got, want)
		}
	}
}

func TestPrepareCrossSectionsMissingHiResFails(t *testing.T) {
	w := &AnalysisWindow{
		Name: "test",
		TabCross: []*CrossReference{
			{IndSvdA: 0, IndOrthog: -2, IndSubtract: -1},
		},
	}
	if err := w.PrepareCrossSections([]float64{400, 401}); err == nil {
		t.Fatalf("expected an error for a symbol with no high-resolution cross section")
	}
}
