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
	"math"
	"testing"
)

func TestFixedReferenceRejectsMissingData(t *testing.T) {
	w := &AnalysisWindow{Name: "w"}
	if err := FixedReference(w); !errors.Is(err, ErrRefData) {
		t.Fatalf("FixedReference() with no reference = %v, want ErrRefData", err)
	}

	w.LambdaRef = []float64{400, 401}
	w.Sref = []float64{1}
	if err := FixedReference(w); !errors.Is(err, ErrRefData) {
		t.Fatalf("FixedReference() with mismatched lengths = %v, want ErrRefData", err)
	}

	w.Sref = []float64{1, 1}
	if err := FixedReference(w); err != nil {
		t.Fatalf("FixedReference() with matching reference data = %v, want nil", err)
	}
}

func TestScanAverageReferenceRejectsMissingBrackets(t *testing.T) {
	w := &AnalysisWindow{Name: "w"}
	if err := ScanAverageReference(w, 0.5); !errors.Is(err, ErrRefData) {
		t.Fatalf("ScanAverageReference() with no brackets = %v, want ErrRefData", err)
	}

	w.LambdaRadAsRef1 = []float64{400, 401}
	w.SrefRadAsRef1 = []float64{10, 20}
	if err := ScanAverageReference(w, 0.5); !errors.Is(err, ErrRefData) {
		t.Fatalf("ScanAverageReference() with only one bracket = %v, want ErrRefData", err)
	}
}

func TestScanAverageReferenceRejectsWeightOutsideUnitInterval(t *testing.T) {
	w := &AnalysisWindow{
		LambdaRadAsRef1: []float64{400, 401},
		SrefRadAsRef1:   []float64{10, 20},
		SrefRadAsRef2:   []float64{30, 40},
	}
	if err := ScanAverageReference(w, 1.5); err == nil {
		t.Fatalf("expected an error for a weight outside [0,1]")
	}
	if err := ScanAverageReference(w, -0.1); err == nil {
		t.Fatalf("expected an error for a negative weight")
	}
}

func TestScanAverageReferenceCombinesBracketsByWeight(t *testing.T) {
	w := &AnalysisWindow{
		LambdaRadAsRef1: []float64{400, 401, 402},
		SrefRadAsRef1:   []float64{10, 20, 30},
		SrefRadAsRef2:   []float64{30, 40, 50},
	}

	if err := ScanAverageReference(w, 0.5); err != nil {
		t.Fatalf("ScanAverageReference() error: %v", err)
	}
	want := []float64{20, 30, 40}
	for i, v := range w.Sref {
		if math.Abs(v-want[i]) > 1e-9 {
			t.Fatalf("Sref[%d] = %v, want %v (plain average at weight 0.5)", i, v, want[i])
		}
	}
	for i, v := range w.LambdaRef {
		if v != w.LambdaRadAsRef1[i] {
			t.Fatalf("LambdaRef[%d] = %v, want %v", i, v, w.LambdaRadAsRef1[i])
		}
	}

	w2 := &AnalysisWindow{
		LambdaRadAsRef1: []float64{400},
		SrefRadAsRef1:   []float64{10},
		SrefRadAsRef2:   []float64{30},
	}
	if err := ScanAverageReference(w2, 0.25); err != nil {
		t.Fatalf("ScanAverageReference() error: %v", err)
	}
	if math.Abs(w2.Sref[0]-15) > 1e-9 {
		t.Fatalf("Sref[0] = %v, want 15 (0.75*10 + 0.25*30)", w2.Sref[0])
	}
}
