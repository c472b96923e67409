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

package numeric

import (
	"math"
	"strings"
	"testing"
)

const testTolerance = 1.e-8

func absDifferent(a, b, tolerance float64) bool {
	if math.Abs(a-b) > tolerance {
		return true
	}
	return false
}

func TestSplineReproducesKnots(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5}
	y := []float64{0, 0.8, 0.9, 0.1, -0.8, -1}
	s, err := NewSpline(x, y)
	if err != nil {
		t.Fatal(err)
	}
	for i, xi := range x {
		got := s.Eval(xi, Cubic)
		if absDifferent(got, y[i], 1e-12) {
			t.Errorf("Eval(%v) = %v, want %v", xi, got, y[i])
		}
	}
}

func TestNormaliseRoundTrip(t *testing.T) {
	v := []float64{3, 4, 0, -5}
	orig := append([]float64(nil), v...)
	n := Normalise(v)
	for i := range v {
		v[i] *= n
	}
	for i := range v {
		if absDifferent(v[i], orig[i], 1e-13*math.Max(1, math.Abs(orig[i]))) {
			t.Errorf("round trip failed at %d: got %v want %v", i, v[i], orig[i])
		}
	}
}

func TestLinInterp(t *testing.T) {
	x := []float64{0, 1, 2}
	y := []float64{0, 10, 20}
	got, err := LinInterp(x, y, 1.5)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(got, 15, 1e-12) {
		t.Errorf("LinInterp(1.5) = %v, want 15", got)
	}
}

func TestLoadMatrixSkipsComments(t *testing.T) {
	data := "* header comment\n; another\n# yet another\n1.0 2.0\n2.0 4.0\n3.0 6.0\n"
	m, err := LoadMatrix(strings.NewReader(data), LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if m.NumRows() != 3 {
		t.Fatalf("NumRows() = %d, want 3", m.NumRows())
	}
	if m.Columns[1][2] != 6.0 {
		t.Errorf("Columns[1][2] = %v, want 6.0", m.Columns[1][2])
	}
}

func TestLoadMatrixRestrictAndReverse(t *testing.T) {
	data := "1.0 10\n2.0 20\n3.0 30\n4.0 40\n"
	m, err := LoadMatrix(strings.NewReader(data), LoadOptions{Restrict: true, XMin: 2, XMax: 3, Reverse: true})
	if err != nil {
		t.Fatal(err)
	}
	if m.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2", m.NumRows())
	}
	if m.Columns[0][0] != 3 || m.Columns[0][1] != 2 {
		t.Errorf("rows not reversed: %v", m.Columns[0])
	}
}
