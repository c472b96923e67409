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

package filter

import (
	"math"
	"testing"
)

const testTolerance = 1.e-6

func absDifferent(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance
}

func sumWeights(k *Kernel) float64 {
	var s float64
	for _, w := range k.Weights {
		s += w
	}
	return s
}

func TestGaussianKernelNormalised(t *testing.T) {
	k, err := NewGaussian(3.0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(sumWeights(k), 1, testTolerance) {
		t.Errorf("sum(weights) = %v, want 1", sumWeights(k))
	}
}

func TestBoxcarPreservesConstant(t *testing.T) {
	k, err := NewBoxcar(5)
	if err != nil {
		t.Fatal(err)
	}
	y := make([]float64, 50)
	for i := range y {
		y[i] = 7.0
	}
	out := k.Apply(y, 1)
	for i, v := range out {
		if absDifferent(v, 7.0, 1e-9) {
			t.Errorf("Apply constant signal at %d = %v, want 7", i, v)
		}
	}
}

func TestBinomialNormalised(t *testing.T) {
	k, err := NewBinomial(8)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(sumWeights(k), 1, testTolerance) {
		t.Errorf("sum(weights) = %v, want 1", sumWeights(k))
	}
}

func TestKaiserNormalised(t *testing.T) {
	k, err := NewKaiser(KaiserOptions{Cutoff: 0.1, PassBand: 0.05, Tolerance: 1e-3, NumTaps: 65})
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(sumWeights(k), 1, 1e-6) {
		t.Errorf("sum(weights) = %v, want 1", sumWeights(k))
	}
}

func TestSavitzkyGolayPreservesLinearTrend(t *testing.T) {
	k, err := NewSavitzkyGolay(5, 2)
	if err != nil {
		t.Fatal(err)
	}
	y := make([]float64, 40)
	for i := range y {
		y[i] = 2.0 + 0.5*float64(i)
	}
	out := k.Apply(y, 1)
	for i := 6; i < len(y)-6; i++ {
		if absDifferent(out[i], y[i], 1e-6) {
			t.Errorf("Apply linear trend at %d = %v, want %v", i, out[i], y[i])
		}
	}
}
