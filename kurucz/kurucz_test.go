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

package kurucz

import (
	"context"
	"math"
	"testing"

	"github.com/bira-iasb/qdoas-engine/numeric"
	"github.com/bira-iasb/qdoas-engine/slit"
)

const testTolerance = 1.e-6

func absDifferent(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance
}

func syntheticSolarAtlas() *numeric.Matrix {
	n := 2000
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = 400 + 0.01*float64(i)
		y[i] = 1.0
		for _, line := range []float64{405, 410, 415, 420} {
			d := x[i] - line
			y[i] -= 0.3 * math.Exp(-d*d/0.02)
		}
	}
	return &numeric.Matrix{Columns: [][]float64{x, y}}
}

func mustGaussian(t *testing.T, fwhm float64) slit.Slit {
	t.Helper()
	g, err := slit.NewGaussian(fwhm)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestCalibrateRecoversKnownShift(t *testing.T) {
	solar := syntheticSolarAtlas()
	s := mustGaussian(t, 0.3)

	trueShift := 0.05
	n := 300
	grid := make([]float64, n)
	for i := range grid {
		grid[i] = 403 + 0.1*float64(i)
	}
	shiftedGrid := make([]float64, n)
	for i, x := range grid {
		shiftedGrid[i] = x - trueShift
	}
	measured, err := slit.Convolve(solar.Columns[0], solar.Columns[1], shiftedGrid, s)
	if err != nil {
		t.Fatal(err)
	}

	wc := NewWindowCalibration(3, 1, 1)
	if err := wc.Calibrate(context.Background(), grid, measured, solar, s); err != nil {
		t.Fatalf("Calibrate: %v, state=%v", err, wc.State)
	}
	if wc.State != HaveCalibration {
		t.Fatalf("state = %v, want HaveCalibration", wc.State)
	}
	for i, r := range wc.Results {
		if absDifferent(r.Shift, trueShift, 5e-3) {
			t.Errorf("sub-window %d shift = %v, want ~%v", i, r.Shift, trueShift)
		}
	}
}

func TestCalibrateFailsOnMismatchedLengths(t *testing.T) {
	wc := NewWindowCalibration(2, 1, 1)
	solar := syntheticSolarAtlas()
	s := mustGaussian(t, 0.3)
	err := wc.Calibrate(context.Background(), make([]float64, 10), make([]float64, 5), solar, s)
	if err == nil {
		t.Fatal("Calibrate with mismatched lengths succeeded, want error")
	}
}

func TestLambdaAtRequiresCalibration(t *testing.T) {
	wc := NewWindowCalibration(2, 1, 1)
	if _, err := wc.LambdaAt(10, 400); err != ErrNotCalibrated {
		t.Fatalf("err = %v, want ErrNotCalibrated", err)
	}
}

func TestCalibrateRespectsCancellation(t *testing.T) {
	solar := syntheticSolarAtlas()
	s := mustGaussian(t, 0.3)
	n := 300
	grid := make([]float64, n)
	for i := range grid {
		grid[i] = 403 + 0.1*float64(i)
	}
	measured, err := slit.Convolve(solar.Columns[0], solar.Columns[1], grid, s)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	wc := NewWindowCalibration(3, 1, 1)
	err = wc.Calibrate(ctx, grid, measured, solar, s)
	if err == nil {
		t.Fatal("Calibrate with a cancelled context succeeded, want error")
	}
	if wc.State != Failed {
		t.Fatalf("state = %v, want Failed", wc.State)
	}
}
