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
	"os"
	"path/filepath"
	"testing"

	"github.com/bira-iasb/qdoas-engine/qdoas"
)

func writeFixtureMatrix(t *testing.T, dir, name string, rows [][2]float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture %s: %v", name, err)
	}
	defer f.Close()
	for _, row := range rows {
		if _, err := fmt.Fprintf(f, "%g %g\n", row[0], row[1]); err != nil {
			t.Fatalf("writing fixture %s: %v", name, err)
		}
	}
	return path
}

func TestBuildWiresOneWindowEndToEnd(t *testing.T) {
	dir := t.TempDir()
	ref := writeFixtureMatrix(t, dir, "ref.xs", [][2]float64{
		{400, 1000}, {400.5, 1000}, {401, 1000}, {401.5, 1000}, {402, 1000},
	})
	no2 := writeFixtureMatrix(t, dir, "no2.xs", [][2]float64{
		{400, 0.1}, {400.5, 0.3}, {401, 0.8}, {401.5, 1.0}, {402, 0.5},
	})

	p := &Project{
		WorkspaceDir: dir,
		Windows: []WindowConfig{
			{
				Name:      "UV1",
				Method:    "OpticalDensity",
				RefFile:   filepath.Base(ref),
				LambdaMin: 400,
				LambdaMax: 402,
				Cross:     []CrossConfig{{Symbol: filepath.Base(no2), FitConc: true, InitConc: 1e16}},
			},
		},
	}

	ws, ac, err := Build(p)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if ws.Len() != 1 {
		t.Fatalf("workspace has %d symbols, want 1", ws.Len())
	}
	if len(ac.Windows) != 1 {
		t.Fatalf("context has %d windows, want 1", len(ac.Windows))
	}

	w := ac.Windows[0]
	if w.Name != "UV1" || w.Method != qdoas.OpticalDensityFit {
		t.Fatalf("window built incorrectly: %+v", w)
	}
	if len(w.TabCross) != 1 || !w.TabCross[0].FitConc || w.TabCross[0].IndSvdA != 0 {
		t.Fatalf("TabCross built incorrectly: %+v", w.TabCross)
	}
	if w.FitProps == nil || w.FitProps.DimC != 1 {
		t.Fatalf("FitProps built incorrectly: %+v", w.FitProps)
	}

	if err := ac.Compile(); err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
}

func TestBuildRejectsWindowWithNoFittedSymbol(t *testing.T) {
	dir := t.TempDir()
	ref := writeFixtureMatrix(t, dir, "ref.xs", [][2]float64{{400, 1}, {401, 1}})
	no2 := writeFixtureMatrix(t, dir, "no2.xs", [][2]float64{{400, 0.1}, {401, 0.2}})

	p := &Project{
		WorkspaceDir: dir,
		Windows: []WindowConfig{{
			Name: "UV1", Method: "OpticalDensity", RefFile: filepath.Base(ref),
			LambdaMin: 400, LambdaMax: 401,
			Cross: []CrossConfig{{Symbol: filepath.Base(no2), FitConc: false}},
		}},
	}
	if _, _, err := Build(p); err == nil {
		t.Fatalf("Build() accepted a window with no FitConc symbol")
	}
}

func TestBuildRejectsMissingRange(t *testing.T) {
	dir := t.TempDir()
	ref := writeFixtureMatrix(t, dir, "ref.xs", [][2]float64{{400, 1}, {401, 1}})
	no2 := writeFixtureMatrix(t, dir, "no2.xs", [][2]float64{{400, 0.1}, {401, 0.2}})

	p := &Project{
		WorkspaceDir: dir,
		Windows: []WindowConfig{{
			Name: "UV1", Method: "OpticalDensity", RefFile: filepath.Base(ref),
			LambdaMin: 900, LambdaMax: 910,
			Cross: []CrossConfig{{Symbol: filepath.Base(no2), FitConc: true}},
		}},
	}
	if _, _, err := Build(p); err == nil {
		t.Fatalf("Build() accepted a LambdaMin/LambdaMax outside the reference's coverage")
	}
}
