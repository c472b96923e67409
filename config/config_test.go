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
	"os"
	"path/filepath"
	"testing"

	"github.com/bira-iasb/qdoas-engine/qdoas"
)

func validProject() *Project {
	return &Project{
		WorkspaceDir: "/data",
		Windows: []WindowConfig{
			{
				Name:   "UV1",
				Method: "OpticalDensity",
				Cross:  []CrossConfig{{Symbol: "no2", FitConc: true}},
			},
			{
				Name:      "UV2",
				Method:    "Intensity",
				Cross:     []CrossConfig{{Symbol: "o3", FitConc: true}},
				DependsOn: []string{"UV1"},
			},
		},
	}
}

func TestValidateAcceptsAWellFormedProject(t *testing.T) {
	if err := validProject().Validate(); err != nil {
		t.Fatalf("Validate() on a well-formed project returned %v", err)
	}
}

func TestValidateRejectsNoWindows(t *testing.T) {
	p := &Project{}
	if err := p.Validate(); err == nil {
		t.Fatalf("Validate() accepted a project with no windows")
	}
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	p := validProject()
	p.Windows[1].Name = "UV1"
	p.Windows[1].DependsOn = nil
	if err := p.Validate(); err == nil {
		t.Fatalf("Validate() accepted duplicate window names")
	}
}

func TestValidateRejectsEmptyCrossList(t *testing.T) {
	p := validProject()
	p.Windows[0].Cross = nil
	if err := p.Validate(); err == nil {
		t.Fatalf("Validate() accepted a window with no Cross symbols")
	}
}

func TestValidateRejectsBadMethod(t *testing.T) {
	p := validProject()
	p.Windows[0].Method = "Nonsense"
	if err := p.Validate(); err == nil {
		t.Fatalf("Validate() accepted an unrecognised Method")
	}
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	p := validProject()
	p.Windows[0].DependsOn = []string{"nope"}
	if err := p.Validate(); err == nil {
		t.Fatalf("Validate() accepted a DependsOn naming an unknown window")
	}
}

func TestMethodOf(t *testing.T) {
	if methodOf("Intensity") != qdoas.IntensityFit {
		t.Fatalf("methodOf(%q) != IntensityFit", "Intensity")
	}
	if methodOf("OpticalDensity") != qdoas.OpticalDensityFit {
		t.Fatalf("methodOf(%q) != OpticalDensityFit", "OpticalDensity")
	}
}

func TestUseKuruczOf(t *testing.T) {
	cases := map[string]qdoas.UseKurucz{
		"Ref": qdoas.KuruczRef, "Spec": qdoas.KuruczSpec, "All": qdoas.KuruczAll, "": qdoas.KuruczNone, "garbage": qdoas.KuruczNone,
	}
	for in, want := range cases {
		if got := useKuruczOf(in); got != want {
			t.Fatalf("useKuruczOf(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestResolveCrossPathExpandsEnv(t *testing.T) {
	os.Setenv("QDOAS_TEST_SUBDIR", "xs")
	defer os.Unsetenv("QDOAS_TEST_SUBDIR")
	got := resolveCrossPath("/data", "$QDOAS_TEST_SUBDIR/no2.xs")
	want := filepath.Join("/data", "xs/no2.xs")
	if got != want {
		t.Fatalf("resolveCrossPath() = %q, want %q", got, want)
	}
}

func TestReadProjectFileParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.toml")
	body := `
WorkspaceDir = "/data"

[[Windows]]
Name = "UV1"
Method = "OpticalDensity"
RefFile = "ref.xs"
LambdaMin = 400.0
LambdaMax = 420.0

[[Windows.Cross]]
Symbol = "no2"
FitConc = true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing fixture project file: %v", err)
	}

	p, err := ReadProjectFile(path)
	if err != nil {
		t.Fatalf("ReadProjectFile() error: %v", err)
	}
	if len(p.Windows) != 1 || p.Windows[0].Name != "UV1" {
		t.Fatalf("ReadProjectFile() windows = %+v", p.Windows)
	}
	if len(p.Windows[0].Cross) != 1 || p.Windows[0].Cross[0].Symbol != "no2" {
		t.Fatalf("ReadProjectFile() cross list = %+v", p.Windows[0].Cross)
	}
}

func TestReadProjectFileMissingFile(t *testing.T) {
	if _, err := ReadProjectFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("ReadProjectFile() did not error on a missing file")
	}
}
