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

// Package config reads the TOML project file describing a set of
// analysis windows and wires it into a qdoas.AnalysisContext. Window
// selection and file-format parsing of the cross sections themselves
// are done elsewhere (workspace, numeric); this package only concerns
// itself with the scalar configuration that would otherwise live in
// the operator's project file.
package config

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/bira-iasb/qdoas-engine/qdoas"
)

// WindowConfig is the TOML shape of one analysis window, mirroring the
// subset of qdoas.AnalysisWindow an operator configures by hand; the
// rest (TabCross, calibrated state) is filled in once the workspace
// and record data are available.
type WindowConfig struct {
	Name string

	Method string // "OpticalDensity" or "Intensity"

	RefFile    string
	LambdaMin  float64
	LambdaMax  float64
	Lambda0    float64

	FitRefShift    bool
	FitRefStretch  bool
	FitRefStretch2 bool
	OffsetDegree   int

	// AmfFlag enables slant-to-vertical column conversion (spec.md
	// Non-goals: "AMF tables are consumed, not computed beyond table
	// lookup"); it only takes effect for symbols whose CrossConfig
	// names an AMFFile.
	AmfFlag bool

	UseKurucz      string // "None", "Ref", "Spec", "All"
	KuruczNbWin    int
	KuruczShiftDeg int
	SlitFWHM       float64 // Gaussian FWHM used for Kurucz's atlas convolution; defaults to 1.0 if zero

	// DependsOn names other windows (by Name) that must be analysed
	// before this one, per FitFromPrevious (spec.md §9).
	DependsOn []string

	// Cross lists the symbols this window fits, by workspace name.
	Cross []CrossConfig
}

// CrossConfig is the TOML shape of one CrossReference entry.
type CrossConfig struct {
	Symbol string

	// Action selects how the symbol's high-resolution cross section
	// becomes a working vector: "Interpolate" (default), "Convolute", or
	// "ConvoluteI0".
	Action string

	FitConc   bool
	InitConc  float64
	DeltaConc float64
	MinConc   float64
	MaxConc   float64
	Display   bool

	// AMFFile, when set, names a wavelength/AMF table file (relative to
	// WorkspaceDir like Symbol) used to convert this symbol's slant
	// column to a vertical column.
	AMFFile string
}

// Project is the top-level TOML document: one workspace directory plus
// every configured analysis window.
type Project struct {
	// WorkspaceDir is the directory Build looks under for the
	// cross-section files named by each CrossConfig.Symbol. It can
	// include environment variables.
	WorkspaceDir string

	// SolarAtlas is the path to the high-resolution solar reference
	// spectrum used by Kurucz calibration, shared by every window that
	// enables it.
	SolarAtlas string

	Windows []WindowConfig
}

// ReadProjectFile reads and parses a TOML project file, matching
// ReadConfigFile's open/read/decode/validate shape.
func ReadProjectFile(filename string) (*Project, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("config: the project file %q does not appear to exist: %w", filename, err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	raw, err := ioutil.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("config: problem reading project file: %w", err)
	}

	project := new(Project)
	if _, err := toml.Decode(string(raw), project); err != nil {
		return nil, fmt.Errorf("config: error parsing project file: %w", err)
	}

	project.WorkspaceDir = os.ExpandEnv(project.WorkspaceDir)
	project.SolarAtlas = os.ExpandEnv(project.SolarAtlas)

	if err := project.Validate(); err != nil {
		return nil, err
	}
	return project, nil
}

// Validate checks the cross-window invariants a TOML file cannot
// enforce by itself: every window needs a name and at least one
// symbol, and DependsOn must name another window actually present
// (qdoas.AnalysisContext.Compile re-validates this again once the
// windows are built, but failing early here gives a better error
// message to point at the project file rather than the compiled
// graph).
func (p *Project) Validate() error {
	if len(p.Windows) == 0 {
		return fmt.Errorf("config: project has no analysis windows configured")
	}
	names := make(map[string]bool, len(p.Windows))
	for _, w := range p.Windows {
		if w.Name == "" {
			return fmt.Errorf("config: a window is missing its Name")
		}
		if names[w.Name] {
			return fmt.Errorf("config: duplicate window name %q", w.Name)
		}
		names[w.Name] = true
		if len(w.Cross) == 0 {
			return fmt.Errorf("config: window %q has no Cross symbols configured", w.Name)
		}
		if w.Method != "OpticalDensity" && w.Method != "Intensity" {
			return fmt.Errorf("config: window %q: Method must be \"OpticalDensity\" or \"Intensity\", got %q", w.Name, w.Method)
		}
	}
	for _, w := range p.Windows {
		for _, dep := range w.DependsOn {
			if !names[dep] {
				return fmt.Errorf("config: window %q depends on unknown window %q", w.Name, dep)
			}
		}
	}
	return nil
}

// methodOf translates a WindowConfig's TOML method name to its
// qdoas.Method value; Validate guarantees this never hits default.
func methodOf(name string) qdoas.Method {
	if name == "Intensity" {
		return qdoas.IntensityFit
	}
	return qdoas.OpticalDensityFit
}

// useKuruczOf translates a WindowConfig's TOML UseKurucz name to its
// qdoas.UseKurucz value.
func useKuruczOf(name string) qdoas.UseKurucz {
	switch name {
	case "Ref":
		return qdoas.KuruczRef
	case "Spec":
		return qdoas.KuruczSpec
	case "All":
		return qdoas.KuruczAll
	default:
		return qdoas.KuruczNone
	}
}

// resolveCrossPath joins a symbol's file name onto the workspace
// directory, matching the teacher's os.ExpandEnv-then-filepath.Join
// path handling.
func resolveCrossPath(workspaceDir, name string) string {
	return filepath.Join(workspaceDir, os.ExpandEnv(name))
}
