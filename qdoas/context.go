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
	"fmt"

	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dfs"

	"github.com/bira-iasb/qdoas-engine/workspace"
)

// Severity classifies one ErrorStack entry.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityFatal
)

// errorEntry is one recorded error: the function that raised it, its
// severity, and the underlying error.
type errorEntry struct {
	Function string
	Severity Severity
	Err      error
}

// ErrorStack is the single-threaded, per-record error log (spec.md
// §7): the driver resets it at the start of every record and leaves
// its entries on the stack for the caller to read with Entries after
// processing; it does not forward them anywhere itself.
type ErrorStack struct {
	entries []errorEntry
}

// Push records one error, tagged with the function name that raised
// it and its severity.
func (s *ErrorStack) Push(function string, severity Severity, err error) {
	s.entries = append(s.entries, errorEntry{Function: function, Severity: severity, Err: err})
}

// Reset clears the stack, matching the per-record scratch lifecycle
// (spec.md §3 Lifecycle).
func (s *ErrorStack) Reset() { s.entries = s.entries[:0] }

// Entries returns the recorded entries in the order they were pushed.
func (s *ErrorStack) Entries() []errorEntry { return s.entries }

// HasFatal reports whether any recorded entry is fatal.
func (s *ErrorStack) HasFatal() bool {
	for _, e := range s.entries {
		if e.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

// AnalysisContext encapsulates the process-wide mutable state the
// original engine keeps as globals (spec.md §9): the symbol
// workspace, the windows for one cross-track row, and the error
// stack. The driver is a method on this type so a test, or a
// multi-row caller, can hold several independent contexts in one
// process without aliasing between them.
type AnalysisContext struct {
	Workspace *workspace.Table
	Windows   []*AnalysisWindow
	Errors    ErrorStack

	order []int // topological window order, compiled by Compile
}

// NewAnalysisContext allocates an empty context around a shared,
// read-only symbol workspace.
func NewAnalysisContext(ws *workspace.Table) *AnalysisContext {
	return &AnalysisContext{Workspace: ws}
}

// AddWindow registers a window with the context. Order of
// registration does not matter; Compile resolves the FitFromPrevious
// dependency order.
func (c *AnalysisContext) AddWindow(w *AnalysisWindow) {
	c.Windows = append(c.Windows, w)
}

// Compile builds the FitFromPrevious dependency graph across the
// context's windows and computes a topological order in which
// AnalyseSpectrum must run them for one record (spec.md §9: "model as
// an explicit DAG... detect cycles at configuration load and
// reject"). It must be called once after all windows are added and
// before the first AnalyseSpectrum call; a cycle is rejected here
// rather than discovered mid-analysis.
func (c *AnalysisContext) Compile() error {
	byName := make(map[string]int, len(c.Windows))
	for i, w := range c.Windows {
		byName[w.Name] = i
	}

	g := core.NewGraph(core.WithDirected(true))
	for _, w := range c.Windows {
		if err := g.AddVertex(w.Name); err != nil {
			return fmt.Errorf("qdoas: Compile: AddVertex(%q): %w", w.Name, err)
		}
	}
	for _, w := range c.Windows {
		for _, dep := range w.DependsOn {
			if _, ok := byName[dep]; !ok {
				return fmt.Errorf("qdoas: Compile: window %q depends on unknown window %q", w.Name, dep)
			}
			// dep must be analysed before w: edge dep -> w.
			if _, err := g.AddEdge(dep, w.Name, 0); err != nil {
				return fmt.Errorf("qdoas: Compile: AddEdge(%q,%q): %w", dep, w.Name, err)
			}
		}
	}

	order, err := dfs.TopologicalSort(g)
	if err != nil {
		return fmt.Errorf("qdoas: Compile: window dependency cycle: %w", err)
	}

	resolved := make([]int, 0, len(order))
	for _, name := range order {
		resolved = append(resolved, byName[name])
	}
	c.order = resolved
	return nil
}

// Order returns the compiled window processing order (indices into
// c.Windows). Compile must have been called first.
func (c *AnalysisContext) Order() []int { return c.order }
