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
	"testing"

	"github.com/bira-iasb/qdoas-engine/workspace"
)

func TestErrorStack(t *testing.T) {
	var s ErrorStack
	if s.HasFatal() {
		t.Fatalf("empty stack reports HasFatal")
	}
	s.Push("winA", SeverityWarning, errWant("warn"))
	s.Push("winB", SeverityFatal, errWant("fatal"))
	if !s.HasFatal() {
		t.Fatalf("stack with a fatal entry does not report HasFatal")
	}
	if len(s.Entries()) != 2 {
		t.Fatalf("Entries() len = %d, want 2", len(s.Entries()))
	}
	s.Reset()
	if len(s.Entries()) != 0 || s.HasFatal() {
		t.Fatalf("Reset() did not clear the stack")
	}
}

type errWant string

func (e errWant) Error() string { return string(e) }

func TestCompileOrdersByDependsOn(t *testing.T) {
	ac := NewAnalysisContext(workspace.New())
	a := &AnalysisWindow{Name: "a"}
	b := &AnalysisWindow{Name: "b", DependsOn: []string{"a"}}
	c := &AnalysisWindow{Name: "c", DependsOn: []string{"b"}}
	ac.AddWindow(c)
	ac.AddWindow(a)
	ac.AddWindow(b)

	if err := ac.Compile(); err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	order := ac.Order()
	if len(order) != 3 {
		t.Fatalf("Order() len = %d, want 3", len(order))
	}
	pos := make(map[string]int, 3)
	for rank, idx := range order {
		pos[ac.Windows[idx].Name] = rank
	}
	if pos["a"] >= pos["b"] {
		t.Fatalf("window a did not precede its dependent b: positions %v", pos)
	}
	if pos["b"] >= pos["c"] {
		t.Fatalf("window b did not precede its dependent c: positions %v", pos)
	}
}

func TestCompileRejectsUnknownDependency(t *testing.T) {
	ac := NewAnalysisContext(workspace.New())
	ac.AddWindow(&AnalysisWindow{Name: "a", DependsOn: []string{"missing"}})
	if err := ac.Compile(); err == nil {
		t.Fatalf("Compile() did not reject a dependency on an unknown window")
	}
}

func TestCompileRejectsCycle(t *testing.T) {
	ac := NewAnalysisContext(workspace.New())
	ac.AddWindow(&AnalysisWindow{Name: "a", DependsOn: []string{"b"}})
	ac.AddWindow(&AnalysisWindow{Name: "b", DependsOn: []string{"a"}})
	if err := ac.Compile(); err == nil {
		t.Fatalf("Compile() did not reject a FitFromPrevious cycle")
	}
}
