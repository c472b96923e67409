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

// Package workspace holds the process-wide symbol table: every
// absorber, predefined parameter, or AMF table referenced by any
// analysis window, loaded once and shared read-only by every window
// via integer index.
package workspace

import (
	"fmt"

	"github.com/bira-iasb/qdoas-engine/numeric"
)

// Type classifies a workspace symbol.
type Type int

const (
	// Molecule is an ordinary absorption cross section.
	Molecule Type = iota
	// Predefined is a non-physical fitted row (offset, undersampling,
	// common residual, Raman, resolution correction).
	Predefined
	// AMF is a symbol whose values come from an air-mass-factor table
	// rather than a cross section.
	AMF
)

// Symbol is one entry in the workspace table.
type Symbol struct {
	Type          Type
	SymbolName    string
	CrossFileName string
	AMFFileName   string
	XS            *numeric.Matrix // loaded cross section, nil for Predefined symbols with no backing file
}

// Table is the process-wide, read-only-after-load symbol workspace.
// Windows reference entries by index, matching CrossReference.Comp.
type Table struct {
	symbols []Symbol
	byName  map[string]int
}

// New returns an empty Table.
func New() *Table {
	return &Table{byName: make(map[string]int)}
}

// Add appends sym and returns its index. Symbol names must be unique.
func (t *Table) Add(sym Symbol) (int, error) {
	if _, exists := t.byName[sym.SymbolName]; exists {
		return 0, fmt.Errorf("workspace: Add: duplicate symbol name %q", sym.SymbolName)
	}
	idx := len(t.symbols)
	t.symbols = append(t.symbols, sym)
	t.byName[sym.SymbolName] = idx
	return idx, nil
}

// Get returns the symbol at index i.
func (t *Table) Get(i int) (Symbol, error) {
	if i < 0 || i >= len(t.symbols) {
		return Symbol{}, fmt.Errorf("workspace: Get(%d): index out of range [0,%d)", i, len(t.symbols))
	}
	return t.symbols[i], nil
}

// Index returns the index of the symbol named name.
func (t *Table) Index(name string) (int, error) {
	idx, ok := t.byName[name]
	if !ok {
		return 0, fmt.Errorf("workspace: Index: unknown symbol %q", name)
	}
	return idx, nil
}

// Len returns the number of symbols in the table.
func (t *Table) Len() int { return len(t.symbols) }
