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

package workspace

import "testing"

func TestAddAndLookup(t *testing.T) {
	tbl := New()
	idx, err := tbl.Add(Symbol{Type: Molecule, SymbolName: "NO2", CrossFileName: "no2.xs"})
	if err != nil {
		t.Fatal(err)
	}
	if idx != 0 {
		t.Fatalf("idx = %d, want 0", idx)
	}
	got, err := tbl.Get(idx)
	if err != nil {
		t.Fatal(err)
	}
	if got.SymbolName != "NO2" {
		t.Errorf("SymbolName = %q, want NO2", got.SymbolName)
	}
	byName, err := tbl.Index("NO2")
	if err != nil || byName != idx {
		t.Errorf("Index(NO2) = (%d,%v), want (%d,nil)", byName, err, idx)
	}
}

func TestAddRejectsDuplicateName(t *testing.T) {
	tbl := New()
	if _, err := tbl.Add(Symbol{SymbolName: "O3"}); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Add(Symbol{SymbolName: "O3"}); err == nil {
		t.Error("Add with duplicate name succeeded, want error")
	}
}

func TestGetOutOfRange(t *testing.T) {
	tbl := New()
	if _, err := tbl.Get(0); err == nil {
		t.Error("Get(0) on empty table succeeded, want error")
	}
}

func TestIndexUnknownSymbol(t *testing.T) {
	tbl := New()
	if _, err := tbl.Index("missing"); err == nil {
		t.Error("Index(missing) succeeded, want error")
	}
}
