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

package fitprops

import "testing"

func TestAllocDimensions(t *testing.T) {
	fp, err := Alloc(100, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(fp.A) != 100 || len(fp.A[0]) != 3 {
		t.Errorf("A shape = %dx%d, want 100x3", len(fp.A), len(fp.A[0]))
	}
	if len(fp.Covar) != 3 || len(fp.SigmaSqr) != 3 {
		t.Errorf("Covar/SigmaSqr shape wrong")
	}
	if fp.P != nil {
		t.Errorf("P should be nil when DimP is 0")
	}
}

func TestAllocZeroDimFails(t *testing.T) {
	if _, err := Alloc(0, 3, 0); err == nil {
		t.Error("Alloc(0,3,0) succeeded, want error")
	}
	if _, err := Alloc(10, 0, 0); err == nil {
		t.Error("Alloc(10,0,0) succeeded, want error")
	}
}
