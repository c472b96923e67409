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

import "testing"

func TestCrossResultsReset(t *testing.T) {
	r := &CrossResults{
		SlntFact: 2.5,
		SlntCol:  1.2,
		SlntErr:  0.3,
		Shift:    0.01,
		Amf:      1.7,
	}
	r.reset()
	if r.SlntFact != 2.5 {
		t.Fatalf("reset() dropped SlntFact: got %v, want 2.5", r.SlntFact)
	}
	if r.SlntCol != 0 || r.SlntErr != 0 || r.Shift != 0 || r.Amf != 0 {
		t.Fatalf("reset() did not clear scratch fields: %+v", r)
	}
}
