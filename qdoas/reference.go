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

import "fmt"

// FixedReference selects ReferenceMode == RefFile's spectrum: the one
// loaded once at window-compile time onto LambdaRef/Sref, used
// unmodified for every record. Deciding which file to load is out of
// scope (spec.md §1); this only validates it is actually there before
// NewForwardModel tries to spline it.
func FixedReference(w *AnalysisWindow) error {
	if len(w.LambdaRef) == 0 || len(w.Sref) != len(w.LambdaRef) {
		return fmt.Errorf("qdoas: FixedReference: %s: %w", w.Name, ErrRefData)
	}
	return nil
}

// ScanAverageReference implements ReferenceMode == RefScanAverage (and
// RefScanInterpolate with a non-0.5 weight): it combines the window's
// two bracketing scan spectra, SrefRadAsRef1/2, already chosen by
// whatever selects scan-relative brackets by SZA/lat/lon/time (out of
// scope here, spec.md §1), into the reference used for this record.
// weight is the fraction attributed to the second bracket, in [0,1];
// 0.5 gives a plain average, any other value a linear interpolation by
// time distance. It overwrites LambdaRef/Sref in place.
func ScanAverageReference(w *AnalysisWindow, weight float64) error {
	if len(w.LambdaRadAsRef1) == 0 || len(w.SrefRadAsRef1) != len(w.LambdaRadAsRef1) {
		return fmt.Errorf("qdoas: ScanAverageReference: %s: %w: missing first bracketing reference", w.Name, ErrRefData)
	}
	if len(w.SrefRadAsRef2) != len(w.SrefRadAsRef1) {
		return fmt.Errorf("qdoas: ScanAverageReference: %s: %w: missing second bracketing reference", w.Name, ErrRefData)
	}
	if weight < 0 || weight > 1 {
		return fmt.Errorf("qdoas: ScanAverageReference: %s: weight %g outside [0,1]", w.Name, weight)
	}
	sref := make([]float64, len(w.SrefRadAsRef1))
	for i := range sref {
		sref[i] = (1-weight)*w.SrefRadAsRef1[i] + weight*w.SrefRadAsRef2[i]
	}
	w.LambdaRef = append([]float64(nil), w.LambdaRadAsRef1...)
	w.Sref = sref
	return nil
}
