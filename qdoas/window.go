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
	"github.com/bira-iasb/qdoas-engine/fitprops"
	"github.com/bira-iasb/qdoas-engine/kurucz"
	"github.com/bira-iasb/qdoas-engine/numeric"
	"github.com/bira-iasb/qdoas-engine/slit"
)

// Method selects the form of the DOAS equation a window solves.
type Method int

const (
	OpticalDensityFit Method = iota
	IntensityFit
)

// AnalysisType selects how the window's spectral resolution is
// handled: fixed, corrected by a constant FWHM, tied to Kurucz's
// per-pixel FWHM curve, or fit as its own non-linear parameter.
type AnalysisType int

const (
	NoFWHM AnalysisType = iota
	FWHMCorrection
	FWHMKurucz
	FWHMNLFit
)

// LinearOffsetMode selects the normalisation of the intensity-offset
// polynomial term added to the forward model.
type LinearOffsetMode int

const (
	OffsetNone LinearOffsetMode = iota
	OffsetOverI
	OffsetOverI0
)

// ReferenceMode selects how the window's reference spectrum for a
// record is chosen. Selection itself is out of scope (spec.md §1);
// the driver only needs to know which bracketing/interpolation shape
// to expect on AnalysisWindow.Sref*.
type ReferenceMode int

const (
	RefFile ReferenceMode = iota
	RefAutomatic
	RefScanBefore
	RefScanAfter
	RefScanInterpolate
	RefScanAverage
)

// UseKurucz selects whether and on what input Kurucz calibration runs
// for this window.
type UseKurucz int

const (
	KuruczNone UseKurucz = iota
	KuruczRef
	KuruczSpec
	KuruczAll
)

// WindowFlags groups the window's boolean configuration switches.
type WindowFlags struct {
	UseKurucz            UseKurucz
	UseUsamp             bool
	AmfFlag              bool
	XsToConvolute        bool
	XsToConvoluteI0      bool
	XsPukite             bool
	MolecularCorrection  bool
}

// AnalysisWindow is the central per-window configuration and state
// record (FENO in the original engine): everything needed to prepare
// cross sections, build the forward model, and run Curfit for one
// (record, row), plus the results of the most recent fit.
type AnalysisWindow struct {
	Name   string
	Method Method
	Type   AnalysisType
	Flags  WindowFlags

	LinearOffsetMode LinearOffsetMode
	ReferenceMode    ReferenceMode

	LambdaRef []float64 // absolute reference wavelength scale
	LambdaK   []float64 // wavelength scale after Kurucz
	Lambda    []float64 // not read by the driver, which analyses on LambdaK when set, else LambdaRef (gridFor)

	Sref           []float64
	SrefSigma      []float64
	SrefEtalon     []float64
	SrefRadAsRef1  []float64
	SrefRadAsRef2  []float64
	LambdaRadAsRef1 []float64
	LambdaRadAsRef2 []float64

	Shift, Stretch, Stretch2 float64 // found aligning etalon on reference

	FwhmPolyRef [][]float64 // per-FWHM-parameter polynomial coefficients
	FwhmVector  [][]float64
	FwhmDeriv2  [][]float64

	NormFact float64

	TabCross        []*CrossReference
	TabCrossResults []*CrossResults

	FitProps *fitprops.FitProperties

	Lambda0       float64
	Lambda0Pukite float64
	Preshift      float64

	Spikes         []bool
	OmiRejPixelsQF []bool
	UseRefRow      bool

	// Reference shift/stretch fit flags and the intensity-offset
	// polynomial degree. The original also carries per-cross-reference
	// FitShift/FitStretch/FitStretch2 flags (spec.md §3) for resampling
	// individual cross sections onto their own shifted/stretched grid;
	// this engine narrows that to a single window-level alignment,
	// since every window has exactly one reference and its shift/stretch
	// is what scenario 2 (spec.md §8) fits. Per-symbol shift/stretch is
	// an explicit Open Question decision, not an oversight (DESIGN.md).
	// OffsetDegree is -1 when LinearOffsetMode is OffsetNone.
	FitRefShift, FitRefStretch, FitRefStretch2 bool
	OffsetDegree                               int

	Usable bool
	NIter  int
	RMS    float64
	ChiSquare float64

	Kurucz     *kurucz.WindowCalibration
	BaseSlit   slit.Slit
	SolarAtlas *numeric.Matrix // high-resolution solar atlas Kurucz convolves against; required when Flags.UseKurucz != KuruczNone

	// FitFromPrevious windows this window depends on, by name, used to
	// build the topological ordering constraint (spec.md §9).
	DependsOn []string
}

// NTabCross returns the number of configured symbols. Invariant
// (spec.md §3): TabCross[i] and TabCrossResults[i] always describe
// the same symbol, so the two slices are kept the same length by
// every mutator in this package.
func (w *AnalysisWindow) NTabCross() int { return len(w.TabCross) }
