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
	"github.com/bira-iasb/qdoas-engine/numeric"
	"github.com/bira-iasb/qdoas-engine/slit"
)

// PreFitAction is the cross-section-preparation action a symbol needs
// before it can enter the fit, matching CrossReference.crossAction.
type PreFitAction int

const (
	ActionNone PreFitAction = iota
	ActionInterpolate
	ActionConvolute
	ActionConvoluteI0
	ActionConvoluteRing
)

// PreFitCorrection is the correction applied to a symbol's working
// vector before the action above runs, matching crossCorrection.
type PreFitCorrection int

const (
	CorrectionNone PreFitCorrection = iota
	CorrectionI0
	CorrectionPukite
	CorrectionMolecularRing
)

// PukiteRole mirrors isPukite: a symbol is either not a Pukite term,
// a Pukite term the pipeline must compute from its two generators, or
// a Pukite term supplied as an already-convolved cross section.
type PukiteRole int

const (
	PukiteRoleNone PukiteRole = iota
	PukiteRoleComputed
	PukiteRolePreConvolved
)

// PukiteComponent names which of the two Pukite-derived columns a
// CrossReference with PukiteRoleComputed represents; see
// xsection.PukiteComponent, which this mirrors at the window level.
type PukiteComponent int

const (
	PukiteComponentNone PukiteComponent = iota
	PukiteComponentP1
	PukiteComponentP2
)

// CrossReference is the per-symbol configuration within one
// AnalysisWindow: where the symbol sits in the workspace, how its
// cross section is prepared, where its coefficient lands in the
// linear system, and the initial value/step/bounds for every
// fittable quantity it may carry.
type CrossReference struct {
	Comp int // index into the workspace.Table

	CrossAction     PreFitAction
	CrossCorrection PreFitCorrection

	IndSvdA int // column in the optical-density design matrix, -1 if unused
	IndSvdP int // column in the intensity-fit predictor matrix, -1 if unused

	IndOrthog int // -2 skip, -1 base member, >=0 Gram-Schmidt rank; see xsection.Symbol.IndOrthog
	IndSubtract int // index of another CrossReference to subtract from, -1 if none

	// FitConc drives both the optical-density-mode linear solve
	// (IndSvdA column) and the intensity-mode non-linear concentration
	// slot (forward.go's paramLayout.concCols); InitConc/DeltaConc/
	// MinConc/MaxConc seed and bound the latter. The original also
	// carries per-symbol FitShift/FitStretch/FitStretch2/FitParam for
	// resampling each cross section onto its own shifted/stretched
	// grid (spec.md §3); this engine narrows that to the single
	// window-level reference alignment (AnalysisWindow.FitRefShift
	// etc.) — a deliberate Open Question decision, see DESIGN.md.
	FitConc         bool
	FitFromPrevious bool

	PukiteRole                 PukiteRole
	PukiteComponent            PukiteComponent // which of the two derived columns this entry is, when PukiteRole is PukiteRoleComputed
	IndexPukite1, IndexPukite2 int
	MolecularCrossIndex        int

	Display    bool
	FilterFlag bool

	Fact   float64 // normalisation factor from xsection.Column.Fact
	I0Conc float64

	InitConc, DeltaConc, MinConc, MaxConc float64

	Vector       []float64
	Deriv2       []float64
	VectorBackup []float64
	Deriv2Backup []float64

	MolecularCrossSection []float64 // sigma - sigma (x) Raman kernel, once prepared

	// Inputs to xsection.Pipeline, cached here at window-compile time
	// from the workspace entry named by Comp so preparation does not
	// need to re-resolve the workspace on every record.
	XS          *numeric.Matrix // high-resolution cross section, nil for predefined symbols
	I0Ref       *numeric.Matrix // solar reference for I0-correction, required for ActionConvoluteI0
	Slit        slit.Slit       // convolution kernel, required for ActionConvolute/ActionConvoluteI0
	RamanKernel slit.Slit       // required when CrossCorrection is CorrectionMolecularRing

	// AMFTable, when non-nil, converts this symbol's slant column to a
	// vertical column by table lookup at the window's centre
	// wavelength (spec.md Non-goals: "AMF tables are consumed, not
	// computed beyond table lookup with wavelength-dependent
	// interpolation").
	AMFTable *AMFTable
}

// CrossResults is the per-symbol, per-record output of one fit: the
// scalar results CurFitMethod reports plus the output-selection flags
// deciding which fields a writer serialises.
type CrossResults struct {
	StoreParam, StoreShift, StoreStretch, StoreScale       bool
	StoreParamError, StoreError                            bool
	StoreAmf                                                bool
	StoreSlntCol, StoreSlntErr, StoreVrtCol, StoreVrtErr    bool

	Param, Shift, Stretch, Stretch2, Scale, Scale2 float64
	SigmaParam, SigmaShift, SigmaStretch, SigmaStretch2, SigmaScale, SigmaScale2 float64

	SlntCol, SlntErr, SlntFact float64
	VrtCol, VrtErr, VrtFact    float64
	ResCol                     float64
	Amf                        float64

	IndexAmf int
}

// reset clears the per-record scratch fields, matching the original's
// "overwritten at the start of each analysis call" lifecycle rule
// (spec.md §3 Lifecycle).
func (r *CrossResults) reset() {
	fact := r.SlntFact
	*r = CrossResults{SlntFact: fact}
}
