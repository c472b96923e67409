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

// Package xsection prepares absorption cross sections for one analysis
// window once its wavelength calibration is known: select the
// high-resolution source, convolve or interpolate onto the record
// grid, derive Pukite and molecular-Ring terms, subtract configured
// pairs, orthogonalise via Gram-Schmidt, and normalise. The eight
// steps are a fixed sequence, not a flag bag: Pipeline.Run calls them
// in the one order that makes the result well-defined, because
// orthogonalisation must see the final physical shapes and both
// Pukite and molecular-Ring have to exist before it runs.
package xsection

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/bira-iasb/qdoas-engine/numeric"
	"github.com/bira-iasb/qdoas-engine/slit"
)

var (
	// ErrMissingHiRes is returned when a symbol needing convolution or
	// interpolation has no high-resolution matrix attached.
	ErrMissingHiRes = errors.New("xsection: missing high-resolution cross section")
	// ErrMissingSlit is returned when a symbol flagged for convolution
	// has no slit function attached.
	ErrMissingSlit = errors.New("xsection: missing slit for convolution")
	// ErrMissingI0Reference is returned when a symbol flagged for
	// I0-correction has no solar reference matrix attached.
	ErrMissingI0Reference = errors.New("xsection: missing I0 reference for I0-correction")
	// ErrDegenerateBasis is returned when Gram-Schmidt orthogonalisation
	// meets a zero-norm basis vector.
	ErrDegenerateBasis = errors.New("xsection: degenerate orthogonalisation basis vector")
)

// Source selects how a symbol's working vector is produced in steps 1-3.
type Source int

const (
	// SourceInterpolate spline-interpolates the HiRes matrix directly
	// onto the record grid; used for cross sections already sampled at
	// a resolution close enough to the instrument's.
	SourceInterpolate Source = iota
	// SourceConvolute convolves the HiRes matrix with Slit onto the grid.
	SourceConvolute
	// SourceConvoluteI0 convolves with I0-correction against I0Ref,
	// at concentration Conc.
	SourceConvoluteI0
)

// PukiteComponent names which of the two Pukite-derived columns a
// symbol represents. Both components share the same generator pair
// (PukiteI, PukiteJ), referencing other columns by index in the
// Pipeline's Symbols/Columns slices.
type PukiteComponent int

const (
	// PukiteNone marks a symbol that does not carry a Pukite term.
	PukiteNone PukiteComponent = iota
	// PukiteP1 is (lambda - lambda0Pukite) * sigma_i.
	PukiteP1
	// PukiteP2 is sigma_i * sigma_j.
	PukiteP2
)

// Symbol is one cross section's configuration within a Pipeline run.
type Symbol struct {
	Name string

	Source Source
	HiRes  *numeric.Matrix // Columns[0] = wavelength, Columns[1] = cross section
	I0Ref  *numeric.Matrix // Columns[0] = wavelength (same grid as HiRes), Columns[1] = solar reference, required for SourceConvoluteI0
	Conc   float64         // I0-correction concentration
	Slit   slit.Slit       // required for SourceConvolute/SourceConvoluteI0

	PukiteComponent PukiteComponent
	PukiteI, PukiteJ int // indices into Pipeline.Symbols/Columns of the generator cross sections
	Lambda0Pukite    float64

	MolecularRing bool
	RamanKernel   slit.Slit

	SubtractFrom int // index of another column this one is subtracted from, or -1

	// IndOrthog follows the original engine's convention: -2 means
	// skip orthogonalisation entirely, -1 means "this vector is a base
	// member" added to the orthogonal basis unmodified, and a
	// non-negative value gives this column's rank in the Gram-Schmidt
	// sequence (ascending order, orthogonalised against every basis
	// vector accumulated so far).
	IndOrthog int
}

// Column holds the per-symbol working vector as it is transformed
// through the pipeline, plus the backup preserved across the
// molecular-Ring substitution.
type Column struct {
	Vector []float64
	Deriv2 []float64

	VectorBackup []float64
	Deriv2Backup []float64

	Fact float64 // normalisation factor applied in step 8
}

// Pipeline prepares one analysis window's cross sections on a single
// record wavelength grid.
type Pipeline struct {
	Grid          []float64 // record wavelength grid (ascending), one entry per fitted pixel
	Lambda0       float64   // window centre wavelength, the Pukite default
	Symbols       []*Symbol
	Columns       []*Column // parallel to Symbols, filled by Run
}

// NewPipeline allocates a Pipeline with one Column per Symbol.
func NewPipeline(grid []float64, lambda0 float64, symbols []*Symbol) *Pipeline {
	p := &Pipeline{Grid: grid, Lambda0: lambda0, Symbols: symbols}
	p.Columns = make([]*Column, len(symbols))
	for i := range p.Columns {
		p.Columns[i] = &Column{}
	}
	return p
}

// Run executes the eight preparation steps in their fixed order.
func (p *Pipeline) Run() error {
	if err := p.SelectSource(); err != nil {
		return err
	}
	if err := p.Convolve(); err != nil {
		return err
	}
	if err := p.Interpolate(); err != nil {
		return err
	}
	if err := p.Pukite(); err != nil {
		return err
	}
	if err := p.MolecularRing(); err != nil {
		return err
	}
	if err := p.Subtract(); err != nil {
		return err
	}
	if err := p.Orthogonalise(); err != nil {
		return err
	}
	if err := p.Normalise(); err != nil {
		return err
	}
	return nil
}

// SelectSource validates that every symbol carries the inputs its
// declared Source and derived-term flags require, before any
// numerical work begins.
func (p *Pipeline) SelectSource() error {
	for _, sym := range p.Symbols {
		switch sym.Source {
		case SourceConvolute:
			if sym.HiRes == nil {
				return fmt.Errorf("xsection: SelectSource: %s: %w", sym.Name, ErrMissingHiRes)
			}
			if sym.Slit == nil {
				return fmt.Errorf("xsection: SelectSource: %s: %w", sym.Name, ErrMissingSlit)
			}
		case SourceConvoluteI0:
			if sym.HiRes == nil {
				return fmt.Errorf("xsection: SelectSource: %s: %w", sym.Name, ErrMissingHiRes)
			}
			if sym.Slit == nil {
				return fmt.Errorf("xsection: SelectSource: %s: %w", sym.Name, ErrMissingSlit)
			}
			if sym.I0Ref == nil {
				return fmt.Errorf("xsection: SelectSource: %s: %w", sym.Name, ErrMissingI0Reference)
			}
		case SourceInterpolate:
			if sym.PukiteComponent == PukiteNone && sym.HiRes == nil {
				return fmt.Errorf("xsection: SelectSource: %s: %w", sym.Name, ErrMissingHiRes)
			}
		}
	}
	return nil
}

// Convolve fills the working vector of every symbol flagged for
// convolution (plain or I0-corrected); Pukite-derived and
// already-convolved symbols are left for later steps.
func (p *Pipeline) Convolve() error {
	for i, sym := range p.Symbols {
		switch sym.Source {
		case SourceConvolute:
			v, err := slit.Convolve(sym.HiRes.Columns[0], sym.HiRes.Columns[1], p.Grid, sym.Slit)
			if err != nil {
				return fmt.Errorf("xsection: Convolve: %s: %w", sym.Name, err)
			}
			p.Columns[i].Vector = v
		case SourceConvoluteI0:
			v, err := slit.ConvolveI0(sym.HiRes.Columns[0], sym.I0Ref.Columns[1], sym.HiRes.Columns[1], p.Grid, sym.Slit, sym.Conc)
			if err != nil {
				return fmt.Errorf("xsection: Convolve: %s: %w", sym.Name, err)
			}
			p.Columns[i].Vector = v
		}
	}
	return nil
}

// Interpolate spline-interpolates every remaining (non-convolved,
// non-Pukite) symbol's high-resolution matrix onto the record grid.
func (p *Pipeline) Interpolate() error {
	for i, sym := range p.Symbols {
		if sym.Source != SourceInterpolate || sym.PukiteComponent != PukiteNone {
			continue
		}
		spl, err := numeric.NewSpline(sym.HiRes.Columns[0], sym.HiRes.Columns[1])
		if err != nil {
			return fmt.Errorf("xsection: Interpolate: %s: %w", sym.Name, err)
		}
		v := make([]float64, len(p.Grid))
		for k, x := range p.Grid {
			v[k] = spl.Eval(x, numeric.Cubic)
		}
		p.Columns[i].Vector = v
	}
	return nil
}

// Pukite fills the two derived columns (lambda-lambda0Pukite)*sigma_i
// and sigma_i*sigma_j for every symbol declaring a PukiteComponent,
// reading the generator cross sections from columns already convolved
// or interpolated onto the grid.
func (p *Pipeline) Pukite() error {
	for i, sym := range p.Symbols {
		if sym.PukiteComponent == PukiteNone {
			continue
		}
		sigmaI := p.Columns[sym.PukiteI].Vector
		v := make([]float64, len(p.Grid))
		switch sym.PukiteComponent {
		case PukiteP1:
			lambda0 := sym.Lambda0Pukite
			if lambda0 == 0 {
				lambda0 = p.Lambda0
			}
			for k, x := range p.Grid {
				v[k] = (x - lambda0) * sigmaI[k]
			}
		case PukiteP2:
			sigmaJ := p.Columns[sym.PukiteJ].Vector
			for k := range p.Grid {
				v[k] = sigmaI[k] * sigmaJ[k]
			}
		}
		p.Columns[i].Vector = v
	}
	return nil
}

// MolecularRing replaces the working vector of every symbol flagged
// MolecularRing with sigma - (sigma convolved with RamanKernel),
// preserving the pre-substitution vector so the transformation can be
// redone from scratch if the reference changes.
func (p *Pipeline) MolecularRing() error {
	for i, sym := range p.Symbols {
		if !sym.MolecularRing {
			continue
		}
		col := p.Columns[i]
		col.VectorBackup = append([]float64(nil), col.Vector...)
		col.Deriv2Backup = append([]float64(nil), col.Deriv2...)

		ringConv, err := slit.Convolve(p.Grid, col.Vector, p.Grid, sym.RamanKernel)
		if err != nil {
			return fmt.Errorf("xsection: MolecularRing: %s: %w", sym.Name, err)
		}
		v := make([]float64, len(col.Vector))
		for k := range v {
			v[k] = col.Vector[k] - ringConv[k]
		}
		col.Vector = v
	}
	return nil
}

// Subtract applies every symbol's SubtractFrom: the symbol's vector
// (as produced by steps 2-5) is subtracted, pixel by pixel, from the
// target column's vector.
func (p *Pipeline) Subtract() error {
	for i, sym := range p.Symbols {
		if sym.SubtractFrom < 0 {
			continue
		}
		target := p.Columns[sym.SubtractFrom]
		source := p.Columns[i]
		if len(target.Vector) != len(source.Vector) {
			return fmt.Errorf("xsection: Subtract: %s: length mismatch with target", sym.Name)
		}
		for k := range target.Vector {
			target.Vector[k] -= source.Vector[k]
		}
	}
	return nil
}

// Orthogonalise runs Gram-Schmidt over the columns whose IndOrthog is
// not -2 (skip): -1 entries join the basis unmodified, in symbol
// order; >=0 entries are processed in ascending IndOrthog order, each
// orthogonalised in turn against every basis vector accumulated so far
// (the -1 members and every >=0 member processed earlier).
func (p *Pipeline) Orthogonalise() error {
	var basis [][]float64
	for i, sym := range p.Symbols {
		if sym.IndOrthog == -1 {
			basis = append(basis, p.Columns[i].Vector)
		}
	}

	type ranked struct {
		index int
		order int
	}
	var seq []ranked
	for i, sym := range p.Symbols {
		if sym.IndOrthog >= 0 {
			seq = append(seq, ranked{i, sym.IndOrthog})
		}
	}
	sort.Slice(seq, func(a, b int) bool { return seq[a].order < seq[b].order })

	for _, r := range seq {
		v := append([]float64(nil), p.Columns[r.index].Vector...)
		for _, b := range basis {
			if err := gramSchmidtSubtract(v, b); err != nil {
				return fmt.Errorf("xsection: Orthogonalise: %s: %w", p.Symbols[r.index].Name, err)
			}
		}
		p.Columns[r.index].Vector = v
		basis = append(basis, v)
	}
	return nil
}

// gramSchmidtSubtract subtracts from v its projection onto b, in place.
func gramSchmidtSubtract(v, b []float64) error {
	var dotVB, dotBB float64
	for k := range v {
		dotVB += v[k] * b[k]
		dotBB += b[k] * b[k]
	}
	if dotBB == 0 {
		return ErrDegenerateBasis
	}
	coef := dotVB / dotBB
	for k := range v {
		v[k] -= coef * b[k]
	}
	return nil
}

// Normalise divides every column by its RMS amplitude, recording the
// factor in Column.Fact so slant columns can be scaled back to
// physical units on output.
func (p *Pipeline) Normalise() error {
	for _, col := range p.Columns {
		var sumSq float64
		for _, v := range col.Vector {
			sumSq += v * v
		}
		rms := math.Sqrt(sumSq / float64(len(col.Vector)))
		if rms == 0 {
			col.Fact = 1
			continue
		}
		col.Fact = rms
		for k := range col.Vector {
			col.Vector[k] /= rms
		}
	}
	return nil
}
