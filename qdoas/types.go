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

// Package qdoas assembles the leaf packages (numeric, specrange, slit,
// linsys, fitprops, xsection, curfit, kurucz, workspace) into
// the analysis engine itself: the per-window configuration record, the
// forward model, and the driver that turns one measured record into
// slant columns and nuisance parameters for every configured window.
package qdoas

import "math"

// FillDouble is the sentinel written to a floating-point output field
// when the record or window failed to analyse.
const FillDouble = -9999.0

// FillInt is the sentinel written to an integer output field when the
// record or window failed to analyse.
const FillInt = -9999

// Geometry carries the per-record viewing and solar geometry handed to
// the driver alongside the spectrum itself.
type Geometry struct {
	SZA, VZA, SAA, VAA float64
	Lat, Lon, Altitude float64
	CornerLat, CornerLon [4]float64
	Scanning, Compass, Pitch, Roll float64
	HasAttitude bool
}

// RowQuality carries the per-row and per-pixel usability flags that
// come from the instrument reader, ahead of any analysis.
type RowQuality struct {
	UseRow         bool
	RejectedPixels []bool // indexed like Record.Lambda/Spectrum; true means reject
}

// Record is one (record, row) measurement as delivered by an
// instrument reader: the full-detector spectrum plus the geometry and
// quality flags the driver needs to decide whether and how to
// analyse it. Lambda/Spectrum/SigmaSpec/Irrad are all full-NDET
// vectors; the analysis window narrows them to its own pixel range
// via specrange.
type Record struct {
	Lambda        []float64
	Spectrum      []float64
	SigmaSpec     []float64 // optional, nil if not delivered
	InstrFunction []float64 // optional
	DarkCurrent   []float64 // optional
	Offset        []float64 // optional
	Irrad         []float64 // optional
	LambdaIrrad   []float64 // optional, paired with Irrad

	Geometry Geometry
	Quality  RowQuality
}

// NDET returns the detector size of the record.
func (r *Record) NDET() int { return len(r.Lambda) }

// rms computes the root-mean-square of v, used by the driver for the
// per-window RMS output field.
func rms(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	return math.Sqrt(sumSq / float64(len(v)))
}
