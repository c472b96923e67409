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

// Package numeric provides the vector, spline and matrix-loading
// primitives shared by the rest of the analysis engine.
package numeric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Norm returns the Euclidean (L2) norm of v.
func Norm(v []float64) float64 {
	return math.Sqrt(floats.Dot(v, v))
}

// Normalise divides v in place by its L2 norm and returns the norm that
// was divided out. If the norm is zero, v is left untouched and zero is
// returned.
func Normalise(v []float64) float64 {
	n := Norm(v)
	if n == 0 {
		return 0
	}
	floats.Scale(1/n, v)
	return n
}

// Log replaces each element of v with its natural logarithm, writing into
// dst (which may alias v).
func Log(dst, v []float64) {
	for i, x := range v {
		dst[i] = math.Log(x)
	}
}

// LinInterp linearly interpolates the table (x,y) at xi. x must be sorted
// ascending. Values of xi outside [x[0], x[len(x)-1]] are clamped to the
// nearest endpoint.
func LinInterp(x, y []float64, xi float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("numeric: LinInterp: len(x)=%d != len(y)=%d", len(x), len(y))
	}
	if len(x) == 0 {
		return 0, fmt.Errorf("numeric: LinInterp: empty table")
	}
	if xi <= x[0] {
		return y[0], nil
	}
	if xi >= x[len(x)-1] {
		return y[len(x)-1], nil
	}
	i := 0
	for i < len(x)-1 && x[i+1] < xi {
		i++
	}
	dx := x[i+1] - x[i]
	if dx == 0 {
		return y[i], nil
	}
	t := (xi - x[i]) / dx
	return y[i]*(1-t) + y[i+1]*t, nil
}
