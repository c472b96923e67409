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

// Package specrange implements the analysis window's pixel-range
// bookkeeping: a linked list of closed, disjoint intervals describing
// which detector pixels participate in a fit.
package specrange

// Interval is one closed pixel range [Start,End] in a Range's list.
type Interval struct {
	Start, End int
	next       *Interval
}

// Range is a linked list of closed pixel intervals, in insertion order.
type Range struct {
	first *Interval
}

// New returns an empty Range.
func New() *Range {
	return &Range{}
}

// Append adds a new interval [start,end] at the tail of the list.
func (r *Range) Append(start, end int) {
	last := &r.first
	for *last != nil {
		last = &(*last).next
	}
	*last = &Interval{Start: start, End: end}
}

// RemovePixel removes a single pixel from whichever interval contains it.
// It reports whether the pixel was found. Depending on the pixel's
// position within its interval this either shrinks an edge, deletes a
// singleton interval, or splits the interval in two.
func (r *Range) RemovePixel(pixel int) bool {
	prev := &r.first
	cur := r.first
	for cur != nil && !(cur.Start <= pixel && cur.End >= pixel) {
		prev = &cur.next
		cur = cur.next
	}
	if cur == nil {
		return false
	}
	switch {
	case pixel == cur.Start:
		if cur.Start != cur.End {
			cur.Start = pixel + 1
		} else {
			*prev = cur.next
		}
	case pixel == cur.End:
		cur.End = pixel - 1
	default:
		tail := &Interval{Start: pixel + 1, End: cur.End, next: cur.next}
		cur.next = tail
		cur.End = pixel - 1
	}
	return true
}

// Copy deep-copies r.
func (r *Range) Copy() *Range {
	out := New()
	next := &out.first
	for cur := r.first; cur != nil; cur = cur.next {
		*next = &Interval{Start: cur.Start, End: cur.End}
		next = &(*next).next
	}
	return out
}

// Length returns the number of pixels covered by all intervals.
func (r *Range) Length() int {
	n := 0
	for cur := r.first; cur != nil; cur = cur.next {
		n += cur.End - cur.Start + 1
	}
	return n
}

// NumWindows returns the number of intervals (sub-ranges) in r.
func (r *Range) NumWindows() int {
	n := 0
	for cur := r.first; cur != nil; cur = cur.next {
		n++
	}
	return n
}

// Start returns the first pixel of the range, or -1 if r is empty.
func (r *Range) Start() int {
	if r.first == nil {
		return -1
	}
	return r.first.Start
}

// End returns the last pixel of the range, or -1 if r is empty.
func (r *Range) End() int {
	result := -1
	for cur := r.first; cur != nil; cur = cur.next {
		result = cur.End
	}
	return result
}

// Intervals returns the intervals of r in order, for callers that need
// direct interval access (e.g. Kurucz sub-window partitioning).
func (r *Range) Intervals() []Interval {
	var out []Interval
	for cur := r.first; cur != nil; cur = cur.next {
		out = append(out, Interval{Start: cur.Start, End: cur.End})
	}
	return out
}

// Equal reports whether r and other have the same ordered sequence of
// intervals.
func (r *Range) Equal(other *Range) bool {
	a, b := r.first, other.first
	for {
		switch {
		case a == nil && b == nil:
			return true
		case a == nil || b == nil:
			return false
		case a.Start != b.Start || a.End != b.End:
			return false
		}
		a, b = a.next, b.next
	}
}

// Iterator walks the pixels of a Range in insertion order, skipping gaps
// between intervals.
type Iterator struct {
	current *Interval
	pixel   int
	started bool
}

// NewIterator returns an Iterator positioned at the first pixel of r, and
// the pixel itself. ok is false if r is empty.
func (r *Range) NewIterator() (it *Iterator, pixel int, ok bool) {
	if r.first == nil {
		return &Iterator{}, 0, false
	}
	it = &Iterator{current: r.first, pixel: r.first.Start, started: true}
	return it, it.pixel, true
}

// Next advances the iterator and returns the next pixel. ok is false once
// the range is exhausted.
func (it *Iterator) Next() (pixel int, ok bool) {
	if it.current == nil {
		return 0, false
	}
	if it.pixel != it.current.End {
		it.pixel++
		return it.pixel, true
	}
	if it.current.next != nil {
		it.current = it.current.next
		it.pixel = it.current.Start
		return it.pixel, true
	}
	return 0, false
}

// Pixels materialises all pixels enumerated by r, in order.
func (r *Range) Pixels() []int {
	it, p, ok := r.NewIterator()
	if !ok {
		return nil
	}
	out := []int{p}
	for {
		p, ok = it.Next()
		if !ok {
			break
		}
		out = append(out, p)
	}
	return out
}
