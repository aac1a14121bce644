// Copyright 2026 The Loomhaven Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Loom is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Loom. If not, see <http://www.gnu.org/licenses/>.

package value

import "errors"

// Unlimited marks an array whose declaration was an unsized form
// (`T *v` or `T v[]`), "Heap array".
const Unlimited int64 = -1

var (
	ErrOutOfBounds = errors.New("array index out of bounds")
	ErrFixedSize   = errors.New("array index exceeds declared max size")
)

// Array is the heap array: a contiguous, bounds-checked,
// reference-counted sequence of values with a declared upper bound.
type Array struct {
	elems    []Value
	maxSize  int64
	refcount int32
}

// NewArray builds an array from an initial element set (used for
// array literal lowering) with the given declared
// max size (Unlimited for `T *v`/`T v[]`).
func NewArray(initial []Value, maxSize int64) *Array {
	elems := make([]Value, len(initial))
	copy(elems, initial)
	return &Array{elems: elems, maxSize: maxSize, refcount: 1}
}

func (a *Array) Size() int64 { return int64(len(a.elems)) }

func (a *Array) MaxSize() int64 { return a.maxSize }

// Get returns the element at i, bounds-checked against the current
// logical size (the growth rule applies to writes, not reads;
// reads never grow the array).
func (a *Array) Get(i int64) (Value, error) {
	if i < 0 || i >= int64(len(a.elems)) {
		return Value{}, ErrOutOfBounds
	}
	return a.elems[i], nil
}

// Set writes index i, growing the backing slice (and initializing any
// newly created intermediate cells to integer 0) when i is within
// maxSize but beyond the current size. Writes at i >= maxSize fail
// without mutating the array.
func (a *Array) Set(i int64, v Value) error {
	if i < 0 {
		return ErrOutOfBounds
	}
	if a.maxSize != Unlimited && i >= a.maxSize {
		return ErrFixedSize
	}
	if i >= int64(len(a.elems)) {
		grown := make([]Value, i+1)
		copy(grown, a.elems)
		for j := int64(len(a.elems)); j < i; j++ {
			grown[j] = Zero()
		}
		a.elems = grown
	}
	ClearVar(a.elems[i])
	Retain(v)
	a.elems[i] = v
	return nil
}

func (a *Array) Retain()  { a.refcount++ }
func (a *Array) Release() {
	a.refcount--
	if a.refcount <= 0 {
		for _, e := range a.elems {
			ClearVar(e)
		}
		a.elems = nil
	}
}

func (a *Array) RefCount() int32 { return a.refcount }

// Slice returns a read-only view of the backing elements, used by
// builtins (sizeof, sort_array, reverse, member_array, unique_array,
// implode) that need to iterate without mutating.
func (a *Array) Slice() []Value { return a.elems }
