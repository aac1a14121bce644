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

import "github.com/cespare/xxhash/v2"

const (
	initialBuckets = 8
	loadFactor     = 0.75
)

// entry is one chained node in a bucket, carrying (key, value, hash,
// next) as "Heap mapping" specifies.
type entry struct {
	key  Value
	val  Value
	hash uint64
	next *entry
}

// Mapping is a hash table with separate chaining.
// Keys are typed: strings hash by bytes (xxhash), integers by a
// bit-mixing function, objects by handle identity. Load factor
// threshold is 0.75; breaching it doubles and rehashes the table.
type Mapping struct {
	buckets  []*entry
	size     int
	refcount int32
}

// NewMapping builds a mapping from parallel key/value slices (used for
// mapping literal lowering).
func NewMapping(keys, vals []Value) *Mapping {
	m := &Mapping{buckets: make([]*entry, initialBuckets), refcount: 1}
	for i := range keys {
		m.Set(keys[i], vals[i])
	}
	return m
}

func EmptyMapping() *Mapping {
	return &Mapping{buckets: make([]*entry, initialBuckets), refcount: 1}
}

// mixInt64 is a 64-bit bit-mixing finalizer (splitmix64 style) used to
// hash integer keys, "bit-mixing function".
func mixInt64(x int64) uint64 {
	u := uint64(x)
	u ^= u >> 30
	u *= 0xbf58476d1ce4e5b9
	u ^= u >> 27
	u *= 0x94d049bb133111eb
	u ^= u >> 31
	return u
}

func hashKey(k Value) uint64 {
	switch k.kind {
	case KindString:
		return xxhash.Sum64String(k.s)
	case KindInt:
		return mixInt64(k.i)
	case KindObject:
		return mixInt64(k.i) ^ 0x5bd1e995
	default:
		return 0
	}
}

func (m *Mapping) Size() int { return m.size }

func (m *Mapping) bucketIndex(h uint64) int {
	return int(h & uint64(len(m.buckets)-1))
}

// Get looks up key, returning (value, true) if present.
func (m *Mapping) Get(key Value) (Value, bool) {
	h := hashKey(key)
	for e := m.buckets[m.bucketIndex(h)]; e != nil; e = e.next {
		if e.hash == h && e.key.Equal(key) {
			return e.val, true
		}
	}
	return Value{}, false
}

// Member mirrors the `member()` builtin: value with default zero.
func (m *Mapping) Member(key Value) Value {
	v, ok := m.Get(key)
	if !ok {
		return Zero()
	}
	return v
}

// Set inserts or replaces key's value, growing the table when the
// load factor threshold (0.75) is breached.
func (m *Mapping) Set(key, val Value) {
	h := hashKey(key)
	idx := m.bucketIndex(h)
	for e := m.buckets[idx]; e != nil; e = e.next {
		if e.hash == h && e.key.Equal(key) {
			ClearVar(e.val)
			Retain(val)
			e.val = val
			return
		}
	}
	Retain(key)
	Retain(val)
	m.buckets[idx] = &entry{key: key, val: val, hash: h, next: m.buckets[idx]}
	m.size++
	if float64(m.size) > loadFactor*float64(len(m.buckets)) {
		m.grow()
	}
}

// Delete removes key, returning whether it was present. Matches
// `map_delete()`.
func (m *Mapping) Delete(key Value) bool {
	h := hashKey(key)
	idx := m.bucketIndex(h)
	var prev *entry
	for e := m.buckets[idx]; e != nil; e = e.next {
		if e.hash == h && e.key.Equal(key) {
			if prev == nil {
				m.buckets[idx] = e.next
			} else {
				prev.next = e.next
			}
			ClearVar(e.key)
			ClearVar(e.val)
			m.size--
			return true
		}
		prev = e
	}
	return false
}

func (m *Mapping) grow() {
	newBuckets := make([]*entry, len(m.buckets)*2)
	for _, head := range m.buckets {
		for e := head; e != nil; {
			next := e.next
			idx := int(e.hash & uint64(len(newBuckets)-1))
			e.next = newBuckets[idx]
			newBuckets[idx] = e
			e = next
		}
	}
	m.buckets = newBuckets
}

// Keys returns every live key, used by `keys()`. Order is
// bucket-major and not declared stable across mutation.
func (m *Mapping) Keys() []Value {
	out := make([]Value, 0, m.size)
	for _, head := range m.buckets {
		for e := head; e != nil; e = e.next {
			out = append(out, e.key)
		}
	}
	return out
}

// Values returns every live value, used by `values()`.
func (m *Mapping) Values() []Value {
	out := make([]Value, 0, m.size)
	for _, head := range m.buckets {
		for e := head; e != nil; e = e.next {
			out = append(out, e.val)
		}
	}
	return out
}

// ChainLengths exposes the per-bucket chain lengths so that the
// mapping-size invariant (Size equals the sum over buckets
// of chain length can be asserted directly by tests.
func (m *Mapping) ChainLengths() []int {
	out := make([]int, len(m.buckets))
	for i, head := range m.buckets {
		n := 0
		for e := head; e != nil; e = e.next {
			n++
		}
		out[i] = n
	}
	return out
}

func (m *Mapping) Retain()  { m.refcount++ }
func (m *Mapping) Release() {
	m.refcount--
	if m.refcount <= 0 {
		for _, head := range m.buckets {
			for e := head; e != nil; e = e.next {
				ClearVar(e.key)
				ClearVar(e.val)
			}
		}
		m.buckets = nil
		m.size = 0
	}
}

func (m *Mapping) RefCount() int32 { return m.refcount }
