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

// Package symtab implements the process-wide string-key -> string-value
// interned table described and exposed to the
// embedded language through the table_get/table_set/table_delete
// builtins.
package symtab

import "sort"

// Table is a process-wide interned string map, persisted as a section
// of the checkpoint.
type Table struct {
	entries map[string]string
}

func New() *Table {
	return &Table{entries: make(map[string]string)}
}

func (t *Table) Get(key string) (string, bool) {
	v, ok := t.entries[key]
	return v, ok
}

func (t *Table) Set(key, val string) {
	t.entries[key] = val
}

func (t *Table) Delete(key string) bool {
	if _, ok := t.entries[key]; !ok {
		return false
	}
	delete(t.entries, key)
	return true
}

func (t *Table) Len() int { return len(t.entries) }

// Pairs returns (key, value) pairs in a deterministic, sorted-by-key
// order, matching the "pairs of key/value" checkpoint section layout
// described so that two serializations of the same table are
// byte-identical.
func (t *Table) Pairs() [][2]string {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][2]string, len(keys))
	for i, k := range keys {
		out[i] = [2]string{k, t.entries[k]}
	}
	return out
}

// LoadPairs replaces the table's contents, used by checkpoint restore.
func (t *Table) LoadPairs(pairs [][2]string) {
	t.entries = make(map[string]string, len(pairs))
	for _, p := range pairs {
		t.entries[p[0]] = p[1]
	}
}
