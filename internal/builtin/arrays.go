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

package builtin

import (
	"sort"

	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vm"
)

func registerArrays(t *Table) {
	t.register("sizeof", biSizeof)
	t.register("member_array", biMemberArray)
	t.register("sort_array", biSortArray)
	t.register("reverse", biReverse)
	t.register("unique_array", biUniqueArray)
}

// biSizeof overloads across the three container kinds arrays, mappings
// and strings all support a notion of length for, per classic LPC
// convention.
func biSizeof(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	v := arg(args, 0)
	switch v.Kind() {
	case value.KindArray:
		if v.Array() == nil {
			return value.Int(0), nil
		}
		return value.Int(v.Array().Size()), nil
	case value.KindMapping:
		if v.Mapping() == nil {
			return value.Int(0), nil
		}
		return value.Int(int64(v.Mapping().Size())), nil
	case value.KindString:
		return value.Int(int64(len([]rune(v.Str())))), nil
	default:
		return value.Int(0), nil
	}
}

func biMemberArray(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	needle := arg(args, 0)
	a := arg(args, 1).Array()
	if a == nil {
		return value.Int(-1), nil
	}
	for i, v := range a.Slice() {
		if v.Equal(needle) {
			return value.Int(int64(i)), nil
		}
	}
	return value.Int(-1), nil
}

// biSortArray sorts by the natural ordering of integers/strings
// (ascending), since a first-class comparator callback would need
// l-value-free function references this interpreter doesn't expose to
// builtins yet — a documented simplification relative to the
// arbitrary-comparator sort_array of full LPC drivers.
func biSortArray(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	a := arg(args, 0).Array()
	if a == nil {
		return value.ArrayVal(value.NewArray(nil, value.Unlimited)), nil
	}
	out := append([]value.Value(nil), a.Slice()...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsString() && out[j].IsString() {
			return out[i].Str() < out[j].Str()
		}
		return out[i].Int() < out[j].Int()
	})
	return value.ArrayVal(value.NewArray(out, a.MaxSize())), nil
}

func biReverse(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	a := arg(args, 0).Array()
	if a == nil {
		return value.ArrayVal(value.NewArray(nil, value.Unlimited)), nil
	}
	src := a.Slice()
	out := make([]value.Value, len(src))
	for i, v := range src {
		out[len(src)-1-i] = v
	}
	return value.ArrayVal(value.NewArray(out, a.MaxSize())), nil
}

func biUniqueArray(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	a := arg(args, 0).Array()
	if a == nil {
		return value.ArrayVal(value.NewArray(nil, value.Unlimited)), nil
	}
	var out []value.Value
	for _, v := range a.Slice() {
		dup := false
		for _, seen := range out {
			if seen.Equal(v) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return value.ArrayVal(value.NewArray(out, a.MaxSize())), nil
}
