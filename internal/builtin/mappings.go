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
	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vm"
)

func registerMappings(t *Table) {
	t.register("keys", biKeys)
	t.register("values", biValues)
	t.register("map_delete", biMapDelete)
	t.register("member", biMember)
}

func biKeys(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	mp := arg(args, 0).Mapping()
	if mp == nil {
		return value.ArrayVal(value.NewArray(nil, value.Unlimited)), nil
	}
	return value.ArrayVal(value.NewArray(mp.Keys(), value.Unlimited)), nil
}

func biValues(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	mp := arg(args, 0).Mapping()
	if mp == nil {
		return value.ArrayVal(value.NewArray(nil, value.Unlimited)), nil
	}
	return value.ArrayVal(value.NewArray(mp.Values(), value.Unlimited)), nil
}

func biMapDelete(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	mp := arg(args, 0).Mapping()
	if mp == nil {
		return value.Int(0), nil
	}
	return boolInt(mp.Delete(arg(args, 1))), nil
}

func biMember(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	mp := arg(args, 0).Mapping()
	if mp == nil {
		return value.Zero(), nil
	}
	return mp.Member(arg(args, 1)), nil
}
