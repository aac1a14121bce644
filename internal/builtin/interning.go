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

// registerInterning wires table_get/table_set/table_delete to the
// process-wide symbol table, shared with the checkpoint
// writer via internal/symtab.
func registerInterning(t *Table) {
	t.register("table_get", biTableGet)
	t.register("table_set", biTableSet)
	t.register("table_delete", biTableDelete)
}

func biTableGet(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Syms == nil {
		return value.String(""), nil
	}
	v, ok := t.Syms.Get(arg(args, 0).Str())
	if !ok {
		return value.String(""), nil
	}
	return value.String(v), nil
}

func biTableSet(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Syms == nil {
		return value.Int(0), nil
	}
	t.Syms.Set(arg(args, 0).Str(), arg(args, 1).Str())
	return value.Int(1), nil
}

func biTableDelete(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Syms == nil {
		return value.Int(0), nil
	}
	return boolInt(t.Syms.Delete(arg(args, 0).Str())), nil
}
