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
	"strings"

	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/persist"
	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vm"
)

// registerPersistence wires save_value/restore_value (textual
// LPC-literal form) and save_object/restore_object/restore_map (one
// `name value` line per global, through the same codec) to
// internal/persist.
func registerPersistence(t *Table) {
	t.register("save_value", biSaveValue)
	t.register("restore_value", biRestoreValue)
	t.register("save_object", biSaveObject)
	t.register("restore_object", biRestoreObject)
	t.register("restore_map", biRestoreMap)
}

func biSaveValue(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	s, err := persist.SaveValue(arg(args, 0), m.Store)
	if err != nil {
		return value.String(""), nil
	}
	return value.String(s), nil
}

func biRestoreValue(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	v, err := persist.RestoreValue(arg(args, 0).Str(), m.Store)
	if err != nil {
		return value.Zero(), nil
	}
	return v, nil
}

// globalNames maps each absolute global slot index of proto to the
// declaring ancestor's variable name, inverting AncestorBase + each
// ancestor's OwnGlobals the same way the compiler's own global
// resolution does (internal/compiler/resolve.go).
func globalNames(proto *object.Prototype) []string {
	names := make([]string, proto.TotalGlobals)
	for anc, base := range proto.AncestorBase {
		for i, name := range anc.OwnGlobals {
			slot := int(base) + i
			if slot >= 0 && slot < len(names) {
				names[slot] = name
			}
		}
	}
	return names
}

// biSaveObject writes this_object's globals to a mirror file, one
// `name value` line per slot, value in save_value form.
func biSaveObject(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Int(0), nil
	}
	o := m.CurrentObject()
	if o == nil {
		return value.Int(0), nil
	}
	names := globalNames(o.Proto)
	var sb strings.Builder
	for i, name := range names {
		if name == "" || i >= len(o.Globals) {
			continue
		}
		encoded, err := persist.SaveValue(o.Globals[i], m.Store)
		if err != nil {
			continue
		}
		sb.WriteString(name)
		sb.WriteByte(' ')
		sb.WriteString(encoded)
		sb.WriteByte('\n')
	}
	path := arg(args, 0).Str()
	if err := t.Mirror.WriteFile(path, o.Handle, []byte(sb.String())); err != nil {
		return value.Int(0), nil
	}
	return value.Int(1), nil
}

// biRestoreObject reads back a save_object file, assigning each named
// line to the matching global slot on this_object.
func biRestoreObject(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Int(0), nil
	}
	o := m.CurrentObject()
	if o == nil {
		return value.Int(0), nil
	}
	data, err := t.Mirror.ReadFile(arg(args, 0).Str(), o.Handle)
	if err != nil {
		return value.Int(0), nil
	}
	names := globalNames(o.Proto)
	slotOf := make(map[string]int, len(names))
	for i, name := range names {
		if name != "" {
			slotOf[name] = i
		}
	}
	for _, line := range strings.Split(string(data), "\n") {
		name, rest, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		slot, known := slotOf[name]
		if !known || slot >= len(o.Globals) {
			continue
		}
		v, err := persist.RestoreValue(rest, m.Store)
		if err != nil {
			continue
		}
		// Same bookkeeping as an ordinary global assignment: drop the
		// old value's back-reference, add the new one.
		old := o.Globals[slot]
		if old.IsObject() && old.ObjectHandle() != object.InvalidHandle {
			if target, ok := m.Store.Get(old.ObjectHandle()); ok {
				m.Store.RemoveBackRef(target, o.Handle, int32(slot))
			}
		}
		value.ClearVar(old)
		value.Retain(v)
		o.Globals[slot] = v
		if v.IsObject() && v.ObjectHandle() != object.InvalidHandle {
			if target, ok := m.Store.Get(v.ObjectHandle()); ok {
				m.Store.AddBackRef(target, o.Handle, int32(slot))
			}
		}
	}
	o.Dirty()
	return value.Int(1), nil
}

// biRestoreMap reads a save_object-format file directly into a mapping
// of name -> restored value, without needing a live object to assign
// into(restore_map).
func biRestoreMap(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Zero(), nil
	}
	data, err := t.Mirror.ReadFile(arg(args, 0).Str(), callerHandle(m))
	if err != nil {
		return value.Zero(), nil
	}
	mp := value.EmptyMapping()
	for _, line := range strings.Split(string(data), "\n") {
		name, rest, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		v, err := persist.RestoreValue(rest, m.Store)
		if err != nil {
			continue
		}
		mp.Set(value.String(name), v)
	}
	return value.MappingVal(mp), nil
}
