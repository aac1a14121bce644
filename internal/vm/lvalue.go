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

package vm

import (
	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/value"
)

// derefValue resolves v to a plain (non-l-value) operand,
// "the runtime dereferences generically" contract: everything that
// isn't an l-value passes through unchanged.
func (m *Machine) derefValue(f *frame, v value.Value) (value.Value, error) {
	if v.Kind() != value.KindLValue {
		return v, nil
	}
	return m.readLValue(f, v.LValue())
}

// readLValue reads the current value an l-value names, without
// mutating anything.
func (m *Machine) readLValue(f *frame, lv value.LValue) (value.Value, error) {
	switch lv.Kind {
	case value.LocalLValue:
		return f.locals[lv.Index], nil
	case value.GlobalLValue:
		if int(lv.Index) < 0 || int(lv.Index) >= len(f.object.Globals) {
			return value.Value{}, errf("vm: global slot %d out of range (len %d)", lv.Index, len(f.object.Globals))
		}
		return f.object.Globals[lv.Index], nil
	case value.ArrayElemLValue:
		return lv.Arr.Get(lv.ElemIndex)
	case value.MappingKeyLValue:
		return lv.Map.Member(lv.Key), nil
	}
	return value.Value{}, errf("vm: unknown l-value kind %d", lv.Kind)
}

// storeLValue writes val to the slot lv names, performing the
// assignment family's bookkeeping (family 5): clear_var on the
// old value, dirty the owning object, maintain the back-reference list
// whenever a global slot transitions into or out of object type.
func (m *Machine) storeLValue(f *frame, lv value.LValue, val value.Value) (value.Value, error) {
	switch lv.Kind {
	case value.LocalLValue:
		value.ClearVar(f.locals[lv.Index])
		value.Retain(val)
		f.locals[lv.Index] = val
		return val, nil

	case value.GlobalLValue:
		if int(lv.Index) < 0 || int(lv.Index) >= len(f.object.Globals) {
			return value.Value{}, errf("vm: global slot %d out of range (len %d)", lv.Index, len(f.object.Globals))
		}
		old := f.object.Globals[lv.Index]
		if old.IsObject() && old.ObjectHandle() != object.InvalidHandle {
			if target, ok := m.Store.Get(old.ObjectHandle()); ok {
				m.Store.RemoveBackRef(target, f.object.Handle, lv.Index)
			}
		}
		value.ClearVar(old)
		value.Retain(val)
		f.object.Globals[lv.Index] = val
		f.object.Dirty()
		if val.IsObject() && val.ObjectHandle() != object.InvalidHandle {
			if target, ok := m.Store.Get(val.ObjectHandle()); ok {
				m.Store.AddBackRef(target, f.object.Handle, lv.Index)
			}
		}
		return val, nil

	case value.ArrayElemLValue:
		if err := lv.Arr.Set(lv.ElemIndex, val); err != nil {
			return value.Value{}, err
		}
		m.dirtyOwner(lv.OwnerHandle)
		return val, nil

	case value.MappingKeyLValue:
		lv.Map.Set(lv.Key, val)
		m.dirtyOwner(lv.OwnerHandle)
		return val, nil
	}
	return value.Value{}, errf("vm: unknown l-value kind %d", lv.Kind)
}

func (m *Machine) dirtyOwner(h object.Handle) {
	if h == object.InvalidHandle {
		return
	}
	if owner, ok := m.Store.Get(h); ok {
		owner.Dirty()
	}
}

// resolveSubscript implements GLOBAL_REF/LOCAL_REF (family 3):
// pop (base, index, size_marker); size_marker == 0 historically means
// "treat as mapping", but this compiler also emits 0 for unsized
// arrays (expression emission doesn't carry a separate
// array-vs-mapping bit), so the runtime instead inspects the value
// currently held in the slot and falls back to the key's own kind only
// when the slot is as yet unwritten (autovivification target).
func (m *Machine) resolveSubscript(f *frame, base value.Value, key value.Value, sizeMarker int32) (value.LValue, error) {
	if base.Kind() != value.KindLValue {
		return value.LValue{}, errf("vm: subscript base is not an l-value")
	}
	baseLV := base.LValue()
	current, err := m.readLValue(f, baseLV)
	if err != nil {
		return value.LValue{}, err
	}
	owner := ownerOf(baseLV)

	switch current.Kind() {
	case value.KindMapping:
		return value.LValue{Kind: value.MappingKeyLValue, Map: current.Mapping(), Key: key, OwnerHandle: owner}, nil
	case value.KindArray:
		return value.LValue{Kind: value.ArrayElemLValue, Arr: current.Array(), ElemIndex: key.Int(), OwnerHandle: owner}, nil
	default:
		if sizeMarker == 0 && key.Kind() != value.KindInt {
			mp := value.EmptyMapping()
			if _, err := m.storeLValue(f, baseLV, value.MappingVal(mp)); err != nil {
				return value.LValue{}, err
			}
			return value.LValue{Kind: value.MappingKeyLValue, Map: mp, Key: key, OwnerHandle: owner}, nil
		}
		maxSize := value.Unlimited
		if sizeMarker > 0 {
			maxSize = int64(sizeMarker)
		}
		arr := value.NewArray(nil, maxSize)
		if _, err := m.storeLValue(f, baseLV, value.ArrayVal(arr)); err != nil {
			return value.LValue{}, err
		}
		return value.LValue{Kind: value.ArrayElemLValue, Arr: arr, ElemIndex: key.Int(), OwnerHandle: owner}, nil
	}
}

// ownerOf propagates the object a write through this l-value should
// dirty: a global slot's own object, or whichever object a deeper
// container l-value already carries.
func ownerOf(lv value.LValue) object.Handle {
	switch lv.Kind {
	case value.GlobalLValue, value.ArrayElemLValue, value.MappingKeyLValue:
		return lv.OwnerHandle
	default:
		return object.InvalidHandle
	}
}
