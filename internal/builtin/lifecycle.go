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
	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vm"
)

func registerLifecycle(t *Table) {
	t.register("this_object", biThisObject)
	t.register("this_player", biThisPlayer)
	t.register("caller_object", biCallerObject)
	t.register("clone_object", biCloneObject)
	t.register("destruct", biDestruct)
	t.register("move_object", biMoveObject)
	t.register("prototype", biPrototype)
	t.register("parent", biParent)
	t.register("next_child", biNextChild)
	t.register("next_proto", biNextProto)
	t.register("contents", biContents)
	t.register("all_inventory", biAllInventory)
	t.register("location", biLocation)
	t.register("next_object", biNextObject)
	t.register("children", biChildren)
	t.register("objects", biObjects)
}

func objHandleOf(v value.Value) object.Handle {
	if !v.IsObject() {
		return object.InvalidHandle
	}
	return v.ObjectHandle()
}

func biThisObject(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	o := m.CurrentObject()
	if o == nil {
		return value.Object(object.InvalidHandle), nil
	}
	return value.Object(o.Handle), nil
}

func biThisPlayer(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	o := m.CurrentPlayer()
	if o == nil {
		return value.Object(object.InvalidHandle), nil
	}
	return value.Object(o.Handle), nil
}

func biCallerObject(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	o := m.CurrentCaller()
	if o == nil {
		return value.Object(object.InvalidHandle), nil
	}
	return value.Object(o.Handle), nil
}

// biCloneObject resolves args[0] (a filename) against an
// already-installed prototype first, falling back to t.Compiler when
// the path hasn't been compiled yet (inherit resolution uses
// the identical resolve-or-compile order for inherited paths).
func biCloneObject(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	path := arg(args, 0).Str()
	proto, ok := m.Store.PrototypeByPath(path)
	if !ok {
		if t.Compiler == nil {
			return value.Object(object.InvalidHandle), nil
		}
		var err error
		proto, err = t.Compiler.CompileObject(path)
		if err != nil || proto == nil {
			return value.Object(object.InvalidHandle), nil
		}
	}
	clone := m.Store.Clone(proto)
	// "Creation": the user-visible init runs on the fresh clone.
	if fn, owner, _, ok := proto.Resolve("init"); ok {
		if _, err := m.Call(clone, m.CurrentPlayer(), m.CurrentObject(), fn, owner, nil); err != nil {
			return value.Object(clone.Handle), err
		}
	}
	return value.Object(clone.Handle), nil
}

// biDestruct implements "Destruction". With a scheduler wired,
// destruction is queued and drained at the next phase boundary so the
// current handler keeps a valid this_object; standalone (tests, no
// engine) it runs immediately, cascading a prototype through every
// clone first.
func biDestruct(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok {
		return value.Int(0), nil
	}
	if t.Scheduler != nil {
		t.Scheduler.QueueDestruct(obj.Handle)
		return value.Int(1), nil
	}
	if obj.HasFlag(object.FlagPrototype) {
		for _, h := range m.Store.ClonesOf(obj.Proto) {
			if clone, ok := m.Store.Get(h); ok {
				m.Store.DestructOne(clone, nil)
			}
		}
	}
	m.Store.DestructOne(obj, nil)
	return value.Int(1), nil
}

func biMoveObject(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok {
		return value.Int(0), nil
	}
	dest := objHandleOf(arg(args, 1))
	m.Store.Move(obj, dest)
	return value.Int(1), nil
}

func biPrototype(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok {
		return value.Object(object.InvalidHandle), nil
	}
	return value.Object(obj.Proto.Handle), nil
}

// biParent returns the representative object of the first program this
// object's prototype inherits, the "defining ancestor" refers to
// for the single-inheritance-chain case.
func biParent(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok || len(obj.Proto.Inherits) == 0 {
		return value.Object(object.InvalidHandle), nil
	}
	return value.Object(obj.Proto.Inherits[0].Parent.Handle), nil
}

func biNextChild(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok {
		return value.Object(object.InvalidHandle), nil
	}
	return value.Object(obj.NextChild), nil
}

// biNextProto walks the store's prototype registration order, used to
// enumerate every loaded program (e.g. for an `objects`-like admin
// listing restricted to prototypes).
func biNextProto(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok {
		return value.Object(object.InvalidHandle), nil
	}
	protos := m.Store.Prototypes()
	for i, p := range protos {
		if p == obj.Proto && i+1 < len(protos) {
			return value.Object(protos[i+1].Handle), nil
		}
	}
	return value.Object(object.InvalidHandle), nil
}

func biContents(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok {
		return value.ArrayVal(value.NewArray(nil, value.Unlimited)), nil
	}
	var out []value.Value
	for cur, ok := m.Store.Get(obj.Contents); ok; cur, ok = m.Store.Get(cur.NextObject) {
		out = append(out, value.Object(cur.Handle))
	}
	return value.ArrayVal(value.NewArray(out, value.Unlimited)), nil
}

// biAllInventory is biContents recursed into every contained object's
// own contents, depth-first.
func biAllInventory(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok {
		return value.ArrayVal(value.NewArray(nil, value.Unlimited)), nil
	}
	var out []value.Value
	var walk func(h object.Handle)
	walk = func(h object.Handle) {
		for cur, ok := m.Store.Get(h); ok; cur, ok = m.Store.Get(cur.NextObject) {
			out = append(out, value.Object(cur.Handle))
			walk(cur.Contents)
		}
	}
	walk(obj.Contents)
	return value.ArrayVal(value.NewArray(out, value.Unlimited)), nil
}

func biLocation(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok {
		return value.Object(object.InvalidHandle), nil
	}
	return value.Object(obj.Location), nil
}

func biNextObject(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok {
		return value.Object(object.InvalidHandle), nil
	}
	return value.Object(obj.NextObject), nil
}

func biChildren(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok {
		return value.ArrayVal(value.NewArray(nil, value.Unlimited)), nil
	}
	var out []value.Value
	for _, h := range m.Store.ClonesOf(obj.Proto) {
		out = append(out, value.Object(h))
	}
	return value.ArrayVal(value.NewArray(out, value.Unlimited)), nil
}

func biObjects(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	handles := m.Store.LiveHandles()
	out := make([]value.Value, len(handles))
	for i, h := range handles {
		out[i] = value.Object(h)
	}
	return value.ArrayVal(value.NewArray(out, value.Unlimited)), nil
}
