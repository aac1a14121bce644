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

package object_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/value"
)

// TestDestructionNullsInboundSlots: destructing an object clears
// every slot that pointed at it and dirties each holder.
func TestDestructionNullsInboundSlots(t *testing.T) {
	s := object.NewStore()
	protoA := object.NewPrototype("/a")
	protoA.TotalGlobals = 3
	protoA.AncestorBase[protoA] = 0
	protoB := object.NewPrototype("/b")
	protoB.TotalGlobals = 1
	protoB.AncestorBase[protoB] = 0

	s.InstallPrototypeObject(protoA)
	s.InstallPrototypeObject(protoB)
	a := s.Clone(protoA)
	b := s.Clone(protoB)

	a.Globals[2] = value.Object(b.Handle)
	s.AddBackRef(b, a.Handle, 2)

	var dirtied *object.Object
	s.DestructOne(b, func(o *object.Object) { dirtied = o })

	require.Equal(t, value.KindInt, a.Globals[2].Kind())
	require.Equal(t, int64(0), a.Globals[2].Int())
	require.Same(t, a, dirtied)
	require.Equal(t, object.StateDirty, a.State)
}

func TestCloneGlobalsLengthMatchesInvariant1(t *testing.T) {
	s := object.NewStore()
	base := object.NewPrototype("/base")
	base.OwnGlobals = []string{"x"}
	base.TotalGlobals = 1
	base.AncestorBase[base] = 0

	child := object.NewPrototype("/child")
	child.OwnGlobals = []string{"y", "z"}
	child.Inherits = []*object.InheritEntry{{Alias: "base", Path: "/base", Parent: base, VarBase: 0}}
	child.AncestorBase[base] = 0
	child.AncestorBase[child] = 1
	child.TotalGlobals = 3

	s.InstallPrototypeObject(child)
	obj := s.Clone(child)
	require.Len(t, obj.Globals, 3)
}

// TestContainmentAndAttachmentChainsAreIndependent guards against the
// two intrusive lists sharing a link field: an object both
// contained in a location and attached to an unrelated host must keep
// its containment siblings intact regardless of attach/detach churn.
func TestContainmentAndAttachmentChainsAreIndependent(t *testing.T) {
	s := object.NewStore()
	proto := object.NewPrototype("/p")
	proto.TotalGlobals = 0
	proto.AncestorBase[proto] = 0
	s.InstallPrototypeObject(proto)

	room := s.Clone(proto)
	wearer := s.Clone(proto)
	sibling := s.Clone(proto)
	host := s.Clone(proto)
	item := s.Clone(proto)

	s.Move(wearer, room.Handle)
	s.Move(sibling, room.Handle)
	s.Move(item, room.Handle)

	s.Attach(host, item)

	require.Equal(t, host.Handle, item.Attacher)
	require.Equal(t, item.Handle, host.Attachees)

	var contents []object.Handle
	for cur, ok := s.Get(room.Contents); ok; cur, ok = s.Get(cur.NextObject) {
		contents = append(contents, cur.Handle)
	}
	require.ElementsMatch(t, []object.Handle{wearer.Handle, sibling.Handle, item.Handle}, contents)

	s.Detach(item)
	require.Equal(t, object.InvalidHandle, item.Attacher)

	contents = nil
	for cur, ok := s.Get(room.Contents); ok; cur, ok = s.Get(cur.NextObject) {
		contents = append(contents, cur.Handle)
	}
	require.ElementsMatch(t, []object.Handle{wearer.Handle, sibling.Handle, item.Handle}, contents)
}

func TestHandlesAreReusedAfterDestruct(t *testing.T) {
	s := object.NewStore()
	proto := object.NewPrototype("/p")
	proto.TotalGlobals = 1
	proto.AncestorBase[proto] = 0

	s.InstallPrototypeObject(proto)
	first := s.Clone(proto)
	h := first.Handle
	s.DestructOne(first, nil)

	_, ok := s.Get(h)
	require.False(t, ok)
	require.False(t, s.IsLive(h))

	second := s.Clone(proto)
	require.Equal(t, h, second.Handle)
	require.True(t, s.IsLive(h))
}
