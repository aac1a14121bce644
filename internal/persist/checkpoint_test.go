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

package persist_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhaven/loom/internal/bytecode"
	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/persist"
	"github.com/loomhaven/loom/internal/symtab"
	"github.com/loomhaven/loom/internal/value"
)

// TestCheckpointRoundTrip covers the pieces of the round-trip this
// package owns: globals, containment, verbs, and the prototype table
// all survive a write/read cycle into a completely fresh store, with
// clones recreated from the prototype table at their original handles.
func TestCheckpointRoundTrip(t *testing.T) {
	store := object.NewStore()
	proto := object.NewPrototype("/room.c")
	proto.OwnGlobals = []string{"name", "link"}
	proto.TotalGlobals = 2
	proto.GlobalSizes["name"] = 0
	proto.GlobalSizes["link"] = 0
	proto.AncestorBase[proto] = 0
	proto.AddFunction(&object.Function{
		Name:      "describe",
		NumLocals: 1,
		Code: []bytecode.Instr{
			{Op: bytecode.OpGlobalLValue, Arg1: 0, Arg2: 0, Line: 1},
			{Op: bytecode.OpGlobalRef, Arg1: 0, Arg2: 0, Line: 1},
			{Op: bytecode.OpReturn, Line: 1},
		},
	})
	store.InstallPrototypeObject(proto)
	store.RegisterPrototype(proto)

	a := store.Clone(proto)
	b := store.Clone(proto)
	a.Globals[0] = value.String("foyer")
	b.Globals[0] = value.String("hall")
	// Object-typed slot plus its back-reference, as an ordinary
	// assignment would leave them.
	a.Globals[1] = value.Object(b.Handle)
	store.AddBackRef(b, a.Handle, 1)
	b.Verbs = append(b.Verbs, object.Verb{Word: "look", Func: "do_look", Exact: true})
	store.Move(b, a.Handle)

	syms := symtab.New()
	syms.Set("motd", "welcome")

	ckpt := persist.NewCheckpoint(store, syms)
	dir := t.TempDir()
	path := filepath.Join(dir, "loom.db")
	require.NoError(t, ckpt.Write(path, 1000, nil, nil, nil))

	store2 := object.NewStore()
	syms2 := symtab.New()

	result, err := persist.Read(path, store2, syms2)
	require.NoError(t, err)
	require.Equal(t, int64(1000), result.DbTop)

	val, ok := syms2.Get("motd")
	require.True(t, ok)
	require.Equal(t, "welcome", val)

	restoredA, ok := store2.Get(a.Handle)
	require.True(t, ok)
	require.Equal(t, "foyer", restoredA.Globals[0].Str())
	require.Equal(t, b.Handle, restoredA.Globals[1].ObjectHandle())

	restoredB, ok := store2.Get(b.Handle)
	require.True(t, ok)
	require.Equal(t, "hall", restoredB.Globals[0].Str())
	require.Equal(t, a.Handle, restoredB.Location)
	require.Equal(t, []object.Verb{{Word: "look", Func: "do_look", Exact: true}}, restoredB.Verbs)
	// The back-reference list is rebuilt from the restored globals, so
	// destructing b still finds and nulls a's slot.
	require.Equal(t, []object.BackRef{{Holder: a.Handle, Slot: 1}}, restoredB.BackRefs)

	require.Contains(t, result.Prototype, "/room.c")
	restoredProto := result.Prototype["/room.c"]
	require.Len(t, restoredProto.Functions, 1)
	require.Equal(t, "describe", restoredProto.Functions[0].Name)
	require.Len(t, restoredProto.Functions[0].Code, 3)
	require.Equal(t, bytecode.OpReturn, restoredProto.Functions[0].Code[2].Op)
}

func TestCheckpointMissingMarkerRefusesToLoad(t *testing.T) {
	store := object.NewStore()
	syms := symtab.New()
	ckpt := persist.NewCheckpoint(store, syms)
	dir := t.TempDir()
	path := filepath.Join(dir, "loom.db")
	require.NoError(t, ckpt.Write(path, 1, nil, nil, nil))

	truncated := path + ".bad"
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(truncated, data[:len(data)-20], 0o644))

	_, err = persist.Read(truncated, object.NewStore(), symtab.New())
	require.Error(t, err)
}
