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

package builtin_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/loomhaven/loom/internal/builtin"
	"github.com/loomhaven/loom/internal/compiler"
	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/symtab"
	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vfs"
	"github.com/loomhaven/loom/internal/vm"
)

func call(t *testing.T, tbl *builtin.Table, m *vm.Machine, name string, args ...value.Value) value.Value {
	t.Helper()
	idx, ok := tbl.LookupBuiltin(name)
	require.True(t, ok, "builtin %s not registered", name)
	result, err := tbl.Call(m, idx, args)
	require.NoError(t, err)
	return result
}

func TestArrayBuiltins(t *testing.T) {
	tbl := builtin.New()
	store := object.NewStore()
	m := vm.New(store, tbl)

	arr := value.ArrayVal(value.NewArray([]value.Value{value.Int(3), value.Int(1), value.Int(2), value.Int(1)}, value.Unlimited))

	require.Equal(t, int64(4), call(t, tbl, m, "sizeof", arr).Int())
	require.Equal(t, int64(1), call(t, tbl, m, "member_array", value.Int(1), arr).Int())

	sorted := call(t, tbl, m, "sort_array", arr)
	require.Equal(t, []int64{1, 1, 2, 3}, toInts(sorted))

	reversed := call(t, tbl, m, "reverse", arr)
	require.Equal(t, []int64{1, 2, 1, 3}, toInts(reversed))

	unique := call(t, tbl, m, "unique_array", arr)
	require.Equal(t, []int64{3, 1, 2}, toInts(unique))
}

func toInts(v value.Value) []int64 {
	out := make([]int64, 0)
	for _, e := range v.Array().Slice() {
		out = append(out, e.Int())
	}
	return out
}

func TestMappingBuiltins(t *testing.T) {
	tbl := builtin.New()
	store := object.NewStore()
	m := vm.New(store, tbl)

	mp := value.EmptyMapping()
	mp.Set(value.String("hp"), value.Int(10))
	mp.Set(value.String("mp"), value.Int(5))
	mpv := value.MappingVal(mp)

	require.Equal(t, int64(10), call(t, tbl, m, "member", mpv, value.String("hp")).Int())
	require.Equal(t, 2, len(call(t, tbl, m, "keys", mpv).Array().Slice()))
	require.Equal(t, int64(1), call(t, tbl, m, "map_delete", mpv, value.String("mp")).Int())
	require.Equal(t, 1, len(call(t, tbl, m, "values", mpv).Array().Slice()))
}

func TestStringBuiltins(t *testing.T) {
	tbl := builtin.New()
	store := object.NewStore()
	m := vm.New(store, tbl)

	require.Equal(t, "ell", call(t, tbl, m, "midstr", value.String("hello"), value.Int(1), value.Int(3)).Str())
	require.Equal(t, "he", call(t, tbl, m, "leftstr", value.String("hello"), value.Int(2)).Str())
	require.Equal(t, "llo", call(t, tbl, m, "rightstr", value.String("hello"), value.Int(3)).Str())
	require.Equal(t, int64(5), call(t, tbl, m, "strlen", value.String("hello")).Int())
	require.Equal(t, "HELLO", call(t, tbl, m, "upcase", value.String("hello")).Str())
	require.Equal(t, "a-b-c", call(t, tbl, m, "sprintf", value.String("%s-%s-%s"), value.String("a"), value.String("b"), value.String("c")).Str())

	exploded := call(t, tbl, m, "explode", value.String("a,b,c"), value.String(","))
	require.Equal(t, 3, len(exploded.Array().Slice()))
	require.Equal(t, "a,b,c", call(t, tbl, m, "implode", exploded, value.String(",")).Str())
}

func TestInterningBuiltins(t *testing.T) {
	tbl := builtin.New()
	tbl.Syms = symtab.New()
	store := object.NewStore()
	m := vm.New(store, tbl)

	require.Equal(t, int64(1), call(t, tbl, m, "table_set", value.String("name"), value.String("Loom")).Int())
	require.Equal(t, "Loom", call(t, tbl, m, "table_get", value.String("name")).Str())
	require.Equal(t, int64(1), call(t, tbl, m, "table_delete", value.String("name")).Int())
	require.Equal(t, "", call(t, tbl, m, "table_get", value.String("name")).Str())
}

func TestSysctlTypeofAndRandom(t *testing.T) {
	tbl := builtin.New()
	store := object.NewStore()
	m := vm.New(store, tbl)

	require.Equal(t, int64(0), call(t, tbl, m, "typeof", value.Int(5)).Int())
	require.Equal(t, int64(1), call(t, tbl, m, "typeof", value.String("x")).Int())

	n := call(t, tbl, m, "random", value.Int(10)).Int()
	require.GreaterOrEqual(t, n, int64(0))
	require.Less(t, n, int64(10))
}

// TestFilesystemWriteThenReadRoundTrip calls fwrite/cat directly
// through Table.Call rather than a compiled script, so this_object is
// unset and both builtins attribute ownership to object.InvalidHandle
// — still enough to exercise Mirror.Permit's owner-match path, since
// the writer and reader share that same handle.
func TestFilesystemWriteThenReadRoundTrip(t *testing.T) {
	tbl := builtin.New()
	tbl.Mirror = vfs.New(afero.NewMemMapFs(), "/")
	store := object.NewStore()
	m := vm.New(store, tbl)

	written := call(t, tbl, m, "fwrite", value.String("/notes.txt"), value.String("hello mudlib"))
	require.Equal(t, int64(1), written.Int())
	read := call(t, tbl, m, "cat", value.String("/notes.txt"))
	require.Equal(t, "hello mudlib", read.Str())
}

func TestPersistenceSaveAndRestoreValue(t *testing.T) {
	tbl := builtin.New()
	store := object.NewStore()
	m := vm.New(store, tbl)

	arr := value.ArrayVal(value.NewArray([]value.Value{value.Int(1), value.String("two")}, value.Unlimited))
	saved := call(t, tbl, m, "save_value", arr)
	require.NotEmpty(t, saved.Str())

	restored := call(t, tbl, m, "restore_value", saved)
	require.True(t, restored.IsArray())
	require.Equal(t, int64(1), restored.Array().Slice()[0].Int())
	require.Equal(t, "two", restored.Array().Slice()[1].Str())
}

// TestLifecycleThroughCompiledScript drives this_object() through a
// real compiled function rather than calling builtin.Table.Call
// directly, so Machine.current (set by execSyscall) is populated the
// way production code sees it.
func TestLifecycleThroughCompiledScript(t *testing.T) {
	tbl := builtin.New()
	store := object.NewStore()

	resolver := &fakeBuiltinResolver{table: tbl, protos: make(map[string]*object.Prototype)}
	src := `
object whoami() {
    return this_object();
}
`
	c := compiler.New("/thing.c", src, nil, resolver)
	proto, err := c.Compile()
	require.NoError(t, err)
	resolver.protos["/thing.c"] = proto
	store.InstallPrototypeObject(proto)
	obj := store.Clone(proto)

	fn, _, ok := proto.FindFunction("whoami")
	require.True(t, ok)

	m := vm.New(store, tbl)
	result := m.Invoke(obj, obj, obj, fn, proto, nil)
	require.Equal(t, obj.Handle, result.ObjectHandle())
}

// TestSaveRestoreObjectMaintainsBackRefs drives save_object and
// restore_object through compiled functions: an object-typed global
// written by restore_object carries the same back-reference entry an
// ordinary assignment would create, so destructing the target still
// nulls the restored slot.
func TestSaveRestoreObjectMaintainsBackRefs(t *testing.T) {
	tbl := builtin.New()
	tbl.Mirror = vfs.New(afero.NewMemMapFs(), "/")
	store := object.NewStore()

	resolver := &fakeBuiltinResolver{table: tbl, protos: make(map[string]*object.Prototype)}
	src := `
object pal;

int set_pal(object o) {
    pal = o;
    return 1;
}

int save_me(string path) {
    return save_object(path);
}

int load_me(string path) {
    return restore_object(path);
}
`
	c := compiler.New("/pet.c", src, nil, resolver)
	proto, err := c.Compile()
	require.NoError(t, err)
	resolver.protos["/pet.c"] = proto
	store.InstallPrototypeObject(proto)

	owner := store.Clone(proto)
	buddy := store.Clone(proto)
	m := vm.New(store, tbl)

	fnSet, _, ok := proto.FindFunction("set_pal")
	require.True(t, ok)
	m.Invoke(owner, owner, owner, fnSet, proto, []value.Value{value.Object(buddy.Handle)})
	require.Equal(t, []object.BackRef{{Holder: owner.Handle, Slot: 0}}, buddy.BackRefs)

	fnSave, _, ok := proto.FindFunction("save_me")
	require.True(t, ok)
	saved := m.Invoke(owner, owner, owner, fnSave, proto, []value.Value{value.String("/pet.sav")})
	require.Equal(t, int64(1), saved.Int())

	other := store.Clone(proto)
	fnLoad, _, ok := proto.FindFunction("load_me")
	require.True(t, ok)
	loaded := m.Invoke(other, other, other, fnLoad, proto, []value.Value{value.String("/pet.sav")})
	require.Equal(t, int64(1), loaded.Int())

	require.Equal(t, buddy.Handle, other.Globals[0].ObjectHandle())
	require.Contains(t, buddy.BackRefs, object.BackRef{Holder: other.Handle, Slot: 0})
}

type fakeBuiltinResolver struct {
	table  *builtin.Table
	protos map[string]*object.Prototype
}

func (f *fakeBuiltinResolver) ResolvePrototype(path string) (*object.Prototype, error) {
	p, ok := f.protos[path]
	if !ok {
		return nil, errNoSuchPrototype(path)
	}
	return p, nil
}

func (f *fakeBuiltinResolver) LookupBuiltin(name string) (int32, bool) {
	return f.table.LookupBuiltin(name)
}

type errNoSuchPrototype string

func (e errNoSuchPrototype) Error() string { return "no such prototype: " + string(e) }
