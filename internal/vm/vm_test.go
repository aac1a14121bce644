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

package vm_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhaven/loom/internal/compiler"
	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vm"
)

// fakeResolver mirrors the compiler package's test double: a fixed set
// of already-compiled prototypes and builtin names, so these tests
// don't need the lexer's #include machinery or a real builtin table.
type fakeResolver struct {
	protos   map[string]*object.Prototype
	builtins map[string]int32
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{protos: make(map[string]*object.Prototype), builtins: make(map[string]int32)}
}

func (f *fakeResolver) ResolvePrototype(path string) (*object.Prototype, error) {
	p, ok := f.protos[path]
	if !ok {
		return nil, fmt.Errorf("no such prototype: %s", path)
	}
	return p, nil
}

func (f *fakeResolver) LookupBuiltin(name string) (int32, bool) {
	idx, ok := f.builtins[name]
	return idx, ok
}

func compile(t *testing.T, resolver *fakeResolver, path, src string) *object.Prototype {
	t.Helper()
	c := compiler.New(path, src, nil, resolver)
	proto, err := c.Compile()
	require.NoError(t, err)
	resolver.protos[path] = proto
	return proto
}

// nullSyscalls answers every builtin with integer 0, enough for tests
// that don't exercise family 8 directly.
type nullSyscalls struct{}

func (nullSyscalls) Call(m *vm.Machine, index int32, args []value.Value) (value.Value, error) {
	return value.Zero(), nil
}

// TestArithmeticAndLocals covers the basic "compile, clone, call"
// path: a function using locals and arithmetic, invoked through the
// scheduler entry point.
func TestArithmeticAndLocals(t *testing.T) {
	resolver := newFakeResolver()
	src := `
int add(int a, int b) {
    int sum;
    sum = a + b;
    return sum;
}
`
	proto := compile(t, resolver, "/math.c", src)
	store := object.NewStore()
	store.InstallPrototypeObject(proto)
	obj := store.Clone(proto)

	fn, _, ok := proto.FindFunction("add")
	require.True(t, ok)

	m := vm.New(store, nullSyscalls{})
	result := m.Invoke(obj, obj, obj, fn, proto, []value.Value{value.Int(3), value.Int(4)})
	require.Equal(t, int64(7), result.Int())
}

// TestGlobalAssignmentDirtiesObject covers family 5: assigning to a
// global marks the object dirty and a later read sees the write.
func TestGlobalAssignmentDirtiesObject(t *testing.T) {
	resolver := newFakeResolver()
	src := `
int counter;

int bump() {
    counter = counter + 1;
    return counter;
}
`
	proto := compile(t, resolver, "/counter.c", src)
	store := object.NewStore()
	store.InstallPrototypeObject(proto)
	obj := store.Clone(proto)
	obj.State = object.StateInCache

	fn, _, ok := proto.FindFunction("bump")
	require.True(t, ok)

	m := vm.New(store, nullSyscalls{})
	first := m.Invoke(obj, obj, obj, fn, proto, nil)
	require.Equal(t, int64(1), first.Int())
	require.Equal(t, object.StateDirty, obj.State)

	obj.State = object.StateInCache
	second := m.Invoke(obj, obj, obj, fn, proto, nil)
	require.Equal(t, int64(2), second.Int())
}

// TestInheritanceAndSuperDispatch: a child overrides
// a parent function, calls ::name() to reach the parent's version, and
// a grandchild's ::name() still reaches the direct parent (not the
// grandparent) by walking the parent's own MRO at dispatch time.
func TestInheritanceAndSuperDispatch(t *testing.T) {
	resolver := newFakeResolver()
	compile(t, resolver, "/base.c", `
int greeting;

int greet() {
    greeting = 1;
    return greeting;
}
`)
	compile(t, resolver, "/child.c", `
inherit "/base.c";

int greet() {
    return ::greet() + 10;
}
`)
	childProto := compile(t, resolver, "/grandchild.c", `
inherit "/child.c";

int greet() {
    return ::greet() + 100;
}
`)

	store := object.NewStore()
	baseProto, _ := resolver.ResolvePrototype("/base.c")
	childOnlyProto, _ := resolver.ResolvePrototype("/child.c")
	store.InstallPrototypeObject(baseProto)
	store.InstallPrototypeObject(childOnlyProto)
	store.InstallPrototypeObject(childProto)

	obj := store.Clone(childProto)
	fn, _, ok := childProto.FindFunction("greet")
	require.True(t, ok)

	m := vm.New(store, nullSyscalls{})
	result := m.Invoke(obj, obj, obj, fn, childProto, nil)
	// grandchild's greet: ::greet() dispatches to child.c's greet (111 =
	// 1 (base) + 10 (child) + 100 (grandchild)), not straight to base.c.
	require.Equal(t, int64(111), result.Int())
}

// TestCallOtherCrossObjectDispatch covers CALL_OTHER: a call into a
// live target's function that writes the target's own global.
func TestCallOtherCrossObjectDispatch(t *testing.T) {
	resolver := newFakeResolver()
	targetProto := compile(t, resolver, "/target.c", `
int value;

int set(int v) {
    value = v;
    return value;
}
`)
	callerProto := compile(t, resolver, "/caller.c", `
int poke(object t, int v) {
    return t->set(v);
}
`)

	store := object.NewStore()
	store.InstallPrototypeObject(targetProto)
	store.InstallPrototypeObject(callerProto)
	target := store.Clone(targetProto)
	caller := store.Clone(callerProto)

	fn, _, ok := callerProto.FindFunction("poke")
	require.True(t, ok)

	m := vm.New(store, nullSyscalls{})
	result := m.Invoke(caller, caller, caller, fn, callerProto, []value.Value{value.Object(target.Handle), value.Int(42)})
	require.Equal(t, int64(42), result.Int())
	require.Equal(t, int64(42), target.Globals[0].Int())
}

// TestArrayAndMappingSubscriptAssignment covers family 3's
// autovivification and family 5's container-element assignment.
func TestArrayAndMappingSubscriptAssignment(t *testing.T) {
	resolver := newFakeResolver()
	src := `
mapping scores;
int *items;

int record(string name, int score) {
    scores[name] = score;
    items[0] = score;
    return scores[name] + items[0];
}
`
	proto := compile(t, resolver, "/record.c", src)
	store := object.NewStore()
	store.InstallPrototypeObject(proto)
	obj := store.Clone(proto)

	fn, _, ok := proto.FindFunction("record")
	require.True(t, ok)

	m := vm.New(store, nullSyscalls{})
	result := m.Invoke(obj, obj, obj, fn, proto, []value.Value{value.String("alice"), value.Int(5)})
	require.Equal(t, int64(10), result.Int())
}

// TestHardCycleLimitUnwindsToZero covers "no error escapes the
// interpreter": an infinite loop hits the hard limit and Invoke
// returns 0 rather than hanging or propagating the error.
func TestHardCycleLimitUnwindsToZero(t *testing.T) {
	resolver := newFakeResolver()
	src := `
int spin() {
    int i;
    while (1) {
        i = i + 1;
    }
    return i;
}
`
	proto := compile(t, resolver, "/spin.c", src)
	store := object.NewStore()
	store.InstallPrototypeObject(proto)
	obj := store.Clone(proto)

	fn, _, ok := proto.FindFunction("spin")
	require.True(t, ok)

	m := vm.New(store, nullSyscalls{})
	m.HardLimit = 1000
	result := m.Invoke(obj, obj, obj, fn, proto, nil)
	require.Equal(t, int64(0), result.Int())
}
