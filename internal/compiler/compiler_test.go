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

package compiler_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhaven/loom/internal/bytecode"
	"github.com/loomhaven/loom/internal/compiler"
	"github.com/loomhaven/loom/internal/object"
)

// fakeResolver serves a fixed set of already-compiled prototypes and a
// fixed set of builtin names, so tests don't need the lexer's
// #include machinery or the real builtin table.
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
	return proto
}

func TestCompileSimpleGlobalAndFunction(t *testing.T) {
	resolver := newFakeResolver()
	src := `
int counter;

int bump(int by) {
    counter = counter + by;
    return counter;
}
`
	proto := compile(t, resolver, "/room.c", src)
	require.Equal(t, []string{"counter"}, proto.OwnGlobals)
	require.EqualValues(t, 1, proto.TotalGlobals)

	fn, idx, ok := proto.FindFunction("bump")
	require.True(t, ok)
	require.Equal(t, 0, idx)
	require.EqualValues(t, 1, fn.NumLocals)
	require.NotEmpty(t, fn.Code)

	var sawReturn bool
	for _, instr := range fn.Code {
		if instr.Op == bytecode.OpReturn {
			sawReturn = true
		}
	}
	require.True(t, sawReturn)
}

func TestCompileRejectsAncestorShadowing(t *testing.T) {
	resolver := newFakeResolver()
	base := object.NewPrototype("/base.c")
	base.OwnGlobals = []string{"hp"}
	base.GlobalSizes["hp"] = 0
	base.AncestorBase[base] = 0
	base.TotalGlobals = 1
	base.MRO = []*object.Prototype{base}
	resolver.protos["/base.c"] = base

	src := `
inherit "/base.c";
int hp;
`
	c := compiler.New("/child.c", src, nil, resolver)
	_, err := c.Compile()
	require.Error(t, err)
	require.Contains(t, err.Error(), "already defined in ancestor")
}

func TestCompileInheritedCallAndSuper(t *testing.T) {
	resolver := newFakeResolver()
	base := object.NewPrototype("/base.c")
	base.AncestorBase[base] = 0
	base.MRO = []*object.Prototype{base}
	base.AddFunction(&object.Function{Name: "greet", NumLocals: 0})
	resolver.protos["/base.c"] = base

	src := `
inherit "/base.c";

int greet() {
    return ::greet();
}
`
	proto := compile(t, resolver, "/child.c", src)
	fn, _, ok := proto.FindFunction("greet")
	require.True(t, ok)

	var sawSuper bool
	for _, instr := range fn.Code {
		if instr.Op == bytecode.OpCallSuper {
			sawSuper = true
			require.EqualValues(t, 0, instr.Arg1) // inherit slot 0
			require.Equal(t, "greet", instr.Str)
		}
	}
	require.True(t, sawSuper)
}

func TestCompileCallResolutionOrder(t *testing.T) {
	resolver := newFakeResolver()
	resolver.builtins["tell_object"] = 7

	src := `
int helper() { return 1; }

int run() {
    helper();
    tell_object();
    unknown_function();
    return 0;
}
`
	proto := compile(t, resolver, "/test.c", src)
	fn, _, ok := proto.FindFunction("run")
	require.True(t, ok)

	var sawFuncCall, sawSyscall, sawFuncName bool
	for _, instr := range fn.Code {
		switch instr.Op {
		case bytecode.OpFuncCall:
			sawFuncCall = true
		case bytecode.OpFuncName:
			sawFuncName = true
			require.Equal(t, "unknown_function", instr.Str)
		}
		if int(instr.Op) == int(bytecode.OpSyscallBase)+7 {
			sawSyscall = true
		}
	}
	require.True(t, sawFuncCall)
	require.True(t, sawSyscall)
	require.True(t, sawFuncName)
}

func TestCompileIfElseBranchesArePatched(t *testing.T) {
	resolver := newFakeResolver()
	src := `
int pick(int x) {
    if (x) {
        return 1;
    } else {
        return 2;
    }
}
`
	proto := compile(t, resolver, "/test.c", src)
	fn, _, ok := proto.FindFunction("pick")
	require.True(t, ok)
	for _, instr := range fn.Code {
		if instr.Op == bytecode.OpBranch || instr.Op == bytecode.OpJump {
			require.Greater(t, int(instr.Arg1), 0)
			require.LessOrEqual(t, int(instr.Arg1), len(fn.Code))
		}
	}
}

func TestCompileArrayAndMappingLiterals(t *testing.T) {
	resolver := newFakeResolver()
	src := `
mixed *nums() { return ({ 1, 2, 3 }); }
mapping scores() { return ([ "a": 1, "b": 2 ]); }
`
	proto := compile(t, resolver, "/test.c", src)

	nums, _, ok := proto.FindFunction("nums")
	require.True(t, ok)
	require.True(t, containsOp(nums.Code, bytecode.OpArrayLiteral))

	scores, _, ok := proto.FindFunction("scores")
	require.True(t, ok)
	require.True(t, containsOp(scores.Code, bytecode.OpMappingLiteral))
}

func containsOp(code []bytecode.Instr, op bytecode.Op) bool {
	for _, i := range code {
		if i.Op == op {
			return true
		}
	}
	return false
}
