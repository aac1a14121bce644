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
	"github.com/loomhaven/loom/internal/bytecode"
	"github.com/loomhaven/loom/internal/value"
)

// popArgs pops n already-evaluated call arguments off the operand
// stack, left to right, dereferencing l-values as it goes:
// arguments are ordinary operands by the time the call opcode runs.
func (f *frame) popArgs(m *Machine, n int) ([]value.Value, error) {
	args := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := f.popOperand(m)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// execFuncCall implements FUNC_CALL: a name resolved at compile time
// to a function defined directly in the program being compiled, so
// the callee's defining prototype is the same f.definingProto the
// caller runs under.
func (m *Machine) execFuncCall(f *frame, instr bytecode.Instr) (value.Value, error) {
	idx := int(instr.Arg1)
	if idx < 0 || idx >= len(f.definingProto.Functions) {
		return value.Value{}, errf("vm: func_call index %d out of range", idx)
	}
	args, err := f.popArgs(m, int(instr.Arg2))
	if err != nil {
		return value.Value{}, err
	}
	fn := f.definingProto.Functions[idx]
	return m.Call(f.object, f.player, f.caller, fn, f.definingProto, args)
}

// execFuncName implements FUNC_NAME: a bare call the compiler could
// not resolve locally, late-bound against the calling object's own
// effective prototype (own functions plus everything it inherits),
// "Calls"' third resolution step.
func (m *Machine) execFuncName(f *frame, instr bytecode.Instr) (value.Value, error) {
	args, err := f.popArgs(m, int(instr.Arg1))
	if err != nil {
		return value.Value{}, err
	}
	fn, owner, _, ok := f.object.Proto.Resolve(instr.Str)
	if !ok {
		return value.Value{}, errf("vm: no function %q found on #%d", instr.Str, f.object.Handle)
	}
	return m.Call(f.object, f.player, f.caller, fn, owner, args)
}

// execCallOther implements CALL_OTHER (`target->name(args...)`):
// cross-object dispatch against the target's own effective prototype,
// the one case where dereferencing a destructed object is itself the
// runtime error rather than silently yielding zero.
func (m *Machine) execCallOther(f *frame, instr bytecode.Instr) (value.Value, error) {
	args, err := f.popArgs(m, int(instr.Arg1))
	if err != nil {
		return value.Value{}, err
	}
	nameVal, err := f.popOperand(m)
	if err != nil {
		return value.Value{}, err
	}
	targetVal, err := f.popOperand(m)
	if err != nil {
		return value.Value{}, err
	}
	if !targetVal.IsObject() {
		return value.Value{}, errf("vm: call_other target is not an object")
	}
	target, ok := m.Store.Get(targetVal.ObjectHandle())
	if !ok {
		return value.Value{}, errf("vm: call_other to destructed or invalid object #%d", targetVal.ObjectHandle())
	}
	fn, owner, _, ok := target.Proto.Resolve(nameVal.Str())
	if !ok {
		return value.Value{}, errf("vm: no function %q found on #%d", nameVal.Str(), target.Handle)
	}
	return m.Call(target, f.player, f.object, fn, owner, args)
}

// execCallSuper implements both CALL_SUPER (`::name(...)`) and
// CALL_PARENT_NAMED (`Alias::name(...)`): the inherit branch is
// resolved at compile time into Arg1, but which ancestor along that
// branch defines the name is resolved here via the parent's own MRO
// (Prototype.Resolve), since a grandparent may be the actual definer
// (the inherit-list slot is fixed at emit time; the function is
// found at dispatch time).
func (m *Machine) execCallSuper(f *frame, instr bytecode.Instr) (value.Value, error) {
	inheritIdx := int(instr.Arg1)
	if inheritIdx < 0 || inheritIdx >= len(f.definingProto.Inherits) {
		return value.Value{}, errf("vm: super dispatch inherit index %d out of range", inheritIdx)
	}
	parent := f.definingProto.Inherits[inheritIdx].Parent
	fn, owner, _, ok := parent.Resolve(instr.Str)
	if !ok {
		return value.Value{}, errf("vm: no function %q found via super dispatch", instr.Str)
	}
	args, err := f.popArgs(m, int(instr.Arg3))
	if err != nil {
		return value.Value{}, err
	}
	return m.Call(f.object, f.player, f.caller, fn, owner, args)
}

// execSyscall dispatches to the built-in function table (family
// 8,): the real opcode encodes NumOpers + builtin index.
func (m *Machine) execSyscall(f *frame, instr bytecode.Instr) (value.Value, error) {
	if m.Syscalls == nil {
		return value.Value{}, errf("vm: no syscall table installed")
	}
	idx := int32(instr.Op) - int32(bytecode.OpSyscallBase)
	args, err := f.popArgs(m, int(instr.Arg1))
	if err != nil {
		return value.Value{}, err
	}
	prev := m.current
	m.current = f
	result, callErr := m.Syscalls.Call(m, idx, args)
	m.current = prev
	return result, callErr
}
