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

// Package vm implements the stack-machine interpreter: it
// walks a bytecode.Instr stream maintaining an operand stack and a
// local-slot vector per call frame, resolves l-values generically on
// read, and unwinds the whole call chain on a runtime error, returning
// integer 0 to the scheduler after logging a traceback.
package vm

import (
	"fmt"

	"github.com/loomhaven/loom/internal/bytecode"
	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/value"
)

// Syscalls dispatches the built-in function table, indexed by
// the same ordinal the compiler encoded as OpSyscallBase+index. Kept
// as an interface here (rather than importing internal/builtin
// directly) so internal/engine can wire internal/builtin's real
// implementations in without vm depending on builtin, which would
// otherwise need to depend on vm to invoke user-defined callbacks —
// an import cycle. See DESIGN.md.
type Syscalls interface {
	Call(m *Machine, index int32, args []value.Value) (value.Value, error)
}

// RuntimeError is a "runtime error": the kind of failure that
// unwinds the current call chain, logs a traceback, and is replaced by
// integer 0 at the scheduler boundary. It is a plain Go error — the
// unwind is ordinary Go error propagation through the recursive call
// chain, not a panic.
type RuntimeError struct {
	Message    string
	Traceback  []Frame
}

func (e *RuntimeError) Error() string { return e.Message }

// Frame is a snapshot of one call-stack entry, used for the traceback
// a runtime error logs.
type Frame struct {
	Object   object.Handle
	Function string
	Line     int
}

// Machine is the interpreter: it holds no long-lived state of
// its own beyond the object store and the syscall table — the operand
// stack and locals live per call frame on the Go call stack, matching
// a tree-walking evaluator's natural recursion.
type Machine struct {
	Store    *object.Store
	Syscalls Syscalls
	Log      func(format string, args ...interface{})

	// HardLimit bounds instructions executed since Invoke was entered;
	// SoftLimit bounds instructions executed since the current command
	// began. Zero means unlimited. Both reset at the top of Invoke,
	// "Cycle limits".
	HardLimit int64
	SoftLimit int64

	hardCount int64
	softCount int64

	// current is the frame a builtin syscall is running under, set by
	// execSyscall for the duration of the call so Syscalls.Call can
	// answer this_object/this_player/caller_object without vm exposing
	// the unexported frame type itself.
	current *frame
}

func New(store *object.Store, sys Syscalls) *Machine {
	return &Machine{Store: store, Syscalls: sys, Log: func(string, ...interface{}) {}}
}

// Invoke is the externally scheduled entry point (cycle counters
// reset at the top of every externally scheduled invocation): the
// scheduler calls this once per command or alarm
// fire. A runtime error anywhere in the resulting call chain is
// caught here, logged with its traceback, and converted to integer 0;
// no error ever escapes the interpreter to the event loop.
func (m *Machine) Invoke(obj, player, caller *object.Object, fn *object.Function, proto *object.Prototype, args []value.Value) value.Value {
	m.hardCount = 0
	m.softCount = 0
	result, err := m.callFunction(obj, player, caller, proto, fn, args)
	if err != nil {
		m.logError(err)
		return value.Zero()
	}
	return result
}

// Call invokes fn directly without resetting cycle counters, used by
// the builtin table (e.g. alarm callbacks it schedules inline) when it
// needs to re-enter the interpreter mid-invocation. Errors propagate
// to the caller, same as any nested call.
func (m *Machine) Call(obj, player, caller *object.Object, fn *object.Function, proto *object.Prototype, args []value.Value) (value.Value, error) {
	return m.callFunction(obj, player, caller, proto, fn, args)
}

// CurrentObject, CurrentPlayer, and CurrentCaller answer this_object(),
// this_player(), and caller_object() for whichever frame is currently
// invoking a builtin syscall. Nil outside of a syscall.
func (m *Machine) CurrentObject() *object.Object {
	if m.current == nil {
		return nil
	}
	return m.current.object
}

func (m *Machine) CurrentPlayer() *object.Object {
	if m.current == nil {
		return nil
	}
	return m.current.player
}

func (m *Machine) CurrentCaller() *object.Object {
	if m.current == nil {
		return nil
	}
	return m.current.caller
}

func (m *Machine) logError(err error) {
	if rt, ok := err.(*RuntimeError); ok {
		m.Log("runtime error: %s", rt.Message)
		for _, f := range rt.Traceback {
			m.Log("  at #%d:%s line %d", f.Object, f.Function, f.Line)
		}
		return
	}
	m.Log("runtime error: %v", err)
}

func (m *Machine) callFunction(obj, player, caller *object.Object, definingProto *object.Prototype, fn *object.Function, args []value.Value) (value.Value, error) {
	f := &frame{
		object:        obj,
		player:        player,
		caller:        caller,
		definingProto: definingProto,
		fn:            fn,
		locals:        make([]value.Value, fn.NumLocals),
	}
	for i := range f.locals {
		if i < len(args) {
			f.locals[i] = args[i]
		} else {
			f.locals[i] = value.Zero()
		}
	}
	return m.run(f)
}

func (m *Machine) wrapError(f *frame, err error) error {
	if _, ok := err.(*RuntimeError); ok {
		return err
	}
	return &RuntimeError{
		Message: err.Error(),
		Traceback: []Frame{{
			Object:   f.object.Handle,
			Function: f.fn.Name,
			Line:     f.line,
		}},
	}
}

func errf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// opcodeErrFor wraps an out-of-range bytecode index, which should be
// impossible given a compiler-produced stream but is checked rather
// than trusted, since the interpreter may one day run code restored
// from a checkpoint produced by a different compiler version.
func opcodeErrFor(op bytecode.Op) error {
	return errf("vm: unhandled opcode %d", op)
}
