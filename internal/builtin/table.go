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

// Package builtin implements the built-in function surface: a
// fixed table of 97 distinct entries (102 names counting aliases), indexed by the same ordinal the
// compiler encodes as OpSyscallBase+index (internal/compiler's
// Resolver.LookupBuiltin and internal/vm's Syscalls both resolve
// against this one Table). Grouped into families across the files in
// this package the way itself groups them: object lifecycle, verbs
// and input routing, scheduling, connections, strings, arrays,
// mappings, persistence, filesystem, interning, and privileged
// control.
//
// Builtins that need something outside the interpreter/object-store
// pair — the scheduler's alarm queue, the telnet layer's connection
// table, the compiler — reach it through a small interface on Table,
// left nil until internal/engine wires the real implementation in, the
// same seam internal/cache uses for Codec/TransactionLog.
package builtin

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/symtab"
	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vfs"
	"github.com/loomhaven/loom/internal/vm"
)

// Fn is one built-in's implementation. t gives it access to the
// optional seams (Mirror, Syms, Scheduler...); m gives it the
// machine (CurrentObject/CurrentPlayer/CurrentCaller answer
// this_object/this_player/caller_object, and re-entrant Call lets a
// builtin such as command invoke a mudlib function).
type Fn func(t *Table, m *vm.Machine, args []value.Value) (value.Value, error)

type entry struct {
	name string
	fn   Fn
}

// Scheduler is the seam to internal/engine's alarm/command queue
// (ordered by deadline). Nil until engine wires it in; alarm
// builtins degrade to returning failure rather than panicking.
type Scheduler interface {
	ScheduleAlarm(target object.Handle, fn string, delaySeconds int64) int64
	CancelAlarm(id int64) bool
	// QueueDestruct defers destruction to the scheduler's next drain
	// point(Destruction (queued, drained by handle_destruct)),
	// so an object can destruct itself mid-handler safely.
	QueueDestruct(h object.Handle)
}

// Connections is the seam to internal/telnet's device table. Nil
// until telnet wires it in.
type Connections interface {
	SetInteractive(h object.Handle, enable bool) bool
	IsInteractive(h object.Handle) bool
	DeviceConn(h object.Handle) string
	DevicePort(h object.Handle) int64
	DeviceNet(h object.Handle) string
	Send(h object.Handle, text string) bool
	Flush(h object.Handle) bool
	Disconnect(h object.Handle) bool
	Reconnect(h object.Handle, target object.Handle) bool
	ConnectDevice(h object.Handle, target object.Handle) bool
	DeviceIdle(h object.Handle) int64
	ConnTime(h object.Handle) int64
	NextWho(prev object.Handle) object.Handle
}

// Compiler is the seam to internal/engine's compile-and-install
// pipeline, for compile_object/compile_string.
type Compiler interface {
	CompileObject(path string) (*object.Prototype, error)
	CompileString(code string, definingProto *object.Prototype) (*object.Function, error)
}

// SysctlHost is the seam for sysctl's privileged sub-operations that
// touch process-wide state outside this package: checkpoint-on-demand,
// shutdown, and pending-queue introspection(privileged control).
type SysctlHost interface {
	Save() bool
	Shutdown(graceful bool)
	PendingCommands() int64
	PendingAlarms() int64
	Version() string
}

// Table is the built-in function registry: name -> ordinal -> Fn. It
// satisfies both compiler.Resolver's LookupBuiltin and vm.Syscalls'
// Call, so the same value wires into both packages.
type Table struct {
	entries []entry
	index   map[string]int32

	Mirror      *vfs.Mirror
	Syms        *symtab.Table
	Scheduler   Scheduler
	Connections Connections
	Compiler    Compiler
	Sysctl      SysctlHost

	Rand *rand.Rand
	Now  func() time.Time
}

// New builds a Table with every builtin in this package registered.
func New() *Table {
	t := &Table{
		index: make(map[string]int32),
		Rand:  rand.New(rand.NewSource(1)),
		Now:   time.Now,
	}
	registerLifecycle(t)
	registerVerbs(t)
	registerSchedule(t)
	registerConnection(t)
	registerStrings(t)
	registerArrays(t)
	registerMappings(t)
	registerPersistence(t)
	registerFilesystem(t)
	registerInterning(t)
	registerSysctl(t)
	return t
}

func (t *Table) register(name string, fn Fn) {
	if _, exists := t.index[name]; exists {
		panic("builtin: duplicate registration for " + name)
	}
	idx := int32(len(t.entries))
	t.entries = append(t.entries, entry{name: name, fn: fn})
	t.index[name] = idx
}

// alias registers name as a synonym of an already-registered builtin,
// for the dual-named entries (rm/remove, mv/rename...).
func (t *Table) alias(name, of string) {
	idx, ok := t.index[of]
	if !ok {
		panic("builtin: alias target " + of + " not registered")
	}
	t.index[name] = idx
}

// LookupBuiltin satisfies internal/compiler's Resolver.
func (t *Table) LookupBuiltin(name string) (int32, bool) {
	idx, ok := t.index[name]
	return idx, ok
}

// Len reports the number of distinct built-in slots (aliases share a
// slot with their target and don't add one).
func (t *Table) Len() int { return len(t.entries) }

// Call satisfies internal/vm's Syscalls.
func (t *Table) Call(m *vm.Machine, index int32, args []value.Value) (value.Value, error) {
	if index < 0 || int(index) >= len(t.entries) {
		return value.Value{}, fmt.Errorf("builtin: index %d out of range", index)
	}
	return t.entries[index].fn(t, m, args)
}

// arg returns args[i], or integer 0 if the call was made with fewer
// arguments than the builtin expects — matching the permissive
// argument-count handling real LPC drivers use rather than raising a
// runtime error for a merely-short call.
func arg(args []value.Value, i int) value.Value {
	if i < 0 || i >= len(args) {
		return value.Zero()
	}
	return args[i]
}

func boolInt(b bool) value.Value {
	if b {
		return value.Int(1)
	}
	return value.Int(0)
}
