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
	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vm"
)

// registerSysctl wires privileged-control group: sysctl's
// sub-operations onto internal/engine through the Sysctl seam, plus the
// three free-standing utility builtins typeof/random/compile_*.
func registerSysctl(t *Table) {
	t.register("sysctl", biSysctl)
	t.register("typeof", biTypeof)
	t.register("random", biRandom)
	t.register("compile_object", biCompileObject)
	t.register("compile_string", biCompileString)
}

// Sub-operation codes for sysctl's first argument, "privileged
// control": an integer selector rather than a string, matching the
// driver's SC_* convention.
const (
	sysctlSave             = 0
	sysctlShutdown         = 1
	sysctlGracefulShutdown = 2
	sysctlPendingCommands  = 3
	sysctlPendingAlarms    = 4
	sysctlVersion          = 5
)

func biSysctl(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Sysctl == nil {
		return value.Int(0), nil
	}
	switch arg(args, 0).Int() {
	case sysctlSave:
		return boolInt(t.Sysctl.Save()), nil
	case sysctlShutdown:
		t.Sysctl.Shutdown(false)
		return value.Int(1), nil
	case sysctlGracefulShutdown:
		t.Sysctl.Shutdown(true)
		return value.Int(1), nil
	case sysctlPendingCommands:
		return value.Int(t.Sysctl.PendingCommands()), nil
	case sysctlPendingAlarms:
		return value.Int(t.Sysctl.PendingAlarms()), nil
	case sysctlVersion:
		return value.String(t.Sysctl.Version()), nil
	default:
		return value.Int(0), nil
	}
}

// Type tags for typeof, matching enumeration order (int, string,
// object, array, mapping, function-name).
const (
	typeInt = iota
	typeString
	typeObject
	typeArray
	typeMapping
	typeFuncName
)

func biTypeof(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	switch arg(args, 0).Kind() {
	case value.KindInt:
		return value.Int(typeInt), nil
	case value.KindString:
		return value.Int(typeString), nil
	case value.KindObject:
		return value.Int(typeObject), nil
	case value.KindArray:
		return value.Int(typeArray), nil
	case value.KindMapping:
		return value.Int(typeMapping), nil
	case value.KindFuncName:
		return value.Int(typeFuncName), nil
	default:
		return value.Int(-1), nil
	}
}

// biRandom returns an integer in [0, n) for random(n), or [0, maxint)
// for random with no argument, "random".
func biRandom(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	n := arg(args, 0).Int()
	if n <= 0 {
		return value.Int(t.Rand.Int63()), nil
	}
	return value.Int(t.Rand.Int63n(n)), nil
}

func biCompileObject(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Compiler == nil {
		return value.Int(0), nil
	}
	proto, err := t.Compiler.CompileObject(arg(args, 0).Str())
	if err != nil || proto == nil {
		return value.Int(0), nil
	}
	o := m.Store.Clone(proto)
	return value.Object(o.Handle), nil
}

func biCompileString(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Compiler == nil {
		return value.Int(0), nil
	}
	o := m.CurrentObject()
	if o == nil {
		return value.Int(0), nil
	}
	fn, err := t.Compiler.CompileString(arg(args, 0).Str(), o.Proto)
	if err != nil || fn == nil {
		return value.Int(0), nil
	}
	return value.FuncName(fn.Name), nil
}
