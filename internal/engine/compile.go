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

package engine

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/loomhaven/loom/internal/compiler"
	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/value"
)

// StdIncludeRoot is where `#include <x>` resolves inside the mudlib
// mirror, two include forms.
const StdIncludeRoot = "/include"

// LoadMudlib implements lexer.Loader over the filesystem mirror:
// `#include "x"` resolves relative to the mudlib root. Loads run with
// the bootstrap-privileged caller, since the compiler is driver
// machinery, not user code.
func (e *Engine) LoadMudlib(path string) (string, error) {
	data, err := e.Mirror.ReadFile(path, value.InvalidHandle)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LoadStandard implements lexer.Loader for `#include <x>`.
func (e *Engine) LoadStandard(path string) (string, error) {
	return e.LoadMudlib(StdIncludeRoot + "/" + strings.TrimPrefix(path, "/"))
}

// ResolvePrototype implements compiler.Resolver: an `inherit "path"`
// retrieves the named prototype from the process-wide cache or
// compiles it on the spot, "Inherit resolution".
func (e *Engine) ResolvePrototype(path string) (*object.Prototype, error) {
	return e.CompileObject(path)
}

// LookupBuiltin implements compiler.Resolver.
func (e *Engine) LookupBuiltin(name string) (int32, bool) {
	return e.Builtins.LookupBuiltin(name)
}

// CompileObject implements builtin.Compiler: compile path's source
// into a prototype (or return the already-installed one), install its
// proto object, and run the mudlib-visible init if defined. A
// compile error leaves nothing installed.
func (e *Engine) CompileObject(path string) (*object.Prototype, error) {
	if proto, ok := e.Store.PrototypeByPath(path); ok {
		return proto, nil
	}
	src, err := e.LoadMudlib(path)
	if err != nil {
		return nil, errors.Wrapf(err, "engine: load %s", path)
	}
	c := compiler.New(path, src, e, e)
	proto, err := c.Compile()
	if err != nil {
		return nil, err
	}
	e.Store.RegisterPrototype(proto)
	protoObj := e.Store.InstallPrototypeObject(proto)
	e.touch(protoObj)
	if fn, owner, _, ok := proto.Resolve("init"); ok {
		e.Machine.Invoke(protoObj, protoObj, protoObj, fn, owner, nil)
	}
	return proto, nil
}

// CompileString implements builtin.Compiler: code is compiled as a
// one-function program and the resulting function grafted onto
// definingProto's function table, where FUNC_NAME late binding can
// find it. The string must contain exactly one function definition.
func (e *Engine) CompileString(code string, definingProto *object.Prototype) (*object.Function, error) {
	c := compiler.New(definingProto.Path+"#string", code, e, e)
	proto, err := c.Compile()
	if err != nil {
		return nil, err
	}
	if len(proto.Functions) != 1 {
		return nil, errors.Errorf("engine: compile_string wants exactly one function, got %d", len(proto.Functions))
	}
	if len(proto.OwnGlobals) != 0 || len(proto.Inherits) != 0 {
		return nil, errors.New("engine: compile_string accepts only a bare function")
	}
	fn := proto.Functions[0]
	definingProto.AddFunction(fn)
	return fn, nil
}
