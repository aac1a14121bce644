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

// Package compiler implements the single-pass compiler: it
// tokenizes via the lexer package, resolves `inherit` before locking
// variable layout, and emits bytecode.Instr streams directly as it
// parses each function, with no intermediate AST.
package compiler

import (
	"fmt"
	"path"
	"strings"

	"github.com/loomhaven/loom/internal/bytecode"
	"github.com/loomhaven/loom/internal/lexer"
	"github.com/loomhaven/loom/internal/object"
)

// CompileError is the compile-time error model: the first
// error sets a single-slot message and the offending physical line;
// no partially-built program is ever installed.
type CompileError struct {
	Line    int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Resolver compiles or retrieves (from a process-wide cache) the
// prototype named by an inherited path, "Inherit resolution",
// and looks up built-in (syscall) functions by their canonical name
// for the bare-call resolution order "Calls".
type Resolver interface {
	ResolvePrototype(path string) (*object.Prototype, error)
	LookupBuiltin(name string) (index int32, ok bool)
}

type varDecl struct {
	name    string
	isArray bool
	maxSize int64 // value.Unlimited if unsized
}

type localVar struct {
	name  string
	slot  int32
	size  int64 // declared size hint, mirrors globals' maxSize encoding for l-values
}

// Compiler holds per-compile-unit state. A Compiler is single-use:
// construct one per file via New.
type Compiler struct {
	lex      *lexer.Lexer
	resolver Resolver
	proto    *object.Prototype

	tok *lexer.Token

	locked     bool
	ownGlobals []varDecl
	globalIdx  map[string]int32 // own-global name -> slot within this program

	curCode   []bytecode.Instr
	curLocals []localVar
	localIdx  map[string]int32

	line int
}

func New(path, source string, loader lexer.Loader, resolver Resolver) *Compiler {
	return &Compiler{
		lex:       lexer.New(path, source, loader),
		resolver:  resolver,
		proto:     object.NewPrototype(path),
		globalIdx: make(map[string]int32),
	}
}

// Compile runs the single pass and returns the installed (but not yet
// store-registered) prototype.
func (c *Compiler) Compile() (*object.Prototype, error) {
	if err := c.advance(); err != nil {
		return nil, err
	}
	for c.tok.Kind != lexer.EOF {
		if err := c.topLevel(); err != nil {
			return nil, err
		}
	}
	if !c.locked {
		c.lockInherits()
	}
	c.finalizeGlobals()
	return c.proto, nil
}

func (c *Compiler) advance() error {
	tok, err := c.lex.NextToken()
	if err != nil {
		return &CompileError{Line: c.line, Message: err.Error()}
	}
	c.tok = tok
	c.line = tok.Line
	return nil
}

func (c *Compiler) expect(k lexer.Kind, what string) error {
	if c.tok.Kind != k {
		return c.errf("expected %s", what)
	}
	return c.advance()
}

func (c *Compiler) errf(format string, args ...interface{}) error {
	return &CompileError{Line: c.line, Message: fmt.Sprintf(format, args...)}
}

// topLevel parses one `inherit`, one variable declaration block, or
// one function definition.
func (c *Compiler) topLevel() error {
	if c.tok.Kind == lexer.KwInherit {
		if c.locked {
			return c.errf("inherit must precede all declarations")
		}
		return c.parseInherit()
	}

	// First non-inherit item locks the inherit phase and computes the
	// final variable layout.
	if !c.locked {
		c.lockInherits()
	}

	if isTypeKeyword(c.tok.Kind) {
		return c.parseDeclOrFunction()
	}
	return c.errf("unexpected token at top level")
}

func isTypeKeyword(k lexer.Kind) bool {
	switch k {
	case lexer.KwInt, lexer.KwStringType, lexer.KwObjectType, lexer.KwMappingType, lexer.KwArrayType, lexer.KwStatic:
		return true
	}
	return false
}

// parseInherit handles `inherit "path";`, resolving (possibly
// compiling) the named prototype through the process-wide cache.
func (c *Compiler) parseInherit() error {
	if err := c.advance(); err != nil { // consume 'inherit'
		return err
	}
	if c.tok.Kind != lexer.String {
		return c.errf("inherit expects a string path")
	}
	p := c.tok.Name
	if err := c.advance(); err != nil {
		return err
	}
	if err := c.expect(lexer.Semi, "';'"); err != nil {
		return err
	}

	parent, err := c.resolver.ResolvePrototype(p)
	if err != nil {
		return c.errf("inherit %q: %v", p, err)
	}
	alias := strings.TrimSuffix(path.Base(p), path.Ext(p))
	c.proto.Inherits = append(c.proto.Inherits, &object.InheritEntry{
		Alias: alias, Path: p, Parent: parent,
	})
	return nil
}

// parseDeclOrFunction parses `type name;` / `type name[N];` (a global
// declaration) or `type name(params) {... }` (a function).
func (c *Compiler) parseDeclOrFunction() error {
	if err := c.advance(); err != nil { // consume the type keyword
		return err
	}
	// Allow `type *name` / `type name[]` for unsized arrays.
	unsizedStar := false
	if c.tok.Kind == lexer.Star {
		unsizedStar = true
		if err := c.advance(); err != nil {
			return err
		}
	}
	if c.tok.Kind != lexer.Ident {
		return c.errf("expected identifier in declaration")
	}
	name := c.tok.Name
	if err := c.advance(); err != nil {
		return err
	}

	if c.tok.Kind == lexer.LParen {
		return c.parseFunction(name)
	}

	// Variable declaration, optionally array-sized.
	maxSize := int64(-1)
	isArray := unsizedStar
	if c.tok.Kind == lexer.LBracket {
		isArray = true
		if err := c.advance(); err != nil {
			return err
		}
		if c.tok.Kind == lexer.Integer {
			maxSize = c.tok.Integer
			if err := c.advance(); err != nil {
				return err
			}
		}
		if err := c.expect(lexer.RBracket, "']'"); err != nil {
			return err
		}
	}
	if err := c.expect(lexer.Semi, "';'"); err != nil {
		return err
	}
	if err := c.declareGlobal(name, isArray, maxSize); err != nil {
		return err
	}
	return nil
}

// declareGlobal registers an own-global, enforcing the shadowing rule
// redefining a name already defined in an ancestor is a
// compile error unless the ancestor *is* the current program (diamond
// dedup is handled at linearization time, not here).
func (c *Compiler) declareGlobal(name string, isArray bool, maxSize int64) error {
	if owner := c.ancestorDefining(name); owner != "" {
		return c.errf("variable '%s' already defined in ancestor '%s'", name, owner)
	}
	if _, dup := c.globalIdx[name]; dup {
		return c.errf("variable '%s' already defined", name)
	}
	c.globalIdx[name] = int32(len(c.ownGlobals))
	c.ownGlobals = append(c.ownGlobals, varDecl{name: name, isArray: isArray, maxSize: maxSize})
	c.proto.GlobalSizes[name] = declaredSize(isArray, maxSize)
	return nil
}

// declaredSize reduces a parsed declaration to the single operand the
// GLOBAL_L_VALUE/LOCAL_L_VALUE opcodes carry: 0 for a scalar, a
// mapping, or an unsized array; the literal bound for a fixed-size
// array.
func declaredSize(isArray bool, maxSize int64) int64 {
	if isArray && maxSize > 0 {
		return maxSize
	}
	return 0
}

// ancestorDefining returns the path of an ancestor (transitively
// inherited) prototype that already declares name, or "" if none.
func (c *Compiler) ancestorDefining(name string) string {
	for _, ie := range c.proto.Inherits {
		for _, anc := range ie.Parent.MRO {
			for _, g := range anc.OwnGlobals {
				if g == name {
					return anc.Path
				}
			}
		}
	}
	return ""
}
