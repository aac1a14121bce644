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

// Package object implements the object and heap model: block
// arrays of object records, the prototype chain, containment and
// attachment as intrusive linked lists, and the back-reference list
// that makes destruction O(number of references).
package object

import "github.com/loomhaven/loom/internal/bytecode"

// Function is one compiled function body within a prototype.
type Function struct {
	Name      string
	NumLocals int32
	Code      []bytecode.Instr
}

// InheritEntry records one `inherit "path"` resolution: the alias
// (default basename without extension), the parent prototype, and the
// base offsets this child assigned it during variable/function layout
//.
type InheritEntry struct {
	Alias     string
	Path      string
	Parent    *Prototype
	VarBase   int32
	FuncBase  int32
}

// Prototype is the immutable compiled program: a pathname, its
// compiled functions, its own global symbol table, the
// (ancestor -> base offset) map the compiler computed while
// linearizing inheritance, and the ordered inherit list.
type Prototype struct {
	Path string

	// OwnGlobals is this prototype's own declared global names, in
	// declaration order (not including inherited ones).
	OwnGlobals []string

	// GlobalSizes maps every global name reachable from this prototype
	// (own and inherited) to its declared fixed-array bound, or 0 when
	// the declaration carried none (scalar, mapping, or unsized array).
	// Used by the compiler to fill the declared-size operand of
	// GLOBAL_L_VALUE.
	GlobalSizes map[string]int64

	Functions []*Function
	funcIndex map[string]int

	Inherits []*InheritEntry

	// AncestorBase maps every ancestor prototype (including this one)
	// to its absolute base offset in a clone's global-slot vector;
	// every global reference is re-based by the currently
	// executing function's defining ancestor.
	AncestorBase map[*Prototype]int32

	// TotalGlobals is the sum, across ancestors in merge order, of each
	// ancestor's own global count plus this prototype's own globals —
	// the length of every clone's global-slot vector.
	TotalGlobals int32

	// MRO is the depth-first, base-first, duplicate-removed
	// linearization used for `::` dispatch.
	MRO []*Prototype

	Handle Handle // the representative "proto object" that roots clones
}

func NewPrototype(path string) *Prototype {
	return &Prototype{
		Path:         path,
		funcIndex:    make(map[string]int),
		AncestorBase: make(map[*Prototype]int32),
		GlobalSizes:  make(map[string]int64),
		Handle:       InvalidHandle,
	}
}

// AddFunction appends a compiled function and indexes it by name.
func (p *Prototype) AddFunction(fn *Function) int {
	idx := len(p.Functions)
	p.Functions = append(p.Functions, fn)
	p.funcIndex[fn.Name] = idx
	return idx
}

// FindFunction resolves a name to (function, index), searching only
// this prototype's own function table (used for "local function of
// the current program" resolution in call lowering).
func (p *Prototype) FindFunction(name string) (*Function, int, bool) {
	idx, ok := p.funcIndex[name]
	if !ok {
		return nil, 0, false
	}
	return p.Functions[idx], idx, true
}

// ResolveSuper finds the next definition of name above `from` in the
// MRO, for `::name` dispatch. p.MRO is base-first with
// p itself last, so "up" from `from` means walking backward toward
// index 0 (the root ancestor).
func (p *Prototype) ResolveSuper(from *Prototype, name string) (*Prototype, *Function, int, bool) {
	fromIdx := -1
	for i, anc := range p.MRO {
		if anc == from {
			fromIdx = i
			break
		}
	}
	if fromIdx < 0 {
		return nil, nil, 0, false
	}
	for i := fromIdx - 1; i >= 0; i-- {
		if fn, idx, ok := p.MRO[i].FindFunction(name); ok {
			return p.MRO[i], fn, idx, true
		}
	}
	return nil, nil, 0, false
}

// ResolveAlias finds name in the inherit entry whose alias matches,
// for `Alias::name()` dispatch.
func (p *Prototype) ResolveAlias(alias, name string) (*Prototype, *Function, int, bool) {
	for _, ie := range p.Inherits {
		if ie.Alias == alias {
			if fn, idx, ok := ie.Parent.FindFunction(name); ok {
				return ie.Parent, fn, idx, true
			}
		}
	}
	return nil, nil, 0, false
}

// Resolve finds name anywhere in p's own MRO, most-derived first — the
// lookup used for dispatch that isn't pinned to a single compiled
// program at compile time: CALL_OTHER targets, and CALL_SUPER/
// CALL_PARENT_NAMED once the inherit branch itself has been chosen,
// since a grandparent rather than the immediate parent may be the one
// that actually defines the name.
func (p *Prototype) Resolve(name string) (*Function, *Prototype, int, bool) {
	for i := len(p.MRO) - 1; i >= 0; i-- {
		if fn, idx, ok := p.MRO[i].FindFunction(name); ok {
			return fn, p.MRO[i], idx, true
		}
	}
	if fn, idx, ok := p.FindFunction(name); ok {
		return fn, p, idx, true
	}
	return nil, nil, 0, false
}

// BaseOffsetOf returns the absolute global-slot base assigned to
// ancestor within a clone of p.
func (p *Prototype) BaseOffsetOf(ancestor *Prototype) (int32, bool) {
	off, ok := p.AncestorBase[ancestor]
	return off, ok
}
