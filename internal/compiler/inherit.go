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

package compiler

import "github.com/loomhaven/loom/internal/object"

// lockInherits computes the final variable and function layout once
// the first global declaration or function body is seen. It is
// idempotent-safe to
// call exactly once per compile.
func (c *Compiler) lockInherits() {
	c.locked = true

	// MRO: depth-first, base-first, duplicates removed.
	// Each direct parent's own already-computed MRO is flattened in, so
	// a diamond ancestor shared by two parents appears once, at its
	// first (base-most) occurrence.
	seen := make(map[*object.Prototype]bool)
	var mro []*object.Prototype
	for _, ie := range c.proto.Inherits {
		for _, anc := range ie.Parent.MRO {
			if !seen[anc] {
				seen[anc] = true
				mro = append(mro, anc)
			}
		}
	}
	mro = append(mro, c.proto)
	c.proto.MRO = mro

	// Every inherited name's declared-array bound travels down so a
	// child function subscripting an inherited global still gets the
	// right bounds-check operand without re-walking ancestors at
	// emission time.
	for _, anc := range mro {
		if anc == c.proto {
			continue
		}
		for name, size := range anc.GlobalSizes {
			c.proto.GlobalSizes[name] = size
		}
	}

	// Variable layout: inherited variables contiguous from slot 0 in
	// linearization order, own globals follow.
	var base int32
	for _, anc := range mro {
		if anc == c.proto {
			continue
		}
		c.proto.AncestorBase[anc] = base
		base += int32(len(anc.OwnGlobals))
	}
	c.proto.AncestorBase[c.proto] = base
	base += int32(len(c.ownGlobalNamesSoFar()))

	// Function offsets for each inherit entry mirror the same
	// linearization so CALL_SUPER/CALL_PARENT_NAMED can address a
	// parent's function table directly.
	var fnBase int32
	fnBaseOf := make(map[*object.Prototype]int32)
	for _, anc := range mro {
		if anc == c.proto {
			continue
		}
		fnBaseOf[anc] = fnBase
		fnBase += int32(len(anc.Functions))
	}
	for _, ie := range c.proto.Inherits {
		ie.VarBase = c.proto.AncestorBase[ie.Parent]
		ie.FuncBase = fnBaseOf[ie.Parent]
	}

	c.proto.TotalGlobals = base
}

// ownGlobalNamesSoFar is a seam the parser calls into at lock time;
// declarations appearing after lock still append to ownGlobals, so
// TotalGlobals is finalized again at the end of Compile via
// finalizeGlobals.
func (c *Compiler) ownGlobalNamesSoFar() []varDecl { return c.ownGlobals }

// finalizeGlobals recomputes TotalGlobals and snapshots OwnGlobals
// onto the prototype once parsing has finished, since own globals can
// still be declared (interleaved with functions) after the lock point.
func (c *Compiler) finalizeGlobals() {
	names := make([]string, len(c.ownGlobals))
	for i, d := range c.ownGlobals {
		names[i] = d.name
	}
	c.proto.OwnGlobals = names
	c.proto.TotalGlobals = c.proto.AncestorBase[c.proto] + int32(len(c.ownGlobals))
}
