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

import "github.com/loomhaven/loom/internal/bytecode"

// resolveLocal looks up name among the current function's parameters
// and block-local declarations.
func (c *Compiler) resolveLocal(name string) (slot int32, size int64, ok bool) {
	idx, ok := c.localIdx[name]
	if !ok {
		return 0, 0, false
	}
	return idx, c.curLocals[idx].size, true
}

// resolveGlobal looks up name as an own or inherited global, returning
// its absolute slot and declared bounds-check size.
func (c *Compiler) resolveGlobal(name string) (slot int32, size int64, ok bool) {
	if idx, found := c.globalIdx[name]; found {
		base := c.proto.AncestorBase[c.proto]
		return base + idx, c.proto.GlobalSizes[name], true
	}
	for _, anc := range c.proto.MRO {
		if anc == c.proto {
			continue
		}
		for i, g := range anc.OwnGlobals {
			if g == name {
				base := c.proto.AncestorBase[anc]
				return base + int32(i), c.proto.GlobalSizes[name], true
			}
		}
	}
	return 0, 0, false
}

// declareLocal adds name as a new local slot in the current function,
// flat (non-block-scoped) local numbering.
func (c *Compiler) declareLocal(name string, size int64) (int32, error) {
	if _, dup := c.localIdx[name]; dup {
		return 0, c.errf("local '%s' already declared", name)
	}
	slot := int32(len(c.curLocals))
	c.localIdx[name] = slot
	c.curLocals = append(c.curLocals, localVar{name: name, slot: slot, size: size})
	return slot, nil
}

func (c *Compiler) emit(i bytecode.Instr) int {
	if i.Line == 0 {
		i.Line = c.line
	}
	c.curCode = append(c.curCode, i)
	return len(c.curCode) - 1
}

// emitOp is the common case: an instruction with no string operand.
func (c *Compiler) emitOp(op bytecode.Op, arg1, arg2 int32) int {
	return c.emit(bytecode.Instr{Op: op, Arg1: arg1, Arg2: arg2})
}

// patchTarget rewrites a previously emitted branch/jump's Arg1 to the
// current end-of-code offset.
func (c *Compiler) patchTarget(at int) {
	c.curCode[at].Arg1 = int32(len(c.curCode))
}
