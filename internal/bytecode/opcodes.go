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

// Package bytecode defines the stack-machine instruction set emitted
// by the compiler and executed by the interpreter: the
// eight opcode families plus the syscall dispatch range.
package bytecode

// Op is one instruction opcode.
type Op uint8

const (
	// Family 1: push constants.
	OpPushInt Op = iota
	OpPushString
	OpPushObject

	// Family 2: push l-value.
	OpGlobalLValue
	OpLocalLValue

	// Family 3: resolve subscript.
	OpGlobalRef
	OpLocalRef

	// Family 4: arithmetic / logical / bitwise / comparison.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpShl
	OpShr
	OpEq
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpNot

	// Family 6: control flow.
	OpBranch // conditional: pop value, jump if zero
	OpJump   // unconditional
	OpReturn
	OpPop // discard the top of stack; emitted after an expression statement

	// Literals.
	OpArrayLiteral   // ARRAY_LITERAL count
	OpMappingLiteral // MAPPING_LITERAL count

	// Family 5: assignment.
	OpStore     // pop value + l-value, store, dirty owner
	OpStoreOp   // compound assignment: op encoded in Arg2

	// Family 7: call.
	OpFuncCall        // direct call, local function index in Arg1
	OpFuncName        // late-bound by name (argument count in Arg1, name in Str)
	OpCallOther       // cross-object dynamic dispatch
	OpCallSuper       // CALL_SUPER(inherit_idx in Arg1, name in Str)
	OpCallParentNamed // CALL_PARENT_NAMED(inherit_idx in Arg1, name in Str)

	// Family 8: syscall dispatch base. Real opcode = NumOpers + builtin index.
	OpSyscallBase

	// Diagnostics.
	OpNewLine // carries the current physical line for tracebacks
)

// NumOpers is the number of non-syscall opcodes; syscalls are encoded
// as NumOpers + index-in-builtin-table, family 8.
const NumOpers = int(OpNewLine) + 1

// Instr is one bytecode instruction. Arg1/Arg2 meanings are
// opcode-dependent (slot index + declared size for l-value ops;
// target offset for branches/jumps; inherit index for super calls;
// element/pair count for literals). Arg3 carries the argument count
// for CALL_SUPER/CALL_PARENT_NAMED, whose Arg1 holds the inherit index
// and whose Str holds the function name; their Arg2 is unused.
type Instr struct {
	Op   Op
	Arg1 int32
	Arg2 int32
	Arg3 int32
	Str  string // string constant / late-bound name, when relevant
	Line int
}
