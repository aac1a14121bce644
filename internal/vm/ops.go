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

// binOp implements opcode family 4's arithmetic/bitwise operators,
// consuming integer operands (family 4).
func (m *Machine) binOp(op bytecode.Op, lhs, rhs value.Value) (value.Value, error) {
	switch op {
	case bytecode.OpAdd:
		if lhs.IsString() || rhs.IsString() {
			return value.String(lhs.String() + rhs.String()), nil
		}
		return value.Int(lhs.Int() + rhs.Int()), nil
	case bytecode.OpSub:
		return value.Int(lhs.Int() - rhs.Int()), nil
	case bytecode.OpMul:
		return value.Int(lhs.Int() * rhs.Int()), nil
	case bytecode.OpDiv:
		if rhs.Int() == 0 {
			return value.Value{}, errf("vm: division by zero")
		}
		return value.Int(lhs.Int() / rhs.Int()), nil
	case bytecode.OpMod:
		if rhs.Int() == 0 {
			return value.Value{}, errf("vm: modulo by zero")
		}
		return value.Int(lhs.Int() % rhs.Int()), nil
	case bytecode.OpBitAnd:
		return value.Int(lhs.Int() & rhs.Int()), nil
	case bytecode.OpBitOr:
		return value.Int(lhs.Int() | rhs.Int()), nil
	case bytecode.OpBitXor:
		return value.Int(lhs.Int() ^ rhs.Int()), nil
	case bytecode.OpShl:
		return value.Int(lhs.Int() << uint(rhs.Int())), nil
	case bytecode.OpShr:
		return value.Int(lhs.Int() >> uint(rhs.Int())), nil
	}
	return value.Value{}, errf("vm: unsupported binary op %d", op)
}

// compare implements the comparison half of family 4: equality also
// accepts strings and object handles; ordering is integer-only.
func (m *Machine) compare(op bytecode.Op, lhs, rhs value.Value) (value.Value, error) {
	switch op {
	case bytecode.OpEq:
		return boolValue(lhs.Equal(rhs)), nil
	case bytecode.OpNotEq:
		return boolValue(!lhs.Equal(rhs)), nil
	case bytecode.OpLt:
		return boolValue(lhs.Int() < rhs.Int()), nil
	case bytecode.OpLtEq:
		return boolValue(lhs.Int() <= rhs.Int()), nil
	case bytecode.OpGt:
		return boolValue(lhs.Int() > rhs.Int()), nil
	case bytecode.OpGtEq:
		return boolValue(lhs.Int() >= rhs.Int()), nil
	}
	return value.Value{}, errf("vm: unsupported comparison op %d", op)
}
