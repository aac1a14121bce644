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
	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/value"
)

// frame is one call-frame invocation: an operand stack, a
// local-slot vector sized by the function's declared local count, the
// current object/player/caller, and — separately from object, which
// may be a subclass instance — the prototype that actually owns fn,
// needed to translate this function's global l-values into the
// executing object's absolute slot layout under super dispatch.
type frame struct {
	object        *object.Object
	player        *object.Object
	caller        *object.Object
	definingProto *object.Prototype
	fn            *object.Function

	locals []value.Value
	stack  []value.Value
	pc     int
	line   int
}

func (f *frame) push(v value.Value) { f.stack = append(f.stack, v) }

func (f *frame) pop() value.Value {
	n := len(f.stack)
	v := f.stack[n-1]
	f.stack = f.stack[:n-1]
	return v
}

// popOperand pops and, if the value is an l-value, dereferences it —
// the generic "runtime dereference on ordinary operand consumption"
// that lets the same l-value-producing instruction serve as both a
// read and an assignment target.
func (f *frame) popOperand(m *Machine) (value.Value, error) {
	return m.derefValue(f, f.pop())
}

func (f *frame) popInt(m *Machine) (int64, error) {
	v, err := f.popOperand(m)
	if err != nil {
		return 0, err
	}
	return v.Int(), nil
}

// globalSlot translates a global l-value's locally-compiled index
// (computed against definingProto's own layout) into the absolute slot
// within the currently executing object's global vector. When object
// and definingProto coincide (the non-super-dispatch common case) the
// translation is the identity; under CALL_SUPER/CALL_PARENT_NAMED it
// shifts by the difference in base offset the two prototypes assign
// definingProto, which is exact for single-inheritance chains and a
// documented approximation for true multiple-inheritance diamonds —
// see DESIGN.md.
func (m *Machine) globalSlot(f *frame, localIdx int32) int32 {
	delta := f.object.Proto.AncestorBase[f.definingProto] - f.definingProto.AncestorBase[f.definingProto]
	return localIdx + delta
}

func (m *Machine) run(f *frame) (value.Value, error) {
	code := f.fn.Code
	for f.pc < len(code) {
		instr := code[f.pc]
		f.pc++
		f.line = instr.Line

		m.hardCount++
		m.softCount++
		if m.HardLimit > 0 && m.hardCount > m.HardLimit {
			return value.Value{}, m.wrapError(f, errf("vm: hard cycle limit exceeded"))
		}
		if m.SoftLimit > 0 && m.softCount > m.SoftLimit {
			return value.Value{}, m.wrapError(f, errf("vm: soft cycle limit exceeded"))
		}

		switch instr.Op {
		case bytecode.OpNewLine:
			// diagnostics only.

		case bytecode.OpPushInt:
			f.push(value.Int(int64(instr.Arg1)))
		case bytecode.OpPushString:
			f.push(value.String(instr.Str))
		case bytecode.OpPushObject:
			f.push(value.Object(object.Handle(instr.Arg1)))

		case bytecode.OpGlobalLValue:
			abs := m.globalSlot(f, instr.Arg1)
			f.push(value.LVal(value.LValue{Kind: value.GlobalLValue, Index: abs, DeclaredSize: instr.Arg2, OwnerHandle: f.object.Handle}))
		case bytecode.OpLocalLValue:
			f.push(value.LVal(value.LValue{Kind: value.LocalLValue, Index: instr.Arg1, DeclaredSize: instr.Arg2}))

		case bytecode.OpGlobalRef, bytecode.OpLocalRef:
			sizeMarker := int32(f.pop().Int())
			key, err := f.popOperand(m)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			base := f.pop()
			lv, err := m.resolveSubscript(f, base, key, sizeMarker)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			f.push(value.LVal(lv))

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod,
			bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor, bytecode.OpShl, bytecode.OpShr:
			rhs, err := f.popOperand(m)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			lhs, err := f.popOperand(m)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			res, err := m.binOp(instr.Op, lhs, rhs)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			f.push(res)

		case bytecode.OpNeg:
			v, err := f.popOperand(m)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			f.push(value.Int(-v.Int()))
		case bytecode.OpBitNot:
			v, err := f.popOperand(m)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			f.push(value.Int(^v.Int()))
		case bytecode.OpNot:
			v, err := f.popOperand(m)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			f.push(boolValue(!v.Truthy()))

		case bytecode.OpEq, bytecode.OpNotEq, bytecode.OpLt, bytecode.OpLtEq, bytecode.OpGt, bytecode.OpGtEq:
			rhs, err := f.popOperand(m)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			lhs, err := f.popOperand(m)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			res, err := m.compare(instr.Op, lhs, rhs)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			f.push(res)

		case bytecode.OpBranch:
			v, err := f.popOperand(m)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			if !v.Truthy() {
				f.pc = int(instr.Arg1)
			}
		case bytecode.OpJump:
			f.pc = int(instr.Arg1)

		case bytecode.OpPop:
			f.pop()

		case bytecode.OpReturn:
			if len(f.stack) == 0 {
				return value.Zero(), nil
			}
			v, err := f.popOperand(m)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			return v, nil

		case bytecode.OpArrayLiteral:
			n := int(instr.Arg1)
			elems := make([]value.Value, n)
			for i := n - 1; i >= 0; i-- {
				v, err := f.popOperand(m)
				if err != nil {
					return value.Value{}, m.wrapError(f, err)
				}
				elems[i] = v
			}
			f.push(value.ArrayVal(value.NewArray(elems, value.Unlimited)))

		case bytecode.OpMappingLiteral:
			n := int(instr.Arg1)
			keys := make([]value.Value, n)
			vals := make([]value.Value, n)
			for i := n - 1; i >= 0; i-- {
				v, err := f.popOperand(m)
				if err != nil {
					return value.Value{}, m.wrapError(f, err)
				}
				k, err := f.popOperand(m)
				if err != nil {
					return value.Value{}, m.wrapError(f, err)
				}
				keys[i], vals[i] = k, v
			}
			f.push(value.MappingVal(value.NewMapping(keys, vals)))

		case bytecode.OpStore:
			val, err := f.popOperand(m)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			lvRaw := f.pop()
			if lvRaw.Kind() != value.KindLValue {
				return value.Value{}, m.wrapError(f, errf("vm: assignment target is not an l-value"))
			}
			result, err := m.storeLValue(f, lvRaw.LValue(), val)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			f.push(result)

		case bytecode.OpStoreOp:
			rhs, err := f.popOperand(m)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			lvRaw := f.pop()
			if lvRaw.Kind() != value.KindLValue {
				return value.Value{}, m.wrapError(f, errf("vm: compound-assignment target is not an l-value"))
			}
			lv := lvRaw.LValue()
			cur, err := m.readLValue(f, lv)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			newVal, err := m.binOp(bytecode.Op(instr.Arg2), cur, rhs)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			result, err := m.storeLValue(f, lv, newVal)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			f.push(result)

		case bytecode.OpFuncCall:
			v, err := m.execFuncCall(f, instr)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			f.push(v)
		case bytecode.OpFuncName:
			v, err := m.execFuncName(f, instr)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			f.push(v)
		case bytecode.OpCallOther:
			v, err := m.execCallOther(f, instr)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			f.push(v)
		case bytecode.OpCallSuper:
			v, err := m.execCallSuper(f, instr)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			f.push(v)
		case bytecode.OpCallParentNamed:
			v, err := m.execCallSuper(f, instr)
			if err != nil {
				return value.Value{}, m.wrapError(f, err)
			}
			f.push(v)

		default:
			if int(instr.Op) >= int(bytecode.OpSyscallBase) {
				v, err := m.execSyscall(f, instr)
				if err != nil {
					return value.Value{}, m.wrapError(f, err)
				}
				f.push(v)
				continue
			}
			return value.Value{}, m.wrapError(f, opcodeErrFor(instr.Op))
		}
	}
	return value.Zero(), nil
}

func boolValue(b bool) value.Value {
	if b {
		return value.Int(1)
	}
	return value.Int(0)
}
