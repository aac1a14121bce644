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

// Package value implements the tagged value discipline described in
// the data model: a 64-bit integer, an owned UTF-8 string, a
// non-owning object handle, reference-counted array and mapping
// handles, an l-value descriptor, and a late-bound function
// reference.
package value

import "fmt"

// Kind discriminates the tagged union that every Value carries.
type Kind uint8

const (
	KindInt Kind = iota
	KindString
	KindObject
	KindArray
	KindMapping
	KindLValue
	KindFuncName
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindMapping:
		return "mapping"
	case KindLValue:
		return "lvalue"
	case KindFuncName:
		return "function"
	default:
		return "unknown"
	}
}

// Handle is a stable, non-owning index into the object store's block
// array. Lifetime of the referent is governed entirely by the object
// store, never by a Value holding a Handle.
type Handle int32

// InvalidHandle never names a live object.
const InvalidHandle Handle = -1

// LValueKind distinguishes a global-slot l-value, a local-slot one, and
// the two l-values GLOBAL_REF/LOCAL_REF produce after resolving a
// subscript (family 3): a heap-array element or a mapping key,
// each carrying the container directly so neither needs to re-walk a
// slot to find it again.
type LValueKind uint8

const (
	LocalLValue LValueKind = iota
	GlobalLValue
	ArrayElemLValue
	MappingKeyLValue
)

// LValue carries a raw slot index plus the declared-size hint the
// interpreter needs to tell an array subscript from a mapping
// subscript (the runtime distinguishes array from mapping by the
// size marker). A DeclaredSize of 0 marks a mapping subscript context.
//
// For ArrayElemLValue/MappingKeyLValue, Index/DeclaredSize are unused;
// Arr/ElemIndex or Map/Key name the resolved subscript target
// directly. OwnerHandle, when not InvalidHandle, names the object
// whose persisted state this l-value's write affects (its owning
// global slot), so the interpreter's assignment family can dirty the
// right object even several subscript levels down without importing
// the object package here (avoiding an import cycle: object already
// depends on value).
type LValue struct {
	Kind         LValueKind
	Index        int32
	DeclaredSize int32

	Arr       *Array
	ElemIndex int64
	Map       *Mapping
	Key       Value

	OwnerHandle Handle
}

// Value is a tagged union. Only the field matching Kind is valid.
// Arrays and mappings are reference-counted heap objects; assigning a
// Value that holds one does not deep copy it, it aliases the pointer
// and the caller is responsible for Retain/Release bookkeeping at the
// points the interpreter's assignment family performs it (family 5).
type Value struct {
	kind   Kind
	i      int64
	s      string
	arr    *Array
	mp     *Mapping
	lv     *LValue
	fnName string
}

func Int(i int64) Value              { return Value{kind: KindInt, i: i} }
func String(s string) Value          { return Value{kind: KindString, s: s} }
func Object(h Handle) Value          { return Value{kind: KindObject, i: int64(h)} }
func ArrayVal(a *Array) Value        { return Value{kind: KindArray, arr: a} }
func MappingVal(m *Mapping) Value    { return Value{kind: KindMapping, mp: m} }
func LVal(lv LValue) Value           { return Value{kind: KindLValue, lv: &lv} }
func FuncName(name string) Value     { return Value{kind: KindFuncName, fnName: name} }
func Zero() Value                    { return Value{kind: KindInt, i: 0} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsInt() bool     { return v.kind == KindInt }
func (v Value) IsString() bool  { return v.kind == KindString }
func (v Value) IsObject() bool  { return v.kind == KindObject }
func (v Value) IsArray() bool   { return v.kind == KindArray }
func (v Value) IsMapping() bool { return v.kind == KindMapping }
func (v Value) IsLValue() bool  { return v.kind == KindLValue }

func (v Value) Int() int64 {
	if v.kind != KindInt {
		return 0
	}
	return v.i
}

func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.s
}

func (v Value) ObjectHandle() Handle {
	if v.kind != KindObject {
		return InvalidHandle
	}
	return Handle(v.i)
}

func (v Value) Array() *Array { return v.arr }
func (v Value) Mapping() *Mapping { return v.mp }
func (v Value) LValue() LValue { return *v.lv }
func (v Value) FuncName() string { return v.fnName }

// Truthy follows the LPC convention: zero integer and empty string are
// false, everything else (including object 0 aka the null object in
// spec terms, which is InvalidHandle) is evaluated per kind.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindInt:
		return v.i != 0
	case KindString:
		return v.s != ""
	case KindObject:
		return Handle(v.i) != InvalidHandle
	case KindArray:
		return v.arr != nil
	case KindMapping:
		return v.mp != nil
	default:
		return false
	}
}

// Equal implements the comparison semantics family 4 describes:
// integers, strings and object handles compare by value/identity;
// arrays and mappings compare by handle identity, not structurally.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindString:
		return v.s == o.s
	case KindObject:
		return v.i == o.i
	case KindArray:
		return v.arr == o.arr
	case KindMapping:
		return v.mp == o.mp
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindString:
		return v.s
	case KindObject:
		return fmt.Sprintf("#%d", v.i)
	case KindArray:
		return fmt.Sprintf("({array:%d})", v.arr.Size())
	case KindMapping:
		return fmt.Sprintf("([mapping:%d])", v.mp.Size())
	case KindLValue:
		return fmt.Sprintf("<lvalue %d>", v.lv.Index)
	case KindFuncName:
		return fmt.Sprintf("<function %s>", v.fnName)
	default:
		return "<?>"
	}
}

// ClearVar releases any refcounted resource the previous value held.
// Called by the interpreter's assignment family before a slot or
// local is overwritten (family 5, destruction).
func ClearVar(old Value) {
	switch old.kind {
	case KindArray:
		if old.arr != nil {
			old.arr.Release()
		}
	case KindMapping:
		if old.mp != nil {
			old.mp.Release()
		}
	}
}

// Retain increments the refcount of a heap-backed value when it is
// aliased onto the stack or into another slot.
func Retain(v Value) {
	switch v.kind {
	case KindArray:
		if v.arr != nil {
			v.arr.Retain()
		}
	case KindMapping:
		if v.mp != nil {
			v.mp.Retain()
		}
	}
}
