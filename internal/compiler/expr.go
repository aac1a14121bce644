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

import (
	"github.com/loomhaven/loom/internal/bytecode"
	"github.com/loomhaven/loom/internal/lexer"
)

// term carries forward just enough about the expression last parsed
// for the caller to decide whether it is a valid assignment target and,
// if so, which REF opcode a further subscript should use. Any binary
// operator collapses it to a plain value (isLValue false).
type term struct {
	isLValue    bool
	refOp       bytecode.Op // OpGlobalRef or OpLocalRef, meaningful iff isLValue
	declaredSize int64      // this term's own declared bound, for a further subscript dimension
}

// parseExpr parses one full expression, per the precedence table
// "Expression emission", and discards the trailing term info.
func (c *Compiler) parseExpr() error {
	_, err := c.parseAssignment()
	return err
}

var assignOps = map[lexer.Kind]bytecode.Op{
	lexer.PlusEq:    bytecode.OpAdd,
	lexer.MinusEq:   bytecode.OpSub,
	lexer.StarEq:    bytecode.OpMul,
	lexer.SlashEq:   bytecode.OpDiv,
	lexer.PercentEq: bytecode.OpMod,
	lexer.AndEq:     bytecode.OpBitAnd,
	lexer.OrEq:      bytecode.OpBitOr,
	lexer.ShlEq:     bytecode.OpShl,
	lexer.ShrEq:     bytecode.OpShr,
}

func (c *Compiler) parseAssignment() (term, error) {
	lhs, err := c.parseTernary()
	if err != nil {
		return term{}, err
	}

	if c.tok.Kind == lexer.Assign {
		if !lhs.isLValue {
			return term{}, c.errf("left side of assignment is not assignable")
		}
		if err := c.advance(); err != nil {
			return term{}, err
		}
		if _, err := c.parseAssignment(); err != nil {
			return term{}, err
		}
		c.emitOp(bytecode.OpStore, 0, 0)
		return term{}, nil
	}
	if op, ok := assignOps[c.tok.Kind]; ok {
		if !lhs.isLValue {
			return term{}, c.errf("left side of compound assignment is not assignable")
		}
		if err := c.advance(); err != nil {
			return term{}, err
		}
		if _, err := c.parseAssignment(); err != nil {
			return term{}, err
		}
		c.emitOp(bytecode.OpStoreOp, 0, int32(op))
		return term{}, nil
	}
	return lhs, nil
}

// parseTernary handles `cond ? a: b`; the condition and both branches
// are otherwise full expressions.
func (c *Compiler) parseTernary() (term, error) {
	cond, err := c.parseLogOr()
	if err != nil {
		return term{}, err
	}
	if c.tok.Kind != lexer.Question {
		return cond, nil
	}
	if err := c.advance(); err != nil {
		return term{}, err
	}
	branchElse := c.emitOp(bytecode.OpBranch, 0, 0)
	if _, err := c.parseAssignment(); err != nil {
		return term{}, err
	}
	jumpEnd := c.emitOp(bytecode.OpJump, 0, 0)
	c.patchTarget(branchElse)
	if err := c.expect(lexer.Colon, "':'"); err != nil {
		return term{}, err
	}
	if _, err := c.parseAssignment(); err != nil {
		return term{}, err
	}
	c.patchTarget(jumpEnd)
	return term{}, nil
}

// parseLogOr lowers `a || b` to a branch sequence family 4
// (short-circuit && and || lower to branch sequences, not
// separate opcodes).
func (c *Compiler) parseLogOr() (term, error) {
	left, err := c.parseLogAnd()
	if err != nil {
		return term{}, err
	}
	for c.tok.Kind == lexer.OrOr {
		if err := c.advance(); err != nil {
			return term{}, err
		}
		toCheckRHS := c.emitOp(bytecode.OpBranch, 0, 0) // left == 0 -> evaluate RHS
		toTrue := c.emitOp(bytecode.OpJump, 0, 0)        // left != 0 -> short circuit true
		c.patchTarget(toCheckRHS)
		if _, err := c.parseLogAnd(); err != nil {
			return term{}, err
		}
		toFalse := c.emitOp(bytecode.OpBranch, 0, 0)
		c.patchTarget(toTrue)
		c.emitOp(bytecode.OpPushInt, 1, 0)
		toEnd := c.emitOp(bytecode.OpJump, 0, 0)
		c.patchTarget(toFalse)
		c.emitOp(bytecode.OpPushInt, 0, 0)
		c.patchTarget(toEnd)
		left = term{}
	}
	return left, nil
}

func (c *Compiler) parseLogAnd() (term, error) {
	left, err := c.parseBitOr()
	if err != nil {
		return term{}, err
	}
	for c.tok.Kind == lexer.AndAnd {
		if err := c.advance(); err != nil {
			return term{}, err
		}
		toFalse := c.emitOp(bytecode.OpBranch, 0, 0) // left == 0 -> short circuit false
		if _, err := c.parseBitOr(); err != nil {
			return term{}, err
		}
		toFalse2 := c.emitOp(bytecode.OpBranch, 0, 0)
		c.emitOp(bytecode.OpPushInt, 1, 0)
		toEnd := c.emitOp(bytecode.OpJump, 0, 0)
		c.patchTarget(toFalse)
		c.patchTarget(toFalse2)
		c.emitOp(bytecode.OpPushInt, 0, 0)
		c.patchTarget(toEnd)
		left = term{}
	}
	return left, nil
}

// binaryLevel is a generic left-associative precedence-climbing step:
// parse next, then while the current token is in ops, consume it,
// parse next again, and emit the mapped opcode.
func (c *Compiler) binaryLevel(next func() (term, error), ops map[lexer.Kind]bytecode.Op) (term, error) {
	left, err := next()
	if err != nil {
		return term{}, err
	}
	for {
		op, ok := ops[c.tok.Kind]
		if !ok {
			return left, nil
		}
		if err := c.advance(); err != nil {
			return term{}, err
		}
		if _, err := next(); err != nil {
			return term{}, err
		}
		c.emitOp(op, 0, 0)
		left = term{}
	}
}

var bitOrOps = map[lexer.Kind]bytecode.Op{lexer.Pipe: bytecode.OpBitOr}
var bitXorOps = map[lexer.Kind]bytecode.Op{lexer.Caret: bytecode.OpBitXor}
var bitAndOps = map[lexer.Kind]bytecode.Op{lexer.Amp: bytecode.OpBitAnd}
var eqOps = map[lexer.Kind]bytecode.Op{lexer.EqEq: bytecode.OpEq, lexer.NotEq: bytecode.OpNotEq}
var relOps = map[lexer.Kind]bytecode.Op{
	lexer.Lt: bytecode.OpLt, lexer.LtEq: bytecode.OpLtEq,
	lexer.Gt: bytecode.OpGt, lexer.GtEq: bytecode.OpGtEq,
}
var shiftOps = map[lexer.Kind]bytecode.Op{lexer.Shl: bytecode.OpShl, lexer.Shr: bytecode.OpShr}
var addOps = map[lexer.Kind]bytecode.Op{lexer.Plus: bytecode.OpAdd, lexer.Minus: bytecode.OpSub}
var mulOps = map[lexer.Kind]bytecode.Op{
	lexer.Star: bytecode.OpMul, lexer.Slash: bytecode.OpDiv, lexer.Percent: bytecode.OpMod,
}

func (c *Compiler) parseBitOr() (term, error)  { return c.binaryLevel(c.parseBitXor, bitOrOps) }
func (c *Compiler) parseBitXor() (term, error) { return c.binaryLevel(c.parseBitAnd, bitXorOps) }
func (c *Compiler) parseBitAnd() (term, error) { return c.binaryLevel(c.parseEquality, bitAndOps) }
func (c *Compiler) parseEquality() (term, error) {
	return c.binaryLevel(c.parseRelational, eqOps)
}
func (c *Compiler) parseRelational() (term, error) { return c.binaryLevel(c.parseShift, relOps) }
func (c *Compiler) parseShift() (term, error)      { return c.binaryLevel(c.parseAdditive, shiftOps) }
func (c *Compiler) parseAdditive() (term, error)   { return c.binaryLevel(c.parseMultiplicative, addOps) }
func (c *Compiler) parseMultiplicative() (term, error) {
	return c.binaryLevel(c.parseUnary, mulOps)
}

// parseUnary handles prefix !, -, ~, ++, --.
func (c *Compiler) parseUnary() (term, error) {
	switch c.tok.Kind {
	case lexer.Bang:
		if err := c.advance(); err != nil {
			return term{}, err
		}
		if _, err := c.parseUnary(); err != nil {
			return term{}, err
		}
		c.emitOp(bytecode.OpNot, 0, 0)
		return term{}, nil
	case lexer.Minus:
		if err := c.advance(); err != nil {
			return term{}, err
		}
		if _, err := c.parseUnary(); err != nil {
			return term{}, err
		}
		c.emitOp(bytecode.OpNeg, 0, 0)
		return term{}, nil
	case lexer.Tilde:
		if err := c.advance(); err != nil {
			return term{}, err
		}
		if _, err := c.parseUnary(); err != nil {
			return term{}, err
		}
		c.emitOp(bytecode.OpBitNot, 0, 0)
		return term{}, nil
	case lexer.PlusPlus, lexer.MinusMinus:
		op := bytecode.OpAdd
		if c.tok.Kind == lexer.MinusMinus {
			op = bytecode.OpSub
		}
		if err := c.advance(); err != nil {
			return term{}, err
		}
		operand, err := c.parseUnary()
		if err != nil {
			return term{}, err
		}
		if !operand.isLValue {
			return term{}, c.errf("operand of ++/-- is not assignable")
		}
		c.emitOp(bytecode.OpPushInt, 1, 0)
		c.emitOp(bytecode.OpStoreOp, 0, int32(op))
		return term{}, nil
	}
	return c.parsePostfix()
}

// parsePostfix parses a primary and then any chain of `[...]`
// subscripts, `(...)` calls, `->name(...)` cross-object calls, and
// trailing ++/--.
func (c *Compiler) parsePostfix() (term, error) {
	t, err := c.parsePrimary()
	if err != nil {
		return term{}, err
	}
	for {
		switch c.tok.Kind {
		case lexer.LBracket:
			if !t.isLValue {
				return term{}, c.errf("cannot subscript a non-lvalue expression")
			}
			if err := c.advance(); err != nil {
				return term{}, err
			}
			if _, err := c.parseAssignment(); err != nil {
				return term{}, err
			}
			if err := c.expect(lexer.RBracket, "']'"); err != nil {
				return term{}, err
			}
			c.emitOp(bytecode.OpPushInt, int32(t.declaredSize), 0)
			c.emitOp(t.refOp, 0, 0)
			// A further subscript dimension on the resulting element
			// lvalue has no statically declared bound of its own; it
			// resolves dynamically at the runtime value's own kind.
			t = term{isLValue: true, refOp: t.refOp, declaredSize: 0}
		case lexer.Arrow:
			if err := c.advance(); err != nil {
				return term{}, err
			}
			if c.tok.Kind != lexer.Ident {
				return term{}, c.errf("expected method name after '->'")
			}
			name := c.tok.Name
			if err := c.advance(); err != nil {
				return term{}, err
			}
			// target is already on the stack from the primary just
			// parsed; push the method name, then the call arguments.
			c.emitOp(bytecode.OpPushString, 0, 0)
			c.curCode[len(c.curCode)-1].Str = name
			if err := c.expect(lexer.LParen, "'('"); err != nil {
				return term{}, err
			}
			n, err := c.parseArgList()
			if err != nil {
				return term{}, err
			}
			c.emitOp(bytecode.OpCallOther, int32(n), 0)
			t = term{}
		case lexer.PlusPlus, lexer.MinusMinus:
			if !t.isLValue {
				return term{}, c.errf("operand of ++/-- is not assignable")
			}
			op := bytecode.OpAdd
			if c.tok.Kind == lexer.MinusMinus {
				op = bytecode.OpSub
			}
			if err := c.advance(); err != nil {
				return term{}, err
			}
			c.emitOp(bytecode.OpPushInt, 1, 0)
			c.emitOp(bytecode.OpStoreOp, 0, int32(op))
			t = term{}
		default:
			return t, nil
		}
	}
}

// parseArgList parses a parenthesized, comma-separated argument list
// whose opening '(' has already been consumed, returning the count.
func (c *Compiler) parseArgList() (int, error) {
	n := 0
	for c.tok.Kind != lexer.RParen {
		if _, err := c.parseAssignment(); err != nil {
			return 0, err
		}
		n++
		if c.tok.Kind == lexer.Comma {
			if err := c.advance(); err != nil {
				return 0, err
			}
			continue
		}
		break
	}
	if err := c.expect(lexer.RParen, "')'"); err != nil {
		return 0, err
	}
	return n, nil
}

// parsePrimary parses a literal, identifier reference, call, array or
// mapping literal, parenthesized subexpression, or a super/aliased
// super call.
func (c *Compiler) parsePrimary() (term, error) {
	switch c.tok.Kind {
	case lexer.Integer:
		v := c.tok.Integer
		if err := c.advance(); err != nil {
			return term{}, err
		}
		c.emitOp(bytecode.OpPushInt, int32(v), 0)
		return term{}, nil
	case lexer.String:
		s := c.tok.Name
		if err := c.advance(); err != nil {
			return term{}, err
		}
		idx := c.emitOp(bytecode.OpPushString, 0, 0)
		c.curCode[idx].Str = s
		return term{}, nil
	case lexer.LParen:
		if err := c.advance(); err != nil {
			return term{}, err
		}
		t, err := c.parseAssignment()
		if err != nil {
			return term{}, err
		}
		if err := c.expect(lexer.RParen, "')'"); err != nil {
			return term{}, err
		}
		return t, nil
	case lexer.LArr:
		return term{}, c.parseArrayLiteral()
	case lexer.LMap:
		return term{}, c.parseMappingLiteral()
	case lexer.DColon:
		return term{}, c.parseSuperCall("")
	case lexer.Ident:
		return c.parseIdentOrCall()
	}
	return term{}, c.errf("unexpected token in expression")
}

func (c *Compiler) parseArrayLiteral() error {
	if err := c.advance(); err != nil { // consume '(['
		return err
	}
	n := 0
	for c.tok.Kind != lexer.RArr {
		if _, err := c.parseAssignment(); err != nil {
			return err
		}
		n++
		if c.tok.Kind == lexer.Comma {
			if err := c.advance(); err != nil {
				return err
			}
			continue
		}
		break
	}
	if err := c.expect(lexer.RArr, "'])'"); err != nil {
		return err
	}
	c.emitOp(bytecode.OpArrayLiteral, int32(n), 0)
	return nil
}

func (c *Compiler) parseMappingLiteral() error {
	if err := c.advance(); err != nil { // consume '(['
		return err
	}
	n := 0
	for c.tok.Kind != lexer.RMap {
		if _, err := c.parseAssignment(); err != nil {
			return err
		}
		if err := c.expect(lexer.Colon, "':'"); err != nil {
			return err
		}
		if _, err := c.parseAssignment(); err != nil {
			return err
		}
		n++
		if c.tok.Kind == lexer.Comma {
			if err := c.advance(); err != nil {
				return err
			}
			continue
		}
		break
	}
	if err := c.expect(lexer.RMap, "'])'"); err != nil {
		return err
	}
	c.emitOp(bytecode.OpMappingLiteral, int32(n), 0)
	return nil
}

// parseIdentOrCall handles a bare identifier: a plain variable
// reference, a bare call `name(...)`, or the first half of
// `Alias::name(...)`.
func (c *Compiler) parseIdentOrCall() (term, error) {
	name := c.tok.Name
	if err := c.advance(); err != nil {
		return term{}, err
	}
	if c.tok.Kind == lexer.DColon {
		return term{}, c.parseSuperCall(name)
	}
	if c.tok.Kind == lexer.LParen {
		if err := c.advance(); err != nil {
			return term{}, err
		}
		n, err := c.parseArgList()
		if err != nil {
			return term{}, err
		}
		return term{}, c.emitCall(name, n)
	}
	return c.emitVarRef(name)
}

// emitCall resolves a bare call "Calls": local function of
// the current program, else a built-in syscall, else a late-bound
// FUNC_NAME.
func (c *Compiler) emitCall(name string, argc int) error {
	if _, idx, ok := c.proto.FindFunction(name); ok {
		c.emitOp(bytecode.OpFuncCall, int32(idx), int32(argc))
		return nil
	}
	if idx, ok := c.resolver.LookupBuiltin(name); ok {
		c.emitOp(bytecode.Op(int(bytecode.OpSyscallBase)+int(idx)), int32(argc), 0)
		return nil
	}
	i := c.emitOp(bytecode.OpFuncName, int32(argc), 0)
	c.curCode[i].Str = name
	return nil
}

// parseSuperCall handles `::name(...)` (alias == "") and
// `Alias::name(...)`, resolving the inherit branch at compile time;
// the defining function is found at run time.
func (c *Compiler) parseSuperCall(alias string) error {
	if err := c.advance(); err != nil { // consume '::'
		return err
	}
	if c.tok.Kind != lexer.Ident {
		return c.errf("expected function name after '::'")
	}
	name := c.tok.Name
	if err := c.advance(); err != nil {
		return err
	}
	if err := c.expect(lexer.LParen, "'('"); err != nil {
		return err
	}
	n, err := c.parseArgList()
	if err != nil {
		return err
	}

	// The inherit branch is resolved at compile time, but which ancestor
	// within that branch actually defines name is left to the VM's
	// runtime MRO search (Prototype.Resolve): a compile-time funcIdx
	// would only be valid against the direct parent, not a grandparent
	// reached through it, so only the inherit-list index and the name
	// travel in the instruction.
	if alias != "" {
		inheritIdx, _, ok := c.resolveAliasCall(alias, name)
		if !ok {
			return c.errf("no function '%s' found via '%s::'", name, alias)
		}
		idx := c.emitOp(bytecode.OpCallParentNamed, int32(inheritIdx), 0)
		c.curCode[idx].Arg3 = int32(n)
		c.curCode[idx].Str = name
		return nil
	}

	inheritIdx, _, ok := c.resolveSuperCall(name)
	if !ok {
		return c.errf("no ancestor definition of '%s' found for '::'", name)
	}
	idx := c.emitOp(bytecode.OpCallSuper, int32(inheritIdx), 0)
	c.curCode[idx].Arg3 = int32(n)
	c.curCode[idx].Str = name
	return nil
}

// resolveAliasCall finds name in the inherit entry whose alias matches,
// returning the inherit-list index and the function's index within
// that ancestor's own function table.
func (c *Compiler) resolveAliasCall(alias, name string) (inheritIdx, funcIdx int, ok bool) {
	for i, ie := range c.proto.Inherits {
		if ie.Alias != alias {
			continue
		}
		if _, idx, found := ie.Parent.FindFunction(name); found {
			return i, idx, true
		}
	}
	return 0, 0, false
}

// resolveSuperCall searches every inherit branch's linearization,
// base-first but checked from the direct parent backward so the
// nearest definition wins, for the first prototype defining name.
func (c *Compiler) resolveSuperCall(name string) (inheritIdx, funcIdx int, ok bool) {
	for i, ie := range c.proto.Inherits {
		mro := ie.Parent.MRO
		for j := len(mro) - 1; j >= 0; j-- {
			if _, idx, found := mro[j].FindFunction(name); found {
				return i, idx, true
			}
		}
	}
	return 0, 0, false
}

// emitVarRef emits the l-value-producing instruction for a bare
// identifier: a local if declared in the current function, else a
// global (own or inherited). The same instruction sequence serves as
// both a read (the consumer dereferences generically) and the target
// half of an assignment.
func (c *Compiler) emitVarRef(name string) (term, error) {
	if slot, size, ok := c.resolveLocal(name); ok {
		c.emitOp(bytecode.OpLocalLValue, slot, int32(size))
		return term{isLValue: true, refOp: bytecode.OpLocalRef, declaredSize: size}, nil
	}
	if slot, size, ok := c.resolveGlobal(name); ok {
		c.emitOp(bytecode.OpGlobalLValue, slot, int32(size))
		return term{isLValue: true, refOp: bytecode.OpGlobalRef, declaredSize: size}, nil
	}
	return term{}, c.errf("undeclared identifier '%s'", name)
}
