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
	"github.com/loomhaven/loom/internal/object"
)

// parseFunction parses a function's parameter list and body and
// installs the compiled Function onto the prototype. c.tok is LParen
// on entry.
func (c *Compiler) parseFunction(name string) error {
	c.curCode = nil
	c.curLocals = nil
	c.localIdx = make(map[string]int32)

	if err := c.advance(); err != nil { // consume '('
		return err
	}
	for c.tok.Kind != lexer.RParen {
		if !isTypeKeyword(c.tok.Kind) {
			return c.errf("expected parameter type")
		}
		if err := c.advance(); err != nil {
			return err
		}
		if c.tok.Kind == lexer.Star {
			if err := c.advance(); err != nil {
				return err
			}
		}
		if c.tok.Kind != lexer.Ident {
			return c.errf("expected parameter name")
		}
		pname := c.tok.Name
		if err := c.advance(); err != nil {
			return err
		}
		if _, err := c.declareLocal(pname, 0); err != nil {
			return err
		}
		if c.tok.Kind == lexer.Comma {
			if err := c.advance(); err != nil {
				return err
			}
			continue
		}
		break
	}
	if err := c.expect(lexer.RParen, "')'"); err != nil {
		return err
	}

	if err := c.expect(lexer.LBrace, "'{'"); err != nil {
		return err
	}
	for c.tok.Kind != lexer.RBrace {
		if c.tok.Kind == lexer.EOF {
			return c.errf("unexpected end of file in function body")
		}
		if err := c.parseStatement(); err != nil {
			return err
		}
	}
	if err := c.advance(); err != nil { // consume '}'
		return err
	}

	if len(c.curCode) == 0 || c.curCode[len(c.curCode)-1].Op != bytecode.OpReturn {
		c.emitOp(bytecode.OpPushInt, 0, 0)
		c.emitOp(bytecode.OpReturn, 0, 0)
	}

	c.proto.AddFunction(&object.Function{
		Name:      name,
		NumLocals: int32(len(c.curLocals)),
		Code:      c.curCode,
	})
	return nil
}

// parseBlock parses `{ stmt* }`, sharing the enclosing function's flat
// local numbering (locals are not block-scoped).
func (c *Compiler) parseBlock() error {
	if err := c.expect(lexer.LBrace, "'{'"); err != nil {
		return err
	}
	for c.tok.Kind != lexer.RBrace {
		if c.tok.Kind == lexer.EOF {
			return c.errf("unexpected end of file in block")
		}
		if err := c.parseStatement(); err != nil {
			return err
		}
	}
	return c.advance() // consume '}'
}

// parseStatement parses exactly one statement, emitting a NEW_LINE
// marker at its top so tracebacks can cite a source line.
func (c *Compiler) parseStatement() error {
	c.emit(bytecode.Instr{Op: bytecode.OpNewLine, Line: c.line})

	switch c.tok.Kind {
	case lexer.LBrace:
		return c.parseBlock()
	case lexer.KwIf:
		return c.parseIf()
	case lexer.KwWhile:
		return c.parseWhile()
	case lexer.KwDo:
		return c.parseDoWhile()
	case lexer.KwFor:
		return c.parseFor()
	case lexer.KwReturn:
		return c.parseReturn()
	case lexer.Semi:
		return c.advance()
	}
	if isTypeKeyword(c.tok.Kind) {
		return c.parseLocalDecl()
	}
	return c.parseExprStatement()
}

func (c *Compiler) parseLocalDecl() error {
	if err := c.advance(); err != nil { // consume type keyword
		return err
	}
	for {
		if c.tok.Kind == lexer.Star {
			if err := c.advance(); err != nil {
				return err
			}
		}
		if c.tok.Kind != lexer.Ident {
			return c.errf("expected local variable name")
		}
		name := c.tok.Name
		if err := c.advance(); err != nil {
			return err
		}
		size := int64(0)
		if c.tok.Kind == lexer.LBracket {
			if err := c.advance(); err != nil {
				return err
			}
			if c.tok.Kind == lexer.Integer {
				size = c.tok.Integer
				if err := c.advance(); err != nil {
					return err
				}
			}
			if err := c.expect(lexer.RBracket, "']'"); err != nil {
				return err
			}
		}
		slot, err := c.declareLocal(name, size)
		if err != nil {
			return err
		}
		if c.tok.Kind == lexer.Assign {
			if err := c.advance(); err != nil {
				return err
			}
			if err := c.parseExpr(); err != nil {
				return err
			}
			c.emitOp(bytecode.OpLocalLValue, slot, int32(size))
			c.emitOp(bytecode.OpStore, 0, 0)
		}
		if c.tok.Kind == lexer.Comma {
			if err := c.advance(); err != nil {
				return err
			}
			continue
		}
		break
	}
	return c.expect(lexer.Semi, "';'")
}

func (c *Compiler) parseIf() error {
	if err := c.advance(); err != nil { // consume 'if'
		return err
	}
	if err := c.expect(lexer.LParen, "'('"); err != nil {
		return err
	}
	if err := c.parseExpr(); err != nil {
		return err
	}
	if err := c.expect(lexer.RParen, "')'"); err != nil {
		return err
	}
	branchToElse := c.emitOp(bytecode.OpBranch, 0, 0)
	if err := c.parseStatement(); err != nil {
		return err
	}
	if c.tok.Kind == lexer.KwElse {
		jumpToEnd := c.emitOp(bytecode.OpJump, 0, 0)
		c.patchTarget(branchToElse)
		if err := c.advance(); err != nil { // consume 'else'
			return err
		}
		if err := c.parseStatement(); err != nil {
			return err
		}
		c.patchTarget(jumpToEnd)
		return nil
	}
	c.patchTarget(branchToElse)
	return nil
}

func (c *Compiler) parseWhile() error {
	if err := c.advance(); err != nil { // consume 'while'
		return err
	}
	top := len(c.curCode)
	if err := c.expect(lexer.LParen, "'('"); err != nil {
		return err
	}
	if err := c.parseExpr(); err != nil {
		return err
	}
	if err := c.expect(lexer.RParen, "')'"); err != nil {
		return err
	}
	branchOut := c.emitOp(bytecode.OpBranch, 0, 0)
	if err := c.parseStatement(); err != nil {
		return err
	}
	c.emitOp(bytecode.OpJump, int32(top), 0)
	c.patchTarget(branchOut)
	return nil
}

func (c *Compiler) parseDoWhile() error {
	if err := c.advance(); err != nil { // consume 'do'
		return err
	}
	top := len(c.curCode)
	if err := c.parseStatement(); err != nil {
		return err
	}
	if err := c.expect(lexer.KwWhile, "'while'"); err != nil {
		return err
	}
	if err := c.expect(lexer.LParen, "'('"); err != nil {
		return err
	}
	if err := c.parseExpr(); err != nil {
		return err
	}
	if err := c.expect(lexer.RParen, "')'"); err != nil {
		return err
	}
	if err := c.expect(lexer.Semi, "';'"); err != nil {
		return err
	}
	// Branch-if-zero falls through; invert by branching past a jump
	// back to top when the condition is zero.
	branchOut := c.emitOp(bytecode.OpBranch, 0, 0)
	c.emitOp(bytecode.OpJump, int32(top), 0)
	c.patchTarget(branchOut)
	return nil
}

func (c *Compiler) parseFor() error {
	if err := c.advance(); err != nil { // consume 'for'
		return err
	}
	if err := c.expect(lexer.LParen, "'('"); err != nil {
		return err
	}
	if c.tok.Kind != lexer.Semi {
		if err := c.parseExpr(); err != nil {
			return err
		}
		c.emitOp(bytecode.OpPop, 0, 0)
	}
	if err := c.expect(lexer.Semi, "';'"); err != nil {
		return err
	}

	top := len(c.curCode)
	var branchOut int
	hasCond := c.tok.Kind != lexer.Semi
	if hasCond {
		if err := c.parseExpr(); err != nil {
			return err
		}
		branchOut = c.emitOp(bytecode.OpBranch, 0, 0)
	}
	if err := c.expect(lexer.Semi, "';'"); err != nil {
		return err
	}

	// There is no AST to hold the post-clause for replay after the
	// body, so it is compiled here, into a side buffer, and spliced in
	// after the body once the body itself has been compiled.
	postStart := len(c.curCode)
	if c.tok.Kind != lexer.RParen {
		if err := c.parseExpr(); err != nil {
			return err
		}
		c.emitOp(bytecode.OpPop, 0, 0)
	}
	postCode := append([]bytecode.Instr(nil), c.curCode[postStart:]...)
	c.curCode = c.curCode[:postStart]

	if err := c.expect(lexer.RParen, "')'"); err != nil {
		return err
	}
	if err := c.parseStatement(); err != nil {
		return err
	}
	c.curCode = append(c.curCode, postCode...)
	c.emitOp(bytecode.OpJump, int32(top), 0)
	if hasCond {
		c.patchTarget(branchOut)
	}
	return nil
}

func (c *Compiler) parseReturn() error {
	if err := c.advance(); err != nil { // consume 'return'
		return err
	}
	if c.tok.Kind == lexer.Semi {
		c.emitOp(bytecode.OpPushInt, 0, 0)
	} else if err := c.parseExpr(); err != nil {
		return err
	}
	c.emitOp(bytecode.OpReturn, 0, 0)
	return c.expect(lexer.Semi, "';'")
}

func (c *Compiler) parseExprStatement() error {
	if err := c.parseExpr(); err != nil {
		return err
	}
	c.emitOp(bytecode.OpPop, 0, 0)
	return c.expect(lexer.Semi, "';'")
}
