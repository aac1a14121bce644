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

// Package lexer implements the tokenizer and preprocessor: a
// layered input stack (open files plus an in-memory macro-expansion
// buffer that takes lexical priority), a one-token putback, and the
// five preprocessor directives.
package lexer

// Kind names every token the compiler front end can see. Identifiers
// become a keyword Kind when they match a reserved name; otherwise
// they stay Ident and are subject to macro expansion.
type Kind int

const (
	EOF Kind = iota
	Ident
	String
	Integer

	// Keywords.
	KwInt
	KwStringType
	KwObjectType
	KwMappingType
	KwArrayType // only meaningful combined with '*'/'[]' on a base type
	KwStatic
	KwIf
	KwElse
	KwWhile
	KwFor
	KwDo
	KwReturn
	KwInherit

	// Punctuation / operators.
	Comma
	Semi
	LBrace
	RBrace
	LParen
	RParen
	Colon
	LBracket
	RBracket
	Dot
	Star
	Amp

	// Two/three-character compounds.
	EqEq
	NotEq
	LtEq
	GtEq
	Lt
	Gt
	Shl
	Shr
	ShlEq
	ShrEq
	PlusPlus
	MinusMinus
	AndAnd
	OrOr
	Arrow  // ->
	DColon //::
	LArr // ({ (array literal open)
	RArr   // })
	LMap // ([ (mapping literal open)
	RMap   // ])

	Plus
	Minus
	Slash
	Percent
	Assign
	PlusEq
	MinusEq
	StarEq
	SlashEq
	PercentEq
	AndEq
	OrEq
	Bang
	Pipe
	Caret
	Tilde
	Question
	NewLine // synthetic marker the compiler emits at statement tops
)

var keywords = map[string]Kind{
	"int":     KwInt,
	"string":  KwStringType,
	"object":  KwObjectType,
	"mapping": KwMappingType,
	"mixed":   KwArrayType,
	"static":  KwStatic,
	"if":      KwIf,
	"else":    KwElse,
	"while":   KwWhile,
	"for":     KwFor,
	"do":      KwDo,
	"return":  KwReturn,
	"inherit": KwInherit,
}

// MaxIdentLen mirrors token.h's MAX_TOK_LEN: identifiers beyond this
// length are a compile error.
const MaxIdentLen = 31

// Token is one lexical unit. Name holds identifier/string text;
// Integer holds the parsed integer literal.
type Token struct {
	Kind    Kind
	Name    string
	Integer int64
	Line    int
}

func lookupKeyword(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	return k, ok
}
