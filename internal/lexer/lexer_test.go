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

package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhaven/loom/internal/lexer"
)

func collect(t *testing.T, l *lexer.Lexer) []*lexer.Token {
	t.Helper()
	var toks []*lexer.Token
	for {
		tok, err := l.NextToken()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == lexer.EOF {
			return toks
		}
	}
}

func TestBasicTokens(t *testing.T) {
	l := lexer.New("t.c", `int a; a = 3 + 4;`, nil)
	toks := collect(t, l)
	kinds := make([]lexer.Kind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	require.Equal(t, []lexer.Kind{
		lexer.KwInt, lexer.Ident, lexer.Semi,
		lexer.Ident, lexer.Assign, lexer.Integer, lexer.Plus, lexer.Integer, lexer.Semi,
		lexer.EOF,
	}, kinds)
}

func TestObjectLikeMacroExpansion(t *testing.T) {
	l := lexer.New("t.c", "#define FOO 42\nint a = FOO;", nil)
	toks := collect(t, l)
	require.Equal(t, lexer.Integer, toks[3].Kind)
	require.Equal(t, int64(42), toks[3].Integer)
}

func TestFunctionLikeMacroExpansion(t *testing.T) {
	l := lexer.New("t.c", "#define ADD(a,b) (a+b)\nint x = ADD(1,2);", nil)
	toks := collect(t, l)
	// x = ( 1 + 2 );
	require.Equal(t, lexer.LParen, toks[3].Kind)
	require.Equal(t, lexer.Integer, toks[4].Kind)
	require.Equal(t, int64(1), toks[4].Integer)
	require.Equal(t, lexer.Plus, toks[5].Kind)
	require.Equal(t, lexer.Integer, toks[6].Kind)
	require.Equal(t, int64(2), toks[6].Integer)
}

func TestCompoundOperators(t *testing.T) {
	l := lexer.New("t.c", `a <<= 1; b ({ }) ([ ])`, nil)
	toks := collect(t, l)
	require.Equal(t, lexer.ShlEq, toks[1].Kind)
	require.Equal(t, lexer.LArr, toks[5].Kind)
	require.Equal(t, lexer.RArr, toks[6].Kind)
	require.Equal(t, lexer.LMap, toks[7].Kind)
	require.Equal(t, lexer.RMap, toks[8].Kind)
}

func TestStringEscapesAreOpaqueToMacroExpansion(t *testing.T) {
	l := lexer.New("t.c", `#define FOO bar
string s = "not FOO here";`, nil)
	toks := collect(t, l)
	require.Equal(t, lexer.String, toks[3].Kind)
	require.Equal(t, "not FOO here", toks[3].Name)
}

type recursiveLoader struct{}

func (recursiveLoader) LoadMudlib(string) (string, error)   { return "", nil }
func (recursiveLoader) LoadStandard(string) (string, error) { return "", nil }

func TestMacroRecursionLimitFailsCompile(t *testing.T) {
	l := lexer.New("t.c", "#define A A\nint x = A;", nil)
	for {
		tok, err := l.NextToken()
		if err != nil {
			return
		}
		if tok.Kind == lexer.EOF {
			t.Fatal("expected recursion depth error, got clean EOF")
		}
	}
}
