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

package telnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineFraming(t *testing.T) {
	var p Proto
	lines, out := p.Feed([]byte("say hello\r\nlo"))
	require.Empty(t, out)
	require.Equal(t, []string{"say hello"}, lines)

	lines, _ = p.Feed([]byte("ok\n"))
	require.Equal(t, []string{"look"}, lines)
}

func TestIACIACDecodesToLiteral(t *testing.T) {
	var p Proto
	lines, _ := p.Feed([]byte{'a', cmdIAC, cmdIAC, 'b', '\n'})
	require.Equal(t, []string{string([]byte{'a', 0xFF, 'b'})}, lines)
}

func TestNegotiationReplies(t *testing.T) {
	var p Proto

	// Client agrees to our WILL ECHO / WILL SGA offers.
	_, out := p.Feed([]byte{cmdIAC, cmdDO, optEcho, cmdIAC, cmdDO, optSGA})
	require.Empty(t, out)
	require.True(t, p.EchoOn)
	require.True(t, p.SGAOn)

	// An option we never offered is refused.
	_, out = p.Feed([]byte{cmdIAC, cmdDO, 99})
	require.Equal(t, []byte{cmdIAC, cmdWONT, 99}, out)

	// Client offering an option we don't want is refused.
	_, out = p.Feed([]byte{cmdIAC, cmdWILL, 99})
	require.Equal(t, []byte{cmdIAC, cmdDONT, 99}, out)

	// Client willing to do TTYPE gets asked for it.
	_, out = p.Feed([]byte{cmdIAC, cmdWILL, optTTYPE})
	require.Equal(t, []byte{cmdIAC, cmdSB, optTTYPE, ttypeSend, cmdIAC, cmdSE}, out)
}

func TestNAWSSubnegotiation(t *testing.T) {
	var p Proto
	_, out := p.Feed([]byte{cmdIAC, cmdSB, optNAWS, 0, 80, 0, 24, cmdIAC, cmdSE})
	require.Empty(t, out)
	require.Equal(t, 80, p.NAWSCols)
	require.Equal(t, 24, p.NAWSRows)
}

func TestTTYPEIs(t *testing.T) {
	var p Proto
	payload := append([]byte{cmdIAC, cmdSB, optTTYPE, ttypeIs}, []byte("xterm-256color")...)
	payload = append(payload, cmdIAC, cmdSE)
	_, out := p.Feed(payload)
	require.Empty(t, out)
	require.Equal(t, "xterm-256color", p.TermType)
}

func TestMSSPResponse(t *testing.T) {
	p := Proto{MSSPVars: map[string]string{"UPTIME": "12"}}
	_, out := p.Feed([]byte{cmdIAC, cmdDO, optMSSP})
	require.Equal(t, []byte{cmdIAC, cmdWILL, optMSSP}, out[:3])
	require.Contains(t, string(out), "NAME")
	require.Contains(t, string(out), "UPTIME")
	require.Equal(t, []byte{cmdIAC, cmdSE}, out[len(out)-2:])
}

func TestEncodeOutEscapesIAC(t *testing.T) {
	require.Equal(t, []byte("plain"), EncodeOut([]byte("plain")))
	require.Equal(t,
		[]byte{'x', cmdIAC, cmdIAC, 'y'},
		EncodeOut([]byte{'x', cmdIAC, 'y'}))
}

func TestPromptSuffix(t *testing.T) {
	var p Proto
	require.Equal(t, []byte{cmdIAC, cmdGA}, p.PromptSuffix())
	p.SGAOn = true
	require.Empty(t, p.PromptSuffix())
}
