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

package vfs_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vfs"
)

func newMirror(t *testing.T) *vfs.Mirror {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/world/wizard", 0755))
	require.NoError(t, afero.WriteFile(fs, "/world/wizard/spell.c", []byte("int x;"), 0644))
	return vfs.New(fs, "/world")
}

func TestLookupAutoDiscoversHostFile(t *testing.T) {
	m := newMirror(t)
	node, err := m.Stat("/wizard/spell.c", 1)
	require.NoError(t, err)
	require.Equal(t, "spell.c", node.Name)
	require.False(t, node.IsDir())
}

func TestRejectsPathEscape(t *testing.T) {
	m := newMirror(t)
	_, err := m.Stat("/wizard/../../../etc/passwd", 1)
	require.ErrorIs(t, err, vfs.ErrInvalidPath)
}

func TestRejectsEmbeddedNUL(t *testing.T) {
	m := newMirror(t)
	_, err := m.Stat("/wizard/\x00evil", 1)
	require.ErrorIs(t, err, vfs.ErrInvalidPath)
}

func TestListReconcilesStaleEntries(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/world/room", 0755))
	require.NoError(t, afero.WriteFile(fs, "/world/room/a.c", []byte("x"), 0644))
	m := vfs.New(fs, "/world")

	entries, err := m.List("/room", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, fs.Remove("/world/room/a.c"))
	require.NoError(t, afero.WriteFile(fs, "/world/room/b.c", []byte("y"), 0644))

	entries, err = m.List("/room", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "b.c", entries[0].Name)
}

func TestWriteReadRoundTrip(t *testing.T) {
	m := newMirror(t)
	require.NoError(t, m.WriteFile("/wizard/new.c", value.Handle(2), []byte("hello")))
	data, err := m.ReadFile("/wizard/new.c", value.Handle(2))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

type fakeAuthority struct{ allow bool }

func (f fakeAuthority) Check(pathname, op string, caller, owner value.Handle, flags vfs.Flag) (bool, error) {
	return f.allow, nil
}

func TestAuthorityIsAuthoritativeOnceInstalled(t *testing.T) {
	m := newMirror(t)
	m.SetAuthority(fakeAuthority{allow: false})
	node, err := m.Stat("/wizard/spell.c", 99)
	require.NoError(t, err)
	ok, err := m.Permit("/wizard/spell.c", "write", 99, node)
	require.NoError(t, err)
	require.False(t, ok)
}
