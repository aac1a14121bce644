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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loom.conf")
	require.NoError(t, os.WriteFile(path, []byte(`
# driver paths
load=world.db
save=world.db
panic=world.panic
filesystem=/srv/mudlib   # host root
port=4242
xlogsize=1048576
title=testworld
single=1
`), 0o644))

	c := Default()
	require.NoError(t, c.LoadFile(path))
	require.Equal(t, "world.db", c.Load)
	require.Equal(t, "world.panic", c.Panic)
	require.Equal(t, "/srv/mudlib", c.Filesystem)
	require.Equal(t, 4242, c.Port)
	require.Equal(t, int64(1048576), c.XlogSize)
	require.Equal(t, "testworld", c.Title)
	require.True(t, c.Single)
	require.False(t, c.Multi)
}

func TestRejects(t *testing.T) {
	c := Default()
	require.Error(t, c.Set("port", "notanumber"))
	require.Error(t, c.Set("port", "70000"))
	require.Error(t, c.Set("protocol", "udp"))
	require.Error(t, c.Set("nosuchkey", "x"))

	path := filepath.Join(t.TempDir(), "bad.conf")
	require.NoError(t, os.WriteFile(path, []byte("port 4000\n"), 0o644))
	require.Error(t, c.LoadFile(path))
}
