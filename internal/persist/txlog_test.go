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

package persist_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/persist"
)

func TestTransactionLogAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loom.log")

	log, err := persist.OpenTransactionLog(path)
	require.NoError(t, err)

	require.NoError(t, log.WriteEviction(object.Handle(1), []byte("alpha")))
	require.NoError(t, log.WriteEviction(object.Handle(2), []byte(strings.Repeat("x", 1000))))
	require.NoError(t, log.WriteEviction(object.Handle(1), []byte("alpha-v2")))
	require.NoError(t, log.Sync())
	require.NoError(t, log.Close())

	records, err := persist.ReadAll(path)
	require.NoError(t, err)
	require.Len(t, records, 3)

	latest := persist.LatestByHandle(records)
	require.Equal(t, []byte("alpha-v2"), latest[object.Handle(1)])
	require.Equal(t, strings.Repeat("x", 1000), string(latest[object.Handle(2)]))
}

func TestTransactionLogReadAllMissingFileIsNotError(t *testing.T) {
	records, err := persist.ReadAll(filepath.Join(t.TempDir(), "nonexistent.log"))
	require.NoError(t, err)
	require.Nil(t, records)
}
