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

package admin

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	saved bool
}

func (f *fakeHost) Save() bool             { f.saved = true; return true }
func (f *fakeHost) PendingCommands() int64 { return 2 }
func (f *fakeHost) PendingAlarms() int64   { return 3 }
func (f *fakeHost) Version() string        { return "loom test" }

func TestAdminEndpoints(t *testing.T) {
	h := &fakeHost{}
	srv := httptest.NewServer(Router(h))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/version")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	resp2, err := srv.Client().Get(srv.URL + "/queues")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, 200, resp2.StatusCode)

	resp3, err := srv.Client().Post(srv.URL+"/checkpoint", "", nil)
	require.NoError(t, err)
	defer resp3.Body.Close()
	require.Equal(t, 200, resp3.StatusCode)
	require.True(t, h.saved)
}
