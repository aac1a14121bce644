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

package cache_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomhaven/loom/internal/cache"
	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/value"
)

// jsonCodec is a stand-in for internal/persist's real codec,
// sufficient to exercise eviction/restore round-tripping of
// string/int globals without coupling this package's tests to it.
type jsonCodec struct{}

func (jsonCodec) Encode(globals []value.Value) ([]byte, error) {
	raw := make([]string, len(globals))
	for i, g := range globals {
		if g.IsString() {
			raw[i] = "s:" + g.Str()
		} else {
			raw[i] = "i"
		}
	}
	return json.Marshal(raw)
}

func (jsonCodec) Decode(data []byte) ([]value.Value, error) {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]value.Value, len(raw))
	for i, s := range raw {
		if len(s) > 1 && s[:2] == "s:" {
			out[i] = value.String(s[2:])
		} else {
			out[i] = value.Zero()
		}
	}
	return out, nil
}

// fakeLog accumulates one entry per WriteEviction call, enough to
// assert the "exactly one record per dirty eviction" half of scenario
// F without a real checkpoint file.
type fakeLog struct {
	records map[object.Handle][]byte
}

func newFakeLog() *fakeLog { return &fakeLog{records: make(map[object.Handle][]byte)} }

func (f *fakeLog) WriteEviction(h object.Handle, payload []byte) error {
	f.records[h] = payload
	return nil
}

// TestResidentCapEvictsAndRestores: resident cap 2, three dirty
// string-holding objects, forced eviction,
// each string equal to what was written, exactly one log record per
// dirty eviction.
func TestResidentCapEvictsAndRestores(t *testing.T) {
	store := object.NewStore()
	proto := object.NewPrototype("/thing.c")
	proto.OwnGlobals = []string{"s"}
	proto.TotalGlobals = 1
	proto.AncestorBase[proto] = 0
	store.InstallPrototypeObject(proto)

	log := newFakeLog()
	c, err := cache.New(store, 2, jsonCodec{}, log)
	require.NoError(t, err)

	objs := make([]*object.Object, 3)
	strs := []string{"alpha", "beta", "gamma"}
	for i := range objs {
		o := store.Clone(proto)
		o.Globals[0] = value.String(strs[i])
		o.Dirty()
		c.Touch(o)
		objs[i] = o
	}

	// Cap is 2, so the least-recently-touched (objs[0]) was evicted when
	// objs[2] was touched.
	require.False(t, c.Resident(objs[0].Handle))
	require.True(t, c.Resident(objs[1].Handle))
	require.True(t, c.Resident(objs[2].Handle))
	require.Nil(t, objs[0].Globals)
	require.Equal(t, object.StateFromCache, objs[0].State)

	payload, ok := log.records[objs[0].Handle]
	require.True(t, ok)
	require.Len(t, log.records, 1)

	require.NoError(t, c.Restore(objs[0], payload))
	require.Equal(t, "alpha", objs[0].Globals[0].Str())
	require.Equal(t, object.StateInCache, objs[0].State)
}

// TestCleanEvictionWritesNoLogRecord: a resident object that was never
// dirtied since its last checkpoint needs no transaction-log entry on
// eviction — nothing changed to record.
func TestCleanEvictionWritesNoLogRecord(t *testing.T) {
	store := object.NewStore()
	proto := object.NewPrototype("/clean.c")
	proto.AncestorBase[proto] = 0
	store.InstallPrototypeObject(proto)

	log := newFakeLog()
	c, err := cache.New(store, 1, jsonCodec{}, log)
	require.NoError(t, err)

	a := store.Clone(proto)
	a.State = object.StateInCache
	c.Touch(a)

	b := store.Clone(proto)
	b.State = object.StateInCache
	c.Touch(b)

	require.Empty(t, log.records)
	require.Nil(t, a.Globals)
}
