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

package engine_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/loomhaven/loom/internal/engine"
	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/persist"
	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vfs"
)

func newTestEngine(t *testing.T, files map[string]string, opts engine.Options) *engine.Engine {
	t.Helper()
	fs := afero.NewMemMapFs()
	for p, src := range files {
		require.NoError(t, afero.WriteFile(fs, "/mudlib"+p, []byte(src), 0o644))
	}
	opts.Mirror = vfs.New(fs, "/mudlib")
	if opts.SavePath == "" {
		opts.SavePath = filepath.Join(t.TempDir(), "loom.db")
	}
	e, err := engine.New(opts)
	require.NoError(t, err)
	return e
}

// TestTickDrainsCommandsAndDueAlarms: a queued command and an alarm
// due by the wake time both drain within one Tick, before the
// scheduler would return to I/O.
func TestTickDrainsCommandsAndDueAlarms(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"/player.c": `
int pokes;
int ticks;

int do_poke(string arg) {
    pokes = pokes + 1;
    return 1;
}

int on_tick() {
    ticks = ticks + 1;
    return 0;
}
`,
	}, engine.Options{})

	proto, err := e.CompileObject("/player.c")
	require.NoError(t, err)
	player := e.Store.Clone(proto)
	player.Verbs = append(player.Verbs, object.Verb{Word: "poke", Func: "do_poke", Exact: true})

	e.EnqueueCommand(player.Handle, "poke east")
	e.ScheduleAlarm(player.Handle, "on_tick", 0)
	require.Equal(t, int64(1), e.PendingCommands())
	require.Equal(t, int64(1), e.PendingAlarms())

	e.Tick(time.Now())

	require.Equal(t, int64(0), e.PendingCommands())
	require.Equal(t, int64(0), e.PendingAlarms())
	require.Equal(t, int64(1), player.Globals[0].Int()) // pokes
	require.Equal(t, int64(1), player.Globals[1].Int()) // ticks
}

// TestAlarmsFireInDeadlineThenInsertionOrder covers ordering
// guarantee: earlier deadlines first, ties in insertion order.
func TestAlarmsFireInDeadlineThenInsertionOrder(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"/clock.c": `
int order;

int late() {
    order = order * 10 + 3;
    return 0;
}

int first() {
    order = order * 10 + 1;
    return 0;
}

int second() {
    order = order * 10 + 2;
    return 0;
}
`,
	}, engine.Options{})

	proto, err := e.CompileObject("/clock.c")
	require.NoError(t, err)
	clock := e.Store.Clone(proto)

	e.ScheduleAlarm(clock.Handle, "late", 5)
	e.ScheduleAlarm(clock.Handle, "first", 0)
	e.ScheduleAlarm(clock.Handle, "second", 0)

	e.Tick(time.Now().Add(10 * time.Second))
	require.Equal(t, int64(123), clock.Globals[0].Int())
}

// TestDestructDuringHandlerPurgesQueues: a destruction queued by an
// alarm handler drains before the command phase, purging the dead
// object's pending command with it (command/alarm lifecycle).
func TestDestructDuringHandlerPurgesQueues(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"/bomb.c": `
int boom() {
    destruct(this_object());
    return 0;
}

int do_fizzle(string arg) {
    return 1;
}
`,
	}, engine.Options{})

	proto, err := e.CompileObject("/bomb.c")
	require.NoError(t, err)
	bomb := e.Store.Clone(proto)
	bomb.Verbs = append(bomb.Verbs, object.Verb{Word: "fizzle", Func: "do_fizzle", Exact: true})
	handle := bomb.Handle

	e.ScheduleAlarm(handle, "boom", 0)
	e.EnqueueCommand(handle, "fizzle now")

	e.Tick(time.Now())

	_, alive := e.Store.Get(handle)
	require.False(t, alive)
	require.Equal(t, int64(0), e.PendingCommands())
	require.Equal(t, int64(0), e.PendingAlarms())
}

// TestInputRedirectConsumesNextLine covers the one-shot input-function
// contract: the next line routes to the named function and the
// redirect clears before the handler runs.
func TestInputRedirectConsumesNextLine(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"/login.c": `
string got;

int take_name(string line) {
    got = line;
    return 1;
}
`,
	}, engine.Options{})

	proto, err := e.CompileObject("/login.c")
	require.NoError(t, err)
	login := e.Store.Clone(proto)
	login.Input = &object.InputFunc{Object: login.Handle, Func: "take_name"}

	e.EnqueueCommand(login.Handle, "Wiz")
	e.Tick(time.Now())

	require.Nil(t, login.Input)
	require.Equal(t, "Wiz", login.Globals[0].Str())
}

// TestSaveRestoreRoundTrip: globals, prototypes (with runnable
// bytecode), pending commands, and pending alarms all survive a
// checkpoint into a fresh engine.
func TestSaveRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	savePath := filepath.Join(dir, "loom.db")
	files := map[string]string{
		"/room.c": `
string title;

int set_title(string s) {
    title = s;
    return 1;
}

string get_title() {
    return title;
}

int on_alarm() {
    return 0;
}
`,
	}

	e := newTestEngine(t, files, engine.Options{SavePath: savePath})
	proto, err := e.CompileObject("/room.c")
	require.NoError(t, err)
	room := e.Store.Clone(proto)
	_, ok := e.CallFunction(room.Handle, "set_title", []value.Value{value.String("the foyer")})
	require.True(t, ok)

	e.EnqueueCommand(room.Handle, "look around")
	e.ScheduleAlarm(room.Handle, "on_alarm", 60)

	require.True(t, e.Save())

	e2 := newTestEngine(t, files, engine.Options{SavePath: savePath})
	require.NoError(t, e2.Restore(savePath))

	got, ok := e2.CallFunction(room.Handle, "get_title", nil)
	require.True(t, ok)
	require.Equal(t, "the foyer", got.Str())

	require.Equal(t, int64(1), e2.PendingCommands())
	require.Equal(t, int64(1), e2.PendingAlarms())
	deadline, ok := e2.NextDeadline()
	require.True(t, ok)
	require.Greater(t, deadline.Unix(), time.Now().Unix()-1)
}

// TestEvictionPagesOutAndBack: with a resident cap of 2, three
// mutated objects force dirty evictions through the transaction
// log, and re-reading each string pages the right payload back in.
func TestEvictionPagesOutAndBack(t *testing.T) {
	dir := t.TempDir()
	xlog := filepath.Join(dir, "loom.xlog")
	e := newTestEngine(t, map[string]string{
		"/thing.c": `
string name;

int set_name(string s) {
    name = s;
    return 1;
}

string get_name() {
    return name;
}
`,
	}, engine.Options{ResidentCap: 2, XlogPath: xlog})

	proto, err := e.CompileObject("/thing.c")
	require.NoError(t, err)

	names := []string{"ruby", "topaz", "opal"}
	var things []object.Handle
	for _, n := range names {
		obj := e.Store.Clone(proto)
		things = append(things, obj.Handle)
		_, ok := e.CallFunction(obj.Handle, "set_name", []value.Value{value.String(n)})
		require.True(t, ok)
	}

	evictedAny := false
	for _, h := range things {
		if obj, ok := e.Store.Get(h); ok && !obj.IsResident() {
			evictedAny = true
		}
	}
	require.True(t, evictedAny)

	for i, h := range things {
		got, ok := e.CallFunction(h, "get_name", nil)
		require.True(t, ok)
		require.Equal(t, names[i], got.Str())
	}

	records, err := persist.ReadAll(xlog)
	require.NoError(t, err)
	require.NotEmpty(t, records)
}
