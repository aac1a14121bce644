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

package builtin

import (
	"time"

	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vm"
)

func registerSchedule(t *Table) {
	t.register("alarm", biAlarm)
	t.register("remove_alarm", biRemoveAlarm)
	t.register("time", biTime)
	t.register("mktime", biMktime)
}

// biAlarm schedules this_object's named function to fire delay
// seconds from now (alarm queue), returning the alarm id
// remove_alarm expects, or 0 if no scheduler is wired yet.
func biAlarm(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Scheduler == nil {
		return value.Int(0), nil
	}
	o := m.CurrentObject()
	if o == nil {
		return value.Int(0), nil
	}
	id := t.Scheduler.ScheduleAlarm(o.Handle, arg(args, 1).Str(), arg(args, 0).Int())
	return value.Int(id), nil
}

func biRemoveAlarm(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Scheduler == nil {
		return value.Int(0), nil
	}
	return boolInt(t.Scheduler.CancelAlarm(arg(args, 0).Int())), nil
}

func biTime(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	return value.Int(now().Unix()), nil
}

// biMktime builds a Unix timestamp from a date-component array:
// ({sec, min, hour, mday, mon, year}), year as a full four-digit year
// and mon 1-12, matching the field order 's filesystem/alarm
// timestamps are rendered with.
func biMktime(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	a := arg(args, 0).Array()
	if a == nil || a.Size() < 6 {
		return value.Int(0), nil
	}
	get := func(i int64) int {
		v, _ := a.Get(i)
		return int(v.Int())
	}
	sec, min, hour, mday, mon, year := get(0), get(1), get(2), get(3), get(4), get(5)
	ts := time.Date(year, time.Month(mon), mday, hour, min, sec, 0, time.UTC)
	return value.Int(ts.Unix()), nil
}
