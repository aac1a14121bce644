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

package engine

import (
	"strings"
	"time"

	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/value"
)

// EnqueueCommand appends a line for target to the command FIFO.
// Commands from the same connection arrive here in read order, so
// per-connection ordering falls out of the single queue.
func (e *Engine) EnqueueCommand(target object.Handle, text string) {
	c := &command{target: target, text: text}
	if e.cmdTail == nil {
		e.cmdHead = c
	} else {
		e.cmdTail.next = c
	}
	e.cmdTail = c
	e.cmdCount++
}

// ScheduleAlarm implements builtin.Scheduler: fn fires on target
// delaySeconds from now. Equal deadlines fire in insertion order via
// the monotonic sequence tiebreak: two alarms with the same
// deadline fire in insertion order.
func (e *Engine) ScheduleAlarm(target object.Handle, fn string, delaySeconds int64) int64 {
	e.alarmID++
	e.alarmSeq++
	a := &alarmEntry{
		deadline: e.now + delaySeconds,
		seq:      e.alarmSeq,
		id:       e.alarmID,
		target:   target,
		fn:       fn,
	}
	e.alarms.ReplaceOrInsert(a)
	e.alarmByID[a.id] = a
	return a.id
}

// CancelAlarm implements builtin.Scheduler.
func (e *Engine) CancelAlarm(id int64) bool {
	a, ok := e.alarmByID[id]
	if !ok {
		return false
	}
	e.alarms.Delete(a)
	delete(e.alarmByID, id)
	return true
}

// CancelAlarmsNamed removes every alarm for target whose function
// matches fn; an empty fn removes them all, so cancellation works
// by name or wholesale per target.
func (e *Engine) CancelAlarmsNamed(target object.Handle, fn string) int {
	var doomed []*alarmEntry
	e.alarms.Ascend(func(a *alarmEntry) bool {
		if a.target == target && (fn == "" || a.fn == fn) {
			doomed = append(doomed, a)
		}
		return true
	})
	for _, a := range doomed {
		e.alarms.Delete(a)
		delete(e.alarmByID, a.id)
	}
	return len(doomed)
}

// QueueDestruct marks h for destruction at the next drain point.
func (e *Engine) QueueDestruct(h object.Handle) {
	e.destructQ = append(e.destructQ, h)
}

// NextDeadline reports the soonest alarm deadline, for sizing the
// outer poll timeout.
func (e *Engine) NextDeadline() (time.Time, bool) {
	a, ok := e.alarms.Min()
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(a.deadline, 0), true
}

// Tick is one outer-loop pass: drain destruction,
// fire due alarms, drain commands, then destruction and alarms once
// more. now is the only place the engine's clock advances.
func (e *Engine) Tick(now time.Time) {
	e.now = now.Unix()
	e.drainDestruct()
	e.fireAlarms()
	e.drainCommands()
	e.drainDestruct()
	e.fireAlarms()
}

// drainDestruct processes the destruction queue until empty,
// expanding prototype destructions through all clones.
func (e *Engine) drainDestruct() {
	for len(e.destructQ) > 0 {
		h := e.destructQ[0]
		e.destructQ = e.destructQ[1:]
		obj, ok := e.Store.Get(h)
		if !ok {
			continue
		}
		if obj.HasFlag(object.FlagPrototype) && obj.Proto != nil && obj.Proto.Handle == obj.Handle {
			for _, clone := range e.Store.ClonesOf(obj.Proto) {
				e.destructQ = append(e.destructQ, clone)
			}
			// Clones go first; the prototype itself re-queues behind
			// them, with the flag cleared so the expansion runs once.
			obj.ClearFlag(object.FlagPrototype)
			e.Store.UnregisterPrototype(obj.Proto)
			e.destructQ = append(e.destructQ, h)
			continue
		}
		e.purgeQueuesFor(h)
		e.Store.DestructOne(obj, func(holder *object.Object) {
			e.Cache.Touch(holder)
		})
	}
}

// purgeQueuesFor atomically removes h's pending commands and alarms
// (lifecycle: "its remaining commands and alarms are purged
// atomically" when the target is destructed).
func (e *Engine) purgeQueuesFor(h object.Handle) {
	var head, tail *command
	for c := e.cmdHead; c != nil; c = c.next {
		if c.target == h {
			e.cmdCount--
			continue
		}
		nc := &command{target: c.target, text: c.text}
		if tail == nil {
			head = nc
		} else {
			tail.next = nc
		}
		tail = nc
	}
	e.cmdHead, e.cmdTail = head, tail
	e.CancelAlarmsNamed(h, "")
}

// fireAlarms pops every alarm whose deadline has arrived, in
// (deadline, insertion) order. A destruction queued by a handler
// drains before the next alarm fires, never after it.
func (e *Engine) fireAlarms() {
	for {
		a, ok := e.alarms.Min()
		if !ok || a.deadline > e.now {
			return
		}
		e.alarms.Delete(a)
		delete(e.alarmByID, a.id)

		obj, ok := e.Store.Get(a.target)
		if !ok {
			continue
		}
		if fn, owner, _, ok := obj.Proto.Resolve(a.fn); ok {
			e.invoke(obj, obj, fn, owner, nil)
		}
		e.drainDestruct()
	}
}

// drainCommands consumes the command FIFO, dispatching each line and
// draining any destruction it queued before the next command.
func (e *Engine) drainCommands() {
	for e.cmdHead != nil {
		c := e.cmdHead
		e.cmdHead = c.next
		if e.cmdHead == nil {
			e.cmdTail = nil
		}
		e.cmdCount--
		e.dispatchLine(c.target, c.text)
		e.drainDestruct()
	}
}

// dispatchLine routes one framed input line for player: a pending
// input-function redirect consumes it whole (one-shot, swapped out
// before the handler runs so a re-entrant input_to can arm a new
// one); otherwise the line goes through verb
// resolution against the player's location, the location's contents,
// and the player itself.
func (e *Engine) dispatchLine(target object.Handle, line string) {
	player, ok := e.Store.Get(target)
	if !ok {
		return
	}

	if inp := player.Input; inp != nil {
		player.Input = nil
		handler, ok := e.Store.Get(inp.Object)
		if !ok {
			return
		}
		if fn, owner, _, ok := handler.Proto.Resolve(inp.Func); ok {
			e.touch(handler)
			e.Machine.Invoke(handler, player, player, fn, owner, []value.Value{value.String(line)})
		}
		return
	}

	word, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	if word == "" {
		return
	}

	var candidates []*object.Object
	if loc, ok := e.Store.Get(player.Location); ok {
		candidates = append(candidates, loc)
		for cur, ok := e.Store.Get(loc.Contents); ok; cur, ok = e.Store.Get(cur.NextObject) {
			if cur != player {
				candidates = append(candidates, cur)
			}
		}
	}
	candidates = append(candidates, player)

	for _, cand := range candidates {
		for _, v := range cand.Verbs {
			matched := (v.Exact && v.Word == word) || (!v.Exact && strings.HasPrefix(word, v.Word))
			if !matched {
				continue
			}
			fn, owner, _, ok := cand.Proto.Resolve(v.Func)
			if !ok {
				continue
			}
			e.touch(cand)
			result := e.Machine.Invoke(cand, player, player, fn, owner, []value.Value{value.String(rest)})
			if result.Truthy() {
				return
			}
		}
	}
}
