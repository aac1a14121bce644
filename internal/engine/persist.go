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
	"strconv"

	"go.uber.org/zap"

	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/persist"
	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vfs"
)

// Save implements builtin.SysctlHost: write a checkpoint to the
// configured save path. Returns false (logging the cause) on failure;
// a failed routine save is an operational incident, not a fatal error.
func (e *Engine) Save() bool {
	if err := e.writeCheckpoint(e.savePath); err != nil {
		e.log.Error("checkpoint failed", zap.String("path", e.savePath), zap.Error(err))
		return false
	}
	return true
}

// SavePanic makes the emergency write attempt to the panic path.
func (e *Engine) SavePanic() bool {
	if e.panicPath == "" {
		return false
	}
	if err := e.writeCheckpoint(e.panicPath); err != nil {
		e.log.Error("panic checkpoint failed", zap.String("path", e.panicPath), zap.Error(err))
		return false
	}
	return true
}

func (e *Engine) writeCheckpoint(path string) error {
	// Pre-rename flush phase (open questions): every paged-out
	// payload is materialized back onto its object before the image is
	// written, so the new checkpoint is complete without the old one
	// or the transaction log.
	for _, h := range e.Store.LiveHandles() {
		obj, ok := e.Store.Get(h)
		if !ok || obj.IsResident() {
			continue
		}
		if payload, ok := e.evicted[h]; ok {
			if err := e.Cache.Restore(obj, payload); err != nil {
				return err
			}
		}
	}

	var fsTree []persist.FSEntry
	if e.Mirror != nil {
		for _, entry := range e.Mirror.Snapshot() {
			fsTree = append(fsTree, persist.FSEntry{
				Name:  entry.Path,
				Flags: uint32(entry.Flags),
				Owner: strconv.FormatInt(int64(entry.Owner), 10),
			})
		}
	}

	var cmds []persist.QueuedCommand
	for c := e.cmdHead; c != nil; c = c.next {
		cmds = append(cmds, persist.QueuedCommand{Target: c.target, Text: c.text})
	}

	var alarms []persist.QueuedAlarm
	e.alarms.Ascend(func(a *alarmEntry) bool {
		alarms = append(alarms, persist.QueuedAlarm{
			Target:   a.target,
			Func:     a.fn,
			Deadline: a.deadline,
			Seq:      a.seq,
		})
		return true
	})

	dbTop := int64(0)
	for _, h := range e.Store.LiveHandles() {
		if int64(h)+1 > dbTop {
			dbTop = int64(h) + 1
		}
	}

	ckpt := persist.NewCheckpoint(e.Store, e.Syms)
	if err := ckpt.Write(path, dbTop, fsTree, cmds, alarms); err != nil {
		return err
	}

	// Everything the log held is now in the checkpoint.
	if e.txlog != nil {
		if err := e.txlog.Truncate(); err != nil {
			return err
		}
	}
	e.evicted = make(map[object.Handle][]byte)
	for _, h := range e.Store.LiveHandles() {
		if obj, ok := e.Store.Get(h); ok && obj.State == object.StateDirty {
			obj.State = object.StateInCache
		}
	}
	return nil
}

// Restore loads a checkpoint image: prototypes register and re-link,
// objects recreate at their original handles, the mirror's virtual
// tree reloads, and the pending queues re-enqueue with their original
// deadlines and ordering.
func (e *Engine) Restore(path string) error {
	result, err := persist.Read(path, e.Store, e.Syms)
	if err != nil {
		return err
	}

	for _, proto := range result.Prototype {
		if _, ok := e.Store.PrototypeByPath(proto.Path); !ok {
			e.Store.RegisterPrototype(proto)
		}
	}
	// Re-point restored objects at their registered prototypes.
	for _, h := range e.Store.LiveHandles() {
		if obj, ok := e.Store.Get(h); ok && obj.Proto != nil {
			if proto, ok := e.Store.PrototypeByPath(obj.Proto.Path); ok {
				obj.Proto = proto
			}
		}
	}

	if e.Mirror != nil {
		var entries []vfs.Entry
		for _, fe := range result.FSTree {
			owner, _ := strconv.ParseInt(fe.Owner, 10, 32)
			entries = append(entries, vfs.Entry{
				Path:  fe.Name,
				Flags: vfs.Flag(fe.Flags),
				Owner: value.Handle(owner),
			})
		}
		e.Mirror.LoadSnapshot(entries)
	}

	for _, cmd := range result.Commands {
		e.EnqueueCommand(cmd.Target, cmd.Text)
	}
	for _, a := range result.Alarms {
		e.alarmID++
		entry := &alarmEntry{
			deadline: a.Deadline,
			seq:      a.Seq,
			id:       e.alarmID,
			target:   a.Target,
			fn:       a.Func,
		}
		e.alarms.ReplaceOrInsert(entry)
		e.alarmByID[entry.id] = entry
		if a.Seq > e.alarmSeq {
			e.alarmSeq = a.Seq
		}
	}
	return nil
}
