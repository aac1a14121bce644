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

// Package engine ties the core subsystems into one scheduler: the
// command FIFO, the deadline-ordered alarm queue, the destruction
// queue, the compile pipeline, and checkpoint save/restore. The
// engine is single-threaded and cooperative: the outer loop
// hands it a wake time, it drains its queues in the phase order,
// and it reports the next alarm deadline back for the poll timeout.
//
// Process-wide state the original driver kept in C globals (now_time,
// the queue heads, configuration) lives as fields here, threaded
// through by pointer, "Global mutable singletons". now advances
// only at Tick boundaries, never inside an opcode.
package engine

import (
	"time"

	"github.com/google/btree"
	"go.uber.org/zap"

	"github.com/loomhaven/loom/internal/builtin"
	"github.com/loomhaven/loom/internal/cache"
	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/persist"
	"github.com/loomhaven/loom/internal/symtab"
	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vfs"
	"github.com/loomhaven/loom/internal/vm"
)

// Version identifies the driver in sysctl and MSSP responses.
const Version = "loom 1.0"

// Options configures a new Engine.
type Options struct {
	Mirror      *vfs.Mirror
	ResidentCap int    // soft cap on resident objects; 0 means a large default
	SavePath    string // normal checkpoint write path
	PanicPath   string // emergency checkpoint path
	XlogPath    string // transaction log path ("" keeps evictions in memory only)
	Log         *zap.Logger
	Now         func() time.Time // nil means time.Now
}

type command struct {
	target object.Handle
	text   string
	next   *command
}

type alarmEntry struct {
	deadline int64
	seq      int64
	id       int64
	target   object.Handle
	fn       string
}

func alarmLess(a, b *alarmEntry) bool {
	if a.deadline != b.deadline {
		return a.deadline < b.deadline
	}
	return a.seq < b.seq
}

// Engine owns every process-wide singleton shared-resource
// policy. It implements builtin.Scheduler, builtin.Compiler, and
// builtin.SysctlHost, and compiler.Resolver via its resolver view.
type Engine struct {
	Store    *object.Store
	Machine  *vm.Machine
	Builtins *builtin.Table
	Cache    *cache.Cache
	Mirror   *vfs.Mirror
	Syms     *symtab.Table

	log   *zap.Logger
	nowFn func() time.Time
	now   int64 // updated only at Tick boundaries

	savePath  string
	panicPath string
	txlog     *persist.TransactionLog
	evicted   map[object.Handle][]byte // latest paged-out payload per handle

	cmdHead, cmdTail *command
	cmdCount         int64

	alarms    *btree.BTreeG[*alarmEntry]
	alarmByID map[int64]*alarmEntry
	alarmSeq  int64
	alarmID   int64

	destructQ []object.Handle

	stopped  bool
	graceful bool
}

func New(opts Options) (*Engine, error) {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ResidentCap <= 0 {
		opts.ResidentCap = 4096
	}

	e := &Engine{
		Store:     object.NewStore(),
		Mirror:    opts.Mirror,
		Syms:      symtab.New(),
		log:       opts.Log,
		nowFn:     opts.Now,
		savePath:  opts.SavePath,
		panicPath: opts.PanicPath,
		evicted:   make(map[object.Handle][]byte),
		alarms:    btree.NewG(8, alarmLess),
		alarmByID: make(map[int64]*alarmEntry),
	}
	e.now = e.nowFn().Unix()

	if opts.XlogPath != "" {
		// A crash can leave newer payloads in the log than in the
		// checkpoint; replay before opening for append so those
		// records win on first touch.
		if records, err := persist.ReadAll(opts.XlogPath); err == nil {
			for h, payload := range persist.LatestByHandle(records) {
				e.evicted[h] = payload
			}
		}
		tl, err := persist.OpenTransactionLog(opts.XlogPath)
		if err != nil {
			return nil, err
		}
		e.txlog = tl
	}

	c, err := cache.New(e.Store, opts.ResidentCap, persist.ValueCodec{}, (*evictionLog)(e))
	if err != nil {
		return nil, err
	}
	e.Cache = c

	t := builtin.New()
	t.Mirror = opts.Mirror
	t.Syms = e.Syms
	t.Scheduler = e
	t.Compiler = e
	t.Sysctl = e
	t.Now = opts.Now
	e.Builtins = t

	e.Machine = vm.New(e.Store, t)
	e.Machine.Log = func(format string, args ...interface{}) {
		e.log.Sugar().Errorf(format, args...)
	}
	return e, nil
}

// evictionLog adapts the engine into cache.TransactionLog: a dirty
// eviction appends to the on-disk log and keeps the payload in the
// paged-out map so first re-access doesn't have to replay the file.
type evictionLog Engine

func (l *evictionLog) WriteEviction(h object.Handle, payload []byte) error {
	e := (*Engine)(l)
	e.evicted[h] = payload
	if e.txlog == nil {
		return nil
	}
	return e.txlog.WriteEviction(h, payload)
}

// Now returns the scheduler's current second, frozen between Tick
// boundaries.
func (e *Engine) Now() int64 { return e.now }

// Close releases the transaction log handle.
func (e *Engine) Close() error {
	if e.txlog != nil {
		return e.txlog.Close()
	}
	return nil
}

// Stopped reports whether a shutdown request has been taken.
func (e *Engine) Stopped() bool { return e.stopped }

// Shutdown implements builtin.SysctlHost. A graceful shutdown takes a
// checkpoint first.
func (e *Engine) Shutdown(graceful bool) {
	e.stopped = true
	e.graceful = graceful
	if graceful {
		e.Save()
	}
}

// Version implements builtin.SysctlHost.
func (e *Engine) Version() string { return Version }

// PendingCommands implements builtin.SysctlHost.
func (e *Engine) PendingCommands() int64 { return e.cmdCount }

// PendingAlarms implements builtin.SysctlHost.
func (e *Engine) PendingAlarms() int64 { return int64(e.alarms.Len()) }

// touch pages obj's globals back in if they were evicted, then counts
// the access toward LRU recency. Every interpreter entry routes
// through here so "access promotes to the head" holds.
func (e *Engine) touch(obj *object.Object) {
	if !obj.IsResident() {
		if payload, ok := e.evicted[obj.Handle]; ok {
			if err := e.Cache.Restore(obj, payload); err != nil {
				e.log.Error("page-in failed", zap.Int32("object", int32(obj.Handle)), zap.Error(err))
			}
		} else {
			// Nothing ever evicted: give it a zeroed vector sized to
			// its prototype so the interpreter has slots to run over.
			obj.Globals = make([]value.Value, obj.Proto.TotalGlobals)
			for i := range obj.Globals {
				obj.Globals[i] = value.Zero()
			}
			obj.State = object.StateInCache
		}
	}
	obj.LastAccess = e.now
	e.Cache.Touch(obj)
}

// invoke runs fn on obj with the cycle-counter reset of an externally
// scheduled invocation. Cache eviction never runs while the
// interpreter is on the stack: Touch happens before Invoke, and
// nothing inside an opcode touches the LRU.
func (e *Engine) invoke(obj, player *object.Object, fn *object.Function, proto *object.Prototype, args []value.Value) value.Value {
	e.touch(obj)
	return e.Machine.Invoke(obj, player, obj, fn, proto, args)
}

// CallFunction invokes the named function on target as an externally
// scheduled event (boot hooks, connection lifecycle callbacks, tests).
// The second return is false when the target or function is missing.
func (e *Engine) CallFunction(target object.Handle, fn string, args []value.Value) (value.Value, bool) {
	obj, ok := e.Store.Get(target)
	if !ok {
		return value.Zero(), false
	}
	f, owner, _, ok := obj.Proto.Resolve(fn)
	if !ok {
		return value.Zero(), false
	}
	return e.invoke(obj, obj, f, owner, args), true
}
