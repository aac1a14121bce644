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

package persist

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/gofrs/flock"
	pkgerrors "github.com/pkg/errors"

	"github.com/loomhaven/loom/internal/bytecode"
	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/symtab"
)

const checkpointMagic = "LOOMCKPT1\n"
const dbEndMarker = "db.END\n"
const sectionEnd = ".END\n"

// FSEntry is one pre-order node of the filesystem mirror's dump,
// supplied by internal/engine from vfs.Mirror.Snapshot; an empty
// slice means no mirror state, not an error.
type FSEntry struct {
	Name  string
	Flags uint32
	Owner string
}

// QueuedCommand is one pending command-queue entry (penultimate
// section), supplied by the scheduler.
type QueuedCommand struct {
	Target object.Handle
	Text   string
}

// QueuedAlarm is one pending alarm (final queue section).
type QueuedAlarm struct {
	Target   object.Handle
	Func     string
	Deadline int64
	Seq      int64
}

// Checkpoint writes and reads the monolithic database image:
// magic, db_top, filesystem tree, symbol table, object records
// (flags, prototype path, graph links, device, verbs, input
// redirect, payload), prototype table, pending queues, and a final
// db.END marker — each section boundary validated on restore,
// refusing to boot on a missing marker.
type Checkpoint struct {
	store *object.Store
	syms  *symtab.Table
	codec ValueCodec
}

func NewCheckpoint(store *object.Store, syms *symtab.Table) *Checkpoint {
	return &Checkpoint{store: store, syms: syms}
}

// Write installs a new checkpoint at path: writes to path+".tmp", then
// atomically renames over the live path under a gofrs/flock advisory
// lock so a concurrent administrative save can't race the scheduler's
// own periodic one, falling back to copy+remove when rename fails
// across devices.
//
// Objects not currently resident are written with an empty payload;
// the caller is expected to materialize paged-out payloads back onto
// their objects first (internal/engine's pre-rename flush phase does
// exactly that), so a complete image never depends on the old one.
func (c *Checkpoint) Write(path string, dbTop int64, fsTree []FSEntry, cmds []QueuedCommand, alarms []QueuedAlarm) (err error) {
	tmp := path + ".tmp"
	f, ferr := os.Create(tmp)
	if ferr != nil {
		return pkgerrors.Wrap(ferr, "persist: create checkpoint temp file")
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	w := bufio.NewWriter(f)
	if err = c.writeBody(w, dbTop, fsTree, cmds, alarms); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return pkgerrors.Wrap(err, "persist: flush checkpoint temp file")
	}
	if err = f.Sync(); err != nil {
		return pkgerrors.Wrap(err, "persist: sync checkpoint temp file")
	}
	if err = f.Close(); err != nil {
		return pkgerrors.Wrap(err, "persist: close checkpoint temp file")
	}

	return c.installAtomic(tmp, path)
}

func (c *Checkpoint) writeBody(w *bufio.Writer, dbTop int64, fsTree []FSEntry, cmds []QueuedCommand, alarms []QueuedAlarm) error {
	if _, err := io.WriteString(w, checkpointMagic); err != nil {
		return err
	}
	if err := writeInt64Line(w, dbTop); err != nil {
		return err
	}

	for _, e := range fsTree {
		fmt.Fprintf(w, "%s\n%d\n%s\n", e.Name, e.Flags, e.Owner)
	}
	if _, err := io.WriteString(w, sectionEnd); err != nil {
		return err
	}

	for _, pair := range c.syms.Pairs() {
		if err := writeLPString(w, pair[0]); err != nil {
			return err
		}
		if err := writeLPString(w, pair[1]); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, sectionEnd); err != nil {
		return err
	}

	for _, h := range c.store.LiveHandles() {
		obj, ok := c.store.Get(h)
		if !ok {
			continue
		}
		if err := c.writeObjectRecord(w, obj); err != nil {
			return err
		}
	}
	// Two closing markers: attachment and verb-table state travel
	// inside each object record above rather than as separate
	// sections, so both markers close here back to back.
	if _, err := io.WriteString(w, sectionEnd); err != nil {
		return err
	}
	if _, err := io.WriteString(w, sectionEnd); err != nil {
		return err
	}

	for _, proto := range c.store.Prototypes() {
		if err := writePrototype(w, proto); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, sectionEnd); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(cmds))); err != nil {
		return err
	}
	for _, cmd := range cmds {
		if err := binary.Write(w, binary.LittleEndian, uint32(cmd.Target)); err != nil {
			return err
		}
		if err := writeLPString(w, cmd.Text); err != nil {
			return err
		}
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(alarms))); err != nil {
		return err
	}
	for _, al := range alarms {
		if err := binary.Write(w, binary.LittleEndian, uint32(al.Target)); err != nil {
			return err
		}
		if err := writeLPString(w, al.Func); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, al.Deadline); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, al.Seq); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, dbEndMarker)
	return err
}

func (c *Checkpoint) writeObjectRecord(w *bufio.Writer, obj *object.Object) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(obj.Flags)); err != nil {
		return err
	}
	// The prototype path lets restore recreate this object from the
	// prototype table when it isn't pre-populated in the target store.
	protoPath := ""
	if obj.Proto != nil {
		protoPath = obj.Proto.Path
	}
	if err := writeLPString(w, protoPath); err != nil {
		return err
	}
	links := [6]object.Handle{obj.NextChild, obj.Location, obj.Contents, obj.NextObject, obj.Attacher, obj.Attachees}
	for _, h := range links {
		if err := binary.Write(w, binary.LittleEndian, uint32(h)); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, obj.Device); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(obj.Verbs))); err != nil {
		return err
	}
	for _, v := range obj.Verbs {
		if err := writeLPString(w, v.Word); err != nil {
			return err
		}
		if err := writeLPString(w, v.Func); err != nil {
			return err
		}
		exact := byte(0)
		if v.Exact {
			exact = 1
		}
		if err := w.WriteByte(exact); err != nil {
			return err
		}
	}
	hasInput := byte(0)
	if obj.Input != nil {
		hasInput = 1
	}
	if err := w.WriteByte(hasInput); err != nil {
		return err
	}
	if obj.Input != nil {
		if err := binary.Write(w, binary.LittleEndian, uint32(obj.Input.Object)); err != nil {
			return err
		}
		if err := writeLPString(w, obj.Input.Func); err != nil {
			return err
		}
	}
	var payload []byte
	if obj.IsResident() {
		var err error
		payload, err = c.codec.Encode(obj.Globals)
		if err != nil {
			return pkgerrors.Wrapf(err, "persist: encode object #%d payload", obj.Handle)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(obj.Handle)); err != nil {
		return err
	}
	return writeLPBytes(w, payload)
}

func writePrototype(w *bufio.Writer, proto *object.Prototype) error {
	if err := writeLPString(w, proto.Path); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(proto.Handle)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, proto.TotalGlobals); err != nil {
		return err
	}
	// Inheritance structure: the inherit list, the per-ancestor base
	// offsets, and the MRO, all by ancestor path. Restore re-links the
	// paths to prototype pointers once the whole table is read, so a
	// restored program's global-slot re-basing and `::` dispatch work
	// identically to a freshly compiled one.
	if err := binary.Write(w, binary.LittleEndian, uint32(len(proto.Inherits))); err != nil {
		return err
	}
	for _, ie := range proto.Inherits {
		if err := writeLPString(w, ie.Alias); err != nil {
			return err
		}
		if err := writeLPString(w, ie.Path); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, ie.VarBase); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, ie.FuncBase); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(proto.AncestorBase))); err != nil {
		return err
	}
	ancestors := make([]*object.Prototype, 0, len(proto.AncestorBase))
	for anc := range proto.AncestorBase {
		ancestors = append(ancestors, anc)
	}
	sort.Slice(ancestors, func(i, j int) bool { return ancestors[i].Path < ancestors[j].Path })
	for _, anc := range ancestors {
		if err := writeLPString(w, anc.Path); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, proto.AncestorBase[anc]); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(proto.MRO))); err != nil {
		return err
	}
	for _, anc := range proto.MRO {
		if err := writeLPString(w, anc.Path); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(proto.OwnGlobals))); err != nil {
		return err
	}
	for _, name := range proto.OwnGlobals {
		if err := writeLPString(w, name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, proto.GlobalSizes[name]); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(proto.Functions))); err != nil {
		return err
	}
	for _, fn := range proto.Functions {
		if err := writeFunction(w, fn); err != nil {
			return err
		}
	}
	return nil
}

func writeFunction(w *bufio.Writer, fn *object.Function) error {
	if err := writeLPString(w, fn.Name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, fn.NumLocals); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(fn.Code))); err != nil {
		return err
	}
	for _, instr := range fn.Code {
		if err := binary.Write(w, binary.LittleEndian, instr.Op); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, instr.Arg1); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, instr.Arg2); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, instr.Arg3); err != nil {
			return err
		}
		if err := writeLPString(w, instr.Str); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(instr.Line)); err != nil {
			return err
		}
	}
	return nil
}

func writeInt64Line(w *bufio.Writer, v int64) error {
	_, err := fmt.Fprintf(w, "%d\n", v)
	return err
}

func writeLPString(w *bufio.Writer, s string) error {
	return writeLPBytes(w, []byte(s))
}

func writeLPBytes(w *bufio.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// installAtomic renames tmp over path, copying instead when rename
// fails across devices (EXDEV), fallback clause. The
// advisory lock is best-effort: on a fresh install there is nothing at
// path yet to lock, which is not an error.
func (c *Checkpoint) installAtomic(tmp, path string) error {
	lock := flock.New(path)
	locked, lockErr := lock.TryLock()
	if lockErr == nil && locked {
		defer lock.Unlock()
	}

	if err := os.Rename(tmp, path); err != nil {
		if copyErr := copyFile(tmp, path); copyErr != nil {
			return pkgerrors.Wrap(copyErr, "persist: install checkpoint (rename and copy fallback both failed)")
		}
		os.Remove(tmp)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// ReadResult carries back everything a checkpoint reader reconstructs
// (objects are rebuilt directly into the given Store, since handles
// must match exactly for the graph links to resolve).
type ReadResult struct {
	DbTop     int64
	FSTree    []FSEntry
	Commands  []QueuedCommand
	Alarms    []QueuedAlarm
	Prototype map[string]*object.Prototype
}

// Read validates and loads a checkpoint at path into store/syms,
// refusing to boot if any `.END`/`db.END` marker is missing or
// mismatched. Object payloads are decoded eagerly here rather than
// lazily by file offset; access-driven paging lives one level up in
// internal/engine (see DESIGN.md).
func Read(path string, store *object.Store, syms *symtab.Table) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "persist: open checkpoint")
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic := make([]byte, len(checkpointMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != checkpointMagic {
		return nil, pkgerrors.New("persist: bad checkpoint magic")
	}
	dbTop, err := readInt64Line(r)
	if err != nil {
		return nil, err
	}

	var fsTree []FSEntry
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if line == ".END" {
			break
		}
		flagsLine, err := readLine(r)
		if err != nil {
			return nil, err
		}
		ownerLine, err := readLine(r)
		if err != nil {
			return nil, err
		}
		var flags uint32
		fmt.Sscanf(flagsLine, "%d", &flags)
		fsTree = append(fsTree, FSEntry{Name: line, Flags: flags, Owner: ownerLine})
	}

	var pairs [][2]string
	for {
		key, ok, err := tryReadLPString(r)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		val, err := readLPString(r)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]string{key, val})
	}
	syms.LoadPairs(pairs)

	var records []objectRecord
	for {
		rec, ok, err := readObjectRecord(r)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		records = append(records, rec)
	}
	if err := expectEndMarker(r); err != nil {
		return nil, err
	}

	protos := make(map[string]*object.Prototype)
	links := make(map[string]*protoLinks)
	for {
		path, ok, err := tryReadLPString(r)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		proto, pl, err := readPrototype(r, path)
		if err != nil {
			return nil, err
		}
		protos[proto.Path] = proto
		links[proto.Path] = pl
	}
	// Second pass: resolve ancestor paths to prototype pointers now
	// that the whole table is in hand.
	for path, proto := range protos {
		pl := links[path]
		for _, il := range pl.inherits {
			parent := protos[il.path]
			if parent == nil {
				return nil, pkgerrors.Errorf("persist: prototype %s inherits unknown %s", path, il.path)
			}
			proto.Inherits = append(proto.Inherits, &object.InheritEntry{
				Alias: il.alias, Path: il.path, Parent: parent,
				VarBase: il.varBase, FuncBase: il.funcBase,
			})
		}
		for _, ab := range pl.ancestorBases {
			anc := protos[ab.path]
			if anc == nil {
				return nil, pkgerrors.Errorf("persist: prototype %s references unknown ancestor %s", path, ab.path)
			}
			proto.AncestorBase[anc] = ab.base
		}
		for _, mp := range pl.mro {
			anc := protos[mp]
			if anc == nil {
				return nil, pkgerrors.Errorf("persist: prototype %s has unknown MRO entry %s", path, mp)
			}
			proto.MRO = append(proto.MRO, anc)
		}
	}

	// Object records are applied only now that the prototype table is
	// in hand: a record whose handle the store doesn't already know is
	// recreated from its prototype, so a restore into a fresh store
	// rebuilds every clone with its original handle.
	codec := ValueCodec{}
	for _, rec := range records {
		obj, ok := store.Get(rec.Handle)
		if !ok {
			proto := protos[rec.ProtoPath]
			if proto == nil {
				if proto, ok = store.PrototypeByPath(rec.ProtoPath); !ok {
					continue
				}
			}
			obj = object.NewObject(rec.Handle, proto)
			store.PlaceAt(obj)
		}
		obj.Flags = object.Flag(rec.Flags)
		obj.NextChild = rec.Links[0]
		obj.Location = rec.Links[1]
		obj.Contents = rec.Links[2]
		obj.NextObject = rec.Links[3]
		obj.Attacher = rec.Links[4]
		obj.Attachees = rec.Links[5]
		obj.Device = rec.Device
		obj.Verbs = rec.Verbs
		obj.Input = rec.Input
		if len(rec.Payload) > 0 {
			globals, err := codec.Decode(rec.Payload)
			if err != nil {
				return nil, pkgerrors.Wrapf(err, "persist: decode object #%d payload", rec.Handle)
			}
			obj.Globals = globals
			obj.State = object.StateInCache
		} else {
			obj.Globals = nil
			obj.State = object.StateFromDb
		}
	}

	// Rebuild the back-reference lists from the restored globals, the
	// same pairing every ordinary assignment maintains: for each
	// object-typed slot of holder H pointing at live target T, T gets
	// exactly one (H, slot) entry. Runs after every record has applied
	// so targets with higher handles than their holders resolve.
	for _, rec := range records {
		holder, ok := store.Get(rec.Handle)
		if !ok {
			continue
		}
		for i, v := range holder.Globals {
			if !v.IsObject() || v.ObjectHandle() == object.InvalidHandle {
				continue
			}
			if target, ok := store.Get(v.ObjectHandle()); ok {
				store.AddBackRef(target, holder.Handle, int32(i))
			}
		}
	}

	var cmds []QueuedCommand
	nCmds, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nCmds; i++ {
		target, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		text, err := readLPString(r)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, QueuedCommand{Target: object.Handle(target), Text: text})
	}

	var alarms []QueuedAlarm
	nAlarms, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nAlarms; i++ {
		target, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		fn, err := readLPString(r)
		if err != nil {
			return nil, err
		}
		var deadline, seq int64
		if err := binary.Read(r, binary.LittleEndian, &deadline); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &seq); err != nil {
			return nil, err
		}
		alarms = append(alarms, QueuedAlarm{Target: object.Handle(target), Func: fn, Deadline: deadline, Seq: seq})
	}

	tail := make([]byte, len(dbEndMarker))
	if _, err := io.ReadFull(r, tail); err != nil || string(tail) != dbEndMarker {
		return nil, pkgerrors.New("persist: missing db.END marker")
	}

	return &ReadResult{DbTop: dbTop, FSTree: fsTree, Commands: cmds, Alarms: alarms, Prototype: protos}, nil
}

// objectRecord is one parsed-but-unapplied object section entry.
// Records buffer until the prototype table is read, since recreating
// a missing clone needs its prototype first.
type objectRecord struct {
	Handle    object.Handle
	Flags     uint32
	ProtoPath string
	Links     [6]object.Handle
	Device    int32
	Verbs     []object.Verb
	Input     *object.InputFunc
	Payload   []byte
}

func readObjectRecord(r *bufio.Reader) (objectRecord, bool, error) {
	var rec objectRecord
	flags, ok, err := tryReadUint32(r)
	if err != nil || !ok {
		return rec, false, err
	}
	rec.Flags = flags
	if rec.ProtoPath, err = readLPString(r); err != nil {
		return rec, false, err
	}
	for i := range rec.Links {
		raw, err := readUint32(r)
		if err != nil {
			return rec, false, err
		}
		rec.Links[i] = object.Handle(raw)
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.Device); err != nil {
		return rec, false, err
	}
	nVerbs, err := readUint32(r)
	if err != nil {
		return rec, false, err
	}
	for i := uint32(0); i < nVerbs; i++ {
		word, err := readLPString(r)
		if err != nil {
			return rec, false, err
		}
		fn, err := readLPString(r)
		if err != nil {
			return rec, false, err
		}
		exact, err := r.ReadByte()
		if err != nil {
			return rec, false, err
		}
		rec.Verbs = append(rec.Verbs, object.Verb{Word: word, Func: fn, Exact: exact != 0})
	}
	hasInput, err := r.ReadByte()
	if err != nil {
		return rec, false, err
	}
	if hasInput != 0 {
		target, err := readUint32(r)
		if err != nil {
			return rec, false, err
		}
		fn, err := readLPString(r)
		if err != nil {
			return rec, false, err
		}
		rec.Input = &object.InputFunc{Object: object.Handle(target), Func: fn}
	}
	handleRaw, err := readUint32(r)
	if err != nil {
		return rec, false, err
	}
	rec.Handle = object.Handle(handleRaw)
	if rec.Payload, err = readLPBytes(r); err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

// protoLinks carries the by-path inheritance references of one
// prototype record until the whole table is read and paths can
// resolve to pointers.
type protoLinks struct {
	inherits      []inheritLink
	ancestorBases []pathBase
	mro           []string
}

type inheritLink struct {
	alias, path        string
	varBase, funcBase  int32
}

type pathBase struct {
	path string
	base int32
}

func readPrototype(r *bufio.Reader, path string) (*object.Prototype, *protoLinks, error) {
	proto := object.NewPrototype(path)
	pl := &protoLinks{}
	handle, err := readUint32(r)
	if err != nil {
		return nil, nil, err
	}
	proto.Handle = object.Handle(handle)
	if err := binary.Read(r, binary.LittleEndian, &proto.TotalGlobals); err != nil {
		return nil, nil, err
	}
	nInherits, err := readUint32(r)
	if err != nil {
		return nil, nil, err
	}
	for i := uint32(0); i < nInherits; i++ {
		var il inheritLink
		if il.alias, err = readLPString(r); err != nil {
			return nil, nil, err
		}
		if il.path, err = readLPString(r); err != nil {
			return nil, nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &il.varBase); err != nil {
			return nil, nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &il.funcBase); err != nil {
			return nil, nil, err
		}
		pl.inherits = append(pl.inherits, il)
	}
	nBases, err := readUint32(r)
	if err != nil {
		return nil, nil, err
	}
	for i := uint32(0); i < nBases; i++ {
		var ab pathBase
		if ab.path, err = readLPString(r); err != nil {
			return nil, nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &ab.base); err != nil {
			return nil, nil, err
		}
		pl.ancestorBases = append(pl.ancestorBases, ab)
	}
	nMRO, err := readUint32(r)
	if err != nil {
		return nil, nil, err
	}
	for i := uint32(0); i < nMRO; i++ {
		p, err := readLPString(r)
		if err != nil {
			return nil, nil, err
		}
		pl.mro = append(pl.mro, p)
	}
	nOwn, err := readUint32(r)
	if err != nil {
		return nil, nil, err
	}
	proto.OwnGlobals = make([]string, nOwn)
	for i := range proto.OwnGlobals {
		name, err := readLPString(r)
		if err != nil {
			return nil, nil, err
		}
		var size int64
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, nil, err
		}
		proto.OwnGlobals[i] = name
		proto.GlobalSizes[name] = size
	}
	nFuncs, err := readUint32(r)
	if err != nil {
		return nil, nil, err
	}
	for i := uint32(0); i < nFuncs; i++ {
		fn, err := readFunction(r)
		if err != nil {
			return nil, nil, err
		}
		proto.AddFunction(fn)
	}
	return proto, pl, nil
}

func readFunction(r *bufio.Reader) (*object.Function, error) {
	name, err := readLPString(r)
	if err != nil {
		return nil, err
	}
	fn := &object.Function{Name: name}
	if err := binary.Read(r, binary.LittleEndian, &fn.NumLocals); err != nil {
		return nil, err
	}
	nInstr, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	fn.Code = make([]bytecode.Instr, nInstr)
	for i := range fn.Code {
		instr := &fn.Code[i]
		if err := binary.Read(r, binary.LittleEndian, &instr.Op); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &instr.Arg1); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &instr.Arg2); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &instr.Arg3); err != nil {
			return nil, err
		}
		str, err := readLPString(r)
		if err != nil {
			return nil, err
		}
		instr.Str = str
		var line int32
		if err := binary.Read(r, binary.LittleEndian, &line); err != nil {
			return nil, err
		}
		instr.Line = int(line)
	}
	return fn, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", pkgerrors.Wrap(err, "persist: read checkpoint line")
	}
	return line[:len(line)-1], nil
}

func readInt64Line(r *bufio.Reader) (int64, error) {
	line, err := readLine(r)
	if err != nil {
		return 0, err
	}
	var v int64
	if _, err := fmt.Sscanf(line, "%d", &v); err != nil {
		return 0, pkgerrors.Wrap(err, "persist: bad db_top line")
	}
	return v, nil
}

// expectEndMarker consumes and validates one raw sectionEnd marker,
// for the second of the object section's two back-to-back markers
// (attachees, verbs —), which tryReadUint32's peek-and-discard
// only accounts for once per loop.
func expectEndMarker(r *bufio.Reader) error {
	tail := make([]byte, len(sectionEnd))
	if _, err := io.ReadFull(r, tail); err != nil {
		return pkgerrors.Wrap(err, "persist: read checkpoint section marker")
	}
	if string(tail) != sectionEnd {
		return pkgerrors.New("persist: missing .END marker in checkpoint")
	}
	return nil
}

func readUint32(r *bufio.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

// tryReadUint32 distinguishes a real record from the section-end
// marker: every record section is closed by writing the literal bytes
// of sectionEnd immediately where a length-prefixed uint32 would
// otherwise start, so a reader peeks for that marker first.
func tryReadUint32(r *bufio.Reader) (uint32, bool, error) {
	peek, err := r.Peek(len(sectionEnd))
	if err == nil && string(peek) == sectionEnd {
		if _, err := r.Discard(len(sectionEnd)); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}
	v, err := readUint32(r)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func tryReadLPString(r *bufio.Reader) (string, bool, error) {
	v, ok, err := tryReadUint32(r)
	if err != nil || !ok {
		return "", ok, err
	}
	b := make([]byte, v)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

func readLPString(r *bufio.Reader) (string, error) {
	b, err := readLPBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readLPBytes(r *bufio.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
