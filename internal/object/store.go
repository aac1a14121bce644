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

package object

import (
	"errors"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/loomhaven/loom/internal/value"
)

const blockSize = 1024

// Store is the object store: objects live in block arrays that
// grow as new handles are allocated; a free list threads destructed
// slots for reuse while handles stay stable for the lifetime of the
// object they name.
//
// Live handles are additionally tracked in a Roaring bitmap so that
// "is this handle alive" queries (used by the filesystem mirror's
// owner checks and by sysctl introspection) are O(1) without a
// map-of-bools.
type Store struct {
	blocks   [][]*Object
	freeList []Handle
	top      Handle // next never-used handle
	live     *roaring.Bitmap

	protoChain []*Prototype // singly-linked via append order, rooted at boot
	protoByPath map[string]*Prototype
}

var ErrDestructed = errors.New("object: destructed handle")

func NewStore() *Store {
	return &Store{
		live:        roaring.New(),
		protoByPath: make(map[string]*Prototype),
	}
}

func (s *Store) blockFor(h Handle) (*[]*Object, int) {
	blockIdx := int(h) / blockSize
	for blockIdx >= len(s.blocks) {
		s.blocks = append(s.blocks, make([]*Object, blockSize))
	}
	return &s.blocks[blockIdx], int(h) % blockSize
}

// Alloc reserves a handle (reusing a freed slot when available) and
// installs obj there.
func (s *Store) Alloc(newObj func(h Handle) *Object) *Object {
	var h Handle
	if n := len(s.freeList); n > 0 {
		h = s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
	} else {
		h = s.top
		s.top++
	}
	obj := newObj(h)
	block, idx := s.blockFor(h)
	(*block)[idx] = obj
	s.live.Add(uint32(h))
	return obj
}

// PlaceAt installs obj at its recorded handle, used by checkpoint
// restore to recreate objects with the exact handles the graph links
// in the image refer to. Handles skipped over stay unused rather than
// joining the free list; stability matters more than density here.
func (s *Store) PlaceAt(obj *Object) {
	h := obj.Handle
	block, idx := s.blockFor(h)
	(*block)[idx] = obj
	s.live.Add(uint32(h))
	if h >= s.top {
		s.top = h + 1
	}
}

// Get returns the object at h, or (nil, false) if h names a
// destructed or never-allocated slot.
func (s *Store) Get(h Handle) (*Object, bool) {
	if h < 0 {
		return nil, false
	}
	blockIdx := int(h) / blockSize
	if blockIdx >= len(s.blocks) {
		return nil, false
	}
	obj := s.blocks[blockIdx][int(h)%blockSize]
	if obj == nil || obj.HasFlag(FlagGarbage) {
		return nil, false
	}
	return obj, true
}

func (s *Store) IsLive(h Handle) bool { return s.live.Contains(uint32(h)) }

// LiveHandles returns every allocated, non-destructed handle in
// ascending order, via the live bitmap. Checkpoint writing iterates
// objects in exactly this order (object records are laid out in
// handle order).
func (s *Store) LiveHandles() []Handle {
	arr := s.live.ToArray()
	out := make([]Handle, len(arr))
	for i, h := range arr {
		out[i] = Handle(h)
	}
	return out
}

// Prototypes returns every registered prototype in registration order,
// used by Checkpoint to write the prototype table.
func (s *Store) Prototypes() []*Prototype {
	out := make([]*Prototype, len(s.protoChain))
	copy(out, s.protoChain)
	return out
}

// Free returns h's slot to the free list, marking it GARBAGE. Called
// only by Destruct after all unlinking is complete.
func (s *Store) free(h Handle) {
	block, idx := s.blockFor(h)
	if obj := (*block)[idx]; obj != nil {
		obj.SetFlag(FlagGarbage)
	}
	s.live.Remove(uint32(h))
	s.freeList = append(s.freeList, h)
}

// RegisterPrototype adds proto to the prototype chain, rooted at the
// boot object's prototype, and indexes it by path.
func (s *Store) RegisterPrototype(proto *Prototype) {
	s.protoChain = append(s.protoChain, proto)
	s.protoByPath[proto.Path] = proto
}

func (s *Store) PrototypeByPath(path string) (*Prototype, bool) {
	p, ok := s.protoByPath[path]
	return p, ok
}

func (s *Store) UnregisterPrototype(proto *Prototype) {
	delete(s.protoByPath, proto.Path)
	for i, p := range s.protoChain {
		if p == proto {
			s.protoChain = append(s.protoChain[:i], s.protoChain[i+1:]...)
			break
		}
	}
}

// InstallPrototypeObject creates the representative "proto object"
// that roots proto's clone tree, called once when a
// compile installs a new program. It is flagged FlagPrototype and is
// itself a normal resident object otherwise.
func (s *Store) InstallPrototypeObject(proto *Prototype) *Object {
	root := s.newResident(proto)
	root.SetFlag(FlagPrototype)
	proto.Handle = root.Handle
	return root
}

func (s *Store) newResident(proto *Prototype) *Object {
	obj := s.Alloc(func(h Handle) *Object { return NewObject(h, proto) })
	obj.Globals = make([]value.Value, proto.TotalGlobals)
	for i := range obj.Globals {
		obj.Globals[i] = value.Zero()
	}
	obj.SetFlag(FlagResident)
	return obj
}

// Clone instantiates an object from a prototype: allocates a globals
// vector sized to TotalGlobals (all slots zeroed), links it as a new
// child of proto's representative proto object, and returns it. The
// caller (engine) is responsible for calling the mudlib's init()
// afterward. proto must already have been installed via
// InstallPrototypeObject.
func (s *Store) Clone(proto *Prototype) *Object {
	obj := s.newResident(proto)
	obj.NextChild = s.firstChildOf(proto)
	if root, ok := s.Get(proto.Handle); ok {
		root.NextChild = obj.Handle
	}
	return obj
}

func (s *Store) firstChildOf(proto *Prototype) Handle {
	if root, ok := s.Get(proto.Handle); ok {
		return root.NextChild
	}
	return InvalidHandle
}

// Move relinks obj's containment: unlink from its current Location's
// contents list, then link into dest's, per the doubly-redundant
// intrusive lists.
func (s *Store) Move(obj *Object, dest Handle) {
	s.unlinkContents(obj)
	obj.Location = dest
	if dest == InvalidHandle {
		return
	}
	destObj, ok := s.Get(dest)
	if !ok {
		return
	}
	obj.NextObject = destObj.Contents
	destObj.Contents = obj.Handle
}

func (s *Store) unlinkContents(obj *Object) {
	if obj.Location == InvalidHandle {
		return
	}
	loc, ok := s.Get(obj.Location)
	if !ok {
		obj.Location = InvalidHandle
		return
	}
	if loc.Contents == obj.Handle {
		loc.Contents = obj.NextObject
	} else {
		for cur, ok := s.Get(loc.Contents); ok; cur, ok = s.Get(cur.NextObject) {
			if cur.NextObject == obj.Handle {
				cur.NextObject = obj.NextObject
				break
			}
		}
	}
	obj.Location = InvalidHandle
	obj.NextObject = InvalidHandle
}

// Attach links obj as an attachee of host. The attachee chain threads
// through NextAttachee, kept independent of the containment chain
// (NextObject) so an object can be both contained somewhere and
// attached to an unrelated host at once.
func (s *Store) Attach(host, obj *Object) {
	s.Detach(obj)
	obj.Attacher = host.Handle
	obj.NextAttachee = host.Attachees
	host.Attachees = obj.Handle
}

func (s *Store) Detach(obj *Object) {
	if obj.Attacher == InvalidHandle {
		return
	}
	host, ok := s.Get(obj.Attacher)
	if ok {
		if host.Attachees == obj.Handle {
			host.Attachees = obj.NextAttachee
		} else {
			for cur, ok := s.Get(host.Attachees); ok; cur, ok = s.Get(cur.NextAttachee) {
				if cur.NextAttachee == obj.Handle {
					cur.NextAttachee = obj.NextAttachee
					break
				}
			}
		}
	}
	obj.Attacher = InvalidHandle
	obj.NextAttachee = InvalidHandle
}

// AddBackRef records that holder's slot currently points at target,
// so destruction can null every inbound slot without a heap scan.
func (s *Store) AddBackRef(target *Object, holder Handle, slot int32) {
	target.BackRefs = append(target.BackRefs, BackRef{Holder: holder, Slot: slot})
}

// RemoveBackRef removes exactly the one (holder, slot) entry the
// matching AddBackRef recorded.
func (s *Store) RemoveBackRef(target *Object, holder Handle, slot int32) {
	for i, br := range target.BackRefs {
		if br.Holder == holder && br.Slot == slot {
			target.BackRefs = append(target.BackRefs[:i], target.BackRefs[i+1:]...)
			return
		}
	}
}
