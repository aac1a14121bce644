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

import "github.com/loomhaven/loom/internal/value"

// ClonesOf walks the NextChild sibling chain rooted at proto's
// representative proto object, used by the caller to cascade
// destruction through all of a prototype's clones (if the
// object is a prototype, all of its clones are queued for destruction
// first).
func (s *Store) ClonesOf(proto *Prototype) []Handle {
	var out []Handle
	root, ok := s.Get(proto.Handle)
	if !ok {
		return nil
	}
	for cur, ok := s.Get(root.NextChild); ok; cur, ok = s.Get(cur.NextChild) {
		out = append(out, cur.Handle)
	}
	return out
}

// DestructOne performs the non-cascading, non-queue part
// "Destruction": clears every global slot (dropping back-references
// correctly), unlinks containment and attachment, nulls every
// back-reference into obj in the holding slot (dirtying each holder),
// frees verbs/input state, and returns the slot to the free list with
// GARBAGE set.
//
// dirty is invoked for each holder object whose slot was nulled, so
// the caller can route it through the cache's dirty-tracking.
func (s *Store) DestructOne(obj *Object, dirty func(*Object)) {
	for i, g := range obj.Globals {
		if g.IsObject() && g.ObjectHandle() != InvalidHandle {
			if target, ok := s.Get(g.ObjectHandle()); ok {
				s.RemoveBackRef(target, obj.Handle, int32(i))
			}
		}
		value.ClearVar(g)
		obj.Globals[i] = value.Zero()
	}

	for _, br := range obj.BackRefs {
		if holder, ok := s.Get(br.Holder); ok {
			holder.Globals[br.Slot] = value.Zero()
			holder.Dirty()
			if dirty != nil {
				dirty(holder)
			}
		}
	}
	obj.BackRefs = nil

	s.unlinkContents(obj)
	s.Detach(obj)
	// Orphan attachees rather than cascade-destroying them; the
	// only mandates clone cascade for prototype destruction.
	for cur, ok := s.Get(obj.Attachees); ok; {
		next := cur.NextAttachee
		cur.Attacher = InvalidHandle
		cur.NextAttachee = InvalidHandle
		cur, ok = s.Get(next)
	}
	obj.Attachees = InvalidHandle

	obj.Verbs = nil
	obj.Input = nil
	obj.Globals = nil

	s.free(obj.Handle)
}
