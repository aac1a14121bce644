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

// Handle is re-exported from value so callers outside this package
// don't need to import both.
type Handle = value.Handle

const InvalidHandle = value.InvalidHandle

// Flag is the per-object persistent bitmap.
type Flag uint16

const (
	FlagConnected Flag = 1 << iota
	FlagInteractive
	FlagLocalVerbs
	FlagPriv
	FlagPrototype
	FlagInEditor
	FlagResident
	FlagGarbage
)

// State tracks cache residency lifecycles: Dirty -> InCache ->
// FromCache, and InDb -> FromDb.
type State uint8

const (
	StateDirty State = iota
	StateInCache
	StateFromCache
	StateInDb
	StateFromDb
)

// BackRef is one entry in a referenced object's back-reference list:
// "some holder's slot index currently points at me".
type BackRef struct {
	Holder Handle
	Slot   int32
}

// InputFunc is an object's one-shot line redirection: the next line
// from the object's connection routes to Func on
// Object, then the redirect clears.
type InputFunc struct {
	Object Handle
	Func   string
}

// Verb binds a command word to a function on the object. Exact is
// false for an xverb (prefix match).
type Verb struct {
	Word  string
	Func  string
	Exact bool
}

// Object is the runtime object record. Globals is allocated only
// when the object is resident (cache state InCache/Dirty); it is nil
// while FromDb or after eviction to the log (FromCache).
type Object struct {
	Handle Handle
	Proto  *Prototype

	// Inheritance/allocation chain.
	NextChild Handle // next sibling under the same parent prototype

	// Containment.
	Location    Handle
	Contents    Handle // head of linked list of contained objects
	NextObject  Handle // next sibling within Location's contents list

	// Attachment. Independent of the containment chain above:
	// an object can be contained in a location's Contents list and
	// attached to an unrelated host at the same time, so this needs
	// its own link field rather than sharing NextObject.
	Attacher     Handle
	Attachees    Handle // head of linked list
	NextAttachee Handle // next sibling within Attacher's Attachees list

	Globals []value.Value
	BackRefs []BackRef

	Verbs []Verb

	Device    int32 // -1 if no connection attached
	Input     *InputFunc

	Flags Flag
	State State

	FileOffset int64
	LastAccess int64
}

func NewObject(handle Handle, proto *Prototype) *Object {
	return &Object{
		Handle:   handle,
		Proto:    proto,
		Location: InvalidHandle,
		Contents: InvalidHandle,
		NextObject: InvalidHandle,
		NextChild: InvalidHandle,
		Attacher:     InvalidHandle,
		Attachees:    InvalidHandle,
		NextAttachee: InvalidHandle,
		Device:   -1,
		State:    StateDirty,
	}
}

func (o *Object) IsResident() bool { return o.Globals != nil }

func (o *Object) HasFlag(f Flag) bool { return o.Flags&f != 0 }
func (o *Object) SetFlag(f Flag)      { o.Flags |= f }
func (o *Object) ClearFlag(f Flag)    { o.Flags &^= f }

// Dirty marks the object as mutated since its last flush,
// so the dirty set is always recoverable from object state alone.
func (o *Object) Dirty() { o.State = StateDirty }
