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

// Package cache implements the resident-object LRU and eviction
// transaction log and "Cache and paging": residency
// is an intrusive "which LRU slot" concept layered on top of
// internal/object.Store, which already holds every object's globals in
// memory regardless of the cache's opinion of it. Eviction pages a
// dirty object's globals out through a Codec into a TransactionLog
// record and drops the in-memory slice, following the
// Dirty -> InCache -> FromCache residency lifecycle.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/value"
)

// Codec serializes an object's resident globals to and from bytes for
// eviction/restore. internal/persist supplies the real
// save_value/restore_value-grounded implementation;
// this package only depends on the interface, to avoid a
// cache<->persist import cycle (persist restores objects back into
// cache residency on first touch after a restart).
type Codec interface {
	Encode(globals []value.Value) ([]byte, error)
	Decode(data []byte) ([]value.Value, error)
}

// TransactionLog records one append-only entry per dirty eviction;
// together with the checkpoint it holds exactly one durable record
// per paged-out object.
type TransactionLog interface {
	WriteEviction(handle object.Handle, payload []byte) error
}

// Cache bounds how many objects stay resident (Globals != nil)
// simultaneously. It does not own object identity or lifetime — that
// stays with object.Store — only the decision of when to page a
// resident object's globals out.
type Cache struct {
	store *object.Store
	codec Codec
	log   TransactionLog

	lru *lru.Cache[object.Handle, struct{}]
}

// New builds a Cache with the given resident cap. Eviction is driven
// entirely by Touch; callers must Touch an object on every access that
// should count toward its recency, including the initial Clone.
func New(store *object.Store, residentCap int, codec Codec, log TransactionLog) (*Cache, error) {
	c := &Cache{store: store, codec: codec, log: log}
	l, err := lru.NewWithEvict[object.Handle, struct{}](residentCap, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// Touch marks obj as most-recently-used, evicting the least-recently
// touched resident object if the cap is already full.
func (c *Cache) Touch(obj *object.Object) {
	c.lru.Add(obj.Handle, struct{}{})
}

// Resident reports whether handle currently counts toward the
// resident set, independent of whether object.Store happens to still
// hold its globals (FromDb objects restored but not yet Touched don't
// count until the first real access).
func (c *Cache) Resident(h object.Handle) bool {
	return c.lru.Contains(h)
}

// onEvict pages a dirty object out: encode its globals, append a
// transaction-log record, then drop the in-memory slice and flip its
// residency state. A clean (already-checkpointed, unmodified) object
// is dropped without a log record — nothing changed since the last
// durable copy.
func (c *Cache) onEvict(h object.Handle, _ struct{}) {
	obj, ok := c.store.Get(h)
	if !ok {
		return
	}
	if obj.State != object.StateDirty {
		obj.Globals = nil
		obj.State = object.StateFromCache
		return
	}
	payload, err := c.codec.Encode(obj.Globals)
	if err != nil {
		// Losing a dirty payload on encode failure would silently drop
		// state; keep it resident and let the next Touch retry instead.
		c.lru.Add(h, struct{}{})
		return
	}
	if err := c.log.WriteEviction(h, payload); err != nil {
		c.lru.Add(h, struct{}{})
		return
	}
	obj.Globals = nil
	obj.State = object.StateFromCache
}

// Restore re-populates obj's globals from a previously evicted
// payload, called by internal/engine on first access to a paged-out
// object (FromCache -> resident transition).
func (c *Cache) Restore(obj *object.Object, payload []byte) error {
	globals, err := c.codec.Decode(payload)
	if err != nil {
		return err
	}
	obj.Globals = globals
	obj.State = object.StateInCache
	c.Touch(obj)
	return nil
}
