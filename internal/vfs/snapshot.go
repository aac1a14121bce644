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

package vfs

import (
	"sort"
	"strings"

	"github.com/loomhaven/loom/internal/value"
)

// Entry is one snapshotted virtual-tree node, written into the
// checkpoint's filesystem section: the tree in pre-order, each
// entry name/flags/owner.
type Entry struct {
	Path  string
	Flags Flag
	Owner value.Handle
}

// Snapshot walks the virtual tree pre-order and returns every entry
// below the root. Children are emitted in name order so two snapshots
// of the same tree are byte-identical in the checkpoint.
func (m *Mirror) Snapshot() []Entry {
	var out []Entry
	var walk func(prefix string, n *Node)
	walk = func(prefix string, n *Node) {
		names := make([]string, 0, len(n.children))
		for name := range n.children {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			child := n.children[name]
			p := prefix + "/" + name
			out = append(out, Entry{Path: p, Flags: child.Flags, Owner: child.Owner})
			if child.IsDir() {
				walk(p, child)
			}
		}
	}
	walk("", m.root)
	return out
}

// LoadSnapshot recreates the virtual tree from checkpoint entries.
// Nodes are installed without consulting the host filesystem; the
// usual reconciliation on List drops any that no longer exist on
// disk. Entries arrive pre-order, so a parent always precedes its
// children.
func (m *Mirror) LoadSnapshot(entries []Entry) {
	for _, e := range entries {
		clean, err := Normalize(e.Path)
		if err != nil || clean == "/" {
			continue
		}
		parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")
		cur := m.root
		for i, part := range parts {
			child, ok := cur.children[part]
			if !ok {
				child = &Node{
					Name:     part,
					parent:   cur,
					children: map[string]*Node{},
				}
				cur.children[part] = child
			}
			if i == len(parts)-1 {
				child.Flags = e.Flags
				child.Owner = e.Owner
			} else if child.Flags&FlagDir == 0 {
				child.Flags |= FlagDir
			}
			cur = child
		}
	}
}
