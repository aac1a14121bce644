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

// Package vfs implements the filesystem mirror: a virtual
// directory tree shadowing a host directory, carrying owner and flag
// metadata per entry, reconciled lazily against the host filesystem.
package vfs

import (
	"errors"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/loomhaven/loom/internal/value"
)

// Flag bits recorded per virtual entry, independent of the object
// flag bitmap.
type Flag uint8

const (
	FlagDir Flag = 1 << iota
	FlagReadOK
	FlagWriteOK
	FlagHidden
)

var (
	ErrInvalidPath   = errors.New("vfs: invalid path")
	ErrNotFound      = errors.New("vfs: not found")
	ErrPermission    = errors.New("vfs: permission denied")
)

// Node is one entry in the virtual tree.
type Node struct {
	Name    string
	Owner   value.Handle
	Flags   Flag
	ModTime time.Time
	Size    int64

	parent   *Node
	children map[string]*Node
}

func (n *Node) IsDir() bool { return n.Flags&FlagDir != 0 }

// Authority is the single pluggable permission gate described:
// if an object with the master role defines valid_read/valid_write,
// that function is invoked with (path, operation, caller, fileOwner,
// fileFlags) and its result is authoritative.
type Authority interface {
	// Check returns true if the operation is permitted. op is "read" or
	// "write". It is not told whether the caller is the master itself.
	Check(pathname, op string, caller, fileOwner value.Handle, flags Flag) (bool, error)
}

// Mirror is the virtual directory tree. The host side is addressed
// through an afero.Fs so the whole mirror can be driven against an
// in-memory filesystem in tests.
type Mirror struct {
	hostFS   afero.Fs
	hostRoot string
	root     *Node
	bootstrap bool
	authority Authority
}

func New(hostFS afero.Fs, hostRoot string) *Mirror {
	return &Mirror{
		hostFS:   hostFS,
		hostRoot: hostRoot,
		root:     &Node{Name: "/", Flags: FlagDir, children: map[string]*Node{}},
		bootstrap: true,
	}
}

// SetAuthority installs the master valid_read/valid_write gate and ends
// the bootstrap phase, after which Permit defers to it.
func (m *Mirror) SetAuthority(a Authority) {
	m.authority = a
	m.bootstrap = false
}

// Normalize validates and cleans a virtual path: absolute host paths,
// ".." segments that would escape the root, embedded NULs, and
// non-normalized forms are all rejected.
func Normalize(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", ErrInvalidPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	clean := path.Clean(p)
	if clean != p && !(clean == "/" && p == "/") {
		// Reject non-normalized forms such as "/a//b" or "/a/./b" rather
		// than silently accepting and cleaning them.
		if clean != p {
			return "", ErrInvalidPath
		}
	}
	if strings.Contains(clean, "..") {
		return "", ErrInvalidPath
	}
	return clean, nil
}

func (m *Mirror) hostPath(virtual string) string {
	return path.Join(m.hostRoot, virtual)
}

// lookup walks the virtual tree, auto-discovering a missing entry by
// stat'ing the host filesystem, so entries present on disk
// auto-discover on first lookup.
func (m *Mirror) lookup(virtual string, owner value.Handle) (*Node, error) {
	clean, err := Normalize(virtual)
	if err != nil {
		return nil, err
	}
	if clean == "/" {
		return m.root, nil
	}
	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	cur := m.root
	built := ""
	for _, part := range parts {
		built = built + "/" + part
		child, ok := cur.children[part]
		if !ok {
			info, statErr := m.hostFS.Stat(m.hostPath(built))
			if statErr != nil {
				return nil, ErrNotFound
			}
			var flags Flag
			if info.IsDir() {
				flags = FlagDir | FlagReadOK | FlagWriteOK
			} else {
				flags = FlagReadOK | FlagWriteOK
			}
			child = &Node{
				Name:     part,
				Owner:    owner,
				Flags:    flags,
				ModTime:  info.ModTime(),
				Size:     info.Size(),
				parent:   cur,
				children: map[string]*Node{},
			}
			cur.children[part] = child
		}
		cur = child
	}
	return cur, nil
}

// Permit asks the authority (or the built-in owner/flag check) whether
// caller may perform op on pathname. The built-in check applies during
// bootstrap and whenever no authority is installed; once one is
// installed it decides for every caller, the master included.
func (m *Mirror) Permit(pathname, op string, caller value.Handle, node *Node) (bool, error) {
	if m.bootstrap || m.authority == nil {
		return m.builtinCheck(op, caller, node), nil
	}
	return m.authority.Check(pathname, op, caller, node.Owner, node.Flags)
}

func (m *Mirror) builtinCheck(op string, caller value.Handle, node *Node) bool {
	if node.Owner == caller {
		return true
	}
	switch op {
	case "read":
		return node.Flags&FlagReadOK != 0
	case "write":
		return node.Flags&FlagWriteOK != 0
	default:
		return false
	}
}

// Stat resolves a virtual path to its node, auto-discovering it if
// necessary.
func (m *Mirror) Stat(virtual string, owner value.Handle) (*Node, error) {
	return m.lookup(virtual, owner)
}

// List returns the directory's children, reconciling with the host:
// stale virtual entries whose on-disk file has vanished are dropped.
func (m *Mirror) List(virtual string, owner value.Handle) ([]*Node, error) {
	dir, err := m.lookup(virtual, owner)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, ErrInvalidPath
	}
	hostEntries, err := afero.ReadDir(m.hostFS, m.hostPath(virtual))
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(hostEntries))
	for _, e := range hostEntries {
		present[e.Name()] = true
		if _, ok := dir.children[e.Name()]; !ok {
			flags := FlagReadOK | FlagWriteOK
			if e.IsDir() {
				flags |= FlagDir
			}
			dir.children[e.Name()] = &Node{
				Name: e.Name(), Owner: owner, Flags: flags,
				ModTime: e.ModTime(), Size: e.Size(),
				parent: dir, children: map[string]*Node{},
			}
		}
	}
	for name := range dir.children {
		if !present[name] {
			delete(dir.children, name)
		}
	}
	out := make([]*Node, 0, len(dir.children))
	for _, c := range dir.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Chown/Chmod/Hide/Unhide mutate entry metadata directly; permission
// checks are the caller's responsibility (builtin dispatch layer).
func (n *Node) Chown(owner value.Handle) { n.Owner = owner }
func (n *Node) SetFlags(f Flag)          { n.Flags = f }
func (n *Node) Hide()                    { n.Flags |= FlagHidden }
func (n *Node) Unhide()                  { n.Flags &^= FlagHidden }
