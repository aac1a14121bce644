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
	"path"

	"github.com/spf13/afero"

	"github.com/loomhaven/loom/internal/value"
)

// ReadFile backs fread/read_file.
func (m *Mirror) ReadFile(virtual string, owner value.Handle) ([]byte, error) {
	if _, err := m.lookup(virtual, owner); err != nil {
		return nil, err
	}
	return afero.ReadFile(m.hostFS, m.hostPath(virtual))
}

// WriteFile backs fwrite/write_file, creating the virtual entry if new.
func (m *Mirror) WriteFile(virtual string, owner value.Handle, data []byte) error {
	if err := afero.WriteFile(m.hostFS, m.hostPath(virtual), data, 0644); err != nil {
		return err
	}
	_, err := m.lookup(virtual, owner)
	return err
}

// Erase backs ferase: truncates the file to zero length without
// removing the virtual entry.
func (m *Mirror) Erase(virtual string, owner value.Handle) error {
	return m.WriteFile(virtual, owner, nil)
}

// FileSize backs file_size.
func (m *Mirror) FileSize(virtual string, owner value.Handle) (int64, error) {
	node, err := m.lookup(virtual, owner)
	if err != nil {
		return 0, err
	}
	return node.Size, nil
}

// Mkdir backs mkdir.
func (m *Mirror) Mkdir(virtual string, owner value.Handle) error {
	if err := m.hostFS.MkdirAll(m.hostPath(virtual), 0755); err != nil {
		return err
	}
	clean, err := Normalize(virtual)
	if err != nil {
		return err
	}
	parentDir := path.Dir(clean)
	parent, err := m.lookup(parentDir, owner)
	if err != nil {
		return err
	}
	name := path.Base(clean)
	parent.children[name] = &Node{
		Name: name, Owner: owner, Flags: FlagDir | FlagReadOK | FlagWriteOK,
		parent: parent, children: map[string]*Node{},
	}
	return nil
}

// Rmdir backs rmdir.
func (m *Mirror) Rmdir(virtual string, owner value.Handle) error {
	node, err := m.lookup(virtual, owner)
	if err != nil {
		return err
	}
	if !node.IsDir() {
		return ErrInvalidPath
	}
	if err := m.hostFS.Remove(m.hostPath(virtual)); err != nil {
		return err
	}
	if node.parent != nil {
		delete(node.parent.children, node.Name)
	}
	return nil
}

// Remove backs rm/remove.
func (m *Mirror) Remove(virtual string, owner value.Handle) error {
	node, err := m.lookup(virtual, owner)
	if err != nil {
		return err
	}
	if err := m.hostFS.Remove(m.hostPath(virtual)); err != nil {
		return err
	}
	if node.parent != nil {
		delete(node.parent.children, node.Name)
	}
	return nil
}

// Copy backs cp.
func (m *Mirror) Copy(src, dst string, owner value.Handle) error {
	data, err := m.ReadFile(src, owner)
	if err != nil {
		return err
	}
	return m.WriteFile(dst, owner, data)
}

// Rename backs mv/rename.
func (m *Mirror) Rename(src, dst string, owner value.Handle) error {
	node, err := m.lookup(src, owner)
	if err != nil {
		return err
	}
	if err := m.hostFS.Rename(m.hostPath(src), m.hostPath(dst)); err != nil {
		return err
	}
	if node.parent != nil {
		delete(node.parent.children, node.Name)
	}
	dstClean, err := Normalize(dst)
	if err != nil {
		return err
	}
	newParent, err := m.lookup(path.Dir(dstClean), owner)
	if err != nil {
		return err
	}
	node.Name = path.Base(dstClean)
	node.parent = newParent
	newParent.children[node.Name] = node
	return nil
}
