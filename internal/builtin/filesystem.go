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

package builtin

import (
	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/value"
	"github.com/loomhaven/loom/internal/vfs"
	"github.com/loomhaven/loom/internal/vm"
)

// registerFilesystem wires the filesystem group to internal/vfs's
// Mirror. Every operation's owner/caller is this_object: the
// caller's own object identity gates every access.
func registerFilesystem(t *Table) {
	t.register("edit", biEdit)
	t.register("cat", biCat)
	t.register("ls", biLs)
	t.alias("get_dir", "ls")
	t.register("rm", biRm)
	t.alias("remove", "rm")
	t.register("cp", biCp)
	t.register("mv", biMv)
	t.alias("rename", "mv")
	t.register("mkdir", biMkdir)
	t.register("rmdir", biRmdir)
	t.register("hide", biHide)
	t.register("unhide", biUnhide)
	t.register("chown", biChown)
	t.register("chmod", biChmod)
	t.register("fstat", biFstat)
	t.register("fowner", biFowner)
	t.register("fread", biFread)
	t.alias("read_file", "fread")
	t.register("fwrite", biFwrite)
	t.alias("write_file", "fwrite")
	t.register("ferase", biFerase)
	t.register("file_size", biFileSize)
}

func callerHandle(m *vm.Machine) object.Handle {
	o := m.CurrentObject()
	if o == nil {
		return object.InvalidHandle
	}
	return o.Handle
}

func checkPermit(t *Table, path, op string, caller object.Handle, node *vfs.Node) bool {
	ok, err := t.Mirror.Permit(path, op, caller, node)
	return err == nil && ok
}

// biEdit marks this_object as in-editor (flag IN_EDITOR); the
// line-buffer editing loop itself is mudlib territory driven over
// the connection, so the driver side only flips the flag bit.
func biEdit(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	o := m.CurrentObject()
	if o == nil {
		return value.Int(0), nil
	}
	o.SetFlag(object.FlagInEditor)
	o.Dirty()
	return value.Int(1), nil
}

func biCat(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.String(""), nil
	}
	path := arg(args, 0).Str()
	caller := callerHandle(m)
	node, err := t.Mirror.Stat(path, caller)
	if err != nil || !checkPermit(t, path, "read", caller, node) {
		return value.String(""), nil
	}
	data, err := t.Mirror.ReadFile(path, caller)
	if err != nil {
		return value.String(""), nil
	}
	return value.String(string(data)), nil
}

func biLs(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.ArrayVal(value.NewArray(nil, value.Unlimited)), nil
	}
	nodes, err := t.Mirror.List(arg(args, 0).Str(), callerHandle(m))
	if err != nil {
		return value.ArrayVal(value.NewArray(nil, value.Unlimited)), nil
	}
	out := make([]value.Value, len(nodes))
	for i, n := range nodes {
		out[i] = value.String(n.Name)
	}
	return value.ArrayVal(value.NewArray(out, value.Unlimited)), nil
}

func biRm(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Int(0), nil
	}
	path := arg(args, 0).Str()
	caller := callerHandle(m)
	node, err := t.Mirror.Stat(path, caller)
	if err != nil || !checkPermit(t, path, "write", caller, node) {
		return value.Int(0), nil
	}
	return boolInt(t.Mirror.Remove(path, caller) == nil), nil
}

func biCp(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Int(0), nil
	}
	return boolInt(t.Mirror.Copy(arg(args, 0).Str(), arg(args, 1).Str(), callerHandle(m)) == nil), nil
}

func biMv(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Int(0), nil
	}
	path := arg(args, 0).Str()
	caller := callerHandle(m)
	node, err := t.Mirror.Stat(path, caller)
	if err != nil || !checkPermit(t, path, "write", caller, node) {
		return value.Int(0), nil
	}
	return boolInt(t.Mirror.Rename(path, arg(args, 1).Str(), caller) == nil), nil
}

func biMkdir(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Int(0), nil
	}
	return boolInt(t.Mirror.Mkdir(arg(args, 0).Str(), callerHandle(m)) == nil), nil
}

func biRmdir(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Int(0), nil
	}
	return boolInt(t.Mirror.Rmdir(arg(args, 0).Str(), callerHandle(m)) == nil), nil
}

func biHide(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Int(0), nil
	}
	path := arg(args, 0).Str()
	caller := callerHandle(m)
	node, err := t.Mirror.Stat(path, caller)
	if err != nil || !checkPermit(t, path, "write", caller, node) {
		return value.Int(0), nil
	}
	node.Hide()
	return value.Int(1), nil
}

func biUnhide(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Int(0), nil
	}
	path := arg(args, 0).Str()
	caller := callerHandle(m)
	node, err := t.Mirror.Stat(path, caller)
	if err != nil || !checkPermit(t, path, "write", caller, node) {
		return value.Int(0), nil
	}
	node.Unhide()
	return value.Int(1), nil
}

func biChown(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Int(0), nil
	}
	path := arg(args, 0).Str()
	caller := callerHandle(m)
	node, err := t.Mirror.Stat(path, caller)
	if err != nil || !checkPermit(t, path, "write", caller, node) {
		return value.Int(0), nil
	}
	node.Chown(objHandleOf(arg(args, 1)))
	return value.Int(1), nil
}

func biChmod(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Int(0), nil
	}
	path := arg(args, 0).Str()
	caller := callerHandle(m)
	node, err := t.Mirror.Stat(path, caller)
	if err != nil || !checkPermit(t, path, "write", caller, node) {
		return value.Int(0), nil
	}
	node.SetFlags(vfs.Flag(arg(args, 1).Int()))
	return value.Int(1), nil
}

func biFstat(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Zero(), nil
	}
	node, err := t.Mirror.Stat(arg(args, 0).Str(), callerHandle(m))
	if err != nil {
		return value.Zero(), nil
	}
	mp := value.NewMapping(
		[]value.Value{value.String("size"), value.String("flags"), value.String("owner"), value.String("dir")},
		[]value.Value{value.Int(node.Size), value.Int(int64(node.Flags)), value.Object(node.Owner), boolInt(node.IsDir())},
	)
	return value.MappingVal(mp), nil
}

func biFowner(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Object(object.InvalidHandle), nil
	}
	node, err := t.Mirror.Stat(arg(args, 0).Str(), callerHandle(m))
	if err != nil {
		return value.Object(object.InvalidHandle), nil
	}
	return value.Object(node.Owner), nil
}

func biFread(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	return biCat(t, m, args)
}

func biFwrite(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Int(0), nil
	}
	err := t.Mirror.WriteFile(arg(args, 0).Str(), callerHandle(m), []byte(arg(args, 1).Str()))
	return boolInt(err == nil), nil
}

func biFerase(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Int(0), nil
	}
	return boolInt(t.Mirror.Erase(arg(args, 0).Str(), callerHandle(m)) == nil), nil
}

func biFileSize(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Mirror == nil {
		return value.Int(-1), nil
	}
	size, err := t.Mirror.FileSize(arg(args, 0).Str(), callerHandle(m))
	if err != nil {
		return value.Int(-1), nil
	}
	return value.Int(size), nil
}
