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
	"github.com/loomhaven/loom/internal/vm"
)

func registerConnection(t *Table) {
	t.register("set_interactive", biSetInteractive)
	t.register("interactive", biInteractive)
	t.register("connected", biConnected)
	t.register("get_devconn", biGetDevconn)
	t.register("get_devport", biGetDevport)
	t.register("get_devnet", biGetDevnet)
	t.register("send_device", biSendDevice)
	t.register("flush_device", biFlushDevice)
	t.register("disconnect_device", biDisconnectDevice)
	t.register("reconnect_device", biReconnectDevice)
	t.register("connect_device", biConnectDevice)
	t.register("get_devidle", biGetDevidle)
	t.register("get_conntime", biGetConntime)
	t.register("next_who", biNextWho)
}

// biSetInteractive flips the RESIDENT-independent INTERACTIVE flag
// and, when a connection table is wired, tells it to
// start/stop treating the object as a telnet endpoint.
func biSetInteractive(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok {
		return value.Int(0), nil
	}
	enable := arg(args, 1).Truthy()
	if enable {
		obj.SetFlag(object.FlagInteractive)
	} else {
		obj.ClearFlag(object.FlagInteractive)
	}
	obj.Dirty()
	if t.Connections != nil {
		return boolInt(t.Connections.SetInteractive(obj.Handle, enable)), nil
	}
	return value.Int(1), nil
}

func biInteractive(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok {
		return value.Int(0), nil
	}
	return boolInt(obj.HasFlag(object.FlagInteractive)), nil
}

func biConnected(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	obj, ok := m.Store.Get(objHandleOf(arg(args, 0)))
	if !ok {
		return value.Int(0), nil
	}
	return boolInt(obj.HasFlag(object.FlagConnected)), nil
}

func biGetDevconn(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Connections == nil {
		return value.String(""), nil
	}
	return value.String(t.Connections.DeviceConn(objHandleOf(arg(args, 0)))), nil
}

func biGetDevport(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Connections == nil {
		return value.Int(0), nil
	}
	return value.Int(t.Connections.DevicePort(objHandleOf(arg(args, 0)))), nil
}

func biGetDevnet(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Connections == nil {
		return value.String(""), nil
	}
	return value.String(t.Connections.DeviceNet(objHandleOf(arg(args, 0)))), nil
}

func biSendDevice(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Connections == nil {
		return value.Int(0), nil
	}
	return boolInt(t.Connections.Send(objHandleOf(arg(args, 0)), arg(args, 1).Str())), nil
}

func biFlushDevice(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Connections == nil {
		return value.Int(0), nil
	}
	return boolInt(t.Connections.Flush(objHandleOf(arg(args, 0)))), nil
}

func biDisconnectDevice(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Connections == nil {
		return value.Int(0), nil
	}
	return boolInt(t.Connections.Disconnect(objHandleOf(arg(args, 0)))), nil
}

func biReconnectDevice(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Connections == nil {
		return value.Int(0), nil
	}
	return boolInt(t.Connections.Reconnect(objHandleOf(arg(args, 0)), objHandleOf(arg(args, 1)))), nil
}

func biConnectDevice(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Connections == nil {
		return value.Int(0), nil
	}
	return boolInt(t.Connections.ConnectDevice(objHandleOf(arg(args, 0)), objHandleOf(arg(args, 1)))), nil
}

func biGetDevidle(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Connections == nil {
		return value.Int(0), nil
	}
	return value.Int(t.Connections.DeviceIdle(objHandleOf(arg(args, 0)))), nil
}

func biGetConntime(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Connections == nil {
		return value.Int(0), nil
	}
	return value.Int(t.Connections.ConnTime(objHandleOf(arg(args, 0)))), nil
}

func biNextWho(t *Table, m *vm.Machine, args []value.Value) (value.Value, error) {
	if t.Connections == nil {
		return value.Object(object.InvalidHandle), nil
	}
	return value.Object(t.Connections.NextWho(objHandleOf(arg(args, 0)))), nil
}
