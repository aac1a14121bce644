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

package telnet

import (
	"sort"

	"github.com/loomhaven/loom/internal/object"
)

// This file is the builtin.Connections surface (the connection
// group): each method operates on the object handle a mudlib-level
// call names, through the server's device table.

func (s *Server) SetInteractive(h object.Handle, enable bool) bool {
	obj, ok := s.store.Get(h)
	if !ok {
		return false
	}
	if enable {
		obj.SetFlag(object.FlagInteractive)
	} else {
		obj.ClearFlag(object.FlagInteractive)
	}
	return true
}

func (s *Server) IsInteractive(h object.Handle) bool {
	obj, ok := s.store.Get(h)
	return ok && obj.HasFlag(object.FlagInteractive)
}

func (s *Server) DeviceConn(h object.Handle) string {
	if c, ok := s.byObject[h]; ok {
		return c.remoteAddr
	}
	return ""
}

func (s *Server) DevicePort(h object.Handle) int64 {
	if _, ok := s.byObject[h]; ok {
		return int64(s.port)
	}
	return 0
}

func (s *Server) DeviceNet(h object.Handle) string {
	if c, ok := s.byObject[h]; ok {
		return c.remoteAddr
	}
	return ""
}

// Send queues text on h's connection, IAC-escaped for the wire.
func (s *Server) Send(h object.Handle, text string) bool {
	c, ok := s.byObject[h]
	if !ok {
		return false
	}
	s.queueWrite(c, EncodeOut([]byte(text)))
	return true
}

func (s *Server) Flush(h object.Handle) bool {
	c, ok := s.byObject[h]
	if !ok {
		return false
	}
	s.flushConn(c)
	return len(c.outBuf) == 0
}

func (s *Server) Disconnect(h object.Handle) bool {
	c, ok := s.byObject[h]
	if !ok {
		return false
	}
	s.closeConn(c)
	return true
}

// Reconnect moves h's connection onto target, the reconnect_device
// contract (a login object handing the socket to the player body).
func (s *Server) Reconnect(h object.Handle, target object.Handle) bool {
	c, ok := s.byObject[h]
	if !ok {
		return false
	}
	return s.Attach(c, target)
}

// ConnectDevice attaches the connection currently on h to target,
// leaving h connected too if they differ only by table entry; in this
// driver it is the same motion as Reconnect.
func (s *Server) ConnectDevice(h object.Handle, target object.Handle) bool {
	return s.Reconnect(h, target)
}

func (s *Server) DeviceIdle(h object.Handle) int64 {
	c, ok := s.byObject[h]
	if !ok {
		return -1
	}
	return s.now().Unix() - c.lastInput
}

func (s *Server) ConnTime(h object.Handle) int64 {
	c, ok := s.byObject[h]
	if !ok {
		return -1
	}
	return s.now().Unix() - c.connectedAt
}

// NextWho enumerates attached objects in ascending handle order:
// InvalidHandle starts the walk, InvalidHandle ends it.
func (s *Server) NextWho(prev object.Handle) object.Handle {
	handles := make([]object.Handle, 0, len(s.byObject))
	for h := range s.byObject {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for _, h := range handles {
		if h > prev {
			return h
		}
	}
	return object.InvalidHandle
}
