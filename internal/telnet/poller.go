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

import "time"

// event is one readiness notification from the poller.
type event struct {
	fd       int
	readable bool
	writable bool
	hup      bool
}

// poller abstracts the OS readiness facility behind the outer loop
// (one poll multiplexes the listener, client sockets, and the
// soonest alarm deadline as its timeout).
type poller interface {
	Add(fd int, writable bool) error
	Mod(fd int, writable bool) error
	Del(fd int) error
	Wait(timeout time.Duration) ([]event, error)
	Close() error
}
