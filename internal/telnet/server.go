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
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/loomhaven/loom/internal/object"
)

// DefaultWriteBudget bounds how many bytes one connection may flush
// per wake; the remainder stays buffered for the next one.
const DefaultWriteBudget = 16 * 1024

// Conn is one client connection: decoder state, pending output, and
// the object it is attached to (InvalidHandle until login attaches
// one).
type Conn struct {
	fd    int
	proto Proto

	outBuf  []byte
	armed   bool // fd registered for write readiness
	closing bool

	attached    object.Handle
	remoteAddr  string
	remotePort  int64
	connectedAt int64
	lastInput   int64
}

// Attached returns the object handle this connection drives.
func (c *Conn) Attached() object.Handle { return c.attached }

// RemoteAddr returns the peer's printable address.
func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// Server owns the listening socket, the poller, and the connection
// table. It implements builtin.Connections, so the connection
// builtins operate on it directly. Everything runs on the one engine
// thread: Run's poll is the only suspension point.
type Server struct {
	store *object.Store
	log   *zap.Logger
	now   func() time.Time

	poll     poller
	listenFD int
	port     int

	conns    map[int]*Conn
	byObject map[object.Handle]*Conn

	writeBudget int

	// OnConnect is invoked with a fresh connection so the mudlib side
	// can attach a login object; OnLine with each framed input line;
	// OnDisconnect when the peer goes away.
	OnConnect    func(c *Conn)
	OnLine       func(c *Conn, line string)
	OnDisconnect func(c *Conn)
}

// NewServer builds a server bound to nothing; call Listen before Run.
func NewServer(store *object.Store, log *zap.Logger, now func() time.Time) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	return &Server{
		store:       store,
		log:         log,
		now:         now,
		poll:        p,
		listenFD:    -1,
		conns:       make(map[int]*Conn),
		byObject:    make(map[object.Handle]*Conn),
		writeBudget: DefaultWriteBudget,
	}, nil
}

// Listen opens the non-blocking TCP listener on port.
func (s *Server) Listen(port int) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return err
	}
	sa := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return err
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return err
	}
	if err := s.poll.Add(fd, false); err != nil {
		unix.Close(fd)
		return err
	}
	s.listenFD = fd
	s.port = port
	s.log.Info("listening", zap.Int("port", port))
	return nil
}

// Run is the outer loop: poll with a timeout sized to the
// soonest alarm, service ready sockets, then hand the wake to tick for
// the queue-drain phases. Returns when stopped reports true.
func (s *Server) Run(nextDeadline func() (time.Time, bool), tick func(now time.Time), stopped func() bool) error {
	for !stopped() {
		timeout := 30 * time.Second
		if deadline, ok := nextDeadline(); ok {
			if d := time.Until(deadline); d < timeout {
				timeout = d
			}
			if timeout < 0 {
				timeout = 0
			}
		}
		events, err := s.poll.Wait(timeout)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if ev.fd == s.listenFD {
				s.acceptAll()
				continue
			}
			c, ok := s.conns[ev.fd]
			if !ok {
				continue
			}
			if ev.hup {
				s.closeConn(c)
				continue
			}
			if ev.readable {
				s.readConn(c)
			}
			if ev.writable {
				s.flushConn(c)
			}
		}
		tick(s.now())
	}
	return nil
}

// Close shuts every socket down in an orderly way (fatal-error
// path and normal shutdown both land here).
func (s *Server) Close() {
	for _, c := range s.conns {
		s.closeConn(c)
	}
	if s.listenFD >= 0 {
		s.poll.Del(s.listenFD)
		unix.Close(s.listenFD)
		s.listenFD = -1
	}
	s.poll.Close()
}

func (s *Server) acceptAll() {
	for {
		fd, sa, err := unix.Accept(s.listenFD)
		if err != nil {
			// EAGAIN means the backlog is drained.
			return
		}
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fd)
			continue
		}
		c := &Conn{
			fd:          fd,
			attached:    object.InvalidHandle,
			connectedAt: s.now().Unix(),
			lastInput:   s.now().Unix(),
		}
		if in4, ok := sa.(*unix.SockaddrInet4); ok {
			c.remoteAddr = fmt.Sprintf("%d.%d.%d.%d", in4.Addr[0], in4.Addr[1], in4.Addr[2], in4.Addr[3])
			c.remotePort = int64(in4.Port)
		}
		if err := s.poll.Add(fd, false); err != nil {
			unix.Close(fd)
			continue
		}
		s.conns[fd] = c
		s.queueWrite(c, Greeting())
		s.log.Info("connection", zap.String("from", c.remoteAddr))
		if s.OnConnect != nil {
			s.OnConnect(c)
		}
	}
}

func (s *Server) readConn(c *Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := unix.Read(c.fd, buf)
		if n > 0 {
			lines, out := c.proto.Feed(buf[:n])
			if len(out) > 0 {
				s.queueWrite(c, out)
			}
			if len(lines) > 0 {
				c.lastInput = s.now().Unix()
				for _, line := range lines {
					if s.OnLine != nil {
						s.OnLine(c, line)
					}
				}
			}
		}
		if err != nil {
			return // EAGAIN or a real error; HUP surfaces via the poller
		}
		if n == 0 {
			s.closeConn(c)
			return
		}
		if n < len(buf) {
			return
		}
	}
}

// queueWrite appends raw protocol bytes to the connection's output
// buffer and tries an immediate flush.
func (s *Server) queueWrite(c *Conn, data []byte) {
	if c.closing {
		return
	}
	c.outBuf = append(c.outBuf, data...)
	s.flushConn(c)
}

// flushConn writes up to the per-wake byte budget; a partial write
// retains the remainder and re-arms the socket for write readiness
//.
func (s *Server) flushConn(c *Conn) {
	budget := s.writeBudget
	for len(c.outBuf) > 0 && budget > 0 {
		chunk := c.outBuf
		if len(chunk) > budget {
			chunk = chunk[:budget]
		}
		n, err := unix.Write(c.fd, chunk)
		if n > 0 {
			c.outBuf = c.outBuf[n:]
			budget -= n
		}
		if err != nil {
			break
		}
	}
	wantArm := len(c.outBuf) > 0
	if wantArm != c.armed {
		if err := s.poll.Mod(c.fd, wantArm); err == nil {
			c.armed = wantArm
		}
	}
}

func (s *Server) closeConn(c *Conn) {
	if c.closing {
		return
	}
	c.closing = true
	s.poll.Del(c.fd)
	unix.Close(c.fd)
	delete(s.conns, c.fd)
	if c.attached != object.InvalidHandle {
		delete(s.byObject, c.attached)
		if obj, ok := s.store.Get(c.attached); ok {
			obj.Device = -1
			obj.ClearFlag(object.FlagConnected)
		}
	}
	s.log.Info("disconnection", zap.String("from", c.remoteAddr))
	if s.OnDisconnect != nil {
		s.OnDisconnect(c)
	}
}

// Attach binds c to the object named by h: the object's device number
// becomes the socket fd and its CONNECTED flag raises. Any previous
// attachment on either side is dropped first.
func (s *Server) Attach(c *Conn, h object.Handle) bool {
	obj, ok := s.store.Get(h)
	if !ok {
		return false
	}
	if prev, ok := s.byObject[h]; ok && prev != c {
		prev.attached = object.InvalidHandle
	}
	if c.attached != object.InvalidHandle {
		delete(s.byObject, c.attached)
		if old, ok := s.store.Get(c.attached); ok {
			old.Device = -1
			old.ClearFlag(object.FlagConnected)
		}
	}
	c.attached = h
	s.byObject[h] = c
	obj.Device = int32(c.fd)
	obj.SetFlag(object.FlagConnected)
	return true
}
