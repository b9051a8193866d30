package tor

import (
	"net"
	"net/textproto"
	"sync"
	"sync/atomic"
	"time"
)

// socket owns the raw transport to a Tor control port: a single dialed
// connection, a serialized writer, and a line reader. It knows nothing
// about the control protocol's framing beyond CRLF lines; message
// assembly is the assembler's job and request/event demultiplexing is the
// pump's.
//
// Grounded on _teacher_ref/controller.go's use of *textproto.Conn together
// with its started/stopped atomics, generalized into its own type since
// spec.md's socket manager is reused independently by the message pump.
type socket struct {
	conn *textproto.Conn

	network string
	address string

	writeMu sync.Mutex

	alive  int32
	closed int32
}

// dialSocket opens a new connection to a Tor control port over TCP or a
// unix domain socket and wraps it for line-oriented I/O.
func dialSocket(network, address string, timeout time.Duration) (*socket, error) {
	netConn, err := net.DialTimeout(network, address, timeout)
	if err != nil {
		return nil, NewSocketError(err)
	}

	s := &socket{
		conn:    textproto.NewConn(netConn),
		network: network,
		address: address,
	}
	atomic.StoreInt32(&s.alive, 1)

	return s, nil
}

// IsAlive reports whether the socket is believed to still be connected.
// This reflects the last known state, not a live probe.
func (s *socket) IsAlive() bool {
	return atomic.LoadInt32(&s.alive) == 1 && atomic.LoadInt32(&s.closed) == 0
}

// markDead flags the socket as no longer usable, without closing the
// underlying connection (used when a read fails and the caller will decide
// whether to reconnect).
func (s *socket) markDead() {
	atomic.StoreInt32(&s.alive, 0)
}

// Close closes the underlying connection. It is idempotent; only the first
// call does any work.
func (s *socket) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	atomic.StoreInt32(&s.alive, 0)
	return s.conn.Close()
}

// WriteLine writes a single command line, appending the CRLF terminator.
// Writes are serialized so concurrent callers never interleave partial
// commands onto the wire, matching spec.md §5's "writer lock serializes
// commands".
func (s *socket) WriteLine(line string) error {
	if !s.IsAlive() {
		return ErrSocketClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.PrintfLine("%s", line); err != nil {
		s.markDead()
		return NewSocketError(err)
	}
	return nil
}

// ReadLine reads a single CRLF-terminated line, with the terminator
// stripped. It is intended to be called only from the message pump's
// single reader goroutine.
func (s *socket) ReadLine() (string, error) {
	line, err := s.conn.ReadLine()
	if err != nil {
		s.markDead()
		return "", NewSocketError(err)
	}
	return line, nil
}
