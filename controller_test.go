package tor

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeControlServer is a minimal scripted stand-in for a Tor control port,
// enough to drive DialPort/Authenticate/GetInfo end to end without a real
// daemon.
type fakeControlServer struct {
	ln   net.Listener
	addr string
}

func startFakeControlServer(t *testing.T, handle func(conn net.Conn)) *fakeControlServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeControlServer{ln: ln, addr: ln.Addr().String()}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()

	return s
}

func (s *fakeControlServer) Close() {
	s.ln.Close()
}

func writeLine(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	_, err := conn.Write([]byte(line + "\r\n"))
	require.NoError(t, err)
}

func TestDialPortAndAuthenticateNull(t *testing.T) {
	srv := startFakeControlServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)

		line, _ := r.ReadString('\n')
		require.True(t, strings.HasPrefix(line, "PROTOCOLINFO"))
		writeLine(t, conn, `250-PROTOCOLINFO 1`)
		writeLine(t, conn, `250-AUTH METHODS=NULL`)
		writeLine(t, conn, `250-VERSION Tor="0.4.8.1"`)
		writeLine(t, conn, `250 OK`)

		line, _ = r.ReadString('\n')
		require.True(t, strings.HasPrefix(line, "AUTHENTICATE"))
		writeLine(t, conn, "250 OK")

		line, _ = r.ReadString('\n')
		require.True(t, strings.HasPrefix(line, "GETINFO version"))
		writeLine(t, conn, "250-version=0.4.8.1")
		writeLine(t, conn, "250 OK")
	})
	defer srv.Close()

	c, err := DialPort(srv.addr, WithRequestTimeout(2*time.Second))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Authenticate())

	info, err := c.GetInfo("version")
	require.NoError(t, err)
	v, ok := info.Get("version")
	require.True(t, ok)
	require.Equal(t, "0.4.8.1", v)
}

func TestControllerCloseIsIdempotent(t *testing.T) {
	srv := startFakeControlServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		r.ReadString('\n')
	})
	defer srv.Close()

	c, err := DialPort(srv.addr)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.False(t, c.IsAlive())
}

func TestRepurposeCircuitSendsCommand(t *testing.T) {
	srv := startFakeControlServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		line, _ := r.ReadString('\n')
		require.Equal(t, "SETCIRCUITPURPOSE 10 purpose=controller\r\n", line)
		writeLine(t, conn, "250 OK")
	})
	defer srv.Close()

	c, err := DialPort(srv.addr)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.RepurposeCircuit("10", "controller"))
}

func TestGetCircuitsParsesStatusLines(t *testing.T) {
	srv := startFakeControlServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		line, _ := r.ReadString('\n')
		require.Equal(t, "GETINFO circuit-status\r\n", line)

		writeLine(t, conn, "250+circuit-status=")
		writeLine(t, conn, "10 BUILT $AAAA=relay1 PURPOSE=GENERAL")
		writeLine(t, conn, "11 LAUNCHED PURPOSE=GENERAL")
		writeLine(t, conn, ".")
		writeLine(t, conn, "250 OK")
	})
	defer srv.Close()

	c, err := DialPort(srv.addr)
	require.NoError(t, err)
	defer c.Close()

	circuits, err := c.GetCircuits()
	require.NoError(t, err)
	require.Len(t, circuits, 2)
	require.Equal(t, "10", circuits[0].CircuitID)
	require.Equal(t, CircBuilt, circuits[0].Status)
	require.Equal(t, "11", circuits[1].CircuitID)

	single, err := c.GetCircuit("10")
	require.NoError(t, err)
	require.Equal(t, CircBuilt, single.Status)
}

func TestGetStreamsParsesStatusLines(t *testing.T) {
	srv := startFakeControlServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		line, _ := r.ReadString('\n')
		require.Equal(t, "GETINFO stream-status\r\n", line)

		writeLine(t, conn, "250+stream-status=")
		writeLine(t, conn, "14 SUCCEEDED 10 example.com:443 PURPOSE=USER")
		writeLine(t, conn, ".")
		writeLine(t, conn, "250 OK")
	})
	defer srv.Close()

	c, err := DialPort(srv.addr)
	require.NoError(t, err)
	defer c.Close()

	streams, err := c.GetStreams()
	require.NoError(t, err)
	require.Len(t, streams, 1)
	require.Equal(t, "14", streams[0].StreamID)
	require.Equal(t, StreamSucceeded, streams[0].Status)
}

func TestGetServerDescriptorParsesBody(t *testing.T) {
	srv := startFakeControlServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		line, _ := r.ReadString('\n')
		require.Equal(t, "GETINFO desc/id/AAAA\r\n", line)

		writeLine(t, conn, "250+desc/id/AAAA=")
		writeLine(t, conn, "router test7 1.2.3.4 9001 0 9030")
		writeLine(t, conn, "platform Tor 0.4.8.1 on Linux")
		writeLine(t, conn, ".")
		writeLine(t, conn, "250 OK")
	})
	defer srv.Close()

	c, err := DialPort(srv.addr)
	require.NoError(t, err)
	defer c.Close()

	desc, err := c.GetServerDescriptor("AAAA")
	require.NoError(t, err)
	require.Equal(t, "test7", desc.Nickname)
	require.Equal(t, "1.2.3.4", desc.Address)
}

func TestGetNetworkStatusParsesBody(t *testing.T) {
	srv := startFakeControlServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		line, _ := r.ReadString('\n')
		require.Equal(t, "GETINFO ns/id/AAAA\r\n", line)

		writeLine(t, conn, "250+ns/id/AAAA=")
		writeLine(t, conn, "r test7 AAAA BBBB 2024-01-02 03:04:05 1.2.3.4 9001 9030")
		writeLine(t, conn, "s Fast Running Valid")
		writeLine(t, conn, ".")
		writeLine(t, conn, "250 OK")
	})
	defer srv.Close()

	c, err := DialPort(srv.addr)
	require.NoError(t, err)
	defer c.Close()

	entry, err := c.GetNetworkStatus("AAAA")
	require.NoError(t, err)
	require.Equal(t, "test7", entry.Nickname)
	require.Equal(t, []string{"Fast", "Running", "Valid"}, entry.Flags)
}

func TestEnableFeatureTracksState(t *testing.T) {
	srv := startFakeControlServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		line, _ := r.ReadString('\n')
		require.Equal(t, "USEFEATURE VERBOSE_NAMES\r\n", line)
		writeLine(t, conn, "250 OK")
	})
	defer srv.Close()

	c, err := DialPort(srv.addr)
	require.NoError(t, err)
	defer c.Close()

	require.False(t, c.IsFeatureEnabled("VERBOSE_NAMES"))
	require.NoError(t, c.EnableFeature("VERBOSE_NAMES"))
	require.True(t, c.IsFeatureEnabled("VERBOSE_NAMES"))
}

func TestRemoveEventListenerLeavesOthersRegistered(t *testing.T) {
	var setEventsCmds []string
	done := make(chan struct{})

	srv := startFakeControlServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		for i := 0; i < 3; i++ {
			line, _ := r.ReadString('\n')
			setEventsCmds = append(setEventsCmds, strings.TrimSpace(line))
			writeLine(t, conn, "250 OK")
		}
		close(done)
	})
	defer srv.Close()

	c, err := DialPort(srv.addr, WithRequestTimeout(2*time.Second))
	require.NoError(t, err)
	defer c.Close()

	id1, err := c.AddEventListener(func(Event) {}, "CIRC")
	require.NoError(t, err)
	_, err = c.AddEventListener(func(Event) {}, "STREAM")
	require.NoError(t, err)

	require.NoError(t, c.RemoveEventListener(id1))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed expected commands")
	}

	last := setEventsCmds[2]
	require.Contains(t, last, "STREAM")
	require.NotContains(t, last, "CIRC")
}

func TestReconnectReattachesEventsAndFeatures(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	addr := ln.Addr().String()

	serveAuth := func(conn net.Conn) *bufio.Reader {
		r := bufio.NewReader(conn)
		line, _ := r.ReadString('\n')
		require.True(t, strings.HasPrefix(line, "PROTOCOLINFO"))
		writeLine(t, conn, `250-PROTOCOLINFO 1`)
		writeLine(t, conn, `250-AUTH METHODS=NULL`)
		writeLine(t, conn, `250-VERSION Tor="0.4.8.1"`)
		writeLine(t, conn, `250 OK`)

		line, _ = r.ReadString('\n')
		require.True(t, strings.HasPrefix(line, "AUTHENTICATE"))
		writeLine(t, conn, "250 OK")
		return r
	}

	reattached := make(chan string, 2)
	serverDone := make(chan struct{})

	go func() {
		defer close(serverDone)

		conn1, err := ln.Accept()
		require.NoError(t, err)
		r1 := serveAuth(conn1)

		line, _ := r1.ReadString('\n')
		require.True(t, strings.HasPrefix(line, "SETEVENTS CIRC"))
		writeLine(t, conn1, "250 OK")

		line, _ = r1.ReadString('\n')
		require.True(t, strings.HasPrefix(line, "USEFEATURE VERBOSE_NAMES"))
		writeLine(t, conn1, "250 OK")

		conn1.Close()

		conn2, err := ln.Accept()
		require.NoError(t, err)
		defer conn2.Close()
		r2 := serveAuth(conn2)

		line, _ = r2.ReadString('\n')
		reattached <- strings.TrimSpace(line)
		writeLine(t, conn2, "250 OK")

		line, _ = r2.ReadString('\n')
		reattached <- strings.TrimSpace(line)
		writeLine(t, conn2, "250 OK")
	}()

	c, err := DialPort(addr, WithRequestTimeout(2*time.Second))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Authenticate())
	_, err = c.AddEventListener(func(Event) {}, "CIRC")
	require.NoError(t, err)
	require.NoError(t, c.EnableFeature("VERBOSE_NAMES"))

	require.NoError(t, c.Reconnect())

	select {
	case <-serverDone:
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect did not complete in time")
	}

	first := <-reattached
	second := <-reattached
	require.Contains(t, first+second, "SETEVENTS CIRC")
	require.Contains(t, first+second, "USEFEATURE VERBOSE_NAMES")
}

func TestSignalSendsCommand(t *testing.T) {
	done := make(chan struct{})
	srv := startFakeControlServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		line, _ := r.ReadString('\n')
		require.Equal(t, "SIGNAL NEWNYM\r\n", line)
		writeLine(t, conn, "250 OK")
		close(done)
	})
	defer srv.Close()

	c, err := DialPort(srv.addr)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Signal(SignalNewnym))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the SIGNAL command")
	}
}
