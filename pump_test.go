package tor

import (
	"net"
	"net/textproto"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestSocketPair returns two sockets wired to each other's ends of an
// in-memory pipe, standing in for a real TCP dial in tests.
func newTestSocketPair() (*socket, *socket) {
	clientConn, serverConn := net.Pipe()

	client := &socket{conn: textproto.NewConn(clientConn)}
	atomic.StoreInt32(&client.alive, 1)

	server := &socket{conn: textproto.NewConn(serverConn)}
	atomic.StoreInt32(&server.alive, 1)

	return client, server
}

func TestPumpSendReceivesReply(t *testing.T) {
	client, server := newTestSocketPair()
	defer client.Close()
	defer server.Close()

	p := newPump(client, newEventQueue(16), nil, func(string) []*listenerQueue { return nil })
	p.Start()
	defer p.Wait()
	defer client.Close()

	go func() {
		line, err := server.ReadLine()
		require.NoError(t, err)
		require.Equal(t, "GETINFO version", line)
		require.NoError(t, server.WriteLine("250-version=0.4.8.1"))
		require.NoError(t, server.WriteLine("250 OK"))
	}()

	ch, err := p.Send("GETINFO version")
	require.NoError(t, err)

	select {
	case res := <-ch:
		require.NoError(t, res.err)
		require.Equal(t, 250, res.msg.Code())
		require.Len(t, res.msg.Lines(), 2)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
	}
}

func TestPumpDispatchesEvents(t *testing.T) {
	client, server := newTestSocketPair()
	defer client.Close()
	defer server.Close()

	received := make(chan Event, 1)
	lq := newListenerQueue(4, func(e Event) { received <- e })
	defer lq.stop()

	p := newPump(client, newEventQueue(16), nil, func(eventType string) []*listenerQueue {
		if eventType == "BW" {
			return []*listenerQueue{lq}
		}
		return nil
	})
	p.Start()
	defer p.Wait()
	defer client.Close()

	require.NoError(t, server.WriteLine("650 BW 100 200"))

	select {
	case evt := <-received:
		bw, ok := evt.(*BandwidthEvent)
		require.True(t, ok)
		require.Equal(t, 100, bw.BytesRead)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched event")
	}
}

func TestPumpFailsPendingOnSocketClose(t *testing.T) {
	client, server := newTestSocketPair()
	defer server.Close()

	p := newPump(client, newEventQueue(16), nil, func(string) []*listenerQueue { return nil })
	p.Start()

	// net.Pipe is unbuffered, so the write inside Send only completes once
	// the server end reads the command line.
	go server.ReadLine()

	ch, err := p.Send("GETINFO version")
	require.NoError(t, err)

	require.NoError(t, client.Close())
	p.Wait()

	select {
	case res := <-ch:
		require.Error(t, res.err)
	default:
		t.Fatal("expected pending request to be failed once the socket closed")
	}
}
