package auth

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nerrad567/dbconduit/internal/transport"
)

// scriptedServer accepts one connection, captures everything the client
// writes, and replies with the configured chunks (with a small pause
// between chunks so partial-read handling is exercised).
type scriptedServer struct {
	ln       net.Listener
	received chan []byte
}

func newScriptedServer(t *testing.T, responses ...[]byte) *scriptedServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	s := &scriptedServer{ln: ln, received: make(chan []byte, 2)}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 4096)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		s.received <- append([]byte(nil), buf[:n]...)

		for i, resp := range responses {
			if i > 0 {
				time.Sleep(20 * time.Millisecond)
			}
			if _, err := conn.Write(resp); err != nil {
				return
			}
		}

		// Some exchanges follow the response with a second client write
		// (the connection string after a bind). Capture it if it comes.
		conn.SetReadDeadline(time.Now().Add(time.Second)) //nolint:errcheck
		if n, err := conn.Read(buf); err == nil {
			s.received <- append([]byte(nil), buf[:n]...)
		}
	}()

	return s
}

func (s *scriptedServer) dial(t *testing.T) *transport.Transport {
	t.Helper()

	addr := s.ln.Addr().(*net.TCPAddr)
	tr, err := transport.Dial(context.Background(), "127.0.0.1", addr.Port, &transport.Options{
		ConnectTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

// sent returns what the server captured from the client.
func (s *scriptedServer) sent(t *testing.T) []byte {
	t.Helper()
	select {
	case b := <-s.received:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("server captured nothing")
		return nil
	}
}
