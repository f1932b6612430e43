// Package transport implements the TCP accept loop, per-client action
// queues, and login registry (spec §4.3).
package transport

import (
	"context"
	"net"

	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
)

// Server accepts agent connections on a single listener and performs the
// login handshake before handing each Client off to a Registry.
type Server struct {
	ln       net.Listener
	registry *Registry
	loop     *future.Loop
	alive    *int32
	logf     func(string, ...any)
}

// NewServer binds addr (an IPv6 dual-stack wildcard like ":1847" resolves
// dual-stack on most platforms) and returns a Server ready for Serve.
func NewServer(addr string, registry *Registry, loop *future.Loop, alive *int32, logf func(string, ...any)) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{ln: ln, registry: registry, loop: loop, alive: alive, logf: logf}, nil
}

// Addr returns the listener's bound address, useful in tests that bind to
// ":0" and need the actual ephemeral port.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve accepts connections until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		tuneConn(conn)
		go s.handleConn(conn)
	}
}

// handleConn runs the per-connection read loop: feed raw bytes through a
// codec.Decoder, treat the first decoded value as the login, and dispatch
// every value after that as a response matched against the Client's
// outstanding action queue. Registry mutation and action-queue mutation
// happen only via s.loop.Post, so this goroutine never touches Factory
// state directly except through the one synchronous login handoff.
func (s *Server) handleConn(conn net.Conn) {
	var dec codec.Decoder
	buf := make([]byte, 4096)
	var client *Client

	fail := func(reason string) {
		if client == nil {
			conn.Close()
			return
		}
		done := make(chan struct{})
		c := client
		s.loop.Post(func() { c.disconnect(reason); close(done) })
		<-done
	}

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if ferr := dec.Feed(buf[:n]); ferr != nil {
				fail("decode error: " + ferr.Error())
				return
			}
			for _, v := range dec.Take() {
				v := v
				if client == nil {
					str, ok := v.(codec.String)
					if !ok {
						if s.logf != nil {
							s.logf("transport: first value from %s was not a login string", conn.RemoteAddr())
						}
						conn.Close()
						return
					}
					login := string(str)
					handoff := make(chan *Client, 1)
					s.loop.Post(func() {
						c := newClient(conn, login, s.loop, s.alive, s.logf)
						c.onClose = s.registry.Unregister
						s.registry.Register(c)
						if s.logf != nil {
							s.logf("transport: %s logged in from %s (session %s)", login, conn.RemoteAddr(), c.ID)
						}
						handoff <- c
					})
					client = <-handoff
					continue
				}
				cl := client
				s.loop.Post(func() { cl.onResponse(v) })
			}
		}
		if err != nil {
			fail(err.Error())
			return
		}
	}
}
