package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
)

func startServer(t *testing.T) (*Server, *Registry, *future.Loop, func()) {
	t.Helper()
	loop := future.NewLoop()
	reg := NewRegistry(nil)
	srv, err := NewServer("127.0.0.1:0", reg, loop, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)
	return srv, reg, loop, func() { cancel(); loop.Close() }
}

func onLoop[T any](loop *future.Loop, fn func() T) T {
	done := make(chan T, 1)
	loop.Post(func() { done <- fn() })
	return <-done
}

func waitForLogin(t *testing.T, reg *Registry, loop *future.Loop, login string) *Client {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c := onLoop(loop, func() *Client {
			c, _ := reg.Lookup(login)
			return c
		})
		if c != nil {
			return c
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("login %q never registered", login)
	return nil
}

func TestLoginAndActionRoundTrip(t *testing.T) {
	srv, reg, loop, cleanup := startServer(t)
	defer cleanup()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	loginBytes, _ := codec.Encode(codec.String("north"))
	if _, err := conn.Write(loginBytes); err != nil {
		t.Fatal(err)
	}
	client := waitForLogin(t, reg, loop, "north")

	p := onLoop(loop, func() *future.Promise[codec.Value] {
		return client.Enqueue([]action.Action{&action.List{Inv: "x", Side: action.Top}})[0]
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	vals, err := codec.DecodeAll(buf[:n])
	if err != nil || len(vals) != 1 {
		t.Fatalf("decode group: vals=%v err=%v", vals, err)
	}
	group, err := codec.TableToArray(vals[0])
	if err != nil || len(group) != 1 {
		t.Fatalf("group shape: %v err=%v", group, err)
	}
	op, _ := group[0].(codec.Table).GetString("op")
	if op != "list" {
		t.Fatalf("op = %q, want list", op)
	}

	respBytes, _ := codec.Encode(codec.Null{})
	if _, err := conn.Write(respBytes); err != nil {
		t.Fatal(err)
	}

	resultCh := make(chan future.Result[codec.Value], 1)
	loop.Post(func() { future.Listen(p, func(r future.Result[codec.Value]) { resultCh <- r }) })
	select {
	case r := <-resultCh:
		if r.Err != nil {
			t.Fatal(r.Err)
		}
		if _, ok := r.Value.(codec.Null); !ok {
			t.Fatalf("response = %v, want Null", r.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for action response")
	}
}

func TestLoginCollisionEvictsPrior(t *testing.T) {
	srv, reg, loop, cleanup := startServer(t)
	defer cleanup()

	connA, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer connA.Close()
	loginBytes, _ := codec.Encode(codec.String("north"))
	connA.Write(loginBytes)
	clientA := waitForLogin(t, reg, loop, "north")

	pA := onLoop(loop, func() *future.Promise[codec.Value] {
		return clientA.Enqueue([]action.Action{&action.List{Inv: "x", Side: action.Top}})[0]
	})

	connB, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer connB.Close()
	connB.Write(loginBytes)

	deadline := time.Now().Add(2 * time.Second)
	var failed bool
	for time.Now().Before(deadline) {
		failed = onLoop(loop, func() bool { return clientA.dead })
		if failed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !failed {
		t.Fatal("client A should have been evicted and disconnected")
	}

	resultCh := make(chan future.Result[codec.Value], 1)
	loop.Post(func() { future.Listen(pA, func(r future.Result[codec.Value]) { resultCh <- r }) })
	select {
	case r := <-resultCh:
		if r.Err == nil {
			t.Fatal("A's pending action should have failed on eviction")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for eviction failure")
	}

	clientB := onLoop(loop, func() *Client { c, _ := reg.Lookup("north"); return c })
	if clientB == nil || clientB == clientA {
		t.Fatal("the registry should now route \"north\" to client B")
	}
}
