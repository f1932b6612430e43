package future

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func drainSync(loop *Loop) {
	// Post a marker task and wait for it; since the loop is a single
	// FIFO goroutine, everything posted before this has already run by
	// the time it executes.
	done := make(chan struct{})
	loop.Post(func() { close(done) })
	<-done
}

func TestResolveThenAttach(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()

	p := New[int](loop, nil)
	p.Resolve(5)

	var got int
	done := make(chan struct{})
	Listen(p, func(r Result[int]) {
		got = r.Value
		close(done)
	})
	<-done
	if got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
}

func TestAttachThenResolve(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()

	p := New[int](loop, nil)
	done := make(chan struct{})
	var got int
	Listen(p, func(r Result[int]) {
		got = r.Value
		close(done)
	})
	p.Resolve(7)
	<-done
	if got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestDoubleAttachPanics(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()
	p := New[int](loop, nil)
	Listen(p, func(Result[int]) {})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on second attach")
		}
	}()
	Listen(p, func(Result[int]) {})
}

func TestMapPropagatesFailure(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()
	cause := errors.New("boom")
	p := Failed[int](loop, nil, cause)
	mapped := Map(p, func(int) string { return "never" })
	done := make(chan Result[string], 1)
	Listen(mapped, func(r Result[string]) { done <- r })
	r := <-done
	if r.Err != cause {
		t.Fatalf("got err %v, want %v", r.Err, cause)
	}
}

func TestThenChains(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()
	p := Resolved(loop, nil, 2)
	chained := Then(p, func(v int) *Promise[int] {
		return Resolved(loop, nil, v*10)
	})
	done := make(chan Result[int], 1)
	Listen(chained, func(r Result[int]) { done <- r })
	r := <-done
	if r.Err != nil || r.Value != 20 {
		t.Fatalf("got %+v", r)
	}
}

func TestFinallyRunsOnFailure(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()
	ran := false
	p := Failed[int](loop, nil, errors.New("x"))
	f := Finally(p, func() { ran = true })
	done := make(chan Result[int], 1)
	Listen(f, func(r Result[int]) { done <- r })
	<-done
	if !ran {
		t.Fatal("finally callback did not run")
	}
}

func TestAllSuccess(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()
	ps := make([]*Promise[int], 4)
	for i := range ps {
		ps[i] = New[int](loop, nil)
	}
	all := All(loop, nil, ps)
	done := make(chan Result[[]int], 1)
	Listen(all, func(r Result[[]int]) { done <- r })

	var wg sync.WaitGroup
	for i, p := range ps {
		wg.Add(1)
		go func(i int, p *Promise[int]) {
			defer wg.Done()
			p.Resolve(i * i)
		}(i, p)
	}
	wg.Wait()

	select {
	case r := <-done:
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		want := []int{0, 1, 4, 9}
		for i := range want {
			if r.Value[i] != want[i] {
				t.Fatalf("got %v want %v", r.Value, want)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for All")
	}
}

func TestAllFailsOnFirstError(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()
	cause := errors.New("fail")
	p1 := New[int](loop, nil)
	p2 := Failed[int](loop, nil, cause)
	all := All(loop, nil, []*Promise[int]{p1, p2})
	done := make(chan Result[[]int], 1)
	Listen(all, func(r Result[[]int]) { done <- r })
	r := <-done
	if r.Err != cause {
		t.Fatalf("got %v, want %v", r.Err, cause)
	}
}

func TestAllEmpty(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()
	all := All[int](loop, nil, nil)
	done := make(chan Result[[]int], 1)
	Listen(all, func(r Result[[]int]) { done <- r })
	r := <-done
	if r.Err != nil || len(r.Value) != 0 {
		t.Fatalf("got %+v", r)
	}
}

func TestDeadWitnessSuppressesContinuation(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()
	alive := int32(1)
	p := New[int](loop, &alive)
	ran := false
	Listen(p, func(Result[int]) { ran = true })
	alive = 0
	p.Resolve(1)
	drainSync(loop)
	if ran {
		t.Fatal("continuation ran after witness died")
	}
}
