package future

import (
	"sync"
	"sync/atomic"
)

// Result carries either a value or the error that prevented one.
type Result[T any] struct {
	Value T
	Err   error
}

// Promise is a single-assignment, single-continuation future. It may be
// resolved exactly once, from any goroutine; exactly one continuation may
// be attached, from any goroutine, in any order relative to resolution.
type Promise[T any] struct {
	loop  *Loop
	alive *int32 // shared liveness witness; nil means "always alive"

	mu       sync.Mutex
	resolved bool
	result   Result[T]
	attached bool
	cont     func(Result[T])
}

// New creates a pending promise dispatching continuations on loop. alive,
// if non-nil, is checked (via atomic.LoadInt32) immediately before running
// any continuation; a zero value means the owning component has torn down
// and the continuation silently no-ops, implementing the cancel-on-drop
// semantics of spec §4.2/§5.
func New[T any](loop *Loop, alive *int32) *Promise[T] {
	return &Promise[T]{loop: loop, alive: alive}
}

// Resolved returns an already-resolved promise, useful for synchronous
// fast paths (e.g. Bus.Allocate's immediate-partial-success case).
func Resolved[T any](loop *Loop, alive *int32, v T) *Promise[T] {
	p := New[T](loop, alive)
	p.Resolve(v)
	return p
}

// Failed returns an already-failed promise.
func Failed[T any](loop *Loop, alive *int32, err error) *Promise[T] {
	p := New[T](loop, alive)
	p.Fail(err)
	return p
}

// Resolve settles the promise with a value. A second call to Resolve or
// Fail is a silent no-op (the first settlement wins).
func (p *Promise[T]) Resolve(v T) { p.settle(Result[T]{Value: v}) }

// Fail settles the promise with an error.
func (p *Promise[T]) Fail(err error) { p.settle(Result[T]{Err: err}) }

func (p *Promise[T]) settle(r Result[T]) {
	p.mu.Lock()
	if p.resolved {
		p.mu.Unlock()
		return
	}
	p.resolved = true
	p.result = r
	cont := p.cont
	p.mu.Unlock()
	if cont != nil {
		p.dispatch(cont, r)
	}
}

// attach registers the promise's sole continuation. Attaching twice is a
// programmer error (spec §4.2: "Attach exactly one continuation").
func (p *Promise[T]) attach(f func(Result[T])) {
	p.mu.Lock()
	if p.attached {
		p.mu.Unlock()
		panic("future: a continuation is already attached to this promise")
	}
	p.attached = true
	if p.resolved {
		r := p.result
		p.mu.Unlock()
		p.dispatch(f, r)
		return
	}
	p.cont = f
	p.mu.Unlock()
}

func (p *Promise[T]) dispatch(f func(Result[T]), r Result[T]) {
	p.loop.Post(func() {
		if p.alive != nil && atomic.LoadInt32(p.alive) == 0 {
			return
		}
		f(r)
	})
}

// Then chains p into a promise produced by f, once p resolves
// successfully. A failure of p propagates without invoking f.
func Then[T, U any](p *Promise[T], f func(T) *Promise[U]) *Promise[U] {
	out := New[U](p.loop, p.alive)
	p.attach(func(r Result[T]) {
		if r.Err != nil {
			out.Fail(r.Err)
			return
		}
		child := f(r.Value)
		child.attach(func(cr Result[U]) {
			if cr.Err != nil {
				out.Fail(cr.Err)
			} else {
				out.Resolve(cr.Value)
			}
		})
	})
	return out
}

// Map transforms a successful value synchronously; a failure of p
// propagates unchanged.
func Map[T, U any](p *Promise[T], f func(T) U) *Promise[U] {
	out := New[U](p.loop, p.alive)
	p.attach(func(r Result[T]) {
		if r.Err != nil {
			out.Fail(r.Err)
			return
		}
		out.Resolve(f(r.Value))
	})
	return out
}

// MapTo replaces a successful value with a constant.
func MapTo[T, U any](p *Promise[T], u U) *Promise[U] {
	return Map(p, func(T) U { return u })
}

// Finally runs f once p settles, regardless of outcome, then forwards p's
// original result unchanged.
func Finally[T any](p *Promise[T], f func()) *Promise[T] {
	out := New[T](p.loop, p.alive)
	p.attach(func(r Result[T]) {
		f()
		if r.Err != nil {
			out.Fail(r.Err)
		} else {
			out.Resolve(r.Value)
		}
	})
	return out
}

// Listen attaches a terminal continuation that produces no further promise.
func Listen[T any](p *Promise[T], sink func(Result[T])) {
	p.attach(sink)
}

// Go runs fn on a new goroutine and resolves the returned promise with its
// result, for wrapping a blocking call (e.g. socket I/O) as a promise.
func Go[T any](loop *Loop, alive *int32, fn func() (T, error)) *Promise[T] {
	p := New[T](loop, alive)
	go func() {
		v, err := fn()
		if err != nil {
			p.Fail(err)
		} else {
			p.Resolve(v)
		}
	}()
	return p
}

// All resolves once every input promise has resolved, in the original
// order; if any input fails, the composite fails with that cause as soon
// as it is observed (spec §4.2).
func All[T any](loop *Loop, alive *int32, ps []*Promise[T]) *Promise[[]T] {
	out := New[[]T](loop, alive)
	if len(ps) == 0 {
		out.Resolve(nil)
		return out
	}
	results := make([]T, len(ps))
	remaining := len(ps)
	failed := false
	for i := range ps {
		i := i
		Listen(ps[i], func(r Result[T]) {
			// Every continuation here runs on the shared Loop goroutine,
			// so this bookkeeping never races even though the promises
			// themselves were resolved from arbitrary goroutines.
			if failed {
				return
			}
			if r.Err != nil {
				failed = true
				out.Fail(r.Err)
				return
			}
			results[i] = r.Value
			remaining--
			if remaining == 0 {
				out.Resolve(results)
			}
		})
	}
	return out
}
