// Package bus implements the shared transit-inventory allocator (spec
// §4.6): a fixed pool of slot indices, a FIFO waiter queue for requests
// that can't be satisfied immediately, and the post-cycle cleanup sweep
// for slots freed with residual content.
package bus

import (
	"errors"

	"github.com/cyb0124/ocremote/future"
	"golang.org/x/exp/slices"
)

// ErrBusTooSmall is returned synchronously (never via a pending promise)
// when a caller asks for more slots than the bus has in total, per spec
// §7's "Bus-never-satisfiable: error on enqueue."
var ErrBusTooSmall = errors.New("bus: requested more slots than the bus has")

type waiter struct {
	n            int
	allowPartial bool
	p            *future.Promise[[]int]
}

// Bus is the cooperative slot allocator for the shared transit inventory.
// It is owned by a single *factory.Factory and must only be touched from
// that factory's event loop goroutine.
type Bus struct {
	size     int
	occupied map[int]struct{}
	free     []int
	waiters  []*waiter

	// pendingCleanup holds slots freed with cleanup=true: occupied from the
	// allocator's point of view (not eligible for Allocate) until the
	// factory's end-of-cycle sweep confirms them empty or drains their
	// residue into storage (spec §4.6 Cleanup, §9's prescribed handling of
	// non-sinkable residue).
	pendingCleanup []int

	loop     *future.Loop
	alive    *int32
	updating bool
	restart  bool
}

// New builds a Bus with slots [0, size).
func New(size int, loop *future.Loop, alive *int32) *Bus {
	free := make([]int, size)
	for i := range free {
		free[i] = i
	}
	return &Bus{
		size:     size,
		occupied: make(map[int]struct{}, size),
		free:     free,
		loop:     loop,
		alive:    alive,
	}
}

// Size returns the bus's total slot count.
func (b *Bus) Size() int { return b.size }

// NumFree returns the count of currently-unallocated, non-pending slots.
func (b *Bus) NumFree() int { return len(b.free) }

func (b *Bus) take(n int) []int {
	out := make([]int, n)
	for i := 0; i < n; i++ {
		s := b.free[len(b.free)-1]
		b.free = b.free[:len(b.free)-1]
		b.occupied[s] = struct{}{}
		out[i] = s
	}
	return out
}

// Allocate requests up to n slots. If allowPartial, any immediately
// available subset (including zero slots, which resolves instantly) is
// returned without waiting; otherwise the full n must become available,
// parking a waiter if it isn't free right now. A request for more slots
// than the bus has in total fails synchronously with ErrBusTooSmall.
func (b *Bus) Allocate(n int, allowPartial bool) *future.Promise[[]int] {
	if n > b.size {
		return future.Failed[[]int](b.loop, b.alive, ErrBusTooSmall)
	}
	if allowPartial {
		if len(b.free) == 0 {
			return future.Resolved[[]int](b.loop, b.alive, nil)
		}
		got := n
		if got > len(b.free) {
			got = len(b.free)
		}
		return future.Resolved(b.loop, b.alive, b.take(got))
	}
	if len(b.free) >= n {
		return future.Resolved(b.loop, b.alive, b.take(n))
	}
	p := future.New[[]int](b.loop, b.alive)
	b.waiters = append(b.waiters, &waiter{n: n, allowPartial: allowPartial, p: p})
	return p
}

// Free returns slots to the pool. A slot freed with cleanup=true is not
// immediately reusable: it stays occupied until the factory's sweep
// confirms (or makes) it empty, via TakeCleanup/ReleaseCleaned/RetryCleanup.
func (b *Bus) Free(slots []int, cleanup bool) {
	for _, s := range slots {
		if cleanup {
			b.pendingCleanup = append(b.pendingCleanup, s)
			continue
		}
		delete(b.occupied, s)
		b.free = append(b.free, s)
	}
	if !cleanup {
		b.scheduleBusUpdate()
	}
}

// TakeCleanup drains and returns every slot pending a cleanup sweep,
// called once per cycle by the factory's draining phase.
func (b *Bus) TakeCleanup() []int {
	out := b.pendingCleanup
	b.pendingCleanup = nil
	return out
}

// ReleaseCleaned returns slots the cleanup sweep confirmed empty (or
// successfully drained) to the free pool.
func (b *Bus) ReleaseCleaned(slots []int) {
	for _, s := range slots {
		delete(b.occupied, s)
		b.free = append(b.free, s)
	}
	b.scheduleBusUpdate()
}

// RetryCleanup re-queues slots the sweep could not drain (no sink
// accepted the residue) for another attempt next cycle, leaving them
// occupied in the meantime.
func (b *Bus) RetryCleanup(slots []int) {
	b.pendingCleanup = append(b.pendingCleanup, slots...)
}

// scheduleBusUpdate services the waiter queue FIFO, fulfilling as many as
// current free slots allow. A Free() observed while a pass is already
// running marks a restart rather than re-entering service recursively.
func (b *Bus) scheduleBusUpdate() {
	if b.updating {
		b.restart = true
		return
	}
	b.updating = true
	for {
		b.restart = false
		b.serviceWaiters()
		if !b.restart {
			break
		}
	}
	b.updating = false
}

// serviceWaiters walks the FIFO queue once, removing each waiter it
// manages to fulfill in place with slices.Delete so the remaining waiters
// keep their relative order.
func (b *Bus) serviceWaiters() {
	for i := 0; i < len(b.waiters); {
		w := b.waiters[i]
		switch {
		case len(b.free) == 0:
			i++
		case w.allowPartial:
			got := w.n
			if got > len(b.free) {
				got = len(b.free)
			}
			w.p.Resolve(b.take(got))
			b.waiters = slices.Delete(b.waiters, i, i+1)
		case len(b.free) >= w.n:
			w.p.Resolve(b.take(w.n))
			b.waiters = slices.Delete(b.waiters, i, i+1)
		default:
			i++
		}
	}
}
