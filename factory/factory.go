// Package factory implements the cycle engine (spec §4.7): the
// Idle→Updating→Running→Draining→WaitTimer loop that owns the bus,
// the per-cycle availability index, every storage adapter, and every
// process, and drives them all through one shared event loop.
package factory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/bus"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
	"github.com/cyb0124/ocremote/item"
	"github.com/cyb0124/ocremote/process"
	"github.com/cyb0124/ocremote/storage"
)

// BackupEntry is one reservation applied to the fresh index at the start
// of every cycle, before any process runs (spec §3 "Backup").
type BackupEntry struct {
	Filter item.Filter
	Size   int
}

// Factory owns the whole plant: every storage adapter, every process, the
// bus, and the per-cycle availability index. Per the §9 Open-Question
// decision recorded in DESIGN.md, assembly happens through AddStorage,
// not the source tree's inconsistent addChest/addStorage split.
type Factory struct {
	storages  []storage.Storage
	processes []process.Process
	backups   []BackupEntry

	busLink storage.AgentLink
	busInv  string
	busSide action.Side

	bus   *bus.Bus
	index *avail.Index

	loop  *future.Loop
	alive int32

	minCycleTime    time.Duration
	cycleStartTime  time.Time
	currentCycleNum int64

	Logf func(string, ...any)
}

// New creates a Factory with a busSize-slot Bus and its own event loop.
// minCycleTime is the floor on inter-cycle spacing (spec §4.7).
func New(busSize int, minCycleTime time.Duration) *Factory {
	f := &Factory{minCycleTime: minCycleTime, alive: 1}
	f.loop = future.NewLoop()
	f.bus = bus.New(busSize, f.loop, &f.alive)
	f.index = avail.NewIndex()
	return f
}

// Loop returns the Factory's shared event loop, for wiring transport and
// storage adapters that need it at construction time.
func (f *Factory) Loop() *future.Loop { return f.loop }

// Alive returns the Factory's liveness witness, checked by every promise
// continuation created against Loop (spec §5).
func (f *Factory) Alive() *int32 { return &f.alive }

// Bus returns the Factory's slot allocator.
func (f *Factory) Bus() *bus.Bus { return f.bus }

// AddStorage registers a storage adapter, updated and offered as a sink
// every cycle. Returns f for chaining.
func (f *Factory) AddStorage(s storage.Storage) *Factory {
	f.storages = append(f.storages, s)
	return f
}

// AddProcess registers a process, run concurrently with every other
// process each cycle. Returns f for chaining.
func (f *Factory) AddProcess(p process.Process) *Factory {
	f.processes = append(f.processes, p)
	return f
}

// AddBackup registers a reservation applied to the index at the start of
// every cycle. Returns f for chaining.
func (f *Factory) AddBackup(filter item.Filter, size int) *Factory {
	f.backups = append(f.backups, BackupEntry{Filter: filter, Size: size})
	return f
}

// SetBusInventory tells the cleanup sweep how to list the physical bus
// block's own contents. Without it, a cycle with pending cleanup slots
// logs a warning and retries every subsequent cycle rather than guessing
// at an inventory address.
func (f *Factory) SetBusInventory(link storage.AgentLink, inv string, side action.Side) *Factory {
	f.busLink = link
	f.busInv = inv
	f.busSide = side
	return f
}

// Run drives cycles until ctx is cancelled. Shutdown must only be called
// after Run has returned; calling it concurrently races the loop's
// internal Post calls against Close.
func (f *Factory) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := f.waitMinCycleTime(ctx); err != nil {
			return nil
		}
		if err := f.runOneCycle(ctx); err != nil {
			return err
		}
	}
}

// Shutdown marks the Factory dead and stops its event loop.
func (f *Factory) Shutdown() {
	atomic.StoreInt32(&f.alive, 0)
	f.loop.Close()
}

// waitMinCycleTime arms the inter-cycle timer against the previous
// cycle's start time (spec §4.7: "Minimum inter-cycle spacing enforced
// via a timer armed on cycleStartTime").
func (f *Factory) waitMinCycleTime(ctx context.Context) error {
	if f.cycleStartTime.IsZero() {
		return nil
	}
	remaining := f.minCycleTime - time.Since(f.cycleStartTime)
	if remaining <= 0 {
		return nil
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runOneCycle posts the cycle body onto the event loop and blocks this
// (non-loop) driver goroutine until it settles, without ever holding the
// loop goroutine itself waiting — every suspension point inside a cycle
// is expressed as a promise continuation, so other work (like an agent's
// response dispatch) keeps draining the loop's task queue in between.
func (f *Factory) runOneCycle(ctx context.Context) error {
	done := make(chan error, 1)
	f.loop.Post(func() {
		p := f.runCycle(ctx)
		future.Listen(p, func(r future.Result[struct{}]) { done <- r.Err })
	})
	return <-done
}

// runCycle must only be called from the loop goroutine. It builds the
// whole cycle — update, backups, process run, drain — as one promise
// chain (spec §4.7: "cycle's promise is all(storage.update()) then
// all(process.cycle())"), logging but never failing the chain itself, so
// that a single misbehaving storage or process never stalls WaitTimer.
func (f *Factory) runCycle(ctx context.Context) *future.Promise[struct{}] {
	prevStart := f.cycleStartTime
	f.cycleStartTime = time.Now()
	if f.Logf != nil && !prevStart.IsZero() {
		f.Logf("factory: cycle %d starting (previous cycle took %s)", f.currentCycleNum, f.cycleStartTime.Sub(prevStart))
	}

	idx := avail.NewIndex()
	f.index = idx

	updatePs := make([]*future.Promise[struct{}], len(f.storages))
	for i, s := range f.storages {
		updatePs[i] = s.Update(ctx, idx)
	}
	updatesSettled := settleAll(f.loop, &f.alive, updatePs)

	afterUpdates := future.Map(updatesSettled, func(results []future.Result[struct{}]) struct{} {
		for _, r := range results {
			if r.Err != nil && f.Logf != nil {
				f.Logf("[BEEP] factory: cycle %d storage update failed: %v", f.currentCycleNum, r.Err)
			}
		}
		for _, b := range f.backups {
			f.index.Backup(b.Filter, b.Size)
		}
		return struct{}{}
	})

	cyclesSettled := future.Then(afterUpdates, func(struct{}) *future.Promise[[]future.Result[struct{}]] {
		cyclePs := make([]*future.Promise[struct{}], len(f.processes))
		for i, p := range f.processes {
			cyclePs[i] = p.Cycle(ctx, f.index, f.bus)
		}
		return settleAll(f.loop, &f.alive, cyclePs)
	})

	drained := future.Then(cyclesSettled, func(results []future.Result[struct{}]) *future.Promise[struct{}] {
		for _, r := range results {
			if r.Err != nil && f.Logf != nil {
				f.Logf("[BEEP] factory: cycle %d process failure: %v", f.currentCycleNum, r.Err)
			}
		}
		for _, p := range f.processes {
			p.EndOfCycle()
		}
		return f.sweepBus(ctx)
	})

	return future.Map(drained, func(struct{}) struct{} {
		f.currentCycleNum++
		return struct{}{}
	})
}

// settleAll is future.All's wait-for-every-result sibling: unlike All, a
// failure doesn't short-circuit the rest — every input is awaited and its
// Result reported, since a cycle must let every storage/process settle
// before deciding what (if anything) to log (spec §7 "Cycle failure").
func settleAll[T any](loop *future.Loop, alive *int32, ps []*future.Promise[T]) *future.Promise[[]future.Result[T]] {
	out := future.New[[]future.Result[T]](loop, alive)
	if len(ps) == 0 {
		out.Resolve(nil)
		return out
	}
	results := make([]future.Result[T], len(ps))
	remaining := len(ps)
	for i := range ps {
		i := i
		future.Listen(ps[i], func(r future.Result[T]) {
			results[i] = r
			remaining--
			if remaining == 0 {
				out.Resolve(results)
			}
		})
	}
	return out
}

// sweepBus drains the bus's pending-cleanup slots (spec §4.6 Cleanup):
// list the physical bus inventory, and for each pending slot either
// confirm it already empty or push its residue to the best-priority
// sink. A slot nothing can sink stays occupied and is retried next cycle
// (spec §9's prescribed non-sinkable-residue handling).
func (f *Factory) sweepBus(ctx context.Context) *future.Promise[struct{}] {
	pending := f.bus.TakeCleanup()
	out := future.New[struct{}](f.loop, &f.alive)
	if len(pending) == 0 {
		out.Resolve(struct{}{})
		return out
	}
	if f.busLink == nil {
		if f.Logf != nil {
			f.Logf("factory: %d bus slot(s) pending cleanup but no bus inventory configured; retrying next cycle", len(pending))
		}
		f.bus.RetryCleanup(pending)
		out.Resolve(struct{}{})
		return out
	}

	listP := f.busLink.Enqueue([]action.Action{&action.List{Inv: f.busInv, Side: f.busSide}})[0]
	future.Listen(listP, func(r future.Result[codec.Value]) {
		if r.Err != nil {
			if f.Logf != nil {
				f.Logf("[BEEP] factory: bus cleanup list failed: %v", r.Err)
			}
			f.bus.RetryCleanup(pending)
			out.Resolve(struct{}{})
			return
		}
		stacks, err := action.ParseStackList(r.Value)
		if err != nil {
			if f.Logf != nil {
				f.Logf("[BEEP] factory: bus cleanup list decode failed: %v", err)
			}
			f.bus.RetryCleanup(pending)
			out.Resolve(struct{}{})
			return
		}
		f.drainCleanupSlots(pending, stacks, out)
	})
	return out
}

type cleanupSink struct {
	slot int
	p    *future.Promise[struct{}]
}

// drainCleanupSlots resolves out once every slot in pending has either
// been confirmed empty, handed off to a sink, or re-queued for next
// cycle's retry.
func (f *Factory) drainCleanupSlots(pending []int, stacks []item.ItemStack, out *future.Promise[struct{}]) {
	var released []int
	var sinks []cleanupSink
	for _, slot := range pending {
		if slot < 0 || slot >= len(stacks) || stacks[slot].Item == nil {
			released = append(released, slot)
			continue
		}
		st := stacks[slot]
		accepted, sp := f.sinkStack(st, slot)
		if !accepted {
			if f.Logf != nil {
				f.Logf("factory: bus slot %d holds non-sinkable %s x%d, leaving occupied", slot, st.Item.Name, st.Size)
			}
			f.bus.RetryCleanup([]int{slot})
			continue
		}
		sinks = append(sinks, cleanupSink{slot: slot, p: sp})
	}
	if len(sinks) == 0 {
		if len(released) > 0 {
			f.bus.ReleaseCleaned(released)
		}
		out.Resolve(struct{}{})
		return
	}
	remaining := len(sinks)
	for _, s := range sinks {
		s := s
		future.Listen(s.p, func(r future.Result[struct{}]) {
			if r.Err != nil {
				if f.Logf != nil {
					f.Logf("[BEEP] factory: bus cleanup sink of slot %d failed: %v", s.slot, r.Err)
				}
				f.bus.RetryCleanup([]int{s.slot})
			} else {
				released = append(released, s.slot)
			}
			remaining--
			if remaining == 0 {
				if len(released) > 0 {
					f.bus.ReleaseCleaned(released)
				}
				out.Resolve(struct{}{})
			}
		})
	}
}

// sinkStack picks the highest-SinkPriority storage willing to accept it
// and hands the transfer to it.
func (f *Factory) sinkStack(st item.ItemStack, srcBusSlot int) (bool, *future.Promise[struct{}]) {
	best := -1
	var bestStorage storage.Storage
	for _, s := range f.storages {
		if p, ok := s.SinkPriority(st.Item); ok && p > best {
			best = p
			bestStorage = s
		}
	}
	if bestStorage == nil {
		return false, nil
	}
	return bestStorage.Sink(st, srcBusSlot)
}
