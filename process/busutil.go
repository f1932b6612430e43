package process

import (
	"fmt"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/bus"
	"github.com/cyb0124/ocremote/future"
	"github.com/cyb0124/ocremote/item"
)

// withBusSlots allocates n bus slots, runs work against them, and frees
// them once work's promise settles: cleanup=false on success, cleanup=true
// on failure, so a transfer that partly landed still gets swept next cycle
// rather than handed back to the allocator dirty.
func withBusSlots(b *bus.Bus, loop *future.Loop, alive *int32, n int, work func(slots []int) *future.Promise[struct{}]) *future.Promise[struct{}] {
	return future.Then(b.Allocate(n, false), func(slots []int) *future.Promise[struct{}] {
		out := future.New[struct{}](loop, alive)
		future.Listen(work(slots), func(r future.Result[struct{}]) {
			b.Free(slots, r.Err != nil)
			if r.Err != nil {
				out.Fail(r.Err)
			} else {
				out.Resolve(struct{}{})
			}
		})
		return out
	})
}

// reserveAndExtract reserves n units of whatever idx resolves f to and
// issues every resulting provider extraction into destSlot. It fails if
// the index can't actually source n units; this should only be called
// after a caller has already confirmed availability via idx.Avail/Plan's
// return total, since by the time Issue runs the reservation is final.
func reserveAndExtract(idx *avail.Index, loop *future.Loop, alive *int32, f item.Filter, n, destSlot int) *future.Promise[struct{}] {
	exts := idx.Plan(f, n)
	if avail.PlanTotal(exts) < n {
		return future.Failed[struct{}](loop, alive, fmt.Errorf("process: could only reserve %d/%d units toward bus slot %d", avail.PlanTotal(exts), n, destSlot))
	}
	ps := make([]*future.Promise[item.ItemStack], len(exts))
	for i, e := range exts {
		ps[i] = e.Provider.Issue(e.Amount, destSlot)
	}
	return future.Map(future.All(loop, alive, ps), func([]item.ItemStack) struct{} { return struct{}{} })
}

// processOutput evicts size units of slot in a's inventory to one bus
// slot, grounded on the original server's ProcessAccessInv::processOutput:
// shared by the Slotted, Buffered, ScatteringWorkingSet and Inputless
// strategies for pushing finished output out of the machine they drive. The
// bus slot is always freed with cleanup=true, win or lose, since the
// transfer really did (or may have) deposited residue there that only the
// cycle's cleanup sweep can safely route to a sink.
func processOutput(a Access, b *bus.Bus, loop *future.Loop, alive *int32, slot, size int) *future.Promise[struct{}] {
	return future.Then(b.Allocate(1, false), func(slots []int) *future.Promise[struct{}] {
		busSlot := slots[0]
		call := action.NewTransferItem(a.Inv, a.Side, a.BusSide, size, slot, busSlot)
		resp := a.Client.Enqueue([]action.Action{call})[0]
		out := future.New[struct{}](loop, alive)
		future.Listen(future.MapTo(resp, struct{}{}), func(r future.Result[struct{}]) {
			b.Free([]int{busSlot}, true)
			if r.Err != nil {
				out.Fail(r.Err)
			} else {
				out.Resolve(struct{}{})
			}
		})
		return out
	})
}
