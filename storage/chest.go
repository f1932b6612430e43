package storage

import (
	"context"
	"fmt"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
	"github.com/cyb0124/ocremote/invplan"
	"github.com/cyb0124/ocremote/item"
)

// ChestStorage adapts a generic multi-slot inventory (a chest, barrel, or
// any other simple container) reachable from a transposer-like peripheral
// as a Storage. Any compatible non-full slot, or the first empty one, is a
// valid sink destination.
type ChestStorage struct {
	client   AgentLink
	inv      string
	side     action.Side
	busSide  action.Side
	priority int
	loop     *future.Loop
	alive    *int32

	slots []item.ItemStack // refreshed each Update
}

// NewChestStorage builds a ChestStorage. busSide is the side of the same
// peripheral (named inv) that the shared bus inventory sits on. loop and
// alive must be the owning Factory's shared event loop and liveness
// witness, so this adapter's promises compose with the rest of the cycle.
func NewChestStorage(client AgentLink, inv string, side, busSide action.Side, loop *future.Loop, alive *int32) *ChestStorage {
	return &ChestStorage{client: client, inv: inv, side: side, busSide: busSide, priority: avail.PriorityChest, loop: loop, alive: alive}
}

func (c *ChestStorage) Update(ctx context.Context, idx *avail.Index) *future.Promise[struct{}] {
	resp := c.client.Enqueue([]action.Action{&action.List{Inv: c.inv, Side: c.side}})[0]
	return future.Then(resp, func(v codec.Value) *future.Promise[struct{}] {
		stacks, err := action.ParseStackList(v)
		if err != nil {
			return future.Failed[struct{}](c.loop, c.alive, err)
		}
		c.slots = stacks
		for slot, st := range stacks {
			if st.Item == nil {
				continue
			}
			slot := slot
			idx.AddProvider(st.Item, avail.NewProvider(st.Size, c.priority, func(n, destSlot int) *future.Promise[item.ItemStack] {
				return c.transferOut(slot, n, destSlot)
			}))
		}
		return future.Resolved[struct{}](c.loop, c.alive, struct{}{})
	})
}

func (c *ChestStorage) transferOut(slot, n, destSlot int) *future.Promise[item.ItemStack] {
	taken := c.slots[slot]
	call := action.NewTransferItem(c.inv, c.side, c.busSide, n, slot, destSlot)
	resp := c.client.Enqueue([]action.Action{call})[0]
	out := item.ItemStack{Item: taken.Item, Size: n}
	return future.Map(resp, func(codec.Value) item.ItemStack { return out })
}

func (c *ChestStorage) SinkPriority(it *item.Item) (int, bool) {
	if c.findSinkSlot(it, 1) < 0 {
		return 0, false
	}
	return c.priority, true
}

// findSinkSlot runs the shared insertion planner against the last-known
// snapshot and reports the single slot that would receive n units, or -1
// if nothing in the snapshot can hold it.
func (c *ChestStorage) findSinkSlot(it *item.Item, n int) int {
	snap := make([]invplan.Slot, len(c.slots))
	for i, st := range c.slots {
		snap[i] = invplan.Slot{Item: st.Item, Size: st.Size}
	}
	inserted, plan := invplan.Insert(snap, it, n)
	if inserted < n || len(plan) == 0 {
		return -1
	}
	return plan[0].Slot
}

func (c *ChestStorage) Sink(stack item.ItemStack, srcBusSlot int) (bool, *future.Promise[struct{}]) {
	destSlot := c.findSinkSlot(stack.Item, stack.Size)
	if destSlot < 0 {
		return false, nil
	}
	call := action.NewTransferItem(c.inv, c.busSide, c.side, stack.Size, srcBusSlot, destSlot)
	resp := c.client.Enqueue([]action.Action{call})[0]
	return true, future.MapTo(resp, struct{}{})
}

var _ fmt.Stringer = (*ChestStorage)(nil)

func (c *ChestStorage) String() string {
	return fmt.Sprintf("chest(%s/%d)", c.inv, c.side)
}
