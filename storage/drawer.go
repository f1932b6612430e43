package storage

import (
	"context"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
	"github.com/cyb0124/ocremote/item"
)

// DrawerStorage adapts a storage-drawer style block: each slot is
// pre-assigned to one item type (even while empty, drawers keep their
// configured type) and holds effectively unbounded quantity. Unlike
// ChestStorage, a drawer never accepts an item type it isn't already
// configured for — there is no "first empty slot" fallback.
type DrawerStorage struct {
	client   AgentLink
	inv      string
	side     action.Side
	busSide  action.Side
	priority int
	loop     *future.Loop
	alive    *int32

	slots []item.ItemStack
}

// NewDrawerStorage builds a DrawerStorage, the highest-priority provider
// tier (spec §4.5: "drawers > chests > ME").
func NewDrawerStorage(client AgentLink, inv string, side, busSide action.Side, loop *future.Loop, alive *int32) *DrawerStorage {
	return &DrawerStorage{client: client, inv: inv, side: side, busSide: busSide, priority: avail.PriorityDrawer, loop: loop, alive: alive}
}

func (d *DrawerStorage) Update(ctx context.Context, idx *avail.Index) *future.Promise[struct{}] {
	resp := d.client.Enqueue([]action.Action{&action.List{Inv: d.inv, Side: d.side}})[0]
	return future.Then(resp, func(v codec.Value) *future.Promise[struct{}] {
		stacks, err := action.ParseStackList(v)
		if err != nil {
			return future.Failed[struct{}](d.loop, d.alive, err)
		}
		d.slots = stacks
		for slot, st := range stacks {
			if st.Item == nil {
				continue
			}
			slot := slot
			idx.AddProvider(st.Item, avail.NewProvider(st.Size, d.priority, func(n, destSlot int) *future.Promise[item.ItemStack] {
				return d.transferOut(slot, n, destSlot)
			}))
		}
		return future.Resolved[struct{}](d.loop, d.alive, struct{}{})
	})
}

func (d *DrawerStorage) transferOut(slot, n, destSlot int) *future.Promise[item.ItemStack] {
	taken := d.slots[slot]
	call := action.NewTransferItem(d.inv, d.side, d.busSide, n, slot, destSlot)
	resp := d.client.Enqueue([]action.Action{call})[0]
	out := item.ItemStack{Item: taken.Item, Size: n}
	return future.Map(resp, func(codec.Value) item.ItemStack { return out })
}

// matchingSlot returns a slot already configured for it, or -1.
func (d *DrawerStorage) matchingSlot(it *item.Item) int {
	for i, st := range d.slots {
		if st.Item != nil && st.Item.Equal(it) {
			return i
		}
	}
	return -1
}

func (d *DrawerStorage) SinkPriority(it *item.Item) (int, bool) {
	if d.matchingSlot(it) < 0 {
		return 0, false
	}
	return d.priority, true
}

func (d *DrawerStorage) Sink(stack item.ItemStack, srcBusSlot int) (bool, *future.Promise[struct{}]) {
	destSlot := d.matchingSlot(stack.Item)
	if destSlot < 0 {
		return false, nil
	}
	call := action.NewTransferItem(d.inv, d.busSide, d.side, stack.Size, srcBusSlot, destSlot)
	resp := d.client.Enqueue([]action.Action{call})[0]
	return true, future.MapTo(resp, struct{}{})
}
