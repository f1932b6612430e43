package storage

import (
	"context"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
	"github.com/cyb0124/ocremote/item"
)

// MEStorage adapts an ME network bridge as a Storage. Unlike Drawer/Chest,
// it has no slot addressing of its own: extraction and insertion both go
// through xferME with an item filter, and the bus side is where the
// transfer physically lands.
type MEStorage struct {
	client  AgentLink
	inv     string
	me      string
	busSide action.Side
	loop    *future.Loop
	alive   *int32
}

// NewMEStorage builds an MEStorage. It is always the lowest-priority
// provider tier (spec §4.5: "drawers > chests > ME").
func NewMEStorage(client AgentLink, inv, me string, busSide action.Side, loop *future.Loop, alive *int32) *MEStorage {
	return &MEStorage{client: client, inv: inv, me: me, busSide: busSide, loop: loop, alive: alive}
}

func (m *MEStorage) Update(ctx context.Context, idx *avail.Index) *future.Promise[struct{}] {
	resp := m.client.Enqueue([]action.Action{&action.ListME{Inv: m.inv}})[0]
	return future.Then(resp, func(v codec.Value) *future.Promise[struct{}] {
		stacks, err := action.ParseStackList(v)
		if err != nil {
			return future.Failed[struct{}](m.loop, m.alive, err)
		}
		for _, st := range stacks {
			if st.Item == nil {
				continue
			}
			it := st.Item
			idx.AddProvider(it, avail.NewProvider(st.Size, avail.PriorityME, func(n, destSlot int) *future.Promise[item.ItemStack] {
				return m.extract(it, n, destSlot)
			}))
		}
		return future.Resolved[struct{}](m.loop, m.alive, struct{}{})
	})
}

func (m *MEStorage) extract(it *item.Item, n, destSlot int) *future.Promise[item.ItemStack] {
	x := &action.XferME{
		Inv:    m.inv,
		Me:     m.me,
		Filter: action.FilterForItem(it),
		Size:   n,
		Args:   codec.ArrayToTable([]codec.Value{codec.Number(float64(destSlot + 1))}),
	}
	resp := m.client.Enqueue([]action.Action{x})[0]
	return future.Map(resp, func(codec.Value) item.ItemStack { return item.ItemStack{Item: it, Size: n} })
}

// SinkPriority always accepts: an ME network with autocrafting storage
// cells has no practical type restriction the controller can observe.
func (m *MEStorage) SinkPriority(it *item.Item) (int, bool) {
	return avail.PriorityME, true
}

func (m *MEStorage) Sink(stack item.ItemStack, srcBusSlot int) (bool, *future.Promise[struct{}]) {
	x := &action.XferME{
		Inv:    m.inv,
		Me:     m.me,
		Filter: action.FilterForItem(stack.Item),
		Size:   stack.Size,
		Args:   codec.ArrayToTable([]codec.Value{codec.Number(float64(srcBusSlot + 1))}),
	}
	resp := m.client.Enqueue([]action.Action{x})[0]
	return true, future.MapTo(resp, struct{}{})
}
