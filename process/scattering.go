package process

import (
	"context"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/bus"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
	"github.com/cyb0124/ocremote/item"
)

// ScatteringRecipe has exactly one ingredient (a scattering working set,
// e.g. a row of furnaces, only ever smelts one thing at a time) and no
// per-recipe data; Data is struct{} purely to satisfy the generic Recipe
// shape.
type ScatteringRecipe = Recipe[struct{}, struct{}]

// ScatteringWorkingSet spreads one ingredient evenly across a set of
// identical pinned slots (a row of furnace inputs, say), topping up
// whichever slot is currently furthest behind rather than filling slots in
// address order. Grounded on ProcessScatteringWorkingSet::cycle in the
// original server sources. AllowBackup on the sole recipe's ingredient is
// this module's supplemental "scattering set can draw on backup stock"
// variant.
type ScatteringWorkingSet struct {
	Access           Access
	InSlots          []int
	OutFilter        item.Filter
	Recipes          []ScatteringRecipe
	EachSlotMaxInProc int

	loop  *future.Loop
	alive *int32
}

// NewScatteringWorkingSet builds a ScatteringWorkingSet process. loop and
// alive must be the owning Factory's shared event loop and liveness
// witness.
func NewScatteringWorkingSet(a Access, inSlots []int, outFilter item.Filter, recipes []ScatteringRecipe, eachSlotMaxInProc int, loop *future.Loop, alive *int32) *ScatteringWorkingSet {
	return &ScatteringWorkingSet{Access: a, InSlots: inSlots, OutFilter: outFilter, Recipes: recipes, EachSlotMaxInProc: eachSlotMaxInProc, loop: loop, alive: alive}
}

func (p *ScatteringWorkingSet) EndOfCycle() {}

func (p *ScatteringWorkingSet) Cycle(ctx context.Context, idx *avail.Index, b *bus.Bus) *future.Promise[struct{}] {
	list := p.Access.Client.Enqueue([]action.Action{&action.List{Inv: p.Access.Inv, Side: p.Access.Side}})[0]
	return future.Then(list, func(v codec.Value) *future.Promise[struct{}] {
		stacks, err := action.ParseStackList(v)
		if err != nil {
			return future.Failed[struct{}](p.loop, p.alive, err)
		}
		return p.runCycle(idx, b, stacks)
	})
}

func (p *ScatteringWorkingSet) runCycle(idx *avail.Index, b *bus.Bus, stacks []item.ItemStack) *future.Promise[struct{}] {
	pinned := make(map[int]struct{}, len(p.InSlots))
	for _, s := range p.InSlots {
		pinned[s] = struct{}{}
	}

	var work []*future.Promise[struct{}]
	if p.OutFilter != nil {
		for slot, st := range stacks {
			if _, ok := pinned[slot]; ok {
				continue
			}
			if st.Item == nil || st.Size == 0 || !p.OutFilter.Match(st.Item) {
				continue
			}
			work = append(work, processOutput(p.Access, b, p.loop, p.alive, slot, st.Size))
		}
	}

	demands := GetDemand(idx, p.Recipes)
	cur := make(map[int]int, len(p.InSlots))
	cachedItem := make(map[int]*item.Item, len(p.InSlots))
	for _, slot := range p.InSlots {
		if slot >= 0 && slot < len(stacks) && stacks[slot].Item != nil {
			cur[slot] = stacks[slot].Size
			cachedItem[slot] = stacks[slot].Item
		}
	}

	full := false
	for _, d := range demands {
		if full {
			break
		}
		if len(d.Recipe.In) == 0 {
			continue
		}
		in := d.Recipe.In[0]
		expected := d.InItems[0]
		inAvail := d.InAvail
		transferMap := make(map[int]int)
		transferTotal := 0

		for inAvail > 0 {
			maxSize := -1
			minSize := -1
			minSlot := -1
			for _, slot := range p.InSlots {
				size, occupied := cur[slot]
				if !occupied {
					size = 0
				}
				if size > maxSize {
					maxSize = size
				}
				if occupied && cachedItem[slot] != nil && expected != nil && !cachedItem[slot].Equal(expected) {
					continue
				}
				if minSlot == -1 || size < minSize {
					minSize = size
					minSlot = slot
				}
			}
			if maxSize >= p.EachSlotMaxInProc {
				full = true
				break
			}
			if minSlot == -1 || minSize > maxSize {
				break
			}
			transferMap[minSlot]++
			transferTotal++
			cur[minSlot] = cur[minSlot] + 1
			cachedItem[minSlot] = expected
			inAvail--
		}

		if transferTotal == 0 {
			continue
		}
		work = append(work, p.executeTransfer(idx, b, in.Filter, transferMap, transferTotal))
	}

	return future.Map(future.All(p.loop, p.alive, work), func([]struct{}) struct{} { return struct{}{} })
}

func (p *ScatteringWorkingSet) executeTransfer(idx *avail.Index, b *bus.Bus, f item.Filter, transferMap map[int]int, total int) *future.Promise[struct{}] {
	return withBusSlots(b, p.loop, p.alive, 1, func(busSlots []int) *future.Promise[struct{}] {
		busSlot := busSlots[0]
		extract := reserveAndExtract(idx, p.loop, p.alive, f, total, busSlot)
		return future.Then(extract, func(struct{}) *future.Promise[struct{}] {
			calls := make([]action.Action, 0, len(transferMap))
			for slot, n := range transferMap {
				calls = append(calls, action.NewTransferItem(p.Access.Inv, p.Access.BusSide, p.Access.Side, n, busSlot, slot))
			}
			resps := p.Access.Client.Enqueue(calls)
			return future.Map(future.All(p.loop, p.alive, resps), func([]codec.Value) struct{} { return struct{}{} })
		})
	})
}
