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

// SlottedRecipe is a recipe whose ingredients are pinned to specific
// physical slots (one ingredient entry may span several slots holding the
// same item, e.g. four iron slots feeding one gear recipe). Data is the
// per-slot cap on units-in-process; an ingredient's own item MaxSize
// further clamps that, per ProcessSlotted::cycle in the original server
// sources.
type SlottedRecipe = Recipe[int, []int]

// Slotted drives a machine whose inventory layout is fixed: every
// ingredient lives in a known slot (or set of slots), and anything else is
// either unused or finished output.
type Slotted struct {
	Access    Access
	InSlots   map[int]struct{} // every slot pinned to some ingredient, across all recipes
	OutFilter item.Filter      // matches finished output parked in a non-pinned slot
	Recipes   []SlottedRecipe

	loop  *future.Loop
	alive *int32
}

// NewSlotted builds a Slotted process, deriving the pinned-slot set from
// every recipe's ingredient slot lists. loop and alive must be the owning
// Factory's shared event loop and liveness witness.
func NewSlotted(a Access, outFilter item.Filter, recipes []SlottedRecipe, loop *future.Loop, alive *int32) *Slotted {
	pinned := make(map[int]struct{})
	for _, r := range recipes {
		for _, in := range r.In {
			for _, slot := range in.Data {
				pinned[slot] = struct{}{}
			}
		}
	}
	return &Slotted{Access: a, InSlots: pinned, OutFilter: outFilter, Recipes: recipes, loop: loop, alive: alive}
}

func (s *Slotted) EndOfCycle() {}

func (s *Slotted) Cycle(ctx context.Context, idx *avail.Index, b *bus.Bus) *future.Promise[struct{}] {
	list := s.Access.Client.Enqueue([]action.Action{&action.List{Inv: s.Access.Inv, Side: s.Access.Side}})[0]
	return future.Then(list, func(v codec.Value) *future.Promise[struct{}] {
		stacks, err := action.ParseStackList(v)
		if err != nil {
			return future.Failed[struct{}](s.loop, s.alive, err)
		}
		return s.runCycle(idx, b, stacks)
	})
}

func (s *Slotted) runCycle(idx *avail.Index, b *bus.Bus, stacks []item.ItemStack) *future.Promise[struct{}] {
	var work []*future.Promise[struct{}]

	if s.OutFilter != nil {
		for slot, st := range stacks {
			if _, pinned := s.InSlots[slot]; pinned {
				continue
			}
			if st.Item == nil || st.Size == 0 || !s.OutFilter.Match(st.Item) {
				continue
			}
			work = append(work, processOutput(s.Access, b, s.loop, s.alive, slot, st.Item.MaxSize))
		}
	}

	// Only one recipe advances per cycle, per ProcessSlotted::cycle's
	// break after the first recipe it can schedule.
	demands := GetDemand(idx, s.Recipes)
	for d := range demands {
		demand := demands[d]
		if p := s.planDemand(idx, b, stacks, demand); p != nil {
			work = append(work, p)
			break
		}
	}

	return future.Map(future.All(s.loop, s.alive, work), func([]struct{}) struct{} { return struct{}{} })
}

// planDemand validates every pinned slot against demand's resolved
// ingredients, computes the largest number of sets that fit given each
// slot's current occupancy and the recipe's per-slot cap, and, if any sets
// fit, returns the promise executing the transfer. It returns nil if the
// recipe can't currently be advanced (a pinned slot holds the wrong item,
// some other pinned slot holds an item this recipe doesn't use, or every
// slot is already at capacity).
func (s *Slotted) planDemand(idx *avail.Index, b *bus.Bus, stacks []item.ItemStack, demand Demand[int, []int]) *future.Promise[struct{}] {
	recipe := demand.Recipe

	usedSlots := make(map[int]*item.Item)
	for i, in := range recipe.In {
		for _, slot := range in.Data {
			usedSlots[slot] = demand.InItems[i]
		}
	}
	for slot := range s.InSlots {
		if _, used := usedSlots[slot]; used {
			continue
		}
		if slot < 0 || slot >= len(stacks) {
			continue
		}
		if stacks[slot].Item != nil {
			return nil
		}
	}

	sets := demand.InAvail
	for i, in := range recipe.In {
		if len(in.Data) == 0 || sets == 0 {
			continue
		}
		expected := demand.InItems[i]
		eachSize := in.Size / len(in.Data)
		for _, slot := range in.Data {
			var st item.ItemStack
			if slot >= 0 && slot < len(stacks) {
				st = stacks[slot]
			}
			if st.Item != nil {
				if expected == nil || !st.Item.Equal(expected) {
					return nil
				}
			}
			maxInProc := recipe.Data
			if expected != nil && expected.MaxSize < maxInProc {
				maxInProc = expected.MaxSize
			}
			room := maxInProc - st.Size
			if room < 0 {
				room = 0
			}
			slotSets := room / eachSize
			if slotSets < sets {
				sets = slotSets
			}
		}
	}
	if sets <= 0 {
		return nil
	}

	return withBusSlots(b, s.loop, s.alive, len(recipe.In), func(busSlots []int) *future.Promise[struct{}] {
		var legs []*future.Promise[struct{}]
		for i, in := range recipe.In {
			in := in
			if len(in.Data) == 0 {
				continue
			}
			busSlot := busSlots[i]
			total := sets * in.Size
			eachSize := in.Size / len(in.Data)
			extract := reserveAndExtract(idx, s.loop, s.alive, in.Filter, total, busSlot)
			legs = append(legs, future.Then(extract, func(struct{}) *future.Promise[struct{}] {
				calls := make([]action.Action, len(in.Data))
				for j, slot := range in.Data {
					calls[j] = action.NewTransferItem(s.Access.Inv, s.Access.BusSide, s.Access.Side, sets*eachSize, busSlot, slot)
				}
				resps := s.Access.Client.Enqueue(calls)
				return future.Map(future.All(s.loop, s.alive, resps), func([]codec.Value) struct{} { return struct{}{} })
			}))
		}
		return future.Map(future.All(s.loop, s.alive, legs), func([]struct{}) struct{} { return struct{}{} })
	})
}
