package process

import (
	"context"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/bus"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
	"github.com/cyb0124/ocremote/invplan"
	"github.com/cyb0124/ocremote/item"
)

// BufferedRecipe's Data caps how many total units, across every slot, this
// recipe's ingredients may occupy at once — the "recipeMaxInProc" the
// original server tracks per recipe.
type BufferedRecipe = Recipe[int, struct{}]

// StockEntry is one standing top-up target: keep ToStock units of
// whatever Filter resolves to sitting in the machine's inventory, pulling
// from the index (optionally dipping into backup reserves) whenever the
// current amount falls short.
type StockEntry struct {
	Filter      item.Filter
	ToStock     int
	AllowBackup bool
}

// Buffered drives a machine with an undifferentiated slot pool: no slot is
// pinned to a particular ingredient, so keeping recipes fed is a bin-
// packing problem against the live snapshot (invplan.Insert) rather than a
// fixed-address write. Grounded on ProcessBuffered::cycle in the original
// server sources.
type Buffered struct {
	Access         Access
	OutFilter      item.Filter // matches finished output not referenced by any ingredient
	StockList      []StockEntry
	Recipes        []BufferedRecipe
	RecipeMaxInProc int // quota shared across every recipe's ingredient insertion this cycle

	loop  *future.Loop
	alive *int32
}

// NewBuffered builds a Buffered process. loop and alive must be the owning
// Factory's shared event loop and liveness witness.
func NewBuffered(a Access, outFilter item.Filter, stock []StockEntry, recipes []BufferedRecipe, recipeMaxInProc int, loop *future.Loop, alive *int32) *Buffered {
	return &Buffered{Access: a, OutFilter: outFilter, StockList: stock, Recipes: recipes, RecipeMaxInProc: recipeMaxInProc, loop: loop, alive: alive}
}

func (p *Buffered) EndOfCycle() {}

func (p *Buffered) Cycle(ctx context.Context, idx *avail.Index, b *bus.Bus) *future.Promise[struct{}] {
	if p.OutFilter == nil && len(p.StockList) == 0 && len(GetDemand(idx, p.Recipes)) == 0 {
		return future.Resolved[struct{}](p.loop, p.alive, struct{}{})
	}
	list := p.Access.Client.Enqueue([]action.Action{&action.List{Inv: p.Access.Inv, Side: p.Access.Side}})[0]
	return future.Then(list, func(v codec.Value) *future.Promise[struct{}] {
		stacks, err := action.ParseStackList(v)
		if err != nil {
			return future.Failed[struct{}](p.loop, p.alive, err)
		}
		return p.runCycle(idx, b, stacks)
	})
}

// ingredientFilters collects every recipe's ingredient filters, used to
// decide whether a slot matching OutFilter is actually spoken-for input
// rather than finished output ready to evict.
func (p *Buffered) ingredientFilters() []item.Filter {
	var out []item.Filter
	for _, r := range p.Recipes {
		for _, in := range r.In {
			out = append(out, in.Filter)
		}
	}
	return out
}

func (p *Buffered) runCycle(idx *avail.Index, b *bus.Bus, stacks []item.ItemStack) *future.Promise[struct{}] {
	inProcMap := make(map[*item.Item]int)
	snapshot := make([]invplan.Slot, len(stacks))
	ingredientFilters := p.ingredientFilters()
	quota := p.RecipeMaxInProc

	var work []*future.Promise[struct{}]
	for slot, st := range stacks {
		snapshot[slot] = invplan.Slot{Item: st.Item, Size: st.Size}
		if st.Item == nil || st.Size == 0 {
			continue
		}
		canon := idx.Intern(st.Item)
		isIngredient := false
		for _, f := range ingredientFilters {
			if f.Match(canon) {
				isIngredient = true
				break
			}
		}
		if isIngredient {
			inProcMap[canon] += st.Size
			continue
		}
		quota -= st.Size
		if p.OutFilter != nil && p.OutFilter.Match(st.Item) {
			work = append(work, processOutput(p.Access, b, p.loop, p.alive, slot, st.Item.MaxSize))
		}
	}

	for _, entry := range p.StockList {
		it := idx.Resolve(entry.Filter)
		if it == nil {
			continue
		}
		have := inProcMap[it]
		toProc := entry.ToStock - have
		if av := idx.Avail(entry.Filter, entry.AllowBackup); toProc > av {
			toProc = av
		}
		if toProc <= 0 {
			continue
		}
		inserted, plan := invplan.Insert(snapshot, it, toProc)
		if inserted <= 0 {
			continue
		}
		snapshot = replaySnapshot(snapshot, plan)
		inProcMap[it] += inserted
		work = append(work, p.executeInsertion(idx, b, entry.Filter, plan, inserted))
	}

	if quota > 0 {
		for _, d := range GetDemand(idx, p.Recipes) {
			if p2 := p.planRecipe(idx, b, &snapshot, inProcMap, &quota, d); p2 != nil {
				work = append(work, p2)
			}
		}
	}

	return future.Map(future.All(p.loop, p.alive, work), func([]struct{}) struct{} { return struct{}{} })
}

func replaySnapshot(snapshot []invplan.Slot, plan []invplan.Insertion) []invplan.Slot {
	out := make([]invplan.Slot, len(snapshot))
	copy(out, snapshot)
	for _, ins := range plan {
		out[ins.Slot].Size += ins.Amount
	}
	return out
}

// planRecipe retries insertion with a decreasing set count against a
// cloned snapshot until every ingredient's full share fits, per
// ProcessBuffered::cycle's documented snapshot-safe retry loop. It mutates
// snapshot/inProcMap/quota in place once a workable set count is found.
func (p *Buffered) planRecipe(idx *avail.Index, b *bus.Bus, snapshot *[]invplan.Slot, inProcMap map[*item.Item]int, quota *int, d Demand[int, struct{}]) *future.Promise[struct{}] {
	recipe := d.Recipe
	listSum := 0
	for _, in := range recipe.In {
		listSum += in.Size
	}
	if listSum == 0 {
		return nil
	}
	sets := d.InAvail
	if s := *quota / listSum; s < sets {
		sets = s
	}
	inProcSum := 0
	for i := range recipe.In {
		if it := d.InItems[i]; it != nil {
			inProcSum += inProcMap[it]
		}
	}
	if s := (recipe.Data - inProcSum) / listSum; s < sets {
		sets = s
	}

	var plans [][]invplan.Insertion
	for sets > 0 {
		plans = plans[:0]
		trial := append([]invplan.Slot(nil), (*snapshot)...)
		ok := true
		for i, in := range recipe.In {
			it := d.InItems[i]
			if it == nil {
				ok = false
				break
			}
			need := sets * in.Size
			inserted, plan := invplan.Insert(trial, it, need)
			if inserted < need {
				ok = false
				break
			}
			trial = replaySnapshot(trial, plan)
			plans = append(plans, plan)
		}
		if ok {
			*snapshot = trial
			break
		}
		sets--
	}
	if sets <= 0 {
		return nil
	}

	var legs []*future.Promise[struct{}]
	for i, in := range recipe.In {
		in := in
		it := d.InItems[i]
		inProcMap[it] += sets * in.Size
		*quota -= sets * in.Size
		legs = append(legs, p.executeInsertion(idx, b, in.Filter, plans[i], sets*in.Size))
	}
	return future.Map(future.All(p.loop, p.alive, legs), func([]struct{}) struct{} { return struct{}{} })
}

// executeInsertion reserves total units of whatever f resolves to, moves
// them through one shared bus slot, and writes them into the machine
// across exactly the destination slots plan names.
func (p *Buffered) executeInsertion(idx *avail.Index, b *bus.Bus, f item.Filter, plan []invplan.Insertion, total int) *future.Promise[struct{}] {
	return withBusSlots(b, p.loop, p.alive, 1, func(busSlots []int) *future.Promise[struct{}] {
		busSlot := busSlots[0]
		extract := reserveAndExtract(idx, p.loop, p.alive, f, total, busSlot)
		return future.Then(extract, func(struct{}) *future.Promise[struct{}] {
			calls := make([]action.Action, len(plan))
			for i, ins := range plan {
				calls[i] = action.NewTransferItem(p.Access.Inv, p.Access.BusSide, p.Access.Side, ins.Amount, busSlot, ins.Slot)
			}
			resps := p.Access.Client.Enqueue(calls)
			return future.Map(future.All(p.loop, p.alive, resps), func([]codec.Value) struct{} { return struct{}{} })
		})
	})
}
