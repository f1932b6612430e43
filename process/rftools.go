package process

import (
	"context"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/bus"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
)

// RFToolsWorkbenchRecipe mirrors CraftingRobotRecipe's shape (set limit
// plus non-consumables); RF Tools' Control Workbench exposes the same
// crafting grid abstraction over two-sided transferItem calls instead of a
// turtle's select/suck/craft sequence.
type RFToolsWorkbenchRecipe = Recipe[CraftingRobotData, []int]

// RFToolsControlWorkbench drives an RFTools Control Workbench: unlike
// CraftingRobot it has no inventory of its own to select() into, so every
// ingredient, non-consumable, and finished output moves by a direct
// transferItem between the bus and the workbench's own addressed sides.
// Grounded on ProcessRFToolsControlWorkbench::cycle in the original server
// sources. Slot addressing there mixes 0-based and 1-based offsets for the
// grid-input and output legs respectively; this implementation normalizes
// every slot to the same 0-based convention NewTransferItem expects
// everywhere else in this module.
type RFToolsControlWorkbench struct {
	Access       Access
	OutAccess    Access // the workbench's output-harvesting side, addressed separately per the original's two-block split
	OutSlot      int
	Recipes      []RFToolsWorkbenchRecipe

	loop  *future.Loop
	alive *int32
}

// NewRFToolsControlWorkbench builds an RFToolsControlWorkbench process.
// loop and alive must be the owning Factory's shared event loop and
// liveness witness.
func NewRFToolsControlWorkbench(a, outAccess Access, outSlot int, recipes []RFToolsWorkbenchRecipe, loop *future.Loop, alive *int32) *RFToolsControlWorkbench {
	return &RFToolsControlWorkbench{Access: a, OutAccess: outAccess, OutSlot: outSlot, Recipes: recipes, loop: loop, alive: alive}
}

func (p *RFToolsControlWorkbench) EndOfCycle() {}

func (p *RFToolsControlWorkbench) Cycle(ctx context.Context, idx *avail.Index, b *bus.Bus) *future.Promise[struct{}] {
	var work []*future.Promise[struct{}]
	for _, d := range GetDemand(idx, p.Recipes) {
		if p2 := p.planDemand(idx, b, d); p2 != nil {
			work = append(work, p2)
		}
	}
	return future.Map(future.All(p.loop, p.alive, work), func([]struct{}) struct{} { return struct{}{} })
}

func (p *RFToolsControlWorkbench) planDemand(idx *avail.Index, b *bus.Bus, d Demand[CraftingRobotData, []int]) *future.Promise[struct{}] {
	recipe := d.Recipe
	sets := d.InAvail
	if recipe.Data.MaxSets > 0 && sets > recipe.Data.MaxSets {
		sets = recipe.Data.MaxSets
	}
	if sets <= 0 {
		return nil
	}
	nBus := len(recipe.In) + 1
	return withBusSlots(b, p.loop, p.alive, nBus, func(busSlots []int) *future.Promise[struct{}] {
		outBusSlot := busSlots[len(recipe.In)]
		var extracts []*future.Promise[struct{}]
		for i, in := range recipe.In {
			extracts = append(extracts, reserveAndExtract(idx, p.loop, p.alive, in.Filter, sets*in.Size, busSlots[i]))
		}
		return future.Then(future.All(p.loop, p.alive, extracts), func([]struct{}) *future.Promise[struct{}] {
			return p.runCraft(recipe, busSlots, outBusSlot, sets)
		})
	})
}

func (p *RFToolsControlWorkbench) runCraft(recipe *RFToolsWorkbenchRecipe, busSlots []int, outBusSlot, sets int) *future.Promise[struct{}] {
	var calls []action.Action
	for i, in := range recipe.In {
		eachSize := in.Size / len(in.Data)
		for _, gridSlot := range in.Data {
			calls = append(calls, action.NewTransferItem(p.Access.Inv, p.Access.BusSide, p.Access.Side, sets*eachSize, busSlots[i], gridSlot))
		}
	}
	for _, nc := range recipe.Data.NonConsumables {
		calls = append(calls, action.NewTransferItem(p.Access.Inv, p.Access.Side, p.Access.Side, 64, nc.StorageSlot, nc.CraftingGridSlot))
	}
	resps := p.Access.Client.Enqueue(calls)
	return future.Then(future.Map(future.All(p.loop, p.alive, resps), func([]codec.Value) struct{} { return struct{}{} }), func(struct{}) *future.Promise[struct{}] {
		return p.harvestAndRestore(recipe, outBusSlot, sets)
	})
}

func (p *RFToolsControlWorkbench) harvestAndRestore(recipe *RFToolsWorkbenchRecipe, outBusSlot, sets int) *future.Promise[struct{}] {
	var calls []action.Action
	for i := 0; i < sets; i++ {
		calls = append(calls, action.NewTransferItem(p.OutAccess.Inv, p.OutAccess.Side, p.OutAccess.BusSide, 64, p.OutSlot, outBusSlot))
	}
	for _, nc := range recipe.Data.NonConsumables {
		calls = append(calls, action.NewTransferItem(p.Access.Inv, p.Access.Side, p.Access.Side, 64, nc.CraftingGridSlot, nc.StorageSlot))
	}
	resps := p.Access.Client.Enqueue(calls)
	return future.Map(future.All(p.loop, p.alive, resps), func([]codec.Value) struct{} { return struct{}{} })
}
