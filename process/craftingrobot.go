package process

import (
	"context"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/bus"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
)

// NonConsumableInfo names a tool or container a crafting grid needs
// present but never consumes (a bucket, a pattern, a durability item):
// where it permanently lives in the robot's inventory, and which crafting
// grid position it needs loaned into for the duration of one craft.
type NonConsumableInfo struct {
	StorageSlot      int
	CraftingGridSlot int
}

// CraftingRobotData is a crafting-robot recipe's per-recipe data: how many
// sets may be in flight at once, the non-consumables the grid needs, and
// Repeat, this module's supplemental "keep crafting while ingredients
// last" variant — rather than the original's fixed one-stack-per-cycle
// ceiling, a Repeat recipe loops sets down to exhaustion within the same
// cycle.
type CraftingRobotData struct {
	MaxSets        int
	NonConsumables []NonConsumableInfo
	Repeat         bool
}

// CraftingRobotRecipe drives a 3x3 crafting grid through a robot
// peripheral: each ingredient names the grid slot(s) it occupies.
type CraftingRobotRecipe = Recipe[CraftingRobotData, []int]

// mapCraftingGridSlot maps a 0-8 crafting-grid position to its physical
// inventory slot on the robot, skipping the three slots (3, 7, 11) the
// robot reserves for its own tool/selection bookkeeping.
func mapCraftingGridSlot(slot int) int {
	switch {
	case slot >= 6:
		return slot + 2
	case slot >= 3:
		return slot + 1
	default:
		return slot
	}
}

// CraftingRobot drives a crafting-turtle-style peripheral that needs each
// ingredient select()-ed into a specific grid slot before craft() is
// called. Grounded on ProcessCraftingRobot::cycle in the original server
// sources.
type CraftingRobot struct {
	Access    Access
	OutSlot   int
	Recipes   []CraftingRobotRecipe

	loop  *future.Loop
	alive *int32
}

// NewCraftingRobot builds a CraftingRobot process. loop and alive must be
// the owning Factory's shared event loop and liveness witness.
func NewCraftingRobot(a Access, outSlot int, recipes []CraftingRobotRecipe, loop *future.Loop, alive *int32) *CraftingRobot {
	return &CraftingRobot{Access: a, OutSlot: outSlot, Recipes: recipes, loop: loop, alive: alive}
}

func (p *CraftingRobot) EndOfCycle() {}

func (p *CraftingRobot) Cycle(ctx context.Context, idx *avail.Index, b *bus.Bus) *future.Promise[struct{}] {
	var work []*future.Promise[struct{}]
	for _, d := range GetDemand(idx, p.Recipes) {
		if p2 := p.planDemand(idx, b, d); p2 != nil {
			work = append(work, p2)
		}
	}
	return future.Map(future.All(p.loop, p.alive, work), func([]struct{}) struct{} { return struct{}{} })
}

// planDemand caps sets at recipe.Data.MaxSets per cycle, unless Repeat is
// set: a repeating recipe crafts every set the index can currently supply
// in one cycle instead of being limited to MaxSets, trading a longer
// single cycle for not idling a full cycle between every batch.
func (p *CraftingRobot) planDemand(idx *avail.Index, b *bus.Bus, d Demand[CraftingRobotData, []int]) *future.Promise[struct{}] {
	recipe := d.Recipe
	sets := d.InAvail
	if !recipe.Data.Repeat && recipe.Data.MaxSets > 0 && sets > recipe.Data.MaxSets {
		sets = recipe.Data.MaxSets
	}
	if sets <= 0 {
		return nil
	}
	return p.craftSets(idx, b, d, sets)
}

// craftSets allocates one bus slot per ingredient plus one for the output,
// then plays the select/suck/craft/drop sequence once per set.
func (p *CraftingRobot) craftSets(idx *avail.Index, b *bus.Bus, d Demand[CraftingRobotData, []int], sets int) *future.Promise[struct{}] {
	recipe := d.Recipe
	nBus := len(recipe.In) + 1
	return withBusSlots(b, p.loop, p.alive, nBus, func(busSlots []int) *future.Promise[struct{}] {
		outBusSlot := busSlots[len(recipe.In)]
		var extracts []*future.Promise[struct{}]
		for i, in := range recipe.In {
			extracts = append(extracts, reserveAndExtract(idx, p.loop, p.alive, in.Filter, sets*in.Size, busSlots[i]))
		}
		return future.Then(future.All(p.loop, p.alive, extracts), func([]struct{}) *future.Promise[struct{}] {
			var perSet []*future.Promise[struct{}]
			for set := 0; set < sets; set++ {
				perSet = append(perSet, p.craftOneSet(recipe, busSlots, outBusSlot, set))
			}
			return future.Map(future.All(p.loop, p.alive, perSet), func([]struct{}) struct{} { return struct{}{} })
		})
	})
}

func (p *CraftingRobot) craftOneSet(recipe *CraftingRobotRecipe, busSlots []int, outBusSlot, set int) *future.Promise[struct{}] {
	var calls []action.Action
	for i, in := range recipe.In {
		eachSize := in.Size / len(in.Data)
		for _, gridSlot := range in.Data {
			calls = append(calls,
				&action.Call{Inv: p.Access.Inv, Fn: "select", Args: codec.ArrayToTable([]codec.Value{codec.Number(float64(mapCraftingGridSlot(gridSlot) + 1))})},
				&action.Call{Inv: p.Access.Inv, Fn: "suckFromSlot", Args: codec.ArrayToTable([]codec.Value{
					codec.Number(float64(p.Access.BusSide)),
					codec.Number(float64(busSlots[i] + 1)),
					codec.Number(float64(eachSize)),
				})},
			)
		}
	}
	for _, nc := range recipe.Data.NonConsumables {
		calls = append(calls,
			&action.Call{Inv: p.Access.Inv, Fn: "select", Args: codec.ArrayToTable([]codec.Value{codec.Number(float64(nc.StorageSlot + 1))})},
			&action.Call{Inv: p.Access.Inv, Fn: "transferTo", Args: codec.ArrayToTable([]codec.Value{codec.Number(float64(mapCraftingGridSlot(nc.CraftingGridSlot) + 1))})},
		)
	}
	calls = append(calls,
		&action.Call{Inv: p.Access.Inv, Fn: "select", Args: codec.ArrayToTable([]codec.Value{codec.Number(float64(p.OutSlot + 1))})},
		&action.Call{Inv: p.Access.Inv, Fn: "craft", Args: codec.ArrayToTable(nil)},
		&action.Call{Inv: p.Access.Inv, Fn: "dropIntoSlot", Args: codec.ArrayToTable([]codec.Value{
			codec.Number(float64(p.Access.BusSide)),
			codec.Number(float64(outBusSlot + 1)),
		})},
	)
	for _, nc := range recipe.Data.NonConsumables {
		calls = append(calls,
			&action.Call{Inv: p.Access.Inv, Fn: "select", Args: codec.ArrayToTable([]codec.Value{codec.Number(float64(mapCraftingGridSlot(nc.CraftingGridSlot) + 1))})},
			&action.Call{Inv: p.Access.Inv, Fn: "transferTo", Args: codec.ArrayToTable([]codec.Value{codec.Number(float64(nc.StorageSlot + 1))})},
		)
	}
	resps := p.Access.Client.Enqueue(calls)
	return future.Map(future.All(p.loop, p.alive, resps), func([]codec.Value) struct{} { return struct{}{} })
}
