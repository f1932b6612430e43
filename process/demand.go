package process

import (
	"sort"

	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/item"
)

// Output names one product a recipe yields, used only to decide whether a
// recipe still has unmet demand: if every output already clears Size units
// at allowBackup=true, the recipe is considered satisfied this cycle.
type Output struct {
	Filter item.Filter
	Size   int
}

// Ingredient names one input a recipe consumes. ID carries any
// strategy-specific addressing data for that ingredient (e.g. Slotted's
// physical slot list); strategies that don't need any pass struct{}.
type Ingredient[ID any] struct {
	Filter      item.Filter
	Size        int
	AllowBackup bool
	Data        ID
}

// Recipe is one entry in a process's recipe table. OD carries
// strategy-specific per-recipe data (Slotted's per-slot cap, Buffered's
// max-in-process total, CraftingRobot's set limit and non-consumables).
type Recipe[OD any, ID any] struct {
	Out  []Output
	In   []Ingredient[ID]
	Data OD
}

// Demand is one recipe's unmet-need snapshot for the current cycle: the
// canonical item each ingredient resolved to (parallel to Recipe.In, so a
// strategy can compare a physical slot's contents against the ingredient
// it's meant to hold), how many sets' worth of every ingredient the index
// can currently source, and how starved the recipe is relative to its
// stated outputs.
type Demand[OD any, ID any] struct {
	Recipe  *Recipe[OD, ID]
	InItems []*item.Item
	InAvail int
	// Fullness is in [0, 1), or 2.0 for a recipe with no outputs; lower
	// means hungrier. Used only to order
	// GetDemand's result so processes that want to spread work evenly
	// (Buffered) service the neediest recipe first.
	Fullness float64
}

// GetDemand computes, for every recipe, whether it currently has any
// unmet demand and how much of it the index can currently supply, grounded
// on Factory::getDemand in the source server's Factory.h: a recipe whose
// every output already clears its target at allowBackup=true is skipped
// entirely; otherwise fullness is the worst ratio among outputs that
// haven't cleared, and inAvail is the minimum, across every ingredient, of
// how many whole sets the index can currently source (0 for any ingredient
// drops the recipe). Surviving demands are sorted ascending by fullness so
// the neediest recipe is serviced first.
func GetDemand[OD any, ID any](idx *avail.Index, recipes []Recipe[OD, ID]) []Demand[OD, ID] {
	var out []Demand[OD, ID]
	for i := range recipes {
		r := &recipes[i]
		fullness := 2.0
		full := true
		for _, o := range r.Out {
			if o.Size <= 0 {
				continue
			}
			outAvail := idx.Avail(o.Filter, true)
			if outAvail >= o.Size {
				continue
			}
			full = false
			if f := float64(outAvail) / float64(o.Size); f < fullness {
				fullness = f
			}
		}
		if full && len(r.Out) > 0 {
			continue
		}

		inAvail := -1
		inItems := make([]*item.Item, len(r.In))
		for i, in := range r.In {
			inItems[i] = idx.Resolve(in.Filter)
			if in.Size <= 0 {
				continue
			}
			av := idx.Avail(in.Filter, in.AllowBackup)
			sets := av / in.Size
			if inAvail < 0 || sets < inAvail {
				inAvail = sets
			}
			if inAvail == 0 {
				break
			}
		}
		if inAvail < 0 {
			inAvail = 0
		}
		if inAvail == 0 {
			continue
		}

		out = append(out, Demand[OD, ID]{Recipe: r, InItems: inItems, InAvail: inAvail, Fullness: fullness})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Fullness < out[j].Fullness })
	return out
}
