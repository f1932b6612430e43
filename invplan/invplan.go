// Package invplan implements the insertIntoInventory planner shared by the
// Buffered process (spec §4.8.2) and the storage adapters' sink path: given
// a read-only snapshot of an inventory's slots, compute how many units of an
// item could be inserted and exactly which slots would receive them, without
// ever touching the snapshot itself.
package invplan

import "github.com/cyb0124/ocremote/item"

// Slot is one read-only snapshot entry: either empty (Item == nil) or
// holding Size units of Item.
type Slot struct {
	Item *item.Item
	Size int
}

// Insertion is one (slot, amount) leg of a plan returned by Insert.
type Insertion struct {
	Slot   int
	Amount int
}

// Insert fills compatible non-full stacks in slot order up to it.MaxSize
// per slot, then — if residual remains — places it into the first empty
// slot found, per spec §4.9. It never inserts more than n units, never
// exceeds it.MaxSize in any single slot, and never mutates snapshot: the
// caller owns replaying the returned plan against the real inventory.
//
// Snapshot-safety matters because Buffered retries this with a decreasing
// set count against the same unmodified snapshot until a plan fits.
func Insert(snapshot []Slot, it *item.Item, n int) (inserted int, plan []Insertion) {
	remaining := n
	firstEmpty := -1
	for i, s := range snapshot {
		if remaining <= 0 {
			break
		}
		if s.Item == nil {
			if firstEmpty == -1 {
				firstEmpty = i
			}
			continue
		}
		if !s.Item.Equal(it) {
			continue
		}
		room := it.MaxSize - s.Size
		if room <= 0 {
			continue
		}
		take := room
		if take > remaining {
			take = remaining
		}
		plan = append(plan, Insertion{Slot: i, Amount: take})
		inserted += take
		remaining -= take
	}
	if remaining > 0 && firstEmpty != -1 {
		take := remaining
		if take > it.MaxSize {
			take = it.MaxSize
		}
		plan = append(plan, Insertion{Slot: firstEmpty, Amount: take})
		inserted += take
	}
	return inserted, plan
}

// Capacity returns the maximum units of it that Insert could ever place
// into snapshot, regardless of n — used by Buffered to size demand quotas
// without actually running a plan.
func Capacity(snapshot []Slot, it *item.Item) int {
	cap := 0
	sawEmpty := false
	for _, s := range snapshot {
		if s.Item == nil {
			if !sawEmpty {
				sawEmpty = true
				cap += it.MaxSize
			}
			continue
		}
		if s.Item.Equal(it) {
			cap += it.MaxSize - s.Size
		}
	}
	return cap
}
