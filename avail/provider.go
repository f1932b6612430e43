// Package avail implements the per-cycle item availability index (spec
// §3, §4.5): providers, reservations, backups, and the extraction planner
// that prefers draining the fullest provider first.
package avail

import (
	"github.com/cyb0124/ocremote/future"
	"github.com/cyb0124/ocremote/item"
)

// Storage-adapter priority tiers (spec §4.5: "drawers > chests > ME").
const (
	PriorityME     = 0
	PriorityChest  = 10
	PriorityDrawer = 20
)

// Provider is a capability object referencing a specific slot of a
// specific storage adapter that can source some quantity of an item. It
// is created during Storage.update and lives for exactly one cycle.
//
// Size reflects the provider's *residual* size: ItemInfo.Plan mutates it
// directly as reservations are made, per spec §3's invariant that
// "[e]xtraction mutates only the provider's residual size and the owning
// storage's bookkeeping."
type Provider struct {
	size     int
	priority int
	issue    func(n, destSlot int) *future.Promise[item.ItemStack]
}

// NewProvider builds a Provider. issue performs the actual wire transfer
// of up to n units into destSlot once a reservation made by Plan is
// executed; it is adapter-specific (drawer/chest/ME each encode a
// different action).
func NewProvider(size, priority int, issue func(n, destSlot int) *future.Promise[item.ItemStack]) *Provider {
	return &Provider{size: size, priority: priority, issue: issue}
}

// Size returns the provider's current residual size.
func (p *Provider) Size() int { return p.size }

// Priority returns the provider's storage-tier priority.
func (p *Provider) Priority() int { return p.priority }

// Issue executes a previously-planned reservation of n units into
// destSlot. Callers must only call Issue for an (n) that a prior call to
// Plan reserved from this exact provider.
func (p *Provider) Issue(n, destSlot int) *future.Promise[item.ItemStack] {
	return p.issue(n, destSlot)
}

// providerHeap is a container/heap.Interface ordering providers so the
// highest-priority, then largest, provider is always at the root — popped
// first by Plan, per spec §4.5's rationale: "prefer draining the fullest
// provider first so small stragglers persist for future cycles."
type providerHeap []*Provider

func (h providerHeap) Len() int { return len(h) }

func (h providerHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].size > h[j].size
}

func (h providerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *providerHeap) Push(x any) { *h = append(*h, x.(*Provider)) }

func (h *providerHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return v
}
