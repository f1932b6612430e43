// Package process implements the recipe-driven scheduling strategies
// (spec §4.8): the ten core process kinds plus the supplemental variants
// grounded on original_source/'s heat-exchanger, repeating-crafting-robot,
// and backup-aware-scattering behavior.
package process

import (
	"context"

	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/bus"
	"github.com/cyb0124/ocremote/future"
)

// Process is the contract every scheduling strategy implements. Cycle
// runs concurrently with every other process's Cycle within one factory
// cycle (spec §5); it must resolve only once all of its scheduled work,
// including any bus slots it obtained, has settled. EndOfCycle runs after
// every process's Cycle promise has settled and clears any per-cycle
// cache the process keeps on itself (spec §9's "Per-cycle clearing").
type Process interface {
	Cycle(ctx context.Context, idx *avail.Index, b *bus.Bus) *future.Promise[struct{}]
	EndOfCycle()
}
