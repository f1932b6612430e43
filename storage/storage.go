// Package storage implements the Storage capability (spec §3) and its
// three concrete adapters — drawer, chest, and ME-network — each of which
// lists its contents into an avail.Index every cycle and accepts surplus
// output back via Sink.
package storage

import (
	"context"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
	"github.com/cyb0124/ocremote/item"
)

// AgentLink is the narrow capability a storage adapter needs from the
// transport layer: submit one action group, get back one response
// promise per action, in order. transport.Client implements it.
type AgentLink interface {
	Enqueue(group []action.Action) []*future.Promise[codec.Value]
}

// Storage is the per-cycle capability contract every adapter implements
// (spec §3): report what it holds into the availability index, and accept
// surplus output pushed at it.
type Storage interface {
	// Update lists this storage's current contents and registers one
	// avail.Provider per non-empty slot/entry into idx.
	Update(ctx context.Context, idx *avail.Index) *future.Promise[struct{}]

	// SinkPriority reports whether this storage would accept it as a
	// destination for surplus output, and at what priority (spec §3's
	// "Sink priority").
	SinkPriority(it *item.Item) (priority int, ok bool)

	// Sink attempts to insert stack, currently sitting in the bus at
	// srcBusSlot, into this storage. accepted is false if no compatible
	// destination slot exists; otherwise p resolves once the transfer
	// completes.
	Sink(stack item.ItemStack, srcBusSlot int) (accepted bool, p *future.Promise[struct{}])
}
