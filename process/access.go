package process

import (
	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/storage"
)

// Access names the one agent-side peripheral a process talks to: which
// client owns it, the inventory address the op layer expects in its "inv"
// field, the side the peripheral itself occupies, and the side facing the
// shared bus. Every process strategy is pinned to exactly one Access; the
// source tree's redundant-access load balancing (getBestAccess choosing
// among several clients that can reach the same machine) isn't carried
// forward here, since nothing in this module's storage/transport layers
// models more than one path to a peripheral.
type Access struct {
	Client  storage.AgentLink
	Inv     string
	Side    action.Side
	BusSide action.Side
}
