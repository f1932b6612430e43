package process

import (
	"context"
	"fmt"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/bus"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
)

// FluxNetwork reads a Flux Networks controller's total stored energy once
// per cycle and fans the reading out to every child process (typically
// RedstoneEmitters built with LastEnergy as their ValueFn source).
// Children must read the reading through LastEnergy at cycle time rather
// than a value captured at construction, since the children run inside
// the same cycle that just refreshed it: a captured snapshot would always
// be one cycle stale. Grounded on ProcessFluxNetwork::cycle in the
// original server sources.
type FluxNetwork struct {
	Access   Access
	Children []Process

	lastEnergy float64

	loop  *future.Loop
	alive *int32
	Logf  func(string, ...any)
}

func NewFluxNetwork(a Access, children []Process, logf func(string, ...any), loop *future.Loop, alive *int32) *FluxNetwork {
	return &FluxNetwork{Access: a, Children: children, Logf: logf, loop: loop, alive: alive}
}

// LastEnergy returns the total energy this FluxNetwork observed on its
// most recent Cycle. Children read this live, at the time their own Cycle
// runs, rather than capturing it up front.
func (f *FluxNetwork) LastEnergy() float64 { return f.lastEnergy }

func (f *FluxNetwork) EndOfCycle() {
	for _, c := range f.Children {
		c.EndOfCycle()
	}
}

func (f *FluxNetwork) Cycle(ctx context.Context, idx *avail.Index, b *bus.Bus) *future.Promise[struct{}] {
	call := &action.Call{Inv: f.Access.Inv, Fn: "getEnergyInfo", Args: codec.ArrayToTable(nil)}
	resp := f.Access.Client.Enqueue([]action.Action{call})[0]
	return future.Then(resp, func(v codec.Value) *future.Promise[struct{}] {
		energy, err := parseFluxEnergy(v)
		if err != nil {
			return future.Failed[struct{}](f.loop, f.alive, err)
		}
		f.lastEnergy = energy
		if f.Logf != nil {
			f.Logf("flux network: %.0f RF stored", energy)
		}

		children := make([]*future.Promise[struct{}], len(f.Children))
		for i, c := range f.Children {
			children[i] = c.Cycle(ctx, idx, b)
		}
		return future.Map(future.All(f.loop, f.alive, children), func([]struct{}) struct{} { return struct{}{} })
	})
}

func parseFluxEnergy(v codec.Value) (float64, error) {
	outer, ok := v.(codec.Table)
	if !ok {
		return 0, fmt.Errorf("process: flux network getEnergyInfo response is %s, not table", v.Kind())
	}
	inner, ok := outer.Get(codec.MustKey(codec.Number(1)))
	if !ok {
		return 0, fmt.Errorf("process: flux network getEnergyInfo response missing entry 1")
	}
	innerTable, ok := inner.(codec.Table)
	if !ok {
		return 0, fmt.Errorf("process: flux network getEnergyInfo entry 1 is %s, not table", inner.Kind())
	}
	return innerTable.GetNumber("totalEnergy")
}
