package process

import (
	"context"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/bus"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
	"github.com/cyb0124/ocremote/item"
)

// plasticColors lists the sixteen colors a plastic mixer can currently be
// set to produce, in the wire protocol's selectColor index order.
var plasticColors = [16]string{
	"Black", "Red", "Green", "Brown", "Blue", "Purple", "Cyan", "Light Gray",
	"Gray", "Pink", "Lime", "Yellow", "Light Blue", "Magenta", "Orange", "White",
}

// PlasticMixer keeps whichever plastic color is currently scarcest topped
// up, switching the mixer's color selection only when necessary. Grounded
// on ProcessPlasticMixer::cycle in the original server sources.
type PlasticMixer struct {
	Access Access
	Needed int

	prev int // 0 = off, 1..16 = plasticColors[prev-1]

	loop  *future.Loop
	alive *int32
}

func NewPlasticMixer(a Access, needed int, loop *future.Loop, alive *int32) *PlasticMixer {
	return &PlasticMixer{Access: a, Needed: needed, loop: loop, alive: alive}
}

func (p *PlasticMixer) EndOfCycle() {}

func (p *PlasticMixer) Cycle(ctx context.Context, idx *avail.Index, b *bus.Bus) *future.Promise[struct{}] {
	minIdx, minAvail := 0, -1
	for i, color := range plasticColors {
		av := idx.Avail(item.ByLabel(color+" Plastic"), true)
		if minAvail < 0 || av < minAvail {
			minAvail = av
			minIdx = i
		}
	}

	which := 0
	if minAvail < p.Needed {
		which = minIdx + 1
	}
	if which == p.prev {
		return future.Resolved[struct{}](p.loop, p.alive, struct{}{})
	}
	p.prev = which
	call := &action.Call{Inv: p.Access.Inv, Fn: "selectColor", Args: codec.ArrayToTable([]codec.Value{codec.Number(float64(which))})}
	resp := p.Access.Client.Enqueue([]action.Action{call})[0]
	return future.MapTo(resp, struct{}{})
}
