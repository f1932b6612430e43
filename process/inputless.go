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

// InputlessEntry names one kind of output an Inputless machine produces
// with no ingredients (a cobblestone generator, a lava-from-nothing
// generator): while fewer than Needed units of whatever Filter resolves to
// are available, move output to the bus to make up the shortfall.
type InputlessEntry struct {
	Filter item.Filter
	Needed int
}

// Inputless drives a machine that needs nothing fed in: every slot just
// accumulates output, and each cycle moves to the bus at most the amount
// by which an entry's availability falls short of its Needed. Grounded on ProcessInputless::cycle in the original server
// sources.
type Inputless struct {
	Access  Access
	Entries []InputlessEntry

	loop  *future.Loop
	alive *int32
}

// NewInputless builds an Inputless process. loop and alive must be the
// owning Factory's shared event loop and liveness witness.
func NewInputless(a Access, entries []InputlessEntry, loop *future.Loop, alive *int32) *Inputless {
	return &Inputless{Access: a, Entries: entries, loop: loop, alive: alive}
}

func (p *Inputless) EndOfCycle() {}

func (p *Inputless) Cycle(ctx context.Context, idx *avail.Index, b *bus.Bus) *future.Promise[struct{}] {
	skip := true
	for _, e := range p.Entries {
		if idx.Avail(e.Filter, true) < e.Needed {
			skip = false
			break
		}
	}
	if skip {
		return future.Resolved[struct{}](p.loop, p.alive, struct{}{})
	}

	list := p.Access.Client.Enqueue([]action.Action{&action.List{Inv: p.Access.Inv, Side: p.Access.Side}})[0]
	return future.Then(list, func(v codec.Value) *future.Promise[struct{}] {
		stacks, err := action.ParseStackList(v)
		if err != nil {
			return future.Failed[struct{}](p.loop, p.alive, err)
		}
		return p.runCycle(idx, b, stacks)
	})
}

type availNeeded struct {
	avail  int
	needed int
}

func (p *Inputless) runCycle(idx *avail.Index, b *bus.Bus, stacks []item.ItemStack) *future.Promise[struct{}] {
	seen := make(map[*item.Item]*availNeeded)
	var work []*future.Promise[struct{}]

	for slot, st := range stacks {
		if st.Item == nil || st.Size == 0 {
			continue
		}
		canon := idx.Intern(st.Item)
		an, ok := seen[canon]
		if !ok {
			an = &availNeeded{avail: idx.InfoFor(canon).Avail(true)}
			for _, e := range p.Entries {
				if e.Filter.Match(canon) && e.Needed > an.needed {
					an.needed = e.Needed
				}
			}
			seen[canon] = an
		}
		toProc := an.needed - an.avail
		if toProc > st.Size {
			toProc = st.Size
		}
		if toProc <= 0 {
			continue
		}
		an.avail += toProc
		work = append(work, processOutput(p.Access, b, p.loop, p.alive, slot, toProc))
	}

	return future.Map(future.All(p.loop, p.alive, work), func([]struct{}) struct{} { return struct{}{} })
}
