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

// RedstoneConditional gates a child Process behind a redstone level read
// from one side, skipping the child's Cycle entirely whenever Predicate
// rejects the current level (or Precondition, if set, is false, short-
// circuiting without even reading the input). Grounded on
// ProcessRedstoneConditional::cycle in the original server sources.
type RedstoneConditional struct {
	Access       Access
	Side         action.Side
	Predicate    func(level int) bool
	Precondition func() bool
	Child        Process
	LogSkip      bool
	Logf         func(string, ...any)

	loop  *future.Loop
	alive *int32
}

func NewRedstoneConditional(a Access, side action.Side, predicate func(int) bool, child Process, loop *future.Loop, alive *int32) *RedstoneConditional {
	return &RedstoneConditional{Access: a, Side: side, Predicate: predicate, Child: child, loop: loop, alive: alive}
}

func (r *RedstoneConditional) EndOfCycle() { r.Child.EndOfCycle() }

func (r *RedstoneConditional) Cycle(ctx context.Context, idx *avail.Index, b *bus.Bus) *future.Promise[struct{}] {
	if r.Precondition != nil && !r.Precondition() {
		return future.Resolved[struct{}](r.loop, r.alive, struct{}{})
	}
	call := &action.Call{Inv: r.Access.Inv, Fn: "getInput", Args: codec.ArrayToTable([]codec.Value{codec.Number(float64(r.Side))})}
	resp := r.Access.Client.Enqueue([]action.Action{call})[0]
	return future.Then(resp, func(v codec.Value) *future.Promise[struct{}] {
		n, _ := callResult(v)
		if r.Predicate(int(n)) {
			return r.Child.Cycle(ctx, idx, b)
		}
		if r.LogSkip && r.Logf != nil {
			r.Logf("%s: skipped", r.Access.Inv)
		}
		return future.Resolved[struct{}](r.loop, r.alive, struct{}{})
	})
}

// RedstoneEmitter writes ValueFn()'s current result to Side whenever it
// differs from the last value sent, avoiding redundant setOutput calls.
// Grounded on ProcessRedstoneEmitter::cycle.
type RedstoneEmitter struct {
	Access  Access
	Side    action.Side
	ValueFn func() int

	prevValue int
	hasPrev   bool

	loop  *future.Loop
	alive *int32
}

func NewRedstoneEmitter(a Access, side action.Side, valueFn func() int, loop *future.Loop, alive *int32) *RedstoneEmitter {
	return &RedstoneEmitter{Access: a, Side: side, ValueFn: valueFn, loop: loop, alive: alive}
}

// MakeNeeded builds the common ValueFn shape: full signal (15) whenever
// idx can't currently clear toStock units of filter, 0 once it can.
func MakeNeeded(idx *avail.Index, filter item.Filter, toStock int) func() int {
	return func() int {
		if idx.Avail(filter, true) < toStock {
			return 15
		}
		return 0
	}
}

func (e *RedstoneEmitter) EndOfCycle() {}

func (e *RedstoneEmitter) Cycle(ctx context.Context, idx *avail.Index, b *bus.Bus) *future.Promise[struct{}] {
	value := e.ValueFn()
	if e.hasPrev && value == e.prevValue {
		return future.Resolved[struct{}](e.loop, e.alive, struct{}{})
	}
	e.prevValue = value
	e.hasPrev = true
	call := &action.Call{Inv: e.Access.Inv, Fn: "setOutput", Args: codec.ArrayToTable([]codec.Value{
		codec.Number(float64(e.Side)),
		codec.Number(float64(value)),
	})}
	resp := e.Access.Client.Enqueue([]action.Action{call})[0]
	return future.MapTo(resp, struct{}{})
}
