package process_test

import (
	"context"
	"testing"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/bus"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
	"github.com/cyb0124/ocremote/item"
	"github.com/cyb0124/ocremote/process"
)

// fakeLink records every enqueued group and resolves each action's promise
// from a scripted FIFO queue of responses, mirroring transport.Client's
// real request/response pairing.
type fakeLink struct {
	loop      *future.Loop
	responses []codec.Value
	groups    [][]action.Action
}

func (f *fakeLink) Enqueue(group []action.Action) []*future.Promise[codec.Value] {
	f.groups = append(f.groups, group)
	out := make([]*future.Promise[codec.Value], len(group))
	for i := range group {
		v := f.responses[0]
		f.responses = f.responses[1:]
		out[i] = future.Resolved(f.loop, nil, v)
	}
	return out
}

func drain(loop *future.Loop) {
	done := make(chan struct{})
	loop.Post(func() { close(done) })
	<-done
}

func stackTable(size int, name, label string, maxSize int) codec.Value {
	return codec.Table{
		codec.MustKey(codec.String("size")):      codec.Number(float64(size)),
		codec.MustKey(codec.String("name")):      codec.String(name),
		codec.MustKey(codec.String("label")):     codec.String(label),
		codec.MustKey(codec.String("damage")):    codec.Number(0),
		codec.MustKey(codec.String("maxDamage")): codec.Number(0),
		codec.MustKey(codec.String("maxSize")):   codec.Number(float64(maxSize)),
		codec.MustKey(codec.String("hasTag")):    codec.Bool(false),
	}
}

func addProvider(loop *future.Loop, idx *avail.Index, it *item.Item, size int) {
	var canon *item.Item
	canon = idx.AddProvider(it, avail.NewProvider(size, avail.PriorityChest, func(n, destSlot int) *future.Promise[item.ItemStack] {
		return future.Resolved(loop, nil, item.ItemStack{Item: canon, Size: n})
	}))
}

func runCycle(t *testing.T, loop *future.Loop, p process.Process, idx *avail.Index, b *bus.Bus) {
	t.Helper()
	var failed error
	done := make(chan struct{})
	loop.Post(func() {
		future.Listen(p.Cycle(context.Background(), idx, b), func(r future.Result[struct{}]) {
			failed = r.Err
			close(done)
		})
	})
	<-done
	if failed != nil {
		t.Fatal(failed)
	}
}

// TestSlottedRecipeReproducesDemandArithmetic drives the single-ingredient,
// multi-physical-slot Slotted scenario: four pinned iron slots feeding one
// gear recipe, with enough iron on hand for 10 sets and a deliberately small per-slot
// cap, should reserve exactly 16 iron through a single bus slot and issue
// one transferItem call per physical slot moving 4 units each.
func TestSlottedRecipeReproducesDemandArithmetic(t *testing.T) {
	loop := future.NewLoop()
	defer loop.Close()

	iron := &item.Item{Name: "minecraft:iron_ingot", Label: "Iron Ingot", MaxSize: 4}

	idx := avail.NewIndex()
	// 40 units on hand gives demand.InAvail = 40/4 = 10, matching the
	// scenario's fixed inAvail value.
	loop.Post(func() { addProvider(loop, idx, iron, 40) })
	drain(loop)

	listResp := codec.Table{
		codec.IntKey(0): codec.String(""),
		codec.IntKey(1): codec.String(""),
		codec.IntKey(2): codec.String(""),
		codec.IntKey(3): codec.String(""),
	}
	link := &fakeLink{loop: loop, responses: []codec.Value{
		listResp,
		codec.Null{}, codec.Null{}, codec.Null{}, codec.Null{}, // four transferItem responses
	}}

	recipe := process.SlottedRecipe{
		Out: []process.Output{{Filter: item.ByName("gear"), Size: 16}},
		In: []process.Ingredient[[]int]{
			{Filter: item.ByName("minecraft:iron_ingot"), Size: 4, Data: []int{0, 1, 2, 3}},
		},
		Data: 16,
	}

	var s *process.Slotted
	loop.Post(func() {
		s = process.NewSlotted(process.Access{Client: link, Inv: "north", Side: action.Front, BusSide: action.Top}, nil, []process.SlottedRecipe{recipe}, loop, nil)
	})
	drain(loop)

	b := bus.New(4, loop, nil)
	runCycle(t, loop, s, idx, b)

	if len(link.groups) != 2 {
		t.Fatalf("expected 2 action groups (list + transfer), got %d", len(link.groups))
	}
	transfers := link.groups[1]
	if len(transfers) != 4 {
		t.Fatalf("expected 4 transferItem calls (one per physical slot), got %d", len(transfers))
	}
	for _, a := range transfers {
		call, ok := a.(*action.Call)
		if !ok || call.Fn != "transferItem" {
			t.Fatalf("expected a transferItem call, got %#v", a)
		}
		args, err := codec.TableToArray(call.Args)
		if err != nil || len(args) != 5 {
			t.Fatalf("transferItem args = %v, err = %v", args, err)
		}
		amount, _ := args[2].(codec.Number)
		if amount != 4 {
			t.Fatalf("transferItem amount = %v, want 4 (sets=4 * eachSize=1)", amount)
		}
	}
}

// TestBufferedStockTopUp exercises the stock-list top-up path: a chest
// holding none of the stocked item should receive an insertion plan
// reserving exactly the shortfall.
func TestBufferedStockTopUp(t *testing.T) {
	loop := future.NewLoop()
	defer loop.Close()

	redstone := &item.Item{Name: "minecraft:redstone", Label: "Redstone", MaxSize: 64}
	idx := avail.NewIndex()
	loop.Post(func() { addProvider(loop, idx, redstone, 100) })
	drain(loop)

	listResp := codec.Table{codec.IntKey(0): codec.String("")}
	link := &fakeLink{loop: loop, responses: []codec.Value{listResp, codec.Null{}}}

	var buf *process.Buffered
	loop.Post(func() {
		buf = process.NewBuffered(
			process.Access{Client: link, Inv: "north", Side: action.Front, BusSide: action.Top},
			nil,
			[]process.StockEntry{{Filter: item.ByName("minecraft:redstone"), ToStock: 40}},
			nil, 0, loop, nil,
		)
	})
	drain(loop)

	b := bus.New(4, loop, nil)
	runCycle(t, loop, buf, idx, b)

	if len(link.groups) != 2 {
		t.Fatalf("expected 2 action groups (list + insert transfer), got %d", len(link.groups))
	}
	transfer := link.groups[1]
	if len(transfer) != 1 {
		t.Fatalf("expected a single insertion transfer into the one empty slot, got %d calls", len(transfer))
	}
	call := transfer[0].(*action.Call)
	args, _ := codec.TableToArray(call.Args)
	amount, _ := args[2].(codec.Number)
	if amount != 40 {
		t.Fatalf("inserted amount = %v, want 40", amount)
	}
}

// TestBufferedOutputEviction checks that a slot holding finished output
// (matching OutFilter, not referenced by any recipe ingredient) is swept
// out to the bus.
func TestBufferedOutputEviction(t *testing.T) {
	loop := future.NewLoop()
	defer loop.Close()

	idx := avail.NewIndex()
	listResp := codec.ArrayToTable([]codec.Value{
		stackTable(32, "minecraft:gear", "Gear", 64),
	})
	link := &fakeLink{loop: loop, responses: []codec.Value{listResp, codec.Null{}}}

	var buf *process.Buffered
	loop.Post(func() {
		buf = process.NewBuffered(
			process.Access{Client: link, Inv: "north", Side: action.Front, BusSide: action.Top},
			item.ByName("minecraft:gear"),
			nil, nil, 0, loop, nil,
		)
	})
	drain(loop)

	b := bus.New(4, loop, nil)
	runCycle(t, loop, buf, idx, b)

	if len(link.groups) != 2 {
		t.Fatalf("expected 2 action groups (list + eviction transfer), got %d", len(link.groups))
	}
	evict := link.groups[1][0].(*action.Call)
	args, _ := codec.TableToArray(evict.Args)
	amount, _ := args[2].(codec.Number)
	if amount != 64 {
		t.Fatalf("evicted amount = %v, want 64 (item MaxSize, not the 32 present)", amount)
	}
}

// TestReactorHysteresisThreeCycleSequence drives the documented PV
// sequence 0.1 -> 0.5 -> 0.8 and checks the expected on/off/no-op pattern.
func TestReactorHysteresisThreeCycleSequence(t *testing.T) {
	loop := future.NewLoop()
	defer loop.Close()

	cyanite := &item.Item{Name: "cyanite", Label: "Cyanite Ingot", MaxSize: 64}
	idx := avail.NewIndex()
	loop.Post(func() { addProvider(loop, idx, cyanite, 100) })
	drain(loop)

	callResult := func(n float64) codec.Value {
		return codec.Table{codec.MustKey(codec.Number(1)): codec.Number(n)}
	}
	link := &fakeLink{loop: loop, responses: []codec.Value{
		callResult(100), callResult(1000), // cycle 1: hot fluid 100/1000 = 0.1
		codec.Null{},                      // setActive(true) response
		callResult(500), callResult(1000), // cycle 2: 0.5 -> no-op
		callResult(800), callResult(1000), // cycle 3: 0.8 -> off
		codec.Null{}, // setActive(false) response
	}}

	var logs []string
	var r *process.ReactorHysteresis
	loop.Post(func() {
		r = process.NewReactorHysteresis(
			process.Access{Client: link, Inv: "reactor", Side: action.Front, BusSide: action.Top},
			0, process.PVHotFluid, 0.7, 0.3,
			func(format string, args ...any) { logs = append(logs, format) },
			loop, nil,
		)
	})
	drain(loop)

	b := bus.New(1, loop, nil)
	runCycle(t, loop, r, idx, b) // pv=0.1 < lower=0.3 -> on
	runCycle(t, loop, r, idx, b) // pv=0.5 -> no-op
	runCycle(t, loop, r, idx, b) // pv=0.8 > upper=0.7 -> off

	var setActiveCalls []*action.Call
	for _, g := range link.groups {
		for _, a := range g {
			if call, ok := a.(*action.Call); ok && call.Fn == "setActive" {
				setActiveCalls = append(setActiveCalls, call)
			}
		}
	}
	if len(setActiveCalls) != 2 {
		t.Fatalf("expected exactly 2 setActive calls (cycles 1 and 3), got %d", len(setActiveCalls))
	}
	onArgs, _ := codec.TableToArray(setActiveCalls[0].Args)
	if v, ok := onArgs[0].(codec.Bool); !ok || !bool(v) {
		t.Fatalf("first setActive should be true, got %v", onArgs[0])
	}
	offArgs, _ := codec.TableToArray(setActiveCalls[1].Args)
	if v, ok := offArgs[0].(codec.Bool); !ok || bool(v) {
		t.Fatalf("second setActive should be false, got %v", offArgs[0])
	}
}
