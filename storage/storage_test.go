package storage

import (
	"context"
	"testing"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
	"github.com/cyb0124/ocremote/item"
)

// fakeLink records every enqueued group and resolves each action's
// promise from a scripted queue of responses, FIFO, mirroring how
// transport.Client really drains its sendQueue against incoming replies.
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

func stackTable(size int, name, label string) codec.Value {
	return codec.Table{
		codec.MustKey(codec.String("size")):      codec.Number(float64(size)),
		codec.MustKey(codec.String("name")):      codec.String(name),
		codec.MustKey(codec.String("label")):     codec.String(label),
		codec.MustKey(codec.String("damage")):    codec.Number(0),
		codec.MustKey(codec.String("maxDamage")): codec.Number(0),
		codec.MustKey(codec.String("maxSize")):   codec.Number(64),
		codec.MustKey(codec.String("hasTag")):    codec.Bool(false),
	}
}

func TestChestUpdateRegistersProvider(t *testing.T) {
	loop := future.NewLoop()
	defer loop.Close()
	listResp := codec.ArrayToTable([]codec.Value{
		codec.Null{},
		stackTable(12, "minecraft:redstone", "Redstone"),
	})
	link := &fakeLink{loop: loop, responses: []codec.Value{listResp}}
	cs := NewChestStorage(link, "north", action.Front, action.Top, loop, nil)
	idx := avail.NewIndex()
	p := cs.Update(context.Background(), idx)
	var fail error
	future.Listen(p, func(r future.Result[struct{}]) { fail = r.Err })
	drain(loop)
	if fail != nil {
		t.Fatal(fail)
	}
	f := item.ByName("minecraft:redstone")
	if idx.Avail(f, true) != 12 {
		t.Fatalf("avail = %d, want 12", idx.Avail(f, true))
	}
}

func TestChestSinkUsesInsertionPlanner(t *testing.T) {
	loop := future.NewLoop()
	defer loop.Close()
	listResp := codec.ArrayToTable([]codec.Value{stackTable(60, "minecraft:redstone", "Redstone")})
	link := &fakeLink{loop: loop, responses: []codec.Value{listResp, codec.Null{}}}
	cs := NewChestStorage(link, "north", action.Front, action.Top, loop, nil)
	idx := avail.NewIndex()
	drain(loop)
	future.Listen(cs.Update(context.Background(), idx), func(future.Result[struct{}]) {})
	drain(loop)

	rs := &item.Item{Name: "minecraft:redstone", Label: "Redstone", MaxSize: 64}
	accepted, p := cs.Sink(item.ItemStack{Item: rs, Size: 4}, 0)
	if !accepted {
		t.Fatal("expected the chest to accept a compatible partial stack")
	}
	var failed error
	future.Listen(p, func(r future.Result[struct{}]) { failed = r.Err })
	drain(loop)
	if failed != nil {
		t.Fatal(failed)
	}
	if len(link.groups) != 2 {
		t.Fatalf("expected 2 action groups (list + sink transfer), got %d", len(link.groups))
	}
}

func TestDrawerRejectsUnconfiguredType(t *testing.T) {
	loop := future.NewLoop()
	defer loop.Close()
	listResp := codec.ArrayToTable([]codec.Value{stackTable(100, "minecraft:redstone", "Redstone")})
	link := &fakeLink{loop: loop, responses: []codec.Value{listResp}}
	ds := NewDrawerStorage(link, "north", action.Front, action.Top, loop, nil)
	idx := avail.NewIndex()
	future.Listen(ds.Update(context.Background(), idx), func(future.Result[struct{}]) {})
	drain(loop)

	gold := &item.Item{Name: "minecraft:gold_ingot", Label: "Gold Ingot", MaxSize: 64}
	if _, ok := ds.SinkPriority(gold); ok {
		t.Fatal("a drawer configured for redstone must not accept gold")
	}
	rs := &item.Item{Name: "minecraft:redstone", Label: "Redstone", MaxSize: 64}
	if _, ok := ds.SinkPriority(rs); !ok {
		t.Fatal("a drawer already holding redstone should accept more redstone")
	}
}

func TestMEStorageAlwaysSinks(t *testing.T) {
	loop := future.NewLoop()
	defer loop.Close()
	link := &fakeLink{loop: loop, responses: []codec.Value{codec.Null{}}}
	me := NewMEStorage(link, "north", "me_0", action.Top, loop, nil)
	rs := &item.Item{Name: "minecraft:redstone", Label: "Redstone", MaxSize: 64}
	if _, ok := me.SinkPriority(rs); !ok {
		t.Fatal("ME storage should always report a sink priority")
	}
	accepted, p := me.Sink(item.ItemStack{Item: rs, Size: 4}, 0)
	if !accepted {
		t.Fatal("ME storage should accept the sink")
	}
	future.Listen(p, func(future.Result[struct{}]) {})
	drain(loop)
	if len(link.groups) != 1 {
		t.Fatalf("expected 1 xferME group, got %d", len(link.groups))
	}
}
