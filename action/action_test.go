package action

import (
	"testing"

	"github.com/cyb0124/ocremote/codec"
)

func TestListEncode(t *testing.T) {
	a := &List{Inv: "north", Side: Top}
	v := a.Encode()
	tbl, ok := v.(codec.Table)
	if !ok {
		t.Fatalf("Encode() = %T, want codec.Table", v)
	}
	op, err := tbl.GetString("op")
	if err != nil || op != "list" {
		t.Fatalf("op = %q, err = %v", op, err)
	}
	inv, err := tbl.GetString("inv")
	if err != nil || inv != "north" {
		t.Fatalf("inv = %q, err = %v", inv, err)
	}
	side, err := tbl.GetNumber("side")
	if err != nil || side != float64(Top) {
		t.Fatalf("side = %v, err = %v", side, err)
	}
}

func TestNewTransferItemConvertsTo1Based(t *testing.T) {
	c := NewTransferItem("north", Bottom, Top, 16, 0, 5)
	args, err := codec.TableToArray(c.Args)
	if err != nil {
		t.Fatal(err)
	}
	if len(args) != 5 {
		t.Fatalf("args len = %d, want 5", len(args))
	}
	if args[3] != codec.Number(1) {
		t.Fatalf("fromSlot = %v, want 1 (0-based slot 0 + 1)", args[3])
	}
	if args[4] != codec.Number(6) {
		t.Fatalf("toSlot = %v, want 6 (0-based slot 5 + 1)", args[4])
	}
}

func TestEncodeGroupPreservesOrder(t *testing.T) {
	group := EncodeGroup([]Action{
		&List{Inv: "a", Side: Top},
		&List{Inv: "b", Side: Bottom},
	})
	arr, err := codec.TableToArray(group)
	if err != nil {
		t.Fatal(err)
	}
	if len(arr) != 2 {
		t.Fatalf("group len = %d, want 2", len(arr))
	}
	first := arr[0].(codec.Table)
	inv, _ := first.GetString("inv")
	if inv != "a" {
		t.Fatalf("first action inv = %q, want a", inv)
	}
}

func TestParseStackNullAndString(t *testing.T) {
	st, err := ParseStack(codec.Null{})
	if err != nil || st.Item != nil {
		t.Fatalf("null entry should parse to empty slot, got %+v, err=%v", st, err)
	}
	st, err = ParseStack(codec.String("empty"))
	if err != nil || st.Item != nil {
		t.Fatalf("string entry should parse to empty slot, got %+v, err=%v", st, err)
	}
}

func TestParseStackTableSweepsOthers(t *testing.T) {
	tbl := codec.Table{
		codec.MustKey(codec.String("size")):      codec.Number(4),
		codec.MustKey(codec.String("name")):      codec.String("minecraft:redstone"),
		codec.MustKey(codec.String("label")):     codec.String("Redstone"),
		codec.MustKey(codec.String("damage")):    codec.Number(0),
		codec.MustKey(codec.String("maxDamage")): codec.Number(0),
		codec.MustKey(codec.String("maxSize")):   codec.Number(64),
		codec.MustKey(codec.String("hasTag")):    codec.Bool(false),
		codec.MustKey(codec.String("ench")):      codec.Number(3),
	}
	st, err := ParseStack(tbl)
	if err != nil {
		t.Fatal(err)
	}
	if st.Size != 4 || st.Item.Name != "minecraft:redstone" {
		t.Fatalf("unexpected parse result: %+v", st)
	}
	v, ok := st.Item.Others["ench"]
	if !ok || v != codec.Number(3) {
		t.Fatalf("expected ench field swept into Others, got %v", st.Item.Others)
	}
}

func TestParseStackMissingFieldErrors(t *testing.T) {
	tbl := codec.Table{codec.MustKey(codec.String("size")): codec.Number(1)}
	if _, err := ParseStack(tbl); err == nil {
		t.Fatal("expected an error for a stack table missing required fields")
	}
}

func TestParseStackListDense(t *testing.T) {
	group := codec.ArrayToTable([]codec.Value{codec.Null{}, codec.Null{}})
	list, err := ParseStackList(group)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("an all-null response is an empty table and should decode to zero slots, got %d", len(list))
	}
}
