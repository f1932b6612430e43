package codec

import (
	"reflect"
	"testing"
)

func TestEncodeBasic(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Null{}, "!"},
		{Number(1), "#1@"},
		{Number(-3.5), "#-3.5@"},
		{Bool(true), "+"},
		{Bool(false), "-"},
		{String(""), "@@~"},
		{String("hi"), "@hi@~"},
		{String("x@y"), "@x@.y@~"},
	}
	for _, c := range cases {
		got, err := Encode(c.v)
		if err != nil {
			t.Fatalf("Encode(%v): %v", c.v, err)
		}
		if string(got) != c.want {
			t.Errorf("Encode(%#v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestEncodeTableExample(t *testing.T) {
	// From spec §8 scenario 5.
	tbl := Table{
		MustKey(String("a")): Number(1),
		MustKey(String("b")): String("x@y"),
	}
	got, err := Encode(tbl)
	if err != nil {
		t.Fatal(err)
	}
	vs, err := DecodeAll(got)
	if err != nil {
		t.Fatalf("round trip decode: %v", err)
	}
	if len(vs) != 1 {
		t.Fatalf("expected 1 value, got %d", len(vs))
	}
	back, ok := vs[0].(Table)
	if !ok {
		t.Fatalf("expected Table, got %T", vs[0])
	}
	if !reflect.DeepEqual(back, tbl) {
		t.Errorf("round trip mismatch: got %#v want %#v", back, tbl)
	}
}

func TestDecodeNestedTable(t *testing.T) {
	inner := Table{MustKey(Number(0)): Bool(true)}
	outer := Table{MustKey(String("k")): inner}
	raw, err := Encode(outer)
	if err != nil {
		t.Fatal(err)
	}
	vs, err := DecodeAll(raw)
	if err != nil {
		t.Fatal(err)
	}
	got := vs[0].(Table)
	if !reflect.DeepEqual(got, outer) {
		t.Errorf("got %#v want %#v", got, outer)
	}
}

func TestDecodeChunked(t *testing.T) {
	tbl := Table{
		MustKey(String("alpha")): Number(42.5),
		MustKey(Number(3)):       String("multi@word@value"),
		MustKey(Bool(true)):      Null{},
	}
	raw, err := Encode(tbl)
	if err != nil {
		t.Fatal(err)
	}
	// Feed one byte at a time, including splits mid-number, mid-string,
	// and mid-escape; the decoder must still reconstruct the same value.
	var d Decoder
	for i := range raw {
		if err := d.Feed(raw[i : i+1]); err != nil {
			t.Fatalf("byte %d (%q): %v", i, raw[i], err)
		}
	}
	vs := d.Take()
	if len(vs) != 1 {
		t.Fatalf("expected 1 value, got %d", len(vs))
	}
	got := vs[0].(Table)
	if !reflect.DeepEqual(got, tbl) {
		t.Errorf("chunked decode mismatch: got %#v want %#v", got, tbl)
	}
}

func TestDecodeSplitAtTagByte(t *testing.T) {
	raw, _ := Encode(String("hello"))
	for i := 0; i < len(raw); i++ {
		var d Decoder
		if err := d.Feed(raw[:i]); err != nil {
			t.Fatalf("split at %d, first half: %v", i, err)
		}
		if err := d.Feed(raw[i:]); err != nil {
			t.Fatalf("split at %d, second half: %v", i, err)
		}
		vs := d.Take()
		if len(vs) != 1 || vs[0].(String) != "hello" {
			t.Fatalf("split at %d: got %v", i, vs)
		}
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	var d Decoder
	if err := d.Feed([]byte{'?'}); err == nil {
		t.Fatal("expected error for unknown tag")
	}
	if err := d.Feed([]byte{'!'}); err == nil {
		t.Fatal("decoder should stay broken after first error")
	}
}

func TestDecodeMalformedEscape(t *testing.T) {
	var d Decoder
	// '@' body followed by an invalid escape selector.
	if err := d.Feed([]byte("@ab@x")); err == nil {
		t.Fatal("expected malformed escape error")
	}
}

func TestDecodeNonSKeyTableKey(t *testing.T) {
	// A table whose key position holds a nested table is malformed.
	raw := []byte("==!")
	var d Decoder
	if err := d.Feed(raw); err == nil {
		t.Fatal("expected error for non-SKey table key")
	}
}

func TestArrayRoundTrip(t *testing.T) {
	xs := []Value{String("a"), Null{}, Number(3)}
	tbl := ArrayToTable(xs)
	if _, ok := tbl[IntKey(1)]; ok {
		t.Fatal("gap index should be omitted, not stored as null")
	}
	back, err := TableToArray(tbl)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, xs) {
		t.Errorf("got %#v want %#v", back, xs)
	}
}

func TestTableToArrayRequiresIntegerKeys(t *testing.T) {
	tbl := Table{MustKey(String("x")): Number(1)}
	if _, err := TableToArray(tbl); err == nil {
		t.Fatal("expected error for non-integer table key")
	}
}

func TestEncodeDeeplyNested(t *testing.T) {
	v := Value(Number(1))
	for i := 0; i < 20; i++ {
		v = Table{MustKey(Number(0)): v}
	}
	raw, err := Encode(v)
	if err != nil {
		t.Fatal(err)
	}
	vs, err := DecodeAll(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(vs[0], v) {
		t.Errorf("deeply nested round trip mismatch")
	}
}
