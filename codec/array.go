package codec

import (
	"fmt"
	"math"
)

// ArrayToTable encodes xs as the integer-indexed Table convention used for
// action groups and call/list arguments (spec §4.1): index i becomes key
// Number(i); a Null entry is a gap and is omitted from the map entirely
// rather than stored as an explicit null value.
func ArrayToTable(xs []Value) Table {
	t := make(Table, len(xs))
	for i, v := range xs {
		if _, isNull := v.(Null); isNull {
			continue
		}
		t[IntKey(i)] = v
	}
	return t
}

// TableToArray is the reverse of ArrayToTable: every key must be a
// non-negative integer-valued Number, and the result is dense from 0 to
// the maximum index, with gaps filled by Null.
func TableToArray(v Value) ([]Value, error) {
	t, ok := v.(Table)
	if !ok {
		return nil, fmt.Errorf("codec: cannot convert %s to array", v.Kind())
	}
	maxIdx := -1
	for k := range t {
		idx, err := arrayIndex(k)
		if err != nil {
			return nil, err
		}
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	out := make([]Value, maxIdx+1)
	for i := range out {
		out[i] = Null{}
	}
	for k, v := range t {
		idx, _ := arrayIndex(k)
		out[idx] = v
	}
	return out, nil
}

func arrayIndex(k Key) (int, error) {
	if k.Kind() != KindNumber {
		return 0, fmt.Errorf("codec: array table key %v is not a number", k.Value())
	}
	n := k.Value().(Number)
	f := float64(n)
	if f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("codec: array table key %v is not a non-negative integer", f)
	}
	return int(f), nil
}
