// Package codec implements the tagged, self-delimiting text format used on
// the wire between the factory controller and its remote agents (see
// SPEC_FULL.md §4.1). Every value is one of five kinds: null, number,
// string, bool, or table (an unordered map whose keys are themselves
// number/string/bool values).
package codec

import "fmt"

// Kind discriminates the five value shapes the wire format can carry.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindTable:
		return "table"
	default:
		return "invalid"
	}
}

// Value is the sum type for decoded/encodable wire values. Null, Number,
// String, Bool and Table are the only implementations.
type Value interface {
	Kind() Kind
}

// Null is the wire's absence-of-value marker. It also terminates a Table
// when it appears where a key is expected.
type Null struct{}

func (Null) Kind() Kind { return KindNull }

// Number is a double-precision value encoded in decimal text.
type Number float64

func (Number) Kind() Kind { return KindNumber }

// String is a UTF-8 string value; '@' is escaped as "@." in the wire form.
type String string

func (String) Kind() Kind { return KindString }

// Bool is a boolean value.
type Bool bool

func (Bool) Kind() Kind { return KindBool }

// Key is a table key: the subset of Value kinds {Number, String, Bool}
// ("SKey" in the spec), represented as a small comparable struct so it can
// be used directly as a Go map key.
type Key struct {
	kind Kind
	num  float64
	str  string
	b    bool
}

// NewKey converts v to a table key, failing if v is not a Number, String
// or Bool.
func NewKey(v Value) (Key, error) {
	switch t := v.(type) {
	case Number:
		return Key{kind: KindNumber, num: float64(t)}, nil
	case String:
		return Key{kind: KindString, str: string(t)}, nil
	case Bool:
		return Key{kind: KindBool, b: bool(t)}, nil
	default:
		return Key{}, fmt.Errorf("codec: %s is not a valid table key (want number, string or bool)", v.Kind())
	}
}

// MustKey is NewKey for callers holding a statically-known-valid key, such
// as an integer array index.
func MustKey(v Value) Key {
	k, err := NewKey(v)
	if err != nil {
		panic(err)
	}
	return k
}

// IntKey builds the integer-valued Number key used by ArrayToTable.
func IntKey(i int) Key { return Key{kind: KindNumber, num: float64(i)} }

func (k Key) Kind() Kind { return k.kind }

// Value converts the key back to the Value it was built from.
func (k Key) Value() Value {
	switch k.kind {
	case KindNumber:
		return Number(k.num)
	case KindString:
		return String(k.str)
	case KindBool:
		return Bool(k.b)
	default:
		panic("codec: invalid key")
	}
}

// Table is an unordered map value. Key order is never significant: two
// Tables with the same key/value pairs are equivalent regardless of the
// order they were encoded or decoded in.
type Table map[Key]Value

func (Table) Kind() Kind { return KindTable }

// Get is a convenience accessor returning (Null{}, false) for a missing key.
func (t Table) Get(k Key) (Value, bool) {
	v, ok := t[k]
	return v, ok
}

// GetString fetches a required string field, the common case when parsing
// action responses (see action.ParseStack).
func (t Table) GetString(name string) (string, error) {
	v, ok := t[MustKey(String(name))]
	if !ok {
		return "", fmt.Errorf("codec: missing required field %q", name)
	}
	s, ok := v.(String)
	if !ok {
		return "", fmt.Errorf("codec: field %q is %s, not string", name, v.Kind())
	}
	return string(s), nil
}

// GetNumber fetches a required numeric field.
func (t Table) GetNumber(name string) (float64, error) {
	v, ok := t[MustKey(String(name))]
	if !ok {
		return 0, fmt.Errorf("codec: missing required field %q", name)
	}
	n, ok := v.(Number)
	if !ok {
		return 0, fmt.Errorf("codec: field %q is %s, not number", name, v.Kind())
	}
	return float64(n), nil
}

// GetBool fetches a required boolean field.
func (t Table) GetBool(name string) (bool, error) {
	v, ok := t[MustKey(String(name))]
	if !ok {
		return false, fmt.Errorf("codec: missing required field %q", name)
	}
	b, ok := v.(Bool)
	if !ok {
		return false, fmt.Errorf("codec: field %q is %s, not bool", name, v.Kind())
	}
	return bool(b), nil
}

// Field sets t[String(name)] = v, overwriting any previous entry; used
// when building outbound action tables.
func (t Table) Field(name string, v Value) Table {
	t[MustKey(String(name))] = v
	return t
}
