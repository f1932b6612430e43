package codec

import (
	"strconv"

	"golang.org/x/exp/maps"
)

// Buffer accumulates the encoded bytes of a sequence of values, mirroring
// the teacher's segment-stack ion.Buffer except that our grammar needs no
// backpatching: every tag is either self-terminating (null, bool) or
// carries its own end marker (number's trailing '@', string's "@~",
// table's trailing '!'), so encoding is a single linear pass.
type Buffer struct {
	buf []byte
}

// Bytes returns the buffer's contents. The slice is invalidated by the next
// Encode call.
func (b *Buffer) Bytes() []byte { return b.buf }

// Reset empties the buffer for reuse.
func (b *Buffer) Reset() { b.buf = b.buf[:0] }

// Encode appends the wire encoding of v to the buffer.
func (b *Buffer) Encode(v Value) error {
	switch t := v.(type) {
	case nil:
		b.buf = append(b.buf, '!')
	case Null:
		b.buf = append(b.buf, '!')
	case Number:
		b.buf = append(b.buf, '#')
		b.buf = strconv.AppendFloat(b.buf, float64(t), 'g', -1, 64)
		b.buf = append(b.buf, '@')
	case String:
		b.writeString(string(t))
	case Bool:
		if t {
			b.buf = append(b.buf, '+')
		} else {
			b.buf = append(b.buf, '-')
		}
	case Table:
		b.buf = append(b.buf, '=')
		// Key order is never significant on the wire (spec §4.1), so a
		// stable sort isn't required; we still go through x/exp/maps
		// rather than hand-roll the iteration, matching db/queue.go's
		// use of the same package for map bookkeeping.
		for _, k := range maps.Keys(t) {
			if err := b.Encode(k.Value()); err != nil {
				return err
			}
			if err := b.Encode(t[k]); err != nil {
				return err
			}
		}
		b.buf = append(b.buf, '!')
	default:
		return &EncodeError{Kind: v.Kind()}
	}
	return nil
}

func (b *Buffer) writeString(s string) {
	b.buf = append(b.buf, '@')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '@' {
			b.buf = append(b.buf, '@', '.')
		} else {
			b.buf = append(b.buf, c)
		}
	}
	b.buf = append(b.buf, '@', '~')
}

// Encode is a one-shot convenience wrapper around Buffer for callers that
// don't need to reuse the underlying storage.
func Encode(v Value) ([]byte, error) {
	var b Buffer
	if err := b.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// EncodeError reports a value that has no wire representation (the sum
// type is closed, so this should only occur for a hand-rolled Value
// implementation outside this package).
type EncodeError struct {
	Kind Kind
}

func (e *EncodeError) Error() string {
	return "codec: cannot encode value of kind " + e.Kind.String()
}
