package codec

import "strconv"

// mode is the decoder's current byte-interpretation state: the "Number",
// "String" and "Table" states from spec §4.1, collapsed with "Start"/"Root"
// into a single "awaiting a tag byte" mode since in this grammar a fresh
// value always begins with exactly one of the five tag bytes.
type mode int

const (
	modeTag mode = iota
	modeNumber
	modeString
	modeStringEscape
)

// tableFrame is one entry in the decoder's state stack: an in-progress
// Table waiting for its next key, or the value that follows a key it has
// already parsed.
type tableFrame struct {
	tbl          Table
	expectingKey bool
	pendingKey   Key
}

// Decoder is a push-driven decoder for the wire format: Feed may be called
// with arbitrarily small or arbitrarily large chunks, including splits in
// the middle of a number, a string body, or a "@." / "@~" escape sequence;
// decoding resumes exactly where the previous Feed call left off.
//
// Completed top-level values accumulate in an internal queue, drained with
// Take. A Decoder that encounters malformed input is permanently broken:
// once Feed returns a non-nil error, every subsequent call also fails.
type Decoder struct {
	mode   mode
	stack  []*tableFrame
	numBuf []byte
	strBuf []byte
	out    []Value
	broken error
}

// DecodeError is returned for malformed input. Per spec §7 this closes the
// owning session.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "codec: decode error: " + e.Reason }

// Feed processes data incrementally, appending any values it completes to
// the internal queue (see Take).
func (d *Decoder) Feed(data []byte) error {
	if d.broken != nil {
		return d.broken
	}
	for _, b := range data {
		if err := d.step(b); err != nil {
			d.broken = err
			return err
		}
	}
	return nil
}

// Take drains and returns the values completed so far.
func (d *Decoder) Take() []Value {
	v := d.out
	d.out = nil
	return v
}

// Reset discards all in-progress state, including the broken flag,
// preparing the decoder to parse a fresh stream.
func (d *Decoder) Reset() {
	d.mode = modeTag
	d.stack = d.stack[:0]
	d.numBuf = d.numBuf[:0]
	d.strBuf = d.strBuf[:0]
	d.out = nil
	d.broken = nil
}

func (d *Decoder) step(b byte) error {
	switch d.mode {
	case modeTag:
		return d.stepTag(b)
	case modeNumber:
		return d.stepNumber(b)
	case modeString:
		return d.stepString(b)
	case modeStringEscape:
		return d.stepStringEscape(b)
	default:
		panic("codec: invalid decoder mode")
	}
}

func (d *Decoder) stepTag(b byte) error {
	if n := len(d.stack); n > 0 && d.stack[n-1].expectingKey && b == '!' {
		frame := d.stack[n-1]
		d.stack = d.stack[:n-1]
		return d.emit(frame.tbl)
	}
	switch b {
	case '!':
		return d.emit(Null{})
	case '#':
		d.mode = modeNumber
		d.numBuf = d.numBuf[:0]
	case '@':
		d.mode = modeString
		d.strBuf = d.strBuf[:0]
	case '+':
		return d.emit(Bool(true))
	case '-':
		return d.emit(Bool(false))
	case '=':
		d.stack = append(d.stack, &tableFrame{tbl: Table{}, expectingKey: true})
	default:
		return &DecodeError{Reason: "unknown tag byte " + strconv.Itoa(int(b))}
	}
	return nil
}

func (d *Decoder) stepNumber(b byte) error {
	if b == '@' {
		f, err := strconv.ParseFloat(string(d.numBuf), 64)
		if err != nil {
			return &DecodeError{Reason: "malformed number: " + err.Error()}
		}
		d.mode = modeTag
		return d.emit(Number(f))
	}
	d.numBuf = append(d.numBuf, b)
	return nil
}

func (d *Decoder) stepString(b byte) error {
	if b == '@' {
		d.mode = modeStringEscape
		return nil
	}
	d.strBuf = append(d.strBuf, b)
	return nil
}

func (d *Decoder) stepStringEscape(b byte) error {
	switch b {
	case '.':
		d.strBuf = append(d.strBuf, '@')
		d.mode = modeString
	case '~':
		d.mode = modeTag
		return d.emit(String(append([]byte(nil), d.strBuf...)))
	default:
		return &DecodeError{Reason: "malformed '@' escape in string"}
	}
	return nil
}

// emit attaches a completed value either to the enclosing table frame (as
// its pending key or the value for the key already parsed) or, if the
// stack is empty, to the top-level output queue.
func (d *Decoder) emit(v Value) error {
	n := len(d.stack)
	if n == 0 {
		d.out = append(d.out, v)
		return nil
	}
	top := d.stack[n-1]
	if top.expectingKey {
		k, err := NewKey(v)
		if err != nil {
			return &DecodeError{Reason: err.Error()}
		}
		top.pendingKey = k
		top.expectingKey = false
		return nil
	}
	top.tbl[top.pendingKey] = v
	top.expectingKey = true
	return nil
}

// DecodeAll is a convenience one-shot decode for a byte slice known to
// contain exactly one complete value (used by tests and by callers that
// already have a full frame in hand).
func DecodeAll(data []byte) ([]Value, error) {
	var d Decoder
	if err := d.Feed(data); err != nil {
		return nil, err
	}
	return d.Take(), nil
}
