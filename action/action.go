// Package action implements the controller-to-agent action taxonomy (spec
// §4.4, §6): one type per op, each able to encode itself into the
// codec.Value the wire protocol expects and to parse its own response.
package action

import (
	"fmt"

	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/item"
)

// Side names the six faces of a block, per spec §6. Slots are addressed
// 1-based on the wire; everywhere else in this module they are 0-based.
type Side int

const (
	Bottom Side = iota
	Top
	Back
	Front
	Right
	Left
)

// Action is one request destined for a single agent action group. Encode
// produces the per-action table the wire protocol expects; Op names the
// action for logging.
type Action interface {
	Op() string
	Encode() codec.Value
}

func baseTable(op string, fields map[string]codec.Value) codec.Table {
	t := make(codec.Table, len(fields)+1)
	for k, v := range fields {
		t[codec.MustKey(codec.String(k))] = v
	}
	t[codec.MustKey(codec.String("op"))] = codec.String(op)
	return t
}

// Print logs a line on the remote agent's console.
type Print struct {
	Text  string
	Color int
	Beep  *int
}

func (a *Print) Op() string { return "print" }

func (a *Print) Encode() codec.Value {
	fields := map[string]codec.Value{
		"text":  codec.String(a.Text),
		"color": codec.Number(float64(a.Color)),
	}
	t := baseTable(a.Op(), fields)
	if a.Beep != nil {
		t[codec.MustKey(codec.String("beep"))] = codec.Number(float64(*a.Beep))
	}
	return t
}

// List requests the contents of one inventory side.
type List struct {
	Inv  string
	Side Side
}

func (a *List) Op() string { return "list" }

func (a *List) Encode() codec.Value {
	return baseTable(a.Op(), map[string]codec.Value{
		"inv":  codec.String(a.Inv),
		"side": codec.Number(float64(a.Side)),
	})
}

// ListXN requests the contents of a block-network device addressed by
// relative coordinate.
type ListXN struct {
	Inv        string
	Side       Side
	X, Y, Z    int
}

func (a *ListXN) Op() string { return "listXN" }

func (a *ListXN) Encode() codec.Value {
	return baseTable(a.Op(), map[string]codec.Value{
		"inv":  codec.String(a.Inv),
		"side": codec.Number(float64(a.Side)),
		"x":    codec.Number(float64(a.X)),
		"y":    codec.Number(float64(a.Y)),
		"z":    codec.Number(float64(a.Z)),
	})
}

// ListME requests the full contents of an ME network.
type ListME struct {
	Inv string
}

func (a *ListME) Op() string { return "listME" }

func (a *ListME) Encode() codec.Value {
	return baseTable(a.Op(), map[string]codec.Value{"inv": codec.String(a.Inv)})
}

// XferME requests an ME-network transfer of an item matching filter.
type XferME struct {
	Inv    string
	Me     string
	Filter codec.Value
	Size   int
	Args   codec.Value
}

func (a *XferME) Op() string { return "xferME" }

func (a *XferME) Encode() codec.Value {
	return baseTable(a.Op(), map[string]codec.Value{
		"inv":    codec.String(a.Inv),
		"me":     codec.String(a.Me),
		"filter": a.Filter,
		"size":   codec.Number(float64(a.Size)),
		"args":   a.Args,
	})
}

// Call invokes an arbitrary remote method, e.g. transferItem, setOutput, or
// crafting.craft.
type Call struct {
	Inv  string
	Fn   string
	Args codec.Value
}

func (a *Call) Op() string { return "call" }

func (a *Call) Encode() codec.Value {
	return baseTable(a.Op(), map[string]codec.Value{
		"inv":  codec.String(a.Inv),
		"fn":   codec.String(a.Fn),
		"args": a.Args,
	})
}

// NewTransferItem builds the common call("transferItem", [...]) shape used
// by the chest and drawer adapters and by the slot-moving processes to move stacks
// between two sides of the same transposer-like peripheral. Slots are
// accepted 0-based and converted to the wire's 1-based addressing here.
func NewTransferItem(inv string, fromSide, toSide Side, amount, fromSlot, toSlot int) *Call {
	args := codec.ArrayToTable([]codec.Value{
		codec.Number(float64(fromSide)),
		codec.Number(float64(toSide)),
		codec.Number(float64(amount)),
		codec.Number(float64(fromSlot + 1)),
		codec.Number(float64(toSlot + 1)),
	})
	return &Call{Inv: inv, Fn: "transferItem", Args: args}
}

// FilterForItem builds the xferME filter table identifying it by its
// name/label/damage triple, the fields the remote ME bridge needs to
// resolve a unique AE2 item stack.
func FilterForItem(it *item.Item) codec.Table {
	return codec.Table{
		codec.MustKey(codec.String("name")):   codec.String(it.Name),
		codec.MustKey(codec.String("label")):  codec.String(it.Label),
		codec.MustKey(codec.String("damage")): codec.Number(float64(it.Damage)),
	}
}

// EncodeGroup encodes a slice of actions as the integer-keyed table the
// wire protocol expects for one action group.
func EncodeGroup(actions []Action) codec.Value {
	values := make([]codec.Value, len(actions))
	for i, a := range actions {
		values[i] = a.Encode()
	}
	return codec.ArrayToTable(values)
}

// ErrAgentFault wraps a raw response value for an op whose result shape
// signals an agent-side error (spec §7: "Agent-reported").
type ErrAgentFault struct {
	Op    string
	Value codec.Value
}

func (e *ErrAgentFault) Error() string {
	return fmt.Sprintf("action %s: agent reported a fault: %v", e.Op, e.Value)
}
