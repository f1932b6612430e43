// Package item defines the canonical item identity used throughout the
// factory controller (spec §3): Item, ItemStack, the ItemFilter variants,
// and the per-cycle interning table that gives equal items a single
// shared owner so pointer equality is a valid fast path.
package item

import (
	"reflect"
	"sort"

	"github.com/cyb0124/ocremote/codec"
)

// Item is the canonical identity of a stack of blocks: name, label,
// damage/durability, size limits, tag presence, and an arbitrary
// key→value tree of everything else the remote agent reported. Equality
// and hashing are structural over all seven fields (spec §3).
type Item struct {
	Name      string
	Label     string
	Damage    int
	MaxDamage int
	MaxSize   int
	HasTag    bool
	Others    map[string]codec.Value
}

// Equal reports structural equality over all seven identity fields.
func (it *Item) Equal(other *Item) bool {
	if it == other {
		return true
	}
	if it == nil || other == nil {
		return false
	}
	if it.Name != other.Name || it.Label != other.Label ||
		it.Damage != other.Damage || it.MaxDamage != other.MaxDamage ||
		it.MaxSize != other.MaxSize || it.HasTag != other.HasTag {
		return false
	}
	if len(it.Others) != len(other.Others) {
		return false
	}
	if len(it.Others) == 0 {
		return true
	}
	return reflect.DeepEqual(it.Others, other.Others)
}

// canonicalBytes produces a deterministic byte encoding of the item's
// identity, independent of map iteration order, for hashing.
func (it *Item) canonicalBytes() []byte {
	var buf []byte
	buf = appendString(buf, it.Name)
	buf = appendString(buf, it.Label)
	buf = appendInt(buf, it.Damage)
	buf = appendInt(buf, it.MaxDamage)
	buf = appendInt(buf, it.MaxSize)
	if it.HasTag {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	keys := make([]string, 0, len(it.Others))
	for k := range it.Others {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf = appendString(buf, k)
		// A nested Table's own key order isn't canonicalized here, so two
		// logically-equal items can in rare cases hash differently; Hash
		// is only ever used as an Interner bucket key, verified against
		// Equal before two Items are merged, so this costs at most an
		// extra bucket, never an incorrect merge.
		enc, err := codec.Encode(it.Others[k])
		if err != nil {
			// Others values are always decoded from the wire by codec
			// itself, so every value here is always encodable.
			panic(err)
		}
		buf = append(buf, enc...)
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = appendInt(buf, len(s))
	return append(buf, s...)
}

func appendInt(buf []byte, n int) []byte {
	return append(buf, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
}

// ItemStack pairs an item with a positive count.
type ItemStack struct {
	Item *Item
	Size int
}
