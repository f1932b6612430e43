package item

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/dchest/siphash"
)

// sipKey0/sipKey1 form the process-lifetime SipHash-2-4 key (spec
// SPEC_FULL.md §3): generated once at package init so Item.Hash is stable
// for the life of the process but not predictable across restarts (the
// hash is only ever used as a bucket key, never persisted).
var sipKey0, sipKey1 = randomSipKey()

func randomSipKey() (uint64, uint64) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to
		// a fixed key rather than crash a long-lived controller process.
		return 0x5bd1e995, 0x9e3779b9
	}
	return binary.LittleEndian.Uint64(b[0:8]), binary.LittleEndian.Uint64(b[8:16])
}

// Hash returns the keyed SipHash-2-4 digest of the item's canonical
// encoding, used as the Interner's bucket key.
func (it *Item) Hash() uint64 {
	return siphash.Hash(sipKey0, sipKey1, it.canonicalBytes())
}

// Interner deduplicates Items within the scope of one cycle (spec §3):
// two syntactically distinct Item values that compare Equal collapse to a
// single shared *Item, so pointer equality becomes a valid fast path for
// the remainder of the cycle.
type Interner struct {
	buckets map[uint64][]*Item
}

// NewInterner returns an empty interning table, intended to be created
// fresh at the start of every cycle.
func NewInterner() *Interner {
	return &Interner{buckets: make(map[uint64][]*Item)}
}

// Intern returns the canonical *Item for it: if an equal Item has already
// been interned this cycle, its shared pointer is returned; otherwise it
// is registered as the owner.
func (in *Interner) Intern(it *Item) *Item {
	h := it.Hash()
	for _, existing := range in.buckets[h] {
		if existing.Equal(it) {
			return existing
		}
	}
	in.buckets[h] = append(in.buckets[h], it)
	return it
}
