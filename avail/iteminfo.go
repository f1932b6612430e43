package avail

import "container/heap"

// Extraction is one (provider, amount) leg of a Plan result. Amount units
// have already been reserved against the provider's residual size and the
// ItemInfo's nAvail by the time Plan returns it; Extraction.Provider.Issue
// performs the actual transfer.
type Extraction struct {
	Provider *Provider
	Amount   int
}

// ItemInfo is the per-item, per-cycle availability record (spec §3):
// its set of providers, the sum of their residual sizes, and any backup
// reservation excluded from recipes that don't opt into AllowBackup.
//
// Invariant: nAvail == sum of provider sizes, always >= 0; nBackup >= 0.
type ItemInfo struct {
	providers providerHeap
	nAvail    int
	nBackup   int
}

// AddProvider registers a newly-discovered provider, contributing its
// initial size to nAvail.
func (ii *ItemInfo) AddProvider(p *Provider) {
	heap.Push(&ii.providers, p)
	ii.nAvail += p.Size()
}

// Backup reserves n units against future extraction by recipes that don't
// pass AllowBackup. A backup larger than nAvail simply clamps Avail(false)
// to zero; it is not an error (spec §8: "backup entry larger than nAvail
// clamps avail(false) to 0").
func (ii *ItemInfo) Backup(n int) { ii.nBackup += n }

// NAvail returns the raw provider-size sum.
func (ii *ItemInfo) NAvail() int { return ii.nAvail }

// NBackup returns the currently-reserved backup count.
func (ii *ItemInfo) NBackup() int { return ii.nBackup }

// Avail returns the quantity available for extraction: the full nAvail if
// allowBackup, otherwise nAvail minus the backup reservation, floored at
// zero (spec §3).
func (ii *ItemInfo) Avail(allowBackup bool) int {
	if allowBackup {
		return ii.nAvail
	}
	if ii.nAvail <= ii.nBackup {
		return 0
	}
	return ii.nAvail - ii.nBackup
}

// Plan reserves up to n units, repeatedly draining the highest-priority,
// largest-residual provider first (spec §4.5), decrementing nAvail and
// each drained provider's residual size as it goes, and discarding
// providers once they're emptied. It never reserves more than is
// currently available; the caller must check the returned total against
// what it needed.
func (ii *ItemInfo) Plan(n int) []Extraction {
	var out []Extraction
	remaining := n
	for remaining > 0 && ii.providers.Len() > 0 {
		top := ii.providers[0]
		take := top.size
		if take > remaining {
			take = remaining
		}
		top.size -= take
		ii.nAvail -= take
		remaining -= take
		out = append(out, Extraction{Provider: top, Amount: take})
		if top.size == 0 {
			heap.Pop(&ii.providers)
		} else {
			heap.Fix(&ii.providers, 0)
		}
	}
	return out
}

// PlanTotal is a convenience wrapper returning just the reserved total,
// for callers that only need to know how much Plan could actually secure.
func PlanTotal(exts []Extraction) int {
	total := 0
	for _, e := range exts {
		total += e.Amount
	}
	return total
}
