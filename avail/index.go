package avail

import "github.com/cyb0124/ocremote/item"

// Index is the factory's per-cycle availability index: every item
// interned this cycle, indexed by name and by label for O(matches) filter
// dispatch, plus each item's ItemInfo. A fresh Index is created at the
// start of every cycle (spec §4.7: "[e]ach cycle starts from empty
// items/nameMap/labelMap").
type Index struct {
	interner *item.Interner
	byName   map[string][]*item.Item
	byLabel  map[string][]*item.Item
	info     map[*item.Item]*ItemInfo
}

// NewIndex returns an empty Index, ready for a new cycle.
func NewIndex() *Index {
	return &Index{
		interner: item.NewInterner(),
		byName:   make(map[string][]*item.Item),
		byLabel:  make(map[string][]*item.Item),
		info:     make(map[*item.Item]*ItemInfo),
	}
}

// Intern returns the canonical, shared *item.Item for it, registering it
// in the name/label indexes the first time an equal item is seen this
// cycle.
func (idx *Index) Intern(it *item.Item) *item.Item {
	canon := idx.interner.Intern(it)
	if canon == it {
		idx.byName[it.Name] = append(idx.byName[it.Name], it)
		idx.byLabel[it.Label] = append(idx.byLabel[it.Label], it)
	}
	return canon
}

// InfoFor returns (creating if necessary) the ItemInfo for the canonical
// item it. Callers should pass only items already returned by Intern.
func (idx *Index) InfoFor(it *item.Item) *ItemInfo {
	ii, ok := idx.info[it]
	if !ok {
		ii = &ItemInfo{}
		idx.info[it] = ii
	}
	return ii
}

// AddProvider interns it and registers p against its ItemInfo, returning
// the canonical item the provider was registered under.
func (idx *Index) AddProvider(it *item.Item, p *Provider) *item.Item {
	canon := idx.Intern(it)
	idx.InfoFor(canon).AddProvider(p)
	return canon
}

// candidates returns the items a filter could possibly match, using the
// name/label index when the filter offers a hint and falling back to a
// linear scan over every item known to the index this cycle (spec §9).
func (idx *Index) candidates(f item.Filter) []*item.Item {
	switch kind, key := f.Index(); kind {
	case item.IndexByName:
		return idx.byName[key]
	case item.IndexByLabel:
		return idx.byLabel[key]
	default:
		all := make([]*item.Item, 0, len(idx.info))
		for it := range idx.info {
			all = append(all, it)
		}
		return all
	}
}

// Resolve picks the single canonical item best satisfying f: among all
// matches, the one with the highest avail(allowBackup=true) (spec §3).
// Resolve returns nil if nothing known to the index matches.
func (idx *Index) Resolve(f item.Filter) *item.Item {
	var best *item.Item
	bestAvail := -1
	for _, it := range idx.candidates(f) {
		if !f.Match(it) {
			continue
		}
		av := idx.InfoFor(it).Avail(true)
		if av > bestAvail {
			bestAvail = av
			best = it
		}
	}
	return best
}

// ResolveAll returns every known item matching f, for callers (like
// ProcessInputless) that need to aggregate over several matches rather
// than pick one.
func (idx *Index) ResolveAll(f item.Filter) []*item.Item {
	var out []*item.Item
	for _, it := range idx.candidates(f) {
		if f.Match(it) {
			out = append(out, it)
		}
	}
	return out
}

// Avail is a convenience combining Resolve and ItemInfo.Avail; it returns
// 0 if nothing matches f.
func (idx *Index) Avail(f item.Filter, allowBackup bool) int {
	it := idx.Resolve(f)
	if it == nil {
		return 0
	}
	return idx.InfoFor(it).Avail(allowBackup)
}

// Backup applies one backup reservation entry: resolve filter to an item
// and reserve size units against it. A filter that resolves to nothing is
// silently a no-op (there is nothing to reserve against).
func (idx *Index) Backup(f item.Filter, size int) {
	it := idx.Resolve(f)
	if it == nil {
		return
	}
	idx.InfoFor(it).Backup(size)
}

// Plan reserves n units of the item resolved by f, returning nil if f
// resolves to nothing.
func (idx *Index) Plan(f item.Filter, n int) []Extraction {
	it := idx.Resolve(f)
	if it == nil {
		return nil
	}
	return idx.InfoFor(it).Plan(n)
}
