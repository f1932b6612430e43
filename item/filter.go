package item

// IndexKind hints which index a Filter can be served from (spec §9:
// "Visitor over filter subtypes... single dispatch returning either
// 'indexed via name', 'indexed via label', or 'linear scan'").
type IndexKind int

const (
	IndexNone IndexKind = iota
	IndexByName
	IndexByLabel
)

// Filter selects items by some predicate. Index reports a hint the
// availability index can use for an O(matches) lookup instead of a linear
// scan; IndexNone means no such hint is available.
type Filter interface {
	Match(it *Item) bool
	Index() (IndexKind, string)
}

type byName struct{ name string }

// ByName matches items with the given canonical name.
func ByName(name string) Filter { return byName{name} }

func (f byName) Match(it *Item) bool        { return it.Name == f.name }
func (f byName) Index() (IndexKind, string) { return IndexByName, f.name }

type byLabel struct{ label string }

// ByLabel matches items with the given display label.
func ByLabel(label string) Filter { return byLabel{label} }

func (f byLabel) Match(it *Item) bool        { return it.Label == f.label }
func (f byLabel) Index() (IndexKind, string) { return IndexByLabel, f.label }

type byLabelAndName struct{ label, name string }

// ByLabelAndName matches items with both the given label and name.
func ByLabelAndName(label, name string) Filter { return byLabelAndName{label, name} }

func (f byLabelAndName) Match(it *Item) bool {
	return it.Label == f.label && it.Name == f.name
}

func (f byLabelAndName) Index() (IndexKind, string) {
	// The name index is at least as selective as the label index and
	// both are maintained, so narrow on name and verify label in Match.
	return IndexByName, f.name
}

type custom struct{ pred func(*Item) bool }

// Custom wraps an arbitrary predicate. Custom filters always fall back to
// a linear scan since they carry no index hint.
func Custom(pred func(it *Item) bool) Filter { return custom{pred} }

func (f custom) Match(it *Item) bool        { return f.pred(it) }
func (f custom) Index() (IndexKind, string) { return IndexNone, "" }
