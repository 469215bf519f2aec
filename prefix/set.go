package prefix

import "sort"

// SetPrefix is one member of a configured, disjoint set of prefixes
// identified by an integer label. Since the set is disjoint by
// construction, containment and equality coincide: match is always exact.
type SetPrefix struct {
	label uint64
}

// NewSetPrefix builds the n-th SetPrefix value.
func NewSetPrefix(n uint64) SetPrefix { return SetPrefix{label: n} }

func (s SetPrefix) String() string { return "set-prefix" }

func (s SetPrefix) Less(other P) bool {
	o, ok := other.(SetPrefix)
	if !ok {
		return false
	}
	return s.label < o.label
}

// SetMap is an exact-match map over a disjoint prefix set. A plain Go map
// is the right container here: the family's whole point is that no two
// members overlap, so there is no prefix-length structure for a
// third-party trie to exploit (see DESIGN.md).
type SetMap[V any] struct {
	entries map[uint64]entry[V]
}

type entry[V any] struct {
	key SetPrefix
	val V
}

// NewSetMap constructs an empty SetMap.
func NewSetMap[V any]() *SetMap[V] {
	return &SetMap[V]{entries: make(map[uint64]entry[V])}
}

func (m *SetMap[V]) Insert(p SetPrefix, v V) {
	m.entries[p.label] = entry[V]{key: p, val: v}
}

func (m *SetMap[V]) Remove(p SetPrefix) {
	delete(m.entries, p.label)
}

func (m *SetMap[V]) Get(p SetPrefix) (V, bool) {
	e, ok := m.entries[p.label]
	return e.val, ok
}

// GetLPM degenerates to exact match: members are disjoint by construction.
func (m *SetMap[V]) GetLPM(p SetPrefix) (SetPrefix, V, bool) {
	v, ok := m.Get(p)
	return p, v, ok
}

func (m *SetMap[V]) Keys() []SetPrefix {
	keys := make([]SetPrefix, 0, len(m.entries))
	for _, e := range m.entries {
		keys = append(keys, e.key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].label < keys[j].label })
	return keys
}

func (m *SetMap[V]) Len() int { return len(m.entries) }
