package prefix

import (
	"net/netip"

	"github.com/gaissmai/bart"
)

// IPv4Prefix is a real CIDR prefix. It is the family used whenever the
// simulation cares about longest-prefix match, e.g. a router's static
// routes shadowing a BGP-learned supernet.
type IPv4Prefix struct {
	netip.Prefix
}

// NewIPv4Prefix builds the n-th /24 out of the 10.0.0.0/8 space, so
// topology generators can mint disjoint, deterministic prefixes from a
// plain counter.
func NewIPv4Prefix(n uint64) IPv4Prefix {
	hi := byte((n >> 8) & 0xff)
	lo := byte(n & 0xff)
	addr := netip.AddrFrom4([4]byte{10, hi, lo, 0})
	return IPv4Prefix{Prefix: netip.PrefixFrom(addr, 24)}
}

// MustIPv4Prefix parses a literal CIDR string, panicking on malformed
// input. Intended for test fixtures and gadget topologies, not for
// parsing operator-controlled data.
func MustIPv4Prefix(cidr string) IPv4Prefix {
	p := netip.MustParsePrefix(cidr)
	return IPv4Prefix{Prefix: p}
}

// ParseIPv4Prefix parses a CIDR string, e.g. for deserializing
// previously-serialized state where a malformed value must surface as an
// error rather than panic.
func ParseIPv4Prefix(cidr string) (IPv4Prefix, error) {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return IPv4Prefix{}, err
	}
	return IPv4Prefix{Prefix: p}, nil
}

func (p IPv4Prefix) Less(other P) bool {
	o, ok := other.(IPv4Prefix)
	if !ok {
		return false
	}
	if p.Bits() != o.Bits() {
		return p.Bits() < o.Bits()
	}
	return p.Addr().Less(o.Addr())
}

// LPMMap is the longest-prefix-match container for IPv4Prefix, backed by
// github.com/gaissmai/bart's compressed binary trie. bart gives fast
// Insert/Delete/Get/Lookup; it does not expose an ordered key walk, so a
// side set tracks the inserted prefixes for Keys().
type LPMMap[V any] struct {
	table *bart.Table[V]
	keys  map[netip.Prefix]IPv4Prefix
}

// NewLPMMap constructs an empty LPMMap.
func NewLPMMap[V any]() *LPMMap[V] {
	return &LPMMap[V]{
		table: new(bart.Table[V]),
		keys:  make(map[netip.Prefix]IPv4Prefix),
	}
}

func (m *LPMMap[V]) Insert(p IPv4Prefix, v V) {
	m.table.Insert(p.Prefix, v)
	m.keys[p.Prefix] = p
}

func (m *LPMMap[V]) Remove(p IPv4Prefix) {
	m.table.Delete(p.Prefix)
	delete(m.keys, p.Prefix)
}

func (m *LPMMap[V]) Get(p IPv4Prefix) (V, bool) {
	return m.table.Get(p.Prefix)
}

// GetLPM resolves the longest prefix in the table that contains p's
// address, using bart's prefix-aware lookup.
func (m *LPMMap[V]) GetLPM(p IPv4Prefix) (IPv4Prefix, V, bool) {
	v, ok := m.table.LookupPrefix(p.Prefix)
	if !ok {
		var zero IPv4Prefix
		return zero, v, false
	}
	// bart.LookupPrefix does not hand back the matched prefix itself, so
	// recover it from the side set by re-deriving the covering prefix:
	// walk the candidate down from p's own length to /0 and take the
	// first one we actually inserted. Table sizes in this simulator are
	// small (router counts, not Internet-scale tables) so this is cheap.
	for bits := p.Bits(); bits >= 0; bits-- {
		candidate, err := p.Addr().Prefix(bits)
		if err != nil {
			continue
		}
		if stored, ok := m.keys[candidate]; ok {
			if sv, ok := m.table.Get(candidate); ok {
				_ = sv
				return stored, v, true
			}
		}
	}
	var zero IPv4Prefix
	return zero, v, false
}

func (m *LPMMap[V]) Keys() []IPv4Prefix {
	out := make([]IPv4Prefix, 0, len(m.keys))
	for _, p := range m.keys {
		out = append(out, p)
	}
	return out
}

func (m *LPMMap[V]) Len() int { return len(m.keys) }
