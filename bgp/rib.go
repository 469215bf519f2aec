package bgp

import "github.com/transitorykris/netsim/prefix"

// Rib holds the three BGP tables described in §3: RIB-in per peer,
// LOC-RIB, and RIB-out per peer, plus (for external routers only) the
// set of routes this router originates itself. LOC-RIB is kept in the
// prefix family's own Map so forwarding lookups (§4.6) can resolve by
// longest-prefix match, not just exact match.
type Rib[P prefix.P] struct {
	in  map[RouterId]map[P]candidate[P]
	loc prefix.Map[P, Route[P]]
	out map[RouterId]map[P]Route[P]
	adv map[P]Route[P]
}

// NewRib builds an empty Rib. newMap constructs the LPM container LOC-RIB
// uses, e.g. prefix.NewLPMMap[Route[P]] for the IPv4 family.
func NewRib[P prefix.P](newMap func() prefix.Map[P, Route[P]]) *Rib[P] {
	return &Rib[P]{
		in:  make(map[RouterId]map[P]candidate[P]),
		loc: newMap(),
		out: make(map[RouterId]map[P]Route[P]),
		adv: make(map[P]Route[P]),
	}
}

func (r *Rib[P]) setIn(peer RouterId, c candidate[P]) {
	m, ok := r.in[peer]
	if !ok {
		m = make(map[P]candidate[P])
		r.in[peer] = m
	}
	m[c.route.Prefix] = c
}

func (r *Rib[P]) clearIn(peer RouterId, p P) {
	delete(r.in[peer], p)
}

// In returns the last route received from peer for prefix p, if any.
func (r *Rib[P]) In(peer RouterId, p P) (Route[P], bool) {
	c, ok := r.in[peer][p]
	return c.route, ok
}

// candidatesFor collects every RIB-in entry for prefix p across all peers.
func (r *Rib[P]) candidatesFor(p P) []candidate[P] {
	out := make([]candidate[P], 0, len(r.in))
	for _, m := range r.in {
		if c, ok := m[p]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Best returns the currently selected LOC-RIB route for the exact
// prefix p.
func (r *Rib[P]) Best(p P) (Route[P], bool) {
	return r.loc.Get(p)
}

// BestLPM resolves p against LOC-RIB by longest-prefix match, as §4.6's
// forwarding lookup requires.
func (r *Rib[P]) BestLPM(p P) (P, Route[P], bool) {
	return r.loc.GetLPM(p)
}

func (r *Rib[P]) setBest(p P, route Route[P]) { r.loc.Insert(p, route) }
func (r *Rib[P]) clearBest(p P)               { r.loc.Remove(p) }

// Prefixes returns every prefix with a LOC-RIB entry.
func (r *Rib[P]) Prefixes() []P {
	return r.loc.Keys()
}

// Out returns the last route announced to peer for prefix p.
func (r *Rib[P]) Out(peer RouterId, p P) (Route[P], bool) {
	route, ok := r.out[peer][p]
	return route, ok
}

func (r *Rib[P]) setOut(peer RouterId, p P, route Route[P]) {
	m, ok := r.out[peer]
	if !ok {
		m = make(map[P]Route[P])
		r.out[peer] = m
	}
	m[p] = route
}

func (r *Rib[P]) clearOut(peer RouterId, p P) {
	delete(r.out[peer], p)
}

func (r *Rib[P]) dropPeer(peer RouterId) {
	delete(r.in, peer)
	delete(r.out, peer)
}

// Advertised returns the routes an external router originates.
func (r *Rib[P]) Advertised() map[P]Route[P] { return r.adv }

func (r *Rib[P]) setAdvertised(p P, route Route[P]) { r.adv[p] = route }
func (r *Rib[P]) clearAdvertised(p P)               { delete(r.adv, p) }
