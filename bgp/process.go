package bgp

import (
	"github.com/sirupsen/logrus"

	"github.com/transitorykris/netsim/prefix"
)

// IgpView is the sliver of an OSPF process a BGP process needs: the cost
// to reach a given router over the IGP, and whether it is reachable at
// all. Both OspfProcess implementations (oracle and local) satisfy this.
type IgpView interface {
	CostTo(target RouterId) (cost uint32, reachable bool)
}

type learnedInfo struct {
	peer        RouterId
	sessionType SessionType
}

type mapKey struct {
	peer RouterId
	dir  Direction
}

// PeerEvent pairs an outbound BGP event with its destination, matching
// §4.3's handle_event return type.
type PeerEvent[P prefix.P] struct {
	Dst   RouterId
	Event Event[P]
}

// Process is one router's BGP speaker: RIB-in/out/LOC-RIB, route maps,
// and the decision process described in §4.3.
type Process[P prefix.P] struct {
	asn      ASN
	self     RouterId
	external bool

	rib         *Rib[P]
	sessions    map[RouterId]SessionType
	routeMaps   map[mapKey]*RouteMap[P]
	igp         IgpView
	learnedFrom map[P]learnedInfo

	log *logrus.Entry
}

// NewProcess constructs a BGP process for router self in the given ASN.
// external routers skip the decision process entirely (§4.3). newMap
// builds the LPM container backing LOC-RIB, e.g.
// prefix.NewLPMMap[bgp.Route[prefix.IPv4Prefix]] for the IPv4 family.
func NewProcess[P prefix.P](asn ASN, self RouterId, external bool, newMap func() prefix.Map[P, Route[P]]) *Process[P] {
	return &Process[P]{
		asn:         asn,
		self:        self,
		external:    external,
		rib:         NewRib[P](newMap),
		sessions:    make(map[RouterId]SessionType),
		routeMaps:   make(map[mapKey]*RouteMap[P]),
		learnedFrom: make(map[P]learnedInfo),
		log:         logrus.WithFields(logrus.Fields{"router": uint32(self), "asn": uint32(asn)}),
	}
}

// SetSession configures (or replaces) the session role this speaker sees
// towards peer.
func (p *Process[P]) SetSession(peer RouterId, t SessionType) { p.sessions[peer] = t }

// ClearSession tears down a session; callers are responsible for
// generating the withdraw events this implies (the kernel does so by
// calling UpdateTables after removing the peer from every process).
func (p *Process[P]) ClearSession(peer RouterId) {
	delete(p.sessions, peer)
	p.rib.dropPeer(peer)
}

// HasSession reports whether a session is configured towards peer.
func (p *Process[P]) HasSession(peer RouterId) (SessionType, bool) {
	t, ok := p.sessions[peer]
	return t, ok
}

// Sessions returns every configured (peer, role) pair, for inspection and
// serialization.
func (p *Process[P]) Sessions() map[RouterId]SessionType {
	out := make(map[RouterId]SessionType, len(p.sessions))
	for peer, t := range p.sessions {
		out[peer] = t
	}
	return out
}

// RouteMapEntry names one (peer, direction) route map binding.
type RouteMapEntry[P prefix.P] struct {
	Peer RouterId
	Dir  Direction
	Map  *RouteMap[P]
}

// RouteMaps returns every configured route-map binding, for inspection
// and serialization.
func (p *Process[P]) RouteMaps() []RouteMapEntry[P] {
	out := make([]RouteMapEntry[P], 0, len(p.routeMaps))
	for k, rm := range p.routeMaps {
		out = append(out, RouteMapEntry[P]{Peer: k.peer, Dir: k.dir, Map: rm})
	}
	return out
}

// SetRouteMap installs the route map applied to routes crossing
// (peer, dir).
func (p *Process[P]) SetRouteMap(peer RouterId, dir Direction, rm *RouteMap[P]) {
	p.routeMaps[mapKey{peer, dir}] = rm
}

// ClearRouteMap removes the route map for (peer, dir); routes cross
// unfiltered afterwards.
func (p *Process[P]) ClearRouteMap(peer RouterId, dir Direction) {
	delete(p.routeMaps, mapKey{peer, dir})
}

// SetIgpView installs the IGP cost view used for next-hop reachability
// and tie-breaking.
func (p *Process[P]) SetIgpView(igp IgpView) { p.igp = igp }

// Rib exposes the raw RIB-in/out/LOC-RIB for inspection.
func (p *Process[P]) Rib() *Rib[P] { return p.rib }

// RestoreLocRib installs a previously-serialized LOC-RIB directly,
// bypassing the decision process, for deserialization: the decision
// process is not guaranteed to be re-runnable from RIB-in alone once
// RIB-in itself hasn't been serialized, so the selected routes are
// restored verbatim instead of re-derived.
func (p *Process[P]) RestoreLocRib(routes map[P]Route[P]) {
	for pfx, route := range routes {
		p.rib.setBest(pfx, route)
	}
}

// AdvertisedRoutes returns the routes this (external) router originates.
func (p *Process[P]) AdvertisedRoutes() map[P]Route[P] { return p.rib.Advertised() }

// RestoreAdvertised installs a previously-serialized set of
// self-originated routes directly, without re-fanning-out events, for
// deserialization.
func (p *Process[P]) RestoreAdvertised(routes map[P]Route[P]) {
	for pfx, route := range routes {
		p.rib.setAdvertised(pfx, route)
	}
}

// AdvertiseRoute is the external-only entry point: announce prefix with
// the given path attributes to every configured peer.
func (p *Process[P]) AdvertiseRoute(prefix P, asPath ASPath, med *uint32, community map[Community]bool) []PeerEvent[P] {
	route := Route[P]{
		Prefix:    prefix,
		ASPath:    asPath.Clone(),
		NextHop:   p.self,
		MED:       med,
		Community: cloneCommunitySet(community),
	}
	p.rib.setAdvertised(prefix, route)
	return p.fanOut(route)
}

// WithdrawRoute is the external-only entry point: withdraw a previously
// advertised prefix from every configured peer.
func (p *Process[P]) WithdrawRoute(pfx P) []PeerEvent[P] {
	p.rib.clearAdvertised(pfx)
	out := make([]PeerEvent[P], 0, len(p.sessions))
	for peer := range p.sessions {
		out = append(out, PeerEvent[P]{Dst: peer, Event: WithdrawEvent[P](pfx)})
	}
	return out
}

func (p *Process[P]) fanOut(route Route[P]) []PeerEvent[P] {
	out := make([]PeerEvent[P], 0, len(p.sessions))
	for peer := range p.sessions {
		out = append(out, PeerEvent[P]{Dst: peer, Event: UpdateEvent(route)})
	}
	return out
}

// HandleEvent processes a message received from src, per §4.3.
func (p *Process[P]) HandleEvent(src RouterId, ev Event[P]) []PeerEvent[P] {
	if p.external {
		// External routers accept updates without storing state, beyond
		// knowing whom to re-announce their own advertised routes to,
		// which SetSession/AdvertiseRoute already cover.
		return nil
	}
	sessionType, ok := p.sessions[src]
	if !ok {
		return nil
	}
	if ev.IsWithdraw() {
		pfx := *ev.Withdraw
		p.rib.clearIn(src, pfx)
		return p.redecide(pfx)
	}
	route := ev.Update.Clone()

	// 1. AS-path loop detection.
	if route.ASPath.Contains(ASN(p.asn)) {
		return nil
	}

	// 2. Inbound route map.
	if rm, ok := p.routeMaps[mapKey{src, Incoming}]; ok {
		filtered, allowed := rm.Apply(route)
		if !allowed {
			p.rib.clearIn(src, route.Prefix)
			return p.redecide(route.Prefix)
		}
		route = filtered
	}

	// 3. Next hop.
	if sessionType == EBgp {
		route.NextHop = src
	}

	// 4. Store and 5. redecide.
	cost, reachable := uint32(0), route.NextHop == p.self
	if p.igp != nil {
		cost, reachable = p.igp.CostTo(route.NextHop)
	}
	p.rib.setIn(src, candidate[P]{
		route:       route,
		peer:        src,
		peerASN:     neighborASN(route),
		sessionType: sessionType,
		igpCost:     cost,
		reachable:   reachable,
	})
	return p.redecide(route.Prefix)
}

// neighborASN is the AS a route's MED is only ever compared within: the
// nearest hop on its AS path, or 0 for a route with no path at all (e.g.
// directly originated).
func neighborASN[P prefix.P](r Route[P]) ASN {
	if len(r.ASPath) > 0 {
		return r.ASPath[0]
	}
	return 0
}

// UpdateIGP recomputes reachability/cost for every stored RIB-in entry
// against the new IGP view and redecides every affected prefix (§4.3).
func (p *Process[P]) UpdateIGP(igp IgpView) []PeerEvent[P] {
	p.igp = igp
	affected := make(map[P]bool)
	for peer, m := range p.rib.in {
		for pfx, c := range m {
			cost, reachable := igp.CostTo(c.route.NextHop)
			c.igpCost = cost
			c.reachable = reachable
			m[pfx] = c
			affected[pfx] = true
		}
		_ = peer
	}
	var out []PeerEvent[P]
	for pfx := range affected {
		out = append(out, p.redecide(pfx)...)
	}
	return out
}

// redecide reruns the decision process for prefix pfx and returns any
// outbound events this produces.
func (p *Process[P]) redecide(pfx P) []PeerEvent[P] {
	cands := p.rib.candidatesFor(pfx)
	idx := best(cands)
	if idx == -1 {
		if _, had := p.rib.Best(pfx); !had {
			return nil
		}
		p.rib.clearBest(pfx)
		delete(p.learnedFrom, pfx)
		return p.advertiseToAll(pfx, nil)
	}
	winner := cands[idx]
	p.rib.setBest(pfx, winner.route)
	p.learnedFrom[pfx] = learnedInfo{peer: winner.peer, sessionType: winner.sessionType}
	return p.advertiseToAll(pfx, &winner.route)
}

// UpdateTables reruns the decision process for every known prefix and,
// when force is set, re-evaluates outbound routes even if LOC-RIB did not
// change (used after a session or route-map is added/removed so the new
// peer gets a full initial announcement).
func (p *Process[P]) UpdateTables(force bool) []PeerEvent[P] {
	var out []PeerEvent[P]
	prefixes := make(map[P]bool)
	for _, pfx := range p.rib.Prefixes() {
		prefixes[pfx] = true
	}
	for _, m := range p.rib.in {
		for pfx := range m {
			prefixes[pfx] = true
		}
	}
	for pfx := range prefixes {
		out = append(out, p.redecide(pfx)...)
	}
	if force {
		for _, pfx := range p.rib.Prefixes() {
			route, _ := p.rib.Best(pfx)
			out = append(out, p.advertiseToAll(pfx, &route)...)
		}
	}
	return out
}

// advertiseToAll computes the outbound route for every peer and emits an
// Update/Withdraw for whichever peers' effective route changed, per the
// §4.3 outbound algorithm. selected is nil when LOC-RIB has no route for
// pfx (a pure withdraw).
func (p *Process[P]) advertiseToAll(pfx P, selected *Route[P]) []PeerEvent[P] {
	var out []PeerEvent[P]
	learned := p.learnedFrom[pfx]
	for peer, sessionType := range p.sessions {
		outbound, ok := p.computeOutbound(pfx, selected, learned, peer, sessionType)
		prev, hadPrev := p.rib.Out(peer, pfx)
		switch {
		case ok && (!hadPrev || !routesEqual(prev, outbound)):
			p.rib.setOut(peer, pfx, outbound)
			out = append(out, PeerEvent[P]{Dst: peer, Event: UpdateEvent(outbound)})
		case !ok && hadPrev:
			p.rib.clearOut(peer, pfx)
			out = append(out, PeerEvent[P]{Dst: peer, Event: WithdrawEvent[P](pfx)})
		}
	}
	return out
}

// computeOutbound derives the route to announce to peer for pfx, or
// ok=false if nothing should be announced.
func (p *Process[P]) computeOutbound(pfx P, selected *Route[P], learned learnedInfo, peer RouterId, sessionType SessionType) (Route[P], bool) {
	var zero Route[P]
	if selected == nil {
		return zero, false
	}
	// 1. Split horizon: never advertise back to the peer we learned it from.
	if learned.peer == peer {
		return zero, false
	}
	route := selected.Clone()

	if sessionType.IsIBGP() {
		// 2. iBGP-to-iBGP propagation (RFC 4456).
		fromEBGP := learned.sessionType == EBgp
		fromClient := learned.sessionType == IBgpClient
		weAreReflectorForLearned := fromClient
		weAreReflectorForPeer := sessionType == IBgpClient
		switch {
		case fromEBGP:
			// always propagate
		case weAreReflectorForLearned && !weAreReflectorForPeer:
			// learned from a client, forward to a plain peer: reflect
			route = reflect(route, learned.peer)
		case !weAreReflectorForLearned && weAreReflectorForPeer:
			// learned from a plain peer, forward to our client: reflect
			route = reflect(route, learned.peer)
		case weAreReflectorForLearned && weAreReflectorForPeer:
			// client-to-client via this reflector: reflect
			route = reflect(route, learned.peer)
		default:
			// plain iBGP peer to plain iBGP peer: only eBGP/client routes
			// propagate, and this one is neither.
			return zero, false
		}
	} else {
		// 3. eBGP: prepend local ASN, strip iBGP-only attributes, rewrite
		// next hop to self unless a set-action below overrides it.
		route.ASPath = route.ASPath.Prepend(p.asn)
		route.LocalPref = nil
		route.OriginatorID = nil
		route.ClusterList = nil
		route.NextHop = p.self
	}

	// 4. Outbound route map.
	if rm, ok := p.routeMaps[mapKey{peer, Outgoing}]; ok {
		filtered, allowed := rm.Apply(route)
		if !allowed {
			return zero, false
		}
		route = filtered
	}
	return route, true
}

func reflect[P prefix.P](r Route[P], learnedFrom RouterId) Route[P] {
	out := r.Clone()
	if out.OriginatorID == nil {
		id := learnedFrom
		out.OriginatorID = &id
	}
	out.ClusterList = append(append([]RouterId(nil), out.ClusterList...), learnedFrom)
	return out
}

func routesEqual[P prefix.P](a, b Route[P]) bool {
	if a.Prefix != b.Prefix || a.NextHop != b.NextHop || a.ASPath.Len() != b.ASPath.Len() {
		return false
	}
	for i := range a.ASPath {
		if a.ASPath[i] != b.ASPath[i] {
			return false
		}
	}
	if (a.LocalPref == nil) != (b.LocalPref == nil) {
		return false
	}
	if a.LocalPref != nil && *a.LocalPref != *b.LocalPref {
		return false
	}
	if (a.MED == nil) != (b.MED == nil) {
		return false
	}
	if a.MED != nil && *a.MED != *b.MED {
		return false
	}
	if len(a.Community) != len(b.Community) {
		return false
	}
	for c := range a.Community {
		if !b.Community[c] {
			return false
		}
	}
	if len(a.ClusterList) != len(b.ClusterList) {
		return false
	}
	for i := range a.ClusterList {
		if a.ClusterList[i] != b.ClusterList[i] {
			return false
		}
	}
	return true
}

func cloneCommunitySet(in map[Community]bool) map[Community]bool {
	out := make(map[Community]bool, len(in))
	for c := range in {
		out[c] = true
	}
	return out
}
