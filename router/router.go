// Package router composes one router's BGP process, OSPF process, and
// static routes into a single FIB, per §3's Router entity and §4.6's
// forwarding lookup algorithm.
package router

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/transitorykris/netsim/bgp"
	"github.com/transitorykris/netsim/graph"
	"github.com/transitorykris/netsim/ospf"
	"github.com/transitorykris/netsim/prefix"
)

// RouterId is the dense handle shared across the simulator.
type RouterId = graph.RouterId

// StaticKind distinguishes the three static-route shapes in §3.
type StaticKind int

const (
	// Direct routes to a directly-connected neighbor, bypassing OSPF.
	Direct StaticKind = iota
	// Indirect routes via IGP resolution of a next hop that is not
	// necessarily a direct neighbor.
	Indirect
	// Drop black-holes matching traffic.
	Drop
)

// StaticRoute is one configured static route.
type StaticRoute struct {
	Kind    StaticKind
	NextHop RouterId // unused when Kind == Drop
}

// igpView adapts whichever OSPF implementation is configured (global
// Oracle, parametrized by the asking router, or a per-router Local,
// already bound to self) to the single-router view both bgp.Process and
// the FIB need.
type igpView struct {
	self   RouterId
	oracle *ospf.Oracle
	local  *ospf.Local
}

func (v *igpView) Get(t ospf.Target) ospf.Result {
	if v.local != nil {
		return v.local.Get(t)
	}
	return v.oracle.Get(v.self, t)
}

func (v *igpView) CostTo(to RouterId) (uint32, bool) {
	if v.local != nil {
		return v.local.CostTo(to)
	}
	return v.oracle.CostTo(v.self, to)
}

// Router is one simulated router: identity, OSPF, BGP, static routes,
// and the load-balancing flag that decides whether the FIB keeps every
// ECMP next hop or collapses to one.
type Router[P prefix.P] struct {
	Name     string
	Id       RouterId
	ASN      bgp.ASN
	External bool

	ospfView      *igpView
	bgpProc       *bgp.Process[P]
	static        prefix.Map[P, StaticRoute]
	loadBalancing bool

	log *logrus.Entry
}

// New builds a router bound to id/ASN. newStatic and newRib build the
// LPM containers for the static-route table and the BGP LOC-RIB,
// respectively, for prefix family P (e.g. prefix.NewLPMMap[...]).
func New[P prefix.P](
	name string, id RouterId, asn bgp.ASN, external bool,
	newStatic func() prefix.Map[P, StaticRoute],
	newRib func() prefix.Map[P, bgp.Route[P]],
) *Router[P] {
	r := &Router[P]{
		Name:     name,
		Id:       id,
		ASN:      asn,
		External: external,
		bgpProc:  bgp.NewProcess[P](asn, id, external, newRib),
		static:   newStatic(),
		log:      logrus.WithFields(logrus.Fields{"router": uint32(id), "name": name}),
	}
	return r
}

// BGP exposes the router's BGP decision process.
func (r *Router[P]) BGP() *bgp.Process[P] { return r.bgpProc }

// SetLoadBalancing toggles whether the FIB returns every ECMP next hop
// or only the lowest-id one.
func (r *Router[P]) SetLoadBalancing(on bool) { r.loadBalancing = on }

// LoadBalancing reports the current flag.
func (r *Router[P]) LoadBalancing() bool { return r.loadBalancing }

// SetOracle wires this router to the global OSPF oracle.
func (r *Router[P]) SetOracle(o *ospf.Oracle) {
	r.ospfView = &igpView{self: r.Id, oracle: o}
	r.bgpProc.SetIgpView(r.ospfView)
}

// SetLocal wires this router to its own local OSPF process.
func (r *Router[P]) SetLocal(l *ospf.Local) {
	r.ospfView = &igpView{self: r.Id, local: l}
	r.bgpProc.SetIgpView(r.ospfView)
}

// RefreshIGP recomputes RIB-in reachability/cost against the current IGP
// view and redecides every affected prefix, per §4.4: a topology change
// can flip an already-selected route's validity with no new BGP update.
func (r *Router[P]) RefreshIGP() []bgp.PeerEvent[P] {
	if r.ospfView == nil {
		return nil
	}
	return r.bgpProc.UpdateIGP(r.ospfView)
}

// SetStaticRoute installs or replaces a static route.
func (r *Router[P]) SetStaticRoute(pfx P, route StaticRoute) {
	r.static.Insert(pfx, route)
}

// RemoveStaticRoute deletes a static route, if any.
func (r *Router[P]) RemoveStaticRoute(pfx P) {
	r.static.Remove(pfx)
}

// GetStaticRoute returns the static route configured for pfx, if any.
func (r *Router[P]) GetStaticRoute(pfx P) (StaticRoute, bool) {
	return r.static.Get(pfx)
}

// FibEntry is one resolved forwarding decision.
type FibEntry struct {
	NextHops []RouterId
	Cost     uint32
	Dropped  bool
}

// Lookup implements §4.6's forwarding algorithm: a matching static route
// wins outright (Direct resolves to the neighbor directly, Indirect
// resolves its next hop via IGP, Drop black-holes); otherwise the
// longest/exact BGP match is resolved via IGP to the route's next hop, and
// a prefix this router itself advertises resolves to the router itself.
// With load balancing off, only the lowest-RouterId next hop survives.
func (r *Router[P]) Lookup(pfx P) FibEntry {
	if _, sr, ok := r.static.GetLPM(pfx); ok {
		return r.resolveStatic(sr)
	}
	if _, route, ok := r.bgpProc.Rib().BestLPM(pfx); ok {
		return r.resolveBgp(route)
	}
	if route, ok := r.bgpProc.AdvertisedRoutes()[pfx]; ok {
		return r.resolveBgp(route)
	}
	return FibEntry{Dropped: true}
}

func (r *Router[P]) resolveStatic(sr StaticRoute) FibEntry {
	switch sr.Kind {
	case Drop:
		return FibEntry{Dropped: true}
	case Direct:
		res := r.ospfView.Get(ospf.NeighborTarget(sr.NextHop))
		if !res.OK {
			return FibEntry{Dropped: true}
		}
		return FibEntry{NextHops: r.pick(res.NextHops), Cost: res.Cost}
	case Indirect:
		res := r.ospfView.Get(ospf.OspfTarget(sr.NextHop))
		if !res.OK {
			return FibEntry{Dropped: true}
		}
		return FibEntry{NextHops: r.pick(res.NextHops), Cost: res.Cost}
	default:
		return FibEntry{Dropped: true}
	}
}

func (r *Router[P]) resolveBgp(route bgp.Route[P]) FibEntry {
	if route.NextHop == r.Id {
		return FibEntry{NextHops: []RouterId{r.Id}, Cost: 0}
	}
	res := r.ospfView.Get(ospf.OspfTarget(route.NextHop))
	if !res.OK {
		return FibEntry{Dropped: true}
	}
	return FibEntry{NextHops: r.pick(res.NextHops), Cost: res.Cost}
}

func (r *Router[P]) pick(hops []RouterId) []RouterId {
	if r.loadBalancing || len(hops) <= 1 {
		return hops
	}
	best := hops[0]
	for _, h := range hops[1:] {
		if h < best {
			best = h
		}
	}
	return []RouterId{best}
}

// StaticPrefixes returns every prefix with a configured static route, in
// a deterministic order, for forwarding-state snapshots.
func (r *Router[P]) StaticPrefixes() []P {
	keys := r.static.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}
