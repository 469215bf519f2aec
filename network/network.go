// Package network owns the simulation kernel described in §4.1/§6: the
// router set, the physical link-state graph, the event queue, and the
// dispatch loop that drives everything to convergence.
package network

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/transitorykris/netsim/bgp"
	"github.com/transitorykris/netsim/counter"
	"github.com/transitorykris/netsim/forward"
	"github.com/transitorykris/netsim/graph"
	"github.com/transitorykris/netsim/ospf"
	"github.com/transitorykris/netsim/prefix"
	"github.com/transitorykris/netsim/queue"
	"github.com/transitorykris/netsim/router"
	"github.com/transitorykris/netsim/simerr"
)

// OspfMode selects which OSPF implementation every router in the kernel
// runs, per §4.4/§4.5.
type OspfMode int

const (
	// Global runs one process-wide Oracle shared by every router.
	Global OspfMode = iota
	// LocalMode runs one Local OSPF process per router, converging by
	// flooding.
	LocalMode
)

// RouterId is the dense handle shared across the simulator.
type RouterId = graph.RouterId

// RecordedEvent is one append-only log entry in the kernel's recording,
// recovered from original_source's replay-driven UI: the virtual tick at
// which an event was dispatched and its source and destination routers.
// The event payload is not recorded, so the log shows the dispatch order
// but cannot by itself re-drive it.
type RecordedEvent struct {
	Tick uint64
	Src  RouterId
	Dst  RouterId
}

// Kernel owns every router, the physical graph, and the event queue for
// one simulation, per §4.1. No state is shared across Kernel instances.
type Kernel[P prefix.P] struct {
	id uuid.UUID // lineage id; PartialClone children share their parent's

	g       *graph.LinkGraph
	routers map[RouterId]*router.Router[P]
	nextID  RouterId

	mode   OspfMode
	oracle *ospf.Oracle
	locals map[RouterId]*ospf.Local

	q       queue.Queue
	tickCtr *counter.Counter
	auto    bool
	msgLimit int

	record []RecordedEvent
	recordOn bool

	newStatic func() prefix.Map[P, router.StaticRoute]
	newRib    func() prefix.Map[P, bgp.Route[P]]

	log *logrus.Entry
}

// New constructs an empty kernel over queue q. newStatic/newRib build the
// LPM containers every router's static-route table and BGP LOC-RIB use
// for prefix family P.
func New[P prefix.P](
	q queue.Queue,
	newStatic func() prefix.Map[P, router.StaticRoute],
	newRib func() prefix.Map[P, bgp.Route[P]],
) *Kernel[P] {
	k := &Kernel[P]{
		id:        uuid.New(),
		g:         graph.New(),
		routers:   make(map[RouterId]*router.Router[P]),
		mode:      Global,
		locals:    make(map[RouterId]*ospf.Local),
		q:         q,
		tickCtr:   counter.New(),
		msgLimit:  100000,
		newStatic: newStatic,
		newRib:    newRib,
	}
	k.oracle = ospf.NewOracle(k.g)
	k.log = logrus.WithField("kernel", k.id.String())
	return k
}

// ID returns this kernel's lineage id.
func (k *Kernel[P]) ID() uuid.UUID { return k.id }

// AddRouter registers a new internal or external router and returns its
// id.
func (k *Kernel[P]) AddRouter(name string, asn bgp.ASN, external bool) (RouterId, error) {
	id := k.nextID
	k.nextID++
	if err := k.g.AddRouter(id, external); err != nil {
		return 0, simerr.TopologyErrorf("add router %s: %v", name, err)
	}
	r := router.New[P](name, id, asn, external, k.newStatic, k.newRib)
	if !external {
		if k.mode == Global {
			r.SetOracle(k.oracle)
		} else {
			r.SetLocal(k.localFor(id))
		}
	}
	k.routers[id] = r
	k.log.WithFields(logrus.Fields{"router": uint32(id), "name": name}).Debug("router added")
	return id, nil
}

// RemoveRouter deletes a router and every incident link, and tears down
// any BGP sessions other routers held towards it.
func (k *Kernel[P]) RemoveRouter(id RouterId) error {
	if _, ok := k.routers[id]; !ok {
		return simerr.TopologyErrorf("unknown router %d", id)
	}
	for _, n := range k.g.Neighbors(id) {
		k.clearAdjacency(n, id)
	}
	if err := k.g.RemoveRouter(id); err != nil {
		return simerr.TopologyErrorf("remove router %d: %v", id, err)
	}
	delete(k.routers, id)
	delete(k.locals, id)
	for rid, rt := range k.routers {
		if _, ok := rt.BGP().HasSession(id); ok {
			rt.BGP().ClearSession(id)
			k.enqueueAll(rt.BGP().UpdateTables(false), rid)
		}
	}
	k.notifyTopologyChange()
	return nil
}

// GetDevice returns the router state for id.
func (k *Kernel[P]) GetDevice(id RouterId) (*router.Router[P], error) {
	r, ok := k.routers[id]
	if !ok {
		return nil, simerr.TopologyErrorf("unknown router %d", id)
	}
	return r, nil
}

// AddLink adds an undirected link in the backbone area with infinite
// weight, and brings up OSPF adjacency on both ends when running local
// OSPF.
func (k *Kernel[P]) AddLink(a, b RouterId) error {
	if _, ok := k.routers[a]; !ok {
		return simerr.TopologyErrorf("unknown router %d", a)
	}
	if _, ok := k.routers[b]; !ok {
		return simerr.TopologyErrorf("unknown router %d", b)
	}
	if err := k.g.AddLink(a, b); err != nil {
		return simerr.ConfigurationErrorf("add link %d-%d: %v", a, b, err)
	}
	k.bringUpAdjacency(a, b)
	k.notifyTopologyChange()
	return nil
}

// RemoveLink tears down the link between a and b.
func (k *Kernel[P]) RemoveLink(a, b RouterId) error {
	if !k.g.HasLink(a, b) {
		return simerr.TopologyErrorf("no link %d-%d", a, b)
	}
	if err := k.g.RemoveLink(a, b); err != nil {
		return simerr.TopologyErrorf("remove link %d-%d: %v", a, b, err)
	}
	k.clearAdjacency(a, b)
	k.clearAdjacency(b, a)
	k.notifyTopologyChange()
	return nil
}

// SetLinkWeight sets the (symmetric) weight of link a-b.
func (k *Kernel[P]) SetLinkWeight(a, b RouterId, w graph.Weight) error {
	if err := k.g.SetWeight(a, b, w); err != nil {
		return simerr.ConfigurationErrorf("set weight %d-%d: %v", a, b, err)
	}
	k.notifyTopologyChange()
	return nil
}

// SetOspfArea assigns an OSPF area to link a-b.
func (k *Kernel[P]) SetOspfArea(a, b RouterId, area graph.Area) error {
	if err := k.g.SetArea(a, b, area); err != nil {
		return simerr.ConfigurationErrorf("set area %d-%d: %v", a, b, err)
	}
	k.notifyTopologyChange()
	return nil
}

// SetBgpSession configures a BGP session between a and b, per §3: role is
// a's view of the relation (e.g. IBgpClient means a is the reflector and
// b its client).
func (k *Kernel[P]) SetBgpSession(a, b RouterId, role bgp.SessionType) error {
	ra, ok := k.routers[a]
	if !ok {
		return simerr.TopologyErrorf("unknown router %d", a)
	}
	rb, ok := k.routers[b]
	if !ok {
		return simerr.TopologyErrorf("unknown router %d", b)
	}
	ra.BGP().SetSession(b, role)
	rb.BGP().SetSession(a, mirrorSession(role))
	k.enqueueAll(ra.BGP().UpdateTables(true), a)
	k.enqueueAll(rb.BGP().UpdateTables(true), b)
	return nil
}

func mirrorSession(role bgp.SessionType) bgp.SessionType {
	if role == bgp.IBgpClient {
		return bgp.IBgpPeer
	}
	return role
}

// ClearBgpSession tears down the session between a and b.
func (k *Kernel[P]) ClearBgpSession(a, b RouterId) error {
	ra, ok := k.routers[a]
	if !ok {
		return simerr.TopologyErrorf("unknown router %d", a)
	}
	rb, ok := k.routers[b]
	if !ok {
		return simerr.TopologyErrorf("unknown router %d", b)
	}
	ra.BGP().ClearSession(b)
	rb.BGP().ClearSession(a)
	k.enqueueAll(ra.BGP().UpdateTables(false), a)
	k.enqueueAll(rb.BGP().UpdateTables(false), b)
	return nil
}

// SetBgpRouteMap installs a route map applied to routes crossing
// (router, neighbor, direction).
func (k *Kernel[P]) SetBgpRouteMap(r, neighbor RouterId, dir bgp.Direction, rm *bgp.RouteMap[P]) error {
	rt, ok := k.routers[r]
	if !ok {
		return simerr.TopologyErrorf("unknown router %d", r)
	}
	rt.BGP().SetRouteMap(neighbor, dir, rm)
	k.enqueueAll(rt.BGP().UpdateTables(true), r)
	return nil
}

// SetStaticRoute installs or replaces a static route on r.
func (k *Kernel[P]) SetStaticRoute(r RouterId, pfx P, route router.StaticRoute) error {
	rt, ok := k.routers[r]
	if !ok {
		return simerr.TopologyErrorf("unknown router %d", r)
	}
	rt.SetStaticRoute(pfx, route)
	return nil
}

// RemoveStaticRoute deletes a static route on r.
func (k *Kernel[P]) RemoveStaticRoute(r RouterId, pfx P) error {
	rt, ok := k.routers[r]
	if !ok {
		return simerr.TopologyErrorf("unknown router %d", r)
	}
	rt.RemoveStaticRoute(pfx)
	return nil
}

// AdvertiseExternalRoute originates a route from external router r.
func (k *Kernel[P]) AdvertiseExternalRoute(r RouterId, pfx P, asPath bgp.ASPath, med *uint32, community map[bgp.Community]bool) error {
	rt, ok := k.routers[r]
	if !ok {
		return simerr.TopologyErrorf("unknown router %d", r)
	}
	if !rt.External {
		return simerr.ConfigurationErrorf("router %d is not external", r)
	}
	k.enqueueAll(rt.BGP().AdvertiseRoute(pfx, asPath, med, community), r)
	return nil
}

// WithdrawExternalRoute withdraws a previously advertised route from
// external router r.
func (k *Kernel[P]) WithdrawExternalRoute(r RouterId, pfx P) error {
	rt, ok := k.routers[r]
	if !ok {
		return simerr.TopologyErrorf("unknown router %d", r)
	}
	k.enqueueAll(rt.BGP().WithdrawRoute(pfx), r)
	return nil
}

// SetLoadBalancing toggles ECMP behavior on router r's FIB.
func (k *Kernel[P]) SetLoadBalancing(r RouterId, on bool) error {
	rt, ok := k.routers[r]
	if !ok {
		return simerr.TopologyErrorf("unknown router %d", r)
	}
	rt.SetLoadBalancing(on)
	return nil
}

// SetMsgLimit bounds total event processing for Simulate.
func (k *Kernel[P]) SetMsgLimit(n int) { k.msgLimit = n }

// AutoSimulation makes mutating calls drain the queue immediately.
func (k *Kernel[P]) AutoSimulation() { k.auto = true }

// ManualSimulation leaves draining to explicit SimulateStep/Simulate
// calls.
func (k *Kernel[P]) ManualSimulation() { k.auto = false }

// Queue exposes the event queue for inspection.
func (k *Kernel[P]) Queue() queue.Queue { return k.q }

// SwapQueue replaces the event queue, draining the old one into the new
// one first so no pending event is lost.
func (k *Kernel[P]) SwapQueue(q queue.Queue) {
	for {
		e, ok := k.q.Pop()
		if !ok {
			break
		}
		q.Push(e)
	}
	k.q = q
}

// TriggerEvent pushes ev directly onto the queue, bypassing
// auto_simulation's drain-to-completion. This is the unsafe escape hatch
// named in §6/§9: callers are responsible for preserving whatever
// per-router FIFO ordering invariant their chosen queue implementation
// promises, since nothing here re-validates it. ok is false only when
// ev's destination is not a router in this kernel.
func (k *Kernel[P]) TriggerEvent(ev queue.Event) (ok bool) {
	if _, exists := k.routers[ev.Dst]; !exists {
		return false
	}
	k.q.Push(ev)
	return true
}

// StartRecording begins appending every dispatched event to the kernel's
// replay log.
func (k *Kernel[P]) StartRecording() { k.recordOn = true }

// StopRecording stops appending to the replay log without clearing it.
func (k *Kernel[P]) StopRecording() { k.recordOn = false }

// Record returns the recorded event log so far.
func (k *Kernel[P]) Record() []RecordedEvent { return append([]RecordedEvent(nil), k.record...) }

// enqueueAll pushes every PeerEvent as a BGP message from src.
func (k *Kernel[P]) enqueueAll(events []bgp.PeerEvent[P], src RouterId) {
	for _, pe := range events {
		k.q.Push(queue.Event{
			Src: src,
			Dst: pe.Dst,
			Payload: bgpMsg[P]{Src: src, Event: pe.Event},
		})
	}
	if k.auto {
		_ = k.Simulate()
	}
}

func (k *Kernel[P]) enqueueOspf(events []ospf.OutEvent, src RouterId) {
	for _, oe := range events {
		k.q.Push(queue.Event{
			Src: src,
			Dst: oe.Dst,
			Payload: ospfMsg{Src: src, Msg: oe.Msg},
		})
	}
	if k.auto {
		_ = k.Simulate()
	}
}

type bgpMsg[P prefix.P] struct {
	Src   RouterId
	Event bgp.Event[P]
}

type ospfMsg struct {
	Src RouterId
	Msg ospf.Message
}

// SimulateStep dispatches exactly one event, if any is pending. ok is
// false when the queue was already empty.
func (k *Kernel[P]) SimulateStep() (ok bool, err error) {
	e, ok := k.q.Pop()
	if !ok {
		return false, nil
	}
	k.dispatch(e)
	return true, nil
}

// Simulate drains the queue until empty or the message limit is
// exceeded, per §5's cancellation policy.
func (k *Kernel[P]) Simulate() error {
	n := 0
	for {
		e, ok := k.q.Pop()
		if !ok {
			return nil
		}
		k.dispatch(e)
		n++
		if n > k.msgLimit {
			return simerr.ConvergenceErrorf("message limit %d exceeded", k.msgLimit)
		}
	}
}

func (k *Kernel[P]) dispatch(e queue.Event) {
	tick := k.tickCtr.Tick()
	if k.recordOn {
		k.record = append(k.record, RecordedEvent{Tick: tick, Src: e.Src, Dst: e.Dst})
	}
	rt, ok := k.routers[e.Dst]
	if !ok {
		return
	}
	switch payload := e.Payload.(type) {
	case bgpMsg[P]:
		out := rt.BGP().HandleEvent(payload.Src, payload.Event)
		k.enqueueAll(out, e.Dst)
	case ospfMsg:
		if k.mode != LocalMode {
			return
		}
		local, ok := k.locals[e.Dst]
		if !ok {
			return
		}
		out := local.HandleEvent(payload.Src, payload.Msg)
		k.enqueueOspf(out, e.Dst)
		// A DD/LSR/LSU exchange can flip a neighbor to Full (or drop it
		// back out of Full), changing what this router's Router LSA
		// should list -- re-originate so the database reflects it.
		k.refreshLocalOrigination(e.Dst)
	}
}

// bringUpAdjacency notifies both ends of a new link. Under Global OSPF
// this is a no-op beyond the oracle recompute already triggered by the
// caller; under LocalMode it starts the neighbor FSM on both ends.
func (k *Kernel[P]) bringUpAdjacency(a, b RouterId) {
	if k.mode != LocalMode {
		return
	}
	area, _ := k.g.Area(a, b)
	la := k.localFor(a)
	lb := k.localFor(b)
	k.enqueueOspf(la.NeighborUp(b, area), a)
	k.enqueueOspf(lb.NeighborUp(a, area), b)
	k.refreshLocalOrigination(a)
	k.refreshLocalOrigination(b)
}

func (k *Kernel[P]) clearAdjacency(a, b RouterId) {
	if k.mode != LocalMode {
		return
	}
	if la, ok := k.locals[a]; ok {
		la.NeighborDown(b)
		k.refreshLocalOrigination(a)
	}
}

// refreshLocalOrigination rebuilds and floods id's self-originated LSAs
// (Router, plus Summary/External if it is an ABR or attached to an
// external neighbor) against the current neighbor-FSM/graph state.
// OriginateRouterLSA's own contract is that the kernel calls it after
// every link/neighbor-state change and on periodic refresh; this is that
// call site, invoked from every place the kernel changes adjacency state
// under LocalMode.
func (k *Kernel[P]) refreshLocalOrigination(id RouterId) {
	local, ok := k.locals[id]
	if !ok {
		return
	}
	var out []ospf.OutEvent
	for _, a := range k.g.Areas(id) {
		out = append(out, local.OriginateRouterLSA(a)...)
	}
	out = append(out, local.OriginateSummaryLSAs()...)
	out = append(out, local.OriginateExternalLSAs()...)
	k.enqueueOspf(out, id)
}

func (k *Kernel[P]) localFor(id RouterId) *ospf.Local {
	l, ok := k.locals[id]
	if !ok {
		l = ospf.NewLocal(id, k.g)
		k.locals[id] = l
	}
	return l
}

// notifyTopologyChange recomputes the global oracle (if active) and
// re-runs every router's BGP decision process against the new IGP costs,
// per §4.4: a topology change can flip reachability/cost for an
// already-selected next hop even with no new BGP update received.
func (k *Kernel[P]) notifyTopologyChange() {
	if k.mode == Global {
		k.oracle.NotifyTopologyChange()
	} else {
		// A weight/area change doesn't by itself flip any neighbor's
		// FSM state, so dispatch/bringUpAdjacency won't re-originate on
		// their own; do it here so Router/Summary LSAs pick up the new
		// weight or area membership.
		for id := range k.locals {
			if _, ok := k.routers[id]; ok {
				k.refreshLocalOrigination(id)
			}
		}
	}
	for id, rt := range k.routers {
		if k.g.IsExternal(id) {
			continue
		}
		k.enqueueAll(rt.RefreshIGP(), id)
	}
}

// ConvertToLocal switches every internal router from the global oracle to
// its own local OSPF process, bringing up adjacencies over every existing
// internal link. Convergence is asynchronous, as for any other topology
// change: callers that need the local processes to finish flooding must
// drain the queue (Simulate) before comparing results against the oracle.
func (k *Kernel[P]) ConvertToLocal() error {
	if k.mode == LocalMode {
		return nil
	}
	k.mode = LocalMode
	for id, rt := range k.routers {
		if k.g.IsExternal(id) {
			continue
		}
		rt.SetLocal(k.localFor(id))
	}
	for _, a := range k.g.Routers() {
		if k.g.IsExternal(a) {
			continue
		}
		for _, b := range k.g.Neighbors(a) {
			if a < b && !k.g.IsExternal(b) {
				k.bringUpAdjacency(a, b)
			}
		}
	}
	return nil
}

// ConvertToGlobal switches every router back to the shared oracle.
func (k *Kernel[P]) ConvertToGlobal() error {
	if k.mode == Global {
		return nil
	}
	k.mode = Global
	k.oracle.NotifyTopologyChange()
	for id, rt := range k.routers {
		if k.g.IsExternal(id) {
			continue
		}
		rt.SetOracle(k.oracle)
	}
	k.locals = make(map[RouterId]*ospf.Local)
	return nil
}

// Graph exposes the physical link-state graph for read-only inspection
// (ospf_network in §6).
func (k *Kernel[P]) Graph() *graph.LinkGraph { return k.g }

// GetForwardingState returns a snapshot for GetPaths/black-hole/loop
// inspection (get_forwarding_state in §6).
func (k *Kernel[P]) GetForwardingState() *forward.State[P] {
	return forward.NewState(k.routers)
}

// GetBgpState returns the LOC-RIB route for pfx on every router that has
// one.
func (k *Kernel[P]) GetBgpState(pfx P) map[RouterId]bgp.Route[P] {
	out := make(map[RouterId]bgp.Route[P])
	for id, rt := range k.routers {
		if route, ok := rt.BGP().Rib().Best(pfx); ok {
			out[id] = route
		}
	}
	return out
}

// PartialClone returns a kernel sharing this one's graph and router
// state rather than deep-copying it, per §4.1/§5's "caller asserts
// equivalence" contract: the clone is for read-only exploration (a
// what-if query against the same converged state) and must not be
// mutated or outlive the source kernel, since doing either would also
// affect, or race with, the original.
func (k *Kernel[P]) PartialClone() *Kernel[P] {
	clone := &Kernel[P]{
		id:        k.id,
		g:         k.g,
		routers:   k.routers,
		nextID:    k.nextID,
		mode:      k.mode,
		oracle:    k.oracle,
		locals:    k.locals,
		q:         k.q,
		tickCtr:   k.tickCtr,
		msgLimit:  k.msgLimit,
		newStatic: k.newStatic,
		newRib:    k.newRib,
		log:       k.log.WithField("clone-of", k.id.String()),
	}
	return clone
}

// String identifies this kernel by lineage id, for logging.
func (k *Kernel[P]) String() string {
	return fmt.Sprintf("kernel(%s, %d routers)", k.id, len(k.routers))
}
