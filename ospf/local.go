package ospf

import (
	"container/heap"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/transitorykris/netsim/graph"
)

// OutEvent is one message a Local process wants delivered to a neighbor.
// The kernel is responsible for queuing it and eventually calling
// HandleEvent on the receiving router's Local.
type OutEvent struct {
	Dst RouterId
	Msg Message
}

// Local is the distributed OSPF implementation of §4.5: routers discover
// topology only by exchanging DD/LSR/LSU/Ack messages over adjacencies
// and flooding link-state advertisements, then each runs its own SPF
// over whatever its local database currently holds.
type Local struct {
	self RouterId
	g    *graph.LinkGraph

	neighbors map[RouterId]*Neighbor
	dbs       map[Area]*database

	selfSeq map[LsaKey]uint32

	table map[RouterId]spfEntry

	log *logrus.Entry
}

// NewLocal builds a Local OSPF process for router self. g is used to read
// the router's own configured links, areas, and weights. The one
// exception is an external target (Get, CostTo), whose attachment links
// and weights are read from g because no LSA describes them.
func NewLocal(self RouterId, g *graph.LinkGraph) *Local {
	l := &Local{
		self:      self,
		g:         g,
		neighbors: make(map[RouterId]*Neighbor),
		dbs:       make(map[Area]*database),
		selfSeq:   make(map[LsaKey]uint32),
		table:     make(map[RouterId]spfEntry),
		log:       logrus.WithField("router", uint32(self)),
	}
	for _, a := range g.Areas(self) {
		l.dbs[a] = newDatabase()
	}
	return l
}

func (l *Local) dbFor(a Area) *database {
	d, ok := l.dbs[a]
	if !ok {
		d = newDatabase()
		l.dbs[a] = d
	}
	return d
}

// Databases returns a copy of every per-area LSA database, for
// serialization.
func (l *Local) Databases() map[Area]map[LsaKey]Lsa {
	out := make(map[Area]map[LsaKey]Lsa, len(l.dbs))
	for a, db := range l.dbs {
		inner := make(map[LsaKey]Lsa, len(db.lsas))
		for k, lsa := range db.lsas {
			inner[k] = lsa
		}
		out[a] = inner
	}
	return out
}

// RestoreDatabases installs previously-serialized LSA databases directly,
// bypassing flooding, and recomputes the local SPF table against them.
// selfSeq is seeded from any self-originated LSAs found so a later
// RefreshSelfOriginated continues the sequence rather than restarting it.
func (l *Local) RestoreDatabases(dbs map[Area]map[LsaKey]Lsa) {
	l.dbs = make(map[Area]*database, len(dbs))
	for a, lsas := range dbs {
		db := newDatabase()
		for k, lsa := range lsas {
			db.install(k, lsa)
			if k.Originator == l.self && lsa.Header.Seq > l.selfSeq[k] {
				l.selfSeq[k] = lsa.Header.Seq
			}
		}
		l.dbs[a] = db
	}
	l.recomputeTable()
}

// NeighborUp brings up a new adjacency to remote in area a, per §4.5:
// both ends move straight to Exchange and trade database headers. The
// kernel calls this once when a link comes up (or an OSPF process is
// swapped in over an existing link), for each endpoint independently.
func (l *Local) NeighborUp(remote RouterId, a Area) []OutEvent {
	n := newNeighbor(l.self, remote, a)
	n.State = Exchange
	l.neighbors[remote] = n
	return []OutEvent{{Dst: remote, Msg: ddMessage(l.dbFor(a).headers())}}
}

// NeighborDown tears down an adjacency, e.g. because its link failed.
func (l *Local) NeighborDown(remote RouterId) {
	delete(l.neighbors, remote)
}

// HandleEvent processes one message received from src and returns
// whatever follow-up messages it provokes, per §4.5/§9.
func (l *Local) HandleEvent(src RouterId, msg Message) []OutEvent {
	n, ok := l.neighbors[src]
	if !ok {
		return nil
	}
	switch {
	case msg.DatabaseDescription != nil:
		return l.handleDD(n, msg.DatabaseDescription)
	case msg.LinkStateRequest != nil:
		return l.handleLSR(n, msg.LinkStateRequest)
	case msg.LinkStateUpdate != nil:
		return l.handleLSU(n, msg.LinkStateUpdate)
	default:
		return nil
	}
}

func (l *Local) handleDD(n *Neighbor, dd *DatabaseDescriptionMsg) []OutEvent {
	n.peerHeaders = dd.Headers
	db := l.dbFor(n.Area)

	var missing []LsaKey
	for k, h := range dd.Headers {
		stored, ok := db.get(k)
		if !ok || h.newer(stored.Header) {
			missing = append(missing, k)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return lsaKeyLess(missing[i], missing[j]) })

	if len(missing) == 0 {
		n.State = Full
		return nil
	}

	n.State = Loading
	n.pending = make(map[LsaKey]bool, len(missing))
	for _, k := range missing {
		n.pending[k] = true
	}
	return []OutEvent{{Dst: n.Remote, Msg: lsrMessage(missing)}}
}

func (l *Local) handleLSR(n *Neighbor, lsr *LinkStateRequestMsg) []OutEvent {
	db := l.dbFor(n.Area)
	lsas := make(map[LsaKey]Lsa, len(lsr.Keys))
	for _, k := range lsr.Keys {
		if lsa, ok := db.get(k); ok {
			lsas[k] = lsa
		}
	}
	if len(lsas) == 0 {
		return nil
	}
	return []OutEvent{{Dst: n.Remote, Msg: luMessage(lsas, false)}}
}

// handleLSU implements §4.5's exact flooding rule per advertised LSA:
// newer -> install, ack, flood to every other Full neighbor in the area;
// equal -> ack only; older -> reply with our newer copy.
func (l *Local) handleLSU(n *Neighbor, lu *LinkStateUpdateMsg) []OutEvent {
	db := l.dbFor(n.Area)
	var out []OutEvent

	toAck := make(map[LsaKey]Lsa)
	toFlood := make(map[LsaKey]Lsa)
	reply := make(map[LsaKey]Lsa)
	changed := false

	for k, incoming := range lu.Lsas {
		stored, ok := db.get(k)
		switch {
		case !ok || incoming.Header.newer(stored.Header):
			db.install(k, incoming)
			toAck[k] = incoming
			toFlood[k] = incoming
			changed = true
			delete(n.pending, k)
		case incoming.Header == stored.Header:
			toAck[k] = incoming
			delete(n.pending, k)
		default:
			reply[k] = stored
		}
	}

	if !lu.Ack && len(toAck) > 0 {
		out = append(out, OutEvent{Dst: n.Remote, Msg: luMessage(toAck, true)})
	}
	if len(reply) > 0 {
		out = append(out, OutEvent{Dst: n.Remote, Msg: luMessage(reply, false)})
	}
	if len(toFlood) > 0 {
		for id, other := range l.neighbors {
			if id == n.Remote || other.Area != n.Area || other.State != Full {
				continue
			}
			out = append(out, OutEvent{Dst: id, Msg: luMessage(toFlood, false)})
		}
	}

	if n.State == Loading && len(n.pending) == 0 {
		n.State = Full
	}
	if changed {
		l.recomputeTable()
	}
	return out
}

// OriginateRouterLSA (re)builds this router's Router LSA for area a from
// its Full-state in-area neighbors and floods it if the content changed.
// The kernel calls this after every link/neighbor-state change; nothing
// calls it on a periodic schedule.
func (l *Local) OriginateRouterLSA(a Area) []OutEvent {
	var adj []Adjacency
	for _, n := range l.neighbors {
		if n.Area != a || n.State != Full {
			continue
		}
		adj = append(adj, Adjacency{Target: n.Remote, Weight: l.g.Weight(l.self, n.Remote)})
	}
	sort.Slice(adj, func(i, j int) bool { return adj[i].Target < adj[j].Target })

	key := LsaKey{Type: RouterLsaType, Originator: l.self, Target: l.self}
	return l.originate(a, key, Lsa{Router: &RouterLsaData{Adjacencies: adj}})
}

// OriginateSummaryLSAs advertises, into each of this ABR's areas, its own
// best cost to every internal target reachable through its other areas,
// per §4.4/§4.5.
func (l *Local) OriginateSummaryLSAs() []OutEvent {
	var out []OutEvent
	if len(l.areas2()) < 2 {
		return nil
	}
	areaTables := make(map[Area]map[RouterId]spfEntry)
	for _, a := range l.areas2() {
		areaTables[a] = l.spfFromDB(a)
	}
	for _, a := range l.areas2() {
		best := make(map[RouterId]uint32)
		for other, tbl := range areaTables {
			if other == a {
				continue
			}
			for dst, e := range tbl {
				if dst == l.self {
					continue
				}
				if cur, ok := best[dst]; !ok || e.cost < cur {
					best[dst] = e.cost
				}
			}
		}
		for dst, cost := range best {
			key := LsaKey{Type: SummaryLsaType, Originator: l.self, Target: dst}
			out = append(out, l.originate(a, key, Lsa{Summary: &SummaryLsaData{Cost: cost}})...)
		}
	}
	return out
}

// OriginateExternalLSAs floods, into every area this router belongs to,
// one External LSA per external neighbor it is directly attached to.
func (l *Local) OriginateExternalLSAs() []OutEvent {
	var out []OutEvent
	for _, ext := range l.g.Neighbors(l.self) {
		if !l.g.IsExternal(ext) {
			continue
		}
		cost := uint32(l.g.Weight(l.self, ext))
		key := LsaKey{Type: ExternalLsaType, Originator: l.self, Target: ext}
		for _, a := range l.areas2() {
			out = append(out, l.originate(a, key, Lsa{External: &ExternalLsaData{Cost: cost}})...)
		}
	}
	return out
}

func (l *Local) originate(a Area, key LsaKey, body Lsa) []OutEvent {
	db := l.dbFor(a)
	stored, existed := db.get(key)
	if existed && lsaBodyEqual(stored, body) {
		return nil
	}
	seq := l.selfSeq[key] + 1
	l.selfSeq[key] = seq
	body.Header = LsaHeader{Seq: seq, Age: 0}
	db.install(key, body)

	var out []OutEvent
	for id, n := range l.neighbors {
		if n.Area != a || n.State != Full {
			continue
		}
		out = append(out, OutEvent{Dst: id, Msg: luMessage(map[LsaKey]Lsa{key: body}, false)})
	}
	return out
}

func lsaBodyEqual(a, b Lsa) bool {
	switch {
	case a.Router != nil && b.Router != nil:
		if len(a.Router.Adjacencies) != len(b.Router.Adjacencies) {
			return false
		}
		for i := range a.Router.Adjacencies {
			if a.Router.Adjacencies[i] != b.Router.Adjacencies[i] {
				return false
			}
		}
		return true
	case a.Summary != nil && b.Summary != nil:
		return *a.Summary == *b.Summary
	case a.External != nil && b.External != nil:
		return *a.External == *b.External
	default:
		return false
	}
}

// RefreshSelfOriginated rebuilds every LSA this router originates
// (Router, Summary and External) and floods those whose content changed.
// An LSA whose content is unchanged keeps its sequence number and is not
// re-flooded, so this does not keep an unchanged LSA from reaching
// MaxAge. The kernel does not call it.
func (l *Local) RefreshSelfOriginated() []OutEvent {
	var out []OutEvent
	for _, a := range l.areas2() {
		out = append(out, l.OriginateRouterLSA(a)...)
	}
	out = append(out, l.OriginateSummaryLSAs()...)
	out = append(out, l.OriginateExternalLSAs()...)
	return out
}

// AgeAndPurge advances every LSA's age by one tick and drops any that
// reach MaxAge, mirroring real OSPF's stale-advertisement sweep.
func (l *Local) AgeAndPurge() {
	changed := false
	for _, db := range l.dbs {
		var stale []LsaKey
		for k, lsa := range db.lsas {
			lsa.Header.Age++
			db.lsas[k] = lsa
			if lsa.maxAged() {
				stale = append(stale, k)
			}
		}
		for _, k := range stale {
			db.purge(k)
			changed = true
		}
	}
	if changed {
		l.recomputeTable()
	}
}

// Get resolves a forwarding target the same way Oracle.Get does, but
// sourced entirely from this router's own local database and neighbor
// table.
func (l *Local) Get(target Target) Result {
	switch target.Kind {
	case Drop:
		return Result{}
	case Neighbor:
		if !l.g.HasLink(l.self, target.Router) {
			return Result{}
		}
		return Result{NextHops: []RouterId{target.Router}, Cost: uint32(l.g.Weight(l.self, target.Router)), OK: true}
	case Ospf:
		if l.g.IsExternal(target.Router) {
			return l.resolveExternal(target.Router)
		}
		e, ok := l.table[target.Router]
		if !ok {
			return Result{}
		}
		return Result{NextHops: e.nextHops, Cost: e.cost, OK: true}
	default:
		return Result{}
	}
}

// resolveExternal mirrors Oracle's dijkstra treating an external neighbor
// as an ordinary destination reachable through whichever of its internal
// attachment points gives the lowest total cost, ECMP-merging ties. The
// local database never carries a Router LSA for an external router (it
// never runs OSPF), so this can't come from l.table the way an internal
// target does.
func (l *Local) resolveExternal(to RouterId) Result {
	if l.g.HasLink(l.self, to) {
		return Result{NextHops: []RouterId{to}, Cost: uint32(l.g.Weight(l.self, to)), OK: true}
	}
	var best spfEntry
	found := false
	for _, attach := range l.g.Neighbors(to) {
		e, ok := l.table[attach]
		if !ok {
			continue
		}
		cand := spfEntry{cost: e.cost + uint32(l.g.Weight(attach, to)), nextHops: e.nextHops}
		switch {
		case !found || cand.cost < best.cost:
			best, found = cand, true
		case cand.cost == best.cost:
			best = spfEntry{cost: best.cost, nextHops: mergeUnique(best.nextHops, cand.nextHops)}
		}
	}
	if !found {
		return Result{}
	}
	return Result{NextHops: best.nextHops, Cost: best.cost, OK: true}
}

// CostTo satisfies the same contract as Oracle.CostTo.
func (l *Local) CostTo(to RouterId) (uint32, bool) {
	if l.g.IsExternal(to) {
		if l.g.HasLink(l.self, to) {
			return 0, true
		}
		best := uint32(0)
		found := false
		for _, attach := range l.g.Neighbors(to) {
			if e, ok := l.table[attach]; ok && (!found || e.cost < best) {
				best = e.cost
				found = true
			}
		}
		return best, found
	}
	e, ok := l.table[to]
	return e.cost, ok
}

func (l *Local) recomputeTable() {
	areaTables := make(map[Area]map[RouterId]spfEntry)
	for _, a := range l.areas2() {
		areaTables[a] = l.spfFromDB(a)
	}

	table := make(map[RouterId]spfEntry)
	for _, tbl := range areaTables {
		for dst, e := range tbl {
			if dst == l.self {
				continue
			}
			cur, ok := table[dst]
			if !ok || e.cost < cur.cost {
				table[dst] = e
			} else if e.cost == cur.cost {
				table[dst] = spfEntry{cost: cur.cost, nextHops: mergeUnique(cur.nextHops, e.nextHops)}
			}
		}
	}

	for a, db := range l.dbs {
		areaTbl := areaTables[a]
		for k, lsa := range db.lsas {
			if k.Type != SummaryLsaType || lsa.Summary == nil {
				continue
			}
			toABR, ok := areaTbl[k.Originator]
			if !ok {
				continue
			}
			cand := spfEntry{cost: toABR.cost + lsa.Summary.Cost, nextHops: toABR.nextHops}
			cur, ok := table[k.Target]
			if !ok || cand.cost < cur.cost {
				table[k.Target] = cand
			} else if cand.cost == cur.cost {
				table[k.Target] = spfEntry{cost: cur.cost, nextHops: mergeUnique(cur.nextHops, cand.nextHops)}
			}
		}
	}

	l.table = table
}

func (l *Local) areas2() []Area {
	return l.g.Areas(l.self)
}

// spfFromDB runs Dijkstra over exactly the Router LSAs installed in this
// router's own per-area database, never the shared graph, since a real
// local process only knows what flooding has told it.
func (l *Local) spfFromDB(a Area) map[RouterId]spfEntry {
	db := l.dbFor(a)
	adj := make(map[RouterId][]Adjacency)
	for k, lsa := range db.lsas {
		if k.Type != RouterLsaType || lsa.Router == nil {
			continue
		}
		adj[k.Originator] = lsa.Router.Adjacencies
	}
	if _, ok := adj[l.self]; !ok {
		adj[l.self] = nil
	}

	dist := map[RouterId]uint32{l.self: 0}
	firstHop := map[RouterId][]RouterId{l.self: nil}

	pq := &pqueue{{node: l.self, dist: 0}}
	heap.Init(pq)
	visited := make(map[RouterId]bool)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		u := item.node
		if visited[u] {
			continue
		}
		visited[u] = true
		for _, e := range adj[u] {
			nd := dist[u] + uint32(e.Weight)
			cur, ok := dist[e.Target]
			if !ok || nd < cur {
				dist[e.Target] = nd
				if u == l.self {
					firstHop[e.Target] = []RouterId{e.Target}
				} else {
					firstHop[e.Target] = firstHop[u]
				}
				heap.Push(pq, pqItem{node: e.Target, dist: nd})
			} else if ok && nd == cur {
				var add []RouterId
				if u == l.self {
					add = []RouterId{e.Target}
				} else {
					add = firstHop[u]
				}
				firstHop[e.Target] = mergeUnique(firstHop[e.Target], add)
			}
		}
	}

	out := make(map[RouterId]spfEntry, len(dist))
	for r, d := range dist {
		out[r] = spfEntry{cost: d, nextHops: firstHop[r]}
	}
	return out
}

func lsaKeyLess(a, b LsaKey) bool {
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	if a.Originator != b.Originator {
		return a.Originator < b.Originator
	}
	return a.Target < b.Target
}
