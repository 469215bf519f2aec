package ospf

import "github.com/transitorykris/netsim/graph"

// Oracle is the global OSPF implementation of §4.4: a single process-wide
// structure that derives (next_hops, cost) for every (area, src, dst)
// triple by Dijkstra, then stitches areas together through ABRs exactly
// as real multi-area OSPF would via summary advertisement, without
// exchanging any messages.
type Oracle struct {
	g *graph.LinkGraph

	perArea map[Area]map[RouterId]map[RouterId]spfEntry // perArea[a][src][dst]
	global  map[RouterId]map[RouterId]spfEntry           // global[src][dst], areas stitched
	areas   []Area
}

// NewOracle builds an oracle bound to g. Call NotifyTopologyChange once
// the graph is populated, and again after every mutation.
func NewOracle(g *graph.LinkGraph) *Oracle {
	o := &Oracle{g: g}
	o.NotifyTopologyChange()
	return o
}

// NotifyTopologyChange recomputes every per-area SPT and the cross-area
// stitch. The oracle recomputes from scratch; §4.4 only requires that
// "affected areas" are recomputed, which this conservatively satisfies.
func (o *Oracle) NotifyTopologyChange() {
	o.areas = allAreas(o.g)
	o.perArea = make(map[Area]map[RouterId]map[RouterId]spfEntry, len(o.areas))
	for _, a := range o.areas {
		perSrc := make(map[RouterId]map[RouterId]spfEntry)
		for _, r := range o.g.Routers() {
			if o.g.IsExternal(r) {
				continue
			}
			if !inArea(o.g, r, a) {
				continue
			}
			perSrc[r] = dijkstraArea(o.g, a, r)
		}
		o.perArea[a] = perSrc
	}
	o.global = stitchAreas(o.g, o.perArea, o.areas)
}

// Get resolves a forwarding target from router `from`.
func (o *Oracle) Get(from RouterId, target Target) Result {
	switch target.Kind {
	case Drop:
		return Result{}
	case Neighbor:
		if !o.g.HasLink(from, target.Router) {
			return Result{}
		}
		return Result{NextHops: []RouterId{target.Router}, Cost: uint32(o.g.Weight(from, target.Router)), OK: true}
	case Ospf:
		return o.resolve(from, target.Router)
	default:
		return Result{}
	}
}

// CostTo satisfies bgp.IgpView: cost and reachability to an arbitrary
// router, with the §3 exception that an external router directly
// attached to `from` is reachable at cost 0 even though it never runs
// OSPF and so has no entry in any SPT.
func (o *Oracle) CostTo(from, to RouterId) (uint32, bool) {
	if o.g.IsExternal(to) {
		if o.g.HasLink(from, to) {
			return 0, true
		}
		// reachable via whichever internal neighbor of `to` is closest
		best := uint32(0)
		found := false
		for _, attach := range o.g.Neighbors(to) {
			r := o.resolve(from, attach)
			if r.OK && (!found || r.Cost < best) {
				best = r.Cost
				found = true
			}
		}
		return best, found
	}
	r := o.resolve(from, to)
	return r.Cost, r.OK
}

func (o *Oracle) resolve(from, to RouterId) Result {
	row, ok := o.global[from]
	if !ok {
		return Result{}
	}
	e, ok := row[to]
	if !ok {
		return Result{}
	}
	return Result{NextHops: e.nextHops, Cost: e.cost, OK: true}
}

func allAreas(g *graph.LinkGraph) []Area {
	seen := map[Area]bool{graph.Backbone: true}
	for _, r := range g.Routers() {
		for _, a := range g.Areas(r) {
			seen[a] = true
		}
	}
	out := make([]Area, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	return out
}

func inArea(g *graph.LinkGraph, r RouterId, a Area) bool {
	for _, ra := range g.Areas(r) {
		if ra == a {
			return true
		}
	}
	return false
}

// stitchAreas computes the cross-area table described in §4.4: same-area
// direct reachability, then relaxation through every ABR that shares an
// area with the source, bridging into the ABR's other areas, iterated to
// a fixed point (bounded by the number of areas, since each pass can only
// add one more area-boundary hop to any path).
func stitchAreas(g *graph.LinkGraph, perArea map[Area]map[RouterId]map[RouterId]spfEntry, areas []Area) map[RouterId]map[RouterId]spfEntry {
	global := make(map[RouterId]map[RouterId]spfEntry)
	relax := func(src, dst RouterId, e spfEntry) {
		row, ok := global[src]
		if !ok {
			row = make(map[RouterId]spfEntry)
			global[src] = row
		}
		cur, ok := row[dst]
		if !ok || e.cost < cur.cost {
			row[dst] = e
			return
		}
		if e.cost == cur.cost {
			row[dst] = spfEntry{cost: cur.cost, nextHops: mergeUnique(cur.nextHops, e.nextHops)}
		}
	}

	for _, a := range areas {
		for src, row := range perArea[a] {
			for dst, e := range row {
				if dst == src {
					continue
				}
				relax(src, dst, e)
			}
		}
	}

	abrs := make([]RouterId, 0)
	for _, r := range g.Routers() {
		if g.IsABR(r) {
			abrs = append(abrs, r)
		}
	}

	for pass := 0; pass < len(areas)+1; pass++ {
		changed := false
		for _, b := range abrs {
			bAreas := g.Areas(b)
			for _, a1 := range bAreas {
				srcRow := perArea[a1]
				for src, toB := range srcRow {
					eToB, ok := toB[b]
					if !ok || src == b {
						continue
					}
					for _, a2 := range bAreas {
						if a2 == a1 {
							continue
						}
						for dst, eFromB := range global[b] {
							if dst == src {
								continue
							}
							// only cross a2 if the existing global row for
							// b actually originates in area a2's reach set
							if _, ok := perArea[a2][b][dst]; !ok {
								continue
							}
							cand := spfEntry{cost: eToB.cost + eFromB.cost, nextHops: eToB.nextHops}
							before := global[src][dst]
							relax(src, dst, cand)
							after := global[src][dst]
							if after.cost != before.cost || len(after.nextHops) != len(before.nextHops) {
								changed = true
							}
						}
					}
				}
			}
		}
		if !changed {
			break
		}
	}
	return global
}
