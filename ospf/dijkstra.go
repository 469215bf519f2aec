package ospf

import (
	"container/heap"

	"github.com/transitorykris/netsim/graph"
)

// areaEdges is the minimal view of the physical graph Dijkstra needs:
// the routers and, for a given router, its neighbors within one area.
type areaEdges interface {
	Routers() []RouterId
	NeighborsInArea(id RouterId, area Area) []RouterId
	Weight(a, b RouterId) graph.Weight
}

// spfEntry is one row of a single-source shortest-path computation: the
// cost to a destination and the set of this source's own direct
// neighbors that start an equal-cost path to it.
type spfEntry struct {
	cost     uint32
	nextHops []RouterId
}

// dijkstraArea runs single-source Dijkstra from src, restricted to links
// tagged with area, tracking every equal-cost first hop (ECMP) rather
// than an arbitrary single predecessor.
func dijkstraArea(g areaEdges, area Area, src RouterId) map[RouterId]spfEntry {
	const inf = ^uint32(0)
	dist := map[RouterId]uint32{src: 0}
	firstHop := map[RouterId][]RouterId{src: nil}
	visited := map[RouterId]bool{}

	pq := &pqueue{}
	heap.Init(pq)
	heap.Push(pq, pqItem{node: src, dist: 0})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		u := item.node
		if visited[u] {
			continue
		}
		if item.dist > dist[u] {
			continue
		}
		visited[u] = true
		for _, v := range g.NeighborsInArea(u, area) {
			w := uint32(g.Weight(u, v))
			if graph.Weight(w) == graph.Infinite {
				continue
			}
			nd := dist[u] + w
			cur, known := dist[v]
			switch {
			case !known || nd < cur:
				dist[v] = nd
				if u == src {
					firstHop[v] = []RouterId{v}
				} else {
					firstHop[v] = append([]RouterId(nil), firstHop[u]...)
				}
				heap.Push(pq, pqItem{node: v, dist: nd})
			case nd == cur:
				var hops []RouterId
				if u == src {
					hops = []RouterId{v}
				} else {
					hops = firstHop[u]
				}
				firstHop[v] = mergeUnique(firstHop[v], hops)
			}
		}
	}

	out := make(map[RouterId]spfEntry, len(dist))
	for r, d := range dist {
		hops := firstHop[r]
		if r == src {
			hops = nil
		}
		out[r] = spfEntry{cost: d, nextHops: hops}
	}
	return out
}

func mergeUnique(existing, add []RouterId) []RouterId {
	seen := make(map[RouterId]bool, len(existing))
	for _, r := range existing {
		seen[r] = true
	}
	out := append([]RouterId(nil), existing...)
	for _, r := range add {
		if !seen[r] {
			out = append(out, r)
			seen[r] = true
		}
	}
	return out
}

type pqItem struct {
	node RouterId
	dist uint32
}

type pqueue []pqItem

func (p pqueue) Len() int            { return len(p) }
func (p pqueue) Less(i, j int) bool  { return p[i].dist < p[j].dist }
func (p pqueue) Swap(i, j int)       { p[i], p[j] = p[j], p[i] }
func (p *pqueue) Push(x interface{}) { *p = append(*p, x.(pqItem)) }
func (p *pqueue) Pop() interface{} {
	old := *p
	n := len(old)
	item := old[n-1]
	*p = old[:n-1]
	return item
}
