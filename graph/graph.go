// Package graph implements the physical link-state graph: an undirected
// multigraph of router identifiers, each internal edge carrying a weight
// and an OSPF area, plus a separate set of externally-attached routers.
//
// The vertex/edge bookkeeping is delegated to github.com/katalvlaran/lvlath's
// core.Graph (grounded in the katalvlaran-lvlath examples in the
// retrieval pack); lvlath's edges carry a single scalar weight, so the
// per-edge OSPF area is kept in a side map keyed by the edge id lvlath
// hands back from AddEdge.
package graph

import (
	"fmt"
	"strconv"

	"github.com/katalvlaran/lvlath/core"
)

// RouterId is an opaque dense handle into the graph; it is also the key
// lvlath uses for its string-identified vertices (formatted as a decimal
// integer so router identity and vertex identity stay in lockstep).
type RouterId uint32

func (r RouterId) String() string { return strconv.FormatUint(uint64(r), 10) }

func (r RouterId) vertex() string { return r.String() }

func parseRouterId(v string) RouterId {
	n, _ := strconv.ParseUint(v, 10, 32)
	return RouterId(n)
}

// Area is an OSPF area identifier; area 0 is the backbone.
type Area uint32

// Backbone is OSPF area 0.
const Backbone Area = 0

// Weight is a link metric. Infinite means "no link configured yet".
type Weight uint32

// Infinite marks a link that has been added but never given a finite
// weight, per §4.1: "links default to infinite weight until set".
const Infinite Weight = ^Weight(0)

type edgeMeta struct {
	area     Area
	lvlathID string
}

// LinkGraph is the undirected, areaed multigraph over RouterIds.
type LinkGraph struct {
	g        *core.Graph
	edges    map[RouterId]map[RouterId]edgeMeta
	external map[RouterId]bool
}

// New creates an empty link-state graph.
func New() *LinkGraph {
	return &LinkGraph{
		g:        core.NewGraph(core.WithWeighted(), core.WithDirected(false)),
		edges:    make(map[RouterId]map[RouterId]edgeMeta),
		external: make(map[RouterId]bool),
	}
}

// AddRouter registers a router vertex. external marks a router that only
// originates routes and never runs OSPF/BGP decision.
func (lg *LinkGraph) AddRouter(id RouterId, external bool) error {
	if err := lg.g.AddVertex(id.vertex()); err != nil {
		return fmt.Errorf("add router %d: %w", id, err)
	}
	if external {
		lg.external[id] = true
	}
	lg.edges[id] = make(map[RouterId]edgeMeta)
	return nil
}

// RemoveRouter deletes a router and every incident link.
func (lg *LinkGraph) RemoveRouter(id RouterId) error {
	if err := lg.g.RemoveVertex(id.vertex()); err != nil {
		return fmt.Errorf("remove router %d: %w", id, err)
	}
	for other := range lg.edges[id] {
		delete(lg.edges[other], id)
	}
	delete(lg.edges, id)
	delete(lg.external, id)
	return nil
}

// IsExternal reports whether id was registered as an external router.
func (lg *LinkGraph) IsExternal(id RouterId) bool { return lg.external[id] }

// AddLink adds an undirected link with infinite weight in area 0. Use
// SetWeight/SetArea to configure it afterwards.
func (lg *LinkGraph) AddLink(a, b RouterId) error {
	if lg.HasLink(a, b) {
		return fmt.Errorf("link %d-%d already exists", a, b)
	}
	id, err := lg.g.AddEdge(a.vertex(), b.vertex(), float64(Infinite))
	if err != nil {
		return fmt.Errorf("add link %d-%d: %w", a, b, err)
	}
	meta := edgeMeta{area: Backbone, lvlathID: id}
	lg.edges[a][b] = meta
	lg.edges[b][a] = meta
	return nil
}

// RemoveLink tears down the link between a and b, if any.
func (lg *LinkGraph) RemoveLink(a, b RouterId) error {
	meta, ok := lg.edges[a][b]
	if !ok {
		return fmt.Errorf("no link %d-%d", a, b)
	}
	if err := lg.g.RemoveEdge(meta.lvlathID); err != nil {
		return fmt.Errorf("remove link %d-%d: %w", a, b, err)
	}
	delete(lg.edges[a], b)
	delete(lg.edges[b], a)
	return nil
}

// HasLink reports whether a and b are directly connected.
func (lg *LinkGraph) HasLink(a, b RouterId) bool {
	_, ok := lg.edges[a][b]
	return ok
}

// SetWeight sets the (symmetric) weight of link a-b. lvlath's edges are
// immutable once inserted, so reweighing removes and re-adds the edge,
// preserving its area tag under the new edge id.
func (lg *LinkGraph) SetWeight(a, b RouterId, w Weight) error {
	meta, ok := lg.edges[a][b]
	if !ok {
		return fmt.Errorf("no link %d-%d", a, b)
	}
	if err := lg.g.RemoveEdge(meta.lvlathID); err != nil {
		return fmt.Errorf("set weight %d-%d: %w", a, b, err)
	}
	id, err := lg.g.AddEdge(a.vertex(), b.vertex(), float64(w))
	if err != nil {
		return fmt.Errorf("set weight %d-%d: %w", a, b, err)
	}
	meta.lvlathID = id
	lg.edges[a][b] = meta
	lg.edges[b][a] = meta
	return nil
}

// Weight returns the configured weight of link a-b, or Infinite if there
// is no such link.
func (lg *LinkGraph) Weight(a, b RouterId) Weight {
	meta, ok := lg.edges[a][b]
	if !ok {
		return Infinite
	}
	e, err := lg.g.GetEdge(meta.lvlathID)
	if err != nil {
		return Infinite
	}
	return Weight(e.Weight)
}

// SetArea assigns an OSPF area to link a-b.
func (lg *LinkGraph) SetArea(a, b RouterId, area Area) error {
	meta, ok := lg.edges[a][b]
	if !ok {
		return fmt.Errorf("no link %d-%d", a, b)
	}
	meta.area = area
	lg.edges[a][b] = meta
	lg.edges[b][a] = meta
	return nil
}

// Area returns the OSPF area of link a-b, or false if there is no link.
func (lg *LinkGraph) Area(a, b RouterId) (Area, bool) {
	meta, ok := lg.edges[a][b]
	return meta.area, ok
}

// Neighbors returns the routers directly linked to id, in a deterministic
// (sorted) order.
func (lg *LinkGraph) Neighbors(id RouterId) []RouterId {
	ids, err := lg.g.NeighborIDs(id.vertex())
	if err != nil {
		return nil
	}
	out := make([]RouterId, 0, len(ids))
	for _, v := range ids {
		out = append(out, parseRouterId(v))
	}
	sortRouterIds(out)
	return out
}

// NeighborsInArea returns the subset of Neighbors(id) whose link to id is
// in the given area.
func (lg *LinkGraph) NeighborsInArea(id RouterId, area Area) []RouterId {
	all := lg.Neighbors(id)
	out := all[:0:0]
	for _, n := range all {
		if a, ok := lg.Area(id, n); ok && a == area {
			out = append(out, n)
		}
	}
	return out
}

// Areas returns the set of areas id has at least one adjacency in.
func (lg *LinkGraph) Areas(id RouterId) []Area {
	seen := make(map[Area]bool)
	for _, n := range lg.Neighbors(id) {
		if a, ok := lg.Area(id, n); ok {
			seen[a] = true
		}
	}
	out := make([]Area, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sortAreas(out)
	return out
}

// IsABR reports whether id belongs to two or more OSPF areas.
func (lg *LinkGraph) IsABR(id RouterId) bool { return len(lg.Areas(id)) >= 2 }

// Routers returns every registered router id, sorted.
func (lg *LinkGraph) Routers() []RouterId {
	vs := lg.g.Vertices()
	out := make([]RouterId, 0, len(vs))
	for _, v := range vs {
		out = append(out, parseRouterId(v))
	}
	sortRouterIds(out)
	return out
}

// Clone returns a deep, independent copy of the graph, used by the
// kernel's PartialClone.
func (lg *LinkGraph) Clone() *LinkGraph {
	clone := &LinkGraph{
		g:        lg.g.Clone(),
		edges:    make(map[RouterId]map[RouterId]edgeMeta, len(lg.edges)),
		external: make(map[RouterId]bool, len(lg.external)),
	}
	for r, nbrs := range lg.edges {
		inner := make(map[RouterId]edgeMeta, len(nbrs))
		for n, m := range nbrs {
			inner[n] = m
		}
		clone.edges[r] = inner
	}
	for r, v := range lg.external {
		clone.external[r] = v
	}
	return clone
}

func sortRouterIds(ids []RouterId) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

func sortAreas(areas []Area) {
	for i := 1; i < len(areas); i++ {
		for j := i; j > 0 && areas[j-1] > areas[j]; j-- {
			areas[j-1], areas[j] = areas[j], areas[j-1]
		}
	}
}
