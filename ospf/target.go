// Package ospf implements both forms of OSPF described in §4.4/§4.5: a
// global oracle that computes shortest paths atomically from the full
// link-state graph, and a local process that exchanges DD/LSR/LSU/Ack
// messages and converges to the same result via flooding and SPF.
package ospf

import "github.com/transitorykris/netsim/graph"

// RouterId is the dense router handle shared across the simulator.
type RouterId = graph.RouterId

// Area is an OSPF area identifier.
type Area = graph.Area

// TargetKind distinguishes the three ways a FIB entry can resolve a
// next hop, per §4.4.
type TargetKind int

const (
	// Neighbor resolves only to a direct physical neighbor; no SPF.
	Neighbor TargetKind = iota
	// Ospf resolves via the full shortest-path tree.
	Ospf
	// Drop means the router has no next hop at all.
	Drop
)

// Target is the destination a forwarding lookup asks OSPF to resolve.
type Target struct {
	Kind   TargetKind
	Router RouterId
}

// NeighborTarget builds a direct-neighbor-only target.
func NeighborTarget(r RouterId) Target { return Target{Kind: Neighbor, Router: r} }

// OspfTarget builds a full-SPT target.
func OspfTarget(r RouterId) Target { return Target{Kind: Ospf, Router: r} }

// DropTarget is the null target: always unreachable.
func DropTarget() Target { return Target{Kind: Drop} }

// Result is what OSPF returns for one target: the set of equal-cost next
// hops and the total cost, or ok=false if unreachable.
type Result struct {
	NextHops []RouterId
	Cost     uint32
	OK       bool
}

// Both Oracle and Local satisfy the same capability described in §9's
// "OspfProcess" contract: given a target, produce a Result, and react to
// a neighborhood-change notification. Oracle is process-wide and
// parametrizes Get by the asking router; Local is already bound to one
// router. router.Router adapts whichever is configured to the uniform
// view BGP and the FIB need (see router.igpView).
