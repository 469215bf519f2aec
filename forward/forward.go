// Package forward derives forwarding paths and black-hole/loop
// diagnostics from a kernel's router set, per §4.6 and §8's loop-freedom
// and convergence-equivalence properties.
package forward

import (
	"sort"

	"github.com/transitorykris/netsim/graph"
	"github.com/transitorykris/netsim/prefix"
	"github.com/transitorykris/netsim/router"
	"github.com/transitorykris/netsim/simerr"
)

// RouterId is the dense handle shared across the simulator.
type RouterId = graph.RouterId

// Result classifies how a traced path ended.
type Result int

const (
	// Delivered means the path reached a router that forwards traffic
	// for the prefix to itself (a router that originates the prefix).
	Delivered Result = iota
	// BlackHole means some router along the path had no route for the
	// prefix, or an explicit Drop static route.
	BlackHole
	// Loop means a router appeared twice in the trace.
	Loop
)

func (r Result) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case BlackHole:
		return "black-hole"
	case Loop:
		return "loop"
	default:
		return "unknown"
	}
}

// Path is one traced forwarding path from a source router for a prefix.
type Path struct {
	Hops   []RouterId
	Result Result
}

// State is an inspectable snapshot of every router's FIB, per §6's
// get_forwarding_state. It holds a reference to the live router set, not
// a deep copy: the kernel's single-threaded cooperative scheduling (§5)
// means nothing mutates router state between the snapshot and a caller's
// reads of it.
type State[P prefix.P] struct {
	routers map[RouterId]*router.Router[P]
}

// NewState wraps a kernel's router set for inspection.
func NewState[P prefix.P](routers map[RouterId]*router.Router[P]) *State[P] {
	return &State[P]{routers: routers}
}

// GetPaths traces the forwarding path for prefix pfx starting at src,
// per §4.6's lookup algorithm applied hop by hop. With ECMP next hops the
// lowest RouterId is followed, matching the deterministic tie-break
// Router.Lookup itself applies when load balancing is disabled.
func (s *State[P]) GetPaths(src RouterId, pfx P) (Path, error) {
	if _, ok := s.routers[src]; !ok {
		return Path{}, simerr.TopologyErrorf("unknown router %d", src)
	}
	visited := map[RouterId]bool{src: true}
	hops := []RouterId{src}
	current := src

	for i := 0; i <= len(s.routers); i++ {
		rt, ok := s.routers[current]
		if !ok {
			return Path{Hops: hops, Result: BlackHole}, nil
		}
		entry := rt.Lookup(pfx)
		if entry.Dropped || len(entry.NextHops) == 0 {
			return Path{Hops: hops, Result: BlackHole}, nil
		}
		next := lowest(entry.NextHops)
		if next == current {
			return Path{Hops: hops, Result: Delivered}, nil
		}
		if visited[next] {
			hops = append(hops, next)
			return Path{Hops: hops, Result: Loop}, nil
		}
		visited[next] = true
		hops = append(hops, next)
		current = next
	}
	// Exceeded the router-count bound. Every pass adds a not-yet-visited
	// hop, and a hop outside the router set ends the trace as a black hole
	// above, so this is only a safety net; report a loop rather than hang.
	return Path{Hops: hops, Result: Loop}, nil
}

func lowest(ids []RouterId) RouterId {
	best := ids[0]
	for _, id := range ids[1:] {
		if id < best {
			best = id
		}
	}
	return best
}

// Routers returns every router id in the snapshot, sorted.
func (s *State[P]) Routers() []RouterId {
	out := make([]RouterId, 0, len(s.routers))
	for id := range s.routers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Equal reports whether two snapshots agree on GetPaths for every router
// in rids and every prefix in prefixes — the comparison §8's
// convergence-equivalence and global/local-conversion properties need.
func Equal[P prefix.P](a, b *State[P], rids []RouterId, prefixes []P) (bool, error) {
	for _, id := range rids {
		for _, pfx := range prefixes {
			pa, err := a.GetPaths(id, pfx)
			if err != nil {
				return false, err
			}
			pb, err := b.GetPaths(id, pfx)
			if err != nil {
				return false, err
			}
			if !pathsEqual(pa, pb) {
				return false, nil
			}
		}
	}
	return true, nil
}

func pathsEqual(a, b Path) bool {
	if a.Result != b.Result || len(a.Hops) != len(b.Hops) {
		return false
	}
	for i := range a.Hops {
		if a.Hops[i] != b.Hops[i] {
			return false
		}
	}
	return true
}
