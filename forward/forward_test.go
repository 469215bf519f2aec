package forward_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/transitorykris/netsim/bgp"
	"github.com/transitorykris/netsim/forward"
	"github.com/transitorykris/netsim/graph"
	"github.com/transitorykris/netsim/ospf"
	"github.com/transitorykris/netsim/prefix"
	"github.com/transitorykris/netsim/router"
)

var pfx = prefix.MustIPv4Prefix("10.0.0.0/24")

func newRouter(id router.RouterId) *router.Router[prefix.IPv4Prefix] {
	return router.New[prefix.IPv4Prefix](
		"r", id, 100, false,
		prefix.NewLPMMap[router.StaticRoute],
		prefix.NewLPMMap[bgp.Route[prefix.IPv4Prefix]],
	)
}

// line builds 1-2-3, cost 1 per hop. Routers 1 and 2 hold an Indirect
// static route towards 3, and 3 originates pfx itself, so it serves as the
// destination (delivered at itself).
func line(t *testing.T) (map[router.RouterId]*router.Router[prefix.IPv4Prefix], *graph.LinkGraph) {
	t.Helper()
	g := graph.New()
	for _, id := range []router.RouterId{1, 2, 3} {
		require.NoError(t, g.AddRouter(id, false))
	}
	require.NoError(t, g.AddLink(1, 2))
	require.NoError(t, g.AddLink(2, 3))
	require.NoError(t, g.SetWeight(1, 2, 1))
	require.NoError(t, g.SetWeight(2, 3, 1))

	oracle := ospf.NewOracle(g)
	routers := make(map[router.RouterId]*router.Router[prefix.IPv4Prefix])
	for _, id := range []router.RouterId{1, 2, 3} {
		r := newRouter(id)
		r.SetOracle(oracle)
		routers[id] = r
	}
	routers[1].SetStaticRoute(pfx, router.StaticRoute{Kind: router.Indirect, NextHop: 3})
	routers[2].SetStaticRoute(pfx, router.StaticRoute{Kind: router.Indirect, NextHop: 3})
	routers[3].BGP().AdvertiseRoute(pfx, nil, nil, nil)
	return routers, g
}

func TestGetPathsDeliversAlongShortestPath(t *testing.T) {
	routers, _ := line(t)
	state := forward.NewState(routers)

	path, err := state.GetPaths(1, pfx)
	require.NoError(t, err)
	require.Equal(t, forward.Delivered, path.Result)
	require.Equal(t, []router.RouterId{1, 2, 3}, path.Hops)
}

func TestGetPathsBlackHolesWithNoRoute(t *testing.T) {
	routers, _ := line(t)
	routers[1].RemoveStaticRoute(pfx)
	state := forward.NewState(routers)

	path, err := state.GetPaths(1, pfx)
	require.NoError(t, err)
	require.Equal(t, forward.BlackHole, path.Result)
}

func TestGetPathsUnknownRouterErrors(t *testing.T) {
	routers, _ := line(t)
	state := forward.NewState(routers)

	_, err := state.GetPaths(99, pfx)
	require.Error(t, err)
}

func TestEqualDetectsDivergingForwardingState(t *testing.T) {
	a, _ := line(t)
	b, _ := line(t)
	stateA := forward.NewState(a)
	stateB := forward.NewState(b)

	ids := stateA.Routers()
	ok, err := forward.Equal(stateA, stateB, ids, []prefix.IPv4Prefix{pfx})
	require.NoError(t, err)
	require.True(t, ok, "two independently built but identical topologies must agree on every path")

	b[1].SetStaticRoute(pfx, router.StaticRoute{Kind: router.Drop})
	ok, err = forward.Equal(stateA, stateB, ids, []prefix.IPv4Prefix{pfx})
	require.NoError(t, err)
	require.False(t, ok, "a black-holed router on one side must break convergence equivalence")

	pathA, err := stateA.GetPaths(1, pfx)
	require.NoError(t, err)
	pathB, err := stateB.GetPaths(1, pfx)
	require.NoError(t, err)
	require.NotEmpty(t, cmp.Diff(pathA, pathB), "the two paths must actually differ once router 1 diverges")
}
