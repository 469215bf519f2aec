package router_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/transitorykris/netsim/bgp"
	"github.com/transitorykris/netsim/graph"
	"github.com/transitorykris/netsim/ospf"
	"github.com/transitorykris/netsim/prefix"
	"github.com/transitorykris/netsim/router"
)

func newRouter(id router.RouterId) *router.Router[prefix.IPv4Prefix] {
	return router.New[prefix.IPv4Prefix](
		"r", id, 100, false,
		prefix.NewLPMMap[router.StaticRoute],
		prefix.NewLPMMap[bgp.Route[prefix.IPv4Prefix]],
	)
}

var pfx = prefix.MustIPv4Prefix("10.0.0.0/24")

func TestLookupStaticDropWins(t *testing.T) {
	r := newRouter(1)
	r.SetStaticRoute(pfx, router.StaticRoute{Kind: router.Drop})

	entry := r.Lookup(pfx)
	require.True(t, entry.Dropped)
}

func TestLookupStaticDirectResolvesViaNeighborTarget(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddRouter(1, false))
	require.NoError(t, g.AddRouter(2, false))
	require.NoError(t, g.AddLink(1, 2))
	require.NoError(t, g.SetWeight(1, 2, 5))

	r := newRouter(1)
	r.SetOracle(ospf.NewOracle(g))
	r.SetStaticRoute(pfx, router.StaticRoute{Kind: router.Direct, NextHop: 2})

	entry := r.Lookup(pfx)
	require.False(t, entry.Dropped)
	require.Equal(t, []router.RouterId{2}, entry.NextHops)
}

func TestLookupNoRouteDrops(t *testing.T) {
	r := newRouter(1)
	entry := r.Lookup(pfx)
	require.True(t, entry.Dropped)
}

func TestLookupFallsBackToBgpWhenNoStaticMatches(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddRouter(1, false))
	require.NoError(t, g.AddRouter(2, false))
	require.NoError(t, g.AddRouter(3, false))
	require.NoError(t, g.AddLink(1, 2))
	require.NoError(t, g.AddLink(2, 3))
	require.NoError(t, g.SetWeight(1, 2, 1))
	require.NoError(t, g.SetWeight(2, 3, 1))

	r := newRouter(1)
	oracle := ospf.NewOracle(g)
	r.SetOracle(oracle)
	r.BGP().SetSession(2, bgp.EBgp)
	// An eBGP session always rewrites next hop to the peer that sent it
	// (process.go step 3), so the learned route's next hop becomes 2
	// regardless of what the origin AS put on the wire.
	r.BGP().HandleEvent(2, bgp.UpdateEvent(bgp.Route[prefix.IPv4Prefix]{
		Prefix: pfx, ASPath: bgp.ASPath{300},
	}))

	entry := r.Lookup(pfx)
	require.False(t, entry.Dropped)
	require.Equal(t, []router.RouterId{2}, entry.NextHops, "must resolve the eBGP-learned next hop via OSPF")
}

// diamond builds two equal-cost paths from 1 to 4: 1-2-4 and 1-3-4, each
// hop cost 1, so router 1's SPT to 4 has both 2 and 3 as first hops.
func diamond(t *testing.T) *graph.LinkGraph {
	t.Helper()
	g := graph.New()
	for _, id := range []router.RouterId{1, 2, 3, 4} {
		require.NoError(t, g.AddRouter(id, false))
	}
	require.NoError(t, g.AddLink(1, 2))
	require.NoError(t, g.AddLink(1, 3))
	require.NoError(t, g.AddLink(2, 4))
	require.NoError(t, g.AddLink(3, 4))
	for _, l := range [][2]router.RouterId{{1, 2}, {1, 3}, {2, 4}, {3, 4}} {
		require.NoError(t, g.SetWeight(l[0], l[1], 1))
	}
	return g
}

func TestLoadBalancingOnKeepsEveryEcmpNextHop(t *testing.T) {
	g := diamond(t)
	r := newRouter(1)
	r.SetOracle(ospf.NewOracle(g))
	r.SetLoadBalancing(true)
	r.SetStaticRoute(pfx, router.StaticRoute{Kind: router.Indirect, NextHop: 4})

	entry := r.Lookup(pfx)
	require.False(t, entry.Dropped)
	require.ElementsMatch(t, []router.RouterId{2, 3}, entry.NextHops)
}

func TestLoadBalancingOffCollapsesToLowestRouterId(t *testing.T) {
	g := diamond(t)
	r := newRouter(1)
	r.SetOracle(ospf.NewOracle(g))
	r.SetStaticRoute(pfx, router.StaticRoute{Kind: router.Indirect, NextHop: 4})

	entry := r.Lookup(pfx)
	require.False(t, entry.Dropped)
	require.Equal(t, []router.RouterId{2}, entry.NextHops)
}
