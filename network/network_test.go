package network_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/transitorykris/netsim/bgp"
	"github.com/transitorykris/netsim/forward"
	"github.com/transitorykris/netsim/graph"
	"github.com/transitorykris/netsim/network"
	"github.com/transitorykris/netsim/prefix"
	"github.com/transitorykris/netsim/queue"
	"github.com/transitorykris/netsim/router"
)

func newKernel() *network.Kernel[prefix.IPv4Prefix] {
	return network.New[prefix.IPv4Prefix](
		queue.NewBasicFIFO(),
		prefix.NewLPMMap[router.StaticRoute],
		prefix.NewLPMMap[bgp.Route[prefix.IPv4Prefix]],
	)
}

var pfx = prefix.MustIPv4Prefix("203.0.113.0/24")

// lineKernel builds int1-int2-ext3, ext3 originating pfx, iBGP between
// int1/int2 and eBGP from int2 to ext3.
func lineKernel(t *testing.T) (*network.Kernel[prefix.IPv4Prefix], router.RouterId, router.RouterId, router.RouterId) {
	t.Helper()
	k := newKernel()
	k.AutoSimulation()

	r1, err := k.AddRouter("r1", 100, false)
	require.NoError(t, err)
	r2, err := k.AddRouter("r2", 100, false)
	require.NoError(t, err)
	r3, err := k.AddRouter("r3", 200, true)
	require.NoError(t, err)

	require.NoError(t, k.AddLink(r1, r2))
	require.NoError(t, k.AddLink(r2, r3))
	require.NoError(t, k.SetLinkWeight(r1, r2, 1))
	require.NoError(t, k.SetLinkWeight(r2, r3, 1))

	require.NoError(t, k.SetBgpSession(r1, r2, bgp.IBgpPeer))
	require.NoError(t, k.SetBgpSession(r2, r3, bgp.EBgp))

	require.NoError(t, k.AdvertiseExternalRoute(r3, pfx, bgp.ASPath{200}, nil, nil))
	require.NoError(t, k.Simulate())
	return k, r1, r2, r3
}

func TestAdvertiseExternalRoutePropagatesIntoLocRib(t *testing.T) {
	k, r1, _, _ := lineKernel(t)
	rt, err := k.GetDevice(r1)
	require.NoError(t, err)

	route, ok := rt.BGP().Rib().Best(pfx)
	require.True(t, ok, "the internal router must learn the external route via iBGP")
	require.Equal(t, bgp.ASPath{200}, route.ASPath)
}

func TestGetForwardingStateDeliversToExternalOrigin(t *testing.T) {
	k, r1, _, r3 := lineKernel(t)
	state := k.GetForwardingState()

	path, err := state.GetPaths(r1, pfx)
	require.NoError(t, err)
	require.Equal(t, forward.Delivered, path.Result)
	require.Equal(t, []router.RouterId{r1, r3}, []router.RouterId{path.Hops[0], path.Hops[len(path.Hops)-1]})
}

func TestSimulateIsDeterministicAcrossRebuilds(t *testing.T) {
	build := func() *network.Kernel[prefix.IPv4Prefix] {
		k, _, _, _ := lineKernel(t)
		return k
	}
	a, b := build(), build()

	stateA, stateB := a.GetForwardingState(), b.GetForwardingState()
	ok, err := forward.Equal(stateA, stateB, stateA.Routers(), []prefix.IPv4Prefix{pfx})
	require.NoError(t, err)
	require.True(t, ok, "two independently built, identically configured kernels must converge to the same forwarding state")
}

func TestConvertToLocalPreservesForwardingState(t *testing.T) {
	k, r1, _, _ := lineKernel(t)
	before := k.GetForwardingState()
	rids := before.Routers()

	require.NoError(t, k.ConvertToLocal())
	require.NoError(t, k.Simulate())
	after := k.GetForwardingState()

	ok, err := forward.Equal(before, after, rids, []prefix.IPv4Prefix{pfx})
	require.NoError(t, err)
	require.True(t, ok, "converting the global oracle to per-router flooding must not change any forwarding decision")
	_ = r1
}

func TestConvertToGlobalRoundTrip(t *testing.T) {
	k, _, _, _ := lineKernel(t)
	before := k.GetForwardingState()
	rids := before.Routers()

	require.NoError(t, k.ConvertToLocal())
	require.NoError(t, k.Simulate())
	require.NoError(t, k.ConvertToGlobal())
	after := k.GetForwardingState()

	ok, err := forward.Equal(before, after, rids, []prefix.IPv4Prefix{pfx})
	require.NoError(t, err)
	require.True(t, ok, "converting local back to global must round-trip to the same forwarding state")
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	k, r1, _, _ := lineKernel(t)
	before := k.GetForwardingState()
	rids := before.Routers()

	data, err := k.Marshal(network.IPv4Codec{})
	require.NoError(t, err)

	restored, err := network.UnmarshalKernel[prefix.IPv4Prefix](
		data, network.IPv4Codec{}, queue.NewBasicFIFO(),
		prefix.NewLPMMap[router.StaticRoute],
		prefix.NewLPMMap[bgp.Route[prefix.IPv4Prefix]],
	)
	require.NoError(t, err)

	after := restored.GetForwardingState()
	ok, err := forward.Equal(before, after, rids, []prefix.IPv4Prefix{pfx})
	require.NoError(t, err)
	require.True(t, ok, "a round trip through Marshal/UnmarshalKernel must preserve forwarding behavior")

	rt, err := restored.GetDevice(r1)
	require.NoError(t, err)
	route, ok := rt.BGP().Rib().Best(pfx)
	require.True(t, ok)
	require.Equal(t, bgp.ASPath{200}, route.ASPath)
}

func TestRemoveLinkBreaksConnectivity(t *testing.T) {
	k, r1, r2, _ := lineKernel(t)
	require.NoError(t, k.RemoveLink(r1, r2))
	require.NoError(t, k.Simulate())

	path, err := k.GetForwardingState().GetPaths(r1, pfx)
	require.NoError(t, err)
	require.Equal(t, forward.BlackHole, path.Result, "removing the only link to the rest of the topology must black-hole r1's traffic")
}

func TestTriggerEventRejectsUnknownDestination(t *testing.T) {
	k := newKernel()
	ok := k.TriggerEvent(queue.Event{Dst: graph.RouterId(999)})
	require.False(t, ok)
}
