package bgp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/transitorykris/netsim/bgp"
	"github.com/transitorykris/netsim/prefix"
)

func newMap() prefix.Map[prefix.IPv4Prefix, bgp.Route[prefix.IPv4Prefix]] {
	return prefix.NewLPMMap[bgp.Route[prefix.IPv4Prefix]]()
}

// stubIgp reports every target reachable at a fixed cost, standing in for
// an OSPF oracle/local process so the decision process's reachability
// gate never masks the behavior under test.
type stubIgp struct{ cost uint32 }

func (s stubIgp) CostTo(bgp.RouterId) (uint32, bool) { return s.cost, true }

func newProcess(asn bgp.ASN, self bgp.RouterId) *bgp.Process[prefix.IPv4Prefix] {
	p := bgp.NewProcess[prefix.IPv4Prefix](asn, self, false, newMap)
	p.SetIgpView(stubIgp{})
	return p
}

var pfx = prefix.MustIPv4Prefix("10.0.0.0/24")

func TestASPathLoopIsRejected(t *testing.T) {
	p := newProcess(100, 1)
	p.SetSession(2, bgp.EBgp)

	route := bgp.Route[prefix.IPv4Prefix]{Prefix: pfx, ASPath: bgp.ASPath{200, 100}, NextHop: 2}
	events := p.HandleEvent(2, bgp.UpdateEvent(route))
	require.Empty(t, events, "a route whose AS path already contains our own ASN must be dropped")

	_, ok := p.Rib().Best(pfx)
	require.False(t, ok)
}

func TestSplitHorizonNeverAdvertisesBackToLearnedPeer(t *testing.T) {
	p := newProcess(100, 1)
	p.SetSession(2, bgp.EBgp)
	p.SetSession(3, bgp.EBgp)

	route := bgp.Route[prefix.IPv4Prefix]{Prefix: pfx, ASPath: bgp.ASPath{200}, NextHop: 2}
	events := p.HandleEvent(2, bgp.UpdateEvent(route))

	for _, e := range events {
		require.NotEqual(t, bgp.RouterId(2), e.Dst, "must never re-advertise a route back to the peer it was learned from")
	}
	require.Len(t, events, 1)
	require.Equal(t, bgp.RouterId(3), events[0].Dst)
}

func TestWithdrawIsIdempotent(t *testing.T) {
	p := newProcess(100, 1)
	p.SetSession(2, bgp.EBgp)
	p.SetSession(3, bgp.EBgp)

	route := bgp.Route[prefix.IPv4Prefix]{Prefix: pfx, ASPath: bgp.ASPath{200}, NextHop: 2}
	p.HandleEvent(2, bgp.UpdateEvent(route))

	first := p.HandleEvent(2, bgp.WithdrawEvent(pfx))
	require.NotEmpty(t, first, "withdrawing a known route must fan out a withdraw")

	second := p.HandleEvent(2, bgp.WithdrawEvent(pfx))
	require.Empty(t, second, "withdrawing an already-withdrawn route must be a no-op")

	_, ok := p.Rib().Best(pfx)
	require.False(t, ok)
}

func TestHigherLocalPrefWins(t *testing.T) {
	p := newProcess(100, 1)
	p.SetSession(2, bgp.EBgp)
	p.SetSession(3, bgp.EBgp)
	p.SetSession(4, bgp.IBgpPeer)

	low, high := uint32(50), uint32(200)
	p.HandleEvent(2, bgp.UpdateEvent(bgp.Route[prefix.IPv4Prefix]{Prefix: pfx, ASPath: bgp.ASPath{200}, NextHop: 2, LocalPref: &low}))
	p.HandleEvent(3, bgp.UpdateEvent(bgp.Route[prefix.IPv4Prefix]{Prefix: pfx, ASPath: bgp.ASPath{300, 400}, NextHop: 3, LocalPref: &high}))

	best, ok := p.Rib().Best(pfx)
	require.True(t, ok)
	require.Equal(t, bgp.RouterId(3), best.NextHop, "the route with higher local-pref must win even with a longer AS path")
}

func TestInboundRouteMapDenyDropsRoute(t *testing.T) {
	p := newProcess(100, 1)
	p.SetSession(2, bgp.EBgp)

	deny := bgp.NewRouteMap[prefix.IPv4Prefix](bgp.Rule[prefix.IPv4Prefix]{
		Order: 0,
		State: bgp.Deny,
		Match: bgp.Match[prefix.IPv4Prefix]{Prefix: []prefix.IPv4Prefix{pfx}},
	})
	p.SetRouteMap(2, bgp.Incoming, deny)

	events := p.HandleEvent(2, bgp.UpdateEvent(bgp.Route[prefix.IPv4Prefix]{Prefix: pfx, ASPath: bgp.ASPath{200}, NextHop: 2}))
	require.Empty(t, events)
	_, ok := p.Rib().Best(pfx)
	require.False(t, ok)
}

func TestOutboundRouteMapSetsCommunity(t *testing.T) {
	p := newProcess(100, 1)
	p.SetSession(2, bgp.EBgp)
	p.SetSession(3, bgp.EBgp)

	tag := bgp.Community{ASN: 100, Value: 1}
	setCommunity := bgp.NewRouteMap[prefix.IPv4Prefix](bgp.Rule[prefix.IPv4Prefix]{
		Order:   0,
		State:   bgp.Allow,
		Actions: []bgp.SetAction[prefix.IPv4Prefix]{{SetCommunity: []bgp.Community{tag}}},
	})
	p.SetRouteMap(3, bgp.Outgoing, setCommunity)

	events := p.HandleEvent(2, bgp.UpdateEvent(bgp.Route[prefix.IPv4Prefix]{Prefix: pfx, ASPath: bgp.ASPath{200}, NextHop: 2}))
	require.Len(t, events, 1)
	require.True(t, events[0].Event.Update.Community[tag])
}

func TestRouteMapFirstAllowStopsEvaluation(t *testing.T) {
	rm := bgp.NewRouteMap[prefix.IPv4Prefix](
		bgp.Rule[prefix.IPv4Prefix]{Order: 1, State: bgp.Deny, Match: bgp.Match[prefix.IPv4Prefix]{Prefix: []prefix.IPv4Prefix{pfx}}},
		bgp.Rule[prefix.IPv4Prefix]{Order: 0, State: bgp.Allow},
	)
	route := bgp.Route[prefix.IPv4Prefix]{Prefix: pfx, NextHop: 1}
	out, allowed := rm.Apply(route)
	require.True(t, allowed, "the lower-order Allow rule must be evaluated first and stop the chain")
	require.Equal(t, route.Prefix, out.Prefix)
}

func TestRouteMapNoMatchPassesThrough(t *testing.T) {
	other := prefix.MustIPv4Prefix("192.0.2.0/24")
	rm := bgp.NewRouteMap[prefix.IPv4Prefix](bgp.Rule[prefix.IPv4Prefix]{
		Order: 0,
		State: bgp.Deny,
		Match: bgp.Match[prefix.IPv4Prefix]{Prefix: []prefix.IPv4Prefix{other}},
	})
	route := bgp.Route[prefix.IPv4Prefix]{Prefix: pfx, NextHop: 1}
	out, allowed := rm.Apply(route)
	require.True(t, allowed)
	require.Equal(t, route.Prefix, out.Prefix)
}

func TestParseCommunityRoundTrip(t *testing.T) {
	c := bgp.Community{ASN: 65000, Value: 42}
	parsed, err := bgp.ParseCommunity(c.String())
	require.NoError(t, err)
	require.Equal(t, c, parsed)
}

func TestParseCommunityMalformed(t *testing.T) {
	_, err := bgp.ParseCommunity("not-a-community")
	require.Error(t, err)
}
