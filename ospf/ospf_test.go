package ospf_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/transitorykris/netsim/graph"
	"github.com/transitorykris/netsim/ospf"
)

// lineTopology builds a 1-2-3 line, each link cost 1, all in the
// backbone area.
func lineTopology(t *testing.T) *graph.LinkGraph {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.AddRouter(1, false))
	require.NoError(t, g.AddRouter(2, false))
	require.NoError(t, g.AddRouter(3, false))
	require.NoError(t, g.AddLink(1, 2))
	require.NoError(t, g.AddLink(2, 3))
	require.NoError(t, g.SetWeight(1, 2, 1))
	require.NoError(t, g.SetWeight(2, 3, 1))
	return g
}

func TestOracleCostToIsAdditive(t *testing.T) {
	g := lineTopology(t)
	o := ospf.NewOracle(g)

	cost, ok := o.CostTo(1, 3)
	require.True(t, ok)
	require.EqualValues(t, 2, cost)
}

func TestOracleUnreachableWithNoPath(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddRouter(1, false))
	require.NoError(t, g.AddRouter(2, false))
	o := ospf.NewOracle(g)

	_, ok := o.CostTo(1, 2)
	require.False(t, ok)
}

func TestOracleNotifyTopologyChangePicksUpNewWeight(t *testing.T) {
	g := lineTopology(t)
	o := ospf.NewOracle(g)
	require.NoError(t, g.SetWeight(1, 2, 10))
	o.NotifyTopologyChange()

	cost, ok := o.CostTo(1, 3)
	require.True(t, ok)
	require.EqualValues(t, 11, cost)
}

// driveToConvergence pumps OutEvents between a fixed set of Local
// processes until none remain, the same dispatch loop shape the kernel
// itself runs, scaled down for a unit test.
func driveToConvergence(locals map[ospf.RouterId]*ospf.Local, seed map[ospf.RouterId][]ospf.OutEvent) {
	type pending struct {
		src, dst ospf.RouterId
		msg      ospf.Message
	}
	var queue []pending
	enqueue := func(from ospf.RouterId, outs []ospf.OutEvent) {
		for _, o := range outs {
			queue = append(queue, pending{src: from, dst: o.Dst, msg: o.Msg})
		}
	}
	for src, outs := range seed {
		enqueue(src, outs)
	}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		enqueue(e.dst, locals[e.dst].HandleEvent(e.src, e.msg))
	}
}

func TestLocalConvergesToOracleCost(t *testing.T) {
	g := lineTopology(t)
	oracle := ospf.NewOracle(g)

	locals := map[ospf.RouterId]*ospf.Local{
		1: ospf.NewLocal(1, g),
		2: ospf.NewLocal(2, g),
		3: ospf.NewLocal(3, g),
	}

	driveToConvergence(locals, map[ospf.RouterId][]ospf.OutEvent{
		1: locals[1].NeighborUp(2, graph.Backbone),
		2: append(locals[2].NeighborUp(1, graph.Backbone), locals[2].NeighborUp(3, graph.Backbone)...),
		3: locals[3].NeighborUp(2, graph.Backbone),
	})

	driveToConvergence(locals, map[ospf.RouterId][]ospf.OutEvent{
		1: locals[1].OriginateRouterLSA(graph.Backbone),
		2: locals[2].OriginateRouterLSA(graph.Backbone),
		3: locals[3].OriginateRouterLSA(graph.Backbone),
	})

	oracleCost, ok := oracle.CostTo(1, 3)
	require.True(t, ok)
	localCost, ok := locals[1].CostTo(3)
	require.True(t, ok)
	require.Equal(t, oracleCost, localCost, "local SPF must converge to the same cost as the global oracle")
}

func TestNeighborUpStartsInExchangeAndConvergesToFullOnEmptyDatabases(t *testing.T) {
	g := lineTopology(t)
	locals := map[ospf.RouterId]*ospf.Local{
		1: ospf.NewLocal(1, g),
		2: ospf.NewLocal(2, g),
	}
	// Two empty databases have nothing to request, so DD exchange settles
	// straight to Full with no further messages: the count (which includes
	// the seeded events) is just the two seeded DDs.
	outs := driveAndCollectEventCount(locals, map[ospf.RouterId][]ospf.OutEvent{
		1: locals[1].NeighborUp(2, graph.Backbone),
		2: locals[2].NeighborUp(1, graph.Backbone),
	})
	require.Equal(t, 2, outs)
}

func driveAndCollectEventCount(locals map[ospf.RouterId]*ospf.Local, seed map[ospf.RouterId][]ospf.OutEvent) int {
	type pending struct {
		src, dst ospf.RouterId
		msg      ospf.Message
	}
	var queue []pending
	count := 0
	enqueue := func(from ospf.RouterId, outs []ospf.OutEvent) {
		for _, o := range outs {
			count++
			queue = append(queue, pending{src: from, dst: o.Dst, msg: o.Msg})
		}
	}
	for src, outs := range seed {
		enqueue(src, outs)
	}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		enqueue(e.dst, locals[e.dst].HandleEvent(e.src, e.msg))
	}
	return count
}
