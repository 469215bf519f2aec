package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/transitorykris/netsim/graph"
)

func buildTriangle(t *testing.T) *graph.LinkGraph {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.AddRouter(1, false))
	require.NoError(t, g.AddRouter(2, false))
	require.NoError(t, g.AddRouter(3, false))
	require.NoError(t, g.AddLink(1, 2))
	require.NoError(t, g.AddLink(2, 3))
	require.NoError(t, g.AddLink(1, 3))
	return g
}

func TestAddLinkDefaultsToInfiniteWeightAndBackbone(t *testing.T) {
	g := buildTriangle(t)
	require.Equal(t, graph.Infinite, g.Weight(1, 2))
	area, ok := g.Area(1, 2)
	require.True(t, ok)
	require.Equal(t, graph.Backbone, area)
}

func TestSetWeightIsSymmetric(t *testing.T) {
	g := buildTriangle(t)
	require.NoError(t, g.SetWeight(1, 2, 10))
	require.Equal(t, graph.Weight(10), g.Weight(1, 2))
	require.Equal(t, graph.Weight(10), g.Weight(2, 1))
}

func TestSetAreaIsSymmetric(t *testing.T) {
	g := buildTriangle(t)
	require.NoError(t, g.SetArea(1, 2, 5))
	a1, _ := g.Area(1, 2)
	a2, _ := g.Area(2, 1)
	require.Equal(t, graph.Area(5), a1)
	require.Equal(t, a1, a2)
}

func TestNeighborsSorted(t *testing.T) {
	g := buildTriangle(t)
	require.Equal(t, []graph.RouterId{2, 3}, g.Neighbors(1))
}

func TestRemoveLinkClearsBothSides(t *testing.T) {
	g := buildTriangle(t)
	require.NoError(t, g.RemoveLink(1, 2))
	require.False(t, g.HasLink(1, 2))
	require.False(t, g.HasLink(2, 1))
}

func TestRemoveRouterClearsIncidentLinks(t *testing.T) {
	g := buildTriangle(t)
	require.NoError(t, g.RemoveRouter(1))
	require.False(t, g.HasLink(1, 2))
	require.NotContains(t, g.Routers(), graph.RouterId(1))
	require.True(t, g.HasLink(2, 3))
}

func TestIsABR(t *testing.T) {
	g := buildTriangle(t)
	require.NoError(t, g.SetArea(1, 2, 1))
	require.NoError(t, g.SetArea(1, 3, 2))
	require.True(t, g.IsABR(1))
	require.False(t, g.IsABR(2))
}

func TestCloneIsIndependent(t *testing.T) {
	g := buildTriangle(t)
	clone := g.Clone()
	require.NoError(t, clone.SetWeight(1, 2, 99))
	require.Equal(t, graph.Weight(99), clone.Weight(1, 2))
	require.Equal(t, graph.Infinite, g.Weight(1, 2))
}
