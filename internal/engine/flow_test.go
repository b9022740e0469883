package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinCostFlowStopsAtNonNegativePaths(t *testing.T) {
	// 0 -> 2 -> 1 is profitable, 0 -> 3 -> 1 costs more than it earns.
	g := newFlowGraph(4)
	g.addEdge(0, 2, 3, -5)
	e := g.addEdge(2, 1, 2, 0)
	g.addEdge(0, 3, 4, 1)
	g.addEdge(3, 1, 4, 0)

	out, err := g.minCostFlow(context.Background(), 0, 1, time.Time{})
	require.NoError(t, err)
	assert.True(t, out.complete)
	assert.Equal(t, int64(2), out.flow)
	assert.Equal(t, int64(-10), out.cost)
	assert.Equal(t, int64(2), g.flowOn(2, e, 2))
}

func TestMinCostFlowReroutesThroughResidual(t *testing.T) {
	// two sources of demand compete for one cheap slot; the optimum needs a residual reroute
	g := newFlowGraph(6)
	g.addEdge(0, 2, 1, 0)
	g.addEdge(0, 3, 1, 0)
	a := g.addEdge(2, 4, 1, -10)
	b := g.addEdge(2, 5, 1, -9)
	c := g.addEdge(3, 4, 1, -10)
	g.addEdge(4, 1, 1, 0)
	g.addEdge(5, 1, 1, 0)

	out, err := g.minCostFlow(context.Background(), 0, 1, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.flow)
	assert.Equal(t, int64(-19), out.cost)
	assert.Equal(t, int64(0), g.flowOn(2, a, 1))
	assert.Equal(t, int64(1), g.flowOn(2, b, 1))
	assert.Equal(t, int64(1), g.flowOn(3, c, 1))
}

func TestMinCostFlowHonoursCancellation(t *testing.T) {
	g := newFlowGraph(2)
	g.addEdge(0, 1, 1, -1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.minCostFlow(ctx, 0, 1, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMinCostFlowDeadline(t *testing.T) {
	g := newFlowGraph(2)
	g.addEdge(0, 1, 1, -1)

	out, err := g.minCostFlow(context.Background(), 0, 1, time.Now().Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, out.complete)
	assert.Zero(t, out.flow)
}
