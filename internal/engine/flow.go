package engine

import (
	"context"
	"math"
	"time"
)

const (
	infCost = math.MaxInt64 / 4
	// ctxCheckEvery bounds how many relaxations run between cancellation checks.
	ctxCheckEvery = 1 << 12
)

type flowEdge struct {
	to   int
	rev  int
	cap  int64
	cost int64
}

// flowGraph is a residual graph for min-cost flow with successive shortest paths.
type flowGraph struct {
	adj [][]flowEdge
}

func newFlowGraph(nodes int) *flowGraph {
	return &flowGraph{adj: make([][]flowEdge, nodes)}
}

// addEdge adds from->to and its residual twin, returning the forward edge position in adj[from].
func (g *flowGraph) addEdge(from, to int, capacity, cost int64) int {
	g.adj[from] = append(g.adj[from], flowEdge{to: to, rev: len(g.adj[to]), cap: capacity, cost: cost})
	g.adj[to] = append(g.adj[to], flowEdge{to: from, rev: len(g.adj[from]) - 1, cap: 0, cost: -cost})
	return len(g.adj[from]) - 1
}

// flowOn returns how much flow passes through the forward edge adj[from][idx] given its original capacity.
func (g *flowGraph) flowOn(from, idx int, original int64) int64 {
	return original - g.adj[from][idx].cap
}

type flowOutcome struct {
	flow     int64
	cost     int64
	complete bool
}

// minCostFlow pushes flow from s to t along negative-cost shortest paths until no improving
// path remains, which yields a minimum-cost flow of any amount. Reaching deadline stops early
// with the flow found so far; cancelling ctx aborts with ctx.Err().
func (g *flowGraph) minCostFlow(ctx context.Context, s, t int, deadline time.Time) (flowOutcome, error) {
	n := len(g.adj)
	dist := make([]int64, n)
	inQueue := make([]bool, n)
	prevNode := make([]int, n)
	prevEdge := make([]int, n)
	out := flowOutcome{}
	relaxations := 0

	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return out, nil
		}

		for i := range dist {
			dist[i] = infCost
			prevNode[i] = -1
		}
		dist[s] = 0
		queue := []int{s}
		inQueue[s] = true

		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			inQueue[u] = false
			for i, e := range g.adj[u] {
				if e.cap <= 0 || dist[u]+e.cost >= dist[e.to] {
					continue
				}
				dist[e.to] = dist[u] + e.cost
				prevNode[e.to] = u
				prevEdge[e.to] = i
				if !inQueue[e.to] {
					inQueue[e.to] = true
					queue = append(queue, e.to)
				}

				relaxations++
				if relaxations%ctxCheckEvery == 0 {
					if err := ctx.Err(); err != nil {
						return out, err
					}
					if !deadline.IsZero() && time.Now().After(deadline) {
						return out, nil
					}
				}
			}
		}

		if dist[t] >= 0 {
			out.complete = true
			return out, nil
		}

		push := int64(math.MaxInt64)
		for v := t; v != s; v = prevNode[v] {
			if c := g.adj[prevNode[v]][prevEdge[v]].cap; c < push {
				push = c
			}
		}
		for v := t; v != s; v = prevNode[v] {
			e := &g.adj[prevNode[v]][prevEdge[v]]
			e.cap -= push
			g.adj[v][e.rev].cap += push
		}
		out.flow += push
		out.cost += push * dist[t]
	}
}
