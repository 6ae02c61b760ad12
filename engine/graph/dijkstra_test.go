package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatEdge(id, from, to string, fire, smoke float64) GraphEdge {
	return GraphEdge{
		ID: id, From: from, To: to,
		Snapshot: EdgeSnapshot{
			StaticWeight: 1, PeopleThreshold: 10, FireThreshold: 0.7, SmokeThreshold: 0.7,
			Fire: fire, Smoke: smoke,
		},
	}
}

func diamondNodes() []GraphNode {
	return []GraphNode{
		{ID: "A", X: 0, Y: 0},
		{ID: "B", X: 10, Y: 0},
		{ID: "C", X: 0, Y: 10},
		{ID: "E", X: 20, Y: 0},
	}
}

func TestRunSafePath(t *testing.T) {
	// S1: no hazard anywhere, shortest pixel path wins.
	in := Input{
		Nodes: diamondNodes(),
		Edges: []GraphEdge{flatEdge("ab", "A", "B", 0, 0), flatEdge("be", "B", "E", 0, 0)},
		Policy: DefaultWeightPolicy(),
	}
	res := Run(in, []string{"A"}, map[string]struct{}{"E": {}})
	require.Len(t, res.Routes, 1)
	route := res.Routes[0]
	assert.Empty(t, route.Skipped)
	assert.Equal(t, []string{"A", "B", "E"}, route.Path)
	assert.Equal(t, HazardSafe, route.HazardLevel)
	assert.False(t, route.ExceedsThresholds)
}

func TestRunAvoidsFire(t *testing.T) {
	// S2: A-B-E has fire 0.9 on A-B; A-C-E is clear. Expect the detour.
	in := Input{
		Nodes: diamondNodes(),
		Edges: []GraphEdge{
			flatEdge("ab", "A", "B", 0.9, 0),
			flatEdge("be", "B", "E", 0, 0),
			flatEdge("ac", "A", "C", 0, 0),
			flatEdge("ce", "C", "E", 0, 0),
		},
		Policy: DefaultWeightPolicy(),
	}
	res := Run(in, []string{"A"}, map[string]struct{}{"E": {}})
	require.Len(t, res.Routes, 1)
	route := res.Routes[0]
	assert.Equal(t, []string{"A", "C", "E"}, route.Path)
	assert.Equal(t, HazardSafe, route.HazardLevel)
	assert.False(t, route.ExceedsThresholds)
}

func TestRunNoSafeRoute(t *testing.T) {
	// S3: both A-B and A-C exceed thresholds; either route is acceptable,
	// but it must be reported critical and exceeding.
	in := Input{
		Nodes: diamondNodes(),
		Edges: []GraphEdge{
			flatEdge("ab", "A", "B", 0.9, 0),
			flatEdge("be", "B", "E", 0, 0),
			flatEdge("ac", "A", "C", 0.9, 0.8),
			flatEdge("ce", "C", "E", 0, 0),
		},
		Policy: DefaultWeightPolicy(),
	}
	res := Run(in, []string{"A"}, map[string]struct{}{"E": {}})
	require.Len(t, res.Routes, 1)
	route := res.Routes[0]
	assert.Contains(t, [][]string{{"A", "B", "E"}, {"A", "C", "E"}}, route.Path)
	assert.Equal(t, HazardCritical, route.HazardLevel)
	assert.True(t, route.ExceedsThresholds)
}

func TestRunUnknownStartIsSkippedOthersContinue(t *testing.T) {
	in := Input{
		Nodes:  diamondNodes(),
		Edges:  []GraphEdge{flatEdge("ab", "A", "B", 0, 0), flatEdge("be", "B", "E", 0, 0)},
		Policy: DefaultWeightPolicy(),
	}
	res := Run(in, []string{"A", "nonexistent"}, map[string]struct{}{"E": {}})
	require.Len(t, res.Routes, 2)
	assert.Empty(t, res.Routes[0].Skipped)
	assert.Equal(t, "unknown start node", res.Routes[1].Skipped)
}

func TestRunUnreachableExit(t *testing.T) {
	in := Input{
		Nodes:  diamondNodes(),
		Edges:  []GraphEdge{flatEdge("ac", "A", "C", 0, 0)},
		Policy: DefaultWeightPolicy(),
	}
	res := Run(in, []string{"A"}, map[string]struct{}{"E": {}})
	require.Len(t, res.Routes, 1)
	assert.Equal(t, "no reachable exit", res.Routes[0].Skipped)
}

func TestRunEmptyStartsOrExitsWarns(t *testing.T) {
	in := Input{Nodes: diamondNodes(), Policy: DefaultWeightPolicy()}
	res := Run(in, nil, map[string]struct{}{"E": {}})
	assert.NotEmpty(t, res.Warning)
	assert.Empty(t, res.Routes)

	res = Run(in, []string{"A"}, nil)
	assert.NotEmpty(t, res.Warning)
}

func TestRunDropsEdgeReferencingUnknownNode(t *testing.T) {
	in := Input{
		Nodes: diamondNodes(),
		Edges: []GraphEdge{
			flatEdge("ab", "A", "B", 0, 0),
			flatEdge("ghost", "B", "nowhere", 0, 0),
		},
		Policy: DefaultWeightPolicy(),
	}
	res := Run(in, []string{"A"}, map[string]struct{}{"E": {}})
	require.Len(t, res.Routes, 1)
	assert.Equal(t, "no reachable exit", res.Routes[0].Skipped, "the dangling edge must not crash traversal")
}
