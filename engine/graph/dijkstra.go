package graph

import (
	"container/heap"
)

// GraphNode is a point in the evacuation graph (pixel coordinates).
type GraphNode struct {
	ID string
	X  float64
	Y  float64
}

// GraphEdge connects two node ids with the current hazard snapshot needed
// to compute its weight.
type GraphEdge struct {
	ID       string
	From, To string
	Snapshot EdgeSnapshot
}

// Input is the graph view a per-floor cycle builds once per tick: nodes,
// edges carrying the cycle's fused hazard snapshot, and the floor's scale.
type Input struct {
	Nodes []GraphNode
	Edges []GraphEdge
	Scale *Scale
	Policy WeightPolicy
}

// RouteResult is one start's computed route, or a reason it was skipped.
type RouteResult struct {
	StartNode string
	ExitNode  string
	Path      []string
	Edges     []string
	Distance  float64
	DistanceMeters float64
	HazardLevel HazardLevel
	ExceedsThresholds bool
	EdgeDetails []EdgeDetail
	// Skipped is set with a reason when no route could be computed for
	// this start (unknown id, or no reachable exit). Path/Edges etc. are
	// empty.
	Skipped string
}

// EdgeDetail is the per-edge hazard detail attached to a computed route.
type EdgeDetail struct {
	EdgeID         string
	DistanceMeters float64
	Weight         float64
	Fire           float64
	Smoke          float64
	People         float64
	Exceeds        bool
	ThresholdRatio float64

	// fireRatio and smokeRatio are fire/fireThreshold and smoke/smokeThreshold,
	// kept separate from ThresholdRatio (which also folds in people) because
	// the hazardLevel classifier considers only fire and smoke (spec §4.3).
	fireRatio  float64
	smokeRatio float64
}

// HazardLevel mirrors models.HazardLevel without importing engine/models.
type HazardLevel string

const (
	HazardSafe     HazardLevel = "safe"
	HazardModerate HazardLevel = "moderate"
	HazardHigh     HazardLevel = "high"
	HazardCritical HazardLevel = "critical"
)

type adjEntry struct {
	to     string
	edgeID string
	weight float64
	detail EdgeDetail
}

// Result is the outcome of one Dijkstra invocation across all requested
// starts: the per-start routes (including skipped ones) and a warning when
// starts or exits were empty to begin with.
type Result struct {
	Routes  []RouteResult
	Warning string
}

// Run computes, for every start node, the lowest-hazard-weighted path to
// the nearest node in exits, with early termination the first time the
// popped node is an exit (spec §4.3).
func Run(in Input, starts []string, exits map[string]struct{}) Result {
	if len(starts) == 0 || len(exits) == 0 {
		return Result{Warning: "dijkstra: no start or exit nodes provided"}
	}

	nodeIndex := make(map[string]struct{}, len(in.Nodes))
	for _, n := range in.Nodes {
		nodeIndex[n.ID] = struct{}{}
	}

	adj := buildAdjacency(in)

	out := make([]RouteResult, 0, len(starts))
	for _, start := range starts {
		if _, ok := nodeIndex[start]; !ok {
			out = append(out, RouteResult{StartNode: start, Skipped: "unknown start node"})
			continue
		}
		route, ok := shortestPath(start, exits, adj)
		if !ok {
			out = append(out, RouteResult{StartNode: start, Skipped: "no reachable exit"})
			continue
		}
		out = append(out, route)
	}
	return Result{Routes: out}
}

func buildAdjacency(in Input) map[string][]adjEntry {
	adj := make(map[string][]adjEntry, len(in.Nodes))
	for _, e := range in.Edges {
		from, okF := lookup(in.Nodes, e.From)
		to, okT := lookup(in.Nodes, e.To)
		if !okF || !okT {
			continue // spec §4.3: edge referencing an unknown node is dropped
		}
		dist := DistanceMeters(from.X, from.Y, to.X, to.Y, in.Scale)
		wr := Weight(e.Snapshot, dist, in.Policy)
		detail := EdgeDetail{
			EdgeID:         e.ID,
			DistanceMeters: dist,
			Weight:         wr.Weight,
			Fire:           e.Snapshot.Fire,
			Smoke:          e.Snapshot.Smoke,
			People:         e.Snapshot.People,
			Exceeds:        wr.ExceedsThreshold,
			ThresholdRatio: wr.ThresholdRatio,
			fireRatio:      safeRatio(e.Snapshot.Fire, e.Snapshot.FireThreshold),
			smokeRatio:     safeRatio(e.Snapshot.Smoke, e.Snapshot.SmokeThreshold),
		}
		// undirected: contribute both directions (spec §4.3).
		adj[e.From] = append(adj[e.From], adjEntry{to: e.To, edgeID: e.ID, weight: wr.Weight, detail: detail})
		adj[e.To] = append(adj[e.To], adjEntry{to: e.From, edgeID: e.ID, weight: wr.Weight, detail: detail})
	}
	return adj
}

func lookup(nodes []GraphNode, id string) (GraphNode, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return GraphNode{}, false
}

type pqItem struct {
	node string
	dist float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

type predecessor struct {
	prevNode string
	edgeID   string
	detail   EdgeDetail
}

// shortestPath runs single-source Dijkstra from start using a binary heap
// (spec §9: recommended over the source's sort-based min-extraction), with
// early termination the first time a popped node is in exits.
func shortestPath(start string, exits map[string]struct{}, adj map[string][]adjEntry) (RouteResult, bool) {
	dist := map[string]float64{start: 0}
	prev := map[string]predecessor{}
	visited := map[string]bool{}

	pq := &priorityQueue{{node: start, dist: 0}}
	heap.Init(pq)

	var winningExit string
	found := false

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true

		if _, isExit := exits[cur.node]; isExit {
			winningExit = cur.node
			found = true
			break
		}

		for _, edge := range adj[cur.node] {
			if visited[edge.to] {
				continue
			}
			nd := cur.dist + edge.weight
			if existing, ok := dist[edge.to]; !ok || nd < existing {
				dist[edge.to] = nd
				prev[edge.to] = predecessor{prevNode: cur.node, edgeID: edge.edgeID, detail: edge.detail}
				heap.Push(pq, pqItem{node: edge.to, dist: nd})
			}
		}
	}

	if !found {
		return RouteResult{}, false
	}

	// reconstruct path by walking predecessors back to start, reversing.
	var nodes []string
	var edgeIDs []string
	var details []EdgeDetail
	node := winningExit
	for node != start {
		p, ok := prev[node]
		if !ok {
			return RouteResult{}, false
		}
		nodes = append(nodes, node)
		edgeIDs = append(edgeIDs, p.edgeID)
		details = append(details, p.detail)
		node = p.prevNode
	}
	nodes = append(nodes, start)
	reverseStrings(nodes)
	reverseStrings(edgeIDs)
	reverseDetails(details)

	route := RouteResult{
		StartNode: start,
		ExitNode:  winningExit,
		Path:      nodes,
		Edges:     edgeIDs,
		Distance:  dist[winningExit],
		EdgeDetails: details,
	}
	for _, d := range details {
		route.DistanceMeters += d.DistanceMeters
		// exceedsThresholds (spec §4.3) is fire/smoke only, unlike the
		// weight function's exceeds flag which also trips on people.
		if d.fireRatio > 1.0 || d.smokeRatio > 1.0 {
			route.ExceedsThresholds = true
		}
	}
	route.HazardLevel = classify(details)
	return route, true
}

// classify determines hazardLevel using only fire and smoke (spec §4.3):
// people affect routing preference, not danger classification.
func classify(details []EdgeDetail) HazardLevel {
	maxRatio := 0.0
	for _, d := range details {
		maxRatio = maxf(maxRatio, maxf(d.fireRatio, d.smokeRatio))
	}
	switch {
	case maxRatio >= 1.0:
		return HazardCritical
	case maxRatio >= 0.7:
		return HazardModerate
	default:
		return HazardSafe
	}
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseDetails(s []EdgeDetail) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
