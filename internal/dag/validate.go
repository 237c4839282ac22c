package dag

import (
	"fmt"

	"github.com/j-94/waggle-dance/internal/types"
)

// Validate checks the structural invariants the scheduler relies on:
// at least one node, unique node ids, no edge referencing a missing node,
// and no cycles. It returns the first violation found, so a run can be
// rejected before anything is dispatched.
func (g *Graph) Validate() error {
	if len(g.Nodes) == 0 {
		return types.NewError(types.GRAPH_EMPTY, "graph has no nodes")
	}

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return types.NewError(types.GRAPH_NODE_NOT_FOUND, "node with empty id")
		}
		if seen[n.ID] {
			return types.NewError(types.GRAPH_DUPLICATE_NODE,
				fmt.Sprintf("duplicate node id %q", n.ID))
		}
		seen[n.ID] = true
	}

	for _, e := range g.Edges {
		if !seen[e.Source] {
			return types.NewError(types.GRAPH_DANGLING_EDGE,
				fmt.Sprintf("edge references missing source node %q", e.Source))
		}
		if !seen[e.Target] {
			return types.NewError(types.GRAPH_DANGLING_EDGE,
				fmt.Sprintf("edge references missing target node %q", e.Target))
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return types.NewError(types.GRAPH_CYCLE_DETECTED,
			fmt.Sprintf("cycle detected in graph: %v", cycle))
	}

	return nil
}

// findCycle runs a depth-first search with three colors: white (unvisited),
// gray (visiting), black (visited). A back edge to a gray node is a cycle;
// the returned slice is the offending path.
func (g *Graph) findCycle() []string {
	adj := make(map[string][]string)
	for _, e := range g.Edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	// 0=white, 1=gray, 2=black
	color := make(map[string]int, len(g.Nodes))

	var dfs func(id string, path []string) []string
	dfs = func(id string, path []string) []string {
		color[id] = 1
		path = append(path, id)

		for _, next := range adj[id] {
			if color[next] == 1 {
				return append(path, next)
			}
			if color[next] == 0 {
				if cycle := dfs(next, path); cycle != nil {
					return cycle
				}
			}
		}

		color[id] = 2
		return nil
	}

	// Insertion-ordered outer loop keeps the reported path deterministic.
	for _, n := range g.Nodes {
		if color[n.ID] == 0 {
			if cycle := dfs(n.ID, nil); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
