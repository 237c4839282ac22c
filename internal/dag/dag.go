package dag

import (
	"fmt"
	"strings"

	"github.com/j-94/waggle-dance/internal/types"
)

const (
	// RootID is the id of the synthetic root node that represents the
	// planning step itself. The completed set is seeded with it so that
	// planner-produced entry nodes become ready once planning finishes.
	RootID = "1"

	// ReviewSuffix marks review nodes, which summarize the outputs of the
	// tasks feeding into them. The planner is instructed to use it; nothing
	// else about a node id is ever interpreted.
	ReviewSuffix = "-review"
)

// Node is a single task in a plan graph. Ids are planner-assigned strings
// and are treated as opaque by the scheduler.
type Node struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Act     string `json:"act" yaml:"act"`
	Context string `json:"context" yaml:"context"`
}

// Edge is a directed dependency: the target may only start after the source
// has completed.
type Edge struct {
	Source string `json:"sourceId" yaml:"sourceId"`
	Target string `json:"targetId" yaml:"targetId"`
}

// Graph is a plan DAG. Nodes keep planner insertion order. A graph only ever
// grows: merging adds nodes and edges, and completion status lives with the
// scheduler, never here.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// New constructs a graph from the given nodes and edges.
func New(nodes []Node, edges []Edge) *Graph {
	return &Graph{Nodes: nodes, Edges: edges}
}

// NewRootNode synthesizes the planning root for a goal.
func NewRootNode(goal string) Node {
	return Node{
		ID:      RootID,
		Name:    "plan",
		Act:     "plan",
		Context: goal,
	}
}

// IsReview reports whether id names a review node.
func IsReview(id string) bool {
	return strings.HasSuffix(id, ReviewSuffix)
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// HasNode reports whether a node with the given id exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.Node(id)
	return ok
}

// NodeIDs returns all node ids in insertion order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

// NodesWithNoIncomingEdges returns the graph's entry nodes in insertion
// order. After planning these are the nodes the root hooks up to.
func (g *Graph) NodesWithNoIncomingEdges() []Node {
	hasIncoming := make(map[string]bool)
	for _, e := range g.Edges {
		hasIncoming[e.Target] = true
	}

	entries := []Node{}
	for _, n := range g.Nodes {
		if !hasIncoming[n.ID] {
			entries = append(entries, n)
		}
	}
	return entries
}

// Predecessors returns the ids of nodes with an edge into id.
func (g *Graph) Predecessors(id string) []string {
	preds := []string{}
	seen := make(map[string]bool)
	for _, e := range g.Edges {
		if e.Target == id && !seen[e.Source] {
			preds = append(preds, e.Source)
			seen[e.Source] = true
		}
	}
	return preds
}

// Successors returns the ids of nodes id has an edge into.
func (g *Graph) Successors(id string) []string {
	succs := []string{}
	seen := make(map[string]bool)
	for _, e := range g.Edges {
		if e.Source == id && !seen[e.Target] {
			succs = append(succs, e.Target)
			seen[e.Target] = true
		}
	}
	return succs
}

// Merge adds other's nodes and edges to g. Node ids must stay unique across
// the merged graph; a collision aborts the merge before any mutation.
// Edges already present are skipped.
func (g *Graph) Merge(other *Graph) error {
	if other == nil {
		return nil
	}

	existing := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		existing[n.ID] = true
	}
	for _, n := range other.Nodes {
		if existing[n.ID] {
			return types.NewError(types.GRAPH_DUPLICATE_NODE,
				fmt.Sprintf("merge would duplicate node id %q", n.ID))
		}
		existing[n.ID] = true
	}

	g.Nodes = append(g.Nodes, other.Nodes...)

	present := make(map[Edge]bool, len(g.Edges))
	for _, e := range g.Edges {
		present[e] = true
	}
	for _, e := range other.Edges {
		if !present[e] {
			g.Edges = append(g.Edges, e)
			present[e] = true
		}
	}
	return nil
}

// HookupRoot prepends the synthetic root node and connects it to every node
// that has no incoming edge, making the planner's entry nodes depend on the
// completed planning step. Calling it again on a hooked-up graph is a no-op.
func (g *Graph) HookupRoot(goal string) {
	if g.HasNode(RootID) {
		return
	}

	entries := g.NodesWithNoIncomingEdges()
	g.Nodes = append([]Node{NewRootNode(goal)}, g.Nodes...)
	for _, n := range entries {
		g.Edges = append(g.Edges, Edge{Source: RootID, Target: n.ID})
	}
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	clone := &Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	copy(clone.Nodes, g.Nodes)
	copy(clone.Edges, g.Edges)
	return clone
}
