package planner

import (
	"encoding/json"
	"fmt"

	"github.com/j-94/waggle-dance/internal/dag"
	"github.com/j-94/waggle-dance/internal/llm"
	"github.com/j-94/waggle-dance/internal/types"
)

// planDocument is the wire shape the model answers with.
type planDocument struct {
	Nodes []planNode `json:"nodes"`
	Edges []planEdge `json:"edges"`
}

type planNode struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Act     string `json:"act"`
	Context string `json:"context"`
}

type planEdge struct {
	Source string `json:"sourceId"`
	Target string `json:"targetId"`
}

// ParsePlan extracts the plan JSON from a raw model response and builds the
// task graph. Models are sloppy with optional fields, so name and act fall
// back to one another; ids are required and "1" is rejected because the
// scheduler owns it.
func ParsePlan(raw string) (*dag.Graph, error) {
	doc, err := llm.ExtractJSONAs[planDocument](raw)
	if err != nil {
		return nil, types.WrapError(types.PLAN_PARSE_FAILED, "no plan document in response", err)
	}

	if len(doc.Nodes) == 0 {
		return nil, types.NewError(types.PLAN_EMPTY, "plan contains no tasks")
	}

	nodes := make([]dag.Node, 0, len(doc.Nodes))
	for i, pn := range doc.Nodes {
		node, err := normalizeNode(pn)
		if err != nil {
			return nil, types.WrapError(types.PLAN_PARSE_FAILED,
				fmt.Sprintf("node %d is unusable", i), err)
		}
		nodes = append(nodes, node)
	}

	edges := make([]dag.Edge, 0, len(doc.Edges))
	for i, pe := range doc.Edges {
		if pe.Source == "" || pe.Target == "" {
			return nil, types.NewError(types.PLAN_PARSE_FAILED,
				fmt.Sprintf("edge %d is missing an endpoint", i))
		}
		// The scheduler owns the root node; edges from it are recreated
		// at hookup, so model-emitted ones are dropped rather than left
		// dangling in a rootless graph.
		if pe.Source == dag.RootID || pe.Target == dag.RootID {
			continue
		}
		edges = append(edges, dag.Edge{Source: pe.Source, Target: pe.Target})
	}

	return dag.New(nodes, edges), nil
}

// normalizeNode converts one wire node, filling gaps the prompt forbids but
// models produce anyway.
func normalizeNode(pn planNode) (dag.Node, error) {
	if pn.ID == "" {
		return dag.Node{}, fmt.Errorf("missing id")
	}
	if pn.ID == dag.RootID {
		return dag.Node{}, fmt.Errorf("id %q is reserved", dag.RootID)
	}
	name, act := pn.Name, pn.Act
	if name == "" {
		name = act
	}
	if act == "" {
		act = name
	}
	if name == "" {
		return dag.Node{}, fmt.Errorf("node %q has neither name nor act", pn.ID)
	}
	return dag.Node{ID: pn.ID, Name: name, Act: act, Context: pn.Context}, nil
}
