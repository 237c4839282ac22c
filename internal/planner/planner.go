package planner

import (
	"context"

	"github.com/j-94/waggle-dance/internal/config"
	"github.com/j-94/waggle-dance/internal/dag"
	"github.com/j-94/waggle-dance/internal/events"
	"github.com/j-94/waggle-dance/internal/types"
)

// Planner turns a goal into an executable task graph.
type Planner interface {
	// Plan produces the graph for the request's goal. The returned graph
	// contains task nodes only; the scheduler attaches the root node.
	Plan(ctx context.Context, req PlanRequest) (*dag.Graph, error)
}

// PlanRequest carries everything one planning call needs.
type PlanRequest struct {
	// Goal is the user's objective, verbatim.
	Goal string

	// GoalID identifies the run for logs and traces.
	GoalID types.ID

	// Profile selects the model and sampling parameters for planning.
	Profile config.Profile

	// Existing holds already-planned tasks when extending a prior graph.
	// The planner merges new tasks into a copy; ids must not collide.
	Existing *dag.Graph

	// OnPacket receives progress packets attached to the root node.
	// May be nil. It must not block.
	OnPacket events.Sink

	// OnFirstNode fires at most once, as soon as the first immediately
	// runnable task can be read out of the model's partial response. The
	// scheduler uses it to start work before planning finishes. May be nil.
	OnFirstNode func(dag.Node)
}
