package agent

import (
	"context"

	"github.com/j-94/waggle-dance/internal/config"
	"github.com/j-94/waggle-dance/internal/dag"
	"github.com/j-94/waggle-dance/internal/events"
	"github.com/j-94/waggle-dance/internal/types"
)

// Executor runs one task of a graph and returns its result value.
//
// Errors crossing this boundary are always *types.WaggleError carrying a
// severity, so the scheduler can record, park, or abort without inspecting
// provider internals.
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) (string, error)
}

// ExecuteRequest carries everything one task execution needs.
type ExecuteRequest struct {
	// Goal is the run's objective, included in every task prompt.
	Goal string

	// GoalID identifies the run for logs and traces.
	GoalID types.ID

	// Node is the task to execute.
	Node dag.Node

	// Graph is the full task graph, used to resolve predecessors for
	// review tasks. Read-only.
	Graph *dag.Graph

	// PriorResults maps completed predecessor ids to their recorded
	// values. Failed-but-recorded predecessors carry their error text.
	PriorResults map[string]string

	// Completed lists every completed task id, for prompt context.
	Completed []string

	// Profile selects the model for this task. The scheduler passes the
	// review profile for review tasks and the execute profile otherwise.
	Profile config.Profile

	// OnPacket receives this task's packet stream. May be nil. It must
	// not block.
	OnPacket events.Sink
}

// HumanInputFunc answers a task's clarification question. Returning an error
// abandons the task with a human-severity failure so the scheduler parks it.
type HumanInputFunc func(ctx context.Context, node dag.Node, question string) (string, error)
