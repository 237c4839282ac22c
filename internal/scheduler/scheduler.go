package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/j-94/waggle-dance/internal/agent"
	"github.com/j-94/waggle-dance/internal/config"
	"github.com/j-94/waggle-dance/internal/dag"
	"github.com/j-94/waggle-dance/internal/events"
	"github.com/j-94/waggle-dance/internal/packet"
	"github.com/j-94/waggle-dance/internal/planner"
	"github.com/j-94/waggle-dance/internal/types"
)

const defaultBackoff = 100 * time.Millisecond

// Scheduler drives one goal from planning to completion: it plans the task
// graph, races the first task against the tail of planning, then dispatches
// every task whose predecessors are done until the graph is exhausted.
type Scheduler struct {
	planner  planner.Planner
	executor agent.Executor
	logger   *slog.Logger
	tracer   trace.Tracer
	backoff  time.Duration
}

// Option is a functional option for configuring a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithTracer sets the scheduler's tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Scheduler) {
		s.tracer = tracer
	}
}

// WithBackoff sets the fallback interval the scheduling loop sleeps when no
// completion signal arrives. Completions wake the loop immediately; the
// timer only bounds the wait.
func WithBackoff(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.backoff = d
		}
	}
}

// NewScheduler creates a Scheduler over the given planner and executor.
func NewScheduler(p planner.Planner, e agent.Executor, opts ...Option) *Scheduler {
	s := &Scheduler{
		planner:  p,
		executor: e,
		logger:   slog.Default(),
		tracer:   noop.NewTracerProvider().Tracer("scheduler"),
		backoff:  defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunRequest carries everything one run needs.
type RunRequest struct {
	// Goal is the user's objective, verbatim.
	Goal string

	// GoalID identifies the run for logs, traces, and packets.
	GoalID types.ID

	// Settings supplies the plan, review, and execute profiles. The execute
	// profile's MaxConcurrency bounds how many tasks run at once; zero means
	// unbounded.
	Settings config.Settings

	// InitialGraph, when set, is a previously planned graph. Combined with
	// DonePlanning it resumes the run without re-planning; without
	// DonePlanning the planner extends it with new tasks.
	InitialGraph *dag.Graph

	// DonePlanning marks InitialGraph as authoritative.
	DonePlanning bool

	// OnPacket receives every packet the run emits. May be nil. It must not
	// block; packets for one node arrive in order.
	OnPacket events.Sink

	// IsRunning is an external kill switch checked between dispatch rounds.
	// May be nil. Returning false aborts the run.
	IsRunning func() bool
}

// Run executes one goal to completion and returns the outcome.
//
// The run proceeds through planning, root hookup, and a dispatch loop:
//
//  1. With a resumable graph the planner is skipped entirely. Otherwise the
//     planner streams the plan; as soon as it reports the first task, that
//     task is claimed and dispatched concurrently with the rest of planning.
//  2. The planned graph gets the synthetic root hooked up to its entry
//     tasks and is validated before anything else is dispatched.
//  3. The loop claims and dispatches every ready task, bounded by the
//     execute profile's MaxConcurrency, and blocks on the completion signal
//     (with a backoff timer as fallback) whenever nothing is ready.
//
// A task failure of warn severity is recorded so dependents still run; a
// human-severity failure parks the task, and when only parked tasks remain
// the outcome is Suspended rather than an error. Fatal failures, context
// cancellation, IsRunning turning false, and scheduling deadlocks abort the
// run with a nil outcome.
func (s *Scheduler) Run(ctx context.Context, req RunRequest) (*ExecutionOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.run",
		trace.WithAttributes(attribute.String("goal_id", req.GoalID.String())))
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	state := NewRunState(req.Goal)

	var wg sync.WaitGroup
	var sem chan struct{}
	if n := req.Settings.Execute.MaxConcurrency; n > 0 {
		sem = make(chan struct{}, n)
	}

	// abort cancels in-flight work and drains it before returning err.
	abort := func(err error) (*ExecutionOutcome, error) {
		cancel()
		wg.Wait()
		s.logger.ErrorContext(ctx, "run failed",
			"goal_id", req.GoalID.String(),
			"error", err)
		return nil, err
	}

	graph, err := s.prepare(ctx, req, state, &wg, sem)
	if err != nil {
		return abort(err)
	}

	s.logger.InfoContext(ctx, "scheduling started",
		"goal_id", req.GoalID.String(),
		"nodes", len(graph.Nodes),
		"edges", len(graph.Edges),
		"max_concurrency", req.Settings.Execute.MaxConcurrency)

	suspended := false
	for {
		if err := s.runAborted(ctx, req); err != nil {
			return abort(err)
		}
		if err := state.FatalError(); err != nil {
			return abort(err)
		}
		if state.IsGoalReached(graph) {
			break
		}

		dispatched := 0
		blocked := false
		for _, node := range state.ReadyNodes(graph) {
			if sem != nil {
				select {
				case sem <- struct{}{}:
				default:
					blocked = true
				}
				if blocked {
					break
				}
			}
			if !state.Claim(node.ID) {
				if sem != nil {
					<-sem
				}
				continue
			}
			wg.Add(1)
			go func(node dag.Node) {
				defer wg.Done()
				if sem != nil {
					defer func() { <-sem }()
				}
				s.runTask(ctx, req, state, graph, node, false)
			}(node)
			dispatched++
		}
		if dispatched > 0 {
			continue
		}

		if state.InFlight() == 0 && !blocked {
			if waiting := state.WaitingIDs(); len(waiting) > 0 {
				suspended = true
				break
			}
			stuck := state.IncompleteIDs(graph)
			return abort(types.NewError(types.SCHED_DEADLOCK,
				fmt.Sprintf("no tasks ready, none in flight, %d incomplete: %s",
					len(stuck), strings.Join(stuck, ", "))))
		}

		select {
		case <-ctx.Done():
		case <-state.Signal():
		case <-time.After(s.backoff):
		}
	}
	wg.Wait()

	outcome := s.buildOutcome(req, state, graph, start, suspended)
	if suspended {
		s.logger.WarnContext(ctx, "run suspended pending human input",
			"goal_id", req.GoalID.String(),
			"waiting", outcome.Waiting)
	} else {
		s.logger.InfoContext(ctx, "run complete",
			"goal_id", req.GoalID.String(),
			"tasks_executed", outcome.TasksExecuted,
			"tasks_failed", outcome.TasksFailed,
			"duration", outcome.Duration)
	}
	return outcome, nil
}

// prepare produces the validated execution graph. On the resume path the
// initial graph is authoritative; otherwise the planner runs, with the
// optimistic first task dispatched from its first-node hint while planning
// continues.
func (s *Scheduler) prepare(
	ctx context.Context,
	req RunRequest,
	state *RunState,
	wg *sync.WaitGroup,
	sem chan struct{},
) (*dag.Graph, error) {
	resume := req.DonePlanning && req.InitialGraph != nil && len(req.InitialGraph.Nodes) > 0

	var graph *dag.Graph
	if resume {
		graph = req.InitialGraph.Clone()
	} else {
		onFirst := func(node dag.Node) {
			if !state.Claim(node.ID) {
				return
			}
			s.logger.InfoContext(ctx, "optimistic task claimed",
				"goal_id", req.GoalID.String(),
				"node_id", node.ID)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if sem != nil {
					select {
					case sem <- struct{}{}:
						defer func() { <-sem }()
					case <-ctx.Done():
						state.Release(node.ID)
						return
					}
				}
				s.runTask(ctx, req, state, nil, node, true)
			}()
		}

		planned, err := s.planner.Plan(ctx, planner.PlanRequest{
			Goal:        req.Goal,
			GoalID:      req.GoalID,
			Profile:     req.Settings.Plan,
			Existing:    req.InitialGraph,
			OnPacket:    req.OnPacket,
			OnFirstNode: onFirst,
		})
		if err != nil {
			return nil, err
		}
		graph = planned
	}

	graph.HookupRoot(req.Goal)
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	if resume {
		root, _ := graph.Node(dag.RootID)
		s.emit(req, root, packet.NewDone(dag.RootID,
			fmt.Sprintf("resumed plan with %d tasks", len(graph.Nodes)-1)))
	}
	return graph, nil
}

// runTask executes one claimed task and folds the outcome into the state.
// Exactly one of the completion transitions happens per claim.
//
// The optimistic first task runs before the final graph exists, so its only
// known predecessor is the root; on warn failure its claim is released and
// the scheduling loop dispatches it again once its id turns up ready.
func (s *Scheduler) runTask(
	ctx context.Context,
	req RunRequest,
	state *RunState,
	graph *dag.Graph,
	node dag.Node,
	optimistic bool,
) {
	profile := req.Settings.Execute
	if dag.IsReview(node.ID) {
		profile = req.Settings.Review
	}
	preds := []string{dag.RootID}
	if graph != nil {
		preds = graph.Predecessors(node.ID)
	}

	value, err := s.executor.Execute(ctx, agent.ExecuteRequest{
		Goal:         req.Goal,
		GoalID:       req.GoalID,
		Node:         node,
		Graph:        graph,
		PriorResults: state.PriorResults(preds),
		Completed:    state.CompletedIDs(),
		Profile:      profile,
		OnPacket:     req.OnPacket,
	})
	if err == nil {
		state.Complete(node.ID, value)
		s.logger.DebugContext(ctx, "task done",
			"goal_id", req.GoalID.String(),
			"node_id", node.ID,
			"optimistic", optimistic)
		return
	}

	switch types.SeverityOf(err) {
	case types.SeverityWarn:
		if optimistic {
			state.Release(node.ID)
			s.logger.WarnContext(ctx, "optimistic task failed, requeueing",
				"goal_id", req.GoalID.String(),
				"node_id", node.ID,
				"error", err)
			return
		}
		state.CompleteWithError(node.ID, err)
		s.logger.WarnContext(ctx, "task failed, recorded",
			"goal_id", req.GoalID.String(),
			"node_id", node.ID,
			"error", err)
	case types.SeverityHuman:
		state.Park(node.ID)
		s.logger.InfoContext(ctx, "task parked pending human input",
			"goal_id", req.GoalID.String(),
			"node_id", node.ID)
	default:
		// The executor emits no terminal packet on these paths, so the
		// node still gets its finish packet here.
		s.emit(req, node, packet.NewFailureFromErr(node.ID, err))
		state.Fail(node.ID, err)
		s.logger.ErrorContext(ctx, "task failed fatally",
			"goal_id", req.GoalID.String(),
			"node_id", node.ID,
			"error", err)
	}
}

// runAborted reports why the run should stop, if it should.
func (s *Scheduler) runAborted(ctx context.Context, req RunRequest) error {
	if err := ctx.Err(); err != nil {
		return types.WrapError(types.RUN_ABORTED, "run cancelled", err)
	}
	if req.IsRunning != nil && !req.IsRunning() {
		return types.NewError(types.RUN_ABORTED, "run stopped externally")
	}
	return nil
}

func (s *Scheduler) emit(req RunRequest, node dag.Node, pk packet.Packet) {
	if req.OnPacket != nil {
		req.OnPacket(node, pk)
	}
}

func (s *Scheduler) buildOutcome(
	req RunRequest,
	state *RunState,
	graph *dag.Graph,
	start time.Time,
	suspended bool,
) *ExecutionOutcome {
	results := state.Results()

	outcome := &ExecutionOutcome{
		GoalID:    req.GoalID,
		Results:   results,
		Suspended: suspended,
		Duration:  time.Since(start),
		Graph:     graph,
	}
	for _, node := range graph.Nodes {
		if _, ok := results[node.ID]; !ok {
			continue
		}
		outcome.Completed = append(outcome.Completed, node.ID)
		if node.ID == dag.RootID {
			continue
		}
		outcome.TasksExecuted++
		if results[node.ID].Err != nil {
			outcome.TasksFailed++
		}
	}
	if suspended {
		outcome.Waiting = state.WaitingIDs()
	}
	return outcome
}
