package planner

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/j-94/waggle-dance/internal/dag"
	"github.com/j-94/waggle-dance/internal/llm"
	"github.com/j-94/waggle-dance/internal/packet"
	"github.com/j-94/waggle-dance/internal/types"
)

// LLMPlanner drives a language model to decompose a goal into a task graph.
// It streams the model's response as token packets on the root node and
// reports the first runnable task mid-stream so execution can overlap
// planning.
type LLMPlanner struct {
	client llm.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures an LLMPlanner.
type Option func(*LLMPlanner)

// WithLogger sets the planner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *LLMPlanner) {
		p.logger = logger
	}
}

// WithTracer sets the planner's tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *LLMPlanner) {
		p.tracer = tracer
	}
}

// NewLLMPlanner creates a planner over the given model client.
func NewLLMPlanner(client llm.Client, opts ...Option) *LLMPlanner {
	p := &LLMPlanner{
		client: client,
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("planner"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan implements Planner. Packet sequence on the root node:
// handleChainStart, token..., then handleChainEnd on success or a single
// terminal error packet on failure. Planning is never retried; a failure
// fails the run.
func (p *LLMPlanner) Plan(ctx context.Context, req PlanRequest) (*dag.Graph, error) {
	ctx, span := p.tracer.Start(ctx, "planner.plan")
	defer span.End()

	root := dag.NewRootNode(req.Goal)
	emit := func(pk packet.Packet) {
		if req.OnPacket != nil {
			req.OnPacket(root, pk)
		}
	}

	emit(packet.NewLifecycle(packet.PacketChainStart, dag.RootID))

	llmReq := llm.Request{
		Messages: []llm.Message{
			llm.NewSystemMessage(buildSystemPrompt(req.Profile.PromptingMethod)),
			llm.NewUserMessage(buildPlanPrompt(req)),
		},
		Temperature: req.Profile.Temperature,
		MaxTokens:   req.Profile.MaxTokens,
	}

	stream, err := p.client.Stream(ctx, llmReq)
	if err != nil {
		return nil, p.fail(ctx, emit, "plan request failed", err)
	}

	detector := newFirstNodeDetector(req.OnFirstNode)
	var response strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			return nil, p.fail(ctx, emit, "plan stream failed", chunk.Err)
		}
		response.WriteString(chunk.Delta)
		emit(packet.NewToken(dag.RootID, chunk.Delta))
		detector.Feed(response.String())
	}

	graph, err := ParsePlan(response.String())
	if err != nil {
		return nil, p.fail(ctx, emit, "plan response unusable", err)
	}

	if req.Existing != nil && len(req.Existing.Nodes) > 0 {
		merged := req.Existing.Clone()
		if err := merged.Merge(graph); err != nil {
			return nil, p.fail(ctx, emit, "plan collides with existing tasks", err)
		}
		graph = merged
	}

	if err := graph.Validate(); err != nil {
		return nil, p.fail(ctx, emit, "planned graph is invalid", err)
	}

	p.logger.InfoContext(ctx, "plan complete",
		"goal_id", req.GoalID.String(),
		"nodes", len(graph.Nodes),
		"edges", len(graph.Edges))

	emit(packet.NewChainEnd(dag.RootID, map[string]any{
		"nodes": len(graph.Nodes),
		"edges": len(graph.Edges),
	}))

	return graph, nil
}

// fail logs, emits the single terminal failure packet, and wraps err so
// callers always see PLAN_FAILED with the cause preserved.
func (p *LLMPlanner) fail(ctx context.Context, emit func(packet.Packet), msg string, err error) error {
	werr := types.WrapError(types.PLAN_FAILED, msg, err)
	p.logger.ErrorContext(ctx, "planning failed", "error", werr)
	emit(packet.NewFailureFromErr(dag.RootID, werr))
	return werr
}
