package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/j-94/waggle-dance/internal/config"
	"github.com/j-94/waggle-dance/internal/dag"
	"github.com/j-94/waggle-dance/internal/llm"
	"github.com/j-94/waggle-dance/internal/packet"
	"github.com/j-94/waggle-dance/internal/types"
)

// ClientFactory resolves the model client a profile names. Injected so tests
// can substitute fakes; production wires providers.NewFromProfile.
type ClientFactory func(ctx context.Context, profile config.Profile) (llm.Client, error)

// LLMExecutor runs a task by prompting a language model and streaming its
// answer as packets. Review tasks are prompted with their predecessors'
// recorded results; all other tasks get the goal and their own context.
type LLMExecutor struct {
	factory    ClientFactory
	logger     *slog.Logger
	tracer     trace.Tracer
	humanInput HumanInputFunc

	mu      sync.Mutex
	clients map[string]llm.Client
}

// Option configures an LLMExecutor.
type Option func(*LLMExecutor)

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *LLMExecutor) {
		e.logger = logger
	}
}

// WithTracer sets the executor's tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *LLMExecutor) {
		e.tracer = tracer
	}
}

// WithHumanInput installs a callback that answers clarification questions.
// Without one, a task asking for input fails with human severity and the
// scheduler parks it.
func WithHumanInput(fn HumanInputFunc) Option {
	return func(e *LLMExecutor) {
		e.humanInput = fn
	}
}

// NewLLMExecutor creates an executor that resolves clients through factory.
func NewLLMExecutor(factory ClientFactory, opts ...Option) *LLMExecutor {
	e := &LLMExecutor{
		factory: factory,
		logger:  slog.Default(),
		tracer:  noop.NewTracerProvider().Tracer("agent"),
		clients: make(map[string]llm.Client),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute implements Executor. Packet sequence on the task's node:
// handleLLMStart, token..., then handleAgentEnd on success, handleLLMError
// on failure, or requestHumanInput when the model asks for clarification.
//
// A context that is already done produces no packets at all; mid-stream
// cancellation stops emission at the next chunk boundary.
func (e *LLMExecutor) Execute(ctx context.Context, req ExecuteRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", types.WrapError(types.TASK_ABORTED,
			fmt.Sprintf("task %s not started", req.Node.ID), err)
	}

	ctx, span := e.tracer.Start(ctx, "agent.execute")
	defer span.End()

	node := req.Node
	emit := func(pk packet.Packet) {
		if req.OnPacket != nil {
			req.OnPacket(node, pk)
		}
	}

	client, err := e.clientFor(ctx, req.Profile)
	if err != nil {
		werr := types.WrapSeverityError(types.TASK_FAILED, types.SeverityWarn,
			fmt.Sprintf("no client for task %s", node.ID), err)
		emit(packet.NewFailure(packet.PacketLLMError, node.ID, types.SeverityWarn, werr.Error()))
		return "", werr
	}

	review := dag.IsReview(node.ID)
	system := buildExecuteSystemPrompt()
	if review {
		system = buildReviewSystemPrompt()
	}
	llmReq := llm.Request{
		Messages: []llm.Message{
			llm.NewSystemMessage(system),
			llm.NewUserMessage(buildTaskPrompt(req, review)),
		},
		Temperature: req.Profile.Temperature,
		MaxTokens:   req.Profile.MaxTokens,
	}

	emit(packet.NewLifecycle(packet.PacketLLMStart, node.ID))

	stream, err := client.Stream(ctx, llmReq)
	if err != nil {
		return "", e.fail(ctx, emit, node, "model call failed", err)
	}

	var response strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			if ctx.Err() != nil {
				// Aborting: stop emitting, let the scheduler report.
				return "", types.WrapError(types.TASK_ABORTED,
					fmt.Sprintf("task %s cancelled", node.ID), ctx.Err())
			}
			return "", e.fail(ctx, emit, node, "model stream failed", chunk.Err)
		}
		response.WriteString(chunk.Delta)
		emit(packet.NewToken(node.ID, chunk.Delta))
	}

	value := strings.TrimSpace(response.String())

	if question, ok := clarificationRequest(value); ok {
		return e.resolveClarification(ctx, emit, client, llmReq, req, question)
	}

	e.logger.DebugContext(ctx, "task complete",
		"goal_id", req.GoalID.String(),
		"node_id", node.ID,
		"chars", len(value))

	emit(packet.NewAgentEnd(node.ID, value))
	return value, nil
}

// resolveClarification handles the model's human-input escape. With a
// callback installed the answer is folded into a follow-up completion;
// without one the task fails with human severity.
func (e *LLMExecutor) resolveClarification(
	ctx context.Context,
	emit func(packet.Packet),
	client llm.Client,
	llmReq llm.Request,
	req ExecuteRequest,
	question string,
) (string, error) {
	node := req.Node
	emit(packet.NewHumanRequest(node.ID, question))

	if e.humanInput == nil {
		return "", types.NewSeverityError(types.TASK_NEEDS_HUMAN, types.SeverityHuman,
			fmt.Sprintf("task %s needs input: %s", node.ID, question))
	}

	answer, err := e.humanInput(ctx, node, question)
	if err != nil {
		return "", types.WrapSeverityError(types.TASK_NEEDS_HUMAN, types.SeverityHuman,
			fmt.Sprintf("task %s input not provided", node.ID), err)
	}

	followUp := llmReq
	followUp.Messages = append(append([]llm.Message{}, llmReq.Messages...),
		llm.NewAIMessage(clarificationMarker+" "+question),
		llm.NewUserMessage("Answer: "+answer+"\n\nContinue the task with this information and produce the final result."),
	)

	resp, err := client.Complete(ctx, followUp)
	if err != nil {
		return "", e.fail(ctx, emit, node, "follow-up call failed", err)
	}

	value := strings.TrimSpace(resp.Content)
	emit(packet.NewAgentEnd(node.ID, value))
	return value, nil
}

// fail logs, emits the terminal failure packet, and wraps err with warn
// severity: one task's model failure is recorded, not run-ending.
func (e *LLMExecutor) fail(ctx context.Context, emit func(packet.Packet), node dag.Node, msg string, err error) error {
	werr := types.WrapSeverityError(types.TASK_FAILED, types.SeverityWarn,
		fmt.Sprintf("task %s: %s", node.ID, msg), err)
	e.logger.WarnContext(ctx, "task failed",
		"node_id", node.ID,
		"error", werr)
	emit(packet.NewFailure(packet.PacketLLMError, node.ID, types.SeverityWarn, werr.Error()))
	return werr
}

// clientFor returns a cached client for the profile, creating it on first
// use. Profiles naming the same model and endpoint share a client.
func (e *LLMExecutor) clientFor(ctx context.Context, profile config.Profile) (llm.Client, error) {
	key := profile.Model + "|" + profile.BaseURL

	e.mu.Lock()
	defer e.mu.Unlock()
	if client, ok := e.clients[key]; ok {
		return client, nil
	}

	client, err := e.factory(ctx, profile)
	if err != nil {
		return nil, err
	}
	e.clients[key] = client
	return client, nil
}
