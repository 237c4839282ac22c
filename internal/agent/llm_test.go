package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-94/waggle-dance/internal/config"
	"github.com/j-94/waggle-dance/internal/dag"
	"github.com/j-94/waggle-dance/internal/llm"
	"github.com/j-94/waggle-dance/internal/packet"
	"github.com/j-94/waggle-dance/internal/types"
)

// fakeClient replays scripted stream chunks and a scripted completion.
type fakeClient struct {
	chunks       []llm.Chunk
	completion   string
	openErr      error
	completeErr  error
	lastStream   llm.Request
	lastComplete llm.Request
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.lastComplete = req
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &llm.Response{Content: f.completion}, nil
}

func (f *fakeClient) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.lastStream = req
	ch := make(chan llm.Chunk, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func chunksFor(s string) []llm.Chunk {
	var chunks []llm.Chunk
	for len(s) > 10 {
		chunks = append(chunks, llm.Chunk{Delta: s[:10]})
		s = s[10:]
	}
	if s != "" {
		chunks = append(chunks, llm.Chunk{Delta: s})
	}
	return chunks
}

type packetLog struct {
	nodes   []dag.Node
	packets []packet.Packet
}

func (l *packetLog) sink(node dag.Node, p packet.Packet) {
	l.nodes = append(l.nodes, node)
	l.packets = append(l.packets, p)
}

func factoryFor(client llm.Client, calls *int) ClientFactory {
	return func(ctx context.Context, profile config.Profile) (llm.Client, error) {
		if calls != nil {
			*calls++
		}
		return client, nil
	}
}

func taskRequest(log *packetLog) ExecuteRequest {
	return ExecuteRequest{
		Goal:     "write a report on DAG schedulers",
		GoalID:   types.NewID(),
		Node:     dag.Node{ID: "2-1", Name: "gather sources", Act: "research", Context: "recent material only"},
		Profile:  config.Profile{Model: "openai/gpt-4o", Temperature: 0.7, MaxTokens: 512},
		OnPacket: log.sink,
	}
}

// TestLLMExecutor_Execute tests the happy path packet sequence and value.
func TestLLMExecutor_Execute(t *testing.T) {
	client := &fakeClient{chunks: chunksFor("Here are the three strongest sources on DAG scheduling.")}
	e := NewLLMExecutor(factoryFor(client, nil))

	var log packetLog
	req := taskRequest(&log)

	value, err := e.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Here are the three strongest sources on DAG scheduling.", value)

	require.NotEmpty(t, log.packets)
	assert.Equal(t, packet.PacketLLMStart, log.packets[0].Kind)
	last := log.packets[len(log.packets)-1]
	assert.Equal(t, packet.PacketAgentEnd, last.Kind)
	assert.Equal(t, value, last.Value)

	for i, pk := range log.packets {
		assert.Equal(t, "2-1", pk.NodeID)
		assert.Equal(t, "2-1", log.nodes[i].ID)
		if i > 0 && i < len(log.packets)-1 {
			assert.Equal(t, packet.PacketToken, pk.Kind)
		}
	}

	assert.InDelta(t, 0.7, client.lastStream.Temperature, 0.0001)
	assert.Equal(t, 512, client.lastStream.MaxTokens)
}

// TestLLMExecutor_PreCancelled tests that a done context emits nothing.
func TestLLMExecutor_PreCancelled(t *testing.T) {
	client := &fakeClient{chunks: chunksFor("never used")}
	e := NewLLMExecutor(factoryFor(client, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var log packetLog
	_, err := e.Execute(ctx, taskRequest(&log))
	require.Error(t, err)
	assert.Equal(t, types.TASK_ABORTED, types.CodeOf(err))
	assert.Equal(t, types.SeverityFatal, types.SeverityOf(err))
	assert.Empty(t, log.packets)
}

// TestLLMExecutor_StreamFailure tests warn-severity failure conversion.
func TestLLMExecutor_StreamFailure(t *testing.T) {
	client := &fakeClient{chunks: []llm.Chunk{
		{Delta: "partial "},
		{Err: errors.New("rate limited")},
	}}
	e := NewLLMExecutor(factoryFor(client, nil))

	var log packetLog
	_, err := e.Execute(context.Background(), taskRequest(&log))
	require.Error(t, err)
	assert.Equal(t, types.TASK_FAILED, types.CodeOf(err))
	assert.Equal(t, types.SeverityWarn, types.SeverityOf(err))

	last := log.packets[len(log.packets)-1]
	assert.Equal(t, packet.PacketLLMError, last.Kind)
	assert.Equal(t, types.SeverityWarn, last.Severity)
	assert.Contains(t, last.Message, "rate limited")
}

// TestLLMExecutor_MidStreamCancellation tests that cancellation stops
// emission without a failure packet; reporting is the scheduler's job.
func TestLLMExecutor_MidStreamCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeClient{chunks: []llm.Chunk{
		{Delta: "started "},
		{Err: context.Canceled},
	}}
	e := NewLLMExecutor(factoryFor(client, nil))

	var log packetLog
	req := taskRequest(&log)
	req.OnPacket = func(node dag.Node, p packet.Packet) {
		log.sink(node, p)
		if p.Kind == packet.PacketToken {
			cancel()
		}
	}

	_, err := e.Execute(ctx, req)
	require.Error(t, err)
	assert.Equal(t, types.TASK_ABORTED, types.CodeOf(err))

	for _, pk := range log.packets {
		assert.False(t, pk.Kind.Failure(), "no failure packet on abort, got %s", pk.Kind)
	}
}

// TestLLMExecutor_FactoryFailure tests client resolution errors.
func TestLLMExecutor_FactoryFailure(t *testing.T) {
	e := NewLLMExecutor(func(ctx context.Context, profile config.Profile) (llm.Client, error) {
		return nil, types.NewError(types.LLM_AUTH_FAILED, "no key configured")
	})

	var log packetLog
	_, err := e.Execute(context.Background(), taskRequest(&log))
	require.Error(t, err)
	assert.Equal(t, types.TASK_FAILED, types.CodeOf(err))
	assert.Equal(t, types.SeverityWarn, types.SeverityOf(err))
	assert.ErrorIs(t, err, types.NewError(types.LLM_AUTH_FAILED, ""))

	require.Len(t, log.packets, 1)
	assert.Equal(t, packet.PacketLLMError, log.packets[0].Kind)
}

// TestLLMExecutor_ReviewTask tests review prompting with predecessor results.
func TestLLMExecutor_ReviewTask(t *testing.T) {
	graph := dag.New(
		[]dag.Node{
			{ID: "2-1", Name: "gather sources", Act: "research"},
			{ID: "2-2", Name: "outline report", Act: "write"},
			{ID: "2-review", Name: "merge findings", Act: "review"},
		},
		[]dag.Edge{
			{Source: "2-1", Target: "2-review"},
			{Source: "2-2", Target: "2-review"},
		},
	)

	client := &fakeClient{chunks: chunksFor("Merged deliverable.")}
	e := NewLLMExecutor(factoryFor(client, nil))

	var log packetLog
	req := ExecuteRequest{
		Goal:  "write a report",
		Node:  dag.Node{ID: "2-review", Name: "merge findings", Act: "review"},
		Graph: graph,
		PriorResults: map[string]string{
			"2-1": "sources: A, B, C",
			"2-2": "outline: intro, body, close",
		},
		Completed: []string{"1", "2-1", "2-2"},
		Profile:   config.Profile{Model: "openai/gpt-4o-mini"},
		OnPacket:  log.sink,
	}

	value, err := e.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Merged deliverable.", value)

	system := client.lastStream.Messages[0].Content
	user := client.lastStream.Messages[1].Content
	assert.Contains(t, system, "review agent")
	assert.Contains(t, user, "sources: A, B, C")
	assert.Contains(t, user, "outline: intro, body, close")
	assert.Contains(t, user, "gather sources")
}

// TestLLMExecutor_HumanRequestParks tests the no-callback escape path.
func TestLLMExecutor_HumanRequestParks(t *testing.T) {
	client := &fakeClient{chunks: chunksFor("NEED_HUMAN_INPUT: which region should the deployment target?")}
	e := NewLLMExecutor(factoryFor(client, nil))

	var log packetLog
	_, err := e.Execute(context.Background(), taskRequest(&log))
	require.Error(t, err)
	assert.Equal(t, types.TASK_NEEDS_HUMAN, types.CodeOf(err))
	assert.Equal(t, types.SeverityHuman, types.SeverityOf(err))

	last := log.packets[len(log.packets)-1]
	assert.Equal(t, packet.PacketHumanRequest, last.Kind)
	assert.Equal(t, "which region should the deployment target?", last.Reason)
}

// TestLLMExecutor_HumanRequestAnswered tests the callback follow-up path.
func TestLLMExecutor_HumanRequestAnswered(t *testing.T) {
	client := &fakeClient{
		chunks:     chunksFor("NEED_HUMAN_INPUT: which region?"),
		completion: "Deployed to eu-west-1.",
	}
	e := NewLLMExecutor(factoryFor(client, nil), WithHumanInput(
		func(ctx context.Context, node dag.Node, question string) (string, error) {
			assert.Equal(t, "which region?", question)
			return "eu-west-1", nil
		},
	))

	var log packetLog
	value, err := e.Execute(context.Background(), taskRequest(&log))
	require.NoError(t, err)
	assert.Equal(t, "Deployed to eu-west-1.", value)

	// The follow-up carries the original exchange plus the answer.
	msgs := client.lastComplete.Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleAI, msgs[2].Role)
	assert.Contains(t, msgs[3].Content, "eu-west-1")

	kinds := make([]packet.Kind, 0, len(log.packets))
	for _, pk := range log.packets {
		kinds = append(kinds, pk.Kind)
	}
	assert.Contains(t, kinds, packet.PacketHumanRequest)
	assert.Equal(t, packet.PacketAgentEnd, kinds[len(kinds)-1])
}

// TestLLMExecutor_HumanInputRefused tests callback errors parking the task.
func TestLLMExecutor_HumanInputRefused(t *testing.T) {
	client := &fakeClient{chunks: chunksFor("NEED_HUMAN_INPUT: proceed?")}
	e := NewLLMExecutor(factoryFor(client, nil), WithHumanInput(
		func(ctx context.Context, node dag.Node, question string) (string, error) {
			return "", errors.New("nobody at the keyboard")
		},
	))

	var log packetLog
	_, err := e.Execute(context.Background(), taskRequest(&log))
	require.Error(t, err)
	assert.Equal(t, types.TASK_NEEDS_HUMAN, types.CodeOf(err))
	assert.Equal(t, types.SeverityHuman, types.SeverityOf(err))
}

// TestLLMExecutor_ClientCaching tests one factory call per model+endpoint.
func TestLLMExecutor_ClientCaching(t *testing.T) {
	client := &fakeClient{chunks: chunksFor("done")}
	calls := 0
	e := NewLLMExecutor(factoryFor(client, &calls))

	var log packetLog
	req := taskRequest(&log)
	_, err := e.Execute(context.Background(), req)
	require.NoError(t, err)
	client.chunks = chunksFor("done again")
	_, err = e.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}
