package llm

import (
	"context"
	"fmt"
)

// Role identifies who authored a message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleAI     Role = "ai"
)

// Message is one turn of a conversation sent to a model.
type Message struct {
	Role    Role
	Content string
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAIMessage creates an assistant message, used when feeding a model its
// own earlier output back.
func NewAIMessage(content string) Message {
	return Message{Role: RoleAI, Content: content}
}

// Validate checks that the message has a known role and non-empty content.
func (m Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAI:
	default:
		return fmt.Errorf("unknown message role %q", m.Role)
	}
	if m.Content == "" {
		return fmt.Errorf("message content cannot be empty")
	}
	return nil
}

// Request is a completion request. Model may be empty when the client was
// constructed with a default model.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Response is a completed (non-streaming) model answer.
type Response struct {
	Content    string
	StopReason string
}

// Chunk is one piece of a streamed answer. Err is set on the final chunk
// when the stream failed; no further chunks follow it.
type Chunk struct {
	Delta string
	Err   error
}

// Client is a language model client. Implementations wrap one provider and
// must honor ctx cancellation on both entry points.
type Client interface {
	// Name returns the provider name, e.g. "openai".
	Name() string

	// Complete sends req and waits for the full response.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream sends req and returns a channel of incremental chunks.
	// The channel is closed when the stream ends, after an Err chunk if the
	// stream failed.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}
