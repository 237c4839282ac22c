package providers

import (
	"context"
	"os"

	"github.com/tmc/langchaingo/llms/anthropic"

	"github.com/j-94/waggle-dance/internal/llm"
	"github.com/j-94/waggle-dance/internal/types"
)

// AnthropicClient implements llm.Client for Anthropic models.
type AnthropicClient struct {
	client *anthropic.LLM
}

// NewAnthropicClient creates an Anthropic-backed client. The API key falls
// back to ANTHROPIC_API_KEY when cfg leaves it empty.
func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, types.NewError(types.LLM_AUTH_FAILED, "anthropic: no api key configured")
	}

	opts := []anthropic.Option{
		anthropic.WithToken(apiKey),
	}
	if cfg.Model != "" {
		opts = append(opts, anthropic.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	client, err := anthropic.New(opts...)
	if err != nil {
		return nil, wrapRequestErr("anthropic", err)
	}
	return &AnthropicClient{client: client}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Complete sends a blocking completion request.
func (c *AnthropicClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return completeRequest(ctx, "anthropic", c.client, req)
}

// Stream sends a streaming completion request.
func (c *AnthropicClient) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	return streamRequest(ctx, "anthropic", c.client, req)
}

var _ llm.Client = (*AnthropicClient)(nil)
