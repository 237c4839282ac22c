package providers

import (
	"context"
	"os"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/j-94/waggle-dance/internal/llm"
	"github.com/j-94/waggle-dance/internal/types"
)

// OpenAIClient implements llm.Client for OpenAI models.
type OpenAIClient struct {
	client *openai.LLM
}

// NewOpenAIClient creates an OpenAI-backed client. The API key falls back to
// OPENAI_API_KEY when cfg leaves it empty.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, types.NewError(types.LLM_AUTH_FAILED, "openai: no api key configured")
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, wrapRequestErr("openai", err)
	}
	return &OpenAIClient{client: client}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Complete sends a blocking completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return completeRequest(ctx, "openai", c.client, req)
}

// Stream sends a streaming completion request.
func (c *OpenAIClient) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	return streamRequest(ctx, "openai", c.client, req)
}

var _ llm.Client = (*OpenAIClient)(nil)
