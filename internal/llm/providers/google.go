package providers

import (
	"context"
	"os"

	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/j-94/waggle-dance/internal/llm"
	"github.com/j-94/waggle-dance/internal/types"
)

// GoogleClient implements llm.Client for Gemini models.
type GoogleClient struct {
	client *googleai.GoogleAI
}

// NewGoogleClient creates a Gemini-backed client. The API key falls back to
// GOOGLE_API_KEY when cfg leaves it empty. Unlike the other constructors
// this one needs a context: the underlying SDK dials during setup.
func NewGoogleClient(ctx context.Context, cfg Config) (*GoogleClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, types.NewError(types.LLM_AUTH_FAILED, "google: no api key configured")
	}

	opts := []googleai.Option{
		googleai.WithAPIKey(apiKey),
	}
	if cfg.Model != "" {
		opts = append(opts, googleai.WithDefaultModel(cfg.Model))
	}

	client, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, wrapRequestErr("google", err)
	}
	return &GoogleClient{client: client}, nil
}

// Name returns the provider name.
func (c *GoogleClient) Name() string {
	return "google"
}

// Complete sends a blocking completion request.
func (c *GoogleClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return completeRequest(ctx, "google", c.client, req)
}

// Stream sends a streaming completion request.
func (c *GoogleClient) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	return streamRequest(ctx, "google", c.client, req)
}

var _ llm.Client = (*GoogleClient)(nil)
