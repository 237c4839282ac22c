package providers

import (
	"context"
	"os"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/j-94/waggle-dance/internal/llm"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaClient implements llm.Client for locally served models.
type OllamaClient struct {
	client *ollama.LLM
}

// NewOllamaClient creates an Ollama-backed client. The server URL falls back
// to OLLAMA_HOST, then to localhost. No API key is involved.
func NewOllamaClient(cfg Config) (*OllamaClient, error) {
	serverURL := cfg.BaseURL
	if serverURL == "" {
		serverURL = os.Getenv("OLLAMA_HOST")
	}
	if serverURL == "" {
		serverURL = defaultOllamaURL
	}

	opts := []ollama.Option{
		ollama.WithServerURL(serverURL),
	}
	if cfg.Model != "" {
		opts = append(opts, ollama.WithModel(cfg.Model))
	}

	client, err := ollama.New(opts...)
	if err != nil {
		return nil, wrapRequestErr("ollama", err)
	}
	return &OllamaClient{client: client}, nil
}

// Name returns the provider name.
func (c *OllamaClient) Name() string {
	return "ollama"
}

// Complete sends a blocking completion request.
func (c *OllamaClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return completeRequest(ctx, "ollama", c.client, req)
}

// Stream sends a streaming completion request.
func (c *OllamaClient) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	return streamRequest(ctx, "ollama", c.client, req)
}

var _ llm.Client = (*OllamaClient)(nil)
