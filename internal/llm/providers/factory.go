package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/j-94/waggle-dance/internal/config"
	"github.com/j-94/waggle-dance/internal/llm"
	"github.com/j-94/waggle-dance/internal/types"
)

// ParseModelIdentifier splits a "provider/model" identifier as used in
// settings profiles, e.g. "openai/gpt-4o" or "ollama/llama3:8b".
func ParseModelIdentifier(identifier string) (provider, model string, err error) {
	provider, model, found := strings.Cut(identifier, "/")
	if !found || provider == "" || model == "" {
		return "", "", types.NewError(types.LLM_PROVIDER_NOT_FOUND,
			fmt.Sprintf("model identifier %q is not of the form provider/model", identifier))
	}
	return provider, model, nil
}

// New constructs the client named by cfg.Provider.
func New(ctx context.Context, cfg Config) (llm.Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg)
	case "anthropic":
		return NewAnthropicClient(cfg)
	case "google", "googleai", "gemini":
		return NewGoogleClient(ctx, cfg)
	case "ollama":
		return NewOllamaClient(cfg)
	default:
		return nil, types.NewError(types.LLM_PROVIDER_NOT_FOUND,
			fmt.Sprintf("unknown provider %q (expected openai, anthropic, google, or ollama)", cfg.Provider))
	}
}

// NewFromIdentifier parses a "provider/model" identifier and constructs the
// matching client.
func NewFromIdentifier(ctx context.Context, identifier string) (llm.Client, error) {
	provider, model, err := ParseModelIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	return New(ctx, Config{Provider: provider, Model: model})
}

// NewFromProfile constructs the client a settings profile names, carrying
// over its key and endpoint overrides.
func NewFromProfile(ctx context.Context, profile config.Profile) (llm.Client, error) {
	provider, model, err := ParseModelIdentifier(profile.Model)
	if err != nil {
		return nil, err
	}
	return New(ctx, Config{
		Provider: provider,
		Model:    model,
		APIKey:   profile.APIKey,
		BaseURL:  profile.BaseURL,
	})
}
