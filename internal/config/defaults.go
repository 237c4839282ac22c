package config

// DefaultSettings returns settings that work with only OPENAI_API_KEY set.
// Planning runs cold for reproducible graphs; execution runs warmer.
// MaxConcurrency is left unbounded so the scheduler fans out as wide as the
// graph allows.
func DefaultSettings() *Settings {
	return &Settings{
		Plan: Profile{
			Model:           "openai/gpt-4o",
			Temperature:     0,
			MaxTokens:       2048,
			PromptingMethod: "chain-of-thought",
		},
		Review: Profile{
			Model:           "openai/gpt-4o-mini",
			Temperature:     0,
			MaxTokens:       1024,
			PromptingMethod: "direct",
		},
		Execute: Profile{
			Model:           "openai/gpt-4o",
			Temperature:     0.7,
			MaxTokens:       2048,
			PromptingMethod: "direct",
			MaxConcurrency:  0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
		},
	}
}
