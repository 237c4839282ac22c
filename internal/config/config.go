package config

// Settings holds the three model profiles a run uses: one for planning the
// graph, one for review nodes, and one for everything else. Each profile
// names its model as "provider/model" so runs can mix providers.
type Settings struct {
	Plan    Profile       `mapstructure:"plan" yaml:"plan" validate:"required"`
	Review  Profile       `mapstructure:"review" yaml:"review" validate:"required"`
	Execute Profile       `mapstructure:"execute" yaml:"execute" validate:"required"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// Profile configures one model role.
type Profile struct {
	// Model is a "provider/model" identifier, e.g. "openai/gpt-4o".
	Model       string  `mapstructure:"model" yaml:"model" validate:"required"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`

	// MaxTokens limits the response length. Zero leaves it to the provider.
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=0"`

	// PromptingMethod selects the prompt framing for this role.
	PromptingMethod string `mapstructure:"prompting_method" yaml:"prompting_method" validate:"omitempty,oneof=direct chain-of-thought"`

	// MaxConcurrency caps how many tasks run at once under this profile.
	// Zero means unbounded. Only consulted on the execute profile.
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency" validate:"gte=0"`

	// APIKey overrides the provider's environment variable lookup.
	// Supports ${VAR} interpolation from the environment.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	// BaseURL overrides the provider endpoint (proxies, ollama hosts).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// LoggingConfig controls the slog handler the CLI installs.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}

// TracingConfig controls OTLP span export. Endpoint is required only when
// tracing is enabled; SampleRate zero falls back to sampling everything.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint" validate:"required_if=Enabled true"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
}
