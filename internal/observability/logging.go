package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// RunLogger is a structured logger with automatic trace correlation.
// It wraps slog.Logger and adds run context and OpenTelemetry trace
// correlation to every entry.
type RunLogger struct {
	logger          *slog.Logger
	goalID          string
	component       string
	redactSensitive bool
}

// NewRunLogger creates a new RunLogger with the specified handler and context.
//
// Parameters:
//   - handler: The slog.Handler to use for formatting and outputting logs
//   - goalID: The unique identifier for the current run's goal
//   - component: The name of the component producing logs (scheduler, planner, ...)
//
// Returns:
//   - *RunLogger: A configured logger ready for use
func NewRunLogger(handler slog.Handler, goalID, component string) *RunLogger {
	return &RunLogger{
		logger:          slog.New(handler),
		goalID:          goalID,
		component:       component,
		redactSensitive: true,
	}
}

// Debug logs a debug-level message with automatic trace correlation.
// Debug logs include all fields without redaction.
func (l *RunLogger) Debug(ctx context.Context, msg string, args ...any) {
	logger := l.WithContext(ctx)
	logger.Debug(msg, args...)
}

// Info logs an info-level message with automatic trace correlation.
// Sensitive data in args is redacted at info level and above.
func (l *RunLogger) Info(ctx context.Context, msg string, args ...any) {
	logger := l.WithContext(ctx)
	if l.redactSensitive {
		args = redactSensitiveData(args)
	}
	logger.Info(msg, args...)
}

// Warn logs a warning-level message with automatic trace correlation.
// Sensitive data in args is redacted at warn level and above.
func (l *RunLogger) Warn(ctx context.Context, msg string, args ...any) {
	logger := l.WithContext(ctx)
	if l.redactSensitive {
		args = redactSensitiveData(args)
	}
	logger.Warn(msg, args...)
}

// Error logs an error-level message with automatic trace correlation.
// Sensitive data in args is redacted at error level.
func (l *RunLogger) Error(ctx context.Context, msg string, args ...any) {
	logger := l.WithContext(ctx)
	if l.redactSensitive {
		args = redactSensitiveData(args)
	}
	logger.Error(msg, args...)
}

// WithContext creates a new slog.Logger with trace correlation fields added.
// Extracts trace_id and span_id from the OpenTelemetry span in the context
// and adds goal_id and component to every log entry.
func (l *RunLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := l.logger

	logger = logger.With(
		slog.String("goal_id", l.goalID),
		slog.String("component", l.component),
	)

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		logger = logger.With(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}

	return logger
}

// ParseLevel maps a configuration level string onto a slog.Level.
// Accepted values are debug, info, warn, and error (case-insensitive).
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", level)
	}
}

// NewHandler builds a slog.Handler for the given format and level string.
// Format json produces structured output for production; anything else falls
// back to human-readable text.
func NewHandler(w io.Writer, format, level string) (slog.Handler, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if strings.ToLower(format) == "json" {
		return NewJSONHandler(w, lvl), nil
	}
	return NewTextHandler(w, lvl), nil
}

// NewJSONHandler creates a new JSON log handler with the specified output and level.
// JSON format is ideal for structured logging in production environments.
func NewJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
}

// NewTextHandler creates a new text log handler with the specified output and level.
// Text format is human-readable and useful for development and debugging.
func NewTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
}

// redactSensitiveData redacts sensitive fields in log arguments.
// Sensitive fields include prompts, API keys, secrets, passwords, and
// credentials. Their values are replaced with "[REDACTED]".
func redactSensitiveData(args []any) []any {
	if len(args)%2 != 0 {
		// Invalid args, return as-is
		return args
	}

	sensitiveFields := map[string]bool{
		"prompt":     true,
		"prompts":    true,
		"apikey":     true,
		"secret":     true,
		"secretkey":  true,
		"password":   true,
		"token":      true,
		"credential": true,
	}

	redacted := make([]any, len(args))
	copy(redacted, args)

	for i := 0; i < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			normalizedKey := strings.ToLower(strings.ReplaceAll(key, "_", ""))
			if sensitiveFields[normalizedKey] {
				redacted[i+1] = "[REDACTED]"
			}
		}
	}

	return redacted
}
