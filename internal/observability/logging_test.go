package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

var (
	testTraceID = trace.TraceID{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
	testSpanID  = trace.SpanID{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
)

// spanContext returns a context carrying a valid remote span context.
func spanContext() context.Context {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    testTraceID,
		SpanID:     testSpanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

// TestNewRunLogger tests logger construction.
func TestNewRunLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewRunLogger(NewJSONHandler(buf, slog.LevelInfo), "goal-123", "scheduler")

	require.NotNil(t, logger)
	assert.Equal(t, "goal-123", logger.goalID)
	assert.Equal(t, "scheduler", logger.component)
	assert.True(t, logger.redactSensitive)
}

// TestRunLogger_Info tests that run context fields appear on every entry.
func TestRunLogger_Info(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewRunLogger(NewJSONHandler(buf, slog.LevelInfo), "goal-123", "planner")

	logger.Info(context.Background(), "planning started", "node_count", 4)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "planning started", entry["msg"])
	assert.Equal(t, "goal-123", entry["goal_id"])
	assert.Equal(t, "planner", entry["component"])
	assert.EqualValues(t, 4, entry["node_count"])
}

// TestRunLogger_Redaction tests sensitive value redaction at info and above.
func TestRunLogger_Redaction(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewRunLogger(NewJSONHandler(buf, slog.LevelDebug), "goal-123", "agent")

	logger.Info(context.Background(), "calling model", "api_key", "sk-secret", "model", "gpt-4o")

	output := buf.String()
	assert.Contains(t, output, "[REDACTED]")
	assert.NotContains(t, output, "sk-secret")
	assert.Contains(t, output, "gpt-4o")

	buf.Reset()
	logger.Debug(context.Background(), "calling model", "api_key", "sk-secret")
	assert.Contains(t, buf.String(), "sk-secret")
}

// TestRunLogger_TraceCorrelation tests trace and span id extraction.
func TestRunLogger_TraceCorrelation(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewRunLogger(NewJSONHandler(buf, slog.LevelInfo), "goal-123", "scheduler")

	logger.Info(spanContext(), "dispatching")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, testTraceID.String(), entry["trace_id"])
	assert.Equal(t, testSpanID.String(), entry["span_id"])
}

// TestRunLogger_NoSpan tests that entries without a span omit trace fields.
func TestRunLogger_NoSpan(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewRunLogger(NewJSONHandler(buf, slog.LevelInfo), "goal-123", "scheduler")

	logger.Info(context.Background(), "dispatching")

	assert.NotContains(t, buf.String(), "trace_id")
	assert.NotContains(t, buf.String(), "span_id")
}

// TestParseLevel tests level string mapping.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"fatal", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestNewHandler tests format selection and level filtering.
func TestNewHandler(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, err := NewHandler(buf, "json", "warn")
	require.NoError(t, err)

	logger := slog.New(handler)
	logger.Info("dropped")
	logger.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)

	buf.Reset()
	handler, err = NewHandler(buf, "text", "info")
	require.NoError(t, err)
	slog.New(handler).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")

	_, err = NewHandler(buf, "json", "loud")
	assert.Error(t, err)
}

// TestRedactSensitiveData tests the redaction key matching.
func TestRedactSensitiveData(t *testing.T) {
	args := []any{"prompt", "plan the thing", "count", 3, "API_KEY", "sk-1"}
	redacted := redactSensitiveData(args)

	assert.Equal(t, "[REDACTED]", redacted[1])
	assert.Equal(t, 3, redacted[3])
	assert.Equal(t, "[REDACTED]", redacted[5])

	// Odd arg counts pass through untouched.
	odd := []any{"prompt"}
	assert.Equal(t, odd, redactSensitiveData(odd))
}
