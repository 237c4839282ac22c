package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"

	"github.com/j-94/waggle-dance/internal/types"
	"github.com/j-94/waggle-dance/pkg/version"
)

const (
	defaultBatchTimeout = 5 * time.Second
	defaultServiceName  = "waggledance"
)

// TracingConfig contains distributed tracing configuration. Spans are
// exported over OTLP/gRPC; when Enabled is false no spans are recorded.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"`
	ServiceName string  `yaml:"service_name" mapstructure:"service_name"`
	SampleRate  float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
	TLSCertFile string  `yaml:"tls_cert_file" mapstructure:"tls_cert_file"`
	TLSKeyFile  string  `yaml:"tls_key_file" mapstructure:"tls_key_file"`
	Insecure    bool    `yaml:"insecure" mapstructure:"insecure"`
}

// Validate checks the tracing configuration for use with InitTracing.
// A disabled configuration is always valid.
func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return types.NewError(types.TRACE_INIT_FAILED, "endpoint is required when tracing is enabled")
	}
	if c.SampleRate < 0.0 || c.SampleRate > 1.0 {
		return types.NewError(types.TRACE_INIT_FAILED,
			fmt.Sprintf("invalid sample rate: %f (must be between 0.0 and 1.0)", c.SampleRate))
	}
	return nil
}

// TracingOption is a functional option for configuring tracing initialization.
type TracingOption func(*tracingOptions)

type tracingOptions struct {
	sampler      sdktrace.Sampler
	resource     *resource.Resource
	batchTimeout time.Duration
}

// WithSampler sets a custom sampler for the tracer provider.
func WithSampler(sampler sdktrace.Sampler) TracingOption {
	return func(o *tracingOptions) {
		o.sampler = sampler
	}
}

// WithResource sets a custom resource describing the telemetry producer.
func WithResource(res *resource.Resource) TracingOption {
	return func(o *tracingOptions) {
		o.resource = res
	}
}

// WithBatchTimeout sets the maximum time between batch exports. Spans are
// exported when this timeout is reached even if the batch is not full.
func WithBatchTimeout(timeout time.Duration) TracingOption {
	return func(o *tracingOptions) {
		o.batchTimeout = timeout
	}
}

// InitTracing initializes distributed tracing over OTLP/gRPC and installs
// the resulting provider as the global tracer provider.
//
// When cfg.Enabled is false it returns a provider with no exporters, which
// records nothing and has negligible overhead, so callers can wire tracing
// unconditionally.
func InitTracing(ctx context.Context, cfg TracingConfig, opts ...TracingOption) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		return sdktrace.NewTracerProvider(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &tracingOptions{
		batchTimeout: defaultBatchTimeout,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.sampler == nil {
		options.sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	if options.resource == nil {
		serviceName := cfg.ServiceName
		if serviceName == "" {
			serviceName = defaultServiceName
		}

		// resource.New rather than resource.Default avoids schema URL
		// conflicts when merging attributes across semconv versions.
		res, err := resource.New(
			ctx,
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
				semconv.ServiceVersion(version.Version),
			),
			resource.WithFromEnv(),
			resource.WithTelemetrySDK(),
		)
		if err != nil {
			return nil, types.WrapError(types.TRACE_INIT_FAILED, "failed to create resource", err)
		}
		options.resource = res
	}

	otlpOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	switch {
	case cfg.TLSCertFile != "" && cfg.TLSKeyFile != "":
		creds, err := credentials.NewClientTLSFromFile(cfg.TLSCertFile, "")
		if err != nil {
			return nil, types.WrapError(types.TRACE_INIT_FAILED, "failed to load TLS credentials", err)
		}
		otlpOpts = append(otlpOpts, otlptracegrpc.WithTLSCredentials(creds))
	case cfg.Insecure:
		otlpOpts = append(otlpOpts, otlptracegrpc.WithInsecure())
	default:
		// System TLS: no client certificate, but verify the server.
		otlpOpts = append(otlpOpts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(nil)))
	}

	exporter, err := otlptracegrpc.New(ctx, otlpOpts...)
	if err != nil {
		return nil, types.WrapError(types.TRACE_INIT_FAILED,
			fmt.Sprintf("failed to connect exporter to %s", cfg.Endpoint), err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(options.batchTimeout),
		),
		sdktrace.WithSampler(options.sampler),
		sdktrace.WithResource(options.resource),
	)

	otel.SetTracerProvider(tp)

	return tp, nil
}

// ShutdownTracing gracefully shuts down the tracer provider, flushing any
// pending spans. Call it before application exit; the context timeout bounds
// how long to wait for in-flight exports.
func ShutdownTracing(ctx context.Context, provider *sdktrace.TracerProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return types.WrapError(types.TRACE_SHUTDOWN_FAILED, "failed to shutdown tracer provider", err)
	}

	return nil
}

// Tracer returns a named tracer from the global provider. Before InitTracing
// runs this is a no-op tracer, so it is safe to call at any time.
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}
