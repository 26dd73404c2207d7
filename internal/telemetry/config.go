package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config is the full telemetry configuration for a build run, per the
// ambient logging/tracing/metrics stack.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	Logging LoggingConfig
	Tracing TracingConfig
	Metrics MetricsConfig
	Events  EventsConfig
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string // trace, debug, info, warn, error, fatal
	Format string // console, json
}

// TracingConfig configures the OpenTelemetry span tree exporter.
type TracingConfig struct {
	Enabled      bool
	Exporter     string // otlp, stdout, none
	Endpoint     string
	SamplingRate float64
	Insecure     bool
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled       bool
	ListenAddress string
	Namespace     string
}

// EventsConfig configures the in-process event bus.
type EventsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration used when no overrides
// are given on the command line or in a project's dtifx.cue file.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "dtifx",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Tracing: TracingConfig{
			Enabled:      true,
			Exporter:     "stdout",
			SamplingRate: 1.0,
			Insecure:     true,
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: ":9090",
			Namespace:     "dtifx",
		},
		Events: EventsConfig{Enabled: true},
	}
}

// ProductionConfig tunes DefaultConfig for CI and long-lived watch-mode
// daemons: JSON logs, OTLP export, and metrics scraping turned on.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.Logging.Format = "json"
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.SamplingRate = 0.25
	cfg.Tracing.Insecure = false
	cfg.Metrics.Enabled = true
	return cfg
}

// Validate rejects a Config with unrecognized enum values before it's used
// to construct a Logger/Tracer, matching the ambient stack's fail-fast
// configuration-error behavior.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	validExporters := map[string]bool{"otlp": true, "stdout": true, "none": true}
	if c.Tracing.Enabled && !validExporters[c.Tracing.Exporter] {
		return fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got %f", c.Tracing.SamplingRate)
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}
	return nil
}

// NewTracerProvider builds the sdktrace.TracerProvider the Tracer wraps,
// selecting an exporter per Tracing.Exporter. "none" yields a provider with
// no span processor so Start calls are free but export nothing.
func NewTracerProvider(ctx context.Context, cfg *Config) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("merge telemetry resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Tracing.SamplingRate))),
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Exporter {
		case "otlp":
			dialOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Tracing.Endpoint)}
			if cfg.Tracing.Insecure {
				dialOpts = append(dialOpts, otlptracegrpc.WithInsecure())
			}
			exp, err := otlptracegrpc.New(ctx, dialOpts...)
			if err != nil {
				return nil, fmt.Errorf("create otlp exporter: %w", err)
			}
			opts = append(opts, sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(30*time.Second)))
		case "stdout":
			exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
			if err != nil {
				return nil, fmt.Errorf("create stdout exporter: %w", err)
			}
			opts = append(opts, sdktrace.WithBatcher(exp))
		case "none":
			// no processor: spans are created but never exported.
		}
	}

	return sdktrace.NewTracerProvider(opts...), nil
}
