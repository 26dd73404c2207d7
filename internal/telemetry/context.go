package telemetry

import (
	"context"
)

// Telemetry bundles the logger, tracer, event bus, and metrics recorder a
// pipeline run threads through every stage.
type Telemetry struct {
	Logger  Logger
	Tracer  *Tracer
	Bus     *Bus
	Metrics *Metrics
	Config  *Config
}

// New assembles a Telemetry bundle from cfg and the given tracer, metrics
// and logger.
func New(cfg *Config, tracer *Tracer, metrics *Metrics, logger Logger) *Telemetry {
	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Bus:     NewBus(logger),
		Metrics: metrics,
		Config:  cfg,
	}
}

type telemetryContextKey struct{}

// ContextWithTelemetry stores t in ctx for downstream retrieval by pipeline
// stages that only receive a context.Context.
func ContextWithTelemetry(ctx context.Context, t *Telemetry) context.Context {
	return context.WithValue(ctx, telemetryContextKey{}, t)
}

// FromContext retrieves a Telemetry bundle stashed by ContextWithTelemetry.
// Callers that need telemetry outside of a pipeline run (unit tests, for
// instance) should construct their own bundle rather than rely on this
// returning non-nil.
func FromContext(ctx context.Context) (*Telemetry, bool) {
	t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry)
	return t, ok
}

// StartOperation starts a child span named name under the span already
// attached to ctx (if any) or a new root span otherwise, and returns a
// context carrying the new span alongside the started Span itself so the
// caller can End it.
func (t *Telemetry) StartOperation(ctx context.Context, name string, attrs map[string]any) (context.Context, *Span) {
	if parent, ok := spanFromContext(ctx); ok {
		span := parent.StartChild(name, attrs)
		return contextWithSpan(ctx, span), span
	}
	span := t.Tracer.StartRootSpan(name, attrs)
	return contextWithSpan(ctx, span), span
}

type spanContextKey struct{}

func contextWithSpan(ctx context.Context, s *Span) context.Context {
	return context.WithValue(ctx, spanContextKey{}, s)
}

func spanFromContext(ctx context.Context) (*Span, bool) {
	s, ok := ctx.Value(spanContextKey{}).(*Span)
	return s, ok
}
