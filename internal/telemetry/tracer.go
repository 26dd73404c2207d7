package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// SpanEvent is one entry in a Span's ordered event list.
type SpanEvent struct {
	Name       string
	Attributes map[string]any
}

// Span wraps an OpenTelemetry span with the strict-tree semantics §4.9
// requires: children must end before or at the time their parent ends, and
// a span must not be mutated after End except to export.
type Span struct {
	otelSpan trace.Span
	tracer   *Tracer

	mu     sync.Mutex
	ended  bool
	events []SpanEvent
}

// StartChild starts a new child span under s.
func (s *Span) StartChild(name string, attrs map[string]any) *Span {
	return s.tracer.startSpan(trace.ContextWithSpan(context.Background(), s.otelSpan), name, attrs)
}

// AddEvent appends a named event with attributes to the span's event list.
func (s *Span) AddEvent(name string, attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.events = append(s.events, SpanEvent{Name: name, Attributes: attrs})
	s.otelSpan.AddEvent(name, trace.WithAttributes(toAttributes(attrs)...))
}

// End closes the span. status == "error" propagates an error marker to the
// OTel span so ancestor exporters can surface it; attrs are merged in
// before the span closes.
func (s *Span) End(status string, attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true

	if len(attrs) > 0 {
		s.otelSpan.SetAttributes(toAttributes(attrs)...)
	}
	if status == "error" {
		s.otelSpan.SetStatus(codes.Error, "")
	} else {
		s.otelSpan.SetStatus(codes.Ok, "")
	}
	s.otelSpan.End()
}

// Events returns a copy of the span's recorded events.
func (s *Span) Events() []SpanEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SpanEvent, len(s.events))
	copy(out, s.events)
	return out
}

func toAttributes(attrs map[string]any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			out = append(out, attribute.String(k, val))
		case int:
			out = append(out, attribute.Int(k, val))
		case int64:
			out = append(out, attribute.Int64(k, val))
		case float64:
			out = append(out, attribute.Float64(k, val))
		case bool:
			out = append(out, attribute.Bool(k, val))
		default:
			out = append(out, attribute.String(k, toString(val)))
		}
	}
	return out
}

func toString(v any) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

// Common span names for the fixed dtifx.pipeline.* tree.
const (
	SpanPipelineRun       = "dtifx.pipeline.run"
	SpanPipelinePlan      = "dtifx.pipeline.plan"
	SpanPipelineResolve   = "dtifx.pipeline.resolve"
	SpanPipelineTransform = "dtifx.pipeline.transform"
	SpanPipelineFormat    = "dtifx.pipeline.format"
	SpanWatchIteration    = "dtifx.cli.watch.iteration"
)

// Tracer is the span-tree factory. It wraps an OTel TracerProvider whose
// exporter is selected by Config.
type Tracer struct {
	tracer trace.Tracer
	tp     *sdktrace.TracerProvider
}

// NewTracer constructs a Tracer from an already-configured
// sdktrace.TracerProvider (see NewTracerProvider in config.go).
func NewTracer(tp *sdktrace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer("dtifx"), tp: tp}
}

// StartRootSpan starts a new root span, detached from any parent.
func (t *Tracer) StartRootSpan(name string, attrs map[string]any) *Span {
	return t.startSpan(context.Background(), name, attrs)
}

func (t *Tracer) startSpan(ctx context.Context, name string, attrs map[string]any) *Span {
	_, otelSpan := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))
	return &Span{otelSpan: otelSpan, tracer: t}
}

// Flush forces the underlying exporter to send every completed span.
// Every pipeline run calls this on every code path, per §7:
// "telemetry.exportSpans() is still invoked" even on error. Unlike
// Shutdown, the provider remains usable afterward, so watch mode can
// call Flush once per iteration.
func (t *Tracer) Flush(ctx context.Context) error {
	if t.tp == nil {
		return nil
	}
	return t.tp.ForceFlush(ctx)
}

// Shutdown permanently closes the underlying exporter. Call this once,
// at process exit, after the last Flush.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.tp == nil {
		return nil
	}
	return t.tp.Shutdown(ctx)
}

// NoopTracerProvider returns the global OpenTelemetry tracer provider, which
// is a no-op unless one has been registered, for callers that don't need
// real export.
func NoopTracerProvider() trace.TracerProvider {
	return otel.GetTracerProvider()
}
