// Package telemetry implements the event bus, the OpenTelemetry-backed span
// tree, the structured logger, and the Prometheus metrics the pipeline
// reports through, per §4.9 and the ambient logging stack.
package telemetry

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with the chaining helpers the pipeline stages
// use to scope log lines to a run, stage, or pointer.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger constructs a Logger writing JSON to w, or a colorized console
// writer when pretty is true (mirrors --json-logs from §6).
func NewLogger(w io.Writer, pretty bool, level zerolog.Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	output := w
	if pretty {
		output = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return Logger{zl: zl}
}

// WithRunID scopes subsequent log lines to a build run.
func (l Logger) WithRunID(id string) Logger { return Logger{zl: l.zl.With().Str("runId", id).Logger()} }

// WithStage scopes subsequent log lines to a pipeline stage name.
func (l Logger) WithStage(stage string) Logger {
	return Logger{zl: l.zl.With().Str("stage", stage).Logger()}
}

// WithPointer scopes subsequent log lines to a token pointer.
func (l Logger) WithPointer(pointer string) Logger {
	return Logger{zl: l.zl.With().Str("pointer", pointer).Logger()}
}

// WithComponent scopes subsequent log lines to a named component (A-M).
func (l Logger) WithComponent(name string) Logger {
	return Logger{zl: l.zl.With().Str("component", name).Logger()}
}

func (l Logger) Debug(msg string, fields map[string]any) { l.event(l.zl.Debug(), msg, fields) }
func (l Logger) Info(msg string, fields map[string]any)  { l.event(l.zl.Info(), msg, fields) }
func (l Logger) Warn(msg string, fields map[string]any)  { l.event(l.zl.Warn(), msg, fields) }

func (l Logger) Error(msg string, err error, fields map[string]any) {
	evt := l.zl.Error()
	if err != nil {
		evt = evt.Err(err)
	}
	l.event(evt, msg, fields)
}

func (l Logger) event(evt *zerolog.Event, msg string, fields map[string]any) {
	for k, v := range fields {
		evt = evt.Interface(k, v)
	}
	evt.Msg(msg)
}

type loggerContextKey struct{}

// ContextWithLogger stores l in ctx for downstream retrieval.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// LoggerFromContext retrieves a Logger stashed by ContextWithLogger,
// falling back to a disabled logger when none is present.
func LoggerFromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(Logger); ok {
		return l
	}
	return Logger{zl: zerolog.Nop()}
}
