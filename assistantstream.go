// Package assistantstream provides a high-level façade over the run
// orchestrator. Most applications interact with this package by:
//  1. Creating an AssistantStream via New() (optionally overriding the logger,
//     metrics recorder, tracer or lifecycle configuration)
//  2. Starting runs with CreateRun, handing in a callback that emits chunks
//     through its run.Controller
//  3. Consuming the returned run.Stream (or draining it with Collect)
//
// The façade only carries shared options; every run is independent. All
// defaults are safe for local development and testing.
package assistantstream

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/assistantstream/chunk"
	"github.com/hupe1980/assistantstream/logging"
	"github.com/hupe1980/assistantstream/metrics"
	"github.com/hupe1980/assistantstream/run"
)

// Version is the release version reported by the CLI.
const Version = "0.1.0"

// Options configures the AssistantStream instance.
type Options struct {
	// Config contains the lifecycle tuning parameters applied to every run.
	Config run.Config

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Metrics (defaults to metrics.NoOp if nil)
	Metrics metrics.Recorder

	// Tracer (defaults to the global OpenTelemetry tracer if nil)
	Tracer trace.Tracer
}

// AssistantStream creates runs that share logging, metrics and tracing.
type AssistantStream struct {
	opts Options
}

// New creates a new AssistantStream instance with optional overrides.
func New(optFns ...func(o *Options)) *AssistantStream {
	opts := Options{
		Config:  run.DefaultConfig,
		Logger:  logging.NoOpLogger{},
		Metrics: metrics.NoOp{},
		Tracer:  otel.Tracer("github.com/hupe1980/assistantstream"),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOp{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/hupe1980/assistantstream")
	}

	return &AssistantStream{opts: opts}
}

// CreateRun starts callback and returns its stream. Per-run options are
// applied after the shared ones, so they can override them.
func (a *AssistantStream) CreateRun(ctx context.Context, callback run.Callback, optFns ...func(o *run.Options)) *run.Stream {
	shared := func(o *run.Options) {
		o.Config = a.opts.Config
		o.Logger = a.opts.Logger
		o.Metrics = a.opts.Metrics
		o.Tracer = a.opts.Tracer
	}
	return run.Create(ctx, callback, append([]func(o *run.Options){shared}, optFns...)...)
}

// CreateRun starts callback with default options.
func CreateRun(ctx context.Context, callback run.Callback, optFns ...func(o *run.Options)) *run.Stream {
	return run.Create(ctx, callback, optFns...)
}

// Collect drains stream and returns every chunk together with the run's
// terminal error.
func Collect(ctx context.Context, stream *run.Stream) ([]chunk.Chunk, error) {
	return run.Collect(ctx, stream)
}
