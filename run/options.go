package run

import (
	"time"

	"github.com/hupe1980/assistantstream/logging"
	"github.com/hupe1980/assistantstream/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Config defines tuning parameters for the run lifecycle.
//
// Example:
//
//	cfg := Config{
//	    GracePeriod: 100 * time.Millisecond,
//	}
type Config struct {
	// GracePeriod bounds how long Close waits for the callback to observe the
	// cancellation signal and return on its own before the run context is
	// cancelled. Zero skips the cooperative phase.
	GracePeriod time.Duration
}

// DefaultConfig keeps disconnect cleanup responsive while still giving
// cooperative callbacks a chance to stop themselves.
//
// Configuration values:
//   - GracePeriod: 50ms
var DefaultConfig = Config{
	GracePeriod: 50 * time.Millisecond,
}

// Options configures a run using the functional options pattern.
//
// Example:
//
//	stream := run.Create(ctx, callback, func(o *run.Options) {
//	    o.InitialState = map[string]any{"messages": []any{}}
//	    o.Logger = logger
//	})
type Options struct {
	// Config contains the lifecycle tuning parameters.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// InitialState seeds the run state. It must be JSON encodable.
	InitialState any

	// ParentID tags text, reasoning, source and tool call chunks emitted
	// through the root controller.
	ParentID string

	// Logger defaults to NoOpLogger.
	Logger logging.Logger

	// Metrics defaults to metrics.NoOp.
	Metrics metrics.Recorder

	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer
}

func defaultOptions() Options {
	return Options{
		Config:  DefaultConfig,
		Logger:  logging.NoOpLogger{},
		Metrics: metrics.NoOp{},
		Tracer:  otel.Tracer(instrumentationName),
	}
}

const instrumentationName = "github.com/hupe1980/assistantstream/run"
