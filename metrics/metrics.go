// Package metrics records run lifecycle counters.
//
// Runs report through the Recorder interface. NoOp is the default; Prometheus
// registers collectors on a caller supplied registry so several recorders can
// coexist (tests, embedded servers).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes reported to RunFinished.
const (
	OutcomeCompleted = "completed"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
	OutcomeForced    = "forced"
)

// Recorder receives run lifecycle events.
type Recorder interface {
	RunStarted()
	RunFinished(outcome string, dur time.Duration)
	ChunkEmitted(chunkType string)
	ForcedCancel()
	SuppressedError(kind string)
	ShutdownDuration(dur time.Duration)
}

// NoOp discards every event.
type NoOp struct{}

func (NoOp) RunStarted()                       {}
func (NoOp) RunFinished(string, time.Duration) {}
func (NoOp) ChunkEmitted(string)               {}
func (NoOp) ForcedCancel()                     {}
func (NoOp) SuppressedError(string)            {}
func (NoOp) ShutdownDuration(time.Duration)    {}

var _ Recorder = NoOp{}

// Prometheus is a Recorder backed by Prometheus collectors.
type Prometheus struct {
	runsStarted      prometheus.Counter
	runsActive       prometheus.Gauge
	runsFinished     *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	chunksEmitted    *prometheus.CounterVec
	forcedCancels    prometheus.Counter
	suppressedErrors *prometheus.CounterVec
	shutdownDuration prometheus.Histogram
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus registers the run collectors on reg under namespace.
func NewPrometheus(namespace string, reg prometheus.Registerer) *Prometheus {
	if namespace == "" {
		namespace = "assistantstream"
	}
	f := promauto.With(reg)

	return &Prometheus{
		runsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of runs started",
		}),
		runsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Number of runs currently in flight",
		}),
		runsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Total number of finished runs by outcome",
		}, []string{"outcome"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),
		chunksEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_emitted_total",
			Help:      "Total number of chunks emitted by type",
		}, []string{"type"}),
		forcedCancels: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_cancellations_total",
			Help:      "Runs that did not stop within the grace period",
		}),
		suppressedErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suppressed_errors_total",
			Help:      "Errors logged instead of returned, by kind",
		}, []string{"kind"}),
		shutdownDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shutdown_duration_seconds",
			Help:      "Time spent in Stream.Close",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// RunStarted implements Recorder.
func (p *Prometheus) RunStarted() {
	p.runsStarted.Inc()
	p.runsActive.Inc()
}

// RunFinished implements Recorder.
func (p *Prometheus) RunFinished(outcome string, dur time.Duration) {
	p.runsActive.Dec()
	p.runsFinished.WithLabelValues(outcome).Inc()
	p.runDuration.WithLabelValues(outcome).Observe(dur.Seconds())
}

// ChunkEmitted implements Recorder.
func (p *Prometheus) ChunkEmitted(chunkType string) {
	p.chunksEmitted.WithLabelValues(chunkType).Inc()
}

// ForcedCancel implements Recorder.
func (p *Prometheus) ForcedCancel() { p.forcedCancels.Inc() }

// SuppressedError implements Recorder.
func (p *Prometheus) SuppressedError(kind string) {
	p.suppressedErrors.WithLabelValues(kind).Inc()
}

// ShutdownDuration implements Recorder.
func (p *Prometheus) ShutdownDuration(dur time.Duration) {
	p.shutdownDuration.Observe(dur.Seconds())
}
