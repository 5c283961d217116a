package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/assistantstream/cancellation"
	"github.com/hupe1980/assistantstream/chunk"
	"github.com/hupe1980/assistantstream/internal/queue"
	"github.com/hupe1980/assistantstream/logging"
	"github.com/hupe1980/assistantstream/metrics"
	"github.com/hupe1980/assistantstream/state"
)

var (
	// ErrForcedCancel is the cause attached to the run context when Close
	// gives up waiting for a cooperative shutdown.
	ErrForcedCancel = errors.New("run: forced cancellation after grace period")

	// ErrStreamClosed is reported by Stream.Err when the stream was closed
	// before it was fully consumed.
	ErrStreamClosed = errors.New("run: stream closed")
)

// Callback produces the output of a run. ctx is cancelled with cause
// ErrForcedCancel when the consumer closes the stream and the callback does
// not return within the grace period.
type Callback func(ctx context.Context, c *Controller) error

// core is the state shared by every controller of one run.
type core struct {
	id      string
	cfg     Config
	logger  logging.Logger
	metrics metrics.Recorder
	span    trace.Span

	ctx    context.Context
	cancel context.CancelCauseFunc

	q      *queue.Queue[chunk.Chunk]
	store  *state.Store
	signal *cancellation.Signal

	// emitMu makes flush-then-enqueue atomic across goroutines.
	emitMu sync.Mutex

	mu        sync.Mutex
	sealed    bool
	disposers []func() error
	group     errgroup.Group

	chunks  atomic.Int64
	started time.Time

	err  error
	done chan struct{}
}

// Create starts callback in a background goroutine and returns the stream of
// chunks it produces. The run context is derived from ctx.
//
// The background goroutine always flushes pending state, runs dispose
// callbacks, waits for merged sub-streams and then ends the stream, whether
// the callback returns normally, fails, panics or is cancelled.
func Create(ctx context.Context, callback Callback, optFns ...func(o *Options)) *Stream {
	opts := defaultOptions()
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
		opts.Tracer = defaultOptions().Tracer
	}

	r := &core{
		id:      uuid.NewString(),
		cfg:     opts.Config,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		q:       queue.New[chunk.Chunk](),
		signal:  cancellation.New(),
		started: time.Now(),
		done:    make(chan struct{}),
	}

	spanCtx, span := opts.Tracer.Start(ctx, "assistantstream.run", trace.WithAttributes(
		attribute.String("run.id", r.id),
	))
	r.span = span
	r.ctx, r.cancel = context.WithCancelCause(spanCtx)

	c := &Controller{run: r, parentID: opts.ParentID}

	store, err := state.New(r.flushState, opts.InitialState)
	if err != nil {
		// The run still starts so the failure surfaces through the stream.
		initErr := fmt.Errorf("run: initial state: %w", err)
		store, _ = state.New(r.flushState, nil)
		callback = func(context.Context, *Controller) error { return initErr }
	}
	r.store = store

	r.metrics.RunStarted()
	r.logger.Debug("Run started", "run_id", r.id)

	go r.execute(callback, c)

	return &Stream{run: r}
}

// execute is the background half of the run.
func (r *core) execute(callback Callback, c *Controller) {
	defer close(r.done)

	err := r.invoke(callback, c)
	if err != nil && !r.isForcedCancel(err) {
		c.AddError(err.Error())
	}

	r.store.Flush()

	r.mu.Lock()
	r.sealed = true
	disposers := r.disposers
	r.mu.Unlock()

	if derr := runDisposers(disposers); derr != nil {
		r.logger.Warn("Dispose callbacks failed", "run_id", r.id, "error", derr)
		r.metrics.SuppressedError("dispose")
	}

	if ferr := r.group.Wait(); ferr != nil {
		if err == nil {
			err = ferr
			c.AddError(ferr.Error())
		} else {
			r.logger.Warn("Sub-stream failed after callback error", "run_id", r.id, "error", ferr)
		}
	}

	r.err = err
	r.finish(err)
	r.cancel(nil)
	r.q.Close()
}

func (r *core) invoke(callback Callback, c *Controller) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("run: callback panicked: %v", p)
		}
	}()
	return callback(r.ctx, c)
}

func (r *core) finish(err error) {
	outcome := metrics.OutcomeCompleted
	switch {
	case err == nil && r.signal.IsSet():
		outcome = metrics.OutcomeCancelled
	case err != nil && r.isForcedCancel(err):
		outcome = metrics.OutcomeForced
	case err != nil:
		outcome = metrics.OutcomeError
	}

	dur := time.Since(r.started)
	r.metrics.RunFinished(outcome, dur)

	r.span.SetAttributes(
		attribute.String("run.outcome", outcome),
		attribute.Int64("run.chunks", r.chunks.Load()),
	)
	if outcome == metrics.OutcomeError {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
	}
	r.span.End()

	r.logger.Debug("Run finished", "run_id", r.id, "outcome", outcome, "chunk_count", r.chunks.Load(), "duration", dur)
}

// isForcedCancel reports whether err is the artifact of our own forced
// cancellation rather than a failure of the callback.
func (r *core) isForcedCancel(err error) bool {
	if errors.Is(err, ErrForcedCancel) {
		return true
	}
	return errors.Is(err, context.Canceled) && errors.Is(context.Cause(r.ctx), ErrForcedCancel)
}

func (r *core) forceCancel() {
	r.cancel(ErrForcedCancel)
}

func (r *core) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// put enqueues without flushing.
func (r *core) put(c chunk.Chunk) {
	if r.q.Put(c) {
		r.chunks.Add(1)
		r.metrics.ChunkEmitted(c.Type())
	}
}

// flushState is the state store's flush sink.
func (r *core) flushState(u chunk.UpdateState) { r.put(u) }

// emit flushes pending state and enqueues c.
func (r *core) emit(c chunk.Chunk) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	r.store.Flush()
	r.put(c)
}

func (r *core) addDisposer(fn func() error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return false
	}
	r.disposers = append(r.disposers, fn)
	return true
}

func (r *core) addStream(src Source) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return false
	}
	r.group.Go(func() error { return r.forward(src) })
	return true
}

// forward re-emits every chunk of src. Pulling uses the run context, so a
// forced cancellation ends the forwarder.
func (r *core) forward(src Source) error {
	for src.Next(r.ctx) {
		r.emit(src.Current())
	}

	if r.ctx.Err() != nil {
		if cl, ok := src.(closer); ok {
			if err := cl.Close(context.WithoutCancel(r.ctx)); err != nil {
				r.logger.Warn("Closing sub-stream failed", "run_id", r.id, "error", err)
			}
		}
	}

	if err := src.Err(); err != nil && !r.isForcedCancel(err) {
		return fmt.Errorf("run: sub-stream: %w", err)
	}
	return nil
}

// runDisposers calls every fn even if earlier ones fail or panic.
func runDisposers(fns []func() error) error {
	var errs []error
	for _, fn := range fns {
		if err := safeCall(fn); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("run: dispose panicked: %v", p)
		}
	}()
	return fn()
}
