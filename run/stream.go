package run

import (
	"context"
	"errors"
	"iter"
	"runtime"
	"sync"
	"time"

	"github.com/hupe1980/assistantstream/chunk"
	"github.com/hupe1980/assistantstream/internal/queue"
)

// Stream is the consumer side of a run.
//
// Iterate with Next/Current and check Err afterwards:
//
//	defer stream.Close(ctx)
//	for stream.Next(ctx) {
//	    handle(stream.Current())
//	}
//	if err := stream.Err(); err != nil {
//	    return err
//	}
//
// A Stream is meant for a single consumer. Close may be called from any
// goroutine.
type Stream struct {
	run *core

	mu     sync.Mutex
	cur    chunk.Chunk
	err    error
	ended  bool
	closed bool
}

// ID returns the run identifier.
func (s *Stream) ID() string { return s.run.id }

// Next blocks until the next chunk is available and reports whether there is
// one. It returns false at the end of the run, when ctx ends, or after Close.
// Cancelling ctx only abandons this pull; use Close to tear the run down.
func (s *Stream) Next(ctx context.Context) bool {
	s.mu.Lock()
	if s.ended || s.closed || s.err != nil {
		s.cur = nil
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	c, err := s.run.q.Get(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
	case err == nil:
		s.cur = c
		return true
	case errors.Is(err, queue.ErrClosed):
		// The queue is closed after the run recorded its error.
		s.ended = true
		s.err = s.run.err
	default:
		s.err = err
	}
	s.cur = nil
	return false
}

// Current returns the chunk read by the last successful Next.
func (s *Stream) Current() chunk.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Err returns the error that ended iteration. After the last chunk it is the
// error returned by the callback (or a merged sub-stream), unchanged.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil && s.closed && !s.ended {
		return ErrStreamClosed
	}
	return s.err
}

// Close abandons the stream and shuts the run down.
//
// The cancellation signal is set first so a cooperative callback can stop on
// its own. If the run has not finished after the configured grace period, the
// run context is cancelled with cause ErrForcedCancel. Close then waits for
// the run to finish or for ctx to end, whichever comes first; in the latter
// case ctx.Err() is returned and the run keeps shutting down in the
// background.
//
// Errors produced by the run while shutting down are logged, not returned.
// Closing a fully consumed or already closed stream is a no-op.
func (s *Stream) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.ended || s.closed {
		s.closed = true
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	r := s.run
	start := time.Now()
	defer func() { r.metrics.ShutdownDuration(time.Since(start)) }()

	r.signal.Set()
	runtime.Gosched()

	if !r.finished() && r.cfg.GracePeriod > 0 {
		timer := time.NewTimer(r.cfg.GracePeriod)
		select {
		case <-r.done:
		case <-timer.C:
		}
		timer.Stop()
	}

	forced := false
	if !r.finished() {
		forced = true
		r.logger.Info("Run did not stop within grace period, cancelling", "run_id", r.id, "grace", r.cfg.GracePeriod)
		r.metrics.ForcedCancel()
		r.forceCancel()
	}

	// A finished teardown wins over an expired ctx.
	if !r.finished() {
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := r.err; err != nil && !r.isForcedCancel(err) {
		msg := "Suppressed callback error during early-close grace period"
		if forced {
			msg = "Suppressed callback error after forced early-close cancellation"
		}
		r.logger.Warn(msg, "run_id", r.id, "error", err)
		r.metrics.SuppressedError("callback")
	}
	return nil
}

// Done returns a channel closed once the run finished, including all cleanup.
func (s *Stream) Done() <-chan struct{} { return s.run.done }

// All returns an iterator over the remaining chunks. Breaking out of the loop
// closes the stream. A terminal error is yielded once with a nil chunk.
func (s *Stream) All(ctx context.Context) iter.Seq2[chunk.Chunk, error] {
	return func(yield func(chunk.Chunk, error) bool) {
		for s.Next(ctx) {
			if !yield(s.Current(), nil) {
				_ = s.Close(context.WithoutCancel(ctx))
				return
			}
		}
		if err := s.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Collect drains the stream and returns every chunk. The stream is closed
// when ctx ends before the run finishes.
func Collect(ctx context.Context, s *Stream) ([]chunk.Chunk, error) {
	var out []chunk.Chunk
	for s.Next(ctx) {
		out = append(out, s.Current())
	}
	err := s.Err()
	if ctx.Err() != nil {
		_ = s.Close(context.WithoutCancel(ctx))
	}
	return out, err
}
