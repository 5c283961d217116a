// Package cancellation implements the one-shot cooperative cancellation signal
// shared by a run and its callback.
//
// Only the owner of a *Signal can set it. Producers receive the narrower
// Observer view, which can poll or wait but never set.
package cancellation

import (
	"context"
	"sync"
)

// Observer is the read-only view of a Signal.
type Observer interface {
	// IsSet reports whether cancellation was requested.
	IsSet() bool
	// Done returns a channel closed once cancellation is requested.
	Done() <-chan struct{}
	// Wait blocks until cancellation is requested (true) or ctx ends (false).
	Wait(ctx context.Context) bool
}

// Signal is a monotonic false→true flag. The zero value is not usable; use New.
type Signal struct {
	once sync.Once
	done chan struct{}
}

// New returns an unset signal.
func New() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Set requests cancellation. It reports whether this call changed the state;
// later calls are no-ops.
func (s *Signal) Set() bool {
	changed := false
	s.once.Do(func() {
		close(s.done)
		changed = true
	})
	return changed
}

// IsSet implements Observer.
func (s *Signal) IsSet() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done implements Observer.
func (s *Signal) Done() <-chan struct{} { return s.done }

// Wait implements Observer.
func (s *Signal) Wait(ctx context.Context) bool {
	select {
	case <-s.done:
		return true
	case <-ctx.Done():
		return false
	}
}

// Observer returns the read-only view of s.
func (s *Signal) Observer() Observer { return observer{s: s} }

// observer hides Set behind a separate type so holders cannot type-assert
// their way back to the setter.
type observer struct{ s *Signal }

func (o observer) IsSet() bool                   { return o.s.IsSet() }
func (o observer) Done() <-chan struct{}         { return o.s.Done() }
func (o observer) Wait(ctx context.Context) bool { return o.s.Wait(ctx) }
