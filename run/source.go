package run

import (
	"context"

	"github.com/hupe1980/assistantstream/chunk"
)

// Source is a pull based chunk sequence that can be merged into a run with
// AddStream. *Stream and *toolcall.Stream satisfy it.
type Source interface {
	Next(ctx context.Context) bool
	Current() chunk.Chunk
	Err() error
}

// closer is implemented by sources that own background work, such as a
// nested run, and must be released when their forwarder stops early.
type closer interface {
	Close(ctx context.Context) error
}

// FromChannel adapts a channel to a Source. The sequence ends when ch is
// closed.
func FromChannel(ch <-chan chunk.Chunk) Source {
	return &chanSource{ch: ch}
}

type chanSource struct {
	ch  <-chan chunk.Chunk
	cur chunk.Chunk
	err error
}

func (s *chanSource) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	select {
	case c, ok := <-s.ch:
		if !ok {
			s.cur = nil
			return false
		}
		s.cur = c
		return true
	case <-ctx.Done():
		s.cur = nil
		s.err = ctx.Err()
		return false
	}
}

func (s *chanSource) Current() chunk.Chunk { return s.cur }

func (s *chanSource) Err() error { return s.err }

// FromSlice returns a Source that yields chunks in order.
func FromSlice(chunks ...chunk.Chunk) Source {
	ch := make(chan chunk.Chunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return FromChannel(ch)
}
