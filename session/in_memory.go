package session

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/assistantstream/model"
)

// InMemoryStore is a volatile Store keeping threads in a process local map.
// It is safe for concurrent access and best suited for tests or ephemeral
// demo servers. Each returned session is cloned to prevent external mutation
// of internal state.
type InMemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxMessages int
}

var _ Store = (*InMemoryStore)(nil)

// InMemoryOptions configures an InMemoryStore.
type InMemoryOptions struct {
	// MaxMessages keeps only the newest messages of each thread. Zero keeps
	// everything.
	MaxMessages int
}

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{MaxMessages: 200}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{sessions: make(map[string]*Session), maxMessages: opts.MaxMessages}
}

// Get implements Store.
func (s *InMemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[id]; ok {
		return sess.Clone(), nil
	}
	return nil, ErrNotFound
}

// Append implements Store.
func (s *InMemoryStore) Append(_ context.Context, id string, messages ...model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{ID: id, Created: now}
		s.sessions[id] = sess
	}
	sess.Messages = append(sess.Messages, messages...)
	if s.maxMessages > 0 && len(sess.Messages) > s.maxMessages {
		sess.Messages = append([]model.Message(nil), sess.Messages[len(sess.Messages)-s.maxMessages:]...)
	}
	sess.Updated = now
	return nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
