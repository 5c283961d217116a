package session

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/hupe1980/assistantstream/model"
)

// ErrNotFound is returned by Store.Get for unknown threads.
var ErrNotFound = errors.New("session: not found")

// Session is a conversation thread.
type Session struct {
	ID       string          `json:"id"`
	Messages []model.Message `json:"messages"`
	Created  time.Time       `json:"created"`
	Updated  time.Time       `json:"updated"`
}

// Clone returns a copy safe for independent mutation.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = slices.Clone(s.Messages)
	return &c
}

// Store persists conversation threads.
type Store interface {
	// Get returns a snapshot of the thread or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Append adds messages to the thread, creating it if needed.
	Append(ctx context.Context, id string, messages ...model.Message) error
	// Delete removes the thread. Deleting an unknown thread is not an error.
	Delete(ctx context.Context, id string) error
}
