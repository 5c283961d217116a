// Package toolcall produces the chunk sub-stream of a single tool call.
//
// Create returns a Stream (what the run merges into its output) and a
// Controller (what the producer uses to stream argument text and, optionally,
// the result). Closing the controller finalizes the call; it is idempotent and
// safe to call from teardown paths.
package toolcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hupe1980/assistantstream/chunk"
	"github.com/hupe1980/assistantstream/internal/queue"
)

var (
	// ErrClosed is returned by controller methods after Close.
	ErrClosed = errors.New("toolcall: controller closed")
	// ErrArgsClosed is returned when argument text is appended after the
	// arguments were finalized.
	ErrArgsClosed = errors.New("toolcall: arguments already finalized")
	// ErrResponded is returned when a second response is set.
	ErrResponded = errors.New("toolcall: response already set")
)

// GenerateID returns an opaque, OpenAI style tool call id ("call_" followed
// by 24 alphanumeric characters).
func GenerateID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// Response is the outcome of a tool call.
type Response struct {
	Result   any
	Artifact any
	IsError  bool
}

// Controller drives one tool call.
type Controller struct {
	id   string
	name string
	q    *queue.Queue[chunk.Chunk]

	mu         sync.Mutex
	argsText   strings.Builder
	argsClosed bool
	responded  bool
	closed     bool
}

// Create opens a tool call. The begin chunk is queued immediately.
func Create(name, id, parentID string) (*Stream, *Controller) {
	if id == "" {
		id = GenerateID()
	}
	q := queue.New[chunk.Chunk]()
	q.Put(chunk.ToolCallBegin{ToolCallID: id, ToolName: name, ParentID: parentID})

	return &Stream{q: q}, &Controller{id: id, name: name, q: q}
}

// ID returns the tool call id.
func (c *Controller) ID() string { return c.id }

// Name returns the tool name.
func (c *Controller) Name() string { return c.name }

// ArgsText returns the argument text streamed so far.
func (c *Controller) ArgsText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.argsText.String()
}

// AppendArgsText streams a fragment of the serialized arguments.
func (c *Controller) AppendArgsText(delta string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.argsClosed {
		return ErrArgsClosed
	}
	c.argsText.WriteString(delta)
	c.q.Put(chunk.ToolCallArgsTextDelta{ToolCallID: c.id, ArgsTextDelta: delta})
	return nil
}

// SetArgs serializes args as JSON, streams it as a single fragment and
// finalizes the arguments.
func (c *Controller) SetArgs(args any) error {
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("toolcall %s: encode args: %w", c.id, err)
	}
	if err := c.AppendArgsText(string(b)); err != nil {
		return err
	}
	c.CloseArgs()
	return nil
}

// CloseArgs finalizes the argument text. Later calls are no-ops.
func (c *Controller) CloseArgs() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeArgsLocked()
}

// SetResponse finalizes the arguments (if still open) and emits the result.
func (c *Controller) SetResponse(resp Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.responded {
		return ErrResponded
	}
	c.closeArgsLocked()
	c.responded = true
	c.q.Put(chunk.ToolResult{
		ToolCallID: c.id,
		Result:     resp.Result,
		Artifact:   resp.Artifact,
		IsError:    resp.IsError,
	})
	return nil
}

// Close finalizes the call and ends its stream. It is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closeArgsLocked()
	c.closed = true
	c.q.Close()
}

func (c *Controller) closeArgsLocked() {
	if c.argsClosed || c.closed {
		return
	}
	c.argsClosed = true
	c.q.Put(chunk.ToolCallArgsTextFinish{ToolCallID: c.id})
}

// Stream is the chunk sub-sequence of a tool call. It ends once the
// controller is closed and every queued chunk was read.
type Stream struct {
	q   *queue.Queue[chunk.Chunk]
	cur chunk.Chunk
	err error
}

// Next advances to the next chunk.
func (s *Stream) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	c, err := s.q.Get(ctx)
	if err != nil {
		if !errors.Is(err, queue.ErrClosed) {
			s.err = err
		}
		s.cur = nil
		return false
	}
	s.cur = c
	return true
}

// Current returns the chunk produced by the last successful Next.
func (s *Stream) Current() chunk.Chunk { return s.cur }

// Err returns the error that stopped iteration, if any.
func (s *Stream) Err() error { return s.err }
