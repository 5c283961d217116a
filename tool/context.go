package tool

import (
	"context"

	"github.com/hupe1980/assistantstream/logging"
	"github.com/hupe1980/assistantstream/state"
)

// Context is handed to Tool.Call. It embeds the run's context.Context, so
// tools observe cancellation of the run they execute in.
type Context struct {
	context.Context

	toolCallID string
	logger     logging.Logger
	state      *state.Proxy
}

// NewContext builds a tool context. A nil logger falls back to
// logging.NoOpLogger; st may be nil when no run state is available.
func NewContext(ctx context.Context, toolCallID string, st *state.Proxy, logger logging.Logger) *Context {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Context{
		Context:    ctx,
		toolCallID: toolCallID,
		logger:     logger,
		state:      st,
	}
}

// ToolCallID returns the id of the tool call being executed.
func (tc *Context) ToolCallID() string { return tc.toolCallID }

// Logger returns the logger associated with the tool invocation.
func (tc *Context) Logger() logging.Logger { return tc.logger }

// State returns the run state, or nil if none is attached.
func (tc *Context) State() *state.Proxy { return tc.state }
