package run

import (
	"github.com/hupe1980/assistantstream/cancellation"
	"github.com/hupe1980/assistantstream/chunk"
	"github.com/hupe1980/assistantstream/state"
	"github.com/hupe1980/assistantstream/toolcall"
)

// Controller is the producer facing handle of a run. Every method is safe for
// concurrent use. Each emission flushes pending state operations before its
// own chunk is enqueued.
type Controller struct {
	run      *core
	parentID string
}

// RunID returns the identifier of the run.
func (c *Controller) RunID() string { return c.run.id }

// ParentID returns the tag attached to chunks emitted by this controller.
func (c *Controller) ParentID() string { return c.parentID }

// WithParentID returns a controller for the same run whose text, reasoning,
// source and tool call chunks carry parentID.
func (c *Controller) WithParentID(parentID string) *Controller {
	return &Controller{run: c.run, parentID: parentID}
}

// AppendText emits a text delta.
func (c *Controller) AppendText(delta string) {
	c.run.emit(chunk.TextDelta{TextDelta: delta, ParentID: c.parentID})
}

// AppendReasoning emits a reasoning delta.
func (c *Controller) AppendReasoning(delta string) {
	c.run.emit(chunk.ReasoningDelta{ReasoningDelta: delta, ParentID: c.parentID})
}

// AddToolCall opens a tool call and merges its chunks into the run. An id is
// generated when none is given. The returned controller is closed
// automatically when the run finishes.
func (c *Controller) AddToolCall(name string, id ...string) *toolcall.Controller {
	callID := ""
	if len(id) > 0 {
		callID = id[0]
	}

	stream, tc := toolcall.Create(name, callID, c.parentID)
	if !c.run.addDisposer(func() error { tc.Close(); return nil }) {
		tc.Close()
		c.run.logger.Warn("Tool call opened after run finished", "run_id", c.run.id, "tool_call_id", tc.ID())
		return tc
	}
	c.AddStream(stream)
	return tc
}

// AddToolResult emits the result of a tool call that was not opened through
// AddToolCall.
func (c *Controller) AddToolResult(toolCallID string, result any) {
	c.run.emit(chunk.ToolResult{ToolCallID: toolCallID, Result: result})
}

// AddStream merges src into the run. Chunks are forwarded as they arrive; the
// run ends only after src is exhausted.
func (c *Controller) AddStream(src Source) {
	if !c.run.addStream(src) {
		c.run.logger.Warn("Sub-stream added after run finished", "run_id", c.run.id)
	}
}

// AddData emits an arbitrary JSON value.
func (c *Controller) AddData(data any) {
	c.run.emit(chunk.Data{Data: data})
}

// AddError emits an error message. It does not end the run.
func (c *Controller) AddError(message string) {
	c.run.emit(chunk.Error{Error: message})
}

// AddSource emits a citation.
func (c *Controller) AddSource(id, url string, title ...string) {
	src := chunk.Source{ID: id, URL: url, ParentID: c.parentID}
	if len(title) > 0 {
		src.Title = title[0]
	}
	c.run.emit(src)
}

// OnDispose registers fn to run once the callback returned, before the
// stream ends. Dispose callbacks run in registration order; a failing or
// panicking callback does not prevent the others from running.
func (c *Controller) OnDispose(fn func() error) {
	if !c.run.addDisposer(fn) {
		c.run.logger.Warn("Dispose callback registered after run finished", "run_id", c.run.id)
	}
}

// State returns a proxy over the run state. Navigation does not record
// operations; Set and AppendText do.
func (c *Controller) State() *state.Proxy {
	return c.run.store.State()
}

// SetState replaces the whole state.
func (c *Controller) SetState(v any) error {
	return c.run.store.AddOperations(chunk.SetOp(nil, v))
}

// CancellationSignal returns the read-only cancellation signal of the run.
func (c *Controller) CancellationSignal() cancellation.Observer {
	return c.run.signal.Observer()
}

// IsCancelled reports whether the consumer closed the stream early.
func (c *Controller) IsCancelled() bool {
	return c.run.signal.IsSet()
}
