// Package chunk defines the closed set of records that make up an assistant
// output stream. A Chunk is immutable once enqueued; consumers switch on the
// concrete type (or on Type()) to render it.
package chunk

// Kind tags identifying each chunk type on the stream.
const (
	TypeTextDelta              = "text-delta"
	TypeReasoningDelta         = "reasoning-delta"
	TypeToolCallBegin          = "tool-call-begin"
	TypeToolCallArgsTextDelta  = "tool-call-args-text-delta"
	TypeToolCallArgsTextFinish = "tool-call-args-text-finish"
	TypeToolResult             = "tool-result"
	TypeData                   = "data"
	TypeError                  = "error"
	TypeSource                 = "source"
	TypeUpdateState            = "update-state"
)

// Chunk is one unit of the output stream. Concrete chunk types implement the
// unexported isChunk marker, which keeps the set closed to this package.
type Chunk interface {
	Type() string
	isChunk()
}

// TextDelta appends text to the (optionally parent scoped) text part.
type TextDelta struct {
	TextDelta string `json:"textDelta"`
	ParentID  string `json:"parentId,omitempty"`
}

// Type implements Chunk.
func (TextDelta) Type() string { return TypeTextDelta }
func (TextDelta) isChunk()     {}

// ReasoningDelta appends text to the reasoning part.
type ReasoningDelta struct {
	ReasoningDelta string `json:"reasoningDelta"`
	ParentID       string `json:"parentId,omitempty"`
}

// Type implements Chunk.
func (ReasoningDelta) Type() string { return TypeReasoningDelta }
func (ReasoningDelta) isChunk()     {}

// ToolCallBegin opens a tool call part.
type ToolCallBegin struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	ParentID   string `json:"parentId,omitempty"`
}

// Type implements Chunk.
func (ToolCallBegin) Type() string { return TypeToolCallBegin }
func (ToolCallBegin) isChunk()     {}

// ToolCallArgsTextDelta carries a fragment of the serialized tool arguments.
type ToolCallArgsTextDelta struct {
	ToolCallID    string `json:"toolCallId"`
	ArgsTextDelta string `json:"argsTextDelta"`
}

// Type implements Chunk.
func (ToolCallArgsTextDelta) Type() string { return TypeToolCallArgsTextDelta }
func (ToolCallArgsTextDelta) isChunk()     {}

// ToolCallArgsTextFinish marks the argument text of a tool call as complete.
type ToolCallArgsTextFinish struct {
	ToolCallID string `json:"toolCallId"`
}

// Type implements Chunk.
func (ToolCallArgsTextFinish) Type() string { return TypeToolCallArgsTextFinish }
func (ToolCallArgsTextFinish) isChunk()     {}

// ToolResult carries the outcome of a tool call. Tool results are top level
// and never carry a parent id.
type ToolResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     any    `json:"result"`
	Artifact   any    `json:"artifact,omitempty"`
	IsError    bool   `json:"isError,omitempty"`
}

// Type implements Chunk.
func (ToolResult) Type() string { return TypeToolResult }
func (ToolResult) isChunk()     {}

// Data carries an arbitrary JSON-serializable value.
type Data struct {
	Data any `json:"data"`
}

// Type implements Chunk.
func (Data) Type() string { return TypeData }
func (Data) isChunk()     {}

// Error reports a failure message to the consumer.
type Error struct {
	Error string `json:"error"`
}

// Type implements Chunk.
func (Error) Type() string { return TypeError }
func (Error) isChunk()     {}

// Source references an external document (currently URL sources only).
type Source struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	ParentID string `json:"parentId,omitempty"`
}

// Type implements Chunk.
func (Source) Type() string { return TypeSource }
func (Source) isChunk()     {}

// UpdateState carries a batch of state operations produced by one flush.
type UpdateState struct {
	Operations []Operation `json:"operations"`
}

// Type implements Chunk.
func (UpdateState) Type() string { return TypeUpdateState }
func (UpdateState) isChunk()     {}
