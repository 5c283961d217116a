package encoding

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hupe1980/assistantstream/chunk"
)

// Data stream type codes.
const (
	CodeTextDelta             = "0"
	CodeData                  = "2"
	CodeError                 = "3"
	CodeToolCallResult        = "a"
	CodeStartToolCall         = "b"
	CodeToolCallArgsTextDelta = "c"
	CodeReasoningDelta        = "g"
	CodeSource                = "h"
	CodeUpdateState           = "aui-state"
	CodeTextDeltaWithParent   = "aui-text-delta"
	CodeReasoningWithParent   = "aui-reasoning-delta"
	CodeFinishToolCallArgs    = "aui-tool-call-args-finish"
)

// DataStreamEncoder writes "<code>:<json>\n" lines.
type DataStreamEncoder struct{}

var _ Encoder = DataStreamEncoder{}

// ContentType implements Encoder.
func (DataStreamEncoder) ContentType() string { return "text/plain; charset=utf-8" }

// Headers implements Encoder.
func (DataStreamEncoder) Headers() map[string]string {
	return map[string]string{"x-vercel-ai-data-stream": "v1"}
}

// Encode implements Encoder.
func (DataStreamEncoder) Encode(w io.Writer, c chunk.Chunk) error {
	code, value, err := dataStreamFrame(c)
	if err != nil {
		return err
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding: %s: %w", c.Type(), err)
	}
	if _, err := fmt.Fprintf(w, "%s:%s\n", code, b); err != nil {
		return err
	}
	return nil
}

// Finish implements Encoder. The data stream has no end marker.
func (DataStreamEncoder) Finish(io.Writer) error { return nil }

type sourceValue struct {
	SourceType string `json:"sourceType"`
	ID         string `json:"id"`
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	ParentID   string `json:"parentId,omitempty"`
}

func dataStreamFrame(c chunk.Chunk) (string, any, error) {
	switch v := c.(type) {
	case chunk.TextDelta:
		if v.ParentID != "" {
			return CodeTextDeltaWithParent, v, nil
		}
		return CodeTextDelta, v.TextDelta, nil
	case chunk.ReasoningDelta:
		if v.ParentID != "" {
			return CodeReasoningWithParent, v, nil
		}
		return CodeReasoningDelta, v.ReasoningDelta, nil
	case chunk.ToolCallBegin:
		return CodeStartToolCall, v, nil
	case chunk.ToolCallArgsTextDelta:
		return CodeToolCallArgsTextDelta, v, nil
	case chunk.ToolCallArgsTextFinish:
		return CodeFinishToolCallArgs, v, nil
	case chunk.ToolResult:
		return CodeToolCallResult, v, nil
	case chunk.Data:
		return CodeData, v.Data, nil
	case chunk.Error:
		return CodeError, v.Error, nil
	case chunk.Source:
		return CodeSource, sourceValue{SourceType: "url", ID: v.ID, URL: v.URL, Title: v.Title, ParentID: v.ParentID}, nil
	case chunk.UpdateState:
		return CodeUpdateState, v.Operations, nil
	default:
		return "", nil, fmt.Errorf("encoding: unsupported chunk type %q", c.Type())
	}
}
