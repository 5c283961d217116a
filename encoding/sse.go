package encoding

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/sjson"

	"github.com/hupe1980/assistantstream/chunk"
)

// SSEEncoder writes one server-sent event per chunk. The event data is the
// chunk's JSON object with its kind in the "type" member.
type SSEEncoder struct{}

var _ Encoder = SSEEncoder{}

// ContentType implements Encoder.
func (SSEEncoder) ContentType() string { return "text/event-stream" }

// Headers implements Encoder.
func (SSEEncoder) Headers() map[string]string {
	return map[string]string{
		"Cache-Control": "no-cache",
		"Connection":    "keep-alive",
	}
}

// Encode implements Encoder.
func (SSEEncoder) Encode(w io.Writer, c chunk.Chunk) error {
	b, err := MarshalChunk(c)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}

// Finish implements Encoder.
func (SSEEncoder) Finish(w io.Writer) error {
	_, err := io.WriteString(w, "data: [DONE]\n\n")
	return err
}

// MarshalChunk encodes c as a JSON object tagged with its type.
func MarshalChunk(c chunk.Chunk) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding: %s: %w", c.Type(), err)
	}
	return sjson.SetBytes(b, "type", c.Type())
}
