// Package encoding serializes run chunks for HTTP transport.
//
// Two wire formats are provided:
//
//   - DataStreamEncoder: the line oriented data stream protocol
//     ("<code>:<json>\n"), understood by data stream clients
//   - SSEEncoder: server-sent events carrying one JSON chunk per event,
//     terminated by "data: [DONE]"
//
// Encoders are stateless and safe for concurrent use; each call writes one
// complete frame.
package encoding

import (
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/assistantstream/chunk"
)

// Encoder writes chunks in a wire format.
type Encoder interface {
	// ContentType is the value for the Content-Type response header.
	ContentType() string
	// Headers returns additional response headers.
	Headers() map[string]string
	// Encode writes one chunk.
	Encode(w io.Writer, c chunk.Chunk) error
	// Finish writes the end-of-stream marker, if the format has one.
	Finish(w io.Writer) error
}

// Format names accepted by ForFormat.
const (
	FormatDataStream = "data-stream"
	FormatSSE        = "sse"
)

// ForFormat returns the encoder registered under name. An empty name selects
// the data stream format.
func ForFormat(name string) (Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FormatDataStream:
		return DataStreamEncoder{}, nil
	case FormatSSE:
		return SSEEncoder{}, nil
	default:
		return nil, fmt.Errorf("encoding: unknown format %q", name)
	}
}
