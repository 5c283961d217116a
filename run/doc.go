// Package run implements the run lifecycle: a producer callback writes
// heterogeneous output through a Controller and a consumer pulls it from a
// Stream as one ordered sequence of chunks.
//
// # Core Responsibilities
//
// Emission:
//   - Text, reasoning, data, error, source and tool result chunks
//   - Tool calls with streamed argument text (see package toolcall)
//   - Merging of external chunk sources, including nested runs
//   - State mutations, batched and flushed before the next emitted chunk
//
// Lifecycle:
//   - The callback runs in its own goroutine
//   - Errors (and panics) become an error chunk followed by the end of the
//     stream; Stream.Err returns the original error
//   - Pending state is flushed, dispose callbacks run and merged sources are
//     drained before the stream ends, on every exit path
//
// # Early Close
//
// A consumer that stops reading calls Stream.Close. The shutdown is staged:
//
//  1. The cancellation signal is set (Controller.IsCancelled reports true)
//  2. The callback gets Config.GracePeriod to return on its own
//  3. Otherwise the run context is cancelled with cause ErrForcedCancel
//  4. Close waits for the run to finish, bounded by its own ctx
//
// Go cannot pre-empt a goroutine, so forced cancellation is the cancellation
// of the callback's context. A callback that ignores both the signal and its
// context keeps Close waiting until Close's ctx ends.
//
// Errors surfacing during the shutdown are logged and counted, never returned
// to the closer, since the consumer has already gone away. Cancellation of
// Close's own ctx is returned.
//
// # Example
//
//	stream := run.Create(ctx, func(ctx context.Context, c *run.Controller) error {
//	    c.AppendText("Hello")
//	    if err := c.State().Key("status").Set("done"); err != nil {
//	        return err
//	    }
//	    return nil
//	})
//	defer stream.Close(ctx)
//
//	for stream.Next(ctx) {
//	    fmt.Println(stream.Current().Type())
//	}
//	if err := stream.Err(); err != nil {
//	    return err
//	}
package run
