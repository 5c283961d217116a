package toolcall

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/hupe1980/assistantstream/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, s *Stream) []chunk.Chunk {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var out []chunk.Chunk
	for s.Next(ctx) {
		out = append(out, s.Current())
	}
	require.NoError(t, s.Err())
	return out
}

func TestGenerateID(t *testing.T) {
	re := regexp.MustCompile(`^call_[a-zA-Z0-9]{24}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateID()
		assert.Regexp(t, re, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestCreate_Lifecycle(t *testing.T) {
	s, c := Create("get_weather", "call_1", "msg-1")
	assert.Equal(t, "call_1", c.ID())
	assert.Equal(t, "get_weather", c.Name())

	require.NoError(t, c.AppendArgsText(`{"city":`))
	require.NoError(t, c.AppendArgsText(`"Berlin"}`))
	require.NoError(t, c.SetResponse(Response{Result: "sunny"}))
	c.Close()

	got := drain(t, s)
	require.Len(t, got, 5)
	assert.Equal(t, chunk.ToolCallBegin{ToolCallID: "call_1", ToolName: "get_weather", ParentID: "msg-1"}, got[0])
	assert.Equal(t, chunk.ToolCallArgsTextDelta{ToolCallID: "call_1", ArgsTextDelta: `{"city":`}, got[1])
	assert.Equal(t, chunk.ToolCallArgsTextDelta{ToolCallID: "call_1", ArgsTextDelta: `"Berlin"}`}, got[2])
	assert.Equal(t, chunk.ToolCallArgsTextFinish{ToolCallID: "call_1"}, got[3])
	assert.Equal(t, chunk.ToolResult{ToolCallID: "call_1", Result: "sunny"}, got[4])
	assert.Equal(t, `{"city":"Berlin"}`, c.ArgsText())
}

func TestCreate_GeneratesIDWhenEmpty(t *testing.T) {
	_, c := Create("t", "", "")
	assert.Regexp(t, `^call_`, c.ID())
}

func TestController_CloseIsIdempotent(t *testing.T) {
	s, c := Create("t", "call_x", "")
	c.Close()
	c.Close()

	got := drain(t, s)
	assert.Len(t, got, 2) // begin + args finish
	assert.ErrorIs(t, c.AppendArgsText("late"), ErrClosed)
	assert.ErrorIs(t, c.SetResponse(Response{}), ErrClosed)
}

func TestController_SetArgs(t *testing.T) {
	s, c := Create("t", "call_y", "")
	require.NoError(t, c.SetArgs(map[string]any{"a": 1}))
	assert.ErrorIs(t, c.AppendArgsText("x"), ErrArgsClosed)
	c.Close()

	got := drain(t, s)
	require.Len(t, got, 3)
	assert.Equal(t, chunk.ToolCallArgsTextDelta{ToolCallID: "call_y", ArgsTextDelta: `{"a":1}`}, got[1])
	assert.Equal(t, chunk.ToolCallArgsTextFinish{ToolCallID: "call_y"}, got[2])
}

func TestController_SecondResponseRejected(t *testing.T) {
	_, c := Create("t", "call_z", "")
	require.NoError(t, c.SetResponse(Response{Result: 1}))
	assert.ErrorIs(t, c.SetResponse(Response{Result: 2}), ErrResponded)
}

func TestStream_NextHonoursContext(t *testing.T) {
	s, _ := Create("t", "call_w", "")
	ctx, cancel := context.WithCancel(context.Background())

	require.True(t, s.Next(ctx))
	cancel()
	assert.False(t, s.Next(ctx))
	assert.ErrorIs(t, s.Err(), context.Canceled)
}
