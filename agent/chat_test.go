package agent

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/assistantstream/chunk"
	"github.com/hupe1980/assistantstream/model"
	"github.com/hupe1980/assistantstream/run"
	"github.com/hupe1980/assistantstream/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func userMessages(text string) []model.Message {
	return []model.Message{{Role: model.RoleUser, Content: text}}
}

// runAgent executes the agent in a fresh run and returns the chunks plus the
// final run state.
func runAgent(t *testing.T, a *ChatAgent, messages []model.Message, optFns ...func(o *run.Options)) ([]chunk.Chunk, map[string]any, error) {
	t.Helper()
	var final map[string]any
	stream := run.Create(testContext(t), func(ctx context.Context, c *run.Controller) error {
		defer func() { final, _ = c.State().Get().(map[string]any) }()
		return a.Run(ctx, c, messages)
	}, optFns...)
	got, err := run.Collect(testContext(t), stream)
	return got, final, err
}

func text(chunks []chunk.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		if td, ok := c.(chunk.TextDelta); ok {
			b.WriteString(td.TextDelta)
		}
	}
	return b.String()
}

func types(chunks []chunk.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Type()
	}
	return out
}

// toolCallChunks returns the chunks of one tool call in emission order.
func toolCallChunks(chunks []chunk.Chunk, id string) []chunk.Chunk {
	var out []chunk.Chunk
	for _, c := range chunks {
		switch v := c.(type) {
		case chunk.ToolCallBegin:
			if v.ToolCallID == id {
				out = append(out, c)
			}
		case chunk.ToolCallArgsTextDelta:
			if v.ToolCallID == id {
				out = append(out, c)
			}
		case chunk.ToolCallArgsTextFinish:
			if v.ToolCallID == id {
				out = append(out, c)
			}
		case chunk.ToolResult:
			if v.ToolCallID == id {
				out = append(out, c)
			}
		}
	}
	return out
}

func weatherTool() tool.Tool {
	return tool.NewFunctionTool("weather", "Get the weather", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{"type": "string"},
		},
		"required": []string{"city"},
	}, func(_ *tool.Context, args map[string]any) (any, error) {
		return map[string]any{"city": args["city"], "forecast": "sunny"}, nil
	})
}

func TestChatAgent_StreamsText(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.AddTurn(model.Turn{Reasoning: "think ", Text: "Hello world"})

	got, st, err := runAgent(t, NewChatAgent("helper", m), userMessages("hi"))
	require.NoError(t, err)

	require.NotEmpty(t, got)
	assert.Equal(t, chunk.UpdateState{Operations: []chunk.Operation{chunk.SetOp([]string{StepsKey}, 1)}}, got[0])
	assert.Equal(t, chunk.ReasoningDelta{ReasoningDelta: "think "}, got[1])
	assert.Equal(t, "Hello world", text(got))
	assert.Equal(t, float64(1), st[StepsKey])
}

func TestChatAgent_ToolLoop(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.AddTurn(model.Turn{ToolCalls: []model.ToolCall{
		{ID: "call_1", Name: "weather", Arguments: json.RawMessage(`{"city":"Berlin"}`)},
	}})
	m.AddTurn(model.Turn{Text: "It is sunny."})

	a := NewChatAgent("helper", m, func(o *ChatAgentOptions) {
		o.Tools = map[string]tool.Tool{"weather": weatherTool()}
	})

	got, st, err := runAgent(t, a, userMessages("weather in Berlin?"))
	require.NoError(t, err)

	assert.Equal(t, []chunk.Chunk{
		chunk.ToolCallBegin{ToolCallID: "call_1", ToolName: "weather"},
		chunk.ToolCallArgsTextDelta{ToolCallID: "call_1", ArgsTextDelta: `{"city":"Berlin"}`},
		chunk.ToolCallArgsTextFinish{ToolCallID: "call_1"},
		chunk.ToolResult{ToolCallID: "call_1", Result: map[string]any{"city": "Berlin", "forecast": "sunny"}},
	}, toolCallChunks(got, "call_1"))
	assert.Equal(t, "It is sunny.", text(got))
	assert.Equal(t, float64(2), st[StepsKey])

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "weather", reqs[0].Tools[0].Name)

	follow := reqs[1].Messages
	require.Len(t, follow, 3)
	assert.Equal(t, model.RoleAssistant, follow[1].Role)
	assert.Equal(t, "call_1", follow[1].ToolCalls[0].ID)
	assert.Equal(t, model.RoleTool, follow[2].Role)
	assert.Equal(t, "call_1", follow[2].ToolCallID)
	assert.JSONEq(t, `{"city":"Berlin","forecast":"sunny"}`, follow[2].Content)
}

func TestChatAgent_ParallelToolCallsKeepHistoryOrder(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.AddTurn(model.Turn{ToolCalls: []model.ToolCall{
		{ID: "a", Name: "weather", Arguments: json.RawMessage(`{"city":"Berlin"}`)},
		{ID: "b", Name: "weather", Arguments: json.RawMessage(`{"city":"Paris"}`)},
	}})
	m.AddTurn(model.Turn{Text: "done"})

	a := NewChatAgent("helper", m, func(o *ChatAgentOptions) {
		o.Tools = map[string]tool.Tool{"weather": weatherTool()}
		o.MaxParallelTools = 2
	})

	got, _, err := runAgent(t, a, userMessages("compare"))
	require.NoError(t, err)
	assert.Len(t, toolCallChunks(got, "a"), 4)
	assert.Len(t, toolCallChunks(got, "b"), 4)

	follow := m.Requests()[1].Messages
	require.Len(t, follow, 4)
	assert.Equal(t, "a", follow[2].ToolCallID)
	assert.Equal(t, "b", follow[3].ToolCallID)
}

func TestChatAgent_UnknownToolReportsError(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.AddTurn(model.Turn{ToolCalls: []model.ToolCall{{ID: "x", Name: "missing"}}})
	m.AddTurn(model.Turn{Text: "sorry"})

	got, _, err := runAgent(t, NewChatAgent("helper", m), userMessages("go"))
	require.NoError(t, err)

	calls := toolCallChunks(got, "x")
	require.NotEmpty(t, calls)
	result, ok := calls[len(calls)-1].(chunk.ToolResult)
	require.True(t, ok)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Result, "tool not found")
	assert.Equal(t, "sorry", text(got))
}

func TestChatAgent_ToolPanicIsRecovered(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.AddTurn(model.Turn{ToolCalls: []model.ToolCall{{ID: "p", Name: "explode"}}})
	m.AddTurn(model.Turn{Text: "recovered"})

	explode := tool.NewFunctionTool("explode", "Panics", map[string]any{}, func(*tool.Context, map[string]any) (any, error) {
		panic("kaboom")
	})
	a := NewChatAgent("helper", m, func(o *ChatAgentOptions) { o.Tools = map[string]tool.Tool{"explode": explode} })

	got, _, err := runAgent(t, a, userMessages("go"))
	require.NoError(t, err)

	calls := toolCallChunks(got, "p")
	result := calls[len(calls)-1].(chunk.ToolResult)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Result, "kaboom")
}

func TestChatAgent_MaxSteps(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.AddTurn(model.Turn{ToolCalls: []model.ToolCall{{ID: "1", Name: "weather", Arguments: json.RawMessage(`{"city":"A"}`)}}})

	a := NewChatAgent("helper", m, func(o *ChatAgentOptions) {
		o.Tools = map[string]tool.Tool{"weather": weatherTool()}
		o.MaxSteps = 1
	})

	got, _, err := runAgent(t, a, userMessages("loop"))
	assert.ErrorIs(t, err, ErrMaxSteps)
	assert.Contains(t, types(got), chunk.TypeError)
	assert.Len(t, m.Requests(), 1)
}

func TestChatAgent_NonStreaming(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.AddTurn(model.Turn{
		Text:      "checking",
		ToolCalls: []model.ToolCall{{ID: "w", Name: "weather", Arguments: json.RawMessage(`{"city":"Rome"}`)}},
	})
	m.AddResponse("rome?", "Rome is sunny")

	a := NewChatAgent("helper", m, func(o *ChatAgentOptions) {
		o.EnableStreaming = false
		o.Tools = map[string]tool.Tool{"weather": weatherTool()}
	})

	got, _, err := runAgent(t, a, userMessages("rome?"))
	require.NoError(t, err)

	assert.Equal(t, "checkingRome is sunny", text(got))
	assert.Len(t, toolCallChunks(got, "w"), 4)
	assert.False(t, m.Requests()[0].Stream)
}

func TestChatAgent_OutputKeyAndStateTool(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.AddTurn(model.Turn{ToolCalls: []model.ToolCall{{
		ID:        "s",
		Name:      "state_manager",
		Arguments: json.RawMessage(`{"operation":"set_state","key":"city","value":"Paris"}`),
	}}})
	m.AddTurn(model.Turn{Text: "Saved."})

	a := NewChatAgent("helper", m, func(o *ChatAgentOptions) { o.OutputKey = "answer" })
	a.RegisterTools(tool.NewStateManagerTool())
	assert.Equal(t, []string{"state_manager"}, a.ListTools())

	_, st, err := runAgent(t, a, userMessages("remember Paris"))
	require.NoError(t, err)
	assert.Equal(t, "Paris", st["city"])
	assert.Equal(t, "Saved.", st["answer"])
}

func TestChatAgent_InstructionAndHistory(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.AddTurn(model.Turn{Text: "ok"})

	a := NewChatAgent("helper", m, func(o *ChatAgentOptions) {
		o.Instruction = NewInstructionFromText("Address {{.user}}.")
		o.MaxHistoryMessages = 1
	})

	msgs := []model.Message{
		{Role: model.RoleUser, Content: "one"},
		{Role: model.RoleAssistant, Content: "two"},
		{Role: model.RoleUser, Content: "three"},
	}
	_, _, err := runAgent(t, a, msgs, func(o *run.Options) { o.InitialState = map[string]any{"user": "Ann"} })
	require.NoError(t, err)

	req := m.Requests()[0]
	assert.Equal(t, "Address Ann.", req.Instructions)
	assert.Equal(t, []model.Message{{Role: model.RoleUser, Content: "three"}}, req.Messages)
}

// blockingModel streams one delta and then waits for its context.
type blockingModel struct {
	released atomic.Bool
}

func (m *blockingModel) Generate(ctx context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		respCh <- model.Response{Partial: true, TextDelta: "partial"}
		<-ctx.Done()
		m.released.Store(true)
		errCh <- ctx.Err()
	}()
	return respCh, errCh
}

func (m *blockingModel) Info() model.Info { return model.Info{Name: "blocking"} }

func TestChatAgent_StopsOnCancellationSignal(t *testing.T) {
	m := &blockingModel{}
	a := NewChatAgent("helper", m)

	var runErr error
	stream := run.Create(testContext(t), func(ctx context.Context, c *run.Controller) error {
		runErr = a.Run(ctx, c, userMessages("wait"))
		return runErr
	}, func(o *run.Options) { o.Config.GracePeriod = time.Second })

	for stream.Next(testContext(t)) {
		if td, ok := stream.Current().(chunk.TextDelta); ok {
			assert.Equal(t, "partial", td.TextDelta)
			break
		}
	}

	start := time.Now()
	require.NoError(t, stream.Close(testContext(t)))
	assert.Less(t, time.Since(start), time.Second)

	select {
	case <-stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
	assert.NoError(t, runErr)
	assert.Eventually(t, m.released.Load, time.Second, 10*time.Millisecond)
}
