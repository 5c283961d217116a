package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/assistantstream/model"
	"github.com/hupe1980/assistantstream/run"
	"github.com/hupe1980/assistantstream/tool"
	"github.com/hupe1980/assistantstream/toolcall"
)

// executeTools runs a batch of tool calls, at most maxParallelTools at a time
// (unlimited when <= 0). Every call receives exactly one response on its tool
// call stream. The returned tool messages keep the order of calls.
func (a *ChatAgent) executeTools(ctx context.Context, c *run.Controller, calls []pendingCall) []model.Message {
	results := make([]model.Message, len(calls))

	var g errgroup.Group
	if a.maxParallelTools > 0 {
		g.SetLimit(a.maxParallelTools)
	}

	batchStart := time.Now()
	for i, pc := range calls {
		g.Go(func() error {
			results[i] = a.executeSingle(ctx, c, pc)
			return nil
		})
	}
	_ = g.Wait()

	a.logger.Debug(
		"agent.tools.batch.complete",
		"agent", a.name,
		"count", len(calls),
		"parallelism", a.maxParallelTools,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (a *ChatAgent) executeSingle(ctx context.Context, c *run.Controller, pc pendingCall) model.Message {
	if a.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.toolTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := a.callTool(ctx, c, pc)

	a.logger.Info(
		"agent.tool.executed",
		"agent", a.name,
		"tool", pc.call.Name,
		"tool_call_id", pc.tc.ID(),
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	resp := toolcall.Response{Result: result}
	if err != nil {
		resp = toolcall.Response{Result: err.Error(), IsError: true}
	}
	if serr := pc.tc.SetResponse(resp); serr != nil {
		a.logger.Warn("agent.tool.response.error", "tool", pc.call.Name, "error", serr.Error())
	}
	pc.tc.Close()

	return model.Message{
		Role:       model.RoleTool,
		ToolCallID: pc.tc.ID(),
		Content:    toolContent(resp.Result),
	}
}

// callTool centralizes tool lookup and execution. Panics are recovered and
// reported as errors.
func (a *ChatAgent) callTool(ctx context.Context, c *run.Controller, pc pendingCall) (result any, err error) {
	impl, ok := a.tools[pc.call.Name]
	if !ok {
		return nil, tool.NewToolError(pc.call.Name, "tool not found", tool.CodeNotFound)
	}

	args := map[string]any{}
	if raw := bytes.TrimSpace(pc.call.Arguments); len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, tool.NewToolError(pc.call.Name, fmt.Sprintf("failed to unmarshal args: %v", err), tool.CodeBadInput)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("agent.tool.panic", "agent", a.name, "tool", pc.call.Name, "recover", r, "stack", string(debug.Stack()))
			result, err = nil, fmt.Errorf("tool %s panicked: %v", pc.call.Name, r)
		}
	}()

	return impl.Call(tool.NewContext(ctx, pc.tc.ID(), c.State(), a.logger), args)
}

// toolContent renders a tool result as message content for the model.
func toolContent(result any) string {
	if s, ok := result.(string); ok {
		return s
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(b)
}
