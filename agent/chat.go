package agent

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/hupe1980/assistantstream/logging"
	"github.com/hupe1980/assistantstream/model"
	"github.com/hupe1980/assistantstream/run"
	"github.com/hupe1980/assistantstream/tool"
	"github.com/hupe1980/assistantstream/toolcall"
)

// ErrMaxSteps is returned when the model keeps requesting tools after the
// last allowed step.
var ErrMaxSteps = errors.New("agent: maximum steps exceeded")

// StepsKey is the run state key holding the number of started model steps.
const StepsKey = "steps"

// ChatAgentOptions configures a ChatAgent instance.
//
// Use functional options with NewChatAgent to override defaults.
type ChatAgentOptions struct {
	Instruction        Instruction
	EnableStreaming    bool
	MaxSteps           int
	MaxParallelTools   int
	ToolTimeout        time.Duration
	OutputKey          string
	MaxHistoryMessages int
	Tools              map[string]tool.Tool
	Logger             logging.Logger
}

// ChatAgent drives a model→tool→model loop inside a run.
//
// Each step streams the model's text and reasoning into the run, opens one
// tool call per requested function, executes the tools and feeds their
// results back to the model. The loop ends when the model answers without
// tool calls, when MaxSteps is reached, or as soon as the run's cancellation
// signal is observed.
type ChatAgent struct {
	name               string
	llm                model.Model
	instruction        Instruction
	tools              map[string]tool.Tool
	enableStreaming    bool
	maxSteps           int
	maxParallelTools   int
	toolTimeout        time.Duration
	outputKey          string
	maxHistoryMessages int
	logger             logging.Logger
}

// NewChatAgent creates a chat agent with sensible defaults:
//   - streaming enabled
//   - at most 8 model steps per run
//   - 15-second timeout for tool calls
//   - 20-message conversation history limit
func NewChatAgent(name string, llm model.Model, optFns ...func(o *ChatAgentOptions)) *ChatAgent {
	opts := ChatAgentOptions{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming:    true,
		MaxSteps:           8,
		ToolTimeout:        15 * time.Second,
		MaxHistoryMessages: 20,
		Tools:              make(map[string]tool.Tool),
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxSteps < 1 {
		opts.MaxSteps = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &ChatAgent{
		name:               name,
		llm:                llm,
		instruction:        opts.Instruction,
		tools:              maps.Clone(opts.Tools),
		enableStreaming:    opts.EnableStreaming,
		maxSteps:           opts.MaxSteps,
		maxParallelTools:   opts.MaxParallelTools,
		toolTimeout:        opts.ToolTimeout,
		outputKey:          opts.OutputKey,
		maxHistoryMessages: opts.MaxHistoryMessages,
		logger:             opts.Logger,
	}
}

// Name returns the agent's display name.
func (a *ChatAgent) Name() string { return a.name }

// RegisterTool adds a tool to the agent's capability set. Register tools
// before the agent serves runs.
func (a *ChatAgent) RegisterTool(t tool.Tool) { a.tools[t.Name()] = t }

// RegisterTools adds multiple tools to the agent's capability set.
func (a *ChatAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// ListTools returns the sorted names of all registered tools.
func (a *ChatAgent) ListTools() []string { return slices.Sorted(maps.Keys(a.tools)) }

// Callback adapts Run to a run.Callback for the given conversation.
func (a *ChatAgent) Callback(messages []model.Message) run.Callback {
	return func(ctx context.Context, c *run.Controller) error {
		return a.Run(ctx, c, messages)
	}
}

// Run executes the agent loop for one conversation inside the run behind c.
// A cooperative stop (the run's cancellation signal) ends the loop without
// error.
func (a *ChatAgent) Run(ctx context.Context, c *run.Controller, messages []model.Message) error {
	a.logger.Debug("agent.run.start", "agent", a.name, "run", c.RunID(), "messages", len(messages))

	instructions, err := a.instruction.Resolve(c.State())
	if err != nil {
		return fmt.Errorf("agent %s: resolve instruction: %w", a.name, err)
	}

	history := a.trimHistory(messages)
	definitions := a.toolDefinitions()

	for step := 1; step <= a.maxSteps; step++ {
		if c.IsCancelled() {
			a.logger.Debug("agent.run.cancelled", "agent", a.name, "step", step)
			return nil
		}
		if err := c.State().Key(StepsKey).Set(step); err != nil {
			return err
		}

		req := model.Request{
			Instructions: instructions,
			Messages:     history,
			Tools:        definitions,
			Stream:       a.enableStreaming,
		}

		msg, calls, err := a.generate(ctx, c, req)
		if errors.Is(err, errStopped) {
			a.logger.Debug("agent.run.cancelled", "agent", a.name, "step", step)
			return nil
		}
		if err != nil {
			return fmt.Errorf("agent %s: step %d: %w", a.name, step, err)
		}
		history = append(history, msg)

		if len(calls) == 0 {
			if a.outputKey != "" {
				if err := c.State().Key(a.outputKey).Set(msg.Content); err != nil {
					return err
				}
			}
			a.logger.Debug("agent.run.complete", "agent", a.name, "steps", step)
			return nil
		}

		history = append(history, a.executeTools(ctx, c, calls)...)
	}

	a.logger.Warn("agent.run.max_steps", "agent", a.name, "max_steps", a.maxSteps)
	return fmt.Errorf("%w (%d)", ErrMaxSteps, a.maxSteps)
}

func (a *ChatAgent) trimHistory(messages []model.Message) []model.Message {
	if a.maxHistoryMessages > 0 && len(messages) > a.maxHistoryMessages {
		messages = messages[len(messages)-a.maxHistoryMessages:]
	}
	return slices.Clone(messages)
}

func (a *ChatAgent) toolDefinitions() []model.ToolDefinition {
	if len(a.tools) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(a.tools))
	for _, name := range a.ListTools() {
		defs = append(defs, tool.Definition(a.tools[name]))
	}
	return defs
}

// errStopped reports that generation was abandoned because the run's
// cancellation signal was set.
var errStopped = errors.New("agent: stopped")

// pendingCall is a tool call requested by the model whose tool call stream is
// already open in the run.
type pendingCall struct {
	tc   *toolcall.Controller
	call model.ToolCall
}

// generate streams one model turn into the run. It returns the assistant
// message (with tool call ids matching the opened tool calls) and the calls
// to execute.
func (a *ChatAgent) generate(ctx context.Context, c *run.Controller, req model.Request) (model.Message, []pendingCall, error) {
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	respCh, errCh := a.llm.Generate(genCtx, req)

	open := map[int]*toolcall.Controller{}
	var final *model.Response

	cancelled := c.CancellationSignal().Done()

loop:
	for {
		select {
		case <-cancelled:
			return model.Message{}, nil, errStopped
		case resp, ok := <-respCh:
			if !ok {
				break loop
			}
			if !resp.Partial {
				final = &resp
				continue
			}
			if resp.ReasoningDelta != "" {
				c.AppendReasoning(resp.ReasoningDelta)
			}
			if resp.TextDelta != "" {
				c.AppendText(resp.TextDelta)
			}
			for _, d := range resp.ToolCallDeltas {
				tc, ok := open[d.Index]
				if !ok {
					tc = c.AddToolCall(d.Name, d.ID)
					open[d.Index] = tc
				}
				if d.ArgumentsDelta != "" {
					if err := tc.AppendArgsText(d.ArgumentsDelta); err != nil {
						return model.Message{}, nil, err
					}
				}
			}
		}
	}
	if err := <-errCh; err != nil {
		closeAll(open)
		return model.Message{}, nil, err
	}
	if final == nil {
		closeAll(open)
		return model.Message{}, nil, errors.New("model returned no final response")
	}

	a.logger.Debug(
		"agent.model.response",
		"agent", a.name,
		"model", a.llm.Info().Name,
		"finish_reason", final.FinishReason,
		"tool_calls", len(final.Message.ToolCalls),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	msg := final.Message
	msg.Role = model.RoleAssistant
	msg.ToolCalls = slices.Clone(msg.ToolCalls)
	if !req.Stream && msg.Content != "" {
		c.AppendText(msg.Content)
	}

	calls := make([]pendingCall, 0, len(msg.ToolCalls))
	for i, call := range msg.ToolCalls {
		tc, ok := open[i]
		if !ok {
			tc = c.AddToolCall(call.Name, call.ID)
			if err := tc.AppendArgsText(string(call.Arguments)); err != nil {
				return model.Message{}, nil, err
			}
		}
		delete(open, i)
		tc.CloseArgs()
		msg.ToolCalls[i].ID = tc.ID()
		calls = append(calls, pendingCall{tc: tc, call: msg.ToolCalls[i]})
	}
	// Fragments the final message does not account for.
	closeAll(open)

	return msg, calls, nil
}

func closeAll(open map[int]*toolcall.Controller) {
	for _, tc := range open {
		tc.Close()
	}
}
