package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a provider neutral chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`  // assistant messages only
	ToolCallID string     `json:"toolCallId,omitempty"` // tool messages only
}

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"` // JSON object of arguments
}

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input.
type Request struct {
	Instructions string           `json:"instructions"` // System prompt
	Messages     []Message        `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ToolCallDelta is a fragment of a tool call. Fragments sharing an Index
// belong to the same call; ID and Name arrive with the first fragment.
type ToolCallDelta struct {
	Index          int    `json:"index"`
	ID             string `json:"id,omitempty"`
	Name           string `json:"name,omitempty"`
	ArgumentsDelta string `json:"arguments_delta,omitempty"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
//
// Partial responses carry deltas. The final response has Partial == false
// and carries the complete assistant Message.
type Response struct {
	ID             string          `json:"id"`
	Partial        bool            `json:"partial"`
	TextDelta      string          `json:"text_delta,omitempty"`
	ReasoningDelta string          `json:"reasoning_delta,omitempty"`
	ToolCallDeltas []ToolCallDelta `json:"tool_call_deltas,omitempty"`
	Message        Message         `json:"message"`
	FinishReason   string          `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage          *TokenUsage     `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by agents to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Turn is one scripted MockModel reply.
type Turn struct {
	Reasoning string
	Text      string
	ToolCalls []ToolCall
}

// MockModel is a lightweight in‑memory Model useful for tests & examples.
//
// Scripted turns are consumed in order; once exhausted the model falls back
// to canned responses keyed by the last user message.
type MockModel struct {
	info Info

	mu        sync.Mutex
	turns     []Turn
	responses map[string]string
	requests  []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// AddTurn appends a scripted reply.
func (m *MockModel) AddTurn(turn Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

func (m *MockModel) next(req Request) (Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.turns) > 0 {
		t := m.turns[0]
		m.turns = m.turns[1:]
		return t, nil
	}
	var input string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			input = req.Messages[i].Content
			break
		}
	}
	if input == "" {
		return Turn{}, fmt.Errorf("no user message provided")
	}
	full := m.responses[input]
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", input)
	}
	return Turn{Text: full}, nil
}

// Generate implements Model; emits optional streaming chunks then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		turn, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}

		send := func(r Response) bool {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return false
			case respCh <- r:
				return true
			}
		}

		if req.Stream {
			for _, w := range splitWords(turn.Reasoning) {
				if !send(Response{Partial: true, ReasoningDelta: w}) {
					return
				}
			}
			for _, w := range splitWords(turn.Text) {
				if !send(Response{Partial: true, TextDelta: w}) {
					return
				}
			}
			for i, tc := range turn.ToolCalls {
				if !send(Response{Partial: true, ToolCallDeltas: []ToolCallDelta{{
					Index:          i,
					ID:             tc.ID,
					Name:           tc.Name,
					ArgumentsDelta: string(tc.Arguments),
				}}}) {
					return
				}
			}
		}

		finish := "stop"
		if len(turn.ToolCalls) > 0 {
			finish = "tool_calls"
		}
		send(Response{
			Message: Message{
				Role:      RoleAssistant,
				Content:   turn.Text,
				ToolCalls: turn.ToolCalls,
			},
			FinishReason: finish,
		})
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// splitWords splits s after each space so that joining the parts yields s.
func splitWords(s string) []string {
	parts := strings.SplitAfter(s, " ")
	if n := len(parts); n > 0 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	return parts
}
