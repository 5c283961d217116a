package tool

import (
	"fmt"
	"strings"
)

// State manager operations.
const (
	OpGetState   = "get_state"
	OpSetState   = "set_state"
	OpAppendText = "append_text"
)

// StateManagerTool lets a model read and write the run state.
//
// Keys are dot separated paths ("user.name"). Writes are recorded as state
// operations and reach the client as update-state chunks before the next
// emitted chunk.
type StateManagerTool struct {
	name        string
	description string
}

// NewStateManagerTool creates a new state management tool.
func NewStateManagerTool() *StateManagerTool {
	return &StateManagerTool{
		name: "state_manager",
		description: "Reads and writes the shared conversation state. " +
			"Supports operations: get_state, set_state, append_text.",
	}
}

// Name returns the tool identifier.
func (t *StateManagerTool) Name() string { return t.name }

// Description returns the tool description.
func (t *StateManagerTool) Description() string { return t.description }

// Parameters returns the JSON schema for tool parameters.
func (t *StateManagerTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type":        "string",
				"enum":        []string{OpGetState, OpSetState, OpAppendText},
				"description": "The state operation to perform",
			},
			"key": map[string]any{
				"type":        "string",
				"description": "Dot separated state path; empty addresses the whole state for get_state",
			},
			"value": map[string]any{
				"description": "Value for set_state (any type) or text for append_text",
			},
		},
		"required": []string{"operation"},
	}
}

// Call implements the Tool interface with structured arguments.
func (t *StateManagerTool) Call(toolCtx *Context, args map[string]any) (any, error) {
	operation, ok := args["operation"].(string)
	if !ok {
		return nil, NewToolError(t.name, "operation parameter is required", CodeValidation)
	}

	st := toolCtx.State()
	if st == nil {
		return nil, NewToolError(t.name, "no run state available", CodeExecution)
	}

	key, _ := args["key"].(string)
	for _, k := range splitKey(key) {
		st = st.Key(k)
	}

	switch operation {
	case OpGetState:
		value := st.Get()
		return map[string]any{
			"key":    key,
			"value":  value,
			"exists": value != nil,
		}, nil
	case OpSetState:
		if key == "" {
			return nil, NewToolError(t.name, "key is required for set_state", CodeValidation)
		}
		if err := st.Set(args["value"]); err != nil {
			return nil, NewToolError(t.name, err.Error(), CodeExecution)
		}
		toolCtx.Logger().Debug("tool.state.set", "key", key)
		return map[string]any{"key": key, "value": args["value"]}, nil
	case OpAppendText:
		text, ok := args["value"].(string)
		if key == "" || !ok {
			return nil, NewToolError(t.name, "append_text requires key and a string value", CodeValidation)
		}
		if err := st.AppendText(text); err != nil {
			return nil, NewToolError(t.name, err.Error(), CodeExecution)
		}
		return map[string]any{"key": key, "value": st.Get()}, nil
	default:
		return nil, NewToolError(t.name, fmt.Sprintf("unknown operation: %s", operation), CodeValidation)
	}
}

func splitKey(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, ".")
}
