// Package tool defines the capabilities a ChatAgent can invoke while a run is
// streaming. Each invocation happens inside an open tool call of the run and
// its result becomes that tool call's response chunk.
package tool

import (
	"fmt"

	"github.com/hupe1980/assistantstream/internal/util"
	"github.com/hupe1980/assistantstream/model"
)

// Tool is a named function the model may call.
//
// Call receives arguments decoded from the model's JSON and a *Context tied
// to the run (cancellation, tool call id, logger, run state). Tools may be
// called concurrently when the agent runs tool batches in parallel.
type Tool interface {
	// Name is the identifier the model uses to request the tool.
	Name() string
	// Description tells the model when the tool is useful.
	Description() string
	// Parameters is the JSON schema of the arguments object.
	Parameters() map[string]any
	Call(toolCtx *Context, args map[string]any) (any, error)
}

// Definition converts a tool into the declaration sent to the model.
func Definition(t Tool) model.ToolDefinition {
	return model.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

// ValidationError describes the argument that failed schema validation.
type ValidationError = util.ValidationError

// ToolError codes.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "TOOL_NOT_FOUND"
	CodeBadInput   = "INVALID_ARGUMENTS"
)

// ToolError is the error shape reported back to the model as the tool
// call's error response.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("tool %s: %s", e.Tool, e.Message)
	}
	return fmt.Sprintf("tool %s [%s]: %s", e.Tool, e.Code, e.Message)
}

func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
