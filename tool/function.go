package tool

import (
	"errors"
	"time"

	"github.com/hupe1980/assistantstream/internal/util"
)

// Func is the signature of a function exposed through a FunctionTool. Args
// have already been validated against the tool's parameter schema.
type Func func(toolCtx *Context, args map[string]any) (any, error)

// FunctionTool exposes a plain Go function as a Tool.
//
// Arguments are checked against the declared schema before fn runs. Failures
// surface as *ToolError: CodeValidation for schema mismatches, CodeExecution
// for plain errors returned by fn. A *ToolError returned by fn is passed
// through with its own code.
//
// A FunctionTool is immutable and safe for concurrent calls.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          Func
}

// NewFunctionTool wraps fn with an explicit parameter schema.
//
//	sum := tool.NewFunctionTool("sum", "Add two numbers",
//		map[string]any{
//			"type": "object",
//			"properties": map[string]any{
//				"a": map[string]any{"type": "number"},
//				"b": map[string]any{"type": "number"},
//			},
//			"required": []string{"a", "b"},
//		},
//		func(_ *tool.Context, args map[string]any) (any, error) {
//			return args["a"].(float64) + args["b"].(float64), nil
//		},
//	)
func NewFunctionTool(name, description string, parameters map[string]any, fn Func) *FunctionTool {
	return &FunctionTool{name: name, description: description, parameters: parameters, fn: fn}
}

// NewFunctionToolFromStruct derives the parameter schema from the fields of
// argsType (see util.CreateSchema for the supported tags).
func NewFunctionToolFromStruct(name, description string, argsType any, fn Func) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(argsType), fn)
}

func (t *FunctionTool) Name() string               { return t.name }
func (t *FunctionTool) Description() string        { return t.description }
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call runs the wrapped function. It returns the context error without
// invoking fn when the tool call has already been cancelled.
func (t *FunctionTool) Call(toolCtx *Context, args map[string]any) (any, error) {
	if err := toolCtx.Err(); err != nil {
		return nil, err
	}

	log := toolCtx.Logger()
	callID := toolCtx.ToolCallID()

	if verr := util.ValidateParameters(args, t.parameters); verr != nil {
		log.Warn("tool.call.invalid_args", "tool", t.name, "tool_call_id", callID, "error", verr.Error())
		return nil, &ToolError{
			Tool:    t.name,
			Message: "parameter validation failed: " + verr.Error(),
			Code:    CodeValidation,
			Details: verr,
		}
	}

	begin := time.Now()
	out, err := t.fn(toolCtx, args)
	elapsed := time.Since(begin).Milliseconds()

	if err == nil {
		log.Debug("tool.call.done", "tool", t.name, "tool_call_id", callID, "duration_ms", elapsed)
		return out, nil
	}

	log.Error("tool.call.failed", "tool", t.name, "tool_call_id", callID, "duration_ms", elapsed, "error", err.Error())

	if te := (*ToolError)(nil); errors.As(err, &te) {
		return nil, te
	}
	return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution}
}
