package tool

import (
	"errors"
	"strings"
	"time"

	"github.com/hupe1980/agentroute/core"
)

// Func is the signature wrapped by FunctionTool.
type Func func(toolCtx *core.ToolContext, request string) (string, error)

// FunctionTool is a generic adapter that exposes a plain Go function as an action.
//
// Responsibilities:
//   - Rejects empty requests before execution
//   - Invokes the wrapped function with a *core.ToolContext giving access to
//     cancellation, correlation identifiers and logging
//   - Normalizes error handling so callers receive *ToolError with consistent codes:
//     VALIDATION_ERROR  -> empty request
//     EXECUTION_ERROR   -> underlying function returned an error (non-ToolError)
//     (custom codes preserved if the function returns *ToolError directly)
//
// A FunctionTool has no internal mutable state after construction and is safe
// for concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	fn          Func
}

// NewFunctionTool constructs a FunctionTool.
//
// Example:
//
//	booking := tool.NewFunctionTool(
//	  "booking_handler",
//	  "Handles booking requests for flights and hotels.",
//	  func(tc *core.ToolContext, request string) (string, error) {
//	    return fmt.Sprintf("Booking action for '%s' has been successfully handled.", request), nil
//	  },
//	)
func NewFunctionTool(name, description string, fn Func) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		fn:          fn,
	}
}

// Name returns the action name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description.
func (t *FunctionTool) Description() string { return t.description }

// Call validates the request then invokes the underlying function.
//
// Logging Fields:
//
//	tool: tool name
//	call_id: action call identifier (correlates call & result events)
//	duration_ms: execution time in milliseconds
func (t *FunctionTool) Call(toolCtx *core.ToolContext, request string) (string, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "call_id", toolCtx.CallID())

	if strings.TrimSpace(request) == "" {
		logger.Warn("tool.call.validation_failed", "tool", t.name)

		return "", NewToolError(t.name, "request text is empty", CodeValidation)
	}

	result, err := t.fn(toolCtx, request)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)

			return "", toolErr
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return "", NewToolError(t.name, err.Error(), CodeExecution)
	}

	logger.Debug("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

var _ Tool = (*FunctionTool)(nil)
