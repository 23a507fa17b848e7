// Package tool implements actions: named, side-effecting capabilities a
// handler invokes with the request text. Actions share a uniform error type
// so handlers can record failures in action result events.
package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentroute/core"
)

// Error codes used by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodePanic      = "PANIC"
)

// Tool defines an action a handler can call.
//
// Implementations should be safe for concurrent use; the same action may run
// for different sessions at once. Calls are not retried, so idempotence is
// up to the implementation.
type Tool interface {
	// Name returns the unique identifier for this tool within one handler.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// Generator backed selectors show it when deciding which action applies.
	Description() string

	// Call executes the action for the given request text.
	Call(toolCtx *core.ToolContext, request string) (string, error)
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// IsCode reports whether err is a *ToolError with the given code.
func IsCode(err error, code string) bool {
	var te *ToolError
	return errors.As(err, &te) && te.Code == code
}

// SafeCall runs t.Call and converts a panic into a *ToolError with CodePanic.
func SafeCall(t Tool, toolCtx *core.ToolContext, request string) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewToolError(t.Name(), fmt.Sprintf("panic: %v", r), CodePanic)
		}
	}()

	return t.Call(toolCtx, request)
}
