package core

import (
	"context"

	"github.com/hupe1980/agentroute/logging"
)

// ToolContext provides the constrained surface an action implementation sees:
// cancellation, correlation identifiers and logging. Actions cannot emit
// events directly; the calling handler records call and result events.
type ToolContext struct {
	turnCtx *TurnContext
	callID  string

	*loggerAdapter
}

// Context returns the context associated with the action invocation.
func (tc *ToolContext) Context() context.Context { return tc.turnCtx.Context }

// TurnID returns the turn the action runs in.
func (tc *ToolContext) TurnID() string { return tc.turnCtx.TurnID }

// SessionKey returns the conversation identity of the turn.
func (tc *ToolContext) SessionKey() SessionKey { return tc.turnCtx.Request.Key }

// CallID correlates the action call and result events.
func (tc *ToolContext) CallID() string { return tc.callID }

// HandlerName returns the handler that invoked the action.
func (tc *ToolContext) HandlerName() string { return tc.turnCtx.Author }

// Logger returns the logger associated with the action invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }
