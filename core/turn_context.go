package core

import (
	"context"

	"github.com/hupe1980/agentroute/logging"
)

// TurnContext carries execution state & helpers for a single turn.
// It is passed to a Handler's Invoke and aggregates:
//   - The ambient cancellation Context
//   - Identifiers (TurnID, SessionKey) and the original Request
//   - The emission channel shared by every component of the turn
//   - The Author stamped on emitted events
//   - A per-turn generator call limiter
//
// Emission honors cancellation: once Context is done EmitEvent returns
// ctx.Err() instead of blocking.
type TurnContext struct {
	Context context.Context
	TurnID  string
	Request Request
	Author  string
	Emit    chan<- Event
	Limiter *CallLimiter

	*loggerAdapter
}

// NewTurnContext constructs a TurnContext authored by author.
func NewTurnContext(
	ctx context.Context,
	turnID string,
	req Request,
	author string,
	emit chan<- Event,
	maxGeneratorCalls int,
	logger logging.Logger,
) *TurnContext {
	return &TurnContext{
		Context:       ctx,
		TurnID:        turnID,
		Request:       req,
		Author:        author,
		Emit:          emit,
		Limiter:       NewCallLimiter(maxGeneratorCalls),
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Key returns the conversation identity of the turn.
func (tc *TurnContext) Key() SessionKey { return tc.Request.Key }

// Done returns a channel closed when the underlying context is cancelled.
func (tc *TurnContext) Done() <-chan struct{} { return tc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (tc *TurnContext) Err() error { return tc.Context.Err() }

// ForHandler derives a context whose emitted events are authored by name.
// The limiter, channel and logger are shared with the parent.
func (tc *TurnContext) ForHandler(name string) *TurnContext {
	c := *tc
	c.Author = name
	return &c
}

// EmitEvent stamps TurnID and Author (when unset) and sends ev.
func (tc *TurnContext) EmitEvent(ev Event) error {
	if ev.TurnID == "" {
		ev.TurnID = tc.TurnID
	}

	if ev.Author == "" {
		ev.Author = tc.Author
	}

	select {
	case <-tc.Context.Done():
		return tc.Context.Err()
	case tc.Emit <- ev:
	}

	return nil
}

// NewToolContext creates a ToolContext for an action call made within this turn.
func (tc *TurnContext) NewToolContext(callID string) *ToolContext {
	return &ToolContext{
		turnCtx:       tc,
		callID:        callID,
		loggerAdapter: tc.loggerAdapter,
	}
}
