package testutil

import (
	"github.com/hupe1980/agentroute/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder().Author("Info").Turn("turn-1").Text("hello").Final().Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	author  string
	turnID  string
	id      string
	role    string
	texts   []string
	calls   []core.ActionCall
	results []core.ActionResult
	actions core.EventActions
	final   bool
	errCode *string
}

// NewEventBuilder creates a builder with default author "handler".
func NewEventBuilder() *EventBuilder { return &EventBuilder{author: "handler"} }

// Author sets the author name for the event (chainable).
func (b *EventBuilder) Author(a string) *EventBuilder { b.author = a; return b }

// Turn sets the turn ID associated with the event (chainable).
func (b *EventBuilder) Turn(id string) *EventBuilder { b.turnID = id; return b }

// ID overrides the auto-generated event ID (chainable).
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// Text appends an assistant text part (chainable).
func (b *EventBuilder) Text(t string) *EventBuilder {
	b.role = core.RoleAssistant
	b.texts = append(b.texts, t)
	return b
}

// ActionCall adds an action call part (chainable).
func (b *EventBuilder) ActionCall(id, name, request string) *EventBuilder {
	b.calls = append(b.calls, core.ActionCall{ID: id, Name: name, Request: request})
	return b
}

// ActionResult adds an action result part and switches the role to tool (chainable).
func (b *EventBuilder) ActionResult(id, name, result string, err error) *EventBuilder {
	ar := core.ActionResult{ID: id, Name: name, Result: result}
	if err != nil {
		ar.Error = err.Error()
	}
	b.role = core.RoleTool
	b.results = append(b.results, ar)
	return b
}

// Transfer sets the target handler of a transfer action (chainable).
func (b *EventBuilder) Transfer(to string) *EventBuilder { b.actions.TransferTo = &to; return b }

// Clarify marks the event as a clarification (chainable).
func (b *EventBuilder) Clarify() *EventBuilder { t := true; b.actions.Clarify = &t; return b }

// Final marks the event as terminal (chainable).
func (b *EventBuilder) Final() *EventBuilder { b.final = true; return b }

// ErrorCode attaches failure metadata (chainable).
func (b *EventBuilder) ErrorCode(code string) *EventBuilder { b.errCode = &code; return b }

// Build constructs the core.Event value.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.turnID, b.author)
	if b.id != "" {
		ev.ID = b.id
	}
	ev.Actions = b.actions
	ev.Final = b.final
	ev.ErrorCode = b.errCode

	parts := make([]core.Part, 0, len(b.texts)+len(b.calls)+len(b.results))
	for _, t := range b.texts {
		parts = append(parts, core.TextPart{Text: t})
	}
	for _, c := range b.calls {
		parts = append(parts, core.ActionCallPart{ActionCall: c})
	}
	for _, r := range b.results {
		parts = append(parts, core.ActionResultPart{ActionResult: r})
	}
	if len(parts) > 0 {
		role := b.role
		if role == "" {
			role = core.RoleAssistant
		}
		ev.Content = &core.Content{Role: role, Parts: parts}
	}

	return ev
}
