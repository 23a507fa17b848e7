package core

import (
	"time"

	"github.com/google/uuid"
)

// Event roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Error codes attached to terminal failure events.
const (
	ErrorCodeGenerator = "GENERATOR_ERROR"
	ErrorCodeHandler   = "HANDLER_ERROR"
	ErrorCodePanic     = "PANIC"
)

// EventActions encodes routing signals attached to an Event.
// All fields are optional pointers so absence can be distinguished from zero values.
type EventActions struct {
	TransferTo *string `json:"transfer_to,omitempty"`
	Clarify    *bool   `json:"clarify,omitempty"`
}

// Event is the unit of output of a turn. After emission it should be treated
// as immutable. Exactly one event per turn has Final set; its text is the
// user-visible answer.
type Event struct {
	ID           string       `json:"id"`
	TurnID       string       `json:"turn_id"`
	Author       string       `json:"author"`
	Content      *Content     `json:"content,omitempty"`
	Actions      EventActions `json:"actions"`
	Final        bool         `json:"final,omitempty"`
	ErrorCode    *string      `json:"error_code,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

// NewID generates a new unique identifier for events and turns.
func NewID() string { return uuid.NewString() }

// NewEvent creates a bare event authored by 'author' bound to a turn.
// Prefer the helper constructors for common semantic categories.
func NewEvent(turnID, author string) Event {
	return Event{
		ID:        NewID(),
		TurnID:    turnID,
		Author:    author,
		Timestamp: time.Now().UTC(),
	}
}

// NewMessageEvent creates a non-final assistant message event with a single text part.
func NewMessageEvent(author, message string) Event {
	e := NewEvent("", author)
	e.Content = &Content{Role: RoleAssistant, Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewFinalEvent creates the terminal event of a turn carrying the answer text.
func NewFinalEvent(author, text string) Event {
	e := NewMessageEvent(author, text)
	e.Final = true
	return e
}

// NewClarificationEvent creates a terminal event asking the user to rephrase.
func NewClarificationEvent(author, text string) Event {
	e := NewFinalEvent(author, text)
	clarify := true
	e.Actions.Clarify = &clarify
	return e
}

// NewTransferEvent records the router's decision to delegate to handler.
func NewTransferEvent(author, handler string) Event {
	e := NewEvent("", author)
	e.Actions.TransferTo = &handler
	return e
}

// NewErrorEvent creates a terminal failure event. The text is still
// user-visible; code and err are kept for diagnostics.
func NewErrorEvent(author, text, code string, err error) Event {
	e := NewFinalEvent(author, text)
	e.ErrorCode = &code
	if err != nil {
		msg := err.Error()
		e.ErrorMessage = &msg
	}
	return e
}

// NewActionCallEvent represents a handler requesting execution of a named action.
func NewActionCallEvent(author, callID, action, request string) Event {
	e := NewEvent("", author)
	e.Content = &Content{
		Role: RoleAssistant,
		Parts: []Part{ActionCallPart{ActionCall: ActionCall{
			ID:      callID,
			Name:    action,
			Request: request,
		}}},
	}
	return e
}

// NewActionResultEvent records the result (or error) of an action call.
func NewActionResultEvent(author, callID, action, result string, err error) Event {
	e := NewEvent("", author)
	ar := ActionResult{ID: callID, Name: action, Result: result}
	if err != nil {
		ar.Error = err.Error()
	}
	e.Content = &Content{Role: RoleTool, Parts: []Part{ActionResultPart{ActionResult: ar}}}
	return e
}

// IsFinal reports whether e terminates its turn.
func (e Event) IsFinal() bool { return e.Final }

// IsClarification reports whether e is a clarification request.
func (e Event) IsClarification() bool { return e.Actions.Clarify != nil && *e.Actions.Clarify }

// IsError reports whether e carries failure metadata.
func (e Event) IsError() bool { return e.ErrorCode != nil }

// TransferTarget returns the handler named by a transfer action, if any.
func (e Event) TransferTarget() (string, bool) {
	if e.Actions.TransferTo == nil {
		return "", false
	}
	return *e.Actions.TransferTo, true
}

// Text returns the concatenated text parts of the event content.
func (e Event) Text() string { return e.Content.Text() }

// ActionCalls returns any ActionCall parts in order.
func (e Event) ActionCalls() []ActionCall {
	if e.Content == nil {
		return nil
	}
	var calls []ActionCall
	for _, p := range e.Content.Parts {
		if ac, ok := p.(ActionCallPart); ok {
			calls = append(calls, ac.ActionCall)
		}
	}
	return calls
}

// ActionResults returns any ActionResult parts in order.
func (e Event) ActionResults() []ActionResult {
	if e.Content == nil {
		return nil
	}
	var results []ActionResult
	for _, p := range e.Content.Parts {
		if ar, ok := p.(ActionResultPart); ok {
			results = append(results, ar.ActionResult)
		}
	}
	return results
}
