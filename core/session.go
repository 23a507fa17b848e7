package core

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"
)

// SessionKey identifies a conversation. All three parts are required.
type SessionKey struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// Validate reports ErrInvalidSessionKey if any part is empty.
func (k SessionKey) Validate() error {
	switch {
	case k.AppName == "":
		return fmt.Errorf("%w: app name is empty", ErrInvalidSessionKey)
	case k.UserID == "":
		return fmt.Errorf("%w: user id is empty", ErrInvalidSessionKey)
	case k.SessionID == "":
		return fmt.Errorf("%w: session id is empty", ErrInvalidSessionKey)
	}
	return nil
}

func (k SessionKey) String() string {
	return k.AppName + "/" + k.UserID + "/" + k.SessionID
}

// Request is a single user submission within a session. It is a value type;
// nothing in the pipeline mutates it after construction.
type Request struct {
	Key  SessionKey `json:"key"`
	Text string     `json:"text"`
}

// NewRequest builds a Request for the given conversation.
func NewRequest(key SessionKey, text string) Request {
	return Request{Key: key, Text: text}
}

// TurnOutcome classifies how a turn terminated.
type TurnOutcome string

const (
	OutcomeCompleted       TurnOutcome = "completed"
	OutcomeClarification   TurnOutcome = "clarification"
	OutcomeFailed          TurnOutcome = "failed"
	OutcomeNoFinalResponse TurnOutcome = "no_final_response"
)

// Turn is one request plus every event produced while processing it.
// Turns are appended to a session atomically and never modified afterwards.
type Turn struct {
	ID        string      `json:"id"`
	Request   Request     `json:"request"`
	Events    []Event     `json:"events"`
	Final     string      `json:"final"`
	Outcome   TurnOutcome `json:"outcome"`
	States    []TurnState `json:"states,omitempty"`
	Started   time.Time   `json:"started"`
	Completed time.Time   `json:"completed"`
}

// Clone returns a copy whose slices do not alias t.
func (t Turn) Clone() Turn {
	t.Events = slices.Clone(t.Events)
	t.States = slices.Clone(t.States)
	return t
}

// FinalEvent returns the terminal event, if the turn has one.
func (t Turn) FinalEvent() (Event, bool) {
	for _, ev := range t.Events {
		if ev.IsFinal() {
			return ev, true
		}
	}
	return Event{}, false
}

// Session is the ordered turn history for one SessionKey.
type Session struct {
	Key     SessionKey `json:"key"`
	Created time.Time  `json:"created"`
	Updated time.Time  `json:"updated"`
	Turns   []Turn     `json:"turns"`
}

// NewSession creates an empty session for key.
func NewSession(key SessionKey) *Session {
	now := time.Now().UTC()
	return &Session{Key: key, Created: now, Updated: now, Turns: []Turn{}}
}

// AddTurn appends a turn updating the Updated timestamp.
func (s *Session) AddTurn(t Turn) {
	s.Turns = append(s.Turns, t.Clone())
	s.Updated = time.Now().UTC()
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	c := &Session{Key: s.Key, Created: s.Created, Updated: s.Updated, Turns: make([]Turn, len(s.Turns))}
	for i, t := range s.Turns {
		c.Turns[i] = t.Clone()
	}
	return c
}

// TurnsSeq returns a restartable sequence over a snapshot of the turns.
func TurnsSeq(turns []Turn) iter.Seq[Turn] {
	snapshot := make([]Turn, len(turns))
	for i, t := range turns {
		snapshot[i] = t.Clone()
	}
	return func(yield func(Turn) bool) {
		for _, t := range snapshot {
			if !yield(t.Clone()) {
				return
			}
		}
	}
}

// SessionStore persists sessions and their turn history. Implementations
// must be safe for concurrent use; appends to one session are serialized and
// appends to distinct sessions must not interfere.
type SessionStore interface {
	// Create registers an empty session. ErrDuplicateSession if key exists.
	Create(ctx context.Context, key SessionKey) (*Session, error)
	// Get returns a snapshot of the session. ErrNotFound if absent.
	Get(ctx context.Context, key SessionKey) (*Session, error)
	// Append atomically adds a completed turn. ErrNotFound if absent.
	Append(ctx context.Context, key SessionKey, turn Turn) error
	// History returns the turns in append order as a finite, restartable
	// sequence over a snapshot. ErrNotFound if absent.
	History(ctx context.Context, key SessionKey) (iter.Seq[Turn], error)
}
