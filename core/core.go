package core

import (
	"context"
	"errors"

	"github.com/hupe1980/agentroute/logging"
)

var (
	// ErrDuplicateName is returned when a handler or action name is already registered.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrDuplicateSession is returned when creating a session whose key already exists.
	ErrDuplicateSession = errors.New("duplicate session")
	// ErrNotFound is returned for unknown handlers and sessions.
	ErrNotFound = errors.New("not found")
	// ErrEmptyRegistry is returned when routing is attempted with no handlers.
	ErrEmptyRegistry = errors.New("empty handler registry")
	// ErrNoFinalResponse is returned when a turn's event stream ends without a terminal event.
	ErrNoFinalResponse = errors.New("no final response")
	// ErrClassificationAmbiguous marks generator output that names no handler.
	// Routers recover from it by asking for clarification.
	ErrClassificationAmbiguous = errors.New("classification ambiguous")
	// ErrInvalidSessionKey is returned when any part of a SessionKey is empty.
	ErrInvalidSessionKey = errors.New("invalid session key")
	// ErrInvalidTransition is returned by StateTracker for illegal moves.
	ErrInvalidTransition = errors.New("invalid turn state transition")
	// ErrCallLimitExceeded is returned when a turn exceeds its generator call budget.
	ErrCallLimitExceeded = errors.New("generator call limit exceeded")
)

// Handler is a named specialist a request can be delegated to.
type Handler interface {
	// Name returns the unique routing key of the handler.
	Name() string
	// Description tells the router what kind of requests the handler serves.
	Description() string
	// Invoke processes the request text and returns the user-visible result.
	// Intermediate events may be emitted through tc.
	Invoke(tc *TurnContext, request string) (string, error)
}

// Generator is the external decision service: given an instruction and an
// input text it returns a text completion. Implementations may block on
// network I/O and must honor ctx.
type Generator interface {
	Generate(ctx context.Context, instruction, input string) (string, error)
}

// GeneratorFunc adapts an ordinary function to the Generator interface.
type GeneratorFunc func(ctx context.Context, instruction, input string) (string, error)

// Generate calls f(ctx, instruction, input).
func (f GeneratorFunc) Generate(ctx context.Context, instruction, input string) (string, error) {
	return f(ctx, instruction, input)
}

// Stream is the live output of a dispatched turn.
type Stream struct {
	TurnID string
	// Events is closed once the turn has finished producing events.
	Events <-chan Event
	// Tracker reports the states the turn has passed through so far.
	Tracker *StateTracker
}

// Dispatcher starts a turn for a request and streams its events.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (*Stream, error)
}

// loggerAdapter wraps a logging.Logger and exposes convenience methods
// (LogDebug/LogInfo/LogWarn/LogError). It guarantees a non-nil logger by
// substituting a NoOpLogger when constructed with nil.
type loggerAdapter struct {
	logger logging.Logger
}

func newLoggerAdapter(l logging.Logger) *loggerAdapter {
	if l == nil {
		l = logging.NoOpLogger{}
	}
	return &loggerAdapter{logger: l}
}

// Logger returns the underlying logger.
func (l *loggerAdapter) Logger() logging.Logger {
	return l.logger
}

// LogDebug logs a debug message.
func (l *loggerAdapter) LogDebug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// LogInfo logs an info message.
func (l *loggerAdapter) LogInfo(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// LogWarn logs a warning message.
func (l *loggerAdapter) LogWarn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// LogError logs an error message.
func (l *loggerAdapter) LogError(msg string, args ...any) {
	l.logger.Error(msg, args...)
}
