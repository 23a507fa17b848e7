package runner

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/logging"
	"github.com/hupe1980/agentroute/observability"
)

// DefaultNoFinalResponseText is returned when a turn ends without a terminal event.
const DefaultNoFinalResponseText = "Agent did not produce a final response."

// DefaultFailureText formats errors raised before or around a turn. %v is the error.
const DefaultFailureText = "An error occurred while processing your request: %v"

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxConcurrentTurns limits turns executing simultaneously. 0 means unlimited.
	MaxConcurrentTurns int
	// NoFinalResponseText is returned when the stream ends without a final event.
	NoFinalResponseText string
	// FailureText is a fmt format with one %v verb used when Run fails
	// before a final event exists.
	FailureText string
	// OnTurnStart, if set, is called with the turn ID once the turn is
	// dispatched and can be cancelled. It runs on the Run goroutine and
	// must not block.
	OnTurnStart func(turnID string)
	Logger      logging.Logger
	Metrics     *observability.Metrics
}

// Result is the outcome of one turn.
type Result struct {
	TurnID  string
	Text    string
	Outcome core.TurnOutcome
	// Final is the terminal event. Zero when the turn had none.
	Final  core.Event
	Events []core.Event
}

// Runner drives turns end to end: it dispatches a request, consumes the
// turn's events up to the first final one, and appends the whole turn to the
// session store. Public methods are safe for concurrent use.
type Runner struct {
	dispatcher core.Dispatcher
	store      core.SessionStore

	noFinalResponseText string
	failureText         string
	sem                 chan struct{}
	onTurnStart         func(turnID string)
	logger              logging.Logger
	metrics             *observability.Metrics

	activeTurns map[string]context.CancelFunc
	mu          sync.Mutex
}

// New constructs a Runner with optional overrides.
func New(d core.Dispatcher, store core.SessionStore, optFns ...func(o *Options)) *Runner {
	opts := Options{
		NoFinalResponseText: DefaultNoFinalResponseText,
		FailureText:         DefaultFailureText,
		Logger:              logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	var sem chan struct{}
	if opts.MaxConcurrentTurns > 0 {
		sem = make(chan struct{}, opts.MaxConcurrentTurns)
	}

	return &Runner{
		dispatcher:          d,
		store:               store,
		noFinalResponseText: opts.NoFinalResponseText,
		failureText:         opts.FailureText,
		sem:                 sem,
		onTurnStart:         opts.OnTurnStart,
		logger:              opts.Logger,
		metrics:             opts.Metrics,
		activeTurns:         make(map[string]context.CancelFunc),
	}
}

// Submit runs one turn and always returns user-visible text, even on failure.
func (r *Runner) Submit(ctx context.Context, appName, userID, sessionID, text string) string {
	key := core.SessionKey{AppName: appName, UserID: userID, SessionID: sessionID}

	res, err := r.Run(ctx, core.NewRequest(key, text))
	if err != nil && res.Text == "" {
		return r.failure(err)
	}

	return res.Text
}

// Run executes one turn for req. The session must already exist.
//
// The turn is appended to the store once its final event is observed, or
// once the stream ends without one (ErrNoFinalResponse). If ctx is
// cancelled before a final event arrives nothing is appended and ctx.Err()
// is returned. Every call is counted in the turn metrics, including those
// that fail before dispatch.
func (r *Runner) Run(ctx context.Context, req core.Request) (Result, error) {
	started := time.Now()

	if err := req.Key.Validate(); err != nil {
		return r.abort(req, Result{}, err, started)
	}

	if err := r.acquire(ctx); err != nil {
		return r.abort(req, Result{}, err, started)
	}
	defer r.release()

	if _, err := r.store.Get(ctx, req.Key); err != nil {
		return r.abort(req, Result{}, fmt.Errorf("session %s: %w", req.Key, err), started)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := r.dispatcher.Dispatch(ctx, req)
	if err != nil {
		return r.abort(req, Result{}, fmt.Errorf("dispatch: %w", err), started)
	}

	r.track(stream.TurnID, cancel)
	defer r.untrack(stream.TurnID)

	if r.onTurnStart != nil {
		r.onTurnStart(stream.TurnID)
	}

	events, final, ok := consume(ctx, stream.Events)

	if !ok && ctx.Err() != nil {
		r.logger.Warn("runner.turn.cancelled", "session", req.Key.String(), "turn_id", stream.TurnID, "events", len(events))
		return r.abort(req, Result{TurnID: stream.TurnID, Events: events}, ctx.Err(), started)
	}

	res := Result{TurnID: stream.TurnID, Events: events}
	if ok {
		res.Final = final
		res.Text = final.Text()
		res.Outcome = outcomeOf(final)
	} else {
		res.Text = r.noFinalResponseText
		res.Outcome = core.OutcomeNoFinalResponse
	}

	turn := core.Turn{
		ID:        stream.TurnID,
		Request:   req,
		Events:    events,
		Final:     res.Text,
		Outcome:   res.Outcome,
		Started:   started.UTC(),
		Completed: time.Now().UTC(),
	}
	if stream.Tracker != nil {
		turn.States = stream.Tracker.States()
	}

	// The turn is complete; persist it even if the caller gives up now.
	if err := r.store.Append(context.WithoutCancel(ctx), req.Key, turn); err != nil {
		err = fmt.Errorf("append turn: %w", err)
		r.logger.Error("runner.turn.append_failed", "session", req.Key.String(), "turn_id", stream.TurnID, "error", err.Error())
		r.metrics.ObserveTurn(string(core.OutcomeFailed), time.Since(started))
		return res, err
	}

	dur := time.Since(started)
	logging.LogTurn(r.logger, req.Key.String(), string(res.Outcome), len(events), dur)
	r.metrics.ObserveTurn(string(res.Outcome), dur)

	if !ok {
		return res, core.ErrNoFinalResponse
	}

	return res, nil
}

// abort finishes a turn that produced no usable final event: it fills in
// the failure text and outcome and records the turn as failed.
func (r *Runner) abort(req core.Request, res Result, err error, started time.Time) (Result, error) {
	res.Text = r.failure(err)
	res.Outcome = core.OutcomeFailed

	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		r.logger.Warn("runner.turn.failed", "session", req.Key.String(), "error", err.Error())
	}
	r.metrics.ObserveTurn(string(res.Outcome), time.Since(started))

	return res, err
}

// Cancel cancels an in-flight turn by ID.
func (r *Runner) Cancel(turnID string) error {
	r.mu.Lock()
	cancel, exists := r.activeTurns[turnID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("turn %s: %w", turnID, core.ErrNotFound)
	}

	cancel()

	return nil
}

// Active returns the number of turns currently in flight.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.activeTurns)
}

// ActiveTurns returns the IDs of the turns currently in flight, in no
// particular order.
func (r *Runner) ActiveTurns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Collect(maps.Keys(r.activeTurns))
}

// consume reads events until the first final one. Events produced after it
// are ignored. ok is false if the stream closed or ctx ended first.
func consume(ctx context.Context, events <-chan core.Event) (collected []core.Event, final core.Event, ok bool) {
	for {
		select {
		case <-ctx.Done():
			return collected, core.Event{}, false
		case ev, open := <-events:
			if !open {
				return collected, core.Event{}, false
			}
			collected = append(collected, ev)
			if ev.IsFinal() {
				return collected, ev, true
			}
		}
	}
}

func outcomeOf(final core.Event) core.TurnOutcome {
	switch {
	case final.IsError():
		return core.OutcomeFailed
	case final.IsClarification():
		return core.OutcomeClarification
	default:
		return core.OutcomeCompleted
	}
}

func (r *Runner) failure(err error) string {
	if errors.Is(err, core.ErrNoFinalResponse) {
		return r.noFinalResponseText
	}
	return fmt.Sprintf(r.failureText, err)
}

func (r *Runner) acquire(ctx context.Context) error {
	if r.sem == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r.sem <- struct{}{}:
		return nil
	}
}

func (r *Runner) release() {
	if r.sem != nil {
		<-r.sem
	}
}

func (r *Runner) track(turnID string, cancel context.CancelFunc) {
	r.mu.Lock()
	r.activeTurns[turnID] = cancel
	r.mu.Unlock()
}

func (r *Runner) untrack(turnID string) {
	r.mu.Lock()
	delete(r.activeTurns, turnID)
	r.mu.Unlock()
}
