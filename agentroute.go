// Package agentroute provides a high-level façade over the router, runner
// and session stores, enabling rapid construction of request routing
// systems. Most applications interact with this package by:
//  1. Creating a Mesh via New() or NewFromConfig()
//  2. Registering one or more handlers
//  3. Creating a session per conversation and submitting requests to it
//
// The façade delegates classification to router.Router and turn execution
// to runner.Runner. All defaults are safe for local development and
// testing; production deployments typically supply a durable session store
// and a structured logger.
package agentroute

import (
	"context"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/logging"
	"github.com/hupe1980/agentroute/observability"
	"github.com/hupe1980/agentroute/registry"
	"github.com/hupe1980/agentroute/router"
	"github.com/hupe1980/agentroute/runner"
	"github.com/hupe1980/agentroute/session"
)

// Options configures the Mesh instance.
type Options struct {
	// AppName is the application part of every session key.
	AppName string

	// Router configuration. Zero values keep the router defaults.
	RouterName        string
	Instruction       string
	ClarificationText string
	MaxGeneratorCalls int
	EventBufferSize   int

	// MaxConcurrentTurns limits the number of turns that can execute
	// simultaneously. Set to 0 for unlimited.
	MaxConcurrentTurns int

	// TurnTimeout bounds each turn. 0 leaves the caller's context as is.
	TurnTimeout time.Duration

	// OnTurnStart receives each turn ID as soon as the turn is in flight,
	// so it can be passed to Cancel. It must not block.
	OnTurnStart func(turnID string)

	// SessionStore defaults to an in-memory store.
	SessionStore core.SessionStore

	// Logger defaults to a NoOp logger.
	Logger logging.Logger

	// Metrics is optional.
	Metrics *observability.Metrics
}

// Mesh is the high-level façade aggregating registry, router, runner and store.
type Mesh struct {
	opts     Options
	registry *registry.Registry
	router   *router.Router
	runner   *runner.Runner
	store    core.SessionStore
}

// New creates a Mesh using gen for classification. Handlers are added with
// Register, which must complete before the first request.
func New(gen core.Generator, optFns ...func(o *Options)) (*Mesh, error) {
	opts := Options{
		AppName: "routing_app",
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	reg, err := registry.New()
	if err != nil {
		return nil, err
	}

	r, err := router.New(gen, reg, func(o *router.Options) {
		if opts.RouterName != "" {
			o.Name = opts.RouterName
		}
		if opts.Instruction != "" {
			o.Instruction = opts.Instruction
		}
		if opts.ClarificationText != "" {
			o.ClarificationText = opts.ClarificationText
		}
		if opts.EventBufferSize > 0 {
			o.EventBufferSize = opts.EventBufferSize
		}
		o.MaxGeneratorCalls = opts.MaxGeneratorCalls
		o.Logger = componentLogger(opts.Logger, "router")
		o.Metrics = opts.Metrics
	})
	if err != nil {
		return nil, err
	}

	run := runner.New(r, opts.SessionStore, func(o *runner.Options) {
		o.MaxConcurrentTurns = opts.MaxConcurrentTurns
		o.OnTurnStart = opts.OnTurnStart
		o.Logger = componentLogger(opts.Logger, "runner")
		o.Metrics = opts.Metrics
	})

	return &Mesh{
		opts:     opts,
		registry: reg,
		router:   r,
		runner:   run,
		store:    opts.SessionStore,
	}, nil
}

// Register adds handlers to the registry. It fails on the first duplicate name.
func (m *Mesh) Register(handlers ...core.Handler) error {
	for _, h := range handlers {
		if err := m.registry.Register(h); err != nil {
			return err
		}
	}
	return nil
}

// Handlers returns the registered handlers in registration order.
func (m *Mesh) Handlers() []core.Handler { return m.registry.List() }

// AppName returns the application name used in session keys.
func (m *Mesh) AppName() string { return m.opts.AppName }

// Router exposes the underlying router.
func (m *Mesh) Router() *router.Router { return m.router }

// Key builds the session key for userID and sessionID.
func (m *Mesh) Key(userID, sessionID string) core.SessionKey {
	return core.SessionKey{AppName: m.opts.AppName, UserID: userID, SessionID: sessionID}
}

// CreateSession creates a session with a fresh UUID and returns its ID.
func (m *Mesh) CreateSession(ctx context.Context, userID string) (string, error) {
	sessionID := uuid.NewString()
	if err := m.CreateSessionWithID(ctx, userID, sessionID); err != nil {
		return "", err
	}
	return sessionID, nil
}

// CreateSessionWithID creates a session with a caller chosen ID.
func (m *Mesh) CreateSessionWithID(ctx context.Context, userID, sessionID string) error {
	_, err := m.store.Create(ctx, m.Key(userID, sessionID))
	return err
}

// Run executes one turn and returns the full result.
func (m *Mesh) Run(ctx context.Context, userID, sessionID, text string) (runner.Result, error) {
	if m.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.TurnTimeout)
		defer cancel()
	}

	return m.runner.Run(ctx, core.NewRequest(m.Key(userID, sessionID), text))
}

// Submit executes one turn and returns the user-visible answer. It never
// fails: errors are turned into a sentinel text.
func (m *Mesh) Submit(ctx context.Context, userID, sessionID, text string) string {
	res, err := m.Run(ctx, userID, sessionID, text)
	if err != nil && res.Text == "" {
		return fmt.Sprintf(runner.DefaultFailureText, err)
	}
	return res.Text
}

// History returns the turns of a session in insertion order.
func (m *Mesh) History(ctx context.Context, userID, sessionID string) (iter.Seq[core.Turn], error) {
	return m.store.History(ctx, m.Key(userID, sessionID))
}

// Cancel cancels an in-flight turn. Turn IDs are reported by
// Options.OnTurnStart and ActiveTurns.
func (m *Mesh) Cancel(turnID string) error { return m.runner.Cancel(turnID) }

// ActiveTurns returns the IDs of the turns currently in flight.
func (m *Mesh) ActiveTurns() []string { return m.runner.ActiveTurns() }

// Close releases the session store if it holds resources.
func (m *Mesh) Close() error {
	if c, ok := m.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func componentLogger(l logging.Logger, component string) logging.Logger {
	if rl, ok := l.(*logging.RouteLogger); ok {
		return rl.WithComponent(component)
	}
	return l
}
