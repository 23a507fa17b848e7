package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/internal/util"
	"github.com/hupe1980/agentroute/logging"
	"github.com/hupe1980/agentroute/observability"
	"github.com/hupe1980/agentroute/registry"
)

// DefaultInstruction is the classification prompt. It is rendered with
// text/template over InstructionData.
const DefaultInstruction = `You are {{.Name}}, a coordinator that delegates user requests to specialized handlers.

Available handlers:
{{range .Handlers}}- {{.Name}}: {{.Description}}
{{end}}
Select exactly one handler name from the list above whose description best matches the request.
Answer with the handler name only. If no handler matches, answer {{.Marker}} followed by a short clarification question, for example "{{.Marker}}: What would you like to book?".`

// DefaultClarificationText is used when the generator asks for
// clarification without a message. %s is the request text.
const DefaultClarificationText = "Coordinator could not delegate request: '%s'. Please clarify."

// DefaultFailureText is used for the terminal event of a failed turn. %v is the error.
const DefaultFailureText = "An error occurred while processing your request: %v"

// HandlerInfo describes one handler to the classification prompt.
type HandlerInfo struct {
	Name        string
	Description string
}

// InstructionData is the template data of the classification prompt.
type InstructionData struct {
	Name     string
	Handlers []HandlerInfo
	Marker   string
}

// Options configures a Router.
type Options struct {
	// Name authors the router's own events. Defaults to "Coordinator".
	Name string
	// Instruction is a text/template rendered over InstructionData.
	Instruction string
	// ClarificationText is a fmt format with one %s verb for the request.
	ClarificationText string
	// FailureText is a fmt format with one %v verb for the error.
	FailureText string
	// MaxGeneratorCalls caps generator calls per turn, including the
	// handler's own. 0 means unlimited.
	MaxGeneratorCalls int
	// EventBufferSize is the capacity of each turn's event channel.
	EventBufferSize int
	Logger          logging.Logger
	Metrics         *observability.Metrics
}

// Router classifies requests against a registry and drives the delegated
// turn. Registration must complete before the first Dispatch; after that
// the router may be shared by concurrent turns.
type Router struct {
	name              string
	generator         core.Generator
	registry          *registry.Registry
	instruction       *template.Template
	clarificationText string
	failureText       string
	maxGeneratorCalls int
	eventBufferSize   int
	logger            logging.Logger
	metrics           *observability.Metrics
}

// New creates a Router using gen as the sole arbiter of handler selection.
func New(gen core.Generator, reg *registry.Registry, optFns ...func(o *Options)) (*Router, error) {
	if gen == nil {
		return nil, errors.New("router: generator is required")
	}

	if reg == nil {
		return nil, errors.New("router: registry is required")
	}

	opts := Options{
		Name:              "Coordinator",
		Instruction:       DefaultInstruction,
		ClarificationText: DefaultClarificationText,
		FailureText:       DefaultFailureText,
		EventBufferSize:   16,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	tmpl, err := util.ParseTemplate("classification", opts.Instruction)
	if err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Router{
		name:              opts.Name,
		generator:         gen,
		registry:          reg,
		instruction:       tmpl,
		clarificationText: opts.ClarificationText,
		failureText:       opts.FailureText,
		maxGeneratorCalls: opts.MaxGeneratorCalls,
		eventBufferSize:   max(opts.EventBufferSize, 0),
		logger:            opts.Logger,
		metrics:           opts.Metrics,
	}, nil
}

// Name returns the author name of router events.
func (r *Router) Name() string { return r.name }

// Registry returns the handler registry.
func (r *Router) Registry() *registry.Registry { return r.registry }

// Instruction renders the classification prompt for the current registry.
func (r *Router) Instruction() (string, error) {
	handlers := r.registry.List()

	data := InstructionData{
		Name:     r.name,
		Handlers: make([]HandlerInfo, 0, len(handlers)),
		Marker:   ClarifyMarker,
	}
	for _, h := range handlers {
		data.Handlers = append(data.Handlers, HandlerInfo{Name: h.Name(), Description: h.Description()})
	}

	return util.RenderTemplate(r.instruction, data)
}

// Classify asks the generator once which handler fits request. A
// generator failure is returned as error; every other outcome, including
// unusable output, is a Decision.
func (r *Router) Classify(ctx context.Context, request string) (Decision, error) {
	if err := r.registry.Validate(); err != nil {
		return Decision{}, err
	}

	instr, err := r.Instruction()
	if err != nil {
		return Decision{}, err
	}

	start := time.Now()
	out, err := r.generator.Generate(ctx, instr, request)
	logging.LogGeneratorCall(r.logger, "classify", time.Since(start), err)
	r.metrics.GeneratorCalled("classify", err)

	if err != nil {
		return Decision{}, fmt.Errorf("classify: %w", err)
	}

	return parseDecision(out, r.lookup), nil
}

// lookup resolves a generator answer to a registered name. Exact matches
// win; otherwise a unique case-insensitive match is accepted.
func (r *Router) lookup(name string) (string, bool) {
	if h, err := r.registry.Get(name); err == nil {
		return h.Name(), true
	}

	match := ""
	for _, n := range r.registry.Names() {
		if strings.EqualFold(n, name) {
			if match != "" {
				return "", false
			}
			match = n
		}
	}

	return match, match != ""
}

// Dispatch starts a turn for req and returns its event stream. It fails
// synchronously only for an empty registry or an invalid key; all later
// failures are reported as the turn's terminal event.
func (r *Router) Dispatch(ctx context.Context, req core.Request) (*core.Stream, error) {
	if err := r.registry.Validate(); err != nil {
		return nil, err
	}

	if err := req.Key.Validate(); err != nil {
		return nil, err
	}

	turnID := core.NewID()
	ch := make(chan core.Event, r.eventBufferSize)
	tracker := core.NewStateTracker()

	logger := r.logger
	if rl, ok := logger.(*logging.RouteLogger); ok {
		logger = rl.WithSession(req.Key.String(), turnID)
	}

	tc := core.NewTurnContext(ctx, turnID, req, r.name, ch, r.maxGeneratorCalls, logger)

	go func() {
		defer close(ch)
		r.drive(tc, tracker)
	}()

	return &core.Stream{TurnID: turnID, Events: ch, Tracker: tracker}, nil
}

func (r *Router) drive(tc *core.TurnContext, tracker *core.StateTracker) {
	tc.LogDebug("router.turn.start", "request_len", len(tc.Request.Text))

	_ = tracker.Transition(core.StateClassifying)

	var dec Decision
	err := tc.Limiter.Increment()
	if err == nil {
		err = safely(func() (err error) {
			dec, err = r.Classify(tc.Context, tc.Request.Text)
			return err
		})
	}

	if err != nil {
		r.fail(tc, tracker, codeFor(err, core.ErrorCodeGenerator), err)
		return
	}

	if dec.NeedsClarification() {
		r.clarify(tc, tracker, dec)
		return
	}

	h, err := r.registry.Get(dec.Handler)
	if err != nil {
		// Classify only returns registered names.
		r.fail(tc, tracker, core.ErrorCodeHandler, err)
		return
	}

	_ = tracker.Transition(core.StateDelegating)
	r.metrics.HandlerSelected(h.Name())
	tc.LogInfo("router.classify.selected", "handler", h.Name())

	if err := tc.EmitEvent(core.NewTransferEvent(r.name, h.Name())); err != nil {
		return
	}

	_ = tracker.Transition(core.StateHandling)

	var result string
	err = safely(func() (err error) {
		result, err = h.Invoke(tc.ForHandler(h.Name()), tc.Request.Text)
		return err
	})
	if err != nil {
		r.fail(tc, tracker, codeFor(err, core.ErrorCodeHandler), err)
		return
	}

	_ = tracker.Transition(core.StateCompleted)

	if err := tc.EmitEvent(core.NewFinalEvent(h.Name(), result)); err != nil {
		return
	}

	tc.LogDebug("router.turn.completed", "handler", h.Name())
}

func (r *Router) clarify(tc *core.TurnContext, tracker *core.StateTracker, dec Decision) {
	_ = tracker.Transition(core.StateClarificationNeeded)
	r.metrics.Clarified(dec.Reason)

	if dec.Cause != nil {
		tc.LogWarn("router.classify.clarification", "reason", dec.Reason, "error", dec.Cause.Error())
	} else {
		tc.LogInfo("router.classify.clarification", "reason", dec.Reason)
	}

	text := dec.Message
	if text == "" {
		text = fmt.Sprintf(r.clarificationText, tc.Request.Text)
	}

	_ = tracker.Transition(core.StateCompleted)
	_ = tc.EmitEvent(core.NewClarificationEvent(r.name, text))
}

// fail emits the terminal failure event unless the turn was cancelled, in
// which case nothing more is emitted.
func (r *Router) fail(tc *core.TurnContext, tracker *core.StateTracker, code string, err error) {
	if tc.Err() != nil {
		tc.LogDebug("router.turn.cancelled", "error", tc.Err().Error())
		return
	}

	tc.LogError("router.turn.failed", "code", code, "error", err.Error())

	_ = tracker.Transition(core.StateCompleted)
	_ = tc.EmitEvent(core.NewErrorEvent(r.name, fmt.Sprintf(r.failureText, err), code, err))
}

var _ core.Dispatcher = (*Router)(nil)

// PanicError carries a value recovered from a generator or handler.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

func safely(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec}
		}
	}()

	return fn()
}

func codeFor(err error, fallback string) string {
	var pe *PanicError
	if errors.As(err, &pe) {
		return core.ErrorCodePanic
	}
	return fallback
}
