package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/logging"
	"github.com/hupe1980/agentroute/observability"
	"github.com/hupe1980/agentroute/tool"
)

// Options configures a Specialist.
type Options struct {
	// Actions are the capabilities the specialist may call, in priority order.
	Actions []tool.Tool
	// Generator answers requests no action covers. Optional.
	Generator core.Generator
	// Instruction is passed to Generator as the system prompt.
	Instruction Instruction
	// Selector chooses among several actions. Defaults to a GeneratorSelector
	// when Generator is set, otherwise FirstSelector.
	Selector Selector
	// Metrics records action invocations. Optional.
	Metrics *observability.Metrics
}

// Specialist is the standard Handler: a named unit bound to an ordered
// set of actions.
//
// Behavior by action count:
//   - none: answer through the Generator, or a simulated completion
//   - one: invoke it with the request text
//   - several: ask the Selector which apply and invoke those in order
//
// Each action call is recorded as an ActionCall event followed by an
// ActionResult event.
type Specialist struct {
	name        string
	description string
	actions     []tool.Tool
	generator   core.Generator
	instruction Instruction
	selector    Selector
	metrics     *observability.Metrics
}

// NewSpecialist creates a Specialist. It fails with ErrDuplicateName if two
// actions share a name.
func NewSpecialist(name, description string, optFns ...func(o *Options)) (*Specialist, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	seen := make(map[string]struct{}, len(opts.Actions))
	for _, a := range opts.Actions {
		if _, dup := seen[a.Name()]; dup {
			return nil, fmt.Errorf("%w: action %s in handler %s", core.ErrDuplicateName, a.Name(), name)
		}
		seen[a.Name()] = struct{}{}
	}

	sel := opts.Selector
	if sel == nil {
		if opts.Generator != nil {
			sel = GeneratorSelector{Generator: opts.Generator}
		} else {
			sel = FirstSelector{}
		}
	}

	return &Specialist{
		name:        name,
		description: description,
		actions:     append([]tool.Tool(nil), opts.Actions...),
		generator:   opts.Generator,
		instruction: opts.Instruction,
		selector:    sel,
		metrics:     opts.Metrics,
	}, nil
}

// WithActions is a functional option appending actions.
func WithActions(actions ...tool.Tool) func(o *Options) {
	return func(o *Options) { o.Actions = append(o.Actions, actions...) }
}

// Name returns the routing key.
func (s *Specialist) Name() string { return s.name }

// Description returns the capability description shown to the router.
func (s *Specialist) Description() string { return s.description }

// Actions returns the bound actions in order.
func (s *Specialist) Actions() []tool.Tool { return append([]tool.Tool(nil), s.actions...) }

// Invoke implements core.Handler.
func (s *Specialist) Invoke(tc *core.TurnContext, request string) (string, error) {
	selected, err := s.selectActions(tc, request)
	if err != nil {
		return "", err
	}

	if len(selected) == 0 {
		return s.complete(tc, request)
	}

	results := make([]string, 0, len(selected))
	for _, a := range selected {
		res, err := s.callAction(tc, a, request)
		if err != nil {
			return "", err
		}
		results = append(results, res)
	}

	return strings.Join(results, "\n"), nil
}

func (s *Specialist) selectActions(tc *core.TurnContext, request string) ([]tool.Tool, error) {
	switch len(s.actions) {
	case 0:
		return nil, nil
	case 1:
		return s.actions, nil
	default:
		return s.selector.Select(tc, request, s.actions)
	}
}

func (s *Specialist) callAction(tc *core.TurnContext, a tool.Tool, request string) (string, error) {
	callID := core.NewID()

	if err := tc.EmitEvent(core.NewActionCallEvent(s.name, callID, a.Name(), request)); err != nil {
		return "", err
	}

	start := time.Now()
	result, err := tool.SafeCall(a, tc.NewToolContext(callID), request)
	logging.LogActionCall(tc.Logger(), s.name, a.Name(), time.Since(start), err)
	s.metrics.ActionInvoked(s.name, a.Name(), err)

	if emitErr := tc.EmitEvent(core.NewActionResultEvent(s.name, callID, a.Name(), result, err)); emitErr != nil {
		return "", emitErr
	}

	if err != nil {
		return "", fmt.Errorf("action %s: %w", a.Name(), err)
	}

	return result, nil
}

// complete answers without an action.
func (s *Specialist) complete(tc *core.TurnContext, request string) (string, error) {
	if s.generator == nil {
		return fmt.Sprintf("%s handled request '%s'. Result: Simulated completion.", s.name, request), nil
	}

	if err := tc.Limiter.Increment(); err != nil {
		return "", err
	}

	instr, err := s.instruction.Resolve(tc)
	if err != nil {
		return "", fmt.Errorf("resolve instruction: %w", err)
	}
	if instr == "" {
		instr = s.description
	}

	return s.generator.Generate(tc.Context, instr, request)
}

var _ core.Handler = (*Specialist)(nil)

// FuncHandler adapts a function into a core.Handler.
type FuncHandler struct {
	name        string
	description string
	fn          func(tc *core.TurnContext, request string) (string, error)
}

// NewFuncHandler creates a FuncHandler.
func NewFuncHandler(name, description string, fn func(tc *core.TurnContext, request string) (string, error)) *FuncHandler {
	return &FuncHandler{name: name, description: description, fn: fn}
}

// Name returns the routing key.
func (h *FuncHandler) Name() string { return h.name }

// Description returns the capability description.
func (h *FuncHandler) Description() string { return h.description }

// Invoke calls the wrapped function.
func (h *FuncHandler) Invoke(tc *core.TurnContext, request string) (string, error) {
	return h.fn(tc, request)
}

var _ core.Handler = (*FuncHandler)(nil)
