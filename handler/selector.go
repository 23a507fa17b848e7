package handler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/tool"
)

// NoneMarker is the generator answer meaning "no action applies".
const NoneMarker = "NONE"

// Selector decides which of a handler's actions apply to a request.
// Returning no actions makes the handler answer without calling any action.
type Selector interface {
	Select(tc *core.TurnContext, request string, actions []tool.Tool) ([]tool.Tool, error)
}

// SelectorFunc adapts an ordinary function to the Selector interface.
type SelectorFunc func(tc *core.TurnContext, request string, actions []tool.Tool) ([]tool.Tool, error)

// Select calls f.
func (f SelectorFunc) Select(tc *core.TurnContext, request string, actions []tool.Tool) ([]tool.Tool, error) {
	return f(tc, request, actions)
}

// FirstSelector always picks the first registered action.
type FirstSelector struct{}

// Select implements Selector.
func (FirstSelector) Select(_ *core.TurnContext, _ string, actions []tool.Tool) ([]tool.Tool, error) {
	if len(actions) == 0 {
		return nil, nil
	}
	return actions[:1], nil
}

// GeneratorSelector asks a Generator which actions are relevant. The
// generator answers with a comma separated list of action names or NONE;
// names it invents are ignored.
type GeneratorSelector struct {
	Generator core.Generator
}

// Select implements Selector.
func (s GeneratorSelector) Select(tc *core.TurnContext, request string, actions []tool.Tool) ([]tool.Tool, error) {
	if err := tc.Limiter.Increment(); err != nil {
		return nil, err
	}

	out, err := s.Generator.Generate(tc.Context, selectionInstruction(actions), request)
	if err != nil {
		return nil, fmt.Errorf("select actions: %w", err)
	}

	return parseSelection(out, actions), nil
}

func selectionInstruction(actions []tool.Tool) string {
	var b strings.Builder
	b.WriteString("Choose the actions needed to fulfil the user's request.\n")
	b.WriteString("Available actions:\n")
	for _, a := range actions {
		fmt.Fprintf(&b, "- %s: %s\n", a.Name(), a.Description())
	}
	fmt.Fprintf(&b, "Answer with a comma separated list of action names, or %s if none applies.", NoneMarker)
	return b.String()
}

func parseSelection(out string, actions []tool.Tool) []tool.Tool {
	out = strings.TrimSpace(out)
	if out == "" || strings.EqualFold(out, NoneMarker) {
		return nil
	}

	var (
		picked []tool.Tool
		seen   = map[int]bool{}
	)
	for _, raw := range strings.Split(out, ",") {
		name := strings.Trim(strings.TrimSpace(raw), "`'\".")
		idx := slices.IndexFunc(actions, func(a tool.Tool) bool { return a.Name() == name })
		if idx < 0 || seen[idx] {
			continue
		}
		seen[idx] = true
		picked = append(picked, actions[idx])
	}

	return picked
}
