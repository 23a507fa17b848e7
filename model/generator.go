package model

import (
	"context"
	"errors"
	"strings"

	"github.com/hupe1980/agentroute/core"
)

// ErrEmptyCompletion is returned when a model finishes without a final response.
var ErrEmptyCompletion = errors.New("model produced no final response")

// GeneratorOptions configure the Model to Generator adapter.
type GeneratorOptions struct {
	// Stream requests streaming from the model; partial chunks are discarded
	// and only the final response is used.
	Stream bool
}

// Generator adapts a Model into a core.Generator: the instruction becomes
// the system prompt and the input the single user message.
type Generator struct {
	model Model
	opts  GeneratorOptions
}

// NewGenerator wraps m.
func NewGenerator(m Model, optFns ...func(o *GeneratorOptions)) *Generator {
	opts := GeneratorOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{model: m, opts: opts}
}

// Model returns the wrapped model.
func (g *Generator) Model() Model { return g.model }

// Generate implements core.Generator.
func (g *Generator) Generate(ctx context.Context, instruction, input string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	req := Request{
		Instructions: instruction,
		Contents: []core.Content{{
			Role:  core.RoleUser,
			Parts: []core.Part{core.TextPart{Text: input}},
		}},
		Stream: g.opts.Stream,
	}

	respCh, errCh := g.model.Generate(ctx, req)

	var (
		final string
		seen  bool
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				continue
			}
			final = resp.Content.Text()
			seen = true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", err
			}
		}
	}

	if !seen {
		return "", ErrEmptyCompletion
	}

	return strings.TrimSpace(final), nil
}

var _ core.Generator = (*Generator)(nil)
