package testutil

import (
	"context"
	"sync"
)

// GeneratorCall records one invocation of a StubGenerator.
type GeneratorCall struct {
	Instruction string
	Input       string
}

// StubGenerator is a deterministic core.Generator. Answers are looked up by
// exact input text; unmatched inputs get Fallback. Err, when set, is
// returned for every call. Safe for concurrent use.
type StubGenerator struct {
	mu       sync.Mutex
	answers  map[string]string
	calls    []GeneratorCall
	Fallback string
	Err      error
	// Block, when non-nil, is waited on (or ctx) before answering.
	Block chan struct{}
}

// NewStubGenerator creates a stub answering fallback for unknown inputs.
func NewStubGenerator(fallback string) *StubGenerator {
	return &StubGenerator{answers: map[string]string{}, Fallback: fallback}
}

// On registers the answer for input (chainable).
func (g *StubGenerator) On(input, answer string) *StubGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answers[input] = answer
	return g
}

// Generate implements core.Generator.
func (g *StubGenerator) Generate(ctx context.Context, instruction, input string) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, GeneratorCall{Instruction: instruction, Input: input})
	answer, ok := g.answers[input]
	err := g.Err
	block := g.Block
	g.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err != nil {
		return "", err
	}

	if !ok {
		answer = g.Fallback
	}

	return answer, nil
}

// Calls returns a copy of the recorded calls.
func (g *StubGenerator) Calls() []GeneratorCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]GeneratorCall(nil), g.calls...)
}
