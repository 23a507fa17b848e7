package core

import (
	"fmt"
	"slices"
	"sync"
)

// TurnState is a step in the lifecycle of a turn.
type TurnState string

const (
	StateSubmitted           TurnState = "submitted"
	StateClassifying         TurnState = "classifying"
	StateDelegating          TurnState = "delegating"
	StateHandling            TurnState = "handling"
	StateClarificationNeeded TurnState = "clarification_needed"
	StateCompleted           TurnState = "completed"
)

var transitions = map[TurnState][]TurnState{
	StateSubmitted:           {StateClassifying, StateCompleted},
	StateClassifying:         {StateDelegating, StateClarificationNeeded, StateCompleted},
	StateDelegating:          {StateHandling, StateCompleted},
	StateHandling:            {StateCompleted},
	StateClarificationNeeded: {StateCompleted},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to TurnState) bool {
	return slices.Contains(transitions[from], to)
}

// StateTracker records the path of a single turn. It starts in Submitted and
// only accepts forward moves. Safe for concurrent use.
type StateTracker struct {
	mu     sync.Mutex
	states []TurnState
}

// NewStateTracker returns a tracker positioned at StateSubmitted.
func NewStateTracker() *StateTracker {
	return &StateTracker{states: []TurnState{StateSubmitted}}
}

// Current returns the latest state.
func (st *StateTracker) Current() TurnState {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.states[len(st.states)-1]
}

// Transition moves to next or returns ErrInvalidTransition.
func (st *StateTracker) Transition(next TurnState) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	cur := st.states[len(st.states)-1]
	if !CanTransition(cur, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, next)
	}

	st.states = append(st.states, next)

	return nil
}

// States returns a copy of the recorded path.
func (st *StateTracker) States() []TurnState {
	st.mu.Lock()
	defer st.mu.Unlock()
	return slices.Clone(st.states)
}

// Done reports whether the turn reached StateCompleted.
func (st *StateTracker) Done() bool { return st.Current() == StateCompleted }
