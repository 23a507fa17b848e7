package testutil

import (
	"context"

	"github.com/hupe1980/agentroute/core"
)

// StubDispatcher replays a fixed event script for every request. After the
// script it either closes the stream or, with Hang set, blocks until the
// turn context is cancelled.
type StubDispatcher struct {
	Events []core.Event
	Hang   bool
	Err    error
}

// Dispatch implements core.Dispatcher.
func (d *StubDispatcher) Dispatch(ctx context.Context, _ core.Request) (*core.Stream, error) {
	if d.Err != nil {
		return nil, d.Err
	}

	turnID := core.NewID()
	ch := make(chan core.Event)

	go func() {
		defer close(ch)
		for _, ev := range d.Events {
			ev.TurnID = turnID
			select {
			case <-ctx.Done():
				return
			case ch <- ev:
			}
		}
		if d.Hang {
			<-ctx.Done()
		}
	}()

	return &core.Stream{TurnID: turnID, Events: ch, Tracker: core.NewStateTracker()}, nil
}

var _ core.Dispatcher = (*StubDispatcher)(nil)
