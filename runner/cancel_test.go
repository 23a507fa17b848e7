package runner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/internal/testutil"
	"github.com/hupe1980/agentroute/runner"
	"github.com/hupe1980/agentroute/session"
)

func newSession(t *testing.T) (core.SessionStore, core.SessionKey) {
	t.Helper()
	store := session.NewInMemoryStore()
	k := core.SessionKey{AppName: "routing_app", UserID: "user_123", SessionID: "s1"}
	_, err := store.Create(context.Background(), k)
	require.NoError(t, err)
	return store, k
}

func TestRunner_CancelFromTurnStart(t *testing.T) {
	store, k := newSession(t)

	started := make(chan string, 1)
	r := runner.New(&testutil.StubDispatcher{Hang: true}, store, func(o *runner.Options) {
		o.OnTurnStart = func(turnID string) { started <- turnID }
	})

	done := make(chan runner.Result, 1)
	errs := make(chan error, 1)
	go func() {
		res, err := r.Run(context.Background(), core.NewRequest(k, "q"))
		done <- res
		errs <- err
	}()

	var turnID string
	select {
	case turnID = <-started:
	case <-time.After(time.Second):
		t.Fatal("turn never started")
	}

	assert.Equal(t, []string{turnID}, r.ActiveTurns())
	require.NoError(t, r.Cancel(turnID))

	res := <-done
	assert.ErrorIs(t, <-errs, context.Canceled)
	assert.Equal(t, turnID, res.TurnID)
	assert.Equal(t, core.OutcomeFailed, res.Outcome)
	assert.Empty(t, r.ActiveTurns())

	seq, err := store.History(context.Background(), k)
	require.NoError(t, err)
	for range seq {
		t.Fatal("cancelled turn was appended")
	}
}

func TestRunner_CancelFromActiveTurns(t *testing.T) {
	store, k := newSession(t)
	r := runner.New(&testutil.StubDispatcher{Hang: true}, store)

	errs := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), core.NewRequest(k, "q"))
		errs <- err
	}()

	require.Eventually(t, func() bool { return len(r.ActiveTurns()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, r.Cancel(r.ActiveTurns()[0]))
	assert.ErrorIs(t, <-errs, context.Canceled)
	assert.Zero(t, r.Active())
}

func TestRunner_CancelUnknownTurn(t *testing.T) {
	store, _ := newSession(t)
	r := runner.New(&testutil.StubDispatcher{}, store)

	assert.ErrorIs(t, r.Cancel("unknown"), core.ErrNotFound)
}
