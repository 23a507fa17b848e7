package runner

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/internal/testutil"
	"github.com/hupe1980/agentroute/observability"
	"github.com/hupe1980/agentroute/session"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, keys ...core.SessionKey) *session.InMemoryStore {
	t.Helper()
	store := session.NewInMemoryStore()
	for _, k := range keys {
		_, err := store.Create(context.Background(), k)
		require.NoError(t, err)
	}
	return store
}

func key(id string) core.SessionKey {
	return core.SessionKey{AppName: "routing_app", UserID: "user_123", SessionID: id}
}

func history(t *testing.T, store core.SessionStore, k core.SessionKey) []core.Turn {
	t.Helper()
	seq, err := store.History(context.Background(), k)
	require.NoError(t, err)
	return slices.Collect(seq)
}

func TestRunner_ReturnsFirstFinalAndIgnoresLater(t *testing.T) {
	k := key("s1")
	store := newStore(t, k)

	d := &testutil.StubDispatcher{Events: []core.Event{
		testutil.NewEventBuilder().Author("Coordinator").Transfer("Booker").Build(),
		testutil.NewEventBuilder().Author("Booker").ActionCall("c1", "booking_handler", "hotel").Build(),
		testutil.NewEventBuilder().Author("Booker").Text("booked").Final().Build(),
		testutil.NewEventBuilder().Author("Booker").Text("late").Final().Build(),
	}}

	r := New(d, store)
	res, err := r.Run(context.Background(), core.NewRequest(k, "hotel"))
	require.NoError(t, err)
	assert.Equal(t, "booked", res.Text)
	assert.Equal(t, core.OutcomeCompleted, res.Outcome)
	assert.Len(t, res.Events, 3)
	assert.Equal(t, "Booker", res.Final.Author)

	turns := history(t, store, k)
	require.Len(t, turns, 1)
	assert.Equal(t, res.TurnID, turns[0].ID)
	assert.Equal(t, "booked", turns[0].Final)
	assert.Len(t, turns[0].Events, 3)
	assert.Equal(t, "hotel", turns[0].Request.Text)
}

func TestRunner_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		final   core.Event
		outcome core.TurnOutcome
	}{
		{"clarification", core.NewClarificationEvent("Coordinator", "please clarify"), core.OutcomeClarification},
		{"failure", core.NewErrorEvent("Coordinator", "failed", core.ErrorCodeGenerator, errors.New("x")), core.OutcomeFailed},
		{"completed", core.NewFinalEvent("Info", "done"), core.OutcomeCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := key(tt.name)
			store := newStore(t, k)
			r := New(&testutil.StubDispatcher{Events: []core.Event{tt.final}}, store)

			res, err := r.Run(context.Background(), core.NewRequest(k, "q"))
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.final.Text(), res.Text)
			assert.Equal(t, tt.outcome, history(t, store, k)[0].Outcome)
		})
	}
}

func TestRunner_NoFinalResponse(t *testing.T) {
	k := key("s1")
	store := newStore(t, k)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	d := &testutil.StubDispatcher{Events: []core.Event{
		testutil.NewEventBuilder().Author("Info").Text("thinking").Build(),
	}}

	r := New(d, store, func(o *Options) { o.Metrics = metrics })
	res, err := r.Run(context.Background(), core.NewRequest(k, "q"))
	require.ErrorIs(t, err, core.ErrNoFinalResponse)
	assert.Equal(t, "Agent did not produce a final response.", res.Text)
	assert.Equal(t, core.OutcomeNoFinalResponse, res.Outcome)

	turns := history(t, store, k)
	require.Len(t, turns, 1)
	assert.Equal(t, core.OutcomeNoFinalResponse, turns[0].Outcome)

	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.TurnsTotal.WithLabelValues(string(core.OutcomeNoFinalResponse))))

	assert.Equal(t, "Agent did not produce a final response.", r.Submit(context.Background(), k.AppName, k.UserID, k.SessionID, "q"))
}

func TestRunner_CancelledBeforeFinalAppendsNothing(t *testing.T) {
	k := key("s1")
	store := newStore(t, k)

	d := &testutil.StubDispatcher{
		Events: []core.Event{testutil.NewEventBuilder().Author("Info").Text("partial").Build()},
		Hang:   true,
	}

	r := New(d, store)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, core.NewRequest(k, "q"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, history(t, store, k))
	assert.Zero(t, r.Active())
}

func TestRunner_FailuresAreCounted(t *testing.T) {
	k := key("s1")
	store := newStore(t, k)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	failed := metrics.TurnsTotal.WithLabelValues(string(core.OutcomeFailed))

	r := New(&testutil.StubDispatcher{}, store, func(o *Options) { o.Metrics = metrics })
	_, err := r.Run(context.Background(), core.NewRequest(core.SessionKey{}, "q"))
	require.ErrorIs(t, err, core.ErrInvalidSessionKey)
	assert.Equal(t, 1.0, promtest.ToFloat64(failed))

	_, err = r.Run(context.Background(), core.NewRequest(key("missing"), "q"))
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, 2.0, promtest.ToFloat64(failed))

	r = New(&testutil.StubDispatcher{Err: core.ErrEmptyRegistry}, store, func(o *Options) { o.Metrics = metrics })
	_, err = r.Run(context.Background(), core.NewRequest(k, "q"))
	require.ErrorIs(t, err, core.ErrEmptyRegistry)
	assert.Equal(t, 3.0, promtest.ToFloat64(failed))

	r = New(&testutil.StubDispatcher{Hang: true}, store, func(o *Options) { o.Metrics = metrics })
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := r.Run(ctx, core.NewRequest(k, "q"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, core.OutcomeFailed, res.Outcome)
	assert.NotEmpty(t, res.TurnID)
	assert.Equal(t, 4.0, promtest.ToFloat64(failed))

	assert.Empty(t, history(t, store, k))
}

func TestRunner_RequiresSession(t *testing.T) {
	store := newStore(t)
	r := New(&testutil.StubDispatcher{}, store)

	res, err := r.Run(context.Background(), core.NewRequest(key("missing"), "q"))
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, core.OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Text, "An error occurred while processing your request:")
}

func TestRunner_InvalidKey(t *testing.T) {
	r := New(&testutil.StubDispatcher{}, newStore(t))

	_, err := r.Run(context.Background(), core.NewRequest(core.SessionKey{}, "q"))
	assert.ErrorIs(t, err, core.ErrInvalidSessionKey)

	text := r.Submit(context.Background(), "", "", "", "q")
	assert.Contains(t, text, "An error occurred while processing your request:")
}

func TestRunner_DispatchError(t *testing.T) {
	k := key("s1")
	store := newStore(t, k)
	r := New(&testutil.StubDispatcher{Err: core.ErrEmptyRegistry}, store)

	_, err := r.Run(context.Background(), core.NewRequest(k, "q"))
	assert.ErrorIs(t, err, core.ErrEmptyRegistry)
	assert.Empty(t, history(t, store, k))
}

func TestRunner_AppendsInOrder(t *testing.T) {
	k := key("s1")
	store := newStore(t, k)
	r := New(&scriptedDispatcher{}, store)

	for _, text := range []string{"one", "two", "three"} {
		assert.Equal(t, "echo: "+text, r.Submit(context.Background(), k.AppName, k.UserID, k.SessionID, text))
	}

	var got []string
	for _, turn := range history(t, store, k) {
		got = append(got, turn.Request.Text)
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestRunner_ConcurrentSessionsIsolated(t *testing.T) {
	a, b := key("a"), key("b")
	store := newStore(t, a, b)
	r := New(&scriptedDispatcher{}, store, func(o *Options) { o.MaxConcurrentTurns = 4 })

	var wg sync.WaitGroup
	for i := range 20 {
		k := a
		if i%2 == 1 {
			k = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Submit(context.Background(), k.AppName, k.UserID, k.SessionID, k.SessionID)
		}()
	}
	wg.Wait()

	for _, k := range []core.SessionKey{a, b} {
		turns := history(t, store, k)
		require.Len(t, turns, 10)
		for _, turn := range turns {
			assert.Equal(t, k, turn.Request.Key)
			assert.Equal(t, "echo: "+k.SessionID, turn.Final)
		}
	}
}

// scriptedDispatcher answers every request with "echo: <text>".
type scriptedDispatcher struct{}

func (scriptedDispatcher) Dispatch(ctx context.Context, req core.Request) (*core.Stream, error) {
	ch := make(chan core.Event, 1)
	turnID := core.NewID()
	ev := core.NewFinalEvent("Echo", "echo: "+req.Text)
	ev.TurnID = turnID
	ch <- ev
	close(ch)
	return &core.Stream{TurnID: turnID, Events: ch}, nil
}
