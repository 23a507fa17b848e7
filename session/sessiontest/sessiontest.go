// Package sessiontest contains a contract suite every core.SessionStore
// implementation must pass.
package sessiontest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentroute/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) core.SessionStore

// Key builds a session key for tests.
func Key(session string) core.SessionKey {
	return core.SessionKey{AppName: "routing_app", UserID: "user_123", SessionID: session}
}

// Turn builds a completed turn with a single final event.
func Turn(key core.SessionKey, request, answer string) core.Turn {
	id := core.NewID()
	final := core.NewFinalEvent("Info", answer)
	final.TurnID = id
	now := time.Now().UTC()
	return core.Turn{
		ID:        id,
		Request:   core.NewRequest(key, request),
		Events:    []core.Event{final},
		Final:     answer,
		Outcome:   core.OutcomeCompleted,
		States:    []core.TurnState{core.StateSubmitted, core.StateClassifying, core.StateDelegating, core.StateHandling, core.StateCompleted},
		Started:   now,
		Completed: now,
	}
}

func collect(t *testing.T, store core.SessionStore, key core.SessionKey) []core.Turn {
	t.Helper()
	seq, err := store.History(context.Background(), key)
	require.NoError(t, err)
	var out []core.Turn
	for tr := range seq {
		out = append(out, tr)
	}
	return out
}

// Run executes the contract suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := Key("s1")

		created, err := store.Create(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, key, created.Key)
		assert.Empty(t, created.Turns)

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, key, got.Key)
	})

	t.Run("DuplicateCreate", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Create(ctx, Key("s1"))
		require.NoError(t, err)
		_, err = store.Create(ctx, Key("s1"))
		assert.ErrorIs(t, err, core.ErrDuplicateSession)
	})

	t.Run("InvalidKey", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Create(context.Background(), core.SessionKey{AppName: "a"})
		assert.ErrorIs(t, err, core.ErrInvalidSessionKey)
	})

	t.Run("NotFound", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		missing := Key("missing")

		_, err := store.Get(ctx, missing)
		assert.ErrorIs(t, err, core.ErrNotFound)

		_, err = store.History(ctx, missing)
		assert.ErrorIs(t, err, core.ErrNotFound)

		err = store.Append(ctx, missing, Turn(missing, "x", "y"))
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("AppendOrder", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := Key("s1")
		_, err := store.Create(ctx, key)
		require.NoError(t, err)

		const n = 5
		for i := range n {
			require.NoError(t, store.Append(ctx, key, Turn(key, fmt.Sprintf("req-%d", i), fmt.Sprintf("ans-%d", i))))
		}

		turns := collect(t, store, key)
		require.Len(t, turns, n)
		for i, tr := range turns {
			assert.Equal(t, fmt.Sprintf("req-%d", i), tr.Request.Text)
			assert.Equal(t, fmt.Sprintf("ans-%d", i), tr.Final)
			assert.Equal(t, core.OutcomeCompleted, tr.Outcome)
			require.Len(t, tr.Events, 1)
			assert.True(t, tr.Events[0].IsFinal())
			assert.Equal(t, tr.Final, tr.Events[0].Text())
		}

		sess, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Len(t, sess.Turns, n)
	})

	t.Run("HistoryIsRestartableSnapshot", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := Key("s1")
		_, err := store.Create(ctx, key)
		require.NoError(t, err)
		require.NoError(t, store.Append(ctx, key, Turn(key, "a", "1")))

		seq, err := store.History(ctx, key)
		require.NoError(t, err)

		require.NoError(t, store.Append(ctx, key, Turn(key, "b", "2")))

		count := func() int {
			n := 0
			for range seq {
				n++
			}
			return n
		}
		assert.Equal(t, 1, count())
		assert.Equal(t, 1, count())
		assert.Len(t, collect(t, store, key), 2)
	})

	t.Run("ConcurrentSessionsIsolated", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		const sessions, perSession = 4, 10

		for s := range sessions {
			_, err := store.Create(ctx, Key(fmt.Sprintf("s%d", s)))
			require.NoError(t, err)
		}

		var wg sync.WaitGroup
		for s := range sessions {
			key := Key(fmt.Sprintf("s%d", s))
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range perSession {
					err := store.Append(ctx, key, Turn(key, fmt.Sprintf("%s-%d", key.SessionID, i), "ok"))
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		for s := range sessions {
			key := Key(fmt.Sprintf("s%d", s))
			turns := collect(t, store, key)
			require.Len(t, turns, perSession)
			for i, tr := range turns {
				assert.Equal(t, fmt.Sprintf("%s-%d", key.SessionID, i), tr.Request.Text)
				assert.Equal(t, key, tr.Request.Key)
			}
		}
	})
}
