package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/session/sessiontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Contract(t *testing.T) {
	sessiontest.Run(t, func(t *testing.T) core.SessionStore { return openTemp(t) })
}

func TestStore_InMemoryDSN(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	key := sessiontest.Key("s1")
	_, err = s.Create(ctx, key)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, key, sessiontest.Turn(key, "q", "a")))
	require.NoError(t, s.Ping(ctx))

	sess, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Len(t, sess.Turns, 1)
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()
	key := sessiontest.Key("durable")

	first, err := Open(path)
	require.NoError(t, err)
	_, err = first.Create(ctx, key)
	require.NoError(t, err)

	turn := sessiontest.Turn(key, "Book me a hotel in Paris.", "Booking action for 'Book me a hotel in Paris.' has been successfully handled.")
	turn.Events = append([]core.Event{
		core.NewTransferEvent("Coordinator", "Booker"),
		core.NewActionCallEvent("Booker", "call-1", "booking_handler", "Book me a hotel in Paris."),
	}, turn.Events...)
	require.NoError(t, first.Append(ctx, key, turn))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	sess, err := second.Get(ctx, key)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 1)

	got := sess.Turns[0]
	assert.Equal(t, turn.ID, got.ID)
	assert.Equal(t, turn.Final, got.Final)
	assert.Equal(t, turn.States, got.States)
	require.Len(t, got.Events, 3)
	target, ok := got.Events[0].TransferTarget()
	assert.True(t, ok)
	assert.Equal(t, "Booker", target)
	assert.Equal(t, "booking_handler", got.Events[1].ActionCalls()[0].Name)
	assert.True(t, got.Events[2].IsFinal())
}

func TestStore_AppendReleasesSessionLocks(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	var keys []core.SessionKey
	for i := range 5 {
		key := sessiontest.Key(fmt.Sprintf("s%d", i))
		_, err := s.Create(ctx, key)
		require.NoError(t, err)
		keys = append(keys, key)
	}

	var wg sync.WaitGroup
	for _, key := range keys {
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Append(ctx, key, sessiontest.Turn(key, "q", "a")))
			}()
		}
	}
	wg.Wait()

	for _, key := range keys {
		sess, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Len(t, sess.Turns, 4)
	}

	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	assert.Empty(t, s.locks)
}

func TestIsUniqueConstraintError(t *testing.T) {
	assert.False(t, IsUniqueConstraintError(nil))
	assert.True(t, IsUniqueConstraintError(errors.New("constraint failed: UNIQUE constraint failed: sessions.app_name (1555)")))
	assert.False(t, IsUniqueConstraintError(errors.New("database is locked")))
}
