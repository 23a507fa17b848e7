package session

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/hupe1980/agentroute/core"
)

type entry struct {
	mu   sync.Mutex
	sess *core.Session
}

// InMemoryStore is a volatile SessionStore storing sessions in a process
// local map. The index is guarded by a RW lock and each session has its own
// mutex, so appends to one session never block another. Returned sessions
// are clones.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[core.SessionKey]*entry
}

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[core.SessionKey]*entry)}
}

// Create registers an empty session for key.
func (s *InMemoryStore) Create(_ context.Context, key core.SessionKey) (*core.Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[key]; ok {
		return nil, fmt.Errorf("session %s: %w", key, core.ErrDuplicateSession)
	}

	sess := core.NewSession(key)
	s.sessions[key] = &entry{sess: sess}

	return sess.Clone(), nil
}

func (s *InMemoryStore) lookup(key core.SessionKey) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[key]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", key, core.ErrNotFound)
	}

	return e, nil
}

// Get returns a snapshot of the session.
func (s *InMemoryStore) Get(_ context.Context, key core.SessionKey) (*core.Session, error) {
	e, err := s.lookup(key)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sess.Clone(), nil
}

// Append adds a completed turn to the session.
func (s *InMemoryStore) Append(ctx context.Context, key core.SessionKey, turn core.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e, err := s.lookup(key)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sess.AddTurn(turn)

	return nil
}

// History returns the session's turns in append order.
func (s *InMemoryStore) History(_ context.Context, key core.SessionKey) (iter.Seq[core.Turn], error) {
	e, err := s.lookup(key)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return core.TurnsSeq(e.sess.Turns), nil
}

// Len returns the number of sessions held.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

var _ core.SessionStore = (*InMemoryStore)(nil)
