// Package sqlite provides a durable core.SessionStore backed by SQLite
// through the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentroute/core"
	_ "modernc.org/sqlite"
)

// Store implements core.SessionStore using SQLite. Turns are stored as JSON
// rows ordered by a per-session sequence number.
type Store struct {
	db *sql.DB

	// Appends to one session are serialized so the sequence number can be
	// derived without SQLITE_BUSY retries.
	locksMu sync.Mutex
	locks   map[core.SessionKey]*sessionLock
}

// sessionLock is dropped from Store.locks once no appender holds or waits on it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Open creates (or opens) the database at path. Use ":memory:" for a
// private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:"
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if path == ":memory:" {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, locks: make(map[core.SessionKey]*sessionLock)}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		app_name TEXT NOT NULL,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (app_name, user_id, session_id)
	);

	CREATE TABLE IF NOT EXISTS turns (
		app_name TEXT NOT NULL,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		turn_id TEXT NOT NULL,
		turn_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (app_name, user_id, session_id, seq),
		FOREIGN KEY (app_name, user_id, session_id)
			REFERENCES sessions (app_name, user_id, session_id) ON DELETE CASCADE
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// lock serializes appends to key and returns the matching unlock.
func (s *Store) lock(key core.SessionKey) (unlock func()) {
	s.locksMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sessionLock{}
		s.locks[key] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.locksMu.Unlock()
	}
}

// Create registers an empty session for key.
func (s *Store) Create(ctx context.Context, key core.SessionKey) (*core.Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	sess := core.NewSession(key)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (app_name, user_id, session_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		key.AppName, key.UserID, key.SessionID, sess.Created.UnixNano(), sess.Updated.UnixNano(),
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, fmt.Errorf("session %s: %w", key, core.ErrDuplicateSession)
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return sess, nil
}

// Get returns the session with all turns.
func (s *Store) Get(ctx context.Context, key core.SessionKey) (*core.Session, error) {
	sess := &core.Session{Key: key}

	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM sessions WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		key.AppName, key.UserID, key.SessionID,
	).Scan(&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	sess.Created = time.Unix(0, created).UTC()
	sess.Updated = time.Unix(0, updated).UTC()

	turns, err := s.loadTurns(ctx, key)
	if err != nil {
		return nil, err
	}
	sess.Turns = turns

	return sess, nil
}

// Append stores turn as the next entry of the session in one transaction.
func (s *Store) Append(ctx context.Context, key core.SessionKey, turn core.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}

	defer s.lock(key)()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().UnixNano()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		now, key.AppName, key.UserID, key.SessionID,
	)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", key, core.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (app_name, user_id, session_id, seq, turn_id, turn_json, created_at)
		 SELECT ?, ?, ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?
		 FROM turns WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		key.AppName, key.UserID, key.SessionID, turn.ID, string(data), now,
		key.AppName, key.UserID, key.SessionID,
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit turn: %w", err)
	}

	return nil
}

// History returns a snapshot of the session's turns taken at call time.
func (s *Store) History(ctx context.Context, key core.SessionKey) (iter.Seq[core.Turn], error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sessions WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		key.AppName, key.UserID, key.SessionID,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	turns, err := s.loadTurns(ctx, key)
	if err != nil {
		return nil, err
	}

	return core.TurnsSeq(turns), nil
}

func (s *Store) loadTurns(ctx context.Context, key core.SessionKey) ([]core.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT turn_json FROM turns WHERE app_name = ? AND user_id = ? AND session_id = ? ORDER BY seq`,
		key.AppName, key.UserID, key.SessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	turns := []core.Turn{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		var t core.Turn
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, t)
	}

	return turns, rows.Err()
}

// IsUniqueConstraintError reports whether err is a SQLite UNIQUE or PRIMARY
// KEY violation. The driver only exposes it in the message text.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed: UNIQUE")
}

var _ core.SessionStore = (*Store)(nil)
