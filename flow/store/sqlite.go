package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store.
//
// It keeps all session checkpoints in a single-file database. Designed for:
//   - Development and testing with zero setup
//   - Single-process deployments (one bot, many sessions)
//   - Local workflows requiring persistence across restarts
//
// The store uses WAL mode for concurrent reads and a single-writer connection
// pool, matching SQLite's one-writer-at-a-time model. Each Save is a single
// upsert statement, so the per-session read/modify/write sequence performed by
// the engine is atomic with respect to concurrent access.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed store.
//
// The path may be a file path ("./sessions.db") or ":memory:" for a
// throwaway database. Tables are created on first use.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS session_checkpoints (
			session_id     TEXT PRIMARY KEY,
			state_blob     TEXT NOT NULL,
			pending_node   TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Save upserts the checkpoint for sessionID.
func (s *SQLiteStore) Save(ctx context.Context, sessionID string, state map[string]any, pendingNode string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	const q = `
		INSERT INTO session_checkpoints (session_id, state_blob, pending_node, schema_version, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id) DO UPDATE SET
			state_blob     = excluded.state_blob,
			pending_node   = excluded.pending_node,
			schema_version = excluded.schema_version,
			updated_at     = CURRENT_TIMESTAMP`
	if _, err := s.db.ExecContext(ctx, q, sessionID, string(blob), pendingNode, SchemaVersion); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load returns the checkpoint for sessionID, or ErrNotFound.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (map[string]any, string, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, "", err
	}

	const q = `SELECT state_blob, pending_node FROM session_checkpoints WHERE session_id = ?`
	var blob, pending string
	err := s.db.QueryRowContext(ctx, q, sessionID).Scan(&blob, &pending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("load checkpoint: %w", err)
	}

	var state map[string]any
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return nil, "", fmt.Errorf("unmarshal state: %w", err)
	}
	return state, pending, nil
}

// Delete removes the checkpoint for sessionID.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	const q = `DELETE FROM session_checkpoints WHERE session_id = ?`
	if _, err := s.db.ExecContext(ctx, q, sessionID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) ensureOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("store is closed")
	}
	return nil
}
