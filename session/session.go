// Package session maps external chat identifiers to workflow session IDs.
//
// A chat (for example one messaging conversation) owns at most one active
// session at a time. The mapping is durable so a restarted process keeps
// routing a chat's messages to the same checkpointed session.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get when a chat has no active session.
var ErrNotFound = errors.New("session: not found")

// Manager persists the chat-to-session mapping in SQLite.
type Manager struct {
	db *sql.DB
}

// NewManager opens (or creates) the mapping database at path.
func NewManager(path string) (*Manager, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("session: %s: %w", pragma, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	chat_id    TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: create schema: %w", err)
	}
	return &Manager{db: db}, nil
}

// Get returns the active session for a chat, or ErrNotFound.
func (m *Manager) Get(ctx context.Context, chatID string) (string, error) {
	var sessionID string
	err := m.db.QueryRowContext(ctx,
		"SELECT session_id FROM chat_sessions WHERE chat_id = ?", chatID).Scan(&sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("session: get %s: %w", chatID, err)
	}
	return sessionID, nil
}

// GetOrCreate returns the chat's active session, minting a fresh one when
// none exists. The bool reports whether a new session was created.
func (m *Manager) GetOrCreate(ctx context.Context, chatID string) (string, bool, error) {
	sessionID, err := m.Get(ctx, chatID)
	if err == nil {
		return sessionID, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", false, err
	}

	sessionID = uuid.NewString()
	_, err = m.db.ExecContext(ctx,
		"INSERT INTO chat_sessions (chat_id, session_id) VALUES (?, ?)", chatID, sessionID)
	if err != nil {
		return "", false, fmt.Errorf("session: create for %s: %w", chatID, err)
	}
	return sessionID, true, nil
}

// Reset replaces the chat's session with a fresh one, returning the new ID.
func (m *Manager) Reset(ctx context.Context, chatID string) (string, error) {
	sessionID := uuid.NewString()
	_, err := m.db.ExecContext(ctx, `
INSERT INTO chat_sessions (chat_id, session_id) VALUES (?, ?)
ON CONFLICT(chat_id) DO UPDATE SET session_id = excluded.session_id,
	created_at = CURRENT_TIMESTAMP`, chatID, sessionID)
	if err != nil {
		return "", fmt.Errorf("session: reset %s: %w", chatID, err)
	}
	return sessionID, nil
}

// Delete removes the chat's mapping. Deleting an absent chat is not an error.
func (m *Manager) Delete(ctx context.Context, chatID string) error {
	_, err := m.db.ExecContext(ctx,
		"DELETE FROM chat_sessions WHERE chat_id = ?", chatID)
	if err != nil {
		return fmt.Errorf("session: delete %s: %w", chatID, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (m *Manager) Close() error {
	return m.db.Close()
}
