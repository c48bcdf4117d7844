package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store.
//
// Designed for:
//   - Production deployments requiring durable checkpoints
//   - Multiple worker processes sharing one checkpoint database
//   - Sessions that must survive process restarts
//
// Each Save is a single upsert (INSERT ... ON DUPLICATE KEY UPDATE), so a
// session's checkpoint is replaced atomically; readers never see a partial
// snapshot.
//
// Never hardcode credentials in source; pass the DSN from the environment:
//
//	store, err := store.NewMySQLStore(os.Getenv("MYSQL_DSN"))
type MySQLStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewMySQLStore opens a MySQL-backed store using a go-sql-driver DSN, e.g.
// "user:pass@tcp(localhost:3306)/sessions?parseTime=true". Tables are created
// on first use.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS session_checkpoints (
			session_id     VARCHAR(255) PRIMARY KEY,
			state_blob     JSON NOT NULL,
			pending_node   VARCHAR(255) NOT NULL,
			schema_version INT NOT NULL,
			updated_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
	_, err := m.db.ExecContext(ctx, schema)
	return err
}

// Save upserts the checkpoint for sessionID.
func (m *MySQLStore) Save(ctx context.Context, sessionID string, state map[string]any, pendingNode string) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	const q = `
		INSERT INTO session_checkpoints (session_id, state_blob, pending_node, schema_version)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			state_blob     = VALUES(state_blob),
			pending_node   = VALUES(pending_node),
			schema_version = VALUES(schema_version)`
	if _, err := m.db.ExecContext(ctx, q, sessionID, string(blob), pendingNode, SchemaVersion); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load returns the checkpoint for sessionID, or ErrNotFound.
func (m *MySQLStore) Load(ctx context.Context, sessionID string) (map[string]any, string, error) {
	if err := m.ensureOpen(); err != nil {
		return nil, "", err
	}

	const q = `SELECT state_blob, pending_node FROM session_checkpoints WHERE session_id = ?`
	var blob, pending string
	err := m.db.QueryRowContext(ctx, q, sessionID).Scan(&blob, &pending)
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
func (m *MySQLStore) Delete(ctx context.Context, sessionID string) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}
	const q = `DELETE FROM session_checkpoints WHERE session_id = ?`
	if _, err := m.db.ExecContext(ctx, q, sessionID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (m *MySQLStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

func (m *MySQLStore) ensureOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("store is closed")
	}
	return nil
}
