package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemStore is an in-memory implementation of Store.
//
// Designed for testing and short-lived workflows where durability isn't
// required; checkpoints are lost when the process terminates. Thread-safe.
//
// State is deep-copied through JSON on both save and load so callers can
// never alias the stored snapshot.
type MemStore struct {
	mu          sync.RWMutex
	checkpoints map[string]memCheckpoint
}

type memCheckpoint struct {
	state   []byte
	pending string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{checkpoints: make(map[string]memCheckpoint)}
}

// Save stores the checkpoint for sessionID, replacing any prior one.
func (m *MemStore) Save(_ context.Context, sessionID string, state map[string]any, pendingNode string) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[sessionID] = memCheckpoint{state: blob, pending: pendingNode}
	return nil
}

// Load returns the latest checkpoint for sessionID, or ErrNotFound.
func (m *MemStore) Load(_ context.Context, sessionID string) (map[string]any, string, error) {
	m.mu.RLock()
	cp, ok := m.checkpoints[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, "", ErrNotFound
	}
	var state map[string]any
	if err := json.Unmarshal(cp.state, &state); err != nil {
		return nil, "", fmt.Errorf("unmarshal state: %w", err)
	}
	return state, cp.pending, nil
}

// Delete removes the checkpoint for sessionID.
func (m *MemStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, sessionID)
	return nil
}
