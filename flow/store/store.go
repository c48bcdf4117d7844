// Package store provides durable checkpoint persistence for workflow sessions.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no checkpoint exists for a session id.
var ErrNotFound = errors.New("checkpoint not found")

// SchemaVersion is written alongside every checkpoint so future readers can
// detect and migrate old snapshots.
const SchemaVersion = 1

// Store persists the latest checkpoint per session id.
//
// A checkpoint is the tuple (session id, state snapshot, pending node). Save
// overwrites any prior checkpoint for the id; no history is retained. The
// checkpoint is the sole source of truth for resumption, so implementations
// must be durable across process restarts (MemStore excepted, for tests).
//
// Implementations must support concurrent access from independent sessions
// without cross-session interference, and each Save/Load on a single session
// id must be atomic: a reader never observes a half-written checkpoint.
type Store interface {
	// Save writes the checkpoint for sessionID, replacing any prior one.
	Save(ctx context.Context, sessionID string, state map[string]any, pendingNode string) error

	// Load returns the latest checkpoint for sessionID, or ErrNotFound.
	Load(ctx context.Context, sessionID string) (state map[string]any, pendingNode string, err error)

	// Delete removes the checkpoint for sessionID. Deleting a missing
	// checkpoint is not an error.
	Delete(ctx context.Context, sessionID string) error
}
