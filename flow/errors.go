package flow

import "fmt"

// The engine distinguishes three error kinds so callers can react correctly:
//
//   - ConfigError: the graph definition itself is wrong (unknown node, unknown
//     router label, missing entry point). Never recoverable at run time.
//   - NodeError: a node callable returned an error. The session remains
//     resumable from its last good checkpoint.
//   - StoreError: checkpoint persistence failed. The session's durability, not
//     its business logic, is compromised.

// ConfigError reports an invalid graph definition or a router contract
// violation. Configuration errors surface at Compile time where possible, or
// at first traversal for label violations.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "flow: config: " + e.Message
}

// NodeError wraps an error returned by a node callable during execution.
type NodeError struct {
	NodeID string
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("flow: node %q: %v", e.NodeID, e.Err)
}

// Unwrap returns the node's underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// StoreError wraps a checkpoint store failure during save or load.
type StoreError struct {
	Op        string // "load", "save", or "delete"
	SessionID string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("flow: store %s for session %q: %v", e.Op, e.SessionID, e.Err)
}

// Unwrap returns the store's underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}
