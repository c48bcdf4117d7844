// Package emit provides pluggable observability for workflow execution.
package emit

// Emitter receives observability events from the engine.
//
// Implementations must be thread-safe (sessions run concurrently), must not
// block execution, and must not panic; backend failures are handled
// internally, never surfaced into the workflow.
type Emitter interface {
	// Emit delivers one event to the configured backend.
	Emit(event Event)
}
