package emit

// Event messages emitted by the engine.
const (
	MsgNodeStart  = "node_start"
	MsgNodeEnd    = "node_end"
	MsgNodeError  = "node_error"
	MsgCheckpoint = "checkpoint"
	MsgInterrupt  = "interrupt"
	MsgComplete   = "complete"
)

// Event is one observability record from a session's execution.
type Event struct {
	// SessionID identifies the session that emitted this event.
	SessionID string

	// Step is the node execution count within the current invocation,
	// 1-indexed. Zero for invocation-level events.
	Step int

	// NodeID identifies the node involved, empty for session-level events.
	NodeID string

	// Msg names the event kind; see the Msg* constants.
	Msg string

	// Meta carries additional structured data, e.g. "duration_ms",
	// "pending_node", "error".
	Meta map[string]any
}
