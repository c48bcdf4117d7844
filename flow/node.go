package flow

import "context"

// Node is a processing step in the workflow graph.
//
// A node receives a copy of the current state and returns a partial state
// containing only the fields it changed. Nodes are synchronous and may perform
// arbitrary blocking I/O; that latency is opaque to the engine.
//
// Expected, recoverable failures (a flaky model call, a missing upstream
// artifact) should be absorbed into a degraded-but-valid placeholder field in
// the returned Patch so the graph keeps moving. A returned error is treated as
// graph-fatal for the current invocation: no checkpoint is written for the
// failed execution and the session stays resumable from its last good
// checkpoint.
type Node func(ctx context.Context, state State) (Patch, error)

// Router resolves which outgoing edge to take from a node with conditional
// edges. It is evaluated against the post-merge state after every execution of
// the owning node, including on resumption.
//
// Routers must be pure and deterministic given the same state, and must
// tolerate absent or empty fields: on the very first pass through a node,
// before any external feedback exists, the router must still select a sane
// default label so the interrupt/resume cycle always records a concrete
// pending node.
//
// The returned label must be one of the labels declared for the edge (End is
// permitted when declared); anything else is a configuration error and fatal.
type Router func(state State) string

// End is the terminal marker. A checkpoint whose pending node equals End means
// the graph run is complete and no further action is expected.
const End = "__end__"
