package flow

import (
	"context"
	"errors"
	"time"

	"github.com/lessonforge/lessonforge/flow/emit"
	"github.com/lessonforge/lessonforge/flow/store"
)

// PendingNodeKey is the reserved state key under which the engine records the
// session's pending node (the next node to run, or End). It lets callers
// inspect a returned state for completion without a second store read.
//
// Reserved keys are stripped from incoming patches so external callers cannot
// steer execution by writing them.
const PendingNodeKey = "__pending_node__"

// InterruptedNodeKey is the reserved state key recording which node the
// session is suspended at. While it is set, the recorded pending node is
// provisional: resumption re-evaluates the interrupted node's router against
// the by-then-patched state, so external input supplied during the suspension
// decides the actual branch taken.
const InterruptedNodeKey = "__interrupted_node__"

// Engine executes a compiled Graph against durable per-session checkpoints.
//
// A single Invoke is synchronous: it runs the node loop until the graph
// reaches a declared interrupt point or the terminal marker, persisting a
// checkpoint after every node. Sessions with different ids may be invoked
// concurrently; concurrent invocations of the *same* session id are a caller
// error and must be serialized externally.
//
// The engine never interprets node semantics. It only sequences nodes,
// applies reducer merges, evaluates routers, and checkpoints.
type Engine struct {
	graph   *Graph
	store   store.Store
	emitter emit.Emitter
	metrics *Metrics
	opts    engineConfig
}

// New creates an Engine over a compiled graph and a checkpoint store.
func New(g *Graph, st store.Store, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, &ConfigError{Message: "graph is required"}
	}
	if !g.compiled {
		return nil, &ConfigError{Message: "graph must be compiled before use"}
	}
	if st == nil {
		return nil, &ConfigError{Message: "store is required"}
	}

	cfg := engineConfig{
		emitter:  emit.NewNullEmitter(),
		maxSteps: defaultMaxSteps,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Engine{
		graph:   g,
		store:   st,
		emitter: cfg.emitter,
		metrics: cfg.metrics,
		opts:    cfg,
	}, nil
}

// Invoke runs the session identified by sessionID until the graph suspends at
// an interrupt point or reaches the terminal marker, and returns the state at
// that moment.
//
// For a new session id, state is initialized from the schema defaults plus
// input, and execution begins at the entry node. For an existing session,
// input (if non-empty) is reducer-merged into the checkpointed state first. A
// session suspended at an interrupt then resumes by re-evaluating the
// interrupted node's router against the merged state and continuing from its
// target; a session checkpointed mid-flow (for example after a crash) resumes
// by executing the checkpoint's pending node.
//
// Callers distinguish suspension from completion with IsTerminal on the
// returned state. A node error aborts the invocation with *NodeError and no
// checkpoint is written for the failed execution, so the session remains
// resumable from its last good checkpoint.
func (e *Engine) Invoke(ctx context.Context, sessionID string, input Patch) (State, error) {
	e.metrics.invocationStarted()
	defer e.metrics.invocationFinished()

	input = stripReserved(input)

	state, current, err := e.loadOrCreate(ctx, sessionID, input)
	if err != nil {
		return nil, err
	}
	if current == End {
		// Session already completed; nothing to run.
		state[PendingNodeKey] = End
		return state, nil
	}

	// Resuming from an interrupt: the suspended node already executed, so
	// re-resolve its router against the patched state and continue from the
	// target instead of re-running the node.
	if interrupted, ok := state[InterruptedNodeKey].(string); ok && interrupted != "" {
		next, err := e.graph.resolveNext(interrupted, state)
		if err != nil {
			return nil, err
		}
		delete(state, InterruptedNodeKey)
		state[PendingNodeKey] = next
		if err := e.store.Save(ctx, sessionID, state, next); err != nil {
			return nil, &StoreError{Op: "save", SessionID: sessionID, Err: err}
		}
		e.metrics.observeCheckpoint()
		e.emit(emit.Event{SessionID: sessionID, NodeID: interrupted, Msg: emit.MsgCheckpoint,
			Meta: map[string]any{"pending_node": next}})
		if next == End {
			e.metrics.observeCompletion()
			e.emit(emit.Event{SessionID: sessionID, Msg: emit.MsgComplete})
			return state, nil
		}
		current = next
	}

	step := 0
	for {
		step++
		if step > e.opts.maxSteps {
			return nil, &ConfigError{Message: "invocation exceeded max steps; graph is cycling without an interrupt"}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		node, ok := e.graph.nodes[current]
		if !ok {
			return nil, &ConfigError{Message: "node not found during execution: " + current}
		}

		e.emit(emit.Event{SessionID: sessionID, Step: step, NodeID: current, Msg: emit.MsgNodeStart})

		// Nodes get a clone so they cannot mutate the working state.
		nodeInput, err := state.Clone()
		if err != nil {
			return nil, &NodeError{NodeID: current, Err: err}
		}
		started := time.Now()
		patch, err := node(ctx, nodeInput)
		e.metrics.observeNode(current, time.Since(started), err)
		if err != nil {
			e.emit(emit.Event{
				SessionID: sessionID, Step: step, NodeID: current, Msg: emit.MsgNodeError,
				Meta: map[string]any{"error": err.Error()},
			})
			return nil, &NodeError{NodeID: current, Err: err}
		}

		state = e.graph.schema.Apply(state, stripReserved(patch))

		// Routers see the post-merge state, and are re-evaluated on every
		// pass through the owning node, including after resumption.
		next, err := e.graph.resolveNext(current, state)
		if err != nil {
			return nil, err
		}

		state[PendingNodeKey] = next
		if e.graph.interruptAfter[current] {
			state[InterruptedNodeKey] = current
		}
		if err := e.store.Save(ctx, sessionID, state, next); err != nil {
			return nil, &StoreError{Op: "save", SessionID: sessionID, Err: err}
		}
		e.metrics.observeCheckpoint()
		e.emit(emit.Event{SessionID: sessionID, Step: step, NodeID: current, Msg: emit.MsgCheckpoint,
			Meta: map[string]any{"pending_node": next}})
		e.emit(emit.Event{
			SessionID: sessionID, Step: step, NodeID: current, Msg: emit.MsgNodeEnd,
			Meta: map[string]any{"pending_node": next, "duration_ms": time.Since(started).Milliseconds()},
		})

		if e.graph.interruptAfter[current] {
			e.metrics.observeInterrupt(current)
			e.emit(emit.Event{SessionID: sessionID, Step: step, NodeID: current, Msg: emit.MsgInterrupt,
				Meta: map[string]any{"pending_node": next}})
			return state, nil
		}
		if next == End {
			e.metrics.observeCompletion()
			e.emit(emit.Event{SessionID: sessionID, Step: step, Msg: emit.MsgComplete})
			return state, nil
		}
		current = next
	}
}

// PatchState reducer-merges input into the stored checkpoint without
// advancing execution: the pending node is left unchanged. This is how an
// external collaborator records user input while the session is suspended,
// before resuming with an empty Invoke.
//
// A patch followed by an empty-input Invoke reaches the same end state as an
// Invoke called with that patch directly.
func (e *Engine) PatchState(ctx context.Context, sessionID string, input Patch) error {
	state, pending, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return &StoreError{Op: "load", SessionID: sessionID, Err: err}
	}
	merged := e.graph.schema.Apply(state, stripReserved(input))
	if err := e.store.Save(ctx, sessionID, merged, pending); err != nil {
		return &StoreError{Op: "save", SessionID: sessionID, Err: err}
	}
	e.metrics.observeCheckpoint()
	e.emit(emit.Event{SessionID: sessionID, Msg: emit.MsgCheckpoint,
		Meta: map[string]any{"pending_node": pending}})
	return nil
}

// Snapshot returns the session's checkpointed state and pending node without
// executing anything. Returns store.ErrNotFound (wrapped) for unknown ids.
func (e *Engine) Snapshot(ctx context.Context, sessionID string) (State, string, error) {
	state, pending, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return nil, "", &StoreError{Op: "load", SessionID: sessionID, Err: err}
	}
	return State(state), pending, nil
}

// IsTerminal reports whether a state returned by Invoke belongs to a
// completed session (its pending marker equals the terminal sentinel).
func (e *Engine) IsTerminal(state State) bool {
	return IsTerminal(state)
}

// IsTerminal reports whether the state's recorded pending node is End.
func IsTerminal(state State) bool {
	pending, _ := state[PendingNodeKey].(string)
	return pending == End
}

// PendingNode returns the pending node recorded in a state returned by
// Invoke, or the empty string if none was recorded.
func PendingNode(state State) string {
	pending, _ := state[PendingNodeKey].(string)
	return pending
}

// loadOrCreate resolves the working state and current node for an invocation.
func (e *Engine) loadOrCreate(ctx context.Context, sessionID string, input Patch) (State, string, error) {
	loaded, pending, err := e.store.Load(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		state := e.graph.schema.Defaults()
		if len(input) > 0 {
			state = e.graph.schema.Apply(state, input)
		}
		return state, e.graph.entry, nil
	}
	if err != nil {
		return nil, "", &StoreError{Op: "load", SessionID: sessionID, Err: err}
	}

	state := State(loaded)
	if len(input) > 0 {
		state = e.graph.schema.Apply(state, input)
	}
	return state, pending, nil
}

func (e *Engine) emit(event emit.Event) {
	if e.emitter != nil {
		e.emitter.Emit(event)
	}
}

// stripReserved drops engine-reserved keys from an externally supplied patch.
func stripReserved(p Patch) Patch {
	if p == nil {
		return nil
	}
	_, hasPending := p[PendingNodeKey]
	_, hasInterrupted := p[InterruptedNodeKey]
	if !hasPending && !hasInterrupted {
		return p
	}
	out := make(Patch, len(p))
	for k, v := range p {
		if k == PendingNodeKey || k == InterruptedNodeKey {
			continue
		}
		out[k] = v
	}
	return out
}
