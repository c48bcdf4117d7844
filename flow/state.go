// Package flow provides a resumable, checkpointed workflow engine: a directed
// graph of named nodes executed against a mutable shared state, able to suspend
// at declared interrupt points and resume later from a durable per-session
// checkpoint.
package flow

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// State is the mutable document threaded through node calls.
//
// Keys are field names declared in the graph's Schema. Values must be
// JSON-serializable so checkpoints can round-trip through the store.
type State map[string]any

// Patch is a partial state: a mapping containing only the fields a node (or an
// external caller) changed. Any field absent from a Patch is left unchanged by
// the merge.
type Patch map[string]any

// Clone returns a deep copy of the state via JSON round-trip.
//
// Node callables receive a clone so they cannot mutate the engine's working
// state; the store deep-copies on save/load the same way.
func (s State) Clone() (State, error) {
	if s == nil {
		return State{}, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("clone state: %w", err)
	}
	out := make(State, len(s))
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone state: %w", err)
	}
	return out, nil
}

// Reducer merges a node's returned value for a field with the existing value.
//
// Reducers must be total and side-effect free: they never error and never
// mutate their inputs.
type Reducer func(existing, update any) any

// Overwrite is the default reducer: the update fully replaces the prior value.
func Overwrite(_, update any) any {
	return update
}

// Append concatenates the update onto the existing sequence, preserving
// application order. Non-slice values are treated as single-element sequences,
// so a node may return either one entry or a batch for an accumulating field.
//
// Append is deliberately not idempotent: re-applying the same patch duplicates
// entries. Callers must apply a patch at most once per logical node execution.
func Append(existing, update any) any {
	out := toSlice(existing)
	return append(out, toSlice(update)...)
}

// MergeMap merges the update map into the existing map with last-write-wins
// per sub-key. Nil inputs are treated as empty maps.
func MergeMap(existing, update any) any {
	out := map[string]any{}
	if m, ok := existing.(map[string]any); ok {
		for k, v := range m {
			out[k] = v
		}
	}
	if m, ok := update.(map[string]any); ok {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// toSlice normalizes a value to []any. Slices of any element type are
// flattened element-wise via reflection; nil yields an empty slice.
func toSlice(v any) []any {
	if v == nil {
		return []any{}
	}
	if s, ok := v.([]any); ok {
		out := make([]any, len(s))
		copy(out, s)
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}

// Field declares one state field: its default value and its merge rule.
type Field struct {
	// Default produces the field's initial value for a new session.
	// Nil means the field starts absent.
	Default func() any

	// Reducer controls how a patch value combines with the existing value.
	// Nil means Overwrite.
	Reducer Reducer
}

// Schema declares the fields of a graph's state and their reducers.
//
// The schema is part of the graph definition: it is built once at process
// start and never mutated afterward.
type Schema struct {
	fields map[string]Field
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{fields: make(map[string]Field)}
}

// AddField declares a field. Redeclaring a field replaces its prior
// declaration; call sites are expected to declare each field once.
func (sc *Schema) AddField(name string, f Field) *Schema {
	sc.fields[name] = f
	return sc
}

// Defaults returns a fresh state populated with every field's default value.
func (sc *Schema) Defaults() State {
	s := make(State, len(sc.fields))
	for name, f := range sc.fields {
		if f.Default != nil {
			s[name] = f.Default()
		}
	}
	return s
}

// Apply merges patch into state under the schema's reducer rules and returns
// the merged state. Neither input is mutated.
//
// Fields absent from the patch are carried over unchanged. Fields not declared
// in the schema merge with Overwrite semantics.
func (sc *Schema) Apply(state State, patch Patch) State {
	merged := make(State, len(state)+len(patch))
	for k, v := range state {
		merged[k] = v
	}
	for k, v := range patch {
		r := Overwrite
		if f, ok := sc.fields[k]; ok && f.Reducer != nil {
			r = f.Reducer
		}
		merged[k] = r(merged[k], v)
	}
	return merged
}
