package flow

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lessonforge/lessonforge/flow/store"
)

func TestMetricsCollection(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	e, err := New(reviewGraph(t), store.NewMemStore(), WithMetrics(m))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx := context.Background()

	if _, err := e.Invoke(ctx, "s1", nil); err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}
	// First pass runs prepare and work, checkpointing after each, then
	// suspends at work's interrupt.
	if got := testutil.ToFloat64(m.checkpointWrites); got != 2 {
		t.Errorf("checkpoint_writes_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.interrupts.WithLabelValues("work")); got != 1 {
		t.Errorf("interrupts_total{work} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.completions); got != 0 {
		t.Errorf("sessions_completed_total = %v, want 0 before completion", got)
	}

	if _, err := e.Invoke(ctx, "s1", Patch{"feedback": "go"}); err != nil {
		t.Fatalf("resume error: %v", err)
	}
	if got := testutil.ToFloat64(m.completions); got != 1 {
		t.Errorf("sessions_completed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.activeInvocations); got != 0 {
		t.Errorf("active_invocations = %v, want 0 after return", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	// An engine without WithMetrics must run with a nil *Metrics.
	e, _ := newTestEngine(t)
	if _, err := e.Invoke(context.Background(), "s1", nil); err != nil {
		t.Fatalf("Invoke() without metrics error: %v", err)
	}
}
