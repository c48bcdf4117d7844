package flow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for engine execution.
//
// Exposed metrics (all namespaced "lessonforge_"):
//
//   - active_invocations (gauge): invocations currently running.
//   - node_latency_ms (histogram): node execution duration, labels node_id
//     and status (success/error).
//   - checkpoint_writes_total (counter): checkpoints persisted.
//   - interrupts_total (counter): suspensions at interrupt points, label node_id.
//   - node_errors_total (counter): graph-fatal node failures, label node_id.
//   - sessions_completed_total (counter): sessions that reached the terminal marker.
//
// Expose via promhttp:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewMetrics(registry)
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type Metrics struct {
	activeInvocations prometheus.Gauge
	nodeLatency       *prometheus.HistogramVec
	checkpointWrites  prometheus.Counter
	interrupts        *prometheus.CounterVec
	nodeErrors        *prometheus.CounterVec
	completions       prometheus.Counter
}

// NewMetrics creates and registers engine metrics on the given registerer.
// Pass prometheus.DefaultRegisterer to use the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		activeInvocations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lessonforge",
			Name:      "active_invocations",
			Help:      "Number of engine invocations currently executing.",
		}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lessonforge",
			Name:      "node_latency_ms",
			Help:      "Node execution duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
		}, []string{"node_id", "status"}),
		checkpointWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lessonforge",
			Name:      "checkpoint_writes_total",
			Help:      "Total checkpoints persisted.",
		}),
		interrupts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lessonforge",
			Name:      "interrupts_total",
			Help:      "Total suspensions at interrupt points.",
		}, []string{"node_id"}),
		nodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lessonforge",
			Name:      "node_errors_total",
			Help:      "Total graph-fatal node failures.",
		}, []string{"node_id"}),
		completions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lessonforge",
			Name:      "sessions_completed_total",
			Help:      "Total sessions that reached the terminal marker.",
		}),
	}
}

func (m *Metrics) invocationStarted() {
	if m == nil {
		return
	}
	m.activeInvocations.Inc()
}

func (m *Metrics) invocationFinished() {
	if m == nil {
		return
	}
	m.activeInvocations.Dec()
}

func (m *Metrics) observeNode(nodeID string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		m.nodeErrors.WithLabelValues(nodeID).Inc()
	}
	m.nodeLatency.WithLabelValues(nodeID, status).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) observeCheckpoint() {
	if m == nil {
		return
	}
	m.checkpointWrites.Inc()
}

func (m *Metrics) observeInterrupt(nodeID string) {
	if m == nil {
		return
	}
	m.interrupts.WithLabelValues(nodeID).Inc()
}

func (m *Metrics) observeCompletion() {
	if m == nil {
		return
	}
	m.completions.Inc()
}
