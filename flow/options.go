package flow

import "github.com/lessonforge/lessonforge/flow/emit"

// Option is a functional option for configuring an Engine.
//
//	engine := flow.New(g, st,
//	    flow.WithEmitter(emit.NewLogEmitter(os.Stdout, false)),
//	    flow.WithMaxSteps(50),
//	)
type Option func(*engineConfig)

type engineConfig struct {
	emitter  emit.Emitter
	metrics  *Metrics
	maxSteps int
}

// defaultMaxSteps bounds a single invocation. Retry loops are legal graph
// shapes here, so the limit is a safety net against a misconfigured router,
// not a correctness mechanism.
const defaultMaxSteps = 100

// WithEmitter sets the observability emitter. Default: emit.NullEmitter.
func WithEmitter(e emit.Emitter) Option {
	return func(c *engineConfig) {
		if e != nil {
			c.emitter = e
		}
	}
}

// WithMetrics attaches Prometheus metrics collection.
func WithMetrics(m *Metrics) Option {
	return func(c *engineConfig) {
		c.metrics = m
	}
}

// WithMaxSteps limits the number of node executions per invocation.
// n <= 0 keeps the default.
//
// An invocation normally stops at an interrupt point or the terminal marker
// long before this bound; hitting it means a router is cycling without ever
// reaching an interrupt, which is a graph-design hazard.
func WithMaxSteps(n int) Option {
	return func(c *engineConfig) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}
