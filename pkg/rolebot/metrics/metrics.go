// Package metrics provides Prometheus metrics for the bot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeFailed   = "failed"
	OutcomeIgnored  = "ignored"
	OutcomeUsage    = "usage"
	OutcomeDispatch = "dispatched"
)

// Collector holds all metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	Invocations *prometheus.CounterVec
	Mutations   *prometheus.CounterVec
	Panics      prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates a collector on a fresh registry that also exports Go runtime
// and process metrics.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates a collector registered with reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	c := &Collector{
		Invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rolebot",
				Name:      "invocations_total",
				Help:      "Inbound messages by routing outcome",
			},
			[]string{"module", "command", "outcome"},
		),
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rolebot",
				Name:      "mutations_total",
				Help:      "Role operations by completion outcome",
			},
			[]string{"op", "outcome"},
		),
		Panics: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rolebot",
				Name:      "invocation_panics_total",
				Help:      "Invocations aborted by a recovered panic",
			},
		),
		gatherer: reg,
	}
	reg.MustRegister(c.Invocations, c.Mutations, c.Panics)
	return c
}

// Invocation records one routed message.
func (c *Collector) Invocation(module, command, outcome string) {
	if c == nil {
		return
	}
	c.Invocations.WithLabelValues(module, command, outcome).Inc()
}

// Mutation records the reported outcome of one role operation.
func (c *Collector) Mutation(op, outcome string) {
	if c == nil {
		return
	}
	c.Mutations.WithLabelValues(op, outcome).Inc()
}

// Panic records a recovered panic.
func (c *Collector) Panic() {
	if c == nil {
		return
	}
	c.Panics.Inc()
}

// Handler serves the registry the collector was registered with.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
