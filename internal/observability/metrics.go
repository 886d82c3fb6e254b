// Package observability exposes read-only counters for an external
// metrics-scraping collaborator. Export format is Prometheus; what scrapes it
// is out of scope here.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters the substrate maintains while routing messages
// and executing tool invocations.
type Metrics struct {
	// MessagesRouted counts accepted deliveries.
	// Labels: kind (direct|broadcast)
	MessagesRouted *prometheus.CounterVec

	// MessagesDropped counts deliveries refused because an inbox stayed full
	// past the backpressure timeout. Labels: kind (direct|broadcast)
	MessagesDropped *prometheus.CounterVec

	// MessagesUnroutable counts messages addressed to unknown agents.
	MessagesUnroutable prometheus.Counter

	// ActiveAgents tracks how many agents are currently registered.
	ActiveAgents prometheus.Gauge

	// InvocationCounter counts tool invocations.
	// Labels: tool, status (ok|error)
	InvocationCounter *prometheus.CounterVec

	// InvocationDuration measures tool invocation latency in seconds.
	// Labels: tool
	InvocationDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics on reg. Tests pass a fresh
// prometheus.NewRegistry so repeated construction never collides.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesRouted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_messages_routed_total",
				Help: "Messages accepted for delivery, by routing kind",
			},
			[]string{"kind"},
		),
		MessagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_messages_dropped_total",
				Help: "Messages dropped because a receiver inbox stayed full",
			},
			[]string{"kind"},
		),
		MessagesUnroutable: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "synapse_messages_unroutable_total",
				Help: "Messages addressed to an agent that is not registered",
			},
		),
		ActiveAgents: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "synapse_active_agents",
				Help: "Currently registered agents",
			},
		),
		InvocationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_tool_invocations_total",
				Help: "Tool invocations by tool name and outcome",
			},
			[]string{"tool", "status"},
		),
		InvocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synapse_tool_invocation_duration_seconds",
				Help:    "Tool invocation latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
	}
}
