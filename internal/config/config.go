// Package config holds the runtime configuration for the synapse substrate:
// queue bounds, routing and invocation timeouts, allowed filesystem roots,
// and the heartbeat schedule. Values come from a JSON file with SYNAPSE_*
// environment variables layered on top.
package config

import "time"

// Config is the full runtime configuration.
type Config struct {
	// QueueCapacity bounds every agent inbox and outbox.
	QueueCapacity int `json:"queueCapacity" env:"QUEUE_CAPACITY"`
	// ProgressBuffer bounds each tool invocation's progress stream.
	ProgressBuffer int `json:"progressBuffer" env:"PROGRESS_BUFFER"`

	// RouteTimeoutMs is how long the bus waits on a full inbox before
	// reporting the delivery as dropped.
	RouteTimeoutMs int `json:"routeTimeoutMs" env:"ROUTE_TIMEOUT_MS"`
	// InvokeTimeoutMs caps a single tool invocation.
	InvokeTimeoutMs int `json:"invokeTimeoutMs" env:"INVOKE_TIMEOUT_MS"`
	// SamplingTimeoutMs caps one reverse call into the hosting capability.
	SamplingTimeoutMs int `json:"samplingTimeoutMs" env:"SAMPLING_TIMEOUT_MS"`

	// AllowedRoots are the directories filesystem tools may touch.
	AllowedRoots []string `json:"allowedRoots" env:"ALLOWED_ROOTS" envSeparator:":"`
	// ReportDir is where the research swarm writes reports. It must sit
	// inside one of AllowedRoots.
	ReportDir string `json:"reportDir" env:"REPORT_DIR"`

	// SupervisorID receives handler-failure status reports.
	SupervisorID string `json:"supervisorId" env:"SUPERVISOR_ID"`
	// HeartbeatSpec is a cron expression for the liveness broadcast.
	// Empty disables the heartbeat.
	HeartbeatSpec string `json:"heartbeatSpec" env:"HEARTBEAT_SPEC"`
	// MetricsAddr is the listen address for the Prometheus endpoint.
	// Empty disables the metrics server.
	MetricsAddr string `json:"metricsAddr" env:"METRICS_ADDR"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		QueueCapacity:     100,
		ProgressBuffer:    32,
		RouteTimeoutMs:    2000,
		InvokeTimeoutMs:   30000,
		SamplingTimeoutMs: 5000,
		AllowedRoots:      []string{"./output"},
		ReportDir:         "./output",
		SupervisorID:      "orchestrator",
		HeartbeatSpec:     "@every 30s",
		MetricsAddr:       "",
	}
}

// RouteTimeout returns the bus route timeout as a duration.
func (c Config) RouteTimeout() time.Duration {
	return time.Duration(c.RouteTimeoutMs) * time.Millisecond
}

// InvokeTimeout returns the tool invocation timeout as a duration.
func (c Config) InvokeTimeout() time.Duration {
	return time.Duration(c.InvokeTimeoutMs) * time.Millisecond
}

// SamplingTimeout returns the reverse-invocation timeout as a duration.
func (c Config) SamplingTimeout() time.Duration {
	return time.Duration(c.SamplingTimeoutMs) * time.Millisecond
}
