// Package workers wires the research swarm: the orchestrator plus the
// specialist agents it coordinates over the bus. Each worker is an
// agent.Runtime with handlers for the message types it understands; external
// capability goes through the tool gateway.
package workers

import (
	"log/slog"

	"github.com/synapse-agents/synapse/internal/acp"
	"github.com/synapse-agents/synapse/internal/agent"
)

// Well-known agent ids and topics for the research swarm.
const (
	OrchestratorID = "orchestrator"
	SearchID       = "search-agent"
	ExtractionID   = "extraction-agent"
	FactCheckerID  = "fact-checker"
	SynthesisID    = "synthesis-agent"
	FileSaveID     = "file-save-agent"
	LoggerID       = "logger-agent"

	// LogsTopic carries log_broadcast messages for every listening agent.
	LogsTopic = "logs"
	// HeartbeatTopic carries periodic status_update broadcasts.
	HeartbeatTopic = "heartbeat"
)

// logToTopic puts a log_broadcast for the logs topic on the runtime's outbox.
// Best effort: a full outbox or invalid payload only logs locally.
func logToTopic(rt *agent.Runtime, level, text string) {
	msg, err := acp.NewBroadcast(rt.ID(), LogsTopic, acp.LogBroadcast{
		Level:     level,
		Message:   text,
		Component: rt.ID(),
	})
	if err != nil {
		slog.Warn("workers: build log broadcast", "agent", rt.ID(), "err", err)
		return
	}
	if err := rt.Send(msg); err != nil {
		slog.Warn("workers: log broadcast dropped", "agent", rt.ID(), "err", err)
	}
}
