package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/synapse-agents/synapse/internal/acp"
	"github.com/synapse-agents/synapse/internal/agent"
	"github.com/synapse-agents/synapse/internal/shared/stringutils"
)

// maxLogMessage bounds stored log messages so a chatty agent cannot bloat
// the ring.
const maxLogMessage = 500

// logBufferSize bounds the in-memory ring of recent swarm log entries.
const logBufferSize = 200

// LogEntry is one captured log_broadcast.
type LogEntry struct {
	Time      time.Time
	Level     string
	Component string
	Message   string
}

// Logger is the agent that subscribes to the logs topic and keeps a bounded
// ring of recent entries for inspection.
type Logger struct {
	rt *agent.Runtime

	mu      sync.Mutex
	entries []LogEntry
	total   int
}

// NewLogger creates the logger runtime. The caller subscribes it to
// LogsTopic after bus registration.
func NewLogger(opts agent.Options) *Logger {
	l := &Logger{rt: agent.New(LoggerID, opts)}
	l.rt.Handle(acp.MsgLogBroadcast, l.handleLog)
	return l
}

// Runtime returns the underlying agent runtime.
func (l *Logger) Runtime() *agent.Runtime { return l.rt }

func (l *Logger) handleLog(_ context.Context, msg acp.Message) ([]acp.Message, error) {
	entry := msg.Payload().(acp.LogBroadcast)
	slog.Info("swarm", "component", entry.Component, "level", entry.Level, "msg", entry.Message)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.total++
	l.entries = append(l.entries, LogEntry{
		Time:      msg.Timestamp(),
		Level:     entry.Level,
		Component: entry.Component,
		Message:   stringutils.Truncate(entry.Message, maxLogMessage),
	})
	if len(l.entries) > logBufferSize {
		l.entries = l.entries[len(l.entries)-logBufferSize:]
	}
	return nil, nil
}

// Recent returns a copy of the newest entries, up to n.
func (l *Logger) Recent(n int) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]LogEntry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Total returns how many broadcasts have been observed since start.
func (l *Logger) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
