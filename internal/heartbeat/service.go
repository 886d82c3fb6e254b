// Package heartbeat broadcasts periodic liveness status over the bus so any
// agent subscribed to the heartbeat topic can observe substrate health.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/synapse-agents/synapse/internal/acp"
	"github.com/synapse-agents/synapse/internal/bus"
)

// SenderID identifies heartbeat broadcasts on the bus.
const SenderID = "heartbeat"

// Service emits a status_update broadcast on topic according to a cron
// schedule.
type Service struct {
	bus   *bus.Bus
	topic string
	spec  string
	cron  *robfigcron.Cron

	started time.Time
	beats   atomic.Int64
}

// NewService creates a heartbeat publisher. spec is a cron expression in
// robfig/cron syntax (descriptors like "@every 30s" work too).
func NewService(b *bus.Bus, topic, spec string) *Service {
	return &Service{
		bus:   b,
		topic: topic,
		spec:  spec,
		cron:  robfigcron.New(),
	}
}

// Start arms the schedule and blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.started = time.Now()
	if _, err := s.cron.AddFunc(s.spec, func() { s.beat(ctx) }); err != nil {
		return fmt.Errorf("heartbeat schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	slog.Info("heartbeat: started", "topic", s.topic, "spec", s.spec)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	slog.Info("heartbeat: stopped", "beats", s.beats.Load())
	return ctx.Err()
}

// Beats returns how many broadcasts have been emitted so far.
func (s *Service) Beats() int64 { return s.beats.Load() }

func (s *Service) beat(ctx context.Context) {
	s.beats.Add(1)
	uptime := time.Since(s.started).Round(time.Second)
	msg, err := acp.NewBroadcast(SenderID, s.topic, acp.StatusUpdate{
		Status: fmt.Sprintf("alive (uptime %s)", uptime),
	})
	if err != nil {
		slog.Error("heartbeat: build broadcast", "err", err)
		return
	}

	outcomes, err := s.bus.Route(ctx, msg)
	if err != nil {
		slog.Warn("heartbeat: route failed", "err", err)
		return
	}
	for _, o := range outcomes {
		if o.Err != nil {
			slog.Warn("heartbeat: delivery failed", "agent", o.AgentID, "err", o.Err)
		}
	}
}
