package workers

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/synapse-agents/synapse/internal/agent"
	"github.com/synapse-agents/synapse/internal/bus"
	"github.com/synapse-agents/synapse/internal/gateway"
)

// Swarm owns the full set of research agents, registered on one bus and
// sharing one gateway.
type Swarm struct {
	bus          *bus.Bus
	orchestrator *Orchestrator
	logger       *Logger
	runtimes     []*agent.Runtime
}

// NewSwarm builds and registers every worker. reportDir must lie inside the
// gateway's allowed roots or report saving will be denied at runtime.
func NewSwarm(b *bus.Bus, gw *gateway.Gateway, reportDir string, opts agent.Options) (*Swarm, error) {
	orch := NewOrchestrator(reportDir, opts)
	logger := NewLogger(opts)

	s := &Swarm{
		bus:          b,
		orchestrator: orch,
		logger:       logger,
		runtimes: []*agent.Runtime{
			orch.Runtime(),
			NewSearchAgent(gw, opts),
			NewExtractionAgent(gw, opts),
			NewFactChecker(opts),
			NewSynthesisAgent(gw, opts),
			NewFileSaveAgent(gw, opts),
			logger.Runtime(),
		},
	}

	for _, rt := range s.runtimes {
		if err := b.Register(rt.ID(), rt.Inbox()); err != nil {
			return nil, fmt.Errorf("register %s: %w", rt.ID(), err)
		}
	}
	if err := b.Subscribe(LoggerID, LogsTopic); err != nil {
		return nil, fmt.Errorf("subscribe logger: %w", err)
	}
	return s, nil
}

// Orchestrator returns the coordinating agent.
func (s *Swarm) Orchestrator() *Orchestrator { return s.orchestrator }

// Logger returns the log-collecting agent.
func (s *Swarm) Logger() *Logger { return s.logger }

// Run starts every runtime's processing loop and outbox drain, blocking
// until ctx is cancelled or a loop fails.
func (s *Swarm) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, rt := range s.runtimes {
		rt := rt
		g.Go(func() error { return rt.Run(ctx) })
		g.Go(func() error { return rt.DrainOutbox(ctx, s.bus) })
	}
	return g.Wait()
}

// Shutdown drains every runtime and unregisters it from the bus.
func (s *Swarm) Shutdown() {
	for _, rt := range s.runtimes {
		rt.BeginDrain()
		s.bus.Unregister(rt.ID())
	}
}
