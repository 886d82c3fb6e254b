// Package agent implements the per-agent runtime: a bounded inbox and outbox,
// a handler table keyed by message type, and the processing loop that drives
// them.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/synapse-agents/synapse/internal/acp"
	"github.com/synapse-agents/synapse/internal/bus"
)

// State is the runtime lifecycle position.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Handler processes one inbound message and returns any outgoing messages,
// which the runtime places on its outbox.
type Handler func(ctx context.Context, msg acp.Message) ([]acp.Message, error)

// Router is the piece of the bus the runtime needs to drain its outbox.
// *bus.Bus satisfies it; tests can substitute a recorder.
type Router interface {
	Route(ctx context.Context, msg acp.Message) ([]bus.DeliveryOutcome, error)
}

// DefaultQueueCapacity is the inbox/outbox bound used when Options leaves it
// zero. Explicitly chosen, configurable; see config.Config.
const DefaultQueueCapacity = 100

// Options configures a Runtime.
type Options struct {
	// QueueCapacity bounds the inbox and outbox.
	QueueCapacity int
	// Supervisor receives a status_update when a handler fails. Empty means
	// failures are only logged.
	Supervisor string
}

// Runtime is one agent's processing loop and queues.
//
// The loop dequeues from the inbox, dispatches by message type, and converts
// handler failures into status reports to the supervisor — one bad message
// never terminates the loop. Outgoing messages go to the outbox and reach
// the bus in a separate drain step, so the loop can be tested without a Bus.
type Runtime struct {
	id         string
	inbox      chan acp.Message
	outbox     chan acp.Message
	handlers   map[acp.MsgType]Handler
	supervisor string

	state   atomic.Int32
	drainCh chan struct{}
}

// New creates a Runtime in StateCreated.
func New(id string, opts Options) *Runtime {
	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Runtime{
		id:         id,
		inbox:      make(chan acp.Message, capacity),
		outbox:     make(chan acp.Message, capacity),
		handlers:   make(map[acp.MsgType]Handler),
		supervisor: opts.Supervisor,
		drainCh:    make(chan struct{}),
	}
}

func (r *Runtime) ID() string { return r.id }

// Inbox exposes the send side for bus registration.
func (r *Runtime) Inbox() bus.Inbox { return r.inbox }

// State returns the current lifecycle state.
func (r *Runtime) State() State { return State(r.state.Load()) }

// Handle registers the handler for one message type. Must be called before
// Run; the handler table is read-only once the loop starts.
func (r *Runtime) Handle(kind acp.MsgType, h Handler) {
	r.handlers[kind] = h
}

// Send places an outgoing message on the outbox without blocking. It returns
// bus.ErrQueueFull when the outbox is out of room.
func (r *Runtime) Send(msg acp.Message) error {
	select {
	case r.outbox <- msg:
		return nil
	default:
		return bus.ErrQueueFull
	}
}

// BeginDrain asks the loop to stop after finishing the in-flight message.
func (r *Runtime) BeginDrain() {
	if r.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) ||
		r.state.CompareAndSwap(int32(StateCreated), int32(StateDraining)) {
		close(r.drainCh)
	}
}

// Run executes the processing loop until ctx is cancelled or BeginDrain is
// called. It always leaves the runtime in StateStopped.
func (r *Runtime) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return fmt.Errorf("agent %s: run from state %s", r.id, r.State())
	}
	defer r.state.Store(int32(StateStopped))
	slog.Info("agent: loop started", "agent", r.id)

	for {
		select {
		case <-ctx.Done():
			slog.Info("agent: loop stopped", "agent", r.id)
			return ctx.Err()
		case <-r.drainCh:
			slog.Info("agent: drained", "agent", r.id)
			return nil
		case msg := <-r.inbox:
			r.dispatch(ctx, msg)
		}
	}
}

// dispatch runs the handler for msg, trapping errors and panics so the loop
// survives any single message.
func (r *Runtime) dispatch(ctx context.Context, msg acp.Message) {
	handler, ok := r.handlers[msg.Type()]
	if !ok {
		slog.Warn("agent: no handler for message type", "agent", r.id, "type", msg.Type())
		return
	}

	out, err := func() (out []acp.Message, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("handler panic: %v", rec)
			}
		}()
		return handler(ctx, msg)
	}()

	if err != nil {
		slog.Error("agent: handler failed", "agent", r.id, "type", msg.Type(), "err", err)
		r.reportFailure(msg, err)
		return
	}
	for _, m := range out {
		if sendErr := r.Send(m); sendErr != nil {
			slog.Warn("agent: outbox full, dropping outgoing message", "agent", r.id, "type", m.Type())
		}
	}
}

// FailureStatusPrefix starts the status text of every failure report a
// runtime sends its supervisor, so supervisors can tell failure reports from
// ordinary status updates.
const FailureStatusPrefix = "handler failed"

// reportFailure converts a handler error into a status_update to the
// supervisor, carrying the failed message's correlation id.
func (r *Runtime) reportFailure(msg acp.Message, err error) {
	if r.supervisor == "" {
		return
	}
	report, buildErr := acp.NewDirect(r.id, r.supervisor, acp.StatusUpdate{
		Status: fmt.Sprintf("%s for %s: %v", FailureStatusPrefix, msg.Type(), err),
		TaskID: msg.CorrelationID(),
	})
	if buildErr != nil {
		slog.Error("agent: build failure report", "agent", r.id, "err", buildErr)
		return
	}
	if sendErr := r.Send(report); sendErr != nil {
		slog.Warn("agent: outbox full, dropping failure report", "agent", r.id)
	}
}

// DrainOutbox forwards outbox messages to the router until ctx is cancelled.
// Routing failures are logged per message; broadcast outcomes are logged per
// refused subscriber. Run it alongside Run.
func (r *Runtime) DrainOutbox(ctx context.Context, router Router) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-r.outbox:
			outcomes, err := router.Route(ctx, msg)
			if err != nil {
				slog.Warn("agent: route failed", "agent", r.id, "type", msg.Type(), "err", err)
				continue
			}
			for _, o := range outcomes {
				if o.Err != nil {
					slog.Warn("agent: broadcast delivery refused",
						"agent", r.id, "subscriber", o.AgentID, "err", o.Err)
				}
			}
		}
	}
}
