// Package bus routes acp messages between registered agents: direct delivery
// into a single inbox, or broadcast fan-out across a topic's subscriber set.
//
// The registry and topic index are the only cross-agent shared mutable state
// in the system. Both live behind one mutex that is held only for map
// mutation and snapshots — never while enqueueing — so a full consumer queue
// cannot turn the router into a bottleneck.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/synapse-agents/synapse/internal/acp"
	"github.com/synapse-agents/synapse/internal/observability"
)

// DefaultRouteTimeout bounds the backpressure wait when a receiver inbox is
// full. Explicit and configurable; see Options.
const DefaultRouteTimeout = 2 * time.Second

// Inbox is the receiving end the bus enqueues into. Each agent owns exactly
// one, which is what gives FIFO ordering per (sender, receiver) pair.
type Inbox chan<- acp.Message

// DeliveryOutcome reports the result of one broadcast enqueue attempt.
type DeliveryOutcome struct {
	AgentID string
	Err     error // nil on success; ErrQueueFull or a context error otherwise
}

// Options configures a Bus.
type Options struct {
	// RouteTimeout bounds how long Route blocks on a full inbox.
	RouteTimeout time.Duration
	// Metrics receives routing counters. Optional.
	Metrics *observability.Metrics
}

// Bus owns the agent registry and the topic subscription index.
type Bus struct {
	routeTimeout time.Duration
	metrics      *observability.Metrics

	mu      sync.Mutex
	inboxes map[string]Inbox
	topics  map[string]map[string]struct{} // topic -> set of agent ids
}

// New creates a Bus.
func New(opts Options) *Bus {
	if opts.RouteTimeout <= 0 {
		opts.RouteTimeout = DefaultRouteTimeout
	}
	return &Bus{
		routeTimeout: opts.RouteTimeout,
		metrics:      opts.Metrics,
		inboxes:      make(map[string]Inbox),
		topics:       make(map[string]map[string]struct{}),
	}
}

// Register adds an agent inbox under id. Fails with ErrDuplicateID when the
// id is already taken.
func (b *Bus) Register(id string, inbox Inbox) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.inboxes[id]; exists {
		return ErrDuplicateID
	}
	b.inboxes[id] = inbox
	if b.metrics != nil {
		b.metrics.ActiveAgents.Inc()
	}
	slog.Debug("bus: agent registered", "agent", id)
	return nil
}

// Unregister removes the agent and every topic membership it holds. Messages
// routed to it afterwards fail with ErrUnroutable rather than being dropped.
func (b *Bus) Unregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.inboxes[id]; !exists {
		return
	}
	delete(b.inboxes, id)
	for topic, subs := range b.topics {
		delete(subs, id)
		if len(subs) == 0 {
			delete(b.topics, topic)
		}
	}
	if b.metrics != nil {
		b.metrics.ActiveAgents.Dec()
	}
	slog.Debug("bus: agent unregistered", "agent", id)
}

// Subscribe adds the registered agent id to a topic's subscriber set.
func (b *Bus) Subscribe(id, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.inboxes[id]; !exists {
		return ErrUnroutable
	}
	subs := b.topics[topic]
	if subs == nil {
		subs = make(map[string]struct{})
		b.topics[topic] = subs
	}
	subs[id] = struct{}{}
	return nil
}

// Unsubscribe removes the agent from a topic's subscriber set.
func (b *Bus) Unsubscribe(id, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs := b.topics[topic]; subs != nil {
		delete(subs, id)
		if len(subs) == 0 {
			delete(b.topics, topic)
		}
	}
}

// ActiveAgents returns the number of currently registered agents.
func (b *Bus) ActiveAgents() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inboxes)
}

// Route delivers msg.
//
// Direct messages return (nil, error): nil on an accepted enqueue,
// ErrUnroutable for an unknown receiver, ErrQueueFull when the inbox stayed
// full past the route timeout.
//
// Broadcasts snapshot the topic's subscriber set at routing time and enqueue
// to each subscriber independently; one full inbox neither blocks nor aborts
// delivery to the others. The per-subscriber outcomes are returned in
// snapshot order. A topic with no subscribers is a valid no-op.
func (b *Bus) Route(ctx context.Context, msg acp.Message) ([]DeliveryOutcome, error) {
	if msg.IsBroadcast() {
		return b.routeBroadcast(ctx, msg), nil
	}
	return nil, b.routeDirect(ctx, msg)
}

func (b *Bus) routeDirect(ctx context.Context, msg acp.Message) error {
	b.mu.Lock()
	inbox, ok := b.inboxes[msg.Receiver()]
	b.mu.Unlock()
	if !ok {
		if b.metrics != nil {
			b.metrics.MessagesUnroutable.Inc()
		}
		return ErrUnroutable
	}

	err := b.enqueue(ctx, inbox, msg)
	b.count("direct", err)
	return err
}

func (b *Bus) routeBroadcast(ctx context.Context, msg acp.Message) []DeliveryOutcome {
	b.mu.Lock()
	subs := b.topics[msg.Topic()]
	snapshot := make([]string, 0, len(subs))
	targets := make([]Inbox, 0, len(subs))
	for id := range subs {
		if inbox, ok := b.inboxes[id]; ok {
			snapshot = append(snapshot, id)
			targets = append(targets, inbox)
		}
	}
	b.mu.Unlock()

	outcomes := make([]DeliveryOutcome, len(snapshot))
	var wg sync.WaitGroup
	for i := range snapshot {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := b.enqueue(ctx, targets[i], msg)
			outcomes[i] = DeliveryOutcome{AgentID: snapshot[i], Err: err}
			b.count("broadcast", err)
		}(i)
	}
	wg.Wait()
	return outcomes
}

// enqueue attempts a non-blocking send first, then waits up to the route
// timeout for the receiver to make room.
func (b *Bus) enqueue(ctx context.Context, inbox Inbox, msg acp.Message) error {
	select {
	case inbox <- msg:
		return nil
	default:
	}

	timer := time.NewTimer(b.routeTimeout)
	defer timer.Stop()
	select {
	case inbox <- msg:
		return nil
	case <-timer.C:
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) count(kind string, err error) {
	if b.metrics == nil {
		return
	}
	if err == nil {
		b.metrics.MessagesRouted.WithLabelValues(kind).Inc()
	} else {
		b.metrics.MessagesDropped.WithLabelValues(kind).Inc()
	}
}
