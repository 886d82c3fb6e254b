// Package container wires core synapse services using go.uber.org/dig.
package container

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"github.com/synapse-agents/synapse/internal/agent"
	"github.com/synapse-agents/synapse/internal/bus"
	"github.com/synapse-agents/synapse/internal/config"
	"github.com/synapse-agents/synapse/internal/gateway"
	"github.com/synapse-agents/synapse/internal/heartbeat"
	"github.com/synapse-agents/synapse/internal/observability"
	"github.com/synapse-agents/synapse/internal/roots"
	"github.com/synapse-agents/synapse/internal/sampling"
	"github.com/synapse-agents/synapse/internal/tools"
	"github.com/synapse-agents/synapse/internal/workers"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	registry *prometheus.Registry
	msgBus   *bus.Bus
	gateway  *gateway.Gateway
	swarm    *workers.Swarm
	pulse    *heartbeat.Service
}

func (c *Container) MetricsRegistry() *prometheus.Registry { return c.registry }
func (c *Container) MessageBus() *bus.Bus                  { return c.msgBus }
func (c *Container) Gateway() *gateway.Gateway             { return c.gateway }
func (c *Container) Swarm() *workers.Swarm                 { return c.swarm }
func (c *Container) Heartbeat() *heartbeat.Service         { return c.pulse }

// New builds and wires all core services from cfg. improve is the reverse
// path into the hosting text capability; nil means every sampling request
// degrades to its original input.
func New(cfg config.Config, improve sampling.ImproveFunc) (*Container, error) {
	d := dig.New()

	if err := d.Provide(func() config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(func() sampling.ImproveFunc { return improve }); err != nil {
		return nil, err
	}
	if err := d.Provide(prometheus.NewRegistry); err != nil {
		return nil, err
	}
	if err := d.Provide(newMetrics); err != nil {
		return nil, err
	}
	if err := d.Provide(newRootSet); err != nil {
		return nil, err
	}
	if err := d.Provide(newMessageBus); err != nil {
		return nil, err
	}
	if err := d.Provide(newSamplingBroker); err != nil {
		return nil, err
	}
	if err := d.Provide(newGateway); err != nil {
		return nil, err
	}
	if err := d.Provide(newSwarm); err != nil {
		return nil, err
	}
	if err := d.Provide(newHeartbeat); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		registry *prometheus.Registry,
		msgBus *bus.Bus,
		gw *gateway.Gateway,
		swarm *workers.Swarm,
		pulse *heartbeat.Service,
	) {
		result = &Container{
			registry: registry,
			msgBus:   msgBus,
			gateway:  gw,
			swarm:    swarm,
			pulse:    pulse,
		}
	})
	return result, err
}

func newMetrics(registry *prometheus.Registry) *observability.Metrics {
	return observability.NewMetrics(registry)
}

func newRootSet(cfg config.Config) (*roots.Set, error) {
	return roots.NewSet(cfg.AllowedRoots)
}

func newMessageBus(cfg config.Config, metrics *observability.Metrics) *bus.Bus {
	return bus.New(bus.Options{
		RouteTimeout: cfg.RouteTimeout(),
		Metrics:      metrics,
	})
}

func newSamplingBroker(cfg config.Config, improve sampling.ImproveFunc) *sampling.Broker {
	return sampling.New(improve, sampling.Options{Timeout: cfg.SamplingTimeout()})
}

func newGateway(cfg config.Config, set *roots.Set, broker *sampling.Broker, metrics *observability.Metrics) (*gateway.Gateway, error) {
	gw, err := gateway.New(gateway.Options{
		Roots:         set,
		InvokeTimeout: cfg.InvokeTimeout(),
		Metrics:       metrics,
	})
	if err != nil {
		return nil, err
	}
	for _, p := range []gateway.Provider{
		tools.SaveFileProvider(),
		tools.ReadFileProvider(),
		tools.SearchWebProvider(),
		tools.BrowseExtractProvider(),
		tools.RephraseProvider(broker),
	} {
		if err := gw.Register(p); err != nil {
			return nil, fmt.Errorf("register tool %s: %w", p.Name, err)
		}
	}
	return gw, nil
}

func newSwarm(cfg config.Config, b *bus.Bus, gw *gateway.Gateway) (*workers.Swarm, error) {
	return workers.NewSwarm(b, gw, cfg.ReportDir, agent.Options{
		QueueCapacity: cfg.QueueCapacity,
		Supervisor:    cfg.SupervisorID,
	})
}

func newHeartbeat(cfg config.Config, b *bus.Bus) *heartbeat.Service {
	return heartbeat.NewService(b, workers.HeartbeatTopic, cfg.HeartbeatSpec)
}
