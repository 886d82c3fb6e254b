// Package gateway mediates tool invocations: it validates parameters against
// each provider's declared schema, gates path parameters through the root
// validator, executes providers concurrently, and streams progress back
// without blocking callers.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/synapse-agents/synapse/internal/observability"
	"github.com/synapse-agents/synapse/internal/progress"
	"github.com/synapse-agents/synapse/internal/roots"
)

// DefaultInvokeTimeout bounds how long Invoke waits for a provider.
const DefaultInvokeTimeout = 30 * time.Second

// Options configures a Gateway.
type Options struct {
	// Roots gates every path-typed parameter. Required.
	Roots *roots.Set
	// InvokeTimeout bounds the caller's wait on Invoke.
	InvokeTimeout time.Duration
	// Metrics receives invocation counters and latencies. Optional.
	Metrics *observability.Metrics
}

// registered pairs a provider with its compiled schema.
type registered struct {
	provider Provider
	schema   *jsonschema.Schema
}

// invocation is the transient per-call record, kept only until a terminal
// outcome is delivered.
type invocation struct {
	id      string
	agentID string
	tool    string
	cancel  context.CancelFunc
}

// Gateway validates and dispatches tool invocations.
type Gateway struct {
	rootSet       *roots.Set
	invokeTimeout time.Duration
	metrics       *observability.Metrics

	mu        sync.Mutex
	providers map[string]registered
	inflight  map[string]*invocation
}

// New creates a Gateway. The root set is fixed for the gateway's lifetime.
func New(opts Options) (*Gateway, error) {
	if opts.Roots == nil {
		return nil, fmt.Errorf("gateway: root set is required")
	}
	if opts.InvokeTimeout <= 0 {
		opts.InvokeTimeout = DefaultInvokeTimeout
	}
	return &Gateway{
		rootSet:       opts.Roots,
		invokeTimeout: opts.InvokeTimeout,
		metrics:       opts.Metrics,
		providers:     make(map[string]registered),
		inflight:      make(map[string]*invocation),
	}, nil
}

// Register adds a provider. The param schema is compiled here, once, so a
// malformed schema fails at wiring time instead of on the first call.
func (g *Gateway) Register(p Provider) error {
	if p.Name == "" || p.Handler == nil {
		return fmt.Errorf("gateway: provider needs a name and a handler")
	}
	schema, err := jsonschema.CompileString("tool_"+p.Name, string(p.ParamSchema))
	if err != nil {
		return fmt.Errorf("gateway: compile schema for %q: %w", p.Name, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.providers[p.Name]; exists {
		return fmt.Errorf("gateway: tool %q already registered", p.Name)
	}
	g.providers[p.Name] = registered{provider: p, schema: schema}
	return nil
}

// Tools returns the registered tool names, sorted.
func (g *Gateway) Tools() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Roots returns the configured allowed roots.
func (g *Gateway) Roots() []string { return g.rootSet.Roots() }

// Cancel sets the cooperative cancellation flag for an in-flight invocation.
// A provider that never observes it will still run to completion in the
// background; the caller's Invoke returns ErrTimedOut regardless.
func (g *Gateway) Cancel(invocationID string) {
	g.mu.Lock()
	inv := g.inflight[invocationID]
	g.mu.Unlock()
	if inv != nil {
		inv.cancel()
	}
}

// Invoke executes a tool call on behalf of agentID.
//
// Validation errors (ErrUnknownTool, ErrInvalidParams, ErrAccessDenied)
// return synchronously before the provider runs. Execution happens in its
// own goroutine; the caller's wait is bounded by the invoke timeout.
//
// When sink is non-nil it receives zero or more progress events followed by
// exactly one terminal event. The gateway synthesizes the terminal event
// itself, so the contract holds even when the provider returns or panics
// without reporting anything.
func (g *Gateway) Invoke(ctx context.Context, agentID, tool string, params map[string]any, sink *progress.Stream) (any, error) {
	g.mu.Lock()
	reg, ok := g.providers[tool]
	g.mu.Unlock()
	if !ok {
		g.count(tool, "error")
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}

	if err := g.validateParams(reg, params); err != nil {
		g.count(tool, "error")
		if sink != nil {
			sink.Fail(err)
		}
		return nil, err
	}

	invID := uuid.NewString()
	if sink == nil {
		sink = progress.NewStream(invID, 1)
	} else if sink.InvocationID() != "" {
		invID = sink.InvocationID()
	}

	execCtx, cancel := context.WithCancel(ctx)
	inv := &invocation{id: invID, agentID: agentID, tool: tool, cancel: cancel}
	g.mu.Lock()
	g.inflight[invID] = inv
	g.mu.Unlock()
	defer func() {
		cancel()
		g.mu.Lock()
		delete(g.inflight, invID)
		g.mu.Unlock()
	}()

	start := time.Now()
	result, err := g.execute(execCtx, reg, params, sink)
	g.observe(tool, start, err)

	switch {
	case err != nil:
		sink.Fail(err)
		return nil, err
	default:
		sink.Succeed("completed")
		return result, nil
	}
}

// validateParams checks params against the compiled schema, then gates every
// declared path parameter through the root validator.
func (g *Gateway) validateParams(reg registered, params map[string]any) error {
	// Round-trip through JSON so schema validation sees canonical JSON types
	// regardless of how the caller built the map.
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := reg.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	for _, name := range reg.provider.PathParams {
		raw, present := params[name]
		if !present {
			continue
		}
		path, ok := raw.(string)
		if !ok {
			return fmt.Errorf("%w: parameter %q must be a string path", ErrInvalidParams, name)
		}
		if err := g.rootSet.IsAllowed(path); err != nil {
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
	}
	return nil
}

type execResult struct {
	value any
	err   error
}

// execute runs the provider in its own goroutine and waits for the result,
// the invoke timeout, or caller cancellation — whichever comes first. On
// timeout the goroutine is left to finish in the background; its eventual
// result is discarded.
func (g *Gateway) execute(ctx context.Context, reg registered, params map[string]any, sink progress.Sink) (any, error) {
	done := make(chan execResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("gateway: provider panicked",
					"tool", reg.provider.Name, "panic", rec)
				done <- execResult{err: ErrProviderFault}
			}
		}()
		value, err := reg.provider.Handler(ctx, params, sink)
		if err != nil {
			// Log the real failure; the caller gets the opaque fault.
			slog.Error("gateway: provider failed", "tool", reg.provider.Name, "err", err)
			err = ErrProviderFault
		}
		done <- execResult{value: value, err: err}
	}()

	timer := time.NewTimer(g.invokeTimeout)
	defer timer.Stop()
	select {
	case res := <-done:
		return res.value, res.err
	case <-timer.C:
		slog.Warn("gateway: invocation timed out, provider may still be running",
			"tool", reg.provider.Name, "timeout", g.invokeTimeout)
		return nil, ErrTimedOut
	case <-ctx.Done():
		select {
		case res := <-done:
			// Provider observed cancellation promptly.
			return res.value, res.err
		case <-time.After(50 * time.Millisecond):
			return nil, fmt.Errorf("invocation cancelled: %w", ctx.Err())
		}
	}
}

func (g *Gateway) count(tool, status string) {
	if g.metrics != nil {
		g.metrics.InvocationCounter.WithLabelValues(tool, status).Inc()
	}
}

func (g *Gateway) observe(tool string, start time.Time, err error) {
	if g.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	g.metrics.InvocationCounter.WithLabelValues(tool, status).Inc()
	g.metrics.InvocationDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
}
