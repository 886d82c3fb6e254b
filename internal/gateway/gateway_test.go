package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/synapse-agents/synapse/internal/progress"
	"github.com/synapse-agents/synapse/internal/roots"
)

const echoSchema = `{
	"type": "object",
	"properties": {
		"text": {"type": "string", "minLength": 1}
	},
	"required": ["text"]
}`

const pathSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string"}
	},
	"required": ["path"]
}`

// newTestGateway builds a gateway rooted in a temp dir.
func newTestGateway(t *testing.T, opts Options) (*Gateway, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out")
	set, err := roots.NewSet([]string{out})
	if err != nil {
		t.Fatalf("roots: %v", err)
	}
	opts.Roots = set
	g, err := New(opts)
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	return g, set.Roots()[0]
}

func registerEcho(t *testing.T, g *Gateway) {
	t.Helper()
	err := g.Register(Provider{
		Name:        "echo",
		Description: "Echo the text parameter back",
		ParamSchema: json.RawMessage(echoSchema),
		Handler: func(_ context.Context, params map[string]any, _ progress.Sink) (any, error) {
			return params["text"], nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestInvoke_UnknownTool(t *testing.T) {
	g, _ := newTestGateway(t, Options{})
	_, err := g.Invoke(context.Background(), "a1", "missing", nil, nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestInvoke_SchemaValidation(t *testing.T) {
	g, _ := newTestGateway(t, Options{})
	registerEcho(t, g)

	if _, err := g.Invoke(context.Background(), "a1", "echo", map[string]any{"text": ""}, nil); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams for empty text, got %v", err)
	}
	if _, err := g.Invoke(context.Background(), "a1", "echo", nil, nil); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams for missing text, got %v", err)
	}

	result, err := g.Invoke(context.Background(), "a1", "echo", map[string]any{"text": "hi"}, nil)
	if err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
	if result != "hi" {
		t.Errorf("expected echo result, got %v", result)
	}
}

func TestInvoke_PathParamGating(t *testing.T) {
	g, out := newTestGateway(t, Options{})
	err := g.Register(Provider{
		Name:        "touch",
		ParamSchema: json.RawMessage(pathSchema),
		PathParams:  []string{"path"},
		Handler: func(_ context.Context, params map[string]any, _ progress.Sink) (any, error) {
			return params["path"], nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	inside := filepath.Join(out, "report.md")
	if _, err := g.Invoke(context.Background(), "a1", "touch", map[string]any{"path": inside}, nil); err != nil {
		t.Errorf("path under root rejected: %v", err)
	}

	_, err = g.Invoke(context.Background(), "a1", "touch", map[string]any{"path": "/etc/passwd"}, nil)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	// The denial names the roots and candidate, not unrelated structure.
	if !strings.Contains(err.Error(), out) || !strings.Contains(err.Error(), "/etc/passwd") {
		t.Errorf("denial should report candidate and roots: %v", err)
	}

	escape := filepath.Join(out, "..", "escape.txt")
	if _, err := g.Invoke(context.Background(), "a1", "touch", map[string]any{"path": escape}, nil); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied for traversal, got %v", err)
	}
}

func TestInvoke_ProgressContract(t *testing.T) {
	g, _ := newTestGateway(t, Options{})
	err := g.Register(Provider{
		Name:        "steps",
		ParamSchema: json.RawMessage(`{"type": "object"}`),
		Handler: func(_ context.Context, _ map[string]any, sink progress.Sink) (any, error) {
			sink.Report("step one", 25)
			sink.Report("step two", 75)
			return "done", nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	sink := progress.NewStream("inv-steps", 8)
	if _, err := g.Invoke(context.Background(), "a1", "steps", map[string]any{}, sink); err != nil {
		t.Fatal(err)
	}

	var events []progress.Event
	for ev := range sink.Events() {
		events = append(events, ev)
	}
	if len(events) < 3 {
		t.Fatalf("expected progress plus terminal, got %d events", len(events))
	}
	final := events[len(events)-1]
	if !final.Terminal || final.Percent != 100 || final.Err != nil {
		t.Errorf("unexpected terminal event: %+v", final)
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Terminal {
			t.Error("more than one terminal event")
		}
	}
}

func TestInvoke_PanickingProviderStillTerminates(t *testing.T) {
	g, _ := newTestGateway(t, Options{})
	err := g.Register(Provider{
		Name:        "crash",
		ParamSchema: json.RawMessage(`{"type": "object"}`),
		Handler: func(_ context.Context, _ map[string]any, sink progress.Sink) (any, error) {
			sink.Report("about to crash", 40)
			panic("unexpected provider state")
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	sink := progress.NewStream("inv-crash", 8)
	_, err = g.Invoke(context.Background(), "a1", "crash", map[string]any{}, sink)
	if !errors.Is(err, ErrProviderFault) {
		t.Fatalf("expected ErrProviderFault, got %v", err)
	}
	// The panic message must not leak through the returned error.
	if strings.Contains(err.Error(), "unexpected provider state") {
		t.Errorf("provider internals leaked: %v", err)
	}

	terminals := 0
	for ev := range sink.Events() {
		if ev.Terminal {
			terminals++
			if ev.Err == nil {
				t.Error("terminal event after fault should carry an error")
			}
		}
	}
	if terminals != 1 {
		t.Fatalf("expected exactly one terminal event, got %d", terminals)
	}
}

func TestInvoke_Timeout(t *testing.T) {
	g, _ := newTestGateway(t, Options{InvokeTimeout: 50 * time.Millisecond})
	release := make(chan struct{})
	err := g.Register(Provider{
		Name:        "stubborn",
		ParamSchema: json.RawMessage(`{"type": "object"}`),
		Handler: func(_ context.Context, _ map[string]any, _ progress.Sink) (any, error) {
			// Ignores cancellation on purpose.
			<-release
			return "late", nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer close(release)

	start := time.Now()
	_, err = g.Invoke(context.Background(), "a1", "stubborn", map[string]any{}, nil)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("caller blocked far past the invoke timeout")
	}
}

func TestInvoke_CallerCancelIsNotTimeout(t *testing.T) {
	g, _ := newTestGateway(t, Options{InvokeTimeout: 5 * time.Second})
	release := make(chan struct{})
	err := g.Register(Provider{
		Name:        "deaf",
		ParamSchema: json.RawMessage(`{"type": "object"}`),
		Handler: func(_ context.Context, _ map[string]any, _ progress.Sink) (any, error) {
			// Ignores cancellation on purpose.
			<-release
			return "late", nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err = g.Invoke(ctx, "a1", "deaf", map[string]any{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled surfaced, got %v", err)
	}
	if errors.Is(err, ErrTimedOut) {
		t.Error("caller cancellation must not be reported as a timeout")
	}
}

func TestInvoke_CooperativeCancel(t *testing.T) {
	g, _ := newTestGateway(t, Options{InvokeTimeout: 5 * time.Second})
	err := g.Register(Provider{
		Name:        "patient",
		ParamSchema: json.RawMessage(`{"type": "object"}`),
		Handler: func(ctx context.Context, _ map[string]any, _ progress.Sink) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	sink := progress.NewStream("inv-cancel", 4)
	done := make(chan error, 1)
	go func() {
		_, err := g.Invoke(context.Background(), "a1", "patient", map[string]any{}, sink)
		done <- err
	}()

	// Wait for the invocation to show up, then flip its cancellation flag.
	waitFor(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return len(g.inflight) == 1
	}, "invocation never became visible")
	g.Cancel(sink.InvocationID())

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Invoke did not return after Cancel")
	}
}

func TestRegister_Validation(t *testing.T) {
	g, _ := newTestGateway(t, Options{})
	if err := g.Register(Provider{Name: "", ParamSchema: json.RawMessage(`{}`)}); err == nil {
		t.Error("expected error for unnamed provider")
	}
	registerEcho(t, g)
	err := g.Register(Provider{
		Name:        "echo",
		ParamSchema: json.RawMessage(echoSchema),
		Handler:     func(context.Context, map[string]any, progress.Sink) (any, error) { return nil, nil },
	})
	if err == nil {
		t.Error("expected error for duplicate tool name")
	}
	if g.Tools()[0] != "echo" {
		t.Errorf("unexpected tool list: %v", g.Tools())
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
