package workers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/synapse-agents/synapse/internal/acp"
	"github.com/synapse-agents/synapse/internal/agent"
	"github.com/synapse-agents/synapse/internal/bus"
	"github.com/synapse-agents/synapse/internal/gateway"
	"github.com/synapse-agents/synapse/internal/roots"
	"github.com/synapse-agents/synapse/internal/sampling"
	"github.com/synapse-agents/synapse/internal/tools"
)

// newTestSwarm wires a complete swarm against a temp report directory.
func newTestSwarm(t *testing.T, improve sampling.ImproveFunc) (*Swarm, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out")
	set, err := roots.NewSet([]string{out})
	if err != nil {
		t.Fatal(err)
	}
	gw, err := gateway.New(gateway.Options{Roots: set, InvokeTimeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	broker := sampling.New(improve, sampling.Options{Timeout: time.Second})
	for _, p := range []gateway.Provider{
		tools.SaveFileProvider(),
		tools.ReadFileProvider(),
		tools.SearchWebProvider(),
		tools.BrowseExtractProvider(),
		tools.RephraseProvider(broker),
	} {
		if err := gw.Register(p); err != nil {
			t.Fatal(err)
		}
	}

	b := bus.New(bus.Options{RouteTimeout: time.Second})
	swarm, err := NewSwarm(b, gw, set.Roots()[0], agent.Options{
		QueueCapacity: 64,
		Supervisor:    OrchestratorID,
	})
	if err != nil {
		t.Fatal(err)
	}
	return swarm, set.Roots()[0]
}

func TestSwarm_EndToEndResearch(t *testing.T) {
	swarm, out := newTestSwarm(t, func(_ context.Context, text string) (string, error) {
		return "Improved: " + text, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = swarm.Run(ctx) }()

	if err := swarm.Orchestrator().StartResearch("multi-agent systems in production"); err != nil {
		t.Fatalf("start research: %v", err)
	}

	select {
	case <-swarm.Orchestrator().Done():
	case <-time.After(15 * time.Second):
		t.Fatal("workflow never completed")
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	var reportPath string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "report-") {
			reportPath = filepath.Join(out, e.Name())
		}
	}
	if reportPath == "" {
		t.Fatalf("no report written to %s", out)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	report := string(data)
	if !strings.Contains(report, "multi-agent systems in production") {
		t.Error("report should mention the query")
	}
	if !strings.Contains(report, "Improved:") {
		t.Error("summary should have gone through the sampling capability")
	}
	if !strings.Contains(report, "## Sources") {
		t.Error("report missing sources section")
	}

	if swarm.Logger().Total() == 0 {
		t.Error("logger agent never received a broadcast")
	}
}

func TestSwarm_DegradedSamplingStillCompletes(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	swarm, out := newTestSwarm(t, func(ctx context.Context, _ string) (string, error) {
		<-release // capability never answers in time
		return "", ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = swarm.Run(ctx) }()

	if err := swarm.Orchestrator().StartResearch("graceful degradation"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-swarm.Orchestrator().Done():
	case <-time.After(15 * time.Second):
		t.Fatal("workflow should complete even with a degraded capability")
	}

	entries, err := os.ReadDir(out)
	if err != nil || len(entries) == 0 {
		t.Fatalf("expected a report despite degraded sampling: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(out, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	// The original summary sentence survives untouched.
	if !strings.Contains(string(data), "This report presents findings on graceful degradation") {
		t.Error("degraded summary should be the original sentence")
	}
}

func TestSwarm_LoggerKeepsBoundedRing(t *testing.T) {
	logger := NewLogger(agent.Options{QueueCapacity: 512})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = logger.Runtime().Run(ctx) }()

	for i := 0; i < logBufferSize+50; i++ {
		msg, err := acp.NewBroadcast("tester", LogsTopic, acp.LogBroadcast{
			Level: "INFO", Message: "tick", Component: "tester",
		})
		if err != nil {
			t.Fatal(err)
		}
		select {
		case logger.Runtime().Inbox() <- msg:
		case <-time.After(time.Second):
			t.Fatal("inbox stayed full")
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if logger.Total() == logBufferSize+50 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if logger.Total() != logBufferSize+50 {
		t.Fatalf("expected %d entries observed, got %d", logBufferSize+50, logger.Total())
	}
	if got := len(logger.Recent(0)); got != logBufferSize {
		t.Errorf("ring should cap at %d, got %d", logBufferSize, got)
	}
}
