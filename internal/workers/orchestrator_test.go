package workers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/synapse-agents/synapse/internal/acp"
	"github.com/synapse-agents/synapse/internal/agent"
	"github.com/synapse-agents/synapse/internal/bus"
)

// routeRecorder captures everything the orchestrator routes out.
type routeRecorder struct {
	mu   sync.Mutex
	msgs []acp.Message
}

func (r *routeRecorder) Route(_ context.Context, msg acp.Message) ([]bus.DeliveryOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil, nil
}

// assignments returns the routed task_assign payloads of the given task type.
func (r *routeRecorder) assignments(taskType string) []acp.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []acp.Message
	for _, msg := range r.msgs {
		if msg.Type() != acp.MsgTaskAssign {
			continue
		}
		if msg.Payload().(acp.TaskAssign).TaskType == taskType {
			out = append(out, msg)
		}
	}
	return out
}

func startOrchestrator(t *testing.T) (*Orchestrator, *routeRecorder) {
	t.Helper()
	o := NewOrchestrator(t.TempDir(), agent.Options{
		QueueCapacity: 32,
		Supervisor:    OrchestratorID,
	})
	rec := &routeRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = o.Runtime().Run(ctx) }()
	go func() { _ = o.Runtime().DrainOutbox(ctx, rec) }()
	return o, rec
}

func deliverToOrchestrator(t *testing.T, o *Orchestrator, msg acp.Message) {
	t.Helper()
	select {
	case o.Runtime().Inbox() <- msg:
	case <-time.After(time.Second):
		t.Fatal("orchestrator inbox stayed full")
	}
}

func failureReport(t *testing.T, sender string) acp.Message {
	t.Helper()
	msg, err := acp.NewDirect(sender, OrchestratorID, acp.StatusUpdate{
		Status: fmt.Sprintf("%s for %s: boom", agent.FailureStatusPrefix, acp.MsgTaskAssign),
	})
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func waitCondition(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestOrchestrator_SearchFailureRetriesThenGivesUp(t *testing.T) {
	o, rec := startOrchestrator(t)
	if err := o.StartResearch("flaky search"); err != nil {
		t.Fatal(err)
	}
	waitCondition(t, "initial search assignment", func() bool {
		return len(rec.assignments("web_search")) == 1
	})

	// Two failures get retried, the third ends the workflow.
	deliverToOrchestrator(t, o, failureReport(t, SearchID))
	waitCondition(t, "first retry", func() bool {
		return len(rec.assignments("web_search")) == 2
	})
	deliverToOrchestrator(t, o, failureReport(t, SearchID))
	waitCondition(t, "second retry", func() bool {
		return len(rec.assignments("web_search")) == 3
	})

	deliverToOrchestrator(t, o, failureReport(t, SearchID))
	select {
	case <-o.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("workflow should end after retries are exhausted")
	}
	if !o.Failed() {
		t.Error("expected workflow marked failed")
	}
	if got := len(rec.assignments("web_search")); got != 3 {
		t.Errorf("expected 3 search assignments total, got %d", got)
	}
}

func TestOrchestrator_ExtractionFailureCompletesDegraded(t *testing.T) {
	o, rec := startOrchestrator(t)
	if err := o.StartResearch("partial extraction"); err != nil {
		t.Fatal(err)
	}

	hits := []map[string]any{
		{"url": "https://example.org/one", "title": "One"},
		{"url": "https://example.org/two", "title": "Two"},
	}
	results, err := acp.NewDirect(SearchID, OrchestratorID, acp.DataSubmit{
		DataType: "search_results",
		Data:     hits,
		Source:   "search_web",
	})
	if err != nil {
		t.Fatal(err)
	}
	deliverToOrchestrator(t, o, results)
	waitCondition(t, "extraction assignments", func() bool {
		return len(rec.assignments("extract")) == 2
	})

	content, err := acp.NewDirect(ExtractionID, OrchestratorID, acp.DataSubmit{
		DataType: "extracted_content",
		Data: map[string]any{
			"url":     "https://example.org/one",
			"content": "Main findings from source one.",
		},
		Source: "https://example.org/one",
	})
	if err != nil {
		t.Fatal(err)
	}
	deliverToOrchestrator(t, o, content)
	deliverToOrchestrator(t, o, failureReport(t, ExtractionID))

	validation, err := acp.NewDirect(FactCheckerID, OrchestratorID, acp.ValidationResponse{
		IsValid:    true,
		Confidence: 0.9,
	})
	if err != nil {
		t.Fatal(err)
	}
	deliverToOrchestrator(t, o, validation)

	waitCondition(t, "synthesis assignment", func() bool {
		return len(rec.assignments("synthesize")) == 1
	})
	assign := rec.assignments("synthesize")[0]
	sources := assign.Payload().(acp.TaskAssign).TaskData["content"].([]map[string]any)
	if len(sources) != 1 {
		t.Errorf("expected synthesis over the one surviving source, got %d", len(sources))
	}
	if o.Failed() {
		t.Error("a degraded workflow is not a failed workflow")
	}
}

func TestOrchestrator_AllExtractionsFailedEndsWorkflow(t *testing.T) {
	o, rec := startOrchestrator(t)
	if err := o.StartResearch("nothing extractable"); err != nil {
		t.Fatal(err)
	}

	results, err := acp.NewDirect(SearchID, OrchestratorID, acp.DataSubmit{
		DataType: "search_results",
		Data:     []map[string]any{{"url": "https://example.org/one"}},
		Source:   "search_web",
	})
	if err != nil {
		t.Fatal(err)
	}
	deliverToOrchestrator(t, o, results)
	waitCondition(t, "extraction assignment", func() bool {
		return len(rec.assignments("extract")) == 1
	})

	deliverToOrchestrator(t, o, failureReport(t, ExtractionID))
	select {
	case <-o.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("workflow with no extracted sources should end")
	}
	if !o.Failed() {
		t.Error("expected workflow marked failed")
	}
	if got := len(rec.assignments("synthesize")); got != 0 {
		t.Errorf("expected no synthesis assignment, got %d", got)
	}
}

func TestOrchestrator_FileSaveFailureEndsWorkflow(t *testing.T) {
	o, _ := startOrchestrator(t)
	if err := o.StartResearch("doomed save"); err != nil {
		t.Fatal(err)
	}

	deliverToOrchestrator(t, o, failureReport(t, FileSaveID))
	select {
	case <-o.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("workflow should end when saving fails")
	}
	if !o.Failed() {
		t.Error("expected workflow marked failed")
	}
}
