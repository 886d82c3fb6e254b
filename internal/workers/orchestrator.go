package workers

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synapse-agents/synapse/internal/acp"
	"github.com/synapse-agents/synapse/internal/agent"
)

// maxExtractions bounds how many search results get extracted per workflow.
const maxExtractions = 3

// maxSearchRetries bounds how often a failed search task is reassigned
// before the workflow gives up.
const maxSearchRetries = 2

// Orchestrator coordinates one research workflow at a time: it fans tasks out
// to the specialist agents, tracks their progress, and drives the pipeline
// from search through extraction, validation, synthesis, and saving.
type Orchestrator struct {
	rt        *agent.Runtime
	reportDir string

	mu            sync.Mutex
	query         string
	taskID        string
	startedAt     time.Time
	searchHits    []map[string]any
	extracted     []map[string]any
	validations   []acp.ValidationResponse
	pendingExt    int
	pendingVal    int
	synthesized   bool
	searchRetries int
	failed        bool
	agentStatus   map[string]string
	done          chan struct{}
}

// NewOrchestrator creates the orchestrator runtime. reportDir is the
// directory (inside the allowed roots) where final reports are saved.
func NewOrchestrator(reportDir string, opts agent.Options) *Orchestrator {
	o := &Orchestrator{
		rt:          agent.New(OrchestratorID, opts),
		reportDir:   reportDir,
		agentStatus: make(map[string]string),
		done:        make(chan struct{}),
	}
	o.rt.Handle(acp.MsgStatusUpdate, o.handleStatus)
	o.rt.Handle(acp.MsgDataSubmit, o.handleData)
	o.rt.Handle(acp.MsgValidationResponse, o.handleValidation)
	return o
}

// Runtime returns the underlying agent runtime for registration and running.
func (o *Orchestrator) Runtime() *agent.Runtime { return o.rt }

// Done is closed when the current workflow has finished, successfully or not.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// Failed reports whether the workflow ended without a saved report.
func (o *Orchestrator) Failed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failed
}

// StartResearch kicks off a workflow for query by assigning the search task.
func (o *Orchestrator) StartResearch(query string) error {
	o.mu.Lock()
	o.query = query
	o.taskID = uuid.NewString()[:8]
	o.startedAt = time.Now()
	o.searchHits = nil
	o.extracted = nil
	o.validations = nil
	o.pendingExt = 0
	o.pendingVal = 0
	o.synthesized = false
	o.searchRetries = 0
	o.failed = false
	taskID := o.taskID
	o.mu.Unlock()

	slog.Info("orchestrator: starting research", "query", query, "task", taskID)
	logToTopic(o.rt, "INFO", fmt.Sprintf("Research workflow started: %q", query))

	assign, err := acp.NewDirect(OrchestratorID, SearchID, acp.TaskAssign{
		TaskType: "web_search",
		TaskData: map[string]any{"query": query, "task_id": taskID, "max_results": 5},
		Priority: 1,
	})
	if err != nil {
		return err
	}
	return o.rt.Send(assign)
}

func (o *Orchestrator) handleStatus(_ context.Context, msg acp.Message) ([]acp.Message, error) {
	status := msg.Payload().(acp.StatusUpdate)
	o.mu.Lock()
	o.agentStatus[msg.Sender()] = status.Status
	o.mu.Unlock()
	slog.Info("orchestrator: status", "from", msg.Sender(), "status", status.Status)

	if strings.HasPrefix(status.Status, agent.FailureStatusPrefix) {
		return o.handleFailure(msg.Sender(), status.Status)
	}
	if msg.Sender() == FileSaveID && strings.HasPrefix(status.Status, "report_saved") {
		logToTopic(o.rt, "INFO", "Workflow complete: "+status.Status)
		o.markComplete()
	}
	return nil, nil
}

// handleFailure reacts to a worker's failure report: a failed search is
// retried a bounded number of times, a failed extraction or validation
// releases its pending slot so the workflow can finish with the sources that
// did succeed, and a failure past synthesis ends the workflow.
func (o *Orchestrator) handleFailure(sender, detail string) ([]acp.Message, error) {
	logToTopic(o.rt, "ERROR", fmt.Sprintf("%s: %s", sender, detail))

	switch sender {
	case SearchID:
		o.mu.Lock()
		retry := !o.failed && o.searchRetries < maxSearchRetries
		if retry {
			o.searchRetries++
		}
		query, taskID, attempt := o.query, o.taskID, o.searchRetries
		o.mu.Unlock()

		if !retry {
			o.failWorkflow("search failed after retries")
			return nil, nil
		}
		slog.Warn("orchestrator: retrying search", "task", taskID, "attempt", attempt)
		assign, err := acp.NewDirect(OrchestratorID, SearchID, acp.TaskAssign{
			TaskType: "web_search",
			TaskData: map[string]any{"query": query, "task_id": taskID, "max_results": 5},
			Priority: 1,
		})
		if err != nil {
			return nil, err
		}
		return []acp.Message{assign}, nil
	case ExtractionID:
		o.mu.Lock()
		if o.pendingExt > 0 {
			o.pendingExt--
		}
		o.mu.Unlock()
		return o.maybeSynthesize()
	case FactCheckerID:
		o.mu.Lock()
		if o.pendingVal > 0 {
			o.pendingVal--
		}
		o.mu.Unlock()
		return o.maybeSynthesize()
	default:
		// Synthesis or file-save failed: nothing downstream can recover.
		o.failWorkflow(fmt.Sprintf("%s: %s", sender, detail))
		return nil, nil
	}
}

// failWorkflow marks the workflow failed and closes Done exactly once.
func (o *Orchestrator) failWorkflow(reason string) {
	o.mu.Lock()
	already := o.failed
	o.failed = true
	o.mu.Unlock()
	if already {
		return
	}
	slog.Error("orchestrator: workflow failed", "reason", reason)
	logToTopic(o.rt, "ERROR", "Workflow failed: "+reason)
	o.markComplete()
}

func (o *Orchestrator) handleData(_ context.Context, msg acp.Message) ([]acp.Message, error) {
	data := msg.Payload().(acp.DataSubmit)
	switch data.DataType {
	case "search_results":
		return o.onSearchResults(data)
	case "extracted_content":
		return o.onExtractedContent(data)
	case "synthesis_report":
		return o.onSynthesisReport(data)
	default:
		slog.Warn("orchestrator: unexpected data type", "type", data.DataType, "from", msg.Sender())
		return nil, nil
	}
}

// onSearchResults assigns one extraction task per hit, up to maxExtractions.
func (o *Orchestrator) onSearchResults(data acp.DataSubmit) ([]acp.Message, error) {
	hits, _ := data.Data.([]map[string]any)
	if len(hits) == 0 {
		return nil, fmt.Errorf("search returned no results")
	}
	if len(hits) > maxExtractions {
		hits = hits[:maxExtractions]
	}

	o.mu.Lock()
	o.searchHits = hits
	o.pendingExt = len(hits)
	taskID := o.taskID
	o.mu.Unlock()

	logToTopic(o.rt, "INFO", fmt.Sprintf("Search complete, extracting %d sources", len(hits)))

	var out []acp.Message
	for _, hit := range hits {
		assign, err := acp.NewDirect(OrchestratorID, ExtractionID, acp.TaskAssign{
			TaskType: "extract",
			TaskData: map[string]any{"url": hit["url"], "task_id": taskID},
			Priority: 2,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, assign)
	}
	return out, nil
}

// onExtractedContent records the content and asks the fact checker to
// validate a claim drawn from it.
func (o *Orchestrator) onExtractedContent(data acp.DataSubmit) ([]acp.Message, error) {
	content, _ := data.Data.(map[string]any)
	if content == nil {
		return nil, fmt.Errorf("malformed extracted content")
	}

	o.mu.Lock()
	o.extracted = append(o.extracted, content)
	o.pendingExt--
	o.pendingVal++
	o.mu.Unlock()

	url, _ := content["url"].(string)
	req, err := acp.NewDirect(OrchestratorID, FactCheckerID, acp.ValidationRequest{
		Claim:          claimFrom(content),
		SourceURL:      url,
		ValidationType: "fact_check",
	})
	if err != nil {
		return nil, err
	}
	return []acp.Message{req}, nil
}

func (o *Orchestrator) handleValidation(_ context.Context, msg acp.Message) ([]acp.Message, error) {
	resp := msg.Payload().(acp.ValidationResponse)

	o.mu.Lock()
	o.validations = append(o.validations, resp)
	if o.pendingVal > 0 {
		o.pendingVal--
	}
	o.mu.Unlock()

	return o.maybeSynthesize()
}

// maybeSynthesize assigns the synthesis task once every extraction and
// validation has either finished or been written off. A workflow with no
// extracted sources left has nothing to synthesize and fails instead.
func (o *Orchestrator) maybeSynthesize() ([]acp.Message, error) {
	o.mu.Lock()
	ready := o.pendingExt == 0 && o.pendingVal == 0 && !o.synthesized && !o.failed
	empty := ready && len(o.extracted) == 0
	if ready && !empty {
		o.synthesized = true
	}
	query, taskID := o.query, o.taskID
	extracted := o.extracted
	o.mu.Unlock()

	if empty {
		o.failWorkflow("no sources extracted")
		return nil, nil
	}
	if !ready {
		return nil, nil
	}

	logToTopic(o.rt, "INFO", "All sources resolved, assigning synthesis")
	assign, err := acp.NewDirect(OrchestratorID, SynthesisID, acp.TaskAssign{
		TaskType: "synthesize",
		TaskData: map[string]any{
			"query":   query,
			"task_id": taskID,
			"content": extracted,
		},
		Priority: 1,
	})
	if err != nil {
		return nil, err
	}
	return []acp.Message{assign}, nil
}

// onSynthesisReport hands the finished report to the file-save agent.
func (o *Orchestrator) onSynthesisReport(data acp.DataSubmit) ([]acp.Message, error) {
	report, _ := data.Data.(map[string]any)
	text, _ := report["report"].(string)
	if text == "" {
		return nil, fmt.Errorf("empty synthesis report")
	}

	o.mu.Lock()
	taskID := o.taskID
	elapsed := time.Since(o.startedAt)
	o.mu.Unlock()

	path := filepath.Join(o.reportDir, fmt.Sprintf("report-%s.md", taskID))
	slog.Info("orchestrator: synthesis done", "task", taskID, "elapsed", elapsed)
	logToTopic(o.rt, "INFO", "Synthesis complete, saving report")

	assign, err := acp.NewDirect(OrchestratorID, FileSaveID, acp.TaskAssign{
		TaskType: "save_report",
		TaskData: map[string]any{"path": path, "content": text, "task_id": taskID},
		Priority: 1,
	})
	if err != nil {
		return nil, err
	}
	return []acp.Message{assign}, nil
}

// markComplete closes the workflow's done channel exactly once.
func (o *Orchestrator) markComplete() {
	o.mu.Lock()
	defer o.mu.Unlock()
	select {
	case <-o.done:
	default:
		close(o.done)
	}
}

// claimFrom picks the leading sentence of extracted content as the claim to
// validate.
func claimFrom(content map[string]any) string {
	text, _ := content["content"].(string)
	if len(text) > 160 {
		text = text[:160]
	}
	if text == "" {
		text = "no content extracted"
	}
	return text
}
