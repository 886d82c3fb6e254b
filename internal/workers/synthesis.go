package workers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/synapse-agents/synapse/internal/acp"
	"github.com/synapse-agents/synapse/internal/agent"
	"github.com/synapse-agents/synapse/internal/gateway"
)

// NewSynthesisAgent creates the worker that assembles the final report from
// extracted content. The executive summary sentence goes through the
// rephrase_sentence tool, which calls back into the externally hosted text
// capability; a degraded answer keeps the original sentence.
func NewSynthesisAgent(gw *gateway.Gateway, opts agent.Options) *agent.Runtime {
	rt := agent.New(SynthesisID, opts)
	rt.Handle(acp.MsgTaskAssign, func(ctx context.Context, msg acp.Message) ([]acp.Message, error) {
		task := msg.Payload().(acp.TaskAssign)
		if task.TaskType != "synthesize" {
			return nil, fmt.Errorf("synthesis agent cannot handle task type %q", task.TaskType)
		}

		query, _ := task.TaskData["query"].(string)
		taskID, _ := task.TaskData["task_id"].(string)
		content, _ := task.TaskData["content"].([]map[string]any)
		logToTopic(rt, "INFO", fmt.Sprintf("Synthesizing report from %d sources", len(content)))

		summary := improveSummary(ctx, gw,
			fmt.Sprintf("This report presents findings on %s drawn from %d sources.", query, len(content)))
		report := buildReport(query, summary, content)

		submit, err := acp.NewDirect(SynthesisID, msg.Sender(), acp.DataSubmit{
			DataType: "synthesis_report",
			Data:     map[string]any{"report": report, "query": query},
			Source:   SynthesisID,
			TaskID:   taskID,
		})
		if err != nil {
			return nil, err
		}
		return []acp.Message{submit}, nil
	})
	return rt
}

// improveSummary runs the sentence through rephrase_sentence, falling back
// to the input on any failure. The tool reports whether its own sampling
// path degraded; either way a usable sentence comes back.
func improveSummary(ctx context.Context, gw *gateway.Gateway, sentence string) string {
	result, err := gw.Invoke(ctx, SynthesisID, "rephrase_sentence",
		map[string]any{"sentence": sentence}, nil)
	if err != nil {
		return sentence
	}
	fields, _ := result.(map[string]any)
	if improved, ok := fields["rephrased"].(string); ok && improved != "" {
		return improved
	}
	return sentence
}

func buildReport(query, summary string, content []map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report: %s\n\n", query)
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "## Executive Summary\n\n%s\n\n", summary)

	b.WriteString("## Sources\n\n")
	for i, item := range content {
		url, _ := item["url"].(string)
		words, _ := item["word_count"].(int)
		fmt.Fprintf(&b, "%d. %s (%d words extracted)\n", i+1, url, words)
	}

	b.WriteString("\n## Findings\n\n")
	for _, item := range content {
		if text, ok := item["content"].(string); ok {
			fmt.Fprintf(&b, "- %s\n", text)
		}
	}
	return b.String()
}
