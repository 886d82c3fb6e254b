package workers

import (
	"context"
	"fmt"

	"github.com/synapse-agents/synapse/internal/acp"
	"github.com/synapse-agents/synapse/internal/agent"
	"github.com/synapse-agents/synapse/internal/gateway"
)

// NewSearchAgent creates the worker that answers web_search task assignments
// by invoking the search_web tool and submitting the hits back to the sender.
func NewSearchAgent(gw *gateway.Gateway, opts agent.Options) *agent.Runtime {
	rt := agent.New(SearchID, opts)
	rt.Handle(acp.MsgTaskAssign, func(ctx context.Context, msg acp.Message) ([]acp.Message, error) {
		task := msg.Payload().(acp.TaskAssign)
		if task.TaskType != "web_search" {
			return nil, fmt.Errorf("search agent cannot handle task type %q", task.TaskType)
		}

		query, _ := task.TaskData["query"].(string)
		taskID, _ := task.TaskData["task_id"].(string)
		logToTopic(rt, "INFO", fmt.Sprintf("Searching for %q", query))

		params := map[string]any{"query": query}
		if max, ok := task.TaskData["max_results"]; ok {
			params["max_results"] = max
		}
		result, err := gw.Invoke(ctx, SearchID, "search_web", params, nil)
		if err != nil {
			return nil, fmt.Errorf("search_web: %w", err)
		}

		fields := result.(map[string]any)
		hits := normalizeHits(fields["results"])
		submit, err := acp.NewDirect(SearchID, msg.Sender(), acp.DataSubmit{
			DataType: "search_results",
			Data:     hits,
			Source:   "search_web",
			TaskID:   taskID,
		})
		if err != nil {
			return nil, err
		}
		status, err := acp.NewDirect(SearchID, msg.Sender(), acp.StatusUpdate{
			Status: fmt.Sprintf("search complete: %d results", len(hits)),
			TaskID: taskID,
		})
		if err != nil {
			return nil, err
		}
		return []acp.Message{submit, status}, nil
	})
	return rt
}

// normalizeHits converts the provider's result slice into the shape the
// orchestrator consumes.
func normalizeHits(raw any) []map[string]any {
	var hits []map[string]any
	switch typed := raw.(type) {
	case []map[string]string:
		for _, hit := range typed {
			entry := make(map[string]any, len(hit))
			for k, v := range hit {
				entry[k] = v
			}
			hits = append(hits, entry)
		}
	case []map[string]any:
		hits = typed
	case []any:
		for _, item := range typed {
			if entry, ok := item.(map[string]any); ok {
				hits = append(hits, entry)
			}
		}
	}
	return hits
}
