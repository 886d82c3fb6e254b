package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/synapse-agents/synapse/internal/acp"
	"github.com/synapse-agents/synapse/internal/agent"
	"github.com/synapse-agents/synapse/internal/gateway"
	"github.com/synapse-agents/synapse/internal/progress"
)

// NewExtractionAgent creates the worker that browses assigned URLs through
// the gateway, forwarding tool progress to the logs topic as it arrives.
func NewExtractionAgent(gw *gateway.Gateway, opts agent.Options) *agent.Runtime {
	rt := agent.New(ExtractionID, opts)
	rt.Handle(acp.MsgTaskAssign, func(ctx context.Context, msg acp.Message) ([]acp.Message, error) {
		task := msg.Payload().(acp.TaskAssign)
		if task.TaskType != "extract" {
			return nil, fmt.Errorf("extraction agent cannot handle task type %q", task.TaskType)
		}

		url, _ := task.TaskData["url"].(string)
		taskID, _ := task.TaskData["task_id"].(string)

		sink := progress.NewStream(uuid.NewString(), 16)
		watcher := make(chan struct{})
		go func() {
			defer close(watcher)
			for ev := range sink.Events() {
				slog.Debug("extraction: progress",
					"url", url, "message", ev.Message, "percent", ev.Percent)
				if !ev.Terminal {
					logToTopic(rt, "DEBUG",
						fmt.Sprintf("Extracting %s: %s (%.0f%%)", url, ev.Message, ev.Percent))
				}
			}
		}()

		result, err := gw.Invoke(ctx, ExtractionID, "browse_and_extract",
			map[string]any{"url": url}, sink)
		<-watcher
		if err != nil {
			return nil, fmt.Errorf("browse_and_extract %s: %w", url, err)
		}

		submit, err := acp.NewDirect(ExtractionID, msg.Sender(), acp.DataSubmit{
			DataType: "extracted_content",
			Data:     result,
			Source:   url,
			TaskID:   taskID,
		})
		if err != nil {
			return nil, err
		}
		return []acp.Message{submit}, nil
	})
	return rt
}
