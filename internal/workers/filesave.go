package workers

import (
	"context"
	"fmt"

	"github.com/synapse-agents/synapse/internal/acp"
	"github.com/synapse-agents/synapse/internal/agent"
	"github.com/synapse-agents/synapse/internal/gateway"
)

// NewFileSaveAgent creates the worker that persists reports through the
// save_file tool. Every write goes through the gateway, so the allowed-roots
// boundary applies to reports exactly as it does to any other tool call.
func NewFileSaveAgent(gw *gateway.Gateway, opts agent.Options) *agent.Runtime {
	rt := agent.New(FileSaveID, opts)
	rt.Handle(acp.MsgTaskAssign, func(ctx context.Context, msg acp.Message) ([]acp.Message, error) {
		task := msg.Payload().(acp.TaskAssign)
		if task.TaskType != "save_report" {
			return nil, fmt.Errorf("file-save agent cannot handle task type %q", task.TaskType)
		}

		path, _ := task.TaskData["path"].(string)
		content, _ := task.TaskData["content"].(string)
		taskID, _ := task.TaskData["task_id"].(string)

		result, err := gw.Invoke(ctx, FileSaveID, "save_file",
			map[string]any{"path": path, "content": content}, nil)
		if err != nil {
			return nil, fmt.Errorf("save_file %s: %w", path, err)
		}

		fields := result.(map[string]any)
		logToTopic(rt, "INFO", fmt.Sprintf("Report saved to %s", path))
		status, err := acp.NewDirect(FileSaveID, msg.Sender(), acp.StatusUpdate{
			Status: fmt.Sprintf("report_saved: %s (%d bytes)", path, fields["bytes_written"]),
			TaskID: taskID,
		})
		if err != nil {
			return nil, err
		}
		return []acp.Message{status}, nil
	})
	return rt
}
