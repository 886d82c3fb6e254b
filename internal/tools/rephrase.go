package tools

import (
	"context"
	"encoding/json"

	"github.com/synapse-agents/synapse/internal/gateway"
	"github.com/synapse-agents/synapse/internal/progress"
	"github.com/synapse-agents/synapse/internal/sampling"
)

// RephraseProvider improves a sentence by calling back into the externally
// hosted text capability through the sampling broker. On broker degrade the
// caller gets the original sentence back, flagged as such.
func RephraseProvider(broker *sampling.Broker) gateway.Provider {
	return gateway.Provider{
		Name:        "rephrase_sentence",
		Description: "Rephrase a sentence to improve clarity or style.",
		ParamSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"sentence": {
					"type": "string",
					"minLength": 1,
					"description": "Sentence to be rephrased"
				}
			},
			"required": ["sentence"]
		}`),
		Handler: func(ctx context.Context, params map[string]any, _ progress.Sink) (any, error) {
			sentence, _ := params["sentence"].(string)

			res := broker.Rephrase(ctx, sentence)
			return map[string]any{
				"original":  sentence,
				"rephrased": res.Text,
				"degraded":  res.Degraded,
			}, nil
		},
	}
}
