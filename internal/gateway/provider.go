package gateway

import (
	"context"
	"encoding/json"

	"github.com/synapse-agents/synapse/internal/progress"
)

// HandlerFunc executes one tool call. Params arrive schema-validated. The
// sink is always non-nil; handlers report progress through it and leave the
// terminal event to the gateway. Handlers must watch ctx for cooperative
// cancellation.
type HandlerFunc func(ctx context.Context, params map[string]any, sink progress.Sink) (any, error)

// Provider is one registered tool: the externally supplied capability plus
// the metadata the gateway needs to guard it.
type Provider struct {
	// Name is the unique tool name.
	Name string
	// Description is shown to callers listing the registry.
	Description string
	// ParamSchema is the JSON Schema for the tool's parameters, compiled at
	// registration and enforced on every invocation.
	ParamSchema json.RawMessage
	// PathParams names the string parameters that hold filesystem paths.
	// Each one must pass the root validator before the handler runs.
	PathParams []string
	// Handler executes the call.
	Handler HandlerFunc
}
