package acp

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Payload schemas, one per message type. Compiled once on first use and then
// applied to every envelope at construction, so handlers never see a payload
// that does not match its declared shape.

const taskAssignSchema = `{
	"type": "object",
	"properties": {
		"task_type": {"type": "string", "minLength": 1},
		"task_data": {"type": "object"},
		"priority": {"type": "integer", "minimum": 1, "maximum": 5}
	},
	"required": ["task_type", "task_data", "priority"]
}`

const statusUpdateSchema = `{
	"type": "object",
	"properties": {
		"status": {"type": "string", "minLength": 1},
		"progress": {"type": "number", "minimum": 0, "maximum": 100},
		"task_id": {"type": "string"}
	},
	"required": ["status"]
}`

const dataSubmitSchema = `{
	"type": "object",
	"properties": {
		"data_type": {"type": "string", "minLength": 1},
		"source": {"type": "string"},
		"task_id": {"type": "string"}
	},
	"required": ["data_type", "data"]
}`

const validationRequestSchema = `{
	"type": "object",
	"properties": {
		"claim": {"type": "string", "minLength": 1},
		"source_url": {"type": "string"},
		"validation_type": {"type": "string", "minLength": 1}
	},
	"required": ["claim", "validation_type"]
}`

const validationResponseSchema = `{
	"type": "object",
	"properties": {
		"is_valid": {"type": "boolean"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"evidence": {"type": "string"},
		"source": {"type": "string"}
	},
	"required": ["is_valid", "confidence"]
}`

const logBroadcastSchema = `{
	"type": "object",
	"properties": {
		"level": {"type": "string", "enum": ["DEBUG", "INFO", "WARNING", "ERROR"]},
		"message": {"type": "string"},
		"component": {"type": "string"}
	},
	"required": ["level", "message"]
}`

type schemaRegistry struct {
	once    sync.Once
	initErr error
	byType  map[MsgType]*jsonschema.Schema
}

var payloadSchemas schemaRegistry

func initPayloadSchemas() error {
	payloadSchemas.once.Do(func() {
		sources := map[MsgType]string{
			MsgTaskAssign:         taskAssignSchema,
			MsgStatusUpdate:       statusUpdateSchema,
			MsgDataSubmit:         dataSubmitSchema,
			MsgValidationRequest:  validationRequestSchema,
			MsgValidationResponse: validationResponseSchema,
			MsgLogBroadcast:       logBroadcastSchema,
		}

		payloadSchemas.byType = make(map[MsgType]*jsonschema.Schema, len(sources))
		for kind, src := range sources {
			compiled, err := jsonschema.CompileString("acp_"+string(kind), src)
			if err != nil {
				payloadSchemas.initErr = err
				return
			}
			payloadSchemas.byType[kind] = compiled
		}
	})
	return payloadSchemas.initErr
}

// validatePayload marshals p and checks it against the schema for its kind.
func validatePayload(p Payload) error {
	if err := initPayloadSchemas(); err != nil {
		return err
	}

	schema := payloadSchemas.byType[p.Kind()]
	if schema == nil {
		return fmt.Errorf("no schema registered for message type %q", p.Kind())
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", p.Kind(), err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%s payload: %w", p.Kind(), err)
	}
	return nil
}
