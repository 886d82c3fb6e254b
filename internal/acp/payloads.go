package acp

// Payload is the content variant of an envelope. Each message type has
// exactly one payload struct; NewDirect / NewBroadcast validate the payload
// against the JSON schema registered for its type.
type Payload interface {
	Kind() MsgType
}

// TaskAssign asks an agent to perform a unit of work.
type TaskAssign struct {
	TaskType string         `json:"task_type"`
	TaskData map[string]any `json:"task_data"`
	Priority int            `json:"priority"` // 1 = high … 5 = low
}

func (TaskAssign) Kind() MsgType { return MsgTaskAssign }

// StatusUpdate reports progress or state changes to another agent.
type StatusUpdate struct {
	Status   string   `json:"status"`
	Progress *float64 `json:"progress,omitempty"` // percent, 0–100
	TaskID   string   `json:"task_id,omitempty"`
}

func (StatusUpdate) Kind() MsgType { return MsgStatusUpdate }

// DataSubmit carries processed data or results.
type DataSubmit struct {
	DataType string `json:"data_type"`
	Data     any    `json:"data"`
	Source   string `json:"source,omitempty"`
	TaskID   string `json:"task_id,omitempty"`
}

func (DataSubmit) Kind() MsgType { return MsgDataSubmit }

// ValidationRequest asks for a claim to be checked.
type ValidationRequest struct {
	Claim          string `json:"claim"`
	SourceURL      string `json:"source_url,omitempty"`
	ValidationType string `json:"validation_type"`
}

func (ValidationRequest) Kind() MsgType { return MsgValidationRequest }

// ValidationResponse answers a ValidationRequest.
type ValidationResponse struct {
	IsValid    bool    `json:"is_valid"`
	Confidence float64 `json:"confidence"` // 0–1
	Evidence   string  `json:"evidence,omitempty"`
	Source     string  `json:"source,omitempty"`
}

func (ValidationResponse) Kind() MsgType { return MsgValidationResponse }

// LogBroadcast is a log line fanned out to every subscriber of a log topic.
type LogBroadcast struct {
	Level     string `json:"level"` // INFO, DEBUG, WARNING, ERROR
	Message   string `json:"message"`
	Component string `json:"component,omitempty"`
}

func (LogBroadcast) Kind() MsgType { return MsgLogBroadcast }
