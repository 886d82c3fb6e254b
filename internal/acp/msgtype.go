// Package acp defines the Agent Communication Protocol: the typed, immutable
// message envelope exchanged between agents, and the payload variants that go
// with each message type.
package acp

// MsgType identifies the kind of message carried by an envelope.
// The set is closed: every envelope carries exactly one of these.
type MsgType string

const (
	MsgTaskAssign         MsgType = "task_assign"
	MsgStatusUpdate       MsgType = "status_update"
	MsgDataSubmit         MsgType = "data_submit"
	MsgValidationRequest  MsgType = "validation_request"
	MsgValidationResponse MsgType = "validation_response"
	MsgLogBroadcast       MsgType = "log_broadcast"
)

// Valid reports whether t is one of the known message types.
func (t MsgType) Valid() bool {
	switch t {
	case MsgTaskAssign, MsgStatusUpdate, MsgDataSubmit,
		MsgValidationRequest, MsgValidationResponse, MsgLogBroadcast:
		return true
	}
	return false
}
