package acp

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoDestination is returned when neither a receiver nor a topic is set.
	ErrNoDestination = errors.New("acp: message needs a receiver or a topic")
	// ErrAmbiguousDestination is returned when both a receiver and a topic are set.
	ErrAmbiguousDestination = errors.New("acp: message cannot have both a receiver and a topic")
)

// Message is one immutable envelope exchanged between agents.
//
// Exactly one of receiver / topic is set: receiver for direct delivery,
// topic for broadcast. All fields are fixed at construction, so a Message
// can be handed across goroutines without copying or locking.
type Message struct {
	sender        string
	receiver      string // direct destination, empty for broadcasts
	topic         string // broadcast destination, empty for direct messages
	msgType       MsgType
	payload       Payload
	correlationID string
	timestamp     time.Time
}

// NewDirect builds a validated direct message from sender to receiver.
func NewDirect(sender, receiver string, payload Payload) (Message, error) {
	return newMessage(sender, receiver, "", payload)
}

// NewBroadcast builds a validated broadcast message on topic.
func NewBroadcast(sender, topic string, payload Payload) (Message, error) {
	return newMessage(sender, "", topic, payload)
}

func newMessage(sender, receiver, topic string, payload Payload) (Message, error) {
	if sender == "" {
		return Message{}, errors.New("acp: sender is required")
	}
	if receiver == "" && topic == "" {
		return Message{}, ErrNoDestination
	}
	if receiver != "" && topic != "" {
		return Message{}, ErrAmbiguousDestination
	}
	if payload == nil {
		return Message{}, errors.New("acp: payload is required")
	}
	if !payload.Kind().Valid() {
		return Message{}, fmt.Errorf("acp: unknown message type %q", payload.Kind())
	}
	if err := validatePayload(payload); err != nil {
		return Message{}, err
	}

	return Message{
		sender:        sender,
		receiver:      receiver,
		topic:         topic,
		msgType:       payload.Kind(),
		payload:       payload,
		correlationID: uuid.NewString(),
		timestamp:     time.Now(),
	}, nil
}

func (m Message) Sender() string          { return m.sender }
func (m Message) Receiver() string        { return m.receiver }
func (m Message) Topic() string           { return m.topic }
func (m Message) Type() MsgType           { return m.msgType }
func (m Message) Payload() Payload        { return m.payload }
func (m Message) CorrelationID() string   { return m.correlationID }
func (m Message) Timestamp() time.Time    { return m.timestamp }
func (m Message) IsBroadcast() bool       { return m.topic != "" }

// WithCorrelationID returns a copy of m carrying the given correlation id.
// Used to tie responses back to the request they answer.
func (m Message) WithCorrelationID(id string) Message {
	m.correlationID = id
	return m
}
