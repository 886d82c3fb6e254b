package bus

import "errors"

var (
	// ErrDuplicateID is returned by Register when the agent id is taken.
	ErrDuplicateID = errors.New("bus: agent id already registered")
	// ErrUnroutable is returned when a message is addressed to an agent that
	// is not (or no longer) registered. Never silently dropped.
	ErrUnroutable = errors.New("bus: no registered receiver for message")
	// ErrQueueFull is returned when a receiver inbox stays full past the
	// backpressure timeout.
	ErrQueueFull = errors.New("bus: receiver inbox full")
)
