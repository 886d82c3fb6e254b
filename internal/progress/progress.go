// Package progress provides the bounded event stream used to report
// incremental status for long-running tool invocations.
package progress

import "sync"

// Event is one status update for an invocation. Percent never decreases
// within a stream, and every stream ends with exactly one terminal event.
type Event struct {
	InvocationID string
	Message      string
	Percent      float64
	Terminal     bool
	Err          error // set on a terminal failure event
}

// Sink is the provider-facing side of a stream. A tool handler reports
// progress through it; it never emits terminal events — the stream owner does
// that once, via Succeed or Fail.
type Sink interface {
	Report(message string, percent float64)
}

// Stream is a bounded, single-invocation progress channel.
//
// Non-terminal events are lossy: when the buffer is full the newest update is
// dropped rather than blocking the producer. The terminal event is never
// dropped; if needed, the oldest buffered event is evicted to make room.
// The event channel is closed after the terminal event, so consumers can
// simply range over Events().
type Stream struct {
	invocationID string

	mu       sync.Mutex
	last     float64
	finished bool
	ch       chan Event
}

// NewStream creates a stream for the given invocation with the given buffer
// capacity (minimum 1, so the terminal event always fits).
func NewStream(invocationID string, capacity int) *Stream {
	if capacity < 1 {
		capacity = 1
	}
	return &Stream{
		invocationID: invocationID,
		ch:           make(chan Event, capacity),
	}
}

// InvocationID returns the id of the invocation this stream belongs to.
func (s *Stream) InvocationID() string { return s.invocationID }

// Events returns the consumer side of the stream.
func (s *Stream) Events() <-chan Event { return s.ch }

// Report emits a non-terminal progress event. Percent is clamped so the
// stream is monotonically non-decreasing; reports after the terminal event
// are ignored.
func (s *Stream) Report(message string, percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	if percent < s.last {
		percent = s.last
	}
	if percent > 100 {
		percent = 100
	}
	s.last = percent

	ev := Event{InvocationID: s.invocationID, Message: message, Percent: percent}
	select {
	case s.ch <- ev:
	default:
		// Buffer full: drop this update rather than stall the provider.
	}
}

// Succeed emits the terminal success event at 100 percent and closes the
// stream. Only the first terminal call takes effect.
func (s *Stream) Succeed(message string) {
	s.finish(Event{
		InvocationID: s.invocationID,
		Message:      message,
		Percent:      100,
		Terminal:     true,
	})
}

// Fail emits the terminal failure event and closes the stream. The percent
// stays at the last reported value. Only the first terminal call takes effect.
func (s *Stream) Fail(err error) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	s.finish(Event{
		InvocationID: s.invocationID,
		Message:      "failed",
		Percent:      last,
		Terminal:     true,
		Err:          err,
	})
}

func (s *Stream) finish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	s.last = ev.Percent

	// The terminal event must always land: evict buffered events until the
	// send goes through. A concurrent consumer may drain the channel at any
	// point, so eviction and send race in one select rather than assuming a
	// receive is still possible after a failed send.
	for {
		select {
		case s.ch <- ev:
			close(s.ch)
			return
		case <-s.ch:
		}
	}
}
