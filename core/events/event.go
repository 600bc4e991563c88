package events

import "sync"

// Event represents a structured state change emitted by the engine.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers,
// off-chain audit pipelines).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Sink buffers emitted events in memory. The RPC server reads it to serve the
// audit stream and tests use it to assert on emitted payloads.
type Sink struct {
	mu     sync.Mutex
	events []Event
	cap    int
}

// NewSink constructs a sink retaining at most cap events. A non-positive cap
// disables trimming.
func NewSink(cap int) *Sink {
	return &Sink{cap: cap}
}

// Emit implements the Emitter interface.
func (s *Sink) Emit(evt Event) {
	if s == nil || evt == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	if s.cap > 0 && len(s.events) > s.cap {
		s.events = s.events[len(s.events)-s.cap:]
	}
}

// Events returns a snapshot of the buffered events in emission order.
func (s *Sink) Events() []Event {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
