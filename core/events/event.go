package events

import "vaultledger/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. metrics, logs).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Multi fans every event out to each wrapped emitter in order.
type Multi []Emitter

// Emit implements the Emitter interface.
func (m Multi) Emit(evt Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Recorder keeps every emitted event in memory. Tests use it to assert on
// emitted payloads.
type Recorder struct {
	Events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) { r.Events = append(r.Events, evt) }

// Types returns the recorded event types in emission order.
func (r *Recorder) Types() []string {
	out := make([]string, 0, len(r.Events))
	for _, evt := range r.Events {
		out = append(out, evt.EventType())
	}
	return out
}

// Buffer holds events until the surrounding transition commits. Flush
// forwards them to Next in order; Drop discards them.
type Buffer struct {
	Next    Emitter
	pending []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) { b.pending = append(b.pending, evt) }

// Flush forwards every buffered event and empties the buffer.
func (b *Buffer) Flush() {
	pending := b.pending
	b.pending = nil
	if b.Next == nil {
		return
	}
	for _, evt := range pending {
		b.Next.Emit(evt)
	}
}

// Drop discards every buffered event.
func (b *Buffer) Drop() { b.pending = nil }

// Len reports how many events are buffered.
func (b *Buffer) Len() int { return len(b.pending) }
