package events

import "permitledger/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
	// Event renders the wire representation stored in the event log.
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. the event log).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects events in emission order. The contract host hands a fresh
// Buffer to every call and only persists its contents after all checks pass.
type Buffer struct {
	events []Event
}

// Emit appends evt.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Events returns the buffered events.
func (b *Buffer) Events() []Event {
	return append([]Event(nil), b.events...)
}

// Reset drops all buffered events.
func (b *Buffer) Reset() { b.events = nil }

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

// Emit implements the Emitter interface.
func (f EmitterFunc) Emit(evt Event) { f(evt) }
