package models

import "sync"

// ============================================================================
// Event Bus
//
// Cross-component signaling between the sync engine, the optimistic note
// state and UI consumers. An injectable observer registry rather than a
// process-wide channel so tests can assert on emitted events without
// global state leaking between cases.
// ============================================================================

// Event names published on the bus. These two are the only integration
// points UI consumers are expected to observe.
const (
	EventNoteCreated = "noteCreated"
	EventNoteSynced  = "noteSynced"
)

// Event carries the name and the local id of the affected note.
type Event struct {
	Name   string
	NoteID string
}

// Bus is a minimal publish/subscribe registry. Handlers run synchronously
// on the publishing goroutine, in subscription order.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string]map[int]func(Event)
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string]map[int]func(Event))}
}

// Subscribe registers fn for events with the given name and returns an
// unsubscribe function.
func (b *Bus) Subscribe(name string, fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[name] == nil {
		b.handlers[name] = make(map[int]func(Event))
	}
	id := b.nextID
	b.nextID++
	b.handlers[name][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[name], id)
	}
}

// Publish delivers ev to every subscriber of ev.Name.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.handlers[ev.Name]))
	for _, fn := range b.handlers[ev.Name] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
