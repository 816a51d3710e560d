package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter — decouples services from wailsRuntime
// ─────────────────────────────────────────────────────────────

// Events emitted to the frontend.
const (
	EventMapChanged    = "map:changed"    // payload: domain.MapView
	EventMapNotice     = "map:notice"     // payload: domain.Notice
	EventMarkersLoaded = "markers:loaded" // payload: *etl.Result
)

// EventEmitter is an interface for emitting events to the frontend.
// The App struct implements this by delegating to wailsRuntime.EventsEmit.
// Services receive this interface instead of a wailsRuntime context,
// which makes them independently testable with a mock emitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// NoopEmitter drops every event. Used by headless modes.
type NoopEmitter struct{}

func (NoopEmitter) Emit(_ context.Context, _ string, _ any) {}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Named returns the recorded events with the given name, oldest first.
func (m *MockEmitter) Named(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EmittedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets all recorded events.
func (m *MockEmitter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = nil
}
