// Package registry is the single source of truth for component kinds and
// live component instances on a page. A Manager maps each Kind to the
// factory that builds it, creates and tracks instances by id, destroys them
// on request, and rebuilds instances whose page wiring went stale after a
// cache restore.
package registry

import (
	"context"
	"sort"
	"time"

	"github.com/conneroisu/pagekit/internal/component"
)

// EventType represents the type of registry event
type EventType int

const (
	EventTypeRegistered EventType = iota
	EventTypeReplaced
	EventTypeCreated
	EventTypeDestroyed
	EventTypeRecovered
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeRegistered:
		return "registered"
	case EventTypeReplaced:
		return "replaced"
	case EventTypeCreated:
		return "created"
	case EventTypeDestroyed:
		return "destroyed"
	case EventTypeRecovered:
		return "recovered"
	default:
		return "unknown"
	}
}

// Event represents a change in the registry
type Event struct {
	Type      EventType
	Kind      component.Kind
	ID        string
	Timestamp time.Time
}

// Register stores factory for kind. Registering a kind again replaces the
// earlier factory; the last registration wins.
func (m *Manager) Register(kind component.Kind, factory component.Factory) {
	m.mu.Lock()
	_, exists := m.factories[kind]
	m.factories[kind] = factory
	m.mu.Unlock()

	eventType := EventTypeRegistered
	if exists {
		eventType = EventTypeReplaced
		m.logger.Debug(context.Background(), "Replacing component factory", "kind", kind)
	}
	m.notify(Event{Type: eventType, Kind: kind})
}

// Registered reports whether kind has a factory.
func (m *Manager) Registered(kind component.Kind) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.factories[kind]
	return ok
}

// Kinds returns the registered kinds in sorted order.
func (m *Manager) Kinds() []component.Kind {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kinds := make([]component.Kind, 0, len(m.factories))
	for k := range m.factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Unregister drops the factory for kind. Live instances are unaffected.
func (m *Manager) Unregister(kind component.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.factories, kind)
}

// Watch returns a channel that receives registry events
func (m *Manager) Watch() <-chan Event {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	ch := make(chan Event, 100)
	m.watchers = append(m.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (m *Manager) UnWatch(ch <-chan Event) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	for i, watcher := range m.watchers {
		if watcher == ch {
			close(watcher)
			m.watchers = append(m.watchers[:i], m.watchers[i+1:]...)
			break
		}
	}
}

func (m *Manager) notify(event Event) {
	event.Timestamp = time.Now()

	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	for _, watcher := range m.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}
