package dom

import (
	"fmt"
)

// ListenerID identifies one registered listener on one target.
type ListenerID uint64

// Listener handles a dispatched event.
type Listener func(ev *Event)

// ListenerOptions mirrors the subset of addEventListener options we support.
type ListenerOptions struct {
	// Once removes the listener before its first invocation.
	Once bool
}

// EventTarget is implemented by nodes and the window.
type EventTarget interface {
	AddEventListener(eventType string, fn Listener, opts ListenerOptions) ListenerID
	RemoveEventListener(id ListenerID) bool
	HasEventListener(id ListenerID) bool
	DispatchEvent(ev *Event) bool
}

// Event is a DOM event. Target is nil for window events.
type Event struct {
	Type          string
	Target        *Node
	CurrentTarget EventTarget
	Detail        any
	Bubbles       bool

	stopped          bool
	defaultPrevented bool
}

// NewEvent returns a bubbling event.
func NewEvent(eventType string, detail any) *Event {
	return &Event{Type: eventType, Detail: detail, Bubbles: true}
}

// StopPropagation prevents the event from reaching further ancestors.
func (e *Event) StopPropagation() { e.stopped = true }

// PreventDefault marks the event as handled.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

type listenerEntry struct {
	id        ListenerID
	eventType string
	fn        Listener
	once      bool
}

// listenerSet is guarded by the owning document's mutex.
type listenerSet struct {
	entries []listenerEntry
}

func (s *listenerSet) add(e listenerEntry) {
	s.entries = append(s.entries, e)
}

func (s *listenerSet) remove(id ListenerID) bool {
	for i, e := range s.entries {
		if e.id == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (s *listenerSet) has(id ListenerID) bool {
	for _, e := range s.entries {
		if e.id == id {
			return true
		}
	}
	return false
}

func (s *listenerSet) clear() {
	s.entries = nil
}

// take returns the listeners for eventType in registration order and drops
// the once entries from the set.
func (s *listenerSet) take(eventType string) []listenerEntry {
	var out []listenerEntry
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.eventType == eventType {
			out = append(out, e)
			if e.once {
				continue
			}
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return out
}

// invoke runs each listener in isolation. A panicking listener is reported
// and its siblings still run.
func invoke(doc *Document, ev *Event, entries []listenerEntry) {
	for _, e := range entries {
		func() {
			defer func() {
				if r := recover(); r != nil {
					doc.report(fmt.Errorf("listener for %q panicked: %v", ev.Type, r))
				}
			}()
			e.fn(ev)
		}()
	}
}

// Window is the page-level event target.
type Window struct {
	doc       *Document
	listeners listenerSet
}

// PageShowDetail is the Detail of a pageshow event.
type PageShowDetail struct {
	// Persisted is true when the page came out of the back/forward cache.
	Persisted bool
}

// AddEventListener registers fn for eventType on the window.
func (w *Window) AddEventListener(eventType string, fn Listener, opts ListenerOptions) ListenerID {
	id := w.doc.newListenerID()
	w.doc.mu.Lock()
	defer w.doc.mu.Unlock()
	w.listeners.add(listenerEntry{id: id, eventType: eventType, fn: fn, once: opts.Once})
	return id
}

// RemoveEventListener removes a listener; false if it was not registered.
func (w *Window) RemoveEventListener(id ListenerID) bool {
	w.doc.mu.Lock()
	defer w.doc.mu.Unlock()
	return w.listeners.remove(id)
}

// HasEventListener reports whether id is still registered.
func (w *Window) HasEventListener(id ListenerID) bool {
	w.doc.mu.Lock()
	defer w.doc.mu.Unlock()
	return w.listeners.has(id)
}

// DispatchEvent delivers ev to window listeners. Window events do not bubble.
func (w *Window) DispatchEvent(ev *Event) bool {
	w.doc.mu.Lock()
	entries := w.listeners.take(ev.Type)
	w.doc.mu.Unlock()

	ev.CurrentTarget = w
	invoke(w.doc, ev, entries)
	return !ev.defaultPrevented
}

// PageShow dispatches a pageshow event.
func (w *Window) PageShow(persisted bool) {
	w.DispatchEvent(&Event{Type: "pageshow", Detail: PageShowDetail{Persisted: persisted}})
}
