// Package eventbus is the process-wide publish/subscribe channel widgets use
// to notify each other. Emission is synchronous: every handler subscribed to
// an event name runs, in subscription order, before Emit returns. The bus
// keeps no history, so a late subscriber misses earlier emissions.
package eventbus

import (
	"context"
	"sync"

	"github.com/conneroisu/pagekit/internal/errors"
	"github.com/conneroisu/pagekit/internal/logging"
)

// Handler receives an emitted payload.
type Handler func(payload any)

// Subscription is the opaque handle returned by On.
type Subscription struct {
	id   uint64
	name string
}

// Valid reports whether s came from a bus.
func (s Subscription) Valid() bool { return s.id != 0 }

type subscriber struct {
	id      uint64
	owner   string
	handler Handler
}

// Bus is a named-event publish/subscribe channel.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string][]subscriber
	logger logging.Logger
}

// New creates an empty bus. A nil logger discards handler failures.
func New(logger logging.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]subscriber),
		logger: logging.OrNop(logger).WithComponent("eventbus"),
	}
}

// On subscribes handler to name.
func (b *Bus) On(name string, handler Handler) Subscription {
	return b.OnOwned("", name, handler)
}

// OnOwned subscribes handler to name on behalf of owner, so that
// OffOwner can drop every subscription of a destroyed component at once.
func (b *Bus) OnOwned(owner, name string, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[name] = append(b.subs[name], subscriber{id: b.nextID, owner: owner, handler: handler})
	return Subscription{id: b.nextID, name: name}
}

// Off removes exactly the given subscription. Removing twice is a no-op.
func (b *Bus) Off(s Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[s.name]
	for i, sub := range list {
		if sub.id == s.id {
			b.subs[s.name] = append(list[:i:i], list[i+1:]...)
			if len(b.subs[s.name]) == 0 {
				delete(b.subs, s.name)
			}
			return true
		}
	}
	return false
}

// OffOwner removes every subscription made by owner and returns how many.
func (b *Bus) OffOwner(owner string) int {
	if owner == "" {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for name, list := range b.subs {
		kept := make([]subscriber, 0, len(list))
		for _, sub := range list {
			if sub.owner == owner {
				removed++
				continue
			}
			kept = append(kept, sub)
		}
		if len(kept) == 0 {
			delete(b.subs, name)
		} else {
			b.subs[name] = kept
		}
	}
	return removed
}

// Emit synchronously invokes every handler subscribed to name. A handler
// that panics is logged and does not stop its siblings.
func (b *Bus) Emit(name string, payload any) {
	b.mu.Lock()
	list := b.subs[name]
	snapshot := make([]subscriber, len(list))
	copy(snapshot, list)
	b.mu.Unlock()

	for _, sub := range snapshot {
		b.call(name, sub, payload)
	}
}

func (b *Bus) call(name string, sub subscriber, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(context.Background(), errors.FromPanic(r), "Event handler failed",
				"event", name, "owner", sub.owner)
		}
	}()
	sub.handler(payload)
}

// Count returns the number of subscribers for name.
func (b *Bus) Count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[name])
}
