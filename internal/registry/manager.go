package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/conneroisu/pagekit/internal/component"
	"github.com/conneroisu/pagekit/internal/dom"
	"github.com/conneroisu/pagekit/internal/errors"
	"github.com/conneroisu/pagekit/internal/eventbus"
	"github.com/conneroisu/pagekit/internal/logging"
	"github.com/conneroisu/pagekit/internal/storage"
)

// Manager tracks component factories and live instances for one page.
type Manager struct {
	mu        sync.RWMutex
	factories map[component.Kind]component.Factory
	instances map[string]*entry
	order     []string

	watchMu  sync.Mutex
	watchers []chan Event

	env      component.Env
	failures *errors.ErrorCollector
	logger   logging.Logger
	newID    func(component.Kind) string
}

type entry struct {
	comp component.Component
	cfg  component.Config
}

// Option configures a Manager.
type Option func(*Manager)

// WithDocument binds the manager to a page.
func WithDocument(doc *dom.Document) Option {
	return func(m *Manager) { m.env.Document = doc }
}

// WithBus shares an event bus between instances.
func WithBus(bus *eventbus.Bus) Option {
	return func(m *Manager) { m.env.Bus = bus }
}

// WithStore sets the key-value store used for persisted widget state.
func WithStore(store storage.Store) Option {
	return func(m *Manager) { m.env.Store = store }
}

// WithClock sets the clock owned timers run on.
func WithClock(clock component.Clock) Option {
	return func(m *Manager) { m.env.Clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(m *Manager) { m.logger = logging.OrNop(logger) }
}

// WithIDGenerator overrides how instance ids are minted.
func WithIDGenerator(fn func(component.Kind) string) Option {
	return func(m *Manager) { m.newID = fn }
}

// New creates a Manager. Without options it has no document, so every
// instance created by selector is inert.
func New(opts ...Option) *Manager {
	m := &Manager{
		factories: make(map[component.Kind]component.Factory),
		instances: make(map[string]*entry),
		failures:  errors.NewErrorCollector(),
		logger:    logging.NopLogger{},
		newID:     ulidID,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("registry")
	if m.env.Bus == nil {
		m.env.Bus = eventbus.New(m.logger)
	}
	if m.env.Clock == nil {
		m.env.Clock = component.RealClock{}
	}
	m.env.Logger = m.logger
	m.env.OnFailure = m.failures.Add
	if m.env.Document != nil {
		m.env.Document.SetErrorReporter(func(err error) {
			m.logger.Error(context.Background(), err, "DOM listener failed")
		})
	}
	return m
}

func ulidID(kind component.Kind) string {
	return string(kind) + "-" + strings.ToLower(ulid.Make().String())
}

// Bus returns the shared event bus.
func (m *Manager) Bus() *eventbus.Bus { return m.env.Bus }

// Document returns the page document.
func (m *Manager) Document() *dom.Document { return m.env.Document }

// Failures returns the collector of init failures.
func (m *Manager) Failures() *errors.ErrorCollector { return m.failures }

// Create builds a new, uninitialized instance of kind and starts tracking
// it. Unknown kinds and failing factories are logged and yield nil.
func (m *Manager) Create(kind component.Kind, cfg component.Config) component.Component {
	ctx := context.Background()
	cfg.Kind = kind

	m.mu.RLock()
	factory, ok := m.factories[kind]
	m.mu.RUnlock()
	if !ok {
		m.logger.Warn(ctx, errors.ErrUnknownKind, "Cannot create component", "kind", kind)
		return nil
	}

	id := m.newID(kind)
	comp, err := component.Build(factory, id, cfg, m.env)
	if err != nil {
		m.logger.Warn(ctx, err, "Component factory failed", "kind", kind)
		return nil
	}

	m.mu.Lock()
	m.instances[id] = &entry{comp: comp, cfg: cfg}
	m.order = append(m.order, id)
	m.mu.Unlock()

	m.notify(Event{Type: EventTypeCreated, Kind: kind, ID: id})
	return comp
}

// CreateAndInit is Create followed by Init. Init failures leave the
// instance tracked in the failed state; the instance is still returned.
func (m *Manager) CreateAndInit(ctx context.Context, kind component.Kind, cfg component.Config) component.Component {
	comp := m.Create(kind, cfg)
	if comp == nil {
		return nil
	}
	_ = comp.Core().Init(ctx)
	return comp
}

// Get returns the live instance with id.
func (m *Manager) Get(id string) (component.Component, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.instances[id]
	if !ok {
		return nil, false
	}
	return e.comp, true
}

// ByKind returns the live instances of kind in creation order.
func (m *Manager) ByKind(kind component.Kind) []component.Component {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []component.Component
	for _, id := range m.order {
		if e := m.instances[id]; e.cfg.Kind == kind {
			out = append(out, e.comp)
		}
	}
	return out
}

// First returns the oldest live instance of kind, for the common one
// widget per page case.
func (m *Manager) First(kind component.Kind) component.Component {
	if all := m.ByKind(kind); len(all) > 0 {
		return all[0]
	}
	return nil
}

// Find returns the live instance of kind bound to selector, if any.
func (m *Manager) Find(kind component.Kind, selector string) component.Component {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		e := m.instances[id]
		if e.cfg.Kind == kind && e.cfg.Selector == selector {
			return e.comp
		}
	}
	return nil
}

// Instances returns every live instance in creation order.
func (m *Manager) Instances() []component.Component {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]component.Component, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.instances[id].comp)
	}
	return out
}

// Count returns the number of live instances.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}

// Destroy destroys and untracks the instance with id. Unknown ids are a
// no-op and return false.
func (m *Manager) Destroy(id string) bool {
	e := m.untrack(id)
	if e == nil {
		return false
	}
	e.comp.Core().Destroy()
	m.notify(Event{Type: EventTypeDestroyed, Kind: e.cfg.Kind, ID: id})
	return true
}

// DestroyAll tears down every live instance, newest first.
func (m *Manager) DestroyAll() int {
	m.mu.RLock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	m.mu.RUnlock()

	destroyed := 0
	for i := len(ids) - 1; i >= 0; i-- {
		if m.Destroy(ids[i]) {
			destroyed++
		}
	}
	return destroyed
}

func (m *Manager) untrack(id string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.instances[id]
	if !ok {
		return nil
	}
	delete(m.instances, id)
	for i, other := range m.order {
		if other == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return e
}

// ReinitializeAfterCacheRestore rebuilds every instance whose page wiring
// went stale, typically after the browser restored a cached snapshot of
// the page. Each affected instance is destroyed and a fresh one is created
// from the same kind and config and initialized, so no listener is ever
// layered on top of a stale one. It returns how many instances came back
// ready.
func (m *Manager) ReinitializeAfterCacheRestore(ctx context.Context) int {
	perf := logging.StartOperation(m.logger, "reinitialize")

	m.mu.RLock()
	var stale []string
	for _, id := range m.order {
		if m.instances[id].comp.Core().Stale() {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	recovered := 0
	for _, id := range stale {
		m.mu.RLock()
		e, ok := m.instances[id]
		m.mu.RUnlock()
		if !ok {
			continue
		}

		cfg := e.cfg
		root, ok := m.restoredRoot(cfg)
		m.Destroy(id)
		if !ok {
			m.logger.Warn(ctx, fmt.Errorf("instance %s not recovered", id), "Component root left the page",
				"kind", cfg.Kind)
			continue
		}
		cfg.Root = root

		fresh := m.CreateAndInit(ctx, cfg.Kind, cfg)
		if fresh == nil || fresh.Core().State() != component.StateReady || !fresh.Core().Root().IsConnected() {
			m.logger.Warn(ctx, fmt.Errorf("instance %s not recovered", id), "Cache restore recovery failed",
				"kind", cfg.Kind)
			continue
		}
		recovered++
		m.notify(Event{Type: EventTypeRecovered, Kind: cfg.Kind, ID: fresh.Core().ID()})
	}

	perf.End(ctx, "stale", len(stale), "recovered", recovered)
	return recovered
}

// restoredRoot decides where a rebuilt instance attaches. Selector configs
// resolve again on the restored page. An explicit root is kept while it is
// still connected; a detached one is looked up by its id. It reports false
// when the instance has nowhere to go.
func (m *Manager) restoredRoot(cfg component.Config) (*dom.Node, bool) {
	switch {
	case cfg.Selector != "":
		return nil, true
	case cfg.Root == nil:
		return nil, false
	case cfg.Root.IsConnected():
		return cfg.Root, true
	}
	if m.env.Document == nil {
		return nil, false
	}
	if found := m.env.Document.ElementByID(cfg.Root.ID()); found != nil {
		return found, true
	}
	return nil, false
}

// WatchCacheRestore reinitializes stale instances whenever the window
// reports a pageshow from the back/forward cache. The returned function
// stops watching.
func (m *Manager) WatchCacheRestore(win *dom.Window) func() {
	id := win.AddEventListener("pageshow", func(ev *dom.Event) {
		if detail, ok := ev.Detail.(dom.PageShowDetail); ok && detail.Persisted {
			m.ReinitializeAfterCacheRestore(context.Background())
		}
	}, dom.ListenerOptions{})
	return func() { win.RemoveEventListener(id) }
}
