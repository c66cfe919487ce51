// Package component defines the lifecycle unit every theme widget is built
// on. A widget embeds *Base, which resolves its DOM root, tracks the
// listeners, timers and bus subscriptions the widget acquires, and releases
// all of them exactly once when the instance is destroyed.
//
// Widgets implement Component by embedding *Base and providing Setup and
// Teardown hooks; they never manage their own listener bookkeeping.
package component

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/conneroisu/pagekit/internal/dom"
	"github.com/conneroisu/pagekit/internal/errors"
	"github.com/conneroisu/pagekit/internal/eventbus"
	"github.com/conneroisu/pagekit/internal/logging"
	"github.com/conneroisu/pagekit/internal/storage"
)

const (
	// AttrID stamps the owning instance id on an initialized root.
	AttrID = "data-component-id"
	// AttrKind stamps the owning kind on an initialized root.
	AttrKind = "data-component"

	storagePrefix = "pagekit"
)

// Component is implemented by every widget.
type Component interface {
	// Core returns the embedded lifecycle base.
	Core() *Base
	// Setup runs once during Init. ctx is cancelled when the instance is
	// destroyed, including while Setup is still running.
	Setup(ctx context.Context) error
	// Teardown runs once during Destroy, after every owned resource has
	// been released.
	Teardown()
}

// Factory builds a widget around a prepared base.
type Factory func(base *Base) Component

// Config describes one instance.
type Config struct {
	Kind Kind
	// Selector locates the root; the first match wins.
	Selector string
	// Root, when set, is used instead of Selector.
	Root    *dom.Node
	Options map[string]any
}

// Option returns a configured option or def.
func (c Config) Option(key string, def any) any {
	if v, ok := c.Options[key]; ok {
		return v
	}
	return def
}

// Env carries the collaborators shared by all instances of one registry.
type Env struct {
	Document *dom.Document
	Bus      *eventbus.Bus
	Store    storage.Store
	Clock    Clock
	Logger   logging.Logger
	// OnFailure is told about every init failure.
	OnFailure func(*errors.ComponentError)
}

// Envelope wraps payloads emitted through Base.Emit.
type Envelope struct {
	Source   Kind
	SourceID string
	Payload  any
}

// TimerID identifies an owned timer.
type TimerID uint64

// Resource is one listener owned by an instance.
type Resource struct {
	Target  dom.EventTarget
	Type    string
	ID      dom.ListenerID
	Options dom.ListenerOptions
}

// Base is the lifecycle core embedded by widgets.
type Base struct {
	id     string
	cfg    Config
	env    Env
	logger logging.Logger
	root   *dom.Node
	self   Component

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	err          error
	setupStarted bool
	resources    []Resource
	subs         []eventbus.Subscription
	timers       map[TimerID]Timer
	nextTimer    TimerID
}

// Build constructs an instance: it prepares a Base for id and cfg, hands
// it to factory and binds the result. A factory that panics, returns nil
// or returns a component around a different base is an error.
func Build(factory Factory, id string, cfg Config, env Env) (c Component, err error) {
	base := newBase(id, cfg, env)
	defer func() {
		if r := recover(); r != nil {
			base.cancel()
			c, err = nil, errors.NewComponentError(string(cfg.Kind), id, "create", errors.FromPanic(r))
		}
	}()

	c = factory(base)
	if c == nil {
		base.cancel()
		return nil, errors.NewComponentError(string(cfg.Kind), id, "create", fmt.Errorf("factory returned nil"))
	}
	if c.Core() != base {
		base.cancel()
		return nil, errors.NewComponentError(string(cfg.Kind), id, "create", fmt.Errorf("factory did not embed the provided base"))
	}
	base.self = c
	return c, nil
}

func newBase(id string, cfg Config, env Env) *Base {
	if env.Clock == nil {
		env.Clock = RealClock{}
	}
	if env.Bus == nil {
		env.Bus = eventbus.New(env.Logger)
	}
	b := &Base{
		id:     id,
		cfg:    cfg,
		env:    env,
		logger: logging.OrNop(env.Logger).WithComponent(string(cfg.Kind)).With("id", id),
		timers: make(map[TimerID]Timer),
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())

	switch {
	case cfg.Root != nil:
		b.root = cfg.Root
	case cfg.Selector != "" && env.Document != nil:
		b.root = env.Document.Query(cfg.Selector)
	}
	if b.root == nil {
		b.state = StateInert
		b.logger.Warn(context.Background(), errors.ErrMissingRoot, "Component root not found, staying inert",
			"selector", cfg.Selector)
	}
	return b
}

// Core returns b; it lets widgets satisfy Component by embedding *Base.
func (b *Base) Core() *Base { return b }

// ID returns the instance id.
func (b *Base) ID() string { return b.id }

// Kind returns the component kind.
func (b *Base) Kind() Kind { return b.cfg.Kind }

// Config returns the construction config.
func (b *Base) Config() Config { return b.cfg }

// Root returns the DOM root, nil for inert instances.
func (b *Base) Root() *dom.Node { return b.root }

// Document returns the page document.
func (b *Base) Document() *dom.Document { return b.env.Document }

// Logger returns a logger tagged with kind and id.
func (b *Base) Logger() logging.Logger { return b.logger }

// Clock returns the clock owned timers run on.
func (b *Base) Clock() Clock { return b.env.Clock }

// Context is cancelled when the instance is destroyed.
func (b *Base) Context() context.Context { return b.ctx }

// State returns the lifecycle state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Err returns the init failure of a failed instance.
func (b *Base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Init runs the Setup hook once. It is a no-op unless the instance is in
// the created state. The instance always ends up settled: ready on success,
// failed when Setup errors or panics. The failure is logged, reported to
// Env.OnFailure and returned for callers that want it.
func (b *Base) Init(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	b.mu.Lock()
	switch b.state {
	case StateCreated:
	case StateInert:
		b.mu.Unlock()
		b.logger.Warn(ctx, errors.ErrMissingRoot, "Init skipped for inert component", "selector", b.cfg.Selector)
		return nil
	default:
		b.mu.Unlock()
		return nil
	}
	b.state = StateInitializing
	b.setupStarted = true
	b.mu.Unlock()

	setupCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(b.ctx, cancel)
	err := b.runSetup(setupCtx)
	stop()
	cancel()

	b.mu.Lock()
	if b.state == StateDestroyed {
		b.mu.Unlock()
		b.logger.Debug(ctx, "Init finished after destroy", "setup_error", err)
		return nil
	}
	if err != nil {
		ce := errors.NewComponentError(string(b.cfg.Kind), b.id, "init", err)
		b.state = StateFailed
		b.err = ce
		b.mu.Unlock()

		b.logger.Error(ctx, err, "Component initialization failed")
		if b.env.OnFailure != nil {
			b.env.OnFailure(ce)
		}
		return ce
	}
	b.state = StateReady
	b.root.SetAttr(AttrID, b.id)
	b.root.SetAttr(AttrKind, string(b.cfg.Kind))
	b.mu.Unlock()

	b.logger.Debug(ctx, "Component ready")
	return nil
}

func (b *Base) runSetup(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.FromPanic(r)
		}
	}()
	return b.self.Setup(ctx)
}

// Destroy releases every owned resource and then runs Teardown. Calling it
// again is a no-op. Inert instances ignore it.
func (b *Base) Destroy() {
	b.mu.Lock()
	if b.state == StateDestroyed || b.state == StateInert {
		b.mu.Unlock()
		return
	}
	b.state = StateDestroyed
	resources := b.resources
	subs := b.subs
	timers := b.timers
	b.resources, b.subs, b.timers = nil, nil, nil
	setupStarted := b.setupStarted
	b.mu.Unlock()

	b.cancel()

	for _, r := range resources {
		b.release(r)
	}
	for _, t := range timers {
		t.Stop()
	}
	for _, s := range subs {
		b.env.Bus.Off(s)
	}
	b.env.Bus.OffOwner(b.id)

	if b.root != nil && b.root.GetAttr(AttrID) == b.id {
		b.root.RemoveAttr(AttrID)
		b.root.RemoveAttr(AttrKind)
	}

	if setupStarted {
		b.guard("teardown", b.self.Teardown)
	}
	b.logger.Debug(context.Background(), "Component destroyed", "released", len(resources))
}

func (b *Base) release(r Resource) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Warn(context.Background(), errors.FromPanic(rec), "Listener removal failed", "event", r.Type)
		}
	}()
	r.Target.RemoveEventListener(r.ID)
}

// guard runs fn, logging instead of propagating a panic.
func (b *Base) guard(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(context.Background(), errors.FromPanic(r), "Component hook panicked", "hook", what)
		}
	}()
	fn()
}

// AddEventListener registers fn on target and records it so Destroy removes
// it. Handlers never run once the instance is destroyed. Registration on a
// destroyed instance is refused and returns 0.
func (b *Base) AddEventListener(target dom.EventTarget, eventType string, fn dom.Listener, opts dom.ListenerOptions) dom.ListenerID {
	if target == nil {
		return 0
	}
	wrapped := func(ev *dom.Event) {
		if b.State() == StateDestroyed {
			return
		}
		b.guard("listener:"+eventType, func() { fn(ev) })
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateDestroyed {
		b.logger.Debug(context.Background(), "Listener refused on destroyed component", "event", eventType)
		return 0
	}
	id := target.AddEventListener(eventType, wrapped, opts)
	b.resources = append(b.resources, Resource{Target: target, Type: eventType, ID: id, Options: opts})
	return id
}

// On is AddEventListener on the root.
func (b *Base) On(eventType string, fn dom.Listener) dom.ListenerID {
	if b.root == nil {
		return 0
	}
	return b.AddEventListener(b.root, eventType, fn, dom.ListenerOptions{})
}

// RemoveEventListener removes an owned listener early.
func (b *Base) RemoveEventListener(id dom.ListenerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.resources {
		if r.ID == id {
			b.resources = append(b.resources[:i], b.resources[i+1:]...)
			return r.Target.RemoveEventListener(id)
		}
	}
	return false
}

// Resources returns a copy of the owned listener records.
func (b *Base) Resources() []Resource {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Resource, len(b.resources))
	copy(out, b.resources)
	return out
}

// SetTimeout runs fn once after d unless the instance is destroyed first.
func (b *Base) SetTimeout(d time.Duration, fn func()) TimerID {
	return b.addTimer(d, fn, false)
}

// SetInterval runs fn every d until cleared or destroyed.
func (b *Base) SetInterval(d time.Duration, fn func()) TimerID {
	return b.addTimer(d, fn, true)
}

// ClearTimer cancels an owned timer.
func (b *Base) ClearTimer(id TimerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.timers[id]
	if !ok {
		return false
	}
	delete(b.timers, id)
	t.Stop()
	return true
}

// TimerCount returns the number of pending owned timers.
func (b *Base) TimerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.timers)
}

func (b *Base) addTimer(d time.Duration, fn func(), repeat bool) TimerID {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateDestroyed {
		return 0
	}
	b.nextTimer++
	id := b.nextTimer
	b.schedule(id, d, fn, repeat)
	return id
}

// schedule arms timer id. Caller holds b.mu.
func (b *Base) schedule(id TimerID, d time.Duration, fn func(), repeat bool) {
	b.timers[id] = b.env.Clock.AfterFunc(d, func() { b.fire(id, d, fn, repeat) })
}

func (b *Base) fire(id TimerID, d time.Duration, fn func(), repeat bool) {
	b.mu.Lock()
	if _, ok := b.timers[id]; !ok || b.state == StateDestroyed {
		b.mu.Unlock()
		return
	}
	if repeat {
		b.schedule(id, d, fn, true)
	} else {
		delete(b.timers, id)
	}
	b.mu.Unlock()

	b.guard("timer", fn)
}

// Emit publishes payload on the shared bus wrapped in an Envelope naming
// this instance.
func (b *Base) Emit(name string, payload any) {
	b.env.Bus.Emit(name, Envelope{Source: b.cfg.Kind, SourceID: b.id, Payload: payload})
}

// Subscribe listens on the shared bus until the instance is destroyed.
func (b *Base) Subscribe(name string, fn eventbus.Handler) eventbus.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateDestroyed {
		return eventbus.Subscription{}
	}
	sub := b.env.Bus.OnOwned(b.id, name, func(payload any) {
		if b.State() == StateDestroyed {
			return
		}
		fn(payload)
	})
	b.subs = append(b.subs, sub)
	return sub
}

// SaveState writes a JSON snapshot of v under this kind's namespace.
func (b *Base) SaveState(key string, v any) error {
	if b.env.Store == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s state: %w", key, err)
	}
	return b.env.Store.Set(b.storageKey(key), string(raw))
}

// LoadState decodes the snapshot under key into v. It reports false when
// nothing was stored.
func (b *Base) LoadState(key string, v any) (bool, error) {
	if b.env.Store == nil {
		return false, nil
	}
	raw, ok := b.env.Store.Get(b.storageKey(key))
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s state: %w", key, err)
	}
	return true, nil
}

func (b *Base) storageKey(key string) string {
	return storagePrefix + ":" + string(b.cfg.Kind) + ":" + key
}

// Stale reports whether a settled instance lost its page wiring. A ready
// instance is stale when its root was detached, its id stamp disappeared,
// or a listener it registered on a DOM node is no longer attached. Once
// listeners are exempt because they remove themselves. A failed instance
// is stale only once its root is detached; retrying its setup in place
// would fail the same way.
func (b *Base) Stale() bool {
	b.mu.Lock()
	state := b.state
	resources := make([]Resource, len(b.resources))
	copy(resources, b.resources)
	b.mu.Unlock()

	switch state {
	case StateReady:
	case StateFailed:
		return !b.root.IsConnected()
	default:
		return false
	}
	if !b.root.IsConnected() {
		return true
	}
	if b.root.GetAttr(AttrID) != b.id {
		return true
	}
	for _, r := range resources {
		if r.Options.Once {
			continue
		}
		if node, ok := r.Target.(*dom.Node); ok && !node.HasEventListener(r.ID) {
			return true
		}
	}
	return false
}
