// Package loader defers evaluating a component kind's module until the kind
// is first requested, then creates and initializes instances through the
// registry. Loads never fail loudly: every failure is logged and reported
// to the caller as a nil instance.
package loader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/iter"
	"golang.org/x/sync/singleflight"

	"github.com/conneroisu/pagekit/internal/component"
	"github.com/conneroisu/pagekit/internal/errors"
	"github.com/conneroisu/pagekit/internal/logging"
	"github.com/conneroisu/pagekit/internal/registry"
)

// Module is the deferred code of one kind. Evaluating it must register the
// kind's factory on the manager.
type Module func(ctx context.Context, m *registry.Manager) error

// Request asks for one instance.
type Request struct {
	Kind   component.Kind
	Config component.Config
}

// Loader resolves kinds to modules and instantiates them on demand.
type Loader struct {
	manager *registry.Manager
	logger  logging.Logger

	mu      sync.Mutex
	modules map[component.Kind]Module
	loaded  map[component.Kind]bool

	modLoads singleflight.Group
	creates  singleflight.Group
}

// New creates a loader that instantiates through manager.
func New(manager *registry.Manager, logger logging.Logger) *Loader {
	return &Loader{
		manager: manager,
		logger:  logging.OrNop(logger).WithComponent("loader"),
		modules: make(map[component.Kind]Module),
		loaded:  make(map[component.Kind]bool),
	}
}

// Manager returns the registry instances are created in.
func (l *Loader) Manager() *registry.Manager { return l.manager }

// Add declares the module for kind. A later Add for the same kind replaces
// the module and forces it to be evaluated again on next use.
func (l *Loader) Add(kind component.Kind, mod Module) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules[kind] = mod
	delete(l.loaded, kind)
}

// Kinds returns every kind with a declared module, sorted.
func (l *Loader) Kinds() []component.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	kinds := make([]component.Kind, 0, len(l.modules))
	for k := range l.modules {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Loaded reports whether kind's module has been evaluated successfully.
func (l *Loader) Loaded(kind component.Kind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded[kind]
}

// Ensure evaluates kind's module once and checks that it registered the
// kind. Concurrent callers share one evaluation. A failed evaluation is not
// cached, so a later call retries it. Kinds registered directly on the
// manager need no module.
func (l *Loader) Ensure(ctx context.Context, kind component.Kind) error {
	l.mu.Lock()
	mod, hasModule := l.modules[kind]
	done := l.loaded[kind]
	l.mu.Unlock()

	switch {
	case done:
		return nil
	case !hasModule && l.manager.Registered(kind):
		return nil
	case !hasModule:
		return fmt.Errorf("%w: %s", errors.ErrUnknownKind, kind)
	}

	_, err, _ := l.modLoads.Do(string(kind), func() (interface{}, error) {
		if l.Loaded(kind) {
			return nil, nil
		}
		if err := evaluate(ctx, mod, l.manager); err != nil {
			return nil, err
		}
		if !l.manager.Registered(kind) {
			return nil, fmt.Errorf("%w: %s", errors.ErrNotRegistered, kind)
		}
		l.mu.Lock()
		l.loaded[kind] = true
		l.mu.Unlock()
		l.logger.Debug(ctx, "Module loaded", "kind", kind)
		return nil, nil
	})
	return err
}

func evaluate(ctx context.Context, mod Module, m *registry.Manager) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.FromPanic(r)
		}
	}()
	return mod(ctx, m)
}

// LoadComponent ensures kind is loaded, then creates and initializes an
// instance for cfg. When an instance of kind bound to the same selector is
// already live it is returned instead, and concurrent calls for the same
// kind and selector share a single instance. It returns nil on any failure:
// a cancelled ctx, an unknown kind, a module that failed or did not
// register, or an instance whose init failed.
func (l *Loader) LoadComponent(ctx context.Context, kind component.Kind, cfg component.Config) component.Component {
	if err := ctx.Err(); err != nil {
		l.logger.Debug(ctx, "Load skipped, context done", "kind", kind)
		return nil
	}
	if err := l.Ensure(ctx, kind); err != nil {
		l.logger.Warn(ctx, err, "Component load failed", "kind", kind)
		return nil
	}

	if cfg.Selector == "" || cfg.Root != nil {
		return l.instantiate(ctx, kind, cfg)
	}

	key := string(kind) + "\x00" + cfg.Selector
	v, _, _ := l.creates.Do(key, func() (interface{}, error) {
		if existing := l.manager.Find(kind, cfg.Selector); existing != nil {
			if existing.Core().State() == component.StateFailed {
				return nil, nil
			}
			l.logger.Debug(ctx, "Reusing live instance", "kind", kind, "id", existing.Core().ID())
			return existing, nil
		}
		return l.instantiate(ctx, kind, cfg), nil
	})
	comp, _ := v.(component.Component)
	return comp
}

func (l *Loader) instantiate(ctx context.Context, kind component.Kind, cfg component.Config) component.Component {
	comp := l.manager.CreateAndInit(ctx, kind, cfg)
	if comp == nil {
		return nil
	}
	if comp.Core().State() == component.StateFailed {
		return nil
	}
	return comp
}

// LoadComponents loads every request concurrently and waits for all of
// them to settle. One failing request never affects the others. The result
// holds the successful instances in request order.
func (l *Loader) LoadComponents(ctx context.Context, reqs []Request) []component.Component {
	results := iter.Map(reqs, func(req *Request) component.Component {
		return l.LoadComponent(ctx, req.Kind, req.Config)
	})

	out := make([]component.Component, 0, len(results))
	for _, c := range results {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// BootResult summarizes a Boot.
type BootResult struct {
	Critical  []component.Component
	Secondary []component.Component
	// Failed counts requests that yielded no instance.
	Failed   int
	Duration time.Duration
}

// Instances returns every booted instance, critical first.
func (r BootResult) Instances() []component.Component {
	out := make([]component.Component, 0, len(r.Critical)+len(r.Secondary))
	out = append(out, r.Critical...)
	return append(out, r.Secondary...)
}

// Boot loads the critical group and waits for every member to settle
// before it starts the secondary group. Failures in either group are
// isolated per request. If ctx is done after the critical group, the
// secondary group is skipped and counted as failed.
func (l *Loader) Boot(ctx context.Context, critical, secondary []Request) BootResult {
	start := time.Now()
	perf := logging.StartOperation(l.logger, "boot")

	var res BootResult
	res.Critical = l.LoadComponents(ctx, critical)
	res.Failed = len(critical) - len(res.Critical)
	l.logger.Info(ctx, "Critical components settled",
		"requested", len(critical), "ready", len(res.Critical))

	if ctx.Err() != nil {
		res.Failed += len(secondary)
	} else {
		res.Secondary = l.LoadComponents(ctx, secondary)
		res.Failed += len(secondary) - len(res.Secondary)
	}

	res.Duration = time.Since(start)
	perf.End(ctx, "critical", len(res.Critical), "secondary", len(res.Secondary), "failed", res.Failed)
	return res
}
