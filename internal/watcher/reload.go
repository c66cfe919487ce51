package watcher

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/conneroisu/pagekit/internal/dom"
	"github.com/conneroisu/pagekit/internal/logging"
	"github.com/conneroisu/pagekit/internal/registry"
)

// ReloadResult reports one page reload.
type ReloadResult struct {
	Path       string
	Recovered  int
	Components int
}

// PageReloader swaps a changed page file into a running document as a
// restored snapshot and rebuilds the components whose wiring went stale.
type PageReloader struct {
	manager *registry.Manager
	path    string
	logger  logging.Logger

	mu        sync.Mutex
	onReload  []func(ReloadResult)
	lastBytes []byte
}

// NewPageReloader returns a reloader for the page at path.
func NewPageReloader(manager *registry.Manager, path string, logger logging.Logger) *PageReloader {
	return &PageReloader{
		manager: manager,
		path:    filepath.Clean(path),
		logger:  logging.OrNop(logger).WithComponent("reload"),
	}
}

// OnReload registers fn to run after every successful reload.
func (r *PageReloader) OnReload(fn func(ReloadResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReload = append(r.onReload, fn)
}

// Handle is a ChangeHandler that reloads when the batch touches the page.
func (r *PageReloader) Handle(ctx context.Context, events []ChangeEvent) error {
	for _, ev := range events {
		if filepath.Clean(ev.Path) != r.path {
			continue
		}
		if ev.Type == EventTypeDeleted {
			r.logger.Warn(ctx, nil, "Page removed; keeping the last loaded content", "path", r.path)
			return nil
		}
		_, err := r.Reload(ctx)
		return err
	}
	return nil
}

// Reload reads the page and restores its body into the document. An
// unchanged file is a no-op.
func (r *PageReloader) Reload(ctx context.Context) (ReloadResult, error) {
	result := ReloadResult{Path: r.path}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		return result, fmt.Errorf("read page: %w", err)
	}

	r.mu.Lock()
	unchanged := r.lastBytes != nil && bytes.Equal(raw, r.lastBytes)
	r.lastBytes = raw
	hooks := append(([]func(ReloadResult))(nil), r.onReload...)
	r.mu.Unlock()
	if unchanged {
		result.Components = r.manager.Count()
		return result, nil
	}

	page, err := dom.ParseString(string(raw))
	if err != nil {
		return result, fmt.Errorf("parse page: %w", err)
	}
	body := page.Body()
	if body == nil {
		return result, fmt.Errorf("parse page: no body")
	}

	if err := r.manager.Document().RestoreSnapshot(body.InnerHTML()); err != nil {
		return result, err
	}

	result.Recovered = r.manager.ReinitializeAfterCacheRestore(ctx)
	result.Components = r.manager.Count()
	r.logger.Info(ctx, "Page reloaded", "path", r.path,
		"recovered", result.Recovered, "components", result.Components)

	for _, fn := range hooks {
		fn(result)
	}
	return result, nil
}
