// Package widgets holds the interactive theme widgets booted on a page.
// Each widget embeds component.Base and registers itself through a loader
// Module, so its code is only wired in when a page asks for it.
package widgets

import (
	"context"

	"github.com/conneroisu/pagekit/internal/component"
	"github.com/conneroisu/pagekit/internal/loader"
	"github.com/conneroisu/pagekit/internal/registry"
)

// Well-known kinds.
const (
	KindToast    component.Kind = "toast"
	KindCollapse component.Kind = "collapse"
	KindTabs     component.Kind = "tabs"
	KindSearch   component.Kind = "search-filter"
	KindNotebook component.Kind = "notebook"
)

// Factories maps every widget kind to its factory.
var Factories = map[component.Kind]component.Factory{
	KindToast:    NewToast,
	KindCollapse: NewCollapse,
	KindTabs:     NewTabs,
	KindSearch:   NewSearch,
	KindNotebook: NewNotebook,
}

// Module returns the loader module that registers kind. It panics for a
// kind without a factory.
func Module(kind component.Kind) loader.Module {
	factory, ok := Factories[kind]
	if !ok {
		panic("widgets: no factory for " + string(kind))
	}
	return func(_ context.Context, m *registry.Manager) error {
		m.Register(kind, factory)
		return nil
	}
}

// Install declares a module for every widget kind on l.
func Install(l *loader.Loader) {
	for kind := range Factories {
		l.Add(kind, Module(kind))
	}
}

// payloadOf unwraps a bus payload published through component.Base.Emit.
func payloadOf(v any) any {
	if env, ok := v.(component.Envelope); ok {
		return env.Payload
	}
	return v
}

func stringOption(cfg component.Config, key, def string) string {
	if s, ok := cfg.Option(key, def).(string); ok {
		return s
	}
	return def
}
