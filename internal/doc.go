// Package internal contains the implementation packages for pagekit.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - dom: Parsed page document with element events and a selector engine
//   - eventbus: In-process publish/subscribe between widgets
//   - storage: Key-value store for persisted widget state
//   - component: Lifecycle base every widget embeds
//   - registry: Kind factories and live instance tracking
//   - loader: Lazy module loading and critical/secondary boot
//   - widgets: Toast, collapse, tabs, search filter and notebook widgets
//   - config: Configuration loading and validation
//   - watcher: File watching that swaps page changes into a running document
//   - logging, errors, version: Ambient support
//
// # Inter-Package Communication
//
// The loader evaluates a module the first time a kind is requested; the
// module registers a factory on the registry, which builds instances around
// a component.Base bound to the shared document, bus, store and clock.
// Instances own every listener, timer and subscription they acquire, and
// the registry rebuilds those whose wiring went stale after a cache
// restore.
package internal
