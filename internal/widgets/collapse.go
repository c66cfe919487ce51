package widgets

import (
	"context"
	"slices"
	"sync"

	"github.com/conneroisu/pagekit/internal/component"
	"github.com/conneroisu/pagekit/internal/dom"
)

// EventCollapseToggled is emitted after a panel opens or closes.
const EventCollapseToggled = "collapse:toggled"

const openClass = "show"

// CollapseToggle is the payload of collapse:toggled.
type CollapseToggle struct {
	Target string
	Open   bool
}

// Collapse toggles the panels named by the data-target attribute of its
// triggers. With the "accordion" option set, opening one panel closes the
// other panels of the same root.
type Collapse struct {
	*component.Base

	accordion bool

	mu   sync.Mutex
	open []string
}

// NewCollapse is the collapse factory.
func NewCollapse(b *component.Base) component.Component {
	accordion, _ := b.Config().Option("accordion", false).(bool)
	return &Collapse{Base: b, accordion: accordion}
}

// Setup restores persisted open panels and wires trigger clicks.
func (c *Collapse) Setup(context.Context) error {
	var saved []string
	found, err := c.LoadState(c.stateKey(), &saved)
	if err != nil {
		c.Logger().Warn(context.Background(), err, "Ignoring unreadable collapse state")
	}

	for _, target := range c.targets() {
		panel := c.Document().Query(target)
		if panel == nil {
			continue
		}
		open := panel.HasClass(openClass)
		if found {
			open = slices.Contains(saved, target)
		}
		c.apply(target, panel, open)
	}

	c.On("click", func(ev *dom.Event) {
		if ev.Target == nil {
			return
		}
		if trigger := ev.Target.Closest("[data-target]"); trigger != nil {
			ev.PreventDefault()
			c.Toggle(trigger.GetAttr("data-target"))
		}
	})
	return nil
}

// Teardown is a no-op; panel state stays as the user left it.
func (c *Collapse) Teardown() {}

// Toggle flips the panel matched by target and returns its new state.
func (c *Collapse) Toggle(target string) bool {
	open := !c.IsOpen(target)
	c.set(target, open)
	return open
}

// Open opens the panel matched by target.
func (c *Collapse) Open(target string) { c.set(target, true) }

// Close closes the panel matched by target.
func (c *Collapse) Close(target string) { c.set(target, false) }

// IsOpen reports whether the panel matched by target is open.
func (c *Collapse) IsOpen(target string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Contains(c.open, target)
}

// OpenTargets returns the open panel targets in the order they opened.
func (c *Collapse) OpenTargets() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.open)
}

func (c *Collapse) set(target string, open bool) {
	panel := c.Document().Query(target)
	if panel == nil {
		c.Logger().Debug(context.Background(), "Collapse target not found", "target", target)
		return
	}
	if open && c.accordion {
		for _, other := range c.OpenTargets() {
			if other != target {
				if p := c.Document().Query(other); p != nil {
					c.apply(other, p, false)
					c.Emit(EventCollapseToggled, CollapseToggle{Target: other})
				}
			}
		}
	}
	c.apply(target, panel, open)

	if err := c.SaveState(c.stateKey(), c.OpenTargets()); err != nil {
		c.Logger().Warn(context.Background(), err, "Failed to persist collapse state")
	}
	c.Emit(EventCollapseToggled, CollapseToggle{Target: target, Open: open})
}

func (c *Collapse) apply(target string, panel *dom.Node, open bool) {
	panel.SetClass(openClass, open)
	expanded := "false"
	if open {
		expanded = "true"
	}
	for _, trigger := range c.triggersFor(target) {
		trigger.SetAttr("aria-expanded", expanded)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = slices.DeleteFunc(c.open, func(t string) bool { return t == target })
	if open {
		c.open = append(c.open, target)
	}
}

func (c *Collapse) triggersFor(target string) []*dom.Node {
	var out []*dom.Node
	for _, trigger := range c.Root().QueryAll("[data-target]") {
		if trigger.GetAttr("data-target") == target {
			out = append(out, trigger)
		}
	}
	return out
}

func (c *Collapse) targets() []string {
	var out []string
	for _, trigger := range c.Root().QueryAll("[data-target]") {
		if t := trigger.GetAttr("data-target"); t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func (c *Collapse) stateKey() string { return "open:" + rootKey(c.Base) }

// rootKey names a widget root for persisted state: its id when it has one,
// its selector otherwise.
func rootKey(b *component.Base) string {
	if id := b.Root().ID(); id != "" {
		return id
	}
	return b.Config().Selector
}
