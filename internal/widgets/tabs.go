package widgets

import (
	"context"
	"slices"
	"sync"

	"github.com/conneroisu/pagekit/internal/component"
	"github.com/conneroisu/pagekit/internal/dom"
)

// EventTabsChanged is emitted when the active tab changes.
const EventTabsChanged = "tabs:changed"

// TabChange is the payload of tabs:changed.
type TabChange struct {
	Active   string
	Previous string
}

// Tabs shows the [data-tab-panel] that matches the active [data-tab-id]
// button and hides the rest.
type Tabs struct {
	*component.Base

	mu     sync.Mutex
	active string
}

// NewTabs is the tabs factory.
func NewTabs(b *component.Base) component.Component {
	return &Tabs{Base: b}
}

// Setup picks the initial tab: the persisted one if it still exists, else
// the button marked active, else the first.
func (t *Tabs) Setup(context.Context) error {
	ids := t.TabIDs()
	if len(ids) == 0 {
		t.Logger().Debug(context.Background(), "Tab set has no tabs")
	} else {
		initial := ids[0]
		if btn := t.Root().Query("[data-tab-id].active"); btn != nil {
			initial = btn.GetAttr("data-tab-id")
		}
		var saved string
		if ok, err := t.LoadState(t.stateKey(), &saved); err != nil {
			t.Logger().Warn(context.Background(), err, "Ignoring unreadable tab state")
		} else if ok && slices.Contains(ids, saved) {
			initial = saved
		}
		t.show(initial)
	}

	t.On("click", func(ev *dom.Event) {
		if ev.Target == nil {
			return
		}
		if btn := ev.Target.Closest("[data-tab-id]"); btn != nil {
			ev.PreventDefault()
			t.Activate(btn.GetAttr("data-tab-id"))
		}
	})
	return nil
}

// Teardown is a no-op.
func (t *Tabs) Teardown() {}

// Active returns the active tab id.
func (t *Tabs) Active() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// TabIDs returns the tab ids in document order.
func (t *Tabs) TabIDs() []string {
	var ids []string
	for _, btn := range t.Root().QueryAll("[data-tab-id]") {
		ids = append(ids, btn.GetAttr("data-tab-id"))
	}
	return ids
}

// Activate switches to tab id. It reports false for unknown ids; activating
// the current tab is a no-op that reports true.
func (t *Tabs) Activate(id string) bool {
	if !slices.Contains(t.TabIDs(), id) {
		return false
	}
	previous := t.Active()
	if previous == id {
		return true
	}
	t.show(id)

	if err := t.SaveState(t.stateKey(), id); err != nil {
		t.Logger().Warn(context.Background(), err, "Failed to persist active tab")
	}
	t.Emit(EventTabsChanged, TabChange{Active: id, Previous: previous})
	return true
}

func (t *Tabs) show(id string) {
	for _, btn := range t.Root().QueryAll("[data-tab-id]") {
		on := btn.GetAttr("data-tab-id") == id
		btn.SetClass("active", on)
		if on {
			btn.SetAttr("aria-selected", "true")
		} else {
			btn.SetAttr("aria-selected", "false")
		}
	}
	for _, panel := range t.Root().QueryAll("[data-tab-panel]") {
		if panel.GetAttr("data-tab-panel") == id {
			panel.RemoveAttr("hidden")
		} else {
			panel.SetAttr("hidden", "")
		}
	}

	t.mu.Lock()
	t.active = id
	t.mu.Unlock()
}

func (t *Tabs) stateKey() string { return "active:" + rootKey(t.Base) }
