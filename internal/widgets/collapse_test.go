package widgets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagekit/internal/storage"
)

const collapsePage = `<html><body>
<nav id="sidebar">
  <button id="t1" data-target="#intro">Intro <span class="caret"></span></button>
  <button id="t2" data-target="#api">API</button>
  <div id="intro" class="panel"></div>
  <div id="api" class="panel show"></div>
</nav>
</body></html>`

func TestCollapseInitialState(t *testing.T) {
	h := newHarness(t, collapsePage)
	c := h.load(t, KindCollapse, "#sidebar", nil).(*Collapse)

	assert.Equal(t, []string{"#api"}, c.OpenTargets())
	assert.Equal(t, "false", h.doc.Query("#t1").GetAttr("aria-expanded"))
	assert.Equal(t, "true", h.doc.Query("#t2").GetAttr("aria-expanded"))
}

func TestCollapseClickToggles(t *testing.T) {
	h := newHarness(t, collapsePage)
	c := h.load(t, KindCollapse, "#sidebar", nil).(*Collapse)
	toggled := h.record(EventCollapseToggled)

	h.doc.Query("#t1 .caret").Click()
	assert.True(t, c.IsOpen("#intro"))
	assert.True(t, h.doc.Query("#intro").HasClass("show"))
	assert.Equal(t, "true", h.doc.Query("#t1").GetAttr("aria-expanded"))

	h.doc.Query("#t1").Click()
	assert.False(t, c.IsOpen("#intro"))
	assert.False(t, h.doc.Query("#intro").HasClass("show"))
	assert.Equal(t, "false", h.doc.Query("#t1").GetAttr("aria-expanded"))

	assert.Equal(t, []any{
		CollapseToggle{Target: "#intro", Open: true},
		CollapseToggle{Target: "#intro", Open: false},
	}, toggled.all())
}

func TestCollapseAccordion(t *testing.T) {
	h := newHarness(t, collapsePage)
	c := h.load(t, KindCollapse, "#sidebar", map[string]any{"accordion": true}).(*Collapse)

	c.Open("#intro")
	assert.Equal(t, []string{"#intro"}, c.OpenTargets())
	assert.False(t, h.doc.Query("#api").HasClass("show"))
	assert.Equal(t, "false", h.doc.Query("#t2").GetAttr("aria-expanded"))
}

func TestCollapseUnknownTarget(t *testing.T) {
	h := newHarness(t, collapsePage)
	c := h.load(t, KindCollapse, "#sidebar", nil).(*Collapse)

	c.Open("#nowhere")
	assert.Equal(t, []string{"#api"}, c.OpenTargets())
}

func TestCollapsePersistsOpenPanels(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarnessWithStore(t, collapsePage, store)
	c := h.load(t, KindCollapse, "#sidebar", nil).(*Collapse)
	c.Open("#intro")
	c.Close("#api")

	raw, ok := store.Get("pagekit:collapse:open:sidebar")
	require.True(t, ok)
	assert.JSONEq(t, `["#intro"]`, raw)

	// A fresh page with the same storage restores the panels.
	next := newHarnessWithStore(t, collapsePage, store)
	restored := next.load(t, KindCollapse, "#sidebar", nil).(*Collapse)
	assert.Equal(t, []string{"#intro"}, restored.OpenTargets())
	assert.True(t, next.doc.Query("#intro").HasClass("show"))
	assert.False(t, next.doc.Query("#api").HasClass("show"))
}

func TestCollapseDestroyStopsHandling(t *testing.T) {
	h := newHarness(t, collapsePage)
	c := h.load(t, KindCollapse, "#sidebar", nil).(*Collapse)
	require.True(t, h.manager.Destroy(c.ID()))

	h.doc.Query("#t1").Click()
	assert.False(t, h.doc.Query("#intro").HasClass("show"))
}
