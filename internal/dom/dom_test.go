package dom

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html><body>
  <nav id="toc" class="sidebar sticky">
    <ul><li><a href="#a" class="link active">A</a></li><li><a href="#b" class="link">B</a></li></ul>
  </nav>
  <div class="tabs" data-component="tabs">
    <button data-tab-id="one" aria-selected="true">One</button>
    <button data-tab-id="two">Two</button>
    <section data-tab-panel="one">first</section>
    <section data-tab-panel="two" hidden>second</section>
  </div>
</body></html>`

func TestSelectors(t *testing.T) {
	doc := MustParse(page)

	tests := []struct {
		selector string
		count    int
	}{
		{"nav", 1},
		{"#toc", 1},
		{".link", 2},
		{"a.link.active", 1},
		{"nav .link", 2},
		{"ul > li > a", 2},
		{"nav > a", 0},
		{"[data-tab-id]", 2},
		{`[data-tab-id="two"]`, 1},
		{"[data-tab-id='one']", 1},
		{`.sidebar[class~="sticky"]`, 1},
		{`a[href^="#"]`, 2},
		{"section[hidden]", 1},
		{"button, section", 4},
		{"*[data-component]", 1},
		{"footer", 0},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			assert.Len(t, doc.QueryAll(tt.selector), tt.count)
		})
	}
}

func TestInvalidSelectors(t *testing.T) {
	for _, s := range []string{"", "[", "#", "a >", "a[b=\"c]", "a!b"} {
		_, err := CompileSelector(s)
		assert.Error(t, err, s)
	}

	doc := MustParse(page)
	assert.Nil(t, doc.Query("["))
	assert.Empty(t, doc.QueryAll("["))

	_, err := CompileSelector("div >")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `selector "div >"`)
}

func TestElementByID(t *testing.T) {
	doc := MustParse(`<html><body><div id="toc"></div><p id="1:intro.md"></p></body></html>`)

	assert.Same(t, doc.Query("#toc"), doc.ElementByID("toc"))
	p := doc.ElementByID("1:intro.md")
	require.NotNil(t, p)
	assert.Equal(t, "p", p.Tag())
	assert.Nil(t, doc.ElementByID("missing"))
	assert.Nil(t, doc.ElementByID(""))
}

func TestCompileSelectorCaches(t *testing.T) {
	a, err := CompileSelector("nav .link")
	require.NoError(t, err)
	b, err := CompileSelector("nav .link")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, "nav .link", a.String())
}

func TestExtendedSelectors(t *testing.T) {
	doc := MustParse(page)

	assert.Len(t, doc.QueryAll("a.link:not(.active)"), 1)
	assert.Len(t, doc.QueryAll("li:first-child a"), 1)
	assert.Len(t, doc.QueryAll(`section[data-tab-panel$="wo"]`), 1)

	btn := doc.Query(`[data-tab-id="two"]`)
	require.NotNil(t, btn)
	assert.True(t, btn.Matches("button ~ button"))
	assert.NotNil(t, btn.Closest(`[data-component="tabs"]`))
}

func TestNodeIdentityIsStable(t *testing.T) {
	doc := MustParse(page)

	a := doc.Query("#toc")
	b := doc.QueryAll(".sidebar")[0]
	require.NotNil(t, a)
	assert.Same(t, a, b)
}

func TestAttributesAndClasses(t *testing.T) {
	doc := MustParse(page)
	btn := doc.Query(`[data-tab-id="two"]`)
	require.NotNil(t, btn)

	assert.False(t, btn.HasAttr("aria-selected"))
	btn.SetAttr("aria-selected", "true")
	assert.Equal(t, "true", btn.GetAttr("aria-selected"))
	btn.RemoveAttr("aria-selected")
	assert.False(t, btn.HasAttr("aria-selected"))

	assert.True(t, btn.ToggleClass("active"))
	assert.True(t, btn.HasClass("active"))
	btn.AddClass("active")
	assert.Equal(t, []string{"active"}, btn.Classes())
	assert.False(t, btn.ToggleClass("active"))
	assert.Empty(t, btn.Classes())
}

func TestTreeMutation(t *testing.T) {
	doc := MustParse(page)
	body := doc.Body()
	require.NotNil(t, body)

	el := doc.CreateElement("DIV")
	assert.Equal(t, "div", el.Tag())
	assert.False(t, el.IsConnected())

	el.SetAttr("class", "toast")
	el.SetText("Saved")
	body.AppendChild(el)
	assert.True(t, el.IsConnected())
	assert.Same(t, el, doc.Query(".toast"))
	assert.Same(t, body, el.Parent())
	assert.Equal(t, "Saved", el.Text())

	el.Remove()
	assert.False(t, el.IsConnected())
	assert.Nil(t, doc.Query(".toast"))
}

func TestParseFragmentAndInnerHTML(t *testing.T) {
	doc := MustParse(page)

	nodes, err := doc.ParseFragment(`<div class="a"><span>x</span></div> <p>y</p>`)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "div", nodes[0].Tag())
	assert.Equal(t, "<span>x</span>", nodes[0].InnerHTML())
	assert.Equal(t, `<div class="a"><span>x</span></div>`, nodes[0].OuterHTML())

	panel := doc.Query(`[data-tab-panel="one"]`)
	require.NoError(t, panel.SetInnerHTML("<em>changed</em>"))
	assert.Equal(t, "changed", panel.Text())
	assert.NotNil(t, panel.Query("em"))
}

func TestClosestAndMatches(t *testing.T) {
	doc := MustParse(page)
	link := doc.Query("a.active")

	assert.True(t, link.Matches("nav a"))
	assert.Same(t, doc.Query("nav"), link.Closest(".sidebar"))
	assert.Same(t, link, link.Closest("a"))
	assert.Nil(t, link.Closest(".tabs"))
}

func TestDispatchBubblesInOrder(t *testing.T) {
	doc := MustParse(page)
	btn := doc.Query(`[data-tab-id="one"]`)
	container := doc.Query(".tabs")

	var calls []string
	btn.AddEventListener("click", func(ev *Event) { calls = append(calls, "btn-1") }, ListenerOptions{})
	btn.AddEventListener("click", func(ev *Event) { calls = append(calls, "btn-2") }, ListenerOptions{})
	container.AddEventListener("click", func(ev *Event) {
		assert.Same(t, btn, ev.Target)
		assert.Equal(t, EventTarget(container), ev.CurrentTarget)
		calls = append(calls, "container")
	}, ListenerOptions{})

	btn.Click()
	assert.Equal(t, []string{"btn-1", "btn-2", "container"}, calls)
}

func TestStopPropagationAndPreventDefault(t *testing.T) {
	doc := MustParse(page)
	btn := doc.Query(`[data-tab-id="one"]`)
	container := doc.Query(".tabs")

	reached := false
	btn.AddEventListener("click", func(ev *Event) {
		ev.StopPropagation()
		ev.PreventDefault()
	}, ListenerOptions{})
	container.AddEventListener("click", func(*Event) { reached = true }, ListenerOptions{})

	assert.False(t, btn.Click())
	assert.False(t, reached)
}

func TestRemoveAndOnceListeners(t *testing.T) {
	doc := MustParse(page)
	btn := doc.Query("button")

	count, once := 0, 0
	id := btn.AddEventListener("click", func(*Event) { count++ }, ListenerOptions{})
	btn.AddEventListener("click", func(*Event) { once++ }, ListenerOptions{Once: true})
	assert.Equal(t, 2, btn.ListenerCount())

	btn.Click()
	btn.Click()
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, once)

	assert.True(t, btn.HasEventListener(id))
	assert.True(t, btn.RemoveEventListener(id))
	assert.False(t, btn.RemoveEventListener(id))
	btn.Click()
	assert.Equal(t, 2, count)
}

func TestPanickingListenerIsIsolated(t *testing.T) {
	doc := MustParse(page)
	var reported []error
	doc.SetErrorReporter(func(err error) { reported = append(reported, err) })

	btn := doc.Query("button")
	ran := false
	btn.AddEventListener("click", func(*Event) { panic(errors.New("broken widget")) }, ListenerOptions{})
	btn.AddEventListener("click", func(*Event) { ran = true }, ListenerOptions{})

	assert.NotPanics(t, func() { btn.Click() })
	assert.True(t, ran)
	require.Len(t, reported, 1)
	assert.Contains(t, reported[0].Error(), "broken widget")
}

func TestListenerMayMutateDuringDispatch(t *testing.T) {
	doc := MustParse(page)
	btn := doc.Query("button")

	btn.AddEventListener("click", func(*Event) {
		btn.SetAttr("data-clicked", "1")
		btn.AddEventListener("click", func(*Event) {}, ListenerOptions{})
	}, ListenerOptions{})

	btn.Click()
	assert.Equal(t, "1", btn.GetAttr("data-clicked"))
	assert.Equal(t, 2, btn.ListenerCount())
}

func TestWindowPageShow(t *testing.T) {
	doc := MustParse(page)
	win := doc.Window()

	var got []bool
	id := win.AddEventListener("pageshow", func(ev *Event) {
		got = append(got, ev.Detail.(PageShowDetail).Persisted)
	}, ListenerOptions{})

	win.PageShow(false)
	win.PageShow(true)
	assert.Equal(t, []bool{false, true}, got)

	assert.True(t, win.HasEventListener(id))
	assert.True(t, win.RemoveEventListener(id))
	win.PageShow(true)
	assert.Len(t, got, 2)
}

func TestRestoreSnapshotDetachesOldNodes(t *testing.T) {
	doc := MustParse(page)
	old := doc.Query(".tabs")
	snapshot := doc.Body().InnerHTML()

	require.NoError(t, doc.RestoreSnapshot(snapshot))

	assert.False(t, old.IsConnected())
	fresh := doc.Query(".tabs")
	require.NotNil(t, fresh)
	assert.NotSame(t, old, fresh)
	assert.True(t, fresh.IsConnected())
	assert.True(t, strings.Contains(doc.String(), `data-tab-panel="two"`))
}

func TestClearListeners(t *testing.T) {
	doc := MustParse(page)
	btn := doc.Query("button")
	btn.AddEventListener("click", func(*Event) {}, ListenerOptions{})
	doc.Query("nav").AddEventListener("click", func(*Event) {}, ListenerOptions{})

	doc.ClearListeners()
	assert.Zero(t, btn.ListenerCount())
	assert.Zero(t, doc.Query("nav").ListenerCount())
}
