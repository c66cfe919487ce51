package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagekit/internal/component"
	"github.com/conneroisu/pagekit/internal/dom"
)

const page = `<html><body>
<div id="menu" class="collapse"><button class="trigger">Menu</button></div>
<div id="tabs"></div>
</body></html>`

type clicker struct {
	*component.Base
	clicks int
}

func (c *clicker) Setup(context.Context) error {
	c.On("click", func(*dom.Event) { c.clicks++ })
	return nil
}

func (c *clicker) Teardown() {}

type otherClicker struct{ clicker }

type failing struct{ *component.Base }

func (f *failing) Setup(context.Context) error { return errors.New("index unavailable") }
func (f *failing) Teardown()                   {}

// brokenClicker wires its root before failing.
type brokenClicker struct{ *component.Base }

func (b *brokenClicker) Setup(context.Context) error {
	b.On("click", func(*dom.Event) {})
	return errors.New("search index missing")
}
func (b *brokenClicker) Teardown() {}

func newClicker(b *component.Base) component.Component { return &clicker{Base: b} }

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func(kind component.Kind) string {
		n++
		return fmt.Sprintf("%s-%d", kind, n)
	})
}

func newManager(t *testing.T) (*Manager, *dom.Document) {
	t.Helper()
	doc := dom.MustParse(page)
	return New(WithDocument(doc), sequentialIDs()), doc
}

func TestCreateUnknownKindReturnsNil(t *testing.T) {
	m, _ := newManager(t)

	assert.Nil(t, m.Create("nope", component.Config{Selector: "#menu"}))
	assert.Zero(t, m.Count())
}

func TestCreateReturnsUninitializedInstance(t *testing.T) {
	m, _ := newManager(t)
	m.Register("collapse", newClicker)

	c := m.Create("collapse", component.Config{Selector: "#menu"})
	require.NotNil(t, c)
	assert.Equal(t, component.StateCreated, c.Core().State())
	assert.Equal(t, component.Kind("collapse"), c.Core().Kind())
	assert.Equal(t, "collapse-1", c.Core().ID())

	require.NoError(t, c.Core().Init(context.Background()))
	assert.Equal(t, component.StateReady, c.Core().State())
}

func TestRegisterLastWins(t *testing.T) {
	m, _ := newManager(t)
	m.Register("collapse", newClicker)
	m.Register("collapse", func(b *component.Base) component.Component {
		return &otherClicker{clicker{Base: b}}
	})

	c := m.Create("collapse", component.Config{Selector: "#menu"})
	assert.IsType(t, &otherClicker{}, c)
	assert.Equal(t, []component.Kind{"collapse"}, m.Kinds())
}

func TestLookups(t *testing.T) {
	m, _ := newManager(t)
	m.Register("collapse", newClicker)
	m.Register("tabs", newClicker)

	a := m.Create("collapse", component.Config{Selector: "#menu"})
	b := m.Create("tabs", component.Config{Selector: "#tabs"})
	c := m.Create("collapse", component.Config{Selector: "#missing"})

	assert.Equal(t, 3, m.Count())
	assert.Equal(t, []component.Component{a, b, c}, m.Instances())
	assert.Equal(t, []component.Component{a, c}, m.ByKind("collapse"))
	assert.Same(t, a, m.First("collapse"))
	assert.Nil(t, m.First("toast"))
	assert.Same(t, b, m.Find("tabs", "#tabs"))
	assert.Nil(t, m.Find("tabs", "#menu"))

	got, ok := m.Get(b.Core().ID())
	assert.True(t, ok)
	assert.Same(t, b, got)

	_, ok = m.Get("ghost")
	assert.False(t, ok)

	assert.Equal(t, component.StateInert, c.Core().State())
}

func TestDestroy(t *testing.T) {
	m, doc := newManager(t)
	m.Register("collapse", newClicker)

	c := m.CreateAndInit(context.Background(), "collapse", component.Config{Selector: "#menu"})
	require.NotNil(t, c)
	root := doc.Query("#menu")
	assert.Equal(t, 1, root.ListenerCount())

	assert.True(t, m.Destroy(c.Core().ID()))
	assert.Equal(t, component.StateDestroyed, c.Core().State())
	assert.Zero(t, root.ListenerCount())
	assert.Zero(t, m.Count())

	assert.False(t, m.Destroy(c.Core().ID()))
	assert.False(t, m.Destroy("unknown"))
}

func TestDestroyAll(t *testing.T) {
	m, _ := newManager(t)
	m.Register("collapse", newClicker)

	var created []component.Component
	for _, sel := range []string{"#menu", "#tabs", "#nothing"} {
		created = append(created, m.CreateAndInit(context.Background(), "collapse", component.Config{Selector: sel}))
	}

	assert.Equal(t, 3, m.DestroyAll())
	assert.Zero(t, m.Count())
	assert.Equal(t, component.StateDestroyed, created[0].Core().State())
	assert.Equal(t, component.StateInert, created[2].Core().State())
}

func TestInitFailuresAreRecorded(t *testing.T) {
	m, _ := newManager(t)
	m.Register("search", func(b *component.Base) component.Component { return &failing{Base: b} })

	c := m.CreateAndInit(context.Background(), "search", component.Config{Selector: "#tabs"})
	require.NotNil(t, c)
	assert.Equal(t, component.StateFailed, c.Core().State())

	failures := m.Failures().GetErrorsByKind("search")
	require.Len(t, failures, 1)
	assert.Equal(t, c.Core().ID(), failures[0].ID)
	assert.Equal(t, 1, m.Count(), "failed instances stay tracked")
}

func TestReinitializeAfterCacheRestore(t *testing.T) {
	m, doc := newManager(t)
	m.Register("collapse", newClicker)

	original := m.CreateAndInit(context.Background(), "collapse", component.Config{Selector: "#menu"}).(*clicker)
	healthy := m.CreateAndInit(context.Background(), "collapse", component.Config{Selector: "#tabs"})
	root := doc.Query("#menu")

	// The restored page lost both the instance stamp and the listener wiring.
	root.RemoveAttr(component.AttrID)
	root.ClearListeners()
	root.Click()
	assert.Zero(t, original.clicks, "stale page does not reach the handler")

	recovered := m.ReinitializeAfterCacheRestore(context.Background())
	assert.GreaterOrEqual(t, recovered, 1)
	assert.Equal(t, 1, recovered)

	assert.Equal(t, component.StateDestroyed, original.State())
	_, ok := m.Get(original.ID())
	assert.False(t, ok)

	fresh, ok := m.Find("collapse", "#menu").(*clicker)
	require.True(t, ok)
	assert.NotSame(t, original, fresh)
	assert.Equal(t, component.StateReady, fresh.State())
	assert.Equal(t, fresh.ID(), root.GetAttr(component.AttrID))
	assert.Equal(t, 1, root.ListenerCount(), "fresh instance starts clean")

	root.Click()
	assert.Equal(t, 1, fresh.clicks)
	assert.Zero(t, original.clicks)

	h, ok := m.Get(healthy.Core().ID())
	assert.True(t, ok, "healthy instances are left alone")
	assert.Same(t, healthy, h)

	assert.Zero(t, m.ReinitializeAfterCacheRestore(context.Background()))
}

func TestReinitializeAfterSnapshotRestore(t *testing.T) {
	m, doc := newManager(t)
	m.Register("collapse", newClicker)
	m.CreateAndInit(context.Background(), "collapse", component.Config{Selector: "#menu"})
	m.CreateAndInit(context.Background(), "collapse", component.Config{Selector: "#tabs"})

	snapshot := doc.Body().InnerHTML()
	require.NoError(t, doc.RestoreSnapshot(snapshot))

	assert.Equal(t, 2, m.ReinitializeAfterCacheRestore(context.Background()))
	for _, c := range m.Instances() {
		assert.True(t, c.Core().Root().IsConnected())
		assert.Equal(t, 1, c.Core().Root().ListenerCount())
	}
}

func TestReinitializeExplicitRootAfterSnapshotRestore(t *testing.T) {
	m, doc := newManager(t)
	m.Register("collapse", newClicker)

	original := m.CreateAndInit(context.Background(), "collapse", component.Config{Root: doc.Query("#menu")})
	require.Equal(t, component.StateReady, original.Core().State())

	require.NoError(t, doc.RestoreSnapshot(doc.Body().InnerHTML()))
	require.False(t, original.Core().Root().IsConnected())

	assert.Equal(t, 1, m.ReinitializeAfterCacheRestore(context.Background()))
	fresh := m.First("collapse")
	require.NotNil(t, fresh)
	assert.NotSame(t, original, fresh)
	assert.True(t, fresh.Core().Root().IsConnected())
	assert.Same(t, doc.ElementByID("menu"), fresh.Core().Root())

	for range 3 {
		assert.Zero(t, m.ReinitializeAfterCacheRestore(context.Background()),
			"a recovered instance is not counted again")
	}
}

func TestReinitializeDropsRootsThatLeftThePage(t *testing.T) {
	m, doc := newManager(t)
	m.Register("collapse", newClicker)

	orphan := m.CreateAndInit(context.Background(), "collapse", component.Config{Root: doc.Query("#menu .trigger")})
	require.Equal(t, component.StateReady, orphan.Core().State())

	require.NoError(t, doc.RestoreSnapshot(doc.Body().InnerHTML()))

	assert.Zero(t, m.ReinitializeAfterCacheRestore(context.Background()))
	assert.Equal(t, component.StateDestroyed, orphan.Core().State())
	assert.Zero(t, m.Count())
	assert.Zero(t, m.ReinitializeAfterCacheRestore(context.Background()))
}

func TestReinitializeLeavesConnectedFailuresAlone(t *testing.T) {
	m, doc := newManager(t)
	m.Register("search", func(b *component.Base) component.Component { return &brokenClicker{Base: b} })

	c := m.CreateAndInit(context.Background(), "search", component.Config{Selector: "#menu"})
	require.Equal(t, component.StateFailed, c.Core().State())

	doc.ClearListeners()
	assert.Zero(t, m.ReinitializeAfterCacheRestore(context.Background()))

	got, ok := m.Get(c.Core().ID())
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, component.StateFailed, c.Core().State())
	assert.Equal(t, 1, m.Failures().Count(), "setup is not retried in place")
}

func TestWatchCacheRestore(t *testing.T) {
	m, doc := newManager(t)
	m.Register("collapse", newClicker)
	first := m.CreateAndInit(context.Background(), "collapse", component.Config{Selector: "#menu"})

	stop := m.WatchCacheRestore(doc.Window())
	doc.ClearListeners()

	doc.Window().PageShow(false)
	assert.Same(t, first, m.First("collapse"), "ordinary page loads do not trigger recovery")

	doc.Window().PageShow(true)
	assert.NotSame(t, first, m.First("collapse"))

	stop()
	current := m.First("collapse")
	doc.ClearListeners()
	doc.Window().PageShow(true)
	assert.Same(t, current, m.First("collapse"))
}

func TestWatchEvents(t *testing.T) {
	m, _ := newManager(t)
	events := m.Watch()

	m.Register("collapse", newClicker)
	m.Register("collapse", newClicker)
	c := m.Create("collapse", component.Config{Selector: "#menu"})
	m.Destroy(c.Core().ID())

	var got []EventType
	for i := 0; i < 4; i++ {
		select {
		case ev := <-events:
			got = append(got, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("missing registry event")
		}
	}
	assert.Equal(t, []EventType{EventTypeRegistered, EventTypeReplaced, EventTypeCreated, EventTypeDestroyed}, got)

	m.UnWatch(events)
	_, open := <-events
	assert.False(t, open)
}

func TestIsolatedManagers(t *testing.T) {
	a, _ := newManager(t)
	b, _ := newManager(t)
	a.Register("collapse", newClicker)

	assert.True(t, a.Registered("collapse"))
	assert.False(t, b.Registered("collapse"))

	a.Unregister("collapse")
	assert.False(t, a.Registered("collapse"))
}

func TestDefaultIDsAreUnique(t *testing.T) {
	m := New(WithDocument(dom.MustParse(page)))
	m.Register("collapse", newClicker)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		c := m.Create("collapse", component.Config{Selector: "#menu"})
		require.NotNil(t, c)
		id := c.Core().ID()
		assert.False(t, seen[id], id)
		assert.Regexp(t, `^collapse-[0-9a-z]{26}$`, id)
		seen[id] = true
	}
}
