package eventbus

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagekit/internal/logging"
)

func TestOnEmitOff(t *testing.T) {
	bus := New(nil)

	var got []any
	h := bus.On("x", func(p any) { got = append(got, p) })
	require.True(t, h.Valid())

	bus.Emit("x", "payload")
	assert.Equal(t, []any{"payload"}, got)

	assert.True(t, bus.Off(h))
	bus.Emit("x", "payload")
	assert.Len(t, got, 1)

	assert.False(t, bus.Off(h), "second Off is a no-op")
	assert.False(t, bus.Off(Subscription{}))
}

func TestEmitFIFOWithinName(t *testing.T) {
	bus := New(nil)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		bus.On("ordered", func(any) { order = append(order, i) })
	}
	bus.On("other", func(any) { order = append(order, 99) })

	bus.Emit("ordered", nil)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestEmitWithoutSubscribers(t *testing.T) {
	bus := New(nil)
	assert.NotPanics(t, func() { bus.Emit("nobody", 1) })
	assert.Zero(t, bus.Count("nobody"))
}

func TestLateSubscriberMissesHistory(t *testing.T) {
	bus := New(nil)
	bus.Emit("x", 1)

	called := false
	bus.On("x", func(any) { called = true })
	assert.False(t, called)
}

func TestPanickingHandlerIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	bus := New(logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Output: &buf}))

	ran := 0
	bus.OnOwned("tabs-1", "x", func(any) { ran++ })
	bus.OnOwned("toast-1", "x", func(any) { panic("handler bug") })
	bus.On("x", func(any) { ran++ })

	assert.NotPanics(t, func() { bus.Emit("x", nil) })
	assert.Equal(t, 2, ran)
	assert.Contains(t, buf.String(), "handler bug")
	assert.Contains(t, buf.String(), "toast-1")
}

func TestOffDuringEmit(t *testing.T) {
	bus := New(nil)

	var second Subscription
	calls := 0
	bus.On("x", func(any) {
		calls++
		bus.Off(second)
	})
	second = bus.On("x", func(any) { calls++ })

	// The snapshot taken at emit time still includes the second handler.
	bus.Emit("x", nil)
	assert.Equal(t, 2, calls)

	bus.Emit("x", nil)
	assert.Equal(t, 3, calls)
}

func TestOffOwner(t *testing.T) {
	bus := New(nil)

	bus.OnOwned("a", "x", func(any) {})
	bus.OnOwned("a", "y", func(any) {})
	bus.OnOwned("b", "x", func(any) {})

	assert.Equal(t, 2, bus.OffOwner("a"))
	assert.Equal(t, 1, bus.Count("x"))
	assert.Zero(t, bus.Count("y"))
	assert.Zero(t, bus.OffOwner(""))
}

func TestConcurrentSubscribeAndEmit(t *testing.T) {
	bus := New(nil)

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := bus.On("tick", func(any) {
				mu.Lock()
				total++
				mu.Unlock()
			})
			bus.Emit("tick", nil)
			bus.Off(s)
		}()
	}
	wg.Wait()

	assert.Zero(t, bus.Count("tick"))
	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, total, 20)
}
