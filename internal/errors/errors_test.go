package errors

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentErrorError(t *testing.T) {
	err := NewComponentError("toast", "toast-01", "init", errors.New("fetch failed"))

	assert.Equal(t, "init toast (toast-01): fetch failed", err.Error())
	assert.NotZero(t, err.Timestamp)

	noID := NewComponentError("tabs", "", "load", ErrNotRegistered)
	assert.Equal(t, "load tabs: module did not register component", noID.Error())
}

func TestComponentErrorUnwrap(t *testing.T) {
	err := NewComponentError("collapse", "c-1", "create", ErrMissingRoot)

	assert.ErrorIs(t, err, ErrMissingRoot)

	var ce *ComponentError
	wrapped := fmt.Errorf("boot: %w", err)
	require.ErrorAs(t, wrapped, &ce)
	assert.Equal(t, "collapse", ce.Kind)
}

func TestFromPanic(t *testing.T) {
	cause := errors.New("nil map")

	assert.ErrorIs(t, FromPanic(cause), ErrPanic)
	assert.ErrorIs(t, FromPanic(cause), cause)
	assert.ErrorIs(t, FromPanic("oops"), ErrPanic)
	assert.Contains(t, FromPanic("oops").Error(), "oops")
}

func TestErrorCollector(t *testing.T) {
	collector := NewErrorCollector()
	assert.False(t, collector.HasErrors())
	assert.NoError(t, collector.Join())

	collector.Add(nil)
	collector.Add(NewComponentError("toast", "toast-1", "init", errors.New("a")))
	collector.Add(NewComponentError("tabs", "tabs-1", "init", errors.New("b")))
	collector.Add(NewComponentError("toast", "toast-2", "init", errors.New("c")))

	assert.True(t, collector.HasErrors())
	assert.Equal(t, 3, collector.Count())
	assert.Len(t, collector.GetErrorsByKind("toast"), 2)
	assert.Len(t, collector.GetErrorsByID("tabs-1"), 1)
	assert.Empty(t, collector.GetErrorsByKind("notebook"))

	joined := collector.Join()
	require.Error(t, joined)
	assert.Contains(t, joined.Error(), "tabs-1")

	collector.Clear()
	assert.False(t, collector.HasErrors())
}

func TestErrorCollectorConcurrentAdd(t *testing.T) {
	collector := NewErrorCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				collector.Add(NewComponentError("k", fmt.Sprintf("k-%d-%d", n, j), "init", ErrPanic))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 200, collector.Count())
}
