//go:build property

package watcher

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/pagekit/internal/component"
)

// TestDebouncerProperties validates batching invariants of the debouncer
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Property: a burst yields one batch with the last event per path
	properties.Property("burst collapses to last event per path", prop.ForAll(
		func(picks []int) bool {
			clock := component.NewFakeClock(time.Unix(0, 0))
			d := NewDebouncer(50*time.Millisecond, clock)

			want := make(map[string]ChangeEvent)
			for i, p := range picks {
				ev := ChangeEvent{Type: EventType(i % 4), Path: fmt.Sprintf("page-%d.html", p), Size: int64(i)}
				want[ev.Path] = ev
				d.addEvent(ev)
				clock.Advance(10 * time.Millisecond)
			}
			clock.Advance(50 * time.Millisecond)

			if len(picks) == 0 {
				return len(d.output) == 0
			}
			if len(d.output) != 1 {
				return false
			}
			batch := <-d.output
			if len(batch) != len(want) {
				return false
			}
			if !sort.SliceIsSorted(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path }) {
				return false
			}
			for _, ev := range batch {
				if want[ev.Path] != ev {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 5)),
	))

	// Property: events spaced beyond the delay are never merged
	properties.Property("spaced events flush separately", prop.ForAll(
		func(n int) bool {
			clock := component.NewFakeClock(time.Unix(0, 0))
			d := NewDebouncer(20*time.Millisecond, clock)
			for i := 0; i < n; i++ {
				d.addEvent(ChangeEvent{Path: "index.html"})
				clock.Advance(20 * time.Millisecond)
			}
			return len(d.output) == n
		},
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
