package widgets

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/conneroisu/pagekit/internal/component"
	"github.com/conneroisu/pagekit/internal/dom"
)

// Bus events of the search filter.
const (
	EventSearchQuery   = "search:query"
	EventSearchResults = "search:results"
)

// SearchResults is the payload of search:results.
type SearchResults struct {
	Query   string
	Matches int
	Total   int
}

// Search filters the [data-search-item] elements under its root as the
// user types into its input. Matching is case-insensitive using full Unicode
// case folding; an item matches when its data-search-text attribute, or its
// text when that attribute is absent, contains the query.
type Search struct {
	*component.Base

	itemSelector string

	mu    sync.Mutex
	query string
	last  SearchResults
}

// NewSearch is the search-filter factory.
func NewSearch(b *component.Base) component.Component {
	return &Search{Base: b, itemSelector: stringOption(b.Config(), "items", "[data-search-item]")}
}

// Setup filters on input events and on search:query bus events.
func (s *Search) Setup(context.Context) error {
	s.On("input", func(ev *dom.Event) {
		query, ok := ev.Detail.(string)
		if !ok && ev.Target != nil {
			query = ev.Target.GetAttr("value")
		}
		s.Filter(query)
	})
	s.Subscribe(EventSearchQuery, func(payload any) {
		if q, ok := payloadOf(payload).(string); ok {
			s.Filter(q)
		}
	})
	if input := s.Root().Query("input"); input != nil && input.GetAttr("value") != "" {
		s.Filter(input.GetAttr("value"))
	}
	return nil
}

// Teardown shows every item again.
func (s *Search) Teardown() {
	for _, item := range s.Root().QueryAll(s.itemSelector) {
		item.RemoveAttr("hidden")
	}
}

// Filter hides the items that do not match query and returns the number of
// visible items. An empty query shows everything.
func (s *Search) Filter(query string) int {
	needle := fold(strings.TrimSpace(query))
	items := s.Root().QueryAll(s.itemSelector)

	matches := 0
	for _, item := range items {
		haystack, ok := item.Attr("data-search-text")
		if !ok {
			haystack = item.Text()
		}
		if needle == "" || strings.Contains(fold(haystack), needle) {
			item.RemoveAttr("hidden")
			matches++
		} else {
			item.SetAttr("hidden", "")
		}
	}

	if counter := s.Root().Query("[data-search-count]"); counter != nil {
		counter.SetText(strconv.Itoa(matches))
	}

	res := SearchResults{Query: query, Matches: matches, Total: len(items)}
	s.mu.Lock()
	s.query = query
	s.last = res
	s.mu.Unlock()

	s.Emit(EventSearchResults, res)
	return matches
}

// Query returns the last applied query.
func (s *Search) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Results returns the outcome of the last Filter.
func (s *Search) Results() SearchResults {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// fold returns s case-folded. Casers keep state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
