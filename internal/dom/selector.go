package dom

import (
	"fmt"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Selector is a compiled CSS selector group, such as
// `nav.sidebar > [data-target], #toasts`.
type Selector struct {
	source string
	group  cascadia.SelectorGroup
}

var selectorCache sync.Map // string -> *Selector

// CompileSelector parses a selector, caching compiled forms.
func CompileSelector(s string) (*Selector, error) {
	if cached, ok := selectorCache.Load(s); ok {
		return cached.(*Selector), nil
	}
	group, err := cascadia.ParseGroup(s)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", s, err)
	}
	sel := &Selector{source: s, group: group}
	selectorCache.Store(s, sel)
	return sel, nil
}

// String returns the source text.
func (s *Selector) String() string { return s.source }

func (s *Selector) match(n *html.Node) bool {
	return n.Type == html.ElementNode && s.group.Match(n)
}
