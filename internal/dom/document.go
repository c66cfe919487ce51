// Package dom is the in-memory browser surface the component runtime runs
// against. A Document is parsed from page HTML with golang.org/x/net/html;
// elements are exposed as stable *Node handles that carry event listeners,
// and a Window target delivers page-level events such as pageshow.
//
// All operations on a document and its nodes are serialised by a single
// document mutex. Listeners are always invoked with the mutex released, so
// they may freely mutate the tree or register further listeners.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrorReporter receives errors raised by listeners during dispatch.
type ErrorReporter func(err error)

// Document is a parsed HTML page.
type Document struct {
	mu       sync.Mutex
	root     *html.Node
	nodes    map[*html.Node]*Node
	window   *Window
	nextID   atomic.Uint64
	reporter atomic.Value // ErrorReporter
}

// Parse reads an HTML page.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	doc := &Document{
		root:  root,
		nodes: make(map[*html.Node]*Node),
	}
	doc.window = &Window{doc: doc}
	return doc, nil
}

// ParseString parses an HTML page held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// MustParse is ParseString for fixtures; it panics on error.
func MustParse(s string) *Document {
	doc, err := ParseString(s)
	if err != nil {
		panic(err)
	}
	return doc
}

// SetErrorReporter installs the callback for listener failures.
func (d *Document) SetErrorReporter(r ErrorReporter) {
	d.reporter.Store(r)
}

func (d *Document) report(err error) {
	if r, ok := d.reporter.Load().(ErrorReporter); ok && r != nil {
		r(err)
	}
}

// Window returns the document's window target.
func (d *Document) Window() *Window {
	return d.window
}

// DocumentElement returns the <html> element.
func (d *Document) DocumentElement() *Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return d.wrap(c)
		}
	}
	return nil
}

// Body returns the <body> element.
func (d *Document) Body() *Node {
	return d.Query("body")
}

// Query returns the first element matching selector, or nil. Invalid
// selectors match nothing.
func (d *Document) Query(selector string) *Node {
	sel, err := CompileSelector(selector)
	if err != nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if sel.match(n) {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}
	return d.wrap(found)
}

// ElementByID returns the first element whose id attribute equals id, or
// nil. Unlike Query it accepts ids that are not valid CSS identifiers.
func (d *Document) ElementByID(id string) *Node {
	if id == "" {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if v, ok := attr(n, "id"); ok && v == id {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}
	return d.wrap(found)
}

// QueryAll returns every element matching selector in document order.
func (d *Document) QueryAll(selector string) []*Node {
	sel, err := CompileSelector(selector)
	if err != nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Node
	walk(d.root, func(n *html.Node) bool {
		if sel.match(n) {
			out = append(out, d.wrap(n))
		}
		return true
	})
	return out
}

// CreateElement returns a new detached element.
func (d *Document) CreateElement(tag string) *Node {
	tag = strings.ToLower(tag)
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wrap(n)
}

// ParseFragment parses markup in a <body> context and returns the detached
// top-level elements it produced.
func (d *Document) ParseFragment(markup string) ([]*Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	parsed, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Node, 0, len(parsed))
	for _, n := range parsed {
		if n.Type == html.ElementNode {
			out = append(out, d.wrap(n))
		}
	}
	return out, nil
}

// RestoreSnapshot replaces the body content with a previously captured
// snapshot, the way a client-side page cache does on back navigation. The
// old body children are detached, so components bound to them lose their
// roots; the new nodes carry no listeners.
func (d *Document) RestoreSnapshot(bodyHTML string) error {
	body := d.Body()
	if body == nil {
		return fmt.Errorf("restore snapshot: document has no body")
	}
	return body.SetInnerHTML(bodyHTML)
}

// ClearListeners drops listener wiring from every element while leaving the
// tree intact, simulating a restored page whose script state went stale.
func (d *Document) ClearListeners() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range d.nodes {
		n.listeners.clear()
	}
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// String renders the document as HTML.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

func (d *Document) newListenerID() ListenerID {
	return ListenerID(d.nextID.Add(1))
}

// wrap returns the stable handle for n. Caller holds d.mu.
func (d *Document) wrap(n *html.Node) *Node {
	if w, ok := d.nodes[n]; ok {
		return w
	}
	w := &Node{doc: d, n: n}
	d.nodes[n] = w
	return w
}

// walk visits element nodes below n in document order until visit returns false.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			if !visit(c) {
				return false
			}
		}
		if !walk(c, visit) {
			return false
		}
	}
	return true
}
