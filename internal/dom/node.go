package dom

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// Node is a stable handle on one element of a Document.
type Node struct {
	doc       *Document
	n         *html.Node
	listeners listenerSet
}

// Document returns the owning document.
func (e *Node) Document() *Document { return e.doc }

// Tag returns the lower-case element name.
func (e *Node) Tag() string { return e.n.Data }

// ID returns the id attribute.
func (e *Node) ID() string { return e.GetAttr("id") }

// Attr returns an attribute value and whether it is present.
func (e *Node) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return attr(e.n, name)
}

// GetAttr returns an attribute value or "".
func (e *Node) GetAttr(name string) string {
	v, _ := e.Attr(name)
	return v
}

// HasAttr reports whether the attribute is present.
func (e *Node) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// SetAttr sets an attribute, adding it when missing.
func (e *Node) SetAttr(name, value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	setAttr(e.n, name, value)
}

// RemoveAttr deletes an attribute.
func (e *Node) RemoveAttr(name string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	name = strings.ToLower(name)
	e.n.Attr = slices.DeleteFunc(e.n.Attr, func(a html.Attribute) bool {
		return a.Namespace == "" && a.Key == name
	})
}

// Classes returns the class list.
func (e *Node) Classes() []string {
	return strings.Fields(e.GetAttr("class"))
}

// HasClass reports whether class is in the class list.
func (e *Node) HasClass(class string) bool {
	return slices.Contains(e.Classes(), class)
}

// AddClass adds class to the class list.
func (e *Node) AddClass(class string) {
	e.SetClass(class, true)
}

// RemoveClass removes class from the class list.
func (e *Node) RemoveClass(class string) {
	e.SetClass(class, false)
}

// ToggleClass flips class and returns whether it is now present.
func (e *Node) ToggleClass(class string) bool {
	on := !e.HasClass(class)
	e.SetClass(class, on)
	return on
}

// SetClass adds or removes class.
func (e *Node) SetClass(class string, on bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	current, _ := attr(e.n, "class")
	classes := strings.Fields(current)
	has := slices.Contains(classes, class)
	switch {
	case on && !has:
		classes = append(classes, class)
	case !on && has:
		classes = slices.DeleteFunc(classes, func(c string) bool { return c == class })
	default:
		return
	}
	setAttr(e.n, "class", strings.Join(classes, " "))
}

// Text returns the concatenated text content.
func (e *Node) Text() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
			collect(c)
		}
	}
	collect(e.n)
	return sb.String()
}

// SetText replaces all children with a single text node.
func (e *Node) SetText(text string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	removeChildren(e.n)
	e.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// Parent returns the parent element, or nil at the top or when detached.
func (e *Node) Parent() *Node {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if p := e.n.Parent; p != nil && p.Type == html.ElementNode {
		return e.doc.wrap(p)
	}
	return nil
}

// Children returns the element children.
func (e *Node) Children() []*Node {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var out []*Node
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.wrap(c))
		}
	}
	return out
}

// AppendChild moves child to the end of e's children.
func (e *Node) AppendChild(child *Node) {
	if child.doc != e.doc {
		panic("dom: AppendChild across documents")
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if child.n.Parent != nil {
		child.n.Parent.RemoveChild(child.n)
	}
	e.n.AppendChild(child.n)
}

// Remove detaches e from its parent.
func (e *Node) Remove() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.n.Parent != nil {
		e.n.Parent.RemoveChild(e.n)
	}
}

// IsConnected reports whether e is attached to its document.
func (e *Node) IsConnected() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for n := e.n; n != nil; n = n.Parent {
		if n == e.doc.root {
			return true
		}
	}
	return false
}

// Matches reports whether e matches selector.
func (e *Node) Matches(selector string) bool {
	sel, err := CompileSelector(selector)
	if err != nil {
		return false
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return sel.match(e.n)
}

// Closest returns the nearest inclusive ancestor matching selector.
func (e *Node) Closest(selector string) *Node {
	sel, err := CompileSelector(selector)
	if err != nil {
		return nil
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for n := e.n; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if sel.match(n) {
			return e.doc.wrap(n)
		}
	}
	return nil
}

// Query returns the first descendant matching selector.
func (e *Node) Query(selector string) *Node {
	sel, err := CompileSelector(selector)
	if err != nil {
		return nil
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var found *html.Node
	walk(e.n, func(n *html.Node) bool {
		if sel.match(n) {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}
	return e.doc.wrap(found)
}

// QueryAll returns all descendants matching selector.
func (e *Node) QueryAll(selector string) []*Node {
	sel, err := CompileSelector(selector)
	if err != nil {
		return nil
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var out []*Node
	walk(e.n, func(n *html.Node) bool {
		if sel.match(n) {
			out = append(out, e.doc.wrap(n))
		}
		return true
	})
	return out
}

// InnerHTML renders e's children.
func (e *Node) InnerHTML() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var buf bytes.Buffer
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// OuterHTML renders e itself.
func (e *Node) OuterHTML() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var buf bytes.Buffer
	_ = html.Render(&buf, e.n)
	return buf.String()
}

// SetInnerHTML replaces e's children with parsed markup.
func (e *Node) SetInnerHTML(markup string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	context := &html.Node{Type: html.ElementNode, Data: e.n.Data, DataAtom: e.n.DataAtom}
	parsed, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return fmt.Errorf("set inner html: %w", err)
	}
	removeChildren(e.n)
	for _, n := range parsed {
		e.n.AppendChild(n)
	}
	return nil
}

// AddEventListener registers fn for eventType on e.
func (e *Node) AddEventListener(eventType string, fn Listener, opts ListenerOptions) ListenerID {
	id := e.doc.newListenerID()
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.listeners.add(listenerEntry{id: id, eventType: eventType, fn: fn, once: opts.Once})
	return id
}

// RemoveEventListener removes a listener; false if it was not registered.
func (e *Node) RemoveEventListener(id ListenerID) bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.listeners.remove(id)
}

// HasEventListener reports whether id is still registered on e.
func (e *Node) HasEventListener(id ListenerID) bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.listeners.has(id)
}

// ListenerCount returns how many listeners are registered on e.
func (e *Node) ListenerCount() int {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return len(e.listeners.entries)
}

// ClearListeners drops every listener on e.
func (e *Node) ClearListeners() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.listeners.clear()
}

// DispatchEvent delivers ev to e and then, if it bubbles, to each ancestor
// element until StopPropagation is called. It returns false when a listener
// called PreventDefault.
func (e *Node) DispatchEvent(ev *Event) bool {
	ev.Target = e

	e.doc.mu.Lock()
	path := []*Node{e}
	if ev.Bubbles {
		for p := e.n.Parent; p != nil && p.Type == html.ElementNode; p = p.Parent {
			path = append(path, e.doc.wrap(p))
		}
	}
	e.doc.mu.Unlock()

	for _, target := range path {
		target.doc.mu.Lock()
		entries := target.listeners.take(ev.Type)
		target.doc.mu.Unlock()

		ev.CurrentTarget = target
		invoke(e.doc, ev, entries)
		if ev.stopped {
			break
		}
	}
	return !ev.defaultPrevented
}

// Click dispatches a bubbling click event.
func (e *Node) Click() bool {
	return e.DispatchEvent(NewEvent("click", nil))
}

func attr(n *html.Node, name string) (string, bool) {
	name = strings.ToLower(name)
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	name = strings.ToLower(name)
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}
