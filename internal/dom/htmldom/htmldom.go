// Package htmldom implements dom.Document over golang.org/x/net/html trees.
//
// There is no layout engine, so visibility is estimated from markup: hidden
// attributes, inline styles and whether an element renders any content at all.
package htmldom

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"companylens/internal/dom"
)

// Document is a parsed page plus its mutation observers. Reads may run
// concurrently; writes are serialized and notify observers after the tree lock
// is released.
type Document struct {
	mu   sync.RWMutex
	root *html.Node

	obsMu     sync.Mutex
	observers map[int]dom.Observer
	nextObs   int
}

var _ dom.Document = (*Document)(nil)

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Document{root: root, observers: make(map[int]dom.Observer)}, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func (d *Document) wrap(n *html.Node) dom.Element {
	if n == nil {
		return nil
	}
	return &element{doc: d, n: n}
}

func (d *Document) bodyNode() *html.Node {
	return findFirst(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Body
	})
}

// Body returns the body element, or nil if the tree has none.
func (d *Document) Body() dom.Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.wrap(d.bodyNode())
}

// QuerySelector returns the first element in document order matching selector.
func (d *Document) QuerySelector(selector string) (dom.Element, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.wrap(query(d.root, sel)), nil
}

// GetElementByID returns the element with the given id attribute, or nil.
func (d *Document) GetElementByID(id string) dom.Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.wrap(findFirst(d.root, func(n *html.Node) bool {
		v, ok := attr(n, "id")
		return ok && v == id
	}))
}

// WalkText visits every non-blank text node under the body in document order.
func (d *Document) WalkText(visit dom.TextVisitor) {
	type textNode struct {
		text   string
		parent *html.Node
	}

	d.mu.RLock()
	var nodes []textNode
	if body := d.bodyNode(); body != nil {
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				switch c.Type {
				case html.TextNode:
					if t := strings.TrimSpace(c.Data); t != "" {
						nodes = append(nodes, textNode{text: t, parent: c.Parent})
					}
				case html.ElementNode:
					if skipsText(c) || isShadowHost(c) {
						continue
					}
					walk(c)
				}
			}
		}
		walk(body)
	}
	d.mu.RUnlock()

	for _, tn := range nodes {
		if !visit(tn.text, d.wrap(tn.parent)) {
			return
		}
	}
}

// CreateElement builds a detached element. Attributes are applied in key order.
func (d *Document) CreateElement(tag string, attrs map[string]string, text string) dom.Element {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     strings.ToLower(tag),
		DataAtom: atom.Lookup([]byte(strings.ToLower(tag))),
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: attrs[k]})
	}

	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return d.wrap(n)
}

// AppendChild moves child under parent, detaching it from any previous parent.
func (d *Document) AppendChild(parent, child dom.Element) {
	p, ok1 := parent.(*element)
	c, ok2 := child.(*element)
	if !ok1 || !ok2 || p.doc != d || c.doc != d {
		return
	}

	d.mu.Lock()
	var records []dom.MutationRecord
	if old := c.n.Parent; old != nil {
		old.RemoveChild(c.n)
		if d.underBody(old) {
			records = append(records, dom.MutationRecord{
				Type:    dom.MutationChildList,
				Target:  d.wrap(old),
				Removed: []dom.Element{child},
			})
		}
	}
	p.n.AppendChild(c.n)
	if d.underBody(p.n) {
		records = append(records, dom.MutationRecord{
			Type:   dom.MutationChildList,
			Target: parent,
			Added:  []dom.Element{child},
		})
	}
	d.mu.Unlock()

	d.notify(records)
}

// Remove detaches el from the tree.
func (d *Document) Remove(el dom.Element) {
	e, ok := el.(*element)
	if !ok || e.doc != d {
		return
	}

	d.mu.Lock()
	parent := e.n.Parent
	if parent == nil {
		d.mu.Unlock()
		return
	}
	observed := d.underBody(parent)
	parent.RemoveChild(e.n)
	d.mu.Unlock()

	if observed {
		d.notify([]dom.MutationRecord{{
			Type:    dom.MutationChildList,
			Target:  d.wrap(parent),
			Removed: []dom.Element{el},
		}})
	}
}

// ReplaceBody swaps the body's children for the parsed fragment and reports a
// single child-list mutation on the body.
func (d *Document) ReplaceBody(fragment string) error {
	d.mu.RLock()
	body := d.bodyNode()
	d.mu.RUnlock()
	if body == nil {
		return fmt.Errorf("document has no body")
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return fmt.Errorf("failed to parse body fragment: %w", err)
	}

	rec := dom.MutationRecord{Type: dom.MutationChildList, Target: d.wrap(body)}

	d.mu.Lock()
	for c := body.FirstChild; c != nil; {
		next := c.NextSibling
		body.RemoveChild(c)
		if c.Type == html.ElementNode {
			rec.Removed = append(rec.Removed, d.wrap(c))
		}
		c = next
	}
	for _, n := range nodes {
		body.AppendChild(n)
		if n.Type == html.ElementNode {
			rec.Added = append(rec.Added, d.wrap(n))
		}
	}
	d.mu.Unlock()

	d.notify([]dom.MutationRecord{rec})
	return nil
}

// HTML renders the whole document.
func (d *Document) HTML() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var buf bytes.Buffer
	_ = html.Render(&buf, d.root)
	return buf.String()
}

// Title returns the trimmed text of the document's title element.
func (d *Document) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t := findFirst(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Title
	})
	if t == nil {
		return ""
	}
	var b strings.Builder
	for c := t.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// BodyHTML renders the children of the body, or "" when there is no body.
func (d *Document) BodyHTML() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	body := d.bodyNode()
	if body == nil {
		return ""
	}
	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// Observe registers fn for mutation batches under the body.
func (d *Document) Observe(fn dom.Observer) func() {
	d.obsMu.Lock()
	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn
	d.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.obsMu.Lock()
			delete(d.observers, id)
			d.obsMu.Unlock()
		})
	}
}

func (d *Document) notify(records []dom.MutationRecord) {
	if len(records) == 0 {
		return
	}

	d.obsMu.Lock()
	ids := make([]int, 0, len(d.observers))
	for id := range d.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]dom.Observer, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, d.observers[id])
	}
	d.obsMu.Unlock()

	for _, fn := range fns {
		fn(records)
	}
}

// underBody must be called with mu held.
func (d *Document) underBody(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			return true
		}
	}
	return false
}
