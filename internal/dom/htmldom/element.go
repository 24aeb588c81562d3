package htmldom

import (
	"bytes"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"companylens/internal/dom"
)

type element struct {
	doc *Document
	n   *html.Node
}

var _ dom.Element = (*element)(nil)

func (e *element) Tag() string {
	return e.n.Data
}

func (e *element) Text() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return textOf(e.n)
}

func (e *element) Attr(name string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return attr(e.n, name)
}

func (e *element) Parent() dom.Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	p := e.n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return e.doc.wrap(p)
}

func (e *element) Closest(selector string) dom.Element {
	sel, err := compile(selector)
	if err != nil {
		return nil
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for n := e.n; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if sel.Match(n) {
			return e.doc.wrap(n)
		}
	}
	return nil
}

func (e *element) QuerySelector(selector string) (dom.Element, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	if isShadowHost(e.n) {
		return nil, nil
	}
	return e.doc.wrap(query(e.n, sel)), nil
}

func (e *element) Visible() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return visible(e.n)
}

func (e *element) Contains(other dom.Element) bool {
	o, ok := other.(*element)
	if !ok || o.doc != e.doc {
		return false
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for n := o.n; n != nil; n = n.Parent {
		if n == e.n {
			return true
		}
	}
	return false
}

func (e *element) Same(other dom.Element) bool {
	o, ok := other.(*element)
	return ok && o.n == e.n
}

func (e *element) OuterHTML() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var buf bytes.Buffer
	_ = html.Render(&buf, e.n)
	return buf.String()
}

var selectorCache sync.Map

func compile(selector string) (cascadia.Selector, error) {
	if cached, ok := selectorCache.Load(selector); ok {
		return cached.(cascadia.Selector), nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, err
	}
	selectorCache.Store(selector, sel)
	return sel, nil
}

// query finds the first matching descendant of n, not descending into shadow hosts.
func query(n *html.Node, sel cascadia.Selector) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if sel.Match(c) {
			return c
		}
		if isShadowHost(c) {
			continue
		}
		if m := query(c, sel); m != nil {
			return m
		}
	}
	return nil
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if match(c) {
			return c
		}
		if c.Type == html.ElementNode && isShadowHost(c) {
			continue
		}
		if m := findFirst(c, match); m != nil {
			return m
		}
	}
	return nil
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func isShadowHost(n *html.Node) bool {
	_, ok := attr(n, dom.ShadowHostAttr)
	return ok
}

func skipsText(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head, atom.Title:
		return true
	}
	return false
}

func isBlock(n *html.Node) bool {
	switch n.Data {
	case "div", "p", "h1", "h2", "h3", "h4", "h5", "h6", "li", "ul", "ol", "br",
		"section", "article", "header", "footer", "main", "aside", "nav", "td", "th",
		"tr", "table", "dd", "dt", "dl":
		return true
	}
	return false
}

// textOf approximates innerText: hidden subtrees and shadow hosts contribute nothing.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipsText(n) || isShadowHost(n) || hiddenByMarkup(n) {
				return
			}
		}
		block := n.Type == html.ElementNode && isBlock(n)
		if block {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte(' ')
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func visible(n *html.Node) bool {
	for p := n; p != nil && p.Type == html.ElementNode; p = p.Parent {
		if skipsText(p) || hiddenByMarkup(p) {
			return false
		}
	}
	if zeroSized(n) {
		return false
	}
	return rendersContent(n)
}

func hiddenByMarkup(n *html.Node) bool {
	if _, ok := attr(n, "hidden"); ok {
		return true
	}
	if v, ok := attr(n, "type"); ok && n.DataAtom == atom.Input && strings.EqualFold(v, "hidden") {
		return true
	}
	style := parseStyle(n)
	switch {
	case style["display"] == "none":
		return true
	case style["visibility"] == "hidden" || style["visibility"] == "collapse":
		return true
	}
	if op, ok := style["opacity"]; ok {
		if f, err := strconv.ParseFloat(op, 64); err == nil && f == 0 {
			return true
		}
	}
	return false
}

func zeroSized(n *html.Node) bool {
	style := parseStyle(n)
	for _, prop := range []string{"width", "height"} {
		switch style[prop] {
		case "0", "0px", "0%", "0em", "0rem":
			return true
		}
	}
	return false
}

func rendersContent(n *html.Node) bool {
	if isReplaced(n) {
		return true
	}
	if textOf(n) != "" {
		return true
	}
	return findFirst(n, func(c *html.Node) bool {
		return c.Type == html.ElementNode && isReplaced(c) && !hiddenByMarkup(c)
	}) != nil
}

func isReplaced(n *html.Node) bool {
	switch n.Data {
	case "img", "svg", "video", "canvas", "iframe", "input", "picture", "object",
		"embed", "textarea", "select":
		return true
	}
	return false
}

func parseStyle(n *html.Node) map[string]string {
	raw, ok := attr(n, "style")
	if !ok || raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		prop, val, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		val = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "!important"))
		out[strings.ToLower(strings.TrimSpace(prop))] = strings.ToLower(strings.TrimSpace(val))
	}
	return out
}
