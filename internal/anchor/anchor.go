// Package anchor finds the page element that carries the hiring company's name.
package anchor

import (
	"log/slog"
	"strings"

	"companylens/internal/dom"
	"companylens/internal/models"
)

const headingSelector = "h1, h2, h3"

// Result is a located anchor. Element is nil only when the document has no body.
type Result struct {
	Element dom.Element
	Mode    string
}

// Found reports whether an element was located.
func (r Result) Found() bool {
	return r.Element != nil
}

// Locator runs the selector list, then the marker-word scan, then falls back to the body.
type Locator struct {
	selectors []string
	markers   []string
}

// New creates a Locator. Selectors are tried in order; markers are matched
// case-sensitively against text nodes, like the page's own headings.
func New(selectors, markers []string) *Locator {
	return &Locator{
		selectors: append([]string(nil), selectors...),
		markers:   append([]string(nil), markers...),
	}
}

// Locate never fails; the worst case is the floating body placement.
func (l *Locator) Locate(doc dom.Document) Result {
	if el := l.bySelectors(doc); el != nil {
		return Result{Element: el, Mode: models.ModeInline}
	}
	if el := l.byMarkerHeading(doc); el != nil {
		return Result{Element: el, Mode: models.ModeInline}
	}
	return Result{Element: doc.Body(), Mode: models.ModeFloating}
}

func (l *Locator) bySelectors(doc dom.Document) dom.Element {
	for _, sel := range l.selectors {
		el, err := doc.QuerySelector(sel)
		if err != nil {
			slog.Debug("skipping invalid anchor selector", "selector", sel, "error", err)
			continue
		}
		if el != nil && el.Visible() {
			return el
		}
	}
	return nil
}

// byMarkerHeading returns the container of the first visible h1-h3 whose text
// mentions a marker word.
func (l *Locator) byMarkerHeading(doc dom.Document) dom.Element {
	if len(l.markers) == 0 {
		return nil
	}

	var found dom.Element
	doc.WalkText(func(text string, parent dom.Element) bool {
		if parent == nil || !l.mentionsMarker(text) {
			return true
		}
		heading := parent.Closest(headingSelector)
		if heading == nil || !heading.Visible() {
			return true
		}
		if container := heading.Parent(); container != nil {
			found = container
			return false
		}
		return true
	})
	return found
}

func (l *Locator) mentionsMarker(text string) bool {
	for _, m := range l.markers {
		if m != "" && strings.Contains(text, m) {
			return true
		}
	}
	return false
}
