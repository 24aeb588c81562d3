// Package extract reads the raw company name from an anchor element.
package extract

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"companylens/internal/dom"
	"companylens/internal/models"
	"companylens/internal/normalize"
)

const headingSelector = "h1, h2, h3"

// Result carries the raw name, nil when every strategy failed, and the
// legal-entity tokens found in it.
type Result struct {
	Raw    *string
	Tokens models.Tokens
}

// Extractor tries own text, then name attributes, then nested selectors.
type Extractor struct {
	attributes []string
	nested     []string
}

// New creates an Extractor over the given attribute names and nested selectors.
func New(attributes, nested []string) *Extractor {
	return &Extractor{
		attributes: append([]string(nil), attributes...),
		nested:     append([]string(nil), nested...),
	}
}

// Extract returns the first name any strategy produces.
func (x *Extractor) Extract(anchor dom.Element) Result {
	if anchor == nil {
		return Result{}
	}

	raw, ok := x.ownText(anchor)
	if !ok {
		raw, ok = x.fromAttributes(anchor)
	}
	if !ok {
		raw, ok = x.fromNested(anchor)
	}
	if !ok {
		return Result{}
	}
	return Result{Raw: &raw, Tokens: normalize.DetectTokens(raw)}
}

func (x *Extractor) ownText(anchor dom.Element) (string, bool) {
	if !anchor.Visible() {
		return "", false
	}
	text := strings.TrimSpace(anchor.Text())
	return text, inBand(text)
}

func (x *Extractor) fromAttributes(anchor dom.Element) (string, bool) {
	for _, name := range x.attributes {
		v, ok := anchor.Attr(name)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if inBand(v) {
			return v, true
		}
	}
	return "", false
}

// fromNested evaluates each selector against the anchor, its heading and its parent.
func (x *Extractor) fromNested(anchor dom.Element) (string, bool) {
	scopes := []dom.Element{anchor}
	if h := anchor.Closest(headingSelector); h != nil && !h.Same(anchor) {
		scopes = append(scopes, h)
	}
	if p := anchor.Parent(); p != nil {
		scopes = append(scopes, p)
	}

	for _, sel := range x.nested {
		for _, scope := range scopes {
			el, err := scope.QuerySelector(sel)
			if err != nil {
				slog.Debug("skipping invalid nested selector", "selector", sel, "error", err)
				break
			}
			if el == nil {
				continue
			}
			text := strings.TrimSpace(el.Text())
			if text != "" && inBand(text) {
				return text, true
			}
		}
	}
	return "", false
}

func inBand(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= models.MinCompanyNameLen && n <= models.MaxCompanyNameLen
}
