package htmldom

import (
	"testing"

	"companylens/internal/dom"
)

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := ParseString(src)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	return doc
}

func TestQuerySelector(t *testing.T) {
	doc := mustParse(t, `<html><body>
		<header><h1 class="job-title">Engineer</h1></header>
		<div data-at="header-company-name">Deutsche Bahn AG</div>
	</body></html>`)

	el, err := doc.QuerySelector(`[data-at="header-company-name"]`)
	if err != nil {
		t.Fatalf("QuerySelector() error = %v", err)
	}
	if el == nil {
		t.Fatal("QuerySelector() returned nil")
	}
	if got := el.Text(); got != "Deutsche Bahn AG" {
		t.Errorf("Text() = %q, want %q", got, "Deutsche Bahn AG")
	}

	missing, err := doc.QuerySelector(".does-not-exist")
	if err != nil {
		t.Fatalf("QuerySelector() error = %v", err)
	}
	if missing != nil {
		t.Errorf("QuerySelector() = %v, want nil", missing)
	}

	if _, err := doc.QuerySelector(`h2:has-text("Unternehmen")`); err == nil {
		t.Error("QuerySelector() expected error for unsupported pseudo-class")
	}
}

func TestVisible(t *testing.T) {
	doc := mustParse(t, `<html><body>
		<span id="plain">Acme</span>
		<span id="hidden" hidden>Acme</span>
		<span id="display" style="display: none">Acme</span>
		<span id="visibility" style="visibility:hidden">Acme</span>
		<span id="opacity" style="opacity: 0">Acme</span>
		<span id="width" style="width:0px">Acme</span>
		<div style="display:none"><span id="nested">Acme</span></div>
		<div id="empty"></div>
		<div id="image"><img src="logo.png"></div>
	</body></html>`)

	tests := []struct {
		id   string
		want bool
	}{
		{"plain", true},
		{"hidden", false},
		{"display", false},
		{"visibility", false},
		{"opacity", false},
		{"width", false},
		{"nested", false},
		{"empty", false},
		{"image", true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			el := doc.GetElementByID(tt.id)
			if el == nil {
				t.Fatalf("GetElementByID(%q) returned nil", tt.id)
			}
			if got := el.Visible(); got != tt.want {
				t.Errorf("Visible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestText_SkipsShadowHostsAndScripts(t *testing.T) {
	doc := mustParse(t, `<html><body><div id="anchor">
		<span>Müller</span> <span>&amp; Schön GmbH</span>
		<script>var x = 1;</script>
		<div data-shadow-root="closed"><span>Kununu: —</span></div>
	</div></body></html>`)

	el := doc.GetElementByID("anchor")
	if got := el.Text(); got != "Müller & Schön GmbH" {
		t.Errorf("Text() = %q, want %q", got, "Müller & Schön GmbH")
	}
}

func TestWalkText(t *testing.T) {
	doc := mustParse(t, `<html><body>
		<p>Intro</p>
		<section><h2>Über das Unternehmen</h2></section>
		<p>Tail</p>
	</body></html>`)

	var seen []string
	doc.WalkText(func(text string, parent dom.Element) bool {
		seen = append(seen, text)
		return parent.Tag() != "h2"
	})

	want := []string{"Intro", "Über das Unternehmen"}
	if len(seen) != len(want) {
		t.Fatalf("WalkText() visited %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("WalkText()[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestMutations(t *testing.T) {
	doc := mustParse(t, `<html><body><div id="anchor">Acme</div></body></html>`)

	var batches [][]dom.MutationRecord
	dispose := doc.Observe(func(records []dom.MutationRecord) {
		batches = append(batches, records)
	})

	anchor := doc.GetElementByID("anchor")
	badge := doc.CreateElement("div", map[string]string{"id": "badge"}, "K")
	doc.AppendChild(anchor, badge)
	doc.Remove(badge)

	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if rec := batches[0][0]; len(rec.Added) != 1 || !rec.Added[0].Same(badge) || !rec.Target.Same(anchor) {
		t.Errorf("append record = %+v, want badge added to anchor", rec)
	}
	if rec := batches[1][0]; len(rec.Removed) != 1 || !rec.Removed[0].Same(badge) {
		t.Errorf("remove record = %+v, want badge removed", rec)
	}

	if err := doc.ReplaceBody(`<main><h1>New</h1></main>`); err != nil {
		t.Fatalf("ReplaceBody() error = %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("got %d batches after ReplaceBody, want 3", len(batches))
	}
	rec := batches[2][0]
	if rec.Type != dom.MutationChildList || rec.Target.Tag() != "body" {
		t.Errorf("ReplaceBody record = %+v, want childList on body", rec)
	}
	if len(rec.Added) != 1 || len(rec.Removed) != 1 {
		t.Errorf("ReplaceBody record added=%d removed=%d, want 1/1", len(rec.Added), len(rec.Removed))
	}

	dispose()
	doc.AppendChild(doc.Body(), doc.CreateElement("p", nil, "after"))
	if len(batches) != 3 {
		t.Errorf("observer called after dispose")
	}
}

func TestContainsAndClosest(t *testing.T) {
	doc := mustParse(t, `<html><body><section id="outer"><h2><span id="inner">Acme</span></h2></section></body></html>`)

	outer := doc.GetElementByID("outer")
	inner := doc.GetElementByID("inner")

	if !outer.Contains(inner) {
		t.Error("Contains() = false, want true")
	}
	if inner.Contains(outer) {
		t.Error("Contains() = true, want false")
	}

	heading := inner.Closest("h1, h2, h3")
	if heading == nil || heading.Tag() != "h2" {
		t.Fatalf("Closest() = %v, want h2", heading)
	}
	if p := heading.Parent(); p == nil || !p.Same(outer) {
		t.Errorf("Parent() = %v, want section", p)
	}
}

func TestBodyHTML(t *testing.T) {
	doc := mustParse(t, `<html><head><title>T</title></head><body><main><h1>Acme</h1></main></body></html>`)
	if got, want := doc.BodyHTML(), `<main><h1>Acme</h1></main>`; got != want {
		t.Errorf("BodyHTML() = %q, want %q", got, want)
	}
}

func TestTitle(t *testing.T) {
	doc := mustParse(t, "<html><head><title>\n  Backend Engineer  | Acme </title></head><body></body></html>")
	if got, want := doc.Title(), "Backend Engineer | Acme"; got != want {
		t.Errorf("Title() = %q, want %q", got, want)
	}
	if got := mustParse(t, `<p>x</p>`).Title(); got != "" {
		t.Errorf("Title() = %q, want empty", got)
	}
}
