package badge

import (
	"sync"

	"companylens/internal/dom"
)

// DiagID is the id of the diagnostics overlay.
const DiagID = OwnPrefix + "diag-overlay"

// DefaultDiagnosticsSlug is probed when no test slug is configured.
const DefaultDiagnosticsSlug = "de/sap"

// CandidateEmbeds lists the profile URLs whose embeddability is checked for slug.
func CandidateEmbeds(base, slug string) []string {
	if slug == "" {
		slug = DefaultDiagnosticsSlug
	}
	return []string{
		ProfileURL(base, slug),
		ProfileURL(base, ""),
		ProfileURL(base, slug+"/kommentare"),
		ProfileURL(base, "de/bewertungen"),
	}
}

// DiagnosticsOverlay lists the candidate embed URLs for a test slug.
type DiagnosticsOverlay struct {
	doc         dom.Document
	profileBase string

	mu sync.Mutex
	el dom.Element
}

// NewDiagnosticsOverlay creates a hidden overlay for doc.
func NewDiagnosticsOverlay(doc dom.Document, profileBase string) *DiagnosticsOverlay {
	if profileBase == "" {
		profileBase = DefaultProfileBaseURL
	}
	return &DiagnosticsOverlay{doc: doc, profileBase: profileBase}
}

// Show mounts the overlay unless it is already visible.
func (d *DiagnosticsOverlay) Show(slug string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.el != nil {
		return
	}
	body := d.doc.Body()
	if body == nil {
		return
	}
	if slug == "" {
		slug = DefaultDiagnosticsSlug
	}

	overlay := d.doc.CreateElement("div", map[string]string{
		"id":               DiagID,
		"data-slug":        slug,
		dom.ShadowHostAttr: "closed",
	}, "")
	list := d.doc.CreateElement("ul", map[string]string{"class": OwnPrefix + "diag-candidates"}, "")
	for _, u := range CandidateEmbeds(d.profileBase, slug) {
		item := d.doc.CreateElement("li", nil, "")
		d.doc.AppendChild(item, d.doc.CreateElement("a", map[string]string{"href": u}, u))
		d.doc.AppendChild(list, item)
	}
	d.doc.AppendChild(overlay, list)
	d.doc.AppendChild(body, overlay)
	d.el = overlay
}

// Hide removes the overlay.
func (d *DiagnosticsOverlay) Hide() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.el == nil {
		return
	}
	d.doc.Remove(d.el)
	d.el = nil
}

// Visible reports whether the overlay is mounted.
func (d *DiagnosticsOverlay) Visible() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.el != nil
}
