// Package badge mounts the rating badge, its preview overlay and the
// diagnostics overlay into a page. Every element it creates is a shadow host
// whose id starts with OwnPrefix, so page text and change detection ignore it.
package badge

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"companylens/internal/dom"
	"companylens/internal/models"
)

// Element ids and classes of injected elements.
const (
	OwnPrefix     = "kununu-"
	HostID        = OwnPrefix + "badge-host"
	PreviewID     = OwnPrefix + "preview-overlay"
	BadgeClass    = OwnPrefix + "badge"
	FloatingClass = OwnPrefix + "badge--floating"

	// DefaultProfileBaseURL is where company profiles live.
	DefaultProfileBaseURL = "https://www.kununu.com"

	placeholder = "Kununu: —"
)

// ErrNotMounted is returned when the badge is clicked while not on the page.
var ErrNotMounted = errors.New("badge not mounted")

// ProfileURL joins the profile base URL and a slug.
func ProfileURL(base, slug string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(slug, "/")
}

// Badge is the per-page badge. It starts enabled.
type Badge struct {
	doc         dom.Document
	profileBase string

	mu       sync.Mutex
	enabled  bool
	host     dom.Element
	preview  dom.Element
	previewS string

	// last placement, replayed when the badge is re-enabled
	anchor   dom.Element
	mode     string
	identity *models.ResolvedIdentity
}

// New creates a Badge for doc. An empty profileBase uses DefaultProfileBaseURL.
func New(doc dom.Document, profileBase string) *Badge {
	if profileBase == "" {
		profileBase = DefaultProfileBaseURL
	}
	return &Badge{doc: doc, profileBase: profileBase, enabled: true}
}

// Mount inserts the badge into anchor (inline) or the body (floating).
func (b *Badge) Mount(anchor dom.Element, mode string, identity *models.ResolvedIdentity) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.anchor, b.mode, b.identity = anchor, mode, identity
	if !b.enabled {
		return
	}
	b.mountLocked()
}

func (b *Badge) mountLocked() {
	if b.host != nil {
		b.doc.Remove(b.host)
		b.host = nil
	}

	body := b.doc.Body()
	if body == nil || b.identity == nil {
		return
	}

	parent := b.anchor
	mode := b.mode
	if mode != models.ModeInline || parent == nil || parent.Same(body) || !body.Contains(parent) {
		parent = body
		mode = models.ModeFloating
	}

	class := BadgeClass
	if mode == models.ModeFloating {
		class += " " + FloatingClass
	}

	host := b.doc.CreateElement("div", map[string]string{
		"id":                HostID,
		"class":             class,
		"data-kununu-badge": "true",
		"data-slug":         b.identity.Slug,
		"data-source":       string(b.identity.Source),
		dom.ShadowHostAttr:  "closed",
		"role":              "status",
		"aria-label":        "Kununu rating placeholder",
	}, "")
	b.doc.AppendChild(host, b.doc.CreateElement("span", map[string]string{"class": BadgeClass + "__label"}, placeholder))
	b.doc.AppendChild(parent, host)
	b.host = host

	slog.Debug("badge mounted", "mode", mode, "slug", b.identity.Slug)
}

// Unmount removes the badge and any open preview.
func (b *Badge) Unmount() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unmountLocked()
}

func (b *Badge) unmountLocked() {
	if b.host != nil {
		b.doc.Remove(b.host)
		b.host = nil
	}
	b.closePreviewLocked()
}

// Attached reports whether the badge is in the document. A disabled badge
// counts as attached since there is nothing to restore.
func (b *Badge) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.enabled {
		return true
	}
	if b.host == nil {
		return false
	}
	el := b.doc.GetElementByID(HostID)
	return el != nil && el.Same(b.host)
}

// Enabled reports the per-page toggle.
func (b *Badge) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// SetEnabled toggles the badge, mounting it at its last placement when turned on.
func (b *Badge) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.enabled == enabled {
		return
	}
	b.enabled = enabled
	if enabled {
		b.mountLocked()
	} else {
		b.unmountLocked()
	}
}

// Click opens the preview overlay for the badge's slug and returns the profile URL.
func (b *Badge) Click() (models.PreviewResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.host == nil || b.identity == nil {
		return models.PreviewResponse{}, ErrNotMounted
	}
	slug := b.identity.Slug
	url := ProfileURL(b.profileBase, slug)

	if b.preview != nil && b.previewS == slug {
		return models.PreviewResponse{Slug: slug, URL: url}, nil
	}
	b.closePreviewLocked()

	body := b.doc.Body()
	if body == nil {
		return models.PreviewResponse{}, ErrNotMounted
	}

	overlay := b.doc.CreateElement("div", map[string]string{
		"id":                  PreviewID,
		"data-kununu-preview": "true",
		"data-slug":           slug,
		dom.ShadowHostAttr:    "closed",
		"role":                "dialog",
		"aria-modal":          "true",
	}, "")
	b.doc.AppendChild(overlay, b.doc.CreateElement("iframe", map[string]string{
		"src":   url,
		"title": "Kununu preview",
	}, ""))
	b.doc.AppendChild(body, overlay)
	b.preview = overlay
	b.previewS = slug

	slog.Info("preview overlay opened", "slug", slug)
	return models.PreviewResponse{Slug: slug, URL: url}, nil
}

// ClosePreview removes the preview overlay if it is open.
func (b *Badge) ClosePreview() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closePreviewLocked()
}

func (b *Badge) closePreviewLocked() {
	if b.preview == nil {
		return
	}
	b.doc.Remove(b.preview)
	b.preview = nil
	b.previewS = ""
}

// PreviewOpen reports whether the preview overlay is shown.
func (b *Badge) PreviewOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.preview != nil
}
