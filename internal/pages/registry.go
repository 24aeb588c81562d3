// Package pages keeps the open page contexts: one parsed document per page with
// its own badge, resolver and change watcher.
package pages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"companylens/internal/anchor"
	"companylens/internal/badge"
	"companylens/internal/config"
	"companylens/internal/dom/htmldom"
	"companylens/internal/extract"
	"companylens/internal/mapping"
	"companylens/internal/models"
	"companylens/internal/resolver"
	"companylens/internal/settings"
	"companylens/internal/validation"
	"companylens/internal/watcher"
)

// Page context error sentinels.
var (
	ErrPageNotFound = errors.New("page not found")
	ErrNoContent    = errors.New("url or html is required")
	ErrTooManyPages = errors.New("too many open pages")
	ErrNotFetched   = errors.New("page was not opened from a url")
)

// Config wires a Registry. Mappings is required; everything else has a default.
type Config struct {
	Heuristics     *config.Heuristics
	Mappings       *mapping.Store
	Settings       *settings.Store
	Fetcher        *Fetcher
	DebounceDelay  time.Duration
	ProfileBaseURL string
	MaxPages       int // 0 means unlimited
	AfterFunc      watcher.AfterFunc
	Recorder       resolver.Recorder
	Now            func() time.Time
}

// Page is one open page context.
type Page struct {
	ID        uuid.UUID
	URL       string
	CreatedAt time.Time

	doc       *htmldom.Document
	badge     *badge.Badge
	resolver  *resolver.Resolver
	stopWatch func()

	jobSite bool

	mu      sync.Mutex
	fetched bool
	hash    uint64
}

// Identity returns the page's current identity, nil when no company was found.
func (p *Page) Identity() *models.ResolvedIdentity {
	return p.resolver.Identity()
}

// Resolver exposes the page's resolver for mapping confirmation.
func (p *Page) Resolver() *resolver.Resolver {
	return p.resolver
}

// HTML renders the current document including injected elements.
func (p *Page) HTML() string {
	return p.doc.HTML()
}

// ClickBadge opens the preview overlay for the current slug.
func (p *Page) ClickBadge() (models.PreviewResponse, error) {
	var (
		resp models.PreviewResponse
		err  error
	)
	p.resolver.Serialize(func() {
		resp, err = p.badge.Click()
	})
	return resp, err
}

// SetBadgeEnabled toggles the badge for this page only.
func (p *Page) SetBadgeEnabled(enabled bool) {
	p.resolver.Serialize(func() {
		p.badge.SetEnabled(enabled)
	})
}

// JobDescription extracts the posting from the current document.
func (p *Page) JobDescription() (models.JobDescription, error) {
	company := ""
	if id := p.Identity(); id != nil && id.Company != nil {
		company = id.Company.Raw
	}
	return ExtractJobDescription(p.doc, company)
}

// Response builds the API view of the page.
func (p *Page) Response() models.PageResponse {
	return models.PageResponse{
		ID:           p.ID,
		URL:          p.URL,
		JobSite:      p.jobSite,
		BadgeEnabled: p.badge.Enabled(),
		Identity:     p.Identity(),
		CreatedAt:    p.CreatedAt,
	}
}

func (p *Page) close() {
	p.stopWatch()
	p.resolver.Close()
	p.resolver.Serialize(p.badge.ClosePreview)
}

// Registry owns all open page contexts.
type Registry struct {
	cfg Config

	mu    sync.RWMutex
	pages map[uuid.UUID]*Page
}

// NewRegistry creates an empty Registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.Heuristics == nil {
		cfg.Heuristics = config.DefaultHeuristics()
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = watcher.DefaultDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{cfg: cfg, pages: make(map[uuid.UUID]*Page)}
}

// Open creates a page context from html, or from the document at url when html
// is empty, and runs the first resolution.
func (r *Registry) Open(ctx context.Context, url, html string) (*Page, error) {
	if url == "" && html == "" {
		return nil, ErrNoContent
	}
	if r.full() {
		return nil, ErrTooManyPages
	}

	fetched := false
	if html == "" {
		if r.cfg.Fetcher == nil {
			return nil, fmt.Errorf("%w: fetching is disabled", ErrNoContent)
		}
		body, err := r.cfg.Fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		html = body
		fetched = true
	}

	doc, err := htmldom.ParseString(html)
	if err != nil {
		return nil, err
	}

	p := r.build(ctx, doc)
	p.URL = url
	p.jobSite = validation.IsJobSite(url, r.cfg.Heuristics.JobSites)
	p.fetched = fetched
	p.hash = xxhash.Sum64String(html)

	r.mu.Lock()
	if r.cfg.MaxPages > 0 && len(r.pages) >= r.cfg.MaxPages {
		r.mu.Unlock()
		p.close()
		return nil, ErrTooManyPages
	}
	r.pages[p.ID] = p
	r.mu.Unlock()

	p.resolver.Resolve(ctx)

	slog.Info("page opened", "id", p.ID, "url", url, "fetched", fetched)
	return p, nil
}

func (r *Registry) full() bool {
	if r.cfg.MaxPages <= 0 {
		return false
	}
	return r.Count() >= r.cfg.MaxPages
}

func (r *Registry) build(ctx context.Context, doc *htmldom.Document) *Page {
	h := r.cfg.Heuristics

	diagCfg := settings.Defaults()
	if r.cfg.Settings != nil {
		diagCfg = r.cfg.Settings.Load(ctx)
	}

	b := badge.New(doc, r.cfg.ProfileBaseURL)
	opts := []resolver.Option{
		resolver.WithRenderer(b),
		resolver.WithDiagnostics(badge.NewDiagnosticsOverlay(doc, r.cfg.ProfileBaseURL)),
		resolver.WithDiagnosticsConfig(diagCfg),
		resolver.WithClock(r.cfg.Now),
	}
	if r.cfg.Recorder != nil {
		opts = append(opts, resolver.WithRecorder(r.cfg.Recorder))
	}
	res := resolver.New(doc,
		anchor.New(h.AnchorSelectors, h.MarkerWords),
		extract.New(h.NameAttributes, h.NestedSelectors),
		r.cfg.Mappings,
		opts...,
	)

	watchOpts := []watcher.Option{
		watcher.WithDelay(r.cfg.DebounceDelay),
		watcher.WithOwnPrefix(h.OwnPrefix),
	}
	if r.cfg.AfterFunc != nil {
		watchOpts = append(watchOpts, watcher.WithAfterFunc(r.cfg.AfterFunc))
	}
	w := watcher.New(doc, res, func() {
		res.Resolve(context.Background())
	}, watchOpts...)

	return &Page{
		ID:        uuid.New(),
		CreatedAt: r.cfg.Now().UTC(),
		doc:       doc,
		badge:     b,
		resolver:  res,
		stopWatch: w.Start(),
	}
}

// Get returns the page with id.
func (r *Registry) Get(id uuid.UUID) (*Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pages[id]
	if !ok {
		return nil, ErrPageNotFound
	}
	return p, nil
}

// List returns the open pages, oldest first.
func (r *Registry) List() []*Page {
	r.mu.RLock()
	out := make([]*Page, 0, len(r.pages))
	for _, p := range r.pages {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Update replaces the page body with the body of html. Resolution follows
// through the change watcher once the debounce window passes.
func (r *Registry) Update(id uuid.UUID, html string) error {
	p, err := r.Get(id)
	if err != nil {
		return err
	}
	if html == "" {
		return ErrNoContent
	}

	next, err := htmldom.ParseString(html)
	if err != nil {
		return err
	}
	body := next.BodyHTML()

	p.resolver.Serialize(func() {
		p.badge.ClosePreview()
		err = p.doc.ReplaceBody(body)
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.hash = xxhash.Sum64String(html)
	p.mu.Unlock()
	return nil
}

// Flush resolves the page immediately and returns the resulting identity.
func (r *Registry) Flush(ctx context.Context, id uuid.UUID) (*models.ResolvedIdentity, error) {
	p, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	p.resolver.Resolve(ctx)
	return p.Identity(), nil
}

// Close tears down the page context.
func (r *Registry) Close(id uuid.UUID) error {
	r.mu.Lock()
	p, ok := r.pages[id]
	delete(r.pages, id)
	r.mu.Unlock()
	if !ok {
		return ErrPageNotFound
	}
	p.close()
	slog.Info("page closed", "id", id)
	return nil
}

// CloseAll tears down every page context.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	pages := r.pages
	r.pages = make(map[uuid.UUID]*Page)
	r.mu.Unlock()

	for _, p := range pages {
		p.close()
	}
}

// Count returns the number of open pages.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pages)
}

// ApplyDiagnostics switches every open page to cfg.
func (r *Registry) ApplyDiagnostics(cfg models.DiagnosticsConfig) {
	for _, p := range r.List() {
		p.resolver.SetDiagnostics(cfg)
	}
}

// Fetched returns the pages that were opened from a URL and can be refreshed.
func (r *Registry) Fetched() []*Page {
	var out []*Page
	for _, p := range r.List() {
		p.mu.Lock()
		fetched := p.fetched
		p.mu.Unlock()
		if fetched {
			out = append(out, p)
		}
	}
	return out
}

// Refresh re-fetches a page opened from a URL and pushes the new body when the
// content changed. It reports whether the page was updated.
func (r *Registry) Refresh(ctx context.Context, id uuid.UUID) (bool, error) {
	p, err := r.Get(id)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	fetched, prev := p.fetched, p.hash
	p.mu.Unlock()
	if !fetched || r.cfg.Fetcher == nil {
		return false, ErrNotFetched
	}

	html, err := r.cfg.Fetcher.Fetch(ctx, p.URL)
	if err != nil {
		return false, err
	}
	if xxhash.Sum64String(html) == prev {
		return false, nil
	}
	if err := r.Update(id, html); err != nil {
		return false, err
	}
	slog.Debug("page content changed", "id", id, "url", p.URL)
	return true, nil
}
