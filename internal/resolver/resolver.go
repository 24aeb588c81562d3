// Package resolver turns the current page into a ResolvedIdentity: it locates
// the company anchor, extracts and normalizes the name, and prefers a stored
// mapping over generated slug candidates.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"companylens/internal/anchor"
	"companylens/internal/candidates"
	"companylens/internal/dom"
	"companylens/internal/extract"
	"companylens/internal/mapping"
	"companylens/internal/models"
	"companylens/internal/normalize"
)

// ErrEmptySlug is returned when confirming a mapping without a slug.
var ErrEmptySlug = errors.New("empty slug")

// Resolution outcomes reported to a Recorder besides the identity sources.
const (
	OutcomeNotFound  = "not_found"
	OutcomeUnchanged = "unchanged"
)

// Listener receives every published identity; nil means the identity was cleared.
type Listener func(identity *models.ResolvedIdentity)

// Renderer places the badge for an identity.
type Renderer interface {
	Mount(anchor dom.Element, mode string, identity *models.ResolvedIdentity)
	Unmount()
	// Attached reports whether the badge is currently part of the document.
	Attached() bool
}

// Diagnostics is the embed diagnostics overlay.
type Diagnostics interface {
	Show(slug string)
	Hide()
	Visible() bool
}

// Recorder receives resolution outcomes.
type Recorder interface {
	RecordResolution(outcome string)
}

// Option configures optional capabilities.
type Option func(*Resolver)

// WithRenderer mounts a badge for every published identity.
func WithRenderer(r Renderer) Option {
	return func(res *Resolver) {
		res.renderer = r
	}
}

// WithDiagnostics enables the diagnostics overlay when diagnostics are switched on.
func WithDiagnostics(d Diagnostics) Option {
	return func(res *Resolver) {
		res.diagnostics = d
	}
}

// WithRecorder reports resolution outcomes.
func WithRecorder(rec Recorder) Option {
	return func(res *Resolver) {
		res.recorder = rec
	}
}

// WithClock overrides the ResolvedAt timestamp source.
func WithClock(now func() time.Time) Option {
	return func(res *Resolver) {
		res.now = now
	}
}

// WithDiagnosticsConfig sets the initial diagnostics configuration.
func WithDiagnosticsConfig(cfg models.DiagnosticsConfig) Option {
	return func(res *Resolver) {
		res.diag = cfg
	}
}

// Resolver owns the identity of one page context.
type Resolver struct {
	doc       dom.Document
	locator   *anchor.Locator
	extractor *extract.Extractor
	mappings  *mapping.Store

	renderer    Renderer
	diagnostics Diagnostics
	recorder    Recorder
	now         func() time.Time

	// run serializes resolutions, mapping refreshes and external DOM writes.
	run      sync.Mutex
	mutating atomic.Bool

	mu        sync.RWMutex
	hasLast   bool
	lastKey   string
	identity  *models.ResolvedIdentity
	diag      models.DiagnosticsConfig
	listeners map[int]Listener
	nextID    int

	stopWatch func()
	closeOnce sync.Once
}

// New creates a Resolver for doc and starts following mapping changes.
func New(doc dom.Document, locator *anchor.Locator, extractor *extract.Extractor, mappings *mapping.Store, opts ...Option) *Resolver {
	r := &Resolver{
		doc:       doc,
		locator:   locator,
		extractor: extractor,
		mappings:  mappings,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.stopWatch = mappings.Watch(r.onMappingChange)
	return r
}

// Close stops following mapping changes and removes everything the resolver mounted.
func (r *Resolver) Close() {
	r.closeOnce.Do(func() {
		r.stopWatch()

		r.run.Lock()
		defer r.run.Unlock()
		r.write(func() {
			if r.renderer != nil {
				r.renderer.Unmount()
			}
			if r.diagnostics != nil && r.diagnostics.Visible() {
				r.diagnostics.Hide()
			}
		})
	})
}

// Subscribe registers fn for published identities.
func (r *Resolver) Subscribe(fn Listener) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners, id)
			r.mu.Unlock()
		})
	}
}

// Identity returns the current identity, or nil when none is resolved.
func (r *Resolver) Identity() *models.ResolvedIdentity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.identity
}

// IsMutating reports whether the resolver is writing to the document.
func (r *Resolver) IsMutating() bool {
	return r.mutating.Load()
}

// DiagnosticsConfig returns the current diagnostics configuration.
func (r *Resolver) DiagnosticsConfig() models.DiagnosticsConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.diag
}

// Serialize runs fn while no resolution is in progress. Document writes from
// outside the resolver go through here so their mutations are never mistaken
// for the resolver's own.
func (r *Resolver) Serialize(fn func()) {
	r.run.Lock()
	defer r.run.Unlock()
	fn()
}

// Resolve runs one resolution pass. It never fails: a page without a usable
// company name clears the identity, and storage failures resolve in auto mode.
func (r *Resolver) Resolve(ctx context.Context) {
	r.run.Lock()
	next, changed := r.resolve(ctx)
	r.run.Unlock()

	if changed {
		r.notify(next)
	}
}

// resolve must be called with run held.
func (r *Resolver) resolve(ctx context.Context) (*models.ResolvedIdentity, bool) {
	located := r.locator.Locate(r.doc)
	if !located.Found() {
		return r.clear()
	}

	extracted := r.extractor.Extract(located.Element)
	if extracted.Raw == nil {
		return r.clear()
	}

	info := normalize.Analyze(*extracted.Raw)
	info.Tokens = extracted.Tokens

	r.mu.RLock()
	unchanged := r.hasLast && r.lastKey == info.NormalizedKey
	current := r.identity
	diagOn := r.diag.Enabled
	r.mu.RUnlock()

	if unchanged {
		r.record(OutcomeUnchanged)
		if current == nil {
			return nil, false
		}
		// The page may have replaced the element the badge lived in. Later
		// mapping refreshes render at the identity's anchor, so it follows
		// the page without a republish.
		if current.Anchor == nil || !current.Anchor.Same(located.Element) || current.Mode != located.Mode {
			moved := *current
			moved.Candidates = append([]string(nil), current.Candidates...)
			moved.Anchor = located.Element
			moved.Mode = located.Mode

			r.mu.Lock()
			r.identity = &moved
			r.mu.Unlock()
			current = &moved
		}
		if !diagOn && r.renderer != nil && !r.renderer.Attached() {
			r.render(located.Element, located.Mode, current)
		}
		return current, false
	}

	r.mu.Lock()
	r.hasLast = true
	r.lastKey = info.NormalizedKey
	r.mu.Unlock()

	next := &models.ResolvedIdentity{
		Company:    &info,
		Candidates: candidates.ForCompany(info),
		Mode:       located.Mode,
		ResolvedAt: r.now().UTC(),
		Anchor:     located.Element,
	}

	if !info.Identified() {
		next.Slug = candidates.FallbackSlug
		next.Source = models.SourceFallback
	} else {
		applyMapping(next, r.mappings.Get(ctx, info.NormalizedKey))
	}

	slog.Debug("company resolved",
		"raw", info.Raw,
		"key", info.NormalizedKey,
		"slug", next.Slug,
		"source", next.Source,
		"mode", next.Mode,
	)

	r.mu.Lock()
	r.identity = next
	r.mu.Unlock()

	r.record(string(next.Source))
	r.render(located.Element, located.Mode, next)
	return next, true
}

// applyMapping sets slug and source: a stored entry wins over the first candidate.
func applyMapping(id *models.ResolvedIdentity, entry *models.MappingEntry) {
	if entry != nil {
		id.Slug = entry.Slug
		id.Source = models.SourceMap
		return
	}
	id.Source = models.SourceAuto
	if len(id.Candidates) > 0 {
		id.Slug = id.Candidates[0]
	} else {
		id.Slug = candidates.FallbackSlug
	}
}

// clear forgets the identity and the last key, so the same company showing up
// again is resolved afresh. Must be called with run held.
func (r *Resolver) clear() (*models.ResolvedIdentity, bool) {
	r.mu.Lock()
	had := r.identity != nil
	r.identity = nil
	r.hasLast = false
	r.lastKey = ""
	r.mu.Unlock()

	r.record(OutcomeNotFound)
	if had && r.renderer != nil {
		r.write(r.renderer.Unmount)
	}
	return nil, had
}

// ConfirmSlug stores slug as the confirmed mapping for key and republishes the
// identity if key is the company currently shown.
func (r *Resolver) ConfirmSlug(ctx context.Context, key, slug string) error {
	if slug == "" {
		return ErrEmptySlug
	}
	if err := r.mappings.Set(ctx, key, slug, true); err != nil {
		return err
	}
	r.refresh(key, &models.MappingEntry{Slug: slug, Confirmed: true})
	return nil
}

// ResetSlug deletes the mapping for key; the identity falls back to the generated candidate.
func (r *Resolver) ResetSlug(ctx context.Context, key string) error {
	if err := r.mappings.Delete(ctx, key); err != nil {
		return err
	}
	r.refresh(key, nil)
	return nil
}

func (r *Resolver) onMappingChange(key string, entry *models.MappingEntry) {
	r.refresh(key, entry)
}

// refresh republishes the current identity with a changed mapping. Nothing
// happens for other keys or when slug and source stay the same.
func (r *Resolver) refresh(key string, entry *models.MappingEntry) {
	r.run.Lock()
	r.mu.RLock()
	current := r.identity
	r.mu.RUnlock()

	if current == nil || current.Source == models.SourceFallback || current.NormalizedKey() != key {
		r.run.Unlock()
		return
	}

	next := *current
	next.Candidates = append([]string(nil), current.Candidates...)
	applyMapping(&next, entry)
	if next.Slug == current.Slug && next.Source == current.Source {
		r.run.Unlock()
		return
	}
	next.ResolvedAt = r.now().UTC()

	r.mu.Lock()
	r.identity = &next
	r.mu.Unlock()

	slog.Info("mapping changed for current company", "key", key, "slug", next.Slug, "source", next.Source)
	r.record(string(next.Source))
	r.render(next.Anchor, next.Mode, &next)
	r.run.Unlock()

	r.notify(&next)
}

// SetDiagnostics switches between badge and diagnostics overlay.
func (r *Resolver) SetDiagnostics(cfg models.DiagnosticsConfig) {
	r.run.Lock()
	defer r.run.Unlock()

	r.mu.Lock()
	prev := r.diag
	r.diag = cfg
	current := r.identity
	r.mu.Unlock()

	if prev == cfg {
		return
	}
	slog.Info("diagnostics switched", "enabled", cfg.Enabled, "slug", cfg.Slug)

	if cfg.Enabled {
		r.write(r.showDiagnostics)
		return
	}

	r.write(func() {
		if r.diagnostics != nil && r.diagnostics.Visible() {
			r.diagnostics.Hide()
		}
	})
	if current == nil {
		return
	}
	located := r.locator.Locate(r.doc)
	if located.Found() {
		r.render(located.Element, located.Mode, current)
	}
}

// render mounts the badge, or the diagnostics overlay in diagnostics mode.
// Must be called with run held.
func (r *Resolver) render(anchorEl dom.Element, mode string, id *models.ResolvedIdentity) {
	r.mu.RLock()
	diagOn := r.diag.Enabled
	r.mu.RUnlock()

	if diagOn {
		r.write(r.showDiagnostics)
		return
	}
	if r.renderer == nil || anchorEl == nil {
		return
	}
	r.write(func() {
		r.renderer.Unmount()
		r.renderer.Mount(anchorEl, mode, id)
	})
}

func (r *Resolver) showDiagnostics() {
	if r.renderer != nil {
		r.renderer.Unmount()
	}
	if r.diagnostics == nil {
		return
	}
	r.mu.RLock()
	slug := r.diag.Slug
	r.mu.RUnlock()

	if r.diagnostics.Visible() {
		r.diagnostics.Hide()
	}
	r.diagnostics.Show(slug)
}

// write runs fn inside the mutating window.
func (r *Resolver) write(fn func()) {
	r.mutating.Store(true)
	defer r.mutating.Store(false)
	fn()
}

func (r *Resolver) notify(id *models.ResolvedIdentity) {
	r.mu.RLock()
	ids := make([]int, 0, len(r.listeners))
	for lid := range r.listeners {
		ids = append(ids, lid)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, lid := range ids {
		fns = append(fns, r.listeners[lid])
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn(id)
	}
}

func (r *Resolver) record(outcome string) {
	if r.recorder != nil {
		r.recorder.RecordResolution(outcome)
	}
}
