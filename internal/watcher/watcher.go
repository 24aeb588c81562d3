// Package watcher re-runs resolution after the page structure changes,
// debouncing bursts and ignoring the resolver's own writes.
package watcher

import (
	"strings"
	"sync"
	"time"

	"companylens/internal/dom"
)

// DefaultDelay is the trailing-edge debounce window.
const DefaultDelay = 300 * time.Millisecond

// Timer is the part of *time.Timer the watcher needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules fn after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, fn func()) Timer

// Guard reports whether the resolver is currently writing to the document.
type Guard interface {
	IsMutating() bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDelay sets the debounce window.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithAfterFunc replaces the scheduler, mainly for tests.
func WithAfterFunc(fn AfterFunc) Option {
	return func(w *Watcher) {
		w.afterFunc = fn
	}
}

// WithOwnPrefix sets the id/class/attribute prefix of injected elements.
func WithOwnPrefix(prefix string) Option {
	return func(w *Watcher) {
		w.ownPrefix = prefix
	}
}

// Watcher observes a document and calls trigger once a burst of qualifying
// mutations has settled.
type Watcher struct {
	doc       dom.Document
	guard     Guard
	trigger   func()
	delay     time.Duration
	afterFunc AfterFunc
	ownPrefix string

	mu      sync.Mutex
	timer   Timer
	gen     uint64
	stopped bool
}

// New creates a Watcher. guard may be nil.
func New(doc dom.Document, guard Guard, trigger func(), opts ...Option) *Watcher {
	w := &Watcher{
		doc:       doc,
		guard:     guard,
		trigger:   trigger,
		delay:     DefaultDelay,
		afterFunc: realAfterFunc,
		ownPrefix: "kununu-",
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func realAfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Start begins observing. The returned function stops observation and cancels
// any pending trigger.
func (w *Watcher) Start() func() {
	dispose := w.doc.Observe(w.onMutations)

	var once sync.Once
	return func() {
		once.Do(func() {
			dispose()
			w.mu.Lock()
			w.stopped = true
			if w.timer != nil {
				w.timer.Stop()
				w.timer = nil
			}
			w.gen++
			w.mu.Unlock()
		})
	}
}

func (w *Watcher) onMutations(records []dom.MutationRecord) {
	if w.guard != nil && w.guard.IsMutating() {
		return
	}
	if !w.Qualifies(records) {
		return
	}
	w.schedule()
}

// schedule restarts the debounce window. Only the most recent timer may fire.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.timer = w.afterFunc(w.delay, func() {
		w.mu.Lock()
		if w.stopped || gen != w.gen {
			w.mu.Unlock()
			return
		}
		w.timer = nil
		w.mu.Unlock()

		w.trigger()
	})
}

// Qualifies reports whether a batch changes page structure outside the
// service's own elements.
func (w *Watcher) Qualifies(records []dom.MutationRecord) bool {
	for _, rec := range records {
		if rec.Type != dom.MutationChildList {
			continue
		}
		if rec.Target != nil && w.insideOwn(rec.Target) {
			continue
		}

		nodes := make([]dom.Element, 0, len(rec.Added)+len(rec.Removed))
		nodes = append(nodes, rec.Added...)
		nodes = append(nodes, rec.Removed...)

		if len(nodes) == 0 {
			if rec.Target != nil && rec.Target.Tag() == "body" {
				return true
			}
			continue
		}
		for _, n := range nodes {
			if !w.isOwn(n) {
				return true
			}
		}
	}
	return false
}

// insideOwn reports whether el or one of its ancestors is an injected element.
func (w *Watcher) insideOwn(el dom.Element) bool {
	for e := el; e != nil; e = e.Parent() {
		if w.isOwn(e) {
			return true
		}
	}
	return false
}

func (w *Watcher) isOwn(el dom.Element) bool {
	if w.ownPrefix == "" || el == nil {
		return false
	}
	if id, ok := el.Attr("id"); ok && strings.HasPrefix(id, w.ownPrefix) {
		return true
	}
	if class, ok := el.Attr("class"); ok {
		for _, c := range strings.Fields(class) {
			if strings.HasPrefix(c, w.ownPrefix) {
				return true
			}
		}
	}
	// data-kununu-* marker attributes
	if _, ok := el.Attr("data-" + w.ownPrefix + "badge"); ok {
		return true
	}
	if _, ok := el.Attr("data-" + w.ownPrefix + "preview"); ok {
		return true
	}
	return false
}
