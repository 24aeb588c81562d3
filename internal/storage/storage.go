// Package storage defines the key-value persistence contract shared by the
// mapping store and the settings, plus the ephemeral in-process backend.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.New("storage unavailable")

// Change describes one key update. NewValue is nil when the key was removed.
type Change struct {
	Key      string `json:"key"`
	OldValue []byte `json:"old_value,omitempty"`
	NewValue []byte `json:"new_value"`
}

// Removed reports whether the change deleted the key.
func (c Change) Removed() bool {
	return c.NewValue == nil
}

// Service is a string-keyed byte store with a change stream.
type Service interface {
	// Get returns the values of the keys that exist. Missing keys are absent from the map.
	Get(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, values map[string][]byte) error
	Remove(ctx context.Context, keys []string) error
	// Subscribe registers fn for changes made by any writer. The returned
	// function unregisters it.
	Subscribe(fn func(Change)) func()
	// Name identifies the backend in health output and logs.
	Name() string
	Close() error
}

// Hub fans changes out to subscribers. Callbacks run on the emitting goroutine
// with no lock held, so a subscriber may write back to the store.
type Hub struct {
	mu   sync.Mutex
	subs map[int]func(Change)
	next int
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]func(Change))}
}

// Subscribe adds fn and returns its disposer.
func (h *Hub) Subscribe(fn func(Change)) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Emit delivers each change to every subscriber in subscription order.
func (h *Hub) Emit(changes ...Change) {
	if len(changes) == 0 {
		return
	}

	h.mu.Lock()
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.subs[id])
	}
	h.mu.Unlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}
