// Package testutil provides test utilities and helpers.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"companylens/internal/mapping"
	"companylens/internal/pages"
	"companylens/internal/settings"
	"companylens/internal/storage"
	"companylens/internal/watcher"
)

// Now is the fixed time every Stack clock reports.
var Now = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

// Clock collects debounce callbacks until Fire is called.
type Clock struct {
	mu     sync.Mutex
	timers []*timer
}

type timer struct {
	mu      sync.Mutex
	fn      func()
	stopped bool
}

func (t *timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// AfterFunc records fn instead of scheduling it.
func (c *Clock) AfterFunc(_ time.Duration, fn func()) watcher.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Fire runs every pending callback that was not stopped.
func (c *Clock) Fire() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()

	for _, t := range timers {
		t.mu.Lock()
		stopped := t.stopped
		t.mu.Unlock()
		if !stopped {
			t.fn()
		}
	}
}

// Stack is an in-memory service stack for handler and server tests.
type Stack struct {
	Storage  *storage.Memory
	Mappings *mapping.Store
	Settings *settings.Store
	Registry *pages.Registry
	Clock    *Clock
}

// NewStack wires memory storage, the mapping and settings stores and a page
// registry driven by a manual clock. Pages are closed when the test ends.
func NewStack(t *testing.T) *Stack {
	t.Helper()

	mem := storage.NewMemory()
	s := &Stack{
		Storage:  mem,
		Mappings: mapping.New(mem, mapping.WithClock(func() time.Time { return Now })),
		Settings: settings.New(mem),
		Clock:    &Clock{},
	}
	s.Registry = pages.NewRegistry(pages.Config{
		Mappings:  s.Mappings,
		Settings:  s.Settings,
		AfterFunc: s.Clock.AfterFunc,
		Now:       func() time.Time { return Now },
	})
	stop := s.Settings.Watch(s.Registry.ApplyDiagnostics)

	t.Cleanup(func() {
		stop()
		s.Registry.CloseAll()
	})
	return s
}

// OpenPage opens html in the stack's registry.
func (s *Stack) OpenPage(t *testing.T, html string) *pages.Page {
	t.Helper()
	p, err := s.Registry.Open(context.Background(), "", html)
	if err != nil {
		t.Fatalf("failed to open test page: %v", err)
	}
	return p
}

// CreateTestMapping stores a confirmed mapping.
func (s *Stack) CreateTestMapping(t *testing.T, key, slug string) {
	t.Helper()
	if err := s.Mappings.Set(context.Background(), key, slug, true); err != nil {
		t.Fatalf("failed to create test mapping: %v", err)
	}
}
