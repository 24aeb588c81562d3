// Package mapping persists confirmed and automatic company-to-slug associations.
package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"companylens/internal/models"
	"companylens/internal/storage"
)

// KeyPrefix namespaces mapping entries in the shared store.
const KeyPrefix = "slugmap:"

// ErrEmptyKey is returned for writes without a normalized key.
var ErrEmptyKey = errors.New("empty normalized key")

// Recorder receives write outcomes. op is "set" or "delete".
type Recorder interface {
	RecordMappingWrite(op string, err error)
}

// Store reads and writes mapping entries through a storage.Service.
type Store struct {
	svc      storage.Service
	now      func() time.Time
	recorder Recorder
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithRecorder reports write outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// New creates a Store over svc.
func New(svc storage.Service, opts ...Option) *Store {
	s := &Store{svc: svc, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StorageKey returns the persisted key for a normalized company key.
func StorageKey(normalizedKey string) string {
	return KeyPrefix + normalizedKey
}

// Get returns the entry for key. Missing entries, decode errors and storage
// failures all yield nil; failures are logged.
func (s *Store) Get(ctx context.Context, key string) *models.MappingEntry {
	if key == "" {
		return nil
	}

	sk := StorageKey(key)
	values, err := s.svc.Get(ctx, []string{sk})
	if err != nil {
		slog.Warn("mapping lookup failed", "key", key, "backend", s.svc.Name(), "error", err)
		return nil
	}
	raw, ok := values[sk]
	if !ok {
		return nil
	}

	entry, err := decode(raw)
	if err != nil {
		slog.Warn("ignoring undecodable mapping entry", "key", key, "error", err)
		return nil
	}
	return entry
}

// Set overwrites the entry for key, stamping UpdatedAt in UTC.
func (s *Store) Set(ctx context.Context, key, slug string, confirmed bool) error {
	if key == "" {
		return ErrEmptyKey
	}

	entry := models.MappingEntry{
		Slug:      slug,
		Confirmed: confirmed,
		UpdatedAt: s.now().UTC(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode mapping entry: %w", err)
	}

	err = s.svc.Set(ctx, map[string][]byte{StorageKey(key): raw})
	s.record("set", err)
	if err != nil {
		slog.Error("mapping write failed", "key", key, "slug", slug, "backend", s.svc.Name(), "error", err)
		return fmt.Errorf("failed to save mapping for %q: %w", key, err)
	}
	return nil
}

// Delete removes the entry for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	err := s.svc.Remove(ctx, []string{StorageKey(key)})
	s.record("delete", err)
	if err != nil {
		slog.Error("mapping delete failed", "key", key, "backend", s.svc.Name(), "error", err)
		return fmt.Errorf("failed to delete mapping for %q: %w", key, err)
	}
	return nil
}

// Watch calls fn for every change to a mapping entry. entry is nil when the
// mapping was removed or can no longer be decoded.
func (s *Store) Watch(fn func(key string, entry *models.MappingEntry)) func() {
	return s.svc.Subscribe(func(c storage.Change) {
		key, ok := strings.CutPrefix(c.Key, KeyPrefix)
		if !ok || key == "" {
			return
		}
		if c.Removed() {
			fn(key, nil)
			return
		}
		entry, err := decode(c.NewValue)
		if err != nil {
			slog.Warn("ignoring undecodable mapping change", "key", key, "error", err)
			fn(key, nil)
			return
		}
		fn(key, entry)
	})
}

func (s *Store) record(op string, err error) {
	if s.recorder != nil {
		s.recorder.RecordMappingWrite(op, err)
	}
}

func decode(raw []byte) (*models.MappingEntry, error) {
	var entry models.MappingEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	if entry.Slug == "" {
		return nil, errors.New("mapping entry has no slug")
	}
	return &entry, nil
}
