// Package settings persists the diagnostics configuration shared by all pages.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"companylens/internal/models"
	"companylens/internal/storage"
)

// Storage keys.
const (
	KeyDiagEnabled = "diagnostics.enabled"
	KeyDiagSlug    = "diagnostics.slug"
)

// DefaultDiagSlug is used when no test slug was saved.
const DefaultDiagSlug = "de/sap"

// Defaults returns the configuration used before anything is saved.
func Defaults() models.DiagnosticsConfig {
	return models.DiagnosticsConfig{Enabled: false, Slug: DefaultDiagSlug}
}

// Store reads and writes the diagnostics configuration.
type Store struct {
	svc storage.Service
}

// New creates a Store over svc.
func New(svc storage.Service) *Store {
	return &Store{svc: svc}
}

// Load returns the saved configuration, filling gaps with defaults. Storage
// failures are logged and yield the defaults.
func (s *Store) Load(ctx context.Context) models.DiagnosticsConfig {
	cfg := Defaults()

	values, err := s.svc.Get(ctx, []string{KeyDiagEnabled, KeyDiagSlug})
	if err != nil {
		slog.Warn("failed to load diagnostics settings", "backend", s.svc.Name(), "error", err)
		return cfg
	}

	if raw, ok := values[KeyDiagEnabled]; ok {
		var enabled bool
		if err := json.Unmarshal(raw, &enabled); err != nil {
			slog.Warn("ignoring invalid diagnostics flag", "error", err)
		} else {
			cfg.Enabled = enabled
		}
	}
	if raw, ok := values[KeyDiagSlug]; ok {
		var slug string
		if err := json.Unmarshal(raw, &slug); err != nil {
			slog.Warn("ignoring invalid diagnostics slug", "error", err)
		} else if slug != "" {
			cfg.Slug = slug
		}
	}
	return cfg
}

// Save persists cfg. An empty slug stores the default.
func (s *Store) Save(ctx context.Context, cfg models.DiagnosticsConfig) error {
	if cfg.Slug == "" {
		cfg.Slug = DefaultDiagSlug
	}

	enabled, err := json.Marshal(cfg.Enabled)
	if err != nil {
		return fmt.Errorf("failed to encode diagnostics flag: %w", err)
	}
	slug, err := json.Marshal(cfg.Slug)
	if err != nil {
		return fmt.Errorf("failed to encode diagnostics slug: %w", err)
	}

	if err := s.svc.Set(ctx, map[string][]byte{
		KeyDiagEnabled: enabled,
		KeyDiagSlug:    slug,
	}); err != nil {
		return fmt.Errorf("failed to save diagnostics settings: %w", err)
	}
	return nil
}

// Watch calls fn with the reloaded configuration whenever a diagnostics key changes.
func (s *Store) Watch(fn func(models.DiagnosticsConfig)) func() {
	return s.svc.Subscribe(func(c storage.Change) {
		if c.Key != KeyDiagEnabled && c.Key != KeyDiagSlug {
			return
		}
		fn(s.Load(context.Background()))
	})
}
