package settings

import (
	"context"
	"errors"
	"testing"

	"companylens/internal/models"
	"companylens/internal/storage"
)

type brokenStorage struct {
	*storage.Memory
}

func (brokenStorage) Get(context.Context, []string) (map[string][]byte, error) {
	return nil, storage.ErrUnavailable
}

func (brokenStorage) Set(context.Context, map[string][]byte) error {
	return storage.ErrUnavailable
}

func TestLoad_Defaults(t *testing.T) {
	s := New(storage.NewMemory())
	got := s.Load(context.Background())
	if got != Defaults() {
		t.Errorf("Load() = %+v, want %+v", got, Defaults())
	}
	if got.Enabled || got.Slug != "de/sap" {
		t.Errorf("Defaults() = %+v, want disabled de/sap", got)
	}
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := New(storage.NewMemory())

	want := models.DiagnosticsConfig{Enabled: true, Slug: "de/bosch"}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got := s.Load(ctx); got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if err := s.Save(ctx, models.DiagnosticsConfig{Enabled: false}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got := s.Load(ctx); got.Slug != DefaultDiagSlug || got.Enabled {
		t.Errorf("Load() = %+v, want defaults", got)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	_ = mem.Set(ctx, map[string][]byte{
		KeyDiagEnabled: []byte(`"yes"`),
		KeyDiagSlug:    []byte(`42`),
	})

	if got := New(mem).Load(ctx); got != Defaults() {
		t.Errorf("Load() = %+v, want defaults for invalid values", got)
	}
}

func TestStorageFailure(t *testing.T) {
	ctx := context.Background()
	s := New(brokenStorage{storage.NewMemory()})

	if got := s.Load(ctx); got != Defaults() {
		t.Errorf("Load() = %+v, want defaults", got)
	}
	if err := s.Save(ctx, models.DiagnosticsConfig{Enabled: true}); !errors.Is(err, storage.ErrUnavailable) {
		t.Errorf("Save() error = %v, want ErrUnavailable", err)
	}
}

func TestWatch(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	s := New(mem)

	var seen []models.DiagnosticsConfig
	dispose := s.Watch(func(cfg models.DiagnosticsConfig) {
		seen = append(seen, cfg)
	})

	_ = mem.Set(ctx, map[string][]byte{"slugmap:acme": []byte(`{"slug":"de/acme"}`)})
	if len(seen) != 0 {
		t.Fatalf("Watch fired for an unrelated key")
	}

	_ = s.Save(ctx, models.DiagnosticsConfig{Enabled: true, Slug: "de/x"})
	if len(seen) == 0 {
		t.Fatal("Watch did not fire")
	}
	for _, cfg := range seen {
		if !cfg.Enabled || cfg.Slug != "de/x" {
			t.Errorf("watched config = %+v", cfg)
		}
	}

	dispose()
	n := len(seen)
	_ = s.Save(ctx, models.DiagnosticsConfig{Enabled: false})
	if len(seen) != n {
		t.Error("Watch fired after dispose")
	}
}
