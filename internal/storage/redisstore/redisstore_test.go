package redisstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"companylens/internal/storage"
)

// skipIfNoRedis skips the test if TEST_REDIS_URL is not set.
func skipIfNoRedis(t *testing.T) string {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping integration test")
	}
	return url
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := New(ctx, "redis://127.0.0.1:1/0")
	if err == nil {
		t.Fatal("New() expected error for unreachable server")
	}
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Errorf("New() error = %v, want ErrUnavailable", err)
	}
}

func TestStore_RoundTripAndChanges(t *testing.T) {
	url := skipIfNoRedis(t)
	ctx := context.Background()

	s, err := New(ctx, url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	key := "test:" + time.Now().Format(time.RFC3339Nano)
	defer s.Remove(ctx, []string{key})

	changes := make(chan storage.Change, 4)
	dispose := s.Subscribe(func(c storage.Change) {
		if c.Key == key {
			changes <- c
		}
	})
	defer dispose()

	if err := s.Set(ctx, map[string][]byte{key: []byte(`{"slug":"de/acme"}`)}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := s.Get(ctx, []string{key, key + ":missing"})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got[key]) != `{"slug":"de/acme"}` {
		t.Errorf("Get() = %q", got[key])
	}
	if _, ok := got[key+":missing"]; ok {
		t.Error("Get() returned a value for a missing key")
	}

	select {
	case c := <-changes:
		if string(c.NewValue) != `{"slug":"de/acme"}` {
			t.Errorf("change NewValue = %q", c.NewValue)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change event received")
	}

	if err := s.Remove(ctx, []string{key}); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	select {
	case c := <-changes:
		if !c.Removed() {
			t.Errorf("change = %+v, want removal", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no removal event received")
	}
}
