package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"companylens/internal/storage"
)

// Backend is the name reported by the Postgres store.
const Backend = "postgres"

// ChangeChannel is the NOTIFY channel carrying kv_store changes.
const ChangeChannel = "kv_changes"

// Querier abstracts the pgx methods KV needs. *pgxpool.Pool and pgxmock pools
// both satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// KV is a storage.Service over the kv_store table. Writes announce themselves
// with pg_notify; HandleNotification turns the payloads back into changes.
type KV struct {
	q   Querier
	hub *storage.Hub
}

var _ storage.Service = (*KV)(nil)

// NewKV creates a KV over q.
func NewKV(q Querier) *KV {
	return &KV{q: q, hub: storage.NewHub()}
}

func (kv *KV) Get(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := kv.q.Query(ctx, `SELECT key, value FROM kv_store WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan kv row: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return out, nil
}

func (kv *KV) Set(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := kv.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, k := range keys {
		v := values[k]
		if v == nil {
			v = []byte{}
		}

		old, err := lockValue(ctx, tx, k)
		if err != nil {
			return err
		}
		if old != nil && bytes.Equal(old, v) {
			continue
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO kv_store (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		`, k, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", k, err)
		}
		if err := notify(ctx, tx, storage.Change{Key: k, OldValue: old, NewValue: v}); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit kv write: %w", err)
	}
	return nil
}

func (kv *KV) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := kv.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, k := range keys {
		var old []byte
		err := tx.QueryRow(ctx, `DELETE FROM kv_store WHERE key = $1 RETURNING value`, k).Scan(&old)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to remove %s: %w", k, err)
		}
		if err := notify(ctx, tx, storage.Change{Key: k, OldValue: old}); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit kv removal: %w", err)
	}
	return nil
}

func lockValue(ctx context.Context, tx pgx.Tx, key string) ([]byte, error) {
	var old []byte
	err := tx.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1 FOR UPDATE`, key).Scan(&old)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return old, nil
}

// notify is delivered on commit, so listeners never see rolled-back writes.
func notify(ctx context.Context, tx pgx.Tx, c storage.Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, ChangeChannel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify change of %s: %w", c.Key, err)
	}
	return nil
}

// HandleNotification decodes a kv_changes payload and emits it to subscribers.
func (kv *KV) HandleNotification(payload string) error {
	var c storage.Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil || c.Key == "" {
		slog.Warn("dropping malformed kv notification", "payload_len", len(payload))
		return ErrInvalidNotification
	}
	kv.hub.Emit(c)
	return nil
}

func (kv *KV) Subscribe(fn func(storage.Change)) func() {
	return kv.hub.Subscribe(fn)
}

func (kv *KV) Name() string {
	return Backend
}

// Close is a no-op; the pool is owned by DB.
func (kv *KV) Close() error {
	return nil
}
