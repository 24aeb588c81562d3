package storage

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// BackendMemory is the name reported by the in-process backend.
const BackendMemory = "memory"

// Memory keeps values in process memory. It is the fallback whenever a durable
// backend is disabled or unreachable; everything is lost on restart.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
	hub    *Hub
}

var _ Service = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte), hub: NewHub()}
}

func (m *Memory) Get(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = bytes.Clone(v)
		}
	}
	return out, nil
}

func (m *Memory) Set(ctx context.Context, values map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m.mu.Lock()
	changes := make([]Change, 0, len(keys))
	for _, k := range keys {
		v := bytes.Clone(values[k])
		if v == nil {
			v = []byte{}
		}
		old, existed := m.values[k]
		if existed && bytes.Equal(old, v) {
			continue
		}
		m.values[k] = v
		changes = append(changes, Change{Key: k, OldValue: old, NewValue: bytes.Clone(v)})
	}
	m.mu.Unlock()

	m.hub.Emit(changes...)
	return nil
}

func (m *Memory) Remove(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	changes := make([]Change, 0, len(keys))
	for _, k := range keys {
		old, ok := m.values[k]
		if !ok {
			continue
		}
		delete(m.values, k)
		changes = append(changes, Change{Key: k, OldValue: old})
	}
	m.mu.Unlock()

	m.hub.Emit(changes...)
	return nil
}

func (m *Memory) Subscribe(fn func(Change)) func() {
	return m.hub.Subscribe(fn)
}

func (m *Memory) Name() string {
	return BackendMemory
}

func (m *Memory) Close() error {
	return nil
}
