// Package redisstore persists key-value pairs in Redis and distributes change
// events to every process through Redis pub/sub.
package redisstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"companylens/internal/storage"
)

// Backend is the name reported by this store.
const Backend = "redis"

const (
	defaultPrefix  = "companylens:kv:"
	defaultChannel = "companylens:changes"
)

// Store is a storage.Service over gofiber's Redis storage.
type Store struct {
	kv      *fiberredis.Storage
	client  redis.UniversalClient
	prefix  string
	channel string
	hub     *storage.Hub

	pubsub *redis.PubSub
	wg     sync.WaitGroup
	once   sync.Once
}

var _ storage.Service = (*Store)(nil)

// New connects to url and starts the change listener. The underlying storage
// panics when the server is unreachable; that is reported as storage.ErrUnavailable.
func New(ctx context.Context, url string) (s *Store, err error) {
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = fmt.Errorf("%w: redis: %v", storage.ErrUnavailable, r)
		}
	}()

	kv := fiberredis.New(fiberredis.Config{URL: url})
	s = &Store{
		kv:      kv,
		client:  kv.Conn(),
		prefix:  defaultPrefix,
		channel: defaultChannel,
		hub:     storage.NewHub(),
	}

	s.pubsub = s.client.Subscribe(ctx, s.channel)
	if _, err := s.pubsub.Receive(ctx); err != nil {
		_ = s.pubsub.Close()
		_ = kv.Close()
		return nil, fmt.Errorf("%w: failed to subscribe to %s: %v", storage.ErrUnavailable, s.channel, err)
	}

	s.wg.Add(1)
	go s.listen(s.pubsub.Channel())

	return s, nil
}

func (s *Store) listen(ch <-chan *redis.Message) {
	defer s.wg.Done()
	for msg := range ch {
		var c storage.Change
		if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
			slog.Warn("dropping malformed change event", "channel", msg.Channel, "error", err)
			continue
		}
		s.hub.Emit(c)
	}
}

func (s *Store) Get(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		v, err := s.kv.GetWithContext(ctx, s.prefix+k)
		if err != nil {
			return nil, fmt.Errorf("%w: get %s: %v", storage.ErrUnavailable, k, err)
		}
		if v != nil {
			out[k] = v
		}
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, values map[string][]byte) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := values[k]
		if v == nil {
			v = []byte{}
		}
		old, err := s.kv.GetWithContext(ctx, s.prefix+k)
		if err != nil {
			return fmt.Errorf("%w: get %s: %v", storage.ErrUnavailable, k, err)
		}
		if old != nil && bytes.Equal(old, v) {
			continue
		}
		if err := s.kv.SetWithContext(ctx, s.prefix+k, v, 0); err != nil {
			return fmt.Errorf("%w: set %s: %v", storage.ErrUnavailable, k, err)
		}
		s.publish(ctx, storage.Change{Key: k, OldValue: old, NewValue: v})
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, keys []string) error {
	for _, k := range keys {
		old, err := s.kv.GetWithContext(ctx, s.prefix+k)
		if err != nil {
			return fmt.Errorf("%w: get %s: %v", storage.ErrUnavailable, k, err)
		}
		if old == nil {
			continue
		}
		if err := s.kv.DeleteWithContext(ctx, s.prefix+k); err != nil {
			return fmt.Errorf("%w: delete %s: %v", storage.ErrUnavailable, k, err)
		}
		s.publish(ctx, storage.Change{Key: k, OldValue: old})
	}
	return nil
}

// publish broadcasts c; local subscribers receive it through the same channel.
// A failed publish only costs other processes a live update.
func (s *Store) publish(ctx context.Context, c storage.Change) {
	payload, err := json.Marshal(c)
	if err != nil {
		slog.Error("failed to encode change event", "key", c.Key, "error", err)
		return
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		slog.Warn("failed to publish change event", "key", c.Key, "error", err)
	}
}

func (s *Store) Subscribe(fn func(storage.Change)) func() {
	return s.hub.Subscribe(fn)
}

func (s *Store) Name() string {
	return Backend
}

// Close stops the listener and closes the connection.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		if s.pubsub != nil {
			_ = s.pubsub.Close()
		}
		s.wg.Wait()
		err = s.kv.Close()
	})
	return err
}
