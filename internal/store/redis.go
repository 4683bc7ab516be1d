package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each key at "<namespace>:<key>", bumps "<namespace>:__version"
// in the same transaction, and announces writes on "<namespace>:storage".
type RedisStore struct {
	client    *redis.Client
	namespace string
	origin    string
}

func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{
		client:    client,
		namespace: namespace,
		origin:    uuid.New().String(),
	}
}

func (s *RedisStore) Origin() string { return s.origin }

// Close is a no-op; the client belongs to the caller.
func (s *RedisStore) Close() error { return nil }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, mapRedisError("get", err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(key), value, 0)
	incr := pipe.Incr(ctx, s.versionKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return mapRedisError("set", err)
	}

	payload, err := json.Marshal(Change{
		Key:     key,
		Origin:  s.origin,
		Version: uint64(incr.Val()),
		Value:   value,
	})
	if err != nil {
		return fmt.Errorf("marshal change failed: %w", err)
	}
	// the write already landed; subscribers that miss this fall back to polling
	if err := s.client.Publish(ctx, s.channel(), payload).Err(); err != nil {
		log.Printf("[STORE] redis publish failed for key %s: %v", key, err)
	}
	return nil
}

func (s *RedisStore) Version(ctx context.Context) (uint64, error) {
	v, err := s.client.Get(ctx, s.versionKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, mapRedisError("version", err)
	}
	return v, nil
}

// Watch subscribes to the namespace channel and forwards writes from other handles.
func (s *RedisStore) Watch(ctx context.Context) (<-chan Change, error) {
	sub := s.client.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, mapRedisError("subscribe", err)
	}

	out := make(chan Change, watchBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					log.Printf("[STORE] ignoring malformed change message: %v", err)
					continue
				}
				if change.Origin == s.origin {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *RedisStore) key(k string) string {
	return fmt.Sprintf("%s:%s", s.namespace, k)
}

func (s *RedisStore) versionKey() string {
	return s.namespace + ":__version"
}

func (s *RedisStore) channel() string {
	return s.namespace + ":storage"
}

func mapRedisError(op string, err error) error {
	if strings.HasPrefix(err.Error(), "OOM") {
		return fmt.Errorf("redis %s: %w: %w", op, ErrQuotaExceeded, err)
	}
	return fmt.Errorf("redis %s: %w: %w", op, ErrUnavailable, err)
}
