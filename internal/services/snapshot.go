package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/alxne/storefront/internal/metrics"
	"github.com/alxne/storefront/internal/store"
)

// snapshot holds the last list successfully loaded from or written to the store
type snapshot[T any] struct {
	mu     sync.RWMutex
	items  []T
	loaded bool
}

func (s *snapshot[T]) get() ([]T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, false
	}
	return append([]T{}, s.items...), true
}

func (s *snapshot[T]) set(items []T) {
	s.mu.Lock()
	s.items = append([]T{}, items...)
	s.loaded = true
	s.mu.Unlock()
}

// collection is one JSON list in the store with its snapshot
type collection[T any] struct {
	store   store.Store
	metrics *metrics.AppMetrics
	key     string
	cache   snapshot[T]
}

func newCollection[T any](s store.Store, m *metrics.AppMetrics, key string) *collection[T] {
	return &collection[T]{store: s, metrics: m, key: key}
}

// load reads the list, serving the snapshot when the store fails
func (c *collection[T]) load(ctx context.Context) ([]T, error) {
	items, err := c.read(ctx)
	if err == nil {
		return items, nil
	}

	if cached, ok := c.cache.get(); ok {
		log.Printf("[STORE] read %s failed, serving last snapshot: %v", c.key, err)
		c.metrics.RecordSnapshotFallback(ctx, c.key, true)
		return cached, nil
	}
	c.metrics.RecordSnapshotFallback(ctx, c.key, false)
	return nil, err
}

// read reads the list with no fallback, for read-modify-write
func (c *collection[T]) read(ctx context.Context) ([]T, error) {
	start := time.Now()
	items, err := store.GetList[T](ctx, c.store, c.key)
	c.metrics.RecordStoreOp(ctx, "get", c.key, start, err)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.key, err)
	}
	c.cache.set(items)
	return items, nil
}

func (c *collection[T]) save(ctx context.Context, items []T) error {
	start := time.Now()
	err := store.SetList(ctx, c.store, c.key, items)
	c.metrics.RecordStoreOp(ctx, "set", c.key, start, err)
	if err != nil {
		return fmt.Errorf("save %s: %w", c.key, err)
	}
	c.cache.set(items)
	return nil
}
