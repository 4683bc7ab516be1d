// Package store is the namespaced key-value persistence behind the storefront
// data layer. Values are JSON documents; writes are last-write-wins.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Keys used by the storefront collections. Carts are stored per cart id under
// KeyCart + ":" + id, see CartKey.
const (
	KeyProducts  = "alxne_products"
	KeyCampaigns = "sales_campaigns"
	KeyCart      = "alxne_cart"
	KeyReviews   = "product_reviews"
)

const maxCartIDLen = 64

// CartKey returns the key of the cart with id. Ids are 1..64 characters of
// letters, digits, '-' and '_'.
func CartKey(id string) (string, error) {
	if id == "" || len(id) > maxCartIDLen {
		return "", fmt.Errorf("cart id must be 1..%d characters", maxCartIDLen)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return "", fmt.Errorf("cart id contains %q", r)
		}
	}
	return KeyCart + ":" + id, nil
}

// IsCartKey reports whether key holds a cart
func IsCartKey(key string) bool {
	return strings.HasPrefix(key, KeyCart+":")
}

var (
	ErrKeyNotFound   = errors.New("key not found")
	ErrUnavailable   = errors.New("storage unavailable")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Store is one handle onto a shared namespace. Several handles may share the same
// backing storage; each has its own Origin so change signals can skip the writer.
type Store interface {
	// Get returns the raw value for key or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the value for key and bumps the namespace version.
	Set(ctx context.Context, key string, value []byte) error
	// Version is incremented on every successful Set in the namespace.
	Version(ctx context.Context) (uint64, error)
	Origin() string
	Close() error
}

// Change describes a write made through another handle.
// Value is the raw serialized state; consumers should re-read instead of trusting it.
type Change struct {
	Key     string `json:"key"`
	Origin  string `json:"origin"`
	Version uint64 `json:"version"`
	Value   []byte `json:"value,omitempty"`
}

// Watcher is implemented by backends that can push cross-handle change signals.
// The channel is closed when ctx is done or the watch fails.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}

// GetList decodes the sequence stored at key. A missing key is an empty sequence.
func GetList[T any](ctx context.Context, s Store, key string) ([]T, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// SetList encodes items and writes them at key.
func SetList[T any](ctx context.Context, s Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
