package store

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

const watchBuffer = 64

// MemoryBackend is process-local storage shared by any number of MemoryStore
// handles, standing in for browser storage shared by tabs of one origin.
type MemoryBackend struct {
	mu          sync.RWMutex
	data        map[string]map[string][]byte // namespace -> key -> value
	versions    map[string]uint64
	quotaBytes  int
	unavailable bool
	watchers    map[*memoryWatcher]struct{}
}

type memoryWatcher struct {
	mu        sync.Mutex
	namespace string
	origin    string
	ch        chan Change
	closed    bool
}

// NewMemoryBackend creates a backend. quotaBytes caps the total size of keys and
// values per namespace; zero means unlimited.
func NewMemoryBackend(quotaBytes int) *MemoryBackend {
	return &MemoryBackend{
		data:       make(map[string]map[string][]byte),
		versions:   make(map[string]uint64),
		quotaBytes: quotaBytes,
		watchers:   make(map[*memoryWatcher]struct{}),
	}
}

// SetUnavailable makes every operation fail with ErrUnavailable until switched back.
func (b *MemoryBackend) SetUnavailable(unavailable bool) {
	b.mu.Lock()
	b.unavailable = unavailable
	b.mu.Unlock()
}

// Open returns a new handle with its own origin.
func (b *MemoryBackend) Open(namespace string) *MemoryStore {
	return &MemoryStore{backend: b, namespace: namespace, origin: uuid.New().String()}
}

// MemoryStore is a handle onto a MemoryBackend namespace
type MemoryStore struct {
	backend   *MemoryBackend
	namespace string
	origin    string
}

func (s *MemoryStore) Origin() string { return s.origin }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := s.backend
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.unavailable {
		return nil, ErrUnavailable
	}
	value, ok := b.data[s.namespace][key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := s.backend
	b.mu.Lock()

	if b.unavailable {
		b.mu.Unlock()
		return ErrUnavailable
	}

	ns := b.data[s.namespace]
	if ns == nil {
		ns = make(map[string][]byte)
		b.data[s.namespace] = ns
	}

	if b.quotaBytes > 0 {
		size := len(key) + len(value)
		for k, v := range ns {
			if k != key {
				size += len(k) + len(v)
			}
		}
		if size > b.quotaBytes {
			b.mu.Unlock()
			return ErrQuotaExceeded
		}
	}

	stored := append([]byte(nil), value...)
	ns[key] = stored
	b.versions[s.namespace]++
	change := Change{Key: key, Origin: s.origin, Version: b.versions[s.namespace], Value: stored}

	var targets []*memoryWatcher
	for w := range b.watchers {
		if w.namespace == s.namespace && w.origin != s.origin {
			targets = append(targets, w)
		}
	}
	b.mu.Unlock()

	for _, w := range targets {
		w.send(change)
	}
	return nil
}

func (s *MemoryStore) Version(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b := s.backend
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.unavailable {
		return 0, ErrUnavailable
	}
	return b.versions[s.namespace], nil
}

// Watch delivers writes made through other handles of the same namespace.
func (s *MemoryStore) Watch(ctx context.Context) (<-chan Change, error) {
	w := &memoryWatcher{
		namespace: s.namespace,
		origin:    s.origin,
		ch:        make(chan Change, watchBuffer),
	}

	b := s.backend
	b.mu.Lock()
	b.watchers[w] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.watchers, w)
		b.mu.Unlock()
		w.close()
	}()

	return w.ch, nil
}

func (w *memoryWatcher) send(c Change) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.ch <- c:
	default:
		// the poller will still pick the write up through Version
		log.Printf("[STORE] watch buffer full, dropping change for key %s", c.Key)
	}
}

func (w *memoryWatcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
}
