// Package notify delivers change notifications to consumers of the storefront
// data: same-process events on a Bus, cross-handle storage signals, and a
// version poller for when both are missed.
package notify

import (
	"sync"

	"github.com/alxne/storefront/internal/store"
)

// Event names a collection that changed
type Event string

const (
	ProductsUpdated Event = "products-updated"
	SalesUpdated    Event = "sales-updated"
	CartUpdated     Event = "cart-updated"
	ReviewsUpdated  Event = "reviews-updated"
	WishlistUpdated Event = "wishlist-updated"
)

// EventForKey maps a persisted key to the event announced when it changes.
func EventForKey(key string) (Event, bool) {
	switch key {
	case store.KeyProducts:
		return ProductsUpdated, true
	case store.KeyCampaigns:
		return SalesUpdated, true
	case store.KeyCart:
		return CartUpdated, true
	case store.KeyReviews:
		return ReviewsUpdated, true
	}
	if store.IsCartKey(key) {
		return CartUpdated, true
	}
	return "", false
}

type Handler func(Event)

type subscriber struct {
	id      uint64
	events  map[Event]struct{}
	handler Handler
}

func (s *subscriber) wants(e Event) bool {
	if len(s.events) == 0 {
		return true
	}
	_, ok := s.events[e]
	return ok
}

// Bus is a same-process event dispatcher. Publish calls handlers synchronously
// in registration order, so listeners have run by the time Publish returns.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []*subscriber
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for the given events, or for every event when none
// are given. The returned function removes the handler and may be called repeatedly.
func (b *Bus) Subscribe(handler Handler, events ...Event) func() {
	sub := &subscriber{handler: handler, events: make(map[Event]struct{}, len(events))}
	for _, e := range events {
		sub.events[e] = struct{}{}
	}

	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub.id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers e to the current subscribers. The lock is not held while
// handlers run, so a handler may subscribe, unsubscribe or publish.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := make([]*subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.wants(e) {
			s.handler(e)
		}
	}
}

// Len returns the number of registered handlers
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
