package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/alxne/storefront/internal/store"
)

// Source tells which channel produced a Signal
type Source string

const (
	SourceEvent   Source = "event"
	SourceStorage Source = "storage"
	SourcePoll    Source = "poll"
)

// Signal is handed to a listener when data it follows may have changed.
// Event is empty for poll signals and for storage signals without a known key.
type Signal struct {
	Source Source
	Event  Event
	Key    string
}

// Options configures Listen. Bus and Store are both optional; Interval zero
// uses DefaultPollInterval and a negative Interval disables polling.
type Options struct {
	Bus      *Bus
	Store    store.Store
	Events   []Event
	Keys     []string
	Interval time.Duration
	OnChange func(Signal)
}

// Subscription is a live Listen registration
type Subscription struct {
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
	once        sync.Once
}

// Listen wires the bus, the store's change signal (when the backend has one) and
// the poller to opts.OnChange. OnChange may be called from several goroutines.
func Listen(ctx context.Context, opts Options) (*Subscription, error) {
	if opts.OnChange == nil {
		return nil, fmt.Errorf("listen: OnChange is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, unsubscribe: func() {}}

	if opts.Store != nil {
		if w, ok := opts.Store.(store.Watcher); ok {
			changes, err := w.Watch(ctx)
			if err != nil {
				cancel()
				return nil, fmt.Errorf("listen: watch store: %w", err)
			}
			keys := keySet(opts.Keys)
			sub.wg.Add(1)
			go func() {
				defer sub.wg.Done()
				for change := range changes {
					if !keys.matches(change.Key) {
						continue
					}
					event, _ := EventForKey(change.Key)
					opts.OnChange(Signal{Source: SourceStorage, Event: event, Key: change.Key})
				}
			}()
		}

		if opts.Interval >= 0 {
			poller := NewPoller(opts.Store, opts.Interval, func(uint64) {
				opts.OnChange(Signal{Source: SourcePoll})
			})
			poller.Prime(ctx)
			sub.wg.Add(1)
			go func() {
				defer sub.wg.Done()
				poller.Run(ctx)
			}()
		}
	}

	if opts.Bus != nil {
		sub.unsubscribe = opts.Bus.Subscribe(func(e Event) {
			if ctx.Err() != nil {
				return
			}
			opts.OnChange(Signal{Source: SourceEvent, Event: e})
		}, opts.Events...)
	}

	return sub, nil
}

// Stop removes the bus handler, ends the watch and the poller, and waits for
// their goroutines. It is safe to call more than once.
func (s *Subscription) Stop() {
	s.once.Do(func() {
		s.unsubscribe()
		s.cancel()
		s.wg.Wait()
		log.Printf("[SYNC] listener stopped")
	})
}

type keyFilter map[string]struct{}

func keySet(keys []string) keyFilter {
	f := make(keyFilter, len(keys))
	for _, k := range keys {
		f[k] = struct{}{}
	}
	return f
}

// matches treats an empty filter and an empty key (storage cleared) as a match.
func (f keyFilter) matches(key string) bool {
	if len(f) == 0 || key == "" {
		return true
	}
	_, ok := f[key]
	return ok
}
