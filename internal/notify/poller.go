package notify

import (
	"context"
	"time"

	"github.com/alxne/storefront/internal/logger"
	"github.com/alxne/storefront/internal/store"
)

// DefaultPollInterval is how often the poller compares store versions
const DefaultPollInterval = 3 * time.Second

// Poller fires onChange whenever the store namespace version differs from the
// last one it saw.
type Poller struct {
	store    store.Store
	interval time.Duration
	onChange func(version uint64)
	last     uint64
}

func NewPoller(s store.Store, interval time.Duration, onChange func(version uint64)) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{store: s, interval: interval, onChange: onChange}
}

// Prime records the current version as the baseline without firing.
func (p *Poller) Prime(ctx context.Context) {
	v, err := p.store.Version(ctx)
	if err != nil {
		logger.Dedup("[SYNC] poll baseline failed: %v", err)
		return
	}
	p.last = v
}

// Run blocks until ctx is done, checking the version every interval.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.check(ctx)
		}
	}
}

func (p *Poller) check(ctx context.Context) {
	v, err := p.store.Version(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Dedup("[SYNC] poll failed: %v", err)
		}
		return
	}
	if v == p.last {
		return
	}
	p.last = v
	p.onChange(v)
}
