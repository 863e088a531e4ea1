// Package blockhash keeps a recent blockhash hot in memory so the
// execution path never waits on an RPC round trip at fire time.
package blockhash

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"migration-sniper/internal/solana"
)

// Cache refreshes the latest blockhash on a fixed interval and serves
// it without blocking. On fetch failure the previous value is kept; a
// slightly stale blockhash still lands for minutes.
type Cache struct {
	chain    solana.Chain
	interval time.Duration
	log      zerolog.Logger

	mu        sync.RWMutex
	current   solana.Blockhash
	fetchedAt time.Time
	populated bool
}

// New creates a cache. Start must be called before Latest returns data.
func New(chain solana.Chain, interval time.Duration, log zerolog.Logger) *Cache {
	return &Cache{
		chain:    chain,
		interval: interval,
		log:      log.With().Str("component", "blockhash").Logger(),
	}
}

// Start runs the refresh loop until ctx is cancelled. The first fetch
// happens immediately; failures back off to 5x the interval.
func (c *Cache) Start(ctx context.Context) {
	c.refresh(ctx)

	interval := c.interval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if c.refresh(ctx) {
				interval = c.interval
			} else {
				interval = c.interval * 5
			}
			timer.Reset(interval)
		}
	}
}

func (c *Cache) refresh(ctx context.Context) bool {
	fetchCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	bh, err := c.chain.LatestBlockhash(fetchCtx)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Warn().Err(err).Msg("blockhash refresh failed, keeping stale value")
		}
		return false
	}

	c.mu.Lock()
	c.current = bh
	c.fetchedAt = time.Now()
	c.populated = true
	c.mu.Unlock()
	return true
}

// Latest returns the cached blockhash. ok is false only before the
// first successful fetch.
func (c *Cache) Latest() (solana.Blockhash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.populated
}

// Age returns how long ago the cached value was fetched.
func (c *Cache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.populated {
		return 0
	}
	return time.Since(c.fetchedAt)
}
