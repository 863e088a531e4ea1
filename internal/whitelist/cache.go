// Package whitelist holds pre-verified mints waiting for their
// migration. The producer writes, the listener consumes, entries decay.
package whitelist

import (
	"sync"
	"time"
)

// Entry is one pre-approved mint with what the producer learned about it.
type Entry struct {
	Mint     string
	Name     string
	Symbol   string
	Decimals uint8
	AddedAt  time.Time
}

// Cache is a TTL map keyed by mint. Consume is the hot-path read: it
// removes the entry under the same lock so two migration events for the
// same mint can never both trade.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
}

// New creates a cache with the given TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
}

// NewWithClock is New with an injectable clock for expiry tests.
func NewWithClock(ttl time.Duration, now func() time.Time) *Cache {
	c := New(ttl)
	c.now = now
	return c
}

// Upsert adds or refreshes an entry. AddedAt is stamped here.
func (c *Cache) Upsert(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()
	e.AddedAt = c.now()
	c.entries[e.Mint] = e
}

// Consume atomically removes and returns the entry for mint. The second
// return is false when the mint is unknown or expired.
func (c *Cache) Consume(mint string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()
	e, ok := c.entries[mint]
	if !ok {
		return Entry{}, false
	}
	delete(c.entries, mint)
	return e, true
}

// Has reports whether mint is currently whitelisted, without consuming.
func (c *Cache) Has(mint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()
	_, ok := c.entries[mint]
	return ok
}

// Size returns the live entry count.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()
	return len(c.entries)
}

func (c *Cache) pruneLocked() {
	// An entry is dead at exactly AddedAt+ttl, not one tick after.
	cutoff := c.now().Add(-c.ttl)
	for mint, e := range c.entries {
		if !e.AddedAt.After(cutoff) {
			delete(c.entries, mint)
		}
	}
}
