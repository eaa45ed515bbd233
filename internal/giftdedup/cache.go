// Package giftdedup tracks cumulative combo-gift counters per
// room/gift/group key and converts them into increments, dropping
// out-of-order repeats.
package giftdedup

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultTTL matches the sweep period: entries untouched for one full
// period are evicted, letting a later combo on the same key restart.
const DefaultTTL = 10 * time.Second

// Result is the outcome of observing one gift event. When Accepted is
// false the event must be dropped entirely.
type Result struct {
	Accepted bool
	Delta    int64
}

type entry struct {
	count int64
	seen  time.Time
}

// Cache is the combo counter store. Observe and the TTL sweep take the same
// mutex, so the check-then-write in Observe is atomic with respect to
// eviction; a stored count never moves backward while its key lives.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Key builds the cache key for a gift event.
func Key(roomID, giftID, groupID int64) string {
	return fmt.Sprintf("%d-%d-%d", roomID, giftID, groupID)
}

// Observe applies one gift event to the cache.
//
// A terminal repeat marker removes the tracked entry (combo groups only)
// and is never broadcast: it carries no new count. Non-combo gifts bypass
// the cache and are accepted as-is. Combo gifts are accepted only when the
// cumulative count moved forward; the delta is the increment since the last
// accepted count. Counts at or below the stored value are duplicates or
// reordered deliveries of already-applied events.
func (c *Cache) Observe(key string, groupID, count int64, combo, terminal bool) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if terminal {
		if groupID > 0 {
			delete(c.entries, key)
		}
		return Result{}
	}

	if count <= 0 {
		count = 1
	}
	if !combo {
		return Result{Accepted: true, Delta: count}
	}

	prev := c.entries[key].count
	if count <= prev {
		return Result{}
	}
	// Only keyed combo groups are tracked; a group id of zero still yields
	// a delta against nothing but leaves no entry behind.
	if prev > 0 || groupID > 0 {
		c.entries[key] = entry{count: count, seen: c.now()}
	}
	return Result{Accepted: true, Delta: count - prev}
}

// Run sweeps expired entries every TTL period until ctx is cancelled.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(c.now())
		}
	}
}

func (c *Cache) sweep(now time.Time) {
	cutoff := now.Add(-c.ttl)
	c.mu.Lock()
	for key, e := range c.entries {
		if e.seen.Before(cutoff) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
