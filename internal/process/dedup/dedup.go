// Package dedup remembers recently processed scan keys so that the same media
// is not classified twice within a short window.
//
// Keys have the form "<messageID>:<url>" for automatic scans and
// "public:<messageID>" for manually triggered ones.
package dedup

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lueurxax/media-guard-bot/internal/platform/observability"
)

const (
	DefaultTTL        = 10 * time.Minute
	DefaultMaxEntries = 1000

	publicPrefix = "public:"
)

// TargetKey is the dedup key of one media URL in one message.
func TargetKey(messageID, url string) string {
	return messageID + ":" + url
}

// PublicKey is the dedup key of a manually triggered scan of a message.
func PublicKey(messageID string) string {
	return publicPrefix + messageID
}

// Cache is an in-memory TTL cache bounded to MaxEntries; the oldest entries are
// trimmed first when it grows past the bound.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]time.Time
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	return &Cache{
		entries:    make(map[string]time.Time),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// WithClock replaces the time source of the cache.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now

	return c
}

// Seen reports whether key was marked within the TTL window.
func (c *Cache) Seen(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.entries[key]
	if !ok {
		return false
	}

	if c.now().Sub(at) > c.ttl {
		delete(c.entries, key)
		return false
	}

	observability.DedupHits.Inc()

	return true
}

// Mark records key as processed now.
func (c *Cache) Mark(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = c.now()
	c.sweepLocked()
}

// Sweep evicts expired entries and trims the cache to its bound.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
}

// Len returns the number of entries held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *Cache) sweepLocked() {
	now := c.now()

	for key, at := range c.entries {
		if now.Sub(at) > c.ttl {
			delete(c.entries, key)
		}
	}

	if overflow := len(c.entries) - c.maxEntries; overflow > 0 {
		type entry struct {
			key string
			at  time.Time
		}

		all := make([]entry, 0, len(c.entries))
		for k, at := range c.entries {
			all = append(all, entry{key: k, at: at})
		}

		sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })

		for _, e := range all[:overflow] {
			delete(c.entries, e.key)
		}
	}

	observability.DedupEntries.Set(float64(len(c.entries)))
}
