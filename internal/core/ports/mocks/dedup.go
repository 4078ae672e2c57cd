package mocks

import (
	"context"
	"sync"
)

// DedupCache is a thread-safe in-memory implementation of ports.DedupCache without expiry.
type DedupCache struct {
	mu   sync.Mutex
	keys map[string]bool

	Marks []string
}

// NewDedupCache creates a new mock dedup cache.
func NewDedupCache() *DedupCache {
	return &DedupCache{keys: make(map[string]bool)}
}

func (d *DedupCache) Seen(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.keys[key]
}

func (d *DedupCache) Mark(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.keys[key] = true
	d.Marks = append(d.Marks, key)
}

// Clear forgets every key.
func (d *DedupCache) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.keys = make(map[string]bool)
}
