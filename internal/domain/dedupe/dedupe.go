// Package dedupe tracks idempotency keys so a retried request is applied
// at most once.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so a request that failed can be retried with it.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// keyCache is a bounded Deduper. Keys live in a ring; once it is full the
// oldest key is evicted to make room. Unrecorded keys leave a hole that is
// skipped on eviction.
type keyCache struct {
	mu      sync.Mutex
	maxSize int
	seen    map[string]int // key -> ring slot
	ring    []string
	next    int // slot the next key is written to
}

// NewInMemoryDeduper creates a bounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &keyCache{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]int, d.maxSize)
	d.ring = make([]string, d.maxSize)
	return d
}

func (d *keyCache) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if old := d.ring[d.next]; old != "" {
		delete(d.seen, old)
	}
	d.ring[d.next] = key
	d.seen[key] = d.next
	d.next = (d.next + 1) % d.maxSize
	return false
}

func (d *keyCache) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if slot, ok := d.seen[key]; ok {
		delete(d.seen, key)
		d.ring[slot] = ""
	}
}

// Size returns the number of keys currently remembered.
func (d *keyCache) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
