// Package dedupe tracks record identifiers already admitted to a batch.
package dedupe

import (
	"sync"
	"sync/atomic"
)

// Deduper records seen IDs so a record is admitted at most once.
type Deduper[K comparable] interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(id K) bool

	Size() int64
}

type inMemoryDeduper[K comparable] struct {
	mu   sync.Mutex
	seen map[K]struct{}
	size atomic.Int64
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper[K comparable](opts ...Option) Deduper[K] {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &inMemoryDeduper[K]{seen: make(map[K]struct{}, cfg.expectedSize)}
}

func (d *inMemoryDeduper[K]) SeenAndRecord(id K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	d.size.Add(1)
	return false
}

// Size returns the number of recorded IDs.
func (d *inMemoryDeduper[K]) Size() int64 {
	return d.size.Load()
}
