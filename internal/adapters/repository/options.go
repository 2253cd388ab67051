package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMaxLimit caps the page size accepted by Page.
func WithMaxLimit(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithClock overrides the publish timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}
