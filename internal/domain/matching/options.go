package matching

import "github.com/okian/nestmatch/pkg/logger"

// DefaultTopK is the number of items kept per seeker when unset.
const DefaultTopK = 5

// Option configures an Engine.
type Option func(*Engine)

// WithTopK sets K, the number of items ranked per seeker.
func WithTopK(k int) Option {
	return func(e *Engine) { e.topK = k }
}

// WithDimension pins the embedding dimension. Zero infers it from the first
// record in the batch that carries an embedding.
func WithDimension(d int) Option {
	return func(e *Engine) { e.dimension = d }
}

// WithErrorPolicy selects how invalid records are handled.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithPool sets the pool that runs per-seeker scoring.
func WithPool(p Pool) Option {
	return func(e *Engine) {
		if p != nil {
			e.pool = p
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}
