package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/okian/nestmatch/pkg/metrics"
)

// CachedEmbedder memoizes another Embedder per unique text. Identical texts,
// within one call or across calls, are sent to the provider at most once
// while they stay in the cache.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[[sha256.Size]byte, []float32]
}

// NewCachedEmbedder wraps inner with an LRU of size entries.
func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	c, err := lru.New[[sha256.Size]byte, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: c}, nil
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

// EmbedTexts serves cached texts locally and forwards each distinct miss
// once.
func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var misses []string
	pending := make(map[[sha256.Size]byte][]int)
	for i, t := range texts {
		k := sha256.Sum256([]byte(t))
		if v, ok := c.cache.Get(k); ok {
			metrics.RecordEmbeddingCache("hit")
			out[i] = v
			continue
		}
		if _, ok := pending[k]; !ok {
			metrics.RecordEmbeddingCache("miss")
			misses = append(misses, t)
		}
		pending[k] = append(pending[k], i)
	}

	if len(misses) > 0 {
		vecs, err := embedAll(ctx, c.inner, misses)
		if err != nil {
			return nil, err
		}
		for j, t := range misses {
			k := sha256.Sum256([]byte(t))
			c.cache.Add(k, vecs[j])
			for _, i := range pending[k] {
				out[i] = vecs[j]
			}
		}
	}

	if err := checkDimension(out, 0); err != nil {
		return nil, err
	}
	return out, nil
}
