// Package embedding turns seeker and item descriptions into vectors.
//
// Providers implement Embedder. The core never calls a provider directly:
// the application embeds both tables before a batch starts.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/nestmatch/internal/domain/model"
)

// Sentinel errors for this package.
var (
	ErrProvider  = errors.New("embedding provider error")
	ErrDimension = errors.New("embedding dimension mismatch")
)

// Embedder returns one vector per text, in input order, all of the same
// dimension.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedSeekers fills the Embedding of every seeker from its description text.
func EmbedSeekers(ctx context.Context, e Embedder, seekers []model.Seeker) error {
	texts := make([]string, len(seekers))
	for i := range seekers {
		texts[i] = SeekerText(&seekers[i])
	}
	vecs, err := embedAll(ctx, e, texts)
	if err != nil {
		return fmt.Errorf("embed seekers: %w", err)
	}
	for i := range seekers {
		seekers[i].Embedding = vecs[i]
	}
	return nil
}

// EmbedItems fills the Embedding of every item from its description text.
func EmbedItems(ctx context.Context, e Embedder, items []model.Item) error {
	texts := make([]string, len(items))
	for i := range items {
		texts[i] = ItemText(&items[i])
	}
	vecs, err := embedAll(ctx, e, texts)
	if err != nil {
		return fmt.Errorf("embed items: %w", err)
	}
	for i := range items {
		items[i].Embedding = vecs[i]
	}
	return nil
}

func embedAll(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := e.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrProvider, len(vecs), len(texts))
	}
	return vecs, nil
}

// checkDimension verifies every vector has dim entries. dim <= 0 only
// requires the vectors to agree with each other.
func checkDimension(vecs [][]float32, dim int) error {
	for i, v := range vecs {
		if dim <= 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d entries, expected %d", ErrDimension, i, len(v), dim)
		}
	}
	return nil
}
