package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is an offline, deterministic bag-of-words embedder using
// signed feature hashing over word unigrams and bigrams. Texts that share
// vocabulary land close together. Texts without words map to the zero
// vector.
type HashEmbedder struct {
	dim int
}

// DefaultHashDimension matches common sentence-embedding models.
const DefaultHashDimension = 384

// NewHashEmbedder returns a HashEmbedder producing dim-sized vectors.
// dim <= 0 uses DefaultHashDimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &HashEmbedder{dim: dim}
}

// Dimension returns the vector size.
func (h *HashEmbedder) Dimension() int { return h.dim }

// EmbedTexts never fails; the context is only checked between texts.
func (h *HashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h *HashEmbedder) embed(text string) []float32 {
	acc := make([]float64, h.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		h.add(acc, w, 1)
		if i > 0 {
			h.add(acc, words[i-1]+" "+w, 0.5)
		}
	}

	var sq float64
	for _, x := range acc {
		sq += x * x
	}
	v := make([]float32, h.dim)
	if sq == 0 {
		return v
	}
	norm := math.Sqrt(sq)
	for i, x := range acc {
		v[i] = float32(x / norm)
	}
	return v
}

func (h *HashEmbedder) add(acc []float64, token string, weight float64) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(token))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[idx] += weight
}
