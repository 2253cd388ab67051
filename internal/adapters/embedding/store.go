package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/nestmatch/pkg/logger"
	"github.com/okian/nestmatch/pkg/metrics"
)

// ErrKeyNotFound is returned by a KVStore for a missing key.
var ErrKeyNotFound = errors.New("key not found")

const storeKeyPrefix = "nestmatch:emb:"

// KVStore is the byte store behind StoreEmbedder.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Space identifies the embedding space vectors belong to. Vectors from
// different providers, models or dimensions never share keys.
type Space struct {
	Provider string
	Model    string
	// Dimension is the expected vector length; 0 accepts any length.
	Dimension int
}

func (sp Space) prefix() string {
	return storeKeyPrefix + strings.Join([]string{sp.Provider, sp.Model, strconv.Itoa(sp.Dimension)}, ":") + ":"
}

// StoreEmbedder persists vectors in a KVStore keyed by embedding space and
// text digest, so a restart does not pay for texts embedded by an earlier
// run. Store failures degrade to a miss and are logged.
type StoreEmbedder struct {
	inner  Embedder
	store  KVStore
	space  Space
	prefix string
	logger logger.Logger
}

// NewStoreEmbedder wraps inner with store, scoping keys to space.
func NewStoreEmbedder(inner Embedder, store KVStore, space Space, log logger.Logger) *StoreEmbedder {
	if log == nil {
		log = logger.Nop()
	}
	return &StoreEmbedder{inner: inner, store: store, space: space, prefix: space.prefix(), logger: log}
}

// EmbedTexts serves stored texts and forwards the rest in one call.
func (s *StoreEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		key := s.key(t)
		if v, ok := s.get(ctx, key); ok {
			metrics.RecordEmbeddingCache("store_hit")
			out[i] = v
			continue
		}
		metrics.RecordEmbeddingCache("store_miss")
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := s.inner.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrProvider, len(vecs), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		if err := s.store.Set(ctx, s.key(missTexts[j]), encodeVector(vecs[j])); err != nil {
			s.logger.Warn(ctx, "failed to store embedding", logger.Error(err))
		}
	}
	return out, nil
}

func (s *StoreEmbedder) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.logger.Warn(ctx, "failed to read stored embedding", logger.String("key", key), logger.Error(err))
		}
		return nil, false
	}
	v, err := decodeVector(data)
	if err == nil && s.space.Dimension > 0 && len(v) != s.space.Dimension {
		err = fmt.Errorf("vector length %d, expected %d", len(v), s.space.Dimension)
	}
	if err != nil {
		s.logger.Warn(ctx, "discarding corrupt stored embedding", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	return v, true
}

func (s *StoreEmbedder) key(text string) string {
	h := sha256.Sum256([]byte(text))
	return s.prefix + hex.EncodeToString(h[:])
}

// encodeVector is little-endian float32 bits.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector payload of %d bytes", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}
