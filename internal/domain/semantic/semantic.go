// Package semantic turns two precomputed embeddings into a bounded
// similarity score.
package semantic

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/nestmatch/internal/domain/model"
)

const maxScore = 100

// Mapping selects how cosine similarity in [-1,1] maps onto [0,100].
type Mapping string

const (
	// MappingClamp is max(0, cos) * 100: identical -> 100, orthogonal -> 0.
	MappingClamp Mapping = "clamp"
	// MappingLinear is (cos + 1) / 2 * 100: identical -> 100, orthogonal -> 50.
	MappingLinear Mapping = "linear"
)

// ParseMapping accepts "clamp" or "linear" (case-insensitive, empty = clamp).
func ParseMapping(s string) (Mapping, error) {
	switch Mapping(strings.ToLower(strings.TrimSpace(s))) {
	case "", MappingClamp:
		return MappingClamp, nil
	case MappingLinear:
		return MappingLinear, nil
	default:
		return "", model.NewConfigurationError("semantic_mapping", fmt.Sprintf("unknown mapping %q", s))
	}
}

// Vector is an embedding with its norm precomputed, so scoring a pair only
// costs one dot product.
type Vector struct {
	values []float32
	sqNorm float64
}

// NewVector wraps v. The slice is not copied.
func NewVector(v []float32) Vector {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	return Vector{values: v, sqNorm: sq}
}

// Dim returns the dimensionality.
func (v Vector) Dim() int { return len(v.values) }

// Degenerate reports a zero-norm (or empty) vector.
func (v Vector) Degenerate() bool { return v.sqNorm == 0 || math.IsNaN(v.sqNorm) }

// Norm returns the euclidean norm.
func (v Vector) Norm() float64 { return math.Sqrt(v.sqNorm) }

// Scorer computes semantic scores with a fixed mapping.
type Scorer struct {
	mapping Mapping
}

// NewScorer returns a Scorer using mapping.
func NewScorer(mapping Mapping) (*Scorer, error) {
	if _, err := ParseMapping(string(mapping)); err != nil {
		return nil, err
	}
	if mapping == "" {
		mapping = MappingClamp
	}
	return &Scorer{mapping: mapping}, nil
}

// Mapping returns the configured mapping.
func (s *Scorer) Mapping() Mapping { return s.mapping }

// Score maps the cosine similarity of u and p onto [0,100]. Vectors of
// different length are an error.
func (s *Scorer) Score(u, p []float32) (float64, error) {
	return s.ScoreVectors(NewVector(u), NewVector(p))
}

// ScoreVectors is Score on precomputed vectors. A zero-norm side scores 0
// under every mapping.
func (s *Scorer) ScoreVectors(u, p Vector) (float64, error) {
	if u.Dim() != p.Dim() {
		return 0, fmt.Errorf("%w: embedding dimension mismatch %d != %d", model.ErrValidation, u.Dim(), p.Dim())
	}
	if u.Degenerate() || p.Degenerate() {
		return 0, nil
	}
	return s.scale(Cosine(u, p)), nil
}

// Cosine returns (u.p)/(|u||p|), or 0 when either norm is zero or the
// dimensions differ.
func Cosine(u, p Vector) float64 {
	if u.Dim() != p.Dim() || u.Degenerate() || p.Degenerate() {
		return 0
	}
	var dot float64
	for i, x := range u.values {
		dot += float64(x) * float64(p.values[i])
	}
	// sqrt of the squared-norm product keeps cos(u,u) exactly 1
	c := dot / math.Sqrt(u.sqNorm*p.sqNorm)
	return math.Max(-1, math.Min(1, c))
}

func (s *Scorer) scale(cos float64) float64 {
	if s.mapping == MappingLinear {
		return (cos + 1) / 2 * maxScore
	}
	return math.Max(0, cos) * maxScore
}
