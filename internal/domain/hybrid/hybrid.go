// Package hybrid combines the semantic and numeric component scores into the
// single final ranking score.
package hybrid

import (
	"fmt"
	"math"

	"github.com/okian/nestmatch/internal/domain/model"
)

const (
	maxScore = 100
	// weightSumTolerance is how far semantic+numeric weights may drift from 1.
	weightSumTolerance = 1e-6
	decimals           = 100 // two decimal places
)

// Weights are the semantic and numeric weights. They must be non-negative
// and sum to 1.
type Weights struct {
	Semantic  float64
	Numerical float64
}

// Scorer combines scores with validated weights.
type Scorer struct {
	w Weights
}

// NewScorer validates w. When renormalize is set, weights with a positive
// sum other than 1 are scaled to sum to 1 instead of being rejected.
func NewScorer(w Weights, renormalize bool) (*Scorer, error) {
	weights := []struct {
		name string
		v    float64
	}{
		{"semantic_weight", w.Semantic},
		{"numerical_weight", w.Numerical},
	}
	for _, f := range weights {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return nil, model.NewConfigurationError(f.name, "must be a finite value >= 0")
		}
	}
	sum := w.Semantic + w.Numerical
	if sum == 0 {
		return nil, model.NewConfigurationError("weights", "semantic and numerical weights cannot both be zero")
	}
	if math.Abs(sum-1) > weightSumTolerance {
		if !renormalize {
			return nil, model.NewConfigurationError("weights", fmt.Sprintf("semantic + numerical must sum to 1, got %g", sum))
		}
		w = Weights{Semantic: w.Semantic / sum, Numerical: w.Numerical / sum}
	}
	return &Scorer{w: w}, nil
}

// Weights returns the effective (possibly renormalized) weights.
func (s *Scorer) Weights() Weights { return s.w }

// Combine returns the final score for a pair of component scores on [0,100].
func (s *Scorer) Combine(semantic, numeric float64) float64 {
	return Combine(semantic, numeric, s.w.Semantic, s.w.Numerical)
}

// Combine returns semantic*sw + numeric*nw clamped to [0,100] and rounded to
// two decimals. Inputs are clamped to [0,100] first.
func Combine(semantic, numeric, sw, nw float64) float64 {
	v := clamp(semantic)*sw + clamp(numeric)*nw
	return Round2(clamp(v))
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*decimals) / decimals
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(maxScore, v))
}
