// Package model contains domain models passed between layers.
package model

// Seeker is a user looking for an item, with structured preferences and an
// embedding of their free-text description.
type Seeker struct {
	ID        int64
	Budget    float64
	Bedrooms  int
	Bathrooms int
	// DesiredLivingArea is nil when the seeker expressed no preference.
	DesiredLivingArea *float64
	Description       string
	Embedding         []float32
}

// Item is a property in the catalog.
type Item struct {
	ID          int64
	Price       float64
	Bedrooms    int
	Bathrooms   int
	LivingArea  float64
	Description string
	Embedding   []float32
}

// NumericBreakdown lists the numeric sub-scores of a pair, each in [0,1].
// LivingArea is nil when the seeker did not declare a preference.
type NumericBreakdown struct {
	Budget     float64
	Bedrooms   float64
	Bathrooms  float64
	LivingArea *float64
	// Score is the weighted mean of the applicable sub-scores on [0,100].
	Score float64
}

// Breakdown explains how a final score was assembled.
type Breakdown struct {
	Semantic float64
	Numeric  NumericBreakdown
}

// MatchResult is one ranked (seeker, item) pair. Score is on [0,100] and
// rounded to two decimals.
type MatchResult struct {
	SeekerID  int64
	ItemID    int64
	Score     float64
	Breakdown Breakdown
}

// Ranks reports whether a should be listed before b inside one seeker block:
// higher score first, then lower item id.
func Ranks(a, b MatchResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ItemID < b.ItemID
}

// Float64Ptr is a small helper for optional numeric fields.
func Float64Ptr(v float64) *float64 { return &v }
