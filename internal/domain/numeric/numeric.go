// Package numeric scores how well an item's structured attributes satisfy a
// seeker's structured preferences.
//
// Every sub-score lives on [0,1]; the matcher reports their weighted mean on
// [0,100]. Deviations past a tolerance decay linearly with a configurable
// slope and a hard floor at zero.
package numeric

import (
	"math"

	"github.com/okian/nestmatch/internal/domain/model"
)

const maxScore = 100

// Weights controls how sub-scores are averaged. Equal weights give the plain
// uniform average.
type Weights struct {
	Budget     float64
	Bedrooms   float64
	Bathrooms  float64
	LivingArea float64
}

// Config is the immutable numeric matching configuration.
type Config struct {
	// BudgetTolerance is the fraction over budget that still earns full credit.
	BudgetTolerance float64
	// BudgetMaxOverage is the fraction over budget at which credit is zero.
	BudgetMaxOverage float64
	// BudgetDecaySlope is the credit lost per unit of overage (relative to
	// budget) past the tolerance ceiling.
	BudgetDecaySlope float64

	BedroomFlex  int
	BathroomFlex int
	// RoomDeviationPenalty is the credit lost per room of deviation inside
	// the flex window.
	RoomDeviationPenalty float64

	// LivingAreaTolerance is the relative deviation that still earns full credit.
	LivingAreaTolerance float64
	// LivingAreaDecaySlope is the credit lost per unit of relative deviation
	// past the tolerance.
	LivingAreaDecaySlope float64

	Weights Weights
}

// DefaultConfig returns the stock tolerances. The budget slope reaches zero
// exactly at the maximum overage.
func DefaultConfig() Config {
	return Config{
		BudgetTolerance:      0.10,
		BudgetMaxOverage:     0.50,
		BudgetDecaySlope:     2.5,
		BedroomFlex:          1,
		BathroomFlex:         1,
		RoomDeviationPenalty: 0.3,
		LivingAreaTolerance:  0.15,
		LivingAreaDecaySlope: 2.0,
		Weights:              Weights{Budget: 1, Bedrooms: 1, Bathrooms: 1, LivingArea: 1},
	}
}

// Validate reports the first invalid setting as a ConfigurationError.
func (c Config) Validate() error {
	nonNeg := []struct {
		name string
		v    float64
	}{
		{"budget_tolerance", c.BudgetTolerance},
		{"budget_max_overage", c.BudgetMaxOverage},
		{"budget_decay_slope", c.BudgetDecaySlope},
		{"room_deviation_penalty", c.RoomDeviationPenalty},
		{"living_area_tolerance", c.LivingAreaTolerance},
		{"living_area_decay_slope", c.LivingAreaDecaySlope},
		{"subscore_weights.budget", c.Weights.Budget},
		{"subscore_weights.bedrooms", c.Weights.Bedrooms},
		{"subscore_weights.bathrooms", c.Weights.Bathrooms},
		{"subscore_weights.living_area", c.Weights.LivingArea},
	}
	for _, f := range nonNeg {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return model.NewConfigurationError(f.name, "must be a finite value >= 0")
		}
	}
	if c.BudgetMaxOverage < c.BudgetTolerance {
		return model.NewConfigurationError("budget_max_overage", "must be >= budget_tolerance")
	}
	if c.BedroomFlex < 0 {
		return model.NewConfigurationError("bedroom_flex", "must be >= 0")
	}
	if c.BathroomFlex < 0 {
		return model.NewConfigurationError("bathroom_flex", "must be >= 0")
	}
	// Living area may be absent, so the always-applicable weights must carry the mean.
	if c.Weights.Budget+c.Weights.Bedrooms+c.Weights.Bathrooms == 0 {
		return model.NewConfigurationError("subscore_weights", "budget, bedrooms and bathrooms weights cannot all be zero")
	}
	return nil
}

// Matcher computes numeric match scores.
type Matcher struct {
	cfg Config
}

// NewMatcher validates cfg and returns a Matcher bound to it.
func NewMatcher(cfg Config) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{cfg: cfg}, nil
}

// Config returns a copy of the matcher configuration.
func (m *Matcher) Config() Config { return m.cfg }

// Score returns the numeric breakdown for one pair. Invalid numerics on
// either side fail with a ValidationError; nothing is coerced.
func (m *Matcher) Score(s *model.Seeker, it *model.Item) (model.NumericBreakdown, error) {
	if err := ValidateSeeker(s); err != nil {
		return model.NumericBreakdown{}, err
	}
	if err := ValidateItem(it); err != nil {
		return model.NumericBreakdown{}, err
	}

	b := model.NumericBreakdown{
		Budget:    m.BudgetScore(s.Budget, it.Price),
		Bedrooms:  roomScore(s.Bedrooms, it.Bedrooms, m.cfg.BedroomFlex, m.cfg.RoomDeviationPenalty),
		Bathrooms: roomScore(s.Bathrooms, it.Bathrooms, m.cfg.BathroomFlex, m.cfg.RoomDeviationPenalty),
	}

	w := m.cfg.Weights
	sum := w.Budget*b.Budget + w.Bedrooms*b.Bedrooms + w.Bathrooms*b.Bathrooms
	total := w.Budget + w.Bedrooms + w.Bathrooms

	if s.DesiredLivingArea != nil {
		area := m.LivingAreaScore(*s.DesiredLivingArea, it.LivingArea)
		b.LivingArea = &area
		sum += w.LivingArea * area
		total += w.LivingArea
	}

	b.Score = clamp(sum/total*maxScore, 0, maxScore)
	return b, nil
}

// BudgetScore is full credit up to budget*(1+tolerance), linear decay above
// it and zero from budget*(1+max overage) on.
func (m *Matcher) BudgetScore(budget, price float64) float64 {
	if budget == 0 {
		if price == 0 {
			return 1
		}
		return 0
	}
	ceiling := budget * (1 + m.cfg.BudgetTolerance)
	if price <= ceiling {
		return 1
	}
	if price >= budget*(1+m.cfg.BudgetMaxOverage) {
		return 0
	}
	overage := (price - ceiling) / budget
	return clamp(1-m.cfg.BudgetDecaySlope*overage, 0, 1)
}

// LivingAreaScore compares the relative deviation against the tolerance.
func (m *Matcher) LivingAreaScore(desired, actual float64) float64 {
	if desired == 0 {
		if actual == 0 {
			return 1
		}
		return 0
	}
	rel := math.Abs(actual-desired) / desired
	if rel <= m.cfg.LivingAreaTolerance {
		return 1
	}
	return clamp(1-m.cfg.LivingAreaDecaySlope*(rel-m.cfg.LivingAreaTolerance), 0, 1)
}

func roomScore(want, have, flex int, penalty float64) float64 {
	d := want - have
	if d < 0 {
		d = -d
	}
	switch {
	case d == 0:
		return 1
	case d > flex:
		return 0
	default:
		return clamp(1-float64(d)*penalty, 0, 1)
	}
}

// ValidateSeeker rejects negative or non-finite structured preferences.
func ValidateSeeker(s *model.Seeker) error {
	if s == nil {
		return model.NewValidationError(model.KindSeeker, 0, "record", "missing")
	}
	if err := checkAmount(model.KindSeeker, s.ID, "budget", s.Budget); err != nil {
		return err
	}
	if s.Bedrooms < 0 {
		return model.NewValidationError(model.KindSeeker, s.ID, "bedrooms", "must be >= 0")
	}
	if s.Bathrooms < 0 {
		return model.NewValidationError(model.KindSeeker, s.ID, "bathrooms", "must be >= 0")
	}
	if s.DesiredLivingArea != nil {
		return checkAmount(model.KindSeeker, s.ID, "living_area", *s.DesiredLivingArea)
	}
	return nil
}

// ValidateItem rejects negative or non-finite structured attributes.
func ValidateItem(it *model.Item) error {
	if it == nil {
		return model.NewValidationError(model.KindItem, 0, "record", "missing")
	}
	if err := checkAmount(model.KindItem, it.ID, "price", it.Price); err != nil {
		return err
	}
	if it.Bedrooms < 0 {
		return model.NewValidationError(model.KindItem, it.ID, "bedrooms", "must be >= 0")
	}
	if it.Bathrooms < 0 {
		return model.NewValidationError(model.KindItem, it.ID, "bathrooms", "must be >= 0")
	}
	return checkAmount(model.KindItem, it.ID, "living_area", it.LivingArea)
}

func checkAmount(kind string, id int64, field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return model.NewValidationError(kind, id, field, "must be finite")
	}
	if v < 0 {
		return model.NewValidationError(kind, id, field, "must be >= 0")
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
