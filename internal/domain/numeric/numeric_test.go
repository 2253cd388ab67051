package numeric_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/nestmatch/internal/domain/model"
	"github.com/okian/nestmatch/internal/domain/numeric"
	. "github.com/smartystreets/goconvey/convey"
)

func newMatcher(t *testing.T, cfg numeric.Config) *numeric.Matcher {
	t.Helper()
	m, err := numeric.NewMatcher(cfg)
	if err != nil {
		t.Fatalf("unexpected config error: %v", err)
	}
	return m
}

func TestMatcher_Score(t *testing.T) {
	Convey("Given a matcher with default tolerances", t, func() {
		m := newMatcher(t, numeric.DefaultConfig())
		seeker := &model.Seeker{ID: 1, Budget: 500_000, Bedrooms: 3, Bathrooms: 2}

		Convey("When the item matches exactly", func() {
			item := &model.Item{ID: 10, Price: 500_000, Bedrooms: 3, Bathrooms: 2, LivingArea: 2500}
			b, err := m.Score(seeker, item)

			Convey("Then the score is the maximum", func() {
				So(err, ShouldBeNil)
				So(b.Score, ShouldEqual, 100)
				So(b.LivingArea, ShouldBeNil)
			})
		})

		Convey("When the price is under budget and inside tolerance", func() {
			item := &model.Item{ID: 11, Price: 475_000, Bedrooms: 3, Bathrooms: 2, LivingArea: 2500}
			b, err := m.Score(seeker, item)

			Convey("Then every sub-score is maximal", func() {
				So(err, ShouldBeNil)
				So(b.Budget, ShouldEqual, 1)
				So(b.Bedrooms, ShouldEqual, 1)
				So(b.Bathrooms, ShouldEqual, 1)
				So(b.Score, ShouldEqual, 100)
			})
		})

		Convey("When the price hits the maximum overage", func() {
			item := &model.Item{ID: 12, Price: 750_000, Bedrooms: 3, Bathrooms: 2, LivingArea: 2500}
			b, err := m.Score(seeker, item)

			Convey("Then the budget sub-score is zero and pulls the mean down", func() {
				So(err, ShouldBeNil)
				So(b.Budget, ShouldEqual, 0)
				So(b.Score, ShouldAlmostEqual, 200.0/3.0, 1e-9)
			})
		})

		Convey("When the price is between the ceiling and the cutoff", func() {
			item := &model.Item{ID: 13, Price: 600_000, Bedrooms: 3, Bathrooms: 2}
			b, err := m.Score(seeker, item)

			Convey("Then the budget sub-score decays linearly", func() {
				So(err, ShouldBeNil)
				So(b.Budget, ShouldAlmostEqual, 0.75, 1e-9)
			})
		})

		Convey("When bedrooms deviate inside and outside the flex window", func() {
			near := &model.Item{ID: 14, Price: 500_000, Bedrooms: 4, Bathrooms: 2}
			far := &model.Item{ID: 15, Price: 500_000, Bedrooms: 5, Bathrooms: 2}
			bn, errN := m.Score(seeker, near)
			bf, errF := m.Score(seeker, far)

			Convey("Then partial credit is given inside the window and none outside", func() {
				So(errN, ShouldBeNil)
				So(errF, ShouldBeNil)
				So(bn.Bedrooms, ShouldAlmostEqual, 0.7, 1e-9)
				So(bf.Bedrooms, ShouldEqual, 0)
			})
		})

		Convey("When bathrooms deviate by one", func() {
			item := &model.Item{ID: 16, Price: 500_000, Bedrooms: 3, Bathrooms: 1}
			b, err := m.Score(seeker, item)

			Convey("Then the bathroom policy mirrors bedrooms", func() {
				So(err, ShouldBeNil)
				So(b.Bathrooms, ShouldAlmostEqual, 0.7, 1e-9)
			})
		})
	})
}

func TestMatcher_LivingArea(t *testing.T) {
	Convey("Given a seeker with a living area preference", t, func() {
		m := newMatcher(t, numeric.DefaultConfig())
		seeker := &model.Seeker{ID: 2, Budget: 400_000, Bedrooms: 2, Bathrooms: 1, DesiredLivingArea: model.Float64Ptr(2000)}

		Convey("When the area is inside the tolerance", func() {
			item := &model.Item{ID: 20, Price: 400_000, Bedrooms: 2, Bathrooms: 1, LivingArea: 2200}
			b, err := m.Score(seeker, item)

			Convey("Then it earns full credit and is part of the mean", func() {
				So(err, ShouldBeNil)
				So(b.LivingArea, ShouldNotBeNil)
				So(*b.LivingArea, ShouldEqual, 1)
				So(b.Score, ShouldEqual, 100)
			})
		})

		Convey("When the area is outside the tolerance", func() {
			item := &model.Item{ID: 21, Price: 400_000, Bedrooms: 2, Bathrooms: 1, LivingArea: 2600}
			b, err := m.Score(seeker, item)

			Convey("Then credit decays and the mean is taken over four sub-scores", func() {
				So(err, ShouldBeNil)
				So(*b.LivingArea, ShouldAlmostEqual, 0.7, 1e-9)
				So(b.Score, ShouldAlmostEqual, (3+0.7)/4*100, 1e-9)
			})
		})

		Convey("When the preference is zero", func() {
			So(m.LivingAreaScore(0, 0), ShouldEqual, 1)
			So(m.LivingAreaScore(0, 10), ShouldEqual, 0)
		})
	})

	Convey("Given a seeker without a living area preference", t, func() {
		m := newMatcher(t, numeric.DefaultConfig())
		seeker := &model.Seeker{ID: 3, Budget: 400_000, Bedrooms: 2, Bathrooms: 1}
		item := &model.Item{ID: 22, Price: 400_000, Bedrooms: 2, Bathrooms: 1, LivingArea: 99_999}

		Convey("Then living area is excluded rather than scored as zero", func() {
			b, err := m.Score(seeker, item)
			So(err, ShouldBeNil)
			So(b.LivingArea, ShouldBeNil)
			So(b.Score, ShouldEqual, 100)
		})
	})
}

func TestMatcher_Monotonicity(t *testing.T) {
	Convey("Given a matcher with default tolerances", t, func() {
		m := newMatcher(t, numeric.DefaultConfig())

		Convey("When price rises past the ceiling", func() {
			budget := 300_000.0
			prev := m.BudgetScore(budget, budget*1.1)
			ok := true
			for p := budget * 1.1; p <= budget*2; p += 1_000 {
				cur := m.BudgetScore(budget, p)
				if cur > prev || cur < 0 || cur > 1 {
					ok = false
				}
				prev = cur
			}

			Convey("Then the budget sub-score never increases", func() {
				So(ok, ShouldBeTrue)
				So(prev, ShouldEqual, 0)
			})
		})

		Convey("When bedroom deviation grows", func() {
			seeker := &model.Seeker{ID: 1, Budget: 1, Bedrooms: 3, Bathrooms: 1}
			prev := 1.0
			ok := true
			for beds := 3; beds < 10; beds++ {
				b, err := m.Score(seeker, &model.Item{ID: 1, Price: 1, Bedrooms: beds, Bathrooms: 1})
				if err != nil || b.Bedrooms > prev {
					ok = false
				}
				prev = b.Bedrooms
			}

			Convey("Then the bedroom sub-score never increases", func() {
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When the budget is zero", func() {
			So(m.BudgetScore(0, 0), ShouldEqual, 1)
			So(m.BudgetScore(0, 1), ShouldEqual, 0)
		})
	})
}

func TestMatcher_Bounds(t *testing.T) {
	Convey("Given a spread of numeric inputs", t, func() {
		m := newMatcher(t, numeric.DefaultConfig())
		inBounds := true
		for _, budget := range []float64{0, 1, 250_000, 1e9} {
			for _, price := range []float64{0, 1, 250_000, 2e9} {
				for beds := 0; beds < 6; beds++ {
					s := &model.Seeker{ID: 1, Budget: budget, Bedrooms: 2, Bathrooms: 2, DesiredLivingArea: model.Float64Ptr(1500)}
					it := &model.Item{ID: 2, Price: price, Bedrooms: beds, Bathrooms: 1, LivingArea: float64(beds) * 700}
					b, err := m.Score(s, it)
					if err != nil || b.Score < 0 || b.Score > 100 || math.IsNaN(b.Score) {
						inBounds = false
					}
				}
			}
		}

		Convey("Then every score lies in [0,100]", func() {
			So(inBounds, ShouldBeTrue)
		})
	})
}

func TestMatcher_Weights(t *testing.T) {
	Convey("Given budget weighted twice as heavily", t, func() {
		cfg := numeric.DefaultConfig()
		cfg.Weights = numeric.Weights{Budget: 2, Bedrooms: 1, Bathrooms: 1, LivingArea: 1}
		m := newMatcher(t, cfg)

		s := &model.Seeker{ID: 1, Budget: 100, Bedrooms: 1, Bathrooms: 1}
		it := &model.Item{ID: 2, Price: 1000, Bedrooms: 1, Bathrooms: 1}

		Convey("Then the mean reflects the weights", func() {
			b, err := m.Score(s, it)
			So(err, ShouldBeNil)
			So(b.Score, ShouldAlmostEqual, 50, 1e-9)
		})
	})
}

func TestMatcher_Validation(t *testing.T) {
	Convey("Given a matcher", t, func() {
		m := newMatcher(t, numeric.DefaultConfig())
		good := &model.Seeker{ID: 1, Budget: 1, Bedrooms: 1, Bathrooms: 1}
		item := &model.Item{ID: 9, Price: 1, Bedrooms: 1, Bathrooms: 1, LivingArea: 1}

		cases := []struct {
			name  string
			s     *model.Seeker
			it    *model.Item
			field string
			id    int64
		}{
			{"negative budget", &model.Seeker{ID: 4, Budget: -1}, item, "budget", 4},
			{"negative bedrooms", &model.Seeker{ID: 5, Bedrooms: -1}, item, "bedrooms", 5},
			{"negative desired area", &model.Seeker{ID: 6, DesiredLivingArea: model.Float64Ptr(-3)}, item, "living_area", 6},
			{"negative price", good, &model.Item{ID: 7, Price: -10}, "price", 7},
			{"negative bathrooms", good, &model.Item{ID: 8, Bathrooms: -2}, "bathrooms", 8},
			{"NaN area", good, &model.Item{ID: 9, LivingArea: math.NaN()}, "living_area", 9},
		}

		for _, tc := range cases {
			Convey("When the input has a "+tc.name, func() {
				_, err := m.Score(tc.s, tc.it)

				Convey("Then a ValidationError names the record", func() {
					So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
					var ve *model.ValidationError
					So(errors.As(err, &ve), ShouldBeTrue)
					So(ve.Field, ShouldEqual, tc.field)
					So(ve.ID, ShouldEqual, tc.id)
				})
			})
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	Convey("Given numeric configurations", t, func() {
		Convey("When defaults are used", func() {
			So(numeric.DefaultConfig().Validate(), ShouldBeNil)
		})

		Convey("When a tolerance is negative", func() {
			cfg := numeric.DefaultConfig()
			cfg.BudgetTolerance = -0.1
			_, err := numeric.NewMatcher(cfg)
			So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When the cutoff sits below the tolerance ceiling", func() {
			cfg := numeric.DefaultConfig()
			cfg.BudgetMaxOverage = 0.05
			So(errors.Is(cfg.Validate(), model.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When flex is negative", func() {
			cfg := numeric.DefaultConfig()
			cfg.BathroomFlex = -1
			So(errors.Is(cfg.Validate(), model.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When all always-applicable weights are zero", func() {
			cfg := numeric.DefaultConfig()
			cfg.Weights = numeric.Weights{LivingArea: 1}
			So(errors.Is(cfg.Validate(), model.ErrConfiguration), ShouldBeTrue)
		})
	})
}
