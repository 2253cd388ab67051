package hybrid_test

import (
	"errors"
	"testing"

	"github.com/okian/nestmatch/internal/domain/hybrid"
	"github.com/okian/nestmatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCombine(t *testing.T) {
	Convey("Given 0.7/0.3 weights", t, func() {
		s, err := hybrid.NewScorer(hybrid.Weights{Semantic: 0.7, Numerical: 0.3}, false)
		So(err, ShouldBeNil)

		Convey("When semantic is 80 and numeric is 100", func() {
			Convey("Then the final score is 86.00", func() {
				So(s.Combine(80, 100), ShouldEqual, 86.00)
			})
		})

		Convey("When the output has more than two decimals", func() {
			Convey("Then it is rounded to two", func() {
				So(s.Combine(33.333, 66.666), ShouldEqual, 43.33)
			})
		})

		Convey("When inputs fall outside [0,100]", func() {
			Convey("Then they are clamped before weighting", func() {
				So(s.Combine(150, 100), ShouldEqual, 100)
				So(s.Combine(-20, 0), ShouldEqual, 0)
			})
		})
	})

	Convey("Given any valid weight split", t, func() {
		maxed, linear := true, true
		for i := 0; i <= 100; i++ {
			w := float64(i) / 100
			if hybrid.Combine(100, 100, w, 1-w) != 100 {
				maxed = false
			}
			// linear in each argument for fixed weights
			a := hybrid.Combine(20, 40, w, 1-w)
			b := hybrid.Combine(60, 40, w, 1-w)
			mid := hybrid.Combine(40, 40, w, 1-w)
			if d := (a+b)/2 - mid; d > 0.01 || d < -0.01 {
				linear = false
			}
		}

		Convey("Then combine(100,100,w,1-w) is always 100", func() {
			So(maxed, ShouldBeTrue)
		})
		Convey("Then combine is linear in its arguments", func() {
			So(linear, ShouldBeTrue)
		})
	})
}

func TestNewScorer(t *testing.T) {
	Convey("Given weight configurations", t, func() {
		Convey("When a weight is negative", func() {
			_, err := hybrid.NewScorer(hybrid.Weights{Semantic: -0.1, Numerical: 1.1}, true)
			So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When both weights are invalid", func() {
			fields := make(map[string]bool)
			for i := 0; i < 50; i++ {
				_, err := hybrid.NewScorer(hybrid.Weights{Semantic: -1, Numerical: -1}, true)
				var ce *model.ConfigurationError
				So(errors.As(err, &ce), ShouldBeTrue)
				fields[ce.Field] = true
			}

			Convey("Then the semantic weight is always the one reported", func() {
				So(fields, ShouldResemble, map[string]bool{"semantic_weight": true})
			})
		})

		Convey("When both weights are zero", func() {
			_, err := hybrid.NewScorer(hybrid.Weights{}, true)
			So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When weights do not sum to 1 and renormalization is off", func() {
			_, err := hybrid.NewScorer(hybrid.Weights{Semantic: 0.7, Numerical: 0.7}, false)
			So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When weights do not sum to 1 and renormalization is on", func() {
			s, err := hybrid.NewScorer(hybrid.Weights{Semantic: 3, Numerical: 1}, true)
			So(err, ShouldBeNil)

			Convey("Then they are scaled to sum to 1", func() {
				So(s.Weights().Semantic, ShouldAlmostEqual, 0.75, 1e-12)
				So(s.Weights().Numerical, ShouldAlmostEqual, 0.25, 1e-12)
				So(s.Combine(100, 100), ShouldEqual, 100)
			})
		})
	})
}

func TestRound2(t *testing.T) {
	Convey("Given values to round", t, func() {
		So(hybrid.Round2(86.000000001), ShouldEqual, 86)
		So(hybrid.Round2(12.345), ShouldBeBetweenOrEqual, 12.34, 12.35)
		So(hybrid.Round2(0.004), ShouldEqual, 0)
	})
}
