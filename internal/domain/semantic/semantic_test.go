package semantic_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/okian/nestmatch/internal/domain/model"
	"github.com/okian/nestmatch/internal/domain/semantic"
	. "github.com/smartystreets/goconvey/convey"
)

func randomVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return v
}

func TestScorer_Clamp(t *testing.T) {
	Convey("Given a scorer with the clamp mapping", t, func() {
		s, err := semantic.NewScorer(semantic.MappingClamp)
		So(err, ShouldBeNil)

		Convey("When both vectors are identical", func() {
			u := []float32{0.3, -1.2, 4.5, 0.01}
			score, err := s.Score(u, u)

			Convey("Then the score is the maximum", func() {
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 100)
			})
		})

		Convey("When the vectors are orthogonal", func() {
			score, err := s.Score([]float32{1, 0}, []float32{0, 1})

			Convey("Then the score is the minimum", func() {
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 0)
			})
		})

		Convey("When the vectors point in opposite directions", func() {
			score, err := s.Score([]float32{1, 2}, []float32{-1, -2})

			Convey("Then negative similarity clamps to zero", func() {
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 0)
			})
		})

		Convey("When one vector has zero norm", func() {
			score, err := s.Score([]float32{0, 0, 0}, []float32{1, 2, 3})

			Convey("Then the score is defined as zero", func() {
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 0)
			})
		})

		Convey("When the dimensions differ", func() {
			_, err := s.Score([]float32{1, 2}, []float32{1, 2, 3})

			Convey("Then a validation error is returned", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			})
		})
	})
}

func TestScorer_Linear(t *testing.T) {
	Convey("Given a scorer with the linear mapping", t, func() {
		s, err := semantic.NewScorer(semantic.MappingLinear)
		So(err, ShouldBeNil)

		Convey("Then identical vectors score the maximum", func() {
			u := []float32{2, 7, 1}
			score, err := s.Score(u, u)
			So(err, ShouldBeNil)
			So(score, ShouldEqual, 100)
		})

		Convey("Then orthogonal vectors score the midpoint", func() {
			score, err := s.Score([]float32{1, 0}, []float32{0, 1})
			So(err, ShouldBeNil)
			So(score, ShouldEqual, 50)
		})

		Convey("Then opposite vectors score the minimum", func() {
			score, err := s.Score([]float32{1, 0}, []float32{-1, 0})
			So(err, ShouldBeNil)
			So(score, ShouldEqual, 0)
		})

		Convey("Then degenerate vectors still score zero", func() {
			score, err := s.Score([]float32{0, 0}, []float32{0, 1})
			So(err, ShouldBeNil)
			So(score, ShouldEqual, 0)
		})
	})
}

func TestScorer_Properties(t *testing.T) {
	Convey("Given random vector pairs", t, func() {
		rng := rand.New(rand.NewSource(7))
		clamp, _ := semantic.NewScorer(semantic.MappingClamp)
		linear, _ := semantic.NewScorer(semantic.MappingLinear)

		bounded, symmetric, selfMax := true, true, true
		for i := 0; i < 200; i++ {
			u := randomVector(rng, 16)
			p := randomVector(rng, 16)
			for _, s := range []*semantic.Scorer{clamp, linear} {
				up, _ := s.Score(u, p)
				pu, _ := s.Score(p, u)
				uu, _ := s.Score(u, u)
				if up < 0 || up > 100 {
					bounded = false
				}
				if up != pu {
					symmetric = false
				}
				if uu != 100 {
					selfMax = false
				}
			}
		}

		Convey("Then scores stay in [0,100]", func() {
			So(bounded, ShouldBeTrue)
		})
		Convey("Then scoring is symmetric", func() {
			So(symmetric, ShouldBeTrue)
		})
		Convey("Then a vector against itself scores the maximum", func() {
			So(selfMax, ShouldBeTrue)
		})
	})
}

func TestVector(t *testing.T) {
	Convey("Given precomputed vectors", t, func() {
		v := semantic.NewVector([]float32{3, 4})

		Convey("Then the norm and dimension are exposed", func() {
			So(v.Dim(), ShouldEqual, 2)
			So(v.Norm(), ShouldEqual, 5)
			So(v.Degenerate(), ShouldBeFalse)
			So(semantic.NewVector(nil).Degenerate(), ShouldBeTrue)
		})

		Convey("Then cosine of mismatched dimensions is zero", func() {
			So(semantic.Cosine(v, semantic.NewVector([]float32{1})), ShouldEqual, 0)
		})
	})
}

func TestParseMapping(t *testing.T) {
	Convey("Given mapping names", t, func() {
		m, err := semantic.ParseMapping("")
		So(err, ShouldBeNil)
		So(m, ShouldEqual, semantic.MappingClamp)

		m, err = semantic.ParseMapping(" LINEAR ")
		So(err, ShouldBeNil)
		So(m, ShouldEqual, semantic.MappingLinear)

		_, err = semantic.ParseMapping("sigmoid")
		So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)

		_, err = semantic.NewScorer("sigmoid")
		So(err, ShouldNotBeNil)
	})
}
