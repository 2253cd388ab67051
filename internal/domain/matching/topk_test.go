package matching_test

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/okian/nestmatch/internal/domain/matching"
	"github.com/okian/nestmatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSelector(t *testing.T) {
	Convey("Given a selector of capacity 3", t, func() {
		sel := matching.NewSelector(3)

		Convey("When fewer than 3 results are offered", func() {
			sel.Offer(model.MatchResult{ItemID: 1, Score: 10})
			sel.Offer(model.MatchResult{ItemID: 2, Score: 20})

			Convey("Then all are kept best first", func() {
				out := sel.Drain()
				So(len(out), ShouldEqual, 2)
				So(out[0].ItemID, ShouldEqual, 2)
				So(out[1].ItemID, ShouldEqual, 1)
				So(sel.Len(), ShouldEqual, 0)
			})
		})

		Convey("When scores tie", func() {
			for _, id := range []int64{9, 4, 7, 1} {
				sel.Offer(model.MatchResult{ItemID: id, Score: 50})
			}

			Convey("Then the lowest item ids win in ascending order", func() {
				out := sel.Drain()
				So([]int64{out[0].ItemID, out[1].ItemID, out[2].ItemID}, ShouldResemble, []int64{1, 4, 7})
			})
		})
	})

	Convey("Given a selector of capacity 0", t, func() {
		sel := matching.NewSelector(0)
		sel.Offer(model.MatchResult{ItemID: 1, Score: 99})
		So(sel.Drain(), ShouldBeEmpty)
	})

	Convey("Given random results", t, func() {
		rng := rand.New(rand.NewSource(42))
		agree := true
		for round := 0; round < 50; round++ {
			n := rng.Intn(60)
			k := 1 + rng.Intn(8)
			all := make([]model.MatchResult, n)
			sel := matching.NewSelector(k)
			for i := range all {
				// coarse scores force plenty of ties
				all[i] = model.MatchResult{ItemID: int64(rng.Intn(1000)), Score: float64(rng.Intn(5) * 10)}
				sel.Offer(all[i])
			}
			slices.SortFunc(all, func(a, b model.MatchResult) int {
				if model.Ranks(a, b) {
					return -1
				}
				if model.Ranks(b, a) {
					return 1
				}
				return 0
			})
			want := all[:min(k, n)]
			got := sel.Drain()
			if len(got) != len(want) {
				agree = false
				continue
			}
			for i := range got {
				if got[i].Score != want[i].Score || got[i].ItemID != want[i].ItemID {
					agree = false
				}
			}
		}

		Convey("Then the selector matches a full sort truncated to k", func() {
			So(agree, ShouldBeTrue)
		})
	})
}
