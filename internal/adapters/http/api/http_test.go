package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/nestmatch/internal/adapters/http/api"
	"github.com/okian/nestmatch/internal/adapters/repository"
	"github.com/okian/nestmatch/internal/domain/matching"
	"github.com/okian/nestmatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type mockScorer struct {
	result model.MatchResult
	err    error
	seeker *model.Seeker
	item   *model.Item
}

func (m *mockScorer) ScorePair(_ context.Context, s *model.Seeker, it *model.Item) (model.MatchResult, error) {
	m.seeker, m.item = s, it
	if m.err != nil {
		return model.MatchResult{}, m.err
	}
	return m.result, nil
}

type mockStats struct{}

func (mockStats) GetStats() map[string]any {
	return map[string]any{"state": "done", "rows": 3}
}

func publishedStore() *repository.MemoryStore {
	store := repository.NewMemoryStore(repository.WithMaxLimit(10))
	area := 0.5
	rep := &matching.Report{
		Table: []model.MatchResult{
			{SeekerID: 1, ItemID: 10, Score: 91.5, Breakdown: model.Breakdown{
				Semantic: 88, Numeric: model.NumericBreakdown{Budget: 1, Bedrooms: 1, Bathrooms: 1, Score: 100},
			}},
			{SeekerID: 1, ItemID: 11, Score: 70},
			{SeekerID: 2, ItemID: 10, Score: 55.25, Breakdown: model.Breakdown{
				Numeric: model.NumericBreakdown{LivingArea: &area},
			}},
		},
		Summary: matching.Summary{RunID: "run-1", TopK: 2},
	}
	if err := store.Publish(context.Background(), rep); err != nil {
		panic(err)
	}
	return store
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return out
}

func TestMatchesRoutes(t *testing.T) {
	Convey("Given a server over a published batch", t, func() {
		srv := api.NewServer(publishedStore(), &mockScorer{}, mockStats{}, nil)
		h := srv.Router()

		Convey("When listing the whole table", func() {
			rec := do(h, http.MethodGet, "/matches", "")

			Convey("Then every row is returned in order", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := decode(rec)
				So(body["run_id"], ShouldEqual, "run-1")
				So(body["total"], ShouldEqual, 3.0)
				So(body["limit"], ShouldEqual, 10.0)
				rows := body["rows"].([]any)
				So(len(rows), ShouldEqual, 3)
				first := rows[0].(map[string]any)
				So(first["user_id"], ShouldEqual, 1.0)
				So(first["property_id"], ShouldEqual, 10.0)
				So(first["match_score"], ShouldEqual, 91.5)
			})
		})

		Convey("When paging", func() {
			rec := do(h, http.MethodGet, "/matches?offset=2&limit=5", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(len(decode(rec)["rows"].([]any)), ShouldEqual, 1)
		})

		Convey("When the limit is out of range", func() {
			So(do(h, http.MethodGet, "/matches?limit=11", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/matches?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When fetching one seeker", func() {
			rec := do(h, http.MethodGet, "/matches/1", "")

			Convey("Then only that block is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := decode(rec)
				So(body["user_id"], ShouldEqual, 1.0)
				So(len(body["matches"].([]any)), ShouldEqual, 2)
			})
		})

		Convey("When explaining a seeker", func() {
			rec := do(h, http.MethodGet, "/matches/2/explain", "")

			Convey("Then the breakdown is included", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				m := decode(rec)["matches"].([]any)[0].(map[string]any)
				So(m["match_score"], ShouldEqual, 55.25)
				num := m["numeric"].(map[string]any)
				So(num["living_area"], ShouldEqual, 0.5)
			})
		})

		Convey("When the seeker is unknown", func() {
			So(do(h, http.MethodGet, "/matches/99", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the seeker id is malformed", func() {
			So(do(h, http.MethodGet, "/matches/abc", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When reading stats", func() {
			rec := do(h, http.MethodGet, "/stats", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(decode(rec)["state"], ShouldEqual, "done")
		})

		Convey("When reading health", func() {
			So(do(h, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
		})
	})

	Convey("Given a server before any batch is published", t, func() {
		h := api.NewServer(repository.NewMemoryStore(), &mockScorer{}, mockStats{}, nil).Router()

		Convey("Then reads report the table as unavailable", func() {
			So(do(h, http.MethodGet, "/matches", "").Code, ShouldEqual, http.StatusServiceUnavailable)
			So(do(h, http.MethodGet, "/matches/1", "").Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

const scoreBody = `{
	"user": {"user_id": 1, "budget": 500000, "bedrooms": 3, "bathrooms": 2, "description": "quiet street"},
	"property": {"property_id": 7, "price": 480000, "bedrooms": 3, "bathrooms": 2, "living_area": 1800, "description": "quiet cul-de-sac"}
}`

func TestScoreRoute(t *testing.T) {
	Convey("Given a server with a pair scorer", t, func() {
		scorer := &mockScorer{result: model.MatchResult{SeekerID: 1, ItemID: 7, Score: 86, Breakdown: model.Breakdown{
			Semantic: 80, Numeric: model.NumericBreakdown{Budget: 1, Bedrooms: 1, Bathrooms: 1, Score: 100},
		}}}
		h := api.NewServer(repository.NewMemoryStore(), scorer, mockStats{}, nil).Router()

		Convey("When a well-formed pair is posted", func() {
			rec := do(h, http.MethodPost, "/score", scoreBody)

			Convey("Then the records reach the scorer and the score is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(scorer.seeker.Budget, ShouldEqual, 500000.0)
				So(scorer.seeker.DesiredLivingArea, ShouldBeNil)
				So(scorer.item.LivingArea, ShouldEqual, 1800.0)
				body := decode(rec)
				So(body["match_score"], ShouldEqual, 86.0)
				So(body["semantic_score"], ShouldEqual, 80.0)
			})
		})

		Convey("When the body has unknown fields", func() {
			rec := do(h, http.MethodPost, "/score", `{"user":{},"bogus":1}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a required field is missing", func() {
			rec := do(h, http.MethodPost, "/score", `{"user":{"user_id":1,"bedrooms":1,"bathrooms":1},"property":{}}`)
			So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
		})

		Convey("When the scorer rejects the pair", func() {
			scorer.err = model.NewValidationError(model.KindItem, 7, "price", "must be >= 0")
			So(do(h, http.MethodPost, "/score", scoreBody).Code, ShouldEqual, http.StatusUnprocessableEntity)
		})

		Convey("When the scorer fails", func() {
			scorer.err = errors.New("provider down")
			So(do(h, http.MethodPost, "/score", scoreBody).Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}
