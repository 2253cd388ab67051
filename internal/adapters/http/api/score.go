package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okian/nestmatch/internal/domain/model"
)

const maxScoreBody = 1 << 20

// ScoreHandler scores an ad-hoc seeker/item pair.
type ScoreHandler struct {
	scorer PairScorer
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(scorer PairScorer) *ScoreHandler {
	return &ScoreHandler{scorer: scorer}
}

// scoreRequest mirrors the OpenAPI schema for POST /score.
type scoreRequest struct {
	User struct {
		ID          int64    `json:"user_id"`
		Budget      *float64 `json:"budget"`
		Bedrooms    *int     `json:"bedrooms"`
		Bathrooms   *int     `json:"bathrooms"`
		LivingArea  *float64 `json:"living_area"`
		Description string   `json:"description"`
	} `json:"user"`
	Property struct {
		ID          int64    `json:"property_id"`
		Price       *float64 `json:"price"`
		Bedrooms    *int     `json:"bedrooms"`
		Bathrooms   *int     `json:"bathrooms"`
		LivingArea  *float64 `json:"living_area"`
		Description string   `json:"description"`
	} `json:"property"`
}

func (q *scoreRequest) records() (*model.Seeker, *model.Item, error) {
	u, p := q.User, q.Property
	switch {
	case u.Budget == nil:
		return nil, nil, model.NewValidationError(model.KindSeeker, u.ID, "budget", "missing")
	case u.Bedrooms == nil:
		return nil, nil, model.NewValidationError(model.KindSeeker, u.ID, "bedrooms", "missing")
	case u.Bathrooms == nil:
		return nil, nil, model.NewValidationError(model.KindSeeker, u.ID, "bathrooms", "missing")
	case p.Price == nil:
		return nil, nil, model.NewValidationError(model.KindItem, p.ID, "price", "missing")
	case p.Bedrooms == nil:
		return nil, nil, model.NewValidationError(model.KindItem, p.ID, "bedrooms", "missing")
	case p.Bathrooms == nil:
		return nil, nil, model.NewValidationError(model.KindItem, p.ID, "bathrooms", "missing")
	case p.LivingArea == nil:
		return nil, nil, model.NewValidationError(model.KindItem, p.ID, "living_area", "missing")
	}
	s := &model.Seeker{
		ID:                u.ID,
		Budget:            *u.Budget,
		Bedrooms:          *u.Bedrooms,
		Bathrooms:         *u.Bathrooms,
		DesiredLivingArea: u.LivingArea,
		Description:       u.Description,
	}
	it := &model.Item{
		ID:          p.ID,
		Price:       *p.Price,
		Bedrooms:    *p.Bedrooms,
		Bathrooms:   *p.Bathrooms,
		LivingArea:  *p.LivingArea,
		Description: p.Description,
	}
	return s, it, nil
}

// HandleScore handles POST /score.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScoreBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeDomainError(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	s, it, err := req.records()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := h.scorer.ScorePair(r.Context(), s, it)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, explain(res))
}
