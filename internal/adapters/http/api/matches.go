package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/okian/nestmatch/internal/adapters/sink"
	"github.com/okian/nestmatch/internal/domain/model"
)

const defaultPageLimit = 100

// MatchesHandler serves the latest ranked table.
type MatchesHandler struct {
	results Results
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(results Results) *MatchesHandler {
	return &MatchesHandler{results: results}
}

type pageResponse struct {
	RunID  string     `json:"run_id"`
	Total  int        `json:"total"`
	Offset int        `json:"offset"`
	Limit  int        `json:"limit"`
	Rows   []sink.Row `json:"rows"`
}

type seekerResponse struct {
	UserID  int64      `json:"user_id"`
	Matches []sink.Row `json:"matches"`
}

type numericJSON struct {
	Score      float64  `json:"score"`
	Budget     float64  `json:"budget"`
	Bedrooms   float64  `json:"bedrooms"`
	Bathrooms  float64  `json:"bathrooms"`
	LivingArea *float64 `json:"living_area,omitempty"`
}

type explainedRow struct {
	sink.Row
	SemanticScore float64     `json:"semantic_score"`
	Numeric       numericJSON `json:"numeric"`
}

type explainResponse struct {
	UserID  int64          `json:"user_id"`
	Matches []explainedRow `json:"matches"`
}

func explain(r model.MatchResult) explainedRow {
	n := r.Breakdown.Numeric
	return explainedRow{
		Row:           sink.Row{UserID: r.SeekerID, PropertyID: r.ItemID, MatchScore: r.Score},
		SemanticScore: r.Breakdown.Semantic,
		Numeric: numericJSON{
			Score:      n.Score,
			Budget:     n.Budget,
			Bedrooms:   n.Bedrooms,
			Bathrooms:  n.Bathrooms,
			LivingArea: n.LivingArea,
		},
	}
}

// HandleList handles GET /matches?offset=N&limit=M. Without a limit the page
// size is the smaller of defaultPageLimit and the store's maximum.
func (h *MatchesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	limit, err := intQuery(r, "limit", min(defaultPageLimit, h.results.MaxLimit()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	snap, err := h.results.Latest(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rows, total, err := h.results.Page(r.Context(), offset, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse{
		RunID:  snap.Summary.RunID,
		Total:  total,
		Offset: offset,
		Limit:  limit,
		Rows:   sink.Rows(rows),
	})
}

// HandleSeeker handles GET /matches/{seeker_id}.
func (h *MatchesHandler) HandleSeeker(w http.ResponseWriter, r *http.Request) {
	id, rows, ok := h.block(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, seekerResponse{UserID: id, Matches: sink.Rows(rows)})
}

// HandleExplain handles GET /matches/{seeker_id}/explain.
func (h *MatchesHandler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	id, rows, ok := h.block(w, r)
	if !ok {
		return
	}
	out := make([]explainedRow, len(rows))
	for i, m := range rows {
		out[i] = explain(m)
	}
	writeJSON(w, http.StatusOK, explainResponse{UserID: id, Matches: out})
}

func (h *MatchesHandler) block(w http.ResponseWriter, r *http.Request) (int64, []model.MatchResult, bool) {
	raw := chi.URLParam(r, "seeker_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeDomainError(w, fmt.Errorf("%w: seeker_id %q is not an integer", ErrBadRequest, raw))
		return 0, nil, false
	}
	rows, err := h.results.Matches(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return 0, nil, false
	}
	return id, rows, true
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, key)
	}
	return n, nil
}
