// Package api serves the latest match table and single-pair scoring over
// HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/okian/nestmatch/internal/adapters/repository"
	"github.com/okian/nestmatch/internal/domain/model"
	"github.com/okian/nestmatch/pkg/logger"
)

// Results is the read side of the result store.
type Results interface {
	Latest(ctx context.Context) (*repository.Snapshot, error)
	Matches(ctx context.Context, seekerID int64) ([]model.MatchResult, error)
	Page(ctx context.Context, offset, limit int) ([]model.MatchResult, int, error)
	MaxLimit() int
}

// PairScorer scores one seeker against one item, embedding their
// descriptions as needed.
type PairScorer interface {
	ScorePair(ctx context.Context, s *model.Seeker, it *model.Item) (model.MatchResult, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	matchesHandler *MatchesHandler
	scoreHandler   *ScoreHandler
	logger         logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(results Results, scorer PairScorer, stats StatsProvider, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(stats),
		matchesHandler: NewMatchesHandler(results),
		scoreHandler:   NewScoreHandler(scorer),
		logger:         log,
	}
}

// Register attaches all API routes to r.
func (s *Server) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Recoverer)
		r.Use(MetricsMiddleware)

		r.Get("/healthz", s.healthHandler.HandleHealth)
		r.Get("/stats", s.statsHandler.HandleStats)
		r.Get("/matches", s.matchesHandler.HandleList)
		r.Get("/matches/{seeker_id}", s.matchesHandler.HandleSeeker)
		r.Get("/matches/{seeker_id}/explain", s.matchesHandler.HandleExplain)
		r.Post("/score", s.scoreHandler.HandleScore)
	})
}

// Router returns a chi router carrying the API routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(s.requestLogger)
	s.Register(r)
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.String("request_id", chiMiddleware.GetReqID(r.Context())))
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates store and validation errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrNoResults):
		writeError(w, http.StatusServiceUnavailable, "no_results", err)
	case errors.Is(err, repository.ErrInvalidLimit), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
