package analytics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/pkg/cerr"
)

type Server struct {
	aggregator *Aggregator
}

func NewServer(aggregator *Aggregator) *Server {
	return &Server{aggregator: aggregator}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/analytics/briefing", s.handleBriefing)
	r.Get("/analytics/productivity", s.handleProductivity)
}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	b, err := s.aggregator.Briefing(ctx, auth.MustIdentity(r))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, b)
}

func (s *Server) handleProductivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "days must be a positive integer", err)
			return
		}
		days = n
	}
	p, err := s.aggregator.Productivity(ctx, auth.MustIdentity(r), days)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, p)
}
