package user

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/pkg/cerr"
)

type Server struct {
	repo Repository
}

func NewServer(repo Repository) *Server {
	return &Server{repo: repo}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/users", s.handleList)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !auth.MustIdentity(r).IsAdmin() {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "admin role required", nil)
		return
	}
	users, err := s.repo.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if users == nil {
		users = []*User{}
	}
	cerr.SetJSONResponse(ctx, users)
}
