package bundle

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/pkg/cerr"
)

type Server struct {
	repo  Repository
	tasks task.Repository
}

func NewServer(repo Repository, tasks task.Repository) *Server {
	return &Server{repo: repo, tasks: tasks}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/bundles", s.handleList)
	r.Post("/bundles", s.handleCreate)
	r.Get("/bundles/{id}/tasks", s.handleListTasks)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bundles, err := s.repo.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if bundles == nil {
		bundles = []*Bundle{}
	}
	cerr.SetJSONResponse(ctx, bundles)
}

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !auth.MustIdentity(r).IsAdmin() {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "admin role required", nil)
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.Title == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "title must not be empty", nil)
		return
	}
	b := &Bundle{
		ID:          ulid.Make().String(),
		Title:       req.Title,
		Description: req.Description,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.Create(ctx, b); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseStatus(ctx, http.StatusCreated, b)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, err := s.repo.Get(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	tasks, err := s.tasks.List(ctx, task.Filter{BundleID: id})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	cerr.SetJSONResponse(ctx, tasks)
}
