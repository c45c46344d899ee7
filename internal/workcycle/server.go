package workcycle

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
	r.Get("/workcycles", s.handleList)
	r.Post("/workcycles", s.handleCreate)
	r.Get("/workcycles/{id}/tasks", s.handleListTasks)
	r.Get("/workcycles/{id}/snapshot", s.handleSnapshot)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cycles, err := s.repo.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if cycles == nil {
		cycles = []*WorkCycle{}
	}
	cerr.SetJSONResponse(ctx, cycles)
}

type createRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Goal      string `json:"goal"`
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
	if req.Name == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "name must not be empty", nil)
		return
	}
	for _, d := range []string{req.StartDate, req.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(task.DateLayout, d); err != nil {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "dates must use YYYY-MM-DD", err)
			return
		}
	}
	c := &WorkCycle{
		ID:        ulid.Make().String(),
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Goal:      req.Goal,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseStatus(ctx, http.StatusCreated, c)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, err := s.repo.Get(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	tasks, err := s.tasks.List(ctx, task.Filter{WorkCycleID: id})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	cerr.SetJSONResponse(ctx, tasks)
}

// handleSnapshot computes the cycle's progress view on read. Effort is
// measured in story points.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	tasks, err := s.tasks.List(ctx, task.Filter{WorkCycleID: id})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	snap := &Snapshot{
		CycleID:   c.ID,
		CycleName: c.Name,
		Blockers:  []SnapshotTask{},
	}
	for _, t := range tasks {
		snap.TotalItems++
		snap.TotalEffort += t.StoryPoints
		if t.Status == task.StatusDone {
			snap.CompletedItems++
		} else {
			snap.RemainingEffort += t.StoryPoints
		}
		if t.IsBlocked {
			snap.Blockers = append(snap.Blockers, SnapshotTask{
				ID:          t.ID,
				Description: t.Description,
				Reason:      t.BlockerReason,
			})
		}
	}
	cerr.SetJSONResponse(ctx, snap)
}
