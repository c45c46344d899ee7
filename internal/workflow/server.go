package workflow

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/internal/user"
	"github.com/taskdeck/taskdeck/pkg/cerr"
)

// Server exposes the engine's operations as the /tasks JSON surface.
type Server struct {
	engine *Engine
	repo   task.Repository
	users  user.Repository
}

func NewServer(engine *Engine, repo task.Repository, users user.Repository) *Server {
	return &Server{
		engine: engine,
		repo:   repo,
		users:  users,
	}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/tasks", s.handleListAll)
	r.Get("/tasks/my", s.handleListMine)
	r.Get("/tasks/queue", s.handleListQueue)
	r.Get("/tasks/review", s.handleListReview)
	r.Get("/tasks/pending-verification", s.handleListPendingVerification)
	r.Post("/tasks", s.handleCreate)
	r.Patch("/tasks/{id}", s.handlePatch)
	r.Post("/tasks/{id}/complete", s.handleComplete)
	r.Post("/tasks/{id}/submit", s.handleSubmit)
	r.Post("/tasks/{id}/verify", s.handleVerify)
}

func (s *Server) handleListAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := auth.MustIdentity(r)
	if !actor.IsAdmin() {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "admin role required", nil)
		return
	}
	tasks, err := s.repo.List(ctx, task.Filter{})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, tasksOrEmpty(tasks))
}

func (s *Server) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := auth.MustIdentity(r)
	tasks, err := s.repo.List(ctx, task.Filter{AssigneeID: actor.UserID})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, tasksOrEmpty(tasks))
}

// handleListQueue serves the sprint/priority board: approved tasks only.
func (s *Server) handleListQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := auth.MustIdentity(r)
	approved := true
	f := task.Filter{Approved: &approved}
	if !actor.IsAdmin() {
		f.AssigneeID = actor.UserID
	}
	tasks, err := s.repo.List(ctx, f)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	eligible := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.QueueEligible() {
			eligible = append(eligible, t)
		}
	}
	cerr.SetJSONResponse(ctx, eligible)
}

// handleListReview serves the admin review queue: unapproved tasks waiting
// for priority/effort assignment, plus the raw capture inbox.
func (s *Server) handleListReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := auth.MustIdentity(r)
	if !actor.IsAdmin() {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "admin role required", nil)
		return
	}
	approved := false
	tasks, err := s.repo.List(ctx, task.Filter{Approved: &approved})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, tasksOrEmpty(tasks))
}

func (s *Server) handleListPendingVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := auth.MustIdentity(r)
	if !actor.IsAdmin() {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "admin role required", nil)
		return
	}
	tasks, err := s.repo.List(ctx, task.Filter{Status: task.StatusSubmitted})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, tasksOrEmpty(tasks))
}

type createRequest struct {
	Description        string `json:"description"`
	MeetingID          string `json:"meeting_id"`
	AssigneeUsername   string `json:"assignee_username"`
	DueDate            string `json:"due_date"`
	EffortTag          string `json:"effort_tag"`
	Priority           int    `json:"priority"`
	StoryPoints        int    `json:"story_points"`
	AcceptanceCriteria string `json:"acceptance_criteria"`
	WorkCycleID        string `json:"work_cycle_id"`
	BundleID           string `json:"bundle_id"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := auth.MustIdentity(r)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.AssigneeUsername == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "assignee_username must not be empty", nil)
		return
	}

	assignee, err := user.Ensure(ctx, s.users, req.AssigneeUsername)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	t, err := s.engine.Create(ctx, actor, CreateParams{
		Description:        req.Description,
		MeetingID:          req.MeetingID,
		AssigneeID:         assignee.ID,
		DueDate:            req.DueDate,
		EffortTag:          task.EffortTag(req.EffortTag),
		Priority:           req.Priority,
		StoryPoints:        req.StoryPoints,
		AcceptanceCriteria: req.AcceptanceCriteria,
		WorkCycleID:        req.WorkCycleID,
		BundleID:           req.BundleID,
	})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseStatus(ctx, http.StatusCreated, t)
}

type patchRequest struct {
	Progress           *int    `json:"progress"`
	IsBlocked          *bool   `json:"is_blocked"`
	BlockerReason      *string `json:"blocker_reason"`
	IsApproved         *bool   `json:"is_approved"`
	Status             *string `json:"status"`
	Description        *string `json:"description"`
	Priority           *int    `json:"priority"`
	EffortTag          *string `json:"effort_tag"`
	StoryPoints        *int    `json:"story_points"`
	AcceptanceCriteria *string `json:"acceptance_criteria"`
	DueDate            *string `json:"due_date"`
	WorkCycleID        *string `json:"work_cycle_id"`
	BundleID           *string `json:"bundle_id"`
}

func (p *patchRequest) hasDetails() bool {
	return p.Description != nil || p.Priority != nil || p.EffortTag != nil ||
		p.StoryPoints != nil || p.AcceptanceCriteria != nil || p.DueDate != nil ||
		p.WorkCycleID != nil || p.BundleID != nil
}

// handlePatch maps the client's partial update onto engine operations:
// detail edits, status moves, the approve flag, blocker changes and progress
// are applied in that order, each with its own role and precondition checks.
func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := auth.MustIdentity(r)
	id := chi.URLParam(r, "id")

	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}

	var (
		t   *task.Task
		err error
	)

	if req.hasDetails() {
		var effort *task.EffortTag
		if req.EffortTag != nil {
			e := task.EffortTag(*req.EffortTag)
			effort = &e
		}
		t, err = s.engine.UpdateDetails(ctx, actor, id, DetailPatch{
			Description:        req.Description,
			Priority:           req.Priority,
			EffortTag:          effort,
			StoryPoints:        req.StoryPoints,
			AcceptanceCriteria: req.AcceptanceCriteria,
			DueDate:            req.DueDate,
			WorkCycleID:        req.WorkCycleID,
			BundleID:           req.BundleID,
		})
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
	}

	if req.Status != nil {
		t, err = s.applyStatusMove(r, actor, id, *req.Status)
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
	}

	if req.IsApproved != nil && *req.IsApproved {
		t, err = s.engine.Approve(ctx, actor, id)
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
	}

	if req.IsBlocked != nil {
		if *req.IsBlocked {
			reason := ""
			if req.BlockerReason != nil {
				reason = *req.BlockerReason
			}
			t, err = s.engine.ReportBlocker(ctx, actor, id, reason)
		} else {
			t, err = s.engine.ClearBlocker(ctx, actor, id)
		}
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
	}

	if req.Progress != nil {
		t, err = s.engine.UpdateProgress(ctx, actor, id, *req.Progress)
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
	}

	if t == nil {
		t, err = s.repo.Get(ctx, id)
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
	}
	cerr.SetJSONResponse(ctx, t)
}

// applyStatusMove resolves a PATCHed status against the current state: the
// only direct moves the client makes are inbox→review and releasing the
// manager gate, both targeting "To Do".
func (s *Server) applyStatusMove(r *http.Request, actor auth.Identity, id, status string) (*task.Task, error) {
	ctx := r.Context()
	if task.Status(status) != task.StatusToDo {
		return nil, cerr.Errorf(cerr.FailedPrecondition, "status cannot be set to %q directly", status)
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case task.StatusCaptureInbox:
		return s.engine.MoveToReview(ctx, actor, id)
	case task.StatusManagerApprovalPending:
		return s.engine.ManagerApprove(ctx, actor, id)
	default:
		return nil, cerr.Errorf(cerr.FailedPrecondition, "cannot move task to %q: task is %q", status, current.Status)
	}
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.engine.Complete(ctx, auth.MustIdentity(r), chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

type submitRequest struct {
	SubmissionNotes string `json:"submission_notes"`
	SubmissionURL   string `json:"submission_url"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	t, err := s.engine.Submit(ctx, auth.MustIdentity(r), chi.URLParam(r, "id"), req.SubmissionNotes, req.SubmissionURL)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

type verifyRequest struct {
	Approved          bool   `json:"approved"`
	VerificationNotes string `json:"verification_notes"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	t, err := s.engine.Verify(ctx, auth.MustIdentity(r), chi.URLParam(r, "id"), req.Approved, req.VerificationNotes)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func tasksOrEmpty(tasks []*task.Task) []*task.Task {
	if tasks == nil {
		return []*task.Task{}
	}
	return tasks
}
