package meeting

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/capture"
	"github.com/taskdeck/taskdeck/internal/eventbus"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/internal/user"
	"github.com/taskdeck/taskdeck/internal/workflow"
	"github.com/taskdeck/taskdeck/pkg/cerr"
)

type Server struct {
	repo      Repository
	users     user.Repository
	engine    *workflow.Engine
	extractor capture.MeetingExtractor
	bus       *eventbus.Bus
}

func NewServer(repo Repository, users user.Repository, engine *workflow.Engine, extractor capture.MeetingExtractor, bus *eventbus.Bus) *Server {
	return &Server{
		repo:      repo,
		users:     users,
		engine:    engine,
		extractor: extractor,
		bus:       bus,
	}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/meetings", s.handleList)
	r.Post("/meetings/process", s.handleProcess)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := auth.MustIdentity(r)
	if !actor.IsAdmin() {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "admin role required", nil)
		return
	}
	meetings, err := s.repo.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if meetings == nil {
		meetings = []*Meeting{}
	}
	cerr.SetJSONResponse(ctx, meetings)
}

type processRequest struct {
	Title      string `json:"title"`
	Date       string `json:"date"`
	Transcript string `json:"transcript"`
}

type processResponse struct {
	Meeting          *Meeting     `json:"meeting"`
	CreatedTasks     []*task.Task `json:"created_tasks"`
	DetectedBlockers []string     `json:"detected_blockers"`
}

// handleProcess runs a transcript through the extractor, records the meeting
// with its minutes, and creates one task per action item. Items without a
// recognizable assignee land on the processing admin.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := auth.MustIdentity(r)
	if !actor.IsAdmin() {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "admin role required", nil)
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.Title == "" || req.Transcript == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "title and transcript must not be empty", nil)
		return
	}
	if req.Date == "" {
		req.Date = time.Now().Format(task.DateLayout)
	}

	extraction, err := s.extractor.ExtractMeeting(ctx, req.Title, req.Transcript)
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.Unavailable, "transcript analysis failed", err)
		return
	}

	m := &Meeting{
		ID:             ulid.Make().String(),
		Title:          req.Title,
		Date:           req.Date,
		SummaryMinutes: extraction.Summary,
		ProcessedByID:  actor.UserID,
		CreatedAt:      time.Now(),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	created := make([]*task.Task, 0, len(extraction.Tasks))
	for _, item := range extraction.Tasks {
		assigneeID := actor.UserID
		if item.Assignee != "" {
			u, err := user.Ensure(ctx, s.users, item.Assignee)
			if err != nil {
				cerr.SetJSONError(ctx, err)
				return
			}
			assigneeID = u.ID
		}
		t, err := s.engine.Create(ctx, actor, workflow.CreateParams{
			Description: item.Description,
			MeetingID:   m.ID,
			AssigneeID:  assigneeID,
			DueDate:     item.DueDate,
		})
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		created = append(created, t)
	}

	s.bus.PublishNew(eventbus.EventMeetingProcessed, m.ID, actor.UserID, map[string]string{
		"title":      m.Title,
		"task_count": strconv.Itoa(len(created)),
	})

	blockers := capture.DetectBlockers(req.Transcript)
	if blockers == nil {
		blockers = []string{}
	}
	cerr.SetJSONResponseStatus(ctx, http.StatusCreated, processResponse{
		Meeting:          m,
		CreatedTasks:     created,
		DetectedBlockers: blockers,
	})
}
