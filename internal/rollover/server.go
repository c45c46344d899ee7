package rollover

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/pkg/cerr"
)

type Server struct {
	scheduler *Scheduler
}

func NewServer(scheduler *Scheduler) *Server {
	return &Server{scheduler: scheduler}
}

func (s *Server) Routes(r chi.Router) {
	r.Post("/tasks/plan-tomorrow", s.handlePlanTomorrow)
}

type planResponse struct {
	ShiftedTasks []*task.Task `json:"shifted_tasks"`
	Applied      bool         `json:"applied"`
}

func (s *Server) handlePlanTomorrow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := auth.MustIdentity(r)
	shifted, applied, err := s.scheduler.PlanTomorrow(ctx, actor.UserID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	resp := planResponse{ShiftedTasks: shifted, Applied: applied}
	if resp.ShiftedTasks == nil {
		resp.ShiftedTasks = []*task.Task{}
	}
	cerr.SetJSONResponse(ctx, resp)
}
