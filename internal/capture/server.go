package capture

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/pkg/cerr"
)

type Server struct {
	intake *Intake
}

func NewServer(intake *Intake) *Server {
	return &Server{intake: intake}
}

func (s *Server) Routes(r chi.Router) {
	r.Post("/tasks/capture", s.handleCapture)
}

type captureRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	t, err := s.intake.Capture(ctx, auth.MustIdentity(r), req.Text)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseStatus(ctx, http.StatusCreated, t)
}
