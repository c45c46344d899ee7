package notification

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/pushsubscription"
	"github.com/taskdeck/taskdeck/pkg/cerr"
)

type Server struct {
	repo Repository
	subs pushsubscription.Repository
}

func NewServer(repo Repository, subs pushsubscription.Repository) *Server {
	return &Server{repo: repo, subs: subs}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/notifications", s.handleList)
	r.Patch("/notifications/{id}/read", s.handleMarkRead)
	r.Post("/push/subscribe", s.handleSubscribe)
	r.Post("/push/unsubscribe", s.handleUnsubscribe)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := auth.MustIdentity(r)
	notifications, err := s.repo.ListByUser(ctx, actor.UserID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if notifications == nil {
		notifications = []*Notification{}
	}
	cerr.SetJSONResponse(ctx, notifications)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := auth.MustIdentity(r)
	n, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if n.UserID != actor.UserID {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "notification belongs to another user", nil)
		return
	}
	n.IsRead = true
	if err := s.repo.Update(ctx, n); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, n)
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := auth.MustIdentity(r)
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint and keys are required", nil)
		return
	}
	// Re-subscribing with the same endpoint replaces the old record.
	if err := s.subs.DeleteByEndpoint(ctx, req.Endpoint); err != nil && !cerr.IsCode(err, cerr.NotFound) {
		cerr.SetJSONError(ctx, err)
		return
	}
	sub := &pushsubscription.Subscription{
		ID:        ulid.Make().String(),
		UserID:    actor.UserID,
		Endpoint:  req.Endpoint,
		P256dhKey: req.Keys.P256dh,
		AuthKey:   req.Keys.Auth,
		CreatedAt: time.Now(),
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseStatus(ctx, http.StatusCreated, sub)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.Endpoint == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint must not be empty", nil)
		return
	}
	if err := s.subs.DeleteByEndpoint(ctx, req.Endpoint); err != nil && !cerr.IsCode(err, cerr.NotFound) {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]bool{"ok": true})
}
