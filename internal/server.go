package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/taskdeck/taskdeck/internal/analytics"
	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/bundle"
	"github.com/taskdeck/taskdeck/internal/capture"
	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/meeting"
	"github.com/taskdeck/taskdeck/internal/notification"
	"github.com/taskdeck/taskdeck/internal/rollover"
	"github.com/taskdeck/taskdeck/internal/user"
	"github.com/taskdeck/taskdeck/internal/workcycle"
	"github.com/taskdeck/taskdeck/internal/workflow"
	"github.com/taskdeck/taskdeck/pkg/cerr"
	"github.com/taskdeck/taskdeck/pkg/clog"
)

type Server struct {
	server             *http.Server
	env                *config.Env
	verifier           *auth.Verifier
	workflowServer     *workflow.Server
	captureServer      *capture.Server
	rolloverServer     *rollover.Server
	analyticsServer    *analytics.Server
	meetingServer      *meeting.Server
	userServer         *user.Server
	workCycleServer    *workcycle.Server
	bundleServer       *bundle.Server
	notificationServer *notification.Server
}

func NewServer(
	env *config.Env,
	verifier *auth.Verifier,
	workflowServer *workflow.Server,
	captureServer *capture.Server,
	rolloverServer *rollover.Server,
	analyticsServer *analytics.Server,
	meetingServer *meeting.Server,
	userServer *user.Server,
	workCycleServer *workcycle.Server,
	bundleServer *bundle.Server,
	notificationServer *notification.Server,
) *Server {
	return &Server{
		env:                env,
		verifier:           verifier,
		workflowServer:     workflowServer,
		captureServer:      captureServer,
		rolloverServer:     rolloverServer,
		analyticsServer:    analyticsServer,
		meetingServer:      meetingServer,
		userServer:         userServer,
		workCycleServer:    workCycleServer,
		bundleServer:       bundleServer,
		notificationServer: notificationServer,
	}
}

// ListenAndServe starts the HTTP server. The provided context becomes the
// base context for all incoming requests, so cancelling it on shutdown also
// cancels in-flight request contexts.
func (s *Server) ListenAndServe(ctx context.Context) error {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(),
			cerr.NewJSONResponseChiMiddleware(),
			auth.Middleware(s.verifier),
		)
		s.workflowServer.Routes(r)
		s.captureServer.Routes(r)
		s.rolloverServer.Routes(r)
		s.analyticsServer.Routes(r)
		s.meetingServer.Routes(r)
		s.userServer.Routes(r)
		s.workCycleServer.Routes(r)
		s.bundleServer.Routes(r)
		s.notificationServer.Routes(r)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)

	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(mux), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
