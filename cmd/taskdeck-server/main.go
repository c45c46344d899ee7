package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskdeck/taskdeck/internal/analytics"
	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/bundle"
	bundlerepo "github.com/taskdeck/taskdeck/internal/bundle/repositoryimpl"
	"github.com/taskdeck/taskdeck/internal/capture"
	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/eventbus"
	"github.com/taskdeck/taskdeck/internal/meeting"
	meetingrepo "github.com/taskdeck/taskdeck/internal/meeting/repositoryimpl"
	"github.com/taskdeck/taskdeck/internal/notification"
	notificationrepo "github.com/taskdeck/taskdeck/internal/notification/repositoryimpl"
	pushsubrepo "github.com/taskdeck/taskdeck/internal/pushsubscription/repositoryimpl"
	"github.com/taskdeck/taskdeck/internal/rollover"
	rolloverrepo "github.com/taskdeck/taskdeck/internal/rollover/repositoryimpl"
	taskrepo "github.com/taskdeck/taskdeck/internal/task/repositoryimpl"
	"github.com/taskdeck/taskdeck/internal/user"
	userrepo "github.com/taskdeck/taskdeck/internal/user/repositoryimpl"
	"github.com/taskdeck/taskdeck/internal/workcycle"
	workcyclerepo "github.com/taskdeck/taskdeck/internal/workcycle/repositoryimpl"
	"github.com/taskdeck/taskdeck/internal/workflow"
	"github.com/taskdeck/taskdeck/pkg/clog"
	"github.com/taskdeck/taskdeck/pkg/panicerr"
	"github.com/taskdeck/taskdeck/pkg/storage"

	server "github.com/taskdeck/taskdeck/internal"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}

	// Setup event bus
	bus := eventbus.New()

	// Setup repositories
	taskRepo := taskrepo.NewYAMLRepository(store)
	userRepo := userrepo.NewYAMLRepository(store)
	meetingRepo := meetingrepo.NewYAMLRepository(store)
	workCycleRepo := workcyclerepo.NewYAMLRepository(store)
	bundleRepo := bundlerepo.NewYAMLRepository(store)
	notificationRepo := notificationrepo.NewYAMLRepository(store)
	pushSubRepo := pushsubrepo.NewYAMLRepository(store)
	markerRepo := rolloverrepo.NewYAMLRepository(store)

	// Setup domain services
	policy := config.PolicyEnvFromEnv(env)
	engine := workflow.NewEngine(taskRepo, bus, policy)
	intake := capture.NewIntake(capture.NewHeuristicExtractor(), engine)
	aggregator := analytics.NewAggregator(taskRepo, meetingRepo, policy)
	scheduler := rollover.NewScheduler(engine, markerRepo, userRepo, policy)

	// Setup push notifications
	vapidEnv := config.VAPIDEnvFromEnv(env)
	pushSender := notification.NewSender(vapidEnv, pushSubRepo)
	dispatcher := notification.NewDispatcher(bus, notificationRepo, taskRepo, userRepo, pushSender)

	// Setup HTTP servers
	verifier := auth.NewVerifier(env.JWTSecret)
	srv := server.NewServer(
		env,
		verifier,
		workflow.NewServer(engine, taskRepo, userRepo),
		capture.NewServer(intake),
		rollover.NewServer(scheduler),
		analytics.NewServer(aggregator),
		meeting.NewServer(meetingRepo, userRepo, engine, capture.NewHeuristicExtractor(), bus),
		user.NewServer(userRepo),
		workcycle.NewServer(workCycleRepo, taskRepo),
		bundle.NewServer(bundleRepo, taskRepo),
		notification.NewServer(notificationRepo, pushSubRepo),
	)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	go func() {
		if err := panicerr.SafeContext(dispatcher.Run)(ctx); err != nil && ctx.Err() == nil {
			slog.Error("notification dispatcher stopped", "error", err)
		}
	}()
	go func() {
		if err := panicerr.SafeContext(scheduler.Run)(ctx); err != nil && ctx.Err() == nil {
			slog.Error("rollover scheduler stopped", "error", err)
		}
	}()

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
