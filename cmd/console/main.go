// Package main is the entry point for the route console API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/commutewise/console/apidoc"
	"github.com/commutewise/console/internal/audit"
	"github.com/commutewise/console/internal/config"
	"github.com/commutewise/console/internal/deletion"
	"github.com/commutewise/console/internal/geometry"
	"github.com/commutewise/console/internal/handler"
	"github.com/commutewise/console/internal/identity"
	"github.com/commutewise/console/internal/metrics"
	"github.com/commutewise/console/internal/middleware"
	"github.com/commutewise/console/internal/notice"
	"github.com/commutewise/console/internal/optimistic"
	"github.com/commutewise/console/internal/repo"
	"github.com/commutewise/console/internal/service"
	"github.com/commutewise/console/internal/supervisor"
	"github.com/commutewise/console/internal/workflow"
	"github.com/commutewise/console/migrations"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---------------------------------------------------------
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if cfg.MigrateOnStart {
		if err := migrate(ctx, pool); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	// --- Infrastructure ---------------------------------------------------
	hub := notice.NewHub(logger)
	collector := metrics.NewCollector(hub.Connections)
	board := notice.NewBoard(notice.DefaultDismissAfter, hub)

	sessions, err := identity.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		slog.Error("failed to initialise sessions", "error", err)
		os.Exit(1)
	}

	stopRepo := repo.NewStopRepo(pool)
	routeRepo := repo.NewRouteRepo(pool)
	feedbackRepo := repo.NewFeedbackRepo(pool)
	auditRepo := repo.NewAuditRepo(pool)

	sinks := []audit.Sink{audit.SinkFunc(auditRepo.Insert)}
	if cfg.NATSURL != "" {
		natsSink, err := audit.NewNATSSink(cfg.NATSURL, cfg.AuditSubject, collector, logger)
		if err != nil {
			slog.Error("failed to connect audit broker", "error", err)
			os.Exit(1)
		}
		defer natsSink.Close()
		sinks = append(sinks, natsSink)
	}
	recorder := audit.NewRecorder(logger, collector, 0, sinks...)

	// --- Services ---------------------------------------------------------
	stopSvc := service.NewStopService(stopRepo, recorder, service.DefaultLookupTTL)
	routeSvc := service.NewRouteService(routeRepo, stopSvc, recorder, logger)
	feedbackSvc := service.NewFeedbackService(feedbackRepo)
	dashboardSvc := service.NewDashboardService(routeRepo, stopRepo, feedbackRepo, auditRepo)

	feedbackBoard := optimistic.NewFeedbackBoard(feedbackSvc, collector)
	if _, err := feedbackBoard.Reload(ctx); err != nil {
		slog.Warn("initial feedback load failed", "error", err)
	}

	resolver := geometry.NewOSRMClient(&http.Client{Timeout: 15 * time.Second}, cfg.RoutingBaseURL, cfg.RoutingProfile, collector)

	machine := workflow.New(workflow.Deps{
		Stops:    stopSvc,
		Routes:   routeSvc,
		Resolver: resolver,
		Notifier: board,
		Observer: collector,
		Logger:   logger,
	})

	deleter := service.NewEntityDeleter(stopSvc, routeSvc, feedbackBoard, recorder, collector, board)
	clock := supervisor.SystemClock{}
	guard := deletion.New(cfg.DeleteCountdown, clock, deleter, logger)

	sup := supervisor.New(
		supervisor.Config{Threshold: cfg.InactivityTimeout, WarningWindow: cfg.InactivityWarning},
		clock, sessions, board, collector, logger,
		machine, guard,
	)
	hub.OnActivity(func(event string) { sup.Touch(event) })

	var workers sync.WaitGroup
	workers.Add(1)
	go func() { defer workers.Done(); sup.Run(ctx) }()

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer → CORS → body cap.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	srvHandler := handler.NewServer(handler.Deps{
		Workflow:       machine,
		Stops:          stopSvc,
		Routes:         routeSvc,
		Deletions:      guard,
		Describer:      deleter,
		Feedback:       feedbackBoard,
		RecentFeedback: feedbackSvc,
		Dashboard:      dashboardSvc,
		Session:        sup,
		Notices:        hub,
		Metrics:        collector.Handler(),
		OpenAPI:        apidoc.OpenAPI,
		Authenticate:   middleware.NewBearerAuth(sessions),
		Gate:           middleware.NewSessionGate(sup),
		Logger:         logger,
	})
	r.Mount("/", srvHandler.Routes())

	// --- HTTP Server ------------------------------------------------------
	// WriteTimeout is left at zero so the notice WebSocket is not cut off.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	workers.Wait()
	recorder.Wait()
	slog.Info("server stopped")
}

// migrate applies pending goose migrations over a database/sql view of the pool.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	n, err := migrations.Up(ctx, db)
	if err != nil {
		return err
	}
	slog.Info("migrations applied", "count", n)
	return nil
}
