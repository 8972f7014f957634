package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"kpitracker/internal/domain/audit"
	"kpitracker/internal/domain/auth"
	"kpitracker/internal/domain/employees"
	"kpitracker/internal/domain/kpi"
	"kpitracker/internal/domain/settings"
	"kpitracker/internal/platform/config"
	"kpitracker/internal/platform/db"
	"kpitracker/internal/platform/jobs"
	"kpitracker/internal/platform/logging"
	"kpitracker/internal/platform/metrics"
	audithandler "kpitracker/internal/transport/http/handlers/audit"
	authhandler "kpitracker/internal/transport/http/handlers/auth"
	employeeshandler "kpitracker/internal/transport/http/handlers/employees"
	entrieshandler "kpitracker/internal/transport/http/handlers/entries"
	settingshandler "kpitracker/internal/transport/http/handlers/settings"
	"kpitracker/internal/transport/http/api"
	"kpitracker/internal/transport/http/middleware"
)

const (
	shutdownTimeout        = 10 * time.Second
	auditRetentionInterval = time.Hour
)

type App struct {
	Config    config.Config
	DB        *db.Manager
	Router    http.Handler
	Logger    *slog.Logger
	Metrics   *metrics.Collector
	Jobs      *jobs.Service
	Settings  *settings.Service
	Employees *employees.Service
	Entries   *kpi.Service
	Auth      *auth.Service
	Audit     *audit.Service
}

// New opens the store, brings the schema and defaults up to date and wires
// every service and route. No listener is started.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	manager, err := db.Connect(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	app := &App{Config: cfg, DB: manager, Logger: logger, Metrics: metrics.New()}
	app.Metrics.Watch(manager)

	if err := app.bootstrap(ctx); err != nil {
		_ = manager.Close()
		return nil, err
	}
	app.Router = app.routes()

	app.Jobs = jobs.New(logger)
	app.Jobs.Every(jobs.JobStoreKeepAlive, cfg.DBKeepAliveInterval, cfg.DBConnectTimeout, manager.Ping)
	if cfg.AuditRetention > 0 {
		app.Jobs.Every(jobs.JobAuditRetention, auditRetentionInterval, time.Minute, app.Audit.RetentionJob(cfg.AuditRetention))
	}
	return app, nil
}

func (a *App) bootstrap(ctx context.Context) error {
	if err := db.EnsureSchema(ctx, a.DB); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	a.Settings = settings.New(settings.NewStore(a.DB))
	if err := a.Settings.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	placeholder, err := a.Settings.PlaceholderSecretActive(ctx)
	if err != nil {
		return fmt.Errorf("check admin secret: %w", err)
	}
	if placeholder {
		a.Logger.Warn("admin secret is still the default placeholder; change it before sharing this instance")
	}

	jwtSecret := a.Config.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = randomSecret()
		if err != nil {
			return err
		}
		a.Logger.Warn("JWT_SECRET is not set; admin sessions will not survive a restart")
	}
	a.Auth = auth.NewService(a.Settings, jwtSecret, a.Config.AdminSessionTTL)
	a.Settings.UseAuthorizer(a.Auth)
	a.Audit = audit.New(a.DB)

	a.Employees = employees.New(employees.NewStore(a.DB), a.Auth)
	if a.Config.SeedEmployees {
		if err := a.Employees.SeedDefaults(ctx); err != nil {
			return fmt.Errorf("seed employees: %w", err)
		}
	}

	a.Entries = kpi.New(kpi.NewStore(a.DB), a.Settings, a.Auth, kpi.Options{
		Employees:             a.Employees,
		EnforceEmployeeMaster: a.Config.EnforceEmployeeMaster,
		ImportBatchSize:       a.Config.ImportBatchSize,
		Recorder:              a.Metrics,
	})
	return nil
}

func (a *App) routes() http.Handler {
	router := chi.NewRouter()
	if a.Config.TrustProxy {
		router.Use(chimiddleware.RealIP)
	}
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(a.Logger, a.Metrics))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(a.Config.Environment == "production"))
	router.Use(middleware.BodyLimit(a.Config.MaxBodyBytes, a.Config.MaxUploadBytes))
	router.Use(middleware.AdminSession(a.Auth))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if a.Config.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			snapshot := a.Metrics.Snapshot()
			snapshot["jobs"] = a.Jobs.Statuses()
			api.Success(w, snapshot, middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/meta", a.handleMeta)

		authhandler.NewHandler(a.Auth, a.Settings, a.Audit, a.Config.LoginRateLimit).RegisterRoutes(r)
		entrieshandler.NewHandler(a.Entries, a.Settings, a.Audit, a.Config.MaxUploadBytes).RegisterRoutes(r)
		settingshandler.NewHandler(a.Settings, a.Audit).RegisterRoutes(r)
		employeeshandler.NewHandler(a.Employees, a.Audit).RegisterRoutes(r)
		audithandler.NewHandler(a.Audit).RegisterRoutes(r)
	})

	return router
}

type metaResponse struct {
	Backend               string `json:"backend"`
	Persistent            bool   `json:"persistent"`
	EnforceEmployeeMaster bool   `json:"enforceEmployeeMaster"`
	PlaceholderSecret     bool   `json:"placeholderSecret"`
}

// handleMeta reports which backend is active. SQLite files on ephemeral
// hosts are lost on redeploy, so only Postgres is reported as persistent.
func (a *App) handleMeta(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	placeholder, err := a.Settings.PlaceholderSecretActive(r.Context())
	if err != nil {
		api.FailFromError(w, err, reqID)
		return
	}
	backend := a.Config.Backend()
	api.Success(w, metaResponse{
		Backend:               backend,
		Persistent:            backend == config.BackendPostgres,
		EnforceEmployeeMaster: a.Config.EnforceEmployeeMaster,
		PlaceholderSecret:     placeholder,
	}, reqID)
}

func (a *App) Close() error {
	return a.DB.Close()
}

// Run loads configuration from the environment and serves until SIGINT or
// SIGTERM.
func Run() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	app.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown failed", "err", err)
		}
	}()

	logger.Info("KPI tracker listening", "addr", cfg.Addr, "backend", cfg.Backend())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	app.Jobs.Wait()
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
