package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pdr/internal/domain/audit"
	"pdr/internal/domain/auth"
	"pdr/internal/domain/notifications"
	"pdr/internal/domain/pdr"
	"pdr/internal/domain/reports"
	"pdr/internal/platform/config"
	cryptoutil "pdr/internal/platform/crypto"
	"pdr/internal/platform/db"
	"pdr/internal/platform/email"
	"pdr/internal/platform/metrics"
	audithandler "pdr/internal/transport/http/handlers/audit"
	authhandler "pdr/internal/transport/http/handlers/auth"
	notificationshandler "pdr/internal/transport/http/handlers/notifications"
	pdrhandler "pdr/internal/transport/http/handlers/pdr"
	reportshandler "pdr/internal/transport/http/handlers/reports"
	"pdr/internal/transport/http/middleware"
)

type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Router http.Handler
}

// New wires the application: storage, domain services and the HTTP router.
// It does not listen; Run does.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, err
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, err
		}
	}

	encryption, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		pool.Close()
		return nil, err
	}

	policy := pdr.RequirementPolicy{
		MinGoals:                cfg.PDRMinGoals,
		MinBehaviors:            cfg.PDRMinBehaviors,
		RequireCEOReviewPerItem: cfg.PDRRequireCEOItemReview,
		RequireMidYearProgress:  true,
		RequireMidYearFeedback:  true,
		RequireEmployeeRatings:  true,
		RequireOverallRating:    true,
	}

	pdrService := pdr.NewService(pdr.NewStore(pool), pdr.NewMachine(policy))
	notificationsService := notifications.New(notifications.NewStore(pool), email.New(cfg))
	auditService := audit.New(pool)
	authService := auth.NewService(auth.NewStore(pool))
	reportsService := reports.NewService(reports.NewStore(pool))

	app := &App{Config: cfg, DB: pool}
	app.Router = buildRouter(cfg, pool, routerDeps{
		PDRs:          pdrService,
		Notifications: notificationsService,
		Audit:         auditService,
		Auth:          authService,
		Reports:       reportsService,
		Encryption:    encryption,
	})
	return app, nil
}

type routerDeps struct {
	PDRs          *pdr.Service
	Notifications *notifications.Service
	Audit         *audit.Service
	Auth          *auth.Service
	Reports       *reports.Service
	Encryption    *cryptoutil.Service
}

func buildRouter(cfg config.Config, pool *pgxpool.Pool, deps routerDeps) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.New()
		router.Use(metricsMiddleware(collector))
	}

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.New(deps.Auth, deps.Notifications, deps.Audit, deps.Encryption, cfg.JWTSecret)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.Refresh)
		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/request-reset", authHandler.RequestReset)
		r.Post("/auth/reset", authHandler.Reset)
		r.With(middleware.RequireAuth).Post("/auth/mfa/setup", authHandler.MFASetup)
		r.With(middleware.RequireAuth).Post("/auth/mfa/enable", authHandler.MFAEnable)
		r.With(middleware.RequireAuth).Post("/auth/mfa/disable", authHandler.MFADisable)

		pdrhandler.New(deps.PDRs, deps.Notifications, deps.Audit).RegisterRoutes(r)
		notificationshandler.New(deps.Notifications).RegisterRoutes(r)
		audithandler.New(deps.Audit).RegisterRoutes(r)
		reportshandler.New(deps.Reports, deps.PDRs).RegisterRoutes(r)

		if collector != nil {
			r.With(middleware.RequireRole(string(pdr.RoleCEO))).Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
				writeJSON(w, collector.Snapshot())
			})
		}
	})

	return router
}

func metricsMiddleware(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			collector.Record(recorder.status, time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("metrics write failed", "error", err)
	}
}

// Run blocks serving HTTP until the listener fails.
func (a *App) Run() error {
	slog.Info("server listening", "addr", a.Config.Addr, "env", a.Config.Environment)
	return http.ListenAndServe(a.Config.Addr, a.Router)
}

func (a *App) Close() {
	a.DB.Close()
}
