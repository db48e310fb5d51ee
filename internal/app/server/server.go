package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"payengine/internal/auth"
	"payengine/internal/domain/activity"
	"payengine/internal/domain/payroll"
	"payengine/internal/platform/config"
	"payengine/internal/platform/crypto"
	"payengine/internal/platform/db"
	"payengine/internal/platform/metrics"
	"payengine/internal/transport/http/api"
	payrollhandler "payengine/internal/transport/http/handlers/payroll"
	"payengine/internal/transport/http/middleware"
)

type App struct {
	Config      config.Config
	DB          *db.Pool
	Metrics     *metrics.Collector
	Idempotency *middleware.IdempotencyStore
	Router      http.Handler
}

const idempotencyPurgeInterval = time.Hour

// Deps are the collaborators the router needs. Ready reports whether the
// service can take traffic.
type Deps struct {
	Service     payrollhandler.PaycheckService
	Idempotency *middleware.IdempotencyStore
	Activity    payrollhandler.ActivityLog
	Metrics     *metrics.Collector
	Ready       func(ctx context.Context) error
}

// New connects to the database, applies migrations and builds the router.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, os.DirFS(cfg.MigrationsDir)); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	keys, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		pool.Close()
		return nil, err
	}

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.New()
	}

	service, err := payroll.NewService(payroll.NewStore(pool), keys, payroll.ServiceOptions{
		BatchConcurrency: cfg.BatchConcurrency,
		StrictYtdYear:    cfg.StrictYtdYear,
		TraceLevel:       payroll.TraceLevel(cfg.DefaultTraceLevel),
		EngineTimeout:    cfg.EngineTimeout,
		Metrics:          collector,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	replays := middleware.NewIdempotencyStore(pool)
	router := NewRouter(cfg, Deps{
		Service:     service,
		Idempotency: replays,
		Activity:    activity.New(pool),
		Metrics:     collector,
		Ready:       pool.Ping,
	})
	return &App{Config: cfg, DB: pool, Metrics: collector, Idempotency: replays, Router: router}, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

func NewRouter(cfg config.Config, deps Deps) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(slog.Default()))
	router.Use(chimw.Recoverer)
	router.Use(middleware.Metrics(deps.Metrics))
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	if len(cfg.CORSAllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	perms := auth.StaticPermissions(auth.RolePermissions)
	router.With(middleware.RequirePermission(auth.PermMetricsRead, perms)).Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if deps.Metrics == nil {
			api.Fail(w, http.StatusNotFound, "metrics_disabled", "metrics are disabled", middleware.GetRequestID(r.Context()))
			return
		}
		api.Success(w, deps.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		payrollHandler := payrollhandler.NewHandler(deps.Service, perms, deps.Idempotency)
		payrollHandler.Activity = deps.Activity
		payrollHandler.RegisterRoutes(r)
	})

	return router
}

// Run starts the HTTP service and blocks until ctx ends or the listener
// fails. Expired idempotency entries are purged hourly alongside it.
func Run(ctx context.Context, cfg config.Config) error {
	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("payengine listening", "addr", cfg.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		purgeIdempotency(gctx, app.Idempotency, idempotencyPurgeInterval)
		return nil
	})
	return g.Wait()
}

func purgeIdempotency(ctx context.Context, store *middleware.IdempotencyStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Purge(ctx)
			if err != nil {
				slog.Warn("idempotency purge failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("idempotency keys purged", "count", n)
			}
		}
	}
}
