package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/adaptive-planner/internal/api/handlers"
	mw "github.com/Harshitk-cp/adaptive-planner/internal/api/middleware"
	"github.com/Harshitk-cp/adaptive-planner/internal/bootstrap"
	"github.com/Harshitk-cp/adaptive-planner/internal/buildconfig"
	"github.com/Harshitk-cp/adaptive-planner/internal/config"
	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"github.com/Harshitk-cp/adaptive-planner/internal/service"
	"github.com/Harshitk-cp/adaptive-planner/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Options tunes the HTTP surface. Zero values fall back to config.
type Options struct {
	APIKey         string
	RateLimitRPS   float64
	RateLimitBurst int
}

// OptionsFromEnv reads Options through the config getters.
func OptionsFromEnv() Options {
	return Options{
		APIKey:         config.APIKey(),
		RateLimitRPS:   config.RateLimitRPS(),
		RateLimitBurst: config.RateLimitBurst(),
	}
}

// App holds the router and background services for lifecycle management.
type App struct {
	Router      *chi.Mux
	RateLimiter *mw.RateLimiter
	// Indexer is nil unless the ledger backend provides a context index.
	Indexer *service.ContextIndexer

	components   *bootstrap.Components
	metrics      *mw.MetricsCollector
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(c *bootstrap.Components, opts Options, logger *zap.Logger) *App {
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = config.RateLimitRPS()
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = config.RateLimitBurst()
	}

	plannerHandler := handlers.NewPlannerHandler(c.Planner, c.ContextIndex, logger)

	r := chi.NewRouter()
	app := &App{
		Router:      r,
		RateLimiter: mw.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		components:  c,
		startTime:   time.Now(),
	}
	if c.ContextIndex != nil {
		app.Indexer = service.NewContextIndexer(c.Memory, c.ContextIndex, logger)
	}
	app.metrics = mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(app.RateLimiter))

	// Health and metrics (no auth)
	r.Get("/health", app.healthHandler())
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		if opts.APIKey != "" {
			r.Use(mw.APIKeyAuth(opts.APIKey))
		}

		r.Post("/cycles", plannerHandler.RunCycle)
		r.Post("/goals/pursue", plannerHandler.Pursue)

		r.Route("/plans", func(r chi.Router) {
			r.Post("/score", plannerHandler.Score)
			r.Post("/mutate", plannerHandler.Mutate)
		})

		r.Get("/evidence/{fingerprint}", plannerHandler.Evidence)

		r.Route("/memory", func(r chi.Router) {
			r.Get("/report", plannerHandler.Report)
			r.Get("/similar", plannerHandler.Similar)
		})
	})

	return app
}

func (app *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := app.components.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)
		stats := app.components.Planner.Stats()
		load := app.components.Memory.LastLoad()

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"server_errors":  app.metrics.ServerErrors(),
			"routes":         app.metrics.Routes(),
			"goroutines":     runtime.NumGoroutine(),
			"planner": map[string]any{
				"cycles":          stats.Cycles,
				"successes":       stats.Successes,
				"failures":        stats.Failures,
				"partials":        stats.Partials,
				"fingerprints":    len(app.components.Memory.Snapshot()),
				"records_loaded":  load.Loaded,
				"records_skipped": load.Skipped,
				"ledger_backend":  app.components.Settings.LedgerBackend,
			},
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"build":      buildconfig.VersionInfo(),
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.LedgerStore   = (*store.JSONLLedger)(nil)
	_ domain.LedgerStore   = (*store.SQLiteLedger)(nil)
	_ domain.LedgerStore   = (*store.PostgresLedger)(nil)
	_ domain.FailureMemory = (*store.RedisFailureMemory)(nil)
	_ domain.FailureMemory = (*service.FailureMemory)(nil)
	_ domain.ContextIndex  = (*store.PostgresContextIndex)(nil)
	_ domain.EventSink     = (*service.LogSink)(nil)
)
