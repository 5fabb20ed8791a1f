package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/platemetrics/delivery-api/internal/config"
	"github.com/platemetrics/delivery-api/internal/database"
	"github.com/platemetrics/delivery-api/internal/http/handler"
	"github.com/platemetrics/delivery-api/internal/http/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Router struct {
	cfg                   *config.Config
	logger                *zap.Logger
	db                    *gorm.DB
	rateLimiter           *middleware.RateLimiter
	clientHandler         *handler.ClientHandler
	importHandler         *handler.ImportHandler
	locationHandler       *handler.LocationHandler
	metricsHandler        *handler.MetricsHandler
	reconciliationHandler *handler.ReconciliationHandler
	financialsHandler     *handler.FinancialsHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	rateLimiter *middleware.RateLimiter,
	clientHandler *handler.ClientHandler,
	importHandler *handler.ImportHandler,
	locationHandler *handler.LocationHandler,
	metricsHandler *handler.MetricsHandler,
	reconciliationHandler *handler.ReconciliationHandler,
	financialsHandler *handler.FinancialsHandler,
) *Router {
	return &Router{
		cfg:                   cfg,
		logger:                logger,
		db:                    db,
		rateLimiter:           rateLimiter,
		clientHandler:         clientHandler,
		importHandler:         importHandler,
		locationHandler:       locationHandler,
		metricsHandler:        metricsHandler,
		reconciliationHandler: reconciliationHandler,
		financialsHandler:     financialsHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Database health check (readiness probe with detailed stats)
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.HealthCheckWithStats(rt.db)
		if err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"stats": map[string]interface{}{
				"max_open_connections": stats.MaxOpenConnections,
				"open_connections":     stats.OpenConnections,
				"in_use":               stats.InUse,
				"idle":                 stats.Idle,
				"wait_count":           stats.WaitCount,
				"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
				"max_idle_closed":      stats.MaxIdleClosed,
				"max_lifetime_closed":  stats.MaxLifetimeClosed,
			},
		})
	})

	// Combined readiness check (checks all dependencies)
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]interface{})
		allHealthy := true

		if err := database.HealthCheck(rt.db); err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			allHealthy = false
		} else {
			checks["database"] = map[string]interface{}{
				"status": "healthy",
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if allHealthy {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "healthy",
				"checks": checks,
			})
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unhealthy",
				"checks": checks,
			})
		}
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKey(&rt.cfg.Auth, rt.logger))

		// Clients
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", rt.clientHandler.List)
			r.Post("/", rt.clientHandler.Create)
			r.Get("/{id}", rt.clientHandler.GetByID)
		})

		// Raw export imports and corrective purges
		r.Route("/imports", func(r chi.Router) {
			r.Post("/{platform}", rt.importHandler.Upload)
			r.Delete("/{platform}", rt.importHandler.Purge)
		})

		// Locations
		r.Route("/locations", func(r chi.Router) {
			r.Get("/", rt.locationHandler.List)
			r.Post("/import", rt.locationHandler.ImportMaster)
			r.Get("/suggestions", rt.locationHandler.Suggestions)
			r.Get("/{id}", rt.locationHandler.GetByID)
			r.Post("/{id}/merge", rt.locationHandler.Merge)
			r.Delete("/{id}", rt.locationHandler.Delete)
		})

		// Metrics
		r.Route("/metrics", func(r chi.Router) {
			r.Get("/overview", rt.metricsHandler.Overview)
			r.Get("/platforms", rt.metricsHandler.Platforms)
			r.Get("/locations", rt.metricsHandler.ByLocation)
		})

		// Reports
		r.Get("/reports/income-statement", rt.reconciliationHandler.IncomeStatement)

		// Weekly financial rollups
		r.Route("/financials/weekly", func(r chi.Router) {
			r.Get("/", rt.financialsHandler.List)
			r.Post("/regenerate", rt.financialsHandler.Regenerate)
			r.Get("/export", rt.financialsHandler.Export)
		})
	})

	return r
}
