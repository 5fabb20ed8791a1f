package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platemetrics/delivery-api/internal/config"
	"github.com/platemetrics/delivery-api/internal/database"
	"github.com/platemetrics/delivery-api/internal/http/handler"
	"github.com/platemetrics/delivery-api/internal/http/middleware"
	"github.com/platemetrics/delivery-api/internal/http/router"
	"github.com/platemetrics/delivery-api/internal/jobs"
	"github.com/platemetrics/delivery-api/internal/logger"
	"github.com/platemetrics/delivery-api/internal/repository"
	"github.com/platemetrics/delivery-api/internal/resolver"
	"github.com/platemetrics/delivery-api/internal/service"
	"github.com/platemetrics/delivery-api/internal/storage"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// Load full configuration with secrets
	// In development: uses environment variables
	// In staging/production: fetches from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	// Connect to database
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize the raw export archive
	archive, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// Initialize repositories
	clientRepo := repository.NewClientRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	weeklyRepo := repository.NewWeeklyFinancialRepository(db)

	// Initialize resolver and services
	locationResolver := resolver.New(locationRepo, log)

	clientService := service.NewClientService(clientRepo, locationRepo, log)
	locationService := service.NewLocationService(locationRepo, txnRepo, log)
	ingestionService := service.NewIngestionService(txnRepo, locationResolver, archive, log)
	metricsService := service.NewMetricsService(txnRepo, locationRepo, log)
	reconciliationService := service.NewReconciliationService(txnRepo, cfg.Analytics.COGSRate, log)
	financialsService := service.NewFinancialsService(txnRepo, weeklyRepo, cfg.Analytics.COGSRate, log)

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Initialize handlers
	clientHandler := handler.NewClientHandler(clientService, log)
	importHandler := handler.NewImportHandler(ingestionService, cfg.Storage.MaxUploadSizeMB, log)
	locationHandler := handler.NewLocationHandler(locationService, cfg.Storage.MaxUploadSizeMB, log)
	metricsHandler := handler.NewMetricsHandler(metricsService, log)
	reconciliationHandler := handler.NewReconciliationHandler(reconciliationService, log)
	financialsHandler := handler.NewFinancialsHandler(financialsService, log)

	// Setup router
	rt := router.NewRouter(
		cfg,
		log,
		db,
		rateLimiter,
		clientHandler,
		importHandler,
		locationHandler,
		metricsHandler,
		reconciliationHandler,
		financialsHandler,
	)

	// Initialize and start scheduler for background jobs
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(log)
		if err := jobs.RegisterRollupJob(scheduler, clientService, financialsService, log, cfg.Jobs.RollupCron); err != nil {
			log.Error("Failed to register weekly rollup job", zap.Error(err))
		} else {
			scheduler.Start()
			log.Info("Scheduler started with weekly rollup job",
				zap.String("cron_expr", cfg.Jobs.RollupCron),
			)
		}
	} else {
		log.Info("Background jobs disabled")
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Stop scheduler if running
		if scheduler != nil {
			ctx := scheduler.Stop()
			<-ctx.Done()
			log.Info("Scheduler stopped")
		}

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
