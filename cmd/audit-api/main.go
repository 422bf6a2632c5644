// Command audit-api serves the carbon audit and revenue HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"co2nex/carbon-audit/audit-backend/internal/app"
	"co2nex/carbon-audit/audit-backend/internal/config"
	"co2nex/carbon-audit/audit-backend/internal/reports"
	"co2nex/carbon-audit/audit-backend/internal/reports/dashboard"
	"co2nex/carbon-audit/audit-backend/internal/revenue"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "audit-api",
		Short:        "Serve the carbon audit and revenue HTTP API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.json", "path to the JSON config file")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// run serves the API until ctx is cancelled or the listener fails.
func run(ctx context.Context, configPath string) error {
	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger, err := app.NewLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	// Connect to database
	logger.Info("Connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.String("db_name", cfg.Database.DBName))
	db, err := app.OpenDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	reportsRepo := reports.NewPostgresRepository(db)
	if err := reportsRepo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	// Initialize audit pipeline and storage
	auditPipeline, err := app.NewPipeline(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build audit pipeline: %w", err)
	}
	archive, err := app.NewArchive(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize report archive: %w", err)
	}
	cache := dashboard.NewReportCache(dashboard.DefaultTTL)
	defer cache.Stop()

	reportsService := reports.NewService(reportsRepo, auditPipeline, archive, cache, logger)
	reportsHandler := reports.NewHandler(reportsService, logger)
	revenueHandler := revenue.NewHandler(revenue.NewCalculator(revenue.NewRegistry()), logger)

	if cfg.Scheduler.Enabled {
		manager, err := app.StartScheduler(ctx, reportsService, cfg.Scheduler.Jobs, logger)
		if err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer manager.Stop()
	}

	// Setup Router
	if cfg.Logging.Level != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	{
		reportsHandler.RegisterRoutes(api)
		revenueHandler.RegisterRoutes(api)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "healthy", "timestamp": time.Now()}
		if err := db.PingContext(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		}
		body["cache"] = cache.Stats()
		c.JSON(status, body)
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exiting")
	return nil
}
