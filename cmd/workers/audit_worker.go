package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"co2nex/carbon-audit/audit-backend/internal/app"
	"co2nex/carbon-audit/audit-backend/internal/config"
	"co2nex/carbon-audit/audit-backend/internal/reports"
	"co2nex/carbon-audit/audit-backend/internal/reports/scheduler"
)

// AuditWorker runs the configured audit schedules outside the API process
type AuditWorker struct {
	runner scheduler.AuditRunner
	jobs   []config.ScheduledAudit
	logger *zap.Logger
	config AuditWorkerConfig
}

// AuditWorkerConfig configuration for the audit worker
type AuditWorkerConfig struct {
	StatusInterval time.Duration
}

// DefaultAuditWorkerConfig returns default configuration
func DefaultAuditWorkerConfig() AuditWorkerConfig {
	return AuditWorkerConfig{
		StatusInterval: 15 * time.Minute,
	}
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(runner scheduler.AuditRunner, jobs []config.ScheduledAudit, logger *zap.Logger, config AuditWorkerConfig) *AuditWorker {
	return &AuditWorker{
		runner: runner,
		jobs:   jobs,
		logger: logger,
		config: config,
	}
}

// Start runs the schedules until ctx is cancelled
func (w *AuditWorker) Start(ctx context.Context) error {
	manager, err := app.StartScheduler(ctx, w.runner, w.jobs, w.logger)
	if err != nil {
		return err
	}
	defer manager.Stop()

	w.logger.Info("Starting audit worker",
		zap.Int("schedules", manager.GetActiveJobs()),
		zap.Duration("status_interval", w.config.StatusInterval))

	ticker := time.NewTicker(w.config.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Audit worker shutting down")
			return nil
		case <-ticker.C:
			w.logger.Info("Audit worker alive", zap.Int("schedules", manager.GetActiveJobs()))
		}
	}
}

var errNoSchedules = errors.New("no scheduled audits configured")

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "workers",
		Short:        "Run the scheduled carbon audits",
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

func run(ctx context.Context, configPath string) error {
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

	if len(cfg.Scheduler.Jobs) == 0 {
		return errNoSchedules
	}

	// Connect to database
	db, err := app.OpenDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	logger.Info("Connected to database")

	repo := reports.NewPostgresRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	auditPipeline, err := app.NewPipeline(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build audit pipeline: %w", err)
	}
	archive, err := app.NewArchive(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize report archive: %w", err)
	}

	service := reports.NewService(repo, auditPipeline, archive, nil, logger)
	worker := NewAuditWorker(service, cfg.Scheduler.Jobs, logger, DefaultAuditWorkerConfig())

	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("worker error: %w", err)
	}

	logger.Info("Audit worker stopped")
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
