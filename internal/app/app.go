// Package app wires configuration into the long-running components shared by
// the API server and the audit worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"co2nex/carbon-audit/audit-backend/internal/audit/pipeline"
	"co2nex/carbon-audit/audit-backend/internal/config"
	"co2nex/carbon-audit/audit-backend/internal/reports/scheduler"
	"co2nex/carbon-audit/audit-backend/pkg/storage"
)

var ErrNoPlatform = errors.New("no reduction service configured: set platform.base_url or platform.fixture_path")

// NewLogger builds the process logger for level.
func NewLogger(level string) (*zap.Logger, error) {
	if strings.EqualFold(level, "development") {
		return zap.NewDevelopment()
	}

	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// OpenDatabase connects to postgres and applies the pool settings.
func OpenDatabase(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	return db, nil
}

// NewSources returns the reduction collaborators. A fixture path wins over a
// base URL.
func NewSources(cfg config.PlatformConfig, logger *zap.Logger) (pipeline.Sources, error) {
	switch {
	case cfg.FixturePath != "":
		fx, err := pipeline.LoadFixture(cfg.FixturePath)
		if err != nil {
			return pipeline.Sources{}, err
		}
		logger.Info("Using fixture reduction source", zap.String("path", cfg.FixturePath))
		return fx.Sources(), nil
	case cfg.BaseURL != "":
		logger.Info("Using HTTP reduction service", zap.String("base_url", cfg.BaseURL))
		return pipeline.NewHTTPSource(cfg.BaseURL, cfg.Timeout, logger).Sources(), nil
	default:
		return pipeline.Sources{}, ErrNoPlatform
	}
}

// NewPipeline builds the audit pipeline from configuration.
func NewPipeline(cfg *config.Config, logger *zap.Logger) (*pipeline.Pipeline, error) {
	src, err := NewSources(cfg.Platform, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg.Audit.ToPipelineConfig(), src, logger)
}

// NewArchive returns the S3 report archive, or a disabled archive when
// storage is off.
func NewArchive(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*storage.Archive, error) {
	if !cfg.Enabled {
		return storage.NewArchive(nil, "", "", logger), nil
	}
	client, err := storage.NewS3Client(ctx, storage.S3Options{Region: cfg.Region, Endpoint: cfg.Endpoint})
	if err != nil {
		return nil, err
	}
	logger.Info("Report archive enabled", zap.String("bucket", cfg.Bucket), zap.String("prefix", cfg.Prefix))
	return storage.NewArchive(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// Schedules turns the configured jobs into scheduler entries, reading each
// polygon file.
func Schedules(jobs []config.ScheduledAudit) ([]*scheduler.Schedule, error) {
	out := make([]*scheduler.Schedule, 0, len(jobs))
	for _, job := range jobs {
		polygon, err := os.ReadFile(job.PolygonFile)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: failed to read polygon: %w", job.Name, err)
		}
		s := &scheduler.Schedule{
			Name:           job.Name,
			CronExpression: job.Cron,
		}
		s.Request.ProjectID = job.ProjectID
		s.Request.ProjectName = job.ProjectName
		s.Request.Classification = job.Classification
		s.Request.Landowner = job.Landowner
		s.Request.Polygon = polygon
		s.Request.Exports = job.Exports
		out = append(out, s)
	}
	return out, nil
}

// StartScheduler registers jobs on a new manager and starts it.
func StartScheduler(ctx context.Context, runner scheduler.AuditRunner, jobs []config.ScheduledAudit, logger *zap.Logger) (*scheduler.ScheduleManager, error) {
	schedules, err := Schedules(jobs)
	if err != nil {
		return nil, err
	}
	executor := scheduler.NewExecutor(runner, logger, scheduler.DefaultExecutorConfig())
	manager := scheduler.NewScheduleManager(executor, logger, scheduler.DefaultScheduleManagerConfig())
	for _, s := range schedules {
		if err := manager.AddSchedule(s); err != nil {
			return nil, fmt.Errorf("schedule %q: %w", s.Name, err)
		}
	}
	if err := manager.Start(ctx); err != nil {
		return nil, err
	}
	return manager, nil
}
