package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"co2nex/carbon-audit/audit-backend/internal/reports"
)

// Execution statuses
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// AuditRunner runs and persists one audit.
type AuditRunner interface {
	RunAudit(ctx context.Context, req *reports.RunAuditRequest, trigger string) (*reports.AuditRecord, error)
}

// Executor handles scheduled audit execution
type Executor struct {
	runner AuditRunner
	logger *zap.Logger
	config ExecutorConfig
	now    func() time.Time
}

// ExecutionResult represents the result of one scheduled run
type ExecutionResult struct {
	ExecutionID uuid.UUID            `json:"execution_id"`
	ScheduleID  uuid.UUID            `json:"schedule_id"`
	Status      string               `json:"status"`
	ReportID    *uuid.UUID           `json:"report_id,omitempty"`
	Complete    bool                 `json:"complete"`
	Archived    reports.ArchivedKeys `json:"archived,omitempty"`
	Attempts    int                  `json:"attempts"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt time.Time            `json:"completed_at"`
	DurationMs  int64                `json:"duration_ms"`
	Error       string               `json:"error,omitempty"`
}

// ExecutorConfig configuration for the executor
type ExecutorConfig struct {
	Timeout       time.Duration `json:"timeout"`
	RetryAttempts int           `json:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay"`
}

// DefaultExecutorConfig returns default configuration
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Timeout:       30 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    time.Minute,
	}
}

// NewExecutor creates a new executor
func NewExecutor(runner AuditRunner, logger *zap.Logger, config ExecutorConfig) *Executor {
	if config.RetryAttempts < 1 {
		config.RetryAttempts = 1
	}
	return &Executor{
		runner: runner,
		logger: logger,
		config: config,
		now:    time.Now,
	}
}

// Execute runs the schedule's audit. Transient failures are retried up to
// RetryAttempts; invalid requests fail on the first attempt.
func (e *Executor) Execute(ctx context.Context, schedule *Schedule) (*ExecutionResult, error) {
	result := &ExecutionResult{
		ExecutionID: uuid.New(),
		ScheduleID:  schedule.ID,
		StartedAt:   e.now(),
	}

	logger := e.logger.With(
		zap.String("execution_id", result.ExecutionID.String()),
		zap.String("schedule_id", schedule.ID.String()),
		zap.String("project_id", schedule.Request.ProjectID))
	logger.Info("Starting scheduled audit")

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	var (
		rec *reports.AuditRecord
		err error
	)
	for attempt := 1; attempt <= e.config.RetryAttempts; attempt++ {
		result.Attempts = attempt
		req := schedule.Request
		rec, err = e.runner.RunAudit(ctx, &req, reports.TriggerScheduler)
		if err == nil || errors.Is(err, reports.ErrInvalidInput) || attempt == e.config.RetryAttempts {
			break
		}

		logger.Warn("Scheduled audit failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_delay", e.config.RetryDelay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(e.config.RetryDelay):
			continue
		}
		break
	}

	result.CompletedAt = e.now()
	result.DurationMs = result.CompletedAt.Sub(result.StartedAt).Milliseconds()

	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		return result, fmt.Errorf("scheduled audit failed after %d attempt(s): %w", result.Attempts, err)
	}

	result.Status = StatusCompleted
	result.ReportID = &rec.ID
	result.Complete = rec.Complete
	result.Archived = rec.Archived

	logger.Info("Scheduled audit completed",
		zap.String("report_id", rec.ID.String()),
		zap.Int("attempts", result.Attempts),
		zap.Int64("duration_ms", result.DurationMs))

	return result, nil
}
