package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"co2nex/carbon-audit/audit-backend/internal/reports"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrAlreadyRunning   = errors.New("schedule manager already running")
	ErrInvalidSchedule  = errors.New("invalid schedule")
)

// ScheduleManager re-runs registered project audits on cron schedules
type ScheduleManager struct {
	cron      *cron.Cron
	jobs      map[uuid.UUID]cron.EntryID
	schedules map[uuid.UUID]*Schedule
	last      map[uuid.UUID]*ExecutionResult
	executor  *Executor
	logger    *zap.Logger
	sem       chan struct{}
	mu        sync.RWMutex
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Schedule is a recurring audit of one project. The request's AsOf is left
// empty so every run audits the windows ending at the run time.
type Schedule struct {
	ID             uuid.UUID               `json:"id"`
	Name           string                  `json:"name"`
	CronExpression string                  `json:"cron_expression"`
	Request        reports.RunAuditRequest `json:"request"`
}

// ScheduleManagerConfig configuration for the schedule manager
type ScheduleManagerConfig struct {
	MaxConcurrent int `json:"max_concurrent"`
}

// DefaultScheduleManagerConfig returns default configuration
func DefaultScheduleManagerConfig() ScheduleManagerConfig {
	return ScheduleManagerConfig{
		MaxConcurrent: 4,
	}
}

// NewScheduleManager creates a new schedule manager
func NewScheduleManager(executor *Executor, logger *zap.Logger, config ScheduleManagerConfig) *ScheduleManager {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	return &ScheduleManager{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobs:      make(map[uuid.UUID]cron.EntryID),
		schedules: make(map[uuid.UUID]*Schedule),
		last:      make(map[uuid.UUID]*ExecutionResult),
		executor:  executor,
		logger:    logger,
		sem:       make(chan struct{}, config.MaxConcurrent),
		ctx:       context.Background(),
	}
}

// Start starts the cron loop. Runs inherit ctx.
func (m *ScheduleManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.logger.Info("Starting schedule manager", zap.Int("schedules", m.GetActiveJobs()))
	m.cron.Start()
	return nil
}

// Stop cancels in-flight runs and waits for them to return
func (m *ScheduleManager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.logger.Info("Stopping schedule manager")

	<-m.cron.Stop().Done()
	m.wg.Wait()
}

// AddSchedule registers or replaces a schedule
func (m *ScheduleManager) AddSchedule(schedule *Schedule) error {
	if schedule.Request.ProjectID == "" || len(schedule.Request.Polygon) == 0 {
		return fmt.Errorf("%w: project_id and polygon are required", ErrInvalidSchedule)
	}
	if err := ValidateCronExpression(schedule.CronExpression); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	if schedule.ID == uuid.Nil {
		schedule.ID = uuid.New()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entryID, ok := m.jobs[schedule.ID]; ok {
		m.cron.Remove(entryID)
	}

	id := schedule.ID
	entryID, err := m.cron.AddFunc(schedule.CronExpression, func() {
		m.run(m.baseContext(), id)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	m.jobs[id] = entryID
	m.schedules[id] = schedule

	m.logger.Info("Added schedule",
		zap.String("schedule_id", id.String()),
		zap.String("name", schedule.Name),
		zap.String("project_id", schedule.Request.ProjectID),
		zap.String("cron", schedule.CronExpression),
		zap.String("description", DescribeCronExpression(schedule.CronExpression)))

	return nil
}

// RemoveSchedule removes a schedule from the manager
func (m *ScheduleManager) RemoveSchedule(scheduleID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entryID, ok := m.jobs[scheduleID]; ok {
		m.cron.Remove(entryID)
		delete(m.jobs, scheduleID)
		delete(m.schedules, scheduleID)
		delete(m.last, scheduleID)

		m.logger.Info("Removed schedule", zap.String("schedule_id", scheduleID.String()))
	}
}

// RunNow executes a schedule immediately and waits for the result
func (m *ScheduleManager) RunNow(ctx context.Context, scheduleID uuid.UUID) (*ExecutionResult, error) {
	m.mu.RLock()
	_, ok := m.schedules[scheduleID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, scheduleID)
	}
	return m.run(ctx, scheduleID)
}

func (m *ScheduleManager) run(ctx context.Context, scheduleID uuid.UUID) (*ExecutionResult, error) {
	m.wg.Add(1)
	defer m.wg.Done()

	m.mu.RLock()
	schedule, ok := m.schedules[scheduleID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, scheduleID)
	}

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	result, err := m.executor.Execute(ctx, schedule)
	if err != nil {
		m.logger.Error("Failed to execute scheduled audit",
			zap.String("schedule_id", scheduleID.String()),
			zap.Error(err))
	}

	m.mu.Lock()
	if _, still := m.schedules[scheduleID]; still {
		m.last[scheduleID] = result
	}
	m.mu.Unlock()

	return result, err
}

func (m *ScheduleManager) baseContext() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctx
}

// GetActiveJobs returns the number of registered schedules
func (m *ScheduleManager) GetActiveJobs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// GetJobStatus returns the status of a scheduled job
func (m *ScheduleManager) GetJobStatus(scheduleID uuid.UUID) (*JobStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entryID, ok := m.jobs[scheduleID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, scheduleID)
	}

	entry := m.cron.Entry(entryID)
	return &JobStatus{
		ScheduleID: scheduleID,
		ProjectID:  m.schedules[scheduleID].Request.ProjectID,
		NextRun:    entry.Next,
		PrevRun:    entry.Prev,
		LastResult: m.last[scheduleID],
	}, nil
}

// JobStatus represents the status of a scheduled job
type JobStatus struct {
	ScheduleID uuid.UUID        `json:"schedule_id"`
	ProjectID  string           `json:"project_id"`
	NextRun    time.Time        `json:"next_run"`
	PrevRun    time.Time        `json:"prev_run"`
	LastResult *ExecutionResult `json:"last_result,omitempty"`
}

// ValidateCronExpression validates a five-field cron expression or descriptor
func ValidateCronExpression(expr string) error {
	_, err := cron.ParseStandard(expr)
	return err
}

// DescribeCronExpression returns a human-readable description of a cron expression
func DescribeCronExpression(expr string) string {
	switch expr {
	case "0 * * * *", "@hourly":
		return "Every hour"
	case "0 0 * * *", "@daily", "@midnight":
		return "Every day at midnight"
	case "0 0 * * 0", "@weekly":
		return "Every Sunday at midnight"
	case "0 0 1 * *", "@monthly":
		return "First day of every month at midnight"
	case "0 0 1 */3 *":
		return "First day of every quarter at midnight"
	default:
		return expr
	}
}
