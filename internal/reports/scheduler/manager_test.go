package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"co2nex/carbon-audit/audit-backend/internal/reports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) RunAudit(ctx context.Context, req *reports.RunAuditRequest, trigger string) (*reports.AuditRecord, error) {
	args := m.Called(ctx, req, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reports.AuditRecord), args.Error(1)
}

func testSchedule() *Schedule {
	return &Schedule{
		Name:           "quarterly",
		CronExpression: "0 0 1 */3 *",
		Request: reports.RunAuditRequest{
			ProjectID: "proj-1",
			Polygon:   json.RawMessage(`{"type":"Polygon","coordinates":[]}`),
		},
	}
}

func testConfig() ExecutorConfig {
	return ExecutorConfig{Timeout: time.Second, RetryAttempts: 3, RetryDelay: time.Millisecond}
}

func TestExecutorRetriesTransientFailures(t *testing.T) {
	runner := new(mockRunner)
	rec := &reports.AuditRecord{ID: uuid.New(), Complete: true}
	runner.On("RunAudit", mock.Anything, mock.Anything, reports.TriggerScheduler).Return(nil, errors.New("reducer unavailable")).Once()
	runner.On("RunAudit", mock.Anything, mock.Anything, reports.TriggerScheduler).Return(rec, nil).Once()

	result, err := NewExecutor(runner, zap.NewNop(), testConfig()).Execute(context.Background(), testSchedule())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, rec.ID, *result.ReportID)
	runner.AssertExpectations(t)
}

func TestExecutorDoesNotRetryInvalidInput(t *testing.T) {
	runner := new(mockRunner)
	runner.On("RunAudit", mock.Anything, mock.Anything, reports.TriggerScheduler).
		Return(nil, fmt.Errorf("%w: polygon ring is not closed", reports.ErrInvalidInput)).Once()

	result, err := NewExecutor(runner, zap.NewNop(), testConfig()).Execute(context.Background(), testSchedule())
	assert.ErrorIs(t, err, reports.ErrInvalidInput)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 1, result.Attempts)
	runner.AssertExpectations(t)
}

func TestExecutorGivesUp(t *testing.T) {
	runner := new(mockRunner)
	runner.On("RunAudit", mock.Anything, mock.Anything, reports.TriggerScheduler).Return(nil, errors.New("timeout"))

	result, err := NewExecutor(runner, zap.NewNop(), testConfig()).Execute(context.Background(), testSchedule())
	require.Error(t, err)
	assert.Equal(t, 3, result.Attempts)
	runner.AssertNumberOfCalls(t, "RunAudit", 3)
}

func TestAddScheduleValidates(t *testing.T) {
	m := NewScheduleManager(NewExecutor(new(mockRunner), zap.NewNop(), testConfig()), zap.NewNop(), DefaultScheduleManagerConfig())

	bad := testSchedule()
	bad.CronExpression = "every tuesday"
	assert.ErrorIs(t, m.AddSchedule(bad), ErrInvalidSchedule)

	noProject := testSchedule()
	noProject.Request.ProjectID = ""
	assert.ErrorIs(t, m.AddSchedule(noProject), ErrInvalidSchedule)

	s := testSchedule()
	require.NoError(t, m.AddSchedule(s))
	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, 1, m.GetActiveJobs())

	require.NoError(t, m.AddSchedule(s))
	assert.Equal(t, 1, m.GetActiveJobs())

	m.RemoveSchedule(s.ID)
	assert.Zero(t, m.GetActiveJobs())
	_, err := m.GetJobStatus(s.ID)
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestRunNowRecordsLastResult(t *testing.T) {
	runner := new(mockRunner)
	rec := &reports.AuditRecord{ID: uuid.New()}
	runner.On("RunAudit", mock.Anything, mock.MatchedBy(func(req *reports.RunAuditRequest) bool {
		return req.ProjectID == "proj-1" && req.AsOf == ""
	}), reports.TriggerScheduler).Return(rec, nil)

	m := NewScheduleManager(NewExecutor(runner, zap.NewNop(), testConfig()), zap.NewNop(), DefaultScheduleManagerConfig())
	s := testSchedule()
	require.NoError(t, m.AddSchedule(s))

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyRunning)

	result, err := m.RunNow(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, *result.ReportID)

	status, err := m.GetJobStatus(s.ID)
	require.NoError(t, err)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, StatusCompleted, status.LastResult.Status)
	assert.Equal(t, "proj-1", status.ProjectID)

	_, err = m.RunNow(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestStopIsIdempotent(t *testing.T) {
	m := NewScheduleManager(NewExecutor(new(mockRunner), zap.NewNop(), testConfig()), zap.NewNop(), DefaultScheduleManagerConfig())
	require.NoError(t, m.Start(context.Background()))
	m.Stop()
	m.Stop()
}

func TestDescribeCronExpression(t *testing.T) {
	assert.Equal(t, "Every day at midnight", DescribeCronExpression("@daily"))
	assert.Equal(t, "First day of every quarter at midnight", DescribeCronExpression("0 0 1 */3 *"))
	assert.Equal(t, "15 3 * * 2", DescribeCronExpression("15 3 * * 2"))
	assert.NoError(t, ValidateCronExpression("@every 6h"))
}
