package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/pipeline"
	"co2nex/carbon-audit/audit-backend/internal/audit/report"
	"co2nex/carbon-audit/audit-backend/internal/reports/dashboard"
	"co2nex/carbon-audit/audit-backend/internal/reports/export"
	"co2nex/carbon-audit/audit-backend/pkg/geospatial"
	"co2nex/carbon-audit/audit-backend/pkg/storage"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, rec *AuditRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockRepository) Get(ctx context.Context, id uuid.UUID) (*AuditRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AuditRecord), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, filters *ListFilters) ([]*AuditRecord, int, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*AuditRecord), args.Int(1), args.Error(2)
}

func (m *MockRepository) UpdateArchived(ctx context.Context, id uuid.UUID, archived ArchivedKeys) error {
	return m.Called(ctx, id, archived).Error(0)
}

func (m *MockRepository) MetricValues(ctx context.Context, key report.MetricKey, excludeProject string) ([]float64, error) {
	args := m.Called(ctx, key, excludeProject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	_, _ = io.Copy(io.Discard, body)
	return m.Called(ctx, bucket, key, contentType).Error(0)
}

func (m *mockS3) GetPresignedURL(ctx context.Context, bucket, key string, expiration time.Duration) (string, error) {
	args := m.Called(ctx, bucket, key, expiration)
	return args.String(0), args.Error(1)
}

const squarePolygon = `{"type":"Polygon","coordinates":[[[-93.01,45.01],[-93.0,45.01],[-93.0,45.0],[-93.01,45.0],[-93.01,45.01]]]}`

var fixedNow = time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC)

func newTestPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(pipeline.DefaultConfig(), pipeline.NewFixtureSource(pipeline.Fixture{}).Sources(), zap.NewNop(),
		pipeline.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return p
}

func expectNoHistory(repo *MockRepository) {
	repo.On("List", mock.Anything, &ListFilters{ProjectID: "proj-1", Page: 1, PageSize: 1}).Return([]*AuditRecord{}, 0, nil)
}

func newTestService(t *testing.T, repo Repository, archive *storage.Archive, cache *dashboard.ReportCache) *Service {
	t.Helper()
	svc := NewService(repo, newTestPipeline(t), archive, cache, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func runRequest() *RunAuditRequest {
	return &RunAuditRequest{
		ProjectID:   "proj-1",
		ProjectName: "River Farm",
		Polygon:     json.RawMessage(squarePolygon),
		AsOf:        "2025-06-07",
	}
}

func storedRecord(t *testing.T, projectID string, credit float64) *AuditRecord {
	t.Helper()
	agg := report.NewAggregator()
	for _, def := range report.Catalogue() {
		if def.Text() {
			agg.SetText(def.Key, "High", band.StatusOK, "")
			continue
		}
		agg.Set(def.Key, band.Of(string(def.Key), band.ReducerMean, credit, 1))
	}
	r, err := agg.Build(report.Header{Metadata: report.Metadata{ProjectID: projectID}, AsOf: fixedNow})
	require.NoError(t, err)
	return &AuditRecord{ID: uuid.New(), ProjectID: projectID, AsOf: fixedNow, Complete: true, Report: ReportJSON{r}}
}

func TestRunAuditPersistsReport(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(rec *AuditRecord) bool {
		return rec.ProjectID == "proj-1" && rec.RegionID == "proj-1" && rec.Complete && rec.TriggeredBy == TriggerAPI
	})).Return(nil)
	expectNoHistory(repo)

	svc := newTestService(t, repo, nil, nil)
	rec, err := svc.RunAudit(context.Background(), runRequest(), TriggerAPI)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, "2025-06-07", rec.AsOf.Format("2006-01-02"))
	assert.Equal(t, fixedNow, rec.CreatedAt)
	require.NotNil(t, rec.Report.AuditReport)
	assert.Equal(t, "River Farm", rec.Report.Metadata.ProjectName)

	area := rec.Report.Metric(report.KeyFarmArea)
	require.True(t, area.OK())
	assert.Greater(t, *area.Value, 50.0)
	assert.Equal(t, band.StatusNoData, rec.Report.Metric(report.KeyNDVIMean).Status)

	rules := make(map[string]bool)
	for _, a := range rec.Alerts {
		rules[a.Rule] = true
	}
	assert.True(t, rules["Vegetation index unavailable"])
	repo.AssertExpectations(t)
}

func TestRunAuditRejectsBadInput(t *testing.T) {
	svc := newTestService(t, new(MockRepository), nil, nil)
	ctx := context.Background()

	cases := map[string]func(r *RunAuditRequest){
		"missing project": func(r *RunAuditRequest) { r.ProjectID = "" },
		"missing polygon": func(r *RunAuditRequest) { r.Polygon = nil },
		"open ring": func(r *RunAuditRequest) {
			r.Polygon = json.RawMessage(`{"type":"Polygon","coordinates":[[[-93.01,45.01],[-93.0,45.01],[-93.0,45.0],[-93.01,45.0]]]}`)
		},
		"point geometry": func(r *RunAuditRequest) { r.Polygon = json.RawMessage(`{"type":"Point","coordinates":[1,2]}`) },
		"bad date":       func(r *RunAuditRequest) { r.AsOf = "07/06/2025" },
		"bad export":     func(r *RunAuditRequest) { r.Exports = []string{"docx"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := runRequest()
			mutate(req)
			_, err := svc.RunAudit(ctx, req, TriggerAPI)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	req := runRequest()
	req.Polygon = json.RawMessage(`{"type":"Polygon","coordinates":[[[-93.01,45.01],[-93.0,45.01],[-93.0,45.0],[-93.01,45.0]]]}`)
	_, err := svc.RunAudit(ctx, req, TriggerAPI)
	assert.ErrorIs(t, err, geospatial.ErrRingNotClosed)
}

func TestRunAuditStoreFailure(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	expectNoHistory(repo)

	_, err := newTestService(t, repo, nil, nil).RunAudit(context.Background(), runRequest(), TriggerAPI)
	assert.ErrorContains(t, err, "connection refused")
	assert.NotErrorIs(t, err, ErrInvalidInput)
}

func TestRunAuditArchivesExports(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	expectNoHistory(repo)
	repo.On("UpdateArchived", mock.Anything, mock.Anything, mock.MatchedBy(func(keys ArchivedKeys) bool {
		return len(keys) == 2 && strings.HasPrefix(keys["csv"], "audits/proj-1/") && strings.HasSuffix(keys["pdf"], ".pdf")
	})).Return(nil)

	s3 := new(mockS3)
	s3.On("Upload", mock.Anything, "bucket", mock.Anything, "text/csv").Return(nil)
	s3.On("Upload", mock.Anything, "bucket", mock.Anything, "application/pdf").Return(nil)
	s3.On("Upload", mock.Anything, "bucket", mock.Anything, export.FormatExcel.ContentType()).Return(errors.New("throttled"))

	svc := newTestService(t, repo, storage.NewArchive(s3, "bucket", "audits", zap.NewNop()), nil)
	req := runRequest()
	req.Exports = []string{"csv", "xlsx", "pdf"}

	rec, err := svc.RunAudit(context.Background(), req, TriggerScheduler)
	require.NoError(t, err)
	assert.Len(t, rec.Archived, 2)
	assert.Equal(t, "audits/proj-1/"+rec.ID.String()+".csv", rec.Archived["csv"])
	repo.AssertExpectations(t)
	s3.AssertExpectations(t)
}

func TestGetUsesCacheForExport(t *testing.T) {
	repo := new(MockRepository)
	stored := storedRecord(t, "proj-1", 2)
	repo.On("Get", mock.Anything, stored.ID).Return(stored, nil).Once()

	cache := dashboard.NewReportCache(time.Hour)
	defer cache.Stop()
	svc := newTestService(t, repo, nil, cache)

	data, err := svc.Export(context.Background(), stored.ID, export.FormatCSV)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("section,key,label")))

	_, err = svc.Export(context.Background(), stored.ID, export.FormatPDF)
	require.NoError(t, err)
	repo.AssertExpectations(t)
	assert.Equal(t, int64(1), cache.Stats().Hits)
}

func TestGetNotFound(t *testing.T) {
	repo := new(MockRepository)
	id := uuid.New()
	repo.On("Get", mock.Anything, id).Return(nil, ErrNotFound)

	_, err := newTestService(t, repo, nil, nil).Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNormalizesPaging(t *testing.T) {
	repo := new(MockRepository)
	repo.On("List", mock.Anything, &ListFilters{ProjectID: "proj-1", Page: 1, PageSize: 20}).
		Return([]*AuditRecord{storedRecord(t, "proj-1", 1)}, 1, nil)

	resp, err := newTestService(t, repo, nil, nil).List(context.Background(), &ListFilters{ProjectID: "proj-1", Page: 0, PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, 20, resp.PageSize)
	repo.AssertExpectations(t)
}

func TestBenchmark(t *testing.T) {
	repo := new(MockRepository)
	stored := storedRecord(t, "proj-1", 4)
	repo.On("Get", mock.Anything, stored.ID).Return(stored, nil)
	repo.On("MetricValues", mock.Anything, report.KeyCreditEstimate, "proj-1").Return([]float64{1, 2, 3, 5}, nil)

	cmp, err := newTestService(t, repo, nil, nil).Benchmark(context.Background(), stored.ID, report.KeyCreditEstimate)
	require.NoError(t, err)
	assert.Equal(t, 75.0, cmp.PercentileRank)
	assert.Equal(t, 4, cmp.Cohort.SampleSize)
}

func TestSummary(t *testing.T) {
	repo := new(MockRepository)
	repo.On("List", mock.Anything, &ListFilters{ProjectID: "proj-1", Page: 1, PageSize: summaryPageSize}).
		Return([]*AuditRecord{storedRecord(t, "proj-1", 1), storedRecord(t, "proj-1", 2)}, 2, nil)

	svc := newTestService(t, repo, nil, nil)
	s, err := svc.Summary(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, 2, s.AuditCount)

	_, err = svc.Summary(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestArchiveURL(t *testing.T) {
	repo := new(MockRepository)
	stored := storedRecord(t, "proj-1", 1)
	stored.Archived = ArchivedKeys{"pdf": "audits/proj-1/" + stored.ID.String() + ".pdf"}
	repo.On("Get", mock.Anything, stored.ID).Return(stored, nil)

	s3 := new(mockS3)
	s3.On("GetPresignedURL", mock.Anything, "bucket", stored.Archived["pdf"], storage.DefaultURLExpiry).
		Return("https://bucket.example/signed", nil)

	svc := newTestService(t, repo, storage.NewArchive(s3, "bucket", "audits", zap.NewNop()), nil)
	url, err := svc.ArchiveURL(context.Background(), stored.ID, export.FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example/signed", url)

	_, err = svc.ArchiveURL(context.Background(), stored.ID, export.FormatCSV)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = newTestService(t, repo, nil, nil).ArchiveURL(context.Background(), stored.ID, export.FormatPDF)
	assert.ErrorIs(t, err, storage.ErrArchiveDisabled)
}

func TestRunAuditComparesWithPreviousReport(t *testing.T) {
	repo := new(MockRepository)
	previous := storedRecord(t, "proj-1", 1000)
	repo.On("List", mock.Anything, &ListFilters{ProjectID: "proj-1", Page: 1, PageSize: 1}).Return([]*AuditRecord{previous}, 1, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	rec, err := newTestService(t, repo, nil, nil).RunAudit(context.Background(), runRequest(), TriggerAPI)
	require.NoError(t, err)
	// current carbon is no-data in the new run, so no swing is reported
	for _, a := range rec.Alerts {
		assert.NotEqual(t, "Carbon stock swing", a.Rule)
	}
	repo.AssertExpectations(t)
}

func TestRunAuditHistoryFailureIsNotFatal(t *testing.T) {
	repo := new(MockRepository)
	repo.On("List", mock.Anything, mock.Anything).Return(nil, 0, errors.New("timeout"))
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := newTestService(t, repo, nil, nil).RunAudit(context.Background(), runRequest(), TriggerAPI)
	require.NoError(t, err)
}
