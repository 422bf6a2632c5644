package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"co2nex/carbon-audit/audit-backend/internal/audit/pipeline"
	"co2nex/carbon-audit/audit-backend/internal/audit/report"
	"co2nex/carbon-audit/audit-backend/internal/reports/alerts"
	"co2nex/carbon-audit/audit-backend/internal/reports/benchmarks"
	"co2nex/carbon-audit/audit-backend/internal/reports/dashboard"
	"co2nex/carbon-audit/audit-backend/internal/reports/export"
	"co2nex/carbon-audit/audit-backend/pkg/geospatial"
	"co2nex/carbon-audit/audit-backend/pkg/storage"
)

// Auditor runs one audit.
type Auditor interface {
	Run(ctx context.Context, in pipeline.Input) (*report.AuditReport, error)
}

// summaryPageSize bounds the history read for a project summary.
const summaryPageSize = 100

// Service provides business logic for audit reports
type Service struct {
	repo       Repository
	auditor    Auditor
	archive    *storage.Archive
	cache      *dashboard.ReportCache
	comparator *benchmarks.Comparator
	alerts     *alerts.Engine
	now        func() time.Time
	logger     *zap.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithAlertEngine replaces the default alert rules.
func WithAlertEngine(e *alerts.Engine) ServiceOption {
	return func(s *Service) { s.alerts = e }
}

// NewService creates a new audit reports service. archive and cache may be
// nil.
func NewService(repo Repository, auditor Auditor, archive *storage.Archive, cache *dashboard.ReportCache, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:       repo,
		auditor:    auditor,
		archive:    archive,
		cache:      cache,
		comparator: benchmarks.NewComparator(repo, logger),
		alerts:     alerts.NewDefaultEngine(logger),
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunAudit runs the pipeline for req, persists the report and archives the
// requested exports. Archive failures are logged and leave the record
// unarchived.
func (s *Service) RunAudit(ctx context.Context, req *RunAuditRequest, trigger string) (*AuditRecord, error) {
	in, err := s.buildInput(req)
	if err != nil {
		return nil, err
	}

	r, err := s.auditor.Run(ctx, in)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidInput) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("audit failed: %w", err)
	}

	rec := &AuditRecord{
		ID:          uuid.New(),
		ProjectID:   req.ProjectID,
		RegionID:    in.Region.ID(),
		AsOf:        r.AsOf,
		Complete:    r.Complete(),
		Report:      ReportJSON{r},
		Alerts:      s.alerts.Evaluate(r, s.previousReport(ctx, req.ProjectID)),
		TriggeredBy: trigger,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store audit: %w", err)
	}
	s.cacheSet(rec)

	s.logger.Info("Audit report stored",
		zap.String("report_id", rec.ID.String()),
		zap.String("project_id", rec.ProjectID),
		zap.String("triggered_by", trigger),
		zap.Int("alerts", len(rec.Alerts)))

	if len(req.Exports) > 0 && s.archive.Enabled() {
		s.archiveExports(ctx, rec, req.Exports)
	}
	return rec, nil
}

// previousReport returns the project's latest stored report, or nil.
func (s *Service) previousReport(ctx context.Context, projectID string) *report.AuditReport {
	records, _, err := s.repo.List(ctx, &ListFilters{ProjectID: projectID, Page: 1, PageSize: 1})
	if err != nil {
		s.logger.Warn("Failed to load previous audit", zap.String("project_id", projectID), zap.Error(err))
		return nil
	}
	if len(records) == 0 {
		return nil
	}
	return records[0].Report.AuditReport
}

func (s *Service) buildInput(req *RunAuditRequest) (pipeline.Input, error) {
	if req.ProjectID == "" {
		return pipeline.Input{}, fmt.Errorf("%w: project_id is required", ErrInvalidInput)
	}
	if len(req.Polygon) == 0 {
		return pipeline.Input{}, fmt.Errorf("%w: polygon is required", ErrInvalidInput)
	}
	regionID := req.RegionID
	if regionID == "" {
		regionID = req.ProjectID
	}
	region, err := geospatial.ParseGeoJSON(regionID, req.Polygon)
	if err != nil {
		return pipeline.Input{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	var asOf time.Time
	if req.AsOf != "" {
		asOf, err = time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			return pipeline.Input{}, fmt.Errorf("%w: as_of must be YYYY-MM-DD", ErrInvalidInput)
		}
	}
	for _, f := range req.Exports {
		if _, err := export.ParseFormat(f); err != nil {
			return pipeline.Input{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	return pipeline.Input{
		Region: region,
		AsOf:   asOf,
		Metadata: report.Metadata{
			ProjectID:      req.ProjectID,
			ProjectName:    req.ProjectName,
			Classification: req.Classification,
			Landowner:      req.Landowner,
		},
		Plots: req.Plots,
	}, nil
}

func (s *Service) archiveExports(ctx context.Context, rec *AuditRecord, formats []string) {
	archived := make(ArchivedKeys, len(formats))
	for _, name := range formats {
		f, _ := export.ParseFormat(name)
		var buf bytes.Buffer
		if err := export.Write(&buf, f, rec.Report.AuditReport); err != nil {
			s.logger.Error("Failed to render export", zap.String("format", string(f)), zap.Error(err))
			continue
		}
		key, err := s.archive.Put(ctx, rec.ProjectID, rec.ID.String(), f.Extension(), f.ContentType(), &buf)
		if err != nil {
			s.logger.Error("Failed to archive export",
				zap.String("report_id", rec.ID.String()),
				zap.String("format", string(f)),
				zap.Error(err))
			continue
		}
		archived[string(f)] = key
	}
	if len(archived) == 0 {
		return
	}
	if err := s.repo.UpdateArchived(ctx, rec.ID, archived); err != nil {
		s.logger.Error("Failed to record archived exports", zap.String("report_id", rec.ID.String()), zap.Error(err))
		return
	}
	rec.Archived = archived
}

// Get retrieves an audit record by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*AuditRecord, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(rec)
	return rec, nil
}

// loadReport returns the stored report for id, from the cache when possible.
func (s *Service) loadReport(ctx context.Context, id uuid.UUID) (*report.AuditReport, error) {
	if s.cache != nil {
		if r, ok := s.cache.Get(cacheKey(id)); ok {
			return r, nil
		}
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Report.AuditReport, nil
}

// List returns a page of audit records
func (s *Service) List(ctx context.Context, filters *ListFilters) (*ListResponse, error) {
	page, pageSize := normalizePage(filters.Page, filters.PageSize)
	filters.Page, filters.PageSize = page, pageSize

	records, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return &ListResponse{
		Audits:     records,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}, nil
}

// Export renders the stored report in format.
func (s *Service) Export(ctx context.Context, id uuid.UUID, format export.Format) ([]byte, error) {
	r, err := s.loadReport(ctx, id)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, r); err != nil {
		return nil, fmt.Errorf("failed to export report: %w", err)
	}
	return buf.Bytes(), nil
}

// ArchiveURL returns a presigned download URL for an archived export.
func (s *Service) ArchiveURL(ctx context.Context, id uuid.UUID, format export.Format) (string, error) {
	if !s.archive.Enabled() {
		return "", storage.ErrArchiveDisabled
	}
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	key, ok := rec.Archived[string(format)]
	if !ok {
		return "", fmt.Errorf("%w: no archived %s export for %s", ErrNotFound, format, id)
	}
	return s.archive.URL(ctx, key)
}

// Benchmark compares one metric of the stored report with the project's peers.
func (s *Service) Benchmark(ctx context.Context, id uuid.UUID, key report.MetricKey) (*benchmarks.Comparison, error) {
	r, err := s.loadReport(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.comparator.Compare(ctx, r, key)
}

// Summary condenses the project's recent audit history.
func (s *Service) Summary(ctx context.Context, projectID string) (*dashboard.ProjectSummary, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project_id is required", ErrInvalidInput)
	}
	records, _, err := s.repo.List(ctx, &ListFilters{ProjectID: projectID, Page: 1, PageSize: summaryPageSize})
	if err != nil {
		return nil, err
	}
	history := make([]*report.AuditReport, 0, len(records))
	for _, rec := range records {
		history = append(history, rec.Report.AuditReport)
	}
	summary := dashboard.Summarize(projectID, history)
	return &summary, nil
}

func (s *Service) cacheSet(rec *AuditRecord) {
	if s.cache != nil && rec.Report.AuditReport != nil {
		s.cache.Set(cacheKey(rec.ID), rec.Report.AuditReport)
	}
}

func cacheKey(id uuid.UUID) string {
	return "audit:" + id.String()
}
