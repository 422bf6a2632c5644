package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"co2nex/carbon-audit/audit-backend/internal/audit/report"
)

// Repository defines the interface for audit report data access
type Repository interface {
	Create(ctx context.Context, rec *AuditRecord) error
	Get(ctx context.Context, id uuid.UUID) (*AuditRecord, error)
	List(ctx context.Context, filters *ListFilters) ([]*AuditRecord, int, error)
	UpdateArchived(ctx context.Context, id uuid.UUID, archived ArchivedKeys) error
	// MetricValues returns the ok value of key from the latest report of
	// every project, excluding excludeProject.
	MetricValues(ctx context.Context, key report.MetricKey, excludeProject string) ([]float64, error)
}

// Schema creates the audit_reports table.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_reports (
	id           UUID PRIMARY KEY,
	project_id   TEXT NOT NULL,
	region_id    TEXT NOT NULL,
	as_of        DATE NOT NULL,
	complete     BOOLEAN NOT NULL,
	report       JSONB NOT NULL,
	archived     JSONB,
	alerts       JSONB,
	triggered_by TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_reports_project_idx ON audit_reports (project_id, created_at DESC);
`

const recordColumns = `id, project_id, region_id, as_of, complete, report, archived, alerts, triggered_by, created_at`

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema applies Schema.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, rec *AuditRecord) error {
	query := `
		INSERT INTO audit_reports (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.ProjectID, rec.RegionID, rec.AsOf, rec.Complete,
		rec.Report, rec.Archived, rec.Alerts, rec.TriggeredBy, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit report: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*AuditRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM audit_reports WHERE id = $1`

	var rec AuditRecord
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get audit report: %w", err)
	}
	return &rec, nil
}

func (r *PostgresRepository) List(ctx context.Context, filters *ListFilters) ([]*AuditRecord, int, error) {
	var conditions []string
	var args []interface{}
	argCount := 0

	if filters.ProjectID != "" {
		argCount++
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", argCount))
		args = append(args, filters.ProjectID)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_reports"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit reports: %w", err)
	}

	page, pageSize := normalizePage(filters.Page, filters.PageSize)
	query := fmt.Sprintf("SELECT %s FROM audit_reports%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		recordColumns, where, argCount+1, argCount+2)
	args = append(args, pageSize, (page-1)*pageSize)

	var records []*AuditRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit reports: %w", err)
	}
	return records, total, nil
}

func (r *PostgresRepository) UpdateArchived(ctx context.Context, id uuid.UUID, archived ArchivedKeys) error {
	result, err := r.db.ExecContext(ctx, `UPDATE audit_reports SET archived = $2 WHERE id = $1`, id, archived)
	if err != nil {
		return fmt.Errorf("failed to update archived keys: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (r *PostgresRepository) MetricValues(ctx context.Context, key report.MetricKey, excludeProject string) ([]float64, error) {
	query := `
		SELECT (report->'metrics'->$1->>'value')::float8
		FROM (
			SELECT DISTINCT ON (project_id) project_id, report
			FROM audit_reports
			WHERE project_id <> $2
			ORDER BY project_id, created_at DESC
		) latest
		WHERE report->'metrics'->$1->>'status' = 'ok'
	`

	var values []float64
	if err := r.db.SelectContext(ctx, &values, query, string(key), excludeProject); err != nil {
		return nil, fmt.Errorf("failed to load metric cohort: %w", err)
	}
	return values, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
