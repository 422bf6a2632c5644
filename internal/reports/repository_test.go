package reports

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"co2nex/carbon-audit/audit-backend/internal/audit/report"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(sqlx.NewDb(db, "postgres")), mock
}

func recordRows(t *testing.T, recs ...*AuditRecord) *sqlmock.Rows {
	t.Helper()
	rows := sqlmock.NewRows([]string{"id", "project_id", "region_id", "as_of", "complete", "report", "archived", "alerts", "triggered_by", "created_at"})
	for _, rec := range recs {
		data, err := json.Marshal(rec.Report.AuditReport)
		require.NoError(t, err)
		var archived interface{}
		if rec.Archived != nil {
			archived, _ = json.Marshal(rec.Archived)
		}
		var raised interface{}
		if rec.Alerts != nil {
			raised, _ = json.Marshal(rec.Alerts)
		}
		rows.AddRow(rec.ID.String(), rec.ProjectID, rec.RegionID, rec.AsOf, rec.Complete, data, archived, raised, rec.TriggeredBy, rec.CreatedAt)
	}
	return rows
}

func TestRepositoryCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	rec := storedRecord(t, "proj-1", 1)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_reports")).
		WithArgs(sqlmock.AnyArg(), "proj-1", sqlmock.AnyArg(), sqlmock.AnyArg(), true, sqlmock.AnyArg(), nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGet(t *testing.T) {
	repo, mock := newMockRepo(t)
	rec := storedRecord(t, "proj-1", 2.5)
	rec.Archived = ArchivedKeys{"csv": "audits/proj-1/x.csv"}
	rec.Alerts = AlertList{{Rule: "Forest loss detected", Metric: report.KeyForestLossTotal, Severity: "warning"}}

	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_reports WHERE id = $1")).
		WithArgs(rec.ID).
		WillReturnRows(recordRows(t, rec))

	got, err := repo.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "audits/proj-1/x.csv", got.Archived["csv"])
	require.Len(t, got.Alerts, 1)
	assert.Equal(t, report.KeyForestLossTotal, got.Alerts[0].Metric)
	require.NotNil(t, got.Report.AuditReport)
	assert.InDelta(t, 2.5, *got.Report.Metric(report.KeyCreditEstimate).Value, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_reports WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryList(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := storedRecord(t, "proj-1", 1)
	b := storedRecord(t, "proj-1", 2)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_reports WHERE project_id = $1")).
		WithArgs("proj-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT $2 OFFSET $3")).
		WithArgs("proj-1", 2, 2).
		WillReturnRows(recordRows(t, a, b))

	records, total, err := repo.List(context.Background(), &ListFilters{ProjectID: "proj-1", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, records, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateArchivedMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE audit_reports SET archived = $2 WHERE id = $1")).
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateArchived(context.Background(), id, ArchivedKeys{"pdf": "k"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryMetricValues(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (project_id)")).
		WithArgs("credit_estimate", "proj-1").
		WillReturnRows(sqlmock.NewRows([]string{"float8"}).AddRow(1.5).AddRow(3.0))

	values, err := repo.MetricValues(context.Background(), report.KeyCreditEstimate, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 3.0}, values)
}

func TestNormalizePage(t *testing.T) {
	page, size := normalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, size)

	page, size = normalizePage(3, 50)
	assert.Equal(t, 3, page)
	assert.Equal(t, 50, size)

	_, size = normalizePage(1, 500)
	assert.Equal(t, 20, size)
}
