// Package dashboard caches audit reports and summarizes a project's audit
// history for dashboards.
package dashboard

import (
	"sort"
	"time"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/report"
)

// TrendPoint is one report's value of a tracked metric.
type TrendPoint struct {
	AsOf   time.Time   `json:"as_of"`
	Value  *float64    `json:"value"`
	Status band.Status `json:"status"`
}

// ProjectSummary condenses a project's audit history.
type ProjectSummary struct {
	ProjectID    string                             `json:"project_id"`
	AuditCount   int                                `json:"audit_count"`
	FirstAsOf    time.Time                          `json:"first_as_of"`
	LatestAsOf   time.Time                          `json:"latest_as_of"`
	Latest       map[report.MetricKey]report.Metric `json:"latest"`
	Trends       map[report.MetricKey][]TrendPoint  `json:"trends"`
	StatusCounts map[band.Status]int                `json:"status_counts"`
	Caveats      []string                           `json:"caveats,omitempty"`
}

// TrackedMetrics are the headline metrics summarized per project.
var TrackedMetrics = []report.MetricKey{
	report.KeyTotalNetCO2e,
	report.KeyCreditEstimate,
	report.KeyNDVIMean,
	report.KeyForestLossTotal,
	report.KeyHabitatIntegrity,
}

// Summarize builds a summary from the project's reports, in any order.
func Summarize(projectID string, reports []*report.AuditReport) ProjectSummary {
	s := ProjectSummary{
		ProjectID:    projectID,
		Latest:       make(map[report.MetricKey]report.Metric, len(TrackedMetrics)),
		Trends:       make(map[report.MetricKey][]TrendPoint, len(TrackedMetrics)),
		StatusCounts: make(map[band.Status]int, 3),
	}

	sorted := make([]*report.AuditReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			sorted = append(sorted, r)
		}
	}
	if len(sorted) == 0 {
		return s
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].AsOf.Before(sorted[j].AsOf) })

	s.AuditCount = len(sorted)
	s.FirstAsOf = sorted[0].AsOf
	latest := sorted[len(sorted)-1]
	s.LatestAsOf = latest.AsOf
	s.Caveats = latest.Caveats

	for _, key := range TrackedMetrics {
		s.Latest[key] = latest.Metric(key)
		points := make([]TrendPoint, 0, len(sorted))
		for _, r := range sorted {
			m := r.Metric(key)
			points = append(points, TrendPoint{AsOf: r.AsOf, Value: m.Value, Status: m.Status})
		}
		s.Trends[key] = points
	}
	for status, n := range latest.Counts() {
		s.StatusCounts[status] = n
	}
	return s
}
