// Package benchmarks ranks a project's audit metric against the latest
// reports of its peers.
package benchmarks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"co2nex/carbon-audit/audit-backend/internal/audit/report"
)

var (
	ErrEmptyCohort   = errors.New("no peer reports carry this metric")
	ErrMetricNoValue = errors.New("project metric has no value")
	ErrNotComparable = errors.New("metric cannot be benchmarked")
)

// MinCohortSize is the smallest peer group a comparison is reported for.
const MinCohortSize = 3

// CohortRepository loads peer metric values.
type CohortRepository interface {
	MetricValues(ctx context.Context, key report.MetricKey, excludeProject string) ([]float64, error)
}

// Comparator compares project metrics against a cohort of stored reports
type Comparator struct {
	repository CohortRepository
	logger     *zap.Logger
}

// CohortStats represents statistics for a metric across the cohort
type CohortStats struct {
	Mean       float64 `json:"mean"`
	Median     float64 `json:"median"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	P25        float64 `json:"p25"`
	P75        float64 `json:"p75"`
	P90        float64 `json:"p90"`
	StdDev     float64 `json:"std_dev"`
	SampleSize int     `json:"sample_size"`
}

// Comparison is one project metric placed within its cohort.
type Comparison struct {
	ProjectID      string           `json:"project_id"`
	Metric         report.MetricKey `json:"metric"`
	Label          string           `json:"label"`
	Unit           string           `json:"unit"`
	Value          float64          `json:"value"`
	Cohort         CohortStats      `json:"cohort"`
	PercentileRank float64          `json:"percentile_rank"`
	Gap            float64          `json:"gap"`
	GapPercentage  float64          `json:"gap_percentage"`
	Direction      string           `json:"direction"` // above, below, at_median
}

// NewComparator creates a new comparator
func NewComparator(repository CohortRepository, logger *zap.Logger) *Comparator {
	return &Comparator{
		repository: repository,
		logger:     logger,
	}
}

// Compare ranks r's value of key against the latest report of every other
// project.
func (c *Comparator) Compare(ctx context.Context, r *report.AuditReport, key report.MetricKey) (*Comparison, error) {
	def, ok := report.Lookup(key)
	if !ok || def.Text() {
		return nil, fmt.Errorf("%w: %s", ErrNotComparable, key)
	}
	m := r.Metric(key)
	if !m.OK() || m.Value == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrMetricNoValue, key, m.Status)
	}

	values, err := c.repository.MetricValues(ctx, key, r.Metadata.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cohort: %w", err)
	}
	if len(values) < MinCohortSize {
		return nil, fmt.Errorf("%w: %d peers, need %d", ErrEmptyCohort, len(values), MinCohortSize)
	}

	cohort, err := CalculateStatistics(values)
	if err != nil {
		return nil, err
	}

	value := *m.Value
	gap := value - cohort.Median
	direction := "at_median"
	if gap > 0 {
		direction = "above"
	} else if gap < 0 {
		direction = "below"
	}
	gapPct := 0.0
	if cohort.Median != 0 {
		gapPct = report.Round(gap/math.Abs(cohort.Median)*100, 2)
	}

	c.logger.Debug("Benchmark computed",
		zap.String("project_id", r.Metadata.ProjectID),
		zap.String("metric", string(key)),
		zap.Int("cohort", cohort.SampleSize))

	return &Comparison{
		ProjectID:      r.Metadata.ProjectID,
		Metric:         key,
		Label:          def.Label,
		Unit:           def.Unit,
		Value:          value,
		Cohort:         cohort,
		PercentileRank: PercentileRank(values, value),
		Gap:            report.Round(gap, def.Precision),
		GapPercentage:  gapPct,
		Direction:      direction,
	}, nil
}

// CalculateStatistics calculates cohort statistics
func CalculateStatistics(values []float64) (CohortStats, error) {
	data := stats.Float64Data(values)
	var out CohortStats
	var err error

	if out.Mean, err = data.Mean(); err != nil {
		return CohortStats{}, fmt.Errorf("failed to compute mean: %w", err)
	}
	if out.Median, err = data.Median(); err != nil {
		return CohortStats{}, fmt.Errorf("failed to compute median: %w", err)
	}
	if out.Min, err = data.Min(); err != nil {
		return CohortStats{}, fmt.Errorf("failed to compute min: %w", err)
	}
	if out.Max, err = data.Max(); err != nil {
		return CohortStats{}, fmt.Errorf("failed to compute max: %w", err)
	}
	if out.StdDev, err = data.StandardDeviationPopulation(); err != nil {
		return CohortStats{}, fmt.Errorf("failed to compute stddev: %w", err)
	}
	if out.P25, err = data.PercentileNearestRank(25); err != nil {
		return CohortStats{}, fmt.Errorf("failed to compute p25: %w", err)
	}
	if out.P75, err = data.PercentileNearestRank(75); err != nil {
		return CohortStats{}, fmt.Errorf("failed to compute p75: %w", err)
	}
	if out.P90, err = data.PercentileNearestRank(90); err != nil {
		return CohortStats{}, fmt.Errorf("failed to compute p90: %w", err)
	}
	out.SampleSize = len(values)
	return out, nil
}

// PercentileRank is the share of the cohort strictly below value plus half
// the share equal to it, in percent.
func PercentileRank(values []float64, value float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	below := sort.SearchFloat64s(sorted, value)
	equal := 0
	for i := below; i < len(sorted) && sorted[i] == value; i++ {
		equal++
	}
	rank := (float64(below) + 0.5*float64(equal)) / float64(len(sorted)) * 100
	return math.Round(rank*100) / 100
}
