package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/report"
)

func buildReport(t *testing.T, asOf time.Time, values map[report.MetricKey]float64) *report.AuditReport {
	t.Helper()
	agg := report.NewAggregator()
	for _, def := range report.Catalogue() {
		if def.Text() {
			agg.SetText(def.Key, "High", band.StatusOK, "")
			continue
		}
		if v, ok := values[def.Key]; ok {
			agg.Set(def.Key, band.Of(string(def.Key), band.ReducerMean, v, 1))
		} else {
			agg.Set(def.Key, band.Missing(string(def.Key), "not reduced"))
		}
	}
	r, err := agg.Build(report.Header{Metadata: report.Metadata{ProjectID: "proj-1"}, AsOf: asOf})
	require.NoError(t, err)
	return r
}

func byRule(alerts []Alert) map[string]Alert {
	out := make(map[string]Alert, len(alerts))
	for _, a := range alerts {
		out[a.Rule] = a
	}
	return out
}

func TestEvaluateThresholdAndDataGap(t *testing.T) {
	engine := NewDefaultEngine(zap.NewNop())
	r := buildReport(t, time.Now(), map[report.MetricKey]float64{
		report.KeyForestLossTotal:  3.2,
		report.KeyForestLossFire:   0,
		report.KeyActiveFires:      0,
		report.KeyHabitatIntegrity: 42,
		report.KeyNDVIChange:       -0.02,
		report.KeySOCCarbon:        55,
	})

	got := byRule(engine.Evaluate(r, nil))

	assert.Contains(t, got, "Forest loss detected")
	assert.Contains(t, got, "Low habitat integrity")
	assert.Contains(t, got, "Vegetation index unavailable")
	assert.NotContains(t, got, "Fire-driven forest loss")
	assert.NotContains(t, got, "Active fires near project")
	assert.NotContains(t, got, "Vegetation decline")
	assert.NotContains(t, got, "Soil carbon unavailable")
	assert.NotContains(t, got, "Carbon stock swing")

	loss := got["Forest loss detected"]
	assert.Equal(t, SeverityWarning, loss.Severity)
	assert.Equal(t, 3.2, loss.Details["current_value"])
	assert.Equal(t, "no-data", got["Vegetation index unavailable"].Details["status"])
}

func TestEvaluateRateOfChange(t *testing.T) {
	engine, err := NewEngine([]Rule{
		{Name: "swing", Condition: ConditionRateOfChange, Metric: report.KeyCurrentCarbon, MaxRatePercent: 10, Severity: SeverityWarning},
	}, zap.NewNop())
	require.NoError(t, err)

	prevAsOf := time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)
	previous := buildReport(t, prevAsOf, map[report.MetricKey]float64{report.KeyCurrentCarbon: 100})

	alerts := engine.Evaluate(buildReport(t, time.Now(), map[report.MetricKey]float64{report.KeyCurrentCarbon: 85}), previous)
	require.Len(t, alerts, 1)
	assert.Equal(t, -15.0, alerts[0].Details["actual_rate"])
	assert.Contains(t, alerts[0].Message, "2024-06-07")

	assert.Empty(t, engine.Evaluate(buildReport(t, time.Now(), map[report.MetricKey]float64{report.KeyCurrentCarbon: 95}), previous))
	assert.Empty(t, engine.Evaluate(buildReport(t, time.Now(), map[report.MetricKey]float64{report.KeyCurrentCarbon: 50}), nil))
	assert.Empty(t, engine.Evaluate(buildReport(t, time.Now(), nil), previous))
}

func TestRuleValidation(t *testing.T) {
	cases := []Rule{
		{Name: "unknown metric", Condition: ConditionDataGap, Metric: "carbon_vibes"},
		{Name: "text threshold", Condition: ConditionThreshold, Metric: report.KeyHabitatStatus, Operator: OpLessThan},
		{Name: "bad operator", Condition: ConditionThreshold, Metric: report.KeyActiveFires, Operator: "approximately"},
		{Name: "zero rate", Condition: ConditionRateOfChange, Metric: report.KeyCurrentCarbon},
		{Name: "bad condition", Condition: "anomaly", Metric: report.KeyActiveFires},
	}
	for _, rule := range cases {
		t.Run(rule.Name, func(t *testing.T) {
			_, err := NewEngine([]Rule{rule}, zap.NewNop())
			assert.ErrorIs(t, err, ErrInvalidRule)
		})
	}

	for _, rule := range DefaultRules() {
		assert.NoError(t, rule.Validate(), rule.Name)
	}
}
