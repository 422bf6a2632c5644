// Package alerts evaluates rules against a finished audit report and, where a
// previous report exists, against the change since then.
package alerts

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"co2nex/carbon-audit/audit-backend/internal/audit/report"
)

var ErrInvalidRule = errors.New("invalid alert rule")

// Condition types
const (
	ConditionThreshold    = "threshold"
	ConditionRateOfChange = "rate_of_change"
	ConditionDataGap      = "data_gap"
)

// Threshold operators
const (
	OpGreaterThan        = "greater_than"
	OpLessThan           = "less_than"
	OpGreaterThanOrEqual = "greater_than_or_equal"
	OpLessThanOrEqual    = "less_than_or_equal"
)

// Severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Rule is one alert condition over a catalogue metric.
type Rule struct {
	Name      string           `json:"name"`
	Condition string           `json:"condition"`
	Metric    report.MetricKey `json:"metric"`
	Operator  string           `json:"operator,omitempty"`
	Threshold float64          `json:"threshold,omitempty"`
	// MaxRatePercent bounds |current − previous| / |previous| × 100.
	MaxRatePercent float64 `json:"max_rate_percent,omitempty"`
	Severity       string  `json:"severity"`
}

// Alert is a triggered rule.
type Alert struct {
	Rule     string                 `json:"rule"`
	Metric   report.MetricKey       `json:"metric"`
	Severity string                 `json:"severity"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// DefaultRules returns the rules applied to every audit.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "Forest loss detected", Condition: ConditionThreshold, Metric: report.KeyForestLossTotal, Operator: OpGreaterThan, Threshold: 0, Severity: SeverityWarning},
		{Name: "Fire-driven forest loss", Condition: ConditionThreshold, Metric: report.KeyForestLossFire, Operator: OpGreaterThan, Threshold: 0, Severity: SeverityCritical},
		{Name: "Active fires near project", Condition: ConditionThreshold, Metric: report.KeyActiveFires, Operator: OpGreaterThan, Threshold: 0, Severity: SeverityCritical},
		{Name: "Low habitat integrity", Condition: ConditionThreshold, Metric: report.KeyHabitatIntegrity, Operator: OpLessThan, Threshold: 50, Severity: SeverityWarning},
		{Name: "Vegetation decline", Condition: ConditionThreshold, Metric: report.KeyNDVIChange, Operator: OpLessThanOrEqual, Threshold: -0.1, Severity: SeverityWarning},
		{Name: "Carbon stock swing", Condition: ConditionRateOfChange, Metric: report.KeyCurrentCarbon, MaxRatePercent: 10, Severity: SeverityWarning},
		{Name: "Vegetation index unavailable", Condition: ConditionDataGap, Metric: report.KeyNDVIMean, Severity: SeverityInfo},
		{Name: "Soil carbon unavailable", Condition: ConditionDataGap, Metric: report.KeySOCCarbon, Severity: SeverityInfo},
	}
}

// Validate checks that the rule can be evaluated.
func (r Rule) Validate() error {
	def, ok := report.Lookup(r.Metric)
	if !ok {
		return fmt.Errorf("%w: %s: unknown metric %q", ErrInvalidRule, r.Name, r.Metric)
	}
	switch r.Condition {
	case ConditionThreshold:
		switch r.Operator {
		case OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual:
		default:
			return fmt.Errorf("%w: %s: unknown operator %q", ErrInvalidRule, r.Name, r.Operator)
		}
		if def.Text() {
			return fmt.Errorf("%w: %s: %s is not numeric", ErrInvalidRule, r.Name, r.Metric)
		}
	case ConditionRateOfChange:
		if def.Text() || r.MaxRatePercent <= 0 {
			return fmt.Errorf("%w: %s: rate of change needs a numeric metric and a positive max rate", ErrInvalidRule, r.Name)
		}
	case ConditionDataGap:
	default:
		return fmt.Errorf("%w: %s: unknown condition %q", ErrInvalidRule, r.Name, r.Condition)
	}
	return nil
}

// Engine handles alert rule evaluation
type Engine struct {
	rules  []Rule
	logger *zap.Logger
}

// NewEngine validates rules and creates an engine.
func NewEngine(rules []Rule, logger *zap.Logger) (*Engine, error) {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{rules: rules, logger: logger}, nil
}

// NewDefaultEngine returns an engine over DefaultRules.
func NewDefaultEngine(logger *zap.Logger) *Engine {
	e, err := NewEngine(DefaultRules(), logger)
	if err != nil {
		panic(err)
	}
	return e
}

// Rules returns the engine's rules.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate returns the alerts current triggers. previous may be nil, in which
// case rate-of-change rules are skipped.
func (e *Engine) Evaluate(current, previous *report.AuditReport) []Alert {
	var out []Alert
	for _, rule := range e.rules {
		alert, ok := e.evaluateRule(rule, current, previous)
		if !ok {
			continue
		}
		e.logger.Warn("Audit alert triggered",
			zap.String("project_id", current.Metadata.ProjectID),
			zap.String("rule", rule.Name),
			zap.String("severity", rule.Severity))
		out = append(out, alert)
	}
	return out
}

func (e *Engine) evaluateRule(rule Rule, current, previous *report.AuditReport) (Alert, bool) {
	m := current.Metric(rule.Metric)
	alert := Alert{Rule: rule.Name, Metric: rule.Metric, Severity: rule.Severity}

	switch rule.Condition {
	case ConditionThreshold:
		if !m.OK() || m.Value == nil || !compare(*m.Value, rule.Operator, rule.Threshold) {
			return alert, false
		}
		alert.Message = fmt.Sprintf("%s: %s is %s %s", rule.Name, m.Label, m.Text, m.Unit)
		alert.Details = map[string]interface{}{
			"condition_type": rule.Condition,
			"operator":       rule.Operator,
			"threshold":      rule.Threshold,
			"current_value":  *m.Value,
		}

	case ConditionRateOfChange:
		if previous == nil {
			return alert, false
		}
		prev := previous.Metric(rule.Metric)
		if !m.OK() || !prev.OK() || m.Value == nil || prev.Value == nil || *prev.Value == 0 {
			return alert, false
		}
		rate := (*m.Value - *prev.Value) / math.Abs(*prev.Value) * 100
		if math.Abs(rate) <= rule.MaxRatePercent {
			return alert, false
		}
		alert.Message = fmt.Sprintf("%s: %s changed %.1f%% since %s", rule.Name, m.Label, rate, previous.AsOf.Format("2006-01-02"))
		alert.Details = map[string]interface{}{
			"condition_type":   rule.Condition,
			"max_rate_percent": rule.MaxRatePercent,
			"actual_rate":      report.Round(rate, 2),
			"previous_value":   *prev.Value,
			"current_value":    *m.Value,
		}

	case ConditionDataGap:
		if m.OK() {
			return alert, false
		}
		alert.Message = fmt.Sprintf("%s: %s is %s", rule.Name, m.Label, m.Status)
		alert.Details = map[string]interface{}{
			"condition_type": rule.Condition,
			"status":         string(m.Status),
			"reason":         m.Reason,
		}

	default:
		return alert, false
	}
	return alert, true
}

func compare(v float64, op string, threshold float64) bool {
	switch op {
	case OpGreaterThan:
		return v > threshold
	case OpLessThan:
		return v < threshold
	case OpGreaterThanOrEqual:
		return v >= threshold
	case OpLessThanOrEqual:
		return v <= threshold
	}
	return false
}
