package report

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/window"
)

var (
	ErrIncomplete = errors.New("audit report is incomplete")
	ErrUnknownKey = errors.New("metric key is not in the catalogue")
)

// Aggregator collects calculator outputs and publishes a report once every
// slot is filled. It is not safe for concurrent use.
type Aggregator struct {
	metrics map[MetricKey]Metric
	caveats []string
	trace   []Step
	err     error
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{metrics: make(map[MetricKey]Metric, len(catalogue))}
}

// Set records a numeric metric.
func (a *Aggregator) Set(key MetricKey, s band.Statistic) *Aggregator {
	def, ok := byKey[key]
	if !ok {
		a.fail(fmt.Errorf("%w: %s", ErrUnknownKey, key))
		return a
	}
	a.metrics[key] = Format(def, s)
	return a
}

// SetText records a label metric such as a status category. An empty text
// is recorded as no-data with reason.
func (a *Aggregator) SetText(key MetricKey, text string, status band.Status, reason string) *Aggregator {
	def, ok := byKey[key]
	if !ok {
		a.fail(fmt.Errorf("%w: %s", ErrUnknownKey, key))
		return a
	}
	m := Metric{Key: key, Label: def.Label, Unit: def.Unit, Section: def.Section, Precision: def.Precision, Status: status, Reason: reason}
	switch {
	case status == band.StatusInvalid:
		m.Text = TextInvalid
	case status != band.StatusOK || text == "":
		m.Status = band.StatusNoData
		m.Text = TextNoData
		if m.Reason == "" {
			m.Reason = "no label"
		}
	default:
		m.Text = text
		m.Reason = ""
	}
	a.metrics[key] = m
	return a
}

// Caveat appends a consumer-facing limitation once.
func (a *Aggregator) Caveat(text string) *Aggregator {
	for _, c := range a.caveats {
		if c == text {
			return a
		}
	}
	a.caveats = append(a.caveats, text)
	return a
}

// Trace appends a calculation step and numbers it.
func (a *Aggregator) Trace(step Step) *Aggregator {
	step.StepNumber = len(a.trace) + 1
	a.trace = append(a.trace, step)
	return a
}

func (a *Aggregator) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

// Header carries the report identity.
type Header struct {
	Metadata    Metadata
	AsOf        time.Time
	Windows     window.Pair
	GeneratedAt time.Time
}

// Build publishes the report. It fails when any catalogue slot is unset or an
// unknown key was recorded, so no partially populated report escapes.
func (a *Aggregator) Build(h Header) (*AuditReport, error) {
	if a.err != nil {
		return nil, a.err
	}
	r := &AuditReport{
		Metadata:    h.Metadata,
		AsOf:        h.AsOf,
		Baseline:    h.Windows.Baseline,
		Current:     h.Windows.Current,
		GeneratedAt: h.GeneratedAt,
		Metrics:     make(map[MetricKey]Metric, len(a.metrics)),
		Caveats:     append([]string(nil), a.caveats...),
		Trace:       append([]Step(nil), a.trace...),
	}
	for k, m := range a.metrics {
		r.Metrics[k] = m
	}
	if missing := r.Missing(); len(missing) > 0 {
		keys := make([]string, len(missing))
		for i, k := range missing {
			keys[i] = string(k)
		}
		return nil, fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(keys, ", "))
	}
	return r, nil
}

// Format renders a statistic with its definition's precision. The stored
// value is rounded to the same precision so text and value agree.
func Format(def Definition, s band.Statistic) Metric {
	m := Metric{
		Key:       def.Key,
		Label:     def.Label,
		Unit:      def.Unit,
		Section:   def.Section,
		Precision: def.Precision,
		Reason:    s.Reason,
	}
	v, ok := s.Float()
	switch {
	case s.Status == band.StatusInvalid:
		m.Status = band.StatusInvalid
		m.Text = TextInvalid
		return m
	case !ok:
		m.Status = band.StatusNoData
		m.Text = TextNoData
		if m.Reason == "" {
			m.Reason = "no value"
		}
		return m
	}

	prec := def.Precision
	if prec < 0 {
		prec = 0
	}
	rounded := Round(v, prec)
	m.Value = &rounded
	m.Text = strconv.FormatFloat(rounded, 'f', prec, 64)
	m.Status = band.StatusOK
	m.Reason = ""
	return m
}

// Round rounds half away from zero to prec decimals. Negative zero becomes 0.
func Round(v float64, prec int) float64 {
	p := math.Pow(10, float64(prec))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0
	}
	return r
}
