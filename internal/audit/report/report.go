// Package report assembles calculator outputs into the flat audit report read
// by presentation layers. It is the only audit package that formats values.
package report

import (
	"time"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/window"
)

// Display text for non-ok metrics.
const (
	TextNoData  = "N/A"
	TextInvalid = "Invalid"
)

// Metric is one formatted report slot.
type Metric struct {
	Key       MetricKey   `json:"key"`
	Label     string      `json:"label"`
	Unit      string      `json:"unit"`
	Section   string      `json:"section"`
	Precision int         `json:"precision"`
	Value     *float64    `json:"value"`
	Text      string      `json:"text"`
	Status    band.Status `json:"status"`
	Reason    string      `json:"reason,omitempty"`
}

// OK reports whether the metric carries a usable value.
func (m Metric) OK() bool {
	return m.Status == band.StatusOK
}

// Metadata identifies the audited project and records run provenance.
type Metadata struct {
	ProjectID          string    `json:"project_id"`
	ProjectName        string    `json:"project_name,omitempty"`
	Classification     string    `json:"classification,omitempty"`
	Landowner          string    `json:"landowner,omitempty"`
	DataCollectionDate time.Time `json:"data_collection_date"`
	RegionID           string    `json:"region_id"`
	Sources            []string  `json:"sources,omitempty"`
	NDVISource         string    `json:"ndvi_source,omitempty"`
	SOCConvention      string    `json:"soc_convention,omitempty"`
	BiomeScaleFactor   float64   `json:"biome_scale_factor,omitempty"`
}

// Step is one entry in the calculation trace.
type Step struct {
	StepNumber  int                    `json:"step_number"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Formula     string                 `json:"formula,omitempty"`
	Inputs      map[string]interface{} `json:"inputs,omitempty"`
	Outputs     map[string]interface{} `json:"outputs,omitempty"`
}

// AuditReport is the complete result of one pipeline run.
type AuditReport struct {
	Metadata    Metadata             `json:"metadata"`
	AsOf        time.Time            `json:"as_of"`
	Baseline    window.Window        `json:"baseline"`
	Current     window.Window        `json:"current"`
	GeneratedAt time.Time            `json:"generated_at"`
	Metrics     map[MetricKey]Metric `json:"metrics"`
	Caveats     []string             `json:"caveats,omitempty"`
	Trace       []Step               `json:"trace,omitempty"`
}

// Complete reports whether every catalogue slot is populated.
func (r *AuditReport) Complete() bool {
	return len(r.Missing()) == 0
}

// Missing lists catalogue keys without a metric.
func (r *AuditReport) Missing() []MetricKey {
	var out []MetricKey
	for _, d := range catalogue {
		if _, ok := r.Metrics[d.Key]; !ok {
			out = append(out, d.Key)
		}
	}
	return out
}

// Metric returns the metric for key. A key outside the catalogue returns a
// no-data metric.
func (r *AuditReport) Metric(key MetricKey) Metric {
	if m, ok := r.Metrics[key]; ok {
		return m
	}
	return Metric{Key: key, Text: TextNoData, Status: band.StatusNoData, Reason: "unknown metric"}
}

// Ordered returns the metrics in catalogue order.
func (r *AuditReport) Ordered() []Metric {
	out := make([]Metric, 0, len(catalogue))
	for _, d := range catalogue {
		if m, ok := r.Metrics[d.Key]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Counts returns the number of metrics per status.
func (r *AuditReport) Counts() map[band.Status]int {
	out := make(map[band.Status]int, 3)
	for _, m := range r.Metrics {
		out[m.Status]++
	}
	return out
}
