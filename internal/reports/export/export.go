// Package export renders audit reports as CSV, Excel and PDF documents.
package export

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"co2nex/carbon-audit/audit-backend/internal/audit/report"
)

// Format is a supported export format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "xlsx"
	FormatPDF   Format = "pdf"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat accepts the format names used on the API and CLI.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatExcel, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Extension returns the file extension without a dot.
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Write renders r in format f.
func Write(w io.Writer, f Format, r *report.AuditReport) error {
	switch f {
	case FormatCSV:
		return NewCSVExporter(w, DefaultCSVOptions()).Export(r)
	case FormatExcel:
		e := NewExcelExporter(DefaultExcelOptions())
		defer e.Close()
		if err := e.Export(r); err != nil {
			return err
		}
		return e.WriteTo(w)
	case FormatPDF:
		opts := DefaultPDFOptions()
		if r.Metadata.ProjectName != "" {
			opts.Title = r.Metadata.ProjectName + " Carbon Audit"
		}
		g := NewPDFGenerator(opts)
		if err := g.Export(r); err != nil {
			return err
		}
		return g.WriteTo(w)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

// Columns of the metric table shared by every format.
var (
	Columns      = []string{"section", "key", "label", "value", "unit", "status", "reason"}
	ColumnLabels = []string{"Section", "Key", "Metric", "Value", "Unit", "Status", "Reason"}
)

// Rows flattens the report metrics in catalogue order.
func Rows(r *report.AuditReport) []map[string]interface{} {
	metrics := r.Ordered()
	rows := make([]map[string]interface{}, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, map[string]interface{}{
			"section": m.Section,
			"key":     string(m.Key),
			"label":   m.Label,
			"value":   m.Text,
			"unit":    m.Unit,
			"status":  string(m.Status),
			"reason":  m.Reason,
		})
	}
	return rows
}

// MetadataItems returns the report header as ordered label/value pairs.
func MetadataItems(r *report.AuditReport) [][2]string {
	md := r.Metadata
	items := [][2]string{
		{"Project ID", md.ProjectID},
		{"Project", md.ProjectName},
		{"Classification", md.Classification},
		{"Landowner", md.Landowner},
		{"Region", md.RegionID},
		{"As of", day(r.AsOf)},
		{"Data collection date", day(md.DataCollectionDate)},
		{"Baseline window", r.Baseline.String()},
		{"Current window", r.Current.String()},
		{"NDVI source", md.NDVISource},
		{"SOC convention", md.SOCConvention},
		{"Sources", strings.Join(md.Sources, ", ")},
	}
	if md.BiomeScaleFactor != 0 {
		items = append(items, [2]string{"Biome scale factor", strconv.FormatFloat(md.BiomeScaleFactor, 'f', -1, 64)})
	}
	return items
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
