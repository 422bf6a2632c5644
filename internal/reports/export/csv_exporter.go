package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"co2nex/carbon-audit/audit-backend/internal/audit/report"
)

// CSVExporter writes the report metric table as CSV.
type CSVExporter struct {
	writer  *csv.Writer
	options CSVOptions
}

// CSVOptions configures CSV export behavior
type CSVOptions struct {
	Delimiter     rune `json:"delimiter"`
	UseCRLF       bool `json:"use_crlf"`
	IncludeHeader bool `json:"include_header"`
	// IncludeCaveats appends one "caveat" row per report caveat.
	IncludeCaveats bool `json:"include_caveats"`
}

// DefaultCSVOptions returns default CSV export options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:      ',',
		IncludeHeader:  true,
		IncludeCaveats: true,
	}
}

// NewCSVExporter creates a new CSV exporter
func NewCSVExporter(w io.Writer, options CSVOptions) *CSVExporter {
	writer := csv.NewWriter(w)
	if options.Delimiter != 0 {
		writer.Comma = options.Delimiter
	}
	writer.UseCRLF = options.UseCRLF

	return &CSVExporter{
		writer:  writer,
		options: options,
	}
}

// Export writes every metric row and flushes.
func (e *CSVExporter) Export(r *report.AuditReport) error {
	if e.options.IncludeHeader {
		if err := e.writer.Write(Columns); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for _, row := range Rows(r) {
		record := make([]string, len(Columns))
		for i, col := range Columns {
			record[i], _ = row[col].(string)
		}
		if err := e.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	if e.options.IncludeCaveats {
		for _, c := range r.Caveats {
			record := make([]string, len(Columns))
			record[0], record[1], record[3] = "caveat", "caveat", c
			if err := e.writer.Write(record); err != nil {
				return fmt.Errorf("failed to write caveat: %w", err)
			}
		}
	}

	e.writer.Flush()
	return e.writer.Error()
}
