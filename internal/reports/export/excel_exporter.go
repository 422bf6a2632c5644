package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"co2nex/carbon-audit/audit-backend/internal/audit/report"
)

// Sheet names written by ExcelExporter.
const (
	SheetMetrics  = "Metrics"
	SheetMetadata = "Metadata"
	SheetTrace    = "Trace"
)

// ExcelExporter writes a report workbook with metric, metadata and trace sheets.
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	FreezeHeader bool              `json:"freeze_header"`
	AutoFilter   bool              `json:"auto_filter"`
	IncludeTrace bool              `json:"include_trace"`
	HeaderStyle  *ExcelStyleConfig `json:"header_style,omitempty"`
	DataStyle    *ExcelStyleConfig `json:"data_style,omitempty"`
	AutoWidth    bool              `json:"auto_width"`
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool   `json:"font_bold"`
	FontSize  int    `json:"font_size"`
	FontColor string `json:"font_color"`
	FillColor string `json:"fill_color"`
	Alignment string `json:"alignment"` // left, center, right
	Border    bool   `json:"border"`
	WrapText  bool   `json:"wrap_text"`
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		FreezeHeader: true,
		AutoFilter:   true,
		IncludeTrace: true,
		AutoWidth:    true,
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "2E7D32",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
		DataStyle: &ExcelStyleConfig{
			FontSize:  11,
			Alignment: "left",
			Border:    true,
		},
	}
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	return &ExcelExporter{
		file:    excelize.NewFile(),
		options: options,
	}
}

// Export fills the workbook from r.
func (e *ExcelExporter) Export(r *report.AuditReport) error {
	if err := e.file.SetSheetName("Sheet1", SheetMetrics); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := e.writeTable(SheetMetrics, ColumnLabels, tableRows(Rows(r), Columns)); err != nil {
		return err
	}

	if _, err := e.file.NewSheet(SheetMetadata); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	meta := make([][]interface{}, 0, len(r.Caveats)+16)
	for _, item := range MetadataItems(r) {
		meta = append(meta, []interface{}{item[0], item[1]})
	}
	for _, c := range r.Caveats {
		meta = append(meta, []interface{}{"Caveat", c})
	}
	if err := e.writeTable(SheetMetadata, []string{"Field", "Value"}, meta); err != nil {
		return err
	}

	if !e.options.IncludeTrace || len(r.Trace) == 0 {
		return nil
	}
	if _, err := e.file.NewSheet(SheetTrace); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	trace := make([][]interface{}, 0, len(r.Trace))
	for _, s := range r.Trace {
		trace = append(trace, []interface{}{s.StepNumber, s.Name, s.Description, s.Formula})
	}
	return e.writeTable(SheetTrace, []string{"Step", "Name", "Description", "Formula"}, trace)
}

// WriteTo writes the Excel file to a writer
func (e *ExcelExporter) WriteTo(w io.Writer) error {
	return e.file.Write(w)
}

// Close closes the Excel file
func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

func (e *ExcelExporter) writeTable(sheet string, header []string, rows [][]interface{}) error {
	headerStyleID, err := e.createStyle(e.options.HeaderStyle)
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	dataStyleID, err := e.createStyle(e.options.DataStyle)
	if err != nil {
		return fmt.Errorf("failed to create data style: %w", err)
	}

	widths := make([]float64, len(header))
	for i, col := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, col); err != nil {
			return fmt.Errorf("failed to set header: %w", err)
		}
		if headerStyleID > 0 {
			e.file.SetCellStyle(sheet, cell, cell, headerStyleID)
		}
		widths[i] = estimateWidth(col)
	}

	for rowIdx, row := range rows {
		for colIdx, val := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := e.file.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if dataStyleID > 0 {
				e.file.SetCellStyle(sheet, cell, cell, dataStyleID)
			}
			if w := estimateWidth(val); w > widths[colIdx] {
				widths[colIdx] = w
			}
		}
	}

	if e.options.FreezeHeader {
		e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	if e.options.AutoFilter && len(rows) > 0 {
		lastCol, _ := excelize.CoordinatesToCellName(len(header), len(rows)+1)
		e.file.AutoFilter(sheet, "A1:"+lastCol, nil)
	}
	if e.options.AutoWidth {
		for i, w := range widths {
			col, _ := excelize.ColumnNumberToName(i + 1)
			e.file.SetColWidth(sheet, col, col, min(max(w, 10), 60))
		}
	}
	return nil
}

// createStyle creates an Excel style from config
func (e *ExcelExporter) createStyle(config *ExcelStyleConfig) (int, error) {
	if config == nil {
		return 0, nil
	}
	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		},
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{config.FillColor},
		}
	}
	if config.Alignment != "" || config.WrapText {
		style.Alignment = &excelize.Alignment{
			Horizontal: config.Alignment,
			WrapText:   config.WrapText,
		}
	}
	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		}
	}
	return e.file.NewStyle(style)
}

func tableRows(rows []map[string]interface{}, columns []string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		out[i] = make([]interface{}, len(columns))
		for j, col := range columns {
			out[i][j] = row[col]
		}
	}
	return out
}

// estimateWidth is a rough character-count width with padding.
func estimateWidth(val interface{}) float64 {
	if val == nil {
		return 0
	}
	return float64(len([]rune(fmt.Sprintf("%v", val)))) * 1.2
}
