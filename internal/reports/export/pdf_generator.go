package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/report"
)

// PDFGenerator renders a printable audit report.
type PDFGenerator struct {
	pdf     *gofpdf.Fpdf
	tr      func(string) string
	options PDFOptions
}

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize       string     `json:"page_size"`   // A4, Letter, Legal
	Orientation    string     `json:"orientation"` // portrait, landscape
	Title          string     `json:"title"`
	DateFormat     string     `json:"date_format"`
	HeaderColor    PDFColor   `json:"header_color"`
	AlternateRows  bool       `json:"alternate_rows"`
	AlternateColor PDFColor   `json:"alternate_color"`
	FontFamily     string     `json:"font_family"`
	FontSize       float64    `json:"font_size"`
	HeaderFontSize float64    `json:"header_font_size"`
	TitleFontSize  float64    `json:"title_font_size"`
	Margins        PDFMargins `json:"margins"`
}

// PDFColor represents an RGB color
type PDFColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// PDFMargins represents page margins
type PDFMargins struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// DefaultPDFOptions returns default PDF options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:       "A4",
		Orientation:    "portrait",
		Title:          "Carbon Audit Report",
		DateFormat:     "2006-01-02",
		HeaderColor:    PDFColor{R: 46, G: 125, B: 50},
		AlternateRows:  true,
		AlternateColor: PDFColor{R: 242, G: 242, B: 242},
		FontFamily:     "Arial",
		FontSize:       9,
		HeaderFontSize: 10,
		TitleFontSize:  16,
		Margins: PDFMargins{
			Left:   15,
			Right:  15,
			Top:    20,
			Bottom: 20,
		},
	}
}

// NewPDFGenerator creates a new PDF generator
func NewPDFGenerator(options PDFOptions) *PDFGenerator {
	orientation := "P"
	if options.Orientation == "landscape" {
		orientation = "L"
	}

	pdf := gofpdf.New(orientation, "mm", options.PageSize, "")
	pdf.SetMargins(options.Margins.Left, options.Margins.Top, options.Margins.Right)
	pdf.SetAutoPageBreak(true, options.Margins.Bottom)

	return &PDFGenerator{
		pdf:     pdf,
		tr:      pdf.UnicodeTranslatorFromDescriptor(""),
		options: options,
	}
}

// pdfColumns are the metric table columns printed on paper; reasons are
// listed separately under the table.
var (
	pdfColumns = []string{"label", "value", "unit", "status"}
	pdfLabels  = []string{"Metric", "Value", "Unit", "Status"}
	pdfWidths  = []float64{85, 35, 30, 30}
)

// Export lays out the header, one table per section, caveats and notes.
func (g *PDFGenerator) Export(r *report.AuditReport) error {
	g.pdf.AddPage()
	g.addTitle()
	g.addDate(r)
	g.pdf.Ln(4)

	g.addSummarySection("Project", MetadataItems(r))

	var section string
	var notes []string
	for i, m := range r.Ordered() {
		if m.Section != section {
			section = m.Section
			g.pdf.Ln(4)
			g.addHeading(section)
			g.addTableHeader()
		}
		g.addRow(i, m)
		if m.Status != band.StatusOK && m.Reason != "" {
			notes = append(notes, fmt.Sprintf("%s: %s", m.Label, m.Reason))
		}
	}

	if len(r.Caveats) > 0 {
		g.pdf.Ln(6)
		g.addHeading("Caveats")
		g.addParagraphs(r.Caveats)
	}
	if len(notes) > 0 {
		g.pdf.Ln(4)
		g.addHeading("Data notes")
		g.addParagraphs(notes)
	}

	return g.pdf.Error()
}

// addTitle adds the report title
func (g *PDFGenerator) addTitle() {
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.TitleFontSize)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.CellFormat(0, 10, g.tr(g.options.Title), "", 1, "C", false, 0, "")
}

// addDate prints the report generation time from the report itself so the
// document is reproducible.
func (g *PDFGenerator) addDate(r *report.AuditReport) {
	if r.GeneratedAt.IsZero() {
		return
	}
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize-1)
	g.pdf.SetTextColor(128, 128, 128)
	g.pdf.CellFormat(0, 6, "Generated: "+r.GeneratedAt.UTC().Format(g.options.DateFormat), "", 1, "R", false, 0, "")
}

func (g *PDFGenerator) addHeading(text string) {
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize+2)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.CellFormat(0, 8, g.tr(text), "", 1, "L", false, 0, "")
}

func (g *PDFGenerator) addTableHeader() {
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.HeaderFontSize)
	g.pdf.SetFillColor(g.options.HeaderColor.R, g.options.HeaderColor.G, g.options.HeaderColor.B)
	g.pdf.SetTextColor(255, 255, 255)
	for i, label := range pdfLabels {
		g.pdf.CellFormat(pdfWidths[i], 7, label, "1", 0, "C", true, 0, "")
	}
	g.pdf.Ln(-1)
}

func (g *PDFGenerator) addRow(i int, m report.Metric) {
	if g.pdf.GetY()+7 > pageHeight(g.pdf)-g.options.Margins.Bottom {
		g.pdf.AddPage()
		g.addTableHeader()
	}

	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	g.pdf.SetTextColor(0, 0, 0)
	if g.options.AlternateRows && i%2 == 1 {
		g.pdf.SetFillColor(g.options.AlternateColor.R, g.options.AlternateColor.G, g.options.AlternateColor.B)
	} else {
		g.pdf.SetFillColor(255, 255, 255)
	}

	values := map[string]string{"label": m.Label, "value": m.Text, "unit": m.Unit, "status": string(m.Status)}
	for j, col := range pdfColumns {
		align := "L"
		if col == "value" {
			align = "R"
		}
		g.pdf.CellFormat(pdfWidths[j], 6, g.tr(values[col]), "1", 0, align, true, 0, "")
	}
	g.pdf.Ln(-1)
}

// addSummarySection adds a label/value block
func (g *PDFGenerator) addSummarySection(title string, items [][2]string) {
	g.addHeading(title)
	for _, item := range items {
		if item[1] == "" {
			continue
		}
		g.pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize)
		g.pdf.CellFormat(50, 5, g.tr(item[0]+":"), "", 0, "L", false, 0, "")
		g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
		g.pdf.MultiCell(0, 5, g.tr(item[1]), "", "L", false)
	}
}

func (g *PDFGenerator) addParagraphs(lines []string) {
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	g.pdf.SetTextColor(60, 60, 60)
	for _, l := range lines {
		g.pdf.MultiCell(0, 5, g.tr("- "+l), "", "L", false)
	}
}

// WriteTo writes the PDF to a writer
func (g *PDFGenerator) WriteTo(w io.Writer) error {
	return g.pdf.Output(w)
}

// OutputToBytes returns the PDF as bytes
func (g *PDFGenerator) OutputToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := g.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pageHeight(pdf *gofpdf.Fpdf) float64 {
	_, h := pdf.GetPageSize()
	return h
}
