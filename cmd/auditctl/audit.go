package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"co2nex/carbon-audit/audit-backend/internal/app"
	"co2nex/carbon-audit/audit-backend/internal/audit/pipeline"
	"co2nex/carbon-audit/audit-backend/internal/audit/report"
	"co2nex/carbon-audit/audit-backend/internal/config"
	"co2nex/carbon-audit/audit-backend/internal/reports/export"
	"co2nex/carbon-audit/audit-backend/pkg/geospatial"
)

type auditOptions struct {
	configPath  string
	fixture     string
	polygon     string
	asOf        string
	format      string
	out         string
	projectID   string
	projectName string
}

func newAuditCmd() *cobra.Command {
	opts := &auditOptions{}
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run the carbon audit for one polygon",
		Long: `Runs the full audit pipeline for a GeoJSON polygon and prints or writes
the report. Reductions come from --fixture when given, otherwise from the
platform section of the config file.

Example:
  auditctl audit --fixture f.json --polygon p.geojson --as-of 2025-06-07 --format pdf --out audit.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "config.json", "path to the JSON config file")
	f.StringVar(&opts.fixture, "fixture", "", "recorded reduction fixture (JSON)")
	f.StringVar(&opts.polygon, "polygon", "", "GeoJSON polygon or feature file")
	f.StringVar(&opts.asOf, "as-of", "", "audit date YYYY-MM-DD (default today)")
	f.StringVar(&opts.format, "format", "table", "output format: table, json, csv, xlsx or pdf")
	f.StringVar(&opts.out, "out", "", "output file (default stdout)")
	f.StringVar(&opts.projectID, "project-id", "cli", "project identifier recorded on the report")
	f.StringVar(&opts.projectName, "project-name", "", "project name recorded on the report")
	_ = cmd.MarkFlagRequired("polygon")
	return cmd
}

func runAudit(ctx context.Context, stdout io.Writer, opts *auditOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.fixture != "" {
		cfg.Platform.FixturePath = opts.fixture
	}

	data, err := os.ReadFile(opts.polygon)
	if err != nil {
		return fmt.Errorf("failed to read polygon: %w", err)
	}
	region, err := geospatial.ParseGeoJSON(opts.projectID, data)
	if err != nil {
		return err
	}

	var asOf time.Time
	if opts.asOf != "" {
		if asOf, err = time.Parse("2006-01-02", opts.asOf); err != nil {
			return fmt.Errorf("--as-of must be YYYY-MM-DD: %w", err)
		}
	}

	p, err := app.NewPipeline(cfg, logger)
	if err != nil {
		return err
	}
	r, err := p.Run(ctx, pipeline.Input{
		Region: region,
		AsOf:   asOf,
		Metadata: report.Metadata{
			ProjectID:   opts.projectID,
			ProjectName: opts.projectName,
		},
	})
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := renderReport(&buf, opts.format, r); err != nil {
		return err
	}
	return writeOutput(stdout, opts.out, buf.Bytes())
}

func renderReport(w io.Writer, format string, r *report.AuditReport) error {
	switch strings.ToLower(format) {
	case "table", "":
		return writeReportTable(w, r)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		f, err := export.ParseFormat(format)
		if err != nil {
			return err
		}
		return export.Write(w, f, r)
	}
}

func writeReportTable(w io.Writer, r *report.AuditReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Project:\t%s\n", r.Metadata.ProjectID)
	fmt.Fprintf(tw, "As of:\t%s\n", r.AsOf.Format("2006-01-02"))
	fmt.Fprintf(tw, "Baseline:\t%s\n", r.Baseline)
	fmt.Fprintf(tw, "Current:\t%s\n\n", r.Current)

	section := ""
	for _, m := range r.Ordered() {
		if m.Section != section {
			section = m.Section
			fmt.Fprintf(tw, "[%s]\n", section)
		}
		status := ""
		if !m.OK() {
			status = string(m.Status)
			if m.Reason != "" {
				status += ": " + m.Reason
			}
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", m.Label, m.Text, m.Unit, status)
	}
	for _, c := range r.Caveats {
		fmt.Fprintf(tw, "\n* %s", c)
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
