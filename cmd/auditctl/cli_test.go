package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"co2nex/carbon-audit/audit-backend/internal/audit/report"
)

const farmPolygon = `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[-93.01,45.01],[-93.0,45.01],[-93.0,45.0],[-93.01,45.0],[-93.01,45.01]]]}}`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestWindowsCommand(t *testing.T) {
	out, err := execute(t, "windows", "--as-of", "2025-06-07", "--years", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "current   [2024-06-06, 2025-06-06)  (365 days)")
	assert.Contains(t, out, "baseline  [2023-06-07, 2024-06-06)  (365 days)")

	_, err = execute(t, "windows", "--as-of", "June 7")
	assert.Error(t, err)
}

func TestEstimateCommand(t *testing.T) {
	out, err := execute(t, "estimate", "--area", "100", "--land-type", "forest", "--years", "10", "--price", "15")
	require.NoError(t, err)
	assert.Contains(t, out, "Total revenue:")
	assert.Contains(t, out, "$27000.00")

	out, err = execute(t, "estimate", "--area", "100", "--json")
	require.NoError(t, err)
	var est map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &est))
	assert.InDelta(t, 1800.0, est["total_sequestration"], 1e-6)

	_, err = execute(t, "estimate", "--area", "-1")
	assert.Error(t, err)
}

func TestAuditCommand(t *testing.T) {
	dir := t.TempDir()
	polygon := writeFile(t, dir, "farm.geojson", farmPolygon)
	fixture := writeFile(t, dir, "fixture.json", `{}`)
	missingConfig := filepath.Join(dir, "none.json")

	out, err := execute(t, "audit", "--config", missingConfig, "--fixture", fixture, "--polygon", polygon, "--as-of", "2025-06-07", "--format", "json")
	require.NoError(t, err)

	var r report.AuditReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.True(t, r.Complete())
	assert.True(t, r.Metric(report.KeyFarmArea).OK())
	assert.Equal(t, "cli", r.Metadata.ProjectID)

	out, err = execute(t, "audit", "--config", missingConfig, "--fixture", fixture, "--polygon", polygon, "--as-of", "2025-06-07")
	require.NoError(t, err)
	assert.Contains(t, out, "[Carbon]")
	assert.Contains(t, out, "no-data")

	pdf := filepath.Join(dir, "audit.pdf")
	_, err = execute(t, "audit", "--config", missingConfig, "--fixture", fixture, "--polygon", polygon, "--format", "pdf", "--out", pdf)
	require.NoError(t, err)
	data, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))
}

func TestAuditCommandRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	fixture := writeFile(t, dir, "fixture.json", `{}`)
	open := writeFile(t, dir, "open.geojson", `{"type":"Polygon","coordinates":[[[-93.01,45.01],[-93.0,45.01],[-93.0,45.0],[-93.01,45.0]]]}`)
	missingConfig := filepath.Join(dir, "none.json")

	_, err := execute(t, "audit", "--config", missingConfig, "--fixture", fixture, "--polygon", open)
	assert.Error(t, err)

	_, err = execute(t, "audit", "--config", missingConfig, "--fixture", fixture)
	assert.Error(t, err)

	polygon := writeFile(t, dir, "farm.geojson", farmPolygon)
	_, err = execute(t, "audit", "--config", missingConfig, "--fixture", fixture, "--polygon", polygon, "--format", "docx")
	assert.Error(t, err)
}
