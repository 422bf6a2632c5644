package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"co2nex/carbon-audit/audit-backend/internal/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = NewLogger("loud")
	assert.Error(t, err)

	logger, err = NewLogger("development")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewSources(t *testing.T) {
	_, err := NewSources(config.PlatformConfig{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrNoPlatform)

	src, err := NewSources(config.PlatformConfig{BaseURL: "http://localhost:9000"}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, src.Reducer)

	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))
	src, err = NewSources(config.PlatformConfig{FixturePath: path, BaseURL: "http://ignored"}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, src.Reducer)
}

func TestNewArchiveDisabled(t *testing.T) {
	archive, err := NewArchive(context.Background(), config.StorageConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, archive.Enabled())
}

func TestSchedules(t *testing.T) {
	dir := t.TempDir()
	polygon := filepath.Join(dir, "farm.geojson")
	require.NoError(t, os.WriteFile(polygon, []byte(`{"type":"Polygon","coordinates":[]}`), 0o600))

	schedules, err := Schedules([]config.ScheduledAudit{{
		Name:        "river-farm",
		Cron:        "@monthly",
		ProjectID:   "proj-1",
		PolygonFile: polygon,
		Exports:     []string{"pdf"},
	}})
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "proj-1", schedules[0].Request.ProjectID)
	assert.Equal(t, []string{"pdf"}, schedules[0].Request.Exports)
	assert.Empty(t, schedules[0].Request.AsOf)

	_, err = Schedules([]config.ScheduledAudit{{Name: "missing", PolygonFile: filepath.Join(dir, "nope.geojson")}})
	assert.Error(t, err)
}
