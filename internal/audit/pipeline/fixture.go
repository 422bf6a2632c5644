package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/climate"
	"co2nex/carbon-audit/audit-backend/internal/audit/forest"
	"co2nex/carbon-audit/audit-backend/internal/audit/vegetation"
)

// Fixture is a recorded set of collaborator responses.
//
// Reductions are keyed by ReduceRequest.Key, optionally suffixed with
// "@YYYY-MM-DD" to pin a value to the window starting on that day. Scenes are
// listed per sensor and served when their acquisition falls in the window.
type Fixture struct {
	Reductions   map[string]band.Statistic          `json:"reductions"`
	Scenes       map[string][]vegetation.Scene      `json:"scenes"`
	IndexScenes  map[string][]vegetation.IndexScene `json:"index_scenes"`
	ForestChange *forest.Grid                       `json:"forest_change"`
	Water        *climate.WaterGrid                 `json:"water"`
	Fires        []forest.Detection                 `json:"fires"`
}

// FixtureSource serves a Fixture. It implements Reducer, SceneSource and
// GridSource.
type FixtureSource struct {
	fx Fixture
}

// NewFixtureSource wraps an in-memory fixture.
func NewFixtureSource(fx Fixture) *FixtureSource {
	return &FixtureSource{fx: fx}
}

// LoadFixture reads a JSON fixture file.
func LoadFixture(path string) (*FixtureSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var fx Fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return NewFixtureSource(fx), nil
}

// Sources returns the fixture bound to every collaborator slot.
func (f *FixtureSource) Sources() Sources {
	return Sources{Reducer: f, Scenes: f, Grids: f}
}

func (f *FixtureSource) Reduce(ctx context.Context, req ReduceRequest) (band.Statistic, error) {
	if err := ctx.Err(); err != nil {
		return band.Statistic{}, err
	}
	key := req.Key()
	if s, ok := f.fx.Reductions[key+"@"+req.Window.Start.Format("2006-01-02")]; ok {
		return s, nil
	}
	if s, ok := f.fx.Reductions[key]; ok {
		return s, nil
	}
	return band.Missing(req.Band, "not recorded in fixture"), nil
}

func (f *FixtureSource) Scenes(ctx context.Context, req SceneRequest) ([]vegetation.Scene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []vegetation.Scene
	for _, s := range f.fx.Scenes[req.Sensor] {
		if req.Window.Contains(s.Acquired) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *FixtureSource) IndexScenes(ctx context.Context, req SceneRequest) ([]vegetation.IndexScene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []vegetation.IndexScene
	for _, s := range f.fx.IndexScenes[req.Sensor] {
		if req.Window.Contains(s.Acquired) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *FixtureSource) ForestChange(ctx context.Context, _ GridRequest) (*forest.Grid, error) {
	return f.fx.ForestChange, ctx.Err()
}

func (f *FixtureSource) WaterSignals(ctx context.Context, _ GridRequest) (*climate.WaterGrid, error) {
	return f.fx.Water, ctx.Err()
}

func (f *FixtureSource) FireDetections(ctx context.Context, req GridRequest) ([]forest.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []forest.Detection
	for _, d := range f.fx.Fires {
		if !req.Window.Contains(d.Acquired) {
			continue
		}
		if len(req.SearchArea) > 0 && !planar.PolygonContains(req.SearchArea, orb.Point{d.Lon, d.Lat}) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
