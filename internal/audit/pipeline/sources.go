package pipeline

import (
	"context"

	"github.com/paulmach/orb"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/climate"
	"co2nex/carbon-audit/audit-backend/internal/audit/forest"
	"co2nex/carbon-audit/audit-backend/internal/audit/vegetation"
	"co2nex/carbon-audit/audit-backend/internal/audit/window"
	"co2nex/carbon-audit/audit-backend/pkg/geospatial"
)

// Datasets requested from the imagery platform.
const (
	DatasetSoilGrids   = "soilgrids"
	DatasetGEDIL4A     = "gedi-l4a"
	DatasetGEDIL2A     = "gedi-l2a"
	DatasetMODISLAI    = "modis-mcd15a3h"
	DatasetCHIRPS      = "chirps-daily"
	DatasetSMAP        = "smap-l4"
	DatasetJRC         = "jrc-gsw"
	DatasetHansen      = "hansen-gfc"
	DatasetFIRMS       = "firms"
	DatasetSentinel1   = "sentinel-1"
	SensorSentinel2    = "sentinel-2"
	SensorVIIRSVNP13A1 = "viirs-vnp13a1"
)

// Native reduction scales in meters.
const (
	ScaleSoilGrids = 250
	ScaleGEDI      = 25
	ScaleCHIRPS    = 5000
	ScaleSMAP      = 10000
	ScaleJRC       = 30
)

// ReduceRequest asks for one band reduced over a region and window.
type ReduceRequest struct {
	Dataset    string             `json:"dataset"`
	Band       string             `json:"band"`
	Region     *geospatial.Region `json:"-"`
	Window     window.Window      `json:"window"`
	Reducer    band.Reducer       `json:"reducer"`
	Percentile float64            `json:"percentile,omitempty"`
	// Temporal is the reducer applied across the window's images before
	// the spatial reduction. Empty means the dataset's own composite.
	Temporal band.Reducer `json:"temporal,omitempty"`
	Scale    float64      `json:"scale"`
}

// Key identifies the request in fixtures and logs.
func (r ReduceRequest) Key() string {
	k := r.Dataset + "/" + r.Band + ":" + string(r.Reducer)
	if r.Reducer == band.ReducerPercentile {
		k += "_p" + formatPercentile(r.Percentile)
	}
	return k
}

// SceneRequest asks for the acquisitions of a sensor.
type SceneRequest struct {
	Sensor string             `json:"sensor"`
	Region *geospatial.Region `json:"-"`
	Window window.Window      `json:"window"`
}

// GridRequest asks for a pixel grid over the region.
type GridRequest struct {
	Region *geospatial.Region `json:"-"`
	Window window.Window      `json:"window"`
	// BufferMeters widens the grid beyond the region.
	BufferMeters float64 `json:"buffer_meters,omitempty"`
	// SearchArea, when set, bounds point detections. It is the region
	// buffered by BufferMeters.
	SearchArea orb.Polygon `json:"-"`
}

// Reducer performs region reductions.
type Reducer interface {
	Reduce(ctx context.Context, req ReduceRequest) (band.Statistic, error)
}

// SceneSource lists per-scene pixel values.
type SceneSource interface {
	Scenes(ctx context.Context, req SceneRequest) ([]vegetation.Scene, error)
	IndexScenes(ctx context.Context, req SceneRequest) ([]vegetation.IndexScene, error)
}

// GridSource serves pixel grids and point detections.
type GridSource interface {
	ForestChange(ctx context.Context, req GridRequest) (*forest.Grid, error)
	WaterSignals(ctx context.Context, req GridRequest) (*climate.WaterGrid, error)
	FireDetections(ctx context.Context, req GridRequest) ([]forest.Detection, error)
}

// Sources bundles the collaborators. One value may satisfy all three.
type Sources struct {
	Reducer Reducer
	Scenes  SceneSource
	Grids   GridSource
}

func (s Sources) validate() error {
	if s.Reducer == nil || s.Scenes == nil || s.Grids == nil {
		return ErrMissingSource
	}
	return nil
}
