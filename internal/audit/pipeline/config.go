package pipeline

import (
	"errors"
	"fmt"
	"time"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/biomass"
	"co2nex/carbon-audit/audit-backend/internal/audit/climate"
	"co2nex/carbon-audit/audit-backend/internal/audit/forest"
	"co2nex/carbon-audit/audit-backend/internal/audit/soil"
	"co2nex/carbon-audit/audit-backend/internal/audit/units"
	"co2nex/carbon-audit/audit-backend/internal/audit/window"
	"co2nex/carbon-audit/audit-backend/pkg/geospatial"
)

var ErrInvalidConfig = errors.New("invalid pipeline configuration")

// DefaultReductionTimeout bounds each collaborator call.
const DefaultReductionTimeout = 30 * time.Second

// DefaultStructureYears is the GEDI and MODIS LAI lookback. GEDI footprints
// are sparse, so structure is averaged over a decade ending with the current
// window.
const DefaultStructureYears = 10

// Config selects the dataset conventions and thresholds of one deployment.
type Config struct {
	// DatasetVersion selects the soil organic carbon convention.
	DatasetVersion string `json:"dataset_version"`
	// SoilIntervals are the depth layers integrated for SOC.
	SoilIntervals []soil.Interval `json:"soil_intervals"`

	BiomeScaleFactor float64 `json:"biome_scale_factor"`
	CarbonFraction   float64 `json:"carbon_fraction"`

	CloudThreshold float64      `json:"cloud_threshold"`
	Composite      band.Reducer `json:"composite"`

	FireBufferMeters  float64 `json:"fire_buffer_meters"`
	AlertBufferMeters float64 `json:"alert_buffer_meters"`
	AlertLookbackDays int     `json:"alert_lookback_days"`

	SoilMoistureHeuristic bool `json:"soil_moisture_heuristic"`

	Period           window.Period `json:"period"`
	StructureYears   int           `json:"structure_years"`
	ReductionTimeout time.Duration `json:"reduction_timeout"`

	Water     climate.WaterThresholds `json:"water"`
	Integrity forest.IntegrityScorer  `json:"integrity"`
}

// DefaultConfig returns the bulk-density product convention over 0–30 cm
// with the grassland biome factor.
func DefaultConfig() Config {
	return Config{
		DatasetVersion:        units.ConventionBulkProduct,
		SoilIntervals:         soil.Topsoil30,
		BiomeScaleFactor:      biomass.ScaleGrassland,
		CarbonFraction:        biomass.DefaultCarbonFraction,
		CloudThreshold:        10,
		Composite:             band.ReducerMedian,
		FireBufferMeters:      forest.DefaultFireBufferMeters,
		AlertBufferMeters:     geospatial.DefaultAlertBufferMeters,
		AlertLookbackDays:     forest.AlertLookbackDays,
		SoilMoistureHeuristic: true,
		Period:                window.DefaultPeriod,
		StructureYears:        DefaultStructureYears,
		ReductionTimeout:      DefaultReductionTimeout,
		Water:                 climate.DefaultWaterThresholds(),
		Integrity:             forest.DefaultIntegrityScorer(),
	}
}

// Validate fails on any setting that would produce a wrong number rather
// than a missing one.
func (c Config) Validate() error {
	if _, err := units.LookupConvention(c.DatasetVersion); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if len(c.SoilIntervals) == 0 {
		return fmt.Errorf("%w: no soil intervals", ErrInvalidConfig)
	}
	if err := soil.NewProfile(c.DatasetVersion, c.SoilIntervals, nil, nil).Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := (biomass.Proxy{ScaleFactor: c.BiomeScaleFactor, CarbonFraction: c.CarbonFraction}).Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.CloudThreshold <= 0 || c.CloudThreshold > 100 {
		return fmt.Errorf("%w: cloud threshold %g must be in (0, 100]", ErrInvalidConfig, c.CloudThreshold)
	}
	if c.Composite != band.ReducerMedian && c.Composite != band.ReducerMean {
		return fmt.Errorf("%w: composite reducer %q must be median or mean", ErrInvalidConfig, c.Composite)
	}
	if c.FireBufferMeters < 0 || c.AlertBufferMeters < 0 {
		return fmt.Errorf("%w: buffers must not be negative", ErrInvalidConfig)
	}
	if c.AlertLookbackDays <= 0 {
		return fmt.Errorf("%w: alert lookback must be positive", ErrInvalidConfig)
	}
	if c.StructureYears <= 0 {
		return fmt.Errorf("%w: structure lookback must be positive", ErrInvalidConfig)
	}
	if c.ReductionTimeout <= 0 {
		return fmt.Errorf("%w: reduction timeout must be positive", ErrInvalidConfig)
	}
	if _, err := window.Derive(time.Now(), c.Period); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Integrity.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
