// Package climate converts precipitation, soil moisture and surface water
// reductions into audit values and detects open water on a pixel grid.
package climate

import (
	"fmt"
	"math"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/units"
	"co2nex/carbon-audit/audit-backend/internal/audit/vegetation"
)

// Precipitation converts the region mean of the window-summed rainfall.
func Precipitation(total band.Statistic) band.Statistic {
	s := units.Precipitation.ApplyStatistic(total)
	s.Band = "precipitation"
	return s
}

// Moisture is the soil moisture distribution over the region.
type Moisture struct {
	Median units.Moisture `json:"median"`
	P5     units.Moisture `json:"p5"`
	P95    units.Moisture `json:"p95"`
}

// Corrected reports whether the percent heuristic touched any value.
func (m Moisture) Corrected() bool {
	return m.Median.Corrected || m.P5.Corrected || m.P95.Corrected
}

// SoilMoisture converts the median and 5th/95th percentile reductions.
func SoilMoisture(median, p5, p95 band.Statistic, opts units.MoistureOptions) Moisture {
	m := Moisture{
		Median: units.SoilMoisture(median, opts),
		P5:     units.SoilMoisture(p5, opts),
		P95:    units.SoilMoisture(p95, opts),
	}
	m.Median.Band = "soil_moisture"
	m.P5.Band = "soil_moisture_p5"
	m.P95.Band = "soil_moisture_p95"
	return m
}

// Occurrence is the JRC surface water occurrence summary in percent.
type Occurrence struct {
	Mean band.Statistic `json:"mean"`
	Min  band.Statistic `json:"min"`
	Max  band.Statistic `json:"max"`
}

// WaterOccurrence range-checks the occurrence reductions.
func WaterOccurrence(mean, min, max band.Statistic) Occurrence {
	o := Occurrence{
		Mean: units.WaterOccurrence.ApplyStatistic(mean),
		Min:  units.WaterOccurrence.ApplyStatistic(min),
		Max:  units.WaterOccurrence.ApplyStatistic(max),
	}
	o.Mean.Band = "water_occurrence"
	o.Min.Band = "water_occurrence_min"
	o.Max.Band = "water_occurrence_max"
	return o
}

// WaterThresholds decide whether a pixel is open water. A pixel is water when
// any one signal passes.
type WaterThresholds struct {
	// MaxBackscatterDB is the SAR VV backscatter below which a pixel is water.
	MaxBackscatterDB float64 `json:"max_backscatter_db"`
	// MinNDWI is the green/NIR normalized difference above which a pixel is water.
	MinNDWI float64 `json:"min_ndwi"`
	// MinOccurrence is the JRC occurrence percentage at or above which a
	// pixel is treated as water-sensitive.
	MinOccurrence float64 `json:"min_occurrence"`
}

// DefaultWaterThresholds returns the production thresholds.
func DefaultWaterThresholds() WaterThresholds {
	return WaterThresholds{MaxBackscatterDB: -17, MinNDWI: 0.2, MinOccurrence: 50}
}

// WaterGrid is a row-major grid of water signals. NaN marks a missing value.
// Any signal layer may be nil.
type WaterGrid struct {
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CellSizeM  float64   `json:"cell_size_m"`
	VV         []float64 `json:"vv,omitempty"`
	Green      []float64 `json:"green,omitempty"`
	NIR        []float64 `json:"nir,omitempty"`
	Occurrence []float64 `json:"occurrence,omitempty"`
	InRegion   []bool    `json:"in_region,omitempty"`
}

func (g *WaterGrid) validate() error {
	n := g.Width * g.Height
	if n <= 0 || g.CellSizeM <= 0 {
		return fmt.Errorf("water grid %dx%d with cell size %g is empty", g.Width, g.Height, g.CellSizeM)
	}
	for name, l := range map[string]int{"vv": len(g.VV), "green": len(g.Green), "nir": len(g.NIR), "occurrence": len(g.Occurrence), "in-region": len(g.InRegion)} {
		if l != 0 && l != n {
			return fmt.Errorf("%s layer has %d pixels, want %d", name, l, n)
		}
	}
	if len(g.Green) != len(g.NIR) {
		return fmt.Errorf("green and nir layers must be supplied together")
	}
	if g.VV == nil && g.Green == nil && g.Occurrence == nil {
		return fmt.Errorf("water grid has no signal layers")
	}
	return nil
}

// Water is the detected surface water inside the region.
type Water struct {
	Area     band.Statistic `json:"area"`
	Fraction band.Statistic `json:"fraction"`
	Pixels   int            `json:"pixels"`
}

// DetectWater combines radar, optical and historical occurrence signals.
func DetectWater(g *WaterGrid, th WaterThresholds) Water {
	if g == nil {
		return waterStatus(band.Missing, "no water grid")
	}
	if err := g.validate(); err != nil {
		return waterStatus(band.Invalid, err.Error())
	}

	cell := g.CellSizeM * g.CellSizeM
	var water, total float64
	pixels := 0
	for i := 0; i < g.Width*g.Height; i++ {
		if g.InRegion != nil && !g.InRegion[i] {
			continue
		}
		pixels++
		total += cell
		if g.isWater(i, th) {
			water += cell
		}
	}
	if pixels == 0 {
		return waterStatus(band.Missing, "no pixels inside the region")
	}
	return Water{
		Area:     band.Of("surface_water_area", band.ReducerSum, units.SquareMetersToHectares(water), pixels),
		Fraction: band.Of("surface_water_fraction", band.ReducerMean, water/total*100, pixels),
		Pixels:   pixels,
	}
}

func (g *WaterGrid) isWater(i int, th WaterThresholds) bool {
	if g.VV != nil && valid(g.VV[i]) && g.VV[i] < th.MaxBackscatterDB {
		return true
	}
	if g.Green != nil {
		if ndwi, ok := vegetation.NormalizedDifference(g.Green[i], g.NIR[i]); ok && ndwi > th.MinNDWI {
			return true
		}
	}
	if g.Occurrence != nil && valid(g.Occurrence[i]) && g.Occurrence[i] >= th.MinOccurrence {
		return true
	}
	return false
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func waterStatus(build func(name, reason string) band.Statistic, reason string) Water {
	return Water{
		Area:     build("surface_water_area", reason),
		Fraction: build("surface_water_fraction", reason),
	}
}
