// Package units holds the raw-value to physical-unit conversions used by the
// audit calculators. Every conversion documents its scale factor, resulting
// unit and declared valid range. A value outside the range is tagged invalid
// rather than failing the run.
package units

import (
	"errors"
	"fmt"
	"math"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
)

const (
	// HectaresPerAcre converts acres to hectares.
	HectaresPerAcre = 0.404686

	// SquareMetersPerHectare converts m² to hectares.
	SquareMetersPerHectare = 10000.0

	// CO2PerCarbon is the molecular-weight ratio CO₂/C.
	CO2PerCarbon = 44.0 / 12.0

	// DisplayCO2PerCarbon is the rounded ratio used on printed dashboards.
	DisplayCO2PerCarbon = 3.67
)

// Conversion is a linear raw-to-physical conversion with a declared range.
type Conversion struct {
	Name   string
	Factor float64
	Unit   string
	Min    float64
	Max    float64
}

// Apply converts raw and reports whether the result is inside the range.
func (c Conversion) Apply(raw float64) (float64, bool) {
	v := raw * c.Factor
	if math.IsNaN(v) || math.IsInf(v, 0) || v < c.Min || v > c.Max {
		return v, false
	}
	return v, true
}

// ApplyStatistic converts an ok statistic and tags it invalid when out of range.
func (c Conversion) ApplyStatistic(s band.Statistic) band.Statistic {
	return s.Map(func(v float64) float64 { return v * c.Factor }).Check(c.Min, c.Max)
}

var (
	// Reflectance scales surface reflectance digital numbers (÷10000) to 0–1.
	Reflectance = Conversion{Name: "reflectance", Factor: 1.0 / 10000, Unit: "unitless", Min: 0, Max: 1}

	// VIIRSIndex scales VNP13A1 vegetation index digital numbers (×0.0001).
	VIIRSIndex = Conversion{Name: "viirs_index", Factor: 0.0001, Unit: "index", Min: -1, Max: 1}

	// WaterOccurrence passes JRC surface-water occurrence through as percent.
	WaterOccurrence = Conversion{Name: "water_occurrence", Factor: 1, Unit: "%", Min: 0, Max: 100}
)

// ErrUnknownConvention is returned for an unregistered SOC convention tag.
var ErrUnknownConvention = errors.New("unknown soil carbon convention")

// SOCConvention describes how one soil dataset version encodes organic carbon
// and bulk density. Two incompatible conventions exist and must never be mixed
// within one run.
type SOCConvention struct {
	// Tag is the dataset-version tag used in configuration.
	Tag string
	// OCD converts the organic carbon raw value.
	OCD Conversion
	// BulkDensity converts the bulk density raw value to kg/m³.
	BulkDensity Conversion
	// UsesBulkDensity marks conventions whose OCD value is a mass fraction
	// that must be multiplied by bulk density to obtain a volumetric density.
	UsesBulkDensity bool
	// TonnesPerHectareFactor converts the summed kg/m² carbon mass to tC/ha.
	TonnesPerHectareFactor float64
}

const (
	// ConventionVolumetric treats OCD as a volumetric organic carbon density.
	ConventionVolumetric = "soilgrids-v2-density"
	// ConventionBulkProduct treats OCD as g/kg content combined with bulk density.
	ConventionBulkProduct = "soilgrids-bdod-product"
)

var conventions = map[string]SOCConvention{
	// raw ×10 → kg/m³, OCD already volumetric. kg/m² × 10 → tC/ha.
	ConventionVolumetric: {
		Tag:                    ConventionVolumetric,
		OCD:                    Conversion{Name: "ocd", Factor: 10, Unit: "kg/m³", Min: 0, Max: 10000},
		BulkDensity:            Conversion{Name: "bdod", Factor: 1.0 / 10, Unit: "kg/m³", Min: 0, Max: 2500},
		UsesBulkDensity:        false,
		TonnesPerHectareFactor: 10,
	},
	// g/kg ×0.001 → kg C per kg soil, cg/cm³ ×10 → kg/m³. The composite
	// constant reproduces ocd × bdod × 0.001 × depth in tC/ha per layer.
	ConventionBulkProduct: {
		Tag:                    ConventionBulkProduct,
		OCD:                    Conversion{Name: "ocd", Factor: 0.001, Unit: "kg/kg", Min: 0, Max: 1},
		BulkDensity:            Conversion{Name: "bdod", Factor: 10, Unit: "kg/m³", Min: 0, Max: 2500},
		UsesBulkDensity:        true,
		TonnesPerHectareFactor: 0.1,
	},
}

// LookupConvention returns the registered convention for tag.
func LookupConvention(tag string) (SOCConvention, error) {
	c, ok := conventions[tag]
	if !ok {
		return SOCConvention{}, fmt.Errorf("%w: %q", ErrUnknownConvention, tag)
	}
	return c, nil
}

// Conventions lists the registered convention tags.
func Conventions() []string {
	return []string{ConventionVolumetric, ConventionBulkProduct}
}

// MoistureOptions controls the soil moisture correction step.
type MoistureOptions struct {
	// PercentHeuristic reinterprets values above 1 as percent and divides
	// them by 100. This is an unverified correction that may hide an upstream
	// unit bug, so it is reported on every value it touches.
	PercentHeuristic bool
}

// Moisture is a converted volumetric soil moisture statistic.
type Moisture struct {
	band.Statistic
	// Corrected is set when the percent heuristic rescaled the value.
	Corrected bool `json:"corrected"`
}

// SoilMoisture converts a soil moisture statistic to a volumetric fraction
// in [0, 1].
func SoilMoisture(s band.Statistic, opts MoistureOptions) Moisture {
	out := Moisture{Statistic: s}
	v, ok := s.Float()
	if !ok {
		return out
	}
	if v > 1 && opts.PercentHeuristic {
		out.Statistic = s.Map(func(v float64) float64 { return v / 100 })
		out.Corrected = true
	}
	out.Statistic = out.Statistic.Check(0, 1)
	return out
}

// AcresToHectares converts acres to hectares.
func AcresToHectares(acres float64) float64 {
	return acres * HectaresPerAcre
}

// HectaresToAcres converts hectares to acres.
func HectaresToAcres(ha float64) float64 {
	return ha / HectaresPerAcre
}

// SquareMetersToHectares converts m² to hectares.
func SquareMetersToHectares(m2 float64) float64 {
	return m2 / SquareMetersPerHectare
}

// CarbonToCO2e converts tonnes of carbon to tonnes of CO₂-equivalent.
func CarbonToCO2e(tc float64) float64 {
	return tc * CO2PerCarbon
}

var (
	// GEDIBiomass passes GEDI L4A aboveground biomass density through in t/ha.
	GEDIBiomass = Conversion{Name: "agbd", Factor: 1, Unit: "t/ha", Min: 0, Max: 1500}

	// CanopyHeight passes GEDI L2A rh100 relative height through in meters.
	CanopyHeight = Conversion{Name: "rh100", Factor: 1, Unit: "m", Min: 0, Max: 150}

	// LeafAreaIndex scales MODIS MCD15A3H Lai digital numbers by 0.1.
	LeafAreaIndex = Conversion{Name: "lai", Factor: 0.1, Unit: "m²/m²", Min: 0, Max: 10}

	// Precipitation passes CHIRPS daily totals through in mm.
	Precipitation = Conversion{Name: "precipitation", Factor: 1, Unit: "mm", Min: 0, Max: 20000}
)
