// Package biomass estimates aboveground biomass carbon from a composited
// vegetation index. The estimate is a linear proxy, not an allometric model,
// and always carries a caveat saying so.
package biomass

import (
	"errors"
	"fmt"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
)

const (
	// DefaultCarbonFraction is the share of dry biomass that is carbon.
	DefaultCarbonFraction = 0.5

	// ScaleGrassland and ScaleForest are tonnes of biomass per hectare at an
	// index of 1 for the two attested biome templates.
	ScaleGrassland = 200.0
	ScaleForest    = 400.0

	// ProxyCaveat accompanies every uncalibrated estimate.
	ProxyCaveat = "AGB is a linear NDVI proxy, not a calibrated allometric estimate"
)

var ErrInvalidProxy = errors.New("invalid biomass proxy")

// Proxy is the linear index-to-biomass model.
type Proxy struct {
	ScaleFactor    float64 `json:"scale_factor"`
	CarbonFraction float64 `json:"carbon_fraction"`
	// Plots is the number of field plots the scale factor was calibrated
	// against. Zero means uncalibrated.
	Plots int `json:"plots"`
}

// NewProxy returns a proxy for a biome scale factor.
func NewProxy(scaleFactor float64) (Proxy, error) {
	p := Proxy{ScaleFactor: scaleFactor, CarbonFraction: DefaultCarbonFraction}
	return p, p.Validate()
}

// Validate checks the model constants.
func (p Proxy) Validate() error {
	if p.ScaleFactor <= 0 {
		return fmt.Errorf("%w: scale factor %g must be positive", ErrInvalidProxy, p.ScaleFactor)
	}
	if p.CarbonFraction <= 0 || p.CarbonFraction > 1 {
		return fmt.Errorf("%w: carbon fraction %g must be in (0, 1]", ErrInvalidProxy, p.CarbonFraction)
	}
	return nil
}

// Calibrated reports whether the scale factor came from field plots.
func (p Proxy) Calibrated() bool {
	return p.Plots > 0
}

// Caveat describes the model quality for report consumers.
func (p Proxy) Caveat() string {
	if p.Calibrated() {
		return fmt.Sprintf("AGB proxy calibrated against %d field plots", p.Plots)
	}
	return ProxyCaveat
}

// Estimate is a biomass and carbon estimate for one region and window.
type Estimate struct {
	Index   band.Statistic `json:"index"`
	Biomass band.Statistic `json:"biomass"`
	Carbon  band.Statistic `json:"carbon"`
	Caveat  string         `json:"caveat"`
}

// Estimate applies biomass = index × scale factor and carbon = biomass ×
// carbon fraction. A non-ok index yields non-ok outputs.
func (p Proxy) Estimate(index band.Statistic) Estimate {
	biomass := index.Map(func(v float64) float64 { return v * p.ScaleFactor })
	biomass.Band = "agb"
	carbon := biomass.Map(func(v float64) float64 { return v * p.CarbonFraction })
	carbon.Band = "agb_carbon"
	return Estimate{
		Index:   index,
		Biomass: biomass,
		Carbon:  carbon,
		Caveat:  p.Caveat(),
	}
}
