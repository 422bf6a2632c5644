package soil

import (
	"fmt"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/units"
)

// LayerStock is the carbon held in one layer.
type LayerStock struct {
	Name string `json:"name"`
	// ThicknessM is the layer thickness in meters.
	ThicknessM float64 `json:"thickness_m"`
	// Density is the volumetric carbon density in kg/m³.
	Density band.Statistic `json:"density"`
	// Mass is the carbon mass per unit area in kg/m².
	Mass band.Statistic `json:"mass"`
	// Carbon is the layer stock in tC/ha.
	Carbon band.Statistic `json:"carbon"`
}

// Stock is the integrated soil organic carbon of a profile.
type Stock struct {
	Convention string       `json:"convention"`
	DepthM     float64      `json:"depth_m"`
	Layers     []LayerStock `json:"layers"`
	// Total is the profile stock in tC/ha.
	Total band.Statistic `json:"total"`
}

// Calculator integrates soil organic carbon under one fixed convention.
type Calculator struct {
	convention units.SOCConvention
}

// NewCalculator returns a calculator bound to a dataset-version tag.
func NewCalculator(tag string) (*Calculator, error) {
	c, err := units.LookupConvention(tag)
	if err != nil {
		return nil, err
	}
	return &Calculator{convention: c}, nil
}

// Convention returns the bound dataset-version tag.
func (c *Calculator) Convention() string {
	return c.convention.Tag
}

// Stock integrates carbon mass across the profile's layers. Profile shape
// errors and convention mismatches are returned as errors; missing or out of
// range raw values propagate through the returned statistics.
func (c *Calculator) Stock(p Profile) (Stock, error) {
	if p.Convention == "" {
		p.Convention = c.convention.Tag
	}
	if p.Convention != c.convention.Tag {
		return Stock{}, fmt.Errorf("%w: calculator uses %q, profile uses %q", ErrMixedConventions, c.convention.Tag, p.Convention)
	}
	if err := p.Validate(); err != nil {
		return Stock{}, err
	}

	out := Stock{
		Convention: c.convention.Tag,
		DepthM:     p.NominalDepthM,
		Layers:     make([]LayerStock, 0, len(p.Layers)),
	}

	total := 0.0
	parts := make([]band.Statistic, 0, len(p.Layers))
	for _, l := range p.Layers {
		ls := c.layer(l)
		out.Layers = append(out.Layers, ls)
		parts = append(parts, ls.Carbon)
		if v, ok := ls.Carbon.Float(); ok {
			total += v
		}
	}

	if status, reason := band.Worst(parts...); status != band.StatusOK {
		out.Total = band.Statistic{Band: "soc", Status: status, Reason: reason}
		return out, nil
	}
	out.Total = band.Of("soc", band.ReducerSum, total, len(parts))
	return out, nil
}

func (c *Calculator) layer(l Layer) LayerStock {
	thickness := l.Thickness()
	ls := LayerStock{Name: l.Name, ThicknessM: thickness}

	density := c.convention.OCD.ApplyStatistic(l.OCD)
	if c.convention.UsesBulkDensity {
		bd := c.convention.BulkDensity.ApplyStatistic(l.BulkDensity)
		density = product(density, bd)
	}
	density.Band = "soc_density_" + l.Name

	ls.Density = density
	ls.Mass = density.Map(func(v float64) float64 { return v * thickness })
	ls.Mass.Band = "soc_mass_" + l.Name
	ls.Carbon = ls.Mass.Map(func(v float64) float64 { return v * c.convention.TonnesPerHectareFactor })
	ls.Carbon.Band = "soc_" + l.Name
	return ls
}

func product(a, b band.Statistic) band.Statistic {
	va, okA := a.Float()
	vb, okB := b.Float()
	if !okA || !okB {
		status, reason := band.Worst(a, b)
		return band.Statistic{Status: status, Reason: reason}
	}
	return band.Of("", band.ReducerMean, va*vb, min(a.Count, b.Count))
}
