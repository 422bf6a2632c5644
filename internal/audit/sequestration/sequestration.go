// Package sequestration combines soil and biomass carbon into stock samples
// and derives net sequestration between a baseline and a current window.
package sequestration

import (
	"errors"
	"fmt"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/units"
	"co2nex/carbon-audit/audit-backend/internal/audit/window"
)

var (
	ErrRegionMismatch  = errors.New("baseline and current samples belong to different regions")
	ErrWindowOrder     = errors.New("baseline window must end where the current window starts")
	ErrNonPositiveArea = errors.New("region area must be positive")
)

// Sample is the resolved carbon stock of one region for one window, in tC/ha.
type Sample struct {
	RegionID  string         `json:"region_id"`
	Window    window.Window  `json:"window"`
	AGBCarbon band.Statistic `json:"agb_carbon"`
	SOCCarbon band.Statistic `json:"soc_carbon"`
}

// Total returns AGB + SOC carbon. It is no-data unless both are present.
func (s Sample) Total() band.Statistic {
	agb, okA := s.AGBCarbon.Float()
	soc, okS := s.SOCCarbon.Float()
	if !okA || !okS {
		status, reason := band.Worst(s.AGBCarbon, s.SOCCarbon)
		return band.Statistic{Band: "total_carbon", Status: status, Reason: reason}
	}
	return band.Of("total_carbon", band.ReducerSum, agb+soc, 2)
}

// Result is the derived sequestration chain.
type Result struct {
	Baseline band.Statistic `json:"baseline"`
	Current  band.Statistic `json:"current"`
	// NetCarbon is current − baseline in tC/ha.
	NetCarbon band.Statistic `json:"net_carbon"`
	// NetCO2e is NetCarbon × 44/12 in tCO₂e/ha.
	NetCO2e band.Statistic `json:"net_co2e"`
	// TotalCO2e is NetCO2e × area in tCO₂e.
	TotalCO2e band.Statistic `json:"total_co2e"`
	// CreditEstimate is the per-hectare CO₂e eligible for crediting.
	CreditEstimate band.Statistic `json:"credit_estimate"`
	AreaHectares   float64        `json:"area_hectares"`
}

// Calculate derives net sequestration from two samples of the same region.
// When either total is unusable every derived value carries that status.
func Calculate(baseline, current Sample, areaHa float64) (Result, error) {
	if baseline.RegionID != current.RegionID {
		return Result{}, fmt.Errorf("%w: %q vs %q", ErrRegionMismatch, baseline.RegionID, current.RegionID)
	}
	if !baseline.Window.End.IsZero() && !current.Window.Start.IsZero() && !baseline.Window.End.Equal(current.Window.Start) {
		return Result{}, fmt.Errorf("%w: baseline %s, current %s", ErrWindowOrder, baseline.Window, current.Window)
	}
	if areaHa <= 0 {
		return Result{}, fmt.Errorf("%w: %g ha", ErrNonPositiveArea, areaHa)
	}

	res := Result{
		Baseline:     baseline.Total(),
		Current:      current.Total(),
		AreaHectares: areaHa,
	}

	b, okB := res.Baseline.Float()
	c, okC := res.Current.Float()
	if !okB || !okC {
		status, reason := band.Worst(res.Baseline, res.Current)
		res.NetCarbon = band.Statistic{Band: "net_carbon", Status: status, Reason: reason}
		res.NetCO2e = band.Statistic{Band: "net_co2e", Status: status, Reason: reason}
		res.TotalCO2e = band.Statistic{Band: "total_co2e", Status: status, Reason: reason}
		res.CreditEstimate = band.Statistic{Band: "credit_estimate", Status: status, Reason: reason}
		return res, nil
	}

	net := c - b
	perHa := units.CarbonToCO2e(net)
	res.NetCarbon = band.Of("net_carbon", band.ReducerMean, net, 2)
	res.NetCO2e = band.Of("net_co2e", band.ReducerMean, perHa, 2)
	res.TotalCO2e = band.Of("total_co2e", band.ReducerSum, perHa*areaHa, 2)
	res.CreditEstimate = band.Of("credit_estimate", band.ReducerMean, perHa, 2)
	return res, nil
}
