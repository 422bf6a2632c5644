package biomass

import (
	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/units"
)

// Structure is the independent vegetation structure audit: GEDI biomass and
// canopy height with MODIS leaf area index.
type Structure struct {
	GEDIBiomass   band.Statistic `json:"gedi_agb"`
	CanopyHeight  band.Statistic `json:"canopy_height"`
	LeafAreaIndex band.Statistic `json:"leaf_area_index"`
}

// NewStructure converts the raw region means.
func NewStructure(agbd, rh100, lai band.Statistic) Structure {
	s := Structure{
		GEDIBiomass:   units.GEDIBiomass.ApplyStatistic(agbd),
		CanopyHeight:  units.CanopyHeight.ApplyStatistic(rh100),
		LeafAreaIndex: units.LeafAreaIndex.ApplyStatistic(lai),
	}
	s.GEDIBiomass.Band = "gedi_agb"
	s.CanopyHeight.Band = "canopy_height"
	s.LeafAreaIndex.Band = "leaf_area_index"
	return s
}

// ProxyBias returns proxy biomass minus GEDI biomass in t/ha.
func (s Structure) ProxyBias(e Estimate) band.Statistic {
	g, okG := s.GEDIBiomass.Float()
	p, okP := e.Biomass.Float()
	if !okG || !okP {
		status, reason := band.Worst(e.Biomass, s.GEDIBiomass)
		return band.Statistic{Band: "agb_proxy_bias", Status: status, Reason: reason}
	}
	return band.Of("agb_proxy_bias", band.ReducerMean, p-g, s.GEDIBiomass.Count)
}
