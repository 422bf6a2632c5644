package pipeline

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/biomass"
	"co2nex/carbon-audit/audit-backend/internal/audit/climate"
	"co2nex/carbon-audit/audit-backend/internal/audit/forest"
	"co2nex/carbon-audit/audit-backend/internal/audit/report"
	"co2nex/carbon-audit/audit-backend/internal/audit/sequestration"
	"co2nex/carbon-audit/audit-backend/internal/audit/soil"
	"co2nex/carbon-audit/audit-backend/internal/audit/vegetation"
	"co2nex/carbon-audit/audit-backend/internal/audit/window"
)

// Caveats surfaced on every report they apply to.
const (
	CaveatStaticSOC     = "Soil organic carbon is a static SoilGrids estimate applied to both windows; net change reflects AGB only"
	CaveatFireLoss      = "Fire-related loss marks recent loss near an active fire detection; it flags possible involuntary loss, not a cause"
	CaveatMoisture      = "Soil moisture values above 1 were read as percent and divided by 100; this correction is unverified"
	CaveatVIIRSBaseline = "Baseline NDVI uses the VIIRS VNP13A1 backup composite"
	CaveatVIIRSCurrent  = "Current NDVI uses the VIIRS VNP13A1 backup composite"
)

func (p *Pipeline) assemble(logger *zap.Logger, in Input, w window.Pair, g *gathered) (*report.AuditReport, error) {
	agg := report.NewAggregator()
	areaHa := in.Region.AreaHectares()
	agg.Set(report.KeyFarmArea, band.Of("farm_area", band.ReducerSum, areaHa, 1))
	agg.Trace(report.Step{
		Name:        "Region area",
		Description: "Geodesic polygon area",
		Formula:     "area_m2 / 10000",
		Outputs:     map[string]interface{}{"area_ha": areaHa},
	})

	// Soil organic carbon
	ocd := make(map[string]band.Statistic, len(p.cfg.SoilIntervals))
	bdod := make(map[string]band.Statistic, len(p.cfg.SoilIntervals))
	for i, iv := range p.cfg.SoilIntervals {
		ocd[iv.Name] = g.ocd[i]
		bdod[iv.Name] = g.bdod[i]
	}
	stock, err := p.soil.Stock(soil.NewProfile(p.cfg.DatasetVersion, p.cfg.SoilIntervals, ocd, bdod))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	agg.Set(report.KeySOCCarbon, stock.Total)
	agg.Trace(report.Step{
		Name:        "Soil organic carbon",
		Description: fmt.Sprintf("Layer integration over %.2f m using %s", stock.DepthM, stock.Convention),
		Formula:     "Σ density × thickness × factor",
		Outputs:     map[string]interface{}{"soc_tc_ha": traceValue(stock.Total)},
	})
	agg.Caveat(CaveatStaticSOC)

	// Vegetation index, with the backup source per window
	baseNDVI := vegetation.Select(g.s2[baselineIdx], g.viirs[baselineIdx])
	curNDVI := vegetation.Select(g.s2[currentIdx], g.viirs[currentIdx])
	if baseNDVI.Source == vegetation.SourceVIIRS {
		agg.Caveat(CaveatVIIRSBaseline)
	}
	if curNDVI.Source == vegetation.SourceVIIRS {
		agg.Caveat(CaveatVIIRSCurrent)
	}
	agg.Set(report.KeyNDVIMean, curNDVI.Mean)
	agg.Set(report.KeyNDVIStdDev, curNDVI.StdDev)
	agg.Set(report.KeyNDVIHealth, vegetation.HealthScore(curNDVI.Mean))
	agg.Set(report.KeyNDVIChange, vegetation.Change(baseNDVI, curNDVI))
	agg.Trace(report.Step{
		Name:        "Vegetation index",
		Description: fmt.Sprintf("%s composite of %d/%d scenes", curNDVI.Source, curNDVI.EligibleScenes, curNDVI.Scenes),
		Formula:     "(NIR − Red) / (NIR + Red)",
		Outputs: map[string]interface{}{
			"ndvi_baseline": traceValue(baseNDVI.Mean),
			"ndvi_current":  traceValue(curNDVI.Mean),
		},
	})

	// Biomass proxy
	proxy := p.proxy
	if len(in.Plots) > 0 {
		calibrated, err := proxy.Calibrate(in.Plots)
		switch {
		case err == nil:
			proxy = calibrated
		case errors.Is(err, biomass.ErrInsufficientPlots):
			logger.Warn("Biomass calibration skipped", zap.Error(err))
		default:
			return nil, fmt.Errorf("calibrating biomass proxy: %w", err)
		}
	}
	agbBase := proxy.Estimate(baseNDVI.Mean)
	agbCur := proxy.Estimate(curNDVI.Mean)
	agg.Set(report.KeyAGBCarbonCurrent, agbCur.Carbon)
	agg.Caveat(agbCur.Caveat)
	agg.Trace(report.Step{
		Name:        "Aboveground biomass proxy",
		Description: agbCur.Caveat,
		Formula:     fmt.Sprintf("NDVI × %g × %g", proxy.ScaleFactor, proxy.CarbonFraction),
		Outputs: map[string]interface{}{
			"agb_carbon_baseline": traceValue(agbBase.Carbon),
			"agb_carbon_current":  traceValue(agbCur.Carbon),
		},
	})

	// Sequestration
	regionID := in.Region.ID()
	baseline := sequestration.Sample{RegionID: regionID, Window: w.Baseline, AGBCarbon: agbBase.Carbon, SOCCarbon: stock.Total}
	current := sequestration.Sample{RegionID: regionID, Window: w.Current, AGBCarbon: agbCur.Carbon, SOCCarbon: stock.Total}
	seq, err := sequestration.Calculate(baseline, current, areaHa)
	if err != nil {
		return nil, err
	}
	agg.Set(report.KeyBaselineCarbon, seq.Baseline)
	agg.Set(report.KeyCurrentCarbon, seq.Current)
	agg.Set(report.KeyNetSequesteredCarbon, seq.NetCarbon)
	agg.Set(report.KeyNetSequesteredCO2e, seq.NetCO2e)
	agg.Set(report.KeyTotalNetCO2e, seq.TotalCO2e)
	agg.Set(report.KeyCreditEstimate, seq.CreditEstimate)
	agg.Trace(report.Step{
		Name:        "Net sequestration",
		Description: "Current minus baseline total carbon stock",
		Formula:     "(current − baseline) × 44/12 × area",
		Inputs: map[string]interface{}{
			"baseline_tc_ha": traceValue(seq.Baseline),
			"current_tc_ha":  traceValue(seq.Current),
			"area_ha":        areaHa,
		},
		Outputs: map[string]interface{}{
			"net_co2e_ha":    traceValue(seq.NetCO2e),
			"total_net_co2e": traceValue(seq.TotalCO2e),
		},
	})

	// Climate and water
	agg.Set(report.KeyPrecipitation, climate.Precipitation(g.precipitation))
	moisture := climate.SoilMoisture(g.smMedian, g.smP5, g.smP95, p.moisture)
	agg.Set(report.KeySoilMoisture, moisture.Median.Statistic)
	agg.Set(report.KeySoilMoistureP5, moisture.P5.Statistic)
	agg.Set(report.KeySoilMoistureP95, moisture.P95.Statistic)
	if moisture.Corrected() {
		agg.Caveat(CaveatMoisture)
	}
	occurrence := climate.WaterOccurrence(g.occMean, g.occMin, g.occMax)
	agg.Set(report.KeyWaterOccurrence, occurrence.Mean)
	agg.Set(report.KeyWaterOccurrenceMin, occurrence.Min)
	agg.Set(report.KeyWaterOccurrenceMax, occurrence.Max)
	water := climate.DetectWater(g.waterGrid, p.cfg.Water)
	if g.waterReason != "" {
		water.Area = band.Missing("surface_water_area", g.waterReason)
		water.Fraction = band.Missing("surface_water_fraction", g.waterReason)
	}
	agg.Set(report.KeySurfaceWaterArea, water.Area)
	agg.Set(report.KeySurfaceWaterFraction, water.Fraction)

	// Forest change and fire alerts
	change := forest.PartitionLoss(g.forestGrid, w.Baseline.StartYear(), p.cfg.FireBufferMeters)
	if g.forestReason != "" {
		change.RecentLoss = band.Missing("forest_loss_total", g.forestReason)
		change.FireLoss = band.Missing("forest_loss_fire", g.forestReason)
		change.OtherLoss = band.Missing("forest_loss_other", g.forestReason)
		change.Gain = band.Missing("forest_gain", g.forestReason)
	}
	agg.Set(report.KeyForestLossTotal, change.RecentLoss)
	agg.Set(report.KeyForestLossFire, change.FireLoss)
	agg.Set(report.KeyForestLossOther, change.OtherLoss)
	agg.Set(report.KeyForestGain, change.Gain)
	agg.Caveat(CaveatFireLoss)

	fires := forest.CountAlerts(in.Region, g.fires, g.firesWindow.Start, g.firesWindow.End, p.cfg.AlertBufferMeters)
	if g.firesReason != "" {
		fires = band.Missing("active_fires", g.firesReason)
	}
	agg.Set(report.KeyActiveFires, fires)
	agg.Trace(report.Step{
		Name:        "Forest change",
		Description: fmt.Sprintf("Loss since %d split by fire detections within %g m", change.ReferenceYear, p.cfg.FireBufferMeters),
		Formula:     fmt.Sprintf("lossyear ≥ %d − %d", change.ReferenceYear, forest.LossEpoch),
		Outputs: map[string]interface{}{
			"loss_ha":  traceValue(change.RecentLoss),
			"fire_ha":  traceValue(change.FireLoss),
			"other_ha": traceValue(change.OtherLoss),
			"gain_ha":  traceValue(change.Gain),
		},
	})

	// Structure audit and habitat integrity
	structure := biomass.NewStructure(g.gediAGB, g.rh100, g.lai)
	agg.Set(report.KeyGEDIAGB, structure.GEDIBiomass)
	agg.Set(report.KeyAGBProxyBias, structure.ProxyBias(agbCur))
	agg.Set(report.KeyCanopyHeight, structure.CanopyHeight)
	agg.Set(report.KeyLeafAreaIndex, structure.LeafAreaIndex)

	integrity := p.cfg.Integrity.Score(forest.Indicators{
		AGB:    structure.GEDIBiomass,
		LAI:    structure.LeafAreaIndex,
		Height: structure.CanopyHeight,
	}, change.Gain)
	agg.Set(report.KeyHabitatIntegrity, integrity.Score)
	agg.SetText(report.KeyHabitatStatus, integrity.Status, integrity.Score.Status, integrity.Score.Reason)
	agg.Trace(report.Step{
		Name:        "Habitat integrity",
		Description: fmt.Sprintf("Tier %q, gain bonus applied: %t", integrity.Tier, integrity.BonusApplied),
		Outputs:     map[string]interface{}{"score": traceValue(integrity.Score)},
	})

	meta := in.Metadata
	meta.RegionID = regionID
	meta.NDVISource = curNDVI.Source
	meta.SOCConvention = p.soil.Convention()
	meta.BiomeScaleFactor = proxy.ScaleFactor
	if meta.DataCollectionDate.IsZero() {
		meta.DataCollectionDate = window.Day(in.AsOf)
	}
	meta.Sources = []string{
		curNDVI.Source, DatasetSoilGrids, DatasetGEDIL4A, DatasetGEDIL2A, DatasetMODISLAI,
		DatasetHansen, DatasetFIRMS, DatasetCHIRPS, DatasetSMAP, DatasetJRC, DatasetSentinel1,
	}

	return agg.Build(report.Header{
		Metadata:    meta,
		AsOf:        in.AsOf,
		Windows:     w,
		GeneratedAt: p.now().UTC(),
	})
}

// traceValue renders a statistic for the calculation trace.
func traceValue(s band.Statistic) interface{} {
	if v, ok := s.Float(); ok {
		return v
	}
	return string(s.Status)
}
