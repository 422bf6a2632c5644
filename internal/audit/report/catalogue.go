package report

// MetricKey names one slot of the audit report.
type MetricKey string

const (
	KeyFarmArea             MetricKey = "farm_area"
	KeyBaselineCarbon       MetricKey = "baseline_carbon"
	KeyCurrentCarbon        MetricKey = "current_carbon"
	KeySOCCarbon            MetricKey = "soc_carbon"
	KeyAGBCarbonCurrent     MetricKey = "agb_carbon_current"
	KeyNetSequesteredCarbon MetricKey = "net_sequestered_carbon"
	KeyNetSequesteredCO2e   MetricKey = "net_sequestered_co2e"
	KeyTotalNetCO2e         MetricKey = "total_net_co2e"
	KeyCreditEstimate       MetricKey = "credit_estimate"
	KeyNDVIMean             MetricKey = "ndvi_mean"
	KeyNDVIStdDev           MetricKey = "ndvi_stddev"
	KeyNDVIHealth           MetricKey = "ndvi_health"
	KeyNDVIChange           MetricKey = "ndvi_change"
	KeyPrecipitation        MetricKey = "precipitation"
	KeySoilMoisture         MetricKey = "soil_moisture"
	KeySoilMoistureP5       MetricKey = "soil_moisture_p5"
	KeySoilMoistureP95      MetricKey = "soil_moisture_p95"
	KeyWaterOccurrence      MetricKey = "water_occurrence"
	KeyWaterOccurrenceMin   MetricKey = "water_occurrence_min"
	KeyWaterOccurrenceMax   MetricKey = "water_occurrence_max"
	KeySurfaceWaterArea     MetricKey = "surface_water_area"
	KeySurfaceWaterFraction MetricKey = "surface_water_fraction"
	KeyActiveFires          MetricKey = "active_fires"
	KeyForestLossTotal      MetricKey = "forest_loss_total"
	KeyForestLossFire       MetricKey = "forest_loss_fire"
	KeyForestLossOther      MetricKey = "forest_loss_other"
	KeyForestGain           MetricKey = "forest_gain"
	KeyGEDIAGB              MetricKey = "gedi_agb"
	KeyAGBProxyBias         MetricKey = "agb_proxy_bias"
	KeyCanopyHeight         MetricKey = "canopy_height"
	KeyLeafAreaIndex        MetricKey = "leaf_area_index"
	KeyHabitatIntegrity     MetricKey = "habitat_integrity"
	KeyHabitatStatus        MetricKey = "habitat_status"
)

// Precision classes.
const (
	PrecisionArea     = 2
	PrecisionIndex    = 3
	PrecisionPercent  = 1
	PrecisionCount    = 0
	PrecisionTextOnly = -1
)

// Definition describes how a metric is labelled and formatted.
type Definition struct {
	Key       MetricKey `json:"key"`
	Label     string    `json:"label"`
	Unit      string    `json:"unit"`
	Precision int       `json:"precision"`
	Section   string    `json:"section"`
}

// Text reports whether the metric carries a label instead of a number.
func (d Definition) Text() bool {
	return d.Precision == PrecisionTextOnly
}

// Report sections, in display order.
const (
	SectionCarbon     = "Carbon"
	SectionVegetation = "Vegetation"
	SectionClimate    = "Climate & Water"
	SectionForest     = "Forest Change"
	SectionHabitat    = "Habitat"
)

var catalogue = []Definition{
	{KeyFarmArea, "Farm Area", "ha", PrecisionArea, SectionCarbon},
	{KeyBaselineCarbon, "Baseline Carbon Stock", "tC/ha", PrecisionArea, SectionCarbon},
	{KeyCurrentCarbon, "Current Carbon Stock", "tC/ha", PrecisionArea, SectionCarbon},
	{KeySOCCarbon, "Soil Organic Carbon (0–30 cm)", "tC/ha", PrecisionArea, SectionCarbon},
	{KeyAGBCarbonCurrent, "AGB Carbon (proxy)", "tC/ha", PrecisionArea, SectionCarbon},
	{KeyNetSequesteredCarbon, "Net Carbon Change", "tC/ha", PrecisionArea, SectionCarbon},
	{KeyNetSequesteredCO2e, "Net CO₂ Sequestered", "tCO₂e/ha", PrecisionArea, SectionCarbon},
	{KeyTotalNetCO2e, "Total Net CO₂ Sequestered", "tCO₂e", PrecisionArea, SectionCarbon},
	{KeyCreditEstimate, "Est. tCO₂e/ha for Credits", "tCO₂e/ha", PrecisionArea, SectionCarbon},
	{KeyNDVIMean, "NDVI (current)", "index", PrecisionIndex, SectionVegetation},
	{KeyNDVIStdDev, "NDVI Std Dev", "index", PrecisionIndex, SectionVegetation},
	{KeyNDVIHealth, "NDVI Carbon Health Score", "%", PrecisionPercent, SectionVegetation},
	{KeyNDVIChange, "NDVI Change vs Baseline", "index", PrecisionIndex, SectionVegetation},
	{KeyPrecipitation, "Precipitation (window total)", "mm", PrecisionArea, SectionClimate},
	{KeySoilMoisture, "Soil Moisture", "m³/m³", PrecisionIndex, SectionClimate},
	{KeySoilMoistureP5, "Soil Moisture p5", "m³/m³", PrecisionIndex, SectionClimate},
	{KeySoilMoistureP95, "Soil Moisture p95", "m³/m³", PrecisionIndex, SectionClimate},
	{KeyWaterOccurrence, "JRC Water Occurrence", "%", PrecisionPercent, SectionClimate},
	{KeyWaterOccurrenceMin, "JRC Water Occurrence (min)", "%", PrecisionPercent, SectionClimate},
	{KeyWaterOccurrenceMax, "JRC Water Occurrence (max)", "%", PrecisionPercent, SectionClimate},
	{KeySurfaceWaterArea, "Detected Surface Water", "ha", PrecisionArea, SectionClimate},
	{KeySurfaceWaterFraction, "Surface Water Share of Region", "%", PrecisionPercent, SectionClimate},
	{KeyActiveFires, "Active Fires (buffer, 3 days)", "count", PrecisionCount, SectionForest},
	{KeyForestLossTotal, "Total Forest Loss", "ha", PrecisionArea, SectionForest},
	{KeyForestLossFire, "Fire-Related Forest Loss", "ha", PrecisionArea, SectionForest},
	{KeyForestLossOther, "Other Forest Loss", "ha", PrecisionArea, SectionForest},
	{KeyForestGain, "Forest Gain", "ha", PrecisionArea, SectionForest},
	{KeyGEDIAGB, "GEDI Aboveground Biomass", "t/ha", PrecisionArea, SectionHabitat},
	{KeyAGBProxyBias, "NDVI Proxy minus GEDI Biomass", "t/ha", PrecisionArea, SectionHabitat},
	{KeyCanopyHeight, "Canopy Height (GEDI rh100)", "m", PrecisionArea, SectionHabitat},
	{KeyLeafAreaIndex, "Leaf Area Index (MODIS)", "m²/m²", PrecisionArea, SectionHabitat},
	{KeyHabitatIntegrity, "Habitat Integrity Score", "%", PrecisionPercent, SectionHabitat},
	{KeyHabitatStatus, "Habitat Integrity Status", "", PrecisionTextOnly, SectionHabitat},
}

var byKey = func() map[MetricKey]Definition {
	m := make(map[MetricKey]Definition, len(catalogue))
	for _, d := range catalogue {
		m[d.Key] = d
	}
	return m
}()

// Catalogue returns every metric definition in display order.
func Catalogue() []Definition {
	out := make([]Definition, len(catalogue))
	copy(out, catalogue)
	return out
}

// Lookup returns the definition for key.
func Lookup(key MetricKey) (Definition, bool) {
	d, ok := byKey[key]
	return d, ok
}
