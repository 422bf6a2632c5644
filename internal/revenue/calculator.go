// Package revenue is the standalone landowner estimator: land area, a
// per-land-type sequestration rate, project duration and carbon price give
// sequestration, revenue and illustrative equivalencies.
package revenue

import (
	"errors"
	"fmt"
	"math"

	"co2nex/carbon-audit/audit-backend/internal/audit/units"
)

// AreaUnit is the unit of the requested land area.
type AreaUnit string

const (
	UnitHectares AreaUnit = "ha"
	UnitAcres    AreaUnit = "acres"
)

var (
	ErrInvalidArea     = errors.New("land area must be a positive number")
	ErrInvalidDuration = errors.New("duration must be zero or more years")
	ErrInvalidPrice    = errors.New("price per tonne must be zero or more")
	ErrInvalidAreaUnit = errors.New("area unit must be ha or acres")
)

// Published equivalency constants. They are illustrative, not authoritative.
const (
	TonnesPerCarYear     = 4.6  // tCO₂e emitted by a passenger car per year
	TonnesPerTreeSeeding = 0.06 // tCO₂e absorbed by one tree seedling over 10 years
	PoundsCoalPerTonne   = 2000 / 2.26
	TonnesPerHomeYear    = 7.15 // tCO₂e from one home's annual energy use

	Disclaimer = "Estimates use fixed published sequestration rates and equivalency factors; they are illustrative and not a verified credit issuance."
)

// Request is one estimate request.
type Request struct {
	LandArea      float64  `json:"land_area"`
	AreaUnit      AreaUnit `json:"area_unit"`
	LandType      string   `json:"land_type"`
	DurationYears float64  `json:"duration_years"`
	PricePerTonne float64  `json:"price_per_tonne"`
}

// Pools splits total sequestration across carbon pools, in tCO₂e.
type Pools struct {
	Biomass float64 `json:"biomass"`
	Soil    float64 `json:"soil"`
	Litter  float64 `json:"litter"`
}

// Equivalencies restate sequestration in everyday terms.
type Equivalencies struct {
	CarsRemoved  int64 `json:"cars_removed"`
	TreesPlanted int64 `json:"trees_planted"`
	CoalAvoided  int64 `json:"coal_avoided_lbs"`
	HomesPowered int64 `json:"homes_powered"`
}

// CalculationStep records one step of the estimate.
type CalculationStep struct {
	StepNumber  int                    `json:"step_number"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Formula     string                 `json:"formula"`
	Inputs      map[string]interface{} `json:"inputs"`
	Outputs     map[string]interface{} `json:"outputs"`
}

// Estimate is the calculator result.
type Estimate struct {
	AreaHectares        float64           `json:"area_hectares"`
	LandType            LandType          `json:"land_type"`
	LandTypeFallback    bool              `json:"land_type_fallback"`
	AnnualSequestration float64           `json:"annual_sequestration"`
	TotalSequestration  float64           `json:"total_sequestration"`
	AnnualRevenue       float64           `json:"annual_revenue"`
	TotalRevenue        float64           `json:"total_revenue"`
	Pools               Pools             `json:"pools"`
	Equivalencies       Equivalencies     `json:"equivalencies"`
	CalculationSteps    []CalculationStep `json:"calculation_steps"`
	Disclaimer          string            `json:"disclaimer"`
}

// Calculator computes estimates against a land type registry.
type Calculator struct {
	registry *Registry
}

// NewCalculator creates a calculator. A nil registry uses the built-ins.
func NewCalculator(registry *Registry) *Calculator {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Calculator{registry: registry}
}

// LandTypes lists the supported land types.
func (c *Calculator) LandTypes() []LandType {
	return c.registry.List()
}

// Validate checks a request before any computation.
func (c *Calculator) Validate(req Request) error {
	if !finite(req.LandArea) || req.LandArea <= 0 {
		return fmt.Errorf("%w: got %g", ErrInvalidArea, req.LandArea)
	}
	switch req.AreaUnit {
	case "", UnitHectares, UnitAcres:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidAreaUnit, req.AreaUnit)
	}
	if !finite(req.DurationYears) || req.DurationYears < 0 {
		return fmt.Errorf("%w: got %g", ErrInvalidDuration, req.DurationYears)
	}
	if !finite(req.PricePerTonne) || req.PricePerTonne < 0 {
		return fmt.Errorf("%w: got %g", ErrInvalidPrice, req.PricePerTonne)
	}
	return nil
}

// Estimate computes sequestration and revenue. An unknown land type falls
// back to the forest rate and sets LandTypeFallback.
func (c *Calculator) Estimate(req Request) (*Estimate, error) {
	if err := c.Validate(req); err != nil {
		return nil, err
	}

	steps := make([]CalculationStep, 0, 4)
	addStep := func(name, desc, formula string, inputs, outputs map[string]interface{}) {
		steps = append(steps, CalculationStep{
			StepNumber:  len(steps) + 1,
			Name:        name,
			Description: desc,
			Formula:     formula,
			Inputs:      inputs,
			Outputs:     outputs,
		})
	}

	areaHa := req.LandArea
	if req.AreaUnit == UnitAcres {
		areaHa = units.AcresToHectares(req.LandArea)
	}
	addStep("Area normalization", "Convert land area to hectares", "acres × 0.404686",
		map[string]interface{}{"land_area": req.LandArea, "area_unit": unitOrDefault(req.AreaUnit)},
		map[string]interface{}{"area_ha": areaHa})

	lt, fellBack := c.registry.Resolve(req.LandType)
	annual := areaHa * lt.Rate
	total := annual * req.DurationYears
	addStep("Sequestration", fmt.Sprintf("Apply the %s rate", lt.Name), "area_ha × rate × years",
		map[string]interface{}{"rate": lt.Rate, "duration_years": req.DurationYears},
		map[string]interface{}{"annual": annual, "total": total})

	annualRev := annual * req.PricePerTonne
	totalRev := total * req.PricePerTonne
	addStep("Revenue", "Price sequestration at the requested rate", "tonnes × price",
		map[string]interface{}{"price_per_tonne": req.PricePerTonne},
		map[string]interface{}{"annual_revenue": annualRev, "total_revenue": totalRev})

	pools := Pools{
		Biomass: total * lt.BiomassPct / 100,
		Soil:    total * lt.SoilPct / 100,
		Litter:  total * lt.LitterPct / 100,
	}
	eq := Equivalencies{
		CarsRemoved:  round(annual / TonnesPerCarYear),
		TreesPlanted: round(total / TonnesPerTreeSeeding),
		CoalAvoided:  round(total * PoundsCoalPerTonne),
		HomesPowered: round(annual / TonnesPerHomeYear),
	}
	addStep("Equivalencies", "Restate sequestration with published factors", "annual ÷ 4.6, total ÷ 0.06, total × 2000/2.26, annual ÷ 7.15",
		nil,
		map[string]interface{}{"cars": eq.CarsRemoved, "trees": eq.TreesPlanted, "coal_lbs": eq.CoalAvoided, "homes": eq.HomesPowered})

	return &Estimate{
		AreaHectares:        areaHa,
		LandType:            lt,
		LandTypeFallback:    fellBack,
		AnnualSequestration: annual,
		TotalSequestration:  total,
		AnnualRevenue:       annualRev,
		TotalRevenue:        totalRev,
		Pools:               pools,
		Equivalencies:       eq,
		CalculationSteps:    steps,
		Disclaimer:          Disclaimer,
	}, nil
}

func unitOrDefault(u AreaUnit) AreaUnit {
	if u == "" {
		return UnitHectares
	}
	return u
}

func round(v float64) int64 {
	return int64(math.Round(v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
