package revenue

import "sort"

// DefaultLandType is used when a request names an unknown land type.
const DefaultLandType = "forest"

// LandType is a land cover class with its published sequestration rate and
// the share of sequestered carbon held in each pool.
type LandType struct {
	Code string `json:"code"`
	Name string `json:"name"`
	// Rate is the annual sequestration in tCO₂e per hectare.
	Rate       float64 `json:"rate"`
	BiomassPct float64 `json:"biomass_pct"`
	SoilPct    float64 `json:"soil_pct"`
	LitterPct  float64 `json:"litter_pct"`
	order      int
}

// Registry resolves land type codes to rates.
type Registry struct {
	types    map[string]LandType
	fallback string
}

// NewRegistry returns a registry with the built-in land types.
func NewRegistry() *Registry {
	r := &Registry{types: make(map[string]LandType), fallback: DefaultLandType}
	r.registerLandTypes()
	return r
}

func (r *Registry) registerLandTypes() {
	r.Register(LandType{Code: "forest", Name: "Existing Forest", Rate: 1.8, BiomassPct: 75, SoilPct: 20, LitterPct: 5})
	r.Register(LandType{Code: "reforest", Name: "Reforestation", Rate: 9.2, BiomassPct: 65, SoilPct: 30, LitterPct: 5})
	r.Register(LandType{Code: "regenAg", Name: "Regenerative Agriculture", Rate: 1.3, BiomassPct: 15, SoilPct: 80, LitterPct: 5})
	r.Register(LandType{Code: "pasture", Name: "Managed Pasture", Rate: 0.9, BiomassPct: 25, SoilPct: 70, LitterPct: 5})
	r.Register(LandType{Code: "wetland", Name: "Wetland Restoration", Rate: 6.5, BiomassPct: 40, SoilPct: 50, LitterPct: 10})
}

// Register adds or replaces a land type.
func (r *Registry) Register(lt LandType) {
	if existing, ok := r.types[lt.Code]; ok {
		lt.order = existing.order
	} else {
		lt.order = len(r.types)
	}
	r.types[lt.Code] = lt
}

// Resolve returns the land type for code, or the fallback type with
// fellBack set when code is unknown.
func (r *Registry) Resolve(code string) (lt LandType, fellBack bool) {
	if lt, ok := r.types[code]; ok {
		return lt, false
	}
	return r.types[r.fallback], true
}

// List returns all land types in registration order.
func (r *Registry) List() []LandType {
	out := make([]LandType, 0, len(r.types))
	for _, lt := range r.types {
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}
