package soil

import (
	"errors"
	"fmt"
	"math"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/units"
)

var (
	ErrEmptyProfile         = errors.New("soil profile has no layers")
	ErrLayerGap             = errors.New("soil layers are not contiguous")
	ErrLayerThickness       = errors.New("soil layer thickness must be positive")
	ErrProfileDepthMismatch = errors.New("soil layer thicknesses do not sum to the profile depth")
	ErrMixedConventions     = errors.New("soil profile mixes carbon conventions")
)

const depthTolerance = 1e-9

// Layer is one depth interval of a soil profile. Depths are in meters.
type Layer struct {
	Name        string         `json:"name"`
	TopM        float64        `json:"top_m"`
	BottomM     float64        `json:"bottom_m"`
	OCD         band.Statistic `json:"ocd"`
	BulkDensity band.Statistic `json:"bulk_density"`
	// Convention is the dataset-version tag the raw values were read under.
	// Empty means the profile's convention.
	Convention string `json:"convention,omitempty"`
}

// Thickness returns the layer thickness in meters.
func (l Layer) Thickness() float64 {
	return l.BottomM - l.TopM
}

// Profile is an ordered, contiguous stack of layers covering NominalDepthM.
type Profile struct {
	Convention    string  `json:"convention"`
	NominalDepthM float64 `json:"nominal_depth_m"`
	Layers        []Layer `json:"layers"`
}

// Interval is a named depth range used to build standard profiles.
type Interval struct {
	Name    string
	TopM    float64
	BottomM float64
}

// Standard depth intervals.
var (
	Topsoil30 = []Interval{
		{"0-5cm", 0, 0.05},
		{"5-15cm", 0.05, 0.15},
		{"15-30cm", 0.15, 0.30},
	}
	Profile100 = []Interval{
		{"0-5cm", 0, 0.05},
		{"5-15cm", 0.05, 0.15},
		{"15-30cm", 0.15, 0.30},
		{"30-60cm", 0.30, 0.60},
		{"60-100cm", 0.60, 1.00},
	}
)

// Validate checks the profile shape. Any failure is a configuration error.
func (p Profile) Validate() error {
	if len(p.Layers) == 0 {
		return ErrEmptyProfile
	}
	if _, err := units.LookupConvention(p.Convention); err != nil {
		return err
	}

	prevBottom := 0.0
	total := 0.0
	for i, l := range p.Layers {
		if l.Convention != "" && l.Convention != p.Convention {
			return fmt.Errorf("%w: layer %s uses %q, profile uses %q", ErrMixedConventions, l.Name, l.Convention, p.Convention)
		}
		if l.Thickness() <= 0 {
			return fmt.Errorf("%w: layer %s", ErrLayerThickness, l.Name)
		}
		if math.Abs(l.TopM-prevBottom) > depthTolerance {
			return fmt.Errorf("%w: layer %d (%s) starts at %.3f m, previous ends at %.3f m", ErrLayerGap, i, l.Name, l.TopM, prevBottom)
		}
		prevBottom = l.BottomM
		total += l.Thickness()
	}
	if math.Abs(total-p.NominalDepthM) > depthTolerance {
		return fmt.Errorf("%w: layers sum to %.3f m, profile depth %.3f m", ErrProfileDepthMismatch, total, p.NominalDepthM)
	}
	return nil
}

// Split returns the sub-profile of layers [from, to).
func (p Profile) Split(from, to int) Profile {
	layers := p.Layers[from:to]
	sub := Profile{Convention: p.Convention, Layers: make([]Layer, len(layers))}
	for i, l := range layers {
		l.TopM -= layers[0].TopM
		l.BottomM -= layers[0].TopM
		sub.Layers[i] = l
		sub.NominalDepthM += l.Thickness()
	}
	return sub
}

// NewProfile assembles a profile from per-interval raw statistics keyed by
// interval name. A missing key becomes a no-data layer.
func NewProfile(convention string, intervals []Interval, ocd, bulkDensity map[string]band.Statistic) Profile {
	p := Profile{Convention: convention, Layers: make([]Layer, 0, len(intervals))}
	for _, iv := range intervals {
		l := Layer{Name: iv.Name, TopM: iv.TopM, BottomM: iv.BottomM}
		if s, ok := ocd[iv.Name]; ok {
			l.OCD = s
		} else {
			l.OCD = band.Missing("ocd_"+iv.Name, "not reduced")
		}
		if s, ok := bulkDensity[iv.Name]; ok {
			l.BulkDensity = s
		} else {
			l.BulkDensity = band.Missing("bdod_"+iv.Name, "not reduced")
		}
		p.Layers = append(p.Layers, l)
	}
	if n := len(intervals); n > 0 {
		p.NominalDepthM = intervals[n-1].BottomM - intervals[0].TopM
	}
	return p
}
