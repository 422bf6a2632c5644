package vegetation

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/units"
)

// Source names that the pipeline records on the report.
const (
	SourceSentinel2 = "sentinel-2"
	SourceVIIRS     = "viirs"
)

// DefaultCloudThreshold is the maximum scene cloud percentage kept.
const DefaultCloudThreshold = 10.0

// Scene is one optical acquisition over the region. NIR and Red hold raw
// digital numbers for the same pixel grid; NaN marks a masked pixel.
type Scene struct {
	ID           string    `json:"id"`
	Acquired     time.Time `json:"acquired"`
	CloudPercent float64   `json:"cloud_percent"`
	NIR          []float64 `json:"nir"`
	Red          []float64 `json:"red"`
}

// Options configures the composite.
type Options struct {
	// CloudThreshold drops scenes whose cloud percentage exceeds it.
	CloudThreshold float64 `json:"cloud_threshold"`
	// Composite is the temporal reducer across scenes: median or mean.
	Composite band.Reducer `json:"composite"`
	// Reflectance converts raw band values to surface reflectance.
	Reflectance units.Conversion `json:"-"`
}

// DefaultOptions returns the Sentinel-2 defaults.
func DefaultOptions() Options {
	return Options{
		CloudThreshold: DefaultCloudThreshold,
		Composite:      band.ReducerMedian,
		Reflectance:    units.Reflectance,
	}
}

// Result is a composited index reduced over the region.
type Result struct {
	Source         string         `json:"source"`
	Mean           band.Statistic `json:"mean"`
	StdDev         band.Statistic `json:"stddev"`
	Scenes         int            `json:"scenes"`
	EligibleScenes int            `json:"eligible_scenes"`
	Pixels         int            `json:"pixels"`
}

// OK reports whether the composite produced a usable mean.
func (r Result) OK() bool {
	return r.Mean.OK()
}

// Calculator composites normalized difference indices from optical scenes.
type Calculator struct {
	opts Options
}

// NewCalculator creates a calculator. Zero option fields take defaults.
func NewCalculator(opts Options) *Calculator {
	def := DefaultOptions()
	if opts.CloudThreshold <= 0 {
		opts.CloudThreshold = def.CloudThreshold
	}
	if opts.Composite == "" {
		opts.Composite = def.Composite
	}
	if opts.Reflectance.Factor == 0 {
		opts.Reflectance = def.Reflectance
	}
	return &Calculator{opts: opts}
}

// NormalizedDifference returns (a − b)/(a + b). It fails when the sum is zero.
func NormalizedDifference(a, b float64) (float64, bool) {
	sum := a + b
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, false
	}
	return (a - b) / sum, true
}

// Composite computes NDVI = (NIR − Red)/(NIR + Red) per eligible scene,
// composites per pixel across scenes and reduces to mean and standard
// deviation over the region.
func (c *Calculator) Composite(scenes []Scene) Result {
	res := Result{Source: SourceSentinel2, Scenes: len(scenes)}

	var eligible []Scene
	for _, s := range scenes {
		if s.CloudPercent <= c.opts.CloudThreshold {
			eligible = append(eligible, s)
		}
	}
	res.EligibleScenes = len(eligible)
	if len(eligible) == 0 {
		return res.missing("no scenes within cloud threshold")
	}

	pixels := len(eligible[0].NIR)
	perPixel := make([][]float64, pixels)
	for _, s := range eligible {
		if len(s.NIR) != pixels || len(s.Red) != pixels {
			return res.invalid(fmt.Sprintf("scene %s has a pixel grid mismatch", s.ID))
		}
		for i := 0; i < pixels; i++ {
			nir, ok := c.opts.Reflectance.Apply(s.NIR[i])
			if !ok {
				continue
			}
			red, ok := c.opts.Reflectance.Apply(s.Red[i])
			if !ok {
				continue
			}
			if v, ok := NormalizedDifference(nir, red); ok {
				perPixel[i] = append(perPixel[i], v)
			}
		}
	}

	composite := make([]float64, 0, pixels)
	for _, values := range perPixel {
		if len(values) == 0 {
			continue
		}
		v, err := reduceTemporal(values, c.opts.Composite)
		if err != nil {
			continue
		}
		composite = append(composite, v)
	}
	return res.reduce(composite)
}

// IndexScene is one acquisition of a pre-computed vegetation index, such as
// the VIIRS VNP13A1 NDVI product, with its per-pixel reliability flag.
type IndexScene struct {
	ID          string    `json:"id"`
	Acquired    time.Time `json:"acquired"`
	Index       []float64 `json:"index"`
	Reliability []int     `json:"reliability"`
}

// MaxReliability is the worst VIIRS pixel reliability accepted.
const MaxReliability = 1

// CompositeIndex builds the backup composite: reliable pixels only, raw
// values scaled by 0.0001, mean across scenes.
func CompositeIndex(scenes []IndexScene) Result {
	res := Result{Source: SourceVIIRS, Scenes: len(scenes), EligibleScenes: len(scenes)}
	if len(scenes) == 0 {
		return res.missing("no backup index scenes")
	}

	pixels := len(scenes[0].Index)
	perPixel := make([][]float64, pixels)
	for _, s := range scenes {
		if len(s.Index) != pixels || (s.Reliability != nil && len(s.Reliability) != pixels) {
			return res.invalid(fmt.Sprintf("scene %s has a pixel grid mismatch", s.ID))
		}
		for i, raw := range s.Index {
			if s.Reliability != nil && s.Reliability[i] > MaxReliability {
				continue
			}
			if v, ok := units.VIIRSIndex.Apply(raw); ok {
				perPixel[i] = append(perPixel[i], v)
			}
		}
	}

	composite := make([]float64, 0, pixels)
	for _, values := range perPixel {
		if len(values) == 0 {
			continue
		}
		if v, err := stats.Mean(values); err == nil {
			composite = append(composite, v)
		}
	}
	return res.reduce(composite)
}

// Select returns primary when it is usable, otherwise backup.
func Select(primary, backup Result) Result {
	if primary.OK() || !backup.OK() {
		return primary
	}
	return backup
}

// HealthScore rescales an index to [0, 100]. Negative indices score zero.
func HealthScore(index band.Statistic) band.Statistic {
	s := index.Map(func(v float64) float64 {
		return math.Min(100, math.Max(0, v*100))
	})
	s.Band = "ndvi_health"
	return s
}

// Change returns current − baseline mean index.
func Change(baseline, current Result) band.Statistic {
	b, okB := baseline.Mean.Float()
	c, okC := current.Mean.Float()
	if !okB || !okC {
		status, reason := band.Worst(baseline.Mean, current.Mean)
		return band.Statistic{Band: "ndvi_change", Status: status, Reason: reason}
	}
	return band.Of("ndvi_change", band.ReducerMean, c-b, current.Pixels)
}

func reduceTemporal(values []float64, reducer band.Reducer) (float64, error) {
	switch reducer {
	case band.ReducerMean:
		return stats.Mean(values)
	case band.ReducerMedian:
		return stats.Median(values)
	default:
		return 0, fmt.Errorf("unsupported composite reducer: %s", reducer)
	}
}

func (r Result) reduce(pixels []float64) Result {
	r.Pixels = len(pixels)
	if len(pixels) == 0 {
		return r.missing("no valid pixels in region")
	}
	mean, err := stats.Mean(pixels)
	if err != nil {
		return r.missing(err.Error())
	}
	sd, err := stats.StandardDeviationPopulation(pixels)
	if err != nil {
		return r.missing(err.Error())
	}
	r.Mean = band.Of("NDVI", band.ReducerMean, mean, len(pixels))
	r.StdDev = band.Of("NDVI", band.ReducerStdDev, sd, len(pixels))
	return r
}

func (r Result) missing(reason string) Result {
	r.Mean = band.Missing("NDVI", reason)
	r.StdDev = band.Missing("NDVI", reason)
	return r
}

func (r Result) invalid(reason string) Result {
	r.Mean = band.Invalid("NDVI", reason)
	r.StdDev = band.Invalid("NDVI", reason)
	return r
}
