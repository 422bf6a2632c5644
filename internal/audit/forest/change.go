// Package forest classifies forest change and scores habitat integrity.
package forest

import (
	"fmt"
	"math"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/units"
)

const (
	// LossEpoch is the year encoded as zero in the loss-year raster.
	LossEpoch = 2000

	// DefaultFireBufferMeters is the distance within which a fire detection
	// marks a loss pixel as possibly fire-related.
	DefaultFireBufferMeters = 90.0

	// DefaultCellSizeMeters is the Hansen pixel edge.
	DefaultCellSizeMeters = 30.0
)

// Grid is a row-major forest-change raster. LossYear holds years since
// LossEpoch, zero meaning no loss. Fire marks pixels containing an active fire
// detection and may extend beyond the region. InRegion, when set, limits the
// pixels counted toward areas. PixelArea, when set, overrides CellSizeM².
type Grid struct {
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CellSizeM float64   `json:"cell_size_m"`
	LossYear  []int     `json:"loss_year"`
	Gain      []bool    `json:"gain"`
	Fire      []bool    `json:"fire"`
	InRegion  []bool    `json:"in_region,omitempty"`
	PixelArea []float64 `json:"pixel_area,omitempty"`
}

// Validate checks that every layer matches the grid shape.
func (g *Grid) Validate() error {
	n := g.Width * g.Height
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("grid shape %dx%d is empty", g.Width, g.Height)
	}
	if g.CellSizeM <= 0 {
		return fmt.Errorf("grid cell size %g must be positive", g.CellSizeM)
	}
	if len(g.LossYear) != n {
		return fmt.Errorf("loss-year layer has %d pixels, want %d", len(g.LossYear), n)
	}
	for name, l := range map[string]int{"gain": len(g.Gain), "fire": len(g.Fire), "in-region": len(g.InRegion), "pixel-area": len(g.PixelArea)} {
		if l != 0 && l != n {
			return fmt.Errorf("%s layer has %d pixels, want %d", name, l, n)
		}
	}
	return nil
}

func (g *Grid) area(i int) float64 {
	if g.PixelArea != nil {
		return g.PixelArea[i]
	}
	return g.CellSizeM * g.CellSizeM
}

func (g *Grid) counted(i int) bool {
	return g.InRegion == nil || g.InRegion[i]
}

func (g *Grid) fire(i int) bool {
	return g.Fire != nil && g.Fire[i]
}

// ChangeAreas are the forest-change categories in hectares.
type ChangeAreas struct {
	ReferenceYear int            `json:"reference_year"`
	RecentLoss    band.Statistic `json:"recent_loss"`
	FireLoss      band.Statistic `json:"fire_loss"`
	OtherLoss     band.Statistic `json:"other_loss"`
	Gain          band.Statistic `json:"gain"`
}

// PartitionLoss splits recent loss, lossYear ≥ referenceYear − LossEpoch,
// into fire-related loss within bufferMeters of a fire pixel and other loss.
// The neighborhood is a square of half-width bufferMeters around each pixel,
// the same window as a square focal maximum.
func PartitionLoss(g *Grid, referenceYear int, bufferMeters float64) ChangeAreas {
	out := ChangeAreas{ReferenceYear: referenceYear}
	if g == nil {
		return out.fill(band.Missing, "no forest change grid")
	}
	if err := g.Validate(); err != nil {
		return out.fill(band.Invalid, err.Error())
	}

	threshold := referenceYear - LossEpoch
	offsets := neighborhood(bufferMeters, g.CellSizeM)

	var recent, fire, gain float64
	pixels := 0
	for i, year := range g.LossYear {
		if !g.counted(i) {
			continue
		}
		pixels++
		a := g.area(i)
		if g.Gain != nil && g.Gain[i] {
			gain += a
		}
		if year <= 0 || year < threshold {
			continue
		}
		recent += a
		if g.nearFire(i, offsets) {
			fire += a
		}
	}

	ha := units.SquareMetersToHectares
	out.RecentLoss = band.Of("forest_loss_total", band.ReducerSum, ha(recent), pixels)
	out.FireLoss = band.Of("forest_loss_fire", band.ReducerSum, ha(fire), pixels)
	out.OtherLoss = band.Of("forest_loss_other", band.ReducerSum, ha(recent-fire), pixels)
	out.Gain = band.Of("forest_gain", band.ReducerSum, ha(gain), pixels)
	return out
}

func (c ChangeAreas) fill(build func(name, reason string) band.Statistic, reason string) ChangeAreas {
	c.RecentLoss = build("forest_loss_total", reason)
	c.FireLoss = build("forest_loss_fire", reason)
	c.OtherLoss = build("forest_loss_other", reason)
	c.Gain = build("forest_gain", reason)
	return c
}

type offset struct{ dx, dy int }

// neighborhood lists the pixel offsets within radius along both axes.
func neighborhood(radius, cell float64) []offset {
	r := int(math.Floor(radius/cell + 1e-9))
	out := make([]offset, 0, (2*r+1)*(2*r+1))
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			out = append(out, offset{dx, dy})
		}
	}
	return out
}

func (g *Grid) nearFire(i int, offsets []offset) bool {
	if g.Fire == nil {
		return false
	}
	x, y := i%g.Width, i/g.Width
	for _, o := range offsets {
		nx, ny := x+o.dx, y+o.dy
		if nx < 0 || ny < 0 || nx >= g.Width || ny >= g.Height {
			continue
		}
		if g.fire(ny*g.Width + nx) {
			return true
		}
	}
	return false
}
