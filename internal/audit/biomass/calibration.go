package biomass

import (
	"errors"
	"fmt"
	"math"
)

// MinCalibrationPlots is the fewest usable plots accepted for calibration.
const MinCalibrationPlots = 3

var ErrInsufficientPlots = errors.New("not enough field plots to calibrate")

// Plot is one ground-truth field measurement.
type Plot struct {
	ID  string  `json:"id"`
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
	// MeasuredAGB is the measured aboveground biomass in t/ha.
	MeasuredAGB float64 `json:"measured_agb"`
	// Index is the composited vegetation index sampled at the plot.
	Index               float64 `json:"index"`
	SoilCarbonGKg       float64 `json:"soil_carbon_g_kg,omitempty"`
	WaterContentPercent float64 `json:"water_content_percent,omitempty"`
}

func (p Plot) usable() bool {
	for _, v := range []float64{p.MeasuredAGB, p.Index} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return p.MeasuredAGB >= 0
}

// Calibrate rescales the proxy scale factor with the least-squares ratio
// through the origin between measured biomass and proxy biomass:
//
//	k = Σ(measured·predicted) / Σ(predicted²)
//
// Unusable plots are skipped. The proxy is returned unchanged with
// ErrInsufficientPlots when fewer than MinCalibrationPlots remain.
func (p Proxy) Calibrate(plots []Plot) (Proxy, error) {
	var num, den float64
	used := 0
	for _, plot := range plots {
		if !plot.usable() {
			continue
		}
		predicted := plot.Index * p.ScaleFactor
		num += plot.MeasuredAGB * predicted
		den += predicted * predicted
		used++
	}
	if used < MinCalibrationPlots {
		return p, fmt.Errorf("%w: %d usable of %d, need %d", ErrInsufficientPlots, used, len(plots), MinCalibrationPlots)
	}
	if den == 0 {
		return p, fmt.Errorf("%w: plots have no vegetation signal", ErrInsufficientPlots)
	}

	out := p
	out.ScaleFactor = p.ScaleFactor * num / den
	out.Plots = used
	if err := out.Validate(); err != nil {
		return p, err
	}
	return out, nil
}
