package forest

import (
	"time"

	"github.com/paulmach/orb"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/pkg/geospatial"
)

// AlertLookbackDays is how far before the audit date fire alerts reach.
const AlertLookbackDays = 3

// Detection is one active-fire detection point.
type Detection struct {
	Lon        float64   `json:"lon"`
	Lat        float64   `json:"lat"`
	Acquired   time.Time `json:"acquired"`
	Confidence float64   `json:"confidence"`
}

// CountAlerts counts detections acquired in [from, to) that lie within
// bufferMeters of the region.
func CountAlerts(region *geospatial.Region, detections []Detection, from, to time.Time, bufferMeters float64) band.Statistic {
	if region == nil {
		return band.Missing("active_fires", "no region")
	}
	n := 0
	for _, d := range detections {
		if d.Acquired.Before(from) || !d.Acquired.Before(to) {
			continue
		}
		if region.DistanceMeters(orb.Point{d.Lon, d.Lat}) <= bufferMeters {
			n++
		}
	}
	return band.Of("active_fires", band.ReducerCount, float64(n), len(detections))
}
