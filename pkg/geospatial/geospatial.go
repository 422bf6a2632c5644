package geospatial

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var (
	ErrRingNotClosed    = errors.New("polygon ring is not closed")
	ErrTooFewVertices   = errors.New("polygon ring needs at least three distinct vertices")
	ErrSelfIntersecting = errors.New("polygon ring is self-intersecting")
	ErrZeroArea         = errors.New("polygon has zero area")
	ErrNotPolygon       = errors.New("geometry is not a polygon")
	ErrHoleOutside      = errors.New("polygon hole extends outside the boundary")
)

// DefaultAlertBufferMeters is the proximity radius used for fire alerts.
const DefaultAlertBufferMeters = 5000.0

// rings below one square meter are treated as degenerate
const minAreaSquareMeters = 1.0

// Region is an audited property boundary. It is immutable once built.
type Region struct {
	id      string
	polygon orb.Polygon
	area    float64
}

// NewRegion builds a region from an ordered, closed ring of lon/lat pairs.
func NewRegion(id string, coords [][2]float64) (*Region, error) {
	ring := make(orb.Ring, len(coords))
	for i, c := range coords {
		ring[i] = orb.Point{c[0], c[1]}
	}
	return newRegion(id, orb.Polygon{ring})
}

// ParseGeoJSON parses a GeoJSON Feature or bare Polygon geometry into a region.
func ParseGeoJSON(id string, data []byte) (*Region, error) {
	var geometry orb.Geometry

	if feature, err := geojson.UnmarshalFeature(data); err == nil && feature.Geometry != nil {
		geometry = feature.Geometry
	} else {
		g, gerr := geojson.UnmarshalGeometry(data)
		if gerr != nil {
			return nil, fmt.Errorf("invalid GeoJSON: %w", gerr)
		}
		geometry = g.Geometry()
	}

	switch g := geometry.(type) {
	case orb.Polygon:
		return newRegion(id, g)
	case orb.MultiPolygon:
		if len(g) == 1 {
			return newRegion(id, g[0])
		}
	}
	return nil, ErrNotPolygon
}

func newRegion(id string, polygon orb.Polygon) (*Region, error) {
	if len(polygon) == 0 {
		return nil, ErrTooFewVertices
	}
	rings := make(orb.Polygon, len(polygon))
	for i, ring := range polygon {
		ring = dedupe(ring)
		if err := validateRing(ring); err != nil {
			if i > 0 {
				return nil, fmt.Errorf("hole %d: %w", i, err)
			}
			return nil, err
		}
		rings[i] = ring
	}
	for i, hole := range rings[1:] {
		if !ringWithin(hole, rings[0]) {
			return nil, fmt.Errorf("hole %d: %w", i+1, ErrHoleOutside)
		}
	}

	// geo.Area subtracts holes from the outer ring
	area := geo.Area(rings)
	if area < minAreaSquareMeters || math.IsNaN(area) {
		return nil, ErrZeroArea
	}

	return &Region{
		id:      id,
		polygon: rings,
		area:    area,
	}, nil
}

func validateRing(ring orb.Ring) error {
	if len(ring) < 4 || distinctVertices(ring) < 3 {
		return ErrTooFewVertices
	}
	if !ring.Closed() {
		return ErrRingNotClosed
	}
	if selfIntersects(ring) {
		return ErrSelfIntersecting
	}
	area := geo.Area(orb.Polygon{ring})
	if area < minAreaSquareMeters || math.IsNaN(area) {
		return ErrZeroArea
	}
	return nil
}

// dedupe drops consecutive repeated vertices and always returns a new ring.
func dedupe(ring orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(ring))
	for i, p := range ring {
		if i > 0 && p.Equal(ring[i-1]) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ringWithin reports whether every vertex of inner lies in or on outer and
// no edges cross.
func ringWithin(inner, outer orb.Ring) bool {
	for _, p := range inner {
		if !planar.RingContains(outer, p) {
			return false
		}
	}
	for i := 0; i < len(inner)-1; i++ {
		for j := 0; j < len(outer)-1; j++ {
			if segmentsCross(inner[i], inner[i+1], outer[j], outer[j+1]) {
				return false
			}
		}
	}
	return true
}

// ID returns the caller-supplied region identifier.
func (r *Region) ID() string {
	return r.id
}

// Polygon returns a copy of the boundary polygon.
func (r *Region) Polygon() orb.Polygon {
	return r.polygon.Clone()
}

// Coordinates returns the outer ring as lon/lat pairs.
func (r *Region) Coordinates() [][2]float64 {
	return pairs(r.polygon[0])
}

// Holes returns the interior rings as lon/lat pairs. Nil when there are none.
func (r *Region) Holes() [][][2]float64 {
	if len(r.polygon) < 2 {
		return nil
	}
	out := make([][][2]float64, 0, len(r.polygon)-1)
	for _, ring := range r.polygon[1:] {
		out = append(out, pairs(ring))
	}
	return out
}

func pairs(ring orb.Ring) [][2]float64 {
	out := make([][2]float64, len(ring))
	for i, p := range ring {
		out[i] = [2]float64{p[0], p[1]}
	}
	return out
}

// AreaSquareMeters returns the geodesic area of the region.
func (r *Region) AreaSquareMeters() float64 {
	return r.area
}

// AreaHectares returns the geodesic area of the region in hectares.
func (r *Region) AreaHectares() float64 {
	return ConvertToHectares(r.area)
}

// Centroid calculates the centroid of the region
func (r *Region) Centroid() orb.Point {
	c, _ := planar.CentroidArea(r.polygon)
	return c
}

// Bound returns the bounding box of the region.
func (r *Region) Bound() orb.Bound {
	return r.polygon.Bound()
}

// Contains reports whether the point falls inside the region.
func (r *Region) Contains(p orb.Point) bool {
	return planar.PolygonContains(r.polygon, p)
}

// DistanceMeters returns the distance from p to the region boundary, or zero
// when p lies inside the region. A point inside a hole is measured to the
// nearest ring.
func (r *Region) DistanceMeters(p orb.Point) float64 {
	if r.Contains(p) {
		return 0
	}
	best := math.Inf(1)
	for _, ring := range r.polygon {
		for i := 0; i < len(ring)-1; i++ {
			if d := segmentDistanceMeters(p, ring[i], ring[i+1]); d < best {
				best = d
			}
		}
	}
	return best
}

// Buffer approximates the region expanded by radius meters. The result is the
// convex hull of geodesic circles around every vertex, so it always covers
// the exact buffer.
func (r *Region) Buffer(radiusMeters float64) orb.Polygon {
	if radiusMeters <= 0 {
		return r.Polygon()
	}
	const steps = 32
	ring := r.polygon[0]
	points := make([]orb.Point, 0, len(ring)*steps)
	for _, v := range ring[:len(ring)-1] {
		for s := 0; s < steps; s++ {
			bearing := float64(s) * 360.0 / steps
			points = append(points, geo.PointAtBearingAndDistance(v, bearing, radiusMeters))
		}
	}
	return orb.Polygon{convexHull(points)}
}

// ConvertToHectares converts square meters to hectares
func ConvertToHectares(sqMeters float64) float64 {
	return sqMeters / 10000
}

func distinctVertices(ring orb.Ring) int {
	seen := make(map[orb.Point]struct{}, len(ring))
	for _, p := range ring {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// selfIntersects checks every pair of non-adjacent edges.
func selfIntersects(ring orb.Ring) bool {
	n := len(ring) - 1
	for i := 0; i < n; i++ {
		a1, a2 := ring[i], ring[i+1]
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsIntersect(a1, a2, ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

func orientation(p, q, r orb.Point) float64 {
	return (q[0]-p[0])*(r[1]-p[1]) - (q[1]-p[1])*(r[0]-p[0])
}

func onSegment(p, q, r orb.Point) bool {
	return math.Min(p[0], r[0]) <= q[0] && q[0] <= math.Max(p[0], r[0]) &&
		math.Min(p[1], r[1]) <= q[1] && q[1] <= math.Max(p[1], r[1])
}

// segmentsCross reports a proper crossing, ignoring touching endpoints and
// collinear overlap.
func segmentsCross(p1, p2, p3, p4 orb.Point) bool {
	d1 := orientation(p3, p4, p1)
	d2 := orientation(p3, p4, p2)
	d3 := orientation(p1, p2, p3)
	d4 := orientation(p1, p2, p4)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := orientation(p3, p4, p1)
	d2 := orientation(p3, p4, p2)
	d3 := orientation(p1, p2, p3)
	d4 := orientation(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(p3, p1, p4):
		return true
	case d2 == 0 && onSegment(p3, p2, p4):
		return true
	case d3 == 0 && onSegment(p1, p3, p2):
		return true
	case d4 == 0 && onSegment(p1, p4, p2):
		return true
	}
	return false
}

// segmentDistanceMeters projects onto a local equirectangular plane centred
// on p. Accurate to well under a meter at property scale.
func segmentDistanceMeters(p, a, b orb.Point) float64 {
	k := math.Pi / 180 * orb.EarthRadius
	cosLat := math.Cos(p[1] * math.Pi / 180)
	ax, ay := (a[0]-p[0])*k*cosLat, (a[1]-p[1])*k
	bx, by := (b[0]-p[0])*k*cosLat, (b[1]-p[1])*k

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	t := 0.0
	if lenSq > 0 {
		t = -(ax*dx + ay*dy) / lenSq
		t = math.Max(0, math.Min(1, t))
	}
	cx, cy := ax+t*dx, ay+t*dy
	return math.Hypot(cx, cy)
}

// convexHull uses Andrew's monotone chain and returns a closed ring.
func convexHull(points []orb.Point) orb.Ring {
	pts := make([]orb.Point, len(points))
	copy(pts, points)
	sortPoints(pts)

	hull := make([]orb.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && orientation(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && orientation(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return orb.Ring(hull)
}

func sortPoints(pts []orb.Point) {
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})
}
