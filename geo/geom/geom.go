/*
Package geom holds the small set of geodesic and local-planar helpers
the route, animate, snap and adhere packages share.

Points are orb.Points, ie. [lng, lat].
*/
package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/rotblauer/livetrack/common"
)

const (
	MetersPerDegLat   = 111132.0
	MetersPerDegLngEq = 111320.0
)

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// Bearing returns the initial bearing from a to b in degrees, [0,360).
func Bearing(a, b orb.Point) float64 {
	return NormalizeDegrees(geo.Bearing(a, b))
}

// NormalizeDegrees wraps d into [0,360).
func NormalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

// AngleDiff returns the smallest absolute difference between two headings, [0,180].
func AngleDiff(a, b float64) float64 {
	return math.Abs(math.Mod(math.Mod(a-b+540, 360)+360, 360) - 180)
}

// Valid is true for finite coordinates inside the lat/lng domain.
func Valid(p orb.Point) bool {
	return common.IsFinite(p.Lat()) && common.IsFinite(p.Lon()) &&
		p.Lat() >= -90 && p.Lat() <= 90 &&
		p.Lon() >= -180 && p.Lon() <= 180
}

// Equirect is a local equirectangular projection.
// Distances in projected space are meters, accurate over a few tens of kilometers
// around the reference latitude.
type Equirect struct {
	MetersPerDegLat float64
	MetersPerDegLng float64
}

func NewEquirect(refLat float64) Equirect {
	return Equirect{
		MetersPerDegLat: MetersPerDegLat,
		MetersPerDegLng: MetersPerDegLngEq * math.Cos(refLat*math.Pi/180),
	}
}

// ToXY projects p to meters. The returned point is planar, [x, y].
func (e Equirect) ToXY(p orb.Point) orb.Point {
	return orb.Point{p.Lon() * e.MetersPerDegLng, p.Lat() * e.MetersPerDegLat}
}

// ToLL inverts ToXY.
func (e Equirect) ToLL(xy orb.Point) orb.Point {
	return orb.Point{xy[0] / e.MetersPerDegLng, xy[1] / e.MetersPerDegLat}
}

// Dist returns the projected distance between two geographic points.
func (e Equirect) Dist(a, b orb.Point) float64 {
	return planar.Distance(e.ToXY(a), e.ToXY(b))
}

// DistanceToSegment returns the distance in meters from p to the segment ab,
// projecting around the segment's mean latitude.
func DistanceToSegment(p, a, b orb.Point) float64 {
	e := NewEquirect((a.Lat() + b.Lat()) / 2)
	pa, pb, pp := e.ToXY(a), e.ToXY(b), e.ToXY(p)
	dx, dy := pb[0]-pa[0], pb[1]-pa[1]
	if dx*dx+dy*dy <= 1e-12 {
		return planar.Distance(pp, pa)
	}
	return planar.DistanceFromSegment(pa, pb, pp)
}

// DistanceToPolyline returns the minimum distance in meters from p to any segment of line.
// Lines with fewer than 2 vertices are infinitely far away.
func DistanceToPolyline(p orb.Point, line orb.LineString) float64 {
	best := math.Inf(1)
	for i := 0; i < len(line)-1; i++ {
		if d := DistanceToSegment(p, line[i], line[i+1]); d < best {
			best = d
		}
	}
	return best
}

// Interpolate returns steps+1 points linearly spaced in lat/lng from a to b.
// Good enough for visualization over road-trip distances.
func Interpolate(a, b orb.Point, steps int) orb.LineString {
	if steps < 1 {
		steps = 1
	}
	out := make(orb.LineString, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		out = append(out, Lerp(a, b, t))
	}
	return out
}

// Lerp linearly interpolates between a and b in lat/lng.
func Lerp(a, b orb.Point, t float64) orb.Point {
	return orb.Point{
		a.Lon() + (b.Lon()-a.Lon())*t,
		a.Lat() + (b.Lat()-a.Lat())*t,
	}
}
