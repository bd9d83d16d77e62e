/*
Package route parameterizes a road polyline by arc length.

A Param is immutable once built. Route changes build a fresh Param
and swap the pointer, so a reader never sees cumulative lengths
that disagree with the vertices.
*/
package route

import (
	"errors"
	"fmt"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/geo/geom"
	"math"
)

// MinSegmentMeters is the shortest segment kept.
// Consecutive vertices closer than this are collapsed into one.
const MinSegmentMeters = 0.01

// minSegmentLen floors the divisor when interpolating inside a segment.
const minSegmentLen = 1e-6

var ErrDegenerateRoute = errors.New("degenerate route")

type Param struct {
	pts  orb.LineString
	xy   []orb.Point
	cum  []float64
	l    float64
	proj geom.Equirect
}

// Projection is the nearest point on a route to some query point.
type Projection struct {
	S        float64   // meters along the route
	Point    orb.Point // the projected point, on the route
	Segment  int       // index of the segment's first vertex
	T        float64   // fraction along the segment, [0,1]
	Distance float64   // meters from the query point to Point
}

// New builds the arc-length parameterization of line.
// The projection is centered on the first vertex's latitude.
func New(line orb.LineString) (*Param, error) {
	if len(line) < 2 {
		return nil, fmt.Errorf("%w: %d vertices", ErrDegenerateRoute, len(line))
	}
	for i, p := range line {
		if !geom.Valid(p) {
			return nil, fmt.Errorf("%w: invalid vertex %d %v", ErrDegenerateRoute, i, p)
		}
	}

	proj := geom.NewEquirect(line[0].Lat())
	p := &Param{
		pts:  orb.LineString{line[0]},
		xy:   []orb.Point{proj.ToXY(line[0])},
		cum:  []float64{0},
		proj: proj,
	}
	for _, v := range line[1:] {
		xy := proj.ToXY(v)
		last := p.xy[len(p.xy)-1]
		d := math.Hypot(xy[0]-last[0], xy[1]-last[1])
		if d < MinSegmentMeters {
			continue
		}
		p.pts = append(p.pts, v)
		p.xy = append(p.xy, xy)
		p.cum = append(p.cum, p.cum[len(p.cum)-1]+d)
	}
	p.l = p.cum[len(p.cum)-1]
	return p, nil
}

// Usable is false for nil params and routes which collapsed to a single point.
func (p *Param) Usable() bool {
	return p != nil && len(p.pts) >= 2 && p.l > 0
}

// Length is the total route length in meters.
func (p *Param) Length() float64 {
	return p.l
}

// Line returns the (collapsed) route vertices.
func (p *Param) Line() orb.LineString {
	return p.pts.Clone()
}

func (p *Param) Destination() orb.Point {
	return p.pts[len(p.pts)-1]
}

// segmentAt returns the index i of the segment [i, i+1] containing s,
// which must already be clamped to [0,L].
func (p *Param) segmentAt(s float64) int {
	i := 0
	for i < len(p.cum)-2 && p.cum[i+1] < s {
		i++
	}
	return i
}

func (p *Param) clampS(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > p.l {
		return p.l
	}
	return s
}

// PositionAtS returns the point s meters along the route.
// s is clamped to [0,L]. Degenerate routes return the first vertex.
func (p *Param) PositionAtS(s float64) orb.Point {
	if p.l <= 0 || len(p.pts) < 2 {
		return p.pts[0]
	}
	s = p.clampS(s)
	i := p.segmentAt(s)
	seg := math.Max(p.cum[i+1]-p.cum[i], minSegmentLen)
	t := (s - p.cum[i]) / seg
	if t > 1 {
		t = 1
	}
	return geom.Lerp(p.pts[i], p.pts[i+1], t)
}

// ProjectPointToS finds the nearest point on the route to pt.
// Ties go to the earliest segment.
func (p *Param) ProjectPointToS(pt orb.Point) Projection {
	q := p.proj.ToXY(pt)
	if len(p.pts) < 2 {
		a := p.xy[0]
		return Projection{
			Point:    p.pts[0],
			Distance: math.Hypot(q[0]-a[0], q[1]-a[1]),
		}
	}

	best := Projection{Distance: math.Inf(1)}
	bestD2 := math.Inf(1)
	for i := 0; i < len(p.xy)-1; i++ {
		a, b := p.xy[i], p.xy[i+1]
		vx, vy := b[0]-a[0], b[1]-a[1]
		wx, wy := q[0]-a[0], q[1]-a[1]
		vv := vx*vx + vy*vy
		t := 0.0
		if vv > 0 {
			t = (wx*vx + wy*vy) / vv
			t = math.Max(0, math.Min(1, t))
		}
		dx, dy := q[0]-(a[0]+t*vx), q[1]-(a[1]+t*vy)
		if d2 := dx*dx + dy*dy; d2 < bestD2 {
			bestD2 = d2
			best.Segment = i
			best.T = t
		}
	}
	i := best.Segment
	best.S = p.cum[i] + best.T*(p.cum[i+1]-p.cum[i])
	best.Point = geom.Lerp(p.pts[i], p.pts[i+1], best.T)
	best.Distance = math.Sqrt(bestD2)
	return best
}

// BearingAtS is the bearing of the segment containing s, in degrees [0,360).
func (p *Param) BearingAtS(s float64) float64 {
	if len(p.pts) < 2 {
		return 0
	}
	i := p.segmentAt(p.clampS(s))
	return geom.Bearing(p.pts[i], p.pts[i+1])
}

// RemainingFrom returns the route ahead of s: the point at s
// followed by every vertex strictly beyond it.
func (p *Param) RemainingFrom(s float64) orb.LineString {
	s = p.clampS(s)
	out := orb.LineString{p.PositionAtS(s)}
	for i, c := range p.cum {
		if c > s {
			out = append(out, p.pts[i])
		}
	}
	return out
}

// Fingerprint hashes a polyline's vertices.
// Equal polylines have equal fingerprints. An empty line hashes to 0.
func Fingerprint(line orb.LineString) uint64 {
	if len(line) == 0 {
		return 0
	}
	hash, err := hashstructure.Hash([]orb.Point(line), hashstructure.FormatV2, nil)
	if err != nil {
		return 0
	}
	return hash
}
