package adhere

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/geo/geom"
	"github.com/rotblauer/livetrack/params"
)

var origin = orb.Point{-81.2465922, 42.9814206}
var e = geom.NewEquirect(origin.Lat())

func offset(p orb.Point, east, north float64) orb.Point {
	return orb.Point{p.Lon() + east/e.MetersPerDegLng, p.Lat() + north/e.MetersPerDegLat}
}

var straight = orb.LineString{origin, offset(origin, 500, 0), offset(origin, 1000, 0)}
var destination = offset(origin, 1000, 0)

type fakeRouter struct {
	calls int
	err   error
}

func (f *fakeRouter) Route(ctx context.Context, start, end orb.Point) (orb.LineString, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return orb.LineString{start, end}, nil
}

type fakePublisher struct {
	routes []orb.LineString
}

func (f *fakePublisher) PublishRoute(ctx context.Context, line orb.LineString) error {
	f.routes = append(f.routes, line)
	return nil
}

var t0 = time.Date(2025, 5, 1, 14, 0, 0, 0, time.UTC)

func TestOnRoute(t *testing.T) {
	r := &fakeRouter{}
	m := NewMonitor(params.DefaultAdherenceConfig(), r, nil, straight, destination)
	res, err := m.Evaluate(context.Background(), t0, offset(origin, 200, 10), 90, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if res.OffRoute || r.calls != 0 {
		t.Errorf("res %+v calls %d", res, r.calls)
	}
}

func TestThrottle(t *testing.T) {
	cases := []struct {
		name  string
		gap   time.Duration
		calls int
	}{
		{"1s apart", time.Second, 1},
		{"5s apart", 5 * time.Second, 2},
		{"exactly the throttle", 4 * time.Second, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := &fakeRouter{err: errors.New("keep the route straight for this test")}
			m := NewMonitor(params.DefaultAdherenceConfig(), r, nil, straight, destination)
			off := offset(origin, 300, 40)
			m.Evaluate(context.Background(), t0, off, 90, 0.3)
			res, _ := m.Evaluate(context.Background(), t0.Add(c.gap), off, 90, 0.3)
			if r.calls != c.calls {
				t.Errorf("calls %d, want %d", r.calls, c.calls)
			}
			if c.calls == 1 && !res.Throttled {
				t.Error("expected throttled")
			}
		})
	}
}

func TestRerouteSuccess(t *testing.T) {
	r := &fakeRouter{}
	pub := &fakePublisher{}
	m := NewMonitor(params.DefaultAdherenceConfig(), r, pub, straight, destination)
	pos := offset(origin, 300, 40)
	res, err := m.Evaluate(context.Background(), t0, pos, 90, 0.3)
	if err != nil {
		t.Fatal(err)
	}
	if !res.OffRoute || !res.Rerouted {
		t.Errorf("res %+v", res)
	}
	if len(m.Route()) != 2 || m.Route()[0] != pos || m.Route()[1] != destination {
		t.Errorf("route %v", m.Route())
	}
	if len(pub.routes) != 1 {
		t.Errorf("published %d routes", len(pub.routes))
	}
	if !m.LastAttempt().Equal(t0) {
		t.Errorf("last attempt %v", m.LastAttempt())
	}
}

func TestRerouteFailureKeepsRoute(t *testing.T) {
	r := &fakeRouter{err: errors.New("osrm 503")}
	pub := &fakePublisher{}
	m := NewMonitor(params.DefaultAdherenceConfig(), r, pub, straight, destination)
	_, err := m.Evaluate(context.Background(), t0, offset(origin, 300, 40), 90, 0.3)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(m.Route()) != len(straight) {
		t.Errorf("route replaced: %v", m.Route())
	}
	if len(pub.routes) != 0 {
		t.Error("published after failure")
	}
}

func TestHeadingMismatchTriggers(t *testing.T) {
	r := &fakeRouter{}
	m := NewMonitor(params.DefaultAdherenceConfig(), r, nil, straight, destination)
	// On the line, but driving north.
	res, _ := m.Evaluate(context.Background(), t0, offset(origin, 300, 0), 0, 0.3)
	if !res.OffRoute || res.HeadingMismatch < 80 {
		t.Errorf("res %+v", res)
	}
	if r.calls != 1 {
		t.Errorf("calls %d", r.calls)
	}
}

func TestHeadingMismatchIndex(t *testing.T) {
	// East, then north.
	line := orb.LineString{origin, offset(origin, 500, 0), offset(origin, 500, 500)}
	cases := []struct {
		progress, heading, want float64
	}{
		{0, 90, 0},
		{0.49, 90, 0},
		{0.5, 0, 0}, // floor(0.5*2) = 1, the north leg
		{1, 0, 0},   // clamped to the last segment
		{-1, 90, 0}, // clamped to the first
		{0.2, 270, 180},
	}
	for _, c := range cases {
		got := HeadingMismatch(line, c.heading, c.progress)
		if d := got - c.want; d > 0.5 || d < -0.5 {
			t.Errorf("progress %v heading %v: got %v want %v", c.progress, c.heading, got, c.want)
		}
	}
}

func TestNoRouteIsOffRoute(t *testing.T) {
	r := &fakeRouter{}
	m := NewMonitor(nil, r, nil, nil, destination)
	res, err := m.Evaluate(context.Background(), t0, origin, 90, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Rerouted || len(m.Route()) != 2 {
		t.Errorf("res %+v route %v", res, m.Route())
	}
}
