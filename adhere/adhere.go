/*
Package adhere watches a publisher's position against the route it is
supposed to follow, and asks for a new route when it strays.
*/
package adhere

import (
	"context"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/common"
	"github.com/rotblauer/livetrack/geo/geom"
	"github.com/rotblauer/livetrack/metrics"
	"github.com/rotblauer/livetrack/params"
	"log/slog"
	"math"
	"time"
)

// Router turns a start and end into a road-following polyline.
type Router interface {
	Route(ctx context.Context, start, end orb.Point) (orb.LineString, error)
}

// RoutePublisher tells consumers about a replacement route.
type RoutePublisher interface {
	PublishRoute(ctx context.Context, line orb.LineString) error
}

type Result struct {
	DistanceToRoute float64 // meters, +Inf with no route
	HeadingMismatch float64 // degrees, [0,180]
	OffRoute        bool
	Throttled       bool
	Rerouted        bool
}

// Monitor holds the active route and the reroute cool-down.
// It is not safe for concurrent use; one publisher tick at a time.
type Monitor struct {
	Config *params.AdherenceConfig

	router    Router
	publisher RoutePublisher

	route       orb.LineString
	destination orb.Point
	lastAttempt time.Time

	logger *slog.Logger
}

// NewMonitor starts with initial as the active route.
// publisher may be nil.
func NewMonitor(config *params.AdherenceConfig, router Router, publisher RoutePublisher, initial orb.LineString, destination orb.Point) *Monitor {
	if config == nil {
		config = params.DefaultAdherenceConfig()
	}
	return &Monitor{
		Config:      config,
		router:      router,
		publisher:   publisher,
		route:       initial,
		destination: destination,
		logger:      slog.With("d", "adhere"),
	}
}

// Route is the active route, to be attached to outgoing samples.
func (m *Monitor) Route() orb.LineString {
	return m.route
}

func (m *Monitor) LastAttempt() time.Time {
	return m.lastAttempt
}

// HeadingMismatch compares heading with the route segment at the
// proportional index of progress, [0,1], along the path being walked.
func HeadingMismatch(line orb.LineString, heading, progress float64) float64 {
	n := len(line)
	if n < 2 || !common.IsFinite(heading) {
		return 0
	}
	idx := int(math.Floor(progress * float64(n-1)))
	if idx < 0 {
		idx = 0
	}
	if idx > n-2 {
		idx = n - 2
	}
	return geom.AngleDiff(heading, geom.Bearing(line[idx], line[idx+1]))
}

// Evaluate checks pos and heading against the active route at now.
// When off route and not throttled, it requests a new route from pos
// to the destination. A failed request keeps the previous route; the
// attempt still counts against the throttle.
func (m *Monitor) Evaluate(ctx context.Context, now time.Time, pos orb.Point, heading, progress float64) (Result, error) {
	res := Result{
		DistanceToRoute: geom.DistanceToPolyline(pos, m.route),
		HeadingMismatch: HeadingMismatch(m.route, heading, progress),
	}
	res.OffRoute = res.DistanceToRoute > m.Config.OffRouteMeters ||
		res.HeadingMismatch > m.Config.HeadingMismatchDeg
	if !res.OffRoute {
		return res, nil
	}
	if !m.lastAttempt.IsZero() && now.Sub(m.lastAttempt) < m.Config.Throttle {
		res.Throttled = true
		return res, nil
	}
	m.lastAttempt = now
	metrics.Reroutes.Inc(1)

	if m.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Config.Timeout)
		defer cancel()
	}
	line, err := m.router.Route(ctx, pos, m.destination)
	if err == nil && len(line) < 2 {
		err = fmt.Errorf("route has %d points", len(line))
	}
	if err != nil {
		metrics.RerouteFailures.Inc(1)
		m.logger.Warn("Reroute failed, keeping route", "error", err,
			"off", common.DecimalToFixed(res.DistanceToRoute, 1),
			"mismatch", common.DecimalToFixed(res.HeadingMismatch, 1))
		return res, fmt.Errorf("reroute: %w", err)
	}

	m.route = line
	res.Rerouted = true
	m.logger.Info("Rerouted", "points", len(line),
		"off", common.DecimalToFixed(res.DistanceToRoute, 1),
		"mismatch", common.DecimalToFixed(res.HeadingMismatch, 1))

	if m.publisher != nil {
		if err := m.publisher.PublishRoute(ctx, line); err != nil {
			m.logger.Warn("Publish reroute failed", "error", err)
		}
	}
	return res, nil
}
