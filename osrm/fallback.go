package osrm

import (
	"context"
	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/adhere"
	"github.com/rotblauer/livetrack/geo/geom"
	"github.com/rotblauer/livetrack/metrics"
	"github.com/rotblauer/livetrack/params"
	"log/slog"
	"math"
)

// Fallback is a straight line from start to end with points about
// spacing meters apart, and never fewer than minPoints+1 points.
func Fallback(start, end orb.Point, spacing float64, minPoints int) orb.LineString {
	steps := minPoints
	if spacing > 0 {
		if n := int(math.Round(geom.Haversine(start, end) / spacing)); n > steps {
			steps = n
		}
	}
	return geom.Interpolate(start, end, steps)
}

// RouteOrFallback asks router for a route, falling back to a straight
// line when it fails. The bool reports whether the fallback was used.
func RouteOrFallback(ctx context.Context, router adhere.Router, start, end orb.Point, config *params.RoutingConfig) (orb.LineString, bool) {
	if config == nil {
		config = params.DefaultRoutingConfig()
	}
	if router != nil {
		line, err := router.Route(ctx, start, end)
		if err == nil && len(line) >= 2 {
			return line, false
		}
		slog.Warn("Routing failed, falling back to straight line", "error", err)
	}
	metrics.RoutingFallbacks.Inc(1)
	line := Fallback(start, end, config.FallbackSpacing, config.FallbackMinPoints)
	slog.Info("Straight-line route", "points", len(line),
		"length", humanize.SIWithDigits(geom.Haversine(start, end), 1, "m"))
	return line, true
}
