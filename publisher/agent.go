/*
Package publisher drives a simulated vehicle along a road route and
publishes its samples, rerouting when it strays from the route it shows.
*/
package publisher

import (
	"context"
	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/adhere"
	"github.com/rotblauer/livetrack/common"
	"github.com/rotblauer/livetrack/geo/geom"
	"github.com/rotblauer/livetrack/osrm"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/types/sample"
	"log/slog"
	"math"
	"time"
)

// Publisher is the push channel, as seen by the agent.
type Publisher interface {
	adhere.RoutePublisher
	PublishSample(ctx context.Context, s sample.Sample) error
}

type Agent struct {
	Config    *params.PublisherConfig
	Routing   *params.RoutingConfig
	Adherence *params.AdherenceConfig

	publisher Publisher
	router    adhere.Router

	// Now and Sleep are the agent's clock.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	logger *slog.Logger
}

// NewAgent returns an agent publishing to publisher. router may be nil,
// in which case every route is a straight line.
func NewAgent(config *params.PublisherConfig, publisher Publisher, router adhere.Router) *Agent {
	if config == nil {
		config = params.DefaultPublisherConfig()
	}
	return &Agent{
		Config:    config,
		Routing:   params.DefaultRoutingConfig(),
		Adherence: params.DefaultAdherenceConfig(),
		publisher: publisher,
		router:    router,
		Now:       time.Now,
		Sleep:     sleep,
		logger:    slog.With("d", "publish", "vehicle", config.Vehicle),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (a *Agent) routeEnd() orb.Point {
	if a.Config.RouteEnd == (orb.Point{}) {
		return a.Config.MoveEnd
	}
	return a.Config.RouteEnd
}

func (a *Agent) speed() float64 {
	return math.Max(1, a.Config.Speed)
}

// Run drives the vehicle until ctx is done or, without Loop, the path ends.
// The path the vehicle drives and the route it displays are built once;
// the displayed route may point somewhere else entirely.
func (a *Agent) Run(ctx context.Context) error {
	forward, _ := osrm.RouteOrFallback(ctx, a.router, a.Config.Start, a.Config.MoveEnd, a.Routing)
	display := forward
	if a.routeEnd() != a.Config.MoveEnd {
		display, _ = osrm.RouteOrFallback(ctx, a.router, a.Config.Start, a.routeEnd(), a.Routing)
	}
	backward := forward.Clone()
	backward.Reverse()

	a.logger.Info("Publishing", "server", a.Config.Server,
		"path.points", len(forward), "route.points", len(display),
		"speed", humanize.Ftoa(common.DecimalToFixed(a.speed()*3.6, 1))+" km/h",
		"loop", a.Config.Loop)

	if err := a.publisher.PublishRoute(ctx, display); err != nil {
		a.logger.Warn("Initial route publish failed", "error", err)
	}

	for trip := 1; ; trip++ {
		a.logger.Info("Trip forward", "trip", trip)
		if err := a.Leg(ctx, forward, display); err != nil {
			return err
		}
		if !a.Config.Loop {
			return nil
		}
		a.logger.Info("Trip backward", "trip", trip)
		if err := a.Leg(ctx, backward, display); err != nil {
			return err
		}
	}
}

// Leg walks path once, starting from the initial displayed route.
// Each point is checked against the route, published, and followed
// by a wait long enough to cover the next segment at speed.
func (a *Agent) Leg(ctx context.Context, path, initial orb.LineString) error {
	monitor := adhere.NewMonitor(a.Adherence, a.router, a.publisher, initial.Clone(), a.routeEnd())
	for i := range path {
		if err := ctx.Err(); err != nil {
			return err
		}
		here := path[i]
		next := path[min(i+1, len(path)-1)]
		segDist := math.Max(1, geom.Haversine(here, next))
		heading := geom.Bearing(here, next)
		if i == len(path)-1 && i > 0 {
			// Keep facing the way we arrived.
			heading = geom.Bearing(path[i-1], here)
		}
		wait := time.Duration(math.Max(a.Config.MinTick.Seconds(), segDist/a.speed()) * float64(time.Second))

		res, err := monitor.Evaluate(ctx, a.Now(), here, heading, float64(i)/float64(len(path)))
		if err != nil {
			a.logger.Debug("Adherence", "error", err)
		} else if res.Rerouted {
			a.logger.Info("Published reroute", "points", len(monitor.Route()))
		}

		s := sample.Sample{
			Point:    here,
			Speed:    sample.Float(a.speed()),
			Heading:  sample.Float(heading),
			Accuracy: sample.Float(a.Config.Accuracy),
			Time:     a.Now().UTC(),
			HasRoute: true,
			Route:    monitor.Route(),
			Status:   sample.StatusOnline,
		}
		if err := a.publisher.PublishSample(ctx, s); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Error("Ping failed", "error", err)
		}
		if err := a.Sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}
