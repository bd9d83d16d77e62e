/*
Package snap pulls a rendered point onto the active route, or onto the
nearest road when there is no usable route, if it is close enough.
*/
package snap

import (
	"context"
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/geo/geom"
	"github.com/rotblauer/livetrack/metrics"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/route"
	"log/slog"
	"time"
)

// NearestProvider answers nearest-road queries.
type NearestProvider interface {
	Nearest(ctx context.Context, p orb.Point) (road orb.Point, meters float64, err error)
}

// Result is a completed nearest-road query.
type Result struct {
	Query    orb.Point
	Road     orb.Point
	Distance float64
	Err      error
}

// Snapper is owned by one goroutine. Only its query goroutines
// run elsewhere, and they hand their answers back over Results.
type Snapper struct {
	Config *params.SnapConfig

	provider NearestProvider
	ctx      context.Context
	cancel   context.CancelFunc
	results  chan Result

	inFlight      bool
	lastQuery     time.Time
	correction    orb.Point // road - query, degrees
	hasCorrection bool

	logger *slog.Logger
}

// New returns a Snapper bound to ctx. provider may be nil, disabling nearest-road queries.
func New(ctx context.Context, config *params.SnapConfig, provider NearestProvider) *Snapper {
	if config == nil {
		config = params.DefaultSnapConfig()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Snapper{
		Config:   config,
		provider: provider,
		ctx:      ctx,
		cancel:   cancel,
		results:  make(chan Result, 1),
		logger:   slog.With("d", "snap"),
	}
}

// Snap returns p, or its snapped replacement.
func (s *Snapper) Snap(now time.Time, p orb.Point, param *route.Param) orb.Point {
	if param.Usable() {
		pr := param.ProjectPointToS(p)
		if pr.Distance <= s.Config.Threshold {
			return pr.Point
		}
		return p
	}
	if s.provider == nil {
		return p
	}
	s.maybeQuery(now, p)
	if !s.hasCorrection {
		return p
	}
	q := orb.Point{p.Lon() + s.correction.Lon(), p.Lat() + s.correction.Lat()}
	if geom.Haversine(p, q) <= s.Config.Threshold {
		return q
	}
	return p
}

func (s *Snapper) maybeQuery(now time.Time, p orb.Point) {
	if s.inFlight || s.ctx.Err() != nil {
		return
	}
	if !s.lastQuery.IsZero() && now.Sub(s.lastQuery) < s.Config.NearestInterval {
		return
	}
	s.inFlight = true
	s.lastQuery = now
	metrics.NearestQueries.Inc(1)
	go func(q orb.Point) {
		ctx, cancel := context.WithTimeout(s.ctx, s.Config.NearestTimeout)
		defer cancel()
		road, d, err := s.provider.Nearest(ctx, q)
		select {
		case s.results <- Result{Query: q, Road: road, Distance: d, Err: err}:
		case <-s.ctx.Done():
		}
	}(p)
}

// Results delivers completed queries. A nil Snapper never delivers.
func (s *Snapper) Results() <-chan Result {
	if s == nil {
		return nil
	}
	return s.results
}

// Accept applies a completed query.
// Failures are ignored; the previous correction, if any, stays.
func (s *Snapper) Accept(r Result) {
	s.inFlight = false
	if s.ctx.Err() != nil {
		return
	}
	if r.Err != nil {
		metrics.NearestFailures.Inc(1)
		s.logger.Debug("Nearest road query failed", "error", r.Err)
		return
	}
	s.correction = orb.Point{r.Road.Lon() - r.Query.Lon(), r.Road.Lat() - r.Query.Lat()}
	s.hasCorrection = true
}

// Close cancels any in-flight query. Late answers are discarded.
func (s *Snapper) Close() {
	s.cancel()
}
