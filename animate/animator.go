/*
Package animate turns a sparse sample feed into a smooth, continuously
advancing position along a route.

An Animator holds the animation state for one vehicle. Samples set
targets (Observe); the frame clock moves the rendered head toward
them (Advance). Both are expected to run on one goroutine; see Loop.
*/
package animate

import (
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/common"
	"github.com/rotblauer/livetrack/conceptual"
	"github.com/rotblauer/livetrack/geo/geom"
	"github.com/rotblauer/livetrack/metrics"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/route"
	"github.com/rotblauer/livetrack/types/sample"
	"log/slog"
	"math"
	"time"
)

// Timeline is the animator's view of ingested samples.
type Timeline interface {
	// ServerNow places a local time on the publisher's clock.
	ServerNow(local time.Time) time.Time
	// Interpolate returns the position at a publisher time.
	Interpolate(t time.Time) (orb.Point, bool)
}

type sPoint struct {
	s float64
	t time.Time
}

type Animator struct {
	Config  *params.AnimatorConfig
	Vehicle conceptual.VehicleID

	timeline Timeline
	logger   *slog.Logger

	param     *route.Param
	routeHash uint64

	currentS       float64
	desiredS       float64
	desiredTargetS float64
	pingS          float64
	targetSpeed    float64
	emaSpeed       float64
	speedPrimed    bool
	stationary     bool
	seated         bool

	history []sPoint
	prevS   float64
	prevT   time.Time
	hasPrev bool

	blend *TeleportBlend

	rendered    orb.Point
	hasRendered bool
	latest      sample.Sample
	hasLatest   bool
	offline     bool

	lastFrame time.Time
}

// NewAnimator returns an animator with no route and no samples.
// timeline may be nil, in which case the latest sample is shown
// whenever there is no usable route and samples are never stale.
func NewAnimator(config *params.AnimatorConfig, vehicle conceptual.VehicleID, timeline Timeline) *Animator {
	if config == nil {
		config = params.DefaultAnimatorConfig()
	}
	return &Animator{
		Config:   config,
		Vehicle:  vehicle,
		timeline: timeline,
		logger:   slog.With("d", "animate", "vehicle", vehicle),
	}
}

// State is a read-only copy of the animation state.
type State struct {
	CurrentS       float64
	DesiredS       float64
	DesiredTargetS float64
	PingS          float64
	TargetSpeed    float64
	EMASpeed       float64
	Stationary     bool
	Blend          *TeleportBlend
	Route          *route.Param
}

func (a *Animator) State() State {
	st := State{
		CurrentS:       a.currentS,
		DesiredS:       a.desiredS,
		DesiredTargetS: a.desiredTargetS,
		PingS:          a.pingS,
		TargetSpeed:    a.targetSpeed,
		EMASpeed:       a.emaSpeed,
		Stationary:     a.stationary,
		Route:          a.param,
	}
	if a.blend != nil {
		b := *a.blend
		st.Blend = &b
	}
	return st
}

// Param returns the active route parameterization, possibly nil.
func (a *Animator) Param() *route.Param {
	return a.param
}

// animating is true when frames are placed along the route.
func (a *Animator) animating() bool {
	return a.param.Usable() && a.seated
}

// head is the best known current position: the last rendered point,
// else the latest raw sample.
func (a *Animator) head() (orb.Point, bool) {
	if a.hasRendered {
		return a.rendered, true
	}
	if a.hasLatest {
		return a.latest.Point, true
	}
	return orb.Point{}, false
}

// SetRoute replaces the active route.
// The new parameterization is built before anything is swapped.
// The current head is re-projected onto the new route and the
// rendered point blends across to it.
// A nil or degenerate route disables path animation.
func (a *Animator) SetRoute(line orb.LineString, now time.Time) {
	a.routeHash = route.Fingerprint(line)

	var next *route.Param
	if len(line) > 0 {
		p, err := route.New(line)
		if err != nil {
			a.logger.Warn("Unusable route, showing raw samples", "error", err)
		} else if p.Usable() {
			next = p
		}
	}

	a.param = next
	a.history = a.history[:0]
	a.hasPrev = false
	metrics.RouteSwaps.Inc(1)

	if next == nil {
		a.seated = false
		a.blend = nil
		return
	}

	// Nothing rendered yet: the next sample seats the head.
	if !a.hasRendered {
		a.seated = false
		return
	}
	from := a.rendered
	pr := next.ProjectPointToS(from)
	a.currentS, a.desiredS, a.desiredTargetS, a.pingS = pr.S, pr.S, pr.S, pr.S
	a.seated = true

	if d := geom.Haversine(from, pr.Point); d >= a.Config.RouteBlend.MinDistance {
		a.blend = NewTeleportBlend(from, pr.Point, now, a.Config.RouteBlend)
		a.logger.Debug("Route replaced, blending", "meters", common.DecimalToFixed(d, 1),
			"duration", a.blend.Duration, "vertices", len(next.Line()))
	}
}

// ReplaceRoute applies line only if it differs from the active route.
func (a *Animator) ReplaceRoute(line orb.LineString, now time.Time) bool {
	if route.Fingerprint(line) == a.routeHash {
		return false
	}
	a.SetRoute(line, now)
	return true
}

// SetOffline marks the publisher's session as ended.
func (a *Animator) SetOffline() {
	a.offline = true
}

// Observe sets targets from a new sample received at now.
// Only the newest sample should be observed.
func (a *Animator) Observe(s sample.Sample, now time.Time) {
	a.latest = s
	a.hasLatest = true
	a.offline = false

	if s.HasRoute {
		a.ReplaceRoute(s.Route, now)
	}
	if !a.param.Usable() {
		return
	}

	cfg := a.Config
	L := a.param.Length()
	sPing := a.param.ProjectPointToS(s.Point).S
	a.pingS = sPing

	a.observeSpeed(s, sPing)
	a.observeStationary(sPing, s.Time)

	if a.stationary {
		a.targetSpeed = 0
		a.desiredTargetS = sPing
	} else {
		a.targetSpeed = a.emaSpeed
		a.desiredTargetS = common.Clamp(sPing+a.emaSpeed*cfg.Lead.Seconds(), 0, L)
	}

	if !a.seated {
		a.currentS, a.desiredS, a.desiredTargetS = sPing, sPing, sPing
		a.seated = true
		return
	}
	if math.Abs(a.desiredTargetS-a.currentS) > cfg.JumpThreshold {
		a.jump(now)
	}
}

func (a *Animator) observeSpeed(s sample.Sample, sPing float64) {
	cfg := a.Config
	var v float64
	var ok bool
	if s.Speed != nil {
		v, ok = common.Clamp(*s.Speed, 0, common.SpeedOfPlausibleVehicleMax), true
	}
	if !a.hasPrev {
		a.prevS, a.prevT, a.hasPrev = sPing, s.Time, true
	} else if dt := s.Time.Sub(a.prevT); dt > 0 && dt >= cfg.MinSpeedEstimateInterval {
		if !ok {
			v = common.Clamp((sPing-a.prevS)/dt.Seconds(), 0, common.SpeedOfPlausibleVehicleMax)
			ok = true
		}
		a.prevS, a.prevT = sPing, s.Time
	}
	if !ok {
		return
	}
	if !a.speedPrimed {
		a.emaSpeed = v
		a.speedPrimed = true
		return
	}
	a.emaSpeed = (1-cfg.SpeedEMAAlpha)*a.emaSpeed + cfg.SpeedEMAAlpha*v
}

func (a *Animator) observeStationary(sPing float64, t time.Time) {
	cfg := a.Config.Stationary
	a.history = append(a.history, sPoint{s: sPing, t: t})

	keep := t.Add(-cfg.History)
	i := 0
	for i < len(a.history) && a.history[i].t.Before(keep) {
		i++
	}
	a.history = a.history[i:]

	window := t.Add(-cfg.DisplacementWindow)
	disp := 0.0
	for _, h := range a.history {
		if h.t.Before(window) {
			continue
		}
		disp = math.Max(disp, math.Abs(sPing-h.s))
	}
	was := a.stationary
	a.stationary = a.emaSpeed < cfg.SpeedThreshold && disp < cfg.DisplacementThreshold
	if was != a.stationary {
		a.logger.Debug("Stationary changed", "stationary", a.stationary,
			"speed", common.DecimalToFixed(a.emaSpeed, 2), "displacement", common.DecimalToFixed(disp, 1))
	}
}

// Advance steps the animation to now and renders a frame.
func (a *Animator) Advance(now time.Time) Frame {
	cfg := a.Config
	dt := cfg.FrameInterval.Seconds()
	if !a.lastFrame.IsZero() {
		dt = now.Sub(a.lastFrame).Seconds()
	}
	dt = common.Clamp(dt, cfg.MinFrameDelta.Seconds(), cfg.MaxFrameDelta.Seconds())
	a.lastFrame = now
	metrics.Frames.Mark(1)

	f := Frame{Vehicle: a.Vehicle, Time: now, StatusLabel: a.status(now)}

	if !a.animating() {
		a.blend = nil
		p, ok := a.fallback(now)
		if !ok {
			return f
		}
		a.rendered, a.hasRendered = p, true
		f.SetPosition(p)
		if a.latest.Heading != nil {
			h := *a.latest.Heading
			f.HeadingDegrees = &h
		}
		return f
	}

	L := a.param.Length()
	if !a.stationary {
		a.desiredTargetS = math.Min(a.desiredTargetS+math.Max(0, a.targetSpeed)*dt, L)
	}
	a.desiredS += (a.desiredTargetS - a.desiredS) * (1 - math.Exp(-dt/cfg.TauTarget.Seconds()))

	maxSpeed := common.Clamp(a.emaSpeed+cfg.ExtraCatchupSpeed, common.SpeedOfAnimationMin, common.SpeedOfPlausibleVehicleMax)
	step := (a.desiredS - a.currentS) * (1 - math.Exp(-dt/cfg.Tau.Seconds())) * cfg.CatchupGain
	step = common.Clamp(step, -maxSpeed*dt, maxSpeed*dt)
	a.currentS = common.Clamp(a.currentS+step, 0, L)

	head := a.param.PositionAtS(a.currentS)
	pos := head
	if a.blend != nil {
		var done bool
		pos, done = a.blend.At(now, head)
		if done {
			a.blend = nil
		}
	}
	a.rendered, a.hasRendered = pos, true

	heading := a.param.BearingAtS(a.currentS)
	s := a.currentS
	f.HeadingDegrees = &heading
	f.S = &s
	f.Stationary = a.stationary
	f.Blending = a.blend != nil

	if f.StatusLabel != StatusPaused {
		for _, p := range a.param.RemainingFrom(a.currentS) {
			f.RoutePolylineFromHead = append(f.RoutePolylineFromHead, toLatLng(p))
		}
		dest := toLatLng(a.param.Destination())
		f.DestinationPoint = &dest
	}
	f.SetPosition(pos)
	return f
}

// jump re-seats the head at the latest ping and blends the rendered
// point across, rather than crawling over a large correction.
func (a *Animator) jump(now time.Time) {
	to := a.param.PositionAtS(a.pingS)
	from, ok := a.head()
	if !ok {
		from = a.param.PositionAtS(a.currentS)
	}
	dist := math.Abs(a.desiredTargetS - a.currentS)
	a.currentS, a.desiredS = a.pingS, a.pingS
	a.blend = NewTeleportBlend(from, to, now, a.Config.JumpBlend)
	metrics.Teleports.Inc(1)
	a.logger.Debug("Large correction, blending", "meters", common.DecimalToFixed(dist, 1),
		"duration", a.blend.Duration)
}

func (a *Animator) fallback(now time.Time) (orb.Point, bool) {
	if !a.hasLatest {
		return orb.Point{}, false
	}
	if a.Config.Fallback == params.FallbackLag && a.timeline != nil {
		if p, ok := a.timeline.Interpolate(a.timeline.ServerNow(now).Add(-a.Config.RenderDelay)); ok {
			return p, true
		}
	}
	return a.latest.Point, true
}

func (a *Animator) status(now time.Time) string {
	if !a.hasLatest || a.offline {
		return StatusOffline
	}
	if a.latest.Paused() {
		return StatusPaused
	}
	if a.timeline != nil && a.Config.StaleAfter > 0 && !a.latest.Time.IsZero() {
		if a.timeline.ServerNow(now).Sub(a.latest.Time) > a.Config.StaleAfter {
			return StatusMayBeOffline
		}
	}
	return StatusOnline
}
