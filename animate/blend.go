package animate

import (
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/common"
	"github.com/rotblauer/livetrack/geo/geom"
	"github.com/rotblauer/livetrack/params"
	"time"
)

// TeleportBlend eases the rendered point across a discontinuity
// instead of letting it snap.
type TeleportBlend struct {
	From     orb.Point
	To       orb.Point
	Start    time.Time
	Duration time.Duration
}

// NewTeleportBlend sizes the blend's duration by the distance it covers.
func NewTeleportBlend(from, to orb.Point, start time.Time, config params.TeleportConfig) *TeleportBlend {
	return &TeleportBlend{
		From:     from,
		To:       to,
		Start:    start,
		Duration: BlendDuration(geom.Haversine(from, to), config),
	}
}

func BlendDuration(meters float64, config params.TeleportConfig) time.Duration {
	d := time.Duration(meters / 10 * float64(config.PerTenMeters))
	return common.ClampDuration(d, config.Min, config.Max)
}

// Progress is the linear fraction of the blend elapsed at now, [0,1].
func (b *TeleportBlend) Progress(now time.Time) float64 {
	if b.Duration <= 0 {
		return 1
	}
	return common.Clamp(float64(now.Sub(b.Start))/float64(b.Duration), 0, 1)
}

// At renders the blend at now, easing from From toward head.
// head is the live animated position, which ends the blend seamlessly
// even while the animator keeps moving. done is true once the blend has run its course.
func (b *TeleportBlend) At(now time.Time, head orb.Point) (p orb.Point, done bool) {
	t := b.Progress(now)
	if t >= 1 {
		return head, true
	}
	return geom.Lerp(b.From, head, EaseInOutCubic(t)), false
}

func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	f := -2*t + 2
	return 1 - f*f*f/2
}
