package ingest

import "time"

// ClockSkew estimates the offset between the publisher's clock and ours,
// as an exponential moving average of serverTime - localTime.
type ClockSkew struct {
	alpha  float64
	skew   float64 // seconds
	primed bool
}

func NewClockSkew(alpha float64) *ClockSkew {
	return &ClockSkew{alpha: alpha}
}

// Observe folds one server/local timestamp pair into the estimate.
// The first observation seeds it.
func (c *ClockSkew) Observe(server, local time.Time) time.Duration {
	obs := server.Sub(local).Seconds()
	if !c.primed {
		c.skew = obs
		c.primed = true
	} else {
		c.skew = (1-c.alpha)*c.skew + c.alpha*obs
	}
	return c.Skew()
}

func (c *ClockSkew) Skew() time.Duration {
	return time.Duration(c.skew * float64(time.Second))
}

func (c *ClockSkew) Primed() bool {
	return c.primed
}

// ServerNow places a local time on the publisher's clock.
func (c *ClockSkew) ServerNow(local time.Time) time.Time {
	return local.Add(c.Skew())
}
