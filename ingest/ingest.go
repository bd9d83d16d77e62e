/*
Package ingest receives samples from the push channel.

It keeps the clock skew estimate and the ordered recent-sample
buffer for one tracked vehicle. An Ingestor is owned by a single
goroutine and is not safe for concurrent use.
*/
package ingest

import (
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/metrics"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/types/sample"
	"time"
)

type Ingestor struct {
	Config *params.IngestConfig

	skew   *ClockSkew
	buffer *Buffer
}

func New(config *params.IngestConfig) *Ingestor {
	if config == nil {
		config = params.DefaultIngestConfig()
	}
	return &Ingestor{
		Config: config,
		skew:   NewClockSkew(config.SkewAlpha),
		buffer: NewBuffer(config.Retention, config.MaxSamples),
	}
}

// Ingest accepts one sample received at localNow.
// Samples without a usable position are rejected with sample.ErrMalformed,
// leaving all state untouched.
// Timestamped samples update the skew estimate. Untimestamped samples
// are stamped with the estimated publisher time.
// The returned bool reports whether the sample is the newest in the buffer;
// late arrivals are kept for the buffer only.
func (in *Ingestor) Ingest(s sample.Sample, localNow time.Time) (sample.Sample, bool, error) {
	if !s.Valid() {
		metrics.IngestMalformed.Inc(1)
		return s, false, fmt.Errorf("%w: %v", sample.ErrMalformed, s.Point)
	}
	if s.Time.IsZero() {
		s.Time = in.skew.ServerNow(localNow)
	} else {
		in.skew.Observe(s.Time, localNow)
	}
	newest := in.buffer.Insert(s)
	metrics.IngestAccepted.Inc(1)
	if !newest {
		metrics.IngestLate.Inc(1)
	}
	return s, newest, nil
}

// ServerNow is localNow on the publisher's clock.
func (in *Ingestor) ServerNow(localNow time.Time) time.Time {
	return in.skew.ServerNow(localNow)
}

func (in *Ingestor) Skew() time.Duration {
	return in.skew.Skew()
}

func (in *Ingestor) Latest() (sample.Sample, bool) {
	return in.buffer.Latest()
}

// Interpolate is the buffered position at publisher time t.
func (in *Ingestor) Interpolate(t time.Time) (orb.Point, bool) {
	return in.buffer.Interpolate(t)
}

func (in *Ingestor) Buffer() *Buffer {
	return in.buffer
}
