package ingest

import (
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/geo/geom"
	"github.com/rotblauer/livetrack/types/sample"
	"sort"
	"time"
)

// Buffer is a bounded window of recent samples,
// ordered by time, non-decreasing by index.
type Buffer struct {
	retention time.Duration
	max       int
	samples   []sample.Sample
}

func NewBuffer(retention time.Duration, max int) *Buffer {
	return &Buffer{retention: retention, max: max}
}

// Insert places s by time, after any samples with an equal timestamp,
// then evicts samples older than the retention window.
// It reports whether s is the newest sample retained.
func (b *Buffer) Insert(s sample.Sample) (newest bool) {
	i := sort.Search(len(b.samples), func(i int) bool {
		return b.samples[i].Time.After(s.Time)
	})
	newest = i == len(b.samples)
	b.samples = append(b.samples, sample.Sample{})
	copy(b.samples[i+1:], b.samples[i:])
	b.samples[i] = s

	dropped := b.evict()
	return newest && i >= dropped
}

// evict returns the number of samples dropped from the head.
func (b *Buffer) evict() int {
	if len(b.samples) == 0 {
		return 0
	}
	cutoff := b.samples[len(b.samples)-1].Time.Add(-b.retention)
	n := sort.Search(len(b.samples), func(i int) bool {
		return !b.samples[i].Time.Before(cutoff)
	})
	if b.max > 0 && len(b.samples)-n > b.max {
		n = len(b.samples) - b.max
	}
	if n > 0 {
		b.samples = append(b.samples[:0], b.samples[n:]...)
	}
	return n
}

func (b *Buffer) Len() int {
	return len(b.samples)
}

func (b *Buffer) Latest() (sample.Sample, bool) {
	if len(b.samples) == 0 {
		return sample.Sample{}, false
	}
	return b.samples[len(b.samples)-1], true
}

// Samples returns a copy of the buffered samples, oldest first.
func (b *Buffer) Samples() []sample.Sample {
	out := make([]sample.Sample, len(b.samples))
	copy(out, b.samples)
	return out
}

// Interpolate returns the position at t, linearly interpolated between
// the two samples bracketing it. Times outside the buffer clamp to its ends.
func (b *Buffer) Interpolate(t time.Time) (orb.Point, bool) {
	n := len(b.samples)
	if n == 0 {
		return orb.Point{}, false
	}
	if !t.After(b.samples[0].Time) {
		return b.samples[0].Point, true
	}
	if !t.Before(b.samples[n-1].Time) {
		return b.samples[n-1].Point, true
	}
	// First sample after t; i >= 1 here.
	i := sort.Search(n, func(i int) bool {
		return b.samples[i].Time.After(t)
	})
	a, c := b.samples[i-1], b.samples[i]
	span := c.Time.Sub(a.Time)
	if span <= 0 {
		return c.Point, true
	}
	f := float64(t.Sub(a.Time)) / float64(span)
	return geom.Lerp(a.Point, c.Point, f), true
}
