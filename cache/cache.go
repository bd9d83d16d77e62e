package cache

import (
	"fmt"
	"github.com/golang/groupcache/lru"
	"github.com/jellydator/ttlcache/v3"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/rotblauer/livetrack/conceptual"
	"github.com/rotblauer/livetrack/route"
	"github.com/rotblauer/livetrack/types/sample"
	"sync"
	"time"
)

// LastKnown holds each vehicle's most recent sample in memory.
type LastKnown struct {
	c *ttlcache.Cache[conceptual.VehicleID, sample.Sample]
}

func NewLastKnown(ttl time.Duration) *LastKnown {
	return &LastKnown{
		c: ttlcache.New[conceptual.VehicleID, sample.Sample](
			ttlcache.WithTTL[conceptual.VehicleID, sample.Sample](ttl)),
	}
}

func (l *LastKnown) Set(vehicle conceptual.VehicleID, s sample.Sample) {
	l.c.Set(vehicle, s, ttlcache.DefaultTTL)
}

func (l *LastKnown) Get(vehicle conceptual.VehicleID) (sample.Sample, bool) {
	item := l.c.Get(vehicle)
	if item == nil || item.IsExpired() {
		return sample.Sample{}, false
	}
	return item.Value(), true
}

// Each calls fn for every vehicle with a live entry.
func (l *LastKnown) Each(fn func(vehicle conceptual.VehicleID, s sample.Sample)) {
	for v, item := range l.c.Items() {
		if item.IsExpired() {
			continue
		}
		fn(v, item.Value())
	}
}

func (l *LastKnown) Len() int {
	return l.c.Len()
}

// dedupeKey is what makes two publishes the same.
type dedupeKey struct {
	Vehicle  string
	Lat, Lng float64
	Speed    *float64
	Heading  *float64
	Accuracy *float64
	UnixNano int64
	Route    uint64
	HasRoute bool
	Status   string
}

// Dedupe remembers recently seen publishes
// using a Least Recently Used (LRU) cache of their hashes.
// It is safe for concurrent use.
type Dedupe struct {
	mu    sync.Mutex
	cache *lru.Cache
}

func NewDedupe(size int) *Dedupe {
	return &Dedupe{cache: lru.New(size)}
}

// Pass returns true if the sample has not been seen for vehicle.
// Samples without a publisher timestamp always pass.
func (d *Dedupe) Pass(vehicle conceptual.VehicleID, s sample.Sample) bool {
	if s.Time.IsZero() {
		return true
	}
	hash, err := hashstructure.Hash(dedupeKey{
		Vehicle:  vehicle.String(),
		Lat:      s.Lat(),
		Lng:      s.Lng(),
		Speed:    s.Speed,
		Heading:  s.Heading,
		Accuracy: s.Accuracy,
		UnixNano: s.Time.UnixNano(),
		Route:    route.Fingerprint(s.Route),
		HasRoute: s.HasRoute,
		Status:   string(s.Status),
	}, hashstructure.FormatV2, nil)
	if err != nil {
		return false
	}

	key := fmt.Sprintf("%d", hash)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.cache.Get(key); ok {
		return false
	}
	d.cache.Add(key, true)
	return true
}
