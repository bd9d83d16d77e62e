package cache

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/conceptual"
	"github.com/rotblauer/livetrack/types/sample"
)

func testSample(sec int) sample.Sample {
	return sample.Sample{
		Point: orb.Point{-81.2465922, 42.9814206},
		Speed: sample.Float(12),
		Time:  time.Date(2025, 5, 1, 14, 0, sec, 0, time.UTC),
	}
}

func TestLastKnown(t *testing.T) {
	l := NewLastKnown(time.Minute)
	if _, ok := l.Get("bus"); ok {
		t.Fatal("unexpected entry")
	}
	l.Set("bus", testSample(1))
	l.Set("bus", testSample(2))
	got, ok := l.Get("bus")
	if !ok || got.Time.Second() != 2 {
		t.Errorf("got %v %v", got.Time, ok)
	}
	n := 0
	l.Each(func(v conceptual.VehicleID, s sample.Sample) { n++ })
	if n != 1 || l.Len() != 1 {
		t.Errorf("each %d len %d", n, l.Len())
	}
}

func TestLastKnownExpires(t *testing.T) {
	l := NewLastKnown(10 * time.Millisecond)
	l.Set("bus", testSample(1))
	time.Sleep(30 * time.Millisecond)
	if _, ok := l.Get("bus"); ok {
		t.Error("expired entry returned")
	}
}

func TestDedupe(t *testing.T) {
	d := NewDedupe(8)
	s := testSample(1)
	if !d.Pass("bus", s) {
		t.Fatal("first rejected")
	}
	if d.Pass("bus", s) {
		t.Error("resend passed")
	}
	if !d.Pass("tram", s) {
		t.Error("other vehicle rejected")
	}
	if !d.Pass("bus", testSample(2)) {
		t.Error("new time rejected")
	}
	moved := s
	moved.Speed = sample.Float(13)
	if !d.Pass("bus", moved) {
		t.Error("changed speed rejected")
	}
	unstamped := s
	unstamped.Time = time.Time{}
	if !d.Pass("bus", unstamped) || !d.Pass("bus", unstamped) {
		t.Error("unstamped rejected")
	}
}
