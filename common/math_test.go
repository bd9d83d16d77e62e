package common

import (
	"math"
	"testing"
	"time"
)

func TestDecimalToFixed(t *testing.T) {
	cases := []struct {
		in   float64
		prec int
		want float64
	}{
		{43.6159874, GPSPrecision5, 43.61599},
		{-79.7018163, GPSPrecision4, -79.7018},
		{0, GPSPrecision6, 0},
	}
	for _, c := range cases {
		if got := DecimalToFixed(c.in, c.prec); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("DecimalToFixed(%v, %d) = %v, want %v", c.in, c.prec, got, c.want)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(60, SpeedOfAnimationMin, SpeedOfPlausibleVehicleMax); got != SpeedOfPlausibleVehicleMax {
		t.Errorf("got %v", got)
	}
	if got := Clamp(-1, 0, 1); got != 0 {
		t.Errorf("got %v", got)
	}
	if got := ClampDuration(2*time.Second, 450*time.Millisecond, 1200*time.Millisecond); got != 1200*time.Millisecond {
		t.Errorf("got %v", got)
	}
}

func TestIsFinite(t *testing.T) {
	if IsFinite(math.NaN()) || IsFinite(math.Inf(-1)) {
		t.Fatal("expected non-finite")
	}
	if !IsFinite(42) {
		t.Fatal("expected finite")
	}
}
