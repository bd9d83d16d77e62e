package params

import "time"

type AdherenceConfig struct {
	// OffRouteMeters: farther than this from the active route is off route.
	OffRouteMeters float64 `mapstructure:"off_route_meters" validate:"gt=0"`

	// HeadingMismatchDeg: travel heading differing from the route tangent by more than this is off route.
	HeadingMismatchDeg float64 `mapstructure:"heading_mismatch_deg" validate:"gt=0,lte=180"`

	// Throttle is the minimum gap between reroute attempts.
	Throttle time.Duration `mapstructure:"throttle" validate:"gte=0"`

	// Timeout bounds a single reroute (routing call and publish).
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

func DefaultAdherenceConfig() *AdherenceConfig {
	return &AdherenceConfig{
		OffRouteMeters:     25,
		HeadingMismatchDeg: 70,
		Throttle:           4 * time.Second,
		Timeout:            10 * time.Second,
	}
}
