package params

import "time"

type RoutingConfig struct {
	// BaseURL is the OSRM-compatible routing service.
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`

	// Profile is the OSRM profile, eg. driving.
	Profile string `mapstructure:"profile"`

	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`

	// FallbackSpacing (m) and FallbackMinPoints shape the straight-line route
	// used when the provider fails.
	FallbackSpacing   float64 `mapstructure:"fallback_spacing" validate:"gt=0"`
	FallbackMinPoints int     `mapstructure:"fallback_min_points" validate:"gte=1"`

	// NearestCacheSize is the number of nearest-road answers kept.
	NearestCacheSize int `mapstructure:"nearest_cache_size" validate:"gte=0"`
}

func DefaultRoutingConfig() *RoutingConfig {
	return &RoutingConfig{
		BaseURL:           "https://router.project-osrm.org",
		Profile:           "driving",
		Timeout:           10 * time.Second,
		FallbackSpacing:   25,
		FallbackMinPoints: 8,
		NearestCacheSize:  4096,
	}
}
