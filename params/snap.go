package params

import "time"

type SnapConfig struct {
	// Threshold (m): points farther than this from the route or road are left alone.
	Threshold float64 `mapstructure:"threshold" validate:"gte=0"`

	// NearestInterval rate limits nearest-road queries.
	NearestInterval time.Duration `mapstructure:"nearest_interval" validate:"gte=0"`

	// NearestTimeout bounds a single nearest-road query.
	NearestTimeout time.Duration `mapstructure:"nearest_timeout" validate:"gt=0"`

	// UseNearestRoad enables the nearest-road query when no route is active.
	UseNearestRoad bool `mapstructure:"use_nearest_road"`
}

func DefaultSnapConfig() *SnapConfig {
	return &SnapConfig{
		Threshold:       25,
		NearestInterval: 2 * time.Second,
		NearestTimeout:  3 * time.Second,
		UseNearestRoad:  false,
	}
}
