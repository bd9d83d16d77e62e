package params

import "time"

type FollowConfig struct {
	// Server is the web daemon base URL.
	Server  string `mapstructure:"server" validate:"required,url"`
	Vehicle string `mapstructure:"vehicle" validate:"required"`

	// OutputInterval down-samples emitted frames; zero emits every frame.
	OutputInterval time.Duration `mapstructure:"output_interval" validate:"gte=0"`

	// GeoJSON writes frames as GeoJSON features instead of plain frames.
	GeoJSON bool `mapstructure:"geojson"`

	// ReconnectInterval is the wait between websocket reconnect attempts.
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval" validate:"gt=0"`

	// SummaryInterval logs a lag summary this often; zero disables it.
	SummaryInterval time.Duration `mapstructure:"summary_interval" validate:"gte=0"`
}

func DefaultFollowConfig() *FollowConfig {
	return &FollowConfig{
		Server:            "http://localhost:3000",
		Vehicle:           "YUG-199",
		OutputInterval:    100 * time.Millisecond,
		ReconnectInterval: 3 * time.Second,
		SummaryInterval:   30 * time.Second,
	}
}
