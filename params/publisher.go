package params

import (
	"time"

	"github.com/paulmach/orb"
)

type PublisherConfig struct {
	// Server is the web daemon base URL.
	Server string `mapstructure:"server" validate:"required,url"`

	Vehicle string `mapstructure:"vehicle" validate:"required"`
	Token   string `mapstructure:"token"`

	// Start is where the vehicle begins.
	// MoveEnd is where it drives to.
	// RouteEnd is where the displayed route points to; it defaults to MoveEnd.
	Start    orb.Point `mapstructure:"-"`
	MoveEnd  orb.Point `mapstructure:"-"`
	RouteEnd orb.Point `mapstructure:"-"`

	// Speed (m/s) the vehicle travels at.
	Speed float64 `mapstructure:"speed" validate:"gt=0"`

	// MinTick floors the wait between published samples.
	MinTick time.Duration `mapstructure:"min_tick" validate:"gte=0"`

	// Loop drives back and forth forever.
	Loop bool `mapstructure:"loop"`

	// Accuracy (m) attached to every sample.
	Accuracy float64 `mapstructure:"accuracy" validate:"gte=0"`

	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

func DefaultPublisherConfig() *PublisherConfig {
	return &PublisherConfig{
		Server:   "http://localhost:3000",
		Vehicle:  "YUG-199",
		Start:    orb.Point{-81.2465922, 42.9814206}, // London, York Street
		MoveEnd:  orb.Point{-79.7018163, 43.6159874}, // Mississauga, Bancroft Drive
		Speed:    70 * 1000 / 3600.0,
		MinTick:  800 * time.Millisecond,
		Loop:     true,
		Accuracy: 15,
		Timeout:  10 * time.Second,
	}
}
