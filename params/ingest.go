package params

import "time"

type IngestConfig struct {
	// Retention is how far behind the newest sample the buffer keeps samples.
	Retention time.Duration `mapstructure:"retention" validate:"gt=0"`

	// MaxSamples caps the buffer regardless of retention.
	MaxSamples int `mapstructure:"max_samples" validate:"gt=0"`

	// SkewAlpha is the weight of each new clock skew observation.
	SkewAlpha float64 `mapstructure:"skew_alpha" validate:"gt=0,lte=1"`
}

func DefaultIngestConfig() *IngestConfig {
	return &IngestConfig{
		Retention:  2 * time.Minute,
		MaxSamples: 512,
		SkewAlpha:  0.1,
	}
}
