package params

import "time"

// FallbackMode selects what the animator shows when no usable route is active.
type FallbackMode string

const (
	// FallbackLatest shows the latest raw sample as-is.
	FallbackLatest FallbackMode = "latest"
	// FallbackLag interpolates between the two buffered samples bracketing now-RenderDelay.
	FallbackLag FallbackMode = "lag"
)

type AnimatorConfig struct {
	// FrameInterval is the render clock period (~60 Hz).
	FrameInterval time.Duration `mapstructure:"frame_interval" validate:"gt=0"`

	// MinFrameDelta and MaxFrameDelta bound the per-tick dt.
	// The upper bound keeps a resumed-from-sleep loop from leaping.
	MinFrameDelta time.Duration `mapstructure:"min_frame_delta" validate:"gt=0"`
	MaxFrameDelta time.Duration `mapstructure:"max_frame_delta" validate:"gtefield=MinFrameDelta"`

	// TauTarget is the first-order lag time constant easing desiredS toward desiredTargetS.
	TauTarget time.Duration `mapstructure:"tau_target" validate:"gt=0"`

	// Tau is the time constant easing currentS toward desiredS.
	Tau time.Duration `mapstructure:"tau" validate:"gt=0"`

	// CatchupGain multiplies the eased step of currentS.
	CatchupGain float64 `mapstructure:"catchup_gain" validate:"gt=0"`

	// ExtraCatchupSpeed is added to the smoothed speed to bound the per-frame step (m/s).
	ExtraCatchupSpeed float64 `mapstructure:"extra_catchup_speed" validate:"gte=0"`

	// SpeedEMAAlpha is the weight of each new speed observation.
	SpeedEMAAlpha float64 `mapstructure:"speed_ema_alpha" validate:"gt=0,lte=1"`

	// MinSpeedEstimateInterval floors the dt used for estimating speed from successive pings.
	MinSpeedEstimateInterval time.Duration `mapstructure:"min_speed_estimate_interval" validate:"gte=0"`

	// Lead extrapolates the target ahead of the latest ping while moving.
	Lead time.Duration `mapstructure:"lead" validate:"gte=0"`

	// JumpThreshold is the correction distance (m) above which the animator
	// teleport-blends instead of easing.
	JumpThreshold float64 `mapstructure:"jump_threshold" validate:"gt=0"`

	Stationary StationaryConfig `mapstructure:"stationary"`

	// JumpBlend is used for large corrections, RouteBlend for route replacements.
	JumpBlend  TeleportConfig `mapstructure:"jump_blend"`
	RouteBlend TeleportConfig `mapstructure:"route_blend"`

	// StaleAfter marks a vehicle "May be offline" when its latest sample is older than this.
	StaleAfter time.Duration `mapstructure:"stale_after" validate:"gt=0"`

	Fallback    FallbackMode  `mapstructure:"fallback" validate:"oneof=latest lag"`
	RenderDelay time.Duration `mapstructure:"render_delay" validate:"gte=0"`
}

type StationaryConfig struct {
	// SpeedThreshold (m/s): smoothed speeds below this may be stationary.
	SpeedThreshold float64 `mapstructure:"speed_threshold"`

	// DisplacementWindow is how far back displacement is assessed.
	DisplacementWindow time.Duration `mapstructure:"displacement_window"`

	// DisplacementThreshold (m): moving less than this over the window may be stationary.
	DisplacementThreshold float64 `mapstructure:"displacement_threshold"`

	// History is how much (s,t) history is kept.
	History time.Duration `mapstructure:"history"`
}

// TeleportConfig scales a blend's duration with the distance it covers,
// PerTenMeters for every 10 m, clamped to [Min, Max].
type TeleportConfig struct {
	PerTenMeters time.Duration `mapstructure:"per_ten_meters"`
	Min          time.Duration `mapstructure:"min"`
	Max          time.Duration `mapstructure:"max" validate:"gtefield=Min"`

	// MinDistance (m): blends shorter than this are skipped.
	MinDistance float64 `mapstructure:"min_distance"`
}

func DefaultAnimatorConfig() *AnimatorConfig {
	return &AnimatorConfig{
		FrameInterval:            time.Second / 60,
		MinFrameDelta:            time.Millisecond,
		MaxFrameDelta:            80 * time.Millisecond,
		TauTarget:                400 * time.Millisecond,
		Tau:                      280 * time.Millisecond,
		CatchupGain:              1.5,
		ExtraCatchupSpeed:        4,
		SpeedEMAAlpha:            0.15,
		MinSpeedEstimateInterval: 200 * time.Millisecond,
		Lead:                     900 * time.Millisecond,
		JumpThreshold:            120,
		Stationary: StationaryConfig{
			SpeedThreshold:        0.8,
			DisplacementWindow:    5 * time.Second,
			DisplacementThreshold: 6,
			History:               10 * time.Second,
		},
		JumpBlend: TeleportConfig{
			PerTenMeters: 120 * time.Millisecond,
			Min:          450 * time.Millisecond,
			Max:          1200 * time.Millisecond,
		},
		RouteBlend: TeleportConfig{
			PerTenMeters: 150 * time.Millisecond,
			Min:          500 * time.Millisecond,
			Max:          1400 * time.Millisecond,
			MinDistance:  0.5,
		},
		StaleAfter:  60 * time.Second,
		Fallback:    FallbackLatest,
		RenderDelay: 1500 * time.Millisecond,
	}
}
