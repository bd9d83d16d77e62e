package follow

import (
	"context"
	"github.com/rotblauer/livetrack/animate"
	"github.com/rotblauer/livetrack/stream"
	"github.com/rotblauer/livetrack/types/sample"
	"time"
)

// Replay drives loop synchronously from recorded envelopes.
// The loop's clock follows the sample times: frames are rendered at the
// animator's frame interval up to each sample, then the sample is handled.
// After the last envelope, tail more time is rendered.
// Envelopes whose samples carry no time are dropped.
// Replay returns the number of frames written.
func Replay(ctx context.Context, loop *animate.Loop, envs <-chan sample.Envelope, sink animate.FrameSink, tail time.Duration, meter *stream.TickMeter) (int, error) {
	interval := loop.Animator().Config.FrameInterval
	var clock time.Time
	loop.Now = func() time.Time { return clock }

	frames := 0
	step := func(until time.Time) error {
		for !clock.Add(interval).After(until) {
			if err := ctx.Err(); err != nil {
				return err
			}
			clock = clock.Add(interval)
			if err := sink.WriteFrame(loop.Step()); err != nil {
				return err
			}
			frames++
		}
		return nil
	}

	timed := stream.Filter(ctx, func(env sample.Envelope) bool {
		return env.Sample == nil || !env.Sample.Time.IsZero()
	}, envs)
	for env := range timed {
		if env.Sample != nil {
			t := env.Sample.Time
			if clock.IsZero() {
				clock = t
			}
			if err := step(t); err != nil {
				return frames, err
			}
			if meter != nil {
				meter.Mark(t, 1)
			}
		}
		loop.Handle(env)
	}
	if err := ctx.Err(); err != nil {
		return frames, err
	}
	if clock.IsZero() {
		return frames, nil
	}
	return frames, step(clock.Add(tail))
}
