package animate

import (
	"context"
	"errors"
	"github.com/rotblauer/livetrack/conceptual"
	"github.com/rotblauer/livetrack/ingest"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/snap"
	"github.com/rotblauer/livetrack/types/sample"
	"log/slog"
	"time"
)

// FrameSink receives every rendered frame.
type FrameSink interface {
	WriteFrame(f Frame) error
}

type FrameSinkFunc func(f Frame) error

func (fn FrameSinkFunc) WriteFrame(f Frame) error {
	return fn(f)
}

// Loop owns one vehicle's Ingestor, Animator and Snapper,
// and is the only goroutine touching them.
type Loop struct {
	Vehicle conceptual.VehicleID

	animator *Animator
	ingestor *ingest.Ingestor
	snapper  *snap.Snapper
	sink     FrameSink

	inbox chan sample.Envelope
	done  chan struct{}

	// Now is the frame clock. Defaults to time.Now.
	Now func() time.Time

	logger *slog.Logger
}

type LoopConfig struct {
	Animator *params.AnimatorConfig
	Ingest   *params.IngestConfig

	// Inbox is the inbound envelope buffer size.
	Inbox int
}

// NewLoop wires a loop for vehicle. snapper may be nil.
func NewLoop(vehicle conceptual.VehicleID, config LoopConfig, snapper *snap.Snapper, sink FrameSink) *Loop {
	if config.Animator == nil {
		config.Animator = params.DefaultAnimatorConfig()
	}
	if config.Inbox <= 0 {
		config.Inbox = 64
	}
	in := ingest.New(config.Ingest)
	return &Loop{
		Vehicle:  vehicle,
		animator: NewAnimator(config.Animator, vehicle, in),
		ingestor: in,
		snapper:  snapper,
		sink:     sink,
		inbox:    make(chan sample.Envelope, config.Inbox),
		done:     make(chan struct{}),
		Now:      time.Now,
		logger:   slog.With("d", "loop", "vehicle", vehicle),
	}
}

func (l *Loop) Animator() *Animator {
	return l.animator
}

func (l *Loop) Ingestor() *ingest.Ingestor {
	return l.ingestor
}

// Push queues an envelope for the loop.
// It blocks only while the inbox is full, and returns false once the loop has stopped.
func (l *Loop) Push(env sample.Envelope) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.inbox <- env:
		return true
	case <-l.done:
		return false
	}
}

// Run drives the loop until ctx is cancelled or the sink fails.
// In-flight snapper queries are cancelled on return.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	if l.snapper != nil {
		defer l.snapper.Close()
	}
	ticker := time.NewTicker(l.animator.Config.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-l.inbox:
			l.Handle(env)
		case res := <-l.snapper.Results():
			l.snapper.Accept(res)
		case <-ticker.C:
			if err := l.sink.WriteFrame(l.Step()); err != nil {
				return err
			}
		}
	}
}

// Handle applies one envelope. Run calls it; it is exported for
// driving a loop synchronously, eg. replaying a recorded feed.
func (l *Loop) Handle(env sample.Envelope) {
	now := l.Now()
	switch env.Action {
	case sample.ActionOffline:
		l.animator.SetOffline()
	case sample.ActionRoute:
		if env.Sample == nil {
			l.animator.ReplaceRoute(nil, now)
			return
		}
		l.animator.ReplaceRoute(env.Sample.Route, now)
	default:
		if env.Sample == nil {
			return
		}
		s, newest, err := l.ingestor.Ingest(*env.Sample, now)
		if errors.Is(err, sample.ErrMalformed) {
			l.logger.Debug("Dropped malformed sample", "error", err)
			return
		}
		if !newest {
			l.logger.Debug("Late sample buffered", "time", s.Time)
			return
		}
		l.animator.Observe(s, now)
	}
}

// Step renders one frame, snapped onto the route or road when close enough.
// Blending frames are left alone so the blend is not cut short.
func (l *Loop) Step() Frame {
	now := l.Now()
	f := l.animator.Advance(now)
	if p, ok := f.Point(); ok && l.snapper != nil && !f.Blending {
		f.SetPosition(l.snapper.Snap(now, p, l.animator.Param()))
	}
	return f
}
