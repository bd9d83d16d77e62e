/*
Package follow is the consuming side of the push channel.

A Follower primes one vehicle's animation loop from its last known
sample, then feeds it every envelope from the web daemon's websocket,
reconnecting until cancelled.
*/
package follow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/gorilla/websocket"
	"github.com/rotblauer/livetrack/animate"
	"github.com/rotblauer/livetrack/common"
	"github.com/rotblauer/livetrack/conceptual"
	"github.com/rotblauer/livetrack/metrics"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/types/sample"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var errLoopStopped = errors.New("animation loop stopped")

type Follower struct {
	Config  *params.FollowConfig
	Vehicle conceptual.VehicleID

	loop    *animate.Loop
	http    *http.Client
	dialer  *websocket.Dialer
	summary lagSummary
	logger  *slog.Logger
}

// NewFollower follows config.Vehicle into loop.
func NewFollower(config *params.FollowConfig, loop *animate.Loop) *Follower {
	if config == nil {
		config = params.DefaultFollowConfig()
	}
	return &Follower{
		Config:  config,
		Vehicle: conceptual.VehicleID(config.Vehicle),
		loop:    loop,
		http:    &http.Client{Timeout: 10 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:  slog.With("d", "follow", "vehicle", config.Vehicle),
	}
}

func (f *Follower) server() string {
	return strings.TrimRight(f.Config.Server, "/")
}

// socketURL is the websocket URL for the vehicle, ws:// or wss:// after the server's scheme.
func (f *Follower) socketURL() (string, error) {
	u, err := url.Parse(f.server() + "/socket")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.RawQuery = url.Values{"vehicle": {f.Vehicle.String()}}.Encode()
	return u.String(), nil
}

// Run follows until ctx is cancelled, returning nil, or the loop fails.
func (f *Follower) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var loopErr error
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loopErr = f.loop.Run(ctx)
		cancel()
	}()
	if f.Config.SummaryInterval > 0 {
		go f.summarize(ctx)
	}

	for ctx.Err() == nil {
		if err := f.Prime(ctx); err != nil {
			f.logger.Warn("Failed to fetch last known sample", "error", err)
		}
		err := f.subscribe(ctx)
		if ctx.Err() != nil {
			break
		}
		f.logger.Warn("Push channel disconnected", "error", err, "retry", f.Config.ReconnectInterval)
		select {
		case <-ctx.Done():
		case <-time.After(f.Config.ReconnectInterval):
		}
	}

	<-loopDone
	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return loopErr
	}
	return nil
}

// Prime pushes the vehicle's last known sample, if the server has one.
func (f *Follower) Prime(ctx context.Context) error {
	u := fmt.Sprintf("%s/v/%s/last", f.server(), url.PathEscape(f.Vehicle.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		f.logger.Info("No last known sample yet")
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %d %s", u, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	last, err := sample.Decode(body)
	if err != nil {
		return err
	}
	if !f.loop.Push(sample.NewLive(f.Vehicle, last)) {
		return errLoopStopped
	}
	return nil
}

// subscribe reads envelopes from the websocket until it fails or ctx is done.
func (f *Follower) subscribe(ctx context.Context) error {
	u, err := f.socketURL()
	if err != nil {
		return err
	}
	conn, _, err := f.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-closed:
		}
	}()

	f.logger.Info("Subscribed", "url", u)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env sample.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			metrics.IngestMalformed.Inc(1)
			f.logger.Debug("Dropped undecodable envelope", "error", err)
			continue
		}
		if env.Vehicle != f.Vehicle {
			continue
		}
		if env.Action == sample.ActionLive && env.Sample != nil && !env.Sample.Time.IsZero() {
			f.summary.add(time.Since(env.Sample.Time))
		}
		if !f.loop.Push(env) {
			return errLoopStopped
		}
	}
}

// Lag returns the arrival lag stats collected since the last call.
func (f *Follower) Lag() LagStats {
	return f.summary.flush()
}

func (f *Follower) summarize(ctx context.Context) {
	ticker := time.NewTicker(f.Config.SummaryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The loop's own state belongs to its goroutine; only counters are read here.
			lag := f.Lag()
			f.logger.Info("Follow summary",
				"samples", lag.Count,
				"lag.p50.ms", lag.P50, "lag.p90.ms", lag.P90, "lag.p99.ms", lag.P99, "lag.max.ms", lag.Max,
				"fps", common.DecimalToFixed(metrics.Frames.Snapshot().Rate1(), 1),
				"teleports", metrics.Teleports.Snapshot().Count(),
				"route_swaps", metrics.RouteSwaps.Snapshot().Count())
		}
	}
}
