package stream

import (
	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/livetrack/common"
	"log/slog"
	"sync"
	"time"
)

// TickMeter counts items passing through a stream and logs their rate every interval.
type TickMeter struct {
	name     string
	interval time.Duration
	started  time.Time
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	label time.Time // any value, eg. sample time

	count metrics.Counter
	meter metrics.Meter
}

// NewTickMeter starts a meter logging under name. A zero interval never logs.
func NewTickMeter(name string, interval time.Duration) *TickMeter {
	// Won't work without this global setting.
	metrics.Enabled = true

	tm := &TickMeter{
		name:     name,
		interval: interval,
		started:  time.Now(),
		done:     make(chan struct{}),
		count:    metrics.NewCounter(),
		meter:    metrics.NewMeter(),
	}
	if interval > 0 {
		tm.ticker = time.NewTicker(interval)
		go tm.run()
	}
	return tm
}

// Mark records n items, the last of them labeled label.
func (tm *TickMeter) Mark(label time.Time, n int64) {
	tm.mu.Lock()
	tm.label = label
	tm.mu.Unlock()
	tm.count.Inc(n)
	tm.meter.Mark(n)
}

func (tm *TickMeter) Count() int64 {
	return tm.count.Snapshot().Count()
}

func (tm *TickMeter) run() {
	for {
		select {
		case <-tm.done:
			return
		case <-tm.ticker.C:
			tm.Log()
		}
	}
}

func (tm *TickMeter) Log() {
	tm.mu.Lock()
	label := tm.label
	tm.mu.Unlock()

	snap := tm.meter.Snapshot()
	slog.Info(tm.name, "n", humanize.Comma(tm.Count()),
		"last", label.Format(time.DateTime),
		"rate", common.DecimalToFixed(snap.Rate1(), 1),
		"running", time.Since(tm.started).Round(time.Second))
}

// Stop stops logging. It is safe to call more than once.
func (tm *TickMeter) Stop() {
	if tm == nil {
		return
	}
	tm.stopOnce.Do(func() {
		close(tm.done)
		if tm.ticker != nil {
			tm.ticker.Stop()
		}
		tm.meter.Stop()
	})
}
