package follow

import (
	"github.com/montanaflynn/stats"
	"github.com/rotblauer/livetrack/common"
	"sync"
	"time"
)

// lagWindow bounds how many lags one summary holds.
const lagWindow = 4096

// lagSummary collects how late live samples arrive, measured from
// their server stamp to local receipt, between summaries.
type lagSummary struct {
	once sync.Once
	lags *common.RingBuffer[float64] // milliseconds
}

func (l *lagSummary) init() {
	l.once.Do(func() {
		l.lags = common.NewRingBuffer[float64](lagWindow)
	})
}

func (l *lagSummary) add(d time.Duration) {
	l.init()
	l.lags.Add(float64(d.Milliseconds()))
}

type LagStats struct {
	Count int
	P50   float64
	P90   float64
	P99   float64
	Max   float64
}

// flush returns the stats of the lags collected since the last flush.
func (l *lagSummary) flush() LagStats {
	l.init()
	data := stats.Float64Data(l.lags.Drain())

	out := LagStats{Count: len(data)}
	if len(data) == 0 {
		return out
	}
	pct := func(p float64) float64 {
		v, err := stats.Percentile(data, p)
		if err != nil {
			return 0
		}
		return common.DecimalToFixed(v, 1)
	}
	out.P50, out.P90, out.P99 = pct(50), pct(90), pct(99)
	if max, err := data.Max(); err == nil {
		out.Max = max
	}
	return out
}
