package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/types/sample"
)

func TestSamplePoint(t *testing.T) {
	s := sample.Sample{
		Point:  orb.Point{-81.2465922, 42.9814206},
		Speed:  sample.Float(19.4),
		Time:   time.Date(2025, 5, 1, 14, 0, 0, 0, time.UTC),
		Status: sample.StatusOnline,
	}
	line := write.PointToLineProtocol(SamplePoint("YUG-199", s), time.Millisecond)
	for _, want := range []string{"vehicle_sample,", "vehicle=YUG-199", "speed=19.4", "latitude=42.9814206"} {
		if !strings.Contains(line, want) {
			t.Errorf("missing %q in %s", want, line)
		}
	}
	if strings.Contains(line, "heading") {
		t.Errorf("unset heading written: %s", line)
	}
}
