package follow

import (
	"encoding/json"
	"github.com/rotblauer/livetrack/animate"
	"io"
	"time"
)

// NDJSONSink writes frames as newline-delimited JSON,
// either plain frames or GeoJSON point features.
type NDJSONSink struct {
	enc      *json.Encoder
	interval time.Duration
	geoJSON  bool
	last     time.Time
}

// NewNDJSONSink writes at most one frame per interval; zero writes every frame.
func NewNDJSONSink(w io.Writer, interval time.Duration, geoJSON bool) *NDJSONSink {
	return &NDJSONSink{
		enc:      json.NewEncoder(w),
		interval: interval,
		geoJSON:  geoJSON,
	}
}

func (s *NDJSONSink) WriteFrame(f animate.Frame) error {
	if s.interval > 0 && !s.last.IsZero() && f.Time.Sub(s.last) < s.interval {
		return nil
	}
	s.last = f.Time
	if !s.geoJSON {
		return s.enc.Encode(f)
	}
	// Nothing to place yet.
	feat := f.Feature()
	if feat == nil {
		return nil
	}
	return s.enc.Encode(feat)
}
