package testdata

import (
	"context"
	"encoding/json"
	"github.com/rotblauer/livetrack/stream"
	"github.com/rotblauer/livetrack/tracklog"
	"github.com/rotblauer/livetrack/types/sample"
	"path/filepath"
	"runtime"
)

// basepath is the root directory of this package.
var basepath string

func init() {
	_, currentFile, _, _ := runtime.Caller(0)
	basepath = filepath.Dir(currentFile)
}

// Path returns the absolute path the given relative file or directory path,
// relative to this testdata/ directory in the user's GOPATH.
// If rel is already absolute, it is returned unmodified.
// Taken from https://github.com/grpc/grpc-go/blob/master/testdata/testdata.go.
func Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}

	return filepath.Join(basepath, rel)
}

// Source_LondonDrive is a recorded drive east along York Street, London ON.
// 58 lines over 112 seconds: the first sample carries the route,
// one line is malformed, one sample arrives late,
// and the vehicle stops for 12 seconds at 720 m.
var Source_LondonDrive = "./london_drive.ndjson"

// ReadSamples reads every well-formed sample from a recorded track,
// and returns the raw malformed lines separately.
func ReadSamples(ctx context.Context, path string) ([]sample.Sample, []json.RawMessage, error) {
	r, err := tracklog.Open(Path(path))
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()
	var malformed []json.RawMessage
	ch, errs := stream.Samples(ctx, r, func(raw json.RawMessage, err error) {
		malformed = append(malformed, raw)
	})
	samples := stream.Collect(ctx, ch)
	if err := <-errs; err != nil {
		return samples, malformed, err
	}
	return samples, malformed, nil
}
