package stream

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/rotblauer/livetrack/types/sample"
	"io"
)

// Samples decodes samples from r, either NDJSON or a JSON array, onto the returned channel.
// Malformed samples are handed to onMalformed, if not nil, and skipped.
// The error channel yields at most one read error and is closed with the sample channel.
func Samples(ctx context.Context, r io.Reader, onMalformed func(raw json.RawMessage, err error)) (<-chan sample.Sample, <-chan error) {
	out := make(chan sample.Sample)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		err := sample.ScanSamples(r, func(s sample.Sample) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- s:
				return nil
			}
		}, onMalformed)
		if err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
			errs <- err
		}
	}()
	return out, errs
}
