/*
Package tracklog records accepted samples as gzipped NDJSON, one file per vehicle,
and opens recorded tracks for replay.
*/
package tracklog

import (
	"encoding/json"
	"github.com/rotblauer/livetrack/conceptual"
	"github.com/rotblauer/livetrack/types/sample"
	"sync"
)

// Recorder appends samples to per-vehicle track files,
// keeping each vehicle's writer open until Close.
type Recorder struct {
	flat *Flat

	mu      sync.Mutex
	writers map[conceptual.VehicleID]*GZFileWriter
}

func NewRecorder(root string) (*Recorder, error) {
	flat := NewFlatWithRoot(root)
	if err := flat.MkdirAll(); err != nil {
		return nil, err
	}
	return &Recorder{
		flat:    flat,
		writers: make(map[conceptual.VehicleID]*GZFileWriter),
	}, nil
}

func (r *Recorder) Flat() *Flat {
	return r.flat
}

// Record appends one NDJSON line and flushes it.
func (r *Recorder) Record(vehicle conceptual.VehicleID, s sample.Sample) error {
	line, err := json.Marshal(s)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.writers[vehicle]
	if !ok {
		w, err = r.flat.NewGZFileWriter(vehicle, nil)
		if err != nil {
			return err
		}
		r.writers[vehicle] = w
	}
	if _, err := w.Write(line); err != nil {
		return err
	}
	return w.Flush()
}

// CloseVehicle closes the vehicle's writer, completing its gzip member.
// The next Record reopens the file for append.
func (r *Recorder) CloseVehicle(vehicle conceptual.VehicleID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.writers[vehicle]
	if !ok {
		return nil
	}
	delete(r.writers, vehicle)
	return w.Close()
}

// Close closes every open writer and returns the first error.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for v, w := range r.writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
		delete(r.writers, v)
	}
	return first
}
