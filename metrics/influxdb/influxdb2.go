package influxdb

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotblauer/livetrack/conceptual"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/types/sample"
	"sync"
	"time"
)

// Enabled is true when an InfluxDB URL is configured.
func Enabled() bool {
	return params.INFLUXDB_URL != ""
}

// SamplePoint builds the line-protocol point for one published sample.
// Optional fields are written only when the publisher sent them.
func SamplePoint(vehicle conceptual.VehicleID, s sample.Sample) *write.Point {
	p := influxdb2.NewPointWithMeasurement("vehicle_sample").
		SetTime(s.Time).
		AddTag("vehicle", vehicle.String()).
		AddField("latitude", s.Lat()).
		AddField("longitude", s.Lng())
	if s.Status != "" {
		p.AddTag("status", string(s.Status))
	}
	if s.Speed != nil {
		p.AddField("speed", *s.Speed)
	}
	if s.Heading != nil {
		p.AddField("heading", *s.Heading)
	}
	if s.Accuracy != nil {
		p.AddField("accuracy", *s.Accuracy)
	}
	if s.HasRoute && len(s.Route) > 0 {
		p.AddField("route_vertices", len(s.Route))
	}
	return p
}

// ExportSamples posts samples to an InfluxDB Write API.
// Because it accepts a slice, use batches. The Write API will buffer and flush.
// The last error encountered is returned.
func ExportSamples(vehicle conceptual.VehicleID, samples []sample.Sample) error {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Millisecond)
	client := influxdb2.NewClientWithOptions(params.INFLUXDB_URL, params.INFLUXDB_TOKEN, opts)
	writeAPI := client.WriteAPI(params.INFLUXDB_ORG, params.INFLUXDB_BUCKET)

	// Errors returns a channel for reading errors which occurs during async writes.
	// Must be called before performing any writes for errors to be collected.
	// The chan is unbuffered and must be drained or the writer will block.
	// https://github.com/influxdata/influxdb-client-go?tab=readme-ov-file#reading-async-errors
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	for _, s := range samples {
		writeAPI.WritePoint(SamplePoint(vehicle, s))
	}
	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}
