package animate

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/livetrack/common"
	"github.com/rotblauer/livetrack/conceptual"
	"time"
)

const (
	StatusOnline       = "Online"
	StatusPaused       = "Paused"
	StatusOffline      = "Offline"
	StatusMayBeOffline = "May be offline"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func toLatLng(p orb.Point) LatLng {
	return LatLng{
		Lat: common.DecimalToFixed(p.Lat(), common.GPSPrecision6+2),
		Lng: common.DecimalToFixed(p.Lon(), common.GPSPrecision6+2),
	}
}

func (ll LatLng) Point() orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

// Frame is one rendered instant for one vehicle.
type Frame struct {
	Vehicle conceptual.VehicleID `json:"vehicle,omitempty"`
	Time    time.Time            `json:"time"`

	Position              *LatLng  `json:"position"`
	HeadingDegrees        *float64 `json:"headingDegrees"`
	RoutePolylineFromHead []LatLng `json:"routePolylineFromHead"`
	DestinationPoint      *LatLng  `json:"destinationPoint"`
	StatusLabel           string   `json:"statusLabel"`

	// Diagnostics.
	S          *float64 `json:"s,omitempty"`
	Stationary bool     `json:"stationary,omitempty"`
	Blending   bool     `json:"blending,omitempty"`
}

// SetPosition moves the rendered point, keeping the route's head on it.
func (f *Frame) SetPosition(p orb.Point) {
	ll := toLatLng(p)
	f.Position = &ll
	if len(f.RoutePolylineFromHead) > 0 {
		f.RoutePolylineFromHead[0] = ll
	}
}

// Point returns the rendered point, if any.
func (f Frame) Point() (orb.Point, bool) {
	if f.Position == nil {
		return orb.Point{}, false
	}
	return f.Position.Point(), true
}

// Feature renders the frame as a GeoJSON point feature.
// Frames without a position render a nil feature.
func (f Frame) Feature() *geojson.Feature {
	p, ok := f.Point()
	if !ok {
		return nil
	}
	feat := geojson.NewFeature(p)
	feat.Properties["Vehicle"] = f.Vehicle.String()
	feat.Properties["Time"] = f.Time.UTC().Format(time.RFC3339Nano)
	feat.Properties["Status"] = f.StatusLabel
	if f.HeadingDegrees != nil {
		feat.Properties["Heading"] = *f.HeadingDegrees
	}
	if f.DestinationPoint != nil {
		feat.Properties["Destination"] = []float64{f.DestinationPoint.Lng, f.DestinationPoint.Lat}
	}
	feat.Properties["RemainingVertices"] = len(f.RoutePolylineFromHead)
	if f.Stationary {
		feat.Properties["Stationary"] = true
	}
	return feat
}

// RouteFeature renders the route ahead as a GeoJSON line feature,
// or nil when there is none.
func (f Frame) RouteFeature() *geojson.Feature {
	if len(f.RoutePolylineFromHead) < 2 {
		return nil
	}
	line := make(orb.LineString, 0, len(f.RoutePolylineFromHead))
	for _, ll := range f.RoutePolylineFromHead {
		line = append(line, ll.Point())
	}
	feat := geojson.NewFeature(line)
	feat.Properties["Vehicle"] = f.Vehicle.String()
	return feat
}
