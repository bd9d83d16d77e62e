package sample

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/common"
	"github.com/rotblauer/livetrack/geo/geom"
	"github.com/tidwall/gjson"
	"math"
	"strconv"
	"time"
)

// ErrMalformed is returned for samples which cannot be placed on a map.
var ErrMalformed = errors.New("malformed sample")

type Status string

const (
	StatusOnline Status = "online"
	StatusPaused Status = "paused"
)

// Sample is a single location report from a publisher.
// Optional fields are nil when the publisher did not send them.
type Sample struct {
	Point    orb.Point
	Speed    *float64 // m/s
	Heading  *float64 // degrees, [0,360)
	Accuracy *float64 // meters
	Time     time.Time

	// HasRoute is true when the sample carried a route field at all.
	// A null route (HasRoute with an empty Route) clears the active route.
	HasRoute bool
	Route    orb.LineString

	Status Status
}

// Valid is true when the sample has a usable position.
func (s Sample) Valid() bool {
	return geom.Valid(s.Point)
}

func (s Sample) Lat() float64 { return s.Point.Lat() }
func (s Sample) Lng() float64 { return s.Point.Lon() }

func (s Sample) Paused() bool {
	return s.Status == StatusPaused
}

// Float returns a pointer to v, for the optional fields.
func Float(v float64) *float64 {
	return &v
}

type wireLatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type wireRoute struct {
	Coordinates []wireLatLng `json:"coordinates"`
}

type wireSample struct {
	Lat      float64    `json:"lat"`
	Lng      float64    `json:"lng"`
	Speed    *float64   `json:"speed,omitempty"`
	Heading  *float64   `json:"heading,omitempty"`
	Accuracy *float64   `json:"accuracy,omitempty"`
	Ts       string     `json:"ts,omitempty"`
	Route    *wireRoute `json:"route,omitempty"`
	Status   Status     `json:"status,omitempty"`
}

// RouteJSON encodes a polyline the way publishers send it, {coordinates:[{lat,lng}]}.
// A nil line encodes as null.
func RouteJSON(line orb.LineString) json.RawMessage {
	if line == nil {
		return json.RawMessage("null")
	}
	b, _ := json.Marshal(toWireRoute(line))
	return b
}

func toWireRoute(line orb.LineString) *wireRoute {
	r := &wireRoute{Coordinates: make([]wireLatLng, 0, len(line))}
	for _, p := range line {
		r.Coordinates = append(r.Coordinates, wireLatLng{
			Lat: common.DecimalToFixed(p.Lat(), common.GPSPrecision6),
			Lng: common.DecimalToFixed(p.Lon(), common.GPSPrecision6),
		})
	}
	return r
}

func (s Sample) MarshalJSON() ([]byte, error) {
	w := wireSample{
		Lat:      s.Point.Lat(),
		Lng:      s.Point.Lon(),
		Speed:    s.Speed,
		Heading:  s.Heading,
		Accuracy: s.Accuracy,
		Status:   s.Status,
	}
	if !s.Time.IsZero() {
		w.Ts = s.Time.UTC().Format(time.RFC3339Nano)
	}
	if !s.HasRoute {
		return json.Marshal(w)
	}
	if len(s.Route) > 0 {
		w.Route = toWireRoute(s.Route)
		return json.Marshal(w)
	}
	// Explicit null route.
	type withNull struct {
		wireSample
		Route json.RawMessage `json:"route"`
	}
	return json.Marshal(withNull{wireSample: w, Route: json.RawMessage("null")})
}

func (s *Sample) UnmarshalJSON(data []byte) error {
	got, err := Decode(data)
	if err != nil {
		return err
	}
	*s = got
	return nil
}

// Decode parses a wire sample.
// Missing or null optional fields are left nil; numbers may be sent as strings.
// Negative speed, heading or accuracy means unknown.
func Decode(data []byte) (Sample, error) {
	if !gjson.ValidBytes(data) {
		return Sample{}, fmt.Errorf("%w: invalid json", ErrMalformed)
	}
	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		return Sample{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	lat, ok := number(parsed.Get("lat"))
	if !ok {
		return Sample{}, fmt.Errorf("%w: lat", ErrMalformed)
	}
	lngRes := parsed.Get("lng")
	if !lngRes.Exists() {
		lngRes = parsed.Get("lon")
	}
	lng, ok := number(lngRes)
	if !ok {
		return Sample{}, fmt.Errorf("%w: lng", ErrMalformed)
	}
	s := Sample{Point: orb.Point{lng, lat}, Status: StatusOnline}
	if !s.Valid() {
		return Sample{}, fmt.Errorf("%w: out of range %v", ErrMalformed, s.Point)
	}

	s.Speed = nonNegative(parsed.Get("speed"))
	s.Accuracy = nonNegative(parsed.Get("accuracy"))
	if h := nonNegative(parsed.Get("heading")); h != nil {
		*h = geom.NormalizeDegrees(*h)
		s.Heading = h
	}

	if ts := parsed.Get("ts"); ts.Exists() && ts.Type != gjson.Null {
		t, err := parseTime(ts)
		if err != nil {
			return Sample{}, fmt.Errorf("%w: ts: %v", ErrMalformed, err)
		}
		s.Time = t
	}

	if r := parsed.Get("route"); r.Exists() {
		s.Route, s.HasRoute = decodeRoute(r)
	}

	if parsed.Get("status").String() == string(StatusPaused) {
		s.Status = StatusPaused
	}
	return s, nil
}

// DecodeRoute parses a {coordinates:[{lat,lng}]} object, or null.
// The bool is false when the route is present but unusable.
func DecodeRoute(data []byte) (orb.LineString, bool) {
	if !gjson.ValidBytes(data) {
		return nil, false
	}
	return decodeRoute(gjson.ParseBytes(data))
}

func decodeRoute(r gjson.Result) (orb.LineString, bool) {
	if r.Type == gjson.Null {
		return nil, true
	}
	coords := r.Get("coordinates")
	if !coords.IsArray() {
		return nil, false
	}
	line := orb.LineString{}
	for _, c := range coords.Array() {
		lat, ok1 := number(c.Get("lat"))
		lng, ok2 := number(c.Get("lng"))
		p := orb.Point{lng, lat}
		if !ok1 || !ok2 || !geom.Valid(p) {
			return nil, false
		}
		line = append(line, p)
	}
	return line, true
}

func number(r gjson.Result) (float64, bool) {
	var v float64
	switch r.Type {
	case gjson.Number:
		v = r.Num
	case gjson.String:
		f, err := strconv.ParseFloat(r.Str, 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	return v, common.IsFinite(v)
}

func nonNegative(r gjson.Result) *float64 {
	v, ok := number(r)
	if !ok || v < 0 {
		return nil
	}
	return &v
}

// parseTime accepts RFC3339 strings and unix epoch milliseconds.
func parseTime(r gjson.Result) (time.Time, error) {
	if r.Type == gjson.Number {
		ms := r.Float()
		if !common.IsFinite(ms) {
			return time.Time{}, errors.New("non-finite")
		}
		return time.UnixMilli(int64(math.Round(ms))).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, r.String())
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
