package webd

import (
	"encoding/json"
	"errors"
	"github.com/gorilla/mux"
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/conceptual"
	"github.com/rotblauer/livetrack/events"
	"github.com/rotblauer/livetrack/geo/geom"
	"github.com/rotblauer/livetrack/metrics"
	"github.com/rotblauer/livetrack/metrics/influxdb"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/state"
	"github.com/rotblauer/livetrack/types/sample"
	"github.com/tidwall/gjson"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

// maxBodyBytes bounds publish request bodies; routes are the largest.
const maxBodyBytes = 4 << 20

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt time.Time               `json:"started_at"`
	Uptime    string                  `json:"uptime"`
	Config    *params.WebDaemonConfig `json:"config"`
	WSOpen    bool                    `json:"ws_open"`
	WSConns   int                     `json:"ws_conns"`
	Vehicles  int                     `json:"vehicles"`
	Metrics   map[string]int64        `json:"metrics"`

	RecentMalformed []string `json:"recent_malformed"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	st := webDaemonStatus{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		WSOpen:    !s.melodyInstance.IsClosed(),
		WSConns:   s.melodyInstance.Len(),
		Config:    s.Config,
		Vehicles:  s.lastKnown.Len(),
		Metrics:   metrics.Snapshot(),

		RecentMalformed: s.recentMalformed.Get(),
	}
	j, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal status", "error", err)
		http.Error(w, "Failed to marshal status", http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(j); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

func getRequestVehicle(r *http.Request) conceptual.VehicleID {
	vars := mux.Vars(r)
	v, ok := vars["vehicle"]
	if ok {
		return conceptual.VehicleID(v)
	}
	return conceptual.VehicleID(r.URL.Query().Get("vehicle"))
}

func handleGetVehicleForRequest(w http.ResponseWriter, r *http.Request) (conceptual.VehicleID, bool) {
	vehicle := getRequestVehicle(r)
	if vehicle.IsEmpty() {
		slog.Warn("Missing vehicle", "url", r.URL)
		writeJSONError(w, "Missing vehicle", http.StatusBadRequest)
		return "", false
	}
	return vehicle, true
}

type okResponse struct {
	OK        bool `json:"ok"`
	Duplicate bool `json:"duplicate,omitempty"`
	Ended     bool `json:"ended,omitempty"`
}

func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]string{"error": msg})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Body == nil {
		writeJSONError(w, "Please send a request body", http.StatusBadRequest)
		return nil, false
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return nil, false
	}
	return body, true
}

// last returns the vehicle's last known sample, from memory or else the store.
func (s *WebDaemon) last(vehicle conceptual.VehicleID) (sample.Sample, bool) {
	if smp, ok := s.lastKnown.Get(vehicle); ok {
		return smp, true
	}
	if s.store == nil {
		return sample.Sample{}, false
	}
	smp, err := s.store.GetLast(vehicle)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			s.logger.Error("Failed to read last sample", "vehicle", vehicle, "error", err)
		}
		return sample.Sample{}, false
	}
	s.lastKnown.Set(vehicle, smp)
	return smp, true
}

func (s *WebDaemon) remember(vehicle conceptual.VehicleID, smp sample.Sample) {
	s.lastKnown.Set(vehicle, smp)
	if s.store != nil {
		// Logged by the store; consumers still get the sample.
		_ = s.store.PutLast(vehicle, smp)
	}
}

func (s *WebDaemon) route(vehicle conceptual.VehicleID) (orb.LineString, bool) {
	s.routesMu.Lock()
	defer s.routesMu.Unlock()
	line, ok := s.routes[vehicle]
	return line, ok
}

func (s *WebDaemon) setRoute(vehicle conceptual.VehicleID, line orb.LineString) {
	s.routesMu.Lock()
	defer s.routesMu.Unlock()
	s.routes[vehicle] = line
}

// handlePublish accepts one live sample from a publisher.
// The sample is stamped with server time; pings without a route
// carry the vehicle's current one.
func (s *WebDaemon) handlePublish(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := handleGetVehicleForRequest(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	smp, err := sample.Decode(body)
	if err != nil {
		metrics.PublishMalformed.Inc(1)
		truncated := string(body)[:int(math.Min(80, float64(len(body))))]
		s.logger.Warn("Malformed publish", "vehicle", vehicle, "error", err, "bytes", truncated)
		events.MalformedFeed.Send(body)
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if !s.dedupe.Pass(vehicle, smp) {
		metrics.PublishDeduped.Inc(1)
		s.logger.Debug("Duplicate publish", "vehicle", vehicle, "ts", smp.Time)
		writeJSON(w, okResponse{OK: true, Duplicate: true})
		return
	}

	smp.Time = time.Now().UTC()
	if smp.Status == "" {
		smp.Status = sample.StatusOnline
	}
	if smp.HasRoute {
		// A null route clears the stored one.
		s.setRoute(vehicle, smp.Route)
	} else if line, ok := s.route(vehicle); ok {
		smp.HasRoute, smp.Route = true, line
	} else {
		smp.HasRoute, smp.Route = false, nil
	}

	s.remember(vehicle, smp)
	if s.recorder != nil {
		if err := s.recorder.Record(vehicle, smp); err != nil {
			s.logger.Warn("Failed to record sample", "vehicle", vehicle, "error", err)
		}
	}
	metrics.PublishAccepted.Mark(1)
	s.feed.Send(sample.NewLive(vehicle, smp))

	if influxdb.Enabled() {
		go func() {
			if err := influxdb.ExportSamples(vehicle, []sample.Sample{smp}); err != nil {
				s.logger.Warn("Failed to export sample", "vehicle", vehicle, "error", err)
			}
		}()
	}
	writeJSON(w, okResponse{OK: true})
}

// handleRoute replaces or clears a vehicle's route.
// The body is {"route":{"coordinates":[{lat,lng},...]}} or {"route":null}.
func (s *WebDaemon) handleRoute(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := handleGetVehicleForRequest(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	raw := gjson.GetBytes(body, "route")
	if !raw.Exists() {
		writeJSONError(w, "Missing route", http.StatusUnprocessableEntity)
		return
	}
	line, ok := sample.DecodeRoute([]byte(raw.Raw))
	if !ok {
		metrics.PublishMalformed.Inc(1)
		writeJSONError(w, "Invalid route", http.StatusUnprocessableEntity)
		return
	}

	s.setRoute(vehicle, line)
	metrics.PublishRoutes.Inc(1)

	env := sample.Envelope{Vehicle: vehicle, Action: sample.ActionRoute, Sample: &sample.Sample{HasRoute: true, Route: line}}
	if last, ok := s.last(vehicle); ok {
		last.HasRoute, last.Route = true, line
		s.remember(vehicle, last)
		env = sample.NewRoute(vehicle, last)
	}
	s.logger.Info("Route replaced", "vehicle", vehicle, "vertices", len(line))
	s.feed.Send(env)
	writeJSON(w, okResponse{OK: true})
}

// handleStatus pauses or resumes a vehicle's session.
func (s *WebDaemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := handleGetVehicleForRequest(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	status := sample.Status(gjson.GetBytes(body, "status").String())
	if status != sample.StatusOnline && status != sample.StatusPaused {
		writeJSONError(w, "Invalid status", http.StatusUnprocessableEntity)
		return
	}
	last, ok := s.last(vehicle)
	if !ok {
		writeJSONError(w, "Not found", http.StatusNotFound)
		return
	}
	last.Status = status
	last.Time = time.Now().UTC()
	s.remember(vehicle, last)
	s.feed.Send(sample.NewLive(vehicle, last))
	writeJSON(w, okResponse{OK: true})
}

// handleEndSession tells consumers the vehicle has gone offline.
// The last known sample is kept.
func (s *WebDaemon) handleEndSession(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := handleGetVehicleForRequest(w, r)
	if !ok {
		return
	}
	_, had := s.last(vehicle)
	if s.recorder != nil {
		if err := s.recorder.CloseVehicle(vehicle); err != nil {
			s.logger.Warn("Failed to close track log", "vehicle", vehicle, "error", err)
		}
	}
	s.feed.Send(sample.NewOffline(vehicle))
	s.logger.Info("Session ended", "vehicle", vehicle)
	writeJSON(w, okResponse{OK: true, Ended: had})
}

// handleLast writes the vehicle's last known sample.
func (s *WebDaemon) handleLast(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := handleGetVehicleForRequest(w, r)
	if !ok {
		return
	}
	last, ok := s.last(vehicle)
	if !ok {
		writeJSONError(w, "Not found", http.StatusNotFound)
		return
	}
	writeJSON(w, last)
}

type nearestResponse struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Distance *float64 `json:"distance"`
}

// handleNearest snaps ?lat&lng to the road network.
// When the provider has no answer the query point is echoed with a null distance.
func (s *WebDaemon) handleNearest(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	p := orb.Point{lng, lat}
	if errLat != nil || errLng != nil || !geom.Valid(p) {
		writeJSONError(w, "Invalid coordinates", http.StatusBadRequest)
		return
	}
	resp := nearestResponse{Lat: lat, Lng: lng}
	if s.nearest == nil {
		writeJSON(w, resp)
		return
	}
	road, d, err := s.nearest.Nearest(r.Context(), p)
	if err != nil {
		s.logger.Warn("Nearest road lookup failed", "error", err)
		writeJSON(w, resp)
		return
	}
	resp.Lat, resp.Lng, resp.Distance = road.Lat(), road.Lon(), &d
	writeJSON(w, resp)
}
