package webd

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/common"
	"github.com/rotblauer/livetrack/metrics"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/tracklog"
	"github.com/rotblauer/livetrack/types/sample"
	"github.com/tidwall/gjson"
)

func init() {
	accessLog = io.Discard
}

// newTestWebDaemon serves a daemon with no routing provider.
// An empty datadir keeps state in memory.
func newTestWebDaemon(t *testing.T, datadir string) (*WebDaemon, *httptest.Server) {
	t.Helper()
	config := params.DefaultTestWebDaemonConfig()
	config.DataDir = datadir
	config.Routing = nil
	d, err := NewWebDaemon(config)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(d.NewRouter())
	t.Cleanup(func() {
		srv.Close()
		d.Close()
	})
	return d, srv
}

func do(t *testing.T, method, url, body string, header http.Header) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

const pingBody = `{"lat":42.9814206,"lng":-81.2465922,"speed":19.4,"heading":90,"accuracy":15,"ts":"2025-05-01T14:00:00Z"}`

func TestWebDaemon_ping(t *testing.T) {
	req := httptest.NewRequest("GET", "http://livetrack.example/ping", nil)
	w := httptest.NewRecorder()
	pingPong(w, req)
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		t.Fatalf("status code not 200")
	}
	if string(body) != "pong" {
		t.Errorf("body is not pong: %s", string(body))
	}
}

func TestWebDaemon_statusReport(t *testing.T) {
	_, srv := newTestWebDaemon(t, "")
	code, body := do(t, "GET", srv.URL+"/status", "", nil)
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	status := webDaemonStatus{}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatal(err)
	}
	if status.Uptime == "" {
		t.Error("uptime is empty")
	}
	if _, ok := status.Metrics["publish/accepted"]; !ok {
		t.Errorf("metrics missing: %v", status.Metrics)
	}
}

func TestWebDaemon_publishAndLast(t *testing.T) {
	_, srv := newTestWebDaemon(t, "")

	code, _ := do(t, "GET", srv.URL+"/v/bus/last", "", nil)
	if code != http.StatusNotFound {
		t.Fatalf("unknown vehicle got %d", code)
	}

	before := time.Now().Add(-time.Second)
	code, body := do(t, "POST", srv.URL+"/v/bus/ping", pingBody, nil)
	if code != http.StatusOK || !gjson.GetBytes(body, "ok").Bool() {
		t.Fatalf("publish got %d %s", code, body)
	}

	code, body = do(t, "GET", srv.URL+"/v/bus/last", "", nil)
	if code != http.StatusOK {
		t.Fatalf("last got %d", code)
	}
	last, err := sample.Decode(body)
	if err != nil {
		t.Fatal(err)
	}
	if last.Point != (orb.Point{-81.2465922, 42.9814206}) || *last.Speed != 19.4 {
		t.Errorf("last %+v", last)
	}
	if last.Time.Before(before) {
		t.Errorf("not stamped with server time: %v", last.Time)
	}
	if last.Status != sample.StatusOnline {
		t.Errorf("status %q", last.Status)
	}
}

func TestWebDaemon_publishMalformed(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	_, srv := newTestWebDaemon(t, "")
	n := metrics.PublishMalformed.Snapshot().Count()
	for _, body := range []string{
		`{"lng":-81.2}`,
		`{"lat":"north","lng":-81.2}`,
		`{"lat":95,"lng":-81.2}`,
		`not json`,
	} {
		code, _ := do(t, "POST", srv.URL+"/v/bus/ping", body, nil)
		if code != http.StatusUnprocessableEntity {
			t.Errorf("%s: got %d", body, code)
		}
	}
	if got := metrics.PublishMalformed.Snapshot().Count() - n; got != 4 {
		t.Errorf("malformed counted %d", got)
	}
	if code, _ := do(t, "GET", srv.URL+"/v/bus/last", "", nil); code != http.StatusNotFound {
		t.Errorf("malformed publish stored: %d", code)
	}

	// Rejected bodies show up on /status.
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, body := do(t, "GET", srv.URL+"/status", "", nil)
		recent := gjson.GetBytes(body, "recent_malformed").Array()
		if len(recent) == 4 && recent[3].String() == "not json" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("recent_malformed: %s", gjson.GetBytes(body, "recent_malformed").Raw)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebDaemon_publishDedupe(t *testing.T) {
	_, srv := newTestWebDaemon(t, "")
	_, body := do(t, "POST", srv.URL+"/v/bus/ping", pingBody, nil)
	if gjson.GetBytes(body, "duplicate").Bool() {
		t.Fatal("first publish flagged duplicate")
	}
	_, body = do(t, "POST", srv.URL+"/v/bus/ping", pingBody, nil)
	if !gjson.GetBytes(body, "duplicate").Bool() {
		t.Errorf("resend not flagged: %s", body)
	}
}

func TestWebDaemon_token(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	t.Setenv(params.PublishTokenEnv, "s3cret")
	_, srv := newTestWebDaemon(t, "")

	if code, _ := do(t, "POST", srv.URL+"/v/bus/ping", pingBody, nil); code != http.StatusForbidden {
		t.Errorf("no token got %d", code)
	}
	bad := http.Header{params.PublishTokenHeader: {"nope"}}
	if code, _ := do(t, "POST", srv.URL+"/v/bus/ping", pingBody, bad); code != http.StatusForbidden {
		t.Errorf("bad token got %d", code)
	}
	good := http.Header{params.PublishTokenHeader: {"s3cret"}}
	if code, _ := do(t, "POST", srv.URL+"/v/bus/ping", pingBody, good); code != http.StatusOK {
		t.Errorf("header token got %d", code)
	}
	if code, _ := do(t, "DELETE", srv.URL+"/v/bus?token=s3cret", "", nil); code != http.StatusOK {
		t.Errorf("query token got %d", code)
	}
	// Reads are open.
	if code, _ := do(t, "GET", srv.URL+"/v/bus/last", "", nil); code != http.StatusOK {
		t.Errorf("last got %d", code)
	}
}

func TestWebDaemon_route(t *testing.T) {
	_, srv := newTestWebDaemon(t, "")
	route := `{"route":{"coordinates":[{"lat":42.98,"lng":-81.24},{"lat":42.99,"lng":-81.23}]}}`

	// A route before any sample is kept for the first ping.
	if code, body := do(t, "PATCH", srv.URL+"/v/bus/route", route, nil); code != http.StatusOK {
		t.Fatalf("route got %d %s", code, body)
	}
	do(t, "POST", srv.URL+"/v/bus/ping", pingBody, nil)
	_, body := do(t, "GET", srv.URL+"/v/bus/last", "", nil)
	if n := len(gjson.GetBytes(body, "route.coordinates").Array()); n != 2 {
		t.Errorf("route vertices %d: %s", n, body)
	}

	if code, _ := do(t, "PATCH", srv.URL+"/v/bus/route", `{"route":null}`, nil); code != http.StatusOK {
		t.Fatalf("clear got %d", code)
	}
	_, body = do(t, "GET", srv.URL+"/v/bus/last", "", nil)
	if r := gjson.GetBytes(body, "route"); !r.Exists() || r.Type != gjson.Null {
		t.Errorf("route not cleared: %s", body)
	}

	// A ping carrying a null route clears it too, for later pings as well.
	do(t, "PATCH", srv.URL+"/v/bus/route", route, nil)
	nullRoute := `{"lat":42.9814206,"lng":-81.2465922,"ts":"2025-05-01T14:00:05Z","route":null}`
	if code, body := do(t, "POST", srv.URL+"/v/bus/ping", nullRoute, nil); code != http.StatusOK {
		t.Fatalf("null route ping got %d %s", code, body)
	}
	later := `{"lat":42.9814206,"lng":-81.2465922,"ts":"2025-05-01T14:00:06Z"}`
	do(t, "POST", srv.URL+"/v/bus/ping", later, nil)
	_, body = do(t, "GET", srv.URL+"/v/bus/last", "", nil)
	if n := len(gjson.GetBytes(body, "route.coordinates").Array()); n != 0 {
		t.Errorf("route reattached after null route ping: %s", body)
	}

	for _, bad := range []string{`{}`, `{"route":{"coordinates":[{"lat":200,"lng":0}]}}`, `{"route":7}`} {
		if code, _ := do(t, "PATCH", srv.URL+"/v/bus/route", bad, nil); code != http.StatusUnprocessableEntity {
			t.Errorf("%s: got %d", bad, code)
		}
	}
}

func TestWebDaemon_status(t *testing.T) {
	_, srv := newTestWebDaemon(t, "")
	if code, _ := do(t, "PUT", srv.URL+"/v/bus/status", `{"status":"paused"}`, nil); code != http.StatusNotFound {
		t.Errorf("unknown vehicle got %d", code)
	}
	do(t, "POST", srv.URL+"/v/bus/ping", pingBody, nil)
	if code, _ := do(t, "PUT", srv.URL+"/v/bus/status", `{"status":"asleep"}`, nil); code != http.StatusUnprocessableEntity {
		t.Errorf("invalid status got %d", code)
	}
	if code, _ := do(t, "PUT", srv.URL+"/v/bus/status", `{"status":"paused"}`, nil); code != http.StatusOK {
		t.Fatalf("pause got %d", code)
	}
	_, body := do(t, "GET", srv.URL+"/v/bus/last", "", nil)
	if gjson.GetBytes(body, "status").String() != "paused" {
		t.Errorf("not paused: %s", body)
	}
}

type fakeNearest struct {
	road orb.Point
	err  error
}

func (f fakeNearest) Nearest(ctx context.Context, p orb.Point) (orb.Point, float64, error) {
	return f.road, 7.5, f.err
}

func TestWebDaemon_nearest(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d, srv := newTestWebDaemon(t, "")

	for _, q := range []string{"", "?lat=x&lng=1", "?lat=1", "?lat=91&lng=1", "?lat=NaN&lng=1"} {
		if code, _ := do(t, "GET", srv.URL+"/roads/nearest"+q, "", nil); code != http.StatusBadRequest {
			t.Errorf("%q got %d", q, code)
		}
	}

	// No provider: echo.
	code, body := do(t, "GET", srv.URL+"/roads/nearest?lat=42.98&lng=-81.24", "", nil)
	if code != http.StatusOK || gjson.GetBytes(body, "lat").Float() != 42.98 || gjson.GetBytes(body, "distance").Type != gjson.Null {
		t.Errorf("echo got %d %s", code, body)
	}

	d.SetNearestProvider(fakeNearest{road: orb.Point{-81.2401, 42.9801}})
	_, body = do(t, "GET", srv.URL+"/roads/nearest?lat=42.98&lng=-81.24", "", nil)
	if gjson.GetBytes(body, "lng").Float() != -81.2401 || gjson.GetBytes(body, "distance").Float() != 7.5 {
		t.Errorf("snapped got %s", body)
	}

	d.SetNearestProvider(fakeNearest{err: context.DeadlineExceeded})
	_, body = do(t, "GET", srv.URL+"/roads/nearest?lat=42.98&lng=-81.24", "", nil)
	if gjson.GetBytes(body, "distance").Type != gjson.Null {
		t.Errorf("failed lookup got %s", body)
	}
}

func TestWebDaemon_persists(t *testing.T) {
	dir := t.TempDir()
	d, srv := newTestWebDaemon(t, dir)
	do(t, "POST", srv.URL+"/v/bus/ping", pingBody, nil)
	srv.Close()
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	// Accepted samples are recorded to the vehicle's track log.
	r, err := tracklog.NewFlatWithRoot(filepath.Join(dir, params.TracksDirName)).NamedGZReader("bus")
	if err != nil {
		t.Fatal(err)
	}
	recorded, err := io.ReadAll(r)
	r.Close()
	if err != nil || gjson.GetBytes(recorded, "lat").Float() != 42.9814206 {
		t.Errorf("track log got %s, %v", recorded, err)
	}

	_, srv2 := newTestWebDaemon(t, dir)
	code, body := do(t, "GET", srv2.URL+"/v/bus/last", "", nil)
	if code != http.StatusOK || gjson.GetBytes(body, "lat").Float() != 42.9814206 {
		t.Errorf("after restart got %d %s", code, body)
	}
}

func dial(t *testing.T, srv *httptest.Server, vehicle string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket?vehicle=" + vehicle
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) sample.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env sample.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatal(err)
	}
	return env
}

func TestWebDaemon_socket(t *testing.T) {
	_, srv := newTestWebDaemon(t, "")
	do(t, "POST", srv.URL+"/v/bus/ping", pingBody, nil)

	conn := dial(t, srv, "bus")
	env := readEnvelope(t, conn)
	if env.Action != sample.ActionLive || env.Vehicle != "bus" || env.Sample == nil {
		t.Fatalf("connect got %+v", env)
	}

	// Wait for the session to be registered before publishing.
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, body := do(t, "GET", srv.URL+"/status", "", nil)
		if gjson.GetBytes(body, "ws_conns").Int() == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Other vehicles are filtered out.
	do(t, "POST", srv.URL+"/v/tram/ping", pingBody, nil)
	do(t, "POST", srv.URL+"/v/bus/ping", strings.Replace(pingBody, "14:00:00", "14:00:01", 1), nil)
	env = readEnvelope(t, conn)
	if env.Vehicle != "bus" || env.Action != sample.ActionLive {
		t.Errorf("got %+v", env)
	}

	do(t, "PATCH", srv.URL+"/v/bus/route", `{"route":null}`, nil)
	env = readEnvelope(t, conn)
	if env.Action != sample.ActionRoute || env.Sample == nil || !env.Sample.HasRoute || env.Sample.Route != nil {
		t.Errorf("got %+v", env)
	}

	do(t, "DELETE", srv.URL+"/v/bus", "", nil)
	env = readEnvelope(t, conn)
	if env.Action != sample.ActionOffline {
		t.Errorf("got %+v", env)
	}
}
