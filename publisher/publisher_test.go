package publisher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/geo/geom"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/types/sample"
)

var (
	start = orb.Point{-81.2465922, 42.9814206}
	e     = geom.NewEquirect(start.Lat())
)

func offset(p orb.Point, east, north float64) orb.Point {
	return orb.Point{p.Lon() + east/e.MetersPerDegLng, p.Lat() + north/e.MetersPerDegLat}
}

type request struct {
	method, path, token string
	body                []byte
}

func TestClient(t *testing.T) {
	var mu sync.Mutex
	var got []request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, request{r.Method, r.URL.Path, r.Header.Get(params.PublishTokenHeader), b})
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := params.DefaultPublisherConfig()
	cfg.Server = srv.URL + "/"
	cfg.Token = "s3cret"
	c := NewClient(cfg)
	ctx := context.Background()

	s := sample.Sample{Point: start, Speed: sample.Float(10), Time: time.Now()}
	if err := c.PublishSample(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := c.PublishRoute(ctx, orb.LineString{start, offset(start, 100, 0)}); err != nil {
		t.Fatal(err)
	}
	if err := c.PublishRoute(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.EndSession(ctx); err != nil {
		t.Fatal(err)
	}

	want := []struct{ method, path string }{
		{http.MethodPost, "/v/YUG-199/ping"},
		{http.MethodPatch, "/v/YUG-199/route"},
		{http.MethodPatch, "/v/YUG-199/route"},
		{http.MethodDelete, "/v/YUG-199"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d requests", len(got))
	}
	for i, w := range want {
		if got[i].method != w.method || got[i].path != w.path {
			t.Errorf("%d: got %s %s want %s %s", i, got[i].method, got[i].path, w.method, w.path)
		}
		if got[i].token != "s3cret" {
			t.Errorf("%d: token %q", i, got[i].token)
		}
	}

	decoded, err := sample.Decode(got[0].body)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Speed == nil || *decoded.Speed != 10 {
		t.Errorf("sample body %s", got[0].body)
	}
	line, ok := sample.DecodeRoute([]byte(gjsonRoute(t, got[1].body)))
	if !ok || len(line) != 2 {
		t.Errorf("route body %s", got[1].body)
	}
	if string(got[2].body) != `{"route":null}` {
		t.Errorf("clear body %s", got[2].body)
	}
}

func gjsonRoute(t *testing.T, body []byte) string {
	t.Helper()
	const prefix = `{"route":`
	if len(body) < len(prefix)+1 || string(body[:len(prefix)]) != prefix {
		t.Fatalf("body %s", body)
	}
	return string(body[len(prefix) : len(body)-1])
}

func TestClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Forbidden", http.StatusForbidden)
	}))
	defer srv.Close()
	cfg := params.DefaultPublisherConfig()
	cfg.Server = srv.URL
	if err := NewClient(cfg).PublishSample(context.Background(), sample.Sample{Point: start}); err == nil {
		t.Error("expected error")
	}
}

type fakePublisher struct {
	samples []sample.Sample
	routes  []orb.LineString
}

func (f *fakePublisher) PublishSample(ctx context.Context, s sample.Sample) error {
	f.samples = append(f.samples, s)
	return nil
}

func (f *fakePublisher) PublishRoute(ctx context.Context, line orb.LineString) error {
	f.routes = append(f.routes, line)
	return nil
}

type straightRouter struct {
	calls int
	err   error
}

func (r *straightRouter) Route(ctx context.Context, a, b orb.Point) (orb.LineString, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return geom.Interpolate(a, b, 10), nil
}

// fakeClock advances only when the agent sleeps.
type fakeClock struct {
	now    time.Time
	waits  []time.Duration
	cancel context.CancelFunc
	limit  int
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	if c.limit > 0 && len(c.waits) >= c.limit {
		c.cancel()
		return ctx.Err()
	}
	return nil
}

func newTestAgent(cfg *params.PublisherConfig, pub Publisher, router *straightRouter) (*Agent, *fakeClock) {
	a := NewAgent(cfg, pub, router)
	clock := &fakeClock{now: time.Date(2025, 5, 1, 14, 0, 0, 0, time.UTC)}
	a.Now = clock.Now
	a.Sleep = clock.Sleep
	return a, clock
}

func TestAgentSingleLeg(t *testing.T) {
	cfg := params.DefaultPublisherConfig()
	cfg.Start = start
	cfg.MoveEnd = offset(start, 1000, 0)
	cfg.Loop = false
	cfg.Speed = 10
	pub := &fakePublisher{}
	router := &straightRouter{}
	a, clock := newTestAgent(cfg, pub, router)

	if err := a.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.samples) != 11 {
		t.Fatalf("published %d samples", len(pub.samples))
	}
	if len(pub.routes) != 1 {
		t.Errorf("published %d routes, want only the initial", len(pub.routes))
	}
	for i, s := range pub.samples {
		if !s.HasRoute || len(s.Route) != 11 {
			t.Errorf("%d: route %v", i, len(s.Route))
		}
		if s.Accuracy == nil || *s.Accuracy != 15 {
			t.Errorf("%d: accuracy %v", i, s.Accuracy)
		}
		if s.Heading == nil || geom.AngleDiff(*s.Heading, 90) > 1 {
			t.Errorf("%d: heading %v", i, s.Heading)
		}
	}
	// 100 m segments at 10 m/s.
	if w := clock.waits[0]; w < 9900*time.Millisecond || w > 10100*time.Millisecond {
		t.Errorf("first wait %v", w)
	}
	// Last point has no next segment; the wait floors at MinTick.
	if w := clock.waits[len(clock.waits)-1]; w != cfg.MinTick {
		t.Errorf("last wait %v", w)
	}
	if router.calls != 1 {
		t.Errorf("router calls %d", router.calls)
	}
}

func TestAgentReroutesWhenDisplayDiffers(t *testing.T) {
	cfg := params.DefaultPublisherConfig()
	cfg.Start = start
	cfg.MoveEnd = offset(start, 2000, 0)  // drive east
	cfg.RouteEnd = offset(start, 0, 2000) // display north
	cfg.Loop = false
	cfg.Speed = 20
	pub := &fakePublisher{}
	router := &straightRouter{}
	a, _ := newTestAgent(cfg, pub, router)

	if err := a.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.routes) < 2 {
		t.Fatalf("expected reroutes, published %d routes", len(pub.routes))
	}
	// Each wait is 10s (200 m at 20 m/s), longer than the 4s throttle,
	// so at most one reroute per published sample.
	if reroutes := len(pub.routes) - 1; reroutes > len(pub.samples) {
		t.Errorf("reroutes %d > samples %d", reroutes, len(pub.samples))
	}
	last := pub.samples[len(pub.samples)-1]
	if d := geom.Haversine(last.Route[len(last.Route)-1], cfg.RouteEnd); d > 1 {
		t.Errorf("rerouted away from the route end by %v m", d)
	}
}

func TestAgentRoutingFailureFallsBack(t *testing.T) {
	cfg := params.DefaultPublisherConfig()
	cfg.Start = start
	cfg.MoveEnd = offset(start, 500, 0)
	cfg.Loop = false
	pub := &fakePublisher{}
	router := &straightRouter{err: errors.New("osrm down")}
	a, _ := newTestAgent(cfg, pub, router)

	if err := a.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	// 500 m at 25 m spacing.
	if len(pub.samples) != 21 {
		t.Errorf("published %d samples", len(pub.samples))
	}
}

func TestAgentLoopCancels(t *testing.T) {
	cfg := params.DefaultPublisherConfig()
	cfg.Start = start
	cfg.MoveEnd = offset(start, 1000, 0)
	cfg.Loop = true
	pub := &fakePublisher{}
	a, clock := newTestAgent(cfg, pub, &straightRouter{})
	ctx, cancel := context.WithCancel(context.Background())
	clock.cancel = cancel
	clock.limit = 30 // more than one leg

	err := a.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(pub.samples) != 30 {
		t.Errorf("published %d samples", len(pub.samples))
	}
	// The second leg drives back west.
	if h := pub.samples[12].Heading; h == nil || geom.AngleDiff(*h, 270) > 1 {
		t.Errorf("backward heading %v", h)
	}
}
