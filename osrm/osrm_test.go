package osrm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/geo/geom"
	"github.com/rotblauer/livetrack/params"
)

var (
	london      = orb.Point{-81.2465922, 42.9814206}
	mississauga = orb.Point{-79.7018163, 43.6159874}
)

const routeOK = `{"code":"Ok","routes":[{"geometry":{"coordinates":[[-81.246592,42.981421],[-81.2,43.0],[-79.701816,43.615987]],"type":"LineString"},"distance":181000.2,"duration":7000.1}],"waypoints":[]}`
const nearestOK = `{"code":"Ok","waypoints":[{"hint":"x","distance":4.2,"name":"York Street","location":[-81.246601,42.981452]}]}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := params.DefaultRoutingConfig()
	cfg.BaseURL = srv.URL
	cfg.Timeout = time.Second
	c, err := NewClient(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRoute(t *testing.T) {
	var gotPath, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		fmt.Fprint(w, routeOK)
	})
	line, err := c.Route(context.Background(), london, mississauga)
	if err != nil {
		t.Fatal(err)
	}
	if len(line) != 3 {
		t.Fatalf("got %d points", len(line))
	}
	if line[0] != (orb.Point{-81.246592, 42.981421}) {
		t.Errorf("first %v", line[0])
	}
	if want := "/route/v1/driving/-81.246592,42.981421;-79.701816,43.615987"; gotPath != want {
		t.Errorf("path %s", gotPath)
	}
	if !strings.Contains(gotQuery, "overview=full") || !strings.Contains(gotQuery, "geometries=geojson") {
		t.Errorf("query %s", gotQuery)
	}
}

func TestRouteErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"5xx", http.StatusServiceUnavailable, `{"message":"busy"}`},
		{"no routes", http.StatusOK, `{"code":"NoRoute","routes":[]}`},
		{"one point", http.StatusOK, `{"code":"Ok","routes":[{"geometry":{"type":"LineString","coordinates":[[1,2]]}}]}`},
		{"garbage", http.StatusOK, `not json`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			})
			if _, err := c.Route(context.Background(), london, mississauga); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNearestCached(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasPrefix(r.URL.Path, "/nearest/v1/driving/") || r.URL.Query().Get("number") != "1" {
			t.Errorf("unexpected request %s", r.URL)
		}
		fmt.Fprint(w, nearestOK)
	})
	p, d, err := c.Nearest(context.Background(), london)
	if err != nil {
		t.Fatal(err)
	}
	if p != (orb.Point{-81.246601, 42.981452}) || d != 4.2 {
		t.Errorf("got %v %v", p, d)
	}
	// Within rounding of the first query.
	if _, _, err := c.Nearest(context.Background(), orb.Point{london.Lon() + 1e-7, london.Lat()}); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls %d", calls.Load())
	}
}

func TestNearestError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"Ok","waypoints":[]}`)
	})
	if _, _, err := c.Nearest(context.Background(), london); err == nil {
		t.Error("expected error")
	}
}

func TestFallback(t *testing.T) {
	line := Fallback(london, mississauga, 25, 8)
	if len(line) < 8 {
		t.Fatalf("got %d points", len(line))
	}
	if line[0] != london || line[len(line)-1] != mississauga {
		t.Errorf("endpoints %v %v", line[0], line[len(line)-1])
	}
	// ~145 km at 25 m spacing.
	if len(line) < 5000 {
		t.Errorf("too sparse: %d", len(line))
	}

	short := Fallback(london, orb.Point{london.Lon() + 0.0001, london.Lat()}, 25, 8)
	if len(short) != 9 {
		t.Errorf("short fallback has %d points", len(short))
	}
}

type failingRouter struct{}

func (failingRouter) Route(ctx context.Context, start, end orb.Point) (orb.LineString, error) {
	return nil, errors.New("osrm down")
}

func TestRouteOrFallback(t *testing.T) {
	line, fell := RouteOrFallback(context.Background(), failingRouter{}, london, mississauga, nil)
	if !fell {
		t.Error("expected fallback")
	}
	if len(line) < 8 {
		t.Fatalf("got %d points", len(line))
	}
	if geom.Haversine(line[0], london) > 5 || geom.Haversine(line[len(line)-1], mississauga) > 5 {
		t.Errorf("endpoints %v %v", line[0], line[len(line)-1])
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, routeOK)
	})
	line, fell = RouteOrFallback(context.Background(), c, london, mississauga, nil)
	if fell || len(line) != 3 {
		t.Errorf("fell %v len %d", fell, len(line))
	}
}
