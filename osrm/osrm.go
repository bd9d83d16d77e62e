/*
Package osrm is a client for an OSRM-compatible routing service:
road-following routes between two points, and nearest-road lookups.
*/
package osrm

import (
	"context"
	"errors"
	"fmt"
	"github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/livetrack/common"
	"github.com/rotblauer/livetrack/geo/geom"
	"github.com/rotblauer/livetrack/params"
	"github.com/tidwall/gjson"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

var ErrNoRoute = errors.New("no route")

type Client struct {
	Config *params.RoutingConfig

	http    *http.Client
	nearest *lru.Cache[string, Waypoint]
	logger  *slog.Logger
}

// Waypoint is a nearest-road answer.
type Waypoint struct {
	Point    orb.Point
	Distance float64 // meters from the query point
}

func NewClient(config *params.RoutingConfig) (*Client, error) {
	if config == nil {
		config = params.DefaultRoutingConfig()
	}
	size := config.NearestCacheSize
	if size <= 0 {
		size = 1
	}
	cache, err := lru.New[string, Waypoint](size)
	if err != nil {
		return nil, err
	}
	return &Client{
		Config:  config,
		http:    &http.Client{Timeout: config.Timeout},
		nearest: cache,
		logger:  slog.With("d", "osrm"),
	}, nil
}

func (c *Client) profile() string {
	if c.Config.Profile == "" {
		return "driving"
	}
	return c.Config.Profile
}

func coord(p orb.Point) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lon(), p.Lat())
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm returned %d: %s", resp.StatusCode, gjson.GetBytes(body, "message").String())
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("osrm returned invalid json")
	}
	return body, nil
}

// Route returns the road-following polyline from start to end.
func (c *Client) Route(ctx context.Context, start, end orb.Point) (orb.LineString, error) {
	url := fmt.Sprintf("%s/route/v1/%s/%s;%s?overview=full&geometries=geojson",
		strings.TrimRight(c.Config.BaseURL, "/"), c.profile(), coord(start), coord(end))
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	geometry := gjson.GetBytes(body, "routes.0.geometry")
	if !geometry.Exists() {
		return nil, fmt.Errorf("%w: no geometry (code %s)", ErrNoRoute, gjson.GetBytes(body, "code").String())
	}
	g, err := geojson.UnmarshalGeometry([]byte(geometry.Raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRoute, err)
	}
	line, ok := g.Geometry().(orb.LineString)
	if !ok || len(line) < 2 {
		return nil, fmt.Errorf("%w: geometry %s", ErrNoRoute, g.Geometry().GeoJSONType())
	}
	return line, nil
}

func nearestKey(p orb.Point) string {
	return fmt.Sprintf("%.*f,%.*f",
		common.GPSPrecision5, p.Lon(), common.GPSPrecision5, p.Lat())
}

// Nearest snaps p to the nearest road.
// Answers are cached by p rounded to about a meter.
func (c *Client) Nearest(ctx context.Context, p orb.Point) (orb.Point, float64, error) {
	key := nearestKey(p)
	if w, ok := c.nearest.Get(key); ok {
		return w.Point, w.Distance, nil
	}
	url := fmt.Sprintf("%s/nearest/v1/%s/%s?number=1",
		strings.TrimRight(c.Config.BaseURL, "/"), c.profile(), coord(p))
	body, err := c.get(ctx, url)
	if err != nil {
		return orb.Point{}, 0, err
	}
	loc := gjson.GetBytes(body, "waypoints.0.location").Array()
	if len(loc) != 2 {
		return orb.Point{}, 0, errors.New("osrm: no waypoint")
	}
	w := Waypoint{
		Point:    orb.Point{loc[0].Float(), loc[1].Float()},
		Distance: gjson.GetBytes(body, "waypoints.0.distance").Float(),
	}
	if !geom.Valid(w.Point) {
		return orb.Point{}, 0, fmt.Errorf("osrm: invalid waypoint %v", w.Point)
	}
	c.nearest.Add(key, w)
	return w.Point, w.Distance, nil
}
