package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/conceptual"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/types/sample"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client publishes one vehicle's samples and routes to a web daemon.
type Client struct {
	Server  string
	Vehicle conceptual.VehicleID
	Token   string

	http *http.Client
}

func NewClient(config *params.PublisherConfig) *Client {
	return &Client{
		Server:  strings.TrimRight(config.Server, "/"),
		Vehicle: conceptual.VehicleID(config.Vehicle),
		Token:   config.Token,
		http:    &http.Client{Timeout: config.Timeout},
	}
}

func (c *Client) vehicleURL(suffix string) string {
	return fmt.Sprintf("%s/v/%s%s", c.Server, url.PathEscape(c.Vehicle.String()), suffix)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set(params.PublishTokenHeader, c.Token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %d %s", method, url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// PublishSample posts a live sample.
func (c *Client) PublishSample(ctx context.Context, s sample.Sample) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, c.vehicleURL("/ping"), b)
}

// PublishRoute replaces the vehicle's route for every consumer.
// A nil line clears it.
func (c *Client) PublishRoute(ctx context.Context, line orb.LineString) error {
	b, err := json.Marshal(map[string]json.RawMessage{"route": sample.RouteJSON(line)})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, c.vehicleURL("/route"), b)
}

// EndSession tells consumers the vehicle has gone offline.
func (c *Client) EndSession(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, c.vehicleURL(""), nil)
}

// SetStatus pauses or resumes the vehicle's session.
func (c *Client) SetStatus(ctx context.Context, status sample.Status) error {
	b, err := json.Marshal(map[string]sample.Status{"status": status})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, c.vehicleURL("/status"), b)
}
