// Package reporter is the producer side of the radar: a client that posts
// position reports to the ingestion endpoint and a small simulator that
// flies synthetic aircraft to feed it.
package reporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout for report requests
	DefaultTimeout = 5 * time.Second

	// DefaultRequestsPerSecond paces a simulator with a few dozen aircraft.
	DefaultRequestsPerSecond = 20
)

// ErrRejected is returned when the server refuses a report.
var ErrRejected = errors.New("report rejected")

// Report is the JSON body of one position report.
type Report struct {
	ID           string  `json:"id,omitempty"`
	PlayerID     string  `json:"playerId,omitempty"`
	Callsign     string  `json:"callsign"`
	AircraftType string  `json:"type,omitempty"`
	Latitude     float64 `json:"lat"`
	Longitude    float64 `json:"lon"`
	AltitudeAGL  float64 `json:"alt"`
	AltitudeMSL  float64 `json:"altMSL"`
	Heading      float64 `json:"heading"`
	GroundSpeed  float64 `json:"speed"`
	FlightNumber string  `json:"flightNo,omitempty"`
	Departure    string  `json:"departure,omitempty"`
	Arrival      string  `json:"arrival,omitempty"`
	TakeoffTime  string  `json:"takeoffTime,omitempty"`
	Squawk       string  `json:"squawk,omitempty"`
	FlightPlan   []any   `json:"flightPlan,omitempty"`
	NextWaypoint string  `json:"nextWaypoint,omitempty"`
	VerticalSpd  float64 `json:"vspeed"`
}

// Config contains configuration for the report client.
type Config struct {
	// URL is the ingestion endpoint, e.g. http://localhost:8080/api/atc/position
	URL string

	// RequestsPerSecond caps the posting rate across all aircraft.
	RequestsPerSecond float64

	Timeout time.Duration
}

// Client posts position reports.
type Client struct {
	url         string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a report client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	return &Client{
		url:         cfg.URL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// Send posts one report, waiting for the rate limiter first.
func (c *Client) Send(ctx context.Context, report Report) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("%w: %d %s", ErrRejected, resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
}
