package reporter

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/unklstewy/atc-radar/pkg/coordinates"
)

// TestClientSend tests posting reports.
func TestClientSend(t *testing.T) {
	t.Run("Accepted", func(t *testing.T) {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("Expected POST, got %s", r.Method)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected application/json, got %q", ct)
			}
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &got)
			_, _ = w.Write([]byte(`{"success":true}`))
		}))
		defer srv.Close()

		c := NewClient(Config{URL: srv.URL})
		err := c.Send(context.Background(), Report{Callsign: "UAL123", PlayerID: "7", Latitude: 40, Longitude: -73})
		if err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if got["callsign"] != "UAL123" || got["playerId"] != "7" || got["lat"] != 40.0 {
			t.Errorf("Unexpected body: %v", got)
		}
		if _, ok := got["id"]; ok {
			t.Error("Expected empty id omitted")
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Missing required fields"}`))
		}))
		defer srv.Close()

		err := NewClient(Config{URL: srv.URL}).Send(context.Background(), Report{})
		if !errors.Is(err, ErrRejected) {
			t.Errorf("Expected ErrRejected, got %v", err)
		}
	})

	t.Run("Cancelled while waiting", func(t *testing.T) {
		c := NewClient(Config{URL: "http://127.0.0.1:1", RequestsPerSecond: 0.001})
		// Spend the only token.
		c.rateLimiter.Allow()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := c.Send(ctx, Report{Callsign: "A"}); err == nil {
			t.Error("Expected rate limiter error")
		}
	})
}

// TestFlightStep tests that a flight moves, turns and levels off.
func TestFlightStep(t *testing.T) {
	center := coordinates.Geographic{Latitude: 40.0, Longitude: -74.0}
	f := &Flight{
		Callsign:    "TEST1",
		Position:    center,
		GroundSpeed: 360,
		AltitudeFt:  10000,
		TargetAltFt: 11000,
		Route: []Waypoint{
			{Ident: "NORTH", Position: coordinates.Destination(center, 0, 30)},
			{Ident: "EAST", Position: coordinates.Destination(center, 90, 30)},
		},
	}

	f.Step(time.Minute)
	if f.Heading > 1 && f.Heading < 359 {
		t.Errorf("Expected heading north, got %f", f.Heading)
	}
	if d := coordinates.DistanceNauticalMiles(center, f.Position); math.Abs(d-6) > 0.01 {
		t.Errorf("Expected 6 NM travelled, got %f", d)
	}
	if f.AltitudeFt != 11000 || f.ClimbFPM != 1500 {
		t.Errorf("Expected climb capped at 11000, got %f at %f fpm", f.AltitudeFt, f.ClimbFPM)
	}

	for i := 0; i < 5; i++ {
		f.Step(time.Minute)
	}
	if f.NextWaypoint() != "EAST" {
		t.Errorf("Expected to move on to EAST, got %s", f.NextWaypoint())
	}

	f.Step(time.Second)
	if f.ClimbFPM != 0 {
		t.Errorf("Expected level flight, got %f fpm", f.ClimbFPM)
	}
}

// TestFleetReports tests that generated flights produce valid reports.
func TestFleetReports(t *testing.T) {
	center := coordinates.Geographic{Latitude: 33.4, Longitude: -112.0}
	rng := rand.New(rand.NewPCG(1, 2))
	fleet := NewFleet(center, 50, 5, rng, time.Now())

	if len(fleet) != 5 {
		t.Fatalf("Expected 5 flights, got %d", len(fleet))
	}
	for _, f := range fleet {
		r := f.Report("sim")
		if r.Callsign == "" {
			t.Error("Expected a callsign")
		}
		if coordinates.DistanceNauticalMiles(center, coordinates.Geographic{Latitude: r.Latitude, Longitude: r.Longitude}) > 50.01 {
			t.Errorf("%s starts outside the radius", r.Callsign)
		}
		if len(r.FlightPlan) != 4 || r.NextWaypoint == "" {
			t.Errorf("%s: expected a 4-point plan, got %d points", r.Callsign, len(r.FlightPlan))
		}
		if len(r.Squawk) != 4 {
			t.Errorf("%s: expected 4-digit squawk, got %q", r.Callsign, r.Squawk)
		}
	}
}
