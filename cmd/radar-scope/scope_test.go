package main

import (
	"math"
	"testing"
	"time"

	"github.com/unklstewy/atc-radar/pkg/coordinates"
	"github.com/unklstewy/atc-radar/pkg/position"
	"github.com/unklstewy/atc-radar/pkg/stream"
)

func TestExtrapolate(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	origin := coordinates.Geographic{Latitude: 40, Longitude: -74}

	tests := []struct {
		name   string
		seen   time.Time
		wantNM float64
	}{
		{"no timestamp", time.Time{}, 0},
		{"future timestamp", now.Add(time.Minute), 0},
		{"ten seconds", now.Add(-10 * time.Second), 360 * 10.0 / 3600},
		{"capped", now.Add(-time.Hour), 360 * maxExtrapolation.Hours()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ac := position.Record{
				Latitude:    origin.Latitude,
				Longitude:   origin.Longitude,
				Heading:     90,
				GroundSpeed: 360,
				LastSeen:    tt.seen,
			}
			got := coordinates.DistanceNauticalMiles(origin, extrapolate(ac, now))
			if math.Abs(got-tt.wantNM) > 0.01 {
				t.Errorf("Expected %.3f nm, got %.3f", tt.wantNM, got)
			}
		})
	}
}

func TestLogManagerWrite(t *testing.T) {
	lm := NewLogManager(2)

	if _, err := lm.Write([]byte(`{"level":"warn","component":"stream","message":"connect failed","error":"refused"}`)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	lm.Write([]byte("not json\n"))
	lm.Info("third")

	if len(lm.messages) != 2 {
		t.Fatalf("Expected 2 retained messages, got %d", len(lm.messages))
	}
	if lm.messages[0].Message != "not json" {
		t.Errorf("Expected raw line kept, got %q", lm.messages[0].Message)
	}

	lm = NewLogManager(10)
	lm.Write([]byte(`{"level":"warn","component":"stream","message":"connect failed","error":"refused"}`))
	msg := lm.messages[0]
	if msg.Level != LogLevelWarn {
		t.Errorf("Expected WARN, got %s", msg.Level)
	}
	if msg.Message != "stream: connect failed (refused)" {
		t.Errorf("Expected formatted message, got %q", msg.Message)
	}
}

func TestAppSelectionAndRange(t *testing.T) {
	app := NewApp(AppConfig{
		Center: coordinates.Geographic{Latitude: 40, Longitude: -74},
		Range:  40,
		Logs:   NewLogManager(10),
	})

	app.ApplySnapshot(position.NewSnapshot([]position.Record{
		{ID: "b", Callsign: "UAL1", Latitude: 41, Longitude: -73},
		{ID: "a", Callsign: "DAL2", Latitude: 39, Longitude: -75},
	}, time.Now()))

	app.moveSelection(1)
	if app.selectedID != "a" {
		t.Errorf("Expected DAL2 selected first, got %q", app.selectedID)
	}
	app.moveSelection(1)
	if app.selectedID != "b" {
		t.Errorf("Expected UAL1 selected next, got %q", app.selectedID)
	}
	app.moveSelection(1)
	if app.selectedID != "a" {
		t.Errorf("Expected selection to wrap, got %q", app.selectedID)
	}

	app.centreOnSelected()
	if app.center.Latitude != 39 || app.center.Longitude != -75 {
		t.Errorf("Expected centre on DAL2, got %+v", app.center)
	}

	for i := 0; i < 20; i++ {
		app.setRange(1 / 1.5)
	}
	if app.rangeNM != 5 {
		t.Errorf("Expected range floor of 5, got %.1f", app.rangeNM)
	}

	app.ApplyStatus(stream.Status{State: stream.Disconnected, RetryIn: 2 * time.Second})
	if app.status.State != stream.Disconnected || app.retryAt.IsZero() {
		t.Errorf("Expected disconnected with retry time, got %+v", app.status)
	}
}
