package main

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unklstewy/atc-radar/pkg/coordinates"
	"github.com/unklstewy/atc-radar/pkg/position"
	"github.com/unklstewy/atc-radar/pkg/stream"
)

func testModel() model {
	return newModel(coordinates.Geographic{Latitude: 40, Longitude: -74}, 50)
}

// TestSnapshotReplacesView tests that each snapshot fully replaces the list.
func TestSnapshotReplacesView(t *testing.T) {
	m := testModel()

	next, _ := m.Update(snapshotMsg(position.NewSnapshot([]position.Record{
		{ID: "b", Callsign: "DAL2"},
		{ID: "a", Callsign: "UAL1"},
	}, time.Now())))
	m = next.(model)
	if got := len(m.visible()); got != 2 {
		t.Fatalf("Expected 2 aircraft, got %d", got)
	}
	if m.visible()[0].Callsign != "DAL2" {
		t.Errorf("Expected sorted by callsign, got %s first", m.visible()[0].Callsign)
	}

	m.selected = 1
	next, _ = m.Update(snapshotMsg(position.NewSnapshot([]position.Record{{ID: "c", Callsign: "SWA3"}}, time.Now())))
	m = next.(model)
	if got := len(m.visible()); got != 1 || m.visible()[0].Callsign != "SWA3" {
		t.Errorf("Expected only SWA3, got %+v", m.visible())
	}
	if m.selected != 0 {
		t.Errorf("Expected selection clamped to 0, got %d", m.selected)
	}
}

// TestFilter tests search across callsign and route fields.
func TestFilter(t *testing.T) {
	m := testModel()
	m.aircraft = []position.Record{
		{ID: "a", Callsign: "UAL1", Arrival: "KSFO"},
		{ID: "b", Callsign: "DAL2", Squawk: "7700"},
	}

	m.filter = "ksfo"
	if got := m.visible(); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("Expected UAL1 for ksfo, got %+v", got)
	}
	m.filter = "7700"
	if got := m.visible(); len(got) != 1 || got[0].ID != "b" {
		t.Errorf("Expected DAL2 for 7700, got %+v", got)
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(model)
	if m.inputMode {
		t.Error("Expected input mode to stay off")
	}
}

// TestStatusTransitions tests the connection indicator state.
func TestStatusTransitions(t *testing.T) {
	m := testModel()
	next, _ := m.Update(statusMsg(stream.Status{State: stream.Disconnected, Attempt: 2, RetryIn: 4 * time.Second}))
	m = next.(model)

	if m.status.State != stream.Disconnected {
		t.Errorf("Expected disconnected, got %s", m.status.State)
	}
	if until := time.Until(m.retryAt); until <= 0 || until > 4*time.Second {
		t.Errorf("Expected retry within 4s, got %s", until)
	}
	if m.renderStatus() == "" {
		t.Error("Expected a status indicator")
	}
}

// TestRadarToScreen tests projection onto the radar grid.
func TestRadarToScreen(t *testing.T) {
	m := testModel()
	width, height := 80, 30

	x, y, ok := m.radarToScreen(40, -74, width, height)
	if !ok || x != width/2 || y != height/2 {
		t.Errorf("Expected centre at %d,%d, got %d,%d (%v)", width/2, height/2, x, y, ok)
	}

	north := coordinates.Destination(m.radarCenter, 0, 25)
	_, ny, ok := m.radarToScreen(north.Latitude, north.Longitude, width, height)
	if !ok || ny >= height/2 {
		t.Errorf("Expected north above centre, got y=%d (%v)", ny, ok)
	}

	far := coordinates.Destination(m.radarCenter, 90, 80)
	if _, _, ok := m.radarToScreen(far.Latitude, far.Longitude, width, height); ok {
		t.Error("Expected aircraft beyond radius to be hidden")
	}
}
