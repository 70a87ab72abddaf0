// Radar TUI
// Live aircraft table and radar view fed by the broadcast stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unklstewy/atc-radar/internal/logging"
	"github.com/unklstewy/atc-radar/pkg/coordinates"
	"github.com/unklstewy/atc-radar/pkg/position"
	"github.com/unklstewy/atc-radar/pkg/stream"
)

var (
	serverURL = flag.String("server", "http://localhost:8080", "Radar server base URL")
	centerLat = flag.Float64("lat", 40.6413, "Radar centre latitude")
	centerLon = flag.Float64("lon", -73.7781, "Radar centre longitude")
	radius    = flag.Float64("radius", 50, "Radar radius in nautical miles")
	logFile   = flag.String("log", "", "Write logs to this file (default: discard)")
)

type snapshotMsg position.Snapshot

type statusMsg stream.Status

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	aircraft []position.Record
	updated  time.Time

	status   stream.Status
	retryAt  time.Time
	now      time.Time
	selected int

	filter    string
	inputMode bool

	radarMode   bool
	radarCenter coordinates.Geographic
	radarRadius float64

	width  int
	height int
}

func newModel(center coordinates.Geographic, radiusNM float64) model {
	return model{
		status:      stream.Status{State: stream.Connecting},
		now:         time.Now(),
		radarCenter: center,
		radarRadius: radiusNM,
		width:       120,
		height:      40,
	}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case snapshotMsg:
		// Every snapshot replaces the whole picture.
		m.aircraft = msg.Aircraft
		m.updated = msg.Timestamp
		if m.selected >= len(m.visible()) {
			m.selected = max(0, len(m.visible())-1)
		}

	case statusMsg:
		m.status = stream.Status(msg)
		if m.status.State == stream.Disconnected {
			m.retryAt = time.Now().Add(m.status.RetryIn)
		}

	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()

	case tea.KeyMsg:
		if m.inputMode {
			return m.updateFilter(msg), nil
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m model) updateFilter(msg tea.KeyMsg) model {
	switch msg.Type {
	case tea.KeyEnter:
		m.inputMode = false
	case tea.KeyEsc:
		m.inputMode = false
		m.filter = ""
	case tea.KeyBackspace:
		if len(m.filter) > 0 {
			m.filter = m.filter[:len(m.filter)-1]
		}
	case tea.KeyRunes:
		m.filter += string(msg.Runes)
	}
	m.selected = 0
	return m
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "/":
		m.inputMode = true
	case "r":
		m.radarMode = !m.radarMode
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.visible())-1 {
			m.selected++
		}
	case "c":
		// Centre the radar on the selected aircraft.
		if ac, ok := m.selectedAircraft(); ok {
			m.radarCenter = coordinates.Geographic{Latitude: ac.Latitude, Longitude: ac.Longitude}
		}
	case "+", "=":
		if m.radarRadius > 5 {
			m.radarRadius /= 1.5
		}
	case "-", "_":
		if m.radarRadius < 500 {
			m.radarRadius *= 1.5
		}
	}
	return m, nil
}

// visible returns the aircraft matching the filter, sorted by callsign.
func (m model) visible() []position.Record {
	term := strings.ToLower(strings.TrimSpace(m.filter))
	out := make([]position.Record, 0, len(m.aircraft))
	for _, ac := range m.aircraft {
		if term == "" || matches(ac, term) {
			out = append(out, ac)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Callsign != out[j].Callsign {
			return out[i].Callsign < out[j].Callsign
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func matches(ac position.Record, term string) bool {
	for _, field := range []string{ac.Callsign, ac.FlightNumber, ac.Departure, ac.Arrival, ac.Squawk} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func (m model) selectedAircraft() (position.Record, bool) {
	list := m.visible()
	if m.selected < 0 || m.selected >= len(list) {
		return position.Record{}, false
	}
	return list[m.selected], true
}

func main() {
	flag.Parse()

	var out io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	logging.Init(logging.Config{Level: "debug", Output: out})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newModel(coordinates.Geographic{Latitude: *centerLat, Longitude: *centerLon}, *radius)
	p := tea.NewProgram(m, tea.WithAltScreen())

	client := stream.NewClient(stream.Config{
		URL: strings.TrimRight(*serverURL, "/") + "/api/atc/stream",
	})
	client.OnSnapshot = func(s position.Snapshot) { p.Send(snapshotMsg(s)) }
	client.OnStatus = func(st stream.Status) { p.Send(statusMsg(st)) }
	go func() { _ = client.Run(ctx) }()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
