package main

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/unklstewy/atc-radar/pkg/coordinates"
	"github.com/unklstewy/atc-radar/pkg/position"
	"github.com/unklstewy/atc-radar/pkg/stream"
)

const (
	// redrawInterval is how often the scope re-extrapolates positions between
	// snapshots.
	redrawInterval = 500 * time.Millisecond

	// maxExtrapolation bounds dead reckoning when reports stop or clocks skew.
	maxExtrapolation = 30 * time.Second
)

// AppConfig holds the application configuration
type AppConfig struct {
	Center coordinates.Geographic
	Range  float64
	Logs   *LogManager
}

// App is the scope application.
type App struct {
	tviewApp   *tview.Application
	scope      *ScopeView
	telemetry  *tview.TextView
	controls   *tview.TextView
	logs       *LogManager
	rootLayout *tview.Flex

	mu          sync.RWMutex
	center      coordinates.Geographic
	rangeNM     float64
	aircraft    []position.Record
	received    time.Time
	status      stream.Status
	retryAt     time.Time
	selectedID  string
	showVectors bool

	stopChan chan struct{}
}

// NewApp creates a new application instance
func NewApp(cfg AppConfig) *App {
	a := &App{
		center:      cfg.Center,
		rangeNM:     cfg.Range,
		logs:        cfg.Logs,
		status:      stream.Status{State: stream.Connecting},
		showVectors: true,
		stopChan:    make(chan struct{}),
	}
	a.setupUI()
	return a
}

// setupUI initializes the user interface
func (a *App) setupUI() {
	a.tviewApp = tview.NewApplication()
	a.scope = NewScopeView(a)

	a.telemetry = tview.NewTextView().SetDynamicColors(true)
	a.telemetry.SetBorder(true).SetTitle(" Telemetry ")

	a.controls = tview.NewTextView().SetDynamicColors(true)
	a.controls.SetBorder(true).SetTitle(" Controls ")
	a.controls.SetText(`[yellow]NAVIGATION[-]
  [white]↑/↓, j/k[-]  Select
  [white]c[-]         Centre on selected

[yellow]DISPLAY[-]
  [white]v[-]         Velocity vectors
  [white]+/-[-]       Range

[yellow]CONTROL[-]
  [white]q[-]         Quit`)

	sidebar := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.telemetry, 0, 4, false).
		AddItem(a.controls, 0, 2, false).
		AddItem(a.logs.GetView(), 0, 4, false)

	a.rootLayout = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.scope, 0, 7, true).
		AddItem(sidebar, 0, 3, false)

	a.tviewApp.SetRoot(a.rootLayout, true)
	a.tviewApp.SetInputCapture(a.handleKeyboard)
}

// ApplySnapshot replaces the displayed traffic. Safe from any goroutine.
func (a *App) ApplySnapshot(snap position.Snapshot) {
	a.mu.Lock()
	old := len(a.aircraft)
	a.aircraft = snap.Aircraft
	a.received = time.Now()
	a.mu.Unlock()

	if old != len(snap.Aircraft) {
		a.logs.Info("Aircraft count: %d", len(snap.Aircraft))
	}
}

// ApplyStatus records a connection state change. Safe from any goroutine.
func (a *App) ApplyStatus(st stream.Status) {
	a.mu.Lock()
	a.status = st
	if st.State == stream.Disconnected {
		a.retryAt = time.Now().Add(st.RetryIn)
	}
	a.mu.Unlock()

	switch st.State {
	case stream.Connected:
		a.logs.Info("Feed connected")
	case stream.Disconnected:
		a.logs.Warn("Feed lost, retry in %s", st.RetryIn)
	}
}

// sortedAircraft returns the traffic ordered by callsign.
func (a *App) sortedAircraft() []position.Record {
	a.mu.RLock()
	list := make([]position.Record, len(a.aircraft))
	copy(list, a.aircraft)
	a.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Callsign != list[j].Callsign {
			return list[i].Callsign < list[j].Callsign
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// extrapolate dead-reckons a record from its last report to now.
func extrapolate(ac position.Record, now time.Time) coordinates.Geographic {
	pos := coordinates.Geographic{Latitude: ac.Latitude, Longitude: ac.Longitude}
	if ac.LastSeen.IsZero() {
		return pos
	}
	elapsed := now.Sub(ac.LastSeen)
	if elapsed <= 0 {
		return pos
	}
	if elapsed > maxExtrapolation {
		elapsed = maxExtrapolation
	}
	return coordinates.DeadReckon(pos, ac.GroundSpeed, ac.Heading, elapsed)
}

// updateTelemetry updates the telemetry panel content
func (a *App) updateTelemetry() {
	list := a.sortedAircraft()

	a.mu.RLock()
	selectedID := a.selectedID
	status := a.status
	retryAt := a.retryAt
	received := a.received
	center := a.center
	rangeNM := a.rangeNM
	a.mu.RUnlock()

	var text string
	switch status.State {
	case stream.Connected:
		text += "[yellow]FEED:[-] [green]LIVE[-]"
		if !received.IsZero() {
			text += fmt.Sprintf(" [gray](%.0fs ago)[-]", time.Since(received).Seconds())
		}
	case stream.Disconnected:
		retry := time.Until(retryAt).Round(time.Second)
		if retry < 0 {
			retry = 0
		}
		text += fmt.Sprintf("[yellow]FEED:[-] [red]DISCONNECTED[-] [gray]retry %s[-]", retry)
	default:
		text += "[yellow]FEED:[-] [orange]CONNECTING[-]"
	}
	text += "\n\n"

	found := false
	for _, ac := range list {
		if ac.ID != selectedID {
			continue
		}
		found = true
		brg := coordinates.Bearing(center, coordinates.Geographic{Latitude: ac.Latitude, Longitude: ac.Longitude})
		rng := coordinates.DistanceNauticalMiles(center, coordinates.Geographic{Latitude: ac.Latitude, Longitude: ac.Longitude})
		text += fmt.Sprintf("[yellow]AIRCRAFT:[-] [white]%s[-] [gray](%s)[-]\n", tview.Escape(ac.Callsign), tview.Escape(ac.AircraftType))
		text += fmt.Sprintf("[gray]Alt:[-]  [white]%.0f ft[-]  [gray]V/S:[-] [white]%+.0f[-]\n", ac.AltitudeMSL, ac.VerticalSpeed)
		text += fmt.Sprintf("[gray]Hdg:[-]  [white]%03.0f°[-]     [gray]Spd:[-] [white]%.0f kts[-]\n", ac.Heading, ac.GroundSpeed)
		text += fmt.Sprintf("[gray]Brg:[-]  [white]%03.0f°[-]     [gray]Rng:[-] [white]%.1f nm[-]\n", brg, rng)
		text += fmt.Sprintf("[gray]Route:[-] [white]%s → %s[-]\n", tview.Escape(ac.Departure), tview.Escape(ac.Arrival))
		text += fmt.Sprintf("[gray]Next:[-] [white]%s[-]  [gray]Sqk:[-] [white]%s[-]\n", tview.Escape(ac.NextWaypoint), tview.Escape(ac.Squawk))
		text += fmt.Sprintf("[gray]Age:[-]  [white]%.0fs[-]\n", time.Since(ac.LastSeen).Seconds())
	}
	if !found {
		text += "[gray]No aircraft selected[-]\n"
	}

	text += "\n"
	text += fmt.Sprintf("[yellow]CENTRE:[-] [white]%.4f°, %.4f°[-]\n", center.Latitude, center.Longitude)
	text += fmt.Sprintf("[gray]Range:[-] [white]%.0f nm[-]  [gray]Traffic:[-] [white]%d[-]\n", rangeNM, len(list))

	a.telemetry.SetText(text)
}

// handleKeyboard handles keyboard input
func (a *App) handleKeyboard(event *tcell.EventKey) *tcell.EventKey {
	key := event.Key()
	r := event.Rune()

	switch {
	case key == tcell.KeyEscape || r == 'q':
		a.Stop()
		return nil
	case key == tcell.KeyUp || r == 'k':
		a.moveSelection(-1)
		return nil
	case key == tcell.KeyDown || r == 'j':
		a.moveSelection(1)
		return nil
	case r == 'c':
		a.centreOnSelected()
		return nil
	case r == 'v':
		a.mu.Lock()
		a.showVectors = !a.showVectors
		a.mu.Unlock()
		return nil
	case r == '+' || r == '=':
		a.setRange(1 / 1.5)
		return nil
	case r == '-':
		a.setRange(1.5)
		return nil
	}
	return event
}

// moveSelection steps the selection through the sorted traffic list.
func (a *App) moveSelection(delta int) {
	list := a.sortedAircraft()
	if len(list) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	idx := -1
	for i, ac := range list {
		if ac.ID == a.selectedID {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(list)) % len(list)
	a.selectedID = list[idx].ID
}

func (a *App) centreOnSelected() {
	for _, ac := range a.sortedAircraft() {
		a.mu.Lock()
		if ac.ID == a.selectedID {
			a.center = coordinates.Geographic{Latitude: ac.Latitude, Longitude: ac.Longitude}
			a.mu.Unlock()
			a.logs.Info("Centred on %s", tview.Escape(ac.Callsign))
			return
		}
		a.mu.Unlock()
	}
}

func (a *App) setRange(factor float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rangeNM *= factor
	if a.rangeNM < 5 {
		a.rangeNM = 5
	}
	if a.rangeNM > 500 {
		a.rangeNM = 500
	}
}

// Run starts the application
func (a *App) Run() error {
	go a.redrawLoop()
	return a.tviewApp.Run()
}

// redrawLoop refreshes the side panels and the scope.
func (a *App) redrawLoop() {
	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.tviewApp.QueueUpdateDraw(func() {
				a.updateTelemetry()
				a.logs.Refresh()
			})
		case <-a.stopChan:
			return
		}
	}
}

// Stop stops the application
func (a *App) Stop() {
	close(a.stopChan)
	a.tviewApp.Stop()
}
