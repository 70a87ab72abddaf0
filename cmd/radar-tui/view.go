package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/atc-radar/pkg/stream"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	liveStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	waitStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	downStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func (m model) View() string {
	var s strings.Builder

	title := "ATC RADAR"
	if m.radarMode {
		title = fmt.Sprintf("ATC RADAR  %.0f NM", m.radarRadius)
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("  ")
	s.WriteString(m.renderStatus())
	s.WriteString("\n\n")

	if m.radarMode {
		s.WriteString(m.renderRadar())
		s.WriteString("\n")
	}

	s.WriteString(m.renderAircraftList())
	s.WriteString("\n")

	if m.inputMode {
		s.WriteString(selectedStyle.Render("Search: " + m.filter + "_"))
		s.WriteString("\n")
		s.WriteString(helpStyle.Render("ENTER: Apply  ESC: Clear"))
	} else {
		if m.filter != "" {
			s.WriteString(helpStyle.Render(fmt.Sprintf("Filter: %q", m.filter)))
			s.WriteString("\n")
		}
		s.WriteString(helpStyle.Render("↑/↓: Select  /: Search  R: Radar  C: Centre  +/-: Zoom  Q: Quit"))
	}
	s.WriteString("\n")

	return s.String()
}

// renderStatus shows the connection indicator.
func (m model) renderStatus() string {
	switch m.status.State {
	case stream.Connected:
		age := ""
		if !m.updated.IsZero() {
			age = fmt.Sprintf(" (%ds ago)", int(m.now.Sub(m.updated).Seconds()))
		}
		return liveStyle.Render("● LIVE") + helpStyle.Render(age)
	case stream.Disconnected:
		retry := time.Until(m.retryAt).Round(time.Second)
		if retry < 0 {
			retry = 0
		}
		return downStyle.Render("● DISCONNECTED") + helpStyle.Render(fmt.Sprintf(" retry in %s (attempt %d)", retry, m.status.Attempt))
	default:
		return waitStyle.Render("● CONNECTING")
	}
}

func (m model) renderAircraftList() string {
	var s strings.Builder

	list := m.visible()
	s.WriteString(headerStyle.Render(fmt.Sprintf("Aircraft (%d)", len(list))))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("  %-9s %-5s %-9s %-9s %6s %4s %4s %6s %-4s %-9s",
		"CALLSIGN", "TYPE", "LAT", "LON", "ALT", "HDG", "SPD", "V/S", "SQK", "ROUTE")))
	s.WriteString("\n")

	if len(list) == 0 {
		s.WriteString(helpStyle.Render("  No aircraft"))
		s.WriteString("\n")
		return s.String()
	}

	rows := m.height - 12
	if m.radarMode {
		rows = 8
	}
	if rows < 5 {
		rows = 5
	}
	start := 0
	if m.selected >= rows {
		start = m.selected - rows + 1
	}

	for i := start; i < len(list) && i < start+rows; i++ {
		ac := list[i]
		route := ""
		if ac.Departure != "" || ac.Arrival != "" {
			route = ac.Departure + "-" + ac.Arrival
		}
		line := fmt.Sprintf("%-9s %-5s %9.4f %9.4f %6.0f %4.0f %4.0f %6.0f %-4s %-9s",
			ac.Callsign, ac.AircraftType, ac.Latitude, ac.Longitude,
			ac.AltitudeMSL, ac.Heading, ac.GroundSpeed, ac.VerticalSpeed, ac.Squawk, route)

		if i == m.selected {
			s.WriteString(selectedStyle.Render("▶ " + line))
		} else {
			s.WriteString("  " + line)
		}
		s.WriteString("\n")
	}
	return s.String()
}
