package main

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/atc-radar/pkg/coordinates"
)

// Terminal characters are roughly twice as tall as they are wide, so X
// distances are stretched to keep range rings round.
const aspectRatio = 0.5

// radarSize returns the grid dimensions for the current terminal.
func (m model) radarSize() (int, int) {
	width := m.width - 4
	if width < 60 {
		width = 60
	}
	height := m.height - 20
	if height < 20 {
		height = 20
	}
	return width, height
}

// radarScale returns cells per nautical mile.
func (m model) radarScale(width, height int) float64 {
	maxY := float64(height/2 - 1)
	maxX := float64(width/2-2) * aspectRatio
	return math.Min(maxX, maxY) / m.radarRadius
}

// radarToScreen converts a position to a grid cell. ok is false when the
// aircraft is outside the radar radius or the grid.
func (m model) radarToScreen(lat, lon float64, width, height int) (x, y int, ok bool) {
	off := coordinates.OffsetFrom(m.radarCenter, coordinates.Geographic{Latitude: lat, Longitude: lon})
	if off.Range() > m.radarRadius {
		return 0, 0, false
	}

	scale := m.radarScale(width, height)
	x = width/2 + int(math.Round(off.East*scale/aspectRatio))
	y = height/2 - int(math.Round(off.North*scale)) // Y increases downward

	if x < 0 || x >= width || y < 0 || y >= height {
		return 0, 0, false
	}
	return x, y, true
}

// headingGlyph picks an arrow for the aircraft's heading.
func headingGlyph(heading float64) rune {
	glyphs := []rune{'↑', '↗', '→', '↘', '↓', '↙', '←', '↖'}
	idx := int(math.Round(coordinates.NormalizeHeading(heading)/45.0)) % 8
	return glyphs[idx]
}

// renderRadar draws range rings and aircraft around the radar centre.
func (m model) renderRadar() string {
	width, height := m.radarSize()

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}

	cx, cy := width/2, height/2
	scale := m.radarScale(width, height)

	// Range rings at quarters of the radius
	for ring := 1; ring <= 4; ring++ {
		r := float64(ring) * m.radarRadius / 4 * scale
		for deg := 0; deg < 360; deg += 3 {
			rad := float64(deg) * coordinates.DegreesToRadians
			x := cx + int(math.Round(r*math.Sin(rad)/aspectRatio))
			y := cy - int(math.Round(r*math.Cos(rad)))
			if x >= 0 && x < width && y >= 0 && y < height {
				grid[y][x] = '·'
			}
		}
	}
	grid[cy][cx] = '+'

	selected, hasSelected := m.selectedAircraft()
	selX, selY := -1, -1

	for _, ac := range m.aircraft {
		x, y, ok := m.radarToScreen(ac.Latitude, ac.Longitude, width, height)
		if !ok {
			continue
		}
		grid[y][x] = headingGlyph(ac.Heading)
		for i, ch := range ac.Callsign {
			if x+2+i >= width {
				break
			}
			grid[y][x+2+i] = ch
		}
		if hasSelected && ac.ID == selected.ID {
			selX, selY = x, y
		}
	}

	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	ringStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("28"))
	markStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)

	var s strings.Builder
	s.WriteString(borderStyle.Render("┌" + strings.Repeat("─", width) + "┐"))
	s.WriteString("\n")
	for y, row := range grid {
		s.WriteString(borderStyle.Render("│"))
		for x, ch := range row {
			switch {
			case x == selX && y == selY:
				s.WriteString(markStyle.Render(string(ch)))
			case ch == '·':
				s.WriteString(ringStyle.Render(string(ch)))
			default:
				s.WriteRune(ch)
			}
		}
		s.WriteString(borderStyle.Render("│"))
		s.WriteString("\n")
	}
	s.WriteString(borderStyle.Render("└" + strings.Repeat("─", width) + "┘"))
	return s.String()
}
