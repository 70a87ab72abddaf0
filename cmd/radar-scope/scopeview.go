package main

import (
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/unklstewy/atc-radar/pkg/coordinates"
)

// Terminal cells are about twice as tall as wide.
const aspectRatio = 0.5

// ScopeView is a custom tview primitive that draws a plan-position display.
type ScopeView struct {
	*tview.Box
	app *App
}

// NewScopeView creates a new scope view
func NewScopeView(app *App) *ScopeView {
	sv := &ScopeView{
		Box: tview.NewBox(),
		app: app,
	}
	sv.SetBorder(true).SetTitle(" Radar Scope ")
	return sv
}

// Draw renders the scope using tcell
func (sv *ScopeView) Draw(screen tcell.Screen) {
	sv.Box.DrawForSubclass(screen, sv)
	x, y, width, height := sv.GetInnerRect()

	centerX := x + width/2
	centerY := y + height/2
	radius := float64(height/2 - 1)
	if rx := float64(width/2-2) * aspectRatio; rx < radius {
		radius = rx
	}
	if radius < 2 {
		return
	}

	sv.app.mu.RLock()
	center := sv.app.center
	rangeNM := sv.app.rangeNM
	selectedID := sv.app.selectedID
	showVectors := sv.app.showVectors
	sv.app.mu.RUnlock()

	scale := radius / rangeNM

	ringStyle := tcell.StyleDefault.Foreground(tcell.ColorDarkGreen)
	labelStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)

	// Range rings at quarters of the range
	for ring := 1; ring <= 4; ring++ {
		r := float64(ring) * radius / 4
		drawEllipse(screen, centerX, centerY, r, '·', ringStyle)
		label := fmt.Sprintf("%.0f", float64(ring)*rangeNM/4)
		for i, ch := range label {
			screen.SetContent(centerX+1+i, centerY-int(r), ch, nil, labelStyle)
		}
	}
	screen.SetContent(centerX, centerY, '+', nil, labelStyle)

	for _, c := range []struct {
		deg   float64
		label rune
	}{{0, 'N'}, {90, 'E'}, {180, 'S'}, {270, 'W'}} {
		px, py := project(centerX, centerY, radius+1, c.deg)
		screen.SetContent(px, py, c.label, nil, labelStyle)
	}

	now := time.Now()
	for _, ac := range sv.app.sortedAircraft() {
		pos := extrapolate(ac, now)
		off := coordinates.OffsetFrom(center, pos)
		if off.Range() > rangeNM {
			continue
		}

		px := centerX + int(math.Round(off.East*scale/aspectRatio))
		py := centerY - int(math.Round(off.North*scale))
		if px < x || px >= x+width || py < y || py >= y+height {
			continue
		}

		style := tcell.StyleDefault.Foreground(tcell.ColorLightBlue)
		symbol := '○'
		if ac.ID == selectedID {
			style = tcell.StyleDefault.Foreground(tcell.ColorYellow)
			symbol = '●'
		}
		if ac.Squawk == "7700" || ac.Squawk == "7600" || ac.Squawk == "7500" {
			style = tcell.StyleDefault.Foreground(tcell.ColorRed)
		}

		// One-minute velocity leader
		if showVectors && ac.GroundSpeed > 0 {
			ahead := coordinates.OffsetFrom(center, coordinates.DeadReckon(pos, ac.GroundSpeed, ac.Heading, time.Minute))
			vx := centerX + int(math.Round(ahead.East*scale/aspectRatio))
			vy := centerY - int(math.Round(ahead.North*scale))
			drawLine(screen, px, py, vx, vy, '∙', tcell.StyleDefault.Foreground(tcell.ColorDarkCyan))
		}

		screen.SetContent(px, py, symbol, nil, style)

		label := fmt.Sprintf("%s %03.0f", ac.Callsign, ac.AltitudeMSL/100)
		for j, ch := range label {
			if px+j+2 >= x+width {
				break
			}
			screen.SetContent(px+j+2, py, ch, nil, style)
		}
	}
}

// project returns the cell at radius r (in rows) on the given bearing.
func project(cx, cy int, r, bearingDeg float64) (int, int) {
	rad := bearingDeg * coordinates.DegreesToRadians
	return cx + int(math.Round(r*math.Sin(rad)/aspectRatio)), cy - int(math.Round(r*math.Cos(rad)))
}

// drawEllipse draws a ring stretched horizontally so it looks round.
func drawEllipse(screen tcell.Screen, cx, cy int, r float64, char rune, style tcell.Style) {
	steps := int(2 * math.Pi * r / aspectRatio)
	if steps < 16 {
		steps = 16
	}
	for i := 0; i < steps; i++ {
		px, py := project(cx, cy, r, float64(i)*360/float64(steps))
		screen.SetContent(px, py, char, nil, style)
	}
}

// drawLine draws a line using Bresenham's line algorithm
func drawLine(screen tcell.Screen, x0, y0, x1, y1 int, char rune, style tcell.Style) {
	dx := abs(x1 - x0)
	dy := abs(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		screen.SetContent(x0, y0, char, nil, style)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
