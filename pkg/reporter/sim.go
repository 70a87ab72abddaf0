package reporter

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/unklstewy/atc-radar/pkg/coordinates"
)

// Waypoint is a named point on a synthetic route.
type Waypoint struct {
	Ident    string
	Position coordinates.Geographic
}

// arrivalRadiusNM is how close a flight must get before moving on to the
// next waypoint.
const arrivalRadiusNM = 2.0

// Flight is one synthetic aircraft flying a closed loop of waypoints.
type Flight struct {
	Callsign     string
	AircraftType string
	Departure    string
	Arrival      string
	Squawk       string

	Position    coordinates.Geographic
	Heading     float64
	GroundSpeed float64 // knots
	AltitudeFt  float64
	ClimbFPM    float64
	TargetAltFt float64

	Route []Waypoint
	next  int

	TakeoffTime time.Time
}

// Step advances the flight by dt: it turns toward the next waypoint, moves
// along its heading and climbs or descends toward the target altitude.
func (f *Flight) Step(dt time.Duration) {
	if len(f.Route) > 0 {
		target := f.Route[f.next].Position
		if coordinates.DistanceNauticalMiles(f.Position, target) < arrivalRadiusNM {
			f.next = (f.next + 1) % len(f.Route)
			target = f.Route[f.next].Position
		}
		f.Heading = coordinates.Bearing(f.Position, target)
	}

	f.Position = coordinates.DeadReckon(f.Position, f.GroundSpeed, f.Heading, dt)

	switch {
	case f.AltitudeFt < f.TargetAltFt:
		f.ClimbFPM = 1500
		f.AltitudeFt = math.Min(f.TargetAltFt, f.AltitudeFt+f.ClimbFPM*dt.Minutes())
	case f.AltitudeFt > f.TargetAltFt:
		f.ClimbFPM = -1500
		f.AltitudeFt = math.Max(f.TargetAltFt, f.AltitudeFt+f.ClimbFPM*dt.Minutes())
	default:
		f.ClimbFPM = 0
	}
}

// NextWaypoint returns the ident the flight is heading for.
func (f *Flight) NextWaypoint() string {
	if len(f.Route) == 0 {
		return ""
	}
	return f.Route[f.next].Ident
}

// Report builds the position report for the flight's current state.
func (f *Flight) Report(playerID string) Report {
	plan := make([]any, 0, len(f.Route))
	for _, wp := range f.Route {
		plan = append(plan, map[string]any{
			"ident": wp.Ident,
			"lat":   wp.Position.Latitude,
			"lon":   wp.Position.Longitude,
		})
	}

	takeoff := ""
	if !f.TakeoffTime.IsZero() {
		takeoff = f.TakeoffTime.UTC().Format(time.RFC3339)
	}

	return Report{
		PlayerID:     playerID,
		Callsign:     f.Callsign,
		AircraftType: f.AircraftType,
		Latitude:     f.Position.Latitude,
		Longitude:    f.Position.Longitude,
		AltitudeAGL:  f.AltitudeFt,
		AltitudeMSL:  f.AltitudeFt,
		Heading:      math.Round(f.Heading),
		GroundSpeed:  f.GroundSpeed,
		FlightNumber: f.Callsign,
		Departure:    f.Departure,
		Arrival:      f.Arrival,
		TakeoffTime:  takeoff,
		Squawk:       f.Squawk,
		FlightPlan:   plan,
		NextWaypoint: f.NextWaypoint(),
		VerticalSpd:  f.ClimbFPM,
	}
}

var (
	airlines = []string{"UAL", "DAL", "AAL", "SWA", "JBU", "ASA"}
	types    = []string{"B738", "A320", "B77W", "E175", "A21N", "CRJ9"}
	airports = []string{"KJFK", "KLAX", "KORD", "KATL", "KSEA", "KDEN"}
)

// NewFleet creates n flights circling center within radiusNM. Each flight
// gets a four-point route around the centre so traffic stays in view.
func NewFleet(center coordinates.Geographic, radiusNM float64, n int, rng *rand.Rand, now time.Time) []*Flight {
	fleet := make([]*Flight, 0, n)
	for i := 0; i < n; i++ {
		start := coordinates.Destination(center, rng.Float64()*360, rng.Float64()*radiusNM)

		route := make([]Waypoint, 4)
		offset := rng.Float64() * 90
		for j := range route {
			route[j] = Waypoint{
				Ident:    fmt.Sprintf("WP%d%d", i, j),
				Position: coordinates.Destination(center, offset+float64(j)*90, radiusNM*(0.4+0.6*rng.Float64())),
			}
		}

		dep := airports[rng.IntN(len(airports))]
		arr := airports[rng.IntN(len(airports))]
		fleet = append(fleet, &Flight{
			Callsign:     fmt.Sprintf("%s%d", airlines[rng.IntN(len(airlines))], 100+rng.IntN(900)),
			AircraftType: types[rng.IntN(len(types))],
			Departure:    dep,
			Arrival:      arr,
			Squawk:       fmt.Sprintf("%04o", 0o1000+rng.IntN(0o6000)),
			Position:     start,
			GroundSpeed:  180 + rng.Float64()*300,
			AltitudeFt:   math.Round(rng.Float64()*30) * 1000,
			TargetAltFt:  math.Round(5+rng.Float64()*30) * 1000,
			Route:        route,
			TakeoffTime:  now.Add(-time.Duration(rng.IntN(120)) * time.Minute),
		})
	}
	return fleet
}
