// Package position keeps the latest known state of every reporting aircraft.
//
// Producers send complete reports every few seconds. The Store replaces the
// record for the report's key wholesale, stamps it, and publishes the full
// set of live records to its subscribers. Records that stop reporting fade
// out of reads after the staleness threshold and are reclaimed by a Sweeper.
package position

import (
	"math"
	"strconv"
	"time"

	"github.com/mohae/deepcopy"
)

// DefaultPlayerID is the sub-identifier used when a producer sends none.
// Two producers sharing a callsign without a sub-identifier share a key.
const DefaultPlayerID = "p"

// Record is the stored state of one aircraft.
type Record struct {
	ID            string    `json:"id"`
	Callsign      string    `json:"callsign"`
	AircraftType  string    `json:"type"`
	Latitude      float64   `json:"lat"`
	Longitude     float64   `json:"lon"`
	AltitudeAGL   float64   `json:"alt"`
	AltitudeMSL   float64   `json:"altMSL"`
	Heading       float64   `json:"heading"`
	GroundSpeed   float64   `json:"speed"`
	FlightNumber  string    `json:"flightNo"`
	Departure     string    `json:"departure"`
	Arrival       string    `json:"arrival"`
	TakeoffTime   string    `json:"takeoffTime"`
	Squawk        string    `json:"squawk"`
	FlightPlan    []any     `json:"flightPlan"`
	NextWaypoint  string    `json:"nextWaypoint"`
	VerticalSpeed float64   `json:"vspeed"`
	Timestamp     int64     `json:"ts"`
	FirstSeen     time.Time `json:"firstSeen"`
	LastSeen      time.Time `json:"lastSeen"`
}

// Clone returns a copy that shares no mutable state with r.
func (r Record) Clone() Record {
	r.FlightPlan = clonePlan(r.FlightPlan)
	return r
}

// Fields is a decoded report body. Values keep the dynamic types produced
// by a JSON decoder: float64, string, bool, []any, map[string]any, nil.
type Fields map[string]any

// Key returns the store key for the report. A non-empty "id" is used as is;
// otherwise the key is callsign + ":" + playerId, with DefaultPlayerID
// standing in for a missing playerId.
func (f Fields) Key() string {
	if id := f.String("id"); id != "" {
		return id
	}
	player := f.String("playerId")
	if player == "" {
		player = DefaultPlayerID
	}
	return f.String("callsign") + ":" + player
}

// Float coerces the named field to a number. Numeric strings are parsed,
// booleans map to 1 and 0, and anything else (including NaN and ±Inf)
// becomes 0.
func (f Fields) Float(name string) float64 {
	var v float64
	switch x := f[name].(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		v = parsed
	case bool:
		if x {
			v = 1
		}
	default:
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// String coerces the named field to a string. Numbers are formatted in
// their shortest form so a numeric squawk of 7700 reads "7700"; anything
// else that is not a string becomes "".
func (f Fields) String(name string) string {
	switch x := f[name].(type) {
	case string:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}

// IsNumber reports whether the named field holds a finite JSON number.
func (f Fields) IsNumber(name string) bool {
	switch x := f[name].(type) {
	case float64:
		return !math.IsNaN(x) && !math.IsInf(x, 0)
	case float32, int, int64:
		return true
	default:
		return false
	}
}

// Plan returns the flight plan when the field is an array, else an empty one.
func (f Fields) Plan() []any {
	plan, ok := f["flightPlan"].([]any)
	if !ok {
		return []any{}
	}
	return clonePlan(plan)
}

// record builds the stored form of f under key without timestamps.
func (f Fields) record(key string) Record {
	return Record{
		ID:            key,
		Callsign:      f.String("callsign"),
		AircraftType:  f.String("type"),
		Latitude:      f.Float("lat"),
		Longitude:     f.Float("lon"),
		AltitudeAGL:   f.Float("alt"),
		AltitudeMSL:   f.Float("altMSL"),
		Heading:       f.Float("heading"),
		GroundSpeed:   f.Float("speed"),
		FlightNumber:  f.String("flightNo"),
		Departure:     f.String("departure"),
		Arrival:       f.String("arrival"),
		TakeoffTime:   f.String("takeoffTime"),
		Squawk:        f.String("squawk"),
		FlightPlan:    f.Plan(),
		NextWaypoint:  f.String("nextWaypoint"),
		VerticalSpeed: f.Float("vspeed"),
	}
}

func clonePlan(plan []any) []any {
	if len(plan) == 0 {
		return []any{}
	}
	cp, ok := deepcopy.Copy(plan).([]any)
	if !ok {
		return []any{}
	}
	return cp
}
