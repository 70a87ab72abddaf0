package position

import (
	"math"
	"testing"
)

func TestFieldsKey(t *testing.T) {
	tests := []struct {
		name   string
		fields Fields
		want   string
	}{
		{"Callsign only", Fields{"callsign": "UAL123"}, "UAL123:p"},
		{"With player id", Fields{"callsign": "UAL123", "playerId": "abc"}, "UAL123:abc"},
		{"Numeric player id", Fields{"callsign": "UAL123", "playerId": 42.0}, "UAL123:42"},
		{"Explicit id wins", Fields{"id": "custom", "callsign": "UAL123", "playerId": "abc"}, "custom"},
		{"Empty id ignored", Fields{"id": "", "callsign": "UAL123"}, "UAL123:p"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fields.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFieldsFloat(t *testing.T) {
	f := Fields{
		"num":    12.5,
		"str":    "3500",
		"junk":   "high",
		"true":   true,
		"false":  false,
		"nil":    nil,
		"array":  []any{1.0},
		"nan":    math.NaN(),
		"inf":    math.Inf(1),
		"object": map[string]any{},
	}
	tests := []struct {
		name string
		want float64
	}{
		{"num", 12.5},
		{"str", 3500},
		{"junk", 0},
		{"true", 1},
		{"false", 0},
		{"nil", 0},
		{"array", 0},
		{"nan", 0},
		{"inf", 0},
		{"object", 0},
		{"missing", 0},
	}
	for _, tt := range tests {
		if got := f.Float(tt.name); got != tt.want {
			t.Errorf("Float(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFieldsString(t *testing.T) {
	f := Fields{
		"str":   "KJFK",
		"num":   7700.0,
		"frac":  1.5,
		"bool":  true,
		"array": []any{"x"},
	}
	tests := []struct {
		name string
		want string
	}{
		{"str", "KJFK"},
		{"num", "7700"},
		{"frac", "1.5"},
		{"bool", ""},
		{"array", ""},
		{"missing", ""},
	}
	for _, tt := range tests {
		if got := f.String(tt.name); got != tt.want {
			t.Errorf("String(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestFieldsIsNumber(t *testing.T) {
	f := Fields{"lat": 40.0, "lon": "-73", "nan": math.NaN()}
	if !f.IsNumber("lat") {
		t.Error("expected lat to be a number")
	}
	if f.IsNumber("lon") {
		t.Error("numeric string must not count as a number")
	}
	if f.IsNumber("nan") || f.IsNumber("missing") {
		t.Error("NaN and missing fields are not numbers")
	}
}

func TestFieldsPlan(t *testing.T) {
	if got := (Fields{"flightPlan": "KJFK DCT KLAX"}).Plan(); len(got) != 0 || got == nil {
		t.Errorf("expected empty plan for non-array, got %#v", got)
	}
	got := (Fields{"flightPlan": []any{"MERIT", "GREKI"}}).Plan()
	if len(got) != 2 || got[1] != "GREKI" {
		t.Errorf("expected plan passed through, got %#v", got)
	}
}
