package telemetry

import (
	"errors"
	"fmt"
	"math"
)

// Default gauge ranges.
const (
	TankMax        = 100 // percent
	TemperatureMax = 50  // degrees Celsius
)

// ErrInvalidConfiguration is returned for a gauge declared with max <= 0.
var ErrInvalidConfiguration = errors.New("invalid gauge configuration")

// GaugeKind names the radial gauges on the dashboard.
type GaugeKind string

const (
	GaugeTank        GaugeKind = "tank"
	GaugeTemperature GaugeKind = "temperature"
)

// GaugeValue is a reading placed inside its declared range.
type GaugeValue struct {
	Raw      int     `json:"raw"`
	Max      int     `json:"max"`
	Fraction float64 `json:"fraction"`
}

// Gauge clamps value to [0, limit] and normalizes it by limit.
func Gauge(value, limit int) (GaugeValue, error) {
	if limit <= 0 {
		return GaugeValue{}, fmt.Errorf("%w: max must be positive, got %d", ErrInvalidConfiguration, limit)
	}
	clamped := min(max(value, 0), limit)
	return GaugeValue{
		Raw:      value,
		Max:      limit,
		Fraction: float64(clamped) / float64(limit),
	}, nil
}

// Sweep is the arc angle in radians, 0 at twelve o'clock, growing clockwise.
// A full gauge sweeps 2π.
func (g GaugeValue) Sweep() float64 {
	return g.Fraction * 2 * math.Pi
}

// Point returns the end of the sweep on a circle of radius r around (cx, cy)
// in screen coordinates, where y grows downwards.
func (g GaugeValue) Point(cx, cy, r float64) (x, y float64) {
	theta := g.Sweep()
	return cx + r*math.Sin(theta), cy - r*math.Cos(theta)
}

// Percent is Fraction scaled to 0..100.
func (g GaugeValue) Percent() float64 {
	return g.Fraction * 100
}

// GaugeSpec is a validated gauge declaration.
type GaugeSpec struct {
	Kind  GaugeKind
	Field string
	Max   int
}

// NewGaugeSpec validates limit once, at configuration time, so that evaluating
// the gauge per reading cannot fail.
func NewGaugeSpec(kind GaugeKind, field string, limit int) (GaugeSpec, error) {
	if limit <= 0 {
		return GaugeSpec{}, fmt.Errorf("%w: %s gauge max must be positive, got %d", ErrInvalidConfiguration, kind, limit)
	}
	return GaugeSpec{Kind: kind, Field: field, Max: limit}, nil
}

// Eval derives the gauge value for r.
func (s GaugeSpec) Eval(r Reading) GaugeValue {
	v, err := Gauge(r.Int(s.Field), s.Max)
	if err != nil {
		// Unreachable for specs built by NewGaugeSpec.
		panic(err)
	}
	return v
}

// DefaultGaugeSpecs returns the tank and temperature gauges with their
// standard ranges.
func DefaultGaugeSpecs() []GaugeSpec {
	return []GaugeSpec{
		{Kind: GaugeTank, Field: FieldTank, Max: TankMax},
		{Kind: GaugeTemperature, Field: FieldTemperature, Max: TemperatureMax},
	}
}
