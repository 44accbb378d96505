// Package simulator stands in for the irrigation node: it produces plausible
// telemetry lines and sends them as UDP datagrams.
package simulator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"riego-dashboard/internal/telemetry"
)

// Tunables of the random walk, per step.
const (
	soilDryPerStep  = 0.6
	soilWetPerStep  = 3.5
	ambientJitter   = 2.0
	tempJitter      = 0.4
	tankDrainStep   = 0.8
	rainToggleOdds  = 0.05
	tankRefillBelow = 5.0
	irrigateBelow   = 30.0
	irrigateUntil   = 70.0
)

// Generator keeps the simulated node's state between lines. It is not safe
// for concurrent use.
type Generator struct {
	rng *rand.Rand

	soil1, soil2 float64
	ambient      float64
	temperature  float64
	tank         float64
	raining      bool
	irrigating   bool

	// MalformedRatio is the share of lines, in [0, 1], that carry a
	// non-integer value.
	MalformedRatio float64
}

// NewGenerator seeds the walk; the same seed yields the same lines.
func NewGenerator(seed uint64) *Generator {
	return &Generator{
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		soil1:       55,
		soil2:       45,
		ambient:     60,
		temperature: 22,
		tank:        90,
	}
}

// Step advances the walk by one reading.
func (g *Generator) Step() {
	if g.rng.Float64() < rainToggleOdds {
		g.raining = !g.raining
	}

	avg := (g.soil1 + g.soil2) / 2
	switch {
	case avg < irrigateBelow && g.tank > 0:
		g.irrigating = true
	case avg > irrigateUntil:
		g.irrigating = false
	}

	wet := 0.0
	if g.irrigating {
		wet = soilWetPerStep
		g.tank = math.Max(0, g.tank-tankDrainStep)
	}
	if g.raining {
		wet += soilWetPerStep / 2
	}
	g.soil1 = clamp(g.soil1-soilDryPerStep+wet+g.jitter(1), 0, 100)
	g.soil2 = clamp(g.soil2-soilDryPerStep*1.3+wet+g.jitter(1), 0, 100)

	target := 55.0
	if g.raining {
		target = 90
	}
	g.ambient = clamp(g.ambient+(target-g.ambient)*0.1+g.jitter(ambientJitter), 0, 100)
	g.temperature = clamp(g.temperature+g.jitter(tempJitter), -10, 60)

	if g.tank < tankRefillBelow {
		g.tank = 100
	}
}

func (g *Generator) jitter(scale float64) float64 {
	return (g.rng.Float64()*2 - 1) * scale
}

// Reading is the current state as the node would report it.
func (g *Generator) Reading() telemetry.Reading {
	rain := 0
	if g.raining {
		rain = 1
	}
	return telemetry.Reading{
		telemetry.FieldSoil1:       round(g.soil1),
		telemetry.FieldSoil2:       round(g.soil2),
		telemetry.FieldAmbient:     round(g.ambient),
		telemetry.FieldRain:        rain,
		telemetry.FieldTank:        round(g.tank),
		telemetry.FieldTemperature: round(g.temperature),
	}
}

var fieldOrder = []string{
	telemetry.FieldSoil1,
	telemetry.FieldSoil2,
	telemetry.FieldAmbient,
	telemetry.FieldRain,
	telemetry.FieldTank,
	telemetry.FieldTemperature,
}

// Line steps the walk and formats the new reading as
// "SOIL1=..;SOIL2=..;AMB=..;RAIN=..;TANK=..;TEMP=..". With probability
// MalformedRatio one value is replaced by garbage.
func (g *Generator) Line() string {
	g.Step()
	r := g.Reading()

	bad := -1
	if g.MalformedRatio > 0 && g.rng.Float64() < g.MalformedRatio {
		bad = g.rng.IntN(len(fieldOrder))
	}
	parts := make([]string, len(fieldOrder))
	for i, k := range fieldOrder {
		if i == bad {
			parts[i] = k + "=" + garbage[g.rng.IntN(len(garbage))]
			continue
		}
		parts[i] = fmt.Sprintf("%s=%d", k, r[k])
	}
	return strings.Join(parts, ";")
}

var garbage = []string{"", "NaN", "12.5", "0x1F", "--", "ERR"}

func round(f float64) int {
	return int(math.Round(f))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
