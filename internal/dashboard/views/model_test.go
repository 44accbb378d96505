package views

import (
	"strings"
	"testing"
	"time"

	"riego-dashboard/internal/dashboard/store"
	"riego-dashboard/internal/telemetry"
)

func TestNewChartsData_emptyWindow(t *testing.T) {
	d := NewChartsData(store.New(0, 0).Snapshot())

	if !d.Empty {
		t.Error("Empty = false; want true")
	}
	if d.Bars != nil {
		t.Errorf("Bars = %v; want nil for an empty window", d.Bars)
	}
	for _, s := range append(d.Soil, d.Ambient...) {
		if s.Points != "" {
			t.Errorf("series %s Points = %q; want empty", s.Name, s.Points)
		}
	}
	if d.Capacity != telemetry.WindowSize {
		t.Errorf("Capacity = %d; want %d", d.Capacity, telemetry.WindowSize)
	}
}

func TestNewChartsData_points(t *testing.T) {
	s := store.New(3, 0)
	base := time.Unix(0, 0)
	for i, v := range []int{0, 100, 150} {
		s.OnSampleAppended(telemetry.Sample{Time: base.Add(time.Duration(i) * time.Second), Soil1: v, Soil2: -5, AmbientHumidity: 50})
	}
	d := NewChartsData(s.Snapshot())

	// x spans 20..460 in two steps; y maps 0 -> 160 and 100 -> 20, clamped.
	if got, want := d.Soil[0].Points, "20.00,160.00 240.00,20.00 460.00,20.00"; got != want {
		t.Errorf("soil1 points = %q; want %q", got, want)
	}
	if got := d.Soil[1].Points; strings.Count(got, ",160.00") != 3 {
		t.Errorf("negative soil2 should clamp to the baseline; got %q", got)
	}
	if got, want := d.Ambient[0].Points, "20.00,90.00 240.00,90.00 460.00,90.00"; got != want {
		t.Errorf("ambient points = %q; want %q", got, want)
	}
	if len(d.Bars) != 2 {
		t.Fatalf("len(Bars) = %d; want 2", len(d.Bars))
	}
	if d.Bars[0].Value != 150 || d.Bars[0].Height != 140 {
		t.Errorf("H1 bar = %+v; want value 150, clamped height 140", d.Bars[0])
	}
	if d.Bars[1].Height != 0 {
		t.Errorf("H2 bar height = %d; want 0", d.Bars[1].Height)
	}
}

func TestGaugeView_arc(t *testing.T) {
	tests := []struct {
		name     string
		fraction float64
		wantArc  string
		wantFull bool
	}{
		{name: "zero", fraction: 0},
		{name: "quarter", fraction: 0.25, wantArc: "M 80.00 16.00 A 64.00 64.00 0 0 1 144.00 80.00"},
		{name: "half", fraction: 0.5, wantArc: "M 80.00 16.00 A 64.00 64.00 0 0 1 80.00 144.00"},
		{name: "three quarters", fraction: 0.75, wantArc: "M 80.00 16.00 A 64.00 64.00 0 1 1 16.00 80.00"},
		{name: "full", fraction: 1, wantFull: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := gaugeView("tank", "Tank level", "%", telemetry.GaugeValue{Raw: 1, Max: 1, Fraction: tt.fraction})
			if g.Arc != tt.wantArc {
				t.Errorf("Arc = %q; want %q", g.Arc, tt.wantArc)
			}
			if g.Full != tt.wantFull {
				t.Errorf("Full = %v; want %v", g.Full, tt.wantFull)
			}
		})
	}
}

func TestNewStatusData(t *testing.T) {
	idle := NewStatusData(store.New(0, 0).Snapshot())
	if idle.Receiving || idle.StateLabel != "Idle" || idle.LatestAt != "" {
		t.Errorf("idle status = %+v", idle)
	}

	s := store.New(0, 0)
	s.OnConnectionState(telemetry.Receiving)
	s.OnReading(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), telemetry.Reading{})
	got := NewStatusData(s.Snapshot())
	if !got.Receiving || got.StateLabel != "Receiving" || got.LatestAt != "03:04:05" {
		t.Errorf("receiving status = %+v", got)
	}
	if got.RainLabel != "no" {
		t.Errorf("RainLabel = %q; want no", got.RainLabel)
	}
}
