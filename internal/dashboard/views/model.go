package views

import (
	"strconv"
	"strings"

	"riego-dashboard/internal/dashboard/store"
	"riego-dashboard/internal/telemetry"
)

// Chart geometry, in SVG user units.
const (
	chartWidth   = 480
	chartHeight  = 180
	chartPadding = 20
	chartMaxY    = 100

	gaugeSize   = 160
	gaugeRadius = 64
)

// PageData is the view model for the full dashboard page.
type PageData struct {
	Title  string
	Status StatusData
	Charts ChartsData
	Gauges GaugesData
	Log    LogData
}

type StatusData struct {
	Receiving    bool
	StateLabel   string
	RainLabel    string
	TankLabel    string
	LatestAt     string
	Datagrams    uint64
	DecodeErrors uint64
}

// Series is one polyline of a time chart.
type Series struct {
	Name   string
	Class  string
	Points string
}

// Bar is one column of the last-readings chart.
type Bar struct {
	Label  string
	Value  int
	X      int
	Y      int
	Width  int
	Height int
}

type ChartsData struct {
	Width   int
	Height  int
	Padding int
	// Right and Bottom are the far edges of the plot area.
	Right    int
	Bottom   int
	Empty    bool
	Samples  int
	Capacity int
	Soil     []Series
	Ambient  []Series
	// Bars is nil while the window is empty.
	Bars []Bar
}

type GaugeView struct {
	Kind    string
	Label   string
	Unit    string
	Raw     int
	Max     int
	Percent int
	// Arc is the SVG path of the filled sweep; empty at zero.
	Arc string
	// Full is set when the sweep is a whole circle, which a single SVG arc
	// command cannot draw.
	Full   bool
	Size   int
	Center int
	Radius int
}

type GaugesData struct {
	HasReading bool
	Items      []GaugeView
}

type LogData struct {
	Lines []LogLineView
}

type LogLineView struct {
	Text   string
	Failed bool
	Error  string
}

// NewPageData builds the whole page from a store snapshot.
func NewPageData(snap store.Snapshot) PageData {
	return PageData{
		Title:  "Riego",
		Status: NewStatusData(snap),
		Charts: NewChartsData(snap),
		Gauges: NewGaugesData(snap),
		Log:    NewLogData(snap),
	}
}

func NewStatusData(snap store.Snapshot) StatusData {
	d := StatusData{
		Receiving:    snap.State == telemetry.Receiving,
		StateLabel:   "Idle",
		RainLabel:    snap.RainLabel(),
		TankLabel:    snap.TankLabel(),
		Datagrams:    snap.Datagrams,
		DecodeErrors: snap.DecodeErrors,
	}
	if d.Receiving {
		d.StateLabel = "Receiving"
	}
	if !snap.LatestAt.IsZero() {
		d.LatestAt = snap.LatestAt.Format(store.LogTimeLayout)
	}
	return d
}

func NewChartsData(snap store.Snapshot) ChartsData {
	capacity := max(snap.WindowSize, len(snap.Window))
	d := ChartsData{
		Width:    chartWidth,
		Height:   chartHeight,
		Padding:  chartPadding,
		Right:    chartWidth - chartPadding,
		Bottom:   chartHeight - chartPadding,
		Empty:    len(snap.Window) == 0,
		Samples:  len(snap.Window),
		Capacity: capacity,
	}
	soil1 := make([]int, len(snap.Window))
	soil2 := make([]int, len(snap.Window))
	amb := make([]int, len(snap.Window))
	for i, s := range snap.Window {
		soil1[i], soil2[i], amb[i] = s.Soil1, s.Soil2, s.AmbientHumidity
	}
	d.Soil = []Series{
		{Name: "Pot 1", Class: "soil1", Points: polyline(soil1, capacity)},
		{Name: "Pot 2", Class: "soil2", Points: polyline(soil2, capacity)},
	}
	d.Ambient = []Series{
		{Name: "Ambient", Class: "ambient", Points: polyline(amb, capacity)},
	}
	if last, ok := lastSample(snap.Window); ok {
		d.Bars = bars([]string{"H1", "H2"}, []int{last.Soil1, last.Soil2})
	}
	return d
}

func NewGaugesData(snap store.Snapshot) GaugesData {
	d := GaugesData{HasReading: snap.HasReading}
	for _, g := range []struct {
		kind  telemetry.GaugeKind
		label string
		unit  string
	}{
		{telemetry.GaugeTank, "Tank level", "%"},
		{telemetry.GaugeTemperature, "Temperature", "°C"},
	} {
		v, ok := snap.Gauges[g.kind]
		if !ok {
			continue
		}
		d.Items = append(d.Items, gaugeView(string(g.kind), g.label, g.unit, v))
	}
	return d
}

func NewLogData(snap store.Snapshot) LogData {
	lines := make([]LogLineView, 0, len(snap.Log))
	for _, l := range snap.Log {
		lines = append(lines, LogLineView{Text: l.String(), Failed: l.Err != "", Error: l.Err})
	}
	return LogData{Lines: lines}
}

func lastSample(w []telemetry.Sample) (telemetry.Sample, bool) {
	if len(w) == 0 {
		return telemetry.Sample{}, false
	}
	return w[len(w)-1], true
}

// chartY maps a 0..100 value onto the plot area, clamping out-of-range values
// to its edges.
func chartY(v int) float64 {
	v = min(max(v, 0), chartMaxY)
	plot := float64(chartHeight - 2*chartPadding)
	return chartPadding + plot*(1-float64(v)/chartMaxY)
}

// polyline lays values out left to right, spaced as if the window were full
// so the chart fills up as samples arrive.
func polyline(values []int, capacity int) string {
	if len(values) == 0 {
		return ""
	}
	plot := float64(chartWidth - 2*chartPadding)
	step := 0.0
	if capacity > 1 {
		step = plot / float64(capacity-1)
	}
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(coord(chartPadding + step*float64(i)))
		b.WriteByte(',')
		b.WriteString(coord(chartY(v)))
	}
	return b.String()
}

func bars(labels []string, values []int) []Bar {
	plot := chartWidth - 2*chartPadding
	slot := plot / len(values)
	width := slot / 2
	out := make([]Bar, len(values))
	for i, v := range values {
		y := int(chartY(v))
		out[i] = Bar{
			Label:  labels[i],
			Value:  v,
			X:      chartPadding + i*slot + (slot-width)/2,
			Y:      y,
			Width:  width,
			Height: chartHeight - chartPadding - y,
		}
	}
	return out
}

func gaugeView(kind, label, unit string, v telemetry.GaugeValue) GaugeView {
	c := float64(gaugeSize) / 2
	g := GaugeView{
		Kind:    kind,
		Label:   label,
		Unit:    unit,
		Raw:     v.Raw,
		Max:     v.Max,
		Percent: int(v.Percent() + 0.5),
		Size:    gaugeSize,
		Center:  gaugeSize / 2,
		Radius:  gaugeRadius,
	}
	switch {
	case v.Fraction <= 0:
	case v.Fraction >= 1:
		g.Full = true
	default:
		g.Arc = arcPath(v, c, c, gaugeRadius)
	}
	return g
}

// arcPath draws the sweep clockwise from twelve o'clock.
func arcPath(v telemetry.GaugeValue, cx, cy, r float64) string {
	x, y := v.Point(cx, cy, r)
	large := "0"
	if v.Fraction > 0.5 {
		large = "1"
	}
	rs := coord(r)
	return "M " + coord(cx) + " " + coord(cy-r) +
		" A " + rs + " " + rs + " 0 " + large + " 1 " + coord(x) + " " + coord(y)
}

func coord(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
