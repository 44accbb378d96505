package views

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"riego-dashboard/internal/dashboard/store"
	"riego-dashboard/internal/telemetry"
)

func TestLoadTemplates_success(t *testing.T) {
	err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates() = %v; want nil", err)
	}
	if dashboardTmpl == nil {
		t.Fatal("LoadTemplates() left dashboardTmpl nil")
	}
}

func TestLoadTemplates_failure_sub(t *testing.T) {
	// Empty FS has no "templates" directory; ParseFS finds no files.
	emptyFS := fstest.MapFS{}
	err := loadTemplatesFromFS(emptyFS, "templates")
	if err == nil {
		t.Fatal("loadTemplatesFromFS(emptyFS, \"templates\") = nil; want error")
	}
}

func TestLoadTemplates_failure_parse(t *testing.T) {
	badFS := fstest.MapFS{
		"templates/dashboard.html":       {Data: []byte("{{ .")},
		"templates/partials/status.html": {Data: []byte("ok")},
	}
	err := loadTemplatesFromFS(badFS, "templates")
	if err == nil {
		t.Fatal("loadTemplatesFromFS(badFS, \"templates\") = nil; want error")
	}
}

func TestRender_notLoaded(t *testing.T) {
	prev := dashboardTmpl
	dashboardTmpl = nil
	t.Cleanup(func() { dashboardTmpl = prev })

	var buf bytes.Buffer
	renders := map[string]func() error{
		"dashboard": func() error { return RenderDashboard(&buf, &PageData{}) },
		"status":    func() error { return RenderStatusPartial(&buf, &StatusData{}) },
		"charts":    func() error { return RenderChartsPartial(&buf, &ChartsData{}) },
		"gauges":    func() error { return RenderGaugesPartial(&buf, &GaugesData{}) },
		"log":       func() error { return RenderLogPartial(&buf, &LogData{}) },
	}
	for name, fn := range renders {
		t.Run(name, func(t *testing.T) {
			err := fn()
			if err == nil {
				t.Fatal("render = nil; want error when templates not loaded")
			}
			if !strings.Contains(err.Error(), "not loaded") {
				t.Errorf("err = %q; want message containing \"not loaded\"", err.Error())
			}
		})
	}
}

func mustLoad(t *testing.T) {
	t.Helper()
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}
}

func TestRenderDashboard_emptyStore(t *testing.T) {
	mustLoad(t)

	data := NewPageData(store.New(0, 0).Snapshot())
	var buf bytes.Buffer
	if err := RenderDashboard(&buf, &data); err != nil {
		t.Fatalf("RenderDashboard(empty) = %v; want nil", err)
	}
	out := buf.String()
	for _, want := range []string{"<!doctype html>", "Riego", "Idle", "waiting for data", "no readings yet", "No readings yet.", "/log.txt"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "<rect") {
		t.Error("empty window rendered a bar")
	}
}

func filledSnapshot() store.Snapshot {
	s := store.New(0, 0)
	at := time.Date(2026, 5, 1, 18, 4, 5, 0, time.UTC)
	r, _ := telemetry.Decode("SOIL1=40;SOIL2=55;AMB=60;RAIN=1;TANK=80;TEMP=25")
	s.OnLogLine(at, "SOIL1=40;SOIL2=55;AMB=60;RAIN=1;TANK=80;TEMP=25")
	s.OnSampleAppended(telemetry.NewSample(at, r))
	for _, spec := range telemetry.DefaultGaugeSpecs() {
		s.OnGauge(spec.Kind, spec.Eval(r))
	}
	s.OnRainFlag(r.Raining())
	s.OnReading(at, r)
	s.OnLogLine(at, "SOIL1=<b>")
	s.OnDecodeError(at, "SOIL1=<b>", &telemetry.DecodeError{Reason: telemetry.InvalidInteger, Field: "SOIL1", Value: "<b>"})
	s.OnConnectionState(telemetry.Receiving)
	return s.Snapshot()
}

func TestRenderPartials_filled(t *testing.T) {
	mustLoad(t)
	data := NewPageData(filledSnapshot())

	tests := []struct {
		name   string
		render func(*bytes.Buffer) error
		want   []string
	}{
		{
			name:   "status",
			render: func(b *bytes.Buffer) error { return RenderStatusPartial(b, &data.Status) },
			want:   []string{"Receiving", "Rain: yes", "Tank: OK", "18:04:05", "2 datagrams, 1 rejected"},
		},
		{
			name:   "charts",
			render: func(b *bytes.Buffer) error { return RenderChartsPartial(b, &data.Charts) },
			want:   []string{`class="soil1"`, `class="soil2"`, `class="ambient"`, "<rect", "H1: 40", "H2: 55", "1 / 20 samples"},
		},
		{
			name:   "gauges",
			render: func(b *bytes.Buffer) error { return RenderGaugesPartial(b, &data.Gauges) },
			want:   []string{"gauge-tank", "gauge-temperature", "80%", "25°C", "(50% of 50)", "<path"},
		},
		{
			name:   "log",
			render: func(b *bytes.Buffer) error { return RenderLogPartial(b, &data.Log) },
			want:   []string{"[18:04:05] SOIL1=40;SOIL2=55", `class="failed"`, "[18:04:05] SOIL1=&lt;b&gt;"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.render(&buf); err != nil {
				t.Fatalf("render = %v; want nil", err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q; got %q", w, out)
				}
			}
		})
	}
}

func TestRenderLogPartial_escapesRaw(t *testing.T) {
	mustLoad(t)
	data := NewLogData(filledSnapshot())

	var buf bytes.Buffer
	if err := RenderLogPartial(&buf, &data); err != nil {
		t.Fatalf("RenderLogPartial = %v", err)
	}
	if strings.Contains(buf.String(), "<b>") {
		t.Errorf("raw datagram not escaped: %q", buf.String())
	}
}
