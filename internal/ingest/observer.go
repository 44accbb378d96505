package ingest

import (
	"time"

	"riego-dashboard/internal/telemetry"
)

// Observer receives the events of the ingestion loop. Calls happen on the
// loop goroutine, in order, and must not block.
type Observer interface {
	OnSampleAppended(s telemetry.Sample)
	OnGauge(kind telemetry.GaugeKind, v telemetry.GaugeValue)
	OnRainFlag(raining bool)
	// OnLogLine fires for every datagram, decodable or not.
	OnLogLine(at time.Time, raw string)
	OnConnectionState(state telemetry.ConnectionState)

	OnReading(at time.Time, r telemetry.Reading)
	OnDecodeError(at time.Time, raw string, err error)
	// OnCycle is the last event of every poll cycle.
	OnCycle(res CycleResult, elapsed time.Duration)
}

// NopObserver ignores every event. Embed it to implement only some of them.
type NopObserver struct{}

func (NopObserver) OnSampleAppended(telemetry.Sample)                 {}
func (NopObserver) OnGauge(telemetry.GaugeKind, telemetry.GaugeValue) {}
func (NopObserver) OnRainFlag(bool)                                   {}
func (NopObserver) OnLogLine(time.Time, string)                       {}
func (NopObserver) OnConnectionState(telemetry.ConnectionState)       {}
func (NopObserver) OnReading(time.Time, telemetry.Reading)            {}
func (NopObserver) OnDecodeError(time.Time, string, error)            {}
func (NopObserver) OnCycle(CycleResult, time.Duration)                {}

// Observers fans every event out in slice order.
type Observers []Observer

func (o Observers) OnSampleAppended(s telemetry.Sample) {
	for _, ob := range o {
		ob.OnSampleAppended(s)
	}
}

func (o Observers) OnGauge(kind telemetry.GaugeKind, v telemetry.GaugeValue) {
	for _, ob := range o {
		ob.OnGauge(kind, v)
	}
}

func (o Observers) OnRainFlag(raining bool) {
	for _, ob := range o {
		ob.OnRainFlag(raining)
	}
}

func (o Observers) OnLogLine(at time.Time, raw string) {
	for _, ob := range o {
		ob.OnLogLine(at, raw)
	}
}

func (o Observers) OnConnectionState(state telemetry.ConnectionState) {
	for _, ob := range o {
		ob.OnConnectionState(state)
	}
}

func (o Observers) OnReading(at time.Time, r telemetry.Reading) {
	for _, ob := range o {
		ob.OnReading(at, r)
	}
}

func (o Observers) OnDecodeError(at time.Time, raw string, err error) {
	for _, ob := range o {
		ob.OnDecodeError(at, raw, err)
	}
}

func (o Observers) OnCycle(res CycleResult, elapsed time.Duration) {
	for _, ob := range o {
		ob.OnCycle(res, elapsed)
	}
}

var (
	_ Observer = NopObserver{}
	_ Observer = Observers(nil)
)
