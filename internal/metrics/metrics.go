// Package metrics exports the ingestion loop to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"riego-dashboard/internal/ingest"
	"riego-dashboard/internal/telemetry"
)

const namespace = "riego"

// Metrics is an ingest.Observer backed by its own registry. Prometheus
// collectors are safe for concurrent use, so the scrape handler needs no lock.
type Metrics struct {
	registry *prometheus.Registry

	datagrams     prometheus.Counter
	decodeErrors  prometheus.Counter
	samples       prometheus.Counter
	readings      prometheus.Counter
	windowLength  prometheus.Gauge
	receiving     prometheus.Gauge
	stateChanges  *prometheus.CounterVec
	gauge         *prometheus.GaugeVec
	gaugeFraction *prometheus.GaugeVec
	raining       prometheus.Gauge
	cycleDuration prometheus.Histogram
	cycleDrained  prometheus.Histogram
	lastCycle     prometheus.Gauge

	// Touched only from the poll loop goroutine.
	windowSize int
	window     int
	haveState  bool
	state      telemetry.ConnectionState
}

// New registers the ingestion metrics, plus the Go and process collectors,
// on a fresh registry. windowSize caps riego_window_samples.
func New(windowSize int) *Metrics {
	if windowSize <= 0 {
		windowSize = telemetry.WindowSize
	}
	m := &Metrics{
		registry:   prometheus.NewRegistry(),
		windowSize: windowSize,
		datagrams: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_total",
			Help:      "Datagrams drained from the UDP socket, decodable or not.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Datagrams rejected by the decoder.",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_appended_total",
			Help:      "Samples appended to the sliding window.",
		}),
		readings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Datagrams decoded into readings.",
		}),
		windowLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_samples",
			Help:      "Samples currently held in the sliding window.",
		}),
		receiving: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_receiving",
			Help:      "1 while the last poll cycle drained at least one datagram, 0 when idle.",
		}),
		stateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_state_changes_total",
			Help:      "Transitions of the node connection state, by new state.",
		}, []string{"state"}),
		gauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gauge_value",
			Help:      "Raw value of the latest reading for each dashboard gauge.",
		}, []string{"gauge"}),
		gaugeFraction: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gauge_fraction",
			Help:      "Latest gauge value clamped and normalized to 0..1.",
		}, []string{"gauge"}),
		raining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "raining",
			Help:      "1 when the latest reading reported rain.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Time spent draining the socket in one poll cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		cycleDrained: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_datagrams",
			Help:      "Datagrams drained per poll cycle.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 64, 256, 1024},
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_poll_cycle_timestamp_seconds",
			Help:      "Unix time of the last completed poll cycle.",
		}),
	}
	m.registry.MustRegister(
		m.datagrams, m.decodeErrors, m.samples, m.readings, m.windowLength,
		m.receiving, m.stateChanges, m.gauge, m.gaugeFraction, m.raining,
		m.cycleDuration, m.cycleDrained, m.lastCycle,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for collectors owned by other packages.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OnSampleAppended(telemetry.Sample) {
	m.samples.Inc()
	m.window = min(m.window+1, m.windowSize)
	m.windowLength.Set(float64(m.window))
}

func (m *Metrics) OnGauge(kind telemetry.GaugeKind, v telemetry.GaugeValue) {
	m.gauge.WithLabelValues(string(kind)).Set(float64(v.Raw))
	m.gaugeFraction.WithLabelValues(string(kind)).Set(v.Fraction)
}

func (m *Metrics) OnRainFlag(raining bool) {
	if raining {
		m.raining.Set(1)
		return
	}
	m.raining.Set(0)
}

func (m *Metrics) OnLogLine(time.Time, string) {
	m.datagrams.Inc()
}

func (m *Metrics) OnConnectionState(state telemetry.ConnectionState) {
	if state == telemetry.Receiving {
		m.receiving.Set(1)
	} else {
		m.receiving.Set(0)
	}
	if !m.haveState || m.state != state {
		m.stateChanges.WithLabelValues(state.String()).Inc()
	}
	m.haveState = true
	m.state = state
}

func (m *Metrics) OnReading(time.Time, telemetry.Reading) {
	m.readings.Inc()
}

func (m *Metrics) OnDecodeError(time.Time, string, error) {
	m.decodeErrors.Inc()
}

func (m *Metrics) OnCycle(res ingest.CycleResult, elapsed time.Duration) {
	m.cycleDuration.Observe(elapsed.Seconds())
	m.cycleDrained.Observe(float64(res.Drained))
	m.lastCycle.SetToCurrentTime()
}

var _ ingest.Observer = (*Metrics)(nil)
