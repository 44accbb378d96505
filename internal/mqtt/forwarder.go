// Package mqtt republishes decoded readings and the node connection state to
// an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"riego-dashboard/internal/ingest"
	"riego-dashboard/internal/telemetry"
)

// DefaultQueueSize bounds the messages waiting for the broker.
const DefaultQueueSize = 256

// Publisher is the part of Client the forwarder needs.
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// TelemetryMessage is published on <prefix>/telemetry for every decoded
// datagram.
type TelemetryMessage struct {
	Timestamp       time.Time         `json:"timestamp"`
	Soil1           int               `json:"soil1"`
	Soil2           int               `json:"soil2"`
	AmbientHumidity int               `json:"ambient_humidity"`
	Raining         bool              `json:"raining"`
	Tank            int               `json:"tank"`
	Temperature     int               `json:"temperature_c"`
	Fields          telemetry.Reading `json:"fields"`
}

// StatusMessage is published retained on <prefix>/status when the node
// connection state changes.
type StatusMessage struct {
	State telemetry.ConnectionState `json:"state"`
	Since time.Time                 `json:"since"`
}

func NewTelemetryMessage(at time.Time, r telemetry.Reading) TelemetryMessage {
	return TelemetryMessage{
		Timestamp:       at,
		Soil1:           r.Soil1(),
		Soil2:           r.Soil2(),
		AmbientHumidity: r.AmbientHumidity(),
		Raining:         r.Raining(),
		Tank:            r.Tank(),
		Temperature:     r.Temperature(),
		Fields:          r,
	}
}

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type ForwarderOptions struct {
	TopicPrefix string
	QueueSize   int
	Logger      *slog.Logger
	Now         func() time.Time
	// Breaker settings; zero values pick the defaults below.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Forwarder is an ingest.Observer that queues messages for the broker and
// publishes them from its own goroutine, so a slow or absent broker never
// holds up the poll loop. Messages are dropped when the queue is full or the
// breaker is open.
type Forwarder struct {
	ingest.NopObserver

	pub     Publisher
	breaker *gobreaker.CircuitBreaker
	queue   chan message
	logger  *slog.Logger
	now     func() time.Time

	telemetryTopic string
	statusTopic    string

	// lastState is only touched from the poll loop goroutine.
	lastState telemetry.ConnectionState
	stateSent bool

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

func NewForwarder(pub Publisher, opts ForwarderOptions) *Forwarder {
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = "riego"
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	logger := opts.Logger
	failures := opts.BreakerFailures
	return &Forwarder{
		pub: pub,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "mqtt-publish",
			Timeout: opts.BreakerTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
		queue:          make(chan message, opts.QueueSize),
		logger:         logger,
		now:            opts.Now,
		telemetryTopic: opts.TopicPrefix + "/telemetry",
		statusTopic:    opts.TopicPrefix + "/status",
	}
}

func (f *Forwarder) OnReading(at time.Time, r telemetry.Reading) {
	f.enqueue(f.telemetryTopic, false, NewTelemetryMessage(at, r))
}

func (f *Forwarder) OnConnectionState(state telemetry.ConnectionState) {
	if f.stateSent && f.lastState == state {
		return
	}
	f.lastState = state
	f.stateSent = true
	f.enqueue(f.statusTopic, true, StatusMessage{State: state, Since: f.now()})
}

func (f *Forwarder) enqueue(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		f.logger.Error("marshal mqtt message", "topic", topic, "error", err)
		return
	}
	select {
	case f.queue <- message{topic: topic, retained: retained, payload: payload}:
	default:
		f.dropped.Add(1)
		f.logger.Warn("mqtt queue full, dropping message", "topic", topic)
	}
}

// Run publishes queued messages until ctx is done.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-f.queue:
			f.publish(m)
		}
	}
}

func (f *Forwarder) publish(m message) {
	_, err := f.breaker.Execute(func() (interface{}, error) {
		return nil, f.pub.Publish(m.topic, m.retained, m.payload)
	})
	switch {
	case err == nil:
		f.published.Add(1)
		f.logger.Debug("published", "topic", m.topic)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		f.dropped.Add(1)
	default:
		f.failed.Add(1)
		f.logger.Warn("mqtt publish failed", "topic", m.topic, "error", err)
	}
}

// Stats reports messages published, dropped before publishing and failed.
func (f *Forwarder) Stats() (published, dropped, failed uint64) {
	return f.published.Load(), f.dropped.Load(), f.failed.Load()
}

var _ ingest.Observer = (*Forwarder)(nil)
