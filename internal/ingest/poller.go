// Package ingest drives the telemetry pipeline: it drains a non-blocking
// datagram source once per cycle and turns every datagram into samples,
// gauge values and view events.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"riego-dashboard/internal/telemetry"
)

// DefaultMaxPerCycle caps the datagrams drained in one cycle so that a
// flooding sender cannot keep a cycle from ending.
const DefaultMaxPerCycle = 1024

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	Decoded []telemetry.Reading
	Errors  []error
	State   telemetry.ConnectionState
	// Drained counts every datagram read, decodable or not.
	Drained int
}

type Options struct {
	WindowSize  int
	MaxPerCycle int
	Gauges      []telemetry.GaugeSpec
	Observer    Observer
	Logger      *slog.Logger
	Now         func() time.Time
}

// Poller owns the source, the sample window and the idle tracker. It must be
// driven from one goroutine.
type Poller struct {
	source      Source
	buffer      *telemetry.Buffer
	tracker     *telemetry.Tracker
	gauges      []telemetry.GaugeSpec
	observer    Observer
	logger      *slog.Logger
	maxPerCycle int
	now         func() time.Time
	// deferred holds the datagram read past the cap, handled first next cycle.
	deferred *Datagram
}

func NewPoller(src Source, opts Options) *Poller {
	if opts.MaxPerCycle <= 0 {
		opts.MaxPerCycle = DefaultMaxPerCycle
	}
	if opts.Gauges == nil {
		opts.Gauges = telemetry.DefaultGaugeSpecs()
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Poller{
		source:      src,
		buffer:      telemetry.NewBuffer(opts.WindowSize),
		tracker:     telemetry.NewTracker(),
		gauges:      opts.Gauges,
		observer:    opts.Observer,
		logger:      opts.Logger,
		maxPerCycle: opts.MaxPerCycle,
		now:         opts.Now,
	}
}

// PollCycle drains what is queued on the source right now, without waiting,
// then applies the idle transition once.
//
// A datagram that fails to decode is reported in CycleResult.Errors and does
// not stop the cycle. A source error does: it is returned together with the
// partial result and the tracker is left untouched.
func (p *Poller) PollCycle(ctx context.Context) (CycleResult, error) {
	start := p.now()
	var res CycleResult

	for res.Drained < p.maxPerCycle {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		d, ok, err := p.next()
		if err != nil {
			return res, fmt.Errorf("receive datagram: %w", err)
		}
		if !ok {
			break
		}
		res.Drained++
		p.handle(d, &res)
	}
	if res.Drained == p.maxPerCycle {
		d, ok, err := p.source.Receive()
		if err != nil {
			return res, fmt.Errorf("receive datagram: %w", err)
		}
		if ok {
			p.deferred = &d
			p.logger.Warn("poll cycle hit datagram cap; remaining backlog deferred", "cap", p.maxPerCycle)
		}
	}

	state, changed := p.tracker.Observe(res.Drained)
	res.State = state
	if changed {
		p.logger.Info("node connection state changed", "state", state.String())
	}
	p.observer.OnConnectionState(state)
	p.observer.OnCycle(res, p.now().Sub(start))
	return res, nil
}

func (p *Poller) next() (Datagram, bool, error) {
	if d := p.deferred; d != nil {
		p.deferred = nil
		return *d, true, nil
	}
	return p.source.Receive()
}

func (p *Poller) handle(d Datagram, res *CycleResult) {
	at := d.At
	if at.IsZero() {
		at = p.now()
	}
	raw := strings.ToValidUTF8(strings.TrimSpace(string(d.Payload)), "�")
	p.observer.OnLogLine(at, raw)

	if d.Truncated {
		err := fmt.Errorf("%w: longer than %d bytes", ErrDatagramTruncated, len(d.Payload))
		p.logger.Warn("discarding truncated datagram", "from", addrString(d), "raw", raw, "error", err)
		res.Errors = append(res.Errors, err)
		p.observer.OnDecodeError(at, raw, err)
		return
	}

	reading, err := telemetry.Decode(raw)
	if err != nil {
		p.logger.Warn("discarding malformed datagram", "from", addrString(d), "raw", raw, "error", err)
		res.Errors = append(res.Errors, err)
		p.observer.OnDecodeError(at, raw, err)
		return
	}
	p.logger.Debug("datagram decoded", "from", addrString(d), "fields", len(reading))
	res.Decoded = append(res.Decoded, reading)

	sample := telemetry.NewSample(at, reading)
	p.buffer.Append(sample)
	p.observer.OnSampleAppended(sample)
	for _, g := range p.gauges {
		p.observer.OnGauge(g.Kind, g.Eval(reading))
	}
	p.observer.OnRainFlag(reading.Raining())
	p.observer.OnReading(at, reading)
}

// Run calls PollCycle every interval until ctx is done or the source fails.
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("ingestion loop started", "interval", interval, "window", p.buffer.Cap())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.PollCycle(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				return fmt.Errorf("poll cycle: %w", err)
			}
		}
	}
}

// Buffer exposes the sample window. Only the goroutine driving the poller
// may read it.
func (p *Poller) Buffer() *telemetry.Buffer { return p.buffer }

func (p *Poller) State() telemetry.ConnectionState { return p.tracker.State() }

func addrString(d Datagram) string {
	if d.From == nil {
		return ""
	}
	return d.From.String()
}
