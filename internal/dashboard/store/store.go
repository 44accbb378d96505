// Package store keeps the dashboard's copy of the ingestion state. It is fed
// by the poll loop through the ingest.Observer events and read by the HTTP
// handlers, so every access goes through one lock.
package store

import (
	"maps"
	"strings"
	"sync"
	"time"

	"riego-dashboard/internal/ingest"
	"riego-dashboard/internal/ring"
	"riego-dashboard/internal/telemetry"
)

const DefaultScrollback = 1000

// LogTimeLayout is the clock format of a log line prefix.
const LogTimeLayout = "15:04:05"

// LogLine is one datagram as it appeared on the wire.
type LogLine struct {
	Time time.Time `json:"time"`
	Raw  string    `json:"raw"`
	// Err is set when the line did not decode.
	Err string `json:"error,omitempty"`
}

// String renders the line as "[HH:MM:SS] raw".
func (l LogLine) String() string {
	return "[" + l.Time.Format(LogTimeLayout) + "] " + l.Raw
}

// Snapshot is a consistent copy of the store. Slices and maps are owned by
// the caller.
type Snapshot struct {
	State        telemetry.ConnectionState                    `json:"state"`
	Window       []telemetry.Sample                           `json:"window"`
	WindowSize   int                                          `json:"windowSize"`
	Gauges       map[telemetry.GaugeKind]telemetry.GaugeValue `json:"gauges"`
	Raining      bool                                         `json:"raining"`
	HasReading   bool                                         `json:"hasReading"`
	Latest       telemetry.Reading                            `json:"latest,omitempty"`
	LatestAt     time.Time                                    `json:"latestAt,omitzero"`
	LastCycle    time.Time                                    `json:"lastCycle,omitzero"`
	Datagrams    uint64                                       `json:"datagrams"`
	DecodeErrors uint64                                       `json:"decodeErrors"`
	Log          []LogLine                                    `json:"log"`
}

// TankLabel is "OK" while the tank gauge is above zero and "Empty" otherwise.
// It is "---" before the first reading. TANK is read as a fill level, so a
// non-zero value never means empty.
func (s Snapshot) TankLabel() string {
	g, ok := s.Gauges[telemetry.GaugeTank]
	switch {
	case !s.HasReading || !ok:
		return "---"
	case g.Fraction == 0:
		return "Empty"
	default:
		return "OK"
	}
}

// RainLabel is "yes" or "no", or "---" before the first reading.
func (s Snapshot) RainLabel() string {
	switch {
	case !s.HasReading:
		return "---"
	case s.Raining:
		return "yes"
	default:
		return "no"
	}
}

type Store struct {
	mu           sync.RWMutex
	now          func() time.Time
	window       *telemetry.Buffer
	log          *ring.Ring[LogLine]
	gauges       map[telemetry.GaugeKind]telemetry.GaugeValue
	raining      bool
	latest       telemetry.Reading
	latestAt     time.Time
	state        telemetry.ConnectionState
	lastCycle    time.Time
	datagrams    uint64
	decodeErrors uint64
}

// New returns an empty store. windowSize and scrollback fall back to
// telemetry.WindowSize and DefaultScrollback when not positive.
func New(windowSize, scrollback int) *Store {
	if scrollback <= 0 {
		scrollback = DefaultScrollback
	}
	return &Store{
		now:    time.Now,
		window: telemetry.NewBuffer(windowSize),
		log:    ring.New[LogLine](scrollback),
		gauges: make(map[telemetry.GaugeKind]telemetry.GaugeValue),
		state:  telemetry.Idle,
	}
}

func (s *Store) OnSampleAppended(sample telemetry.Sample) {
	s.mu.Lock()
	s.window.Append(sample)
	s.mu.Unlock()
}

func (s *Store) OnGauge(kind telemetry.GaugeKind, v telemetry.GaugeValue) {
	s.mu.Lock()
	s.gauges[kind] = v
	s.mu.Unlock()
}

func (s *Store) OnRainFlag(raining bool) {
	s.mu.Lock()
	s.raining = raining
	s.mu.Unlock()
}

func (s *Store) OnLogLine(at time.Time, raw string) {
	s.mu.Lock()
	s.log.Push(LogLine{Time: at, Raw: raw})
	s.datagrams++
	s.mu.Unlock()
}

func (s *Store) OnConnectionState(state telemetry.ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Store) OnReading(at time.Time, r telemetry.Reading) {
	s.mu.Lock()
	s.latest = maps.Clone(r)
	s.latestAt = at
	s.mu.Unlock()
}

// OnDecodeError marks the log line of the failed datagram. The poller emits
// OnLogLine right before, so it is the newest line.
func (s *Store) OnDecodeError(at time.Time, raw string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decodeErrors++
	last, ok := s.log.Last()
	if !ok || last.Raw != raw || !last.Time.Equal(at) {
		return
	}
	last.Err = err.Error()
	s.log.SetLast(last)
}

func (s *Store) OnCycle(ingest.CycleResult, time.Duration) {
	s.mu.Lock()
	s.lastCycle = s.now()
	s.mu.Unlock()
}

// LastCycle is when the poll loop last completed a cycle; zero before the
// first one.
func (s *Store) LastCycle() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCycle
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		State:        s.state,
		Window:       s.window.Snapshot(),
		WindowSize:   s.window.Cap(),
		Gauges:       maps.Clone(s.gauges),
		Raining:      s.raining,
		HasReading:   s.latest != nil,
		Latest:       maps.Clone(s.latest),
		LatestAt:     s.latestAt,
		LastCycle:    s.lastCycle,
		Datagrams:    s.datagrams,
		DecodeErrors: s.decodeErrors,
		Log:          s.log.Items(),
	}
}

// LogText renders the scrollback as the downloadable log file, one line per
// datagram, oldest first.
func (s *Store) LogText() string {
	s.mu.RLock()
	lines := s.log.Items()
	s.mu.RUnlock()

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return b.String()
}

var _ ingest.Observer = (*Store)(nil)
