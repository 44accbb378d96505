package telemetry

// ConnectionState says whether the node was heard during the last poll cycle.
type ConnectionState int

const (
	Idle ConnectionState = iota
	Receiving
)

func (s ConnectionState) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Receiving:
		return "RECEIVING"
	default:
		return "UNKNOWN"
	}
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Tracker follows per-cycle arrival with no debounce: one busy cycle means
// Receiving, one empty cycle means Idle.
type Tracker struct {
	state ConnectionState
}

// NewTracker starts Idle.
func NewTracker() *Tracker {
	return &Tracker{state: Idle}
}

// Observe applies the transition for a cycle that drained n datagrams.
func (t *Tracker) Observe(n int) (state ConnectionState, changed bool) {
	next := Idle
	if n > 0 {
		next = Receiving
	}
	changed = next != t.state
	t.state = next
	return next, changed
}

func (t *Tracker) State() ConnectionState { return t.state }
