package ingest

import (
	"errors"
	"net"
	"time"
)

// ErrDatagramTruncated marks a datagram that did not fit the read buffer.
// Its payload is only a prefix and is never decoded.
var ErrDatagramTruncated = errors.New("datagram truncated")

// Datagram is one message taken off the wire.
type Datagram struct {
	Payload []byte
	From    net.Addr
	At      time.Time
	// Truncated is set when the datagram was longer than the read buffer;
	// Payload then holds the first bytes only.
	Truncated bool
}

// Source is a non-blocking datagram reader.
//
// Receive returns immediately. ok is false when nothing is queued; err is
// reserved for failures of the underlying transport and ends the ingestion
// loop.
type Source interface {
	Receive() (d Datagram, ok bool, err error)
}

// SliceSource replays a fixed set of datagrams, one batch per cycle.
type SliceSource struct {
	batches [][]Datagram
	pending []Datagram
}

// NewSliceSource queues batches; each call to Next moves to the next batch.
func NewSliceSource(batches ...[]Datagram) *SliceSource {
	s := &SliceSource{batches: batches}
	s.Next()
	return s
}

// Next makes the following batch available and drops whatever was left of
// the current one. It reports false once every batch was served.
func (s *SliceSource) Next() bool {
	if len(s.batches) == 0 {
		s.pending = nil
		return false
	}
	s.pending = s.batches[0]
	s.batches = s.batches[1:]
	return true
}

func (s *SliceSource) Receive() (Datagram, bool, error) {
	if len(s.pending) == 0 {
		return Datagram{}, false, nil
	}
	d := s.pending[0]
	s.pending = s.pending[1:]
	return d, true, nil
}

// Lines builds a batch of datagrams from text lines.
func Lines(lines ...string) []Datagram {
	out := make([]Datagram, 0, len(lines))
	for _, l := range lines {
		out = append(out, Datagram{Payload: []byte(l)})
	}
	return out
}
