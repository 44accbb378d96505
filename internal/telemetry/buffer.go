package telemetry

import (
	"time"

	"riego-dashboard/internal/ring"
)

// WindowSize is the number of samples kept for the charts.
const WindowSize = 20

// Sample is the part of a Reading that is charted over time.
type Sample struct {
	Time            time.Time `json:"time"`
	Soil1           int       `json:"soil1"`
	Soil2           int       `json:"soil2"`
	AmbientHumidity int       `json:"ambientHumidity"`
}

// NewSample takes the charted fields out of r, stamped with t.
func NewSample(t time.Time, r Reading) Sample {
	return Sample{
		Time:            t,
		Soil1:           r.Soil1(),
		Soil2:           r.Soil2(),
		AmbientHumidity: r.AmbientHumidity(),
	}
}

// Buffer is the sliding window of the most recent samples, oldest first.
type Buffer struct {
	samples *ring.Ring[Sample]
}

// NewBuffer returns an empty window holding at most capacity samples.
// A non-positive capacity falls back to WindowSize.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = WindowSize
	}
	return &Buffer{samples: ring.New[Sample](capacity)}
}

// Append adds s at the tail, evicting the oldest sample when the window is full.
func (b *Buffer) Append(s Sample) {
	b.samples.Push(s)
}

// Latest returns the most recently appended sample; ok is false while empty.
func (b *Buffer) Latest() (s Sample, ok bool) {
	return b.samples.Last()
}

// Snapshot returns a copy of the window in arrival order.
func (b *Buffer) Snapshot() []Sample {
	return b.samples.Items()
}

func (b *Buffer) Len() int { return b.samples.Len() }

func (b *Buffer) Cap() int { return b.samples.Cap() }
