package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_StartsIdle(t *testing.T) {
	assert.Equal(t, Idle, NewTracker().State())
}

func TestTracker_Transitions(t *testing.T) {
	tr := NewTracker()
	steps := []struct {
		drained     int
		wantState   ConnectionState
		wantChanged bool
	}{
		{drained: 0, wantState: Idle, wantChanged: false},
		{drained: 1, wantState: Receiving, wantChanged: true},
		{drained: 4, wantState: Receiving, wantChanged: false},
		{drained: 0, wantState: Idle, wantChanged: true},
		{drained: 0, wantState: Idle, wantChanged: false},
		{drained: 1, wantState: Receiving, wantChanged: true},
	}
	for i, st := range steps {
		state, changed := tr.Observe(st.drained)
		assert.Equal(t, st.wantState, state, "step %d", i)
		assert.Equal(t, st.wantChanged, changed, "step %d", i)
		assert.Equal(t, st.wantState, tr.State(), "step %d", i)
	}
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "IDLE", Idle.String())
	assert.Equal(t, "RECEIVING", Receiving.String())
	assert.Equal(t, "UNKNOWN", ConnectionState(7).String())

	text, err := Receiving.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "RECEIVING", string(text))
}
