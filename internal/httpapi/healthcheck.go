package httpapi

import (
	"net/http"
	"time"

	"riego-dashboard/internal/httpapi/respond"
)

// CycleClock reports when the poll loop last completed a cycle.
type CycleClock interface {
	LastCycle() time.Time
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	clock      CycleClock
	staleAfter time.Duration
	now        func() time.Time
}

func NewHealthchecker(clock CycleClock, staleAfter time.Duration) healthchecker {
	return &healthcheckerImpl{clock: clock, staleAfter: staleAfter, now: time.Now}
}

// handleHealthz is healthy while the poll loop keeps completing cycles; an
// idle node is not a failure.
func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	last := h.clock.LastCycle()
	if last.IsZero() {
		respond.WriteError(w, http.StatusServiceUnavailable, "poll loop has not completed a cycle yet")
		return
	}
	age := h.now().Sub(last)
	if age > h.staleAfter {
		respond.WriteError(w, http.StatusServiceUnavailable, "poll loop stalled for "+age.Truncate(time.Millisecond).String())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"lastCycle": last.UTC().Format(time.RFC3339Nano),
	})
}

func registerHealthcheck(mux *http.ServeMux, clock CycleClock, staleAfter time.Duration) {
	healthchecker := NewHealthchecker(clock, staleAfter)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
