package httpapi

import (
	"net/http"
	"time"
)

// NewMux returns a mux with the operational endpoints: /healthz and, when
// metrics is non-nil, /metrics. Features register their own routes on it.
func NewMux(clock CycleClock, staleAfter time.Duration, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, clock, staleAfter)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux
}
