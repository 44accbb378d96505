package controller

import (
	"net/http"
	"time"

	"riego-dashboard/internal/dashboard/store"
)

// StateReader is the read side of store.Store.
type StateReader interface {
	Snapshot() store.Snapshot
	LogText() string
}

type DashboardController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type dashboardControllerImpl struct {
	state StateReader
	now   func() time.Time
}

func NewDashboardController(state StateReader) DashboardController {
	return &dashboardControllerImpl{state: state, now: time.Now}
}

func (c *dashboardControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", c.handleDashboard)
	mux.HandleFunc("GET /partials/status", c.handleStatusPartial)
	mux.HandleFunc("GET /partials/charts", c.handleChartsPartial)
	mux.HandleFunc("GET /partials/gauges", c.handleGaugesPartial)
	mux.HandleFunc("GET /partials/log", c.handleLogPartial)
	mux.HandleFunc("GET /api/state", c.handleState)
	mux.HandleFunc("GET /log.txt", c.handleLogDownload)
}
