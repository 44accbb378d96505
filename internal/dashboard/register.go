package dashboard

import (
	"net/http"

	"riego-dashboard/internal/dashboard/controller"
	"riego-dashboard/internal/dashboard/store"
	"riego-dashboard/internal/dashboard/stream"
)

// RegisterFeature mounts the dashboard pages, the JSON state and the event
// stream on mux.
func RegisterFeature(mux *http.ServeMux, st *store.Store, hub *stream.Hub) {
	dashboardController := controller.NewDashboardController(st)
	dashboardController.RegisterRoutes(mux)
	mux.Handle("GET /ws", hub)
}
