package controller

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"riego-dashboard/internal/dashboard/views"
	"riego-dashboard/internal/httpapi/respond"
)

// logFileTimeLayout names downloaded log files, e.g. riego-20260314-092653.txt.
const logFileTimeLayout = "20060102-150405"

func (c *dashboardControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := views.NewPageData(c.state.Snapshot())
	writeHTML(w, "dashboard", func(buf io.Writer) error {
		return views.RenderDashboard(buf, &data)
	})
}

func (c *dashboardControllerImpl) handleStatusPartial(w http.ResponseWriter, r *http.Request) {
	data := views.NewStatusData(c.state.Snapshot())
	writeHTML(w, "status partial", func(buf io.Writer) error {
		return views.RenderStatusPartial(buf, &data)
	})
}

func (c *dashboardControllerImpl) handleChartsPartial(w http.ResponseWriter, r *http.Request) {
	data := views.NewChartsData(c.state.Snapshot())
	writeHTML(w, "charts partial", func(buf io.Writer) error {
		return views.RenderChartsPartial(buf, &data)
	})
}

func (c *dashboardControllerImpl) handleGaugesPartial(w http.ResponseWriter, r *http.Request) {
	data := views.NewGaugesData(c.state.Snapshot())
	writeHTML(w, "gauges partial", func(buf io.Writer) error {
		return views.RenderGaugesPartial(buf, &data)
	})
}

func (c *dashboardControllerImpl) handleLogPartial(w http.ResponseWriter, r *http.Request) {
	data := views.NewLogData(c.state.Snapshot())
	writeHTML(w, "log partial", func(buf io.Writer) error {
		return views.RenderLogPartial(buf, &data)
	})
}

func (c *dashboardControllerImpl) handleState(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, c.state.Snapshot())
}

// handleLogDownload serves the scrollback as a text file attachment.
func (c *dashboardControllerImpl) handleLogDownload(w http.ResponseWriter, r *http.Request) {
	name := "riego-" + c.now().Format(logFileTimeLayout) + ".txt"
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := io.WriteString(w, c.state.LogText()); err != nil {
		slog.Error("log download: write response failed", "error", err)
	}
}

// writeHTML renders into a buffer first so a template error can still become
// a 500 response.
func writeHTML(w http.ResponseWriter, what string, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		slog.Error(what+" render failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error(what+": write response failed", "error", err)
	}
}
