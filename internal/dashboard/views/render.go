package views

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
)

//go:embed templates
var viewsFS embed.FS

var dashboardTmpl *template.Template

var errNotLoaded = errors.New("dashboard template not loaded: call views.LoadTemplates during startup")

// loadTemplatesFromFS loads dashboard templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	dashboardTmpl, err = template.ParseFS(sub, "*.html", "partials/*.html")
	return err
}

// LoadTemplates loads embedded dashboard templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

func render(w io.Writer, name string, data any) error {
	if dashboardTmpl == nil {
		return errNotLoaded
	}
	return dashboardTmpl.ExecuteTemplate(w, name, data)
}

func RenderDashboard(w io.Writer, data *PageData) error {
	return render(w, "dashboard.html", data)
}

// RenderStatusPartial executes only the status partial into w.
// Use for HTMX fragment refresh.
func RenderStatusPartial(w io.Writer, data *StatusData) error {
	return render(w, "partials/status.html", data)
}

func RenderChartsPartial(w io.Writer, data *ChartsData) error {
	return render(w, "partials/charts.html", data)
}

func RenderGaugesPartial(w io.Writer, data *GaugesData) error {
	return render(w, "partials/gauges.html", data)
}

func RenderLogPartial(w io.Writer, data *LogData) error {
	return render(w, "partials/log.html", data)
}
