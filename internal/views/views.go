// Package views renders the dashboard HTML pages from embedded templates.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/conditions"
	"github.com/kjstillabower/weather-dashboard/internal/models"
)

//go:embed templates
var templatesFS embed.FS

// Page names accepted by Render.
const (
	PageDashboard = "dashboard"
	PageCurrent   = "current-weather"
	PageForecast  = "forecast"
	PageStats     = "temperature-stats"
	PageLocations = "locations"
)

// Page is the view model shared by all pages. Each page reads the fields it needs.
type Page struct {
	Title          string
	Active         string // nav entry to highlight
	Unit           conditions.Unit
	RefreshSeconds int
	SeedEnabled    bool
	Notice         string

	Location    models.NamedLocation
	Summary     models.Summary
	Report      *models.Report
	ReportError string
	Forecast    []models.ForecastDay
	Stats       models.TemperatureStats
	Locations   []models.Location
}

// UnitQuery returns the query string that keeps the current unit on links.
func (p Page) UnitQuery() string {
	if p.Unit == conditions.Fahrenheit {
		return "?unit=F"
	}
	return ""
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	return newFromFS(templatesFS, "templates")
}

func newFromFS(fsys fs.FS, dir string) (*Renderer, error) {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return nil, err
	}
	base, err := template.New("layout").Funcs(funcMap()).ParseFS(sub, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	files, err := fs.Glob(sub, "pages/*.html")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no page templates in %s", dir)
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(files))}
	for _, f := range files {
		t, err := template.Must(base.Clone()).ParseFS(sub, f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		r.pages[strings.TrimSuffix(path.Base(f), ".html")] = t
	}
	return r, nil
}

// Render writes the named page.
func (r *Renderer) Render(w io.Writer, name string, p Page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return t.ExecuteTemplate(w, "layout.html", p)
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"temp":       conditions.FormatTemperature,
		"degrees":    conditions.FormatDegrees,
		"tempPtr":    formatTempPtr,
		"delta":      formatDelta,
		"windDir":    conditions.WindDirection,
		"windSpeed":  func(v float64) string { return conditions.FormatWindSpeed(v, "m/s") },
		"kmh":        func(v float64) string { return conditions.FormatWindSpeed(v, "km/h") },
		"pct":        conditions.FormatPercent,
		"visibility": conditions.FormatVisibility,
		"condition":  conditions.ConditionForCode,
		"dayName":    conditions.DayConditionName,
		"iconCode":   conditions.IconForCode,
		"iconDesc":   conditions.IconForDescription,
		"weekday":    formatWeekday,
		"date":       func(t time.Time) string { return t.Format("Mon, Jan 2") },
		"hour":       formatHour,
		"pressure":   formatPressure,
		"coord":      func(v float64) string { return fmt.Sprintf("%.4f", v) },
	}
}

func formatTempPtr(v *float64, u conditions.Unit) string {
	if v == nil {
		return "N/A"
	}
	return conditions.FormatTemperature(*v, u)
}

// formatDelta renders a temperature difference; only the scale changes between units.
func formatDelta(celsius float64, u conditions.Unit) string {
	if u == conditions.Fahrenheit {
		celsius = celsius * 9 / 5
	}
	return fmt.Sprintf("%.1f%s", celsius, u.Symbol())
}

func formatPressure(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.0f hPa", *v)
}

// formatWeekday turns an ISO date ("2026-10-17") into "Sat"; other input is returned unchanged.
func formatWeekday(day string) string {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return day
	}
	return t.Format("Mon")
}

// formatHour turns an ISO local time ("2026-10-17T14:00") into "14:00".
func formatHour(ts string) string {
	if i := strings.IndexByte(ts, 'T'); i >= 0 {
		return ts[i+1:]
	}
	return ts
}
