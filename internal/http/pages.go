package http

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/conditions"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
	"github.com/kjstillabower/weather-dashboard/internal/views"
)

const pageForecastLimit = 14

// newPage fills the fields every page shares.
func (h *Handler) newPage(r *http.Request, name, title string) views.Page {
	return views.Page{
		Title:          title,
		Active:         name,
		Unit:           conditions.ParseUnit(r.URL.Query().Get("unit")),
		RefreshSeconds: int(h.PollInterval.Seconds()),
		SeedEnabled:    h.SeedEnabled,
		Notice:         r.URL.Query().Get("notice"),
		Location:       h.DefaultLocation,
	}
}

// render buffers the page so a template error still yields a clean 500.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, p views.Page) {
	var buf bytes.Buffer
	if err := h.Views.Render(&buf, name, p); err != nil {
		h.logger(r).Error("render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// loadReport fills Report or ReportError for the default location.
func (h *Handler) loadReport(r *http.Request, p *views.Page) {
	report, err := h.Dashboard.GetReport(r.Context(), p.Location)
	if err != nil {
		h.logger(r).Warn("dashboard report unavailable", zap.String("location", p.Location.Name), zap.Error(err))
		p.ReportError = "Forecast unavailable right now."
		return
	}
	p.Report = &report
}

// DashboardPage handles / and /dashboard.
func (h *Handler) DashboardPage(w http.ResponseWriter, r *http.Request) {
	p := h.newPage(r, views.PageDashboard, "Weather Dashboard")
	p.Summary = h.Dashboard.CurrentSummary(r.Context(), "")
	h.loadReport(r, &p)
	h.render(w, r, views.PageDashboard, p)
}

// CurrentWeatherPage handles /current-weather.
func (h *Handler) CurrentWeatherPage(w http.ResponseWriter, r *http.Request) {
	p := h.newPage(r, views.PageCurrent, "Current Weather")
	p.Summary = h.Dashboard.CurrentSummary(r.Context(), pageCity(r))
	h.render(w, r, views.PageCurrent, p)
}

// ForecastPage handles /forecast: stored forecast days plus the live report.
func (h *Handler) ForecastPage(w http.ResponseWriter, r *http.Request) {
	p := h.newPage(r, views.PageForecast, "Forecast")
	var (
		days []models.ForecastDay
		err  error
	)
	if city := pageCity(r); city != "" {
		days, err = h.Store.ListForecast(r.Context(), city, pageForecastLimit)
	} else {
		days, err = h.Store.ListAllForecast(r.Context(), pageForecastLimit)
	}
	if err != nil {
		h.logger(r).Warn("stored forecast unavailable", zap.Error(err))
		p.Notice = "Stored forecast unavailable."
	}
	p.Forecast = days
	h.loadReport(r, &p)
	h.render(w, r, views.PageForecast, p)
}

// TemperatureStatsPage handles /temperature-stats.
func (h *Handler) TemperatureStatsPage(w http.ResponseWriter, r *http.Request) {
	p := h.newPage(r, views.PageStats, "Temperature Stats")
	loc := p.Location
	p.Stats = h.Dashboard.TemperatureStats(r.Context(), pageCity(r), &loc)
	h.render(w, r, views.PageStats, p)
}

// LocationsPage handles GET /locations.
func (h *Handler) LocationsPage(w http.ResponseWriter, r *http.Request) {
	p := h.newPage(r, views.PageLocations, "Locations")
	locs, err := h.Store.ListLocations(r.Context())
	if err != nil {
		h.logger(r).Warn("locations unavailable", zap.Error(err))
		p.Notice = "Locations unavailable."
	}
	p.Locations = locs
	h.render(w, r, views.PageLocations, p)
}

// CreateLocationForm handles the POST /locations form.
func (h *Handler) CreateLocationForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		redirectWithNotice(w, r, "/locations", "Invalid form submission.")
		return
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(r.PostForm.Get("lat")), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(r.PostForm.Get("lon")), 64)
	if errLat != nil || errLon != nil {
		redirectWithNotice(w, r, "/locations", "Latitude and longitude must be numbers.")
		return
	}
	loc, err := validation.ValidateLocation(models.Location{
		Name:   r.PostForm.Get("name"),
		Region: strings.TrimSpace(r.PostForm.Get("region")),
		Lat:    lat,
		Lon:    lon,
	})
	if err != nil {
		redirectWithNotice(w, r, "/locations", "Invalid location: "+err.Error())
		return
	}
	if _, err := h.Store.CreateLocation(r.Context(), loc); err != nil {
		h.logger(r).Error("create location", zap.Error(err))
		redirectWithNotice(w, r, "/locations", "Could not save location.")
		return
	}
	redirectWithNotice(w, r, "/locations", "Location added.")
}

// DeleteLocationForm handles POST /locations/{id}/delete.
func (h *Handler) DeleteLocationForm(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteLocation(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.logger(r).Warn("delete location", zap.Error(err))
		redirectWithNotice(w, r, "/locations", "Could not delete location.")
		return
	}
	redirectWithNotice(w, r, "/locations", "Location removed.")
}

// SeedForm handles the POST /admin/seed panel.
func (h *Handler) SeedForm(w http.ResponseWriter, r *http.Request) {
	if !h.SeedEnabled {
		http.NotFound(w, r)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		redirectWithNotice(w, r, "/dashboard", "Invalid form submission.")
		return
	}
	resp, err := h.seed(r.Context(), r.PostForm.Get("city"))
	if err != nil {
		h.logger(r).Warn("seed failed", zap.Error(err))
		redirectWithNotice(w, r, "/dashboard", "Seeding failed: "+err.Error())
		return
	}
	h.logger(r).Info("demo data seeded", zap.String("city", resp.Observation.City), zap.Int("forecast_days", len(resp.Forecast)))
	redirectWithNotice(w, r, "/dashboard", "Demo data loaded for "+resp.Observation.City+".")
}

func pageCity(r *http.Request) string {
	raw := r.URL.Query().Get("city")
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	city, err := validation.ValidateCity(raw)
	if err != nil {
		return ""
	}
	return city
}

func redirectWithNotice(w http.ResponseWriter, r *http.Request, path, notice string) {
	http.Redirect(w, r, path+"?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}
