package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// RouterOptions configures the /api middleware chain.
type RouterOptions struct {
	Limiter        *rate.Limiter // nil disables rate limiting
	RequestTimeout time.Duration
}

// NewRouter wires /health, /metrics, the REST API under /api and the HTML pages.
func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	r := mux.NewRouter()
	r.Use(CorrelationIDMiddleware(h.Logger))
	r.Use(MetricsMiddleware)

	r.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(RateLimitMiddleware(opts.Limiter))
	if opts.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(opts.RequestTimeout))
	}
	api.Use(ActivityMiddleware)

	api.HandleFunc("/weather", h.ListObservations).Methods(http.MethodGet)
	api.HandleFunc("/weather", h.CreateObservation).Methods(http.MethodPost)
	api.HandleFunc("/weather/city/fetch", h.LatestObservationForCity).Methods(http.MethodGet)

	api.HandleFunc("/forecast", h.ListForecast).Methods(http.MethodGet)
	api.HandleFunc("/forecast", h.CreateForecastDay).Methods(http.MethodPost)
	api.HandleFunc("/forecast/city/fetch", h.ForecastForCity).Methods(http.MethodGet)

	api.HandleFunc("/locations", h.ListLocations).Methods(http.MethodGet)
	api.HandleFunc("/locations", h.CreateLocation).Methods(http.MethodPost)
	api.HandleFunc("/locations/{id}", h.UpdateLocation).Methods(http.MethodPut)
	api.HandleFunc("/locations/{id}", h.DeleteLocation).Methods(http.MethodDelete)

	api.HandleFunc("/dashboard/summary", h.GetSummary).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/report", h.GetReport).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/stats", h.GetStats).Methods(http.MethodGet)

	api.HandleFunc("/admin/seed", h.Seed).Methods(http.MethodPost)

	page := func(path string, f http.HandlerFunc, method string) {
		r.Handle(path, ActivityMiddleware(f)).Methods(method)
	}
	page("/", h.DashboardPage, http.MethodGet)
	page("/dashboard", h.DashboardPage, http.MethodGet)
	page("/current-weather", h.CurrentWeatherPage, http.MethodGet)
	page("/forecast", h.ForecastPage, http.MethodGet)
	page("/temperature-stats", h.TemperatureStatsPage, http.MethodGet)
	page("/locations", h.LocationsPage, http.MethodGet)
	page("/locations", h.CreateLocationForm, http.MethodPost)
	page("/locations/{id}/delete", h.DeleteLocationForm, http.MethodPost)
	page("/admin/seed", h.SeedForm, http.MethodPost)

	return r
}
