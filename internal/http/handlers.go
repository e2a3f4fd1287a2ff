package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/seed"
	"github.com/kjstillabower/weather-dashboard/internal/storage"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
	"github.com/kjstillabower/weather-dashboard/internal/views"
)

const maxBodyBytes = 1 << 20

// Store is the persistence the handlers need.
type Store interface {
	SaveObservation(ctx context.Context, o models.Observation) (models.Observation, error)
	ListObservations(ctx context.Context, limit int) ([]models.Observation, error)
	LatestObservation(ctx context.Context, city string) (models.Observation, error)
	SaveForecastDay(ctx context.Context, d models.ForecastDay) (models.ForecastDay, error)
	ListForecast(ctx context.Context, city string, limit int) ([]models.ForecastDay, error)
	ListAllForecast(ctx context.Context, limit int) ([]models.ForecastDay, error)
	ListLocations(ctx context.Context) ([]models.Location, error)
	CreateLocation(ctx context.Context, l models.Location) (models.Location, error)
	UpdateLocation(ctx context.Context, id string, patch models.LocationPatch, check func(models.Location) (models.Location, error)) (models.Location, error)
	DeleteLocation(ctx context.Context, id string) error
	SaveSeed(ctx context.Context, o models.Observation, days []models.ForecastDay) (models.Observation, []models.ForecastDay, error)
}

// Dashboard is the read side served by /api/dashboard and the pages.
type Dashboard interface {
	GetReport(ctx context.Context, loc models.NamedLocation) (models.Report, error)
	CurrentSummary(ctx context.Context, city string) models.Summary
	TemperatureStats(ctx context.Context, city string, loc *models.NamedLocation) models.TemperatureStats
}

// Renderer renders a named HTML page.
type Renderer interface {
	Render(w io.Writer, name string, p views.Page) error
}

// Deps holds the handler dependencies.
type Deps struct {
	Dashboard       Dashboard
	Store           Store
	Views           Renderer
	DefaultLocation models.NamedLocation
	PollInterval    time.Duration // page auto-refresh
	SeedEnabled     bool
	Health          *HealthConfig
	Logger          *zap.Logger
}

// Handler serves the REST API, the dashboard pages and /health.
type Handler struct {
	Deps

	healthStatusMu   sync.Mutex
	healthStatusPrev string

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewHandler returns a new Handler.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Handler{
		Deps: d,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (h *Handler) logger(r *http.Request) *zap.Logger {
	return observability.LoggerFrom(r.Context(), h.Logger)
}

// ListObservations handles GET /api/weather.
func (h *Handler) ListObservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListObservations(r.Context(), queryLimit(r))
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateObservation handles POST /api/weather.
func (h *Handler) CreateObservation(w http.ResponseWriter, r *http.Request) {
	var o models.Observation
	if !decodeBody(w, r, &o) {
		return
	}
	o, err := validation.ValidateObservation(o)
	if err != nil {
		writeValidationError(w, r, err)
		return
	}
	o.ID, o.CreatedAt = "", time.Time{}
	stored, err := h.Store.SaveObservation(r.Context(), o)
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// LatestObservationForCity handles GET /api/weather/city/fetch?city=.
func (h *Handler) LatestObservationForCity(w http.ResponseWriter, r *http.Request) {
	city, err := validation.ValidateCity(r.URL.Query().Get("city"))
	if err != nil {
		writeValidationError(w, r, err)
		return
	}
	o, err := h.Store.LatestObservation(r.Context(), city)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no weather data for %s", city))
		return
	}
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// ListForecast handles GET /api/forecast.
func (h *Handler) ListForecast(w http.ResponseWriter, r *http.Request) {
	days, err := h.Store.ListAllForecast(r.Context(), queryLimit(r))
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

// CreateForecastDay handles POST /api/forecast.
func (h *Handler) CreateForecastDay(w http.ResponseWriter, r *http.Request) {
	var d models.ForecastDay
	if !decodeBody(w, r, &d) {
		return
	}
	city, err := validation.ValidateCity(d.City)
	if err != nil {
		writeValidationError(w, r, err)
		return
	}
	d.City, d.ID = city, ""
	stored, err := h.Store.SaveForecastDay(r.Context(), d)
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// ForecastForCity handles GET /api/forecast/city/fetch?city=.
func (h *Handler) ForecastForCity(w http.ResponseWriter, r *http.Request) {
	city, err := validation.ValidateCity(r.URL.Query().Get("city"))
	if err != nil {
		writeValidationError(w, r, err)
		return
	}
	days, err := h.Store.ListForecast(r.Context(), city, queryLimit(r))
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

// ListLocations handles GET /api/locations.
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.Store.ListLocations(r.Context())
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

// CreateLocation handles POST /api/locations.
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var l models.Location
	if !decodeBody(w, r, &l) {
		return
	}
	l, err := validation.ValidateLocation(l)
	if err != nil {
		writeValidationError(w, r, err)
		return
	}
	created, err := h.Store.CreateLocation(r.Context(), l)
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateLocation handles PUT /api/locations/{id}.
func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var patch models.LocationPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	updated, err := h.Store.UpdateLocation(r.Context(), id, patch, validation.ValidateLocation)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, updated)
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "location not found")
	case isValidationError(err):
		writeValidationError(w, r, err)
	default:
		h.writeStorageError(w, r, err)
	}
}

// DeleteLocation handles DELETE /api/locations/{id}.
func (h *Handler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	err := h.Store.DeleteLocation(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "location not found")
		return
	}
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSummary handles GET /api/dashboard/summary?city=. An empty city means the latest
// observation for any city. Missing data is served as a fallback summary, not an error.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	city, ok := optionalCity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Dashboard.CurrentSummary(r.Context(), city))
}

// GetReport handles GET /api/dashboard/report?lat=&lon=&name=.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	loc, err := h.locationFromQuery(r)
	if err != nil {
		writeValidationError(w, r, err)
		return
	}
	report, err := h.Dashboard.GetReport(r.Context(), loc)
	if err != nil {
		h.writeReportError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetStats handles GET /api/dashboard/stats?city=&lat=&lon=.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	city, ok := optionalCity(w, r)
	if !ok {
		return
	}
	loc, err := h.locationFromQuery(r)
	if err != nil {
		writeValidationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Dashboard.TemperatureStats(r.Context(), city, &loc))
}

type seedRequest struct {
	City string `json:"city"`
}

type seedResponse struct {
	Observation models.Observation   `json:"observation"`
	Forecast    []models.ForecastDay `json:"forecast"`
}

// Seed handles POST /api/admin/seed: stores one demo observation and a week of
// demo forecast for the requested city (Kathmandu when empty).
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	if !h.SeedEnabled {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "seeding is disabled")
		return
	}
	var req seedRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	resp, err := h.seed(r.Context(), req.City)
	if err != nil {
		if isValidationError(err) {
			writeValidationError(w, r, err)
			return
		}
		h.writeStorageError(w, r, err)
		return
	}
	h.logger(r).Info("demo data seeded", zap.String("city", resp.Observation.City), zap.Int("forecast_days", len(resp.Forecast)))
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) seed(ctx context.Context, city string) (seedResponse, error) {
	if strings.TrimSpace(city) == "" {
		city = seed.DefaultCity
	}
	city, err := validation.ValidateCity(city)
	if err != nil {
		return seedResponse{}, err
	}
	now := time.Now().UTC()
	h.rndMu.Lock()
	days := seed.DemoForecast(city, now, h.rnd)
	h.rndMu.Unlock()

	obs, stored, err := h.Store.SaveSeed(ctx, seed.DemoObservation(city, now), days)
	if err != nil {
		return seedResponse{}, err
	}
	return seedResponse{Observation: obs, Forecast: stored}, nil
}

// locationFromQuery reads lat, lon and name. Without lat and lon it returns the
// default location.
func (h *Handler) locationFromQuery(r *http.Request) (models.NamedLocation, error) {
	q := r.URL.Query()
	latStr, lonStr := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lon"))
	if latStr == "" && lonStr == "" {
		return h.DefaultLocation, nil
	}
	lat, errLat := strconv.ParseFloat(latStr, 64)
	lon, errLon := strconv.ParseFloat(lonStr, 64)
	if errLat != nil || errLon != nil {
		return models.NamedLocation{}, fmt.Errorf("%w: lat and lon must both be numbers", validation.ErrInvalidCoordinates)
	}
	loc := models.NamedLocation{Name: strings.TrimSpace(q.Get("name")), Lat: lat, Lon: lon}
	if err := validation.ValidateCoordinates(loc.Coordinates()); err != nil {
		return models.NamedLocation{}, err
	}
	if loc.Name == "" {
		loc.Name = fmt.Sprintf("%.4f, %.4f", lat, lon)
	}
	return loc, nil
}

// optionalCity validates the city query parameter when present. On failure it
// writes the error response and returns false.
func optionalCity(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.URL.Query().Get("city")
	if strings.TrimSpace(raw) == "" {
		return "", true
	}
	city, err := validation.ValidateCity(raw)
	if err != nil {
		writeValidationError(w, r, err)
		return "", false
	}
	return city, true
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}
