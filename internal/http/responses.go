package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// writeJSON writes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error":{"code","message","requestId"}}.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// decodeBody decodes a JSON request body into v. On failure it writes a 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return false
	}
	return true
}

func isValidationError(err error) bool {
	for _, target := range []error{
		validation.ErrCityEmpty, validation.ErrCityTooLong, validation.ErrCityInvalidChars,
		validation.ErrInvalidCoordinates, validation.ErrInvalidReading,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeValidationError maps validation errors to a 400 with a stable code.
func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, validation.ErrInvalidCoordinates):
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
	case errors.Is(err, validation.ErrCityEmpty),
		errors.Is(err, validation.ErrCityTooLong),
		errors.Is(err, validation.ErrCityInvalidChars):
		code := "INVALID_CITY"
		if r.URL.Path != "" && isLocationPath(r.URL.Path) {
			code = "INVALID_LOCATION"
		}
		writeError(w, r, http.StatusBadRequest, code, err.Error())
	default:
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
	}
}

func isLocationPath(path string) bool {
	const prefix = "/api/locations"
	return len(path) >= len(prefix) && path[:len(prefix)] == prefix
}

// writeStorageError writes a 500 and logs the cause.
func (h *Handler) writeStorageError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger(r).Error("storage error", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "STORAGE_ERROR", "Unable to access stored weather data")
}

// writeReportError maps upstream failures: bad coordinates are the caller's
// fault (400), everything else is 503.
func (h *Handler) writeReportError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, client.ErrInvalidCoordinates) || errors.Is(err, validation.ErrInvalidCoordinates) {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "coordinates rejected by the forecast service")
		return
	}
	h.logger(r).Debug("upstream error", zap.Error(err), zap.String("category", string(client.CategorizeError(err))))
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch forecast data")
}
