package apiclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

var errNoObservations = errors.New("no weather data received from backend")

// WeatherClient reads current conditions from /api/weather.
type WeatherClient struct {
	c *Client
}

func NewWeatherClient(c *Client) *WeatherClient {
	return &WeatherClient{c: c}
}

// FetchSummary returns the first observation listed by the backend as a
// Summary. Any failure, including an empty list, yields models.FallbackSummary().
func (w *WeatherClient) FetchSummary(ctx context.Context) models.Summary {
	var list []models.Observation
	err := w.c.do(ctx, http.MethodGet, "/weather", nil, &list)
	if err == nil && len(list) == 0 {
		err = errNoObservations
	}
	if err != nil {
		w.c.logger.Warn("fetch weather failed, using fallback data", "error", err)
		return models.FallbackSummary()
	}
	return models.SummaryFromObservation(list[0])
}
