package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// SeedClient writes demo data through the public API. Unlike the read
// clients it returns errors instead of falling back.
type SeedClient struct {
	c *Client
}

func NewSeedClient(c *Client) *SeedClient {
	return &SeedClient{c: c}
}

// PostObservation stores o and returns the stored record.
func (s *SeedClient) PostObservation(ctx context.Context, o models.Observation) (models.Observation, error) {
	var out models.Observation
	if err := s.c.do(ctx, http.MethodPost, "/weather", o, &out); err != nil {
		return models.Observation{}, fmt.Errorf("post observation: %w", err)
	}
	return out, nil
}

// PostForecast stores each day in order, stopping at the first failure.
func (s *SeedClient) PostForecast(ctx context.Context, days []models.ForecastDay) error {
	for i, d := range days {
		if err := s.c.do(ctx, http.MethodPost, "/forecast", d, nil); err != nil {
			return fmt.Errorf("post forecast day %d: %w", i+1, err)
		}
	}
	return nil
}

// Verification reports whether seeded data can be read back for a city.
type Verification struct {
	WeatherFound bool
	ForecastDays int
}

// Verify reads back the latest observation and forecast for city.
// A 404 for the observation is reported as not found, not as an error.
func (s *SeedClient) Verify(ctx context.Context, city string) (Verification, error) {
	q := "?city=" + url.QueryEscape(city)
	var v Verification

	var obs models.Observation
	if err := s.c.do(ctx, http.MethodGet, "/weather/city/fetch"+q, nil, &obs); err != nil {
		if !isNotFound(err) {
			return v, fmt.Errorf("verify weather: %w", err)
		}
	} else {
		v.WeatherFound = obs.City != ""
	}

	var days []models.ForecastDay
	if err := s.c.do(ctx, http.MethodGet, "/forecast/city/fetch"+q, nil, &days); err != nil {
		return v, fmt.Errorf("verify forecast: %w", err)
	}
	v.ForecastDays = len(days)
	return v, nil
}
