package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weather-dashboard/internal/conditions"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// ForecastClient fetches weather reports for a coordinate pair.
type ForecastClient interface {
	GetReport(ctx context.Context, coords models.Coordinates) (models.Report, error)
	Ping(ctx context.Context) error
}

var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrUpstreamFailure    = errors.New("upstream failure")
	ErrRateLimited        = errors.New("rate limited")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrCircuitOpen        = circuitbreaker.ErrOpen
)

// Request fields. Hourly humidity, wind and precipitation are requested but not kept in the report.
const (
	currentFields = "temperature_2m,relative_humidity_2m,wind_speed_10m,precipitation,weather_code"
	hourlyFields  = "temperature_2m,relative_humidity_2m,wind_speed_10m,precipitation"
	dailyFields   = "weather_code,temperature_2m_max,temperature_2m_min,sunrise,sunset"
)

// maxBodyBytes bounds the upstream response read.
const maxBodyBytes = 1 << 20

// Options tunes an OpenMeteoClient. Zero values take defaults.
type Options struct {
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	HourlyPoints   int
	// Probe is the location Ping fetches.
	Probe models.Coordinates
	// Breaker, when set, wraps every upstream attempt.
	Breaker    *circuitbreaker.CircuitBreaker
	HTTPClient *http.Client
}

type OpenMeteoClient struct {
	apiURL         *url.URL
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	hourlyPoints   int
	probe          models.Coordinates
	breaker        *circuitbreaker.CircuitBreaker
}

// NewOpenMeteoClient returns a client for the Open-Meteo forecast endpoint at apiURL.
func NewOpenMeteoClient(apiURL string, timeout time.Duration, opts Options) (*OpenMeteoClient, error) {
	u, err := url.Parse(apiURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid forecast API URL %q", apiURL)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 100 * time.Millisecond
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = 2 * time.Second
	}
	if opts.HourlyPoints <= 0 {
		opts.HourlyPoints = 24
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &OpenMeteoClient{
		apiURL:         u,
		timeout:        timeout,
		client:         opts.HTTPClient,
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
		hourlyPoints:   opts.HourlyPoints,
		probe:          opts.Probe,
		breaker:        opts.Breaker,
	}, nil
}

type forecastResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Current   *struct {
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		Precipitation float64 `json:"precipitation"`
		WeatherCode   int     `json:"weather_code"`
	} `json:"current"`
	Hourly struct {
		Time        []string  `json:"time"`
		Temperature []float64 `json:"temperature_2m"`
	} `json:"hourly"`
	Daily struct {
		Time           []string  `json:"time"`
		WeatherCode    []int     `json:"weather_code"`
		TemperatureMax []float64 `json:"temperature_2m_max"`
		TemperatureMin []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

type errorResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// GetReport fetches current, hourly and daily weather for coords, retrying
// transient failures with exponential backoff and jitter.
func (c *OpenMeteoClient) GetReport(ctx context.Context, coords models.Coordinates) (models.Report, error) {
	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.Inc()
			timer := time.NewTimer(c.calculateBackoff(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return models.Report{}, ctx.Err()
			case <-timer.C:
			}
		}

		report, err := c.attempt(ctx, coords)
		if err == nil {
			return report, nil
		}
		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			return models.Report{}, err
		}
	}
	return models.Report{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *OpenMeteoClient) attempt(ctx context.Context, coords models.Coordinates) (models.Report, error) {
	if c.breaker == nil {
		return c.callAPI(ctx, coords)
	}
	var (
		report  models.Report
		callErr error
	)
	err := c.breaker.Call(ctx, func() error {
		report, callErr = c.callAPI(ctx, coords)
		if errors.Is(callErr, ErrInvalidCoordinates) {
			return nil // caller error, not an upstream fault
		}
		return callErr
	})
	if err != nil {
		return models.Report{}, err
	}
	return report, callErr
}

func (c *OpenMeteoClient) callAPI(ctx context.Context, coords models.Coordinates) (models.Report, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, coords)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues("error").Inc()
		return models.Report{}, fmt.Errorf("build request: %w", err)
	}
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues("error").Inc()
		observability.UpstreamDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.Report{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.Report{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(status).Inc()
	observability.UpstreamDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.Report{}, fmt.Errorf("read response body: %w", err)
	}
	if err := handleErrorResponse(resp.StatusCode, body, coords); err != nil {
		return models.Report{}, err
	}

	var apiResp forecastResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.Report{}, fmt.Errorf("%w: parse response: %v", ErrMalformedResponse, err)
	}
	return c.mapResponse(apiResp, coords)
}

func isRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrUpstreamFailure):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *OpenMeteoClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *OpenMeteoClient) buildRequest(ctx context.Context, coords models.Coordinates) (*http.Request, error) {
	u := *c.apiURL
	params := u.Query()
	params.Set("latitude", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(coords.Lon, 'f', -1, 64))
	params.Set("current", currentFields)
	params.Set("hourly", hourlyFields)
	params.Set("daily", dailyFields)
	params.Set("timezone", "auto")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func handleErrorResponse(statusCode int, body []byte, coords models.Coordinates) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	switch statusCode {
	case http.StatusBadRequest:
		var e errorResponse
		_ = json.Unmarshal(body, &e)
		if e.Reason == "" {
			e.Reason = fmt.Sprintf("latitude %v, longitude %v", coords.Lat, coords.Lon)
		}
		return fmt.Errorf("%w: %s", ErrInvalidCoordinates, e.Reason)
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, statusCode)
}

func (c *OpenMeteoClient) mapResponse(r forecastResponse, coords models.Coordinates) (models.Report, error) {
	if r.Current == nil {
		return models.Report{}, fmt.Errorf("%w: missing current block", ErrMalformedResponse)
	}
	if len(r.Hourly.Time) != len(r.Hourly.Temperature) {
		return models.Report{}, fmt.Errorf("%w: hourly series lengths differ (%d times, %d temperatures)",
			ErrMalformedResponse, len(r.Hourly.Time), len(r.Hourly.Temperature))
	}
	d := r.Daily
	n := len(d.Time)
	if len(d.WeatherCode) != n || len(d.TemperatureMax) != n || len(d.TemperatureMin) != n {
		return models.Report{}, fmt.Errorf("%w: daily series lengths differ", ErrMalformedResponse)
	}

	points := len(r.Hourly.Time)
	if points > c.hourlyPoints {
		points = c.hourlyPoints
	}
	cur := r.Current
	return models.Report{
		Coordinates: coords,
		Current: models.CurrentConditions{
			Temp:          cur.Temperature,
			Humidity:      cur.Humidity,
			WindSpeed:     cur.WindSpeed,
			Precipitation: cur.Precipitation,
			Condition:     conditions.ConditionForCode(cur.WeatherCode),
			FeelsLike:     cur.Temperature, // upstream apparent temperature is not requested
			WeatherCode:   cur.WeatherCode,
		},
		Hourly: models.HourlySeries{
			Time:        append([]string(nil), r.Hourly.Time[:points]...),
			Temperature: append([]float64(nil), r.Hourly.Temperature[:points]...),
		},
		Daily: models.DailySeries{
			Time:           d.Time,
			TemperatureMax: d.TemperatureMax,
			TemperatureMin: d.TemperatureMin,
			WeatherCode:    d.WeatherCode,
		},
		FetchedAt: time.Now().UTC(),
	}, nil
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	}
	return "error"
}

// Ping fetches the probe location once, without retries. Used by /health and degraded recovery.
func (c *OpenMeteoClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.attempt(ctx, c.probe); err != nil {
		return fmt.Errorf("ping forecast API: %w", err)
	}
	return nil
}
