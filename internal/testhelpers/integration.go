//go:build integration

// Package testhelpers starts the real dependencies integration tests run against.
package testhelpers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/weather-dashboard/internal/storage"
)

// StartMemcached runs memcached in a container and returns its address. When
// MEMCACHED_ADDRS is set, that server is used instead.
func StartMemcached(t *testing.T) string {
	t.Helper()
	if addr := os.Getenv("MEMCACHED_ADDRS"); addr != "" {
		return addr
	}
	ctx := context.Background()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "memcached:1.6-alpine",
			ExposedPorts: []string{"11211/tcp"},
			WaitingFor:   wait.ForListeningPort("11211/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("memcached container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := c.MappedPort(ctx, "11211/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return host + ":" + port.Port()
}

// OpenStore opens a file-backed store in a temp dir with the given driver.
func OpenStore(t *testing.T, driver string) *storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Options{
		Driver: driver,
		Path:   filepath.Join(t.TempDir(), "weather.db"),
		Logger: zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("storage.Open(%s) error = %v", driver, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// ForecastBody is a well-formed Open-Meteo response with three hourly points and two days.
const ForecastBody = `{
  "latitude": 27.7,
  "longitude": 85.3,
  "current": {"temperature_2m": 18.5, "relative_humidity_2m": 60, "wind_speed_10m": 7.2, "precipitation": 0, "weather_code": 2},
  "hourly": {"time": ["2026-10-17T00:00", "2026-10-17T01:00", "2026-10-17T02:00"], "temperature_2m": [15.0, 16.0, 17.0]},
  "daily": {"time": ["2026-10-17", "2026-10-18"], "weather_code": [2, 61], "temperature_2m_max": [22.0, 19.5], "temperature_2m_min": [12.0, 11.0]}
}`

// ForecastStub serves ForecastBody and counts calls. Setting Fail makes it answer 503.
type ForecastStub struct {
	*httptest.Server
	Calls atomic.Int64
	Fail  atomic.Bool
}

// StartForecastStub starts a stand-in for the Open-Meteo forecast endpoint.
func StartForecastStub(t *testing.T) *ForecastStub {
	t.Helper()
	stub := &ForecastStub{}
	stub.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.Calls.Add(1)
		if stub.Fail.Load() {
			http.Error(w, `{"error":true,"reason":"maintenance"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ForecastBody))
	}))
	t.Cleanup(stub.Close)
	return stub
}
