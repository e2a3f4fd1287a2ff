package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/weather-dashboard/internal/overload"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency. Watch for: p95/p99 increases on /api/dashboard routes.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Open-Meteo call outcomes by status label (see client.CategorizeError).
	UpstreamCallsTotal *prometheus.CounterVec

	// Open-Meteo latency. Watch for: p95 > 2s (upstream degradation).
	UpstreamDuration *prometheus.HistogramVec

	// Retry attempts against Open-Meteo. High values mean an unstable upstream.
	UpstreamRetriesTotal prometheus.Counter

	// Report cache lookups by result: hit, miss, stale.
	CacheLookupsTotal *prometheus.CounterVec

	// Concurrent misses on the same report key.
	CacheStampedesTotal prometheus.Counter

	// Report lookups that waited on another caller's upstream fetch.
	CoalescedRequestsTotal prometheus.Counter

	// Placeholder data served instead of real data, by kind (summary, stats, report).
	FallbackServedTotal *prometheus.CounterVec

	// Report poller refreshes by result: success, error.
	PollRefreshesTotal *prometheus.CounterVec

	// MQTT observation messages by result: stored, invalid, error.
	IngestMessagesTotal *prometheus.CounterVec

	// Storage failures by operation.
	StorageErrorsTotal *prometheus.CounterVec

	// Circuit breaker state per component: 0 closed, 1 open, 2 half-open.
	CircuitState *prometheus.GaugeVec

	// Report queries. rate() gives dashboard QPS.
	ReportQueriesTotal prometheus.Counter

	// Report queries per location (allow-list; others go to "other").
	ReportQueriesByLocationTotal *prometheus.CounterVec

	// Rate limit denials.
	RateLimitDeniedTotal prometheus.Counter

	trackedLocationsMu sync.RWMutex
	trackedLocations   map[string]struct{}

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openMeteoCallsTotal",
			Help: "Total number of Open-Meteo forecast calls",
		},
		[]string{"status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openMeteoDurationSeconds",
			Help:    "Open-Meteo latency in seconds (per attempt)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	UpstreamRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "openMeteoRetriesTotal",
			Help: "Total number of retry attempts for Open-Meteo calls",
		},
	)
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reportCacheLookupsTotal",
			Help: "Report cache lookups by result (hit, miss, stale)",
		},
		[]string{"result"},
	)
	CacheStampedesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reportCacheStampedesTotal",
			Help: "Cache misses that found another miss for the same key in progress",
		},
	)
	CoalescedRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coalescedRequestsTotal",
			Help: "Report lookups served by joining an in-flight upstream fetch",
		},
	)
	FallbackServedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallbackServedTotal",
			Help: "Placeholder responses served when no data was available",
		},
		[]string{"kind"},
	)
	PollRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollRefreshesTotal",
			Help: "Background report refreshes by result",
		},
		[]string{"result"},
	)
	IngestMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestMessagesTotal",
			Help: "MQTT observation messages by result",
		},
		[]string{"result"},
	)
	StorageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storageErrorsTotal",
			Help: "SQLite storage failures by operation",
		},
		[]string{"op"},
	)
	CircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"component"},
	)
	ReportQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reportQueriesTotal",
			Help: "Total number of dashboard report lookups",
		},
	)
	ReportQueriesByLocationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reportQueriesByLocationTotal",
			Help: "Report queries by location (allow-list; others use location=other)",
		},
		[]string{"location"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, UpstreamRetriesTotal,
		CacheLookupsTotal, CacheStampedesTotal, CoalescedRequestsTotal,
		FallbackServedTotal, PollRefreshesTotal,
		IngestMessagesTotal, StorageErrorsTotal, CircuitState,
		ReportQueriesTotal, ReportQueriesByLocationTotal,
		RateLimitDeniedTotal,
	)
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited path.
// Call from main after config load with cfg.OverloadWindow.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited path in sliding window",
				},
				func() float64 { return float64(overload.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window",
				},
				func() float64 { return float64(overload.DenialCount(window)) },
			),
		)
	})
}

// SetTrackedLocations sets the allow-list for per-location metrics. Other names count as "other".
func SetTrackedLocations(locations []string) {
	trackedLocationsMu.Lock()
	defer trackedLocationsMu.Unlock()
	trackedLocations = make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		trackedLocations[normalizeLocationForMetrics(loc)] = struct{}{}
	}
}

// RecordReportQuery records a report lookup for the named location.
func RecordReportQuery(location string) {
	ReportQueriesTotal.Inc()
	ReportQueriesByLocationTotal.WithLabelValues(locationLabel(location)).Inc()
}

func locationLabel(location string) string {
	loc := normalizeLocationForMetrics(location)
	trackedLocationsMu.RLock()
	_, ok := trackedLocations[loc]
	trackedLocationsMu.RUnlock()
	if ok {
		return loc
	}
	return "other"
}

func normalizeLocationForMetrics(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
