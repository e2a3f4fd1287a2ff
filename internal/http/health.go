package http

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/degraded"
	"github.com/kjstillabower/weather-dashboard/internal/idle"
	"github.com/kjstillabower/weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-dashboard/internal/overload"
)

const (
	serviceName        = "weather-dashboard"
	healthCheckTimeout = 2 * time.Second
)

// HealthCheck pings one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// CachedCheck wraps check so it runs at most once per ttl. Calls inside the
// window return the last result. Concurrent callers wait for a single run.
// A ttl <= 0 returns check unchanged.
func CachedCheck(check HealthCheck, ttl time.Duration, now func() time.Time) HealthCheck {
	if ttl <= 0 {
		return check
	}
	if now == nil {
		now = time.Now
	}
	var (
		mu      sync.Mutex
		checked time.Time
		last    error
	)
	return func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if !checked.IsZero() && now().Sub(checked) < ttl {
			return last
		}
		last = check(ctx)
		checked = now()
		return last
	}
}

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	Version                string
	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	RateLimitRPS           int // 0 when the rate limiter is disabled
	DegradedWindow         time.Duration
	DegradedErrorPct       int
	IdleWindow             time.Duration
	IdleThresholdReqPerMin int
	MinimumLifespan        time.Duration
	// Checks are reported per dependency (e.g. forecastApi, cache, storage). Only a
	// check that records a failed upstream probe affects the overall status.
	Checks map[string]HealthCheck
}

type healthResult struct {
	status     string
	statusCode int
	reason     string
}

type healthResponse struct {
	Status    string            `json:"status"`
	Reason    string            `json:"reason,omitempty"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	// Checks run first: the forecastApi check updates the upstream probe flag.
	checks := h.runChecks(r.Context())
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	if prev := h.healthStatusPrev; prev != "" && prev != result.status {
		h.Logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	version := "dev"
	if h.Health != nil && h.Health.Version != "" {
		version = h.Health.Version
	}
	writeJSON(w, result.statusCode, healthResponse{
		Status:    result.status,
		Reason:    result.reason,
		Service:   serviceName,
		Version:   version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > degraded > overloaded > idle > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	cfg := h.Health
	if cfg == nil {
		if degraded.ProbeFailed() {
			return healthResult{"degraded", http.StatusServiceUnavailable, "upstream_unreachable"}
		}
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if ok, reason := degraded.IsDegraded(cfg.DegradedWindow, cfg.DegradedErrorPct); ok {
		return healthResult{"degraded", http.StatusServiceUnavailable, reason}
	}
	if overload.IsOverloaded(cfg.RateLimitRPS, cfg.OverloadWindow, cfg.OverloadThresholdPct) {
		return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
	}
	if idle.IsIdle(cfg.IdleWindow, cfg.IdleThresholdReqPerMin, lifecycle.Uptime(), cfg.MinimumLifespan) {
		return healthResult{"idle", http.StatusOK, "low_traffic"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func (h *Handler) runChecks(ctx context.Context) map[string]string {
	checks := make(map[string]string)
	if h.Health == nil {
		return checks
	}
	names := make([]string, 0, len(h.Health.Checks))
	for name := range h.Health.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	for _, name := range names {
		if err := h.Health.Checks[name](ctx); err != nil {
			h.Logger.Debug("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "unhealthy"
			continue
		}
		checks[name] = "healthy"
	}
	return checks
}
