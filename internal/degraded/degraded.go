// Package degraded decides whether the dashboard is serving from a failing upstream,
// either because the recent error rate is too high or because an upstream probe failed.
package degraded

import (
	"sync/atomic"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/traffic"
)

var probeFailed atomic.Bool

// RecordSuccess records a successful upstream-backed request.
func RecordSuccess() {
	traffic.RecordSuccess()
}

// RecordError records a failed upstream-backed request (upstream error, timeout, storage).
func RecordError() {
	traffic.RecordError()
}

// ErrorRate returns (errorCount, totalCount) within the window. totalCount = successes + errors.
func ErrorRate(window time.Duration) (errors, total int) {
	return traffic.ErrorRate(window)
}

// SetProbeFailed marks the upstream as unreachable. Cleared when recovery succeeds.
func SetProbeFailed(v bool) {
	probeFailed.Store(v)
}

// ProbeFailed reports whether the last upstream probe failed.
func ProbeFailed() bool {
	return probeFailed.Load()
}

// IsDegraded reports whether errors exceed errorPct percent of requests in the
// window, or the upstream probe has failed. An empty window is not degraded.
func IsDegraded(window time.Duration, errorPct int) (bool, string) {
	if ProbeFailed() {
		return true, "upstream_unreachable"
	}
	errs, total := ErrorRate(window)
	if total > 0 && errs*100 > errorPct*total {
		return true, "error_rate"
	}
	return false, ""
}

// Reset clears recorded outcomes and the probe flag.
func Reset() {
	traffic.Reset()
	probeFailed.Store(false)
}
