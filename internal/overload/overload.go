// Package overload reports whether the rate-limited /api path is running close to capacity.
package overload

import (
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/traffic"
)

// RecordDenial records a rate-limit denial (429). Call from middleware when returning 429.
func RecordDenial() {
	traffic.RecordDenied()
}

// RequestCount returns the number of requests (success + error + denied) within the given window.
func RequestCount(window time.Duration) int {
	return traffic.RequestCount(window)
}

// DenialCount returns the number of denials within the given window.
func DenialCount(window time.Duration) int {
	return traffic.DenialCount(window)
}

// Threshold is the request count above which the service counts as overloaded:
// thresholdPct percent of what rps allows over the window.
func Threshold(rps int, window time.Duration, thresholdPct int) int {
	return int(float64(rps) * window.Seconds() * float64(thresholdPct) / 100)
}

// IsOverloaded reports whether requests in the window exceed Threshold.
func IsOverloaded(rps int, window time.Duration, thresholdPct int) bool {
	if rps <= 0 || window <= 0 || thresholdPct <= 0 {
		return false
	}
	return RequestCount(window) > Threshold(rps, window, thresholdPct)
}

// Reset clears all recorded data. For tests only.
func Reset() {
	traffic.Reset()
}
