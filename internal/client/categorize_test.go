package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"deadline", fmt.Errorf("request timeout: %w", context.DeadlineExceeded), ErrorCategoryTimeout},
		{"canceled", context.Canceled, ErrorCategoryTimeout},
		{"circuit", circuitbreaker.ErrOpen, ErrorCategoryCircuitOpen},
		{"coordinates", fmt.Errorf("%w: bad lat", ErrInvalidCoordinates), ErrorCategoryInvalidCoordinates},
		{"rate limited", ErrRateLimited, ErrorCategoryRateLimited},
		{"upstream", fmt.Errorf("exhausted retries: %w", fmt.Errorf("%w: HTTP 503", ErrUpstreamFailure)), ErrorCategoryUpstream},
		{"parsing", fmt.Errorf("%w: bad json", ErrMalformedResponse), ErrorCategoryParsing},
		{"net op", &net.OpError{Op: "dial", Err: errors.New("refused")}, ErrorCategoryNetwork},
		{"connection text", errors.New("connection reset by peer"), ErrorCategoryNetwork},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
