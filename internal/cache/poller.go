package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// ReportRefresher fetches a report from upstream and stores it, bypassing cached entries.
// Implemented by the service layer.
type ReportRefresher interface {
	RefreshReport(ctx context.Context, loc models.NamedLocation) (models.Report, error)
}

// LocationLister supplies the tracked locations to refresh.
type LocationLister interface {
	ListLocations(ctx context.Context) ([]models.Location, error)
}

// Poller keeps reports for the default location and every tracked location fresh.
type Poller struct {
	refresher ReportRefresher
	locations LocationLister
	def       models.NamedLocation
	logger    *zap.Logger
}

// NewPoller creates a Poller. locations may be nil to refresh only the default location.
func NewPoller(refresher ReportRefresher, locations LocationLister, def models.NamedLocation, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{refresher: refresher, locations: locations, def: def, logger: logger}
}

// targets returns the default location plus tracked locations, one per cache key.
func (p *Poller) targets(ctx context.Context) ([]models.NamedLocation, error) {
	out := []models.NamedLocation{p.def}
	seen := map[string]struct{}{Key(p.def.Coordinates()): {}}
	if p.locations == nil {
		return out, nil
	}
	locs, err := p.locations.ListLocations(ctx)
	if err != nil {
		return out, fmt.Errorf("list locations: %w", err)
	}
	for _, l := range locs {
		k := Key(l.Coordinates())
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, models.NamedLocation{Name: l.Name, Lat: l.Lat, Lon: l.Lon})
	}
	return out, nil
}

// Refresh fetches every target concurrently. Returns the joined errors, if any.
func (p *Poller) Refresh(ctx context.Context) error {
	start := time.Now()
	targets, listErr := p.targets(ctx)
	if listErr != nil {
		p.logger.Warn("refreshing default location only", zap.Error(listErr))
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(targets))
	for _, loc := range targets {
		wg.Add(1)
		go func(loc models.NamedLocation) {
			defer wg.Done()
			if _, err := p.refresher.RefreshReport(ctx, loc); err != nil {
				observability.PollRefreshesTotal.WithLabelValues("error").Inc()
				errCh <- fmt.Errorf("refresh %s: %w", loc.Name, err)
				return
			}
			observability.PollRefreshesTotal.WithLabelValues("success").Inc()
		}(loc)
	}
	wg.Wait()
	close(errCh)

	errs := []error{listErr}
	for err := range errCh {
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	p.logger.Info("report refresh complete",
		zap.Int("locations", len(targets)),
		zap.Bool("ok", err == nil),
		zap.Float64("duration_seconds", time.Since(start).Seconds()))
	return err
}

// Run refreshes once, then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", interval)
	}
	if err := p.Refresh(ctx); err != nil {
		p.logger.Warn("initial report refresh failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				p.logger.Warn("periodic report refresh failed", zap.Error(err))
			}
		}
	}
}
