package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/storage"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// ObservationStore loads stored observations. An empty city means any city.
// A miss returns storage.ErrNotFound.
type ObservationStore interface {
	LatestObservation(ctx context.Context, city string) (models.Observation, error)
}

// Options configures a DashboardService.
type Options struct {
	TTL             time.Duration // fresh lifetime of cached reports
	StaleTTL        time.Duration // max age of a report served when upstream fails (0 = never)
	CoalesceEnabled bool
	CoalesceTimeout time.Duration
	Logger          *zap.Logger
}

// DashboardService assembles the data behind the dashboard: upstream reports
// (cache-aside), the current summary from stored observations, and temperature stats.
type DashboardService struct {
	client    client.ForecastClient
	cache     cache.Cache
	store     ObservationStore
	ttl       time.Duration
	staleTTL  time.Duration
	stampede  *stampedeTracker
	coalescer *requestCoalescer // nil when coalescing is disabled
	logger    *zap.Logger
}

// NewDashboardService creates a DashboardService. store may be nil, in which case
// summaries are always the fallback.
func NewDashboardService(c client.ForecastClient, rc cache.Cache, store ObservationStore, opts Options) *DashboardService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var coalescer *requestCoalescer
	if opts.CoalesceEnabled && opts.CoalesceTimeout > 0 {
		coalescer = newRequestCoalescer(opts.CoalesceTimeout)
	}
	return &DashboardService{
		client:    c,
		cache:     rc,
		store:     store,
		ttl:       opts.TTL,
		staleTTL:  opts.StaleTTL,
		stampede:  newStampedeTracker(),
		coalescer: coalescer,
		logger:    logger,
	}
}

// GetReport returns the report for loc, from cache when fresh. On a miss it fetches
// upstream, sharing the fetch with concurrent callers for the same key. If the
// upstream fails and a report no older than the stale TTL is cached, that report
// is returned with Stale set.
func (s *DashboardService) GetReport(ctx context.Context, loc models.NamedLocation) (models.Report, error) {
	coords := loc.Coordinates()
	if err := validation.ValidateCoordinates(coords); err != nil {
		return models.Report{}, err
	}
	key := cache.Key(coords)
	logger := observability.LoggerFrom(ctx, s.logger)
	observability.RecordReportQuery(loc.Name)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		observability.CacheLookupsTotal.WithLabelValues("hit").Inc()
		logger.Debug("report served from cache", zap.String("key", key))
		return withName(cached, loc.Name), nil
	}
	observability.CacheLookupsTotal.WithLabelValues("miss").Inc()

	if n := s.stampede.RecordMiss(key); n > 1 {
		observability.CacheStampedesTotal.Inc()
		logger.Debug("concurrent cache miss", zap.String("key", key), zap.Int("active", n))
	}
	defer s.stampede.Resolve(key)

	fetch := func(ctx context.Context) (models.Report, error) {
		return s.fetchAndStore(ctx, key, loc)
	}
	var report models.Report
	var fetchErr error
	if s.coalescer != nil {
		var shared bool
		report, shared, fetchErr = s.coalescer.GetOrDo(ctx, key, fetch)
		if shared {
			observability.CoalescedRequestsTotal.Inc()
		}
	} else {
		report, fetchErr = fetch(ctx)
	}
	if fetchErr == nil {
		return withName(report, loc.Name), nil
	}

	if s.staleTTL > 0 && !errors.Is(fetchErr, client.ErrInvalidCoordinates) {
		stale, ok, staleErr := s.cache.GetStale(ctx, key, s.staleTTL)
		if staleErr == nil && ok {
			observability.CacheLookupsTotal.WithLabelValues("stale").Inc()
			logger.Info("serving stale report",
				zap.String("key", key),
				zap.Duration("age", time.Since(stale.FetchedAt)),
				zap.Error(fetchErr),
			)
			stale.Stale = true
			return withName(stale, loc.Name), nil
		}
	}
	return models.Report{}, fmt.Errorf("fetch report for %s: %w", key, fetchErr)
}

// RefreshReport fetches loc from upstream and overwrites the cached report.
func (s *DashboardService) RefreshReport(ctx context.Context, loc models.NamedLocation) (models.Report, error) {
	key := cache.Key(loc.Coordinates())
	report, err := s.fetchAndStore(ctx, key, loc)
	if err != nil {
		return models.Report{}, fmt.Errorf("refresh report for %s: %w", key, err)
	}
	return report, nil
}

func (s *DashboardService) fetchAndStore(ctx context.Context, key string, loc models.NamedLocation) (models.Report, error) {
	report, err := s.client.GetReport(ctx, loc.Coordinates())
	if err != nil {
		return models.Report{}, err
	}
	report = withName(report, loc.Name)
	if setErr := s.cache.Set(ctx, key, report, s.ttl); setErr != nil {
		observability.LoggerFrom(ctx, s.logger).Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
	}
	return report, nil
}

func withName(r models.Report, name string) models.Report {
	if name != "" {
		r.Location = name
	}
	return r
}

// CurrentSummary returns the latest stored observation for city (any city when
// empty) as a Summary. When nothing is stored, or the store fails, it returns
// models.FallbackSummary().
func (s *DashboardService) CurrentSummary(ctx context.Context, city string) models.Summary {
	logger := observability.LoggerFrom(ctx, s.logger)
	if s.store == nil {
		observability.FallbackServedTotal.WithLabelValues("summary").Inc()
		return models.FallbackSummary()
	}
	obs, err := s.store.LatestObservation(ctx, city)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logger.Debug("no stored observation", zap.String("city", city))
		} else {
			logger.Warn("load observation failed", zap.String("city", city), zap.Error(err))
		}
		observability.FallbackServedTotal.WithLabelValues("summary").Inc()
		return models.FallbackSummary()
	}
	return models.SummaryFromObservation(obs)
}

// TemperatureStats derives the statistics page data from the current summary for
// city. Missing feels-like, max and min readings fall back to the current
// temperature. When loc is set, the hourly min, max and average of its report
// are included; if the report cannot be loaded ReportNote says so.
func (s *DashboardService) TemperatureStats(ctx context.Context, city string, loc *models.NamedLocation) models.TemperatureStats {
	stats := statsFromSummary(s.CurrentSummary(ctx, city))
	if loc == nil {
		return stats
	}
	report, err := s.GetReport(ctx, *loc)
	if err != nil {
		observability.LoggerFrom(ctx, s.logger).Warn("hourly stats unavailable",
			zap.String("location", loc.Name), zap.Error(err))
		stats.ReportNote = "Hourly data unavailable"
		return stats
	}
	applyHourly(&stats, report.Hourly.Temperature)
	if report.Stale {
		stats.ReportNote = "Hourly data may be out of date"
	}
	return stats
}

func statsFromSummary(sum models.Summary) models.TemperatureStats {
	temp := sum.Temperature
	stats := models.TemperatureStats{
		Current:   temp,
		FeelsLike: valueOr(sum.FeelsLike, temp),
		Max:       valueOr(sum.TempMax, temp),
		Min:       valueOr(sum.TempMin, temp),
		Fallback:  sum.Fallback,
	}
	stats.Range = stats.Max - stats.Min
	return stats
}

func applyHourly(stats *models.TemperatureStats, temps []float64) {
	if len(temps) == 0 {
		return
	}
	lo, hi, sum := temps[0], temps[0], 0.0
	for _, t := range temps {
		if t < lo {
			lo = t
		}
		if t > hi {
			hi = t
		}
		sum += t
	}
	avg := sum / float64(len(temps))
	stats.HourlyMin, stats.HourlyMax, stats.HourlyAvg = &lo, &hi, &avg
}

// valueOr mirrors a falsy fallback: a missing or zero reading uses def.
func valueOr(v *float64, def float64) float64 {
	if v == nil || *v == 0 {
		return def
	}
	return *v
}
