package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/degraded"
	httphandler "github.com/kjstillabower/weather-dashboard/internal/http"
	"github.com/kjstillabower/weather-dashboard/internal/ingest"
	"github.com/kjstillabower/weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/service"
	"github.com/kjstillabower/weather-dashboard/internal/storage"
	"github.com/kjstillabower/weather-dashboard/internal/views"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	forecastComponent     = "open_meteo"
	inFlightCheckInterval = 100 * time.Millisecond
	mqttConnectTimeout    = 30 * time.Second
)

func main() {
	logger, err := observability.NewLogger("weather-dashboard")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	lifecycle.MarkStarted(time.Now())

	ctx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	defaultLoc := models.NamedLocation{Name: cfg.DefaultLocationName, Lat: cfg.DefaultLocationLat, Lon: cfg.DefaultLocationLon}

	opts := client.Options{
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
		HourlyPoints:   cfg.HourlyPoints,
		Probe:          defaultLoc.Coordinates(),
	}
	if cfg.CircuitBreakerEnabled {
		opts.Breaker = circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        forecastComponent,
			OnStateChange: func(component string, from, to circuitbreaker.State) {
				observability.CircuitState.WithLabelValues(component).Set(float64(to))
				logger.Warn("circuit breaker transition",
					zap.String("component", component),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		observability.CircuitState.WithLabelValues(forecastComponent).Set(0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}
	forecastClient, err := client.NewOpenMeteoClient(cfg.OpenMeteoURL, cfg.OpenMeteoTimeout, opts)
	if err != nil {
		logger.Fatal("forecast client", zap.Error(err))
	}

	reportCache, memcache, err := newCache(cfg, logger)
	if err != nil {
		logger.Fatal("report cache", zap.Error(err))
	}

	store, err := storage.Open(storage.Options{
		Driver:       cfg.StorageDriver,
		Path:         cfg.StoragePath,
		MaxOpenConns: cfg.StorageMaxOpenConns,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}
	logger.Info("storage opened", zap.String("driver", cfg.StorageDriver), zap.String("path", cfg.StoragePath))

	dashboard := service.NewDashboardService(forecastClient, reportCache, store, service.Options{
		TTL:             cfg.CacheTTL,
		StaleTTL:        cfg.StaleTTL,
		CoalesceEnabled: cfg.CoalesceEnabled,
		CoalesceTimeout: cfg.CoalesceTimeout,
		Logger:          logger,
	})

	renderer, err := views.New()
	if err != nil {
		logger.Fatal("views", zap.Error(err))
	}

	probe := func(ctx context.Context) error {
		err := forecastClient.Ping(ctx)
		degraded.SetProbeFailed(err != nil)
		if err != nil {
			degraded.NotifyDegraded()
		}
		return err
	}
	degraded.StartRecoveryListener(ctx, probe, cfg.DegradedRetryInitial, cfg.DegradedRetryMax, func() {
		logger.Error("forecast API still unreachable after recovery attempts")
	})

	healthConfig := &httphandler.HealthConfig{
		Version:                version,
		OverloadWindow:         cfg.OverloadWindow,
		OverloadThresholdPct:   cfg.OverloadThresholdPct,
		RateLimitRPS:           cfg.RateLimitRPS,
		DegradedWindow:         cfg.DegradedWindow,
		DegradedErrorPct:       cfg.DegradedErrorPct,
		IdleWindow:             cfg.IdleWindow,
		IdleThresholdReqPerMin: cfg.IdleThresholdReqPerMin,
		MinimumLifespan:        cfg.MinimumLifespan,
		Checks: map[string]httphandler.HealthCheck{
			"forecastApi": httphandler.CachedCheck(probe, cfg.HealthProbeTTL, nil),
			"storage":     func(context.Context) error { return store.Ping() },
		},
	}
	if memcache != nil {
		healthConfig.Checks["cache"] = func(context.Context) error { return memcache.Ping() }
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterRateLimitGauges(cfg.OverloadWindow)
	observability.SetTrackedLocations(trackedLocationNames(ctx, store, defaultLoc, logger))

	handler := httphandler.NewHandler(httphandler.Deps{
		Dashboard:       dashboard,
		Store:           store,
		Views:           renderer,
		DefaultLocation: defaultLoc,
		PollInterval:    cfg.PollInterval,
		SeedEnabled:     cfg.SeedEnabled,
		Health:          healthConfig,
		Logger:          logger,
	})
	router := httphandler.NewRouter(handler, httphandler.RouterOptions{
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
	})
	if cfg.SeedEnabled {
		logger.Warn("admin seeding enabled; /api/admin/seed exposed")
	}

	poller := cache.NewPoller(dashboard, store, defaultLoc, logger)
	go func() {
		if err := poller.Run(ctx, cfg.PollInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("report poller stopped", zap.Error(err))
		}
	}()

	var subscriber *ingest.Subscriber
	if cfg.MQTTEnabled {
		subscriber = ingest.NewSubscriber(ingest.Options{
			Broker:   cfg.MQTTBroker,
			Port:     cfg.MQTTPort,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
		}, store, logger)
		go func() {
			connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
			defer cancel()
			if err := subscriber.Connect(connectCtx); err != nil {
				logger.Error("mqtt ingest unavailable", zap.String("broker", cfg.MQTTBroker), zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-sigCtx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	cancelBackground()
	if subscriber != nil {
		subscriber.Disconnect()
	}
	if err := store.Close(); err != nil {
		logger.Error("storage close", zap.Error(err))
	}
	if memcache != nil {
		if err := memcache.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
	flushCtx, flushCancel := context.WithTimeout(context.Background(), time.Second)
	defer flushCancel()
	if err := observability.Flush(flushCtx, logger); err != nil {
		fmt.Fprintf(os.Stderr, "log flush: %v\n", err)
	}
}

// newCache builds the configured report cache. The memcached handle is returned
// separately so main can ping and close it; it is nil for the in-memory backend.
func newCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, *cache.MemcachedCache, error) {
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.StaleTTL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return mc, mc, nil
	case "", "in_memory":
		logger.Info("cache backend: in_memory")
		return cache.NewInMemoryCache(cfg.StaleTTL), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
}

// trackedLocationNames is the default location plus every stored location, used to
// bound the per-location query metric labels.
func trackedLocationNames(ctx context.Context, lister cache.LocationLister, def models.NamedLocation, logger *zap.Logger) []string {
	names := []string{def.Name}
	locs, err := lister.ListLocations(ctx)
	if err != nil {
		logger.Warn("list tracked locations", zap.Error(err))
		return names
	}
	for _, l := range locs {
		names = append(names, l.Name)
	}
	return names
}
