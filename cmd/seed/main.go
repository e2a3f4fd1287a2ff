// Command seed posts a demo observation and a seven-day forecast to a running
// dashboard service, then reads them back.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/lmittmann/tint"

	"github.com/kjstillabower/weather-dashboard/internal/apiclient"
	"github.com/kjstillabower/weather-dashboard/internal/seed"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout))
}

// run returns the process exit code.
func run(ctx context.Context, args []string, out io.Writer) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		apiURL  = fs.String("api", apiclient.DefaultBaseURL, "API base URL.")
		city    = fs.String("city", seed.DefaultCity, "City to seed.")
		timeout = fs.Duration("timeout", 30*time.Second, "Overall deadline.")
		verbose = fs.Bool("v", false, "Debug logging.")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(out, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    out != os.Stdout,
	})).With("app", "seed")

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	if err := seedAll(ctx, logger, *apiURL, *city, time.Now()); err != nil {
		logger.Error("seeding failed", "error", err)
		return 1
	}
	return 0
}

func seedAll(ctx context.Context, logger *slog.Logger, apiURL, city string, now time.Time) error {
	c, err := apiclient.New(apiURL, apiclient.WithLogger(logger))
	if err != nil {
		return err
	}
	sc := apiclient.NewSeedClient(c)

	logger.Info("seeding weather", "city", city, "api", apiURL)
	obs, err := sc.PostObservation(ctx, seed.DemoObservation(city, now))
	if err != nil {
		return err
	}
	logger.Debug("weather stored", "id", obs.ID)

	logger.Info("seeding forecast", "days", seed.ForecastDays)
	days := seed.DemoForecast(city, now, rand.New(rand.NewSource(now.UnixNano())))
	if err := sc.PostForecast(ctx, days); err != nil {
		return err
	}

	v, err := sc.Verify(ctx, obs.City)
	if err != nil {
		return err
	}
	logger.Info("verified", "weather", foundLabel(v.WeatherFound), "forecastDays", v.ForecastDays)
	if !v.WeatherFound {
		return fmt.Errorf("seeded weather for %s not found on read-back", obs.City)
	}

	summary := apiclient.NewWeatherClient(c).FetchSummary(ctx)
	logger.Info("dashboard summary", "city", summary.City, "temperature", summary.Temperature, "description", summary.Description)
	locs := apiclient.NewLocationClient(c).List(ctx)
	logger.Info("tracked locations", "count", len(locs))
	return nil
}

func foundLabel(ok bool) string {
	if ok {
		return "Found"
	}
	return "Not Found"
}
