//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/testhelpers"
)

func TestMemcachedCache_Integration(t *testing.T) {
	addr := testhelpers.StartMemcached(t)
	c, err := NewMemcachedCache(addr, time.Second, 2, time.Hour)
	if err != nil {
		t.Fatalf("NewMemcachedCache() error = %v", err)
	}
	defer c.Close()
	if err := c.Ping(); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	ctx := context.Background()
	key := Key(models.Coordinates{Lat: 27.7172, Lon: 85.3240})

	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("Get() before Set = ok %v, err %v; want miss", ok, err)
	}

	val := models.Report{
		Location: "Kathmandu, Nepal",
		Current:  models.CurrentConditions{Temp: 22.4, Condition: "Partly Cloudy"},
		Hourly:   models.HourlySeries{Time: []string{"2024-08-25T00:00"}, Temperature: []float64{18}},
	}
	if err := c.Set(ctx, key, val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v; want hit", ok, err)
	}
	if got.Location != val.Location || got.Current.Temp != 22.4 || len(got.Hourly.Temperature) != 1 {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}
}

func TestMemcachedCache_StaleAfterExpiry_Integration(t *testing.T) {
	addr := testhelpers.StartMemcached(t)
	c, err := NewMemcachedCache(addr, time.Second, 2, time.Hour)
	if err != nil {
		t.Fatalf("NewMemcachedCache() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "report:1.00,1.00", models.Report{Location: "x"}, time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(1100 * time.Millisecond)

	if _, ok, _ := c.Get(ctx, "report:1.00,1.00"); ok {
		t.Error("Get() after TTL ok = true, want false")
	}
	if _, ok, err := c.GetStale(ctx, "report:1.00,1.00", time.Minute); err != nil || !ok {
		t.Errorf("GetStale() = ok %v, err %v; want hit", ok, err)
	}
}
