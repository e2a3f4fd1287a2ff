package cache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// Cache stores Open-Meteo reports.
// Get returns only fresh entries. GetStale returns any entry stored within maxAge,
// fresh or expired, for serving when the upstream is down.
type Cache interface {
	Get(ctx context.Context, key string) (models.Report, bool, error)
	GetStale(ctx context.Context, key string, maxAge time.Duration) (models.Report, bool, error)
	Set(ctx context.Context, key string, value models.Report, ttl time.Duration) error
}

// Key returns the cache key for coordinates rounded to two decimals (about 1 km),
// so nearby lookups share an entry.
func Key(c models.Coordinates) string {
	return fmt.Sprintf("report:%.2f,%.2f", round2(c.Lat), round2(c.Lon))
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0 // avoid "-0.00"
	}
	return r
}

// entry is also the memcached wire format.
type entry struct {
	Value     models.Report `json:"value"`
	StoredAt  time.Time     `json:"storedAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// InMemoryCache implements Cache with a mutex-guarded map. Expired entries are
// kept for the retention period so GetStale can serve them.
type InMemoryCache struct {
	mu        sync.Mutex
	data      map[string]entry
	retention time.Duration
	now       func() time.Time
}

// NewInMemoryCache creates an in-memory cache keeping expired entries for retention.
func NewInMemoryCache(retention time.Duration) *InMemoryCache {
	return &InMemoryCache{
		data:      make(map[string]entry),
		retention: retention,
		now:       time.Now,
	}
}

// Get returns the entry for key if present and not expired.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.Report, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok || c.now().After(e.ExpiresAt) {
		return models.Report{}, false, nil
	}
	return e.Value, true, nil
}

// GetStale returns the entry for key if it was stored within maxAge, expired or not.
func (c *InMemoryCache) GetStale(ctx context.Context, key string, maxAge time.Duration) (models.Report, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok || c.now().Sub(e.StoredAt) > maxAge {
		return models.Report{}, false, nil
	}
	return e.Value, true, nil
}

// Set stores value for ttl and drops entries past expiry plus retention.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.Report, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.data[key] = entry{Value: value, StoredAt: now, ExpiresAt: now.Add(ttl)}
	for k, e := range c.data {
		if now.Sub(e.ExpiresAt) > c.retention {
			delete(c.data, k)
		}
	}
	return nil
}

// Len returns the number of retained entries.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
