package http

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/storage"
)

var errStoreDown = errors.New("database is locked")

type mockDashboard struct {
	mu        sync.Mutex
	report    models.Report
	reportErr error
	summary   models.Summary
	stats     models.TemperatureStats

	lastLoc      models.NamedLocation
	lastCity     string
	lastStatsLoc *models.NamedLocation
	reportCalls  int
}

func (m *mockDashboard) GetReport(ctx context.Context, loc models.NamedLocation) (models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reportCalls++
	m.lastLoc = loc
	if m.reportErr != nil {
		return models.Report{}, m.reportErr
	}
	r := m.report
	r.Location = loc.Name
	return r, nil
}

func (m *mockDashboard) CurrentSummary(ctx context.Context, city string) models.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCity = city
	return m.summary
}

func (m *mockDashboard) TemperatureStats(ctx context.Context, city string, loc *models.NamedLocation) models.TemperatureStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCity = city
	m.lastStatsLoc = loc
	return m.stats
}

// mockStore is an in-memory Store. Setting err makes every call fail;
// seedErr fails only SaveSeed.
type mockStore struct {
	mu           sync.Mutex
	err          error
	seedErr      error
	nextID       int
	observations []models.Observation
	forecast     []models.ForecastDay
	locations    map[string]models.Location
}

func newMockStore() *mockStore {
	return &mockStore{locations: make(map[string]models.Location)}
}

func (m *mockStore) id() string {
	m.nextID++
	return fmt.Sprintf("id-%d", m.nextID)
}

func (m *mockStore) SaveObservation(ctx context.Context, o models.Observation) (models.Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Observation{}, m.err
	}
	o.ID = m.id()
	o.CreatedAt = time.Now().UTC()
	m.observations = append(m.observations, o)
	return o, nil
}

func (m *mockStore) SaveSeed(ctx context.Context, o models.Observation, days []models.ForecastDay) (models.Observation, []models.ForecastDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Observation{}, nil, m.err
	}
	if m.seedErr != nil {
		return models.Observation{}, nil, m.seedErr
	}
	o.ID = m.id()
	o.CreatedAt = time.Now().UTC()
	stored := make([]models.ForecastDay, 0, len(days))
	for _, d := range days {
		d.ID = m.id()
		stored = append(stored, d)
	}
	m.observations = append(m.observations, o)
	m.forecast = append(m.forecast, stored...)
	return o, stored, nil
}

func (m *mockStore) ListObservations(ctx context.Context, limit int) ([]models.Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.Observation, 0, len(m.observations))
	for i := len(m.observations) - 1; i >= 0; i-- {
		out = append(out, m.observations[i])
	}
	return out, nil
}

func (m *mockStore) LatestObservation(ctx context.Context, city string) (models.Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Observation{}, m.err
	}
	for i := len(m.observations) - 1; i >= 0; i-- {
		if city == "" || strings.EqualFold(m.observations[i].City, city) {
			return m.observations[i], nil
		}
	}
	return models.Observation{}, storage.ErrNotFound
}

func (m *mockStore) SaveForecastDay(ctx context.Context, d models.ForecastDay) (models.ForecastDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.ForecastDay{}, m.err
	}
	d.ID = m.id()
	m.forecast = append(m.forecast, d)
	return d, nil
}

func (m *mockStore) ListForecast(ctx context.Context, city string, limit int) ([]models.ForecastDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []models.ForecastDay
	for _, d := range m.forecast {
		if strings.EqualFold(d.City, city) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockStore) ListAllForecast(ctx context.Context, limit int) ([]models.ForecastDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]models.ForecastDay(nil), m.forecast...), nil
}

func (m *mockStore) ListLocations(ctx context.Context) ([]models.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.Location, 0, len(m.locations))
	for _, l := range m.locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockStore) CreateLocation(ctx context.Context, l models.Location) (models.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Location{}, m.err
	}
	l.ID = m.id()
	m.locations[l.ID] = l
	return l, nil
}

func (m *mockStore) UpdateLocation(ctx context.Context, id string, patch models.LocationPatch, check func(models.Location) (models.Location, error)) (models.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Location{}, m.err
	}
	cur, ok := m.locations[id]
	if !ok {
		return models.Location{}, storage.ErrNotFound
	}
	next, err := check(patch.Apply(cur))
	if err != nil {
		return models.Location{}, err
	}
	next.ID = id
	m.locations[id] = next
	return next, nil
}

func (m *mockStore) DeleteLocation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.locations[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.locations, id)
	return nil
}
