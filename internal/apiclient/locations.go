package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// MockLocations is returned by List when the backend is unreachable.
func MockLocations() []models.Location {
	return []models.Location{
		{ID: "1", Name: "Kathmandu", Region: "Bagmati", Lat: 27.7172, Lon: 85.3240},
		{ID: "2", Name: "Pokhara", Region: "Gandaki", Lat: 28.2096, Lon: 83.9856},
		{ID: "3", Name: "Paton", Region: "Bagmati", Lat: 27.671, Lon: 85.324},
	}
}

// LocationClient manages tracked locations through /api/locations. When a call
// fails it logs a warning and simulates the result locally.
type LocationClient struct {
	c *Client
}

func NewLocationClient(c *Client) *LocationClient {
	return &LocationClient{c: c}
}

func (l *LocationClient) List(ctx context.Context) []models.Location {
	var out []models.Location
	if err := l.c.do(ctx, http.MethodGet, "/locations", nil, &out); err != nil {
		l.c.logger.Warn("backend unreachable, using mock locations", "error", err)
		return MockLocations()
	}
	return out
}

// Add creates loc. The ID field is ignored.
func (l *LocationClient) Add(ctx context.Context, loc models.Location) models.Location {
	loc.ID = ""
	var out models.Location
	if err := l.c.do(ctx, http.MethodPost, "/locations", loc, &out); err != nil {
		l.c.logger.Warn("backend unreachable, simulating add location locally", "error", err)
		loc.ID = uuid.NewString()
		return loc
	}
	return out
}

// Update applies patch to the location with id.
func (l *LocationClient) Update(ctx context.Context, id string, patch models.LocationPatch) models.Location {
	var out models.Location
	if err := l.c.do(ctx, http.MethodPut, "/locations/"+url.PathEscape(id), patch, &out); err != nil {
		l.c.logger.Warn("backend unreachable, simulating update locally", "id", id, "error", err)
		return patch.Apply(models.Location{ID: id})
	}
	return out
}

// Delete removes the location with id. Failures are logged and ignored.
func (l *LocationClient) Delete(ctx context.Context, id string) {
	if err := l.c.do(ctx, http.MethodDelete, "/locations/"+url.PathEscape(id), nil, nil); err != nil {
		l.c.logger.Warn("backend unreachable, simulating delete locally", "id", id, "error", err)
	}
}
