package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

const dateLayout = "2006-01-02"

// SaveForecastDay stores d, assigning a UUID when ID is empty. The date is kept
// at day precision in UTC.
func (s *Store) SaveForecastDay(ctx context.Context, d models.ForecastDay) (models.ForecastDay, error) {
	d, err := s.insertForecastDay(ctx, s.db, d)
	if err != nil {
		return models.ForecastDay{}, fail("save forecast day", err)
	}
	return d, nil
}

func (s *Store) insertForecastDay(ctx context.Context, ex execer, d models.ForecastDay) (models.ForecastDay, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Date.IsZero() {
		d.Date = s.now()
	}
	d.Date = truncateDay(d.Date)
	_, err := ex.ExecContext(ctx, `
		INSERT INTO forecast_days (id, city, date, temperature, weather, description, icon, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.City, d.Date.Format(dateLayout), d.Temperature, d.Weather, d.Description, d.Icon, formatTime(s.now()),
	)
	if err != nil {
		return models.ForecastDay{}, err
	}
	return d, nil
}

// ListForecast returns up to limit forecast days for city (case-insensitive), ordered by date.
func (s *Store) ListForecast(ctx context.Context, city string, limit int) ([]models.ForecastDay, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, city, date, temperature, weather, description, icon
		FROM forecast_days WHERE city = ?
		ORDER BY date ASC, rowid ASC LIMIT ?`, city, clampLimit(limit))
	if err != nil {
		return nil, fail("list forecast", err)
	}
	return collectForecast(rows)
}

// ListAllForecast returns up to limit forecast days across all cities, ordered by date.
func (s *Store) ListAllForecast(ctx context.Context, limit int) ([]models.ForecastDay, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, city, date, temperature, weather, description, icon
		FROM forecast_days
		ORDER BY date ASC, rowid ASC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fail("list forecast", err)
	}
	return collectForecast(rows)
}

func collectForecast(rows *sql.Rows) ([]models.ForecastDay, error) {
	defer rows.Close()
	out := []models.ForecastDay{}
	for rows.Next() {
		var d models.ForecastDay
		var date string
		if err := rows.Scan(&d.ID, &d.City, &date, &d.Temperature, &d.Weather, &d.Description, &d.Icon); err != nil {
			return nil, fail("list forecast", err)
		}
		t, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fail("list forecast", fmt.Errorf("parse date %q: %w", date, err))
		}
		d.Date = t
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list forecast", err)
	}
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
