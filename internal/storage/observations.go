package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// SaveObservation stores o. An empty ID is replaced with a new UUID and a zero
// CreatedAt with the current time. The stored observation is returned.
func (s *Store) SaveObservation(ctx context.Context, o models.Observation) (models.Observation, error) {
	o, err := s.insertObservation(ctx, s.db, o)
	if err != nil {
		return models.Observation{}, fail("save observation", err)
	}
	return o, nil
}

func (s *Store) insertObservation(ctx context.Context, ex execer, o models.Observation) (models.Observation, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now().UTC()
	}
	payload, err := json.Marshal(o)
	if err != nil {
		return models.Observation{}, fmt.Errorf("encode observation: %w", err)
	}
	country := o.Country
	if country == "" {
		country = o.Sys.Country
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO observations (id, city, country, lat, lon, dt, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.City, country, o.Coordinates.Lat, o.Coordinates.Lon, o.Dt, string(payload), formatTime(o.CreatedAt),
	)
	if err != nil {
		return models.Observation{}, err
	}
	return o, nil
}

// ListObservations returns up to limit observations, newest first.
func (s *Store) ListObservations(ctx context.Context, limit int) ([]models.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM observations
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fail("list observations", err)
	}
	defer rows.Close()

	out := []models.Observation{}
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, fail("list observations", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list observations", err)
	}
	return out, nil
}

// LatestObservation returns the newest observation for city, compared
// case-insensitively. An empty city matches any city.
func (s *Store) LatestObservation(ctx context.Context, city string) (models.Observation, error) {
	var row *sql.Row
	if city == "" {
		row = s.db.QueryRowContext(ctx, `
			SELECT payload FROM observations
			ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT payload FROM observations WHERE city = ?
			ORDER BY created_at DESC, rowid DESC LIMIT 1`, city)
	}
	o, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Observation{}, ErrNotFound
	}
	if err != nil {
		return models.Observation{}, fail("latest observation", err)
	}
	return o, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObservation(sc scanner) (models.Observation, error) {
	var payload string
	if err := sc.Scan(&payload); err != nil {
		return models.Observation{}, err
	}
	var o models.Observation
	if err := json.Unmarshal([]byte(payload), &o); err != nil {
		return models.Observation{}, fmt.Errorf("decode observation: %w", err)
	}
	return o, nil
}
