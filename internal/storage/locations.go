package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// ListLocations returns all tracked locations in creation order.
func (s *Store) ListLocations(ctx context.Context) ([]models.Location, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, lat, lon, region FROM locations
		ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fail("list locations", err)
	}
	defer rows.Close()
	out := []models.Location{}
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Lat, &l.Lon, &l.Region); err != nil {
			return nil, fail("list locations", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("list locations", err)
	}
	return out, nil
}

// GetLocation returns the location with id, or ErrNotFound.
func (s *Store) GetLocation(ctx context.Context, id string) (models.Location, error) {
	var l models.Location
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, lat, lon, region FROM locations WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &l.Lat, &l.Lon, &l.Region)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Location{}, ErrNotFound
	}
	if err != nil {
		return models.Location{}, fail("get location", err)
	}
	return l, nil
}

// CreateLocation stores l under a new UUID and returns it.
func (s *Store) CreateLocation(ctx context.Context, l models.Location) (models.Location, error) {
	l.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, name, lat, lon, region, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.Lat, l.Lon, l.Region, formatTime(s.now()),
	)
	if err != nil {
		return models.Location{}, fail("create location", err)
	}
	return l, nil
}

// UpdateLocation applies patch to the location with id and returns the result.
// check, when non-nil, validates the merged location before it is written.
func (s *Store) UpdateLocation(ctx context.Context, id string, patch models.LocationPatch, check func(models.Location) (models.Location, error)) (models.Location, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Location{}, fail("update location", err)
	}
	defer func() { _ = tx.Rollback() }()

	var cur models.Location
	err = tx.QueryRowContext(ctx, `
		SELECT id, name, lat, lon, region FROM locations WHERE id = ?`, id,
	).Scan(&cur.ID, &cur.Name, &cur.Lat, &cur.Lon, &cur.Region)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Location{}, ErrNotFound
	}
	if err != nil {
		return models.Location{}, fail("update location", err)
	}

	next := patch.Apply(cur)
	if check != nil {
		if next, err = check(next); err != nil {
			return models.Location{}, err
		}
	}
	next.ID = cur.ID
	if _, err := tx.ExecContext(ctx, `
		UPDATE locations SET name = ?, lat = ?, lon = ?, region = ? WHERE id = ?`,
		next.Name, next.Lat, next.Lon, next.Region, id,
	); err != nil {
		return models.Location{}, fail("update location", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Location{}, fail("update location", err)
	}
	return next, nil
}

// DeleteLocation removes the location with id, or returns ErrNotFound.
func (s *Store) DeleteLocation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fail("delete location", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fail("delete location", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
