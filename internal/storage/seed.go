package storage

import (
	"context"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// SaveSeed stores an observation and its forecast days in one transaction.
// Either every row is written or none is.
func (s *Store) SaveSeed(ctx context.Context, o models.Observation, days []models.ForecastDay) (models.Observation, []models.ForecastDay, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Observation{}, nil, fail("save seed", err)
	}
	defer func() { _ = tx.Rollback() }()

	o, err = s.insertObservation(ctx, tx, o)
	if err != nil {
		return models.Observation{}, nil, fail("save seed", err)
	}
	stored := make([]models.ForecastDay, 0, len(days))
	for _, d := range days {
		sd, err := s.insertForecastDay(ctx, tx, d)
		if err != nil {
			return models.Observation{}, nil, fail("save seed", err)
		}
		stored = append(stored, sd)
	}
	if err := tx.Commit(); err != nil {
		return models.Observation{}, nil, fail("save seed", err)
	}
	return o, stored, nil
}
