package models

import "time"

// ForecastDay is a single stored daily forecast entry for a city.
type ForecastDay struct {
	ID          string    `json:"id"`
	City        string    `json:"city"`
	Date        time.Time `json:"date"`
	Temperature float64   `json:"temperature"`
	Weather     string    `json:"weather"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
}
