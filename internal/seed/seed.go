// Package seed builds the demo observation and forecast used by the admin
// seed endpoint and the seed command.
package seed

import (
	"math/rand"
	"strings"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// DefaultCity is seeded when no city is given.
const DefaultCity = "Kathmandu"

// ForecastDays is the number of days DemoForecast returns.
const ForecastDays = 7

// DemoObservation returns a clear-sky observation for city stamped at now.
// Country and coordinates are filled in for Kathmandu only.
func DemoObservation(city string, now time.Time) models.Observation {
	city = cityOrDefault(city)
	feels, tmin, tmax, pressure := 24.0, 20.0, 25.0, 1015.0
	deg := 120.0
	visibility := 10000

	o := models.Observation{
		City:    city,
		Weather: []models.Condition{{ID: 800, Main: "Clear", Description: "Clear Sky", Icon: "01d"}},
		Base:    "stations",
		Main: models.MainReadings{
			Temp:      22,
			FeelsLike: &feels,
			TempMin:   &tmin,
			TempMax:   &tmax,
			Pressure:  &pressure,
			Humidity:  45,
		},
		Visibility: &visibility,
		Wind:       models.Wind{Speed: 5.5, Deg: &deg},
		Clouds:     models.Clouds{All: 10},
		Dt:         now.Unix(),
		Sys:        models.Sys{Sunrise: 1629852000, Sunset: 1629900000},
		Timezone:   20700,
	}
	if strings.EqualFold(city, DefaultCity) {
		o.Country = "NP"
		o.Sys.Country = "NP"
		o.Coordinates = models.Coordinates{Lat: 27.7172, Lon: 85.324}
	}
	return o
}

// DemoForecast returns ForecastDays days for city starting at now's date.
// Temperatures fall in [20, 25); even days are sunny and odd days partly cloudy.
func DemoForecast(city string, now time.Time, rnd *rand.Rand) []models.ForecastDay {
	city = cityOrDefault(city)
	days := make([]models.ForecastDay, 0, ForecastDays)
	for i := 0; i < ForecastDays; i++ {
		d := models.ForecastDay{
			City:        city,
			Date:        now.AddDate(0, 0, i),
			Temperature: 20 + rnd.Float64()*5,
			Weather:     "Clear",
			Description: "Sunny",
			Icon:        "sun",
		}
		if i%2 == 1 {
			d.Description = "Partly Cloudy"
			d.Icon = "cloud-sun"
		}
		days = append(days, d)
	}
	return days
}

func cityOrDefault(city string) string {
	if c := strings.TrimSpace(city); c != "" {
		return c
	}
	return DefaultCity
}
